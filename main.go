// Package main serves as the entry point for the textchunking application.
// It splits large text documents into bounded chunks and tracks the
// correction progress of each batch of chunks through its lifecycle.
package main

import "textchunking/cmd"

func main() {
	cmd.Execute()
}
