// Package cmd provides command-line interface functionality for the
// textchunking application.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"textchunking/internal/config"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	cfg     *config.Config
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "textchunking",
	Short: "A text chunking and batch progress engine",
	Long: `TextChunking splits long text documents into bounded-size chunks for an
external correction engine and tracks the asynchronous completion of all
chunks as a single logical batch.

The engine provides:
- Boundary-aware text splitting with configurable overlap
- In-memory batch progress tracking with admission control
- Per-batch timeout detection and cancellation
- Periodic eviction of finished batches
- Lifecycle event publishing over NATS JetStream
- Optional batch event auditing in PostgreSQL`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./configs/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "Log format (json, text)")

	// Bind flags to viper
	if err := viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level")); err != nil {
		fmt.Fprintf(os.Stderr, "Error binding log-level flag: %v\n", err)
	}
	if err := viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format")); err != nil {
		fmt.Fprintf(os.Stderr, "Error binding log-format flag: %v\n", err)
	}
}

func initConfig() {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Set config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Environment variables
	v.SetEnvPrefix("TEXTCHUNK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read configuration
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
		}
		// Config file not found; use defaults and environment
	}

	// Load configuration
	cfg = config.New(v)
}

func setDefaults(v *viper.Viper) {
	// Splitter defaults
	v.SetDefault("splitter.max_chunk_size", 1000)
	v.SetDefault("splitter.overlap_size", 50)
	v.SetDefault("splitter.max_input_size", 100000)

	// Batch lifecycle defaults
	v.SetDefault("batch.max_concurrent_batches", 5)
	v.SetDefault("batch.batch_timeout", "5m")
	v.SetDefault("batch.max_batch_age", "1h")
	v.SetDefault("batch.cleanup_interval", "60s")
	v.SetDefault("batch.event_buffer_size", 256)

	// NATS defaults
	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.max_reconnects", 5)
	v.SetDefault("nats.reconnect_wait", "2s")

	// Database defaults
	v.SetDefault("archive.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "textchunking")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_connections", 10)

	// Logging defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// GetConfig returns the loaded configuration.
func GetConfig() *config.Config {
	return cfg
}
