package cmd

import (
	"textchunking/internal/version"

	"github.com/spf13/cobra"
)

// newVersionCmd creates and returns the version command.
func newVersionCmd() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long: `Show version information for the textchunking application.

This command displays the current version of the textchunking CLI tool,
including version number and build information.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.Get()
			if short {
				cmd.Println(info.Short())
				return nil
			}
			cmd.Print(info.String())
			return nil
		},
	}

	cmd.Flags().BoolVarP(&short, "short", "s", false, "Show only version number")
	return cmd
}

func init() {
	rootCmd.AddCommand(newVersionCmd())
}
