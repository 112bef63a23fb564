package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for filescout
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "filescout",
		Short: "Scan workspaces and process matching files",
		Long: `filescout finds the files of a workspace that match a glob pattern,
skips the ones that cannot be read or are empty, and runs a processor on the
rest. Every step is recorded in an audit log that is printed after the scan.

Scans can be written to JSON reports, recorded in a history database and
repeated automatically when files change.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
	}

	cmd.AddCommand(NewScanCommand())
	cmd.AddCommand(NewHistoryCommand())
	cmd.AddCommand(NewVersionCommand())

	return cmd
}

// NewVersionCommand creates the 'filescout version' command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the filescout version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "filescout %s\n", Version)
		},
	}
}
