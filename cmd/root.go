// Package cmd contains all the CLI commands for the application,
// built using the Cobra library.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "pr-dashboard",
	Short: "A dashboard of open pull requests across GitHub repositories.",
	Long: `pr-dashboard aggregates the open pull requests of a set of GitHub
repositories into one list, keeps it fresh by polling, and lets you review,
merge, close or reopen them. Run "serve" for the live HTTP API or "prs" for
a one-shot JSON report.`,
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
	// Add a persistent flag for verbose output, available to all commands.
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose/debug logging")
}
