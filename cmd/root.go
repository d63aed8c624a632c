// Package cmd wires the command line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "harvestd",
	Short: "Web text harvesting service",
	Long: `harvestd fetches web pages from uploaded URL lists or topic
searches, extracts their readable text and serves the results as
downloadable archives.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	rootCmd.AddCommand(serveCmd)
}
