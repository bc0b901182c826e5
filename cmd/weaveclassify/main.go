// Command weaveclassify runs the pattern classification engine: an HTTP
// service that embeds incoming text, searches a published pattern
// catalogue, and returns ranked matches.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "weaveclassify",
	Short: "Hierarchical pattern classification engine",
	Long:  "weaveclassify embeds weave unit text and classifies it against a published pattern catalogue.",
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to a config file (optional; environment variables also apply)")
	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
