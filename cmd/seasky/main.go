// Command seasky serves the SeaSky web frontend.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

var (
	configPath string
	addrFlag   string
)

var rootCmd = &cobra.Command{
	Use:   "seasky",
	Short: "SeaSky dairy logistics web frontend",
	Long: `SeaSky serves the live registration wizard, the cart and the
credentials dialog, and falls back to the built single-page app for
every other path.

Configuration comes from an optional YAML file (--config or
SEASKY_CONFIG) and SEASKY_* environment variables.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&addrFlag, "addr", "", "listen address (overrides config)")

	rootCmd.AddCommand(serveCmd, staticCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
