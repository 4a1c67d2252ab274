package main

import (
	"fmt"
	"os"

	"ethicsengine/internal/engine"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ethicsengine",
	Short: "EthicsEngine - ethical reasoning evaluation runs",
	Long: `EthicsEngine evaluates language model reasoning across ethical frameworks,
reasoning levels and species profiles. It runs scenario simulations and
multiple-choice benchmarks concurrently and stores graded results.`,
	// No RunE - defaults to showing help when no subcommand is provided
}

var (
	configPath string
	settings   engine.Settings
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "ethicsengine.yaml", "Path to the YAML config file")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resultsCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(dashboardCmd)
}

// loadSettings reads the config file and applies defaults. Called by
// subcommands after flag parsing so --config is honored.
func loadSettings() error {
	s, err := engine.LoadSettings(configPath)
	if err != nil {
		return err
	}
	settings = s
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
