package main

import (
	"ethicsengine/internal/tui"
	"github.com/spf13/cobra"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Open the interactive run dashboard",
	Long:  `Opens a terminal dashboard over a running API server (see "serve").`,
	RunE:  runDashboard,
}

var dashboardAPI string

func init() {
	dashboardCmd.Flags().StringVar(&dashboardAPI, "api", "http://127.0.0.1:7478", "API server address")
}

func runDashboard(cmd *cobra.Command, args []string) error {
	return tui.New(dashboardAPI).Run()
}
