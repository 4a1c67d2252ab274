package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ethicsengine/internal/api"
	"ethicsengine/internal/engine"
	"ethicsengine/internal/profiles"
	"ethicsengine/internal/runner"
	"ethicsengine/internal/store"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server for the dashboard and scripted callers",
	RunE:  runServe,
}

var serveAddr string

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "127.0.0.1:7478", "Listen address")
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := loadSettings(); err != nil {
		return err
	}

	client, err := engine.NewBackendClient(settings)
	if err != nil {
		return err
	}

	resolver, err := profiles.NewResolver(settings.DataDir, nil)
	if err != nil {
		return err
	}

	st, err := store.New(settings.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	eng := engine.New(runner.New(client, settings.RunnerConfig()), st, settings.SchedulerConfig())
	eng.Start()
	defer eng.Stop()

	server := api.NewServer(eng, st, resolver, settings.DataDir, serveAddr)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		fmt.Printf("\nReceived %s, shutting down...\n", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}
