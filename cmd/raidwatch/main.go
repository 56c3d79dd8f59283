package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raidwatch/raidwatch/internal/alerts"
	"github.com/raidwatch/raidwatch/internal/api"
	"github.com/raidwatch/raidwatch/internal/config"
	"github.com/raidwatch/raidwatch/internal/logging"
	"github.com/raidwatch/raidwatch/internal/monitoring"
	"github.com/raidwatch/raidwatch/internal/redfish"
	"github.com/raidwatch/raidwatch/internal/websocket"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// Version information (set at build time with -ldflags)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:     "raidwatch",
	Short:   "raidwatch - Dell PowerEdge storage health monitor",
	Long:    `raidwatch polls an iDRAC's Redfish API on an interval, normalizes RAID and disk inventory into a stable schema, and serves cached snapshots with derived health alerts.`,
	Version: Version,
	Run: func(cmd *cobra.Command, args []string) {
		runServer()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("raidwatch %s\n", Version)
		if BuildTime != "unknown" {
			fmt.Printf("Built: %s\n", BuildTime)
		}
		if GitCommit != "unknown" {
			fmt.Printf("Commit: %s\n", GitCommit)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "path to .env file (default ./.env)")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newClient(cfg *config.Config) (*redfish.Client, error) {
	return redfish.NewClient(redfish.ClientConfig{
		Host:               cfg.IDRACHost,
		Username:           cfg.IDRACUsername,
		Password:           cfg.IDRACPassword,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
		Timeout:            cfg.RequestTimeout,
	})
}

func runServer() {
	// Baseline logger for early startup messages
	logging.Init(logging.Config{
		Format:    "auto",
		Level:     "info",
		Component: "raidwatch",
	})

	cfg, err := config.Load(envFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Format:    cfg.LogFormat,
		Level:     cfg.LogLevel,
		Component: "raidwatch",
	})

	log.Info().
		Str("version", Version).
		Str("idrac", cfg.IDRACHost).
		Dur("interval", cfg.PollInterval).
		Msg("Starting raidwatch")

	client, err := newClient(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Redfish client")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	alertManager := alerts.NewManager(cfg.AlertRetention, cfg.PredictiveLifeThreshold)
	monitor := monitoring.New(cfg, client, alertManager)

	wsHub := websocket.NewHub(monitor.GetSnapshot)
	go wsHub.Run()
	monitor.SetPublishCallback(wsHub.BroadcastSnapshot)

	monitor.Start(ctx)

	if cfg.EnvFile != "" {
		watcher, err := config.NewWatcher(cfg.EnvFile, func(updated *config.Config) {
			replacement, err := newClient(updated)
			if err != nil {
				log.Error().Err(err).Msg("Reloaded config produced an invalid client; keeping current one")
				replacement = nil
			}
			monitor.UpdateConfig(updated, replacement)
		})
		if err != nil {
			log.Warn().Err(err).Msg("Config watcher unavailable; .env changes require restart")
		} else if err := watcher.Start(); err != nil {
			log.Warn().Err(err).Msg("Config watcher failed to start; .env changes require restart")
		} else {
			defer watcher.Stop()
		}
	}

	router := api.NewRouter(cfg, monitor, alertManager, wsHub)
	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
		// ReadHeaderTimeout instead of ReadTimeout so the deadline does not
		// persist past the WebSocket upgrade.
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("HTTP server listening")
		serverErr <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}

	cancel()
	monitor.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("HTTP shutdown incomplete")
	}
	client.Close(shutdownCtx)

	log.Info().Msg("Shutdown complete")
}
