package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/marmos91/relaychat/internal/logger"
	"github.com/marmos91/relaychat/pkg/adapter"
	chatadapter "github.com/marmos91/relaychat/pkg/adapter/chat"
	"github.com/marmos91/relaychat/pkg/api"
	"github.com/marmos91/relaychat/pkg/config"
	"github.com/marmos91/relaychat/pkg/metrics"
	"github.com/marmos91/relaychat/pkg/metrics/prometheus"
)

var startCmd = &cobra.Command{
	Use:   "start [port]",
	Short: "Start the relaychat server",
	Long: `Start the relaychat server with the specified configuration.

An optional positional port overrides the configured chat port.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/relaychat/config.yaml.

Examples:
  # Start with the configured port
  relaychat start

  # Start on port 7000
  relaychat start 7000

  # Start with custom config file
  relaychat start --config /etc/relaychat/config.yaml

  # Start with environment variable overrides
  RELAYCHAT_LOGGING_LEVEL=DEBUG relaychat start`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}

	if len(args) > 0 {
		port, err := strconv.Atoi(args[0])
		if err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("invalid port %q: must be a number between 1 and 65535", args[0])
		}
		cfg.Server.Port = port
	}

	if err := logger.Init(logger.Config{
		Level:    cfg.Logging.Level,
		Output:   cfg.Logging.Output,
		Truncate: cfg.Logging.Truncate,
	}); err != nil {
		return err
	}
	defer logger.Shutdown()

	logger.Log(logger.TagServer, "RelayChat starting", "version", Version)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))

	var chatMetrics metrics.ChatMetrics
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		chatMetrics = prometheus.NewChatMetrics()
		logger.Info("Metrics collection enabled")
	} else {
		logger.Info("Metrics collection disabled")
	}

	chatServer := chatadapter.NewAdapter(chatadapter.Config{
		BaseConfig: adapter.BaseConfig{
			BindAddress:        cfg.Server.BindAddress,
			Port:               cfg.Server.Port,
			MaxConnections:     cfg.Server.MaxConnections,
			ShutdownTimeout:    cfg.ShutdownTimeout,
			MetricsLogInterval: cfg.Server.StatusLogInterval,
		},
	}, chatMetrics)

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return chatServer.Serve(gctx)
	})

	if cfg.API.Enabled {
		apiServer := api.NewServer(cfg.API, chatServer)
		g.Go(func() error {
			return apiServer.Start(gctx)
		})
		logger.Info("API server enabled", "port", cfg.API.Port)
	} else {
		logger.Info("API server disabled")
	}

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- g.Wait()
	}()

	// Wait for interrupt signal or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Server is running. Press Ctrl+C to stop.")

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("Shutdown signal received, initiating graceful shutdown")
		cancel()

		if err := <-serverDone; err != nil {
			logger.Error("Server shutdown error", "error", err)
			return err
		}
		logger.Info("Server stopped gracefully")

	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("Server error", "error", err)
			return err
		}
		logger.Info("Server stopped")
	}

	return nil
}

// getConfigSource returns a description of where the config was loaded from.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}
