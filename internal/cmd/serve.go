package cmd

import (
	"context"
	"net/http"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/crmlink/crmlink/internal/config"
	"github.com/crmlink/crmlink/internal/crm"
	errwrap "github.com/crmlink/crmlink/internal/errors"
	"github.com/crmlink/crmlink/internal/hubspot"
	"github.com/crmlink/crmlink/internal/observability"
	"github.com/crmlink/crmlink/internal/ratelimit"
	"github.com/crmlink/crmlink/internal/server"
	"github.com/crmlink/crmlink/internal/server/handlers"
)

var (
	serverPort int
	serverHost string
)

// telemetryHealthChecker ensures telemetry system and exporter are available
type telemetryHealthChecker struct{}

func (telemetryHealthChecker) CheckHealth(ctx context.Context) error {
	if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
		return errwrap.NewInternalError("telemetry system not initialized")
	}
	return nil
}

// hubspotHealthChecker verifies a usable access token can be produced.
type hubspotHealthChecker struct {
	tokens *hubspot.TokenManager
}

func (h hubspotHealthChecker) CheckHealth(ctx context.Context) error {
	_, err := h.tokens.Token(ctx)
	return err
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the HTTP server with graceful shutdown support.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Reload configuration and log level

The server will cleanly shut down the HTTP server and flush logs on shutdown.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.GetConfig()
		if cfg == nil {
			return errwrap.NewConfigInvalidError("configuration not loaded")
		}
		if err := cfg.ValidateForServe(); err != nil {
			return err
		}

		logLevel := cfg.Logging.Level
		observability.InitServerLogger("crmlink", logLevel)

		metricsPort := cfg.Metrics.Port
		if metricsPort == 0 {
			metricsPort = 9090
		}
		if cfg.Metrics.Enabled {
			if err := observability.InitMetrics("crmlink", metricsPort); err != nil {
				observability.ServerLogger.Error("Failed to initialize metrics",
					zap.Error(err))
				return errwrap.WrapInternal(cmd.Context(), err, "metrics initialization failed")
			}
		}

		// Flag values flow through viper, so cfg already reflects --host/--port.
		host := cfg.Server.Host
		port := cfg.Server.Port

		observability.ServerLogger.Info("Initializing server",
			zap.String("service", "crmlink"),
			zap.String("version", versionInfo.Version),
			zap.String("host", host),
			zap.Int("port", port),
			zap.Int("metrics_port", metricsPort))

		// Outbound HubSpot stack
		tokens := hubspot.NewTokenManager(
			cfg.HubSpot.ClientID,
			cfg.HubSpot.ClientSecret,
			cfg.HubSpot.RefreshToken,
		)
		if cfg.HubSpot.TokenURL != "" {
			tokens.TokenURL = cfg.HubSpot.TokenURL
		}
		tokens.Timeout = cfg.HubSpot.Timeout

		client := hubspot.NewClient(tokens, cfg.HubSpot.BaseURL)
		client.Timeout = cfg.HubSpot.Timeout
		client.MaxRetries = cfg.HubSpot.MaxRetries
		client.BackoffBase = cfg.HubSpot.BackoffBase

		service := crm.NewService(client)
		limiter := ratelimit.New(cfg.RateLimit.Limit, cfg.RateLimit.Window)

		// Health manager
		hm := handlers.NewHealthManager(versionInfo.Version)
		hm.RegisterChecker("telemetry", telemetryHealthChecker{})
		hm.RegisterChecker("hubspot", hubspotHealthChecker{tokens: tokens})

		srv := server.New(server.Options{
			Host:         host,
			Port:         port,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
			AdminToken:   cfg.AdminToken,
			Service:      service,
			Limiter:      limiter,
			Health:       hm,
		})

		shutdownTimeout := cfg.Server.ShutdownTimeout
		if shutdownTimeout == 0 {
			shutdownTimeout = 15 * time.Second
		}

		// Graceful shutdown handlers run LIFO: the HTTP server stops first,
		// the logger flushes last.
		signals.OnShutdown(func(ctx context.Context) error {
			observability.ServerLogger.Info("Flushing logger...")
			if err := observability.ServerLogger.Sync(); err != nil {
				// Sync errors are often benign (stdout/stderr already closed)
				observability.ServerLogger.Warn("Logger sync returned error (may be benign)",
					zap.Error(err))
			}
			return nil
		})

		signals.OnShutdown(func(ctx context.Context) error {
			observability.ServerLogger.Info("Shutting down HTTP server...")
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				return errwrap.WrapInternal(ctx, err, "server shutdown failed")
			}

			observability.ServerLogger.Info("HTTP server stopped gracefully")
			return nil
		})

		// Config reload handler (SIGHUP)
		signals.OnReload(func(ctx context.Context) error {
			observability.ServerLogger.Info("Received SIGHUP: attempting config reload")

			reloaded, err := config.Load(cfgFile)
			if err != nil {
				observability.ServerLogger.Error("Failed to reload config",
					zap.Error(err))
				return errwrap.WrapConfigInvalid(ctx, err, "config reload failed")
			}

			observability.InitServerLogger("crmlink", reloaded.Logging.Level)
			observability.ServerLogger.Info("Configuration reloaded",
				zap.String("log_level", reloaded.Logging.Level))
			return nil
		})

		// Double-tap force quit (Ctrl+C within 2 seconds)
		if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
			Window:  2 * time.Second,
			Message: "Press Ctrl+C again within 2 seconds to force quit",
		}); err != nil {
			observability.ServerLogger.Warn("Failed to enable double-tap force quit",
				zap.Error(err))
		}

		errChan := make(chan error, 1)
		go func() {
			observability.ServerLogger.Info("Starting HTTP server...",
				zap.String("host", host),
				zap.Int("port", port))
			if err := srv.Start(); err != nil && err != http.ErrServerClosed {
				errChan <- err
			}
		}()

		go func() {
			if err := signals.Listen(cmd.Context()); err != nil {
				observability.ServerLogger.Error("Signal handler error", zap.Error(err))
				errChan <- err
			}
		}()

		if err := <-errChan; err != nil {
			return errwrap.WrapInternal(cmd.Context(), err, "server error")
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "0.0.0.0", "server host")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "server port")

	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}
