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

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"approval-tracker/backend/internal/api"
	"approval-tracker/backend/internal/auth"
	"approval-tracker/backend/internal/config"
	"approval-tracker/backend/internal/logging"
	"approval-tracker/backend/internal/mcp"
	"approval-tracker/backend/internal/metrics"
	"approval-tracker/backend/internal/repository"
	"approval-tracker/backend/internal/services"
	"approval-tracker/backend/internal/tls"
)

const version = "1.0.0"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:          "tracker-server",
		Short:        "Serve the approval tracker REST API and MCP tools",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to config.yaml")
	return cmd
}

func run(ctx context.Context, configPath string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := logging.NewLogger()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		return err
	}
	if cfg.Debug {
		logger = logging.NewLoggerTo(os.Stdout, true)
	}
	logger.Info("Configuration loaded",
		"environment", cfg.Environment,
		"store", cfg.Store.Driver,
		"okta_client_id", cfg.Auth.ClientID,
		"okta_domain", cfg.Auth.OktaDomain,
		"secret_len", len(cfg.Auth.ClientSecret),
		"swagger_client_id", cfg.Auth.SwaggerClientID,
		"config_file", cfg.ConfigFile,
	)
	if cfg.Auth.SwaggerClientID != "" && cfg.Auth.SwaggerClientID == cfg.Auth.ClientID {
		logger.Warn("Swagger client id matches the backend client id; PKCE login from /docs will fail if the backend app requires a secret")
	}

	store, err := repository.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to open document store", "error", err)
		return err
	}
	defer store.Close()
	logger.Info("Document store connected", "driver", cfg.Store.Driver)

	var recorder *metrics.Recorder
	if cfg.Metrics.Enabled {
		recorder = metrics.NewRecorder()
	}

	tracker := services.NewTrackerService(store,
		services.WithMetrics(recorder),
		services.WithLogger(logger),
		services.WithAnonymousActor(cfg.Tracker.AnonymousActor),
	)
	logger.Info("Service layer initialized")

	authz, err := auth.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize auth", "error", err)
		return err
	}

	e := newEcho(cfg, store, tracker, authz, recorder)

	addr := cfg.Server.Addr
	if cfg.TLS.Enable {
		addr = cfg.Server.TLSAddr
	}
	server := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "address", addr, "tls", cfg.TLS.Enable)
		if !cfg.TLS.Enable {
			serverErrors <- server.ListenAndServe()
			return
		}
		generated, err := tls.EnsureCert(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.Hostnames)
		if err != nil {
			serverErrors <- fmt.Errorf("tls setup: %w", err)
			return
		}
		if generated {
			logger.Info("Generated self-signed certificate", "cert", cfg.TLS.CertFile, "hosts", cfg.TLS.Hostnames)
		}
		serverErrors <- server.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err)
			return err
		}
	case sig := <-shutdown:
		logger.Info("Shutdown signal received", "signal", sig)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
			if err := server.Close(); err != nil {
				logger.Error("Server close error", "error", err)
			}
		}
		logger.Info("Server stopped gracefully")
	}
	return nil
}

// newEcho mounts every route. recorder may be nil.
func newEcho(cfg *config.Config, store repository.DocumentStore, tracker services.Tracker, authz *auth.Auth, recorder *metrics.Recorder) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = api.ErrorHandler

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(otelecho.Middleware("approval-tracker"))

	e.GET("/login", echo.WrapHandler(http.HandlerFunc(authz.LoginHandler)))
	e.GET("/auth/callback", echo.WrapHandler(http.HandlerFunc(authz.CallbackHandler)))
	e.GET("/logout", echo.WrapHandler(http.HandlerFunc(authz.LogoutHandler)))

	// Health is registered outside the group so it stays unauthenticated.
	e.GET("/api/v1/health", echo.WrapHandler(http.HandlerFunc(api.NewHandler(store, version).HandleHealth)))

	apiGroup := e.Group("/api/v1")
	apiGroup.Use(echo.WrapMiddleware(authz.RequireAuth))
	api.RegisterHandlers(apiGroup, api.NewServer(tracker))

	mcpServer := mcp.NewServer(tracker)
	mcpHandlers := http.NewServeMux()
	mcp.MountHTTPHandlers(mcpHandlers, mcpServer.GetMCPServer())
	mcpHandler := echo.WrapHandler(authz.RequireAuth(mcpHandlers))
	e.Any("/mcp", mcpHandler)
	e.Any("/mcp/*", mcpHandler)

	e.GET("/openapi.yaml", echo.WrapHandler(api.SpecHandler(cfg.Auth.OktaDomain)))
	e.GET("/docs", echo.WrapHandler(api.SwaggerHandler(cfg.Auth.OktaDomain, cfg.Auth.SwaggerClientID)))
	e.GET("/docs/oauth2-redirect.html", echo.WrapHandler(api.OAuth2RedirectHandler()))

	if recorder != nil {
		e.GET("/metrics", echo.WrapHandler(recorder.Handler()))
	}
	return e
}
