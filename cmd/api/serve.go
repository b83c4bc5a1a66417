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

	"github.com/gfearing/fearings-services/internal/client"
	"github.com/gfearing/fearings-services/internal/config"
	"github.com/gfearing/fearings-services/internal/estimate"
	"github.com/gfearing/fearings-services/internal/estimator"
	"github.com/gfearing/fearings-services/internal/handler"
	"github.com/gfearing/fearings-services/internal/logger"
	"github.com/gfearing/fearings-services/internal/metrics"
	"github.com/gfearing/fearings-services/internal/middleware"
	"github.com/gfearing/fearings-services/internal/policy"
	"github.com/gfearing/fearings-services/internal/session"
	"github.com/gfearing/fearings-services/internal/tracing"
	"github.com/gfearing/fearings-services/internal/websocket"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

// csrfSweepInterval is how often expired CSRF tokens are dropped
const csrfSweepInterval = 10 * time.Minute

func newServeCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Port = port
			}
			return serve(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "port to listen on (overrides PORT)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}

	logger.Init(cfg.LogLevel, cfg.LogJSON)
	log := logger.Global()
	log.Info().
		Str("version", Version).
		Str("port", cfg.Port).
		Str("log_level", cfg.LogLevel).
		Bool("log_json", cfg.LogJSON).
		Bool("tracing", cfg.TracingEnabled).
		Msg("Fearing's Services starting")

	shutdownTracing, err := tracing.Init(cfg.TracingEnabled, os.Stdout)
	if err != nil {
		return err
	}

	metrics.Init()

	p, err := policy.Load(cfg.PolicyFile)
	if err != nil {
		return fmt.Errorf("load policy: %w", err)
	}

	builder, err := estimate.NewBuilder(p)
	if err != nil {
		return fmt.Errorf("build prompt template: %w", err)
	}

	gemini := client.NewClient(client.Config{
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.GeminiModel,
		BaseURL: cfg.GeminiBaseURL,
		Timeout: cfg.GeminiTimeout,
	})
	if !gemini.Configured() {
		log.Warn().Msg("GEMINI_API_KEY not set; the estimator will answer every request with the failure message")
	}

	service := estimator.NewService(builder, gemini)

	hub := websocket.NewHub()
	go hub.Run()

	store := session.NewStore(cfg.SessionTTL)
	store.OnCreate(func(s *estimator.Session) {
		s.OnChange(hub.SendState)
	})

	csrf := middleware.NewCSRFMiddleware(middleware.CSRFConfig{TokenDuration: cfg.SessionTTL})

	gin.SetMode(cfg.GinMode)
	router, err := handler.NewRouter(handler.RouterConfig{
		Policy:       p,
		Service:      service,
		Estimator:    gemini,
		Store:        store,
		Hub:          hub,
		CSRF:         csrf,
		SessionTTL:   cfg.SessionTTL,
		CookieSecure: cfg.CookieSecure,
		Version:      Version,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sweepCSRF(ctx, csrf)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
		log.Info().Msg("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	hub.Stop()
	store.Stop()
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Tracer shutdown failed")
	}

	log.Info().Msg("Server stopped")
	return nil
}

func sweepCSRF(ctx context.Context, csrf *middleware.CSRFMiddleware) {
	ticker := time.NewTicker(csrfSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := csrf.CleanupExpiredTokens(); n > 0 {
				logger.Global().Debug().Int("removed", n).Msg("Expired CSRF tokens removed")
			}
		case <-ctx.Done():
			return
		}
	}
}
