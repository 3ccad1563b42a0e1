package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cassiomorais/pixgateway/internal/bootstrap"
	"github.com/cassiomorais/pixgateway/internal/controller"
	"github.com/cassiomorais/pixgateway/internal/domain/pix"
	"github.com/cassiomorais/pixgateway/internal/infrastructure/config"
	"github.com/cassiomorais/pixgateway/internal/providers"
	"github.com/cassiomorais/pixgateway/internal/service"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, "pix-gateway", "pixgateway")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	cfg := app.Config

	// --- Provider ---
	headers, err := providers.NewHeaderBuilder(cfg.Provider.SecretKey, cfg.Provider.TenantID, cfg.Provider.TenantHeader)
	if err != nil {
		app.Logger.Error().Err(err).Msg("Provider credentials missing")
		app.Close()
		os.Exit(1)
	}

	var gateway providers.Gateway
	switch cfg.Provider.Name {
	case config.ProviderMock:
		gateway = providers.NewMockGateway(config.ProviderMock,
			providers.WithLatency(cfg.Provider.Mock.Latency),
			providers.WithFailureRate(cfg.Provider.Mock.FailureRate),
			providers.WithTimeoutRate(cfg.Provider.Mock.TimeoutRate),
		)
		app.Logger.Warn().Msg("Using sandbox payment gateway, no real transactions will be created")
	default:
		gateway = providers.NewFairClient(cfg.Provider.BaseURL,
			providers.WithLogger(app.Logger),
			providers.WithMetrics(app.Metrics),
		)
	}

	schemas, err := pix.NewSchemaValidator()
	if err != nil {
		app.Logger.Error().Err(err).Msg("Failed to compile JSON schemas")
		app.Close()
		os.Exit(1)
	}

	mapper := pix.NewMapper(
		pix.WithPublicBaseURL(cfg.Webhook.PublicBaseURL),
		pix.WithLogger(app.Logger),
		pix.WithSplitDroppedHook(func(reason string) {
			app.Metrics.SplitsDroppedTotal.WithLabelValues(reason).Inc()
		}),
	)

	// --- Webhook fan-out ---
	dispatcher := service.NewWebhookDispatcher(service.DispatcherConfig{
		QueueSize:        cfg.Webhook.QueueSize,
		Workers:          cfg.Webhook.Workers,
		DeliveryTimeout:  cfg.Webhook.DeliveryTimeout,
		BreakerThreshold: cfg.Webhook.BreakerThreshold,
		BreakerTimeout:   cfg.Webhook.BreakerTimeout,
	}, app.Logger, app.Metrics, app.Sinks()...)

	pixService := service.NewPixService(gateway, headers, mapper, schemas, dispatcher, app.Logger, app.Metrics)

	// --- Build router ---
	router := controller.NewRouter(controller.RouterDeps{
		Pool:          app.Pool,
		RedisClient:   app.Redis,
		PixService:    pixService,
		Metrics:       app.Metrics,
		Logger:        app.Logger,
		CORSConfig:    cfg.Server.CORS,
		RateLimit:     cfg.Server.RateLimitPerMinute,
		ExposeMetrics: cfg.Observability.EnableMetrics,
	})

	// --- HTTP server ---
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// The dispatcher outlives the server so webhooks accepted during
	// shutdown are still delivered.
	dispatchCtx, stopDispatcher := context.WithCancel(context.Background())
	defer stopDispatcher()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return dispatcher.Run(dispatchCtx)
	})
	g.Go(func() error {
		app.Logger.Info().Str("addr", addr).Str("gateway", gateway.Name()).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		app.Logger.Info().Msg("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.Logger.Error().Err(err).Msg("Server forced to shutdown")
		}
		stopDispatcher()
		return nil
	})

	if err := g.Wait(); err != nil {
		app.Logger.Error().Err(err).Msg("Server exited with error")
		app.Close()
		os.Exit(1)
	}
	app.Logger.Info().Msg("Server exited")
}
