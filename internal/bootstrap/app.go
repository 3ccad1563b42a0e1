package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/cassiomorais/pixgateway/internal/infrastructure/config"
	"github.com/cassiomorais/pixgateway/internal/infrastructure/kafka"
	"github.com/cassiomorais/pixgateway/internal/infrastructure/observability"
	"github.com/cassiomorais/pixgateway/internal/infrastructure/postgres"
	infraRedis "github.com/cassiomorais/pixgateway/internal/infrastructure/redis"
	"github.com/cassiomorais/pixgateway/internal/service"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// App holds the process-wide dependencies. Pool, Redis and Kafka are nil
// when the corresponding backend is not configured.
type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Pool    *pgxpool.Pool
	Redis   *redis.Client
	Kafka   *kafka.Producer
	Metrics *observability.Metrics

	tracer *sdktrace.TracerProvider
}

func New(ctx context.Context, serviceName string, metricsNamespace string) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := observability.InitLogger(cfg.Observability.LogLevel, os.Stdout).
		With().Str("service", serviceName).Logger()
	logger.Info().
		Str("provider", cfg.Provider.Name).
		Str("base_url", cfg.Provider.BaseURL).
		Bool("tenant_header", cfg.Provider.TenantID != "").
		Msg("Starting")

	app := &App{Config: cfg, Logger: logger}

	if cfg.Observability.EnableTracing {
		tp, err := observability.InitTracer(serviceName, cfg.Observability.JaegerEndpoint)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		} else {
			app.tracer = tp
			logger.Info().Msg("Tracing enabled")
		}
	}

	app.Metrics = observability.NewMetrics(metricsNamespace, nil)
	logger.Info().Msg("Metrics initialized")

	if cfg.Database.URL != "" {
		pool, err := postgres.NewPool(ctx, &cfg.Database, logger)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		app.Pool = pool
		logger.Info().Msg("Connected to PostgreSQL")
	}

	if cfg.Redis.Host != "" {
		client, err := infraRedis.NewClient(ctx, &cfg.Redis, logger)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		app.Redis = client
		logger.Info().Str("stream", cfg.Redis.Stream).Msg("Connected to Redis")
	}

	if len(cfg.Kafka.Brokers) > 0 {
		app.Kafka = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.BatchTimeout)
		logger.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("Kafka producer configured")
	}

	return app, nil
}

// Sinks returns the webhook sinks for the configured backends. The log sink
// is always first.
func (a *App) Sinks() []service.Sink {
	sinks := []service.Sink{service.NewLogSink(a.Logger)}
	if a.Pool != nil {
		sinks = append(sinks, postgres.NewTransactionStore(a.Pool))
	}
	if a.Redis != nil {
		sinks = append(sinks, infraRedis.NewStreamSink(a.Redis, a.Config.Redis.Stream, a.Config.Redis.StreamMaxLen))
	}
	if a.Kafka != nil {
		sinks = append(sinks, a.Kafka)
	}
	return sinks
}

func (a *App) Close() {
	if a.Kafka != nil {
		if err := a.Kafka.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("Failed to close Kafka producer")
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
	if a.tracer != nil {
		observability.Shutdown(context.Background(), a.tracer)
	}
}
