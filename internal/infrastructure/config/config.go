package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	domainErrors "github.com/cassiomorais/pixgateway/internal/domain/errors"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const (
	ProviderFair = "fairpayments"
	ProviderMock = "mock"
)

var validate = validator.New()

type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Provider      ProviderConfig      `mapstructure:"provider"`
	Webhook       WebhookConfig       `mapstructure:"webhook"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type ServerConfig struct {
	Port        int           `mapstructure:"port"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout of 0 leaves responses unbounded so provider calls can
	// finish however long they take.
	WriteTimeout       time.Duration `mapstructure:"write_timeout"`
	IdleTimeout        time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout"`
	RateLimitPerMinute int           `mapstructure:"rate_limit_per_minute"`
	CORS               CORSConfig    `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

type ProviderConfig struct {
	Name         string `mapstructure:"name"`
	BaseURL      string `mapstructure:"base_url"`
	SecretKey    string `mapstructure:"secret_key"`
	TenantID     string `mapstructure:"tenant_id"`
	TenantHeader string `mapstructure:"tenant_header"`
	// Mock only applies when Name is "mock".
	Mock MockConfig `mapstructure:"mock"`
}

type MockConfig struct {
	Latency     time.Duration `mapstructure:"latency"`
	FailureRate float64       `mapstructure:"failure_rate"`
	TimeoutRate float64       `mapstructure:"timeout_rate"`
}

type WebhookConfig struct {
	// PublicBaseURL is where the provider can reach this service; the
	// default postback URL is derived from it.
	PublicBaseURL    string        `mapstructure:"public_base_url"`
	QueueSize        int           `mapstructure:"queue_size"`
	Workers          int           `mapstructure:"workers"`
	DeliveryTimeout  time.Duration `mapstructure:"delivery_timeout"`
	BreakerThreshold uint32        `mapstructure:"breaker_threshold"`
	BreakerTimeout   time.Duration `mapstructure:"breaker_timeout"`
}

// DatabaseConfig is optional. With an empty URL no transaction store is used.
type DatabaseConfig struct {
	URL               string        `mapstructure:"url"`
	MaxConnections    int32         `mapstructure:"max_connections"`
	MinConnections    int32         `mapstructure:"min_connections"`
	ConnMaxLifetime   time.Duration `mapstructure:"conn_max_lifetime"`
	ConnectRetries    int           `mapstructure:"connect_retries"`
	ConnectRetryDelay time.Duration `mapstructure:"connect_retry_delay"`
}

// RedisConfig is optional. With an empty Host no stream sink is used.
type RedisConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	DB                int           `mapstructure:"db"`
	Password          string        `mapstructure:"password"`
	ConnectRetries    int           `mapstructure:"connect_retries"`
	ConnectRetryDelay time.Duration `mapstructure:"connect_retry_delay"`
	Stream            string        `mapstructure:"stream"`
	StreamMaxLen      int64         `mapstructure:"stream_max_len"`
}

// KafkaConfig is optional. With no brokers no Kafka sink is used.
type KafkaConfig struct {
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
}

type ObservabilityConfig struct {
	LogLevel       string `mapstructure:"log_level"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
	EnableMetrics  bool   `mapstructure:"enable_metrics"`
	EnableTracing  bool   `mapstructure:"enable_tracing"`
}

func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix("PIXGW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindLegacyEnv(v); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}

	// Read from config file if exists
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/pixgateway")

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// bindLegacyEnv accepts the variable names used by earlier deployments next
// to the prefixed ones. The prefixed name wins when both are set.
func bindLegacyEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"provider.secret_key":     {"PIXGW_PROVIDER_SECRET_KEY", "FAIR_SECRET_KEY"},
		"provider.tenant_id":      {"PIXGW_PROVIDER_TENANT_ID", "FAIR_COMPANY_ID"},
		"database.url":            {"PIXGW_DATABASE_URL", "DATABASE_URL"},
		"webhook.public_base_url": {"PIXGW_WEBHOOK_PUBLIC_BASE_URL", "PUBLIC_BASE_URL"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.read_timeout must be positive"))
	}
	if c.Server.WriteTimeout < 0 {
		errs = append(errs, fmt.Errorf("server.write_timeout must not be negative"))
	}
	if c.Server.RateLimitPerMinute < 0 {
		errs = append(errs, fmt.Errorf("server.rate_limit_per_minute must not be negative"))
	}

	if strings.TrimSpace(c.Provider.SecretKey) == "" {
		errs = append(errs, &domainErrors.ConfigurationError{Key: "provider.secret_key", Err: domainErrors.ErrMissingSecret})
	}
	switch c.Provider.Name {
	case ProviderFair, ProviderMock:
	default:
		errs = append(errs, fmt.Errorf("provider.name must be %q or %q, got %q", ProviderFair, ProviderMock, c.Provider.Name))
	}
	if err := validate.Var(c.Provider.BaseURL, "required,http_url"); err != nil {
		errs = append(errs, fmt.Errorf("provider.base_url must be an absolute http(s) URL"))
	}
	if c.Provider.Mock.Latency < 0 {
		errs = append(errs, fmt.Errorf("provider.mock.latency must not be negative"))
	}
	if c.Provider.Mock.FailureRate < 0 || c.Provider.Mock.FailureRate > 1 {
		errs = append(errs, fmt.Errorf("provider.mock.failure_rate must be between 0 and 1, got %g", c.Provider.Mock.FailureRate))
	}
	if c.Provider.Mock.TimeoutRate < 0 || c.Provider.Mock.TimeoutRate > 1 {
		errs = append(errs, fmt.Errorf("provider.mock.timeout_rate must be between 0 and 1, got %g", c.Provider.Mock.TimeoutRate))
	}
	if c.Webhook.PublicBaseURL != "" {
		if err := validate.Var(c.Webhook.PublicBaseURL, "http_url"); err != nil {
			errs = append(errs, fmt.Errorf("webhook.public_base_url must be an absolute http(s) URL"))
		}
	}

	if c.Webhook.QueueSize <= 0 {
		errs = append(errs, fmt.Errorf("webhook.queue_size must be positive"))
	}
	if c.Webhook.Workers <= 0 {
		errs = append(errs, fmt.Errorf("webhook.workers must be positive"))
	}
	if c.Redis.Host != "" && c.Redis.Port <= 0 {
		errs = append(errs, fmt.Errorf("redis.port must be positive"))
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		errs = append(errs, fmt.Errorf("kafka.topic is required when kafka.brokers is set"))
	}

	// Production environment checks
	env := os.Getenv("ENV")
	if env == "production" || env == "prod" {
		if c.Provider.Name == ProviderMock {
			errs = append(errs, fmt.Errorf("provider.name=mock is not allowed in production"))
		}
	}

	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "0s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.rate_limit_per_minute", 120)
	v.SetDefault("server.cors.allowed_origins", []string{"*"})
	v.SetDefault("server.cors.allow_credentials", false)

	// Provider defaults
	v.SetDefault("provider.name", ProviderFair)
	v.SetDefault("provider.base_url", "https://api.fairpayments.com.br/functions/v1")
	v.SetDefault("provider.tenant_header", "x-company-id")
	v.SetDefault("provider.mock.latency", "100ms")
	v.SetDefault("provider.mock.failure_rate", 0.0)
	v.SetDefault("provider.mock.timeout_rate", 0.0)

	// Webhook defaults
	v.SetDefault("webhook.queue_size", 1024)
	v.SetDefault("webhook.workers", 4)
	v.SetDefault("webhook.delivery_timeout", "5s")
	v.SetDefault("webhook.breaker_threshold", 5)
	v.SetDefault("webhook.breaker_timeout", "30s")

	// Database defaults
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.min_connections", 1)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.connect_retries", 5)
	v.SetDefault("database.connect_retry_delay", "1s")

	// Redis defaults
	v.SetDefault("redis.host", "")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.connect_retries", 5)
	v.SetDefault("redis.connect_retry_delay", "1s")
	v.SetDefault("redis.stream", "webhooks:pix")
	v.SetDefault("redis.stream_max_len", 100000)

	// Kafka defaults
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "pix.webhooks")
	v.SetDefault("kafka.batch_timeout", "50ms")

	// Observability defaults
	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.jaeger_endpoint", "http://localhost:14268/api/traces")
	v.SetDefault("observability.enable_metrics", true)
	v.SetDefault("observability.enable_tracing", false)
}

func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
