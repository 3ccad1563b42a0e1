package config

import (
	"errors"
	"testing"
	"time"

	domainErrors "github.com/cassiomorais/pixgateway/internal/domain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            3000,
			ReadTimeout:     15 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Provider: ProviderConfig{
			Name:      ProviderFair,
			BaseURL:   "https://api.fairpayments.com.br/functions/v1",
			SecretKey: "sk_test",
		},
		Webhook: WebhookConfig{
			QueueSize: 16,
			Workers:   1,
		},
	}
}

func TestConfig_Validate_Success(t *testing.T) {
	err := validConfig().Validate()
	assert.NoError(t, err)
}

func TestConfig_Validate_InvalidServerPort(t *testing.T) {
	tests := []struct {
		name string
		port int
	}{
		{"port too low", 0},
		{"port negative", -1},
		{"port too high", 99999},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Server.Port = tt.port

			err := cfg.Validate()
			assert.Error(t, err)
			assert.Contains(t, err.Error(), "server.port")
		})
	}
}

func TestConfig_Validate_ZeroWriteTimeoutAllowed(t *testing.T) {
	cfg := validConfig()
	cfg.Server.WriteTimeout = 0
	assert.NoError(t, cfg.Validate())

	cfg.Server.WriteTimeout = -time.Second
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.write_timeout")
}

func TestConfig_Validate_MissingSecret(t *testing.T) {
	for _, secret := range []string{"", "   "} {
		cfg := validConfig()
		cfg.Provider.SecretKey = secret

		err := cfg.Validate()
		require.Error(t, err)

		var cfgErr *domainErrors.ConfigurationError
		require.True(t, errors.As(err, &cfgErr))
		assert.Equal(t, "provider.secret_key", cfgErr.Key)
		assert.True(t, errors.Is(err, domainErrors.ErrMissingSecret))
	}
}

func TestConfig_Validate_Provider(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		key    string
	}{
		{"unknown provider", func(c *Config) { c.Provider.Name = "stripe" }, "provider.name"},
		{"relative base url", func(c *Config) { c.Provider.BaseURL = "/functions/v1" }, "provider.base_url"},
		{"empty base url", func(c *Config) { c.Provider.BaseURL = "" }, "provider.base_url"},
		{"bad public base url", func(c *Config) { c.Webhook.PublicBaseURL = "gw.example.com" }, "webhook.public_base_url"},
		{"negative mock latency", func(c *Config) { c.Provider.Mock.Latency = -time.Millisecond }, "provider.mock.latency"},
		{"mock failure rate above one", func(c *Config) { c.Provider.Mock.FailureRate = 1.5 }, "provider.mock.failure_rate"},
		{"negative mock timeout rate", func(c *Config) { c.Provider.Mock.TimeoutRate = -0.1 }, "provider.mock.timeout_rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestConfig_Validate_OptionalBackends(t *testing.T) {
	cfg := validConfig()
	cfg.Redis = RedisConfig{Host: "localhost", Port: 0}
	cfg.Kafka = KafkaConfig{Brokers: []string{"localhost:9092"}}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis.port")
	assert.Contains(t, err.Error(), "kafka.topic")

	cfg.Redis = RedisConfig{}
	cfg.Kafka = KafkaConfig{}
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate_MockRejectedInProduction(t *testing.T) {
	t.Setenv("ENV", "production")
	cfg := validConfig()
	cfg.Provider.Name = ProviderMock

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not allowed in production")
}

func TestConfig_Validate_MultipleErrors(t *testing.T) {
	cfg := &Config{}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
	assert.Contains(t, err.Error(), "server.read_timeout")
	assert.Contains(t, err.Error(), "provider.secret_key")
	assert.Contains(t, err.Error(), "webhook.queue_size")
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PIXGW_PROVIDER_SECRET_KEY", "sk_test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, time.Duration(0), cfg.Server.WriteTimeout)
	assert.Equal(t, []string{"*"}, cfg.Server.CORS.AllowedOrigins)
	assert.Equal(t, ProviderFair, cfg.Provider.Name)
	assert.Equal(t, "https://api.fairpayments.com.br/functions/v1", cfg.Provider.BaseURL)
	assert.Equal(t, "x-company-id", cfg.Provider.TenantHeader)
	assert.Empty(t, cfg.Provider.TenantID)
	assert.Equal(t, 100*time.Millisecond, cfg.Provider.Mock.Latency)
	assert.Zero(t, cfg.Provider.Mock.FailureRate)
	assert.Zero(t, cfg.Provider.Mock.TimeoutRate)
	assert.Equal(t, 1024, cfg.Webhook.QueueSize)
	assert.Equal(t, uint32(5), cfg.Webhook.BreakerThreshold)
	assert.Empty(t, cfg.Database.URL)
	assert.Empty(t, cfg.Redis.Host)
	assert.Equal(t, "webhooks:pix", cfg.Redis.Stream)
	assert.Empty(t, cfg.Kafka.Brokers)
}

func TestLoad_LegacyEnvironment(t *testing.T) {
	t.Setenv("FAIR_SECRET_KEY", "sk_legacy")
	t.Setenv("FAIR_COMPANY_ID", "company-7")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/pix")
	t.Setenv("PUBLIC_BASE_URL", "https://gw.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sk_legacy", cfg.Provider.SecretKey)
	assert.Equal(t, "company-7", cfg.Provider.TenantID)
	assert.Equal(t, "postgres://u:p@localhost:5432/pix", cfg.Database.URL)
	assert.Equal(t, "https://gw.example.com", cfg.Webhook.PublicBaseURL)
}

func TestLoad_PrefixedWinsOverLegacy(t *testing.T) {
	t.Setenv("FAIR_SECRET_KEY", "sk_legacy")
	t.Setenv("PIXGW_PROVIDER_SECRET_KEY", "sk_new")
	t.Setenv("PIXGW_SERVER_PORT", "8088")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sk_new", cfg.Provider.SecretKey)
	assert.Equal(t, 8088, cfg.Server.Port)
}

func TestLoad_MockSettings(t *testing.T) {
	t.Setenv("PIXGW_PROVIDER_SECRET_KEY", "sk_test")
	t.Setenv("PIXGW_PROVIDER_NAME", "mock")
	t.Setenv("PIXGW_PROVIDER_MOCK_LATENCY", "5ms")
	t.Setenv("PIXGW_PROVIDER_MOCK_FAILURE_RATE", "0.25")
	t.Setenv("PIXGW_PROVIDER_MOCK_TIMEOUT_RATE", "0.1")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ProviderMock, cfg.Provider.Name)
	assert.Equal(t, 5*time.Millisecond, cfg.Provider.Mock.Latency)
	assert.InDelta(t, 0.25, cfg.Provider.Mock.FailureRate, 1e-9)
	assert.InDelta(t, 0.1, cfg.Provider.Mock.TimeoutRate, 1e-9)
}

func TestLoad_MockRateOutOfRange(t *testing.T) {
	t.Setenv("PIXGW_PROVIDER_SECRET_KEY", "sk_test")
	t.Setenv("PIXGW_PROVIDER_MOCK_FAILURE_RATE", "2")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider.mock.failure_rate")
}

func TestLoad_MissingSecretFails(t *testing.T) {
	t.Setenv("PIXGW_PROVIDER_SECRET_KEY", "")
	t.Setenv("FAIR_SECRET_KEY", "")

	_, err := Load()
	require.Error(t, err)

	var cfgErr *domainErrors.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestRedisConfig_RedisAddr(t *testing.T) {
	cfg := RedisConfig{Host: "cache", Port: 6380}
	assert.Equal(t, "cache:6380", cfg.RedisAddr())
}
