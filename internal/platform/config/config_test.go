package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/payroll")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("AUTO_RUN_INTERVAL", "")

	cfg := Load()
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 120, cfg.RateLimitPerMinute)
	assert.Equal(t, 30*time.Second, cfg.RunLockTTL)
	assert.Equal(t, "hr.payroll.run.events.v1", cfg.KafkaTopic)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSAllowedOrigins)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Zero(t, cfg.AutoRunInterval)
	require.NoError(t, cfg.Validate())
}

func TestLoadParsesLists(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,,")
	t.Setenv("AUTO_RUN_ENTITIES", "ACME-US")
	t.Setenv("RECALC_WORKERS", "8")

	cfg := Load()
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, []string{"ACME-US"}, cfg.AutoRunEntities)
	assert.Equal(t, 8, cfg.RecalcWorkers)
}

func TestValidate(t *testing.T) {
	valid := Config{
		DatabaseURL:        "postgres://localhost/payroll",
		MaxBodyBytes:       1 << 20,
		RateLimitPerMinute: 60,
		RecalcWorkers:      4,
	}
	require.NoError(t, valid.Validate())

	cases := map[string]func(c *Config){
		"missing database":        func(c *Config) { c.DatabaseURL = "" },
		"production without jwt":  func(c *Config) { c.Environment = "production"; c.DataEncryptionKey = "k" },
		"production without key":  func(c *Config) { c.Environment = "production"; c.JWTSecret = "s" },
		"tiny body limit":         func(c *Config) { c.MaxBodyBytes = 10 },
		"zero workers":            func(c *Config) { c.RecalcWorkers = 0 },
		"auto run without entity": func(c *Config) { c.AutoRunInterval = time.Hour; c.AutoRunSpecialistID = "spec" },
		"auto run without actor":  func(c *Config) { c.AutoRunInterval = time.Hour; c.AutoRunEntities = []string{"E1"} },
	}
	for name, mutate := range cases {
		cfg := valid
		mutate(&cfg)
		assert.Error(t, cfg.Validate(), name)
	}
}

func TestSlogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, Config{LogLevel: "DEBUG"}.SlogLevel())
	assert.Equal(t, slog.LevelWarn, Config{LogLevel: "warning"}.SlogLevel())
	assert.Equal(t, slog.LevelInfo, Config{LogLevel: "verbose"}.SlogLevel())
}
