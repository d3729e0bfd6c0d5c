package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr               string
	Environment        string
	LogLevel           string
	DatabaseURL        string
	RunMigrations      bool
	JWTSecret          string
	DataEncryptionKey  string
	PayslipStorageDir  string
	MaxBodyBytes       int64
	RateLimitPerMinute int
	CORSAllowedOrigins []string
	MetricsEnabled     bool

	RedisAddr   string
	RunLockTTL  time.Duration
	RunLockWait time.Duration

	KafkaBrokers []string
	KafkaTopic   string

	RecalcWorkers       int
	AutoRunInterval     time.Duration
	AutoRunEntities     []string
	AutoRunSpecialistID string
}

// Load reads the environment, after merging a .env file when one exists.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("could not read .env file", "err", err)
	}
	return Config{
		Addr:                getEnv("APP_ADDR", ":8080"),
		Environment:         getEnv("APP_ENV", "development"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		RunMigrations:       getEnvBool("RUN_MIGRATIONS", true),
		JWTSecret:           getEnv("JWT_SECRET", ""),
		DataEncryptionKey:   getEnv("DATA_ENCRYPTION_KEY", ""),
		PayslipStorageDir:   getEnv("PAYSLIP_STORAGE_DIR", "storage/payslips"),
		MaxBodyBytes:        int64(getEnvInt("MAX_BODY_BYTES", 1048576)),
		RateLimitPerMinute:  getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		CORSAllowedOrigins:  getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		MetricsEnabled:      getEnvBool("METRICS_ENABLED", true),
		RedisAddr:           getEnv("REDIS_ADDR", ""),
		RunLockTTL:          getEnvDuration("RUN_LOCK_TTL", 30*time.Second),
		RunLockWait:         getEnvDuration("RUN_LOCK_WAIT", 10*time.Second),
		KafkaBrokers:        getEnvList("KAFKA_BROKERS", nil),
		KafkaTopic:          getEnv("KAFKA_TOPIC", "hr.payroll.run.events.v1"),
		RecalcWorkers:       getEnvInt("RECALC_WORKERS", 4),
		AutoRunInterval:     getEnvDuration("AUTO_RUN_INTERVAL", 0),
		AutoRunEntities:     getEnvList("AUTO_RUN_ENTITIES", nil),
		AutoRunSpecialistID: getEnv("AUTO_RUN_SPECIALIST_ID", ""),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// SlogLevel maps LOG_LEVEL to a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Environment == "production" {
		if strings.TrimSpace(c.JWTSecret) == "" {
			return fmt.Errorf("JWT_SECRET must be set to a strong value in production")
		}
		if strings.TrimSpace(c.DataEncryptionKey) == "" {
			return fmt.Errorf("DATA_ENCRYPTION_KEY must be set in production for payslip encryption at rest")
		}
	}
	if c.MaxBodyBytes < 1024 {
		return fmt.Errorf("MAX_BODY_BYTES must be at least 1024")
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}
	if c.RecalcWorkers <= 0 {
		return fmt.Errorf("RECALC_WORKERS must be positive")
	}
	if c.RedisAddr != "" && c.RunLockTTL <= 0 {
		return fmt.Errorf("RUN_LOCK_TTL must be positive when REDIS_ADDR is set")
	}
	if c.RunLockWait < 0 {
		return fmt.Errorf("RUN_LOCK_WAIT must not be negative")
	}
	if c.AutoRunInterval > 0 {
		if len(c.AutoRunEntities) == 0 {
			return fmt.Errorf("AUTO_RUN_ENTITIES must be set when AUTO_RUN_INTERVAL is enabled")
		}
		if strings.TrimSpace(c.AutoRunSpecialistID) == "" {
			return fmt.Errorf("AUTO_RUN_SPECIALIST_ID must be set when AUTO_RUN_INTERVAL is enabled")
		}
	}
	return nil
}
