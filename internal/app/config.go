package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config описывает настройки запуска сервиса аренды.
type Config struct {
	HTTPAddr    string
	MetricsAddr string

	// PostgresDSN пустой — сервис работает на in-memory хранилище (dev режим).
	PostgresDSN string

	// KafkaBrokers пустой — события логируются вместо публикации (dev режим).
	KafkaBrokers  []string
	ConsumerGroup string

	TransportBaseURL string
	UserBaseURL      string
	ClientTimeout    time.Duration

	BreakerMaxFailures  int
	BreakerResetTimeout time.Duration

	PoolSize int

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
}

// DefaultConfig возвращает конфигурацию для локального запуска.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:    ":8080",
		MetricsAddr: ":9090",

		ConsumerGroup: "rental-service",

		TransportBaseURL: "http://localhost:8081",
		UserBaseURL:      "http://localhost:8082",
		ClientTimeout:    3 * time.Second,

		BreakerMaxFailures:  5,
		BreakerResetTimeout: 10 * time.Second,

		PoolSize: 8,

		OutboxPollInterval: 1 * time.Second,
		OutboxBatchSize:    100,
		OutboxMaxAttempts:  3,
	}
}

// ConfigFromEnv строит конфигурацию из переменных окружения поверх дефолтов.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	setString(&cfg.HTTPAddr, "RENTALS_HTTP_ADDR")
	setString(&cfg.MetricsAddr, "RENTALS_METRICS_ADDR")
	setString(&cfg.PostgresDSN, "RENTALS_POSTGRES_DSN")
	setString(&cfg.ConsumerGroup, "RENTALS_CONSUMER_GROUP")
	setString(&cfg.TransportBaseURL, "RENTALS_TRANSPORT_URL")
	setString(&cfg.UserBaseURL, "RENTALS_USER_URL")

	if v := strings.TrimSpace(os.Getenv("KAFKA_BROKERS")); v != "" {
		cfg.KafkaBrokers = strings.Split(v, ",")
	}

	setDuration(&cfg.ClientTimeout, "RENTALS_CLIENT_TIMEOUT")
	setDuration(&cfg.BreakerResetTimeout, "RENTALS_BREAKER_RESET_TIMEOUT")
	setDuration(&cfg.OutboxPollInterval, "RENTALS_OUTBOX_POLL_INTERVAL")

	setInt(&cfg.BreakerMaxFailures, "RENTALS_BREAKER_MAX_FAILURES")
	setInt(&cfg.PoolSize, "RENTALS_POOL_SIZE")
	setInt(&cfg.OutboxBatchSize, "RENTALS_OUTBOX_BATCH_SIZE")
	setInt(&cfg.OutboxMaxAttempts, "RENTALS_OUTBOX_MAX_ATTEMPTS")

	return cfg
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			*dst = parsed
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil && parsed > 0 {
			*dst = parsed
		}
	}
}
