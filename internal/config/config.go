package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all runtime configuration, loaded from environment variables
// (optionally seeded from a .env file). Every field has a sensible default;
// only DATABASE_URL is required.
type Config struct {
	// Server
	HTTPPort        string        `env:"HTTP_PORT" envDefault:"8080"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Database
	DatabaseURL string `env:"DATABASE_URL,required"`
	DBMaxConns  int32  `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns  int32  `env:"DB_MIN_CONNS" envDefault:"5"`

	// Queue transport
	QueueMaxDepth     int           `env:"QUEUE_MAX_DEPTH" envDefault:"10000"`
	VisibilityTimeout time.Duration `env:"QUEUE_VISIBILITY_TIMEOUT" envDefault:"30s"`
	RedeliveryDelay   time.Duration `env:"QUEUE_REDELIVERY_DELAY" envDefault:"2s"`
	MaxMessageSize    int           `env:"QUEUE_MAX_MESSAGE_SIZE" envDefault:"262144"`
	MaxBatchSize      int           `env:"QUEUE_MAX_BATCH_SIZE" envDefault:"1048576"`

	// Delivery
	Workers             int           `env:"DELIVERY_WORKERS" envDefault:"8"`
	MaxDeliveryAttempts int           `env:"MAX_DELIVERY_ATTEMPTS" envDefault:"5"`
	RateLimit           int           `env:"RATE_LIMIT_PER_METHOD" envDefault:"100"`
	WebhookDelivery     string        `env:"WEBHOOK_DELIVERY" envDefault:"stub"`
	WebhookTimeout      time.Duration `env:"WEBHOOK_TIMEOUT" envDefault:"10s"`

	// Event bus
	EventBuffer      int `env:"EVENT_BUFFER" envDefault:"1024"`
	EventMaxAttempts int `env:"EVENT_MAX_ATTEMPTS" envDefault:"3"`
	EventDispatchers int `env:"EVENT_DISPATCHERS" envDefault:"4"`
}

// Load reads a .env file when present, then parses the environment.
func Load() (*Config, error) {
	// The .env file is a development convenience; absence is fine.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return &cfg, nil
}
