package config

import (
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string        `envconfig:"HTTP_ADDR" default:":8080" validate:"required"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	LogFormat       string        `envconfig:"LOG_FORMAT" default:"json" validate:"oneof=json text"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`

	// Open-Meteo archive client configuration.
	WeatherBaseURL   string        `envconfig:"WEATHER_BASE_URL" default:"https://archive-api.open-meteo.com/v1/archive" validate:"required,url"`
	WeatherTimeout   time.Duration `envconfig:"WEATHER_TIMEOUT" default:"10s"`
	WeatherCacheSize int           `envconfig:"WEATHER_CACHE_SIZE" default:"256" validate:"gte=0"`

	// Polygon event publishing.
	KafkaEnabled bool     `envconfig:"KAFKA_ENABLED" default:"false"`
	KafkaBrokers []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"polygon-events"`

	// Outbox between the dashboard and the broker. A zero buffer publishes
	// each event synchronously instead.
	EventBufferSize    int           `envconfig:"EVENT_BUFFER_SIZE" default:"1024" validate:"gte=0"`
	EventBatchSize     int           `envconfig:"EVENT_BATCH_SIZE" default:"50" validate:"gte=1"`
	EventFlushInterval time.Duration `envconfig:"EVENT_FLUSH_INTERVAL" default:"1s"`
}

// Load reads configuration from environment variables, applying defaults where unset.
// A .env file in the working directory is read first; real environment
// variables take precedence over it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if cfg.ShutdownTimeout <= 0 {
		return nil, errors.New("invalid SHUTDOWN_TIMEOUT: must be positive")
	}
	if cfg.WeatherTimeout <= 0 {
		return nil, errors.New("invalid WEATHER_TIMEOUT: must be positive")
	}
	if cfg.EventFlushInterval <= 0 {
		return nil, errors.New("invalid EVENT_FLUSH_INTERVAL: must be positive")
	}
	if err := newValidator().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
		}
		if cfg.KafkaTopic == "" {
			return nil, errors.New("KAFKA_ENABLED is true but KAFKA_TOPIC is empty")
		}
	}

	return &cfg, nil
}

// newValidator reports fields by their environment variable name.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("envconfig"); name != "" {
			return name
		}
		return f.Name
	})
	return v
}
