package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all runtime configuration, populated from environment
// variables. A .env file in the working directory is loaded first when
// present.
type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	Environment string `env:"APP_ENV" envDefault:"development"`

	MongoURI      string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	MongoDatabase string `env:"MONGO_DB" envDefault:"car_assistant"`

	JWTSecret string        `env:"JWT_SECRET" envDefault:"default-secret-key-change-in-production"`
	JWTExpiry time.Duration `env:"JWT_EXPIRY" envDefault:"24h"`

	RateLimitMax    int           `env:"RATE_LIMIT_MAX" envDefault:"100"`
	RateLimitWindow time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`

	// MQTT is optional; leaving the broker empty disables event publishing.
	MQTTBroker string `env:"MQTT_BROKER"`
	MQTTTopic  string `env:"MQTT_TOPIC" envDefault:"evaluations/status"`
}

// Load reads configuration from the environment. Missing variables fall
// back to their defaults.
func Load() (*Config, error) {
	// Ignore the error: a missing .env file is the normal case outside
	// local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config from env: %w", err)
	}
	return cfg, nil
}

// IsProduction reports whether the server runs in production mode.
// Error responses omit internal detail in production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
