package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Store drivers accepted by STORE_DRIVER.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	Port               int    `envconfig:"PORT" default:"8080"`
	LogLevel           string `envconfig:"LOG_LEVEL" default:"info"`
	DatabaseURL        string `envconfig:"DATABASE_URL" default:""`
	DatabaseMaxConns   int32  `envconfig:"DATABASE_MAX_CONNS" default:"10"`
	StoreDriver        string `envconfig:"STORE_DRIVER" default:"postgres"`
	Version            string `envconfig:"VERSION" default:"dev"`
	ReconcilerInterval int    `envconfig:"RECONCILER_INTERVAL" default:"300"`
	BcryptCost         int    `envconfig:"BCRYPT_COST" default:"12"`
	MetricsEnabled     bool   `envconfig:"METRICS_ENABLED" default:"true"`
	AutoMigrate        bool   `envconfig:"AUTO_MIGRATE" default:"true"`

	// SeedCustomers pre-populates the in-memory customer directory as
	// id:name pairs, e.g. "<uuid>:Jane Doe,<uuid>:John Roe".
	SeedCustomers map[string]string `envconfig:"SEED_CUSTOMERS"`
}

// Load reads configuration from environment variables into a Config struct.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ReconcilerEvery returns the tier reconciler period; zero disables it.
func (c *Config) ReconcilerEvery() time.Duration {
	return time.Duration(c.ReconcilerInterval) * time.Second
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when STORE_DRIVER is postgres")
		}
		if c.DatabaseMaxConns < 1 {
			return fmt.Errorf("DATABASE_MAX_CONNS must be at least 1, got %d", c.DatabaseMaxConns)
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreDriverPostgres, StoreDriverMemory, c.StoreDriver)
	}
	if c.ReconcilerInterval < 0 {
		return fmt.Errorf("RECONCILER_INTERVAL must not be negative, got %d", c.ReconcilerInterval)
	}
	return nil
}
