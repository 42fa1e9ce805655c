package config

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL string

	// HTTP configuration
	ListenAddr  string
	MetricsPort string

	// Escrow provider configuration
	EscrowProvider string // "stripe" or "fake"
	StripeAPIKey   string

	// Affordability provider configuration
	WalletServiceURL string
	RedisAddr        string
	AffordabilityTTL time.Duration

	// Notification configuration
	KafkaBrokers string
	KafkaTopic   string

	// Reconciler configuration
	ReconcileInterval  time.Duration
	OrphanEscrowCutoff time.Duration

	// Environment
	Environment string // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
)

// Get returns the global configuration instance
func Get() *Config {
	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			panic(fmt.Sprintf("failed to load config: %v", err))
		}
	})
	return instance
}

// load loads configuration from the environment, honoring a local .env file
// when present
func load() (*Config, error) {
	_ = godotenv.Load()

	config := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),

		ListenAddr:  getEnvDefault("LISTEN_ADDR", ":8080"),
		MetricsPort: getEnvDefault("METRICS_PORT", "9091"),

		EscrowProvider: getEnvDefault("ESCROW_PROVIDER", "fake"),
		StripeAPIKey:   os.Getenv("STRIPE_API_KEY"),

		WalletServiceURL: os.Getenv("WALLET_SERVICE_URL"),
		RedisAddr:        getEnvDefault("REDIS_ADDR", "localhost:6379"),
		AffordabilityTTL: 30 * time.Second,

		KafkaBrokers: os.Getenv("KAFKA_BROKERS"),
		KafkaTopic:   getEnvDefault("KAFKA_TOPIC", "wager-events"),

		ReconcileInterval:  time.Minute,
		OrphanEscrowCutoff: 15 * time.Minute,

		Environment: getEnvDefault("ENVIRONMENT", "development"),
	}

	if ttl := os.Getenv("AFFORDABILITY_TTL_SECONDS"); ttl != "" {
		if parsed, err := strconv.Atoi(ttl); err == nil {
			config.AffordabilityTTL = time.Duration(parsed) * time.Second
		}
	}
	if interval := os.Getenv("RECONCILE_INTERVAL_SECONDS"); interval != "" {
		if parsed, err := strconv.Atoi(interval); err == nil {
			config.ReconcileInterval = time.Duration(parsed) * time.Second
		}
	}
	if cutoff := os.Getenv("ORPHAN_ESCROW_CUTOFF_MINUTES"); cutoff != "" {
		if parsed, err := strconv.Atoi(cutoff); err == nil {
			config.OrphanEscrowCutoff = time.Duration(parsed) * time.Minute
		}
	}

	if config.Environment != "test" {
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
		if config.EscrowProvider == "stripe" && config.StripeAPIKey == "" {
			return nil, fmt.Errorf("STRIPE_API_KEY is required when ESCROW_PROVIDER=stripe")
		}
	}

	return config, nil
}

func getEnvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
