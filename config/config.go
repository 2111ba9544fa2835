package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"fantasygolf/database"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL      string
	DatabaseName     string
	DatabaseMaxConns int32

	// HTTP configuration
	HTTPAddr           string
	CORSAllowedOrigins []string
	JWTSecret          string
	RequestTimeout     time.Duration

	// Redis configuration (sweep lock)
	RedisAddr     string
	RedisPassword string

	// NATS configuration
	NATSEnabled bool
	NATSServers string // NATS server addresses (comma-separated)
	NATSStream  string

	// Metrics configuration
	MetricsExporter string // "stdout", "otlp" or "none"
	OTLPEndpoint    string

	// Discord alert webhook for reconciliation escalations
	DiscordAlertWebhookID    string
	DiscordAlertWebhookToken string

	// Wallet configuration (minor units)
	MinWithdrawal int64
	MaxTopup      int64

	// Payment configuration
	DemoPaymentsEnabled  bool
	PaymentWebhookSecret string

	// Reconciliation sweep configuration
	ReconcileInterval time.Duration
	StuckPaymentAge   time.Duration

	// Head-to-head configuration
	HeadToHeadAutoActivate bool

	// Logging
	LogLevel  string
	LogFormat string

	// Environment
	Environment string // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	// If instance is already set (e.g., by tests), return it
	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			if os.Getenv("ENVIRONMENT") == "test" {
				instance = NewTestConfig()
			} else {
				panic(fmt.Sprintf("failed to load config: %v", err))
			}
		}
	})
	return instance
}

// GetDatabaseURL constructs the full database URL by combining base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// IsAlertingEnabled reports whether reconciliation alerts can be delivered to Discord
func (c *Config) IsAlertingEnabled() bool {
	return c.DiscordAlertWebhookID != "" && c.DiscordAlertWebhookToken != ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("DATABASE_NAME", "")
	v.SetDefault("DATABASE_MAX_CONNS", 20)
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("REQUEST_TIMEOUT", "15s")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("NATS_ENABLED", false)
	v.SetDefault("NATS_SERVERS", "nats://localhost:4222")
	v.SetDefault("NATS_STREAM", "FANTASYGOLF")
	v.SetDefault("METRICS_EXPORTER", "stdout")
	v.SetDefault("MIN_WITHDRAWAL", 1000)
	v.SetDefault("MAX_TOPUP", 100000)
	v.SetDefault("DEMO_PAYMENTS_ENABLED", true)
	v.SetDefault("RECONCILE_INTERVAL", "1m")
	v.SetDefault("STUCK_PAYMENT_AGE", "5m")
	v.SetDefault("HEAD_TO_HEAD_AUTO_ACTIVATE", false)
}

// load loads configuration from the environment, reading a .env file first when present
func load() (*Config, error) {
	// A missing .env file is normal outside local development
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	config := &Config{
		// Database
		DatabaseURL:      v.GetString("DATABASE_URL"),
		DatabaseName:     v.GetString("DATABASE_NAME"),
		DatabaseMaxConns: v.GetInt32("DATABASE_MAX_CONNS"),

		// HTTP
		HTTPAddr:           v.GetString("HTTP_ADDR"),
		CORSAllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		JWTSecret:          v.GetString("JWT_SECRET"),
		RequestTimeout:     v.GetDuration("REQUEST_TIMEOUT"),

		// Redis
		RedisAddr:     v.GetString("REDIS_ADDR"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),

		// NATS
		NATSEnabled: v.GetBool("NATS_ENABLED"),
		NATSServers: v.GetString("NATS_SERVERS"),
		NATSStream:  v.GetString("NATS_STREAM"),

		// Metrics
		MetricsExporter: strings.ToLower(v.GetString("METRICS_EXPORTER")),
		OTLPEndpoint:    v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),

		// Alerts
		DiscordAlertWebhookID:    v.GetString("DISCORD_ALERT_WEBHOOK_ID"),
		DiscordAlertWebhookToken: v.GetString("DISCORD_ALERT_WEBHOOK_TOKEN"),

		// Wallet
		MinWithdrawal: v.GetInt64("MIN_WITHDRAWAL"),
		MaxTopup:      v.GetInt64("MAX_TOPUP"),

		// Payments
		DemoPaymentsEnabled:  v.GetBool("DEMO_PAYMENTS_ENABLED"),
		PaymentWebhookSecret: v.GetString("PAYMENT_WEBHOOK_SECRET"),

		// Reconciliation
		ReconcileInterval: v.GetDuration("RECONCILE_INTERVAL"),
		StuckPaymentAge:   v.GetDuration("STUCK_PAYMENT_AGE"),

		// Head-to-head
		HeadToHeadAutoActivate: v.GetBool("HEAD_TO_HEAD_AUTO_ACTIVATE"),

		// Logging
		LogLevel:  v.GetString("LOG_LEVEL"),
		LogFormat: v.GetString("LOG_FORMAT"),

		// Environment
		Environment: v.GetString("ENVIRONMENT"),
	}

	if config.Environment != "test" {
		if err := config.Validate(); err != nil {
			return nil, err
		}
	}

	return config, nil
}

// Validate checks required configuration
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	// If DatabaseName is provided, ensure it's not empty
	if c.DatabaseName != "" && strings.TrimSpace(c.DatabaseName) == "" {
		return fmt.Errorf("DATABASE_NAME cannot be empty when provided")
	}
	if c.MinWithdrawal <= 0 {
		return fmt.Errorf("MIN_WITHDRAWAL must be positive")
	}
	if c.MaxTopup <= 0 {
		return fmt.Errorf("MAX_TOPUP must be positive")
	}
	if c.ReconcileInterval <= 0 {
		return fmt.Errorf("RECONCILE_INTERVAL must be positive")
	}
	switch c.MetricsExporter {
	case "stdout", "none":
	case "otlp":
		if c.OTLPEndpoint == "" {
			return fmt.Errorf("OTEL_EXPORTER_OTLP_ENDPOINT is required when METRICS_EXPORTER=otlp")
		}
	default:
		return fmt.Errorf("unknown METRICS_EXPORTER %q", c.MetricsExporter)
	}
	return nil
}

// splitList parses a comma-separated list, dropping empty items
func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Test helpers - only use in tests

// SetTestConfig overrides the global config instance for testing
// This should only be called from test files
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
// This should only be called from test files
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	return &Config{
		Environment:         "test",
		JWTSecret:           "test-secret",
		HTTPAddr:            ":0",
		CORSAllowedOrigins:  []string{"*"},
		RequestTimeout:      5 * time.Second,
		MetricsExporter:     "none",
		MinWithdrawal:       1000,
		MaxTopup:            100000,
		DemoPaymentsEnabled: true,
		ReconcileInterval:   time.Minute,
		StuckPaymentAge:     5 * time.Minute,
		LogLevel:            "debug",
		LogFormat:           "text",
	}
}
