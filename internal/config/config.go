package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	ServerPort string

	// Database configuration
	DatabaseURL string
	DBMaxConns  int
	DBMinConns  int

	// Redis configuration
	RedisURL string

	// Daraja API credentials
	DarajaConsumerKey    string
	DarajaConsumerSecret string
	DarajaPasskey        string
	DarajaShortCode      string
	DarajaAuthURL        string
	DarajaSTKPushURL     string
	DarajaQueryURL       string
	DarajaCallbackURL    string

	// Email settings
	BrevoAPIKey     string
	EmailSender     string
	EmailSenderName string
	OpsEmail        string

	// Security settings
	InternalSecret string
	DarajaIPs      []string

	// Request limits
	MaxRequestSize int64

	// Worker settings
	WorkerConcurrency int
	ReconcileSpec     string
	StaleAfter        time.Duration
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		// Server
		ServerPort: getEnv("EBIKE_SERVER_PORT", "8080"),

		// Database
		DatabaseURL: getEnv("EBIKE_DATABASE_URL", ""),
		DBMaxConns:  getEnvInt("EBIKE_DB_MAX_CONNS", 25),
		DBMinConns:  getEnvInt("EBIKE_DB_MIN_CONNS", 5),

		// Redis
		RedisURL: getEnv("EBIKE_REDIS_URL", ""),

		// Daraja
		DarajaConsumerKey:    getEnv("EBIKE_DARAJA_CONSUMER_KEY", ""),
		DarajaConsumerSecret: getEnv("EBIKE_DARAJA_CONSUMER_SECRET", ""),
		DarajaPasskey:        getEnv("EBIKE_DARAJA_PASSKEY", ""),
		DarajaShortCode:      getEnv("EBIKE_DARAJA_SHORT_CODE", ""),
		DarajaAuthURL:        getEnv("EBIKE_DARAJA_AUTH_URL", "https://sandbox.safaricom.co.ke/oauth/v1/generate?grant_type=client_credentials"),
		DarajaSTKPushURL:     getEnv("EBIKE_DARAJA_STK_PUSH_URL", "https://sandbox.safaricom.co.ke/mpesa/stkpush/v1/processrequest"),
		DarajaQueryURL:       getEnv("EBIKE_DARAJA_QUERY_URL", "https://sandbox.safaricom.co.ke/mpesa/stkpushquery/v1/query"),
		DarajaCallbackURL:    getEnv("EBIKE_DARAJA_CALLBACK_URL", ""),

		// Email
		BrevoAPIKey:     getEnv("EBIKE_BREVO_API_KEY", ""),
		EmailSender:     getEnv("EBIKE_EMAIL_SENDER", ""),
		EmailSenderName: getEnv("EBIKE_EMAIL_SENDER_NAME", "VoltCycle"),
		OpsEmail:        getEnv("EBIKE_OPS_EMAIL", ""),

		// Security
		InternalSecret: getEnv("EBIKE_INTERNAL_SECRET", ""),
		MaxRequestSize: getEnvInt64("EBIKE_MAX_REQUEST_SIZE", 1<<20), // 1MB

		// Worker
		WorkerConcurrency: getEnvInt("EBIKE_WORKER_CONCURRENCY", 10),
		ReconcileSpec:     getEnv("EBIKE_RECONCILE_SPEC", "@every 2m"),
		StaleAfter:        getEnvDuration("EBIKE_STALE_AFTER", 5*time.Minute),
	}

	// Parse provider IP allowlist
	ipList := getEnv("EBIKE_DARAJA_IPS", "")
	if ipList != "" {
		cfg.DarajaIPs = strings.Split(ipList, ",")
		for i := range cfg.DarajaIPs {
			cfg.DarajaIPs[i] = strings.TrimSpace(cfg.DarajaIPs[i])
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures all required configuration is present
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("EBIKE_DATABASE_URL is required")
	}
	if c.RedisURL == "" {
		return fmt.Errorf("EBIKE_REDIS_URL is required")
	}
	if c.InternalSecret == "" {
		return fmt.Errorf("EBIKE_INTERNAL_SECRET is required")
	}
	if c.DarajaConsumerKey == "" {
		return fmt.Errorf("EBIKE_DARAJA_CONSUMER_KEY is required")
	}
	if c.DarajaConsumerSecret == "" {
		return fmt.Errorf("EBIKE_DARAJA_CONSUMER_SECRET is required")
	}
	if c.DarajaPasskey == "" {
		return fmt.Errorf("EBIKE_DARAJA_PASSKEY is required")
	}
	if c.DarajaShortCode == "" {
		return fmt.Errorf("EBIKE_DARAJA_SHORT_CODE is required")
	}
	if c.DarajaCallbackURL == "" {
		return fmt.Errorf("EBIKE_DARAJA_CALLBACK_URL is required (public URL for callbacks)")
	}

	return nil
}

// LogSafeConfig logs configuration without secrets
func (c *Config) LogSafeConfig() {
	fmt.Printf("Configuration loaded:\n")
	fmt.Printf("  Server Port: %s\n", c.ServerPort)
	fmt.Printf("  Database URL: %s\n", maskConnectionString(c.DatabaseURL))
	fmt.Printf("  Redis URL: %s\n", maskConnectionString(c.RedisURL))
	fmt.Printf("  DB Pool: %d min, %d max\n", c.DBMinConns, c.DBMaxConns)
	fmt.Printf("  Worker Concurrency: %d\n", c.WorkerConcurrency)
	fmt.Printf("  Daraja Short Code: %s\n", c.DarajaShortCode)
	fmt.Printf("  Daraja IP Allowlist: %v\n", c.DarajaIPs)
	fmt.Printf("  Reconcile Schedule: %s (stale after %s)\n", c.ReconcileSpec, c.StaleAfter)
	fmt.Printf("  Max Request Size: %d bytes\n", c.MaxRequestSize)
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func maskConnectionString(connStr string) string {
	if strings.Contains(connStr, "@") {
		parts := strings.Split(connStr, "@")
		if len(parts) == 2 {
			return "***@" + parts[1]
		}
	}
	return "***"
}
