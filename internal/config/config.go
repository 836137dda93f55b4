package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Module provides the application configuration.
var Module = fx.Provide(Load)

// Config holds application configuration. It is constructed once at process
// start and passed explicitly to every component that needs it.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddress string
	HTTPOrigin  string

	DBType     string
	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	// Webhook endpoint the notifier posts activity messages to. Required
	// for the notifier process, unused by the API server.
	NotifyWebhookURL string
	// Interval between notifier polls. The webhook endpoint allows at most
	// one message per second.
	NotifyInterval time.Duration
	// Restricts the notifier to a single organization's records. Used to
	// isolate parallel test runs; empty in production.
	NotifyOrganizationID string

	// Path to the states/jurisdictions reference file loaded at startup.
	SeedFile string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "elrep"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddress: getenv("HTTP_ADDRESS", ":8080"),
		HTTPOrigin:  getenv("HTTP_ORIGIN", "http://localhost:8080"),

		DBType:     getenv("DATABASE_TYPE", "postgres"),
		DBHost:     getenv("DATABASE_HOST", "localhost"),
		DBPort:     getenv("DATABASE_PORT", "5432"),
		DBName:     getenv("DATABASE_NAME", "elrep"),
		DBUser:     getenv("DATABASE_USER", "elrep"),
		DBPassword: getenv("DATABASE_PASSWORD", "elrep"),
		DBSSLMode:  getenv("DATABASE_SSLMODE", "disable"),

		NotifyWebhookURL:     strings.TrimSpace(getenv("NOTIFY_WEBHOOK_URL", "")),
		NotifyInterval:       getenvDuration("NOTIFY_INTERVAL", time.Second),
		NotifyOrganizationID: strings.TrimSpace(getenv("NOTIFY_ORGANIZATION_ID", "")),

		SeedFile: getenv("SEED_FILE", ""),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	if parsed, err := time.ParseDuration(value); err == nil && parsed > 0 {
		return parsed
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return def
}
