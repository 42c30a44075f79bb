// Package config provides centralized default values for the DrShaq backend
package config

import (
	"bufio"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

var envLoaded sync.Once

func loadEnvFile() {
	envLoaded.Do(func() {
		file, err := os.Open(".env")
		if err != nil {
			return
		}
		defer file.Close()

		log.Println("Loading configuration overrides from .env file...")
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())

			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}

			parts := strings.SplitN(line, "=", 2)
			if len(parts) != 2 {
				continue
			}

			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])

			if os.Getenv(key) == "" {
				os.Setenv(key, value)
			}
		}
	})
}

func getEnvInt(key string, defaultValue int) int {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.Atoi(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%d (default: %d)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvString(key string, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		if val != defaultValue {
			log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
		}
		return val
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.ParseBool(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%t (default: %t)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := time.ParseDuration(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if valStr := os.Getenv(key); valStr != "" {
		parts := strings.Split(valStr, ",")
		out := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}

var (
	// Server Configuration
	Port               string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	ServerIdleTimeout  time.Duration

	// Database
	DBDriver                 string
	DatabaseURL              string
	DBMaxOpenConns           int
	DBMaxIdleConns           int
	DBConnMaxLifetimeMinutes int
	SlowQueryThreshold       time.Duration

	// Client identity resolution
	TrustProxyHeaders bool
	TrustedProxyCIDRs []string

	// Public ingestion
	PublicEventWriteKeys []string
	AllowedOrigins       []string

	// Rate limiting (per resolved client identity)
	EventRateLimitRequests     int
	EventRateLimitWindow       time.Duration
	RequestRateLimitRequests   int
	RequestRateLimitWindow     time.Duration
	RateLimitMaxTrackedBuckets int

	// Request lifecycle
	RequestReopenEnabled bool

	// Retention
	TrackingRetentionDays int
	PurgeTerminalRequests bool

	// Admin surface
	JWTSecret             string
	MetricsStreamInterval time.Duration
)

func init() {
	loadEnvFile()

	// Server Configuration
	Port = getEnvString("PORT", "8080")
	ServerReadTimeout = getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second)
	ServerWriteTimeout = getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second)
	ServerIdleTimeout = getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second)

	// Database
	DBDriver = getEnvString("DB_DRIVER", "sqlite3")
	DatabaseURL = getEnvString("DATABASE_URL", "file:drshaq.db?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 10)
	DBMaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", 3)
	DBConnMaxLifetimeMinutes = getEnvInt("DB_CONN_MAX_LIFETIME_MINUTES", 30)
	SlowQueryThreshold = getEnvDuration("SLOW_QUERY_THRESHOLD", 250*time.Millisecond)

	// Client identity resolution
	TrustProxyHeaders = getEnvBool("TRUST_PROXY_HEADERS", false)
	TrustedProxyCIDRs = getEnvStringSlice("TRUSTED_PROXY_CIDRS", []string{})

	// Public ingestion
	PublicEventWriteKeys = getEnvStringSlice("PUBLIC_EVENT_WRITE_KEYS", []string{})
	AllowedOrigins = getEnvStringSlice("CORS_ALLOWED_ORIGINS", []string{
		"http://localhost:3000",
		"http://127.0.0.1:3000",
	})

	// Rate limiting
	EventRateLimitRequests = getEnvInt("EVENT_RATE_LIMIT_REQUESTS", 300)
	EventRateLimitWindow = time.Duration(getEnvInt("EVENT_RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second
	RequestRateLimitRequests = getEnvInt("REQUEST_RATE_LIMIT_REQUESTS", 30)
	RequestRateLimitWindow = time.Duration(getEnvInt("REQUEST_RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second
	RateLimitMaxTrackedBuckets = getEnvInt("RATE_LIMIT_MAX_TRACKED_BUCKETS", 10000)

	// Request lifecycle
	RequestReopenEnabled = getEnvBool("REQUEST_REOPEN_ENABLED", false)

	// Retention
	TrackingRetentionDays = getEnvInt("TRACKING_RETENTION_DAYS", 180)
	PurgeTerminalRequests = getEnvBool("PURGE_TERMINAL_REQUESTS", false)

	// Admin surface
	JWTSecret = getEnvString("JWT_SECRET", "")
	MetricsStreamInterval = getEnvDuration("METRICS_STREAM_INTERVAL", 2*time.Second)
}
