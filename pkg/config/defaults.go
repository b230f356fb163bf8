// Package config provides centralized default values for the PJI portal
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
			value := strings.Trim(strings.TrimSpace(parts[1]), `"'`)

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
			log.Printf("Config override: %s (default: %s)", key, defaultValue)
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

func getEnvList(key string, defaultValue []string) []string {
	if valStr := os.Getenv(key); valStr != "" {
		var out []string
		for _, part := range strings.Split(valStr, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
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
	PublicBaseURL      string
	GinMode            string
	AllowedOrigins     []string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	ServerIdleTimeout  time.Duration
	ShutdownTimeout    time.Duration

	// Logging
	LogLevel     string
	LogJSON      bool
	LogToFile    bool
	LogDirectory string

	// Backend API
	BackendBaseURL string
	BackendAPIKey  string
	BackendTimeout time.Duration

	// Identity verification SDK
	IdentityBaseURL   string
	IdentityPublicKey string

	// Browser session cookie
	SessionCookieName   string
	SessionCookieSecure bool
	SessionSecret       string
	TokenEncryptionKey  string

	// Local state storage
	StateStore         string
	DBDriver           string
	DBDataSource       string
	DBAuthToken        string
	DBMaxOpenConns     int
	DBMaxIdleConns     int
	DBConnMaxLifetime  time.Duration
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	SlowQueryThreshold time.Duration

	// Wizard session policy
	StateTimeout         time.Duration
	SyncDebounce         time.Duration
	SyncMinInterval      time.Duration
	SyncDebounceCap      time.Duration
	SyncMinIntervalCap   time.Duration
	SyncBackoffFactor    float64
	SyncMaxRetries       int
	ActivityPingInterval time.Duration
	CleanupInterval      time.Duration
	CleanupVerbose       bool
	WizardAwaitSync      bool
	WizardSyncWait       time.Duration
	PlanCacheTTL         time.Duration
	PriceTablePath       string
	SyncerIdleTTL        time.Duration

	// Email
	ResendAPIKey  string
	EmailFrom     string
	EmailFromName string

	// Documents
	DocumentDirectory string
	DocumentMaxWidth  int
	DocumentMaxBytes  int
	DocumentQuality   int
)

func init() {
	loadEnvFile()

	// Server Configuration
	Port = getEnvString("PORT", "8080")
	PublicBaseURL = getEnvString("PUBLIC_BASE_URL", "http://localhost:8080")
	GinMode = getEnvString("GIN_MODE", "debug")
	AllowedOrigins = getEnvList("ALLOWED_ORIGINS", []string{
		"http://localhost:4200",
		"http://127.0.0.1:4200",
		"http://localhost:8080",
	})
	ServerReadTimeout = getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second)
	ServerWriteTimeout = getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second)
	ServerIdleTimeout = getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second)
	ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second)

	// Logging
	LogLevel = getEnvString("LOG_LEVEL", "info")
	LogJSON = getEnvBool("LOG_JSON", true)
	LogToFile = getEnvBool("LOG_TO_FILE", false)
	LogDirectory = getEnvString("LOG_DIRECTORY", "logs")

	// Backend API
	BackendBaseURL = getEnvString("API_BASE_URL", "http://localhost:3000/api/v1")
	BackendAPIKey = getEnvString("API_KEY", "")
	BackendTimeout = getEnvDuration("API_TIMEOUT", 15*time.Second)

	// Identity verification SDK
	IdentityBaseURL = getEnvString("IDENTITY_BASE_URL", "https://verify.vdid.mx/api/v1")
	IdentityPublicKey = getEnvString("IDENTITY_PUBLIC_KEY", "")

	// Browser session cookie
	SessionCookieName = getEnvString("SESSION_COOKIE_NAME", "pji_wizard")
	SessionCookieSecure = getEnvBool("SESSION_COOKIE_SECURE", false)
	SessionSecret = getEnvString("SESSION_SECRET", "")
	TokenEncryptionKey = getEnvString("TOKEN_ENCRYPTION_KEY", "")

	// Local state storage
	StateStore = getEnvString("STATE_STORE", "sqlite")
	DBDriver = getEnvString("DB_DRIVER", "sqlite3")
	DBDataSource = getEnvString("DB_DATA_SOURCE", "file:portal.db?_busy_timeout=5000&_journal_mode=WAL")
	DBAuthToken = getEnvString("DB_AUTH_TOKEN", "")
	DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 10)
	DBMaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", 3)
	DBConnMaxLifetime = time.Duration(getEnvInt("DB_CONN_MAX_LIFETIME_MINUTES", 30)) * time.Minute
	RedisAddr = getEnvString("REDIS_ADDR", "localhost:6379")
	RedisPassword = getEnvString("REDIS_PASSWORD", "")
	RedisDB = getEnvInt("REDIS_DB", 0)
	SlowQueryThreshold = getEnvDuration("SLOW_QUERY_THRESHOLD", 100*time.Millisecond)

	// Wizard session policy
	StateTimeout = getEnvDuration("WIZARD_STATE_TIMEOUT", 24*time.Hour)
	SyncDebounce = getEnvDuration("WIZARD_SYNC_DEBOUNCE", 3*time.Second)
	SyncMinInterval = getEnvDuration("WIZARD_SYNC_MIN_INTERVAL", 5*time.Second)
	SyncDebounceCap = getEnvDuration("WIZARD_SYNC_DEBOUNCE_CAP", 5*time.Second)
	SyncMinIntervalCap = getEnvDuration("WIZARD_SYNC_MIN_INTERVAL_CAP", 10*time.Second)
	SyncBackoffFactor = float64(getEnvInt("WIZARD_SYNC_BACKOFF_PERCENT", 150)) / 100
	SyncMaxRetries = getEnvInt("WIZARD_SYNC_MAX_RETRIES", 10)
	ActivityPingInterval = getEnvDuration("WIZARD_ACTIVITY_PING", 5*time.Minute)
	CleanupInterval = time.Duration(getEnvInt("STATE_CLEANUP_INTERVAL_MINUTES", 30)) * time.Minute
	CleanupVerbose = getEnvBool("STATE_CLEANUP_VERBOSE", false)
	WizardAwaitSync = getEnvBool("WIZARD_AWAIT_SYNC", false)
	WizardSyncWait = getEnvDuration("WIZARD_SYNC_WAIT", 12*time.Second)
	PlanCacheTTL = getEnvDuration("PLAN_CACHE_TTL", 10*time.Minute)
	PriceTablePath = getEnvString("PRICE_TABLE_PATH", "")
	SyncerIdleTTL = getEnvDuration("WIZARD_SYNCER_IDLE_TTL", time.Hour)

	// Email
	ResendAPIKey = getEnvString("RESEND_API_KEY", "")
	EmailFrom = getEnvString("EMAIL_FROM", "noreply@portalpji.mx")
	EmailFromName = getEnvString("EMAIL_FROM_NAME", "Protección Jurídica Inmobiliaria")

	// Documents
	DocumentDirectory = getEnvString("DOCUMENT_DIRECTORY", "data/documents")
	DocumentMaxWidth = getEnvInt("DOCUMENT_MAX_WIDTH", 1600)
	DocumentMaxBytes = getEnvInt("DOCUMENT_MAX_BYTES", 10<<20)
	DocumentQuality = getEnvInt("DOCUMENT_WEBP_QUALITY", 82)
}
