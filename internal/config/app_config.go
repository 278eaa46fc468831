package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type AppConfig struct {
	AppPort               string
	AppEnv                string
	AppCorsAllowedOrigins []string

	StoreDriver string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	DBMigrate  bool

	RedisHost      string
	RedisPort      string
	RedisPassword  string
	RedisDB        int
	RedisBackplane bool

	JWTSecret string

	TypingTimeoutSeconds int
	MessagePageSize      int
	MessageMaxPageSize   int

	RateLimitRequestsPerMinute int
	RateLimitMessagesPerMinute int
	WSEventsPerSecond          int
	TrustedProxyCIDRs          []string

	IdentityCacheTTLSeconds int

	RequestRetentionDays int
	RequestExpiryCron    string
}

func LoadAppConfig() *AppConfig {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, reading from system environment variables")
	}

	cfg := &AppConfig{
		AppPort:               mustGetEnv("APP_PORT"),
		AppEnv:                getEnv("APP_ENV", "development"),
		AppCorsAllowedOrigins: strings.Split(getEnv("APP_CORS_ALLOWED_ORIGINS", "*"), ","),

		StoreDriver: getEnv("STORE_DRIVER", StoreDriverPostgres),

		RedisHost:      getEnv("REDIS_HOST", ""),
		RedisPort:      getEnv("REDIS_PORT", "6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getEnvAsInt("REDIS_DB", 0),
		RedisBackplane: getEnvAsBool("REDIS_BACKPLANE", false),

		JWTSecret: mustGetEnv("JWT_SECRET"),

		TypingTimeoutSeconds: getEnvAsInt("TYPING_TIMEOUT_SECONDS", 8),
		MessagePageSize:      getEnvAsInt("MESSAGE_PAGE_SIZE", 20),
		MessageMaxPageSize:   getEnvAsInt("MESSAGE_MAX_PAGE_SIZE", 50),

		RateLimitRequestsPerMinute: getEnvAsInt("RATE_LIMIT_REQUESTS_PER_MINUTE", 30),
		RateLimitMessagesPerMinute: getEnvAsInt("RATE_LIMIT_MESSAGES_PER_MINUTE", 120),
		WSEventsPerSecond:          getEnvAsInt("WS_EVENTS_PER_SECOND", 10),
		TrustedProxyCIDRs:          splitNonEmpty(getEnv("TRUSTED_PROXY_CIDRS", "")),

		IdentityCacheTTLSeconds: getEnvAsInt("IDENTITY_CACHE_TTL_SECONDS", 300),

		RequestRetentionDays: getEnvAsInt("REQUEST_RETENTION_DAYS", 30),
		RequestExpiryCron:    getEnv("REQUEST_EXPIRY_CRON", "0 4 * * *"),
	}

	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		cfg.DBHost = mustGetEnv("DB_HOST")
		cfg.DBPort = mustGetEnv("DB_PORT")
		cfg.DBUser = mustGetEnv("DB_USER")
		cfg.DBPassword = mustGetEnv("DB_PASSWORD")
		cfg.DBName = mustGetEnv("DB_NAME")
		cfg.DBSSLMode = getEnv("DB_SSLMODE", "disable")
		cfg.DBMigrate = getEnvAsBool("DB_MIGRATE", true)
	case StoreDriverMemory:
	default:
		slog.Error("Unsupported store driver", "driver", cfg.StoreDriver)
		os.Exit(1)
	}

	if cfg.MessageMaxPageSize < 1 {
		cfg.MessageMaxPageSize = 50
	}
	if cfg.MessagePageSize < 1 || cfg.MessagePageSize > cfg.MessageMaxPageSize {
		slog.Warn("MESSAGE_PAGE_SIZE out of range, clamping", "value", cfg.MessagePageSize, "max", cfg.MessageMaxPageSize)
		cfg.MessagePageSize = min(max(cfg.MessagePageSize, 1), cfg.MessageMaxPageSize)
	}

	return cfg
}

func (c *AppConfig) DBConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// RedisEnabled reports whether a Redis host is configured. Without one the
// service runs single-node with rate limiting and revocation checks disabled.
func (c *AppConfig) RedisEnabled() bool {
	return c.RedisHost != ""
}

func mustGetEnv(key string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		slog.Error("Environment variable is required but not set", "key", key)
		os.Exit(1)
	}
	return value
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valStr, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	val, err := strconv.Atoi(valStr)
	if err != nil {
		slog.Warn("Environment variable must be an integer, using fallback", "key", key, "value", valStr, "fallback", fallback)
		return fallback
	}
	return val
}

func getEnvAsBool(key string, fallback bool) bool {
	valStr, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	val, err := strconv.ParseBool(valStr)
	if err != nil {
		slog.Warn("Environment variable must be a boolean, using fallback", "key", key, "value", valStr, "fallback", fallback)
		return fallback
	}
	return val
}

func splitNonEmpty(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
