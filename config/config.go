package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server configuration
	Port        string
	Environment string

	// Redis configuration
	RedisURL          string
	RedisPassword     string
	RedisDB           int
	RedisPoolSize     int
	RedisMinIdleConns int

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string

	// Notification publisher circuit breaker
	NotifyBreakerTimeout      time.Duration
	NotifyBreakerFailureRatio float64

	// Session configuration
	DefaultSessionDuration time.Duration
	ClassDefaults          map[string]time.Duration
	MaxSessionLength       time.Duration

	// Extension configuration
	DefaultExtension time.Duration
	MaxExtensions    int

	// Expiry warning thresholds
	WarningThreshold  time.Duration
	CriticalThreshold time.Duration

	// Typical-session rolling average
	HistoryWindow     int
	HistoryMinSamples int

	// Rate limiting
	QueueRatePerMinute int

	// Admin access
	AdminTokenHash string

	// Monitoring
	EnableMetrics   bool
	MetricsPort     string
	SystemStatsTick time.Duration
}

func LoadConfig() *Config {
	// .env is optional; real deployments use the environment directly.
	_ = godotenv.Load()

	return &Config{
		// Server
		Port:        getEnv("PORT", "8090"),
		Environment: getEnv("ENVIRONMENT", "development"),

		// Redis
		RedisURL:          getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisDB:           getEnvAsInt("REDIS_DB", 0),
		RedisPoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 100),
		RedisMinIdleConns: getEnvAsInt("REDIS_MIN_IDLE_CONNS", 10),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),

		// Notification circuit breaker
		NotifyBreakerTimeout:      getEnvAsDuration("NOTIFY_BREAKER_TIMEOUT", "30s"),
		NotifyBreakerFailureRatio: getEnvAsFloat("NOTIFY_BREAKER_FAILURE_RATIO", 0.6),

		// Sessions
		DefaultSessionDuration: getEnvAsDuration("DEFAULT_SESSION_DURATION", "1h"),
		ClassDefaults:          getEnvAsDurationMap("SESSION_CLASS_DEFAULTS", ""),
		MaxSessionLength:       getEnvAsDuration("MAX_SESSION_LENGTH", "8h"),

		// Extensions
		DefaultExtension: getEnvAsDuration("DEFAULT_EXTENSION", "15m"),
		MaxExtensions:    getEnvAsInt("MAX_EXTENSIONS", 4),

		// Warnings
		WarningThreshold:  getEnvAsDuration("WARNING_THRESHOLD", "10m"),
		CriticalThreshold: getEnvAsDuration("CRITICAL_THRESHOLD", "5m"),

		// History
		HistoryWindow:     getEnvAsInt("HISTORY_WINDOW", 10),
		HistoryMinSamples: getEnvAsInt("HISTORY_MIN_SAMPLES", 3),

		// Rate limiting
		QueueRatePerMinute: getEnvAsInt("QUEUE_RATE_PER_MINUTE", 30),

		// Admin
		AdminTokenHash: getEnv("ADMIN_TOKEN_HASH", ""),

		// Monitoring
		EnableMetrics:   getEnvAsBool("ENABLE_METRICS", true),
		MetricsPort:     getEnv("METRICS_PORT", "9090"),
		SystemStatsTick: getEnvAsDuration("SYSTEM_STATS_TICK", "30s"),
	}
}

// SessionDuration returns the configured typical session length for a
// resource class, falling back to the global default.
func (c *Config) SessionDuration(class string) time.Duration {
	if d, ok := c.ClassDefaults[class]; ok {
		return d
	}
	return c.DefaultSessionDuration
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	// If parsing fails, try to parse default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}

// getEnvAsDurationMap parses entries like "windows=2h,linux=1h".
func getEnvAsDurationMap(key string, defaultValue string) map[string]time.Duration {
	out := map[string]time.Duration{}
	valueStr := getEnv(key, defaultValue)
	for _, pair := range strings.Split(valueStr, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(parts) != 2 {
			continue
		}
		if d, err := time.ParseDuration(parts[1]); err == nil {
			out[strings.ToLower(parts[0])] = d
		}
	}
	return out
}
