package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewReconcileConfigHolder),
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPPort    string
	NodeID      int64

	OTLPEndpoint  string
	Observability ObservabilityConfig

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Gateway   GatewayConfig
	RateLimit RateLimitConfig

	ReconcileSchedule string
	ExpirySchedule    string
	EnabledJobs       []string

	MigrateOnStart bool
}

// GatewayConfig controls how the external payment gateway is reached.
type GatewayConfig struct {
	Provider       string
	SecretKey      string
	WebhookSecret  string
	APIURL         string
	SuccessURL     string
	CancelURL      string
	AttemptTimeout time.Duration
	MaxRetries     uint64
}

// ObservabilityConfig carries the logging and OpenTelemetry switches.
type ObservabilityConfig struct {
	DeploymentEnv   string
	ServiceVersion  string
	LogLevel        string
	LogFormat       string
	OtelEnabled     bool
	OtelEndpoint    string
	OtelProtocol    string
	OtelSampleRatio float64
}

// RateLimitConfig throttles public checkout creation per client.
type RateLimitConfig struct {
	Enabled      bool
	BookingRate  float64
	BookingBurst int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "lingohub"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		HTTPPort:     getenv("HTTP_PORT", "8080"),
		NodeID:       getenvInt64("SNOWFLAKE_NODE_ID", 1),
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "lingohub"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     int(getenvInt64("DATABASE_MAX_IDLE_CONN", 10)),
		DBMaxOpenConn:     int(getenvInt64("DATABASE_MAX_OPEN_CONN", 50)),
		DBConnMaxLifetime: int(getenvInt64("DATABASE_CONN_MAX_LIFETIME", 300)),
		DBConnMaxIdleTime: int(getenvInt64("DATABASE_CONN_MAX_IDLE_TIME", 60)),

		RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RedisDB:       int(getenvInt64("REDIS_DB", 0)),

		Gateway: GatewayConfig{
			Provider:       strings.ToLower(getenv("PAYMENT_GATEWAY", "stripe")),
			SecretKey:      strings.TrimSpace(getenv("STRIPE_SECRET_KEY", "")),
			WebhookSecret:  strings.TrimSpace(getenv("STRIPE_WEBHOOK_SECRET", "")),
			APIURL:         strings.TrimSpace(getenv("STRIPE_API_URL", "")),
			SuccessURL:     getenv("CHECKOUT_SUCCESS_URL", "http://localhost:5173/bookings/success"),
			CancelURL:      getenv("CHECKOUT_CANCEL_URL", "http://localhost:5173/bookings/cancelled"),
			AttemptTimeout: time.Duration(getenvInt64("GATEWAY_ATTEMPT_TIMEOUT_MS", 5000)) * time.Millisecond,
			MaxRetries:     uint64(getenvInt64("GATEWAY_MAX_RETRIES", 3)),
		},

		RateLimit: RateLimitConfig{
			Enabled:      getenvBool("RATE_LIMIT_ENABLED", false),
			BookingRate:  getenvFloat("RATE_LIMIT_BOOKING_RATE", 0.5),
			BookingBurst: int(getenvInt64("RATE_LIMIT_BOOKING_BURST", 5)),
		},

		ReconcileSchedule: getenv("RECONCILE_SCHEDULE", "@every 15m"),
		ExpirySchedule:    getenv("SUBSCRIPTION_EXPIRY_SCHEDULE", "@every 1h"),
		EnabledJobs:       parseList(getenv("SCHEDULER_ENABLED_JOBS", "")),

		MigrateOnStart: getenvBool("MIGRATE_ON_START", true),
	}

	cfg.Observability = ObservabilityConfig{
		DeploymentEnv:   strings.TrimSpace(getenv("DEPLOYMENT_ENV", cfg.Environment)),
		ServiceVersion:  strings.TrimSpace(getenv("SERVICE_VERSION", cfg.AppVersion)),
		LogLevel:        strings.ToLower(strings.TrimSpace(getenv("LOG_LEVEL", "info"))),
		LogFormat:       strings.ToLower(strings.TrimSpace(getenv("LOG_FORMAT", "json"))),
		OtelEnabled:     getenvBool("OTEL_ENABLED", false),
		OtelEndpoint:    strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTLPEndpoint)),
		OtelProtocol:    strings.ToLower(strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"))),
		OtelSampleRatio: getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
