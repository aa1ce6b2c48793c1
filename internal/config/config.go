package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App       AppConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Logger    LoggerConfig
	Auth      AuthConfig
	Incentive IncentiveConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	AppKey                    string
	LoginTokenTTLHours        int
	BcryptCost                int
	SessionCookieName         string
	SessionTTLMinutes         int
	LoginRoute                string
	PermissionCacheSize       int
	PermissionCacheTTLSeconds int
	LoginAttemptsPerMinute    int
	LoginBurst                int
}

// IncentiveConfig controls commission derivation.
type IncentiveConfig struct {
	Percentage float64
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	percentage, err := strconv.ParseFloat(getEnv("INCENTIVE_PERCENTAGE", "1.00"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid INCENTIVE_PERCENTAGE: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "clinic-crm"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			AppKey:                    getEnv("AUTH_APP_KEY", "dev-app-key"),
			LoginTokenTTLHours:        getEnvAsInt("AUTH_LOGIN_TOKEN_TTL_HOURS", 24),
			BcryptCost:                getEnvAsInt("AUTH_BCRYPT_COST", 12),
			SessionCookieName:         getEnv("AUTH_SESSION_COOKIE", "clinic_session"),
			SessionTTLMinutes:         getEnvAsInt("AUTH_SESSION_TTL_MINUTES", 120),
			LoginRoute:                getEnv("AUTH_LOGIN_ROUTE", "/login"),
			PermissionCacheSize:       getEnvAsInt("AUTH_PERMISSION_CACHE_SIZE", 1024),
			PermissionCacheTTLSeconds: getEnvAsInt("AUTH_PERMISSION_CACHE_TTL_SECONDS", 60),
			LoginAttemptsPerMinute:    getEnvAsInt("AUTH_LOGIN_ATTEMPTS_PER_MINUTE", 10),
			LoginBurst:                getEnvAsInt("AUTH_LOGIN_BURST", 5),
		},
		Incentive: IncentiveConfig{
			Percentage: percentage,
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// LoginTokenTTL is the validity window of tokens issued at login.
func (a AuthConfig) LoginTokenTTL() time.Duration {
	if a.LoginTokenTTLHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(a.LoginTokenTTLHours) * time.Hour
}

// SessionTTL returns how long an idle server-side session survives.
func (a AuthConfig) SessionTTL() time.Duration {
	if a.SessionTTLMinutes <= 0 {
		return 120 * time.Minute
	}
	return time.Duration(a.SessionTTLMinutes) * time.Minute
}

// PermissionCacheTTL returns how long effective permission sets are cached.
func (a AuthConfig) PermissionCacheTTL() time.Duration {
	if a.PermissionCacheTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(a.PermissionCacheTTLSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
