package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// MinJWTSecretLength is the smallest accepted HS256 signing key, in bytes.
const MinJWTSecretLength = 32

// Argon2 parameter bounds. Hashes made outside them could not be verified
// again, so they are rejected at load.
const (
	MaxArgon2MemoryKiB  = 1 << 20
	MaxArgon2Iterations = 64
)

// ErrMissingJWTSecret is returned by Load when no signing key is configured.
var ErrMissingJWTSecret = errors.New("AUTH_JWT_SECRET is required")

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
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
	JWTSecret             string
	AccessTokenTTLMinutes int
	Argon2                Argon2Config
	MaxConcurrentHashes   int
	LoginRateLimit        int
	LoginRateWindowSec    int
}

// Argon2Config holds the cost parameters for newly created password hashes.
type Argon2Config struct {
	MemoryKiB  uint32
	Iterations uint32
	Threads    uint8
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	threads := getEnvAsInt("AUTH_ARGON2_THREADS", 4)
	if threads < 1 || threads > 255 {
		return nil, fmt.Errorf("invalid AUTH_ARGON2_THREADS: %d", threads)
	}
	memory := getEnvAsInt("AUTH_ARGON2_MEMORY_KIB", 64*1024)
	if memory < 8*threads || memory > MaxArgon2MemoryKiB {
		return nil, fmt.Errorf("AUTH_ARGON2_MEMORY_KIB must be between 8 per thread and %d, got %d", MaxArgon2MemoryKiB, memory)
	}
	iterations := getEnvAsInt("AUTH_ARGON2_ITERATIONS", 1)
	if iterations < 1 || iterations > MaxArgon2Iterations {
		return nil, fmt.Errorf("AUTH_ARGON2_ITERATIONS must be between 1 and %d, got %d", MaxArgon2Iterations, iterations)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "user-service"),
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
			JWTSecret:             os.Getenv("AUTH_JWT_SECRET"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			Argon2: Argon2Config{
				MemoryKiB:  uint32(memory),
				Iterations: uint32(iterations),
				Threads:    uint8(threads),
			},
			MaxConcurrentHashes: getEnvAsInt("AUTH_MAX_CONCURRENT_HASHES", runtime.NumCPU()),
			LoginRateLimit:      getEnvAsInt("AUTH_LOGIN_RATE_LIMIT", 10),
			LoginRateWindowSec:  getEnvAsInt("AUTH_LOGIN_RATE_WINDOW_SECONDS", 60),
		},
	}

	if err := cfg.Auth.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (a AuthConfig) validate() error {
	if a.JWTSecret == "" {
		return ErrMissingJWTSecret
	}
	if len(a.JWTSecret) < MinJWTSecretLength {
		return fmt.Errorf("AUTH_JWT_SECRET must be at least %d bytes", MinJWTSecretLength)
	}
	if a.AccessTokenTTLMinutes <= 0 {
		return fmt.Errorf("invalid AUTH_ACCESS_TOKEN_TTL_MINUTES: %d", a.AccessTokenTTLMinutes)
	}
	if a.Argon2.Threads < 1 {
		return fmt.Errorf("AUTH_ARGON2_THREADS must be positive")
	}
	if a.Argon2.MemoryKiB < 8*uint32(a.Argon2.Threads) || a.Argon2.MemoryKiB > MaxArgon2MemoryKiB {
		return fmt.Errorf("AUTH_ARGON2_MEMORY_KIB out of range: %d", a.Argon2.MemoryKiB)
	}
	if a.Argon2.Iterations < 1 || a.Argon2.Iterations > MaxArgon2Iterations {
		return fmt.Errorf("AUTH_ARGON2_ITERATIONS out of range: %d", a.Argon2.Iterations)
	}
	return nil
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

// AccessTokenTTL returns the lifetime of issued bearer tokens.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
}

// LoginRateWindow returns the login throttle window.
func (a AuthConfig) LoginRateWindow() time.Duration {
	if a.LoginRateWindowSec <= 0 {
		return time.Minute
	}
	return time.Duration(a.LoginRateWindowSec) * time.Second
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
