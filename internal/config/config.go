package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAppName         = "CongoBank"
	defaultAppEnv          = "development"
	defaultListenAddr      = "127.0.0.1:8080"
	defaultLogLevel        = "info"
	defaultStoreBackend    = BackendSQLite
	defaultSQLitePath      = "bank.db"
	defaultRedisPrefix     = "bank:"
	defaultCipherScheme    = CipherSealed
	defaultArgonTime       = 3
	defaultArgonMemoryKiB  = 64 * 1024
	defaultChainNetwork    = "sepolia"
	defaultChainID         = 11155111
	defaultLoginAttempts   = 5
	defaultShutdownDelay   = 10 * time.Second
	defaultIdempotencyTTL  = 24 * time.Hour
	idemTTLSecondsEnvVar   = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar       = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar  = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar = "SHUTDOWN_TIMEOUT"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Cipher schemes for private keys at rest.
const (
	CipherSealed = "sealed"
	CipherLegacy = "legacy"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName    string
	AppEnv     string
	ListenAddr string
	LogLevel   string

	StoreBackend string
	SQLitePath   string
	DatabaseURL  string
	RedisURL     string
	RedisPrefix  string

	IDAlphabet        string
	CipherScheme      string
	CipherAllowLegacy bool
	ArgonTime         uint32
	ArgonMemoryKiB    uint32

	ChainNetwork string
	ChainID      int64

	LoginAttemptsPerMinute int
	ShutdownPeriod         time.Duration
	IdempotencyTTL         time.Duration
}

// Load reads configuration values from the environment and populates a Config
// instance. A .env file (or the file named by ENV_FILE) is read first when
// present; variables already set in the environment win.
func Load() (Config, error) {
	envFile := getEnv("ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("read %s: %w", envFile, err)
	}

	cfg := Config{
		AppName:      getEnv("APP_NAME", defaultAppName),
		AppEnv:       getEnv("APP_ENV", defaultAppEnv),
		ListenAddr:   getEnv("LISTEN_ADDR", defaultListenAddr),
		LogLevel:     strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", defaultStoreBackend)),
		SQLitePath:   getEnv("SQLITE_PATH", defaultSQLitePath),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		RedisURL:     os.Getenv("REDIS_URL"),
		RedisPrefix:  getEnv("REDIS_PREFIX", defaultRedisPrefix),
		IDAlphabet:   os.Getenv("ID_ALPHABET"),
		CipherScheme: strings.ToLower(getEnv("CIPHER_SCHEME", defaultCipherScheme)),
		ChainNetwork: getEnv("CHAIN_NETWORK", defaultChainNetwork),

		CipherAllowLegacy:      true,
		ArgonTime:              defaultArgonTime,
		ArgonMemoryKiB:         defaultArgonMemoryKiB,
		ChainID:                defaultChainID,
		LoginAttemptsPerMinute: defaultLoginAttempts,
		ShutdownPeriod:         defaultShutdownDelay,
		IdempotencyTTL:         defaultIdempotencyTTL,
	}

	var err error
	if v := os.Getenv("CIPHER_ALLOW_LEGACY"); v != "" {
		if cfg.CipherAllowLegacy, err = strconv.ParseBool(v); err != nil {
			return Config{}, fmt.Errorf("invalid CIPHER_ALLOW_LEGACY: %w", err)
		}
	}
	if cfg.ArgonTime, err = getUint32("ARGON2_TIME", cfg.ArgonTime); err != nil {
		return Config{}, err
	}
	if cfg.ArgonMemoryKiB, err = getUint32("ARGON2_MEMORY_KIB", cfg.ArgonMemoryKiB); err != nil {
		return Config{}, err
	}
	if v := os.Getenv("CHAIN_ID"); v != "" {
		if cfg.ChainID, err = strconv.ParseInt(v, 10, 64); err != nil {
			return Config{}, fmt.Errorf("invalid CHAIN_ID: %w", err)
		}
	}
	if v := os.Getenv("LOGIN_ATTEMPTS_PER_MINUTE"); v != "" {
		if cfg.LoginAttemptsPerMinute, err = strconv.Atoi(v); err != nil {
			return Config{}, fmt.Errorf("invalid LOGIN_ATTEMPTS_PER_MINUTE: %w", err)
		}
	}
	if cfg.ShutdownPeriod, err = getDuration(shutdownSecondsEnvVar, shutdownDurationEnvVar, cfg.ShutdownPeriod); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = getDuration(idemTTLSecondsEnvVar, idemTTLDurEnvVar, cfg.IdempotencyTTL); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements.
func (c Config) Validate() error {
	switch c.StoreBackend {
	case BackendMemory:
	case BackendSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH must be set for the sqlite backend")
		}
	case BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL must be set for the redis backend")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL must be set for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	switch c.CipherScheme {
	case CipherSealed, CipherLegacy:
	default:
		return fmt.Errorf("unknown CIPHER_SCHEME %q", c.CipherScheme)
	}
	if c.ArgonTime == 0 || c.ArgonMemoryKiB < 8 {
		return fmt.Errorf("argon2 cost parameters too small")
	}
	return nil
}

// IsDev reports whether the app runs in a development environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getUint32(key string, fallback uint32) (uint32, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return uint32(n), nil
}

func getDuration(secondsKey, durationKey string, fallback time.Duration) (time.Duration, error) {
	if v := os.Getenv(secondsKey); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", secondsKey, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	if v := os.Getenv(durationKey); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", durationKey, err)
		}
		return d, nil
	}
	return fallback, nil
}
