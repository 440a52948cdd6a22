package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// Storage drivers accepted in STORE_DRIVER.
const (
	StoreMemory = "memory"
	StoreMySQL  = "mysql"
)

// MinSecretLength is the shortest JWT signing secret accepted at startup.
const MinSecretLength = 32

// Config holds application level configuration loaded from an optional
// YAML file and environment variables.
type Config struct {
	ServerPort      string
	Environment     string
	LogLevel        string
	LogFormat       string
	StoreDriver     string
	MySQLDSN        string
	RedisAddr       string
	RedisDB         int
	RedisPass       string
	JWTSecret       string
	TokenTTL        time.Duration
	BcryptCost      int
	HashConcurrency int
	AuthRateWindow  time.Duration
	AuthRateMax     int
	APIRateWindow   time.Duration
	APIRateMax      int
	TokenRevocation bool
	SeedDemo        bool
	TrustProxy      bool
	AllowedOrigins  []string
	BodyLimit       string
	ShutdownTimeout time.Duration
	SwaggerHost     string
}

// Defaults returns the configuration used when nothing is overridden.
// JWTSecret is intentionally left empty: it must come from outside.
func Defaults() *Config {
	return &Config{
		ServerPort:      "8080",
		Environment:     "development",
		LogLevel:        "info",
		LogFormat:       "json",
		StoreDriver:     StoreMemory,
		TokenTTL:        24 * time.Hour,
		BcryptCost:      12,
		HashConcurrency: runtime.NumCPU(),
		AuthRateWindow:  15 * time.Minute,
		AuthRateMax:     5,
		APIRateWindow:   15 * time.Minute,
		APIRateMax:      100,
		AllowedOrigins:  []string{"*"},
		BodyLimit:       "10M",
		ShutdownTimeout: 10 * time.Second,
	}
}

// Load builds Config from defaults, the YAML file named by CONFIG_FILE (if
// any) and finally the environment, then validates the result.
func Load() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.ServerPort = getEnv("SERVER_PORT", cfg.ServerPort)
	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)
	cfg.StoreDriver = strings.ToLower(getEnv("STORE_DRIVER", cfg.StoreDriver))
	cfg.MySQLDSN = getEnv("MYSQL_DSN", cfg.MySQLDSN)
	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisDB = getEnvInt("REDIS_DB", cfg.RedisDB)
	cfg.RedisPass = getEnv("REDIS_PASSWORD", cfg.RedisPass)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.TokenTTL = getEnvDuration("TOKEN_TTL", cfg.TokenTTL)
	cfg.BcryptCost = getEnvInt("BCRYPT_COST", cfg.BcryptCost)
	cfg.HashConcurrency = getEnvInt("HASH_CONCURRENCY", cfg.HashConcurrency)
	cfg.AuthRateWindow = getEnvDuration("AUTH_RATE_WINDOW", cfg.AuthRateWindow)
	cfg.AuthRateMax = getEnvInt("AUTH_RATE_MAX", cfg.AuthRateMax)
	cfg.APIRateWindow = getEnvDuration("API_RATE_WINDOW", cfg.APIRateWindow)
	cfg.APIRateMax = getEnvInt("API_RATE_MAX", cfg.APIRateMax)
	cfg.TokenRevocation = getEnvBool("TOKEN_REVOCATION", cfg.TokenRevocation)
	cfg.SeedDemo = getEnvBool("SEED_DEMO_ACCOUNTS", cfg.SeedDemo)
	cfg.TrustProxy = getEnvBool("TRUST_PROXY", cfg.TrustProxy)
	cfg.AllowedOrigins = getEnvList("ALLOWED_ORIGINS", cfg.AllowedOrigins)
	cfg.BodyLimit = getEnv("BODY_LIMIT", cfg.BodyLimit)
	cfg.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	cfg.SwaggerHost = getEnv("SWAGGER_HOST", cfg.SwaggerHost)
}

// Validate reports the first configuration problem that would make the
// service unsafe or unable to start.
func (c *Config) Validate() error {
	var errs []error

	switch {
	case c.JWTSecret == "":
		errs = append(errs, errors.New("JWT_SECRET is required"))
	case len(c.JWTSecret) < MinSecretLength:
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d bytes", MinSecretLength))
	}

	switch c.StoreDriver {
	case StoreMemory:
	case StoreMySQL:
		if c.MySQLDSN == "" {
			errs = append(errs, errors.New("MYSQL_DSN is required when STORE_DRIVER=mysql"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}

	if c.TokenRevocation && c.RedisAddr == "" {
		errs = append(errs, errors.New("TOKEN_REVOCATION requires REDIS_ADDR"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}
	if c.AuthRateMax <= 0 || c.AuthRateWindow <= 0 {
		errs = append(errs, errors.New("AUTH_RATE_MAX and AUTH_RATE_WINDOW must be positive"))
	}
	if c.APIRateMax <= 0 || c.APIRateWindow <= 0 {
		errs = append(errs, errors.New("API_RATE_MAX and API_RATE_WINDOW must be positive"))
	}
	if c.HashConcurrency <= 0 {
		errs = append(errs, errors.New("HASH_CONCURRENCY must be positive"))
	}

	return errors.Join(errs...)
}

// IsProduction reports whether the service runs with ENVIRONMENT=production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
