package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors Config for YAML decoding. Pointer fields distinguish
// "absent" from the zero value so a file only overrides what it names.
type fileConfig struct {
	Server struct {
		Port            *string   `yaml:"port"`
		Environment     *string   `yaml:"environment"`
		TrustProxy      *bool     `yaml:"trust_proxy"`
		AllowedOrigins  []string  `yaml:"allowed_origins"`
		BodyLimit       *string   `yaml:"body_limit"`
		ShutdownTimeout *duration `yaml:"shutdown_timeout"`
		SwaggerHost     *string   `yaml:"swagger_host"`
	} `yaml:"server"`
	Log struct {
		Level  *string `yaml:"level"`
		Format *string `yaml:"format"`
	} `yaml:"log"`
	Store struct {
		Driver   *string `yaml:"driver"`
		MySQLDSN *string `yaml:"mysql_dsn"`
		SeedDemo *bool   `yaml:"seed_demo_accounts"`
	} `yaml:"store"`
	Redis struct {
		Addr     *string `yaml:"addr"`
		DB       *int    `yaml:"db"`
		Password *string `yaml:"password"`
	} `yaml:"redis"`
	Auth struct {
		JWTSecret       *string   `yaml:"jwt_secret"`
		TokenTTL        *duration `yaml:"token_ttl"`
		TokenRevocation *bool     `yaml:"token_revocation"`
		BcryptCost      *int      `yaml:"bcrypt_cost"`
		HashConcurrency *int      `yaml:"hash_concurrency"`
	} `yaml:"auth"`
	RateLimit struct {
		AuthWindow *duration `yaml:"auth_window"`
		AuthMax    *int      `yaml:"auth_max"`
		APIWindow  *duration `yaml:"api_window"`
		APIMax     *int      `yaml:"api_max"`
	} `yaml:"rate_limit"`
}

// duration accepts Go duration strings such as "15m" or "24h".
type duration time.Duration

func (d *duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = duration(parsed)
	return nil
}

func applyFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	setString(&cfg.ServerPort, fc.Server.Port)
	setString(&cfg.Environment, fc.Server.Environment)
	setBool(&cfg.TrustProxy, fc.Server.TrustProxy)
	if len(fc.Server.AllowedOrigins) > 0 {
		cfg.AllowedOrigins = fc.Server.AllowedOrigins
	}
	setString(&cfg.BodyLimit, fc.Server.BodyLimit)
	setDuration(&cfg.ShutdownTimeout, fc.Server.ShutdownTimeout)
	setString(&cfg.SwaggerHost, fc.Server.SwaggerHost)

	setString(&cfg.LogLevel, fc.Log.Level)
	setString(&cfg.LogFormat, fc.Log.Format)

	setString(&cfg.StoreDriver, fc.Store.Driver)
	setString(&cfg.MySQLDSN, fc.Store.MySQLDSN)
	setBool(&cfg.SeedDemo, fc.Store.SeedDemo)

	setString(&cfg.RedisAddr, fc.Redis.Addr)
	setInt(&cfg.RedisDB, fc.Redis.DB)
	setString(&cfg.RedisPass, fc.Redis.Password)

	setString(&cfg.JWTSecret, fc.Auth.JWTSecret)
	setDuration(&cfg.TokenTTL, fc.Auth.TokenTTL)
	setBool(&cfg.TokenRevocation, fc.Auth.TokenRevocation)
	setInt(&cfg.BcryptCost, fc.Auth.BcryptCost)
	setInt(&cfg.HashConcurrency, fc.Auth.HashConcurrency)

	setDuration(&cfg.AuthRateWindow, fc.RateLimit.AuthWindow)
	setInt(&cfg.AuthRateMax, fc.RateLimit.AuthMax)
	setDuration(&cfg.APIRateWindow, fc.RateLimit.APIWindow)
	setInt(&cfg.APIRateMax, fc.RateLimit.APIMax)
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *duration) {
	if v != nil {
		*dst = time.Duration(*v)
	}
}
