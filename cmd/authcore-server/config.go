package main

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Config is the server configuration. LoadConfig resolves it in the order
// defaults, YAML file, environment.
type Config struct {
	HTTPAddr        string        `yaml:"http_addr" env:"HTTP_ADDR"`
	TrustProxy      bool          `yaml:"trust_proxy" env:"TRUST_PROXY"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// Dev fills missing keys with random ones and allows running without
	// Postgres or Redis.
	Dev bool `yaml:"dev" env:"DEV"`

	Log      LogConfig      `yaml:"log" envPrefix:"LOG_"`
	Postgres PostgresConfig `yaml:"postgres" envPrefix:"POSTGRES_"`
	Redis    RedisConfig    `yaml:"redis" envPrefix:"REDIS_"`
	Auth     AuthConfig     `yaml:"auth" envPrefix:"AUTH_"`
	Notify   NotifyConfig   `yaml:"notify" envPrefix:"NOTIFY_"`
	Metrics  MetricsConfig  `yaml:"metrics" envPrefix:"METRICS_"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"LEVEL"`
	// Format is "json" or "console".
	Format   string `yaml:"format" env:"FORMAT"`
	Requests bool   `yaml:"requests" env:"REQUESTS"`
}

type PostgresConfig struct {
	URL      string `yaml:"url" env:"URL"`
	MaxConns int32  `yaml:"max_conns" env:"MAX_CONNS"`
	Migrate  bool   `yaml:"migrate" env:"MIGRATE"`
}

type RedisConfig struct {
	URL string `yaml:"url" env:"URL"`
}

// AuthConfig carries the engine settings an operator usually changes. Keys
// are base64 encoded.
type AuthConfig struct {
	CSRFKey            string `yaml:"csrf_key" env:"CSRF_KEY"`
	TOTPEncryptionKey  string `yaml:"totp_encryption_key" env:"TOTP_ENCRYPTION_KEY"`
	LinkSigningKey     string `yaml:"link_signing_key" env:"LINK_SIGNING_KEY"`
	CookieDomain       string `yaml:"cookie_domain" env:"COOKIE_DOMAIN"`
	CookieSecure       bool   `yaml:"cookie_secure" env:"COOKIE_SECURE"`
	ResetLinkURL       string `yaml:"reset_link_url" env:"RESET_LINK_URL"`
	VerifyLinkURL      string `yaml:"verify_link_url" env:"VERIFY_LINK_URL"`
	Issuer             string `yaml:"issuer" env:"ISSUER"`
	RegistrationClosed bool   `yaml:"registration_closed" env:"REGISTRATION_CLOSED"`
	SuperRole          string `yaml:"super_role" env:"SUPER_ROLE"`
}

type NotifyConfig struct {
	BufferSize  int           `yaml:"buffer_size" env:"BUFFER_SIZE"`
	Workers     int           `yaml:"workers" env:"WORKERS"`
	SendTimeout time.Duration `yaml:"send_timeout" env:"SEND_TIMEOUT"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled" env:"ENABLED"`
}

const envPrefix = "AUTHCORE_"

func defaultConfig() Config {
	return Config{
		HTTPAddr:        ":8080",
		ShutdownTimeout: 10 * time.Second,
		Log:             LogConfig{Level: "info", Format: "json", Requests: true},
		Postgres:        PostgresConfig{MaxConns: 10, Migrate: true},
		Auth: AuthConfig{
			CookieSecure: true,
			SuperRole:    "admin",
		},
		Notify:  NotifyConfig{BufferSize: 64, Workers: 1, SendTimeout: 30 * time.Second},
		Metrics: MetricsConfig{Enabled: true},
	}
}

// LoadConfig reads path when it is set and exists, then applies AUTHCORE_*
// environment overrides.
func LoadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config file: %w", err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: envPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	if !cfg.Dev {
		if cfg.Postgres.URL == "" {
			return Config{}, errors.New("missing AUTHCORE_POSTGRES_URL")
		}
		if cfg.Redis.URL == "" {
			return Config{}, errors.New("missing AUTHCORE_REDIS_URL")
		}
	}
	return cfg, nil
}

// EngineConfig maps the server settings onto authcore.DefaultConfig.
func (c Config) EngineConfig() (authcore.Config, error) {
	out := authcore.DefaultConfig()

	keys := []struct {
		name string
		raw  string
		dst  *[]byte
	}{
		{"csrf_key", c.Auth.CSRFKey, &out.CSRF.Key},
		{"totp_encryption_key", c.Auth.TOTPEncryptionKey, &out.TOTP.EncryptionKey},
		{"link_signing_key", c.Auth.LinkSigningKey, &out.EmailVerification.SigningKey},
	}
	for _, k := range keys {
		key, err := decodeKey(k.raw, c.Dev)
		if err != nil {
			return authcore.Config{}, fmt.Errorf("auth.%s: %w", k.name, err)
		}
		*k.dst = key
	}

	out.Session.CookieDomain = c.Auth.CookieDomain
	out.Session.CookieSecure = c.Auth.CookieSecure
	out.Account.RegistrationEnabled = !c.Auth.RegistrationClosed
	out.Authorization.SuperRole = c.Auth.SuperRole
	out.Metrics.Enabled = c.Metrics.Enabled
	out.Metrics.EnableLatencyHistograms = c.Metrics.Enabled
	if c.Auth.ResetLinkURL != "" {
		out.PasswordReset.LinkBaseURL = c.Auth.ResetLinkURL
	}
	if c.Auth.VerifyLinkURL != "" {
		out.EmailVerification.LinkBaseURL = c.Auth.VerifyLinkURL
	}
	if c.Auth.Issuer != "" {
		out.TOTP.Issuer = c.Auth.Issuer
		out.EmailVerification.Issuer = c.Auth.Issuer
	}

	if err := out.Validate(); err != nil {
		return authcore.Config{}, err
	}
	return out, nil
}

func decodeKey(raw string, dev bool) ([]byte, error) {
	if raw == "" {
		if !dev {
			return nil, errors.New("key is required")
		}
		key := make([]byte, 32)
		_, err := rand.Read(key)
		return key, err
	}
	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	if len(key) < 32 {
		return nil, errors.New("key must be at least 32 bytes")
	}
	return key, nil
}

// NewLogger builds the process logger from c.Log.
func (c Config) NewLogger() (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("log.level: %w", err)
	}

	var logger zerolog.Logger
	switch c.Log.Format {
	case "console":
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	case "json", "":
		logger = zerolog.New(os.Stderr)
	default:
		return zerolog.Nop(), fmt.Errorf("log.format: unknown %q", c.Log.Format)
	}
	return logger.Level(level).With().Timestamp().Str("service", "authcore").Logger(), nil
}
