// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config builds the validated gatekeeper configuration from compiled
// defaults, an optional YAML file, command-line flags and environment secrets.
package config

import (
	"slices"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/gatekeeper/internal/auth"
	"github.com/holomush/gatekeeper/internal/logging"
	"github.com/holomush/gatekeeper/internal/notify"
	"github.com/holomush/gatekeeper/internal/ratelimit"
)

// Mail drivers.
const (
	MailDriverSMTP = "smtp"
	MailDriverLog  = "log"
)

// Config is the complete gatekeeper configuration.
type Config struct {
	Server    ServerConfig    `json:"server" yaml:"server"`
	Metrics   MetricsConfig   `json:"metrics" yaml:"metrics"`
	Database  DatabaseConfig  `json:"database" yaml:"database"`
	Tokens    TokensConfig    `json:"tokens" yaml:"tokens"`
	Hasher    HasherConfig    `json:"hasher" yaml:"hasher"`
	App       AppConfig       `json:"app" yaml:"app"`
	Mail      MailConfig      `json:"mail" yaml:"mail"`
	RateLimit RateLimitConfig `json:"ratelimit" yaml:"ratelimit"`
	Log       LogConfig       `json:"log" yaml:"log"`
	Purge     PurgeConfig     `json:"purge" yaml:"purge"`
}

// ServerConfig configures the HTTP API listener.
type ServerConfig struct {
	Addr            string        `json:"addr" yaml:"addr" jsonschema:"description=API listen address"`
	Production      bool          `json:"production" yaml:"production" jsonschema:"description=Mark cookies Secure"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" jsonschema:"type=string,description=Graceful shutdown deadline"`
	RequestTimeout  time.Duration `json:"request_timeout" yaml:"request_timeout" jsonschema:"type=string,description=Deadline for one credential operation including store calls and email delivery"`
}

// MetricsConfig configures the observability listener. An empty address
// disables it.
type MetricsConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

// DatabaseConfig configures the Postgres pool.
type DatabaseConfig struct {
	URL             string `json:"url" yaml:"url" jsonschema:"description=Prefer the DATABASE_URL environment variable"`
	MaxConns        int32  `json:"max_conns" yaml:"max_conns" jsonschema:"minimum=0"`
	ConnectAttempts uint64 `json:"connect_attempts" yaml:"connect_attempts" jsonschema:"minimum=0"`
	AutoMigrate     bool   `json:"auto_migrate" yaml:"auto_migrate" jsonschema:"description=Apply pending migrations before serving"`
}

// TokensConfig configures the access and refresh token codec.
type TokensConfig struct {
	AccessSecret  string        `json:"access_secret" yaml:"access_secret" jsonschema:"description=Prefer the JWT_SECRET environment variable"`
	RefreshSecret string        `json:"refresh_secret" yaml:"refresh_secret" jsonschema:"description=Prefer the JWT_REFRESH_SECRET environment variable"`
	AccessTTL     time.Duration `json:"access_ttl" yaml:"access_ttl" jsonschema:"type=string"`
	RefreshTTL    time.Duration `json:"refresh_ttl" yaml:"refresh_ttl" jsonschema:"type=string"`
	Issuer        string        `json:"issuer" yaml:"issuer"`
}

// HasherConfig selects the password hashing algorithm.
type HasherConfig struct {
	Algorithm  string `json:"algorithm" yaml:"algorithm" jsonschema:"enum=bcrypt,enum=argon2id"`
	BcryptCost int    `json:"bcrypt_cost" yaml:"bcrypt_cost"`
}

// AppConfig holds account lifecycle settings.
type AppConfig struct {
	BaseURL       string        `json:"base_url" yaml:"base_url" jsonschema:"description=Public URL used in email links"`
	TenantID      string        `json:"tenant_id" yaml:"tenant_id"`
	ResetTokenTTL time.Duration `json:"reset_token_ttl" yaml:"reset_token_ttl" jsonschema:"type=string"`
}

// MailConfig selects and configures the notifier.
type MailConfig struct {
	Driver   string        `json:"driver" yaml:"driver" jsonschema:"enum=smtp,enum=log"`
	Host     string        `json:"host" yaml:"host"`
	Port     int           `json:"port" yaml:"port"`
	Username string        `json:"username" yaml:"username"`
	Password string        `json:"password" yaml:"password" jsonschema:"description=Prefer the SMTP_PASS environment variable"`
	From     string        `json:"from" yaml:"from"`
	TLS      string        `json:"tls" yaml:"tls" jsonschema:"enum=mandatory,enum=opportunistic,enum=none"`
	Timeout  time.Duration `json:"timeout" yaml:"timeout" jsonschema:"type=string"`
}

// RateLimitConfig configures the per-key rate gate.
type RateLimitConfig struct {
	Enabled bool          `json:"enabled" yaml:"enabled"`
	Limit   int           `json:"limit" yaml:"limit"`
	Window  time.Duration `json:"window" yaml:"window" jsonschema:"type=string"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Format string `json:"format" yaml:"format" jsonschema:"enum=json,enum=text"`
	Level  string `json:"level" yaml:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// PurgeConfig schedules removal of expired refresh tokens and sessions. A
// zero interval disables the background purge.
type PurgeConfig struct {
	Interval time.Duration `json:"interval" yaml:"interval" jsonschema:"type=string"`
}

// Defaults returns the compiled default configuration. Secrets and the
// database URL have no defaults.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":5000",
			ShutdownTimeout: 15 * time.Second,
			RequestTimeout:  10 * time.Second,
		},
		Metrics: MetricsConfig{Addr: ":9100"},
		Database: DatabaseConfig{
			MaxConns:        10,
			ConnectAttempts: 5,
		},
		Tokens: TokensConfig{
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
			Issuer:     "gatekeeper",
		},
		Hasher: HasherConfig{
			Algorithm:  auth.AlgorithmBcrypt,
			BcryptCost: auth.DefaultBcryptCost,
		},
		App: AppConfig{
			BaseURL:       "http://localhost:5000",
			TenantID:      auth.DefaultTenantID,
			ResetTokenTTL: auth.ResetTokenExpiry,
		},
		Mail: MailConfig{
			Driver:  MailDriverLog,
			Port:    587,
			From:    "no-reply@localhost",
			TLS:     "mandatory",
			Timeout: 10 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			Limit:   ratelimit.DefaultLimit,
			Window:  ratelimit.DefaultWindow,
		},
		Log: LogConfig{
			Format: "json",
			Level:  "info",
		},
		Purge: PurgeConfig{Interval: time.Hour},
	}
}

// Validate checks the configuration for startup. It reports the first
// problem found.
func (c *Config) Validate() error {
	switch {
	case c.Server.Addr == "":
		return invalid("server.addr", "server.addr is required")
	case c.Server.RequestTimeout <= 0:
		return invalid("server.request_timeout", "request timeout must be positive")
	case c.Database.URL == "":
		return invalid("database.url", "database url is required (set DATABASE_URL)")
	case len(c.Tokens.AccessSecret) < auth.MinSigningKeyBytes:
		return invalid("tokens.access_secret", "access secret must be at least 32 bytes (set JWT_SECRET)")
	case len(c.Tokens.RefreshSecret) < auth.MinSigningKeyBytes:
		return invalid("tokens.refresh_secret", "refresh secret must be at least 32 bytes (set JWT_REFRESH_SECRET)")
	case c.Tokens.AccessSecret == c.Tokens.RefreshSecret:
		return invalid("tokens.refresh_secret", "access and refresh secrets must differ")
	case c.Tokens.AccessTTL <= 0:
		return invalid("tokens.access_ttl", "access ttl must be positive")
	case c.Tokens.RefreshTTL <= 0:
		return invalid("tokens.refresh_ttl", "refresh ttl must be positive")
	case c.App.ResetTokenTTL <= 0:
		return invalid("app.reset_token_ttl", "reset token ttl must be positive")
	case c.Purge.Interval < 0:
		return invalid("purge.interval", "purge interval must not be negative")
	}

	switch c.Hasher.Algorithm {
	case auth.AlgorithmBcrypt:
		if c.Hasher.BcryptCost < auth.MinBcryptCost || c.Hasher.BcryptCost > auth.MaxBcryptCost {
			return oops.Code("CONFIG_INVALID").
				With("key", "hasher.bcrypt_cost").
				Errorf("bcrypt cost must be between %d and %d", auth.MinBcryptCost, auth.MaxBcryptCost)
		}
	case auth.AlgorithmArgon2id:
	default:
		return oops.Code("CONFIG_INVALID").
			With("key", "hasher.algorithm").
			Errorf("unknown hasher algorithm %q", c.Hasher.Algorithm)
	}

	switch c.Mail.Driver {
	case MailDriverLog:
	case MailDriverSMTP:
		if c.Mail.Host == "" {
			return invalid("mail.host", "mail.host is required for the smtp driver")
		}
		if !slices.Contains([]string{"mandatory", "opportunistic", "none"}, c.Mail.TLS) {
			return oops.Code("CONFIG_INVALID").With("key", "mail.tls").Errorf("unknown tls policy %q", c.Mail.TLS)
		}
	default:
		return oops.Code("CONFIG_INVALID").With("key", "mail.driver").Errorf("unknown mail driver %q", c.Mail.Driver)
	}

	if c.RateLimit.Enabled && (c.RateLimit.Limit <= 0 || c.RateLimit.Window <= 0) {
		return invalid("ratelimit", "rate limit and window must be positive when enabled")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return oops.Code("CONFIG_INVALID").With("key", "log.format").Errorf("unknown log format %q", c.Log.Format)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return oops.Code("CONFIG_INVALID").With("key", "log.level").Wrap(err)
	}
	return nil
}

func invalid(key, msg string) error {
	return oops.Code("CONFIG_INVALID").With("key", key).Errorf("%s", msg)
}

// TokenConfig returns the codec settings.
func (c *Config) TokenConfig() auth.TokenConfig {
	return auth.TokenConfig{
		AccessSecret:  c.Tokens.AccessSecret,
		RefreshSecret: c.Tokens.RefreshSecret,
		AccessTTL:     c.Tokens.AccessTTL,
		RefreshTTL:    c.Tokens.RefreshTTL,
		Issuer:        c.Tokens.Issuer,
	}
}

// SMTPConfig returns the SMTP notifier settings.
func (c *Config) SMTPConfig() notify.SMTPConfig {
	return notify.SMTPConfig{
		Host:     c.Mail.Host,
		Port:     c.Mail.Port,
		Username: c.Mail.Username,
		Password: c.Mail.Password,
		From:     c.Mail.From,
		TLS:      c.Mail.TLS,
		Timeout:  c.Mail.Timeout,
	}
}

// RateLimitConfig returns the rate gate settings.
func (c *Config) RateLimitConfig() ratelimit.Config {
	return ratelimit.Config{
		Limit:  c.RateLimit.Limit,
		Window: c.RateLimit.Window,
	}
}

// LoggingOptions returns logger settings for the named service.
func (c *Config) LoggingOptions(service, version string) logging.Options {
	return logging.Options{
		Service: service,
		Version: version,
		Format:  c.Log.Format,
		Level:   c.Log.Level,
	}
}
