// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package config

import (
	"os"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvSecrets maps environment variables to the config keys they set. They
// are applied after every other layer.
var EnvSecrets = map[string]string{
	"DATABASE_URL":       "database.url",
	"JWT_SECRET":         "tokens.access_secret",
	"JWT_REFRESH_SECRET": "tokens.refresh_secret",
	"SMTP_PASS":          "mail.password",
}

// flagKeys maps command-line flags to config keys.
var flagKeys = map[string]string{
	"addr":         "server.addr",
	"production":   "server.production",
	"metrics-addr": "metrics.addr",
	"base-url":     "app.base_url",
	"auto-migrate": "database.auto_migrate",
	"mail-driver":  "mail.driver",
	"log-format":   "log.format",
	"log-level":    "log.level",
}

// RegisterFlags adds the configuration flags to fs. Their defaults mirror
// Defaults and only changed flags override the file.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Defaults()
	fs.String("addr", d.Server.Addr, "API listen address")
	fs.Bool("production", d.Server.Production, "production mode (Secure cookies)")
	fs.String("metrics-addr", d.Metrics.Addr, "metrics and health listen address (empty disables)")
	fs.String("base-url", d.App.BaseURL, "public URL used in email links")
	fs.Bool("auto-migrate", d.Database.AutoMigrate, "apply pending migrations before serving")
	fs.String("mail-driver", d.Mail.Driver, "notifier driver (smtp, log)")
	fs.String("log-format", d.Log.Format, "log format (json, text)")
	fs.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
}

// LoadOptions selects the sources Load reads.
type LoadOptions struct {
	// Path is an optional YAML config file.
	Path string

	// Flags holds flags registered with RegisterFlags. May be nil.
	Flags *pflag.FlagSet

	// LookupEnv defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

// Load builds the configuration from defaults, the config file, flags and
// environment secrets, in that order. It does not call Validate.
func Load(opts LoadOptions) (*Config, error) {
	k := koanf.New(".")

	defaults, err := yamlv3.Marshal(Defaults())
	if err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("layer", "defaults").Wrap(err)
	}
	if err := k.Load(rawBytes(defaults), yaml.Parser()); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("layer", "defaults").Wrap(err)
	}

	if opts.Path != "" {
		provider := file.Provider(opts.Path)
		data, err := provider.ReadBytes()
		if err != nil {
			return nil, oops.Code("CONFIG_READ_FAILED").With("path", opts.Path).Wrap(err)
		}
		if err := ValidateSchema(data); err != nil {
			return nil, oops.Code("CONFIG_SCHEMA_INVALID").With("path", opts.Path).Wrap(err)
		}
		if err := k.Load(rawBytes(data), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("path", opts.Path).Wrap(err)
		}
	}

	if opts.Flags != nil {
		provider := posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(opts.Flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("layer", "flags").Wrap(err)
		}
	}

	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	for env, key := range EnvSecrets {
		if val, ok := lookup(env); ok && val != "" {
			if err := k.Set(key, val); err != nil {
				return nil, oops.Code("CONFIG_LOAD_FAILED").With("env", env).Wrap(err)
			}
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("operation", "unmarshal config").Wrap(err)
	}
	return &cfg, nil
}

// rawBytes is a koanf provider over an in-memory document.
type rawBytes []byte

func (r rawBytes) ReadBytes() ([]byte, error) { return r, nil }

func (r rawBytes) Read() (map[string]any, error) {
	return nil, oops.Code("CONFIG_LOAD_FAILED").Errorf("raw bytes provider requires a parser")
}

const redacted = "[REDACTED]"

// Redacted returns a copy of c with secrets masked.
func (c *Config) Redacted() Config {
	out := *c
	mask := func(s *string) {
		if *s != "" {
			*s = redacted
		}
	}
	mask(&out.Database.URL)
	mask(&out.Tokens.AccessSecret)
	mask(&out.Tokens.RefreshSecret)
	mask(&out.Mail.Password)
	return out
}

// Show renders the effective configuration as YAML with secrets redacted.
func (c *Config) Show() ([]byte, error) {
	data, err := yamlv3.Marshal(c.Redacted())
	if err != nil {
		return nil, oops.Code("CONFIG_SHOW_FAILED").Wrap(err)
	}
	return data, nil
}
