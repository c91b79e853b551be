// Package config loads settings from defaults, an optional config file, an
// optional .env file, WECONNECT_* environment variables and command-line
// flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/dutchyankee87/weconnect-translate/internal/orchestrator"
	"github.com/dutchyankee87/weconnect-translate/internal/translator"
)

const EnvPrefix = "WECONNECT"

type Config struct {
	DB            string `mapstructure:"db"`
	DataDir       string `mapstructure:"data_dir"`
	OutboxDir     string `mapstructure:"outbox_dir"`
	ReviewBaseURL string `mapstructure:"review_base_url"`
	LogLevel      string `mapstructure:"log_level"`
	LogFormat     string `mapstructure:"log_format"`

	Provider     ProviderConfig      `mapstructure:"provider"`
	Orchestrator orchestrator.Config `mapstructure:"orchestrator"`
	Server       ServerConfig        `mapstructure:"server"`
}

type ProviderConfig struct {
	Name                      string `mapstructure:"name"`
	translator.ServiceConfig  `mapstructure:",squash"`
	translator.ThrottleConfig `mapstructure:",squash"`
}

type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
	ShutdownGrace  time.Duration `mapstructure:"shutdown_grace"`
}

var defaults = map[string]any{
	"db":              "./data/weconnect.db",
	"data_dir":        "./data",
	"outbox_dir":      "./data/outbox",
	"review_base_url": "http://localhost:8080",
	"log_level":       "info",
	"log_format":      "text",

	"provider.name":                "deepl",
	"provider.api_key":             "",
	"provider.base_url":            "",
	"provider.credentials":         "",
	"provider.project_id":          "",
	"provider.timeout":             60 * time.Second,
	"provider.poll_interval":       2 * time.Second,
	"provider.document_timeout":    15 * time.Minute,
	"provider.requests_per_second": 5.0,
	"provider.burst":               5,
	"provider.rate_limit_retries":  3,
	"provider.initial_backoff":     time.Second,

	"orchestrator.batch_size":         3,
	"orchestrator.batch_delay":        2 * time.Second,
	"orchestrator.override_threshold": 0.7,
	"orchestrator.document_timeout":   15 * time.Minute,
	"orchestrator.max_segment_chars":  5000,

	"server.addr":             ":8080",
	"server.max_upload_bytes": int64(32 << 20),
	"server.shutdown_grace":   30 * time.Second,
}

// flagKeys maps command-line flag names to configuration keys. Only flags
// present in the given FlagSet are bound.
var flagKeys = map[string]string{
	"db":              "db",
	"data-dir":        "data_dir",
	"outbox-dir":      "outbox_dir",
	"review-base-url": "review_base_url",
	"log-level":       "log_level",
	"log-format":      "log_format",
	"provider":        "provider.name",
	"api-key":         "provider.api_key",
	"credentials":     "provider.credentials",
	"project":         "provider.project_id",
	"batch-size":      "orchestrator.batch_size",
	"batch-delay":     "orchestrator.batch_delay",
	"addr":            "server.addr",
}

// Load reads the configuration. envFile may be empty or name a missing
// file. A "config" flag in flags names an optional YAML/TOML/JSON file.
func Load(envFile string, flags *pflag.FlagSet) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
		if f := flags.Lookup("config"); f != nil && f.Value.String() != "" {
			v.SetConfigFile(f.Value.String())
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	cfg.Provider.Name = strings.ToLower(strings.TrimSpace(cfg.Provider.Name))
	cfg.Orchestrator.ReviewBaseURL = strings.TrimRight(cfg.ReviewBaseURL, "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that have no usable fallback.
func (c *Config) Validate() error {
	var errs []error
	switch c.Provider.Name {
	case "deepl", "google":
	default:
		errs = append(errs, fmt.Errorf("provider.name: unknown provider %q (want deepl or google)", c.Provider.Name))
	}
	if c.DB == "" {
		errs = append(errs, errors.New("db: a database path is required"))
	}
	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir: a data directory is required"))
	}
	if c.Orchestrator.OverrideThreshold < 0 || c.Orchestrator.OverrideThreshold > 1 {
		errs = append(errs, fmt.Errorf("orchestrator.override_threshold: %v is outside [0, 1]", c.Orchestrator.OverrideThreshold))
	}
	return errors.Join(errs...)
}

// RequireCredentials reports a missing provider key. Commands that never
// call the provider skip it.
func (c *Config) RequireCredentials() error {
	if c.Provider.Name == "deepl" && c.Provider.APIKey == "" {
		return fmt.Errorf("a DeepL API key is required (set %s_PROVIDER_API_KEY or --api-key)", EnvPrefix)
	}
	if c.Provider.Name == "google" && c.Provider.APIKey == "" && c.Provider.Credentials == "" {
		return fmt.Errorf("google needs an API key or a credentials file (set %s_PROVIDER_CREDENTIALS)", EnvPrefix)
	}
	return nil
}
