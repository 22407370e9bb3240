// Package config loads the Argus service configuration from file and
// environment via viper.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// DataPaths holds data directory and file path configuration.
type DataPaths struct {
	// DataDir is the base data directory (ARGUS_DATA_PATHS_DATA_DIR, default ./data)
	DataDir string `mapstructure:"data_dir"`
	// SQLitePath is the database file path (default ${DataDir}/argus.db)
	SQLitePath string `mapstructure:"sqlite_path"`
}

// Config holds all configuration for the Argus service.
type Config struct {
	DataPaths DataPaths `mapstructure:"data_paths"`

	API struct {
		Host      string `mapstructure:"host"`
		Port      int    `mapstructure:"port"`
		RateLimit struct {
			RequestsPerSecond int `mapstructure:"requests_per_second"`
			Burst             int `mapstructure:"burst"`
		} `mapstructure:"rate_limit"`
	} `mapstructure:"api"`

	Engine struct {
		// SeedRuleBase installs the built-in rule base on startup when the
		// rules table is missing entries.
		SeedRuleBase bool `mapstructure:"seed_rule_base"`
		// MaxRules caps the rule base size accepted from storage per run.
		MaxRules int `mapstructure:"max_rules"`
	} `mapstructure:"engine"`

	Logging struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"logging"`
}

// LoadConfig reads configuration from argus.yaml (working directory or
// /etc/argus) and ARGUS_* environment variables, applying defaults for
// everything unset.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName("argus")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/argus")

	v.SetEnvPrefix("ARGUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; anything else (malformed YAML,
		// unreadable file) is not.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.DataPaths.SQLitePath == "" {
		cfg.DataPaths.SQLitePath = filepath.Join(cfg.DataPaths.DataDir, "argus.db")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_paths.data_dir", "./data")

	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.rate_limit.requests_per_second", 50)
	v.SetDefault("api.rate_limit.burst", 100)

	v.SetDefault("engine.seed_rule_base", true)
	v.SetDefault("engine.max_rules", 10000)

	v.SetDefault("logging.level", "info")
}

// Validate checks the configuration for values that would fail later in a
// less obvious place.
func (c *Config) Validate() error {
	if c.API.Port < 1 || c.API.Port > 65535 {
		return fmt.Errorf("invalid API port: %d", c.API.Port)
	}
	if c.API.RateLimit.RequestsPerSecond < 1 {
		return fmt.Errorf("invalid rate limit: %d requests/second", c.API.RateLimit.RequestsPerSecond)
	}
	if c.API.RateLimit.Burst < 1 {
		return fmt.Errorf("invalid rate limit burst: %d", c.API.RateLimit.Burst)
	}
	if c.Engine.MaxRules < 1 {
		return fmt.Errorf("invalid max_rules: %d", c.Engine.MaxRules)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging level: %q", c.Logging.Level)
	}
	return nil
}
