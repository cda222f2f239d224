// Package config loads rmmhunt configuration from the environment and
// an optional config file.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	// API client settings
	APIKey     string        `mapstructure:"api_key"`
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
	PageSize   int           `mapstructure:"page_size"`

	// Hunt settings
	Workers       int    `mapstructure:"workers"`
	RepoURL       string `mapstructure:"repo_url"`
	SignaturesDir string `mapstructure:"signatures_dir"`
	Output        string `mapstructure:"output"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Timeout:    30 * time.Second,
		MaxRetries: 3,
		PageSize:   100,
		Workers:    5,
		RepoURL:    "https://github.com/LivingInSyn/RMML.git",
		Output:     "all_indicating_activities.csv",
	}
}

// Load reads configuration from .rmmhunt.yaml (if present) and RMMHUNT_*
// environment variables, on top of defaults. Environment variables take
// precedence over the config file.
func Load() (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigName(".rmmhunt")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME")

	v.SetEnvPrefix("RMMHUNT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("api_key", cfg.APIKey)
	v.SetDefault("base_url", cfg.BaseURL)
	v.SetDefault("timeout", cfg.Timeout)
	v.SetDefault("max_retries", cfg.MaxRetries)
	v.SetDefault("page_size", cfg.PageSize)
	v.SetDefault("workers", cfg.Workers)
	v.SetDefault("repo_url", cfg.RepoURL)
	v.SetDefault("signatures_dir", cfg.SignaturesDir)
	v.SetDefault("output", cfg.Output)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
