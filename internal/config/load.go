package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable read by Load.
const EnvPrefix = "BEWERBUNG"

// defaults lists every known key. Registering each key with viper is what
// lets AutomaticEnv values reach Unmarshal.
var defaults = map[string]any{
	"server.port":             8080,
	"server.log_level":        "info",
	"server.shutdown_timeout": 15 * time.Second,

	"database.url":               "",
	"database.max_open_conns":    25,
	"database.max_idle_conns":    25,
	"database.conn_max_lifetime": 5 * time.Minute,

	"auth.jwt_secret": "",
	"auth.admin_role": "admin",

	"llm.openai_api_key":     "",
	"llm.openai_base_url":    "https://api.openai.com/v1",
	"llm.anthropic_api_key":  "",
	"llm.anthropic_base_url": "https://api.anthropic.com/v1",
	"llm.google_api_key":     "",
	"llm.request_timeout":    90 * time.Second,
	"llm.max_retries":        3,
	"llm.initial_backoff":    time.Second,
	"llm.max_backoff":        20 * time.Second,
	"llm.matching_provider":  "openai",
	"llm.matching_model":     "gpt-4o-mini",

	"tasks.worker_count":              2,
	"tasks.queue_size":                100,
	"tasks.stuck_task_age":            30 * time.Minute,
	"tasks.stuck_task_check_interval": 5 * time.Minute,
	"tasks.document_concurrency":      3,

	"credits.matching_score_cost": 1,
}

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom behaves like Load but reads the config file at path when it is
// non-empty instead of searching the working directory.
func LoadFrom(path string) (*Config, error) {
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}
