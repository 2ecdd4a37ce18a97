package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth"     validate:"required"`
	LLM      LLMConfig      `mapstructure:"llm"      validate:"required"`
	Tasks    TasksConfig    `mapstructure:"tasks"    validate:"required"`
	Credits  CreditsConfig  `mapstructure:"credits"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port"             validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level"        validate:"required,oneof=debug info warn error"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gte=0"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url"               validate:"required,url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"    validate:"gte=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"gte=0"`
}

// AuthConfig contains the settings used to validate bearer tokens issued by
// the identity collaborator.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"required,min=32"`
	AdminRole string `mapstructure:"admin_role" validate:"required"`
}

// LLMConfig contains provider credentials and the shared call policy.
// Keys are optional individually; a provider without a key is not registered
// and templates pointing at it fail at dispatch.
type LLMConfig struct {
	OpenAIAPIKey     string `mapstructure:"openai_api_key"`
	OpenAIBaseURL    string `mapstructure:"openai_base_url"    validate:"required,url"`
	AnthropicAPIKey  string `mapstructure:"anthropic_api_key"`
	AnthropicBaseURL string `mapstructure:"anthropic_base_url" validate:"required,url"`
	GoogleAPIKey     string `mapstructure:"google_api_key"`

	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"gt=0"`
	MaxRetries     int           `mapstructure:"max_retries"     validate:"gte=0,lte=10"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff" validate:"gt=0"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"     validate:"gtefield=InitialBackoff"`

	// MatchingProvider and MatchingModel select the backend for score calculation.
	MatchingProvider string `mapstructure:"matching_provider" validate:"required,oneof=openai anthropic google"`
	MatchingModel    string `mapstructure:"matching_model"    validate:"required"`
}

// TasksConfig controls the background task runner.
type TasksConfig struct {
	WorkerCount            int           `mapstructure:"worker_count"              validate:"gt=0"`
	QueueSize              int           `mapstructure:"queue_size"                validate:"gt=0"`
	StuckTaskAge           time.Duration `mapstructure:"stuck_task_age"            validate:"gt=0"`
	StuckTaskCheckInterval time.Duration `mapstructure:"stuck_task_check_interval" validate:"gt=0"`
	// DocumentConcurrency bounds how many documents of one generation task
	// are in flight at the same time.
	DocumentConcurrency int `mapstructure:"document_concurrency" validate:"gt=0,lte=16"`
}

// CreditsConfig holds pricing that is not carried by a template.
type CreditsConfig struct {
	MatchingScoreCost int `mapstructure:"matching_score_cost" validate:"gte=0,lte=10"`
}
