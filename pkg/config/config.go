package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	// Log configuration
	Log LogConfig `mapstructure:"log"`

	// Server configuration
	Server ServerConfig `mapstructure:"server"`

	// Database configuration
	Database DatabaseConfig `mapstructure:"database"`

	// NLP configuration
	NLP NLPConfig `mapstructure:"nlp"`

	// Embedding configuration
	Embedding EmbeddingConfig `mapstructure:"embedding"`

	Chunking ChunkingConfig `mapstructure:"chunking"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Data     DataConfig     `mapstructure:"data"`

	// Telemetry configuration
	Telemetry TelemetryConfig `mapstructure:"telemetry"`

	// CircuitBreaker configuration
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`

	Retry    RetryConfig    `mapstructure:"retry"`
	Registry RegistryConfig `mapstructure:"registry"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=console text json"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port" validate:"min=1,max=65535"`
	Mode string `mapstructure:"mode" validate:"oneof=debug release test"` // gin mode
}

// Addr returns host:port for the HTTP listener.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Provider string `mapstructure:"provider" validate:"oneof=neo4j memory"`
	URI      string `mapstructure:"uri" validate:"required_if=Provider neo4j"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// NLPConfig configures the OpenAI-compatible chat collaborator. The large
// model handles resolution, the small one extraction.
type NLPConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url" validate:"omitempty,url"`
	LargeModel  string        `mapstructure:"large_model" validate:"required"`
	SmallModel  string        `mapstructure:"small_model" validate:"required"`
	Temperature float32       `mapstructure:"temperature" validate:"gte=0,lte=2"`
	MaxTokens   int           `mapstructure:"max_tokens" validate:"gt=0"`
	Timeout     time.Duration `mapstructure:"timeout" validate:"gte=0"`
}

// EmbeddingConfig holds embedding configuration
type EmbeddingConfig struct {
	Model      string `mapstructure:"model" validate:"required"`
	BaseURL    string `mapstructure:"base_url" validate:"omitempty,url"`
	Dimensions int    `mapstructure:"dimensions" validate:"gt=0"`
	BatchSize  int    `mapstructure:"batch_size" validate:"gt=0"`
	// CachePath enables the on-disk embedding cache when set.
	CachePath string `mapstructure:"cache_path"`
}

// ChunkingConfig sizes paragraph chunks, in characters.
type ChunkingConfig struct {
	TargetSize int `mapstructure:"target_size" validate:"gt=0,gtefield=MinSize"`
	MinSize    int `mapstructure:"min_size" validate:"gte=0"` // 0 disables the minimum
}

// PipelineConfig tunes the extraction and resolution stages.
type PipelineConfig struct {
	HistoryWindow     int  `mapstructure:"history_window" validate:"gte=0"`
	Concurrency       int  `mapstructure:"concurrency" validate:"gt=0"`
	ChunkLimit        int  `mapstructure:"chunk_limit" validate:"gte=0"` // 0 processes every chunk
	SplitConjunctions bool `mapstructure:"split_conjunctions"`           // also splits fixed phrases like "bread and butter"
}

// DataConfig locates the per-session artifact folders.
type DataConfig struct {
	Path       string `mapstructure:"path" validate:"required"`
	NamePrefix string `mapstructure:"name_prefix" validate:"required,excludesall=/"`
}

// TelemetryConfig holds telemetry configuration
type TelemetryConfig struct {
	// ParquetPath receives error-level log records; empty disables it.
	ParquetPath string `mapstructure:"parquet_path"`
	// TokenPath receives per-call token usage; empty disables it.
	TokenPath string `mapstructure:"token_path"`
}

// CircuitBreakerConfig holds configuration for circuit breaking
type CircuitBreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	MaxRequests      uint32        `mapstructure:"max_requests"`
	Interval         time.Duration `mapstructure:"interval"`
	Timeout          time.Duration `mapstructure:"timeout"`
	ReadyToTripRatio float64       `mapstructure:"ready_to_trip_ratio" validate:"gte=0,lte=1"`
}

// RetryConfig holds the collaborator retry policy.
type RetryConfig struct {
	MaxRetries        int           `mapstructure:"max_retries" validate:"gte=0"`
	InitialDelay      time.Duration `mapstructure:"initial_delay"`
	MaxDelay          time.Duration `mapstructure:"max_delay"`
	BackoffMultiplier float64       `mapstructure:"backoff_multiplier" validate:"gte=1"`
}

// RegistryConfig points at an optional YAML category registry. Empty means
// the built-in crime registry.
type RegistryConfig struct {
	Path string `mapstructure:"path"`
}

// Options controls where Load looks for configuration.
type Options struct {
	// ConfigFile is an explicit YAML file. When empty, config.yaml is looked
	// up in the working directory and $HOME/.noirgraph.
	ConfigFile string
	// EnvFile is loaded into the process environment before anything is
	// read. Defaults to .env; a missing file is not an error.
	EnvFile string
}

// envBindings maps environment variables to config keys.
var envBindings = map[string]string{
	"database.uri":      "NEO4J_URI",
	"database.username": "NEO4J_USERNAME",
	"database.password": "NEO4J_PASSWORD",
	"nlp.api_key":       "OPENAI_API_KEY",
	"nlp.base_url":      "OPENAI_BASE_URL",
	"nlp.large_model":   "LARGE_MODEL_NAME",
	"nlp.small_model":   "SMALL_MODEL_NAME",
	"data.path":         "DATA_PATH",
	"data.name_prefix":  "DATA_NAME_PREFIX",
}

// Load reads .env, defaults, the optional config file and the environment,
// in increasing order of precedence, then validates the result.
func Load(opts Options) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	v := viper.New()
	setDefaults(v)

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home + "/.noirgraph")
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.ConfigFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("NOIRGRAPH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, "NOIRGRAPH_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Default returns the built-in configuration without reading files or the
// environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	config := &Config{}
	// Defaults always decode.
	_ = v.Unmarshal(config)
	return config
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")

	v.SetDefault("database.provider", "neo4j")
	v.SetDefault("database.uri", "bolt://localhost:7687")
	v.SetDefault("database.username", "neo4j")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "")

	v.SetDefault("nlp.api_key", "")
	v.SetDefault("nlp.base_url", "")
	v.SetDefault("nlp.large_model", "gpt-5-mini")
	v.SetDefault("nlp.small_model", "gpt-5-nano")
	v.SetDefault("nlp.temperature", 1.0)
	v.SetDefault("nlp.max_tokens", 32000)
	v.SetDefault("nlp.timeout", 120*time.Second)

	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.base_url", "")
	v.SetDefault("embedding.dimensions", 1536)
	v.SetDefault("embedding.batch_size", 100)
	v.SetDefault("embedding.cache_path", "")

	v.SetDefault("chunking.target_size", 800)
	v.SetDefault("chunking.min_size", 100)

	v.SetDefault("pipeline.history_window", 3)
	v.SetDefault("pipeline.concurrency", 3)
	v.SetDefault("pipeline.chunk_limit", 0)
	v.SetDefault("pipeline.split_conjunctions", false)

	v.SetDefault("data.path", "data/students")
	v.SetDefault("data.name_prefix", "student")

	v.SetDefault("telemetry.parquet_path", "")
	v.SetDefault("telemetry.token_path", "")

	v.SetDefault("circuit_breaker.enabled", true)
	v.SetDefault("circuit_breaker.max_requests", 1)
	v.SetDefault("circuit_breaker.interval", 60*time.Second)
	v.SetDefault("circuit_breaker.timeout", 30*time.Second)
	v.SetDefault("circuit_breaker.ready_to_trip_ratio", 0.6)

	v.SetDefault("retry.max_retries", 3)
	v.SetDefault("retry.initial_delay", time.Second)
	v.SetDefault("retry.max_delay", 60*time.Second)
	v.SetDefault("retry.backoff_multiplier", 2.0)

	v.SetDefault("registry.path", "")
}
