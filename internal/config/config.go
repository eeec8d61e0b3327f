// Package config provides Viper-based hierarchical configuration for the
// ingestion pipeline: defaults, optional config.yaml, then environment
// variables prefixed FINOT_. The Gemini API key is bound unprefixed.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"finot/ingest/internal/logging"
)

var envOnce sync.Once

// Config is the complete application configuration.
type Config struct {
	Log struct {
		Level  string `mapstructure:"level" yaml:"level"`
		Format string `mapstructure:"format" yaml:"format"`
	} `mapstructure:"log" yaml:"log"`

	AI struct {
		Model             string  `mapstructure:"model" yaml:"model"`
		TimeoutSeconds    int     `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
		RepairAttempts    int     `mapstructure:"repair_attempts" yaml:"repair_attempts"`
		DefaultConfidence float64 `mapstructure:"default_confidence" yaml:"default_confidence"`
		APIKey            string  `mapstructure:"api_key" yaml:"-"` // never serialized
	} `mapstructure:"ai" yaml:"ai"`

	OCR struct {
		LanguageHints   []string `mapstructure:"language_hints" yaml:"language_hints"`
		ConfidenceFloor float64  `mapstructure:"confidence_floor" yaml:"confidence_floor"`
		TargetHeight    int      `mapstructure:"target_height" yaml:"target_height"`
	} `mapstructure:"ocr" yaml:"ocr"`

	Audio struct {
		TargetSampleRate   int `mapstructure:"target_sample_rate" yaml:"target_sample_rate"`
		MaxDurationSeconds int `mapstructure:"max_duration_seconds" yaml:"max_duration_seconds"`
	} `mapstructure:"audio" yaml:"audio"`

	Validation struct {
		MaxAmount       string  `mapstructure:"max_amount" yaml:"max_amount"`
		FutureDays      int     `mapstructure:"future_days" yaml:"future_days"`
		RetentionDays   int     `mapstructure:"retention_days" yaml:"retention_days"`
		ConfidenceFloor float64 `mapstructure:"confidence_floor" yaml:"confidence_floor"`
	} `mapstructure:"validation" yaml:"validation"`

	Credits struct {
		FreeAllotment int    `mapstructure:"free_allotment" yaml:"free_allotment"`
		ProWeekly     int    `mapstructure:"pro_weekly" yaml:"pro_weekly"`
		EliteWeekly   int    `mapstructure:"elite_weekly" yaml:"elite_weekly"`
		LedgerPath    string `mapstructure:"ledger_path" yaml:"ledger_path"`
	} `mapstructure:"credits" yaml:"credits"`

	Pipeline struct {
		MaxRetries    int `mapstructure:"max_retries" yaml:"max_retries"`
		BackoffBaseMS int `mapstructure:"backoff_base_ms" yaml:"backoff_base_ms"`
		QueueBuffer   int `mapstructure:"queue_buffer" yaml:"queue_buffer"`
	} `mapstructure:"pipeline" yaml:"pipeline"`

	Catalog struct {
		CategoriesFile string `mapstructure:"categories_file" yaml:"categories_file"`
	} `mapstructure:"catalog" yaml:"catalog"`
}

// AITimeout returns the LLM call timeout as a duration.
func (c *Config) AITimeout() time.Duration {
	return time.Duration(c.AI.TimeoutSeconds) * time.Second
}

// BackoffBase returns the base retry backoff as a duration.
func (c *Config) BackoffBase() time.Duration {
	return time.Duration(c.Pipeline.BackoffBaseMS) * time.Millisecond
}

// MaxAudioDuration returns the voice-note duration cap.
func (c *Config) MaxAudioDuration() time.Duration {
	return time.Duration(c.Audio.MaxDurationSeconds) * time.Second
}

// InitializeConfig loads configuration with hierarchical precedence.
func InitializeConfig() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("$HOME/.finot")
	v.AddConfigPath(".finot")
	v.AddConfigPath(".")

	v.SetEnvPrefix("FINOT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Keep going with defaults and env vars
			fmt.Printf("Warning: error reading config file %s: %v\n", v.ConfigFileUsed(), err)
		}
	}

	// API key always comes from the environment, unprefixed
	if err := v.BindEnv("ai.api_key", "GEMINI_API_KEY"); err != nil {
		fmt.Printf("Warning: failed to bind GEMINI_API_KEY environment variable: %v\n", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("ai.model", "gemini-1.5-flash")
	v.SetDefault("ai.timeout_seconds", 30)
	v.SetDefault("ai.repair_attempts", 1)
	v.SetDefault("ai.default_confidence", 0.55)

	v.SetDefault("ocr.language_hints", []string{"ind", "eng"})
	v.SetDefault("ocr.confidence_floor", 0.5)
	v.SetDefault("ocr.target_height", 1600)

	v.SetDefault("audio.target_sample_rate", 16000)
	v.SetDefault("audio.max_duration_seconds", 120)

	v.SetDefault("validation.max_amount", "1000000000")
	v.SetDefault("validation.future_days", 1)
	v.SetDefault("validation.retention_days", 365)
	v.SetDefault("validation.confidence_floor", 0.6)

	v.SetDefault("credits.free_allotment", 5)
	v.SetDefault("credits.pro_weekly", 50)
	v.SetDefault("credits.elite_weekly", 150)
	v.SetDefault("credits.ledger_path", "")

	v.SetDefault("pipeline.max_retries", 3)
	v.SetDefault("pipeline.backoff_base_ms", 200)
	v.SetDefault("pipeline.queue_buffer", 16)

	v.SetDefault("catalog.categories_file", "")
}

// validateConfig rejects values the pipeline cannot operate with.
func validateConfig(c *Config) error {
	if c.AI.RepairAttempts < 0 {
		return fmt.Errorf("ai.repair_attempts must be >= 0, got %d", c.AI.RepairAttempts)
	}
	if c.AI.DefaultConfidence < 0 || c.AI.DefaultConfidence > 1 {
		return fmt.Errorf("ai.default_confidence must be in [0,1], got %f", c.AI.DefaultConfidence)
	}
	if c.OCR.ConfidenceFloor < 0 || c.OCR.ConfidenceFloor > 1 {
		return fmt.Errorf("ocr.confidence_floor must be in [0,1], got %f", c.OCR.ConfidenceFloor)
	}
	if c.Validation.ConfidenceFloor < 0 || c.Validation.ConfidenceFloor > 1 {
		return fmt.Errorf("validation.confidence_floor must be in [0,1], got %f", c.Validation.ConfidenceFloor)
	}
	if c.Credits.FreeAllotment < 0 || c.Credits.ProWeekly < 0 || c.Credits.EliteWeekly < 0 {
		return fmt.Errorf("credit allotments must be >= 0")
	}
	if c.Pipeline.MaxRetries < 0 {
		return fmt.Errorf("pipeline.max_retries must be >= 0, got %d", c.Pipeline.MaxRetries)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be 'text' or 'json', got %q", c.Log.Format)
	}
	return nil
}

// LoadEnv loads environment variables from a .env file if one exists in the
// working directory or the project root.
func LoadEnv() {
	envOnce.Do(func() {
		envFile := ".env"
		if _, err := os.Stat(envFile); os.IsNotExist(err) {
			envFile = filepath.Join("..", ".env")
			if _, err := os.Stat(envFile); os.IsNotExist(err) {
				return
			}
		}
		_ = godotenv.Load(envFile)
	})
}

// NewLogger builds the application logger from the loaded configuration.
func NewLogger(c *Config) logging.Logger {
	return logging.NewLogrusAdapter(c.Log.Level, c.Log.Format)
}
