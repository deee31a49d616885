// Package config loads toolloop settings from an optional YAML file and
// TOOLLOOP_* environment variables, in that order of precedence, and
// validates the result.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/martinemde/toolloop/agentloop"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "TOOLLOOP_"

// Adapter choices.
const (
	AdapterAuto      = "auto"
	AdapterGollm     = "gollm"
	AdapterAnthropic = "anthropic-sdk"
)

// Breaker mirrors agentloop.BreakerConfig.
type Breaker struct {
	FailureThreshold int           `yaml:"failure_threshold" env:"FAILURE_THRESHOLD" validate:"min=1"`
	SuccessThreshold int           `yaml:"success_threshold" env:"SUCCESS_THRESHOLD" validate:"min=1"`
	OpenTimeout      time.Duration `yaml:"open_timeout" env:"OPEN_TIMEOUT" validate:"gt=0"`
	HalfOpenMaxCalls int           `yaml:"half_open_max_calls" env:"HALF_OPEN_MAX_CALLS" validate:"min=1"`
}

// Config holds all runtime configuration.
type Config struct {
	Provider    string  `yaml:"provider" env:"PROVIDER" validate:"required"`
	Adapter     string  `yaml:"adapter" env:"ADAPTER" validate:"oneof=auto gollm anthropic-sdk"`
	Model       string  `yaml:"model" env:"MODEL"`
	APIKey      string  `yaml:"api_key" env:"API_KEY"` // empty: provider's own env var
	MaxTokens   int     `yaml:"max_tokens" env:"MAX_TOKENS" validate:"min=1"`
	Temperature float64 `yaml:"temperature" env:"TEMPERATURE" validate:"gte=0,lte=2"`
	Streaming   bool    `yaml:"streaming" env:"STREAMING"`

	MaxAutoSteps      int           `yaml:"max_auto_steps" env:"MAX_AUTO_STEPS" validate:"min=1"`
	CompactionCeiling int           `yaml:"compaction_ceiling" env:"COMPACTION_CEILING" validate:"min=1"`
	StallThreshold    int           `yaml:"stall_threshold" env:"STALL_THRESHOLD" validate:"min=2"`
	Breaker           Breaker       `yaml:"breaker" envPrefix:"BREAKER_"`
	ApprovalTimeout   time.Duration `yaml:"approval_timeout" env:"APPROVAL_TIMEOUT" validate:"gte=0"`
	GatedTools        []string      `yaml:"gated_tools" env:"GATED_TOOLS" envSeparator:"," validate:"dive,required"`
	Instructions      string        `yaml:"instructions" env:"INSTRUCTIONS"`

	WorkspaceRoot string `yaml:"workspace_root" env:"WORKSPACE_ROOT"`
	DataDir       string `yaml:"data_dir" env:"DATA_DIR" validate:"required"`
	LogLevel      string `yaml:"log_level" env:"LOG_LEVEL" validate:"oneof=trace debug info warn error"`
}

// Default returns the built-in configuration.
func Default() *Config {
	bc := agentloop.DefaultBreakerConfig()
	return &Config{
		Provider:          "anthropic",
		Adapter:           AdapterAuto,
		MaxTokens:         4096,
		Temperature:       0.2,
		Streaming:         true,
		MaxAutoSteps:      agentloop.DefaultMaxAutoSteps,
		CompactionCeiling: agentloop.DefaultCompactionCeiling,
		StallThreshold:    agentloop.DefaultStallThreshold,
		Breaker: Breaker{
			FailureThreshold: bc.FailureThreshold,
			SuccessThreshold: bc.SuccessThreshold,
			OpenTimeout:      bc.OpenTimeout,
			HalfOpenMaxCalls: bc.HalfOpenMaxCalls,
		},
		GatedTools: []string{"file_write", "file_edit"},
		DataDir:    ".toolloop",
		LogLevel:   "info",
	}
}

// Load builds a Config from the defaults, the YAML file at path (skipped
// when path is empty) and the environment, then validates it.
func Load(path string) (*Config, error) {
	c := Default()

	if path != "" {
		if err := c.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("config: environment: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config: %s: %w", path, err)
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and reports every violation.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		msgs = append(msgs, fmt.Sprintf("%s fails %s (got %v)", fe.Namespace(), rule, fe.Value()))
	}
	return fmt.Errorf("config: invalid: %s", strings.Join(msgs, "; "))
}

// UseAnthropicSDK reports whether the official Anthropic adapter is selected.
func (c *Config) UseAnthropicSDK() bool {
	switch c.Adapter {
	case AdapterAnthropic:
		return true
	case AdapterGollm:
		return false
	}
	return c.Provider == "anthropic"
}

// Level returns the zerolog level for LogLevel.
func (c *Config) Level() zerolog.Level {
	l, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return l
}

// ToLoopConfig converts to the per-session loop settings.
func (c *Config) ToLoopConfig() agentloop.Config {
	mode := agentloop.PromptStreaming
	if !c.Streaming {
		mode = agentloop.PromptBlocking
	}
	return agentloop.Config{
		MaxAutoSteps:      c.MaxAutoSteps,
		CompactionCeiling: c.CompactionCeiling,
		StallThreshold:    c.StallThreshold,
		Breaker: agentloop.BreakerConfig{
			FailureThreshold: c.Breaker.FailureThreshold,
			SuccessThreshold: c.Breaker.SuccessThreshold,
			OpenTimeout:      c.Breaker.OpenTimeout,
			HalfOpenMaxCalls: c.Breaker.HalfOpenMaxCalls,
		},
		PromptMode:      mode,
		ApprovalTimeout: c.ApprovalTimeout,
		Instructions:    c.Instructions,
	}
}
