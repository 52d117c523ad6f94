package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/hollowaylabs/patchbay/pkg/llm"
)

// Config represents the persistent patchbay configuration stored as
// config.toml in the .patchbay/ directory. Models are an array of tables so
// one config can describe every endpoint the user talks to.
type Config struct {
	Version      int          `toml:"version"`
	DefaultModel string       `toml:"default_model,omitempty"`
	Client       ClientConfig `toml:"client"`
	Models       []ModelEntry `toml:"models"`
}

// ClientConfig holds settings shared by all CLI commands.
type ClientConfig struct {
	Debug  bool `toml:"debug,omitempty"`
	Pretty bool `toml:"pretty,omitempty"`
}

// ModelEntry is the TOML form of one model endpoint. API keys are not
// stored inline; APIKeyEnv names the environment variable to read at use
// time.
type ModelEntry struct {
	Name      string `toml:"name"`
	Protocol  string `toml:"protocol"`
	BaseURL   string `toml:"base_url"`
	APIKeyEnv string `toml:"api_key_env,omitempty"`

	Temperature *float64 `toml:"temperature,omitempty"`
	TopP        *float64 `toml:"top_p,omitempty"`
	TopK        *int     `toml:"top_k,omitempty"`
	Seed        *int     `toml:"seed,omitempty"`
	Stop        []string `toml:"stop,omitempty"`

	MaxTokens           *int `toml:"max_tokens,omitempty"`
	MaxCompletionTokens *int `toml:"max_completion_tokens,omitempty"`
	MaxOutputTokens     *int `toml:"max_output_tokens,omitempty"`

	ReasoningEffort    string `toml:"reasoning_effort,omitempty"`
	ThinkingBudget     *int   `toml:"thinking_budget,omitempty"`
	IncludeReasoning   bool   `toml:"include_reasoning,omitempty"`
	ScanReasoningTags  bool   `toml:"scan_reasoning_tags,omitempty"`
	ReasoningInRequest bool   `toml:"reasoning_in_request,omitempty"`

	Headers map[string]string `toml:"headers,omitempty"`
	Delay   string            `toml:"delay,omitempty"`
	Retry   RetryEntry        `toml:"retry,omitempty"`
	Extra   map[string]any    `toml:"extra,omitempty"`
}

// RetryEntry is the TOML form of a model's retry config.
type RetryEntry struct {
	Enabled          bool   `toml:"enabled,omitempty"`
	MaxAttempts      int    `toml:"max_attempts,omitempty"`
	Interval         string `toml:"interval,omitempty"`
	ExtraStatusCodes []int  `toml:"extra_status_codes,omitempty"`
}

// ToModelConfig resolves the entry into a runtime llm.ModelConfig, reading
// the API key from the named environment variable and parsing durations.
func (e *ModelEntry) ToModelConfig() (llm.ModelConfig, error) {
	cfg := llm.ModelConfig{
		Name:     e.Name,
		Protocol: e.Protocol,
		BaseURL:  e.BaseURL,

		Temperature: e.Temperature,
		TopP:        e.TopP,
		TopK:        e.TopK,
		Seed:        e.Seed,
		Stop:        e.Stop,

		MaxTokens:           e.MaxTokens,
		MaxCompletionTokens: e.MaxCompletionTokens,
		MaxOutputTokens:     e.MaxOutputTokens,

		ReasoningEffort:    e.ReasoningEffort,
		ThinkingBudget:     e.ThinkingBudget,
		IncludeReasoning:   e.IncludeReasoning,
		ScanReasoningTags:  e.ScanReasoningTags,
		ReasoningInRequest: e.ReasoningInRequest,

		Headers: e.Headers,
		Extra:   e.Extra,
	}

	if e.APIKeyEnv != "" {
		cfg.APIKey = os.Getenv(e.APIKeyEnv)
	}

	if e.Delay != "" {
		delay, err := time.ParseDuration(e.Delay)
		if err != nil {
			return llm.ModelConfig{}, fmt.Errorf("model %q: invalid delay: %w", e.Name, err)
		}
		cfg.Delay = delay
	}

	cfg.Retry = llm.RetryConfig{
		Enabled:          e.Retry.Enabled,
		MaxAttempts:      e.Retry.MaxAttempts,
		ExtraStatusCodes: e.Retry.ExtraStatusCodes,
	}
	if e.Retry.Interval != "" {
		interval, err := time.ParseDuration(e.Retry.Interval)
		if err != nil {
			return llm.ModelConfig{}, fmt.Errorf("model %q: invalid retry interval: %w", e.Name, err)
		}
		cfg.Retry.Interval = interval
	}

	return cfg, nil
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported scalar config keys.
// Model entries are managed by editing the file directly; only top-level
// scalars are settable through the CLI.
var configKeys = map[string]configKeyInfo{
	"default_model": {
		get: func(c *Config) string { return c.DefaultModel },
		set: func(c *Config, v string) error { c.DefaultModel = v; return nil },
	},
	"client.debug": {
		get: func(c *Config) string { return strconv.FormatBool(c.Client.Debug) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for client.debug: %w", err)
			}
			c.Client.Debug = b
			return nil
		},
	},
	"client.pretty": {
		get: func(c *Config) string { return strconv.FormatBool(c.Client.Pretty) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for client.pretty: %w", err)
			}
			c.Client.Pretty = b
			return nil
		},
	},
}
