package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/hollowaylabs/patchbay/pkg/dotdir"
	"github.com/hollowaylabs/patchbay/pkg/llm"
)

const (
	configFile = "config.toml"

	// v0 is the alpha version of the config
	v0 = 0

	// CurrentV is the currently supported version, points to v0
	CurrentV = v0
)

type Configer struct {
	ddm        *dotdir.Manager
	targetPath string
}

func NewConfiger(override string) (*Configer, error) {
	cfger := &Configer{}

	cfger.ddm = dotdir.NewManager()
	target, err := cfger.ddm.Target(override)
	if err != nil {
		return nil, err
	}

	// If no .patchbay/ directory was resolved, targetPath stays empty;
	// LoadConfig will return defaults and SaveConfig will error clearly.
	if target == "" {
		return cfger, nil
	}

	path := filepath.Join(target, configFile)
	_, err = os.Stat(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Always set targetPath when the directory exists so SaveConfig
	// can create or overwrite the file.
	cfger.targetPath = path

	return cfger, nil
}

// ValidConfigKeys returns the supported configuration key names in a
// stable, logical order.
func ValidConfigKeys() []string {
	ordered := []string{
		"default_model",
		"client.debug",
		"client.pretty",
	}

	result := make([]string, 0, len(configKeys))
	seen := make(map[string]bool, len(ordered))
	for _, k := range ordered {
		if _, ok := configKeys[k]; ok {
			result = append(result, k)
			seen[k] = true
		}
	}
	for k := range configKeys {
		if !seen[k] {
			result = append(result, k)
		}
	}
	return result
}

// IsValidConfigKey returns true if the given key is a supported configuration key.
func IsValidConfigKey(key string) bool {
	_, ok := configKeys[key]
	return ok
}

func (c *Configer) GetTarget() string {
	return c.targetPath
}

// LoadConfig loads the configuration from config.toml in the target
// .patchbay/ directory. If the file does not exist, returns
// NewDefaultConfig() so callers always receive a fully-populated Config.
func (c *Configer) LoadConfig() (*Config, error) {
	if c.targetPath == "" {
		return NewDefaultConfig(), nil
	}

	data, err := os.ReadFile(c.targetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewDefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg, err := ParseConfigTOML(data)
	if err != nil {
		return nil, err
	}

	applyDefaults(cfg)

	return cfg, nil
}

// applyDefaults fills zero-value fields in cfg with values from
// NewDefaultConfig(). A config with explicit model entries keeps them
// untouched; only an empty models list inherits the default local model.
func applyDefaults(cfg *Config) {
	defaults := NewDefaultConfig()

	if cfg.Version == 0 {
		cfg.Version = defaults.Version
	}
	if len(cfg.Models) == 0 {
		cfg.Models = defaults.Models
	}
	if cfg.DefaultModel == "" {
		if len(cfg.Models) > 0 {
			cfg.DefaultModel = cfg.Models[0].Name
		} else {
			cfg.DefaultModel = defaults.DefaultModel
		}
	}
}

// SaveConfig persists the configuration to config.toml in the target
// .patchbay/ directory.
func (c *Configer) SaveConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("cannot save nil config")
	}

	if c.targetPath == "" {
		return errors.New("cannot save empty target path")
	}

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(c.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// SetConfigValue loads the config, sets the given key to the given value, and saves it.
// Returns an error if the key is not a valid config key.
func (c *Configer) SetConfigValue(key string, value string) error {
	info, ok := configKeys[key]
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return err
	}

	if err := info.set(cfg, value); err != nil {
		return err
	}

	return c.SaveConfig(cfg)
}

// GetConfigValue loads the config and returns the string representation of the given key.
// Returns an error if the key is not a valid config key.
func (c *Configer) GetConfigValue(key string) (string, error) {
	info, ok := configKeys[key]
	if !ok {
		return "", fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return "", err
	}

	return info.get(cfg), nil
}

// ResolveModel finds the named model entry (or the default model when name
// is empty) and converts it into a runtime llm.ModelConfig.
func (cfg *Config) ResolveModel(name string) (llm.ModelConfig, error) {
	if name == "" {
		name = cfg.DefaultModel
	}
	if name == "" {
		return llm.ModelConfig{}, errors.New("no model specified and no default_model configured")
	}

	for i := range cfg.Models {
		if cfg.Models[i].Name == name {
			return cfg.Models[i].ToModelConfig()
		}
	}

	known := make([]string, 0, len(cfg.Models))
	for _, m := range cfg.Models {
		known = append(known, m.Name)
	}
	return llm.ModelConfig{}, fmt.Errorf("unknown model %q (configured: %s)", name, strings.Join(known, ", "))
}

// PresetConfig returns a Config with sane defaults for the named protocol
// preset. Returns an error if the preset name is not recognized.
func PresetConfig(name string) (*Config, error) {
	switch strings.ToLower(name) {
	case "openai":
		return presetFor(ModelEntry{
			Name:      "gpt-4o",
			Protocol:  llm.ProtocolOpenAI,
			BaseURL:   "https://api.openai.com/v1",
			APIKeyEnv: "OPENAI_API_KEY",
		}), nil

	case "openai-responses":
		return presetFor(ModelEntry{
			Name:      "gpt-4o",
			Protocol:  llm.ProtocolResponses,
			BaseURL:   "https://api.openai.com/v1",
			APIKeyEnv: "OPENAI_API_KEY",
		}), nil

	case "anthropic":
		return presetFor(ModelEntry{
			Name:      "claude-sonnet-4-20250514",
			Protocol:  llm.ProtocolAnthropic,
			BaseURL:   "https://api.anthropic.com",
			APIKeyEnv: "ANTHROPIC_API_KEY",
		}), nil

	case "gemini":
		return presetFor(ModelEntry{
			Name:      "gemini-2.0-flash",
			Protocol:  llm.ProtocolGemini,
			BaseURL:   "https://generativelanguage.googleapis.com",
			APIKeyEnv: "GEMINI_API_KEY",
		}), nil

	case "ollama":
		return presetFor(ModelEntry{
			Name:              defaultModelName,
			Protocol:          llm.ProtocolOllama,
			BaseURL:           defaultBaseURL,
			ScanReasoningTags: true,
		}), nil

	default:
		return nil, fmt.Errorf("unknown preset: %q (available: %s)", name, strings.Join(ValidPresetNames(), ", "))
	}
}

func presetFor(entry ModelEntry) *Config {
	entry.Retry = RetryEntry{
		Enabled:     true,
		MaxAttempts: defaultRetryMaxAttempts,
		Interval:    defaultRetryInterval,
	}
	return &Config{
		Version:      CurrentV,
		DefaultModel: entry.Name,
		Client:       ClientConfig{Pretty: true},
		Models:       []ModelEntry{entry},
	}
}

// ValidPresetNames returns the list of recognized preset names.
func ValidPresetNames() []string {
	return []string{"openai", "openai-responses", "anthropic", "gemini", "ollama"}
}

// ParseConfigTOML parses raw TOML bytes into a Config.
// Returns an error if the version field is present and not equal to CurrentV.
func ParseConfigTOML(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config TOML: %w", err)
	}

	if cfg.Version != 0 && cfg.Version != CurrentV {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentV)
	}

	return cfg, nil
}
