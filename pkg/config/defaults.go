package config

const (
	defaultModelName = "llama3.1"
	defaultProtocol  = "ollama"
	defaultBaseURL   = "http://localhost:11434"

	defaultRetryMaxAttempts = 3
	defaultRetryInterval    = "1s"
)

// NewDefaultConfig returns a Config with sane defaults for all fields: a
// single local Ollama model that works with no credentials. This is the
// single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version:      CurrentV,
		DefaultModel: defaultModelName,
		Client: ClientConfig{
			Pretty: true,
		},
		Models: []ModelEntry{
			{
				Name:              defaultModelName,
				Protocol:          defaultProtocol,
				BaseURL:           defaultBaseURL,
				ScanReasoningTags: true,
				Retry: RetryEntry{
					Enabled:     true,
					MaxAttempts: defaultRetryMaxAttempts,
					Interval:    defaultRetryInterval,
				},
			},
		},
	}
}
