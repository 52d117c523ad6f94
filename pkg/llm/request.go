package llm

import "time"

// Protocol mode constants. Each selects a wire adapter.
const (
	ProtocolOpenAI    = "openai"
	ProtocolResponses = "openai-responses"
	ProtocolAnthropic = "anthropic"
	ProtocolGemini    = "gemini"
	ProtocolOllama    = "ollama"
)

// ModelConfig describes one reachable model: where it lives, which protocol
// it speaks, and the sampling defaults to apply on every request.
type ModelConfig struct {
	// Name is the provider-side model identifier (e.g. "gpt-4o").
	Name string `json:"name"`

	// Protocol selects the wire adapter (see Protocol* constants).
	Protocol string `json:"protocol"`

	// BaseURL is the provider endpoint root. Adapters derive the full
	// request URL from it.
	BaseURL string `json:"base_url"`

	// APIKey is the bearer/API key attached per protocol convention.
	APIKey string `json:"-"`

	// Sampling parameters. Nil means "not set" and the field is omitted
	// from the wire body.
	Temperature      *float64 `json:"temperature,omitempty"`
	TopP             *float64 `json:"top_p,omitempty"`
	TopK             *int     `json:"top_k,omitempty"`
	MinP             *float64 `json:"min_p,omitempty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty"`
	RepeatPenalty    *float64 `json:"repeat_penalty,omitempty"`
	Seed             *int     `json:"seed,omitempty"`
	Stop             []string `json:"stop,omitempty"`

	// Output token limits. At most one may be set: some APIs reject
	// requests carrying more than one variant.
	MaxTokens           *int `json:"max_tokens,omitempty"`
	MaxCompletionTokens *int `json:"max_completion_tokens,omitempty"`
	MaxOutputTokens     *int `json:"max_output_tokens,omitempty"`

	// Reasoning toggles.
	ReasoningEffort    string `json:"reasoning_effort,omitempty"` // "low", "medium", "high"
	ThinkingBudget     *int   `json:"thinking_budget,omitempty"`  // token budget for thinking blocks
	IncludeReasoning   bool   `json:"include_reasoning,omitempty"`
	ScanReasoningTags  bool   `json:"scan_reasoning_tags,omitempty"`  // detect inline <think> markers
	ReasoningInRequest bool   `json:"reasoning_in_request,omitempty"` // resend thinking blocks upstream

	// Headers are user-supplied custom headers merged into every request.
	Headers map[string]string `json:"headers,omitempty"`

	// Delay is the minimum pause between consecutive requests on the same
	// provider-facing path.
	Delay time.Duration `json:"delay,omitempty"`

	// Retry configures the HTTP retry executor for this model.
	Retry RetryConfig `json:"retry,omitzero"`

	// Extra fields are merged verbatim into the wire body, last, and may
	// overwrite computed fields.
	Extra map[string]any `json:"extra,omitempty"`
}

// MaxTokenVariants returns how many of the mutually exclusive max-token
// fields are set.
func (m *ModelConfig) MaxTokenVariants() int {
	n := 0
	if m.MaxTokens != nil {
		n++
	}
	if m.MaxCompletionTokens != nil {
		n++
	}
	if m.MaxOutputTokens != nil {
		n++
	}
	return n
}

// RetryConfig controls status-code-based retry of the initial HTTP attempt.
type RetryConfig struct {
	Enabled     bool          `json:"enabled"`
	MaxAttempts int           `json:"max_attempts"`
	Interval    time.Duration `json:"interval"`

	// ExtraStatusCodes are unioned with the default retryable set
	// {429, 500, 502, 503, 504}.
	ExtraStatusCodes []int `json:"extra_status_codes,omitempty"`
}

// ChatRequest is a protocol-agnostic chat completion request: the canonical
// conversation plus the tool surface and the model to run it against.
type ChatRequest struct {
	Model ModelConfig `json:"model"`

	// System is the system prompt. Adapters hoist it into the protocol's
	// instructions/system field, or a leading system message where the
	// protocol requires one.
	System string `json:"system,omitempty"`

	// Messages is the ordered conversation.
	Messages []Message `json:"messages"`

	// Tools the model may call.
	Tools []Tool `json:"tools,omitempty"`

	// ToolChoice is the tool-choice policy: "" (auto), "auto", "none",
	// "required", or the name of a specific tool.
	ToolChoice string `json:"tool_choice,omitempty"`
}
