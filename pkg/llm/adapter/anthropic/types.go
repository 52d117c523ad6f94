package anthropic

// anthropicMessage represents a message in Anthropic's format.
type anthropicMessage struct {
	Role    string           `json:"role"`
	Content []anthropicBlock `json:"content"`
}

// anthropicBlock represents a content block in Anthropic's format.
type anthropicBlock struct {
	Type string `json:"type"`

	Text   string           `json:"text,omitempty"`
	Source *anthropicSource `json:"source,omitempty"`

	// Tool use.
	ID    string         `json:"id,omitempty"`
	Name  string         `json:"name,omitempty"`
	Input map[string]any `json:"input,omitempty"`

	// Tool result.
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`

	// Thinking.
	Thinking  string `json:"thinking,omitempty"`
	Signature string `json:"signature,omitempty"`
}

type anthropicSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// anthropicTool declares a callable function.
type anthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

// streamEvent is one SSE payload from the Messages stream. Anthropic tags
// every event with a type; fields are populated per type.
type streamEvent struct {
	Type  string `json:"type"`
	Index int    `json:"index"`

	Message      *streamMessage `json:"message,omitempty"`       // message_start
	ContentBlock *contentBlock  `json:"content_block,omitempty"` // content_block_start
	Delta        *streamDelta   `json:"delta,omitempty"`         // content_block_delta, message_delta
	Usage        *streamUsage   `json:"usage,omitempty"`         // message_delta
}

type streamMessage struct {
	ID    string       `json:"id"`
	Model string       `json:"model"`
	Usage *streamUsage `json:"usage,omitempty"`
}

type contentBlock struct {
	Type string `json:"type"` // "text", "thinking", "tool_use"
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

type streamDelta struct {
	Type        string `json:"type"` // "text_delta", "thinking_delta", "signature_delta", "input_json_delta"
	Text        string `json:"text,omitempty"`
	Thinking    string `json:"thinking,omitempty"`
	Signature   string `json:"signature,omitempty"`
	PartialJSON string `json:"partial_json,omitempty"`

	// message_delta fields.
	StopReason string `json:"stop_reason,omitempty"`
}

type streamUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}
