package llm

// Event type constants for StreamEvent.Type.
const (
	EventTextDelta     = "text_delta"
	EventThinkingDelta = "thinking_delta"
	EventThinkingEnd   = "thinking_end"
	EventToolCall      = "tool_call"
	EventDone          = "done"
)

// StreamEvent is one canonical output event reconstructed from a provider
// stream. The Type field determines which other fields are populated.
type StreamEvent struct {
	Type string `json:"type"`

	// Text carries the fragment for text_delta and thinking_delta events.
	Text string `json:"text,omitempty"`

	// Signature is an opaque reasoning continuation token attached to
	// thinking_delta events by providers that issue one.
	Signature string `json:"signature,omitempty"`

	// Tool call fields (type="tool_call").
	CallID   string         `json:"call_id,omitempty"`
	ToolName string         `json:"tool_name,omitempty"`
	Args     map[string]any `json:"args,omitempty"`

	// Terminal fields (type="done").
	StopReason string `json:"stop_reason,omitempty"`
	ResponseID string `json:"response_id,omitempty"` // server-held response id (Responses protocol)
	Usage      *Usage `json:"usage,omitempty"`
}

// Usage contains token counts reported on the terminal event.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

// Sink receives canonical events one at a time, in stream order. A non-nil
// return aborts the decode loop and propagates to the caller.
type Sink func(StreamEvent) error
