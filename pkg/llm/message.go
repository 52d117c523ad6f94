package llm

// Message represents a single message in a conversation.
// Content is stored as an array of ContentBlocks to support multimodal content
// (text, images, tool calls, reasoning) in a protocol-agnostic way.
type Message struct {
	Role    string         `json:"role"`    // "system", "user", "assistant", "tool"
	Content []ContentBlock `json:"content"` // Array of content blocks
}

// Block type constants for ContentBlock.Type.
const (
	BlockText        = "text"
	BlockImage       = "image"
	BlockToolUse     = "tool_use"
	BlockToolResult  = "tool_result"
	BlockThinking    = "thinking"
	BlockResponseRef = "response_ref"
)

// ContentBlock represents a single piece of content within a message.
// The Type field determines which other fields are populated.
type ContentBlock struct {
	Type string `json:"type"`

	// Text content (type="text")
	Text string `json:"text,omitempty"`

	// Image content (type="image")
	ImageBase64 string `json:"image_base64,omitempty"` // Base64-encoded image data
	MediaType   string `json:"media_type,omitempty"`   // MIME type (e.g., "image/png")

	// Tool use (type="tool_use") - assistant requesting tool execution
	ToolUseID string         `json:"tool_use_id,omitempty"`
	ToolName  string         `json:"tool_name,omitempty"`
	ToolInput map[string]any `json:"tool_input,omitempty"`

	// Tool result (type="tool_result") - result from tool execution
	ToolResultID string `json:"tool_result_id,omitempty"` // References the tool_use_id
	ToolOutput   string `json:"tool_output,omitempty"`
	IsError      bool   `json:"is_error,omitempty"`

	// Reasoning (type="thinking"). Signature is an opaque continuation token
	// some providers require to be echoed back on tool follow-up turns.
	Thinking  string `json:"thinking,omitempty"`
	Signature string `json:"signature,omitempty"`

	// Continuity marker (type="response_ref") - references a server-held
	// response so a later turn can be sent as a delta against it. Opaque to
	// every protocol except OpenAI Responses.
	RefModel      string `json:"ref_model,omitempty"`
	RefResponseID string `json:"ref_response_id,omitempty"`
}

// NewTextMessage creates a simple text message with the given role and content.
func NewTextMessage(role, text string) Message {
	return Message{
		Role: role,
		Content: []ContentBlock{
			{Type: BlockText, Text: text},
		},
	}
}

// NewToolResultMessage creates a tool-role message carrying a single result.
func NewToolResultMessage(callID, output string) Message {
	return Message{
		Role: "tool",
		Content: []ContentBlock{
			{Type: BlockToolResult, ToolResultID: callID, ToolOutput: output},
		},
	}
}

// ContinuityBlock builds a response_ref block recording which server-side
// response produced an assistant turn. Callers append it to the assistant
// message so a later request on the same model can be sent as a delta.
func ContinuityBlock(model, responseID string) ContentBlock {
	return ContentBlock{
		Type:          BlockResponseRef,
		RefModel:      model,
		RefResponseID: responseID,
	}
}

// GetText returns the concatenated text content from all text blocks in the message.
// This is a convenience method for simple text-only messages.
func (m *Message) GetText() string {
	var result string
	for _, block := range m.Content {
		if block.Type == BlockText {
			result += block.Text
		}
	}
	return result
}

// IsToolResultOnly reports whether the message carries nothing but tool
// results. Adapters merge runs of such messages into one wire turn.
func (m *Message) IsToolResultOnly() bool {
	if len(m.Content) == 0 {
		return false
	}
	for _, block := range m.Content {
		if block.Type != BlockToolResult {
			return false
		}
	}
	return true
}
