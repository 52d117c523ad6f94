package responses

// inputItem is one element of the Responses input array. Type selects which
// member group is populated: "message", "function_call", or
// "function_call_output".
type inputItem struct {
	Type string `json:"type"`

	// type="message"
	Role    string        `json:"role,omitempty"`
	Content []contentPart `json:"content,omitempty"`

	// type="function_call"
	CallID    string `json:"call_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`

	// type="function_call_output"
	Output string `json:"output,omitempty"`
}

type contentPart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// responsesTool is the flattened function-tool form this dialect uses;
// there is no nested "function" wrapper object.
type responsesTool struct {
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// streamEvent is one SSE payload. The event's type string routes handling;
// unknown types are ignored.
type streamEvent struct {
	Type string `json:"type"`

	// Text deltas and their terminal full-string counterparts.
	Delta string `json:"delta,omitempty"`
	Text  string `json:"text,omitempty"`

	// Arguments carries the full argument string on *_arguments.done.
	Arguments string `json:"arguments,omitempty"`

	// OutputIndex identifies which output item a delta belongs to.
	OutputIndex int `json:"output_index"`

	// Item is present on output_item events.
	Item *outputItem `json:"item,omitempty"`

	// Response is present on response.* lifecycle events.
	Response *responseObject `json:"response,omitempty"`
}

type outputItem struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	CallID    string `json:"call_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
	Status    string `json:"status,omitempty"`
}

type responseObject struct {
	ID     string          `json:"id,omitempty"`
	Status string          `json:"status,omitempty"`
	Usage  *responsesUsage `json:"usage,omitempty"`
}

type responsesUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}
