package llm

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Tool declares one callable function in a JSON-Schema-like shape shared by
// all adapters. Each adapter converts Parameters into its own tool
// declaration dialect.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// NewCallID synthesizes a tool-call identifier for providers that do not
// assign one. Timestamp plus a random suffix keeps ids unique per process;
// an id is never reused.
func NewCallID() string {
	return fmt.Sprintf("call_%d_%.8s", time.Now().UnixNano(), uuid.NewString())
}
