package responses

import (
	"sync"

	"github.com/hollowaylabs/patchbay/pkg/llm"
)

// unsupported records base URLs whose backend rejected previous_response_id.
// The set only grows: once a backend proves it does not retain responses,
// every later request there sends full history. Process-wide because the
// property belongs to the endpoint, not to any one client or request.
var unsupported = struct {
	mu   sync.Mutex
	urls map[string]bool
}{urls: map[string]bool{}}

// MarkUnsupported records that the backend at baseURL rejected a
// previous_response_id. Callers invoke it before resending full history.
func MarkUnsupported(baseURL string) {
	unsupported.mu.Lock()
	defer unsupported.mu.Unlock()
	unsupported.urls[baseURL] = true
}

// ContinuitySupported reports whether baseURL has not yet rejected a
// continuity reference.
func ContinuitySupported(baseURL string) bool {
	unsupported.mu.Lock()
	defer unsupported.mu.Unlock()
	return !unsupported.urls[baseURL]
}

// Plan decides how much of the conversation to send. When the trailing
// assistant turn carries a response reference for this same model and the
// backend has not been marked unsupported, it returns that response id plus
// only the messages after the referenced turn; otherwise it returns an
// empty id and the full history. A manually pinned previous_response_id in
// Extra always forces full history so the caller's pin is authoritative.
func Plan(req *llm.ChatRequest) (previousResponseID string, messages []llm.Message) {
	if _, pinned := req.Model.Extra["previous_response_id"]; pinned {
		return "", req.Messages
	}
	if !ContinuitySupported(req.Model.BaseURL) {
		return "", req.Messages
	}

	refIndex := -1
	refID := ""
	for i, msg := range req.Messages {
		if msg.Role != "assistant" {
			continue
		}
		for _, block := range msg.Content {
			if block.Type == llm.BlockResponseRef && block.RefModel == req.Model.Name {
				refIndex = i
				refID = block.RefResponseID
			}
		}
	}
	if refIndex < 0 || refID == "" {
		return "", req.Messages
	}
	// A marker on the very last message leaves nothing to send as a delta;
	// an empty input alongside previous_response_id is not a valid request.
	if refIndex == len(req.Messages)-1 {
		return "", req.Messages
	}
	return refID, req.Messages[refIndex+1:]
}
