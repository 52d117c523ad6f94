// Package adapter defines the interface between the canonical chat model and
// the five supported wire protocols. Each protocol implementation lives in
// its own subpackage and knows how to build its provider's request body and
// how to decode its streaming response back into canonical events.
package adapter

import (
	"context"
	"io"

	"github.com/hollowaylabs/patchbay/pkg/llm"
)

// Adapter converts canonical messages to one provider wire format and
// decodes that provider's streaming payloads back into canonical events.
// Conversion methods are pure; Decode owns per-request mutable state and is
// safe to call once per response body.
type Adapter interface {
	// Name returns the canonical protocol name (see llm.Protocol* constants).
	Name() string

	// Endpoint builds the full request URL from the model's base URL.
	// Returns a *llm.ConfigError when the base URL is missing or malformed.
	Endpoint(cfg llm.ModelConfig) (string, error)

	// BuildBody converts the request into the provider's wire body,
	// including messages, sampling fields, tool declarations, and the
	// verbatim Extra merge.
	BuildBody(req *llm.ChatRequest) (map[string]any, error)

	// Headers describes the auth and protocol headers to attach. The
	// model's custom headers are applied on top by the dispatcher.
	Headers(cfg llm.ModelConfig) (map[string]string, error)

	// Decode consumes the streaming response body, reporting canonical
	// events to sink one at a time, in arrival order. Cancelling ctx makes
	// the loop exit at the next read, flushing any open reasoning segment
	// so the caller sees a consistent terminal state.
	Decode(ctx context.Context, body io.Reader, cfg llm.ModelConfig, sink llm.Sink) error
}
