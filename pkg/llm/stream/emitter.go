package stream

import (
	"context"
	"errors"

	"github.com/hollowaylabs/patchbay/pkg/llm"
)

// Cancelled reports whether a stream read failure was caused by context
// cancellation rather than the transport. net/http fails the body read
// after request-context cancellation, so the error often arrives through
// the reader instead of a bare ctx.Err() observation.
func Cancelled(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Emitter forwards canonical events to the caller's sink while tracking the
// reasoning/content state machine: reasoning and content are mutually
// exclusive at any instant, so emitting text or a tool call first closes an
// open thinking segment. It also owns the one-shot whitespace hint emitted
// between trailing text and the first tool call of a response.
type Emitter struct {
	sink llm.Sink

	scanner *TagScanner // nil unless inline-tag extraction is enabled

	thinkingOpen bool
	textEmitted  bool
	hintEmitted  bool
}

// NewEmitter creates an emitter for one request. When scanTags is set,
// ordinary text is additionally scanned for literal <think> markers.
func NewEmitter(sink llm.Sink, scanTags bool) *Emitter {
	e := &Emitter{sink: sink}
	if scanTags {
		e.scanner = NewTagScanner()
	}
	return e
}

// Text emits a plain text delta, closing any open thinking segment first.
// With tag scanning enabled the chunk is classified before emission.
func (e *Emitter) Text(text string) error {
	if text == "" {
		return nil
	}
	if e.scanner == nil {
		return e.emitText(text)
	}
	for _, r := range e.scanner.Scan(text) {
		if err := e.emitScanned(r); err != nil {
			return err
		}
	}
	return nil
}

func (e *Emitter) emitScanned(r ScanResult) error {
	if r.Thinking != "" {
		if err := e.Thinking(r.Thinking, ""); err != nil {
			return err
		}
	}
	if r.ThinkingEnd {
		if err := e.EndThinking(); err != nil {
			return err
		}
	}
	if r.Text != "" {
		if err := e.emitText(r.Text); err != nil {
			return err
		}
	}
	return nil
}

func (e *Emitter) emitText(text string) error {
	if err := e.EndThinking(); err != nil {
		return err
	}
	e.textEmitted = true
	return e.sink(llm.StreamEvent{Type: llm.EventTextDelta, Text: text})
}

// Thinking emits a reasoning delta and marks the thinking segment open.
func (e *Emitter) Thinking(text, signature string) error {
	if text == "" && signature == "" {
		return nil
	}
	e.thinkingOpen = true
	return e.sink(llm.StreamEvent{Type: llm.EventThinkingDelta, Text: text, Signature: signature})
}

// EndThinking closes an open thinking segment. Safe to call when none is
// open.
func (e *Emitter) EndThinking() error {
	if !e.thinkingOpen {
		return nil
	}
	e.thinkingOpen = false
	return e.sink(llm.StreamEvent{Type: llm.EventThinkingEnd})
}

// ToolCall emits an assembled tool call. If assistant text was already
// emitted this response, a single literal space is sent first so renderers
// get a boundary between trailing text and tool-call UI; at most once per
// response.
func (e *Emitter) ToolCall(call Call) error {
	if err := e.EndThinking(); err != nil {
		return err
	}
	if e.textEmitted && !e.hintEmitted {
		e.hintEmitted = true
		if err := e.sink(llm.StreamEvent{Type: llm.EventTextDelta, Text: " "}); err != nil {
			return err
		}
	}
	return e.sink(llm.StreamEvent{
		Type:     llm.EventToolCall,
		CallID:   call.ID,
		ToolName: call.Name,
		Args:     call.Args,
	})
}

// Done flushes scanner remainder and open thinking state, then emits the
// terminal event. Decoders call it exactly once, including on cancellation,
// so the caller always observes a consistent terminal state.
func (e *Emitter) Done(ev llm.StreamEvent) error {
	if e.scanner != nil {
		for _, r := range e.scanner.Flush() {
			if err := e.emitScanned(r); err != nil {
				return err
			}
		}
	}
	if err := e.EndThinking(); err != nil {
		return err
	}
	ev.Type = llm.EventDone
	return e.sink(ev)
}
