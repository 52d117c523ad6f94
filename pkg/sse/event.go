// Package sse provides a minimal, purpose-built SSE (Server-Sent Events)
// reader for consuming streaming LLM responses. It parses events from an
// upstream byte stream; protocol adapters interpret each event's data
// payload.
//
// This package intentionally does NOT provide SSE writer or server
// capabilities.
//
// See the SSE specification:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

// DoneSentinel is the non-JSON data payload several providers send to mark
// the end of the event frame without closing the connection.
const DoneSentinel = "[DONE]"

// Event represents a single parsed SSE event, delimited by a blank line
// in the upstream byte stream.
type Event struct {
	// Type is the SSE event type from the "event:" field.
	// An empty string means the default "message" type per the SSE spec.
	Type string

	// Data is the concatenated contents of all "data:" lines for this event,
	// joined with "\n" (per the SSE spec, multiple data fields are joined
	// with a single newline).
	Data string

	// ID is the last event ID from the "id:" field, if present.
	ID string
}

// Done reports whether the event carries the [DONE] sentinel.
func (e *Event) Done() bool {
	return e.Data == DoneSentinel
}
