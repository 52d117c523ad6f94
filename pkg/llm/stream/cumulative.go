// Package stream holds the decoder-core algorithms shared by every protocol
// adapter: cumulative-text reconciliation, tool-call argument buffering,
// inline reasoning-tag scanning, and the canonical event emitter. Each chat
// request owns its own instances; nothing in this package is shared across
// requests.
package stream

import "strings"

// Accumulator reconciles providers that resend the entire value so far on
// each update rather than only the new fragment.
type Accumulator struct {
	seen string
}

// Push takes the newly received cumulative string and returns the delta to
// emit. A resent prefix yields the empty string. A divergent restart (the new
// value is neither an extension nor a prefix of what was seen) returns the
// full new value and resets the accumulator - restarts are never concatenated
// onto the prior text.
func (a *Accumulator) Push(full string) string {
	switch {
	case strings.HasPrefix(full, a.seen):
		delta := full[len(a.seen):]
		a.seen = full
		return delta
	case strings.HasPrefix(a.seen, full):
		return ""
	default:
		a.seen = full
		return full
	}
}

// Value returns the full string seen so far.
func (a *Accumulator) Value() string {
	return a.seen
}
