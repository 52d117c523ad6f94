package stream

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hollowaylabs/patchbay/pkg/llm"
)

// MaxToolArgBufSize is the upper bound (in bytes) for buffered function-call
// argument deltas per tool call.
const MaxToolArgBufSize = 1 << 20 // 1 MB

// Call is a fully assembled tool call ready for emission.
type Call struct {
	ID   string
	Name string
	Args map[string]any
}

type toolEntry struct {
	id   string
	name string
	args string
}

// ToolBuffer accumulates function-call argument deltas keyed by the
// provider-assigned stream index. After every mutation the accumulated
// arguments are test-parsed; as soon as they form a complete JSON object the
// call is handed back for emission and the index joins the completed set, so
// trailing "done" events repeating the full argument string emit nothing.
type ToolBuffer struct {
	entries   map[int]*toolEntry
	completed map[int]bool
	order     []int
}

// NewToolBuffer creates an empty ToolBuffer.
func NewToolBuffer() *ToolBuffer {
	return &ToolBuffer{
		entries:   map[int]*toolEntry{},
		completed: map[int]bool{},
	}
}

func (tb *ToolBuffer) entry(index int) *toolEntry {
	e, ok := tb.entries[index]
	if !ok {
		e = &toolEntry{}
		tb.entries[index] = e
		tb.order = append(tb.order, index)
	}
	return e
}

// SetIdentity records the call id and name for a stream index once they
// become available. Empty values never overwrite known ones.
func (tb *ToolBuffer) SetIdentity(index int, id, name string) {
	e := tb.entry(index)
	if id != "" && e.id == "" {
		e.id = id
	}
	if name != "" && e.name == "" {
		e.name = name
	}
}

// AppendArgs appends an argument fragment for the given index and returns a
// ready Call if the accumulated arguments now parse as a complete JSON
// object. Deltas for already-completed indices are ignored.
func (tb *ToolBuffer) AppendArgs(index int, delta string) (Call, bool) {
	if tb.completed[index] || delta == "" {
		return Call{}, false
	}
	e := tb.entry(index)
	if len(e.args)+len(delta) > MaxToolArgBufSize {
		return Call{}, false
	}
	e.args += delta
	return tb.tryComplete(index)
}

// SetArgs replaces the accumulated arguments wholesale, for "done"-style
// events that carry the full argument string.
func (tb *ToolBuffer) SetArgs(index int, full string) (Call, bool) {
	if tb.completed[index] {
		return Call{}, false
	}
	e := tb.entry(index)
	e.args = full
	return tb.tryComplete(index)
}

// TryComplete re-attempts emission for an index, for decoders where the call
// name can arrive after the final argument fragment.
func (tb *ToolBuffer) TryComplete(index int) (Call, bool) {
	if tb.completed[index] {
		return Call{}, false
	}
	if _, ok := tb.entries[index]; !ok {
		return Call{}, false
	}
	if strings.TrimSpace(tb.entries[index].args) == "" {
		return Call{}, false
	}
	return tb.tryComplete(index)
}

func (tb *ToolBuffer) tryComplete(index int) (Call, bool) {
	e := tb.entries[index]
	if e.name == "" {
		return Call{}, false
	}
	args, ok := parseArgs(e.args)
	if !ok {
		return Call{}, false
	}
	tb.completed[index] = true
	return Call{ID: tb.callID(index), Name: e.name, Args: args}, true
}

func (tb *ToolBuffer) callID(index int) string {
	e := tb.entries[index]
	if e.id == "" {
		e.id = llm.NewCallID()
	}
	return e.id
}

// Flush finalizes every buffered, not-yet-completed index. With strict set
// (an explicit finish event arrived) arguments that still fail to parse are a
// hard decode error: no further data will ever complete them. A lenient
// flush, triggered only by the benign end-of-stream sentinel, silently drops
// incomplete buffers.
func (tb *ToolBuffer) Flush(strict bool) ([]Call, error) {
	var calls []Call
	for _, index := range tb.order {
		if tb.completed[index] {
			continue
		}
		e := tb.entries[index]
		if e.name == "" && strings.TrimSpace(e.args) == "" {
			continue
		}
		args, ok := parseArgs(e.args)
		if !ok {
			if strict {
				return nil, &llm.DecodeError{
					Reason: fmt.Sprintf("tool call %q has incomplete arguments at finish", e.name),
				}
			}
			continue
		}
		if e.name == "" {
			continue
		}
		tb.completed[index] = true
		calls = append(calls, Call{ID: tb.callID(index), Name: e.name, Args: args})
	}
	return calls, nil
}

// parseArgs parses an accumulated argument string into an object. An empty
// accumulator means a call with no parameters.
func parseArgs(raw string) (map[string]any, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return map[string]any{}, true
	}
	var parsed map[string]any
	if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
		return nil, false
	}
	if parsed == nil {
		parsed = map[string]any{}
	}
	return parsed, true
}
