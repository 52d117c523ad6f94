package gemini

import (
	"sync"
	"time"
)

const (
	// metaSoftCap is the cache size that triggers pruning.
	metaSoftCap = 2000
	// metaPruneTo is the size the cache is pruned back down to.
	metaPruneTo = 1500
)

// CallMeta records what the canonical model cannot carry about a Gemini
// tool call: the function name a later functionResponse must be keyed by,
// and the thought signature/text that must be echoed back on the follow-up
// turn.
type CallMeta struct {
	Name      string
	Signature string
	Thought   string
	CreatedAt time.Time
}

// metaCache is a process-wide, bounded map from call id to CallMeta.
// Eviction is insertion-order (oldest first), approximate rather than
// strict LRU; entries are written once at call emission and read when the
// matching tool result is converted, typically within one turn.
type metaCache struct {
	mu      sync.Mutex
	entries map[string]CallMeta
	order   []string
}

// meta is the shared cache. Tool results may arrive on a different request
// than the call that produced them, so the mapping must outlive any single
// decoder.
var meta = &metaCache{entries: map[string]CallMeta{}}

func (c *metaCache) put(callID string, m CallMeta) {
	if callID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[callID]; !exists {
		c.order = append(c.order, callID)
	}
	m.CreatedAt = time.Now()
	c.entries[callID] = m

	if len(c.entries) > metaSoftCap {
		drop := len(c.entries) - metaPruneTo
		for _, id := range c.order[:drop] {
			delete(c.entries, id)
		}
		c.order = append([]string(nil), c.order[drop:]...)
	}
}

func (c *metaCache) get(callID string) (CallMeta, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.entries[callID]
	return m, ok
}

// RememberCall records call metadata for later re-pairing. Exposed for the
// dispatcher boundary; decoders call it as tool calls are emitted.
func RememberCall(callID, name, signature, thought string) {
	meta.put(callID, CallMeta{Name: name, Signature: signature, Thought: thought})
}

// LookupCall retrieves metadata recorded for a call id.
func LookupCall(callID string) (CallMeta, bool) {
	return meta.get(callID)
}
