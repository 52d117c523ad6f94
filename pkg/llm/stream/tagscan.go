package stream

import "strings"

// Default inline reasoning markers. Some backends return reasoning as
// ordinary text wrapped in a literal tag pair instead of a structured field.
const (
	ThinkOpenTag  = "<think>"
	ThinkCloseTag = "</think>"
)

// TagScanner splits a text stream into plain text and reasoning based on
// literal open/close tag markers. Partial tag fragments spanning a chunk
// boundary are held in the scan buffer rather than emitted or discarded.
type TagScanner struct {
	openTag  string
	closeTag string

	active bool   // inside an open tag pair
	buf    string // held bytes that may begin a tag
}

// NewTagScanner creates a scanner for the default <think> markers.
func NewTagScanner() *TagScanner {
	return &TagScanner{openTag: ThinkOpenTag, closeTag: ThinkCloseTag}
}

// ScanResult is the classified output of one Scan call, in stream order.
type ScanResult struct {
	Text        string // plain text to emit
	Thinking    string // reasoning text to emit
	ThinkingEnd bool   // a close tag was consumed after Thinking
}

// Active reports whether the scanner is currently inside a tag pair.
func (s *TagScanner) Active() bool {
	return s.active
}

// Scan consumes one text chunk and returns the classified segments. Results
// preserve arrival order: any Text precedes Thinking when a chunk straddles
// an opening tag, and Thinking precedes trailing Text when it straddles a
// closing one.
func (s *TagScanner) Scan(chunk string) []ScanResult {
	s.buf += chunk
	var results []ScanResult

	for {
		tag := s.openTag
		if s.active {
			tag = s.closeTag
		}

		idx := strings.Index(s.buf, tag)
		if idx < 0 {
			// No complete tag. Hold back the longest suffix that could
			// still grow into one; emit the rest.
			hold := partialTagSuffix(s.buf, tag)
			emit := s.buf[:len(s.buf)-hold]
			s.buf = s.buf[len(s.buf)-hold:]
			if emit != "" {
				results = append(results, s.classified(emit))
			}
			return results
		}

		if idx > 0 {
			results = append(results, s.classified(s.buf[:idx]))
		}
		s.buf = s.buf[idx+len(tag):]
		if s.active {
			results = append(results, ScanResult{ThinkingEnd: true})
		}
		s.active = !s.active
	}
}

// Flush releases any held partial-tag bytes as ordinary output at end of
// stream.
func (s *TagScanner) Flush() []ScanResult {
	if s.buf == "" {
		return nil
	}
	out := s.classified(s.buf)
	s.buf = ""
	return []ScanResult{out}
}

func (s *TagScanner) classified(text string) ScanResult {
	if s.active {
		return ScanResult{Thinking: text}
	}
	return ScanResult{Text: text}
}

// partialTagSuffix returns the length of the longest suffix of buf that is a
// proper prefix of tag.
func partialTagSuffix(buf, tag string) int {
	max := len(tag) - 1
	if max > len(buf) {
		max = len(buf)
	}
	for n := max; n > 0; n-- {
		if strings.HasPrefix(tag, buf[len(buf)-n:]) {
			return n
		}
	}
	return 0
}
