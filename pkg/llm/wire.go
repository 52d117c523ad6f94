package llm

import (
	"encoding/base64"
	"fmt"
)

// ThinkingPlaceholder is substituted for an empty reasoning block when
// reasoning inclusion is requested: some providers reject an assistant turn
// whose leading thinking block has no text.
const ThinkingPlaceholder = "Next step."

// MergeExtra merges user-declared extra parameters into a computed wire
// body, last and verbatim. Scalars and arrays overwrite computed fields;
// when both sides are objects they deep-merge so a partial user object (e.g.
// a reasoning config) extends rather than replaces the computed one.
func MergeExtra(body map[string]any, extra map[string]any) {
	for key, value := range extra {
		existing, ok := body[key].(map[string]any)
		if !ok {
			body[key] = value
			continue
		}
		incoming, ok := value.(map[string]any)
		if !ok {
			body[key] = value
			continue
		}
		MergeExtra(existing, incoming)
	}
}

// GroupToolResults merges each run of consecutive tool-result-only messages
// into a single message, preserving result order. Required by protocols that
// demand one role turn per batch of results; a safe no-op elsewhere.
func GroupToolResults(messages []Message) []Message {
	grouped := make([]Message, 0, len(messages))
	for _, msg := range messages {
		if msg.IsToolResultOnly() && len(grouped) > 0 {
			last := &grouped[len(grouped)-1]
			if last.IsToolResultOnly() {
				last.Content = append(last.Content, msg.Content...)
				continue
			}
		}
		grouped = append(grouped, msg)
	}
	return grouped
}

// DataURL encodes image bytes into a data URL envelope.
func DataURL(mediaType, imageBase64 string) string {
	if mediaType == "" {
		mediaType = "image/png"
	}
	return fmt.Sprintf("data:%s;base64,%s", mediaType, imageBase64)
}

// ValidBase64 reports whether the payload decodes as base64. Image parts are
// carried through verbatim, never re-encoded or resized; this only guards
// against garbage input.
func ValidBase64(data string) bool {
	_, err := base64.StdEncoding.DecodeString(data)
	return err == nil
}
