package gemini

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/hollowaylabs/patchbay/pkg/llm"
	"github.com/hollowaylabs/patchbay/pkg/llm/stream"
	"github.com/hollowaylabs/patchbay/pkg/sse"
)

// Decode reads the streamGenerateContent SSE stream. Gemini delivers tool
// calls whole rather than as argument fragments, so there is no tool buffer
// here; each functionCall part becomes one canonical event and is recorded
// in the call-meta cache for re-pairing on the follow-up turn.
func (a *adapter) Decode(ctx context.Context, body io.Reader, cfg llm.ModelConfig, sink llm.Sink) error {
	d := &decoder{
		emitter: stream.NewEmitter(sink, cfg.ScanReasoningTags),
	}
	return d.run(ctx, body)
}

type decoder struct {
	emitter *stream.Emitter

	thought      strings.Builder // reasoning text seen so far this response
	finishReason string
	usage        *llm.Usage
}

func (d *decoder) run(ctx context.Context, body io.Reader) error {
	reader := sse.NewReader(body)

	for {
		if ctx.Err() != nil {
			return d.emitter.Done(llm.StreamEvent{StopReason: "cancelled"})
		}

		event, err := reader.Next()
		if err != nil {
			if stream.Cancelled(ctx, err) {
				return d.emitter.Done(llm.StreamEvent{StopReason: "cancelled"})
			}
			return err
		}
		if event == nil || event.Done() {
			break
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(event.Data), &chunk); err != nil {
			continue
		}
		if err := d.handle(&chunk); err != nil {
			return err
		}
	}

	return d.emitter.Done(llm.StreamEvent{StopReason: d.finishReason, Usage: d.usage})
}

func (d *decoder) handle(chunk *streamChunk) error {
	if chunk.UsageMetadata != nil {
		d.usage = &llm.Usage{
			PromptTokens:     chunk.UsageMetadata.PromptTokenCount,
			CompletionTokens: chunk.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      chunk.UsageMetadata.TotalTokenCount,
		}
	}
	if len(chunk.Candidates) == 0 {
		return nil
	}
	candidate := chunk.Candidates[0]

	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if err := d.handlePart(part); err != nil {
				return err
			}
		}
	}
	if candidate.FinishReason != "" {
		d.finishReason = candidate.FinishReason
	}
	return nil
}

func (d *decoder) handlePart(part geminiPart) error {
	switch {
	case part.FunctionCall != nil:
		call := stream.Call{
			ID:   part.FunctionCall.ID,
			Name: part.FunctionCall.Name,
			Args: part.FunctionCall.Args,
		}
		if call.ID == "" {
			call.ID = llm.NewCallID()
		}
		if call.Args == nil {
			call.Args = map[string]any{}
		}
		RememberCall(call.ID, call.Name, part.ThoughtSignature, d.thought.String())
		return d.emitter.ToolCall(call)

	case part.Thought:
		d.thought.WriteString(part.Text)
		return d.emitter.Thinking(part.Text, part.ThoughtSignature)

	case part.Text != "":
		return d.emitter.Text(part.Text)
	}
	return nil
}
