package openai

import (
	"context"
	"encoding/json"
	"io"

	"github.com/hollowaylabs/patchbay/pkg/llm"
	"github.com/hollowaylabs/patchbay/pkg/llm/stream"
	"github.com/hollowaylabs/patchbay/pkg/sse"
)

// Decode reads the Chat Completions SSE stream and reports canonical events.
// Each call owns fresh decoder state; malformed individual payloads are
// skipped without aborting the stream.
func (a *adapter) Decode(ctx context.Context, body io.Reader, cfg llm.ModelConfig, sink llm.Sink) error {
	d := &decoder{
		emitter: stream.NewEmitter(sink, cfg.ScanReasoningTags),
		tools:   stream.NewToolBuffer(),
	}
	return d.run(ctx, body)
}

type decoder struct {
	emitter *stream.Emitter
	tools   *stream.ToolBuffer

	finishReason string
	usage        *llm.Usage
	finished     bool
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

		var chunk chatStreamChunk
		if err := json.Unmarshal([]byte(event.Data), &chunk); err != nil {
			continue
		}
		if err := d.handle(&chunk); err != nil {
			return err
		}
		if d.finishReason != "" {
			// Explicit terminal signal: remaining buffered calls must parse
			// now or never.
			if err := d.flush(true); err != nil {
				return err
			}
		}
	}

	// Benign end of stream: drop incomplete buffers instead of failing.
	if err := d.flush(false); err != nil {
		return err
	}
	return d.emitter.Done(llm.StreamEvent{StopReason: d.finishReason, Usage: d.usage})
}

func (d *decoder) handle(chunk *chatStreamChunk) error {
	if chunk.Usage != nil {
		d.usage = &llm.Usage{
			PromptTokens:     chunk.Usage.PromptTokens,
			CompletionTokens: chunk.Usage.CompletionTokens,
			TotalTokens:      chunk.Usage.TotalTokens,
		}
	}
	if len(chunk.Choices) == 0 {
		return nil
	}
	choice := chunk.Choices[0]

	reasoning := choice.Delta.ReasoningContent
	if reasoning == "" {
		reasoning = choice.Delta.Reasoning
	}
	if reasoning != "" {
		if err := d.emitter.Thinking(reasoning, ""); err != nil {
			return err
		}
	}

	if choice.Delta.Content != "" {
		if err := d.emitter.Text(choice.Delta.Content); err != nil {
			return err
		}
	}

	for _, tc := range choice.Delta.ToolCalls {
		d.tools.SetIdentity(tc.Index, tc.ID, tc.Function.Name)
		if call, ok := d.tools.AppendArgs(tc.Index, tc.Function.Arguments); ok {
			if err := d.emitter.ToolCall(call); err != nil {
				return err
			}
		}
	}

	if choice.FinishReason != "" {
		d.finishReason = choice.FinishReason
	}
	return nil
}

func (d *decoder) flush(strict bool) error {
	if d.finished {
		return nil
	}
	calls, err := d.tools.Flush(strict)
	if err != nil {
		return err
	}
	for _, call := range calls {
		if err := d.emitter.ToolCall(call); err != nil {
			return err
		}
	}
	if strict {
		d.finished = true
	}
	return nil
}
