package anthropic

import (
	"context"
	"encoding/json"
	"io"

	"github.com/hollowaylabs/patchbay/pkg/llm"
	"github.com/hollowaylabs/patchbay/pkg/llm/stream"
	"github.com/hollowaylabs/patchbay/pkg/sse"
)

// Decode reads the Messages SSE stream and reports canonical events. Block
// indices from the wire key the tool buffer directly.
func (a *adapter) Decode(ctx context.Context, body io.Reader, cfg llm.ModelConfig, sink llm.Sink) error {
	d := &decoder{
		emitter:    stream.NewEmitter(sink, cfg.ScanReasoningTags),
		tools:      stream.NewToolBuffer(),
		blockTypes: map[int]string{},
	}
	return d.run(ctx, body)
}

type decoder struct {
	emitter *stream.Emitter
	tools   *stream.ToolBuffer

	// blockTypes remembers each content block's type so deltas can be
	// routed without re-reading the start event.
	blockTypes map[int]string

	stopReason string
	usage      *llm.Usage
	flushed    bool
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

		var ev streamEvent
		if err := json.Unmarshal([]byte(event.Data), &ev); err != nil {
			continue
		}
		stop, err := d.handle(&ev)
		if err != nil {
			return err
		}
		if stop {
			break
		}
	}

	if err := d.flush(d.stopReason != ""); err != nil {
		return err
	}
	return d.emitter.Done(llm.StreamEvent{StopReason: d.stopReason, Usage: d.usage})
}

func (d *decoder) handle(ev *streamEvent) (bool, error) {
	switch ev.Type {
	case "message_start":
		if ev.Message != nil && ev.Message.Usage != nil {
			d.usage = &llm.Usage{PromptTokens: ev.Message.Usage.InputTokens}
		}

	case "content_block_start":
		if ev.ContentBlock == nil {
			return false, nil
		}
		d.blockTypes[ev.Index] = ev.ContentBlock.Type
		if ev.ContentBlock.Type == "tool_use" {
			d.tools.SetIdentity(ev.Index, ev.ContentBlock.ID, ev.ContentBlock.Name)
		}

	case "content_block_delta":
		if ev.Delta == nil {
			return false, nil
		}
		return false, d.handleDelta(ev.Index, ev.Delta)

	case "content_block_stop":
		if d.blockTypes[ev.Index] == "tool_use" {
			if call, ok := d.tools.TryComplete(ev.Index); ok {
				return false, d.emitter.ToolCall(call)
			}
		}
		if d.blockTypes[ev.Index] == "thinking" {
			return false, d.emitter.EndThinking()
		}

	case "message_delta":
		if ev.Delta != nil && ev.Delta.StopReason != "" {
			d.stopReason = ev.Delta.StopReason
		}
		if ev.Usage != nil {
			if d.usage == nil {
				d.usage = &llm.Usage{}
			}
			d.usage.CompletionTokens = ev.Usage.OutputTokens
			d.usage.TotalTokens = d.usage.PromptTokens + ev.Usage.OutputTokens
		}

	case "message_stop":
		return true, nil

	case "error":
		// A mid-stream error event carries no recoverable content; stop
		// cleanly with whatever was decoded.
		return true, nil
	}
	return false, nil
}

func (d *decoder) handleDelta(index int, delta *streamDelta) error {
	switch delta.Type {
	case "text_delta":
		return d.emitter.Text(delta.Text)
	case "thinking_delta":
		return d.emitter.Thinking(delta.Thinking, "")
	case "signature_delta":
		return d.emitter.Thinking("", delta.Signature)
	case "input_json_delta":
		if call, ok := d.tools.AppendArgs(index, delta.PartialJSON); ok {
			return d.emitter.ToolCall(call)
		}
	}
	return nil
}

func (d *decoder) flush(strict bool) error {
	if d.flushed {
		return nil
	}
	d.flushed = true
	calls, err := d.tools.Flush(strict)
	if err != nil {
		return err
	}
	for _, call := range calls {
		if err := d.emitter.ToolCall(call); err != nil {
			return err
		}
	}
	return nil
}
