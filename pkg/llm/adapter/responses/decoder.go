package responses

import (
	"context"
	"encoding/json"
	"io"

	"github.com/hollowaylabs/patchbay/pkg/llm"
	"github.com/hollowaylabs/patchbay/pkg/llm/stream"
	"github.com/hollowaylabs/patchbay/pkg/sse"
)

// Decode reads the Responses SSE stream. Text arrives both as incremental
// deltas and as terminal "done" events repeating the full string, so every
// text path runs through a per-item accumulator and the repeats emit
// nothing.
func (a *adapter) Decode(ctx context.Context, body io.Reader, cfg llm.ModelConfig, sink llm.Sink) error {
	d := &decoder{
		emitter:   stream.NewEmitter(sink, cfg.ScanReasoningTags),
		tools:     stream.NewToolBuffer(),
		text:      map[int]*stream.Accumulator{},
		reasoning: map[int]*stream.Accumulator{},
	}
	return d.run(ctx, body)
}

type decoder struct {
	emitter *stream.Emitter
	tools   *stream.ToolBuffer

	text      map[int]*stream.Accumulator
	reasoning map[int]*stream.Accumulator

	responseID string
	stopReason string
	usage      *llm.Usage
	terminal   bool
}

func (d *decoder) run(ctx context.Context, body io.Reader) error {
	reader := sse.NewReader(body)

	for {
		if ctx.Err() != nil {
			return d.emitter.Done(llm.StreamEvent{StopReason: "cancelled", ResponseID: d.responseID})
		}

		event, err := reader.Next()
		if err != nil {
			if stream.Cancelled(ctx, err) {
				return d.emitter.Done(llm.StreamEvent{StopReason: "cancelled", ResponseID: d.responseID})
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
		if err := d.handle(&ev); err != nil {
			return err
		}
		if d.terminal {
			if err := d.flush(true); err != nil {
				return err
			}
		}
	}

	if err := d.flush(false); err != nil {
		return err
	}
	return d.emitter.Done(llm.StreamEvent{
		StopReason: d.stopReason,
		ResponseID: d.responseID,
		Usage:      d.usage,
	})
}

func (d *decoder) handle(ev *streamEvent) error {
	switch ev.Type {
	case "response.created":
		if ev.Response != nil {
			d.responseID = ev.Response.ID
		}

	case "response.output_text.delta":
		acc := d.textAcc(ev.OutputIndex)
		return d.emitter.Text(acc.Push(acc.Value() + ev.Delta))

	case "response.output_text.done":
		return d.emitter.Text(d.textAcc(ev.OutputIndex).Push(ev.Text))

	case "response.reasoning_summary_text.delta", "response.reasoning_text.delta":
		acc := d.reasoningAcc(ev.OutputIndex)
		return d.emitter.Thinking(acc.Push(acc.Value()+ev.Delta), "")

	case "response.reasoning_summary_text.done", "response.reasoning_text.done":
		if err := d.emitter.Thinking(d.reasoningAcc(ev.OutputIndex).Push(ev.Text), ""); err != nil {
			return err
		}
		return d.emitter.EndThinking()

	case "response.output_item.added":
		if ev.Item != nil && ev.Item.Type == "function_call" {
			d.tools.SetIdentity(ev.OutputIndex, ev.Item.CallID, ev.Item.Name)
			if call, ok := d.tools.AppendArgs(ev.OutputIndex, ev.Item.Arguments); ok {
				return d.emitter.ToolCall(call)
			}
		}

	case "response.function_call_arguments.delta":
		if call, ok := d.tools.AppendArgs(ev.OutputIndex, ev.Delta); ok {
			return d.emitter.ToolCall(call)
		}

	case "response.function_call_arguments.done":
		if call, ok := d.tools.SetArgs(ev.OutputIndex, ev.Arguments); ok {
			return d.emitter.ToolCall(call)
		}

	case "response.output_item.done":
		if ev.Item != nil && ev.Item.Type == "function_call" {
			d.tools.SetIdentity(ev.OutputIndex, ev.Item.CallID, ev.Item.Name)
			if ev.Item.Arguments != "" {
				if call, ok := d.tools.SetArgs(ev.OutputIndex, ev.Item.Arguments); ok {
					return d.emitter.ToolCall(call)
				}
			} else if call, ok := d.tools.TryComplete(ev.OutputIndex); ok {
				return d.emitter.ToolCall(call)
			}
		}

	case "response.completed", "response.incomplete", "response.failed":
		d.terminal = true
		if ev.Response != nil {
			if ev.Response.ID != "" {
				d.responseID = ev.Response.ID
			}
			d.stopReason = ev.Response.Status
			if ev.Response.Usage != nil {
				d.usage = &llm.Usage{
					PromptTokens:     ev.Response.Usage.InputTokens,
					CompletionTokens: ev.Response.Usage.OutputTokens,
					TotalTokens:      ev.Response.Usage.TotalTokens,
				}
			}
		}
		if d.stopReason == "" {
			d.stopReason = "completed"
		}
	}
	return nil
}

func (d *decoder) flush(strict bool) error {
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

func (d *decoder) textAcc(index int) *stream.Accumulator {
	acc, ok := d.text[index]
	if !ok {
		acc = &stream.Accumulator{}
		d.text[index] = acc
	}
	return acc
}

func (d *decoder) reasoningAcc(index int) *stream.Accumulator {
	acc, ok := d.reasoning[index]
	if !ok {
		acc = &stream.Accumulator{}
		d.reasoning[index] = acc
	}
	return acc
}
