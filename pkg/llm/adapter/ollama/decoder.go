package ollama

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/hollowaylabs/patchbay/pkg/llm"
	"github.com/hollowaylabs/patchbay/pkg/llm/stream"
)

const (
	maxLineSize    = 1024 * 1024
	initialBufSize = 64 * 1024
)

// Decode reads the newline-delimited JSON stream from /api/chat. Tool calls
// arrive whole inside a line's message, so no argument buffering is needed.
// Models that interleave reasoning as literal <think> markers in content are
// handled by the emitter's tag scanner.
func (a *adapter) Decode(ctx context.Context, body io.Reader, cfg llm.ModelConfig, sink llm.Sink) error {
	emitter := stream.NewEmitter(sink, cfg.ScanReasoningTags)

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, initialBufSize), maxLineSize)

	var (
		doneReason string
		usage      *llm.Usage
	)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return emitter.Done(llm.StreamEvent{StopReason: "cancelled"})
		}

		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}

		var line chatLine
		if err := json.Unmarshal([]byte(raw), &line); err != nil {
			continue
		}

		if line.Message != nil {
			if line.Message.Thinking != "" {
				if err := emitter.Thinking(line.Message.Thinking, ""); err != nil {
					return err
				}
			}
			if line.Message.Content != "" {
				if err := emitter.Text(line.Message.Content); err != nil {
					return err
				}
			}
			for _, tc := range line.Message.ToolCalls {
				args := tc.Function.Arguments
				if args == nil {
					args = map[string]any{}
				}
				call := stream.Call{
					ID:   llm.NewCallID(),
					Name: tc.Function.Name,
					Args: args,
				}
				if err := emitter.ToolCall(call); err != nil {
					return err
				}
			}
		}

		if line.Done {
			doneReason = line.DoneReason
			if line.PromptEvalCount > 0 || line.EvalCount > 0 {
				usage = &llm.Usage{
					PromptTokens:     line.PromptEvalCount,
					CompletionTokens: line.EvalCount,
					TotalTokens:      line.PromptEvalCount + line.EvalCount,
				}
			}
			break
		}
	}
	if err := scanner.Err(); err != nil {
		if stream.Cancelled(ctx, err) {
			return emitter.Done(llm.StreamEvent{StopReason: "cancelled"})
		}
		return err
	}

	return emitter.Done(llm.StreamEvent{StopReason: doneReason, Usage: usage})
}
