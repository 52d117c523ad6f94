// Package ollama implements the Adapter interface for Ollama's /api/chat
// endpoint. The response stream is newline-delimited JSON rather than SSE.
package ollama

import (
	"strings"

	"github.com/hollowaylabs/patchbay/pkg/llm"
)

type adapter struct{}

// New returns an adapter for the Ollama chat protocol.
func New() *adapter { return &adapter{} }

func (a *adapter) Name() string {
	return llm.ProtocolOllama
}

func (a *adapter) Endpoint(cfg llm.ModelConfig) (string, error) {
	if cfg.BaseURL == "" {
		return "", &llm.ConfigError{Reason: "base URL is required"}
	}
	base := strings.TrimSuffix(cfg.BaseURL, "/")
	if strings.HasSuffix(base, "/api") {
		return base + "/chat", nil
	}
	return base + "/api/chat", nil
}

// Headers requires no credential: local daemons run unauthenticated. A key,
// when configured, is still forwarded for proxied deployments.
func (a *adapter) Headers(cfg llm.ModelConfig) (map[string]string, error) {
	headers := map[string]string{
		"Content-Type": "application/json",
	}
	if cfg.APIKey != "" {
		headers["Authorization"] = "Bearer " + cfg.APIKey
	}
	return headers, nil
}

func (a *adapter) BuildBody(req *llm.ChatRequest) (map[string]any, error) {
	cfg := req.Model

	body := map[string]any{
		"model":    cfg.Name,
		"messages": toWire(req),
		"stream":   true,
	}

	if cfg.IncludeReasoning || cfg.ThinkingBudget != nil {
		body["think"] = true
	}

	options := map[string]any{}
	if cfg.Temperature != nil {
		options["temperature"] = *cfg.Temperature
	}
	if cfg.TopP != nil {
		options["top_p"] = *cfg.TopP
	}
	if cfg.TopK != nil {
		options["top_k"] = *cfg.TopK
	}
	if cfg.MinP != nil {
		options["min_p"] = *cfg.MinP
	}
	if cfg.RepeatPenalty != nil {
		options["repeat_penalty"] = *cfg.RepeatPenalty
	}
	if cfg.FrequencyPenalty != nil {
		options["frequency_penalty"] = *cfg.FrequencyPenalty
	}
	if cfg.PresencePenalty != nil {
		options["presence_penalty"] = *cfg.PresencePenalty
	}
	if cfg.Seed != nil {
		options["seed"] = *cfg.Seed
	}
	if len(cfg.Stop) > 0 {
		options["stop"] = cfg.Stop
	}
	if limit := numPredict(cfg); limit != nil {
		options["num_predict"] = *limit
	}
	if len(options) > 0 {
		body["options"] = options
	}

	if len(req.Tools) > 0 {
		tools := make([]ollamaTool, 0, len(req.Tools))
		for _, t := range req.Tools {
			tools = append(tools, ollamaTool{
				Type: "function",
				Function: ollamaToolSpec{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  t.Parameters,
				},
			})
		}
		body["tools"] = tools
	}

	llm.MergeExtra(body, cfg.Extra)
	return body, nil
}

// numPredict maps whichever max-token variant is configured onto Ollama's
// single limit option.
func numPredict(cfg llm.ModelConfig) *int {
	switch {
	case cfg.MaxTokens != nil:
		return cfg.MaxTokens
	case cfg.MaxOutputTokens != nil:
		return cfg.MaxOutputTokens
	case cfg.MaxCompletionTokens != nil:
		return cfg.MaxCompletionTokens
	default:
		return nil
	}
}

func toWire(req *llm.ChatRequest) []ollamaMessage {
	out := make([]ollamaMessage, 0, len(req.Messages)+1)

	if req.System != "" {
		out = append(out, ollamaMessage{Role: "system", Content: req.System})
	}

	for _, msg := range req.Messages {
		switch {
		case msg.Role == "assistant":
			out = append(out, assistantToWire(msg, req.Model))
		case msg.IsToolResultOnly():
			// One tool-role message per result; the daemon pairs them with
			// the preceding turn's calls by position.
			for _, block := range msg.Content {
				out = append(out, ollamaMessage{
					Role:    "tool",
					Content: block.ToolOutput,
				})
			}
		default:
			out = append(out, userToWire(msg))
		}
	}
	return out
}

func userToWire(msg llm.Message) ollamaMessage {
	wire := ollamaMessage{Role: msg.Role}
	for _, block := range msg.Content {
		switch block.Type {
		case llm.BlockText:
			wire.Content += block.Text
		case llm.BlockImage:
			// The daemon takes raw base64 with no media-type envelope, so
			// malformed payloads would only fail server-side.
			if llm.ValidBase64(block.ImageBase64) {
				wire.Images = append(wire.Images, block.ImageBase64)
			}
		}
	}
	return wire
}

func assistantToWire(msg llm.Message, cfg llm.ModelConfig) ollamaMessage {
	wire := ollamaMessage{Role: "assistant"}
	for _, block := range msg.Content {
		switch block.Type {
		case llm.BlockText:
			wire.Content += block.Text
		case llm.BlockThinking:
			if cfg.ReasoningInRequest {
				wire.Thinking += block.Thinking
			}
		case llm.BlockToolUse:
			args := block.ToolInput
			if args == nil {
				args = map[string]any{}
			}
			wire.ToolCalls = append(wire.ToolCalls, ollamaToolCall{
				Function: ollamaFunction{Name: block.ToolName, Arguments: args},
			})
		}
	}
	return wire
}
