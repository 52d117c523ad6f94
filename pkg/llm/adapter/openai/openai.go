// Package openai implements the Adapter interface for the OpenAI Chat
// Completions wire protocol, the de facto baseline spoken by most
// OpenAI-compatible backends.
package openai

import (
	"encoding/json"
	"strings"

	"github.com/hollowaylabs/patchbay/pkg/llm"
)

// adapter implements the Adapter interface for Chat Completions.
type adapter struct{}

// New returns an adapter for the OpenAI Chat Completions protocol.
func New() *adapter { return &adapter{} }

func (a *adapter) Name() string {
	return llm.ProtocolOpenAI
}

func (a *adapter) Endpoint(cfg llm.ModelConfig) (string, error) {
	if cfg.BaseURL == "" {
		return "", &llm.ConfigError{Reason: "base URL is required"}
	}
	return strings.TrimSuffix(cfg.BaseURL, "/") + "/chat/completions", nil
}

func (a *adapter) Headers(cfg llm.ModelConfig) (map[string]string, error) {
	if cfg.APIKey == "" {
		return nil, &llm.ConfigError{Reason: "API key is required"}
	}
	return map[string]string{
		"Authorization": "Bearer " + cfg.APIKey,
		"Content-Type":  "application/json",
	}, nil
}

func (a *adapter) BuildBody(req *llm.ChatRequest) (map[string]any, error) {
	cfg := req.Model

	body := map[string]any{
		"model":    cfg.Name,
		"messages": toWire(req),
		"stream":   true,
	}

	if cfg.Temperature != nil {
		body["temperature"] = *cfg.Temperature
	}
	if cfg.TopP != nil {
		body["top_p"] = *cfg.TopP
	}
	if cfg.TopK != nil {
		body["top_k"] = *cfg.TopK
	}
	if cfg.MinP != nil {
		body["min_p"] = *cfg.MinP
	}
	if cfg.FrequencyPenalty != nil {
		body["frequency_penalty"] = *cfg.FrequencyPenalty
	}
	if cfg.PresencePenalty != nil {
		body["presence_penalty"] = *cfg.PresencePenalty
	}
	if cfg.RepeatPenalty != nil {
		body["repetition_penalty"] = *cfg.RepeatPenalty
	}
	if cfg.Seed != nil {
		body["seed"] = *cfg.Seed
	}
	if len(cfg.Stop) > 0 {
		body["stop"] = cfg.Stop
	}

	// At most one max-token variant may reach the wire: some APIs reject
	// requests carrying both. The newer field wins when both are set.
	switch {
	case cfg.MaxCompletionTokens != nil:
		body["max_completion_tokens"] = *cfg.MaxCompletionTokens
	case cfg.MaxTokens != nil:
		body["max_tokens"] = *cfg.MaxTokens
	case cfg.MaxOutputTokens != nil:
		body["max_completion_tokens"] = *cfg.MaxOutputTokens
	}

	if cfg.ReasoningEffort != "" {
		body["reasoning_effort"] = cfg.ReasoningEffort
	}

	if len(req.Tools) > 0 {
		tools := make([]chatTool, 0, len(req.Tools))
		for _, t := range req.Tools {
			tools = append(tools, chatTool{
				Type: "function",
				Function: chatFunctionDecl{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  t.Parameters,
				},
			})
		}
		body["tools"] = tools
		if tc := toolChoice(req.ToolChoice); tc != nil {
			body["tool_choice"] = tc
		}
	}

	llm.MergeExtra(body, cfg.Extra)
	return body, nil
}

func toolChoice(choice string) any {
	switch choice {
	case "", "auto":
		return nil
	case "none", "required":
		return choice
	default:
		return map[string]any{
			"type":     "function",
			"function": map[string]any{"name": choice},
		}
	}
}

// toWire converts canonical messages to Chat Completions messages. Unlike
// every other protocol, the system prompt travels as an inline message here.
func toWire(req *llm.ChatRequest) []chatMessage {
	out := make([]chatMessage, 0, len(req.Messages)+1)

	if req.System != "" {
		out = append(out, chatMessage{Role: "system", Content: req.System})
	}

	for _, msg := range req.Messages {
		switch msg.Role {
		case "system":
			out = append(out, chatMessage{Role: "system", Content: msg.GetText()})
		case "assistant":
			out = append(out, assistantToWire(msg, req.Model.ReasoningInRequest))
		case "tool":
			// One wire message per result; Chat Completions pairs results
			// to calls by tool_call_id, not by turn.
			for _, block := range msg.Content {
				if block.Type == llm.BlockToolResult {
					out = append(out, chatMessage{
						Role:       "tool",
						ToolCallID: block.ToolResultID,
						Content:    block.ToolOutput,
					})
				}
			}
		default:
			out = append(out, userToWire(msg))
		}
	}
	return out
}

func userToWire(msg llm.Message) chatMessage {
	var parts []chatContentPart
	hasImage := false
	for _, block := range msg.Content {
		switch block.Type {
		case llm.BlockText:
			parts = append(parts, chatContentPart{Type: "text", Text: block.Text})
		case llm.BlockImage:
			hasImage = true
			parts = append(parts, chatContentPart{
				Type:     "image_url",
				ImageURL: &chatImageURL{URL: llm.DataURL(block.MediaType, block.ImageBase64)},
			})
		case llm.BlockToolResult:
			// Tool results on a user turn still go out as tool messages
			// elsewhere; inline them as text here to avoid dropping data.
			parts = append(parts, chatContentPart{Type: "text", Text: block.ToolOutput})
		}
	}

	if !hasImage {
		return chatMessage{Role: "user", Content: msg.GetText()}
	}
	return chatMessage{Role: "user", Content: parts}
}

func assistantToWire(msg llm.Message, includeReasoning bool) chatMessage {
	wire := chatMessage{Role: "assistant"}

	var text, thinking string
	for _, block := range msg.Content {
		switch block.Type {
		case llm.BlockText:
			text += block.Text
		case llm.BlockThinking:
			thinking += block.Thinking
		case llm.BlockToolUse:
			args, _ := json.Marshal(block.ToolInput)
			id := block.ToolUseID
			if id == "" {
				id = llm.NewCallID()
			}
			wire.ToolCalls = append(wire.ToolCalls, chatToolCall{
				ID:   id,
				Type: "function",
				Function: chatFunctionCall{
					Name:      block.ToolName,
					Arguments: string(args),
				},
			})
		}
	}

	if text != "" || len(wire.ToolCalls) == 0 {
		wire.Content = text
	}
	if includeReasoning && thinking != "" {
		wire.ReasoningContent = thinking
	}
	return wire
}
