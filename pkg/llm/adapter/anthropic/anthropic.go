// Package anthropic implements the Adapter interface for Anthropic's
// Messages API.
package anthropic

import (
	"strings"

	"github.com/hollowaylabs/patchbay/pkg/llm"
)

// anthropicVersion is the required API version header value.
const anthropicVersion = "2023-06-01"

// defaultMaxTokens applies when no token limit is configured; the Messages
// API rejects requests without one.
const defaultMaxTokens = 4096

// adapter implements the Adapter interface for the Messages API.
type adapter struct{}

// New returns an adapter for the Anthropic Messages protocol.
func New() *adapter { return &adapter{} }

func (a *adapter) Name() string {
	return llm.ProtocolAnthropic
}

// Endpoint appends /v1/messages, or just /messages when the base URL
// already ends in /v1.
func (a *adapter) Endpoint(cfg llm.ModelConfig) (string, error) {
	if cfg.BaseURL == "" {
		return "", &llm.ConfigError{Reason: "base URL is required"}
	}
	base := strings.TrimSuffix(cfg.BaseURL, "/")
	if strings.HasSuffix(base, "/v1") {
		return base + "/messages", nil
	}
	return base + "/v1/messages", nil
}

func (a *adapter) Headers(cfg llm.ModelConfig) (map[string]string, error) {
	if cfg.APIKey == "" {
		return nil, &llm.ConfigError{Reason: "API key is required"}
	}
	return map[string]string{
		"x-api-key":         cfg.APIKey,
		"anthropic-version": anthropicVersion,
		"Content-Type":      "application/json",
	}, nil
}

func (a *adapter) BuildBody(req *llm.ChatRequest) (map[string]any, error) {
	cfg := req.Model

	body := map[string]any{
		"model":      cfg.Name,
		"messages":   toWire(req),
		"stream":     true,
		"max_tokens": maxTokens(cfg),
	}

	if req.System != "" {
		body["system"] = req.System
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
	if len(cfg.Stop) > 0 {
		body["stop_sequences"] = cfg.Stop
	}

	if cfg.ThinkingBudget != nil {
		body["thinking"] = map[string]any{
			"type":          "enabled",
			"budget_tokens": *cfg.ThinkingBudget,
		}
	}

	if len(req.Tools) > 0 {
		tools := make([]anthropicTool, 0, len(req.Tools))
		for _, t := range req.Tools {
			schema := t.Parameters
			if schema == nil {
				schema = map[string]any{"type": "object"}
			}
			tools = append(tools, anthropicTool{
				Name:        t.Name,
				Description: t.Description,
				InputSchema: schema,
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

// maxTokens resolves the single token limit the Messages API requires,
// regardless of which canonical variant the model config used.
func maxTokens(cfg llm.ModelConfig) int {
	switch {
	case cfg.MaxTokens != nil:
		return *cfg.MaxTokens
	case cfg.MaxCompletionTokens != nil:
		return *cfg.MaxCompletionTokens
	case cfg.MaxOutputTokens != nil:
		return *cfg.MaxOutputTokens
	default:
		return defaultMaxTokens
	}
}

func toolChoice(choice string) any {
	switch choice {
	case "", "auto":
		return nil
	case "none":
		return map[string]any{"type": "none"}
	case "required":
		return map[string]any{"type": "any"}
	default:
		return map[string]any{"type": "tool", "name": choice}
	}
}

// toWire converts canonical messages to Messages-API turns. System parts are
// hoisted by BuildBody; tool-result runs collapse into single user turns,
// and every tool_use in an assistant turn must be answered by a tool_result
// in the following user turn - missing results get a best-effort empty one
// keyed by call id rather than dropping the turn.
func toWire(req *llm.ChatRequest) []anthropicMessage {
	messages := llm.GroupToolResults(req.Messages)
	out := make([]anthropicMessage, 0, len(messages))

	var pendingCalls []string
	for _, msg := range messages {
		switch {
		case msg.Role == "assistant":
			wire, calls := assistantToWire(msg, req.Model)
			pendingCalls = calls
			out = append(out, wire)
		case msg.IsToolResultOnly():
			out = append(out, resultsToWire(msg, pendingCalls))
			pendingCalls = nil
		case msg.Role == "system":
			// Stray system turns mid-conversation become user text.
			out = append(out, anthropicMessage{
				Role:    "user",
				Content: []anthropicBlock{{Type: "text", Text: msg.GetText()}},
			})
		default:
			out = append(out, userToWire(msg))
		}
	}
	return out
}

func userToWire(msg llm.Message) anthropicMessage {
	blocks := make([]anthropicBlock, 0, len(msg.Content))
	for _, block := range msg.Content {
		switch block.Type {
		case llm.BlockText:
			blocks = append(blocks, anthropicBlock{Type: "text", Text: block.Text})
		case llm.BlockImage:
			blocks = append(blocks, anthropicBlock{
				Type: "image",
				Source: &anthropicSource{
					Type:      "base64",
					MediaType: block.MediaType,
					Data:      block.ImageBase64,
				},
			})
		}
	}
	return anthropicMessage{Role: "user", Content: blocks}
}

func assistantToWire(msg llm.Message, cfg llm.ModelConfig) (anthropicMessage, []string) {
	var blocks []anthropicBlock
	var calls []string
	hasTool := false

	for _, block := range msg.Content {
		switch block.Type {
		case llm.BlockThinking:
			if !cfg.ReasoningInRequest {
				continue
			}
			thinking := block.Thinking
			if thinking == "" {
				thinking = llm.ThinkingPlaceholder
			}
			blocks = append(blocks, anthropicBlock{
				Type:      "thinking",
				Thinking:  thinking,
				Signature: block.Signature,
			})
		case llm.BlockText:
			if block.Text != "" {
				blocks = append(blocks, anthropicBlock{Type: "text", Text: block.Text})
			}
		case llm.BlockToolUse:
			hasTool = true
			id := block.ToolUseID
			if id == "" {
				id = llm.NewCallID()
			}
			calls = append(calls, id)
			input := block.ToolInput
			if input == nil {
				input = map[string]any{}
			}
			blocks = append(blocks, anthropicBlock{
				Type:  "tool_use",
				ID:    id,
				Name:  block.ToolName,
				Input: input,
			})
		}
	}

	// A thinking-enabled assistant turn that calls tools must lead with a
	// thinking block.
	if cfg.ReasoningInRequest && hasTool && len(blocks) > 0 && blocks[0].Type != "thinking" {
		blocks = append([]anthropicBlock{{Type: "thinking", Thinking: llm.ThinkingPlaceholder}}, blocks...)
	}
	if len(blocks) == 0 {
		blocks = append(blocks, anthropicBlock{Type: "text", Text: ""})
	}
	return anthropicMessage{Role: "assistant", Content: blocks}, calls
}

// resultsToWire builds the user turn answering the previous assistant
// turn's tool calls. The protocol requires the same count of results as
// calls, so unanswered calls get empty results.
func resultsToWire(msg llm.Message, pendingCalls []string) anthropicMessage {
	answered := make(map[string]bool, len(msg.Content))
	blocks := make([]anthropicBlock, 0, len(msg.Content))

	for _, block := range msg.Content {
		if block.Type != llm.BlockToolResult {
			continue
		}
		answered[block.ToolResultID] = true
		blocks = append(blocks, anthropicBlock{
			Type:      "tool_result",
			ToolUseID: block.ToolResultID,
			Content:   block.ToolOutput,
			IsError:   block.IsError,
		})
	}

	for _, callID := range pendingCalls {
		if !answered[callID] {
			blocks = append(blocks, anthropicBlock{
				Type:      "tool_result",
				ToolUseID: callID,
				Content:   "",
			})
		}
	}
	return anthropicMessage{Role: "user", Content: blocks}
}
