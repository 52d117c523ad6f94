// Package responses implements the Adapter interface for the OpenAI
// Responses API, including delta sends against a server-held previous
// response.
package responses

import (
	"encoding/json"
	"strings"

	"github.com/hollowaylabs/patchbay/pkg/llm"
)

type adapter struct{}

// New returns an adapter for the OpenAI Responses protocol.
func New() *adapter { return &adapter{} }

func (a *adapter) Name() string {
	return llm.ProtocolResponses
}

func (a *adapter) Endpoint(cfg llm.ModelConfig) (string, error) {
	if cfg.BaseURL == "" {
		return "", &llm.ConfigError{Reason: "base URL is required"}
	}
	return strings.TrimSuffix(cfg.BaseURL, "/") + "/responses", nil
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

	previousID, messages := Plan(req)

	body := map[string]any{
		"model":  cfg.Name,
		"input":  toWire(messages),
		"stream": true,
		"store":  true,
	}
	if previousID != "" {
		body["previous_response_id"] = previousID
	}
	if req.System != "" {
		body["instructions"] = req.System
	}

	if cfg.Temperature != nil {
		body["temperature"] = *cfg.Temperature
	}
	if cfg.TopP != nil {
		body["top_p"] = *cfg.TopP
	}
	if limit := maxOutputTokens(cfg); limit != nil {
		body["max_output_tokens"] = *limit
	}
	if cfg.ReasoningEffort != "" {
		reasoning := map[string]any{"effort": cfg.ReasoningEffort}
		if cfg.IncludeReasoning {
			reasoning["summary"] = "auto"
		}
		body["reasoning"] = reasoning
	}

	if len(req.Tools) > 0 {
		tools := make([]responsesTool, 0, len(req.Tools))
		for _, t := range req.Tools {
			tools = append(tools, responsesTool{
				Type:        "function",
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
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

// maxOutputTokens resolves the single limit field this dialect has.
func maxOutputTokens(cfg llm.ModelConfig) *int {
	switch {
	case cfg.MaxOutputTokens != nil:
		return cfg.MaxOutputTokens
	case cfg.MaxCompletionTokens != nil:
		return cfg.MaxCompletionTokens
	case cfg.MaxTokens != nil:
		return cfg.MaxTokens
	default:
		return nil
	}
}

func toolChoice(choice string) any {
	switch choice {
	case "", "auto":
		return nil
	case "none", "required":
		return choice
	default:
		return map[string]any{"type": "function", "name": choice}
	}
}

func toWire(messages []llm.Message) []inputItem {
	var items []inputItem
	for _, msg := range messages {
		switch {
		case msg.Role == "assistant":
			items = append(items, assistantToWire(msg)...)
		case msg.Role == "tool" || msg.IsToolResultOnly():
			for _, block := range msg.Content {
				if block.Type != llm.BlockToolResult {
					continue
				}
				items = append(items, inputItem{
					Type:   "function_call_output",
					CallID: block.ToolResultID,
					Output: block.ToolOutput,
				})
			}
		default:
			items = append(items, userToWire(msg))
		}
	}
	return items
}

func userToWire(msg llm.Message) inputItem {
	parts := make([]contentPart, 0, len(msg.Content))
	for _, block := range msg.Content {
		switch block.Type {
		case llm.BlockText:
			parts = append(parts, contentPart{Type: "input_text", Text: block.Text})
		case llm.BlockImage:
			parts = append(parts, contentPart{
				Type:     "input_image",
				ImageURL: llm.DataURL(block.MediaType, block.ImageBase64),
			})
		}
	}
	return inputItem{Type: "message", Role: msg.Role, Content: parts}
}

// assistantToWire splits one assistant turn into its wire items: an
// output-text message when any text is present, then one function_call item
// per tool use. Thinking and response_ref blocks never go back on the wire;
// the server reconstructs reasoning from previous_response_id.
func assistantToWire(msg llm.Message) []inputItem {
	var items []inputItem

	if text := msg.GetText(); text != "" {
		items = append(items, inputItem{
			Type:    "message",
			Role:    "assistant",
			Content: []contentPart{{Type: "output_text", Text: text}},
		})
	}

	for _, block := range msg.Content {
		if block.Type != llm.BlockToolUse {
			continue
		}
		args := "{}"
		if len(block.ToolInput) > 0 {
			if raw, err := json.Marshal(block.ToolInput); err == nil {
				args = string(raw)
			}
		}
		callID := block.ToolUseID
		if callID == "" {
			callID = llm.NewCallID()
		}
		items = append(items, inputItem{
			Type:      "function_call",
			CallID:    callID,
			Name:      block.ToolName,
			Arguments: args,
		})
	}
	return items
}
