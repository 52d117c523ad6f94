// Package gemini implements the Adapter interface for Google's Gemini
// generateContent API.
package gemini

import (
	"fmt"
	"strings"

	"github.com/hollowaylabs/patchbay/pkg/llm"
)

// adapter implements the Adapter interface for generateContent.
type adapter struct{}

// New returns an adapter for the Gemini generateContent protocol.
func New() *adapter { return &adapter{} }

func (a *adapter) Name() string {
	return llm.ProtocolGemini
}

// Endpoint builds the streaming URL, tolerant of base URLs given as a bare
// domain, with a /v1beta suffix, or already shaped like the models
// collection.
func (a *adapter) Endpoint(cfg llm.ModelConfig) (string, error) {
	if cfg.BaseURL == "" {
		return "", &llm.ConfigError{Reason: "base URL is required"}
	}
	base := strings.TrimSuffix(cfg.BaseURL, "/")

	var collection string
	switch {
	case strings.HasSuffix(base, "/models"):
		collection = base
	case strings.HasSuffix(base, "/v1beta"), strings.HasSuffix(base, "/v1"):
		collection = base + "/models"
	default:
		collection = base + "/v1beta/models"
	}
	return fmt.Sprintf("%s/%s:streamGenerateContent?alt=sse", collection, cfg.Name), nil
}

func (a *adapter) Headers(cfg llm.ModelConfig) (map[string]string, error) {
	if cfg.APIKey == "" {
		return nil, &llm.ConfigError{Reason: "API key is required"}
	}
	return map[string]string{
		"x-goog-api-key": cfg.APIKey,
		"Content-Type":   "application/json",
	}, nil
}

func (a *adapter) BuildBody(req *llm.ChatRequest) (map[string]any, error) {
	cfg := req.Model

	body := map[string]any{
		"contents": toWire(req),
	}

	if req.System != "" {
		body["systemInstruction"] = map[string]any{
			"parts": []map[string]any{{"text": req.System}},
		}
	}

	generation := map[string]any{}
	if cfg.Temperature != nil {
		generation["temperature"] = *cfg.Temperature
	}
	if cfg.TopP != nil {
		generation["topP"] = *cfg.TopP
	}
	if cfg.TopK != nil {
		generation["topK"] = *cfg.TopK
	}
	if cfg.Seed != nil {
		generation["seed"] = *cfg.Seed
	}
	if len(cfg.Stop) > 0 {
		generation["stopSequences"] = cfg.Stop
	}
	if limit := maxOutputTokens(cfg); limit != nil {
		generation["maxOutputTokens"] = *limit
	}
	if cfg.ThinkingBudget != nil {
		generation["thinkingConfig"] = map[string]any{
			"thinkingBudget":  *cfg.ThinkingBudget,
			"includeThoughts": true,
		}
	}
	if len(generation) > 0 {
		body["generationConfig"] = generation
	}

	if len(req.Tools) > 0 {
		decls := make([]functionDeclaration, 0, len(req.Tools))
		for _, t := range req.Tools {
			decls = append(decls, functionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  SanitizeSchema(t.Parameters),
			})
		}
		body["tools"] = []map[string]any{{"functionDeclarations": decls}}
		if tc := toolConfig(req.ToolChoice); tc != nil {
			body["toolConfig"] = tc
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
	case cfg.MaxTokens != nil:
		return cfg.MaxTokens
	case cfg.MaxCompletionTokens != nil:
		return cfg.MaxCompletionTokens
	default:
		return nil
	}
}

func toolConfig(choice string) map[string]any {
	switch choice {
	case "", "auto":
		return nil
	case "none":
		return map[string]any{"functionCallingConfig": map[string]any{"mode": "NONE"}}
	case "required":
		return map[string]any{"functionCallingConfig": map[string]any{"mode": "ANY"}}
	default:
		return map[string]any{"functionCallingConfig": map[string]any{
			"mode":                 "ANY",
			"allowedFunctionNames": []string{choice},
		}}
	}
}

// toWire converts canonical messages to Gemini contents. Tool-result runs
// must collapse into one user turn carrying all functionResponse parts, and
// each response is re-paired with the name and thought signature recorded
// when its call was emitted.
func toWire(req *llm.ChatRequest) []geminiContent {
	messages := llm.GroupToolResults(req.Messages)
	out := make([]geminiContent, 0, len(messages))

	for _, msg := range messages {
		switch {
		case msg.Role == "assistant":
			out = append(out, assistantToWire(msg, req.Model))
		case msg.IsToolResultOnly():
			out = append(out, resultsToWire(msg))
		default:
			out = append(out, userToWire(msg))
		}
	}
	return out
}

func userToWire(msg llm.Message) geminiContent {
	parts := make([]geminiPart, 0, len(msg.Content))
	for _, block := range msg.Content {
		switch block.Type {
		case llm.BlockText:
			parts = append(parts, geminiPart{Text: block.Text})
		case llm.BlockImage:
			mime := block.MediaType
			if mime == "" {
				mime = "image/png"
			}
			parts = append(parts, geminiPart{
				InlineData: &geminiBlob{MimeType: mime, Data: block.ImageBase64},
			})
		}
	}
	if len(parts) == 0 {
		parts = append(parts, geminiPart{Text: ""})
	}
	return geminiContent{Role: "user", Parts: parts}
}

func assistantToWire(msg llm.Message, cfg llm.ModelConfig) geminiContent {
	var parts []geminiPart
	for _, block := range msg.Content {
		switch block.Type {
		case llm.BlockText:
			if block.Text != "" {
				parts = append(parts, geminiPart{Text: block.Text})
			}
		case llm.BlockThinking:
			if !cfg.ReasoningInRequest {
				continue
			}
			thinking := block.Thinking
			if thinking == "" {
				thinking = llm.ThinkingPlaceholder
			}
			parts = append(parts, geminiPart{
				Text:             thinking,
				Thought:          true,
				ThoughtSignature: block.Signature,
			})
		case llm.BlockToolUse:
			part := geminiPart{
				FunctionCall: &functionCall{
					ID:   block.ToolUseID,
					Name: block.ToolName,
					Args: block.ToolInput,
				},
			}
			if m, ok := LookupCall(block.ToolUseID); ok && m.Signature != "" {
				part.ThoughtSignature = m.Signature
			}
			parts = append(parts, part)
		}
	}
	if len(parts) == 0 {
		parts = append(parts, geminiPart{Text: ""})
	}
	return geminiContent{Role: "model", Parts: parts}
}

// resultsToWire answers the previous model turn's function calls. A result
// whose call is unknown to the meta cache still produces a functionResponse
// keyed by call id with an empty output - the protocol requires the same
// count of responses as calls.
func resultsToWire(msg llm.Message) geminiContent {
	parts := make([]geminiPart, 0, len(msg.Content))
	for _, block := range msg.Content {
		if block.Type != llm.BlockToolResult {
			continue
		}
		name := block.ToolResultID
		if m, ok := LookupCall(block.ToolResultID); ok {
			name = m.Name
		}
		response := map[string]any{}
		if block.ToolOutput != "" {
			response["output"] = block.ToolOutput
		}
		parts = append(parts, geminiPart{
			FunctionResponse: &functionResponse{
				ID:       block.ToolResultID,
				Name:     name,
				Response: response,
			},
		})
	}
	return geminiContent{Role: "user", Parts: parts}
}
