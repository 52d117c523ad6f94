package openai_test

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/hollowaylabs/patchbay/pkg/llm"
	"github.com/hollowaylabs/patchbay/pkg/llm/adapter/openai"
)

// dyingReader yields its payload, then fails every subsequent read with err,
// the shape net/http gives a body read after request-context cancellation.
type dyingReader struct {
	payload string
	err     error
}

func (r *dyingReader) Read(p []byte) (int, error) {
	if r.payload != "" {
		n := copy(p, r.payload)
		r.payload = r.payload[n:]
		return n, nil
	}
	return 0, r.err
}

// wireJSON marshals a built body so nested wire structs can be asserted as
// plain maps.
func wireJSON(body map[string]any) map[string]any {
	raw, err := json.Marshal(body)
	Expect(err).NotTo(HaveOccurred())
	var out map[string]any
	Expect(json.Unmarshal(raw, &out)).To(Succeed())
	return out
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

var _ = Describe("OpenAI Adapter", func() {
	var cfg llm.ModelConfig

	BeforeEach(func() {
		cfg = llm.ModelConfig{
			Name:     "gpt-4o",
			Protocol: llm.ProtocolOpenAI,
			BaseURL:  "https://api.openai.com/v1",
			APIKey:   "sk-test",
		}
	})

	Describe("Name", func() {
		It("returns 'openai'", func() {
			Expect(openai.New().Name()).To(Equal("openai"))
		})
	})

	Describe("Endpoint", func() {
		It("appends /chat/completions to the base URL", func() {
			url, err := openai.New().Endpoint(cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(url).To(Equal("https://api.openai.com/v1/chat/completions"))
		})

		It("trims a trailing slash", func() {
			cfg.BaseURL = "https://api.openai.com/v1/"
			url, err := openai.New().Endpoint(cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(url).To(Equal("https://api.openai.com/v1/chat/completions"))
		})

		It("requires a base URL", func() {
			cfg.BaseURL = ""
			_, err := openai.New().Endpoint(cfg)
			var confErr *llm.ConfigError
			Expect(err).To(BeAssignableToTypeOf(confErr))
		})
	})

	Describe("Headers", func() {
		It("sends bearer auth", func() {
			headers, err := openai.New().Headers(cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(headers["Authorization"]).To(Equal("Bearer sk-test"))
			Expect(headers["Content-Type"]).To(Equal("application/json"))
		})

		It("requires an API key", func() {
			cfg.APIKey = ""
			_, err := openai.New().Headers(cfg)
			var confErr *llm.ConfigError
			Expect(err).To(BeAssignableToTypeOf(confErr))
		})
	})

	Describe("BuildBody", func() {
		It("builds a streaming request with the system prompt inline", func() {
			req := &llm.ChatRequest{
				Model:  cfg,
				System: "Be terse.",
				Messages: []llm.Message{
					llm.NewTextMessage("user", "Hello"),
				},
			}
			body, err := openai.New().BuildBody(req)
			Expect(err).NotTo(HaveOccurred())

			wire := wireJSON(body)
			Expect(wire["model"]).To(Equal("gpt-4o"))
			Expect(wire["stream"]).To(BeTrue())

			messages := wire["messages"].([]any)
			Expect(messages).To(HaveLen(2))
			first := messages[0].(map[string]any)
			Expect(first["role"]).To(Equal("system"))
			Expect(first["content"]).To(Equal("Be terse."))
			second := messages[1].(map[string]any)
			Expect(second["role"]).To(Equal("user"))
			Expect(second["content"]).To(Equal("Hello"))
		})

		It("omits unset sampling fields", func() {
			req := &llm.ChatRequest{Model: cfg}
			body, err := openai.New().BuildBody(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(body).NotTo(HaveKey("temperature"))
			Expect(body).NotTo(HaveKey("top_p"))
			Expect(body).NotTo(HaveKey("max_tokens"))
			Expect(body).NotTo(HaveKey("max_completion_tokens"))
		})

		It("maps set sampling fields", func() {
			cfg.Temperature = floatPtr(0.7)
			cfg.TopP = floatPtr(0.9)
			cfg.Seed = intPtr(42)
			cfg.Stop = []string{"END"}
			req := &llm.ChatRequest{Model: cfg}

			body, err := openai.New().BuildBody(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(body["temperature"]).To(Equal(0.7))
			Expect(body["top_p"]).To(Equal(0.9))
			Expect(body["seed"]).To(Equal(42))
			Expect(body["stop"]).To(Equal([]string{"END"}))
		})

		Context("max-token variants", func() {
			It("prefers max_completion_tokens", func() {
				cfg.MaxCompletionTokens = intPtr(2048)
				body, err := openai.New().BuildBody(&llm.ChatRequest{Model: cfg})
				Expect(err).NotTo(HaveOccurred())
				Expect(body["max_completion_tokens"]).To(Equal(2048))
				Expect(body).NotTo(HaveKey("max_tokens"))
			})

			It("falls back to max_tokens", func() {
				cfg.MaxTokens = intPtr(1024)
				body, err := openai.New().BuildBody(&llm.ChatRequest{Model: cfg})
				Expect(err).NotTo(HaveOccurred())
				Expect(body["max_tokens"]).To(Equal(1024))
				Expect(body).NotTo(HaveKey("max_completion_tokens"))
			})

			It("maps max_output_tokens to max_completion_tokens", func() {
				cfg.MaxOutputTokens = intPtr(512)
				body, err := openai.New().BuildBody(&llm.ChatRequest{Model: cfg})
				Expect(err).NotTo(HaveOccurred())
				Expect(body["max_completion_tokens"]).To(Equal(512))
				Expect(body).NotTo(HaveKey("max_output_tokens"))
			})
		})

		Context("tools", func() {
			tool := llm.Tool{
				Name:        "get_weather",
				Description: "Look up current weather",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"location": map[string]any{"type": "string"},
					},
				},
			}

			It("declares tools in the function wrapper shape", func() {
				req := &llm.ChatRequest{Model: cfg, Tools: []llm.Tool{tool}}
				body, err := openai.New().BuildBody(req)
				Expect(err).NotTo(HaveOccurred())

				wire := wireJSON(body)
				tools := wire["tools"].([]any)
				Expect(tools).To(HaveLen(1))
				decl := tools[0].(map[string]any)
				Expect(decl["type"]).To(Equal("function"))
				fn := decl["function"].(map[string]any)
				Expect(fn["name"]).To(Equal("get_weather"))
				Expect(fn["description"]).To(Equal("Look up current weather"))
			})

			It("omits tool_choice for auto", func() {
				req := &llm.ChatRequest{Model: cfg, Tools: []llm.Tool{tool}, ToolChoice: "auto"}
				body, err := openai.New().BuildBody(req)
				Expect(err).NotTo(HaveOccurred())
				Expect(body).NotTo(HaveKey("tool_choice"))
			})

			It("passes none and required through as strings", func() {
				req := &llm.ChatRequest{Model: cfg, Tools: []llm.Tool{tool}, ToolChoice: "required"}
				body, err := openai.New().BuildBody(req)
				Expect(err).NotTo(HaveOccurred())
				Expect(body["tool_choice"]).To(Equal("required"))
			})

			It("wraps a specific tool name in the function object form", func() {
				req := &llm.ChatRequest{Model: cfg, Tools: []llm.Tool{tool}, ToolChoice: "get_weather"}
				body, err := openai.New().BuildBody(req)
				Expect(err).NotTo(HaveOccurred())

				wire := wireJSON(body)
				choice := wire["tool_choice"].(map[string]any)
				Expect(choice["type"]).To(Equal("function"))
				Expect(choice["function"].(map[string]any)["name"]).To(Equal("get_weather"))
			})
		})

		Context("assistant turns", func() {
			It("serializes tool calls with JSON-string arguments", func() {
				req := &llm.ChatRequest{
					Model: cfg,
					Messages: []llm.Message{
						{Role: "assistant", Content: []llm.ContentBlock{
							{Type: llm.BlockText, Text: "Checking."},
							{
								Type:      llm.BlockToolUse,
								ToolUseID: "call_1",
								ToolName:  "get_weather",
								ToolInput: map[string]any{"location": "Paris"},
							},
						}},
					},
				}
				body, err := openai.New().BuildBody(req)
				Expect(err).NotTo(HaveOccurred())

				wire := wireJSON(body)
				msg := wire["messages"].([]any)[0].(map[string]any)
				Expect(msg["role"]).To(Equal("assistant"))
				Expect(msg["content"]).To(Equal("Checking."))
				calls := msg["tool_calls"].([]any)
				Expect(calls).To(HaveLen(1))
				call := calls[0].(map[string]any)
				Expect(call["id"]).To(Equal("call_1"))
				fn := call["function"].(map[string]any)
				Expect(fn["name"]).To(Equal("get_weather"))
				Expect(fn["arguments"]).To(MatchJSON(`{"location":"Paris"}`))
			})

			It("drops thinking blocks unless resend is enabled", func() {
				msg := llm.Message{Role: "assistant", Content: []llm.ContentBlock{
					{Type: llm.BlockThinking, Thinking: "hmm"},
					{Type: llm.BlockText, Text: "Answer"},
				}}
				body, err := openai.New().BuildBody(&llm.ChatRequest{Model: cfg, Messages: []llm.Message{msg}})
				Expect(err).NotTo(HaveOccurred())
				wire := wireJSON(body)
				first := wire["messages"].([]any)[0].(map[string]any)
				Expect(first).NotTo(HaveKey("reasoning_content"))

				cfg.ReasoningInRequest = true
				body, err = openai.New().BuildBody(&llm.ChatRequest{Model: cfg, Messages: []llm.Message{msg}})
				Expect(err).NotTo(HaveOccurred())
				wire = wireJSON(body)
				first = wire["messages"].([]any)[0].(map[string]any)
				Expect(first["reasoning_content"]).To(Equal("hmm"))
			})
		})

		Context("tool results", func() {
			It("emits one tool message per result", func() {
				req := &llm.ChatRequest{
					Model: cfg,
					Messages: []llm.Message{
						{Role: "tool", Content: []llm.ContentBlock{
							{Type: llm.BlockToolResult, ToolResultID: "call_1", ToolOutput: "sunny"},
							{Type: llm.BlockToolResult, ToolResultID: "call_2", ToolOutput: "22C"},
						}},
					},
				}
				body, err := openai.New().BuildBody(req)
				Expect(err).NotTo(HaveOccurred())

				wire := wireJSON(body)
				messages := wire["messages"].([]any)
				Expect(messages).To(HaveLen(2))
				first := messages[0].(map[string]any)
				Expect(first["role"]).To(Equal("tool"))
				Expect(first["tool_call_id"]).To(Equal("call_1"))
				Expect(first["content"]).To(Equal("sunny"))
				second := messages[1].(map[string]any)
				Expect(second["tool_call_id"]).To(Equal("call_2"))
			})
		})

		Context("user images", func() {
			It("switches to the content-array form with a data URL", func() {
				req := &llm.ChatRequest{
					Model: cfg,
					Messages: []llm.Message{
						{Role: "user", Content: []llm.ContentBlock{
							{Type: llm.BlockText, Text: "What is this?"},
							{Type: llm.BlockImage, MediaType: "image/png", ImageBase64: "aGk="},
						}},
					},
				}
				body, err := openai.New().BuildBody(req)
				Expect(err).NotTo(HaveOccurred())

				wire := wireJSON(body)
				msg := wire["messages"].([]any)[0].(map[string]any)
				parts := msg["content"].([]any)
				Expect(parts).To(HaveLen(2))
				image := parts[1].(map[string]any)
				Expect(image["type"]).To(Equal("image_url"))
				url := image["image_url"].(map[string]any)["url"].(string)
				Expect(url).To(Equal("data:image/png;base64,aGk="))
			})
		})

		It("merges extra fields last", func() {
			cfg.Temperature = floatPtr(0.7)
			cfg.Extra = map[string]any{"temperature": 0.2, "custom_field": "x"}
			body, err := openai.New().BuildBody(&llm.ChatRequest{Model: cfg})
			Expect(err).NotTo(HaveOccurred())
			Expect(body["temperature"]).To(Equal(0.2))
			Expect(body["custom_field"]).To(Equal("x"))
		})
	})

	Describe("Decode", func() {
		decode := func(input string) []llm.StreamEvent {
			var events []llm.StreamEvent
			err := openai.New().Decode(context.Background(), strings.NewReader(input), cfg,
				func(ev llm.StreamEvent) error {
					events = append(events, ev)
					return nil
				})
			Expect(err).NotTo(HaveOccurred())
			return events
		}

		It("emits text deltas and a terminal done", func() {
			input := "data: {\"choices\":[{\"delta\":{\"content\":\"Hello\"}}]}\n\n" +
				"data: {\"choices\":[{\"delta\":{\"content\":\" world\"}}]}\n\n" +
				"data: {\"choices\":[{\"delta\":{},\"finish_reason\":\"stop\"}]}\n\n" +
				"data: [DONE]\n\n"
			events := decode(input)

			Expect(events).To(HaveLen(3))
			Expect(events[0].Type).To(Equal(llm.EventTextDelta))
			Expect(events[0].Text).To(Equal("Hello"))
			Expect(events[1].Text).To(Equal(" world"))
			Expect(events[2].Type).To(Equal(llm.EventDone))
			Expect(events[2].StopReason).To(Equal("stop"))
		})

		It("routes reasoning_content to thinking deltas", func() {
			input := "data: {\"choices\":[{\"delta\":{\"reasoning_content\":\"pondering\"}}]}\n\n" +
				"data: {\"choices\":[{\"delta\":{\"content\":\"Answer\"}}]}\n\n" +
				"data: [DONE]\n\n"
			events := decode(input)

			Expect(events).To(HaveLen(4))
			Expect(events[0].Type).To(Equal(llm.EventThinkingDelta))
			Expect(events[0].Text).To(Equal("pondering"))
			Expect(events[1].Type).To(Equal(llm.EventThinkingEnd))
			Expect(events[2].Type).To(Equal(llm.EventTextDelta))
			Expect(events[3].Type).To(Equal(llm.EventDone))
		})

		It("accepts the alternate reasoning spelling", func() {
			input := "data: {\"choices\":[{\"delta\":{\"reasoning\":\"thought\"}}]}\n\n" +
				"data: [DONE]\n\n"
			events := decode(input)
			Expect(events[0].Type).To(Equal(llm.EventThinkingDelta))
			Expect(events[0].Text).To(Equal("thought"))
		})

		It("assembles fragmented tool-call arguments", func() {
			input := "data: {\"choices\":[{\"delta\":{\"tool_calls\":[{\"index\":0,\"id\":\"call_1\",\"function\":{\"name\":\"get_weather\",\"arguments\":\"{\\\"loc\"}}]}}]}\n\n" +
				"data: {\"choices\":[{\"delta\":{\"tool_calls\":[{\"index\":0,\"function\":{\"arguments\":\"ation\\\":\\\"Paris\\\"}\"}}]}}]}\n\n" +
				"data: {\"choices\":[{\"delta\":{},\"finish_reason\":\"tool_calls\"}]}\n\n" +
				"data: [DONE]\n\n"
			events := decode(input)

			Expect(events).To(HaveLen(2))
			Expect(events[0].Type).To(Equal(llm.EventToolCall))
			Expect(events[0].CallID).To(Equal("call_1"))
			Expect(events[0].ToolName).To(Equal("get_weather"))
			Expect(events[0].Args).To(Equal(map[string]any{"location": "Paris"}))
			Expect(events[1].Type).To(Equal(llm.EventDone))
			Expect(events[1].StopReason).To(Equal("tool_calls"))
		})

		It("fails the stream when a finished tool call never parses", func() {
			input := "data: {\"choices\":[{\"delta\":{\"tool_calls\":[{\"index\":0,\"id\":\"call_1\",\"function\":{\"name\":\"get_weather\",\"arguments\":\"{\\\"trunc\"}}]}}]}\n\n" +
				"data: {\"choices\":[{\"delta\":{},\"finish_reason\":\"tool_calls\"}]}\n\n"
			var events []llm.StreamEvent
			err := openai.New().Decode(context.Background(), strings.NewReader(input), cfg,
				func(ev llm.StreamEvent) error {
					events = append(events, ev)
					return nil
				})
			var decodeErr *llm.DecodeError
			Expect(err).To(BeAssignableToTypeOf(decodeErr))
		})

		It("drops an incomplete tool call at benign end of stream", func() {
			input := "data: {\"choices\":[{\"delta\":{\"tool_calls\":[{\"index\":0,\"id\":\"call_1\",\"function\":{\"name\":\"get_weather\",\"arguments\":\"{\\\"trunc\"}}]}}]}\n\n" +
				"data: [DONE]\n\n"
			events := decode(input)
			Expect(events).To(HaveLen(1))
			Expect(events[0].Type).To(Equal(llm.EventDone))
		})

		It("captures usage from the final chunk", func() {
			input := "data: {\"choices\":[{\"delta\":{\"content\":\"Hi\"}}]}\n\n" +
				"data: {\"choices\":[],\"usage\":{\"prompt_tokens\":10,\"completion_tokens\":5,\"total_tokens\":15}}\n\n" +
				"data: [DONE]\n\n"
			events := decode(input)
			done := events[len(events)-1]
			Expect(done.Type).To(Equal(llm.EventDone))
			Expect(done.Usage).NotTo(BeNil())
			Expect(done.Usage.PromptTokens).To(Equal(10))
			Expect(done.Usage.CompletionTokens).To(Equal(5))
		})

		It("skips malformed payloads without aborting", func() {
			input := "data: not json\n\n" +
				"data: {\"choices\":[{\"delta\":{\"content\":\"ok\"}}]}\n\n" +
				"data: [DONE]\n\n"
			events := decode(input)
			Expect(events[0].Text).To(Equal("ok"))
		})

		It("classifies inline think tags when scanning is enabled", func() {
			cfg.ScanReasoningTags = true
			input := "data: {\"choices\":[{\"delta\":{\"content\":\"<think>hidden</think>shown\"}}]}\n\n" +
				"data: [DONE]\n\n"
			events := decode(input)

			Expect(events[0].Type).To(Equal(llm.EventThinkingDelta))
			Expect(events[0].Text).To(Equal("hidden"))
			Expect(events[1].Type).To(Equal(llm.EventThinkingEnd))
			Expect(events[2].Type).To(Equal(llm.EventTextDelta))
			Expect(events[2].Text).To(Equal("shown"))
		})

		It("emits a cancellation done when the context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			var events []llm.StreamEvent
			err := openai.New().Decode(ctx, strings.NewReader("data: {\"choices\":[{\"delta\":{\"content\":\"x\"}}]}\n\n"), cfg,
				func(ev llm.StreamEvent) error {
					events = append(events, ev)
					return nil
				})
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(HaveLen(1))
			Expect(events[0].Type).To(Equal(llm.EventDone))
			Expect(events[0].StopReason).To(Equal("cancelled"))
		})

		It("flushes open thinking and terminates when the body read dies on cancellation", func() {
			src := &dyingReader{
				payload: "data: {\"choices\":[{\"delta\":{\"reasoning_content\":\"thinking hard\"}}]}\n\n",
				err:     fmt.Errorf("read tcp: %w", context.Canceled),
			}

			var events []llm.StreamEvent
			err := openai.New().Decode(context.Background(), src, cfg,
				func(ev llm.StreamEvent) error {
					events = append(events, ev)
					return nil
				})
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(HaveLen(3))
			Expect(events[0].Type).To(Equal(llm.EventThinkingDelta))
			Expect(events[0].Text).To(Equal("thinking hard"))
			Expect(events[1].Type).To(Equal(llm.EventThinkingEnd))
			Expect(events[2].Type).To(Equal(llm.EventDone))
			Expect(events[2].StopReason).To(Equal("cancelled"))
		})
	})
})
