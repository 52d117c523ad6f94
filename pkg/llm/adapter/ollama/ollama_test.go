package ollama_test

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/hollowaylabs/patchbay/pkg/llm"
	"github.com/hollowaylabs/patchbay/pkg/llm/adapter/ollama"
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

func wireJSON(body map[string]any) map[string]any {
	raw, err := json.Marshal(body)
	Expect(err).NotTo(HaveOccurred())
	var out map[string]any
	Expect(json.Unmarshal(raw, &out)).To(Succeed())
	return out
}

func intPtr(v int) *int { return &v }

var _ = Describe("Ollama Adapter", func() {
	var cfg llm.ModelConfig

	BeforeEach(func() {
		cfg = llm.ModelConfig{
			Name:     "llama3.1",
			Protocol: llm.ProtocolOllama,
			BaseURL:  "http://localhost:11434",
		}
	})

	Describe("Endpoint", func() {
		It("appends /api/chat", func() {
			url, err := ollama.New().Endpoint(cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(url).To(Equal("http://localhost:11434/api/chat"))
		})

		It("does not double the /api segment", func() {
			cfg.BaseURL = "http://localhost:11434/api"
			url, err := ollama.New().Endpoint(cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(url).To(Equal("http://localhost:11434/api/chat"))
		})
	})

	Describe("Headers", func() {
		It("requires no credential", func() {
			headers, err := ollama.New().Headers(cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(headers).NotTo(HaveKey("Authorization"))
		})

		It("forwards a configured key as bearer auth", func() {
			cfg.APIKey = "proxy-key"
			headers, err := ollama.New().Headers(cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(headers["Authorization"]).To(Equal("Bearer proxy-key"))
		})
	})

	Describe("BuildBody", func() {
		It("inlines the system prompt as the first message", func() {
			req := &llm.ChatRequest{
				Model:    cfg,
				System:   "Be terse.",
				Messages: []llm.Message{llm.NewTextMessage("user", "Hi")},
			}
			body, err := ollama.New().BuildBody(req)
			Expect(err).NotTo(HaveOccurred())

			messages := wireJSON(body)["messages"].([]any)
			Expect(messages).To(HaveLen(2))
			Expect(messages[0].(map[string]any)["role"]).To(Equal("system"))
			Expect(messages[0].(map[string]any)["content"]).To(Equal("Be terse."))
		})

		It("maps sampling onto the options object", func() {
			temp := 0.5
			cfg.Temperature = &temp
			cfg.MaxTokens = intPtr(256)
			body, err := ollama.New().BuildBody(&llm.ChatRequest{Model: cfg})
			Expect(err).NotTo(HaveOccurred())

			options := body["options"].(map[string]any)
			Expect(options["temperature"]).To(Equal(0.5))
			Expect(options["num_predict"]).To(Equal(256))
		})

		It("omits options when nothing is set", func() {
			body, err := ollama.New().BuildBody(&llm.ChatRequest{Model: cfg})
			Expect(err).NotTo(HaveOccurred())
			Expect(body).NotTo(HaveKey("options"))
			Expect(body).NotTo(HaveKey("think"))
		})

		It("requests thinking when reasoning is enabled", func() {
			cfg.IncludeReasoning = true
			body, err := ollama.New().BuildBody(&llm.ChatRequest{Model: cfg})
			Expect(err).NotTo(HaveOccurred())
			Expect(body["think"]).To(BeTrue())
		})

		It("carries images as raw base64 alongside the text", func() {
			req := &llm.ChatRequest{
				Model: cfg,
				Messages: []llm.Message{
					{Role: "user", Content: []llm.ContentBlock{
						{Type: llm.BlockText, Text: "Describe this"},
						{Type: llm.BlockImage, MediaType: "image/png", ImageBase64: "aGk="},
					}},
				},
			}
			body, err := ollama.New().BuildBody(req)
			Expect(err).NotTo(HaveOccurred())

			msg := wireJSON(body)["messages"].([]any)[0].(map[string]any)
			Expect(msg["content"]).To(Equal("Describe this"))
			Expect(msg["images"]).To(Equal([]any{"aGk="}))
		})

		It("emits one tool-role message per result in call order", func() {
			req := &llm.ChatRequest{
				Model: cfg,
				Messages: []llm.Message{
					{Role: "assistant", Content: []llm.ContentBlock{
						{Type: llm.BlockToolUse, ToolName: "a", ToolInput: map[string]any{}},
						{Type: llm.BlockToolUse, ToolName: "b", ToolInput: map[string]any{}},
					}},
					{Role: "tool", Content: []llm.ContentBlock{
						{Type: llm.BlockToolResult, ToolResultID: "call_1", ToolOutput: "one"},
						{Type: llm.BlockToolResult, ToolResultID: "call_2", ToolOutput: "two"},
					}},
				},
			}
			body, err := ollama.New().BuildBody(req)
			Expect(err).NotTo(HaveOccurred())

			messages := wireJSON(body)["messages"].([]any)
			Expect(messages).To(HaveLen(3))

			assistant := messages[0].(map[string]any)
			calls := assistant["tool_calls"].([]any)
			Expect(calls).To(HaveLen(2))
			Expect(calls[0].(map[string]any)["function"].(map[string]any)["name"]).To(Equal("a"))

			Expect(messages[1].(map[string]any)["role"]).To(Equal("tool"))
			Expect(messages[1].(map[string]any)["content"]).To(Equal("one"))
			Expect(messages[2].(map[string]any)["content"]).To(Equal("two"))
		})

		It("resends thinking only when enabled", func() {
			msg := llm.Message{Role: "assistant", Content: []llm.ContentBlock{
				{Type: llm.BlockThinking, Thinking: "hmm"},
				{Type: llm.BlockText, Text: "Answer"},
			}}

			body, err := ollama.New().BuildBody(&llm.ChatRequest{Model: cfg, Messages: []llm.Message{msg}})
			Expect(err).NotTo(HaveOccurred())
			wire := wireJSON(body)["messages"].([]any)[0].(map[string]any)
			Expect(wire).NotTo(HaveKey("thinking"))

			cfg.ReasoningInRequest = true
			body, err = ollama.New().BuildBody(&llm.ChatRequest{Model: cfg, Messages: []llm.Message{msg}})
			Expect(err).NotTo(HaveOccurred())
			wire = wireJSON(body)["messages"].([]any)[0].(map[string]any)
			Expect(wire["thinking"]).To(Equal("hmm"))
		})
	})

	Describe("Decode", func() {
		decode := func(input string) []llm.StreamEvent {
			var events []llm.StreamEvent
			err := ollama.New().Decode(context.Background(), strings.NewReader(input), cfg,
				func(ev llm.StreamEvent) error {
					events = append(events, ev)
					return nil
				})
			Expect(err).NotTo(HaveOccurred())
			return events
		}

		It("decodes content lines and the final done line", func() {
			input := `{"message":{"role":"assistant","content":"Hello"},"done":false}` + "\n" +
				`{"message":{"role":"assistant","content":" world"},"done":false}` + "\n" +
				`{"message":{"role":"assistant","content":""},"done":true,"done_reason":"stop","prompt_eval_count":9,"eval_count":4}` + "\n"
			events := decode(input)

			Expect(events).To(HaveLen(3))
			Expect(events[0].Text).To(Equal("Hello"))
			Expect(events[1].Text).To(Equal(" world"))
			done := events[2]
			Expect(done.Type).To(Equal(llm.EventDone))
			Expect(done.StopReason).To(Equal("stop"))
			Expect(done.Usage.PromptTokens).To(Equal(9))
			Expect(done.Usage.CompletionTokens).To(Equal(4))
		})

		It("routes structured thinking to thinking deltas", func() {
			input := `{"message":{"role":"assistant","thinking":"pondering","content":""},"done":false}` + "\n" +
				`{"message":{"role":"assistant","content":"Answer"},"done":false}` + "\n" +
				`{"done":true,"done_reason":"stop"}` + "\n"
			events := decode(input)

			Expect(events[0].Type).To(Equal(llm.EventThinkingDelta))
			Expect(events[1].Type).To(Equal(llm.EventThinkingEnd))
			Expect(events[2].Type).To(Equal(llm.EventTextDelta))
		})

		It("classifies inline think markers when scanning is enabled", func() {
			cfg.ScanReasoningTags = true
			input := `{"message":{"role":"assistant","content":"<think>hidden</think>shown"},"done":false}` + "\n" +
				`{"done":true,"done_reason":"stop"}` + "\n"
			events := decode(input)

			Expect(events[0].Type).To(Equal(llm.EventThinkingDelta))
			Expect(events[0].Text).To(Equal("hidden"))
			Expect(events[1].Type).To(Equal(llm.EventThinkingEnd))
			Expect(events[2].Text).To(Equal("shown"))
		})

		It("emits whole tool calls with synthesized ids", func() {
			input := `{"message":{"role":"assistant","content":"","tool_calls":[{"function":{"name":"get_weather","arguments":{"location":"Paris"}}}]},"done":false}` + "\n" +
				`{"done":true,"done_reason":"stop"}` + "\n"
			events := decode(input)

			Expect(events).To(HaveLen(2))
			Expect(events[0].Type).To(Equal(llm.EventToolCall))
			Expect(events[0].CallID).To(HavePrefix("call_"))
			Expect(events[0].ToolName).To(Equal("get_weather"))
			Expect(events[0].Args).To(Equal(map[string]any{"location": "Paris"}))
		})

		It("skips malformed lines without aborting", func() {
			input := "not json\n" +
				`{"message":{"role":"assistant","content":"ok"},"done":false}` + "\n" +
				`{"done":true,"done_reason":"stop"}` + "\n"
			events := decode(input)
			Expect(events[0].Text).To(Equal("ok"))
		})

		It("reports no usage when the daemon sends no counts", func() {
			input := `{"done":true,"done_reason":"stop"}` + "\n"
			events := decode(input)
			Expect(events).To(HaveLen(1))
			Expect(events[0].Usage).To(BeNil())
		})

		It("flushes open thinking and terminates when the body read dies on cancellation", func() {
			src := &dyingReader{
				payload: `{"message":{"role":"assistant","thinking":"step one","content":""},"done":false}` + "\n",
				err:     fmt.Errorf("read tcp: %w", context.Canceled),
			}

			var events []llm.StreamEvent
			err := ollama.New().Decode(context.Background(), src, cfg,
				func(ev llm.StreamEvent) error {
					events = append(events, ev)
					return nil
				})
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(HaveLen(3))
			Expect(events[0].Type).To(Equal(llm.EventThinkingDelta))
			Expect(events[0].Text).To(Equal("step one"))
			Expect(events[1].Type).To(Equal(llm.EventThinkingEnd))
			Expect(events[2].Type).To(Equal(llm.EventDone))
			Expect(events[2].StopReason).To(Equal("cancelled"))
		})
	})
})
