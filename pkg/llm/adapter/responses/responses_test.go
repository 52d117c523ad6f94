package responses_test

import (
	"context"
	"encoding/json"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/hollowaylabs/patchbay/pkg/llm"
	"github.com/hollowaylabs/patchbay/pkg/llm/adapter/responses"
)

func wireJSON(body map[string]any) map[string]any {
	raw, err := json.Marshal(body)
	Expect(err).NotTo(HaveOccurred())
	var out map[string]any
	Expect(json.Unmarshal(raw, &out)).To(Succeed())
	return out
}

var _ = Describe("Responses Adapter", func() {
	var cfg llm.ModelConfig

	BeforeEach(func() {
		cfg = llm.ModelConfig{
			Name:     "gpt-4o",
			Protocol: llm.ProtocolResponses,
			BaseURL:  "https://api.openai.com/v1",
			APIKey:   "sk-test",
		}
	})

	Describe("Endpoint", func() {
		It("appends /responses to the base URL", func() {
			url, err := responses.New().Endpoint(cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(url).To(Equal("https://api.openai.com/v1/responses"))
		})

		It("trims a trailing slash first", func() {
			cfg.BaseURL = "https://proxy.internal/openai/"
			url, err := responses.New().Endpoint(cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(url).To(Equal("https://proxy.internal/openai/responses"))
		})
	})

	Describe("BuildBody", func() {
		It("sends instructions and a stored streaming request", func() {
			req := &llm.ChatRequest{
				Model:    cfg,
				System:   "Be terse.",
				Messages: []llm.Message{llm.NewTextMessage("user", "Hi")},
			}
			body, err := responses.New().BuildBody(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(body["instructions"]).To(Equal("Be terse."))
			Expect(body["stream"]).To(BeTrue())
			Expect(body["store"]).To(BeTrue())
			Expect(body).NotTo(HaveKey("previous_response_id"))
		})

		It("declares tools in the flattened form", func() {
			req := &llm.ChatRequest{
				Model: cfg,
				Tools: []llm.Tool{{Name: "get_weather", Description: "lookup"}},
			}
			body, err := responses.New().BuildBody(req)
			Expect(err).NotTo(HaveOccurred())

			tools := wireJSON(body)["tools"].([]any)
			decl := tools[0].(map[string]any)
			Expect(decl["type"]).To(Equal("function"))
			Expect(decl["name"]).To(Equal("get_weather"))
			Expect(decl).NotTo(HaveKey("function"))
		})

		It("adds a reasoning summary request when reasoning is included", func() {
			cfg.ReasoningEffort = "high"
			cfg.IncludeReasoning = true
			body, err := responses.New().BuildBody(&llm.ChatRequest{Model: cfg})
			Expect(err).NotTo(HaveOccurred())

			reasoning := body["reasoning"].(map[string]any)
			Expect(reasoning["effort"]).To(Equal("high"))
			Expect(reasoning["summary"]).To(Equal("auto"))
		})

		It("splits assistant turns into output text and function calls", func() {
			req := &llm.ChatRequest{
				Model: cfg,
				Messages: []llm.Message{
					{Role: "assistant", Content: []llm.ContentBlock{
						{Type: llm.BlockThinking, Thinking: "hmm"},
						{Type: llm.BlockText, Text: "Checking."},
						{Type: llm.BlockToolUse, ToolUseID: "call_1", ToolName: "get_weather", ToolInput: map[string]any{"location": "Paris"}},
					}},
					llm.NewToolResultMessage("call_1", "sunny"),
				},
			}
			body, err := responses.New().BuildBody(req)
			Expect(err).NotTo(HaveOccurred())

			input := wireJSON(body)["input"].([]any)
			Expect(input).To(HaveLen(3))

			text := input[0].(map[string]any)
			Expect(text["type"]).To(Equal("message"))
			Expect(text["role"]).To(Equal("assistant"))
			part := text["content"].([]any)[0].(map[string]any)
			Expect(part["type"]).To(Equal("output_text"))
			Expect(part["text"]).To(Equal("Checking."))

			call := input[1].(map[string]any)
			Expect(call["type"]).To(Equal("function_call"))
			Expect(call["call_id"]).To(Equal("call_1"))
			Expect(call["arguments"]).To(MatchJSON(`{"location":"Paris"}`))

			output := input[2].(map[string]any)
			Expect(output["type"]).To(Equal("function_call_output"))
			Expect(output["call_id"]).To(Equal("call_1"))
			Expect(output["output"]).To(Equal("sunny"))
		})

		It("serializes a parameterless call as an empty object", func() {
			req := &llm.ChatRequest{
				Model: cfg,
				Messages: []llm.Message{
					{Role: "assistant", Content: []llm.ContentBlock{
						{Type: llm.BlockToolUse, ToolUseID: "call_1", ToolName: "list_files"},
					}},
				},
			}
			body, err := responses.New().BuildBody(req)
			Expect(err).NotTo(HaveOccurred())

			call := wireJSON(body)["input"].([]any)[0].(map[string]any)
			Expect(call["arguments"]).To(Equal("{}"))
		})

		It("sends user images as input_image data URLs", func() {
			req := &llm.ChatRequest{
				Model: cfg,
				Messages: []llm.Message{
					{Role: "user", Content: []llm.ContentBlock{
						{Type: llm.BlockImage, MediaType: "image/jpeg", ImageBase64: "aGk="},
					}},
				},
			}
			body, err := responses.New().BuildBody(req)
			Expect(err).NotTo(HaveOccurred())

			part := wireJSON(body)["input"].([]any)[0].(map[string]any)["content"].([]any)[0].(map[string]any)
			Expect(part["type"]).To(Equal("input_image"))
			Expect(part["image_url"]).To(Equal("data:image/jpeg;base64,aGk="))
		})
	})

	Describe("Plan", func() {
		// Each spec uses its own base URL: the unsupported set is
		// process-wide and only grows.

		historyWithRef := func(model, responseID string) []llm.Message {
			return []llm.Message{
				llm.NewTextMessage("user", "first"),
				{Role: "assistant", Content: []llm.ContentBlock{
					{Type: llm.BlockText, Text: "answer"},
					llm.ContinuityBlock(model, responseID),
				}},
				llm.NewTextMessage("user", "second"),
			}
		}

		It("slices history after the referenced assistant turn", func() {
			cfg.BaseURL = "https://cont-slice.example"
			req := &llm.ChatRequest{Model: cfg, Messages: historyWithRef("gpt-4o", "resp_1")}

			prevID, messages := responses.Plan(req)
			Expect(prevID).To(Equal("resp_1"))
			Expect(messages).To(HaveLen(1))
			Expect(messages[0].GetText()).To(Equal("second"))
		})

		It("sends full history when the reference is for another model", func() {
			cfg.BaseURL = "https://cont-model.example"
			req := &llm.ChatRequest{Model: cfg, Messages: historyWithRef("o4-mini", "resp_1")}

			prevID, messages := responses.Plan(req)
			Expect(prevID).To(BeEmpty())
			Expect(messages).To(HaveLen(3))
		})

		It("sends full history when the reference sits on the last message", func() {
			cfg.BaseURL = "https://cont-tail.example"
			req := &llm.ChatRequest{Model: cfg, Messages: []llm.Message{
				llm.NewTextMessage("user", "first"),
				{Role: "assistant", Content: []llm.ContentBlock{
					{Type: llm.BlockText, Text: "answer"},
					llm.ContinuityBlock("gpt-4o", "resp_tail"),
				}},
			}}

			prevID, messages := responses.Plan(req)
			Expect(prevID).To(BeEmpty())
			Expect(messages).To(HaveLen(2))
		})

		It("sends full history when no reference exists", func() {
			cfg.BaseURL = "https://cont-none.example"
			req := &llm.ChatRequest{Model: cfg, Messages: []llm.Message{
				llm.NewTextMessage("user", "hello"),
			}}

			prevID, messages := responses.Plan(req)
			Expect(prevID).To(BeEmpty())
			Expect(messages).To(HaveLen(1))
		})

		It("honors a manually pinned previous_response_id", func() {
			cfg.BaseURL = "https://cont-pinned.example"
			cfg.Extra = map[string]any{"previous_response_id": "resp_pinned"}
			req := &llm.ChatRequest{Model: cfg, Messages: historyWithRef("gpt-4o", "resp_1")}

			prevID, messages := responses.Plan(req)
			Expect(prevID).To(BeEmpty())
			Expect(messages).To(HaveLen(3))

			// The pin flows to the wire through the extra merge.
			body, err := responses.New().BuildBody(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(body["previous_response_id"]).To(Equal("resp_pinned"))
		})

		It("stops planning deltas once the backend is marked unsupported", func() {
			cfg.BaseURL = "https://cont-unsupported.example"
			req := &llm.ChatRequest{Model: cfg, Messages: historyWithRef("gpt-4o", "resp_1")}

			prevID, _ := responses.Plan(req)
			Expect(prevID).To(Equal("resp_1"))
			Expect(responses.ContinuitySupported(cfg.BaseURL)).To(BeTrue())

			responses.MarkUnsupported(cfg.BaseURL)
			Expect(responses.ContinuitySupported(cfg.BaseURL)).To(BeFalse())

			prevID, messages := responses.Plan(req)
			Expect(prevID).To(BeEmpty())
			Expect(messages).To(HaveLen(3))
		})

		It("uses the latest reference when several turns carry one", func() {
			cfg.BaseURL = "https://cont-latest.example"
			req := &llm.ChatRequest{Model: cfg, Messages: []llm.Message{
				llm.NewTextMessage("user", "one"),
				{Role: "assistant", Content: []llm.ContentBlock{
					{Type: llm.BlockText, Text: "a"},
					llm.ContinuityBlock("gpt-4o", "resp_old"),
				}},
				llm.NewTextMessage("user", "two"),
				{Role: "assistant", Content: []llm.ContentBlock{
					{Type: llm.BlockText, Text: "b"},
					llm.ContinuityBlock("gpt-4o", "resp_new"),
				}},
				llm.NewTextMessage("user", "three"),
			}}

			prevID, messages := responses.Plan(req)
			Expect(prevID).To(Equal("resp_new"))
			Expect(messages).To(HaveLen(1))
			Expect(messages[0].GetText()).To(Equal("three"))
		})
	})

	Describe("Decode", func() {
		decode := func(input string) []llm.StreamEvent {
			var events []llm.StreamEvent
			err := responses.New().Decode(context.Background(), strings.NewReader(input), cfg,
				func(ev llm.StreamEvent) error {
					events = append(events, ev)
					return nil
				})
			Expect(err).NotTo(HaveOccurred())
			return events
		}

		It("streams text deltas and suppresses the terminal repeat", func() {
			input := "data: {\"type\":\"response.created\",\"response\":{\"id\":\"resp_1\"}}\n\n" +
				"data: {\"type\":\"response.output_text.delta\",\"output_index\":0,\"delta\":\"Hello\"}\n\n" +
				"data: {\"type\":\"response.output_text.delta\",\"output_index\":0,\"delta\":\" world\"}\n\n" +
				"data: {\"type\":\"response.output_text.done\",\"output_index\":0,\"text\":\"Hello world\"}\n\n" +
				"data: {\"type\":\"response.completed\",\"response\":{\"id\":\"resp_1\",\"status\":\"completed\",\"usage\":{\"input_tokens\":8,\"output_tokens\":2,\"total_tokens\":10}}}\n\n" +
				"data: [DONE]\n\n"
			events := decode(input)

			Expect(events).To(HaveLen(3))
			Expect(events[0].Text).To(Equal("Hello"))
			Expect(events[1].Text).To(Equal(" world"))
			done := events[2]
			Expect(done.Type).To(Equal(llm.EventDone))
			Expect(done.ResponseID).To(Equal("resp_1"))
			Expect(done.StopReason).To(Equal("completed"))
			Expect(done.Usage.TotalTokens).To(Equal(10))
		})

		It("emits the full text from a done event with no prior deltas", func() {
			input := "data: {\"type\":\"response.output_text.done\",\"output_index\":0,\"text\":\"All at once\"}\n\n" +
				"data: [DONE]\n\n"
			events := decode(input)

			Expect(events[0].Type).To(Equal(llm.EventTextDelta))
			Expect(events[0].Text).To(Equal("All at once"))
		})

		It("streams reasoning summaries as thinking", func() {
			input := "data: {\"type\":\"response.reasoning_summary_text.delta\",\"output_index\":0,\"delta\":\"step one\"}\n\n" +
				"data: {\"type\":\"response.reasoning_summary_text.done\",\"output_index\":0,\"text\":\"step one\"}\n\n" +
				"data: {\"type\":\"response.output_text.delta\",\"output_index\":1,\"delta\":\"Answer\"}\n\n" +
				"data: [DONE]\n\n"
			events := decode(input)

			Expect(events[0].Type).To(Equal(llm.EventThinkingDelta))
			Expect(events[0].Text).To(Equal("step one"))
			Expect(events[1].Type).To(Equal(llm.EventThinkingEnd))
			Expect(events[2].Type).To(Equal(llm.EventTextDelta))
			Expect(events[2].Text).To(Equal("Answer"))
		})

		It("assembles a tool call from item added plus argument deltas", func() {
			input := "data: {\"type\":\"response.output_item.added\",\"output_index\":0,\"item\":{\"type\":\"function_call\",\"call_id\":\"call_1\",\"name\":\"get_weather\"}}\n\n" +
				"data: {\"type\":\"response.function_call_arguments.delta\",\"output_index\":0,\"delta\":\"{\\\"location\\\":\"}\n\n" +
				"data: {\"type\":\"response.function_call_arguments.delta\",\"output_index\":0,\"delta\":\"\\\"Paris\\\"}\"}\n\n" +
				"data: {\"type\":\"response.function_call_arguments.done\",\"output_index\":0,\"arguments\":\"{\\\"location\\\":\\\"Paris\\\"}\"}\n\n" +
				"data: {\"type\":\"response.output_item.done\",\"output_index\":0,\"item\":{\"type\":\"function_call\",\"call_id\":\"call_1\",\"name\":\"get_weather\",\"arguments\":\"{\\\"location\\\":\\\"Paris\\\"}\"}}\n\n" +
				"data: {\"type\":\"response.completed\",\"response\":{\"id\":\"resp_1\",\"status\":\"completed\"}}\n\n" +
				"data: [DONE]\n\n"
			events := decode(input)

			// One tool call despite the done events repeating the arguments.
			Expect(events).To(HaveLen(2))
			Expect(events[0].Type).To(Equal(llm.EventToolCall))
			Expect(events[0].CallID).To(Equal("call_1"))
			Expect(events[0].Args).To(Equal(map[string]any{"location": "Paris"}))
			Expect(events[1].Type).To(Equal(llm.EventDone))
		})

		It("completes a call whose arguments arrive only in the item done", func() {
			input := "data: {\"type\":\"response.output_item.added\",\"output_index\":0,\"item\":{\"type\":\"function_call\",\"call_id\":\"call_1\",\"name\":\"get_weather\"}}\n\n" +
				"data: {\"type\":\"response.output_item.done\",\"output_index\":0,\"item\":{\"type\":\"function_call\",\"call_id\":\"call_1\",\"name\":\"get_weather\",\"arguments\":\"{\\\"location\\\":\\\"Paris\\\"}\"}}\n\n" +
				"data: [DONE]\n\n"
			events := decode(input)

			Expect(events[0].Type).To(Equal(llm.EventToolCall))
			Expect(events[0].Args).To(Equal(map[string]any{"location": "Paris"}))
		})

		It("reports a failed response status", func() {
			input := "data: {\"type\":\"response.failed\",\"response\":{\"id\":\"resp_1\",\"status\":\"failed\"}}\n\n" +
				"data: [DONE]\n\n"
			events := decode(input)

			Expect(events).To(HaveLen(1))
			Expect(events[0].Type).To(Equal(llm.EventDone))
			Expect(events[0].StopReason).To(Equal("failed"))
		})
	})
})
