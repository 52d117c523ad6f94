package adapter

import (
	"fmt"

	"github.com/hollowaylabs/patchbay/pkg/llm"
	"github.com/hollowaylabs/patchbay/pkg/llm/adapter/anthropic"
	"github.com/hollowaylabs/patchbay/pkg/llm/adapter/gemini"
	"github.com/hollowaylabs/patchbay/pkg/llm/adapter/ollama"
	"github.com/hollowaylabs/patchbay/pkg/llm/adapter/openai"
	"github.com/hollowaylabs/patchbay/pkg/llm/adapter/responses"
)

// SupportedProtocols returns the list of all supported protocol mode names.
func SupportedProtocols() []string {
	return []string{
		llm.ProtocolOpenAI,
		llm.ProtocolResponses,
		llm.ProtocolAnthropic,
		llm.ProtocolGemini,
		llm.ProtocolOllama,
	}
}

// New creates an Adapter for the given protocol mode.
// Returns an error if the protocol is not recognized.
func New(protocol string) (Adapter, error) {
	switch protocol {
	case llm.ProtocolOpenAI:
		return openai.New(), nil
	case llm.ProtocolResponses:
		return responses.New(), nil
	case llm.ProtocolAnthropic:
		return anthropic.New(), nil
	case llm.ProtocolGemini:
		return gemini.New(), nil
	case llm.ProtocolOllama:
		return ollama.New(), nil
	default:
		return nil, fmt.Errorf("unknown protocol mode: %q (supported: %v)", protocol, SupportedProtocols())
	}
}
