// Package patchbaycmder
package patchbaycmder

import (
	"github.com/spf13/cobra"

	chatcmder "github.com/hollowaylabs/patchbay/cmd/patchbay/chat"
	configcmder "github.com/hollowaylabs/patchbay/cmd/patchbay/config"
	modelscmder "github.com/hollowaylabs/patchbay/cmd/patchbay/models"
	versioncmder "github.com/hollowaylabs/patchbay/cmd/version"
)

const patchbayLongDesc string = `Patchbay is a multi-protocol LLM chat client.

One canonical conversation format, five wire protocols:
  openai             OpenAI Chat Completions
  openai-responses   OpenAI Responses
  anthropic          Anthropic Messages
  gemini             Google Gemini generateContent
  ollama             Ollama chat

Configure model endpoints in .patchbay/config.toml, then:
  patchbay chat      Interactive chat with streaming output
  patchbay models    List models an endpoint serves
  patchbay config    Manage persistent configuration`

const patchbayShortDesc string = "Patchbay - multi-protocol LLM chat client"

func NewPatchbayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patchbay",
		Short: patchbayShortDesc,
		Long:  patchbayLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .patchbay/ config directory")

	// Add subcommands
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(modelscmder.NewModelsCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
