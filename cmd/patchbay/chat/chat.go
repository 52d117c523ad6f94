// Package chatcmder provides the chat command for interactive LLM chat
// against any configured model endpoint.
package chatcmder

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hollowaylabs/patchbay/pkg/cliui"
	"github.com/hollowaylabs/patchbay/pkg/config"
	"github.com/hollowaylabs/patchbay/pkg/llm"
	"github.com/hollowaylabs/patchbay/pkg/llm/dispatch"
	"github.com/hollowaylabs/patchbay/pkg/logger"
)

var (
	userPrompt      = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")
	assistantPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render("assistant> ")
)

type chatCommander struct {
	model  string
	system string
	debug  bool
	pretty bool

	modelCfg llm.ModelConfig
	logDir   string
	client   *dispatch.Client
	logger   *zap.Logger
	cli      *slog.Logger
}

const chatLongDesc string = `Start an interactive chat session with a configured model.

Messages stream to the terminal as the model generates them: reasoning is
dimmed, text is rendered plainly, and tool calls are labeled. The model is
selected from the [[models]] entries in config.toml.

Examples:
  patchbay chat
  patchbay chat --model gpt-4o
  patchbay chat --model claude-sonnet-4-20250514 --system "Answer briefly."`

const chatShortDesc string = "Interactive LLM chat with streaming output"

const chatHelpMarkdown = `# Chat session

| Command | Effect |
|---------|--------|
| ` + "`/help`" + ` | Show this help |
| ` + "`/exit`" + ` | End the session (Ctrl+D also works) |

Anything else is sent to the model. Reasoning streams dimmed, answer text
streams plainly, and tool calls are labeled as they arrive.
`

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(configDir)
			if err != nil {
				return err
			}
			config.BindRegisteredFlags(v, cmd, config.Flags,
				[]string{config.FlagModel, config.FlagDebug, config.FlagPretty})
			cmder.model = v.GetString("default_model")
			cmder.debug = v.GetBool("client.debug")
			cmder.pretty = v.GetBool("client.pretty")

			cfger, err := config.NewConfiger(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			cfg, err := cfger.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			cmder.modelCfg, err = cfg.ResolveModel(cmder.model)
			if err != nil {
				return err
			}

			if target := cfger.GetTarget(); target != "" {
				cmder.logDir = filepath.Dir(target)
			}
			return nil
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagModel, &cmder.model)
	config.AddBoolFlag(cmd, config.Flags, config.FlagPretty, &cmder.pretty)
	cmd.Flags().StringVarP(&cmder.system, "system", "s", "", "System prompt for the session")

	return cmd
}

func (c *chatCommander) run() error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	c.cli = logger.New(
		logger.WithDebug(c.debug),
		logger.WithPretty(c.pretty),
		logger.WithWriter(os.Stderr),
	)
	if c.debug && c.logDir != "" {
		f, err := os.OpenFile(filepath.Join(c.logDir, "chat.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err == nil {
			defer f.Close()
			c.cli = logger.Multi(c.cli, logger.New(
				logger.WithDebug(true),
				logger.WithJSON(true),
				logger.WithWriter(f),
			))
		}
	}

	c.client = dispatch.New(nil, c.logger)

	var messages []llm.Message

	fmt.Println()
	fmt.Printf("  %s %s %s\n\n",
		cliui.KeyStyle.Render("Model:"),
		cliui.NameStyle.Render(c.modelCfg.Name),
		cliui.DimStyle.Render("("+c.modelCfg.Protocol+")"),
	)
	fmt.Printf("  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. /help for commands, /exit to quit."))

	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print(userPrompt)
		if !scanner.Scan() {
			// EOF or error
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "/exit" {
			break
		}
		if input == "/help" {
			if rendered, err := cliui.RenderMarkdown(chatHelpMarkdown); err == nil {
				fmt.Print(rendered)
			}
			continue
		}

		messages = append(messages, llm.NewTextMessage("user", input))

		reply, err := c.sendAndStream(messages)
		if err != nil {
			c.cli.Error("chat turn failed", "error", err)
			// Remove the failed user message so we can retry
			messages = messages[:len(messages)-1]
			continue
		}

		messages = append(messages, reply)

		fmt.Println()
		fmt.Println()
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Println()
	return nil
}

// sendAndStream runs one exchange, rendering events as they arrive, and
// returns the assistant message to append to history. On the Responses
// protocol the returned message carries a continuity marker so the next turn
// can be sent as a delta.
func (c *chatCommander) sendAndStream(messages []llm.Message) (llm.Message, error) {
	req := &llm.ChatRequest{
		Model:    c.modelCfg,
		System:   c.system,
		Messages: messages,
	}

	c.logger.Debug("sending chat request",
		zap.String("model", c.modelCfg.Name),
		zap.String("protocol", c.modelCfg.Protocol),
		zap.Int("message_count", len(messages)),
	)

	fmt.Print(assistantPrompt)

	var (
		text       strings.Builder
		thinking   strings.Builder
		responseID string
	)

	err := c.client.Send(context.Background(), req, func(ev llm.StreamEvent) error {
		switch ev.Type {
		case llm.EventTextDelta:
			text.WriteString(ev.Text)
			fmt.Print(ev.Text)
		case llm.EventThinkingDelta:
			thinking.WriteString(ev.Text)
			fmt.Print(cliui.ThinkingStyle.Render(ev.Text))
		case llm.EventThinkingEnd:
			fmt.Println()
		case llm.EventToolCall:
			fmt.Printf("\n  %s %s\n", cliui.ToolStyle.Render("tool:"), ev.ToolName)
			c.cli.Debug("tool call requested", "name", ev.ToolName, "id", ev.CallID)
		case llm.EventDone:
			responseID = ev.ResponseID
		}
		return nil
	})
	if err != nil {
		return llm.Message{}, err
	}

	reply := llm.Message{Role: "assistant"}
	if thinking.Len() > 0 {
		reply.Content = append(reply.Content, llm.ContentBlock{
			Type:     llm.BlockThinking,
			Thinking: thinking.String(),
		})
	}
	reply.Content = append(reply.Content, llm.ContentBlock{
		Type: llm.BlockText,
		Text: text.String(),
	})
	if responseID != "" {
		reply.Content = append(reply.Content, llm.ContinuityBlock(c.modelCfg.Name, responseID))
	}
	return reply, nil
}
