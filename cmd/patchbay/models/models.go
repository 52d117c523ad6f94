// Package modelscmder provides the models command for listing what a
// configured endpoint serves.
package modelscmder

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hollowaylabs/patchbay/pkg/cliui"
	"github.com/hollowaylabs/patchbay/pkg/config"
	"github.com/hollowaylabs/patchbay/pkg/llm"
	"github.com/hollowaylabs/patchbay/pkg/llm/discovery"
	"github.com/hollowaylabs/patchbay/pkg/logger"
)

type modelsCommander struct {
	model string
	debug bool

	modelCfg llm.ModelConfig
}

const modelsLongDesc string = `List the models a configured endpoint serves.

The endpoint and protocol come from the named [[models]] entry in config.toml;
the listing speaks whichever discovery dialect that protocol uses.

Examples:
  patchbay models
  patchbay models --model gpt-4o`

const modelsShortDesc string = "List models an endpoint serves"

func NewModelsCmd() *cobra.Command {
	cmder := &modelsCommander{}

	cmd := &cobra.Command{
		Use:   "models",
		Short: modelsShortDesc,
		Long:  modelsLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(configDir)
			if err != nil {
				return err
			}
			config.BindRegisteredFlags(v, cmd, config.Flags,
				[]string{config.FlagModel, config.FlagDebug})
			cmder.model = v.GetString("default_model")
			cmder.debug = v.GetBool("client.debug")

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
			return nil
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagModel, &cmder.model)

	return cmd
}

func (c *modelsCommander) run() error {
	log := logger.NewLogger(c.debug)
	defer func() { _ = log.Sync() }()

	var models []discovery.Model
	err := cliui.Step(os.Stderr, "querying "+c.modelCfg.BaseURL, func() error {
		var stepErr error
		models, stepErr = discovery.List(context.Background(), nil, log, c.modelCfg)
		return stepErr
	})
	if err != nil {
		return fmt.Errorf("listing models: %w", err)
	}

	fmt.Println()
	fmt.Printf("  %s %s %s\n\n",
		cliui.KeyStyle.Render("Endpoint:"),
		cliui.ValueStyle.Render(c.modelCfg.BaseURL),
		cliui.DimStyle.Render("("+c.modelCfg.Protocol+")"),
	)

	for _, m := range models {
		line := "  " + cliui.NameStyle.Render(m.ID)
		if m.DisplayName != "" && m.DisplayName != m.ID {
			line += "  " + cliui.DimStyle.Render(m.DisplayName)
		}
		if m.ContextLimit > 0 {
			line += "  " + cliui.DimStyle.Render(fmt.Sprintf("ctx %d", m.ContextLimit))
		}
		fmt.Println(line)
	}
	fmt.Printf("\n  %s\n\n", cliui.DimStyle.Render(fmt.Sprintf("%d models", len(models))))

	return nil
}
