// Package configcmder provides the config command for managing persistent
// patchbay configuration stored in the .patchbay/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent patchbay configuration.

Configuration is stored as config.toml in the .patchbay/ directory and
provides default values for command flags. CLI flags always take precedence
over config file values.

Model endpoints are defined as [[models]] tables in the file itself; the
CLI manages the top-level scalar keys:
  default_model, client.debug, client.pretty

Use subcommands to get, set, or list configuration values:
  patchbay config set <key> <value>    Set a configuration value
  patchbay config get <key>            Get a configuration value
  patchbay config list                 List all configuration values

Examples:
  patchbay config set default_model gpt-4o
  patchbay config get default_model
  patchbay config list`

const configShortDesc string = "Manage persistent patchbay configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
