// Package configcmder provides the config command for managing persistent
// gravity configuration stored in the .gravity/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent gravity configuration.

Configuration is stored as config.toml in the .gravity/ directory and provides
default values for command flags. CLI flags always take precedence over
config file values.

Keys use dotted notation matching the TOML section structure:
  api.listen,
  embedding.provider, embedding.target, embedding.model, embedding.dimensions,
  generation.provider, generation.target, generation.model,
  vector.persist_path, vector.index, vector.collection,
  ledger.provider, ledger.brokers, ledger.topic,
  cache.ttl_seconds, cache.max_entries,
  agent.pool_size, pipeline.retrieval_threshold

Use subcommands to get, set, or list configuration values:
  gravity config set <key> <value>    Set a configuration value
  gravity config get <key>            Get a configuration value
  gravity config list                 List all configuration values

Examples:
  gravity config set embedding.model nomic-embed-text
  gravity config set ledger.provider kafka
  gravity config get generation.model
  gravity config list`

const configShortDesc string = "Manage persistent gravity configuration"

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
