// Package gravitycmder
package gravitycmder

import (
	"github.com/spf13/cobra"

	configcmder "github.com/neargravity/gravity/cmd/gravity/config"
	injectcmder "github.com/neargravity/gravity/cmd/gravity/inject"
	querycmder "github.com/neargravity/gravity/cmd/gravity/query"
	servecmder "github.com/neargravity/gravity/cmd/gravity/serve"
	statscmder "github.com/neargravity/gravity/cmd/gravity/stats"
	versioncmder "github.com/neargravity/gravity/cmd/version"
)

const gravityLongDesc string = `Gravity is a concurrent agent framework with
retrieval-augmented generation and semantic integrity verification.

Run services using:
  gravity serve        Run the API server and pipeline agents
  gravity inject       Register injection content for retrieval
  gravity query        Send a generation request
  gravity stats        Fetch pipeline and agent metrics`

const gravityShortDesc string = "Gravity - agents with semantic guarantees"

func NewGravityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gravity",
		Short: gravityShortDesc,
		Long:  gravityLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .gravity/ config directory")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(injectcmder.NewInjectCmd())
	cmd.AddCommand(querycmder.NewQueryCmd())
	cmd.AddCommand(statscmder.NewStatsCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
