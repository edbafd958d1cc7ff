// Package statscmder provides the stats command for fetching metrics from a
// running gravity API server.
package statscmder

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
)

type StatsCommander struct {
	target string
}

const statsLongDesc string = `Fetch pipeline and agent metrics.

Queries the /metrics endpoint of a running gravity server and prints the
JSON response.

Examples:
  gravity stats
  gravity stats --target http://localhost:9090`

const statsShortDesc string = "Fetch pipeline and agent metrics"

func NewStatsCmd() *cobra.Command {
	cmder := &StatsCommander{}

	cmd := &cobra.Command{
		Use:   "stats",
		Short: statsShortDesc,
		Long:  statsLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return cmder.run()
		},
	}

	cmd.Flags().StringVarP(&cmder.target, "target", "t", "http://localhost:8080", "Gravity API server URL")

	return cmd
}

func (c *StatsCommander) run() error {
	resp, err := http.Get(strings.TrimRight(c.target, "/") + "/metrics")
	if err != nil {
		return fmt.Errorf("calling server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	var metrics map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&metrics); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	pretty, err := json.MarshalIndent(metrics, "", "  ")
	if err != nil {
		return fmt.Errorf("formatting metrics: %w", err)
	}

	fmt.Println(string(pretty))
	return nil
}
