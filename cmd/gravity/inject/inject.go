// Package injectcmder provides the inject command for registering injection
// content against a running gravity API server.
package injectcmder

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/neargravity/gravity/pkg/cliui"
)

type InjectCommander struct {
	target     string
	providerID string
	tags       []string
	bid        float64
}

const injectLongDesc string = `Register injection content for retrieval.

The content is embedded and stored by the running server; future generation
requests whose messages are semantically similar will be enriched with it.

Examples:
  gravity inject "Blue Bottle Coffee gives you morning energy"
  gravity inject --provider-id coffeeco --tags coffee,energy "..."`

const injectShortDesc string = "Register injection content"

func NewInjectCmd() *cobra.Command {
	cmder := &InjectCommander{}

	cmd := &cobra.Command{
		Use:   "inject <content>",
		Short: injectShortDesc,
		Long:  injectLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return cmder.run(args[0])
		},
	}

	cmd.Flags().StringVarP(&cmder.target, "target", "t", "http://localhost:8080", "Gravity API server URL")
	cmd.Flags().StringVarP(&cmder.providerID, "provider-id", "p", "cli", "Provider id to attribute the injection to")
	cmd.Flags().StringSliceVar(&cmder.tags, "tags", nil, "Tags for preference matching")
	cmd.Flags().Float64Var(&cmder.bid, "bid", 0, "Provider bid amount")

	return cmd
}

func (c *InjectCommander) run(content string) error {
	metadata := map[string]any{
		"created_at": time.Now().UTC().Format(time.RFC3339),
	}
	if len(c.tags) > 0 {
		metadata["tags"] = c.tags
	}
	if c.bid > 0 {
		metadata["bid_amount"] = c.bid
	}

	body, err := json.Marshal(map[string]any{
		"content":     content,
		"provider_id": c.providerID,
		"metadata":    metadata,
	})
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	var id string
	err = cliui.Step(os.Stdout, "Registering injection", func() error {
		resp, err := http.Post(
			strings.TrimRight(c.target, "/")+"/injections",
			"application/json",
			bytes.NewReader(body),
		)
		if err != nil {
			return fmt.Errorf("calling server: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusCreated {
			return fmt.Errorf("server returned status %d", resp.StatusCode)
		}

		var out struct {
			ID string `json:"id"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
		id = out.ID
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Printf("  %s %s\n", cliui.KeyStyle.Render("id:"), cliui.ValueStyle.Render(id))
	return nil
}
