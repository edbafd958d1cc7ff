// Package querycmder provides the query command for sending a generation
// request to a running gravity API server.
package querycmder

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/neargravity/gravity/pkg/cliui"
)

type QueryCommander struct {
	target    string
	userID    string
	modality  string
	threshold float64
}

const queryLongDesc string = `Send a generation request through the pipeline.

The message is embedded, matched against stored injections, and the enriched
generation is verified for semantic integrity before it is returned.

Examples:
  gravity query "what should I drink this morning?"
  gravity query --modality code "write a retry loop"
  gravity query --threshold 0.8 "recommend a roast"`

const queryShortDesc string = "Send a generation request"

func NewQueryCmd() *cobra.Command {
	cmder := &QueryCommander{}

	cmd := &cobra.Command{
		Use:   "query <message>",
		Short: queryShortDesc,
		Long:  queryLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return cmder.run(args[0])
		},
	}

	cmd.Flags().StringVarP(&cmder.target, "target", "t", "http://localhost:8080", "Gravity API server URL")
	cmd.Flags().StringVarP(&cmder.userID, "user-id", "u", "cli", "User id to attribute the request to")
	cmd.Flags().StringVar(&cmder.modality, "modality", "", "Output modality (text, code, structured)")
	cmd.Flags().Float64Var(&cmder.threshold, "threshold", 0, "Retrieval similarity threshold override")

	return cmd
}

func (c *QueryCommander) run(message string) error {
	payload := map[string]any{
		"message":  message,
		"user_id":  c.userID,
		"modality": c.modality,
	}
	if c.threshold > 0 {
		payload["constraints"] = map[string]any{"semantic_threshold": c.threshold}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	var out struct {
		Status        string `json:"status"`
		Content       string `json:"content"`
		SemanticDelta *struct {
			CosineSimilarity float64 `json:"cosine_similarity"`
			IsWithinBounds   bool    `json:"is_within_bounds"`
		} `json:"semantic_delta"`
		InjectionCount int    `json:"injection_count"`
		Error          string `json:"error"`
	}

	err = cliui.Step(os.Stdout, "Generating", func() error {
		resp, err := http.Post(
			strings.TrimRight(c.target, "/")+"/generate",
			"application/json",
			bytes.NewReader(body),
		)
		if err != nil {
			return fmt.Errorf("calling server: %w", err)
		}
		defer resp.Body.Close()

		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
		if out.Status != "completed" {
			if out.Error != "" {
				return fmt.Errorf("server returned status %q: %s", out.Status, out.Error)
			}
			return fmt.Errorf("server returned status %q", out.Status)
		}
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(out.Content)
	fmt.Println()
	fmt.Printf("  %s %d\n", cliui.KeyStyle.Render("injections:"), out.InjectionCount)
	if out.SemanticDelta != nil {
		fmt.Printf("  %s %.4f\n", cliui.KeyStyle.Render("similarity:"), out.SemanticDelta.CosineSimilarity)
		fmt.Printf("  %s %t\n", cliui.KeyStyle.Render("within bounds:"), out.SemanticDelta.IsWithinBounds)
	}
	return nil
}
