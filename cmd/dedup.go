package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/iksnae/chat-session/internal"
)

var dedupYAML bool

// dedupCmd represents the dedup command
var dedupCmd = &cobra.Command{
	Use:   "dedup [file]",
	Short: "Normalize and deduplicate source references",
	Long: `Read source objects (a JSON array, or a chat response with a "sources"
field) from a file or stdin, map them onto the canonical reference shape,
drop entries whose normalized URL repeats and renumber the rest.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readInput(cmd, args)
		if err != nil {
			return err
		}

		refs, total, err := parseReferences(data)
		if err != nil {
			return err
		}
		internal.LogInfo("Kept %d of %d source(s)", len(refs), total)

		out := cmd.OutOrStdout()
		if dedupYAML {
			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			defer func() { _ = enc.Close() }()
			return enc.Encode(refs)
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(refs)
	},
}

// parseReferences normalizes and deduplicates raw source objects. It also
// returns how many objects were read.
func parseReferences(data []byte) ([]internal.Reference, int, error) {
	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		var wrapped struct {
			Sources []map[string]any `json:"sources"`
		}
		if err2 := json.Unmarshal(data, &wrapped); err2 != nil {
			return nil, 0, fmt.Errorf("expected a JSON array of sources or an object with \"sources\": %w", err)
		}
		raw = wrapped.Sources
	}

	refs := internal.NewNormalizer().NormalizeReferences(raw)
	refs = internal.NewDeduplicator().Deduplicate(refs)
	if refs == nil {
		refs = []internal.Reference{}
	}
	return refs, len(raw), nil
}

func init() {
	rootCmd.AddCommand(dedupCmd)
	dedupCmd.Flags().BoolVar(&dedupYAML, "yaml", false, "Print YAML instead of JSON")
}
