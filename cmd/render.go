package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/iksnae/chat-session/internal"
	"github.com/iksnae/chat-session/internal/format"
)

var (
	renderJSON    bool
	renderYAML    bool
	renderGlamour bool
	renderSources string
	renderWidth   int
)

// renderCmd represents the render command
var renderCmd = &cobra.Command{
	Use:   "render [file]",
	Short: "Format assistant message text for the terminal",
	Long: `Parse assistant message text (from a file, or stdin when omitted or "-")
into headers, lists and paragraphs with inline bold, underline and links,
and print it styled for the terminal.

--json and --yaml print the parsed segment tree instead. --glamour renders
the text as Markdown instead of through the segment parser. --sources takes
a JSON array of source objects whose titles are matched against headers.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readInput(cmd, args)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		width := renderWidth
		if width <= 0 {
			width = internal.TerminalWidth(out, format.DefaultWidth)
		}

		switch {
		case renderJSON:
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(format.Parse(string(text)))
		case renderYAML:
			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			defer func() { _ = enc.Close() }()
			return enc.Encode(format.Parse(string(text)))
		case renderGlamour:
			_, _ = fmt.Fprint(out, format.RenderMarkdown(string(text), width))
			return nil
		}

		var refs []internal.Reference
		if renderSources != "" {
			data, err := os.ReadFile(renderSources)
			if err != nil {
				return fmt.Errorf("failed to read sources: %w", err)
			}
			if refs, _, err = parseReferences(data); err != nil {
				return err
			}
		}

		_, _ = fmt.Fprint(out, format.NewRenderer(width).Render(format.Parse(string(text)), refs))
		return nil
	},
}

// readInput reads the file named by args[0], or stdin when there is none or it is "-"
func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	return data, nil
}

func init() {
	rootCmd.AddCommand(renderCmd)
	renderCmd.Flags().BoolVar(&renderJSON, "json", false, "Print the parsed segments as JSON")
	renderCmd.Flags().BoolVar(&renderYAML, "yaml", false, "Print the parsed segments as YAML")
	renderCmd.Flags().BoolVar(&renderGlamour, "glamour", false, "Render as Markdown with glamour")
	renderCmd.Flags().StringVar(&renderSources, "sources", "", "JSON file of sources to link headers to")
	renderCmd.Flags().IntVarP(&renderWidth, "width", "w", 0, "Wrap width (default: terminal width)")
	renderCmd.MarkFlagsMutuallyExclusive("json", "yaml", "glamour")
}
