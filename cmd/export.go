package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/iksnae/chat-session/internal"
	"github.com/iksnae/chat-session/internal/export"
)

var (
	exportFormat    string
	outputDir       string
	exportSessionID string
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export archived conversations to files",
	Long: `Export archived conversations to various formats (jsonl, md, yaml, json).

You can export every archived conversation or a specific one by session ID.
Use 'chat-session list' to see archived conversations.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cache := internal.NewTranscriptCache(cfg.Cache.Dir)

		exporter, err := export.NewExporter(exportFormat)
		if err != nil {
			return err
		}

		var transcripts []*internal.Transcript
		if exportSessionID != "" {
			t, err := cache.LoadTranscript(exportSessionID)
			if err != nil {
				return fmt.Errorf("transcript not found: %s (use 'chat-session list' to see archived conversations)", exportSessionID)
			}
			transcripts = append(transcripts, t)
		} else {
			transcripts, err = cache.LoadAllTranscripts()
			if err != nil {
				return fmt.Errorf("failed to load transcripts: %w", err)
			}
		}

		if len(transcripts) == 0 {
			internal.PrintWarning(cmd.ErrOrStderr(), "No archived conversations to export")
			return nil
		}

		if err := os.MkdirAll(outputDir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}

		exported := 0
		err = internal.ShowProgress(cmd.Context(), fmt.Sprintf("Exporting %d conversation(s) to %s", len(transcripts), outputDir), func() error {
			for _, t := range transcripts {
				if err := exportTranscript(exporter, t, outputDir); err != nil {
					internal.LogError("%v", err)
					continue
				}
				exported++
			}
			return nil
		})
		if err != nil {
			return err
		}

		if exported < len(transcripts) {
			return fmt.Errorf("exported %d of %d conversation(s)", exported, len(transcripts))
		}
		internal.PrintSuccess(cmd.OutOrStdout(), fmt.Sprintf("Export complete: %d conversation(s) exported to %s", exported, outputDir))
		return nil
	},
}

func exportTranscript(exporter export.Exporter, t *internal.Transcript, dir string) error {
	path := filepath.Join(dir, fmt.Sprintf("transcript_%s.%s", t.Session.ID, exporter.Extension()))

	file, err := os.Create(path)
	if err != nil {
		return &internal.ExportError{Format: exporter.Extension(), Path: path, Err: err}
	}

	if err := exporter.Export(t, file); err != nil {
		_ = file.Close()
		return &internal.ExportError{Format: exporter.Extension(), Path: path, Err: err}
	}

	if err := file.Close(); err != nil {
		return &internal.ExportError{Format: exporter.Extension(), Path: path, Err: err}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "jsonl", "Export format (jsonl, md, yaml, json)")
	exportCmd.Flags().StringVarP(&outputDir, "out", "o", "./exports", "Output directory")
	exportCmd.Flags().StringVar(&exportSessionID, "session-id", "", "Export a specific conversation by session ID")
}
