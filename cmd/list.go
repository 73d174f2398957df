package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/iksnae/chat-session/internal"
)

// listCmd represents the list command
var (
	listClearCache bool
)

var (
	// Styles
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	idStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Italic(true)

	countStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	dateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived conversations",
	Long:  `List the conversations archived by chat on reset or exit, most recent first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cache := internal.NewTranscriptCache(cfg.Cache.Dir)

		if listClearCache {
			if err := cache.ClearCache(); err != nil {
				internal.LogWarn("Failed to clear cache: %v", err)
			} else {
				internal.LogInfo("Cache cleared")
			}
		}

		entries, err := cache.ListTranscripts()
		if err != nil {
			return fmt.Errorf("failed to load transcript index: %w", err)
		}

		displayTranscripts(cmd.OutOrStdout(), entries, time.Now())
		return nil
	},
}

func displayTranscripts(w io.Writer, entries []internal.TranscriptIndexEntry, now time.Time) {
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(w, headerStyle.Render("📋 No archived conversations"))
		return
	}

	_, _ = fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("📋 Found %d conversation(s)", len(entries))))
	_, _ = fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)

	_, _ = fmt.Fprintln(tw, titleStyle.Render("ID")+"\t"+titleStyle.Render("Title")+"\t"+titleStyle.Render("Messages")+"\t"+titleStyle.Render("Sources")+"\t"+titleStyle.Render("Saved")+"\t")
	_, _ = fmt.Fprintln(tw, strings.Repeat("─", 100))

	for _, entry := range entries {
		title := entry.Title
		if title == "" {
			title = "Untitled"
		}
		if len([]rune(title)) > 50 {
			title = string([]rune(title)[:47]) + "..."
		}

		shortID := entry.SessionID
		if len(shortID) > 8 {
			shortID = shortID[:8]
		}

		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t\n",
			idStyle.Render(shortID),
			title,
			countStyle.Render(strconv.Itoa(entry.MessageCount)),
			strconv.Itoa(entry.SourceCount),
			dateStyle.Render(formatWhen(entry.SavedAt, now)))
	}

	_ = tw.Flush()
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, idStyle.Render("💡 Tip: Use the full ID (e.g., ")+
		lipgloss.NewStyle().Foreground(lipgloss.Color("62")).Render(entries[0].SessionID)+
		idStyle.Render(") with `chat-session history --cached <id>`"))
}

// formatWhen renders t relative to now at a precision that fits its age
func formatWhen(t, now time.Time) string {
	if t.IsZero() {
		return "—"
	}
	t = t.In(now.Location())
	diff := now.Sub(t)
	switch {
	case diff < 24*time.Hour && t.Day() == now.Day():
		return t.Format("Today 15:04")
	case diff < 7*24*time.Hour:
		return t.Format("Mon 15:04")
	case diff < 365*24*time.Hour:
		return t.Format("Jan 02 15:04")
	default:
		return t.Format("2006-01-02")
	}
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVar(&listClearCache, "clear-cache", false, "Remove all archived conversations before listing")
}
