package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/iksnae/chat-session/internal"
	"github.com/iksnae/chat-session/internal/format"
)

var (
	historyLimit  int
	historyCached bool
	since         string
)

var (
	// Styles for history command
	sessionHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("212")).
				Padding(0, 1).
				MarginBottom(1)

	sessionMetaStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("243")).
				MarginBottom(1)

	timestampStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history [session-id]",
	Short: "Show the messages of a session",
	Long: `Display the messages of a conversation.

Without a session id, the session stored in the current scope is used.
History is fetched from the server unless --cached reads an archived
transcript instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		var sessionID string
		if len(args) > 0 {
			sessionID = args[0]
		}

		var transcript *internal.Transcript
		if historyCached {
			if sessionID == "" {
				return fmt.Errorf("--cached needs a session id (use 'chat-session list' to see archived conversations)")
			}
			transcript, err = internal.NewTranscriptCache(cfg.Cache.Dir).LoadTranscript(sessionID)
			if err != nil {
				return fmt.Errorf("transcript not found: %s: %w", sessionID, err)
			}
		} else {
			transcript, err = fetchHistory(cmd, cfg, sessionID)
			if err != nil {
				return err
			}
		}

		messages := transcript.Messages
		if since != "" {
			sinceTime, err := time.Parse(time.RFC3339, since)
			if err != nil {
				return fmt.Errorf("invalid --since timestamp format (expected RFC3339): %w", err)
			}
			messages = filterSince(messages, sinceTime)
		}

		out := cmd.OutOrStdout()
		displaySessionHeader(out, transcript)

		total := len(messages)
		if historyLimit > 0 && historyLimit < total {
			messages = messages[:historyLimit]
		}

		renderer := format.NewRenderer(internal.TerminalWidth(out, format.DefaultWidth))
		for i, msg := range messages {
			displayMessage(out, renderer, i+1, total, msg)
		}

		if len(messages) < total {
			_, _ = fmt.Fprintln(out, timestampStyle.Render(fmt.Sprintf("... (%d more message(s))", total-len(messages))))
		}
		return nil
	},
}

// fetchHistory loads a session's history from the server; an empty id means
// the session stored in the current scope.
func fetchHistory(cmd *cobra.Command, cfg *internal.Config, sessionID string) (*internal.Transcript, error) {
	app, err := internal.NewApp(cfg)
	if err != nil {
		return nil, err
	}
	defer func() { _ = app.Close() }()

	if sessionID == "" {
		id, ok, err := app.Storage.Get(internal.SessionIDKey)
		if err != nil {
			return nil, err
		}
		if !ok || id == "" {
			return nil, fmt.Errorf("no session stored in scope %q; pass a session id or --scope", app.Scope)
		}
		sessionID = id
	}

	limit := historyLimit
	if limit <= 0 {
		limit = cfg.API.HistoryLimit
	}
	messages, err := app.Client.GetHistory(cmd.Context(), sessionID, limit)
	if err != nil {
		if internal.IsSessionNotFound(err) {
			return nil, fmt.Errorf("session not found: %s", sessionID)
		}
		return nil, err
	}

	t := &internal.Transcript{Session: internal.Session{ID: sessionID}, Messages: messages}
	if len(messages) > 0 {
		t.Session.CreatedAt = messages[0].GetTimestamp()
	}
	return t, nil
}

func filterSince(messages []internal.ConversationMessage, since time.Time) []internal.ConversationMessage {
	filtered := make([]internal.ConversationMessage, 0, len(messages))
	for _, msg := range messages {
		if ts := msg.GetTimestamp(); !ts.IsZero() && !ts.Before(since) {
			filtered = append(filtered, msg)
		}
	}
	return filtered
}

func displaySessionHeader(w io.Writer, t *internal.Transcript) {
	if t == nil {
		return
	}
	_, _ = fmt.Fprintln(w, sessionHeaderStyle.Render(fmt.Sprintf("💬 Session %s", t.Session.ID)))

	var metaParts []string
	if !t.Session.CreatedAt.IsZero() {
		metaParts = append(metaParts, fmt.Sprintf("Created: %s", t.Session.CreatedAt.Local().Format("2006-01-02 15:04")))
	}
	metaParts = append(metaParts, fmt.Sprintf("Messages: %d", len(t.Messages)))
	if !t.SavedAt.IsZero() {
		metaParts = append(metaParts, fmt.Sprintf("Archived: %s", t.SavedAt.Local().Format("2006-01-02 15:04")))
	}

	_, _ = fmt.Fprintln(w, sessionMetaStyle.Render(strings.Join(metaParts, " • ")))
	_, _ = fmt.Fprintln(w)
}

func displayMessage(w io.Writer, r *format.Renderer, index, total int, msg internal.ConversationMessage) {
	_, _ = fmt.Fprintln(w, timestampStyle.Render(fmt.Sprintf("[%d/%d]", index, total)))
	_, _ = fmt.Fprintln(w, r.RenderMessage(msg))
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 0, "Limit number of messages to show")
	historyCmd.Flags().BoolVar(&historyCached, "cached", false, "Read an archived transcript instead of the server")
	historyCmd.Flags().StringVar(&since, "since", "", "Show messages since timestamp (RFC3339)")
}
