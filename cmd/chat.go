package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/iksnae/chat-session/internal"
	"github.com/iksnae/chat-session/internal/format"
	"github.com/iksnae/chat-session/internal/realtime"
)

var (
	chatFilters     requestFlags
	chatRealtime    bool
	chatKeepSession bool
	chatNoArchive   bool
)

var (
	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243")).
			Italic(true)
)

// chatCmd represents the chat command
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive conversation",
	Long: `Start an interactive conversation with the search assistant.

Each run is one page load in the current scope. Running again in the same
scope counts as a reload and starts fresh, unless the previous run exited
with --keep-session.

Commands:
  /history   show the conversation so far
  /reset     archive the conversation and start a new one
  /quit      leave (also Ctrl-D)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp()
		if err != nil {
			return err
		}
		defer func() { _ = app.Close() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		if chatRealtime && app.Config.Realtime.URL == "" {
			return fmt.Errorf("--realtime needs a WebSocket URL (--ws or realtime.url)")
		}

		out := cmd.OutOrStdout()
		s := &chatSession{
			app:      app,
			cmd:      cmd,
			out:      out,
			errOut:   cmd.ErrOrStderr(),
			renderer: format.NewRenderer(internal.TerminalWidth(out, format.DefaultWidth)),
			replies:  make(chan struct{}, 1),
		}
		return s.run(ctx, cmd.InOrStdin())
	},
}

// chatSession is the state of one interactive run
type chatSession struct {
	app      *internal.App
	cmd      *cobra.Command
	out      io.Writer
	errOut   io.Writer
	renderer *format.Renderer

	rt             *realtime.Client
	rtConversation string
	replies        chan struct{}
}

func (s *chatSession) run(ctx context.Context, in io.Reader) error {
	sessions := s.app.Sessions
	if err := sessions.BeginPageLoad(); err != nil {
		internal.LogWarn("Reload detection unavailable: %v", err)
	}

	id, err := sessions.LoadOrRestore(ctx)
	switch {
	case err != nil:
		internal.PrintWarning(s.errOut, fmt.Sprintf("Could not verify session %s, continuing with it: %v", id, err))
	case id != "":
		internal.PrintInfo(s.errOut, fmt.Sprintf("Resumed session %s", id))
		s.printHistory()
	}
	defer s.finish()

	_, _ = fmt.Fprintln(s.out, hintStyle.Render("Type a message, /history, /reset or /quit."))

	lines := readLines(ctx, in)
	for {
		_, _ = fmt.Fprint(s.out, promptStyle.Render("> "))

		var line string
		select {
		case <-ctx.Done():
			_, _ = fmt.Fprintln(s.out)
			return nil
		case l, ok := <-lines:
			if !ok {
				_, _ = fmt.Fprintln(s.out)
				return nil
			}
			line = strings.TrimSpace(l)
		}

		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/history":
			s.printHistory()
			continue
		case "/reset":
			s.reset(ctx)
			continue
		}

		if err := s.send(ctx, line); err != nil {
			internal.PrintError(s.errOut, err.Error())
		}
	}
}

// readLines feeds input lines into a channel until EOF or ctx is done
func readLines(ctx context.Context, in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			internal.LogWarn("Failed to read input: %v", err)
		}
	}()
	return lines
}

func (s *chatSession) send(ctx context.Context, text string) error {
	req := chatFilters.request(s.cmd, text)
	if chatRealtime {
		return s.sendRealtime(ctx, req)
	}

	err := internal.ShowProgress(ctx, "Thinking", func() error {
		_, err := s.app.Sessions.SendMessage(ctx, req)
		return err
	})
	if err != nil {
		return err
	}
	s.printLast()
	return nil
}

// sendRealtime sends the question over the socket; the answer arrives as a
// chat_response frame that the bridge appends to the history.
func (s *chatSession) sendRealtime(ctx context.Context, req internal.ChatRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	if s.app.Sessions.SessionID() == "" {
		if _, err := s.app.Sessions.CreateSession(ctx, nil); err != nil && !errors.Is(err, internal.ErrSessionActive) {
			return err
		}
	}
	if err := s.connectRealtime(ctx, s.app.Sessions.SessionID()); err != nil {
		return err
	}

	// drop a stale signal from an unsolicited push
	select {
	case <-s.replies:
	default:
	}

	s.app.Sessions.AppendMessage(internal.NewMessage(internal.RoleUser, req.Query, time.Now(), nil))
	if err := s.rt.SendChat(req.Query); err != nil {
		return err
	}

	select {
	case <-s.replies:
		s.printLast()
		return nil
	case <-time.After(s.app.Config.API.Timeout):
		return fmt.Errorf("no answer within %s", s.app.Config.API.Timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *chatSession) connectRealtime(ctx context.Context, conversationID string) error {
	if s.rt != nil && s.rtConversation == conversationID && s.rt.State() == realtime.Connected {
		return nil
	}
	if s.rt != nil {
		s.rt.Disconnect()
	}

	cfg := s.app.Config.Realtime
	rt := realtime.NewClient(realtime.Options{
		URL:         cfg.URL,
		MaxAttempts: cfg.MaxReconnectAttempts,
		BaseDelay:   cfg.BaseDelay,
	})
	realtime.Bridge(rt, s.app.Sessions)
	rt.On(realtime.TypeChatResponse, func(realtime.Frame) {
		select {
		case s.replies <- struct{}{}:
		default:
		}
	})
	rt.OnState(func(state realtime.State, err error) {
		if err != nil {
			internal.PrintWarning(s.errOut, fmt.Sprintf("Live connection lost: %v", err))
			return
		}
		internal.LogDebug("Realtime connection %s", state)
	})

	s.rt = rt
	s.rtConversation = conversationID
	return rt.Connect(ctx, conversationID)
}

func (s *chatSession) reset(ctx context.Context) {
	s.archive()
	if s.rt != nil {
		s.rt.Disconnect()
		s.rt = nil
	}
	if err := s.app.Sessions.ResetConversation(ctx); err != nil {
		internal.PrintError(s.errOut, err.Error())
		return
	}
	internal.PrintSuccess(s.errOut, "Started a new conversation")
}

// finish runs on exit: archive, then release or keep the server session
func (s *chatSession) finish() {
	if s.rt != nil {
		s.rt.Disconnect()
	}
	s.archive()

	if chatKeepSession {
		if err := s.app.Sessions.EndPageLoad(); err != nil {
			internal.LogWarn("%v", err)
		}
		if id := s.app.Sessions.SessionID(); id != "" {
			internal.PrintInfo(s.errOut, fmt.Sprintf("Session %s kept, resume with --scope %s", id, s.app.Scope))
		}
		return
	}
	s.app.Sessions.CleanupOnUnload()
}

func (s *chatSession) archive() {
	if chatNoArchive {
		return
	}
	if err := s.app.Archive(); err != nil {
		internal.LogWarn("Failed to archive conversation: %v", err)
	}
}

func (s *chatSession) printHistory() {
	history := s.app.Sessions.History()
	if len(history) == 0 {
		_, _ = fmt.Fprintln(s.out, hintStyle.Render("No messages yet."))
		return
	}
	for _, msg := range history {
		_, _ = fmt.Fprintln(s.out, s.renderer.RenderMessage(msg))
	}
}

func (s *chatSession) printLast() {
	history := s.app.Sessions.History()
	if len(history) == 0 {
		return
	}
	_, _ = fmt.Fprintln(s.out, s.renderer.RenderMessage(history[len(history)-1]))
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatFilters.bind(chatCmd)
	chatCmd.Flags().BoolVar(&chatRealtime, "realtime", false, "Send messages over the WebSocket instead of HTTP")
	chatCmd.Flags().BoolVar(&chatKeepSession, "keep-session", false, "Keep the server session on exit so the scope can resume it")
	chatCmd.Flags().BoolVar(&chatNoArchive, "no-archive", false, "Do not archive the conversation on reset or exit")
}
