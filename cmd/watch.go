package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/iksnae/chat-session/internal"
	"github.com/iksnae/chat-session/internal/format"
	"github.com/iksnae/chat-session/internal/realtime"
)

var (
	watchCount   int
	watchSend    string
	watchTimeout time.Duration
)

var frameLabelStyles = map[string]lipgloss.Style{
	realtime.TypeSystem:       lipgloss.NewStyle().Foreground(lipgloss.Color("62")).Bold(true),
	realtime.TypeChatResponse: lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true),
	realtime.TypeTyping:       lipgloss.NewStyle().Foreground(lipgloss.Color("243")).Italic(true),
	realtime.TypeError:        lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	realtime.TypePong:         lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
}

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch [conversation-id]",
	Short: "Connect to the live feed and print incoming frames",
	Long: `Open the WebSocket feed (the shared endpoint, or a conversation's own
endpoint when an id is given) and print every frame as it arrives. The
connection is re-established with linearly growing delays if it drops.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Realtime.URL == "" {
			return fmt.Errorf("no WebSocket URL configured (--ws or realtime.url)")
		}

		var conversationID string
		if len(args) > 0 {
			conversationID = args[0]
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		if watchTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, watchTimeout)
			defer cancel()
		}

		client := realtime.NewClient(realtime.Options{
			URL:         cfg.Realtime.URL,
			MaxAttempts: cfg.Realtime.MaxReconnectAttempts,
			BaseDelay:   cfg.Realtime.BaseDelay,
		})
		defer client.Disconnect()

		frames := make(chan realtime.Frame, 16)
		for typ := range frameLabelStyles {
			client.On(typ, func(f realtime.Frame) {
				select {
				case frames <- f:
				case <-ctx.Done():
				}
			})
		}
		exhausted := make(chan error, 1)
		client.OnState(func(state realtime.State, err error) {
			if err != nil {
				exhausted <- err
				return
			}
			internal.LogInfo("Connection %s", state)
		})

		if err := client.Connect(ctx, conversationID); err != nil {
			return err
		}
		if watchSend != "" {
			if err := client.SendChat(watchSend); err != nil {
				return err
			}
		}

		out := cmd.OutOrStdout()
		printer := newFramePrinter(out)
		seen := 0
		for {
			select {
			case <-ctx.Done():
				return nil
			case err := <-exhausted:
				return err
			case f := <-frames:
				printer.print(f)
				seen++
				if watchCount > 0 && seen >= watchCount {
					return nil
				}
			}
		}
	},
}

type framePrinter struct {
	out        io.Writer
	renderer   *format.Renderer
	normalizer *internal.Normalizer
	dedup      *internal.Deduplicator
}

func newFramePrinter(out io.Writer) *framePrinter {
	return &framePrinter{
		out:        out,
		renderer:   format.NewRenderer(internal.TerminalWidth(out, format.DefaultWidth)),
		normalizer: internal.NewNormalizer(),
		dedup:      internal.NewDeduplicator(),
	}
}

func (p *framePrinter) print(f realtime.Frame) {
	label := frameLabelStyles[f.Type].Render("[" + f.Type + "]")

	switch f.Type {
	case realtime.TypeChatResponse:
		var payload realtime.ChatResponsePayload
		if err := f.Decode(&payload); err != nil {
			break
		}
		_, _ = fmt.Fprintln(p.out, label)
		_, _ = fmt.Fprintln(p.out, p.renderer.RenderMessage(realtime.ToMessage(payload, p.normalizer, p.dedup)))
		return
	case realtime.TypeSystem:
		var payload realtime.SystemPayload
		if err := f.Decode(&payload); err != nil {
			break
		}
		_, _ = fmt.Fprintf(p.out, "%s %s (connection %s)\n", label, payload.Message, payload.ConnectionID)
		return
	case realtime.TypeTyping:
		var payload realtime.TypingPayload
		if err := f.Decode(&payload); err != nil {
			break
		}
		state := "stopped typing"
		if payload.IsTyping {
			state = "is typing…"
		}
		_, _ = fmt.Fprintf(p.out, "%s %s %s\n", label, payload.Sender, state)
		return
	case realtime.TypeError:
		var payload realtime.ErrorPayload
		if err := f.Decode(&payload); err != nil {
			break
		}
		_, _ = fmt.Fprintf(p.out, "%s %s\n", label, payload.Message)
		return
	case realtime.TypePong:
		_, _ = fmt.Fprintln(p.out, label)
		return
	}
	_, _ = fmt.Fprintf(p.out, "%s %s\n", label, string(f.Raw))
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().IntVarP(&watchCount, "count", "c", 0, "Exit after this many frames")
	watchCmd.Flags().StringVar(&watchSend, "send", "", "Send a chat message once connected")
	watchCmd.Flags().DurationVar(&watchTimeout, "timeout", 0, "Exit after this long")
}
