package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/iksnae/chat-session/internal"
	"github.com/iksnae/chat-session/internal/realtime"
)

const healthcheckTimeout = 5 * time.Second

var (
	healthcheckDetails bool
)

var (
	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("62")).
			Bold(true).
			Underline(true)
)

// healthcheckCmd represents the healthcheck command
var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Check that the chat backend and local storage are reachable",
	Long: `Check the health of chat-session by verifying:
  • Configuration loading and validation
  • Tab-scoped storage read/write
  • Chat API health endpoint
  • Session create and delete round trip
  • WebSocket connect and ping/pong (skipped when no URL is configured)

This command is useful for debugging connectivity issues.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		ctx := cmd.Context()

		_, _ = fmt.Fprintln(out, sectionStyle.Render("🔍 Chat Session Health Check"))
		_, _ = fmt.Fprintln(out)

		// Step 1: configuration
		step(out, 1, "Loading configuration...")
		cfg, err := loadConfig()
		if err != nil {
			fail(out, "Configuration invalid", err)
			return fmt.Errorf("health check failed: %w", err)
		}
		pass(out, "Configuration loaded")
		if healthcheckDetails {
			_, _ = fmt.Fprintf(out, "   API: %s\n", cfg.API.BaseURL)
			_, _ = fmt.Fprintf(out, "   WebSocket: %s\n", cfg.Realtime.URL)
			_, _ = fmt.Fprintf(out, "   Store: %s\n", cfg.Storage.Path)
			_, _ = fmt.Fprintf(out, "   Transcripts: %s\n", cfg.Cache.Dir)
		}
		_, _ = fmt.Fprintln(out)

		// Step 2: storage
		step(out, 2, "Checking tab-scoped storage...")
		app, err := internal.NewApp(cfg)
		if err != nil {
			fail(out, "Failed to open storage", err)
			return fmt.Errorf("health check failed: %w", err)
		}
		defer func() { _ = app.Close() }()

		failures := 0
		if err := probeStorage(app.Storage); err != nil {
			fail(out, "Storage read/write failed", err)
			failures++
		} else {
			pass(out, "Storage read/write OK")
			if healthcheckDetails {
				_, _ = fmt.Fprintf(out, "   Scope: %s\n", app.Scope)
			}
		}
		_, _ = fmt.Fprintln(out)

		// Step 3: API health
		step(out, 3, "Checking chat API...")
		hctx, cancel := context.WithTimeout(ctx, healthcheckTimeout)
		status, err := app.Client.Health(hctx)
		cancel()
		switch {
		case err != nil:
			fail(out, "Chat API unreachable", err)
			failures++
		case status.Status != "healthy":
			warn(out, fmt.Sprintf("Chat API reports %q", status.Status))
			if status.Error != "" {
				_, _ = fmt.Fprintf(out, "   %s\n", status.Error)
			}
			failures++
		default:
			pass(out, fmt.Sprintf("Chat API healthy (%s %s)", status.Service, status.Version))
		}
		_, _ = fmt.Fprintln(out)

		// Step 4: session round trip
		step(out, 4, "Creating and deleting a probe session...")
		if id, err := probeSession(ctx, app.Client); err != nil {
			fail(out, "Session round trip failed", err)
			failures++
		} else {
			pass(out, "Session round trip OK")
			if healthcheckDetails {
				_, _ = fmt.Fprintf(out, "   Probe session: %s\n", id)
			}
		}
		_, _ = fmt.Fprintln(out)

		// Step 5: realtime
		step(out, 5, "Checking WebSocket feed...")
		if cfg.Realtime.URL == "" {
			warn(out, "No WebSocket URL configured, skipped")
		} else if rtt, err := probeRealtime(ctx, cfg); err != nil {
			fail(out, "WebSocket check failed", err)
			failures++
		} else {
			pass(out, fmt.Sprintf("WebSocket ping/pong OK (%s)", rtt.Round(time.Millisecond)))
		}
		_, _ = fmt.Fprintln(out)

		// Summary
		_, _ = fmt.Fprintln(out, sectionStyle.Render("📊 Summary"))
		_, _ = fmt.Fprintln(out)
		if failures > 0 {
			_, _ = fmt.Fprintln(out, errorStyle.Render(fmt.Sprintf("❌ Health check failed: %d check(s) failed", failures)))
			return fmt.Errorf("health check failed: %d check(s) failed", failures)
		}
		_, _ = fmt.Fprintln(out, successStyle.Render("✅ Health check passed!"))
		return nil
	},
}

func probeStorage(store internal.KeyValueStore) error {
	const key = "healthcheck_probe"
	want := time.Now().UTC().Format(time.RFC3339Nano)
	if err := store.Set(key, want); err != nil {
		return err
	}
	got, ok, err := store.Get(key)
	if err != nil {
		return err
	}
	if !ok || got != want {
		return fmt.Errorf("read back %q, wrote %q", got, want)
	}
	return store.Delete(key)
}

func probeSession(ctx context.Context, api internal.ChatAPI) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, healthcheckTimeout)
	defer cancel()

	id, err := api.CreateSession(ctx, map[string]any{"source": "healthcheck"})
	if err != nil {
		return "", err
	}
	if err := api.DeleteSession(ctx, id); err != nil {
		return id, fmt.Errorf("created %s but could not delete it: %w", id, err)
	}
	return id, nil
}

// probeRealtime connects, sends a ping and waits for the pong
func probeRealtime(ctx context.Context, cfg *internal.Config) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, healthcheckTimeout)
	defer cancel()

	client := realtime.NewClient(realtime.Options{URL: cfg.Realtime.URL, MaxAttempts: 1, BaseDelay: cfg.Realtime.BaseDelay})
	defer client.Disconnect()

	pong := make(chan struct{}, 1)
	client.On(realtime.TypePong, func(realtime.Frame) {
		select {
		case pong <- struct{}{}:
		default:
		}
	})

	if err := client.Connect(ctx, ""); err != nil {
		return 0, err
	}
	start := time.Now()
	if err := client.Ping(); err != nil {
		return 0, err
	}

	select {
	case <-pong:
		return time.Since(start), nil
	case <-ctx.Done():
		return 0, fmt.Errorf("no pong: %w", ctx.Err())
	}
}

func step(w io.Writer, n int, msg string) {
	_, _ = fmt.Fprintln(w, infoStyle.Render(fmt.Sprintf("Step %d: %s", n, msg)))
}

func pass(w io.Writer, msg string) {
	_, _ = fmt.Fprintln(w, successStyle.Render("✅ "+msg))
}

func warn(w io.Writer, msg string) {
	_, _ = fmt.Fprintln(w, warningStyle.Render("⚠️  "+msg))
}

func fail(w io.Writer, msg string, err error) {
	_, _ = fmt.Fprintln(w, errorStyle.Render("❌ "+msg+":"), err)
}

func init() {
	rootCmd.AddCommand(healthcheckCmd)
	healthcheckCmd.Flags().BoolVarP(&healthcheckDetails, "details", "d", false, "Show detailed diagnostic information")
}
