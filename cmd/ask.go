package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iksnae/chat-session/internal"
	"github.com/iksnae/chat-session/internal/format"
)

// requestFlags are the optional search filters shared by ask and chat
type requestFlags struct {
	lat         float64
	lon         float64
	contentType string
	brand       string
	keywords    []string
	top         int
}

func (f *requestFlags) bind(c *cobra.Command) {
	c.Flags().Float64Var(&f.lat, "lat", 0, "Latitude to bias results towards")
	c.Flags().Float64Var(&f.lon, "lon", 0, "Longitude to bias results towards")
	c.Flags().StringVar(&f.contentType, "content-type", "", "Only search content of this type")
	c.Flags().StringVar(&f.brand, "brand", "", "Only search content of this brand")
	c.Flags().StringSliceVar(&f.keywords, "keyword", nil, "Keyword filter (repeatable)")
	c.Flags().IntVar(&f.top, "top", 0, "Number of search results to use (1-20, server default 5)")
}

// request builds a ChatRequest; the location is only sent when --lat or --lon was given
func (f *requestFlags) request(c *cobra.Command, query string) internal.ChatRequest {
	req := internal.ChatRequest{
		Query:            query,
		ContentType:      f.contentType,
		Brand:            f.brand,
		Keywords:         f.keywords,
		TopSearchResults: f.top,
	}
	if c.Flags().Changed("lat") || c.Flags().Changed("lon") {
		req.Location = &internal.Coordinates{Lat: f.lat, Lon: f.lon}
	}
	return req
}

var (
	askFilters    requestFlags
	askEndSession bool
	askRaw        bool
)

// askCmd represents the ask command
var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a single question and print the answer",
	Long: `Send one question and print the rendered answer.

With --scope the session is kept in that scope, so successive asks continue
the same conversation. Without a scope nothing could resume it, so the
server session is released after the answer.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp()
		if err != nil {
			return err
		}
		defer func() { _ = app.Close() }()

		ctx := cmd.Context()
		query := strings.Join(args, " ")

		if _, err := app.Sessions.LoadOrRestore(ctx); err != nil {
			internal.LogWarn("Could not verify stored session: %v", err)
		}

		var resp *internal.ChatResponse
		err = internal.ShowProgress(ctx, "Thinking", func() error {
			var sendErr error
			resp, sendErr = app.Sessions.SendMessage(ctx, askFilters.request(cmd, query))
			return sendErr
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if askRaw {
			_, _ = fmt.Fprintln(out, resp.Answer)
		} else {
			history := app.Sessions.History()
			renderer := format.NewRenderer(internal.TerminalWidth(out, format.DefaultWidth))
			_, _ = fmt.Fprint(out, renderer.RenderMessage(history[len(history)-1]))
		}

		if askEndSession || app.Config.Storage.Scope == "" {
			if err := app.Sessions.ResetConversation(context.WithoutCancel(ctx)); err != nil {
				internal.LogWarn("Failed to clear session: %v", err)
			}
			return nil
		}
		internal.PrintInfo(cmd.ErrOrStderr(), fmt.Sprintf("Session %s kept in scope %s", app.Sessions.SessionID(), app.Scope))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
	askFilters.bind(askCmd)
	askCmd.Flags().BoolVar(&askEndSession, "end-session", false, "Release the server session after the answer")
	askCmd.Flags().BoolVar(&askRaw, "raw", false, "Print the answer text without formatting")
}
