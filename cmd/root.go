package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/iksnae/chat-session/internal"
)

var (
	verbose    bool
	configPath string
	apiURL     string
	wsURL      string
	storePath  string
	scope      string
	version    string = "dev"
	commit     string = "unknown"
	date       string = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "chat-session",
	Short: "Terminal client for the conversational search backend",
	Long: `A terminal client for the conversational search backend.

Each invocation behaves like one page load of the chat widget: the session id
is kept in a tab-scoped store, reloads are detected, and the server-side
session is released on exit unless asked to keep it.

Features:
  • Interactive chat with rich, source-linked answers
  • One-shot questions that resume the session of a named scope
  • Server history, transcript archive and export (JSONL, Markdown, YAML, JSON)
  • Live WebSocket feed with automatic reconnects

Quick Start:
  chat-session chat                       # Start a conversation
  chat-session ask "best chocolate cake"  # Ask once and print the answer
  chat-session list                       # List archived transcripts
  chat-session export --format md         # Export archived transcripts

Configuration is read from ~/.chat-session/config.toml (or --config) and
CHAT_SESSION_* environment variables; flags override both.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		internal.SetVerbose(verbose)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig resolves the configuration for a command: file, environment,
// then the persistent flags.
func loadConfig() (*internal.Config, error) {
	cfg, err := internal.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	if apiURL != "" {
		cfg.API.BaseURL = apiURL
	}
	if wsURL != "" {
		cfg.Realtime.URL = wsURL
	}
	if storePath != "" {
		cfg.Storage.Path = storePath
	}
	if scope != "" {
		cfg.Storage.Scope = scope
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}

	if verbose {
		internal.SetVerbose(true)
	} else {
		internal.SetLogLevel(internal.ParseLogLevel(cfg.Log.Level))
	}
	return cfg, nil
}

// openApp loads the configuration and wires the application around it
func openApp() (*internal.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return internal.NewApp(cfg)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.chat-session/config.toml)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "", "Chat API base URL")
	rootCmd.PersistentFlags().StringVar(&wsURL, "ws", "", "WebSocket endpoint URL")
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "", "Tab-scoped storage database")
	rootCmd.PersistentFlags().StringVar(&scope, "scope", "", "Storage scope; reuse one to continue a conversation like a browser tab")

	// Set version template to ensure --version flag works
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}
