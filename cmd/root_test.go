package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iksnae/chat-session/internal"
)

func TestRootCommand(t *testing.T) {
	newTestEnv(t, "http://localhost:8000", "ws://localhost:8000/ws")

	tests := []struct {
		name    string
		args    []string
		wantErr bool
	}{
		{
			name:    "version flag",
			args:    []string{"--version"},
			wantErr: false,
		},
		{
			name:    "help flag",
			args:    []string{"--help"},
			wantErr: false,
		},
		{
			name:    "unknown command",
			args:    []string{"nonexistent-command"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runCommand(t, "", tt.args...)
			if (err != nil) != tt.wantErr {
				t.Errorf("rootCmd.Execute() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRootCommand_Subcommands(t *testing.T) {
	for _, name := range []string{"ask", "chat", "history", "list", "export", "render", "dedup", "watch", "healthcheck"} {
		t.Run(name, func(t *testing.T) {
			found, _, err := rootCmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, found.Name())
		})
	}
}

func TestLoadConfig_FlagOverrides(t *testing.T) {
	env := newTestEnv(t, "", "")
	resetFlags(rootCmd)
	t.Cleanup(func() { resetFlags(rootCmd) })

	require.NoError(t, rootCmd.PersistentFlags().Set("api", "https://api.example.com"))
	require.NoError(t, rootCmd.PersistentFlags().Set("ws", "wss://api.example.com/ws"))
	require.NoError(t, rootCmd.PersistentFlags().Set("store", env.store))
	require.NoError(t, rootCmd.PersistentFlags().Set("scope", "tab-1"))

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com", cfg.API.BaseURL)
	assert.Equal(t, "wss://api.example.com/ws", cfg.Realtime.URL)
	assert.Equal(t, env.store, cfg.Storage.Path)
	assert.Equal(t, "tab-1", cfg.Storage.Scope)
}

func TestLoadConfig_InvalidFlag(t *testing.T) {
	newTestEnv(t, "", "")

	_, _, err := runCommand(t, "", "list", "--api", "ftp://example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid flags")

	var verr *internal.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestLoadConfig_EnvironmentAndFile(t *testing.T) {
	env := newTestEnv(t, "", "")
	path := env.writeConfig(t, `
[api]
base_url = "http://file.example.com"

[storage]
scope = "from-file"
`)
	t.Setenv(internal.EnvScope, "from-env")
	resetFlags(rootCmd)
	t.Cleanup(func() { resetFlags(rootCmd) })
	require.NoError(t, rootCmd.PersistentFlags().Set("config", path))

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "http://file.example.com", cfg.API.BaseURL)
	assert.Equal(t, "from-env", cfg.Storage.Scope)
}
