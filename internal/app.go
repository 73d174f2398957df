package internal

import (
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// beaconDrainTimeout bounds how long Close waits for queued session deletes
const beaconDrainTimeout = 3 * time.Second

// App holds the long-lived collaborators built from a Config. Construct one
// per process and Close it on exit.
type App struct {
	Config   *Config
	Scope    string
	Client   *Client
	Storage  *Storage
	Sessions *SessionManager
	Cache    *TranscriptCache
}

// NewApp opens the tab-scoped store and wires the API client and session
// manager. An empty configured scope gets a fresh one.
func NewApp(cfg *Config) (*App, error) {
	scope := cfg.Storage.Scope
	if scope == "" {
		scope = uuid.NewString()
	}

	if cfg.Storage.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0755); err != nil {
			return nil, &StorageError{Path: cfg.Storage.Path, Op: "open", Err: err}
		}
	}
	storage, err := OpenStorage(cfg.Storage.Path, scope)
	if err != nil {
		return nil, err
	}

	client := NewClient(cfg.API.BaseURL, cfg.API.Timeout)
	LogDebug("Using API %s, store %s, scope %s", client.BaseURL(), cfg.Storage.Path, scope)

	return &App{
		Config:   cfg,
		Scope:    scope,
		Client:   client,
		Storage:  storage,
		Sessions: NewSessionManager(client, storage, cfg.API.HistoryLimit),
		Cache:    NewTranscriptCache(cfg.Cache.Dir),
	}, nil
}

// Archive saves the current conversation to the transcript cache, if there is one
func (a *App) Archive() error {
	t := a.Sessions.Transcript()
	if t == nil {
		return nil
	}
	return a.Cache.SaveTranscript(t)
}

// Close drains pending session deletes and closes the store
func (a *App) Close() error {
	a.Client.Close(beaconDrainTimeout)
	return a.Storage.Close()
}
