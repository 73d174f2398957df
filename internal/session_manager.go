package internal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// unloadTimeout bounds the blocking delete used when no Beaconer is available
const unloadTimeout = 2 * time.Second

// SessionManager owns session identity, the in-memory history mirror and the
// tab-scoped persistence of the session id.
//
// Identity moves Uninitialized -> Active on create or restore, and back to
// Uninitialized on a 404, an explicit reset or a detected reload.
type SessionManager struct {
	api          ChatAPI
	store        KeyValueStore
	historyLimit int
	now          func() time.Time

	creating singleflight.Group

	mu            sync.Mutex
	session       *Session
	history       []ConversationMessage
	reloadPending bool
	subscribers   map[int]func(Snapshot)
	nextSubID     int
}

// NewSessionManager creates a SessionManager. historyLimit is passed to
// GetHistory when a stored session is verified; zero uses the API default.
func NewSessionManager(api ChatAPI, store KeyValueStore, historyLimit int) *SessionManager {
	return &SessionManager{
		api:          api,
		store:        store,
		historyLimit: historyLimit,
		now:          time.Now,
		subscribers:  make(map[int]func(Snapshot)),
	}
}

// BeginPageLoad must run once, eagerly, at startup. A reload flag left by an
// earlier load in the same scope marks this load as a reload; the flag is
// then written again for the next one.
func (m *SessionManager) BeginPageLoad() error {
	_, loaded, err := m.store.Get(ReloadFlagKey)
	if err != nil {
		return fmt.Errorf("failed to read reload flag: %w", err)
	}

	m.mu.Lock()
	m.reloadPending = loaded
	m.mu.Unlock()

	if loaded {
		LogDebug("Reload flag present, this load is a reload")
	}
	if err := m.store.Set(ReloadFlagKey, "true"); err != nil {
		return fmt.Errorf("failed to write reload flag: %w", err)
	}
	return nil
}

// EndPageLoad clears the reload flag on a clean exit that keeps the session,
// so the next load in this scope resumes it instead of treating it as a reload.
func (m *SessionManager) EndPageLoad() error {
	if err := m.store.Delete(ReloadFlagKey); err != nil {
		return fmt.Errorf("failed to clear reload flag: %w", err)
	}
	return nil
}

// LoadOrRestore resolves the session to use for this load. After a reload the
// stored id is discarded and "" is returned. Otherwise a stored id is verified
// by fetching its history: a 404 clears it, any other failure keeps it active
// and is returned alongside the id.
func (m *SessionManager) LoadOrRestore(ctx context.Context) (string, error) {
	m.mu.Lock()
	reload := m.reloadPending
	m.reloadPending = false
	m.mu.Unlock()

	if reload {
		LogInfo("Page reload detected, starting a fresh session")
		if err := m.store.Delete(SessionIDKey); err != nil {
			return "", err
		}
		m.clearLocal()
		return "", nil
	}

	id, ok, err := m.store.Get(SessionIDKey)
	if err != nil {
		return "", err
	}
	if !ok || id == "" {
		return "", nil
	}

	history, err := m.api.GetHistory(ctx, id, m.historyLimit)
	if err != nil {
		if IsSessionNotFound(err) {
			LogInfo("Stored session %s no longer exists on the server", id)
			m.invalidate(id)
			return "", nil
		}
		LogWarn("Could not verify stored session %s: %v", id, err)
		m.activate(&Session{ID: id}, nil)
		return id, err
	}

	restored := &Session{ID: id}
	if len(history) > 0 {
		restored.CreatedAt = history[0].GetTimestamp()
	}
	m.activate(restored, history)
	LogDebug("Restored session %s with %d messages", id, len(history))
	return id, nil
}

// CreateSession creates a server-side session and persists its id. Calling it
// while a session is active returns ErrSessionActive; overlapping calls share
// one request.
func (m *SessionManager) CreateSession(ctx context.Context, metadata map[string]any) (string, error) {
	if m.SessionID() != "" {
		return "", ErrSessionActive
	}
	return m.createShared(ctx, metadata)
}

// SendMessage sends req.Query, creating a session first when neither req nor
// the manager carries one. The user turn is appended before the request goes
// out and stays in history if it fails.
func (m *SessionManager) SendMessage(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if req.SessionID == "" {
		id, err := m.createShared(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create session: %w", err)
		}
		req.SessionID = id
	}

	m.AppendMessage(NewMessage(RoleUser, req.Query, m.now(), nil))

	resp, err := m.api.Chat(ctx, req)
	if err != nil {
		if IsSessionNotFound(err) {
			LogInfo("Session %s expired on the server", req.SessionID)
			m.invalidate(req.SessionID)
		}
		return nil, err
	}

	if resp.SessionID != "" && resp.SessionID != req.SessionID {
		LogInfo("Server assigned session %s (sent %s)", resp.SessionID, req.SessionID)
		m.adopt(resp.SessionID)
	}

	m.AppendMessage(NewMessage(RoleAssistant, resp.Answer, m.now(), resp.Metadata()))
	return resp, nil
}

// ResetConversation deletes the server-side session on a best-effort basis,
// then clears the id, the history and the persisted id.
func (m *SessionManager) ResetConversation(ctx context.Context) error {
	if id := m.SessionID(); id != "" {
		if err := m.api.DeleteSession(ctx, id); err != nil {
			LogWarn("Failed to delete session %s: %v", id, err)
		}
	}

	m.clearLocal()
	if err := m.store.Delete(SessionIDKey); err != nil {
		return fmt.Errorf("failed to clear stored session: %w", err)
	}
	return nil
}

// CleanupOnUnload releases the server-side session when the process is going
// away. It prefers a non-blocking Beaconer and never panics.
func (m *SessionManager) CleanupOnUnload() {
	defer func() {
		if r := recover(); r != nil {
			LogWarn("Session cleanup panicked: %v", r)
		}
	}()

	id := m.SessionID()
	if id == "" {
		return
	}

	if b, ok := m.api.(Beaconer); ok && b.SendBeacon(id) {
		LogDebug("Queued delete of session %s", id)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), unloadTimeout)
	defer cancel()
	if err := m.api.DeleteSession(ctx, id); err != nil {
		LogWarn("Failed to delete session %s on exit: %v", id, err)
	}
}

// AppendMessage adds a turn to the history mirror and notifies subscribers
func (m *SessionManager) AppendMessage(msg ConversationMessage) {
	m.mu.Lock()
	m.history = append(m.history, msg)
	m.mu.Unlock()
	m.notify()
}

// SessionID returns the active session id, or "" when uninitialized
func (m *SessionManager) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return ""
	}
	return m.session.ID
}

// Session returns a copy of the active session, or nil
func (m *SessionManager) Session() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil
	}
	s := *m.session
	return &s
}

// State returns the identity state
func (m *SessionManager) State() SessionState {
	if m.SessionID() == "" {
		return StateUninitialized
	}
	return StateActive
}

// History returns a copy of the conversation so far
func (m *SessionManager) History() []ConversationMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ConversationMessage(nil), m.history...)
}

// Transcript captures the active session and its history for archiving.
// It returns nil when there is nothing to archive.
func (m *SessionManager) Transcript() *Transcript {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil || len(m.history) == 0 {
		return nil
	}
	return &Transcript{
		Session:  *m.session,
		Messages: append([]ConversationMessage(nil), m.history...),
		SavedAt:  m.now().UTC(),
	}
}

// Subscribe registers fn to receive a Snapshot after every change. The
// returned func removes the subscription.
func (m *SessionManager) Subscribe(fn func(Snapshot)) func() {
	m.mu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.subscribers[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subscribers, id)
		m.mu.Unlock()
	}
}

// createShared runs session creation through the single-flight group. The
// shared request is detached from the caller's cancellation so one caller
// giving up does not fail the others.
func (m *SessionManager) createShared(ctx context.Context, metadata map[string]any) (string, error) {
	if id := m.SessionID(); id != "" {
		return id, nil
	}

	ch := m.creating.DoChan("create", func() (any, error) {
		return m.create(context.WithoutCancel(ctx), metadata)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (m *SessionManager) create(ctx context.Context, metadata map[string]any) (string, error) {
	// a flight that finished between the caller's check and ours already set it
	if id := m.SessionID(); id != "" {
		return id, nil
	}

	id, err := m.api.CreateSession(ctx, metadata)
	if err != nil {
		return "", err
	}

	m.activate(&Session{ID: id, CreatedAt: m.now().UTC(), Metadata: metadata}, nil)
	if err := m.store.Set(SessionIDKey, id); err != nil {
		LogWarn("Failed to persist session %s: %v", id, err)
	}
	LogInfo("Started session %s", id)
	return id, nil
}

// activate makes s the active session. A nil history keeps the current mirror.
func (m *SessionManager) activate(s *Session, history []ConversationMessage) {
	m.mu.Lock()
	m.session = s
	if history != nil {
		m.history = history
	}
	m.mu.Unlock()
	m.notify()
}

// adopt switches to a server-assigned id, keeping the history
func (m *SessionManager) adopt(id string) {
	m.mu.Lock()
	if m.session == nil {
		m.session = &Session{ID: id, CreatedAt: m.now().UTC()}
	} else {
		m.session.ID = id
	}
	m.mu.Unlock()

	if err := m.store.Set(SessionIDKey, id); err != nil {
		LogWarn("Failed to persist session %s: %v", id, err)
	}
	m.notify()
}

// invalidate drops id if it is still the active or stored session
func (m *SessionManager) invalidate(id string) {
	m.mu.Lock()
	if m.session != nil && m.session.ID == id {
		m.session = nil
	}
	m.mu.Unlock()

	if stored, ok, err := m.store.Get(SessionIDKey); err == nil && ok && stored == id {
		if err := m.store.Delete(SessionIDKey); err != nil {
			LogWarn("Failed to clear stored session %s: %v", id, err)
		}
	}
	m.notify()
}

func (m *SessionManager) clearLocal() {
	m.mu.Lock()
	m.session = nil
	m.history = nil
	m.mu.Unlock()
	m.notify()
}

func (m *SessionManager) notify() {
	m.mu.Lock()
	snap := Snapshot{History: append([]ConversationMessage(nil), m.history...)}
	if m.session != nil {
		snap.State = StateActive
		snap.SessionID = m.session.ID
	}
	subs := make([]func(Snapshot), 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}
