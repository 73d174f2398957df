// Package realtime is the push transport: a WebSocket client with linear
// reconnect backoff and a type-keyed listener table.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/iksnae/chat-session/internal"
)

const (
	DefaultMaxAttempts = 5
	DefaultBaseDelay   = time.Second

	handshakeTimeout = 10 * time.Second
	writeTimeout     = 5 * time.Second
	typingInterval   = 2 * time.Second
)

var (
	// ErrNotConnected is returned by sends while the client is not Connected
	ErrNotConnected = errors.New("websocket not connected")

	// ErrReconnectExhausted is reported to state listeners when the last
	// reconnect attempt fails
	ErrReconnectExhausted = errors.New("websocket reconnect attempts exhausted")
)

// State is the connection state of a Client
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// Listener receives inbound frames of one type
type Listener func(Frame)

// StateListener observes state changes. err is non-nil only when reconnecting
// has been given up.
type StateListener func(state State, err error)

// Options configures a Client. Zero values take the defaults.
type Options struct {
	URL         string
	MaxAttempts int
	BaseDelay   time.Duration
	Dialer      *websocket.Dialer
}

// afterFunc schedules f after d and returns a func that cancels it
type afterFunc func(d time.Duration, f func()) (stop func() bool)

func timeAfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

type listenerEntry struct {
	id int
	fn Listener
}

// Client is a reconnecting WebSocket client. Reconnect delay grows linearly:
// attempt n waits n × BaseDelay, for at most MaxAttempts attempts.
type Client struct {
	baseURL     string
	maxAttempts int
	baseDelay   time.Duration
	dialer      *websocket.Dialer
	after       afterFunc
	typing      *rate.Limiter

	mu             sync.Mutex
	state          State
	conn           *websocket.Conn
	gen            int
	conversationID string
	attempts       int
	stopTimer      func() bool
	closed         bool
	listeners      map[string][]listenerEntry
	stateListeners []StateListener
	nextID         int

	writeMu sync.Mutex
}

// NewClient creates a disconnected Client
func NewClient(opts Options) *Client {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = DefaultBaseDelay
	}
	if opts.Dialer == nil {
		opts.Dialer = &websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	}
	return &Client{
		baseURL:     strings.TrimRight(opts.URL, "/"),
		maxAttempts: opts.MaxAttempts,
		baseDelay:   opts.BaseDelay,
		dialer:      opts.Dialer,
		after:       timeAfterFunc,
		typing:      rate.NewLimiter(rate.Every(typingInterval), 1),
		listeners:   make(map[string][]listenerEntry),
	}
}

// State returns the current connection state
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Attempts returns the number of reconnect attempts since the last open
func (c *Client) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// Endpoint returns the socket URL for a conversation; an empty id addresses
// the shared endpoint.
func (c *Client) Endpoint(conversationID string) string {
	if conversationID == "" {
		return c.baseURL
	}
	return c.baseURL + "/" + url.PathEscape(conversationID)
}

// Connect opens the socket. It is a no-op unless the client is Disconnected.
// A failed dial is returned and also starts the reconnect cycle.
func (c *Client) Connect(ctx context.Context, conversationID string) error {
	c.mu.Lock()
	if c.state != Disconnected {
		c.mu.Unlock()
		return nil
	}
	c.closed = false
	c.conversationID = conversationID
	c.attempts = 0
	notify := c.setStateLocked(Connecting, nil)
	c.mu.Unlock()
	notify()

	return c.dial(ctx)
}

func (c *Client) dial(ctx context.Context) error {
	c.mu.Lock()
	endpoint := c.Endpoint(c.conversationID)
	gen := c.gen
	c.mu.Unlock()

	conn, _, err := c.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		internal.LogDebug("Dial %s failed: %v", endpoint, err)
		c.handleClose(gen)
		return fmt.Errorf("failed to connect to %s: %w", endpoint, err)
	}

	c.mu.Lock()
	if c.closed || gen != c.gen {
		c.mu.Unlock()
		_ = conn.Close()
		return ErrNotConnected
	}
	c.conn = conn
	c.gen++
	gen = c.gen
	c.attempts = 0
	notify := c.setStateLocked(Connected, nil)
	c.mu.Unlock()
	notify()

	internal.LogInfo("Connected to %s", endpoint)
	go c.readLoop(conn, gen)
	return nil
}

func (c *Client) readLoop(conn *websocket.Conn, gen int) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			internal.LogDebug("Socket read ended: %v", err)
			_ = conn.Close()
			c.handleClose(gen)
			return
		}
		c.dispatch(data)
	}
}

// handleClose runs when the connection of generation gen is lost or could not
// be opened. Stale generations and deliberate disconnects are ignored.
func (c *Client) handleClose(gen int) {
	c.mu.Lock()
	if c.closed || gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.gen++

	var notify func()
	if c.attempts < c.maxAttempts {
		c.attempts++
		delay := c.baseDelay * time.Duration(c.attempts)
		internal.LogInfo("Connection lost, reconnecting in %s (attempt %d/%d)", delay, c.attempts, c.maxAttempts)
		notify = c.setStateLocked(Reconnecting, nil)
		c.stopTimer = c.after(delay, c.reconnect)
	} else {
		internal.LogWarn("Giving up after %d reconnect attempts", c.maxAttempts)
		notify = c.setStateLocked(Disconnected, ErrReconnectExhausted)
	}
	c.mu.Unlock()
	notify()
}

func (c *Client) reconnect() {
	c.mu.Lock()
	if c.closed || c.state != Reconnecting {
		c.mu.Unlock()
		return
	}
	c.stopTimer = nil
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), handshakeTimeout)
	defer cancel()
	_ = c.dial(ctx)
}

// Disconnect closes the socket, cancels any pending reconnect and drops all
// listeners. It does not trigger a reconnect.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.closed = true
	if c.stopTimer != nil {
		c.stopTimer()
		c.stopTimer = nil
	}
	conn := c.conn
	c.conn = nil
	c.gen++
	c.attempts = 0
	c.state = Disconnected
	c.listeners = make(map[string][]listenerEntry)
	c.stateListeners = nil
	c.mu.Unlock()

	if conn != nil {
		c.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeTimeout))
		c.writeMu.Unlock()
		_ = conn.Close()
	}
}

// On registers fn for frames of frameType and returns a func that removes it
func (c *Client) On(frameType string, fn Listener) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[frameType] = append(c.listeners[frameType], listenerEntry{id: id, fn: fn})
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		entries := c.listeners[frameType]
		for i, e := range entries {
			if e.id == id {
				c.listeners[frameType] = append(entries[:i:i], entries[i+1:]...)
				return
			}
		}
	}
}

// OnState registers fn for state changes
func (c *Client) OnState(fn StateListener) {
	c.mu.Lock()
	c.stateListeners = append(c.stateListeners, fn)
	c.mu.Unlock()
}

// Send writes v as a JSON frame. It fails with ErrNotConnected rather than
// queueing.
func (c *Client) Send(v any) error {
	c.mu.Lock()
	conn := c.conn
	connected := c.state == Connected
	c.mu.Unlock()
	if !connected || conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(v); err != nil {
		return fmt.Errorf("failed to send frame: %w", err)
	}
	return nil
}

// SendChat sends a chat frame
func (c *Client) SendChat(message string) error {
	return c.Send(outboundFrame{Type: TypeChat, Message: message})
}

// Ping sends a ping frame; the server answers with pong
func (c *Client) Ping() error {
	return c.Send(outboundFrame{Type: TypePing})
}

// SendTyping sends a typing indicator. Start indicators are throttled and
// silently dropped when sent too often; stop indicators always go out.
func (c *Client) SendTyping(isTyping bool) error {
	if isTyping && !c.typing.Allow() {
		return nil
	}
	return c.Send(outboundFrame{Type: TypeTyping, IsTyping: &isTyping})
}

func (c *Client) dispatch(data []byte) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		internal.LogWarn("Dropping malformed frame: %v", err)
		return
	}
	frame := Frame{Type: head.Type, Raw: json.RawMessage(data)}

	c.mu.Lock()
	entries := append([]listenerEntry(nil), c.listeners[frame.Type]...)
	c.mu.Unlock()

	if len(entries) == 0 {
		internal.LogDebug("No listener for %q frame", frame.Type)
	}
	for _, e := range entries {
		deliver(e.fn, frame)
	}
}

// deliver calls one listener, containing its panics so the others still run
func deliver(fn Listener, frame Frame) {
	defer func() {
		if r := recover(); r != nil {
			internal.LogError("Listener for %q frame panicked: %v", frame.Type, r)
		}
	}()
	fn(frame)
}

// setStateLocked records the new state and returns a func that notifies
// state listeners; call it after releasing mu.
func (c *Client) setStateLocked(s State, err error) func() {
	c.state = s
	listeners := append([]StateListener(nil), c.stateListeners...)
	return func() {
		for _, fn := range listeners {
			fn(s, err)
		}
	}
}
