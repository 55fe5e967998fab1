// Package ws implements action.Transport against a remote HID bridge over a
// WebSocket connection.
//
// Every report is one JSON text message:
//
//	{"type":"keyboard","modifiers":1,"keys":[6]}
//	{"type":"keyboard"}                              // release all
//	{"type":"mouse","buttons":1}
//	{"type":"mouse"}                                 // release buttons
//	{"type":"mouse","x":-10}
//	{"type":"consumer","usage":205}
//
// Omitted numeric fields are zero. The bridge may send messages back; they
// are read and discarded so the connection notices when it drops. A dropped
// connection is redialled in the background until [Transport.Close].
package ws

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/MrWong99/voicekey/internal/action"
	"github.com/MrWong99/voicekey/pkg/types"
)

const (
	defaultDialTimeout  = 5 * time.Second
	defaultWriteTimeout = time.Second
	defaultReconnect    = 2 * time.Second
)

// Report is the JSON message sent for every HID report.
type Report struct {
	Type      string `json:"type"`
	Modifiers uint8  `json:"modifiers,omitempty"`
	Keys      []int  `json:"keys,omitempty"`
	Buttons   uint8  `json:"buttons,omitempty"`
	X         int8   `json:"x,omitempty"`
	Y         int8   `json:"y,omitempty"`
	Usage     uint16 `json:"usage,omitempty"`
}

// Report types.
const (
	TypeKeyboard = "keyboard"
	TypeMouse    = "mouse"
	TypeConsumer = "consumer"
)

// Option is a functional option for [Dial].
type Option func(*Transport)

// WithHeader sets extra HTTP headers for the WebSocket handshake, e.g. an
// Authorization token for the bridge.
func WithHeader(h http.Header) Option {
	return func(t *Transport) { t.header = h }
}

// WithReconnectInterval sets the pause between redial attempts.
func WithReconnectInterval(d time.Duration) Option {
	return func(t *Transport) {
		if d > 0 {
			t.reconnect = d
		}
	}
}

// WithWriteTimeout bounds every report write.
func WithWriteTimeout(d time.Duration) Option {
	return func(t *Transport) {
		if d > 0 {
			t.writeTimeout = d
		}
	}
}

// Transport sends HID reports to a WebSocket bridge. Safe for concurrent use.
type Transport struct {
	url          string
	header       http.Header
	reconnect    time.Duration
	writeTimeout time.Duration

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool

	done chan struct{}
	wg   sync.WaitGroup
}

// Dial connects to the bridge at url (ws:// or wss://). The first connection
// attempt must succeed; later drops are redialled in the background.
func Dial(ctx context.Context, url string, opts ...Option) (*Transport, error) {
	t := &Transport{
		url:          url,
		reconnect:    defaultReconnect,
		writeTimeout: defaultWriteTimeout,
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}

	conn, err := t.dial(ctx)
	if err != nil {
		return nil, err
	}
	t.conn = conn
	t.wg.Add(1)
	go t.supervise(conn)
	slog.Info("connected to hid bridge", "url", url)
	return t, nil
}

func (t *Transport) dial(ctx context.Context) (*websocket.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultDialTimeout)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, t.url, &websocket.DialOptions{HTTPHeader: t.header})
	if err != nil {
		return nil, fmt.Errorf("ws: dial %s: %w", t.url, err)
	}
	return conn, nil
}

// supervise drains incoming messages on conn and redials after it drops.
func (t *Transport) supervise(conn *websocket.Conn) {
	defer t.wg.Done()
	for {
		for {
			if _, _, err := conn.Read(context.Background()); err != nil {
				break
			}
		}

		t.mu.Lock()
		if t.conn == conn {
			t.conn = nil
		}
		closed := t.closed
		t.mu.Unlock()
		if closed {
			return
		}
		slog.Warn("hid bridge connection lost", "url", t.url)

		for {
			select {
			case <-t.done:
				return
			case <-time.After(t.reconnect):
			}
			c, err := t.dial(context.Background())
			if err != nil {
				slog.Debug("hid bridge redial failed", "error", err)
				continue
			}
			t.mu.Lock()
			if t.closed {
				t.mu.Unlock()
				c.Close(websocket.StatusNormalClosure, "transport closed")
				return
			}
			t.conn = c
			t.mu.Unlock()
			conn = c
			slog.Info("reconnected to hid bridge", "url", t.url)
			break
		}
	}
}

// Connected reports whether a bridge connection is currently open.
func (t *Transport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn != nil
}

func (t *Transport) send(ctx context.Context, r Report) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("ws: send %s report: %w", r.Type, types.ErrNotConnected)
	}
	ctx, cancel := context.WithTimeout(ctx, t.writeTimeout)
	defer cancel()
	if err := wsjson.Write(ctx, conn, r); err != nil {
		return fmt.Errorf("ws: send %s report: %w", r.Type, err)
	}
	return nil
}

// PressKey sends a keyboard report.
func (t *Transport) PressKey(ctx context.Context, mods action.Modifier, key action.Key) error {
	r := Report{Type: TypeKeyboard, Modifiers: uint8(mods)}
	if key != action.KeyNone {
		r.Keys = []int{int(key)}
	}
	return t.send(ctx, r)
}

// ReleaseAll sends an empty keyboard report.
func (t *Transport) ReleaseAll(ctx context.Context) error {
	return t.send(ctx, Report{Type: TypeKeyboard})
}

// PressButtons sends a mouse report with b held.
func (t *Transport) PressButtons(ctx context.Context, b action.Button) error {
	return t.send(ctx, Report{Type: TypeMouse, Buttons: uint8(b)})
}

// ReleaseButtons sends an empty mouse report.
func (t *Transport) ReleaseButtons(ctx context.Context) error {
	return t.send(ctx, Report{Type: TypeMouse})
}

// Move sends a relative mouse movement.
func (t *Transport) Move(ctx context.Context, dx, dy int8) error {
	return t.send(ctx, Report{Type: TypeMouse, X: dx, Y: dy})
}

// PressConsumer sends a consumer control report.
func (t *Transport) PressConsumer(ctx context.Context, u action.Usage) error {
	return t.send(ctx, Report{Type: TypeConsumer, Usage: uint16(u)})
}

// Close closes the connection and stops redialling.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	conn := t.conn
	t.conn = nil
	close(t.done)
	t.mu.Unlock()

	var err error
	if conn != nil {
		err = conn.Close(websocket.StatusNormalClosure, "transport closed")
	}
	t.wg.Wait()
	return err
}

var _ action.Transport = (*Transport)(nil)
