package rpc

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebsocketTransportConfig contains configuration options for the websocket transport
type WebsocketTransportConfig struct {
	// URL is the node endpoint, e.g. ws://127.0.0.1:4337
	URL string

	// HandshakeTimeout is the duration to wait for the websocket handshake to complete
	HandshakeTimeout time.Duration

	// WriteTimeout bounds writing one message when the context has no deadline
	WriteTimeout time.Duration

	// ReadLimit caps the size of one reply message
	ReadLimit int64

	// Header is sent with the handshake
	Header http.Header
}

// DefaultWebsocketTransportConfig provides defaults for everything except URL
var DefaultWebsocketTransportConfig = WebsocketTransportConfig{
	HandshakeTimeout: 5 * time.Second,
	WriteTimeout:     5 * time.Second,
	ReadLimit:        32 << 20,
}

// WebsocketTransport exchanges messages with a node over one websocket
// connection. Exchanges are serialized: a message is written and its reply
// read before the next message is written. A broken connection is dropped
// and redialed on the next Post.
type WebsocketTransport struct {
	cfg    WebsocketTransportConfig
	dialer websocket.Dialer

	mu   sync.Mutex // Serializes exchanges and guards conn
	conn *websocket.Conn
}

var _ Transport = (*WebsocketTransport)(nil)

// NewWebsocketTransport returns a transport that dials lazily on first use.
// Zero fields of cfg fall back to DefaultWebsocketTransportConfig.
func NewWebsocketTransport(cfg WebsocketTransportConfig) *WebsocketTransport {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = DefaultWebsocketTransportConfig.HandshakeTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWebsocketTransportConfig.WriteTimeout
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = DefaultWebsocketTransportConfig.ReadLimit
	}

	return &WebsocketTransport{
		cfg: cfg,
		dialer: websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
	}
}

// DialWebsocket returns a transport with an established connection.
func DialWebsocket(ctx context.Context, cfg WebsocketTransportConfig) (*WebsocketTransport, error) {
	t := NewWebsocketTransport(cfg)

	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.dialLocked(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *WebsocketTransport) dialLocked(ctx context.Context) error {
	conn, res, err := t.dialer.DialContext(ctx, t.cfg.URL, t.cfg.Header)
	if res != nil && res.Body != nil {
		res.Body.Close()
	}
	if err != nil {
		return transportError(fmt.Errorf("dial %s: %w", t.cfg.URL, err))
	}
	conn.SetReadLimit(t.cfg.ReadLimit)
	t.conn = conn
	return nil
}

// Post writes body as one text message and returns the next data message.
func (t *WebsocketTransport) Post(ctx context.Context, body []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		if err := t.dialLocked(ctx); err != nil {
			return nil, err
		}
	}
	conn := t.conn

	writeDeadline := time.Now().Add(t.cfg.WriteTimeout)
	readDeadline := time.Time{}
	if dl, ok := ctx.Deadline(); ok {
		writeDeadline, readDeadline = dl, dl
	}

	if err := conn.SetReadDeadline(readDeadline); err != nil {
		return nil, t.dropLocked(err)
	}
	// Unblock a pending read once the caller gives up.
	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Now())
	})
	defer stop()

	if err := conn.SetWriteDeadline(writeDeadline); err != nil {
		return nil, t.dropLocked(err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, body); err != nil {
		return nil, t.dropLocked(fmt.Errorf("write: %w", err))
	}

	for {
		kind, reply, err := conn.ReadMessage()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				err = fmt.Errorf("%w: %w", ctxErr, err)
			}
			return nil, t.dropLocked(fmt.Errorf("read: %w", err))
		}
		if kind != websocket.TextMessage && kind != websocket.BinaryMessage {
			continue
		}
		if len(reply) == 0 {
			return nil, transportError(ErrEmptyResponse)
		}
		return reply, nil
	}
}

// dropLocked closes the broken connection so the next Post redials.
func (t *WebsocketTransport) dropLocked(cause error) error {
	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
	}
	return transportError(cause)
}

// Close closes the connection if one is open.
func (t *WebsocketTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return nil
	}
	err := t.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	if cerr := t.conn.Close(); err == nil {
		err = cerr
	}
	t.conn = nil
	return err
}
