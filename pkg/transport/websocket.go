package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"main/pkg/exception"
	"main/pkg/stomp"

	"github.com/gorilla/websocket"
	"github.com/yanun0323/errors"
)

// DefaultHandshakeTimeout bounds the WebSocket upgrade.
const DefaultHandshakeTimeout = 10 * time.Second

// WebSocket implements stomp.Transport over a gorilla websocket
// connection. Concurrent sends are serialized by an internal write
// mutex; gorilla connections do not allow concurrent writers.
type WebSocket struct {
	handshakeTimeout time.Duration
	tlsConfig        *tls.Config
	verifier         *stomp.TrustVerifier

	mu      sync.Mutex // guards conn
	conn    *websocket.Conn
	writeMu sync.Mutex
	open    atomic.Bool
}

// Option configures a WebSocket transport.
type Option func(*WebSocket)

// WithHandshakeTimeout overrides the upgrade timeout.
func WithHandshakeTimeout(timeout time.Duration) Option {
	return func(t *WebSocket) {
		if timeout > 0 {
			t.handshakeTimeout = timeout
		}
	}
}

// WithTLSConfig sets a base TLS configuration for wss endpoints.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(t *WebSocket) { t.tlsConfig = cfg }
}

// WithTrustAnchors installs a custom anchor set for wss endpoints.
// Server chains are then accepted or rejected by the trust verifier
// instead of platform-default validation alone.
func WithTrustAnchors(anchors []*x509.Certificate) Option {
	return func(t *WebSocket) {
		if len(anchors) > 0 {
			t.verifier = stomp.NewTrustVerifier(anchors)
		}
	}
}

// New builds an unopened transport.
func New(opts ...Option) *WebSocket {
	t := &WebSocket{handshakeTimeout: DefaultHandshakeTimeout}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Open dials a ws/wss endpoint negotiating the given sub-protocol.
func (t *WebSocket) Open(ctx context.Context, uri string, subProtocol string) error {
	endpoint, err := url.Parse(uri)
	if err != nil {
		return errors.Wrap(err, "parse endpoint")
	}
	switch endpoint.Scheme {
	case "ws", "wss":
	default:
		return errors.Errorf("transport: unsupported scheme %q", endpoint.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: t.handshakeTimeout,
		Subprotocols:     []string{subProtocol},
	}
	if endpoint.Scheme == "wss" {
		cfg := t.tlsConfig.Clone()
		if cfg == nil {
			cfg = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		if t.verifier != nil {
			host := endpoint.Hostname()
			verifier := t.verifier
			// Stock verification is disabled so the trust verifier can
			// apply the anchor-set policy to the presented chain.
			cfg.InsecureSkipVerify = true
			cfg.VerifyPeerCertificate = func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
				return verifier.VerifyServerChain(rawCerts, host)
			}
		}
		dialer.TLSClientConfig = cfg
	}

	conn, _, err := dialer.DialContext(ctx, uri, nil)
	if err != nil {
		return errors.Wrap(err, "dial").With("uri", uri)
	}
	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()
	t.open.Store(true)
	return nil
}

// Send transmits one whole message, honoring the context deadline.
func (t *WebSocket) Send(ctx context.Context, payload []byte, binary bool) error {
	conn := t.current()
	if conn == nil || !t.open.Load() {
		return exception.ErrTransportClosed
	}
	msgType := websocket.TextMessage
	if binary {
		msgType = websocket.BinaryMessage
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_ = conn.SetWriteDeadline(deadlineFrom(ctx))
	if err := conn.WriteMessage(msgType, payload); err != nil {
		t.open.Store(false)
		return errors.Wrap(err, "write message")
	}
	return nil
}

// Receive blocks until the next whole message. Cancellation is
// deadline-driven: a context deadline sets the read deadline, and
// Close unblocks an in-flight read.
func (t *WebSocket) Receive(ctx context.Context) ([]byte, error) {
	conn := t.current()
	if conn == nil {
		return nil, exception.ErrTransportClosed
	}
	_ = conn.SetReadDeadline(deadlineFrom(ctx))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.open.Store(false)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.Wrap(err, "read message")
	}
	return payload, nil
}

// Close sends a best-effort close frame and tears the socket down.
func (t *WebSocket) Close() error {
	t.open.Store(false)
	conn := t.current()
	if conn == nil {
		return nil
	}
	t.writeMu.Lock()
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	t.writeMu.Unlock()
	return conn.Close()
}

// IsOpen reports whether the transport is usable.
func (t *WebSocket) IsOpen() bool {
	return t.open.Load()
}

func (t *WebSocket) current() *websocket.Conn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn
}

func deadlineFrom(ctx context.Context) time.Time {
	if ctx == nil {
		return time.Time{}
	}
	if deadline, ok := ctx.Deadline(); ok {
		return deadline
	}
	if ctx.Err() != nil {
		return time.Now()
	}
	return time.Time{}
}
