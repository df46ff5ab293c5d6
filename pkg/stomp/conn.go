package stomp

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"main/pkg/exception"
	"main/pkg/scanner"

	"github.com/yanun0323/errors"
)

// State is the connection lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

const (
	// DefaultHeartbeat is the liveness interval used when the server
	// does not negotiate one.
	DefaultHeartbeat = 10 * time.Second
	// DefaultConnectTimeout bounds transport open plus handshake.
	DefaultConnectTimeout = 10 * time.Second

	// The connection counts as alive while the last inbound frame is
	// younger than this multiple of the heartbeat interval.
	livenessMultiplier = 3
)

// MessageHandler consumes one inbound frame. The frame must not be
// retained after the handler returns.
type MessageHandler func(*Frame)

// Subscription is a standing registration routing MESSAGE frames for
// one id to a callback. Owned by the connection's registry.
type Subscription struct {
	id          string
	destination string
	callback    MessageHandler
}

// ID returns the connection-unique subscription id.
func (s *Subscription) ID() string { return s.id }

// Destination returns the broker destination subscribed to.
func (s *Subscription) Destination() string { return s.destination }

// Conn is a client connection speaking the frame protocol over a
// Transport. Exactly one receive loop runs per open connection; all
// callbacks are invoked synchronously on that loop in arrival order.
type Conn struct {
	transport Transport
	logger    Logger
	tap       Tap

	connectTimeout   time.Duration
	desiredHeartbeat time.Duration

	state     atomic.Int32
	heartbeat atomic.Int64 // negotiated interval, nanoseconds
	lastSend  atomic.Int64 // unix nanoseconds
	lastRecv  atomic.Int64

	mu     sync.Mutex // guards cancel
	cancel context.CancelFunc

	subMu   sync.Mutex
	subs    map[string]*Subscription
	nextSub atomic.Uint64

	handlerMu sync.RWMutex
	handler   MessageHandler

	closeOnce sync.Once
}

// Option configures a Conn.
type Option func(*Conn)

// WithLogger sets the logging collaborator.
func WithLogger(logger Logger) Option {
	return func(c *Conn) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTap attaches a frame observer.
func WithTap(tap Tap) Option {
	return func(c *Conn) { c.tap = tap }
}

// WithConnectTimeout overrides the handshake timeout.
func WithConnectTimeout(timeout time.Duration) Option {
	return func(c *Conn) {
		if timeout > 0 {
			c.connectTimeout = timeout
		}
	}
}

// WithHeartbeat sets the client's desired heartbeat interval.
func WithHeartbeat(interval time.Duration) Option {
	return func(c *Conn) {
		if interval > 0 {
			c.desiredHeartbeat = interval
		}
	}
}

// NewConn builds a connection over the given transport.
func NewConn(transport Transport, opts ...Option) *Conn {
	c := &Conn{
		transport:        transport,
		logger:           DefaultLogger(),
		connectTimeout:   DefaultConnectTimeout,
		desiredHeartbeat: DefaultHeartbeat,
		subs:             make(map[string]*Subscription),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.heartbeat.Store(int64(c.desiredHeartbeat))
	return c
}

// State returns the current lifecycle state.
func (c *Conn) State() State {
	return State(c.state.Load())
}

// Connect opens the transport, performs the handshake and starts the
// receive loop. Valid only from the idle state. A server reply other
// than CONNECTED fails the connect with the reply's error body as the
// reason and leaves the connection closed.
func (c *Conn) Connect(ctx context.Context, uri, login, passcode string) error {
	if c.transport == nil {
		return errors.New("stomp: nil transport")
	}
	if !c.state.CompareAndSwap(int32(StateIdle), int32(StateConnecting)) {
		return exception.ErrNotIdle
	}

	handshakeCtx, cancel := context.WithTimeout(ctx, c.connectTimeout)
	defer cancel()

	if err := c.transport.Open(handshakeCtx, uri, SubProtocol); err != nil {
		c.fault()
		return errors.Wrap(err, "open transport")
	}
	if err := c.send(handshakeCtx, NewStompFrame(login, passcode)); err != nil {
		c.fault()
		return errors.Wrap(err, "send handshake")
	}

	payload, err := c.transport.Receive(handshakeCtx)
	if err != nil {
		c.fault()
		return errors.Wrap(err, "handshake reply")
	}
	reply, err := Decode(payload)
	if err != nil {
		c.fault()
		return errors.Wrap(err, "decode handshake reply")
	}
	switch reply.Type {
	case FrameConnected:
	case FrameError:
		c.fault()
		return errors.Wrap(exception.ErrProtocol, "connect refused").With("reason", string(reply.Body))
	default:
		c.fault()
		return errors.Wrap(exception.ErrProtocol, "expected CONNECTED").With("frame", reply.String())
	}

	c.heartbeat.Store(int64(negotiateHeartbeat(reply, c.desiredHeartbeat)))
	now := time.Now().UnixNano()
	c.lastRecv.Store(now)
	c.lastSend.Store(now)
	if c.tap != nil {
		c.tap.Inbound(reply)
	}

	loopCtx, loopCancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.cancel = loopCancel
	c.mu.Unlock()
	// A concurrent Close may have already moved the state past
	// Connecting; the loop must not start on a torn-down connection.
	if !c.state.CompareAndSwap(int32(StateConnecting), int32(StateOpen)) {
		loopCancel()
		return exception.ErrClosed
	}
	go c.receiveLoop(loopCtx)
	return nil
}

// negotiateHeartbeat resolves the send interval from the CONNECTED
// frame's heart-beat header (sx,sy milliseconds). The effective
// interval is the larger of the client's desired interval and the
// server's requested one.
func negotiateHeartbeat(connected *Frame, desired time.Duration) time.Duration {
	raw, ok := connected.Headers.Lookup(HeaderHeartBeat)
	if !ok {
		return desired
	}
	comma := scanner.IndexByte([]byte(raw), 0, ',')
	if comma < 0 || comma+1 >= len(raw) {
		return desired
	}
	sy, ok := scanner.ParseUint([]byte(raw[comma+1:]))
	if !ok || sy == 0 {
		return desired
	}
	server := time.Duration(sy) * time.Millisecond
	if server > desired {
		return server
	}
	return desired
}

// Subscribe registers a callback for a destination and transmits the
// SUBSCRIBE frame before returning. Ids are monotonic and never reused
// within the connection's lifetime.
func (c *Conn) Subscribe(ctx context.Context, destination string, callback MessageHandler) (*Subscription, error) {
	if c.State() != StateOpen {
		return nil, exception.ErrNotConnected
	}
	if callback == nil {
		return nil, errors.New("stomp: nil subscription callback")
	}

	sub := &Subscription{
		id:          fmt.Sprintf("sub-%d", c.nextSub.Add(1)),
		destination: destination,
		callback:    callback,
	}
	c.subMu.Lock()
	c.subs[sub.id] = sub
	c.subMu.Unlock()

	if err := c.send(ctx, NewSubscribeFrame(destination, sub.id)); err != nil {
		c.subMu.Lock()
		delete(c.subs, sub.id)
		c.subMu.Unlock()
		return nil, errors.Wrap(err, "send subscribe")
	}
	return sub, nil
}

// Unsubscribe removes the registry entry first, then transmits
// UNSUBSCRIBE. Unsubscribing an already-removed subscription is a
// no-op.
func (c *Conn) Unsubscribe(ctx context.Context, sub *Subscription) error {
	if sub == nil {
		return nil
	}
	c.subMu.Lock()
	_, registered := c.subs[sub.id]
	if registered {
		delete(c.subs, sub.id)
	}
	c.subMu.Unlock()
	if !registered || c.State() != StateOpen {
		return nil
	}
	if err := c.send(ctx, NewUnsubscribeFrame(sub.id)); err != nil {
		return errors.Wrap(err, "send unsubscribe")
	}
	return nil
}

// Send transmits a SEND frame. correlationID is optional.
func (c *Conn) Send(ctx context.Context, destination, correlationID string, body []byte) error {
	if c.State() != StateOpen {
		return exception.ErrNotConnected
	}
	return c.send(ctx, NewSendFrame(destination, correlationID, body))
}

// SetMessageHandler installs the general inbound handler consuming
// MESSAGE frames addressed to the reply queue. A nil handler detaches.
func (c *Conn) SetMessageHandler(handler MessageHandler) {
	c.handlerMu.Lock()
	c.handler = handler
	c.handlerMu.Unlock()
}

// IsConnected reports liveness: the transport is open and the last
// inbound frame is recent relative to the heartbeat interval.
func (c *Conn) IsConnected() bool {
	if c.State() != StateOpen || !c.transport.IsOpen() {
		return false
	}
	interval := time.Duration(c.heartbeat.Load())
	age := time.Since(time.Unix(0, c.lastRecv.Load()))
	return age < livenessMultiplier*interval
}

// Close tears the connection down. It is idempotent, valid in any
// state and never fails; teardown errors are swallowed.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateClosing))
		c.mu.Lock()
		cancel := c.cancel
		c.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		_ = c.transport.Close()
		c.subMu.Lock()
		c.subs = make(map[string]*Subscription)
		c.subMu.Unlock()
		c.state.Store(int32(StateClosed))
	})
}

// fault collapses a failed connect or loop into the closed state.
func (c *Conn) fault() {
	c.Close()
}

func (c *Conn) send(ctx context.Context, f *Frame) error {
	if err := c.transport.Send(ctx, Encode(f), f.Type != FrameHeartbeat); err != nil {
		return errors.Wrap(err, "transport send")
	}
	c.lastSend.Store(time.Now().UnixNano())
	if c.tap != nil && f.Type != FrameHeartbeat {
		c.tap.Outbound(f)
	}
	return nil
}

func (c *Conn) receiveLoop(ctx context.Context) {
	defer c.Close()
	for {
		payload, err := c.transport.Receive(ctx)
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Errorf("stomp: receive, err: %+v", err)
			}
			return
		}
		frame, err := Decode(payload)
		if err != nil {
			c.logger.Errorf("stomp: decode inbound message, err: %+v", err)
			return
		}
		c.lastRecv.Store(time.Now().UnixNano())
		if c.tap != nil && frame.Type != FrameHeartbeat {
			c.tap.Inbound(frame)
		}

		switch frame.Type {
		case FrameHeartbeat:
			c.answerHeartbeat(ctx)
		case FrameError:
			c.logger.Errorf("stomp: server error: %s", string(frame.Body))
		case FrameMessage:
			c.dispatch(frame)
		default:
			// RECEIPT and transaction frames are not dispatched here.
		}
	}
}

// answerHeartbeat sends a heartbeat back when nothing has been sent
// for longer than the negotiated interval.
func (c *Conn) answerHeartbeat(ctx context.Context) {
	interval := time.Duration(c.heartbeat.Load())
	if time.Since(time.Unix(0, c.lastSend.Load())) <= interval {
		return
	}
	if err := c.send(ctx, Heartbeat); err != nil {
		c.logger.Errorf("stomp: send heartbeat, err: %+v", err)
	}
}

func (c *Conn) dispatch(frame *Frame) {
	id := frame.Headers.Get(HeaderSubscription)
	if id == ReplyQueue {
		c.handlerMu.RLock()
		handler := c.handler
		c.handlerMu.RUnlock()
		if handler == nil {
			c.logger.Infof("stomp: drop reply-queue message, no handler attached")
			return
		}
		c.invoke(handler, frame)
		return
	}

	c.subMu.Lock()
	sub := c.subs[id]
	c.subMu.Unlock()
	if sub == nil {
		// Stale id after an unsubscribe race.
		c.logger.Infof("stomp: drop message for unknown subscription %q", id)
		return
	}
	c.invoke(sub.callback, frame)
}

// invoke shields the receive loop from callback panics.
func (c *Conn) invoke(handler MessageHandler, frame *Frame) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Errorf("stomp: message callback panic: %v", r)
		}
	}()
	handler(frame)
}
