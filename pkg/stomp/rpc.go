package stomp

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"main/pkg/exception"

	"github.com/google/uuid"
	"github.com/yanun0323/errors"
)

const (
	// DefaultCallTimeout bounds a Call when no override is given.
	DefaultCallTimeout = 15 * time.Second
	// sweepInterval is how often expired pending requests are reaped,
	// independent of per-call timeouts.
	sweepInterval = 3 * time.Second
)

type callResult struct {
	frame *Frame
	err   error
}

// pendingRequest is a single-assignment slot: exactly one of reply,
// sweep or caller backstop resolves it, whichever takes it first.
type pendingRequest struct {
	id       string
	deadline time.Time
	taken    atomic.Bool
	result   chan callResult
}

func (p *pendingRequest) take() bool {
	return p.taken.CompareAndSwap(false, true)
}

// Caller layers request/response semantics over one-way SEND frames by
// correlating replies arriving on the connection's reply queue.
type Caller struct {
	conn    *Conn
	logger  Logger
	timeout time.Duration

	mu      sync.Mutex
	pending map[string]*pendingRequest

	// newID generates correlation ids; replaceable in tests.
	newID func() string

	done   chan struct{}
	closed atomic.Bool
}

// CallerOption configures a Caller.
type CallerOption func(*Caller)

// WithCallTimeout overrides the default per-call timeout.
func WithCallTimeout(timeout time.Duration) CallerOption {
	return func(c *Caller) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithCallerLogger sets the logging collaborator.
func WithCallerLogger(logger Logger) CallerOption {
	return func(c *Caller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCaller attaches to the connection's general message handler and
// starts the expiry sweep.
func NewCaller(conn *Conn, opts ...CallerOption) *Caller {
	c := &Caller{
		conn:    conn,
		logger:  DefaultLogger(),
		timeout: DefaultCallTimeout,
		pending: make(map[string]*pendingRequest),
		newID:   uuid.NewString,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	conn.SetMessageHandler(c.handleReply)
	go c.sweepLoop()
	return c
}

// Call sends body to destination and suspends until a reply carrying
// the same correlation id arrives or the default timeout expires.
func (c *Caller) Call(ctx context.Context, destination string, body []byte) (*Frame, error) {
	return c.CallTimeout(ctx, destination, body, c.timeout)
}

// CallTimeout is Call with an explicit timeout.
func (c *Caller) CallTimeout(ctx context.Context, destination string, body []byte, timeout time.Duration) (*Frame, error) {
	if c.closed.Load() {
		return nil, exception.ErrClosed
	}
	if timeout <= 0 {
		timeout = c.timeout
	}

	req := &pendingRequest{
		id:       c.newID(),
		deadline: time.Now().Add(timeout),
		result:   make(chan callResult, 1),
	}
	c.mu.Lock()
	if _, exists := c.pending[req.id]; exists {
		c.mu.Unlock()
		// Ids are globally unique by construction; a collision means
		// something is badly wrong and the request must not be sent.
		return nil, errors.Wrap(exception.ErrCorrelationCollision, "pending entry exists").With("id", req.id)
	}
	c.pending[req.id] = req
	c.mu.Unlock()

	if err := c.conn.Send(ctx, destination, req.id, body); err != nil {
		if req.take() {
			c.remove(req.id)
		}
		return nil, errors.Wrap(err, "send request")
	}

	// Backstop one sweep past the deadline so a stopped sweep cannot
	// strand the caller.
	backstop := time.NewTimer(time.Until(req.deadline) + sweepInterval)
	defer backstop.Stop()

	select {
	case res := <-req.result:
		return res.frame, res.err
	case <-ctx.Done():
		if req.take() {
			c.remove(req.id)
			return nil, ctx.Err()
		}
		res := <-req.result
		return res.frame, res.err
	case <-backstop.C:
		if req.take() {
			c.remove(req.id)
			return nil, errors.Wrap(exception.ErrTimeout, "no reply").With("id", req.id)
		}
		res := <-req.result
		return res.frame, res.err
	}
}

// Close detaches from the connection and stops the sweep. Outstanding
// calls are not cancelled; they resolve through their own timeout.
func (c *Caller) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	close(c.done)
	c.conn.SetMessageHandler(nil)
}

// PendingCount reports the number of in-flight requests.
func (c *Caller) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Caller) remove(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// handleReply runs on the connection's receive loop.
func (c *Caller) handleReply(frame *Frame) {
	id := frame.Headers.Get(HeaderCorrelationID)
	if id == "" {
		return
	}
	c.mu.Lock()
	req := c.pending[id]
	c.mu.Unlock()
	if req == nil {
		// Late or foreign reply.
		return
	}
	if !req.take() {
		return
	}
	c.remove(id)
	req.result <- callResult{frame: frame}
}

func (c *Caller) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case now := <-ticker.C:
			c.expire(now)
		}
	}
}

func (c *Caller) expire(now time.Time) {
	var overdue []*pendingRequest
	c.mu.Lock()
	for _, req := range c.pending {
		if now.After(req.deadline) {
			overdue = append(overdue, req)
		}
	}
	c.mu.Unlock()

	for _, req := range overdue {
		if !req.take() {
			continue
		}
		c.remove(req.id)
		req.result <- callResult{err: errors.Wrap(exception.ErrTimeout, "call deadline exceeded").With("id", req.id)}
	}
}
