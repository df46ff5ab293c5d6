package archive

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"main/pkg/stomp"

	"github.com/yanun0323/errors"
)

var (
	ErrClosed         = errors.New("archive: recorder closed")
	ErrNotStarted     = errors.New("archive: recorder not started")
	ErrAlreadyStarted = errors.New("archive: recorder already started")
)

const defaultQueueSize = 1024

// Config defines recorder behavior.
type Config struct {
	Store     Store
	QueueSize int
	Logger    stomp.Logger
}

func (cfg Config) withDefaults() Config {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.Logger == nil {
		cfg.Logger = stomp.DefaultLogger()
	}
	return cfg
}

// FrameRecorder archives frames through a buffered queue so tap calls
// on the connection's loops never block on the store. A full queue
// drops the frame and counts it. Implements stomp.Tap.
type FrameRecorder struct {
	cfg Config
	ch  chan *Record
	wg  sync.WaitGroup

	started atomic.Bool
	closed  atomic.Bool
	dropped atomic.Uint64
}

// NewFrameRecorder builds a recorder over a store.
func NewFrameRecorder(cfg Config) (*FrameRecorder, error) {
	cfg = cfg.withDefaults()
	if cfg.Store == nil {
		return nil, errors.New("archive: nil store")
	}
	return &FrameRecorder{
		cfg: cfg,
		ch:  make(chan *Record, cfg.QueueSize),
	}, nil
}

// Start runs the persist loop in a new goroutine.
func (r *FrameRecorder) Start(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case record, ok := <-r.ch:
				if !ok {
					return
				}
				if err := r.cfg.Store.Save(record); err != nil {
					r.cfg.Logger.Errorf("archive: save record, err: %+v", err)
				}
			}
		}
	}()
	return nil
}

// Close stops intake, waits for queued records to flush and closes the
// store.
func (r *FrameRecorder) Close() error {
	if !r.started.Load() {
		return ErrNotStarted
	}
	if !r.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	close(r.ch)
	r.wg.Wait()
	return r.cfg.Store.Close()
}

// Dropped reports how many frames were lost to a full queue.
func (r *FrameRecorder) Dropped() uint64 {
	return r.dropped.Load()
}

// Inbound implements stomp.Tap.
func (r *FrameRecorder) Inbound(f *stomp.Frame) {
	r.enqueue(DirectionIn, f)
}

// Outbound implements stomp.Tap.
func (r *FrameRecorder) Outbound(f *stomp.Frame) {
	r.enqueue(DirectionOut, f)
}

func (r *FrameRecorder) enqueue(direction Direction, f *stomp.Frame) {
	if f == nil || r.closed.Load() {
		return
	}
	record := frameRecord(direction, f)
	select {
	case r.ch <- record:
	default:
		r.dropped.Add(1)
	}
}

// frameRecord snapshots a frame. The body is copied because frames do
// not outlive the tap invocation.
func frameRecord(direction Direction, f *stomp.Frame) *Record {
	record := &Record{
		At:            time.Now(),
		Direction:     direction,
		Command:       f.Type.Command(),
		Destination:   f.Headers.Get(stomp.HeaderDestination),
		Subscription:  f.Headers.Get(stomp.HeaderSubscription),
		CorrelationID: f.Headers.Get(stomp.HeaderCorrelationID),
	}
	if len(f.Body) > 0 {
		record.Body = make([]byte, len(f.Body))
		copy(record.Body, f.Body)
	}
	return record
}
