package sync

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ErrQueueClosed is returned for operations enqueued after Close.
var ErrQueueClosed = errors.New("operation queue closed")

type queuedOp struct {
	name   string
	run    func(ctx context.Context) error
	result chan error
}

// OperationQueue serializes outbound calendar writes. A single worker drains
// operations in FIFO order with a minimum delay between them, smoothing call
// volume against provider rate limits. Failures are per-operation: they reach
// the enqueuer's result channel and never halt the drain loop.
type OperationQueue struct {
	ops      chan queuedOp
	minDelay time.Duration
	logger   *slog.Logger

	pending atomic.Int64
	active  atomic.Bool

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewOperationQueue(minDelay time.Duration, logger *slog.Logger) *OperationQueue {
	q := &OperationQueue{
		ops:      make(chan queuedOp, 256),
		minDelay: minDelay,
		logger:   logger,
		done:     make(chan struct{}),
	}
	go q.drain()
	return q
}

// Enqueue adds an operation and returns a channel that yields its outcome.
// The channel is buffered; the result is delivered even if nobody is waiting,
// and enqueues after Close fail fast with ErrQueueClosed.
func (q *OperationQueue) Enqueue(ctx context.Context, name string, run func(ctx context.Context) error) <-chan error {
	result := make(chan error, 1)

	// Close takes the write lock, so closed cannot flip mid-send: an accepted
	// op is guaranteed to reach the drain loop or its shutdown flush.
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		result <- ErrQueueClosed
		return result
	}

	op := queuedOp{name: name, run: run, result: result}
	q.pending.Add(1)

	select {
	case q.ops <- op:
	case <-ctx.Done():
		q.pending.Add(-1)
		result <- ctx.Err()
	}

	return result
}

// Len returns the number of operations waiting or in flight.
func (q *OperationQueue) Len() int {
	return int(q.pending.Load())
}

// Busy reports whether the worker is executing or has operations waiting.
func (q *OperationQueue) Busy() bool {
	return q.active.Load() || q.pending.Load() > 0
}

// Close stops the worker. Operations already accepted are rejected with
// ErrQueueClosed by the drain loop's shutdown flush; later enqueues are
// rejected immediately.
func (q *OperationQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.done)
}

func (q *OperationQueue) drain() {
	for {
		select {
		case <-q.done:
			q.flush()
			return
		case op := <-q.ops:
			q.execute(op)

			// Pace the provider between operations.
			select {
			case <-q.done:
				q.flush()
				return
			case <-time.After(q.minDelay):
			}
		}
	}
}

func (q *OperationQueue) execute(op queuedOp) {
	q.active.Store(true)
	defer q.active.Store(false)
	defer q.pending.Add(-1)

	err := op.run(context.Background())
	if err != nil {
		q.logger.Error("queued operation failed",
			slog.String("operation", op.name),
			slog.String("error", err.Error()),
		)
	}
	op.result <- err
}

// flush rejects any operations still sitting in the channel after Close.
func (q *OperationQueue) flush() {
	for {
		select {
		case op := <-q.ops:
			q.pending.Add(-1)
			op.result <- ErrQueueClosed
		default:
			return
		}
	}
}
