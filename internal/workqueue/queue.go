// Package workqueue provides a serialized FIFO of work items drained by one
// goroutine at a time.
package workqueue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/tejashwikalptaru/playqueue/internal/domain"
)

// Handler processes a single dequeued item.
// Returning domain.ErrCanceled (or an error wrapping it) unwinds the whole drain;
// any other error is logged and the item still counts as processed.
type Handler[T domain.WorkItem] func(ctx context.Context, item T) error

// Canceler is polled before each item is dequeued.
type Canceler interface {
	CheckForCanceled() error
}

// StartHook is called when a drain dequeues the first item of a round.
type StartHook[T domain.WorkItem] func(first T, progress domain.OperationProgress)

// ProgressHook is called after every processed item with the handler's result.
type ProgressHook[T domain.WorkItem] func(item T, err error, progress domain.OperationProgress)

// FinalizeHook is called once at the end of a round, with the round's final counters.
type FinalizeHook func(canceled bool, progress domain.OperationProgress)

// Option configures a Queue.
type Option[T domain.WorkItem] func(*Queue[T])

// WithCanceler sets the cancellation source checked before each item.
func WithCanceler[T domain.WorkItem](c Canceler) Option[T] {
	return func(q *Queue[T]) { q.canceler = c }
}

// WithStartHook sets the callback fired when a round begins.
func WithStartHook[T domain.WorkItem](fn StartHook[T]) Option[T] {
	return func(q *Queue[T]) { q.onStart = fn }
}

// WithProgressHook sets the callback fired after each processed item.
func WithProgressHook[T domain.WorkItem](fn ProgressHook[T]) Option[T] {
	return func(q *Queue[T]) { q.onProgress = fn }
}

// WithFinalizeHook sets the callback fired when a round completes or is canceled.
func WithFinalizeHook[T domain.WorkItem](fn FinalizeHook) Option[T] {
	return func(q *Queue[T]) { q.onFinalize = fn }
}

// Queue is a thread-safe FIFO with key based deduplication.
//
// Enqueue may be called from any goroutine. At most one Drain runs at a time;
// a concurrent Drain returns domain.ErrAlreadyDraining without touching items.
// The counters cover the current round: they start at zero, grow with every
// Enqueue and are reset once a drain observes the queue empty or is canceled.
type Queue[T domain.WorkItem] struct {
	logger  *slog.Logger
	handler Handler[T]

	canceler   Canceler
	onStart    StartHook[T]
	onProgress ProgressHook[T]
	onFinalize FinalizeHook

	// mu guards items, keys and the counters. It is never held while the handler runs.
	mu        sync.Mutex
	items     []T
	keys      map[string]struct{}
	total     int
	processed int

	draining atomic.Bool
	wake     chan struct{}
}

// New creates a queue that runs handler for each dequeued item.
func New[T domain.WorkItem](logger *slog.Logger, handler Handler[T], opts ...Option[T]) *Queue[T] {
	if handler == nil {
		panic("workqueue: handler cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	q := &Queue[T]{
		logger:  logger,
		handler: handler,
		keys:    make(map[string]struct{}),
		wake:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue appends item unless an item with the same key is already queued.
// Returns true if the item was added.
func (q *Queue[T]) Enqueue(item T) bool {
	key := item.Key()

	q.mu.Lock()
	if _, exists := q.keys[key]; exists {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, item)
	q.keys[key] = struct{}{}
	q.total++
	q.mu.Unlock()

	q.signal()
	return true
}

// EnqueueAll enqueues every item and returns how many were added.
func (q *Queue[T]) EnqueueAll(items ...T) int {
	added := 0
	for _, item := range items {
		if q.Enqueue(item) {
			added++
		}
	}
	return added
}

func (q *Queue[T]) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Drain processes items until the queue is empty or the round is canceled.
//
// Cancellation is checked before every item, through the Canceler and ctx.
// On cancellation the remaining items are discarded, the finalize hook runs
// with canceled=true and the cancellation error is returned.
func (q *Queue[T]) Drain(ctx context.Context) error {
	if !q.draining.CompareAndSwap(false, true) {
		return domain.ErrAlreadyDraining
	}
	defer q.draining.Store(false)

	started := false
	for {
		if err := q.checkCanceled(ctx); err != nil {
			if !started && q.Len() == 0 && ctx != nil && ctx.Err() != nil {
				return err
			}
			return q.abort(err)
		}

		item, progress, ok := q.dequeue()
		if !ok {
			if started && q.onFinalize != nil {
				q.onFinalize(false, progress)
			}
			return nil
		}

		if !started {
			started = true
			if q.onStart != nil {
				q.onStart(item, progress)
			}
		}

		err := q.handler(ctx, item)
		if errors.Is(err, domain.ErrCanceled) {
			return q.abort(err)
		}
		if err != nil {
			q.logger.Warn("work item failed",
				slog.String("key", item.Key()),
				slog.String("error", err.Error()))
		}

		progress = q.markProcessed()
		if q.onProgress != nil {
			q.onProgress(item, err, progress)
		}
	}
}

func (q *Queue[T]) checkCanceled(ctx context.Context) error {
	if q.canceler != nil {
		if err := q.canceler.CheckForCanceled(); err != nil {
			return err
		}
	}
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

// dequeue pops the head item. When the queue is empty it ends the round
// under the same lock, so items enqueued afterwards belong to a new round.
func (q *Queue[T]) dequeue() (T, domain.OperationProgress, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if len(q.items) == 0 {
		progress := q.snapshotLocked()
		q.total, q.processed = 0, 0
		return zero, progress, false
	}

	item := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	delete(q.keys, item.Key())
	return item, q.snapshotLocked(), true
}

func (q *Queue[T]) markProcessed() domain.OperationProgress {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.processed++
	if q.processed > q.total {
		q.processed = q.total
	}
	return q.snapshotLocked()
}

func (q *Queue[T]) snapshotLocked() domain.OperationProgress {
	return domain.OperationProgress{Processed: q.processed, Total: q.total}
}

func (q *Queue[T]) abort(cause error) error {
	progress, discarded := q.clear()
	q.logger.Info("drain canceled",
		slog.Int("processed", progress.Processed),
		slog.Int("discarded", discarded))

	if q.onFinalize != nil {
		q.onFinalize(true, progress)
	}
	return cause
}

// Run drains the queue whenever items are enqueued, until ctx is done.
// It is meant to be the body of the queue's dedicated worker goroutine.
func (q *Queue[T]) Run(ctx context.Context) {
	for {
		if q.Len() > 0 {
			err := q.Drain(ctx)
			switch {
			case err == nil, errors.Is(err, domain.ErrCanceled), errors.Is(err, domain.ErrAlreadyDraining):
			case ctx.Err() != nil:
				return
			default:
				q.logger.Error("drain failed", slog.String("error", err.Error()))
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-q.wake:
		}
	}
}

// Clear discards every queued item and resets the round counters.
// Returns the number of discarded items.
func (q *Queue[T]) Clear() int {
	_, n := q.clear()
	return n
}

func (q *Queue[T]) clear() (domain.OperationProgress, int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	progress := q.snapshotLocked()
	n := len(q.items)
	q.items = nil
	q.keys = make(map[string]struct{})
	q.total, q.processed = 0, 0
	return progress, n
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Contains reports whether an item with key is queued.
func (q *Queue[T]) Contains(key string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.keys[key]
	return ok
}

// TotalCount returns how many items were accepted in the current round.
func (q *Queue[T]) TotalCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.total
}

// ProcessedCount returns how many items were processed in the current round.
func (q *Queue[T]) ProcessedCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.processed
}

// Progress returns the counters of the current round.
func (q *Queue[T]) Progress() domain.OperationProgress {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.snapshotLocked()
}

// ResetCounters zeroes the round counters without touching queued items.
// Queued items remain part of the total.
func (q *Queue[T]) ResetCounters() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.total = len(q.items)
	q.processed = 0
}

// IsDraining reports whether a drain is in progress.
func (q *Queue[T]) IsDraining() bool {
	return q.draining.Load()
}
