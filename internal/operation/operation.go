package operation

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/tejashwikalptaru/playqueue/internal/domain"
	"github.com/tejashwikalptaru/playqueue/internal/ports"
	"github.com/tejashwikalptaru/playqueue/internal/workqueue"
)

// Config configures an Operation.
type Config[T domain.WorkItem] struct {
	// Name identifies the operation in events, e.g. "import".
	Name string

	Progress ProgressConfig

	// Describe returns the detail text shown next to the progress label.
	// Defaults to the item key.
	Describe func(item T) string

	// OnFinalize runs once at the end of every round, after the
	// Finished or Canceled event was published.
	OnFinalize func(canceled bool, progress domain.OperationProgress)
}

// Operation is a user visible background job: a serialized work queue drained
// by a dedicated worker goroutine, with cooperative cancellation and progress.
//
// Every round publishes OperationStartedEvent, zero or more ProgressEvents, and
// then exactly one of OperationFinishedEvent or OperationCanceledEvent.
// Cancel may be called from any goroutine, or requested with a
// domain.CancelRequestedEvent naming the operation.
type Operation[T domain.WorkItem] struct {
	name   string
	logger *slog.Logger
	bus    ports.EventBus
	cfg    Config[T]

	queue    *workqueue.Queue[T]
	token    *CancelToken
	progress *ProgressReporter

	cancelSub domain.SubscriptionID

	// cleanup guards the end of the active round
	roundMu   sync.Mutex
	roundOpen bool
	cleanup   *sync.Once

	// worker lifecycle
	mu     sync.Mutex
	stop   context.CancelFunc
	done   chan struct{}
	closed bool
}

// New creates an operation that runs handler for every enqueued item.
func New[T domain.WorkItem](
	cfg Config[T],
	handler workqueue.Handler[T],
	bus ports.EventBus,
	logger *slog.Logger,
) *Operation[T] {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Describe == nil {
		cfg.Describe = func(item T) string { return item.Key() }
	}

	o := &Operation[T]{
		name:     cfg.Name,
		logger:   logger.With(slog.String("operation", cfg.Name)),
		bus:      bus,
		cfg:      cfg,
		token:    NewCancelToken(cfg.Name),
		progress: NewProgressReporter(cfg.Name, bus, cfg.Progress),
		cleanup:  &sync.Once{},
	}

	o.queue = workqueue.New(o.logger, handler,
		workqueue.WithCanceler[T](o.token),
		workqueue.WithStartHook(o.onStart),
		workqueue.WithProgressHook(o.onProgress),
		workqueue.WithFinalizeHook[T](o.onFinalize),
	)

	o.cancelSub = o.subscribeCancel()
	return o
}

func (o *Operation[T]) subscribeCancel() domain.SubscriptionID {
	if o.bus == nil {
		return ""
	}

	handler := func(domain.Event) { o.Cancel() }
	if fb, ok := o.bus.(ports.FilteringEventBus); ok {
		return fb.SubscribeFiltered(domain.EventCancelRequested, o.isMine, handler)
	}
	return o.bus.Subscribe(domain.EventCancelRequested, func(e domain.Event) {
		if o.isMine(e) {
			handler(e)
		}
	})
}

func (o *Operation[T]) isMine(e domain.Event) bool {
	req, ok := e.(domain.CancelRequestedEvent)
	return ok && req.Operation == o.name
}

// Name returns the operation name.
func (o *Operation[T]) Name() string {
	return o.name
}

// Enqueue adds an item to the operation. Duplicate keys are ignored.
func (o *Operation[T]) Enqueue(item T) bool {
	return o.queue.Enqueue(item)
}

// EnqueueAll adds items and returns how many were accepted.
func (o *Operation[T]) EnqueueAll(items ...T) int {
	return o.queue.EnqueueAll(items...)
}

// Drain processes the queued items on the calling goroutine.
// Most callers use Start instead.
func (o *Operation[T]) Drain(ctx context.Context) error {
	return o.queue.Drain(ctx)
}

// Start spawns the worker goroutine. Calling Start twice is a no-op.
func (o *Operation[T]) Start(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.done != nil || o.closed {
		return
	}

	ctx, o.stop = context.WithCancel(ctx)
	o.done = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		o.queue.Run(ctx)
	}(o.done)

	o.logger.Debug("operation worker started")
}

// Stop stops the worker goroutine and waits for it to exit.
// An item in flight runs to completion first. Stop is idempotent.
func (o *Operation[T]) Stop() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	stop, done := o.stop, o.done
	o.mu.Unlock()

	if o.bus != nil && o.cancelSub != "" {
		o.bus.Unsubscribe(o.cancelSub)
	}
	if stop != nil {
		stop()
		<-done
	}
	o.logger.Debug("operation worker stopped")
}

// Cancel requests cancellation of the current round. The item in flight is
// not interrupted; no further item starts. Returns false if there was nothing
// to cancel or cancellation was already requested.
//
// Cancel and the end of a round are serialized by roundMu, so a cancel that
// arrives once the round was finalized cannot leak into the next one.
func (o *Operation[T]) Cancel() bool {
	o.roundMu.Lock()
	defer o.roundMu.Unlock()

	if !o.roundOpen && o.queue.Len() == 0 {
		return false
	}
	if !o.token.Cancel() {
		return false
	}
	o.logger.Info("cancel requested")
	return true
}

// CheckForCanceled returns domain.ErrCanceled (wrapped) if the round was canceled.
// Long running handlers may call it between steps of a single item.
func (o *Operation[T]) CheckForCanceled() error {
	return o.token.CheckForCanceled()
}

// IsRunning reports whether a round is being drained.
func (o *Operation[T]) IsRunning() bool {
	return o.queue.IsDraining()
}

// Pending returns the number of queued items.
func (o *Operation[T]) Pending() int {
	return o.queue.Len()
}

// Progress returns the counters of the current round.
func (o *Operation[T]) Progress() domain.OperationProgress {
	return o.queue.Progress()
}

func (o *Operation[T]) onStart(first T, progress domain.OperationProgress) {
	o.roundMu.Lock()
	o.cleanup = &sync.Once{}
	o.roundOpen = true
	o.roundMu.Unlock()

	o.logger.Info("operation started", slog.Int("queued", progress.Total))
	o.publish(domain.NewOperationStartedEvent(o.name, o.cfg.Progress.withDefaults().ActionMessage))
}

func (o *Operation[T]) onProgress(item T, err error, progress domain.OperationProgress) {
	if err != nil {
		o.publish(domain.NewItemFailedEvent(o.name, item.Key(), err))
	}
	o.progress.Report(progress.Processed-o.progress.Progress().Processed, progress.Total, o.cfg.Describe(item))
}

func (o *Operation[T]) onFinalize(canceled bool, progress domain.OperationProgress) {
	o.roundMu.Lock()
	if !o.roundOpen {
		// Canceled before the first item was dequeued
		o.cleanup = &sync.Once{}
	}
	o.roundOpen = false
	o.token.Reset()
	once := o.cleanup
	o.roundMu.Unlock()

	once.Do(func() {
		if canceled {
			o.logger.Info("operation canceled",
				slog.Int("processed", progress.Processed),
				slog.Int("total", progress.Total))
			o.publish(domain.NewOperationCanceledEvent(o.name, o.progress.Config().CancelMessage, progress))
		} else {
			o.logger.Info("operation finished", slog.Int("processed", progress.Processed))
			o.publish(domain.NewOperationFinishedEvent(o.name, progress))
		}

		o.progress.Reset()

		if o.cfg.OnFinalize != nil {
			o.cfg.OnFinalize(canceled, progress)
		}
	})
}

func (o *Operation[T]) publish(event domain.Event) {
	if o.bus != nil {
		o.bus.Publish(event)
	}
}

// IsCanceled reports whether err is a cancellation of an operation.
func IsCanceled(err error) bool {
	return errors.Is(err, domain.ErrCanceled)
}
