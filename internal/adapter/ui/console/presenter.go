package console

import (
	"log/slog"
	"sync"

	"github.com/tejashwikalptaru/playqueue/internal/adapter/eventbus"
	"github.com/tejashwikalptaru/playqueue/internal/domain"
	"github.com/tejashwikalptaru/playqueue/internal/ports"
)

// Presenter maps bus events onto the views.
//
// Every handler is subscribed through the main loop, so views are only ever
// called from the goroutine running MainLoop.Run.
type Presenter struct {
	logger *slog.Logger
	bus    ports.EventBus
	loop   *eventbus.MainLoop

	operations ports.OperationView
	playback   ports.PlaybackView

	showPosition bool

	mu   sync.Mutex
	subs []domain.SubscriptionID
}

// NewPresenter creates a presenter and subscribes it to the bus through loop.
// playback may be nil to show operations only.
func NewPresenter(
	logger *slog.Logger,
	bus ports.EventBus,
	loop *eventbus.MainLoop,
	operations ports.OperationView,
	playback ports.PlaybackView,
) *Presenter {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Presenter{
		logger:     logger.With(slog.String("component", "presenter")),
		bus:        bus,
		loop:       loop,
		operations: operations,
		playback:   playback,
	}
	p.subscribeToEvents()
	return p
}

// ShowPosition turns the periodic position lines on or off.
func (p *Presenter) ShowPosition(show bool) {
	p.loop.Post(func() { p.showPosition = show })
}

func (p *Presenter) subscribeToEvents() {
	subscriptions := map[domain.EventType]domain.EventHandler{
		domain.EventOperationStarted:  p.onOperationStarted,
		domain.EventOperationProgress: p.onOperationProgress,
		domain.EventOperationFinished: p.onOperationFinished,
		domain.EventOperationCanceled: p.onOperationCanceled,
		domain.EventItemFailed:        p.onItemFailed,
	}
	if p.playback != nil {
		subscriptions[domain.EventTrackOpened] = p.onTrackOpened
		subscriptions[domain.EventTrackProgress] = p.onTrackProgress
		subscriptions[domain.EventEngineSwapped] = p.onEngineSwapped
		subscriptions[domain.EventEngineError] = p.onEngineError
		subscriptions[domain.EventEngineEndOfStream] = p.onEndOfStream
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for eventType, handler := range subscriptions {
		p.subs = append(p.subs, p.loop.Subscribe(eventType, handler))
	}
	p.logger.Debug("presenter subscribed", slog.Int("events", len(subscriptions)))
}

// RequestCancel asks the named operation to cancel. The operation stops before
// its next work item.
func (p *Presenter) RequestCancel(operation string) {
	p.logger.Debug("cancel requested", slog.String("operation", operation))
	p.bus.Publish(domain.NewCancelRequestedEvent(operation))
}

func (p *Presenter) onOperationStarted(event domain.Event) {
	e := event.(domain.OperationStartedEvent)
	p.operations.ShowStarted(e.Operation, e.Message)
}

func (p *Presenter) onOperationProgress(event domain.Event) {
	e := event.(domain.ProgressEvent)
	p.operations.ShowProgress(e.Operation, e.Fraction, e.Message)
}

func (p *Presenter) onOperationFinished(event domain.Event) {
	e := event.(domain.OperationFinishedEvent)
	p.operations.ShowFinished(e.Operation, e.Progress)
}

func (p *Presenter) onOperationCanceled(event domain.Event) {
	e := event.(domain.OperationCanceledEvent)
	p.operations.ShowCanceled(e.Operation, e.Message)
}

func (p *Presenter) onItemFailed(event domain.Event) {
	e := event.(domain.ItemFailedEvent)
	p.operations.ShowItemError(e.Operation, e.Key, e.Error)
}

func (p *Presenter) onTrackOpened(event domain.Event) {
	e := event.(domain.TrackOpenedEvent)
	p.playback.ShowTrack(e.Track, e.Engine, e.Length)
}

func (p *Presenter) onTrackProgress(event domain.Event) {
	if !p.showPosition {
		return
	}
	e := event.(domain.TrackProgressEvent)
	p.playback.ShowPosition(e.Position, e.Length)
}

func (p *Presenter) onEngineSwapped(event domain.Event) {
	e := event.(domain.EngineSwappedEvent)
	p.playback.ShowEngineSwapped(e.From, e.To)
}

func (p *Presenter) onEngineError(event domain.Event) {
	e := event.(domain.EngineErrorEvent)
	p.playback.ShowEngineError(e.Engine, e.Error)
}

func (p *Presenter) onEndOfStream(event domain.Event) {
	e := event.(domain.EndOfStreamEvent)
	p.playback.ShowEndOfStream(e.Engine)
}

// Close unsubscribes the presenter from the bus.
func (p *Presenter) Close() {
	p.mu.Lock()
	subs := p.subs
	p.subs = nil
	p.mu.Unlock()

	for _, id := range subs {
		p.loop.Unsubscribe(id)
	}
}
