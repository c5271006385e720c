package domain

import (
	"time"
)

// Event is anything published on the event bus.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// EventType names an event kind. Types are dotted, "<area>.<what>".
type EventType string

const (
	EventOperationStarted  EventType = "operation.started"
	EventOperationProgress EventType = "operation.progress"
	EventOperationFinished EventType = "operation.finished"
	EventOperationCanceled EventType = "operation.canceled"
	EventCancelRequested   EventType = "operation.cancel_requested"
	EventItemFailed        EventType = "operation.item_failed"

	EventEngineStateChanged EventType = "engine.state_changed"
	EventEngineError        EventType = "engine.error"
	EventEngineEndOfStream  EventType = "engine.end_of_stream"
	EventEngineSwapped      EventType = "engine.swapped"

	EventTrackOpened   EventType = "track.opened"
	EventTrackProgress EventType = "track.progress"
	EventVolumeChanged EventType = "volume.changed"
	EventMuteToggled   EventType = "mute.toggled"
	EventQueueChanged  EventType = "queue.changed"

	EventTrackImported EventType = "library.track_imported"
)

// EventHandler receives published events.
type EventHandler func(event Event)

// SubscriptionID identifies one subscription on a bus.
type SubscriptionID string

// meta is embedded by every event and supplies the Event methods.
type meta struct {
	kind EventType
	at   time.Time
}

func stamp(kind EventType) meta { return meta{kind: kind, at: time.Now()} }

func (m meta) Type() EventType      { return m.kind }
func (m meta) Timestamp() time.Time { return m.at }

// Operation lifecycle. Operation is the name the operation was created with.

type OperationStartedEvent struct {
	meta
	Operation string
	Message   string
}

func NewOperationStartedEvent(operation, message string) OperationStartedEvent {
	return OperationStartedEvent{meta: stamp(EventOperationStarted), Operation: operation, Message: message}
}

// ProgressEvent is only published when Fraction moved by more than the
// configured epsilon since the last one.
type ProgressEvent struct {
	meta
	Operation string
	Fraction  float64
	Message   string
	Progress  OperationProgress
}

func NewProgressEvent(operation string, fraction float64, message string, progress OperationProgress) ProgressEvent {
	return ProgressEvent{
		meta:      stamp(EventOperationProgress),
		Operation: operation,
		Fraction:  fraction,
		Message:   message,
		Progress:  progress,
	}
}

type OperationFinishedEvent struct {
	meta
	Operation string
	Progress  OperationProgress
}

func NewOperationFinishedEvent(operation string, progress OperationProgress) OperationFinishedEvent {
	return OperationFinishedEvent{meta: stamp(EventOperationFinished), Operation: operation, Progress: progress}
}

// OperationCanceledEvent fires at most once per cancellation.
type OperationCanceledEvent struct {
	meta
	Operation string
	Message   string
	Progress  OperationProgress
}

func NewOperationCanceledEvent(operation, message string, progress OperationProgress) OperationCanceledEvent {
	return OperationCanceledEvent{
		meta:      stamp(EventOperationCanceled),
		Operation: operation,
		Message:   message,
		Progress:  progress,
	}
}

// CancelRequestedEvent travels the other way: a front end publishes it and
// the named operation reacts.
type CancelRequestedEvent struct {
	meta
	Operation string
}

func NewCancelRequestedEvent(operation string) CancelRequestedEvent {
	return CancelRequestedEvent{meta: stamp(EventCancelRequested), Operation: operation}
}

// ItemFailedEvent reports an item that was skipped; the drain continues.
type ItemFailedEvent struct {
	meta
	Operation string
	Key       string
	Error     error
}

func NewItemFailedEvent(operation, key string, err error) ItemFailedEvent {
	return ItemFailedEvent{meta: stamp(EventItemFailed), Operation: operation, Key: key, Error: err}
}

// Engine signals, forwarded by the registry from the active engine only.

type EngineStateChangedEvent struct {
	meta
	Engine string
	State  PlayerState
	Track  *Track
}

func NewEngineStateChangedEvent(engine string, state PlayerState, track *Track) EngineStateChangedEvent {
	return EngineStateChangedEvent{meta: stamp(EventEngineStateChanged), Engine: engine, State: state, Track: track}
}

type EngineErrorEvent struct {
	meta
	Engine string
	Error  error
}

func NewEngineErrorEvent(engine string, err error) EngineErrorEvent {
	return EngineErrorEvent{meta: stamp(EventEngineError), Engine: engine, Error: err}
}

type EndOfStreamEvent struct {
	meta
	Engine string
	Track  *Track
}

func NewEndOfStreamEvent(engine string, track *Track) EndOfStreamEvent {
	return EndOfStreamEvent{meta: stamp(EventEngineEndOfStream), Engine: engine, Track: track}
}

// EngineSwappedEvent follows a pending engine becoming active.
type EngineSwappedEvent struct {
	meta
	From string
	To   string
}

func NewEngineSwappedEvent(from, to string) EngineSwappedEvent {
	return EngineSwappedEvent{meta: stamp(EventEngineSwapped), From: from, To: to}
}

// Playback service events.

type TrackOpenedEvent struct {
	meta
	Track  Track
	Engine string
	Length time.Duration
}

func NewTrackOpenedEvent(track Track, engine string, length time.Duration) TrackOpenedEvent {
	return TrackOpenedEvent{meta: stamp(EventTrackOpened), Track: track, Engine: engine, Length: length}
}

type TrackProgressEvent struct {
	meta
	Position time.Duration
	Length   time.Duration
}

func NewTrackProgressEvent(position, length time.Duration) TrackProgressEvent {
	return TrackProgressEvent{meta: stamp(EventTrackProgress), Position: position, Length: length}
}

type VolumeChangedEvent struct {
	meta
	Volume float64
}

func NewVolumeChangedEvent(volume float64) VolumeChangedEvent {
	return VolumeChangedEvent{meta: stamp(EventVolumeChanged), Volume: volume}
}

type MuteToggledEvent struct {
	meta
	Muted bool
}

func NewMuteToggledEvent(muted bool) MuteToggledEvent {
	return MuteToggledEvent{meta: stamp(EventMuteToggled), Muted: muted}
}

type QueueChangedEvent struct {
	meta
	Tracks       []Track
	CurrentIndex int
}

func NewQueueChangedEvent(tracks []Track, currentIndex int) QueueChangedEvent {
	return QueueChangedEvent{meta: stamp(EventQueueChanged), Tracks: tracks, CurrentIndex: currentIndex}
}

// TrackImportedEvent follows each track the import operation stored.
type TrackImportedEvent struct {
	meta
	Track Track
}

func NewTrackImportedEvent(track Track) TrackImportedEvent {
	return TrackImportedEvent{meta: stamp(EventTrackImported), Track: track}
}
