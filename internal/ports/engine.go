// Package ports define interfaces for dependency inversion.
// These interfaces allow the core to remain independent of audio backends, storage and UI.
package ports

import (
	"log/slog"
	"time"

	"github.com/tejashwikalptaru/playqueue/internal/domain"
)

// EngineEventKind identifies the signal an engine fired.
type EngineEventKind int

const (
	// EngineStateChanged is fired after every state transition
	EngineStateChanged EngineEventKind = iota

	// EngineErrorOccurred is fired when the backend reports a failure
	EngineErrorOccurred

	// EngineEndOfStream is fired when the open track played to its end
	EngineEndOfStream
)

// EngineEvent is a signal fired by a playback engine.
type EngineEvent struct {
	Kind  EngineEventKind
	State domain.PlayerState
	Track *domain.Track
	Err   error
}

// EngineListener receives engine signals.
// Engines must not hold internal locks while calling listeners.
type EngineListener func(event EngineEvent)

// PlaybackEngine is the interface for pluggable playback backends.
// The registry only talks to engines through this interface.
//
// Implementations must be thread-safe as they may be called from multiple goroutines.
type PlaybackEngine interface {
	// ID returns the stable identifier used in preferences (e.g. "mock").
	ID() string

	// Name returns a human-readable engine name.
	Name() string

	// SelfTest runs synchronously during discovery.
	// A non-nil error marks the engine slot disabled.
	SelfTest() error

	// Open prepares a track for playback. The engine moves to StateLoaded.
	Open(track domain.Track) error

	// Play starts or resumes playback of the open track.
	Play() error

	// Pause pauses playback of the open track.
	Pause() error

	// Close stops playback and releases the open track. The engine moves to StateIdle.
	Close() error

	// State returns the current engine state.
	State() domain.PlayerState

	// Volume returns the current volume (0.0 to 1.0).
	Volume() float64

	// SetVolume sets the volume (0.0 to 1.0).
	SetVolume(volume float64) error

	// Position returns the playback position of the open track.
	Position() time.Duration

	// SetPosition seeks within the open track.
	SetPosition(position time.Duration) error

	// Length returns the length of the open track (0 if unknown).
	Length() time.Duration

	// Subscribe registers a listener for engine signals.
	// The returned function removes the listener; calling it twice is a no-op.
	Subscribe(listener EngineListener) (unsubscribe func())

	// Dispose releases every backend resource. Called once at shutdown.
	Dispose() error
}

// EngineFactory builds a playback engine. Factories are registered explicitly by the host.
type EngineFactory func(logger *slog.Logger) (PlaybackEngine, error)
