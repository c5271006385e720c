package domain

import (
	"path/filepath"
	"time"
)

// WorkItem is a unit of work held by a serialized work queue.
// Two items with the same key are considered equal for deduplication.
type WorkItem interface {
	Key() string
}

// Track is the descriptor of a playable media file.
// Tag reading and audio decoding are collaborators; the core only moves these around.
type Track struct {
	// ID is a unique identifier for the track (UUID)
	ID string

	// Path is the absolute path to the media file
	Path string

	Title       string
	Artist      string
	Album       string
	Genre       string
	Year        int
	TrackNumber int

	// Duration is the total length of the track (0 if unknown)
	Duration time.Duration

	// FileSize is the size of the media file in bytes
	FileSize int64

	// DateAdded is when the track entered the library
	DateAdded time.Time
}

// Key identifies a track by its cleaned path.
func (t Track) Key() string {
	return filepath.Clean(t.Path)
}

// DisplayName returns "Artist - Title", falling back to the file name.
func (t Track) DisplayName() string {
	switch {
	case t.Title != "" && t.Artist != "":
		return t.Artist + " - " + t.Title
	case t.Title != "":
		return t.Title
	default:
		return filepath.Base(t.Path)
	}
}

// OperationProgress holds the counters of one round of a background operation.
type OperationProgress struct {
	Processed int
	Total     int
}

// Fraction returns Processed/Total clamped to [0,1]. An empty round reports 0.
func (p OperationProgress) Fraction() float64 {
	if p.Total <= 0 {
		return 0
	}
	f := float64(p.Processed) / float64(p.Total)
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

// PlayerState is the state reported by a playback engine.
type PlayerState int

const (
	// StateIdle means nothing is open; an engine swap may happen here.
	StateIdle PlayerState = iota

	// StateContacting means a remote resource is being reached
	StateContacting

	// StateLoading means a track is being opened
	StateLoading

	// StateLoaded means a track is open and ready to play
	StateLoaded

	// StatePlaying means playback is active
	StatePlaying

	// StatePaused means playback is paused
	StatePaused
)

// String returns a human-readable representation of the player state.
func (s PlayerState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateContacting:
		return "contacting"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// IsIdle reports whether the engine can be torn down without interrupting playback.
func (s PlayerState) IsIdle() bool {
	return s == StateIdle
}

// EngineSlot is a snapshot of a registered playback engine and its status.
type EngineSlot struct {
	ID       string
	Name     string
	Disabled bool

	// Reason explains why the slot is disabled (self-test failure)
	Reason string

	Active  bool
	Pending bool
}

// PlaybackState is the state exposed by the playback service.
type PlaybackState struct {
	Engine   string
	Track    *Track
	State    PlayerState
	Position time.Duration
	Length   time.Duration
	Volume   float64
	IsMuted  bool
}
