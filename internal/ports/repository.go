// Package ports define repository interfaces for data persistence abstraction.
// These interfaces enable the repository pattern and allow swapping persistence mechanisms.
package ports

import (
	"context"

	"github.com/tejashwikalptaru/playqueue/internal/domain"
)

// TrackRepository handles the persistence of the track library.
//
// Thread-safety: Implementations must be thread-safe.
type TrackRepository interface {
	// Save inserts or updates a track, keyed by its path.
	// The stored ID is written back into the track.
	Save(ctx context.Context, track *domain.Track) error

	// FindByPath retrieves a track by path.
	// Returns domain.ErrTrackNotFound if it is not in the library.
	FindByPath(ctx context.Context, path string) (*domain.Track, error)

	// List returns every track ordered by artist, album and track number.
	List(ctx context.Context) ([]domain.Track, error)

	// Count returns the number of tracks in the library.
	Count(ctx context.Context) (int, error)

	// Delete removes a track by ID. Missing tracks are not an error.
	Delete(ctx context.Context, id string) error
}

// PreferencesRepository handles the persistence of user preferences.
//
// Thread-safety: Implementations must be thread-safe.
type PreferencesRepository interface {
	// SaveVolume persists the volume level.
	SaveVolume(ctx context.Context, volume float64) error

	// LoadVolume retrieves the saved volume level.
	// If no volume was saved, returns 0.8 as default.
	LoadVolume(ctx context.Context) (float64, error)

	// SaveEngine persists the preferred playback engine id.
	SaveEngine(ctx context.Context, id string) error

	// LoadEngine retrieves the preferred playback engine id.
	// If none was saved, returns "" (not an error).
	LoadEngine(ctx context.Context) (string, error)

	// Clear removes all saved preferences.
	Clear(ctx context.Context) error
}

// MetadataReader extracts a track descriptor from a media file.
// Tag parsing itself is a collaborator concern.
type MetadataReader interface {
	Read(path string) (*domain.Track, error)
}
