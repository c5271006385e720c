package sqlite

import (
	"context"
	"strconv"

	"github.com/tejashwikalptaru/playqueue/internal/database"
	"github.com/tejashwikalptaru/playqueue/internal/domain"
	"github.com/tejashwikalptaru/playqueue/internal/ports"
)

const (
	keyVolume = "preferences.volume"
	keyEngine = "preferences.engine"

	// DefaultVolume is returned when no volume was saved.
	DefaultVolume = 0.8
)

// PreferencesRepository implements ports.PreferencesRepository as a key/value table.
type PreferencesRepository struct {
	store Store
}

// NewPreferencesRepository creates a preferences repository. The schema must already be migrated.
func NewPreferencesRepository(store Store) *PreferencesRepository {
	return &PreferencesRepository{store: store}
}

func (r *PreferencesRepository) set(ctx context.Context, op, key, value string) error {
	_, err := r.store.Execute(ctx,
		"INSERT INTO preferences (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value)
	if err != nil {
		return domain.NewRepositoryError(op, "preferences", "failed to store "+key, err)
	}
	return nil
}

// get returns the stored value and whether it exists.
func (r *PreferencesRepository) get(ctx context.Context, op, key string) (string, bool, error) {
	v, err := r.store.QueryScalar(ctx, "SELECT value FROM preferences WHERE key = ?", key)
	if err != nil {
		return "", false, domain.NewRepositoryError(op, "preferences", "failed to read "+key, err)
	}
	if v == nil {
		return "", false, nil
	}
	return database.AsString(v), true, nil
}

// SaveVolume persists the volume level.
func (r *PreferencesRepository) SaveVolume(ctx context.Context, volume float64) error {
	if volume < 0 || volume > 1 {
		return domain.ErrInvalidVolume
	}
	return r.set(ctx, "save", keyVolume, strconv.FormatFloat(volume, 'f', -1, 64))
}

// LoadVolume retrieves the saved volume level, or DefaultVolume.
func (r *PreferencesRepository) LoadVolume(ctx context.Context) (float64, error) {
	s, ok, err := r.get(ctx, "load", keyVolume)
	if err != nil || !ok {
		return DefaultVolume, err
	}
	volume, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return DefaultVolume, domain.NewRepositoryError("load", "preferences", "stored volume is not a number", err)
	}
	return volume, nil
}

// SaveEngine persists the preferred playback engine id.
func (r *PreferencesRepository) SaveEngine(ctx context.Context, id string) error {
	return r.set(ctx, "save", keyEngine, id)
}

// LoadEngine retrieves the preferred playback engine id, or "".
func (r *PreferencesRepository) LoadEngine(ctx context.Context) (string, error) {
	s, _, err := r.get(ctx, "load", keyEngine)
	return s, err
}

// Clear removes all saved preferences.
func (r *PreferencesRepository) Clear(ctx context.Context) error {
	if _, err := r.store.Execute(ctx, "DELETE FROM preferences"); err != nil {
		return domain.NewRepositoryError("clear", "preferences", "failed to clear preferences", err)
	}
	return nil
}

// Verify interface implementation
var _ ports.PreferencesRepository = (*PreferencesRepository)(nil)
