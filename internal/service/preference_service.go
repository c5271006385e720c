package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/tejashwikalptaru/playqueue/internal/domain"
	"github.com/tejashwikalptaru/playqueue/internal/ports"
)

// Preferences is the user state that survives a restart.
type Preferences struct {
	Volume float64
	Engine string // "" means no preference
}

// DefaultPreferences is used for values that were never stored or fail to load.
func DefaultPreferences() Preferences {
	return Preferences{Volume: 0.8}
}

// LogValue implements slog.LogValuer.
func (p Preferences) LogValue() slog.Value {
	return slog.GroupValue(slog.Float64("volume", p.Volume), slog.String("engine", p.Engine))
}

// PreferenceService keeps an in-memory copy of Preferences and writes every
// change through the repository first. A failed write leaves the copy untouched.
type PreferenceService struct {
	logger *slog.Logger
	repo   ports.PreferencesRepository

	mu    sync.RWMutex
	prefs Preferences
}

// NewPreferenceService loads the stored preferences. Load failures are logged
// and the default for that value is kept.
func NewPreferenceService(ctx context.Context, logger *slog.Logger, repo ports.PreferencesRepository) *PreferenceService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &PreferenceService{
		logger: logger.With(slog.String("component", "preferences")),
		repo:   repo,
		prefs:  DefaultPreferences(),
	}

	if v, err := repo.LoadVolume(ctx); err != nil {
		s.logger.Warn("failed to load volume", slog.Any("error", err))
	} else {
		s.prefs.Volume = v
	}
	if id, err := repo.LoadEngine(ctx); err != nil {
		s.logger.Warn("failed to load preferred engine", slog.Any("error", err))
	} else {
		s.prefs.Engine = id
	}

	s.logger.Debug("preferences loaded", slog.Any("preferences", s.prefs))
	return s
}

// Snapshot returns a copy of the current preferences.
func (s *PreferenceService) Snapshot() Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefs
}

func (s *PreferenceService) Volume() float64 { return s.Snapshot().Volume }

func (s *PreferenceService) Engine() string { return s.Snapshot().Engine }

// SetVolume stores volume, which must be within [0, 1].
func (s *PreferenceService) SetVolume(ctx context.Context, volume float64) error {
	if volume < 0 || volume > 1 {
		return domain.ErrInvalidVolume
	}
	return s.update(func(p *Preferences) { p.Volume = volume }, func() error {
		return s.repo.SaveVolume(ctx, volume)
	})
}

// SetEngine stores the preferred engine id. An empty id clears the preference.
func (s *PreferenceService) SetEngine(ctx context.Context, id string) error {
	return s.update(func(p *Preferences) { p.Engine = id }, func() error {
		return s.repo.SaveEngine(ctx, id)
	})
}

// Reset deletes every stored preference and returns to the defaults.
func (s *PreferenceService) Reset(ctx context.Context) error {
	return s.update(func(p *Preferences) { *p = DefaultPreferences() }, func() error {
		return s.repo.Clear(ctx)
	})
}

func (s *PreferenceService) update(apply func(*Preferences), persist func() error) error {
	if err := persist(); err != nil {
		return err
	}
	s.mu.Lock()
	apply(&s.prefs)
	s.mu.Unlock()
	return nil
}
