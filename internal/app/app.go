// Package app provides application-level orchestration and dependency injection.
// This package wires together all components and manages the application lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/tejashwikalptaru/playqueue/internal/adapter/audio/decoder"
	"github.com/tejashwikalptaru/playqueue/internal/adapter/audio/mock"
	"github.com/tejashwikalptaru/playqueue/internal/adapter/eventbus"
	"github.com/tejashwikalptaru/playqueue/internal/adapter/metadata"
	"github.com/tejashwikalptaru/playqueue/internal/adapter/repository/sqlite"
	"github.com/tejashwikalptaru/playqueue/internal/adapter/ui/console"
	"github.com/tejashwikalptaru/playqueue/internal/config"
	"github.com/tejashwikalptaru/playqueue/internal/database"
	"github.com/tejashwikalptaru/playqueue/internal/domain"
	"github.com/tejashwikalptaru/playqueue/internal/engine"
	"github.com/tejashwikalptaru/playqueue/internal/logger"
	"github.com/tejashwikalptaru/playqueue/internal/operation"
	"github.com/tejashwikalptaru/playqueue/internal/ports"
	"github.com/tejashwikalptaru/playqueue/internal/service"
)

// SimulatedEngineID is the id of the engine that plays without producing audio.
const SimulatedEngineID = "simulated"

// Application is the root application structure that holds all dependencies.
//
// The Application struct is responsible for:
// - Creating and wiring all dependencies
// - Managing the application lifecycle (startup, shutdown)
// - Providing a clean entry point for the commands
type Application struct {
	// Core dependencies
	logger *slog.Logger
	config *config.Config

	// Infrastructure
	bus      *eventbus.SyncEventBus
	db       *database.Proxy
	registry *engine.Registry
	loop     *eventbus.MainLoop

	// Repositories
	reader *metadata.TagReader
	tracks *sqlite.TrackRepository
	prefs  *sqlite.PreferencesRepository

	// Services
	playbackService   *service.PlaybackService
	playQueueService  *service.PlayQueueService
	importService     *service.ImportService
	preferenceService *service.PreferenceService

	// Presentation
	presenter *console.Presenter

	subs         []domain.SubscriptionID
	shutdownOnce sync.Once
	shutdownErr  error
}

type options struct {
	logger  *slog.Logger
	output  io.Writer
	color   bool
	engines []ports.EngineFactory
}

// Option customizes NewApplication.
type Option func(*options)

// WithLogger replaces the logger built from the configuration.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithOutput sets where the console presenter writes. Defaults to os.Stdout.
func WithOutput(w io.Writer, color bool) Option {
	return func(o *options) {
		o.output = w
		o.color = color
	}
}

// WithEngines replaces the default engine factories.
func WithEngines(factories ...ports.EngineFactory) Option {
	return func(o *options) { o.engines = factories }
}

// DefaultEngines returns the engine factories registered by default, in
// order of preference.
func DefaultEngines() []ports.EngineFactory {
	return []ports.EngineFactory{
		decoder.Factory(),
		mock.Factory(SimulatedEngineID, "Simulated output"),
	}
}

// NewApplication creates a new application with all dependencies wired.
// Returns domain.ErrNoUsableEngines (wrapped) if no engine passed its self-test.
func NewApplication(ctx context.Context, cfg *config.Config, opts ...Option) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{output: os.Stdout, engines: DefaultEngines()}
	for _, opt := range opts {
		opt(&o)
	}

	app := &Application{config: cfg}

	// Step 1: Create logger
	app.logger = o.logger
	if app.logger == nil {
		app.logger = logger.NewLogger(cfg.Logger())
	}
	app.logger.Debug("initializing application", slog.Any("config", cfg))

	// Step 2: Create an event bus
	app.bus = eventbus.NewSyncEventBus()
	app.bus.SetLogger(logger.Component(app.logger, "eventbus"))

	// Step 3: Open the library database
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		QueueSize:   cfg.Database.QueueSize,
		BusyTimeout: cfg.Database.BusyTimeout.Duration,
		Migrations:  sqlite.Migrations(),
	}, app.logger)
	if err != nil {
		_ = app.bus.Close()
		return nil, fmt.Errorf("failed to open library: %w", err)
	}
	app.db = db

	// Step 4: Create repositories
	app.reader = metadata.NewTagReader()
	app.tracks = sqlite.NewTrackRepository(db)
	app.prefs = sqlite.NewPreferencesRepository(db)
	app.preferenceService = service.NewPreferenceService(ctx, app.logger, app.prefs)

	// Step 5: Discover engines
	app.registry = engine.NewRegistry(app.bus, app.logger)
	for _, factory := range o.engines {
		app.registry.Register(factory)
	}
	preferred := cfg.Engine.Preferred
	if preferred == "" {
		preferred = app.preferenceService.Engine()
	}
	if err := app.registry.Discover(preferred); err != nil {
		_ = app.registry.Dispose()
		_ = app.db.Close()
		_ = app.bus.Close()
		return nil, fmt.Errorf("failed to start playback: %w", err)
	}

	// Step 6: Create services (with dependency injection)
	app.playbackService = service.NewPlaybackService(app.logger, app.registry, app.bus)
	if err := app.playbackService.SetVolume(app.preferenceService.Volume()); err != nil {
		app.logger.Warn("failed to restore volume", slog.Any("error", err))
	}
	app.playQueueService = service.NewPlayQueueService(app.logger, app.playbackService, app.bus)
	app.importService = service.NewImportService(
		app.logger,
		app.reader,
		app.tracks,
		app.bus,
		operation.ProgressConfig{
			Epsilon:     cfg.Progress.Epsilon,
			MinInterval: cfg.Progress.MinInterval.Duration,
		},
	)

	// Step 7: Persist preference changes
	app.subs = append(app.subs,
		app.bus.Subscribe(domain.EventVolumeChanged, app.onVolumeChanged),
		app.bus.Subscribe(domain.EventEngineSwapped, app.onEngineSwapped),
	)

	// Step 8: Create the presenter on the main loop
	app.loop = eventbus.NewMainLoop(logger.Component(app.logger, "mainloop"), app.bus)
	view := console.NewView(o.output, o.color)
	app.presenter = console.NewPresenter(app.logger, app.bus, app.loop, view, view)

	app.logger.Info("application initialized",
		slog.Any("build", ReadBuildInfo()),
		slog.String("engine", app.registry.ActiveID()),
		slog.String("library", db.Path()))
	return app, nil
}

func (a *Application) onVolumeChanged(event domain.Event) {
	e := event.(domain.VolumeChangedEvent)
	if err := a.preferenceService.SetVolume(context.Background(), e.Volume); err != nil {
		a.logger.Warn("failed to save volume", slog.Any("error", err))
	}
}

func (a *Application) onEngineSwapped(event domain.Event) {
	e := event.(domain.EngineSwappedEvent)
	if err := a.preferenceService.SetEngine(context.Background(), e.To); err != nil {
		a.logger.Warn("failed to save engine preference", slog.Any("error", err))
	}
}

// Run dispatches presenter updates on the calling goroutine until ctx is done.
func (a *Application) Run(ctx context.Context) {
	a.loop.Run(ctx)
}

// Shutdown stops background work and releases every resource, in order:
// operations, playback, engines, database, event bus. Shutdown is idempotent.
func (a *Application) Shutdown() error {
	a.shutdownOnce.Do(func() {
		a.logger.Debug("shutting down application")
		var errs []error

		a.presenter.Close()
		a.loop.Close()
		for _, id := range a.subs {
			a.bus.Unsubscribe(id)
		}

		a.importService.Cancel()
		if err := a.importService.Shutdown(); err != nil {
			errs = append(errs, fmt.Errorf("import: %w", err))
		}
		if err := a.playQueueService.Shutdown(); err != nil {
			errs = append(errs, fmt.Errorf("play queue: %w", err))
		}
		if err := a.playbackService.Shutdown(); err != nil {
			errs = append(errs, fmt.Errorf("playback: %w", err))
		}
		if err := a.registry.Dispose(); err != nil {
			errs = append(errs, fmt.Errorf("engines: %w", err))
		}
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database: %w", err))
		}
		if err := a.bus.Close(); err != nil {
			errs = append(errs, fmt.Errorf("event bus: %w", err))
		}

		a.shutdownErr = errors.Join(errs...)
		a.logger.Debug("application shutdown complete")
	})
	return a.shutdownErr
}

// Logger returns the application logger.
func (a *Application) Logger() *slog.Logger { return a.logger }

// Config returns the configuration the application was built with.
func (a *Application) Config() *config.Config { return a.config }

// Bus returns the event bus.
func (a *Application) Bus() ports.EventBus { return a.bus }

// Engines returns the engine registry.
func (a *Application) Engines() *engine.Registry { return a.registry }

// Tracks returns the library track repository.
func (a *Application) Tracks() ports.TrackRepository { return a.tracks }

// Metadata returns the tag reader used for imports.
func (a *Application) Metadata() ports.MetadataReader { return a.reader }

// Playback returns the playback service.
func (a *Application) Playback() *service.PlaybackService { return a.playbackService }

// PlayQueue returns the play queue service.
func (a *Application) PlayQueue() *service.PlayQueueService { return a.playQueueService }

// Import returns the import service.
func (a *Application) Import() *service.ImportService { return a.importService }

// Preferences returns the preference service.
func (a *Application) Preferences() *service.PreferenceService { return a.preferenceService }

// Presenter returns the console presenter.
func (a *Application) Presenter() *console.Presenter { return a.presenter }

// Loop returns the main loop that drives the presenter.
func (a *Application) Loop() *eventbus.MainLoop { return a.loop }
