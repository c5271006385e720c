package service

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tejashwikalptaru/playqueue/internal/adapter/audio/mock"
	"github.com/tejashwikalptaru/playqueue/internal/adapter/eventbus"
	"github.com/tejashwikalptaru/playqueue/internal/domain"
	"github.com/tejashwikalptaru/playqueue/internal/engine"
	"github.com/tejashwikalptaru/playqueue/internal/logger"
	"github.com/tejashwikalptaru/playqueue/internal/testutil"
)

type playbackFixture struct {
	service  *PlaybackService
	registry *engine.Registry
	bus      *eventbus.SyncEventBus
	a, b     *mock.Engine
	events   *recorder
}

// Helper to create a test playback service over two mock engines, "a" active
func newTestPlaybackService(t *testing.T) *playbackFixture {
	t.Helper()
	bus := eventbus.NewSyncEventBus()
	f := &playbackFixture{
		bus:      bus,
		registry: engine.NewRegistry(bus, logger.NewTestLogger()),
		a:        mock.NewEngine("a", "Engine A"),
		b:        mock.NewEngine("b", "Engine B"),
		events:   &recorder{},
	}
	f.registry.Register(mock.FactoryFor(f.a))
	f.registry.Register(mock.FactoryFor(f.b))
	require.NoError(t, f.registry.Discover("a"))

	bus.SubscribeAll(f.events.record)
	f.service = NewPlaybackService(logger.NewTestLogger(), f.registry, bus)

	t.Cleanup(func() {
		_ = f.service.Shutdown()
		_ = f.registry.Dispose()
		_ = bus.Close()
	})
	return f
}

// Helper to create a test track
func createTestTrack(title, path string) domain.Track {
	return domain.Track{
		ID:       title,
		Title:    title,
		Path:     path,
		Artist:   "Test Artist",
		Album:    "Test Album",
		Duration: 3 * time.Minute,
	}
}

func TestPlaybackService_OpenAndPlay(t *testing.T) {
	f := newTestPlaybackService(t)
	track := createTestTrack("Song", "/test/song.mp3")

	require.NoError(t, f.service.Open(track))

	opened := f.events.of(domain.EventTrackOpened)
	require.Len(t, opened, 1)
	e := opened[0].(domain.TrackOpenedEvent)
	assert.Equal(t, "a", e.Engine)
	assert.Equal(t, 3*time.Minute, e.Length)

	state := f.service.State()
	assert.Equal(t, "a", state.Engine)
	assert.Equal(t, domain.StateLoaded, state.State)
	require.NotNil(t, state.Track)
	assert.Equal(t, "Song", state.Track.Title)

	require.NoError(t, f.service.Play())
	assert.Equal(t, domain.StatePlaying, f.a.State())
	require.NoError(t, f.service.Play(), "playing twice is a no-op")

	require.NoError(t, f.service.Pause())
	assert.Equal(t, domain.StatePaused, f.a.State())
}

func TestPlaybackService_NoTrackLoaded(t *testing.T) {
	f := newTestPlaybackService(t)

	assert.ErrorIs(t, f.service.Play(), domain.ErrNoTrackLoaded)
	assert.ErrorIs(t, f.service.Pause(), domain.ErrNoTrackLoaded)
	assert.ErrorIs(t, f.service.Seek(time.Second), domain.ErrNoTrackLoaded)
	assert.NoError(t, f.service.Close(), "closing with nothing open is fine")
	assert.ErrorIs(t, f.service.Open(domain.Track{}), domain.ErrInvalidFilePath)
}

func TestPlaybackService_OpenFailure(t *testing.T) {
	f := newTestPlaybackService(t)
	f.a.SetFailOpen(true)

	err := f.service.Open(createTestTrack("Song", "/test/song.mp3"))
	var engineErr *domain.EngineError
	require.True(t, errors.As(err, &engineErr))
	assert.Equal(t, "open", engineErr.Op)

	assert.Nil(t, f.service.State().Track)
	assert.Equal(t, 1, f.events.count(domain.EventEngineError))
}

func TestPlaybackService_OpenClosesPrevious(t *testing.T) {
	f := newTestPlaybackService(t)

	require.NoError(t, f.service.Open(createTestTrack("One", "/test/1.mp3")))
	require.NoError(t, f.service.Play())
	before := f.a.CloseCalls()

	require.NoError(t, f.service.Open(createTestTrack("Two", "/test/2.mp3")))
	assert.Equal(t, before+1, f.a.CloseCalls())
	assert.Equal(t, "Two", f.service.State().Track.Title)
}

func TestPlaybackService_Volume(t *testing.T) {
	f := newTestPlaybackService(t)
	require.NoError(t, f.service.Open(createTestTrack("Song", "/test/song.mp3")))

	require.NoError(t, f.service.SetVolume(0.5))
	assert.Equal(t, 0.5, f.service.Volume())
	assert.Equal(t, 0.5, f.a.Volume())

	assert.ErrorIs(t, f.service.SetVolume(1.5), domain.ErrInvalidVolume)
	assert.ErrorIs(t, f.service.SetVolume(-0.1), domain.ErrInvalidVolume)

	volumes := f.events.of(domain.EventVolumeChanged)
	require.Len(t, volumes, 1)
	assert.Equal(t, 0.5, volumes[0].(domain.VolumeChangedEvent).Volume)
}

func TestPlaybackService_Mute(t *testing.T) {
	f := newTestPlaybackService(t)
	require.NoError(t, f.service.Open(createTestTrack("Song", "/test/song.mp3")))
	require.NoError(t, f.service.SetVolume(0.6))

	require.NoError(t, f.service.Mute(true))
	assert.True(t, f.service.IsMuted())
	assert.Equal(t, 0.0, f.a.Volume())

	// Volume changes while muted are remembered
	require.NoError(t, f.service.SetVolume(0.4))
	assert.Equal(t, 0.0, f.a.Volume())

	require.NoError(t, f.service.Mute(true), "muting twice is a no-op")
	require.NoError(t, f.service.Mute(false))
	assert.Equal(t, 0.4, f.a.Volume())

	assert.Equal(t, 2, f.events.count(domain.EventMuteToggled))
}

func TestPlaybackService_Seek(t *testing.T) {
	f := newTestPlaybackService(t)
	require.NoError(t, f.service.Open(createTestTrack("Song", "/test/song.mp3")))

	require.NoError(t, f.service.Seek(30*time.Second))
	assert.Equal(t, 30*time.Second, f.a.Position())

	progress := f.events.of(domain.EventTrackProgress)
	require.NotEmpty(t, progress)
	assert.Equal(t, 30*time.Second, progress[len(progress)-1].(domain.TrackProgressEvent).Position)

	assert.ErrorIs(t, f.service.Seek(-time.Second), domain.ErrInvalidPosition)
	assert.ErrorIs(t, f.service.Seek(time.Hour), domain.ErrInvalidPosition)
}

func TestPlaybackService_SwitchEngineWhileIdle(t *testing.T) {
	f := newTestPlaybackService(t)
	require.NoError(t, f.service.SetVolume(0.3))

	switched, err := f.service.SwitchEngine("b")
	require.NoError(t, err)
	assert.True(t, switched)
	assert.Equal(t, "b", f.service.State().Engine)
	assert.Equal(t, 0.3, f.b.Volume(), "volume carries over to the new engine")

	_, err = f.service.SwitchEngine("nope")
	assert.ErrorIs(t, err, domain.ErrEngineNotFound)
}

func TestPlaybackService_SwitchEngineDeferredUntilTrackBoundary(t *testing.T) {
	f := newTestPlaybackService(t)

	require.NoError(t, f.service.Open(createTestTrack("One", "/test/1.mp3")))
	require.NoError(t, f.service.Play())

	switched, err := f.service.SwitchEngine("b")
	require.NoError(t, err)
	assert.False(t, switched)
	assert.Equal(t, "a", f.service.State().Engine)

	// Opening the next track passes through idle, where the switch happens
	require.NoError(t, f.service.Open(createTestTrack("Two", "/test/2.mp3")))
	assert.Equal(t, "b", f.service.State().Engine)
	assert.Equal(t, domain.StateLoaded, f.b.State())
	assert.Equal(t, domain.StateIdle, f.a.State())
	assert.Equal(t, 1, f.events.count(domain.EventEngineSwapped))

	opened := f.events.of(domain.EventTrackOpened)
	assert.Equal(t, "b", opened[len(opened)-1].(domain.TrackOpenedEvent).Engine)
}

func TestPlaybackService_EndOfStream(t *testing.T) {
	f := newTestPlaybackService(t)

	track := createTestTrack("Short", "/test/short.mp3")
	track.Duration = time.Second
	require.NoError(t, f.service.Open(track))
	require.NoError(t, f.service.Play())

	require.NoError(t, f.a.SimulateProgress(2*time.Second))

	assert.Equal(t, 1, f.events.count(domain.EventEngineEndOfStream))
	assert.Nil(t, f.service.State().Track)
	assert.ErrorIs(t, f.service.Play(), domain.ErrNoTrackLoaded)
}

func TestPlaybackService_ProgressUpdates(t *testing.T) {
	f := newTestPlaybackService(t)

	require.NoError(t, f.service.Open(createTestTrack("Song", "/test/song.mp3")))
	require.NoError(t, f.service.Play())

	testutil.Eventually(t, 2*time.Second, func() bool {
		return f.events.count(domain.EventTrackProgress) > 0
	}, "periodic progress event")
}

func TestPlaybackService_NoActiveEngine(t *testing.T) {
	bus := eventbus.NewSyncEventBus()
	defer bus.Close()

	registry := engine.NewRegistry(bus, logger.NewTestLogger())
	service := NewPlaybackService(logger.NewTestLogger(), registry, bus)
	defer service.Shutdown()

	assert.ErrorIs(t, service.Open(createTestTrack("Song", "/test/song.mp3")), domain.ErrNoActiveEngine)
	assert.Empty(t, service.State().Engine)
}

func TestPlaybackService_ShutdownStopsUpdates(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	bus := eventbus.NewSyncEventBus()
	defer bus.Close()
	registry := engine.NewRegistry(bus, logger.NewTestLogger())
	a := mock.NewEngine("a", "Engine A")
	registry.Register(mock.FactoryFor(a))
	require.NoError(t, registry.Discover(""))

	service := NewPlaybackService(logger.NewTestLogger(), registry, bus)
	require.NoError(t, service.Open(createTestTrack("Song", "/test/song.mp3")))
	require.NoError(t, service.Play())

	require.NoError(t, service.Shutdown())
	assert.Equal(t, domain.StateIdle, a.State())
	require.NoError(t, registry.Dispose())
}
