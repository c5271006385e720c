package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tejashwikalptaru/playqueue/internal/domain"
	"github.com/tejashwikalptaru/playqueue/internal/logger"
	"github.com/tejashwikalptaru/playqueue/internal/testutil"
)

// Helper to create a play queue on top of a playback fixture
func newTestPlayQueue(t *testing.T) (*PlayQueueService, *playbackFixture) {
	t.Helper()
	f := newTestPlaybackService(t)
	queue := NewPlayQueueService(logger.NewTestLogger(), f.service, f.bus)
	t.Cleanup(func() { _ = queue.Shutdown() })
	return queue, f
}

func shortTracks(n int) []domain.Track {
	names := []string{"one", "two", "three", "four"}
	tracks := make([]domain.Track, 0, n)
	for i := 0; i < n; i++ {
		tr := createTestTrack(names[i], "/test/"+names[i]+".mp3")
		tr.Duration = time.Second
		tracks = append(tracks, tr)
	}
	return tracks
}

func TestPlayQueue_AddAndNavigate(t *testing.T) {
	queue, f := newTestPlayQueue(t)

	assert.ErrorIs(t, queue.PlayNext(), domain.ErrQueueEmpty)

	queue.Add(shortTracks(3)...)
	assert.Equal(t, 3, queue.Len())
	assert.Equal(t, -1, queue.CurrentIndex())

	require.NoError(t, queue.PlayNext())
	assert.Equal(t, 0, queue.CurrentIndex())
	assert.Equal(t, domain.StatePlaying, f.a.State())

	require.NoError(t, queue.PlayAt(2))
	assert.ErrorIs(t, queue.PlayNext(), domain.ErrEndOfQueue)

	require.NoError(t, queue.PlayPrevious())
	assert.Equal(t, 1, queue.CurrentIndex())
	assert.Equal(t, "two", f.service.State().Track.Title)

	require.NoError(t, queue.PlayPrevious())
	assert.ErrorIs(t, queue.PlayPrevious(), domain.ErrStartOfQueue)
	assert.ErrorIs(t, queue.PlayAt(7), domain.ErrTrackNotFound)

	assert.Positive(t, f.events.count(domain.EventQueueChanged))
}

func TestPlayQueue_RemoveAdjustsIndex(t *testing.T) {
	queue, _ := newTestPlayQueue(t)
	queue.Add(shortTracks(4)...)
	require.NoError(t, queue.PlayAt(2))

	require.NoError(t, queue.Remove(0))
	assert.Equal(t, 1, queue.CurrentIndex())

	require.NoError(t, queue.Remove(1))
	assert.Equal(t, -1, queue.CurrentIndex())
	assert.Equal(t, 2, queue.Len())

	assert.ErrorIs(t, queue.Remove(5), domain.ErrTrackNotFound)

	queue.Clear()
	assert.Zero(t, queue.Len())
}

func TestPlayQueue_AutoAdvance(t *testing.T) {
	queue, f := newTestPlayQueue(t)
	queue.Add(shortTracks(2)...)
	require.NoError(t, queue.PlayAt(0))

	require.NoError(t, f.a.SimulateProgress(2*time.Second))

	testutil.Eventually(t, 2*time.Second, func() bool {
		return queue.CurrentIndex() == 1 && f.a.State() == domain.StatePlaying
	}, "second track playing")
	assert.Equal(t, "two", f.service.State().Track.Title)

	// The last track ends: the queue stays on it and playback stops
	require.NoError(t, f.a.SimulateProgress(2*time.Second))
	assert.Equal(t, 1, queue.CurrentIndex())
	assert.Equal(t, domain.StateIdle, f.a.State())
}

func TestPlayQueue_AutoAdvanceUsesPendingEngine(t *testing.T) {
	queue, f := newTestPlayQueue(t)
	queue.Add(shortTracks(2)...)
	require.NoError(t, queue.PlayAt(0))

	switched, err := f.service.SwitchEngine("b")
	require.NoError(t, err)
	assert.False(t, switched)

	require.NoError(t, f.a.SimulateProgress(2*time.Second))

	testutil.Eventually(t, 2*time.Second, func() bool {
		return f.b.State() == domain.StatePlaying
	}, "next track plays on the new engine")
	assert.Equal(t, "b", f.service.State().Engine)
	assert.Equal(t, 1, f.events.count(domain.EventEngineSwapped))
}

func TestPlayQueue_ShutdownStopsAdvance(t *testing.T) {
	queue, f := newTestPlayQueue(t)
	queue.Add(shortTracks(2)...)
	require.NoError(t, queue.PlayAt(0))

	require.NoError(t, queue.Shutdown())
	require.NoError(t, f.a.SimulateProgress(2*time.Second))

	assert.Equal(t, 0, queue.CurrentIndex())
	assert.Equal(t, domain.StateIdle, f.a.State())
}
