package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tejashwikalptaru/playqueue/internal/adapter/audio/mock"
	"github.com/tejashwikalptaru/playqueue/internal/adapter/eventbus"
	"github.com/tejashwikalptaru/playqueue/internal/adapter/repository/sqlite"
	"github.com/tejashwikalptaru/playqueue/internal/domain"
	"github.com/tejashwikalptaru/playqueue/internal/logger"
	"github.com/tejashwikalptaru/playqueue/internal/operation"
	"github.com/tejashwikalptaru/playqueue/internal/testutil"
)

type importFixture struct {
	service *ImportService
	bus     *eventbus.SyncEventBus
	reader  *mock.MetadataReader
	tracks  *sqlite.TrackRepository
	events  *recorder
	close   func()
}

// Helper to create a test import service backed by an in-memory library
func newTestImportService(t *testing.T) *importFixture {
	t.Helper()
	store, closeStore := newTestStore(t)
	bus := eventbus.NewSyncEventBus()

	f := &importFixture{
		bus:    bus,
		reader: &mock.MetadataReader{Fail: map[string]error{}},
		tracks: sqlite.NewTrackRepository(store),
		events: &recorder{},
	}
	f.service = NewImportService(logger.NewTestLogger(), f.reader, f.tracks, bus, operation.ProgressConfig{})
	bus.SubscribeAll(f.events.record)

	f.close = func() {
		_ = f.service.Shutdown()
		closeStore()
		_ = bus.Close()
	}
	t.Cleanup(f.close)
	return f
}

func TestIsFormatSupported(t *testing.T) {
	// Supported formats
	assert.True(t, IsFormatSupported("song.mp3"))
	assert.True(t, IsFormatSupported("track.flac"))
	assert.True(t, IsFormatSupported("MODULE.MOD"))
	assert.True(t, IsFormatSupported("/path/to/song.MP3")) // Case-insensitive

	// Unsupported formats
	assert.False(t, IsFormatSupported("readme.txt"))
	assert.False(t, IsFormatSupported("noextension"))

	formats := SupportedFormats()
	formats[0] = "changed"
	assert.Equal(t, ".mp3", SupportedFormats()[0], "returns a copy")
}

func TestImportService_QueueDirectoryAndDrain(t *testing.T) {
	f := newTestImportService(t)
	ctx := context.Background()
	dir := createTestMusicFolder(t)

	n, err := f.service.QueuePath(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 4, n, "readme.txt is skipped")
	assert.Equal(t, 4, f.service.Pending())

	// Queuing the same files again is a no-op
	n, err = f.service.QueuePath(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, f.service.Drain(ctx))

	count, err := f.tracks.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
	assert.Equal(t, 4, f.service.Imported())

	assert.Equal(t, 1, f.events.count(domain.EventOperationStarted))
	assert.Equal(t, 4, f.events.count(domain.EventTrackImported))
	assert.Equal(t, 1, f.events.count(domain.EventOperationFinished))
	assert.Zero(t, f.events.count(domain.EventOperationCanceled))

	// Lexical walk order
	imported := f.events.of(domain.EventTrackImported)
	assert.Equal(t, "song1", imported[0].(domain.TrackImportedEvent).Track.Title)

	// Last progress event is the completion
	progress := f.events.of(domain.EventOperationProgress)
	require.NotEmpty(t, progress)
	last := progress[len(progress)-1].(domain.ProgressEvent)
	assert.Equal(t, 1.0, last.Fraction)
	assert.Contains(t, last.Message, "4 of 4")

	started := f.events.of(domain.EventOperationStarted)[0].(domain.OperationStartedEvent)
	assert.Equal(t, "Importing media", started.Message)
}

func TestImportService_QueuePathErrors(t *testing.T) {
	f := newTestImportService(t)
	ctx := context.Background()
	dir := createTestMusicFolder(t)

	_, err := f.service.QueuePath(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidFilePath)

	_, err = f.service.QueuePath(ctx, filepath.Join(dir, "missing.mp3"))
	assert.ErrorIs(t, err, domain.ErrFileNotFound)

	_, err = f.service.QueuePath(ctx, filepath.Join(dir, "readme.txt"))
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)

	n, err := f.service.QueuePath(ctx, filepath.Join(dir, "song1.mp3"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = f.service.QueuePath(canceled, dir)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestImportService_FailedFileIsSkipped(t *testing.T) {
	f := newTestImportService(t)
	ctx := context.Background()
	dir := createTestMusicFolder(t)

	broken := filepath.Join(dir, "song2.flac")
	f.reader.Fail[broken] = errors.New("corrupt header")

	_, err := f.service.QueuePath(ctx, dir)
	require.NoError(t, err)
	require.NoError(t, f.service.Drain(ctx))

	assert.Equal(t, 3, f.service.Imported())
	failed := f.events.of(domain.EventItemFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, broken, failed[0].(domain.ItemFailedEvent).Key)
	assert.Equal(t, 1, f.events.count(domain.EventOperationFinished))

	_, err = f.tracks.FindByPath(ctx, broken)
	assert.ErrorIs(t, err, domain.ErrTrackNotFound)
}

func TestImportService_CancelRequestedEvent(t *testing.T) {
	f := newTestImportService(t)
	ctx := context.Background()
	dir := createTestMusicFolder(t)

	// Cancel once the second track is stored
	f.bus.Subscribe(domain.EventTrackImported, func(domain.Event) {
		if f.service.Imported() == 2 {
			f.bus.Publish(domain.NewCancelRequestedEvent(ImportOperation))
		}
	})

	_, err := f.service.QueuePath(ctx, dir)
	require.NoError(t, err)

	err = f.service.Drain(ctx)
	assert.ErrorIs(t, err, domain.ErrCanceled)

	assert.Equal(t, 2, f.service.Imported())
	assert.Zero(t, f.service.Pending())
	assert.Equal(t, 1, f.events.count(domain.EventOperationCanceled))
	assert.Zero(t, f.events.count(domain.EventOperationFinished))

	canceled := f.events.of(domain.EventOperationCanceled)[0].(domain.OperationCanceledEvent)
	assert.Equal(t, "Import canceled", canceled.Message)

	count, err := f.tracks.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// The next round starts clean
	n, err := f.service.QueuePath(ctx, filepath.Join(dir, "track.wav"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, f.service.Drain(ctx))
	assert.Equal(t, 1, f.events.count(domain.EventOperationFinished))
}

func TestImportService_Worker(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	f := newTestImportService(t)
	ctx := context.Background()
	dir := createTestMusicFolder(t)

	f.service.Start(ctx)

	_, err := f.service.QueuePath(ctx, dir)
	require.NoError(t, err)

	testutil.Eventually(t, 2*time.Second, func() bool {
		return f.events.count(domain.EventOperationFinished) == 1
	}, "import finished")
	assert.Equal(t, 4, f.service.Imported())
	assert.False(t, f.service.IsImporting())

	f.close()
}
