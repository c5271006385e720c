package service

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tejashwikalptaru/playqueue/internal/adapter/repository/sqlite"
	"github.com/tejashwikalptaru/playqueue/internal/database"
	"github.com/tejashwikalptaru/playqueue/internal/domain"
	"github.com/tejashwikalptaru/playqueue/internal/logger"
)

// Helper to open a migrated in-memory library. Tests that check for leaked
// goroutines call the returned close function themselves.
func newTestStore(t *testing.T) (*database.Proxy, func()) {
	t.Helper()
	store, err := database.Open(context.Background(), database.Config{Migrations: sqlite.Migrations()}, logger.NewTestLogger())
	require.NoError(t, err)

	var once sync.Once
	closeFn := func() { once.Do(func() { _ = store.Close() }) }
	t.Cleanup(closeFn)
	return store, closeFn
}

// Helper to create a temporary test directory with audio files
func createTestMusicFolder(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	testFiles := []string{
		"song1.mp3",
		"song2.flac",
		"track.wav",
		"readme.txt", // Non-audio file
		"subdir/nested.mp3",
	}
	for _, file := range testFiles {
		full := filepath.Join(dir, file)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, nil, 0o644))
	}
	return dir
}

// recorder collects events of the given types.
type recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *recorder) record(e domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) count(t domain.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type() == t {
			n++
		}
	}
	return n
}

func (r *recorder) of(t domain.EventType) []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Event
	for _, e := range r.events {
		if e.Type() == t {
			out = append(out, e)
		}
	}
	return out
}
