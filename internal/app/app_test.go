package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tejashwikalptaru/playqueue/internal/adapter/audio/mock"
	"github.com/tejashwikalptaru/playqueue/internal/config"
	"github.com/tejashwikalptaru/playqueue/internal/database"
	"github.com/tejashwikalptaru/playqueue/internal/domain"
	"github.com/tejashwikalptaru/playqueue/internal/logger"
	"github.com/tejashwikalptaru/playqueue/internal/testutil"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Database.Path = filepath.Join(t.TempDir(), "library.db")
	cfg.Progress.MinInterval.Duration = 0
	return cfg
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, make([]byte, 128), 0o644))
}

func newTestApp(t *testing.T, cfg *config.Config, opts ...Option) (*Application, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	opts = append([]Option{WithLogger(logger.NewTestLogger()), WithOutput(&out, false)}, opts...)
	app, err := NewApplication(context.Background(), cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Shutdown() })
	return app, &out
}

func TestNewApplication(t *testing.T) {
	app, _ := newTestApp(t, testConfig(t))

	assert.NotNil(t, app.Playback())
	assert.NotNil(t, app.PlayQueue())
	assert.NotNil(t, app.Import())
	assert.NotNil(t, app.Preferences())
	assert.NotNil(t, app.Presenter())
	assert.NotNil(t, app.Bus())
	assert.NotNil(t, app.Tracks())

	// The software decoder is registered first and is usable everywhere
	assert.Equal(t, "decoder", app.Engines().ActiveID())
	assert.Len(t, app.Engines().Slots(), 2)
	assert.InDelta(t, 0.8, app.Playback().Volume(), 1e-9)
}

func TestNewApplication_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Log.Format = "xml"

	_, err := NewApplication(context.Background(), cfg, WithLogger(logger.NewTestLogger()))
	var validation *domain.ValidationError
	assert.True(t, errors.As(err, &validation))
}

func TestNewApplication_NoUsableEngines(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	broken := mock.NewEngine("broken", "Broken")
	broken.SetSelfTestError(errors.New("no device"))

	_, err := NewApplication(context.Background(), testConfig(t),
		WithLogger(logger.NewTestLogger()),
		WithEngines(mock.FactoryFor(broken)))
	assert.ErrorIs(t, err, domain.ErrNoUsableEngines)
	assert.Equal(t, 1, broken.DisposeCalls())
}

func TestNewApplication_LibraryLocked(t *testing.T) {
	cfg := testConfig(t)
	newTestApp(t, cfg)

	_, err := NewApplication(context.Background(), cfg, WithLogger(logger.NewTestLogger()))
	assert.ErrorIs(t, err, domain.ErrDatabaseLocked)
}

func TestApplication_PreferencesPersist(t *testing.T) {
	cfg := testConfig(t)

	app, err := NewApplication(context.Background(), cfg, WithLogger(logger.NewTestLogger()), WithOutput(&bytes.Buffer{}, false))
	require.NoError(t, err)
	require.NoError(t, app.Playback().SetVolume(0.35))
	switched, err := app.Playback().SwitchEngine(SimulatedEngineID)
	require.NoError(t, err)
	require.True(t, switched)
	require.NoError(t, app.Shutdown())

	// A second run restores both
	app, _ = newTestApp(t, cfg)
	assert.InDelta(t, 0.35, app.Playback().Volume(), 1e-9)
	assert.Equal(t, SimulatedEngineID, app.Engines().ActiveID())
}

func TestApplication_ConfiguredEngineWins(t *testing.T) {
	cfg := testConfig(t)
	cfg.Engine.Preferred = SimulatedEngineID

	app, _ := newTestApp(t, cfg)
	assert.Equal(t, SimulatedEngineID, app.Engines().ActiveID())
}

func TestApplication_ImportThroughPresenter(t *testing.T) {
	app, out := newTestApp(t, testConfig(t))
	dir := t.TempDir()
	for _, name := range []string{"a.mp3", "b.flac", "notes.txt"} {
		writeFile(t, filepath.Join(dir, name))
	}

	n, err := app.Import().QueuePath(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.NoError(t, app.Import().Drain(context.Background()))

	count, err := app.Tracks().Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// Presenter output only appears once the main loop runs
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	app.Run(ctx)

	assert.Contains(t, out.String(), "[import] Importing media")
	assert.Contains(t, out.String(), "[import] done (2 of 2)")
}

func TestApplication_Shutdown(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	app, err := NewApplication(context.Background(), testConfig(t),
		WithLogger(logger.NewTestLogger()), WithOutput(&bytes.Buffer{}, false))
	require.NoError(t, err)

	require.NoError(t, app.Shutdown())
	require.NoError(t, app.Shutdown(), "shutdown is idempotent")
	assert.Equal(t, database.StateClosed, app.db.State())
}

func TestReadBuildInfo(t *testing.T) {
	info := ReadBuildInfo()
	assert.NotEmpty(t, info.Version)
	assert.NotEmpty(t, info.GoVersion)
	assert.True(t, strings.HasPrefix(info.String(), "playqueue "))
	assert.Contains(t, info.String(), info.GoVersion)

	info.Commit = "0123456789abcdef"
	info.Modified = true
	assert.Equal(t, "0123456789ab", info.ShortCommit())
	assert.Contains(t, info.String(), "commit 0123456789ab-dirty")
}
