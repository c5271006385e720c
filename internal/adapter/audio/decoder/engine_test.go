package decoder

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tejashwikalptaru/playqueue/internal/domain"
	"github.com/tejashwikalptaru/playqueue/internal/logger"
	"github.com/tejashwikalptaru/playqueue/internal/ports"
	"github.com/tejashwikalptaru/playqueue/internal/testutil"
)

const testRate = 8000

// writeWAV writes a mono 16-bit PCM file of the given length filled with a ramp.
func writeWAV(t *testing.T, length time.Duration) string {
	t.Helper()
	samples := int(length.Seconds() * testRate)
	data := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(int16(i%2000-1000)))
	}

	header := make([]byte, 44)
	copy(header[0:], "RIFF")
	binary.LittleEndian.PutUint32(header[4:], uint32(36+len(data)))
	copy(header[8:], "WAVE")
	copy(header[12:], "fmt ")
	binary.LittleEndian.PutUint32(header[16:], 16)
	binary.LittleEndian.PutUint16(header[20:], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:], 1) // mono
	binary.LittleEndian.PutUint32(header[24:], testRate)
	binary.LittleEndian.PutUint32(header[28:], testRate*2)
	binary.LittleEndian.PutUint16(header[32:], 2)
	binary.LittleEndian.PutUint16(header[34:], 16)
	copy(header[36:], "data")
	binary.LittleEndian.PutUint32(header[40:], uint32(len(data)))

	path := filepath.Join(t.TempDir(), "tone.wav")
	require.NoError(t, os.WriteFile(path, append(header, data...), 0o644))
	return path
}

type signals struct {
	mu     sync.Mutex
	events []ports.EngineEvent
}

func (s *signals) record(e ports.EngineEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *signals) count(kind ports.EngineEventKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func newTestEngine(t *testing.T) (*Engine, *signals) {
	t.Helper()
	e := NewEngine(logger.NewTestLogger(), WithTick(5*time.Millisecond))
	rec := &signals{}
	e.Subscribe(rec.record)
	t.Cleanup(func() { _ = e.Dispose() })
	return e, rec
}

func TestEngine_SelfTest(t *testing.T) {
	e, _ := newTestEngine(t)
	assert.NoError(t, e.SelfTest())
	assert.Equal(t, ID, e.ID())
	assert.Equal(t, "Software decoder", e.Name())
}

func TestEngine_OpenWAV(t *testing.T) {
	e, rec := newTestEngine(t)
	path := writeWAV(t, 2*time.Second)

	require.NoError(t, e.Open(domain.Track{Path: path, Title: "tone"}))
	assert.Equal(t, domain.StateLoaded, e.State())
	assert.Equal(t, 2*time.Second, e.Length())
	assert.Zero(t, e.Position())
	assert.Equal(t, 2, rec.count(ports.EngineStateChanged), "loading then loaded")

	require.NoError(t, e.SetPosition(time.Second))
	assert.Equal(t, time.Second, e.Position())
	assert.ErrorIs(t, e.SetPosition(3*time.Second), domain.ErrInvalidPosition)

	require.NoError(t, e.Close())
	assert.Equal(t, domain.StateIdle, e.State())
	assert.Zero(t, e.Length())
}

func TestEngine_OpenErrors(t *testing.T) {
	e, rec := newTestEngine(t)

	assert.ErrorIs(t, e.Open(domain.Track{}), domain.ErrInvalidFilePath)

	err := e.Open(domain.Track{Path: "/music/song.ogg"})
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)

	err = e.Open(domain.Track{Path: filepath.Join(t.TempDir(), "missing.wav")})
	var engineErr *domain.EngineError
	require.True(t, errors.As(err, &engineErr))
	assert.Equal(t, "open", engineErr.Op)

	garbage := filepath.Join(t.TempDir(), "garbage.wav")
	require.NoError(t, os.WriteFile(garbage, []byte("not a wave file at all"), 0o644))
	err = e.Open(domain.Track{Path: garbage})
	require.True(t, errors.As(err, &engineErr))
	assert.Equal(t, "decode", engineErr.Op)
	assert.Equal(t, domain.StateIdle, e.State())

	assert.Equal(t, 3, rec.count(ports.EngineErrorOccurred))
	assert.ErrorIs(t, e.Play(), domain.ErrNoTrackLoaded)
}

func TestEngine_PlayPause(t *testing.T) {
	e, _ := newTestEngine(t)
	require.NoError(t, e.Open(domain.Track{Path: writeWAV(t, 5*time.Second)}))

	require.NoError(t, e.Play())
	assert.Equal(t, domain.StatePlaying, e.State())
	testutil.Eventually(t, 2*time.Second, func() bool {
		return e.Position() > 0
	}, "position advances while playing")

	require.NoError(t, e.Pause())
	assert.Equal(t, domain.StatePaused, e.State())
	paused := e.Position()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, paused, e.Position(), "position holds while paused")
}

func TestEngine_EndOfStream(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	e := NewEngine(logger.NewTestLogger(), WithTick(5*time.Millisecond))
	rec := &signals{}
	e.Subscribe(rec.record)

	require.NoError(t, e.Open(domain.Track{Path: writeWAV(t, 50*time.Millisecond)}))
	require.NoError(t, e.Play())

	testutil.Eventually(t, 2*time.Second, func() bool {
		return rec.count(ports.EngineEndOfStream) == 1
	}, "end of stream")
	testutil.Eventually(t, time.Second, func() bool {
		return e.State() == domain.StateIdle
	}, "closed after end of stream")

	require.NoError(t, e.Dispose())
	assert.Error(t, e.Open(domain.Track{Path: writeWAV(t, time.Second)}))
}

func TestEngine_Volume(t *testing.T) {
	e, _ := newTestEngine(t)

	require.NoError(t, e.SetVolume(0.5))
	assert.Equal(t, 0.5, e.Volume())
	assert.ErrorIs(t, e.SetVolume(2), domain.ErrInvalidVolume)

	require.NoError(t, e.Open(domain.Track{Path: writeWAV(t, time.Second)}))
	assert.InDelta(t, -1.0, e.gain.Volume, 1e-9)

	require.NoError(t, e.SetVolume(0))
	assert.True(t, e.gain.Silent)
}

func TestEngine_ConcurrentPlayPause(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	e := NewEngine(logger.NewTestLogger(), WithTick(time.Millisecond))
	require.NoError(t, e.Open(domain.Track{Path: writeWAV(t, 5*time.Second)}))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if (i+j)%2 == 0 {
					_ = e.Play()
				} else {
					_ = e.Pause()
				}
			}
		}(i)
	}
	wg.Wait()

	require.NoError(t, e.Dispose())
	e.mu.Lock()
	defer e.mu.Unlock()
	assert.Nil(t, e.loop)
	assert.Empty(t, e.live, "every render loop exited")
}
