// Package decoder provides a playback engine that decodes tracks in software.
//
// Audio is rendered in real time into a discarding sink, so the engine keeps
// real positions, lengths and end-of-stream timing without an output device.
package decoder

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/wav"
	"github.com/tejashwikalptaru/playqueue/internal/domain"
	"github.com/tejashwikalptaru/playqueue/internal/ports"
)

const (
	// ID is the engine identifier used in preferences.
	ID = "decoder"

	defaultTick = 20 * time.Millisecond
	chunkSize   = 512
)

// Extensions lists the file extensions the engine can decode.
var Extensions = []string{".wav", ".mp3", ".flac"}

type decodeFunc func(f *os.File) (beep.StreamSeekCloser, beep.Format, error)

var decoders = map[string]decodeFunc{
	".wav":  func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) { return wav.Decode(f) },
	".mp3":  func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) { return mp3.Decode(f) },
	".flac": func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) { return flac.Decode(f) },
}

// Engine decodes tracks with beep and renders them in real time.
//
// Thread-safety: This implementation is thread-safe. Listeners are called
// without holding the engine lock.
type Engine struct {
	logger *slog.Logger
	tick   time.Duration

	mu       sync.Mutex
	state    domain.PlayerState
	track    *domain.Track
	stream   beep.StreamSeekCloser
	format   beep.Format
	gain     *effects.Volume
	level    float64
	buf      [][2]float64
	loop     *renderLoop
	live     map[*renderLoop]struct{}
	disposed bool

	listeners listeners
}

// renderLoop is one run of the render goroutine. done closes when it exits.
type renderLoop struct {
	stop chan struct{}
	done chan struct{}
}

// Option configures an Engine.
type Option func(*Engine)

// WithTick sets how often the render loop pulls samples.
func WithTick(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.tick = d
		}
	}
}

// NewEngine creates a decoder engine.
func NewEngine(logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		logger: logger.With(slog.String("engine", ID)),
		tick:   defaultTick,
		level:  1.0,
		buf:    make([][2]float64, chunkSize),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Factory returns an engine factory for the registry.
func Factory(opts ...Option) ports.EngineFactory {
	return func(logger *slog.Logger) (ports.PlaybackEngine, error) {
		return NewEngine(logger, opts...), nil
	}
}

// ID returns the engine identifier.
func (e *Engine) ID() string { return ID }

// Name returns the human-readable engine name.
func (e *Engine) Name() string { return "Software decoder" }

// SelfTest renders a short silent buffer through the volume stage.
func (e *Engine) SelfTest() error {
	format := beep.Format{SampleRate: 44100, NumChannels: 2, Precision: 2}
	silence := beep.Silence(format.SampleRate.N(10 * time.Millisecond))
	gain := &effects.Volume{Streamer: silence, Base: 2}

	buf := make([][2]float64, chunkSize)
	total := 0
	for {
		n, ok := gain.Stream(buf)
		total += n
		if !ok {
			break
		}
	}
	if total != format.SampleRate.N(10*time.Millisecond) {
		return domain.NewEngineError(ID, "selftest", fmt.Errorf("rendered %d samples", total))
	}
	return nil
}

// Open decodes the header of track and moves to StateLoaded.
func (e *Engine) Open(track domain.Track) error {
	if track.Path == "" {
		return domain.ErrInvalidFilePath
	}

	ext := strings.ToLower(filepath.Ext(track.Path))
	decode, ok := decoders[ext]
	if !ok {
		return e.fail("open", fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, ext))
	}

	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return domain.NewEngineError(ID, "open", fmt.Errorf("engine disposed"))
	}
	e.mu.Unlock()

	// Release any previous track first
	if err := e.Close(); err != nil {
		return err
	}

	f, err := os.Open(track.Path)
	if err != nil {
		return e.fail("open", err)
	}
	e.setState(domain.StateLoading, &track)

	stream, format, err := decode(f)
	if err != nil {
		_ = f.Close()
		e.setState(domain.StateIdle, nil)
		return e.fail("decode", err)
	}

	e.mu.Lock()
	t := track
	e.track = &t
	e.stream = stream
	e.format = format
	e.gain = &effects.Volume{Streamer: stream, Base: 2}
	e.applyLevel()
	e.mu.Unlock()

	e.logger.Debug("track decoded",
		slog.String("path", track.Path),
		slog.Int("sample_rate", int(format.SampleRate)),
		slog.Int("channels", format.NumChannels))

	e.setState(domain.StateLoaded, &t)
	return nil
}

// fail emits an error signal and returns the wrapped error.
func (e *Engine) fail(op string, err error) error {
	engineErr := domain.NewEngineError(ID, op, err)
	e.listeners.emit(ports.EngineEvent{Kind: ports.EngineErrorOccurred, Err: engineErr})
	return engineErr
}

// Play starts or resumes rendering.
func (e *Engine) Play() error {
	e.mu.Lock()
	if e.stream == nil {
		e.mu.Unlock()
		return domain.ErrNoTrackLoaded
	}
	if e.loop == nil {
		l := &renderLoop{stop: make(chan struct{}), done: make(chan struct{})}
		if e.live == nil {
			e.live = make(map[*renderLoop]struct{})
		}
		e.loop = l
		e.live[l] = struct{}{}
		go e.render(l)
	}
	track := e.track
	e.mu.Unlock()

	e.setState(domain.StatePlaying, track)
	return nil
}

// Pause stops rendering and keeps the position.
func (e *Engine) Pause() error {
	e.mu.Lock()
	if e.stream == nil {
		e.mu.Unlock()
		return domain.ErrNoTrackLoaded
	}
	playing := e.state == domain.StatePlaying
	track := e.track
	e.mu.Unlock()

	if !playing {
		return nil
	}
	e.stopRender()

	// The track may have ended while the loop was stopping
	e.mu.Lock()
	open := e.stream != nil
	e.mu.Unlock()
	if open {
		e.setState(domain.StatePaused, track)
	}
	return nil
}

// Close stops rendering and releases the open track.
func (e *Engine) Close() error {
	e.stopRender()

	e.mu.Lock()
	stream := e.stream
	e.stream = nil
	e.gain = nil
	e.track = nil
	e.mu.Unlock()

	if stream != nil {
		if err := stream.Close(); err != nil {
			e.logger.Debug("failed to close stream", slog.Any("error", err))
		}
	}

	e.setState(domain.StateIdle, nil)
	return nil
}

// stopRender stops the render loop and waits for it, unless called from the
// loop itself, which detaches before finishing.
func (e *Engine) stopRender() {
	e.mu.Lock()
	l := e.loop
	e.loop = nil
	e.mu.Unlock()

	if l != nil {
		close(l.stop)
		<-l.done
	}
}

func (e *Engine) render(l *renderLoop) {
	defer func() {
		e.mu.Lock()
		delete(e.live, l)
		e.mu.Unlock()
		close(l.done)
	}()

	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()
	last := time.Now()

	for {
		select {
		case <-l.stop:
			return
		case now := <-ticker.C:
			elapsed := now.Sub(last)
			last = now
			ended, err := e.advance(elapsed)
			if err != nil {
				_ = e.fail("stream", err)
			}
			if ended {
				e.finish(l)
				return
			}
		}
	}
}

// advance renders elapsed worth of samples. Returns true at the end of the stream.
func (e *Engine) advance(elapsed time.Duration) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != domain.StatePlaying || e.gain == nil {
		return false, nil
	}

	n := e.format.SampleRate.N(elapsed)
	for n > 0 {
		k := min(n, len(e.buf))
		got, ok := e.gain.Stream(e.buf[:k])
		n -= got
		if !ok || got < k {
			return true, e.stream.Err()
		}
	}
	return false, nil
}

// finish detaches the loop, signals the end of the stream and closes the track.
func (e *Engine) finish(l *renderLoop) {
	e.mu.Lock()
	if e.loop == l {
		e.loop = nil
	}
	track := e.track
	e.mu.Unlock()

	e.logger.Debug("end of stream")
	e.listeners.emit(ports.EngineEvent{Kind: ports.EngineEndOfStream, Track: track})
	_ = e.Close()
}

func (e *Engine) setState(state domain.PlayerState, track *domain.Track) {
	e.mu.Lock()
	if e.state == state {
		e.mu.Unlock()
		return
	}
	e.state = state
	e.mu.Unlock()

	e.listeners.emit(ports.EngineEvent{Kind: ports.EngineStateChanged, State: state, Track: track})
}

// State returns the current engine state.
func (e *Engine) State() domain.PlayerState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Volume returns the current volume.
func (e *Engine) Volume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.level
}

// SetVolume sets the volume (0.0 to 1.0).
func (e *Engine) SetVolume(volume float64) error {
	if volume < 0.0 || volume > 1.0 {
		return domain.ErrInvalidVolume
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.level = volume
	e.applyLevel()
	return nil
}

// applyLevel maps the linear level onto the volume effect. Caller holds mu.
func (e *Engine) applyLevel() {
	if e.gain == nil {
		return
	}
	e.gain.Silent = e.level == 0
	if e.level > 0 {
		e.gain.Volume = math.Log2(e.level)
	}
}

// Position returns the playback position of the open track.
func (e *Engine) Position() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stream == nil {
		return 0
	}
	return e.format.SampleRate.D(e.stream.Position())
}

// SetPosition seeks within the open track.
func (e *Engine) SetPosition(position time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stream == nil {
		return domain.ErrNoTrackLoaded
	}
	if position < 0 || position > e.format.SampleRate.D(e.stream.Len()) {
		return domain.ErrInvalidPosition
	}
	if err := e.stream.Seek(e.format.SampleRate.N(position)); err != nil {
		return domain.NewEngineError(ID, "seek", err)
	}
	return nil
}

// Length returns the length of the open track.
func (e *Engine) Length() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stream == nil {
		return 0
	}
	return e.format.SampleRate.D(e.stream.Len())
}

// Subscribe registers a listener for engine signals.
func (e *Engine) Subscribe(listener ports.EngineListener) func() {
	return e.listeners.add(listener)
}

// Dispose closes the open track. Later Open calls fail.
func (e *Engine) Dispose() error {
	err := e.Close()

	e.mu.Lock()
	e.disposed = true
	var finishing []*renderLoop
	for l := range e.live {
		finishing = append(finishing, l)
	}
	e.mu.Unlock()

	// Loops that detached at the end of a stream may still be closing the track
	for _, l := range finishing {
		<-l.done
	}
	e.logger.Debug("engine disposed")
	return err
}

// listeners is a set of engine listeners called in subscription order.
type listeners struct {
	mu   sync.Mutex
	next int
	set  map[int]ports.EngineListener
}

func (l *listeners) add(listener ports.EngineListener) func() {
	l.mu.Lock()
	if l.set == nil {
		l.set = make(map[int]ports.EngineListener)
	}
	id := l.next
	l.next++
	l.set[id] = listener
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.set, id)
			l.mu.Unlock()
		})
	}
}

func (l *listeners) emit(event ports.EngineEvent) {
	l.mu.Lock()
	batch := make([]ports.EngineListener, 0, len(l.set))
	for i := 0; i < l.next; i++ {
		if fn, ok := l.set[i]; ok {
			batch = append(batch, fn)
		}
	}
	l.mu.Unlock()

	for _, fn := range batch {
		fn(event)
	}
}

// Verify that Engine implements the PlaybackEngine interface
var _ ports.PlaybackEngine = (*Engine)(nil)
