package service

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/tejashwikalptaru/playqueue/internal/domain"
	"github.com/tejashwikalptaru/playqueue/internal/ports"
)

// Player is the part of PlaybackService the play queue drives.
type Player interface {
	Open(track domain.Track) error
	Play() error
	Close() error
}

// PlayQueueService holds the ordered list of tracks to play and advances to
// the next one when the active engine reaches the end of a track.
// All operations are thread-safe via sync.RWMutex.
type PlayQueueService struct {
	// Dependencies (injected)
	logger   *slog.Logger
	playback Player
	bus      ports.EventBus

	// State
	queue        []domain.Track
	currentIndex int

	// advance is set by end of stream and consumed when the engine is idle
	advance bool

	mu   sync.RWMutex
	wg   sync.WaitGroup
	subs []domain.SubscriptionID
	shut bool
}

// NewPlayQueueService creates a play queue that plays through playback.
func NewPlayQueueService(
	logger *slog.Logger,
	playback Player,
	bus ports.EventBus,
) *PlayQueueService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &PlayQueueService{
		logger:       logger.With(slog.String("component", "play-queue")),
		playback:     playback,
		bus:          bus,
		queue:        make([]domain.Track, 0),
		currentIndex: -1,
	}

	s.subs = append(s.subs,
		bus.Subscribe(domain.EventEngineEndOfStream, s.handleEndOfStream),
		bus.Subscribe(domain.EventEngineStateChanged, s.handleStateChanged),
	)
	return s
}

// Add appends tracks to the end of the queue.
func (s *PlayQueueService) Add(tracks ...domain.Track) {
	s.mu.Lock()
	s.queue = append(s.queue, tracks...)
	s.mu.Unlock()
	s.publishChanged()
}

// Remove removes the track at index.
func (s *PlayQueueService) Remove(index int) error {
	s.mu.Lock()
	if index < 0 || index >= len(s.queue) {
		s.mu.Unlock()
		return domain.ErrTrackNotFound
	}
	s.queue = append(s.queue[:index], s.queue[index+1:]...)
	switch {
	case index < s.currentIndex:
		s.currentIndex--
	case index == s.currentIndex:
		s.currentIndex = -1
	}
	s.mu.Unlock()

	s.publishChanged()
	return nil
}

// Clear empties the queue.
func (s *PlayQueueService) Clear() {
	s.mu.Lock()
	s.queue = s.queue[:0]
	s.currentIndex = -1
	s.advance = false
	s.mu.Unlock()
	s.publishChanged()
}

// PlayAt opens and plays the track at index.
func (s *PlayQueueService) PlayAt(index int) error {
	s.mu.Lock()
	if index < 0 || index >= len(s.queue) {
		s.mu.Unlock()
		return domain.ErrTrackNotFound
	}
	s.currentIndex = index
	s.advance = false
	track := s.queue[index]
	s.mu.Unlock()

	s.publishChanged()
	return s.play(track)
}

// PlayNext plays the next track in the queue.
func (s *PlayQueueService) PlayNext() error {
	s.mu.Lock()
	if len(s.queue) == 0 {
		s.mu.Unlock()
		return domain.ErrQueueEmpty
	}
	if s.currentIndex >= len(s.queue)-1 {
		s.mu.Unlock()
		return domain.ErrEndOfQueue
	}
	s.currentIndex++
	track := s.queue[s.currentIndex]
	s.mu.Unlock()

	s.publishChanged()
	return s.play(track)
}

// PlayPrevious plays the previous track in the queue.
func (s *PlayQueueService) PlayPrevious() error {
	s.mu.Lock()
	if len(s.queue) == 0 {
		s.mu.Unlock()
		return domain.ErrQueueEmpty
	}
	if s.currentIndex <= 0 {
		s.mu.Unlock()
		return domain.ErrStartOfQueue
	}
	s.currentIndex--
	track := s.queue[s.currentIndex]
	s.mu.Unlock()

	s.publishChanged()
	return s.play(track)
}

func (s *PlayQueueService) play(track domain.Track) error {
	if err := s.playback.Open(track); err != nil {
		return err
	}
	return s.playback.Play()
}

// Tracks returns a copy of the queue.
func (s *PlayQueueService) Tracks() []domain.Track {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Track, len(s.queue))
	copy(out, s.queue)
	return out
}

// CurrentIndex returns the index of the current track, or -1.
func (s *PlayQueueService) CurrentIndex() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentIndex
}

// Len returns the number of queued tracks.
func (s *PlayQueueService) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.queue)
}

func (s *PlayQueueService) publishChanged() {
	s.bus.Publish(domain.NewQueueChangedEvent(s.Tracks(), s.CurrentIndex()))
}

func (s *PlayQueueService) handleEndOfStream(domain.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentIndex >= 0 {
		s.advance = true
	}
}

// handleStateChanged moves on once the engine has released the finished track.
// The next track is opened on its own goroutine since engine signals may be
// delivered while a playback command is still running.
func (s *PlayQueueService) handleStateChanged(event domain.Event) {
	e, ok := event.(domain.EngineStateChangedEvent)
	if !ok || !e.State.IsIdle() {
		return
	}

	s.mu.Lock()
	if !s.advance || s.shut {
		s.mu.Unlock()
		return
	}
	s.advance = false
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		err := s.PlayNext()
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrEndOfQueue):
			s.logger.Debug("end of play queue")
		default:
			s.logger.Warn("failed to play next track", slog.Any("error", err))
		}
	}()
}

// Shutdown stops auto advance and waits for a pending advance to finish.
func (s *PlayQueueService) Shutdown() error {
	s.mu.Lock()
	s.shut = true
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()

	for _, id := range subs {
		s.bus.Unsubscribe(id)
	}
	s.wg.Wait()
	return nil
}

// Verify that PlayQueueService implements the expected interface patterns
var _ interface {
	Add(...domain.Track)
	Remove(int) error
	Clear()
	PlayAt(int) error
	PlayNext() error
	PlayPrevious() error
	Tracks() []domain.Track
	CurrentIndex() int
	Len() int
	Shutdown() error
} = (*PlayQueueService)(nil)

var _ Player = (*PlaybackService)(nil)
