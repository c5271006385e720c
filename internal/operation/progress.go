// Package operation runs cancelable, progress reporting background operations
// on top of a serialized work queue.
package operation

import (
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tejashwikalptaru/playqueue/internal/domain"
	"github.com/tejashwikalptaru/playqueue/internal/ports"
)

// DefaultEpsilon is the smallest fraction change that produces a progress event.
const DefaultEpsilon = 0.01

// ProgressConfig holds the user facing strings and debounce knobs of an operation.
type ProgressConfig struct {
	// Epsilon is the minimum fraction change between two progress events.
	Epsilon float64

	// ActionMessage is shown when a round starts, e.g. "Importing media".
	ActionMessage string

	// ProgressMessage formats processed and total, e.g. "%d of %d".
	ProgressMessage string

	// CancelMessage is shown when the round is canceled.
	CancelMessage string

	// MinInterval throttles progress events in time. Zero disables it.
	MinInterval time.Duration
}

// DefaultProgressConfig returns a config with the default epsilon and labels.
func DefaultProgressConfig() ProgressConfig {
	return ProgressConfig{
		Epsilon:         DefaultEpsilon,
		ActionMessage:   "Working",
		ProgressMessage: "%d of %d",
		CancelMessage:   "Canceled",
	}
}

func (c ProgressConfig) withDefaults() ProgressConfig {
	d := DefaultProgressConfig()
	if c.Epsilon <= 0 {
		c.Epsilon = d.Epsilon
	}
	if c.ActionMessage == "" {
		c.ActionMessage = d.ActionMessage
	}
	if c.ProgressMessage == "" {
		c.ProgressMessage = d.ProgressMessage
	}
	if c.CancelMessage == "" {
		c.CancelMessage = d.CancelMessage
	}
	return c
}

// ProgressReporter turns processed/total counters into debounced progress events.
// Thread-safe. Events are published without holding the reporter's lock.
type ProgressReporter struct {
	operation string
	bus       ports.EventBus
	cfg       ProgressConfig

	mu        sync.Mutex
	processed int
	total     int
	last      float64
	completed bool
	limiter   *rate.Limiter
}

// NewProgressReporter creates a reporter that publishes domain.ProgressEvent on bus.
func NewProgressReporter(operation string, bus ports.EventBus, cfg ProgressConfig) *ProgressReporter {
	p := &ProgressReporter{
		operation: operation,
		bus:       bus,
		cfg:       cfg.withDefaults(),
	}
	p.limiter = p.newLimiter()
	return p
}

func (p *ProgressReporter) newLimiter() *rate.Limiter {
	if p.cfg.MinInterval <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(p.cfg.MinInterval), 1)
}

// Config returns the effective configuration.
func (p *ProgressReporter) Config() ProgressConfig {
	return p.cfg
}

// Report adds processedDelta to the processed counter and raises the total to
// totalHint if it is larger. A progress event is published when the fraction
// moved by more than Epsilon since the last event, or when it first reaches 1.0.
// Returns true if an event was published.
func (p *ProgressReporter) Report(processedDelta, totalHint int, detail string) bool {
	p.mu.Lock()
	if totalHint > p.total {
		p.total = totalHint
	}
	p.processed += processedDelta
	if p.processed < 0 {
		p.processed = 0
	}
	if p.processed > p.total {
		p.processed = p.total
	}

	progress := domain.OperationProgress{Processed: p.processed, Total: p.total}
	if p.total == 0 {
		p.mu.Unlock()
		return false
	}
	fraction := float64(p.processed) / float64(p.total)

	emit := false
	if fraction < 1 {
		p.completed = false
	}
	switch {
	case fraction < 0 || fraction > 1:
	case fraction == 1:
		// Completion is never debounced or throttled
		emit = !p.completed
		p.completed = true
	case math.Abs(fraction-p.last) > p.cfg.Epsilon:
		emit = p.limiter == nil || p.limiter.Allow()
	}
	if emit {
		p.last = fraction
	}
	p.mu.Unlock()

	if !emit {
		return false
	}

	if p.bus != nil {
		p.bus.Publish(domain.NewProgressEvent(p.operation, fraction, p.label(progress, detail), progress))
	}
	return true
}

func (p *ProgressReporter) label(progress domain.OperationProgress, detail string) string {
	msg := fmt.Sprintf(p.cfg.ProgressMessage, progress.Processed, progress.Total)
	if detail != "" {
		msg += ": " + detail
	}
	return msg
}

// Reset zeroes the counters for a new round.
func (p *ProgressReporter) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.processed = 0
	p.total = 0
	p.last = 0
	p.completed = false
	p.limiter = p.newLimiter()
}

// Progress returns the current counters.
func (p *ProgressReporter) Progress() domain.OperationProgress {
	p.mu.Lock()
	defer p.mu.Unlock()
	return domain.OperationProgress{Processed: p.processed, Total: p.total}
}

// LastFraction returns the fraction carried by the last published event.
func (p *ProgressReporter) LastFraction() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}
