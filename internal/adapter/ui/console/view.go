// Package console renders operation and playback feedback as lines of text.
package console

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/tejashwikalptaru/playqueue/internal/domain"
	"github.com/tejashwikalptaru/playqueue/internal/ports"
)

const barWidth = 24

// View writes feedback lines to an io.Writer.
type View struct {
	out   io.Writer
	color bool

	mu sync.Mutex
}

// NewView creates a view writing to out. Colors are only used when color is true.
func NewView(out io.Writer, color bool) *View {
	return &View{out: out, color: color}
}

func (v *View) paint(s string, colors ...text.Color) string {
	if !v.color {
		return s
	}
	return text.Colors(colors).Sprint(s)
}

func (v *View) printf(format string, args ...any) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintf(v.out, format+"\n", args...)
}

// ShowStarted implements ports.OperationView.
func (v *View) ShowStarted(operation, message string) {
	v.printf("%s %s", v.paint("["+operation+"]", text.FgCyan), message)
}

// ShowProgress implements ports.OperationView.
func (v *View) ShowProgress(operation string, fraction float64, message string) {
	v.printf("%s %s %3.0f%% %s", v.paint("["+operation+"]", text.FgCyan), bar(fraction), fraction*100, message)
}

// ShowFinished implements ports.OperationView.
func (v *View) ShowFinished(operation string, progress domain.OperationProgress) {
	v.printf("%s %s (%d of %d)", v.paint("["+operation+"]", text.FgCyan),
		v.paint("done", text.FgGreen), progress.Processed, progress.Total)
}

// ShowCanceled implements ports.OperationView.
func (v *View) ShowCanceled(operation, message string) {
	v.printf("%s %s", v.paint("["+operation+"]", text.FgCyan), v.paint(message, text.FgYellow))
}

// ShowItemError implements ports.OperationView.
func (v *View) ShowItemError(operation, key string, err error) {
	v.printf("%s %s %s: %v", v.paint("["+operation+"]", text.FgCyan), v.paint("skipped", text.FgRed), key, err)
}

// ShowTrack implements ports.PlaybackView.
func (v *View) ShowTrack(track domain.Track, engine string, length time.Duration) {
	title := track.Title
	if track.Artist != "" {
		title = track.Artist + " - " + title
	}
	v.printf("%s %s [%s] on %s", v.paint("▶", text.FgGreen), title, formatDuration(length), engine)
}

// ShowPosition implements ports.PlaybackView.
func (v *View) ShowPosition(position, length time.Duration) {
	fraction := 0.0
	if length > 0 {
		fraction = float64(position) / float64(length)
	}
	v.printf("  %s %s / %s", bar(fraction), formatDuration(position), formatDuration(length))
}

// ShowEngineSwapped implements ports.PlaybackView.
func (v *View) ShowEngineSwapped(from, to string) {
	v.printf("engine switched from %s to %s", from, v.paint(to, text.Bold))
}

// ShowEngineError implements ports.PlaybackView.
func (v *View) ShowEngineError(engine string, err error) {
	v.printf("%s %s: %v", v.paint("engine error", text.FgRed), engine, err)
}

// ShowEndOfStream implements ports.PlaybackView.
func (v *View) ShowEndOfStream(engine string) {
	v.printf("%s finished on %s", v.paint("■", text.FgYellow), engine)
}

func bar(fraction float64) string {
	fraction = min(max(fraction, 0), 1)
	filled := int(fraction * barWidth)
	return "[" + strings.Repeat("=", filled) + strings.Repeat(" ", barWidth-filled) + "]"
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

var (
	_ ports.OperationView = (*View)(nil)
	_ ports.PlaybackView  = (*View)(nil)
)
