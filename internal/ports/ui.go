// Package ports define the view interfaces for operation and playback feedback.
// These interfaces allow a presenter to update any front end without depending on it.
package ports

import (
	"time"

	"github.com/tejashwikalptaru/playqueue/internal/domain"
)

// OperationView is the outbound surface for background operations.
//
// The presenter receives events from the event bus and calls these methods.
// Thread-safety: All methods are called from the main goroutine only.
type OperationView interface {
	// ShowStarted announces a new round of an operation.
	ShowStarted(operation, message string)

	// ShowProgress updates the progress display.
	// fraction: 0.0 to 1.0
	ShowProgress(operation string, fraction float64, message string)

	// ShowFinished reports normal completion.
	ShowFinished(operation string, progress domain.OperationProgress)

	// ShowCanceled reports that the operation was canceled.
	ShowCanceled(operation, message string)

	// ShowItemError reports a skipped work item.
	ShowItemError(operation, key string, err error)
}

// PlaybackView is the outbound surface for playback and engine signals.
// Thread-safety: All methods are called from the main goroutine only.
type PlaybackView interface {
	// ShowTrack reports that a track was opened on engine.
	ShowTrack(track domain.Track, engine string, length time.Duration)

	// ShowPosition updates the playback position.
	ShowPosition(position, length time.Duration)

	// ShowEngineSwapped reports that a pending engine became active.
	ShowEngineSwapped(from, to string)

	// ShowEngineError reports a failure signaled by the active engine.
	ShowEngineError(engine string, err error)

	// ShowEndOfStream reports that the open track played to its end.
	ShowEndOfStream(engine string)
}
