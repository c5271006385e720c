package operation

import (
	"fmt"
	"sync/atomic"

	"github.com/tejashwikalptaru/playqueue/internal/domain"
)

// CancelToken is a cooperative cancellation flag owned by one operation.
// Setting it never interrupts work that already started.
type CancelToken struct {
	operation string
	canceled  atomic.Bool
}

// NewCancelToken creates an unset token for operation.
func NewCancelToken(operation string) *CancelToken {
	return &CancelToken{operation: operation}
}

// Cancel sets the flag. Returns false if it was already set.
// Safe to call from any goroutine.
func (t *CancelToken) Cancel() bool {
	return t.canceled.CompareAndSwap(false, true)
}

// IsCanceled reports whether the flag is set.
func (t *CancelToken) IsCanceled() bool {
	return t.canceled.Load()
}

// CheckForCanceled returns an error wrapping domain.ErrCanceled once the flag is set.
func (t *CancelToken) CheckForCanceled() error {
	if t.canceled.Load() {
		return fmt.Errorf("%s: %w", t.operation, domain.ErrCanceled)
	}
	return nil
}

// Reset clears the flag for the next round.
func (t *CancelToken) Reset() {
	t.canceled.Store(false)
}

// Operation returns the name of the owning operation.
func (t *CancelToken) Operation() string {
	return t.operation
}
