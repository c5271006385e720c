package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/tejashwikalptaru/playqueue/internal/domain"
)

// CommandKind selects how a command is executed and what it returns.
type CommandKind int

const (
	// KindReader returns a materialized *ResultSet
	KindReader CommandKind = iota

	// KindScalar returns the first column of the first row, or nil
	KindScalar

	// KindExecute returns an ExecResult
	KindExecute

	// kindFunc runs a function against the connection (migrations)
	kindFunc
)

// String returns the kind name used in errors and logs.
func (k CommandKind) String() string {
	switch k {
	case KindReader:
		return "query"
	case KindScalar:
		return "scalar"
	case KindExecute:
		return "execute"
	case kindFunc:
		return "func"
	default:
		return "unknown"
	}
}

// CommandStatus is the explicit result state of a command.
type CommandStatus int32

const (
	StatusPending CommandStatus = iota
	StatusCompleted
	StatusFailed
)

// String returns a human-readable representation of the status.
func (s CommandStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ResultSet is a fully read query result.
type ResultSet struct {
	Columns []string
	Rows    [][]any
}

// Len returns the number of rows.
func (r *ResultSet) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}

// ExecResult is the outcome of a KindExecute command.
type ExecResult struct {
	RowsAffected int64
	LastInsertID int64
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Command is a unit of database work executed by the proxy's writer goroutine.
// A command is submitted and executed at most once; its result is set at most
// once. Callers block on Wait, which returns when the result is available.
type Command struct {
	ID   string
	Kind CommandKind
	Text string
	Args []any

	fn func(ctx context.Context, q queryer) (any, error)

	submitted atomic.Bool
	status    atomic.Int32
	once      sync.Once
	done      chan struct{}
	result    any
	err       error
}

// NewCommand creates a pending command.
func NewCommand(kind CommandKind, text string, args ...any) *Command {
	return &Command{
		ID:   uuid.NewString(),
		Kind: kind,
		Text: text,
		Args: args,
		done: make(chan struct{}),
	}
}

func newFuncCommand(name string, fn func(ctx context.Context, q queryer) (any, error)) *Command {
	cmd := NewCommand(kindFunc, name)
	cmd.fn = fn
	return cmd
}

// Status returns the command status.
func (c *Command) Status() CommandStatus {
	return CommandStatus(c.status.Load())
}

// Done is closed once the command has a result.
func (c *Command) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the command completed or ctx is done.
// A canceled wait does not cancel the command.
func (c *Command) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return c.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ResultSet returns the rows of a completed KindReader command.
func (c *Command) ResultSet() *ResultSet {
	rs, _ := c.value().(*ResultSet)
	return rs
}

// Scalar returns the value of a completed KindScalar command.
func (c *Command) Scalar() any {
	return c.value()
}

// ExecResult returns the outcome of a completed KindExecute command.
func (c *Command) ExecResult() ExecResult {
	res, _ := c.value().(ExecResult)
	return res
}

// Err returns the error of a failed command.
func (c *Command) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

func (c *Command) value() any {
	select {
	case <-c.done:
		return c.result
	default:
		return nil
	}
}

func (c *Command) markSubmitted() error {
	if !c.submitted.CompareAndSwap(false, true) {
		return fmt.Errorf("command %s: %w", c.ID, domain.ErrCommandExecuted)
	}
	return nil
}

func (c *Command) complete(result any) {
	c.once.Do(func() {
		c.result = result
		c.status.Store(int32(StatusCompleted))
		close(c.done)
	})
}

func (c *Command) fail(err error) {
	c.once.Do(func() {
		c.err = err
		c.status.Store(int32(StatusFailed))
		close(c.done)
	})
}
