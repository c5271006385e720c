// Package database serializes all access to a SQLite database through a single
// writer goroutine that owns the only connection.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"github.com/tejashwikalptaru/playqueue/internal/domain"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Config configures a Proxy.
type Config struct {
	// Path of the database file, or MemoryPath.
	Path string

	// QueueSize is the capacity of the command queue. Submitters block when it is full.
	QueueSize int

	// BusyTimeout is passed to SQLite as busy_timeout.
	BusyTimeout time.Duration

	// Migrations run once the connection is open, before the proxy is ready.
	Migrations []Migration

	// OnStateChange, if set, is called after every lifecycle transition. It
	// runs on the goroutine that made the transition and must not call back
	// into the proxy.
	OnStateChange func(from, to State)
}

func (c Config) withDefaults() Config {
	if c.Path == "" {
		c.Path = MemoryPath
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.BusyTimeout <= 0 {
		c.BusyTimeout = 5 * time.Second
	}
	return c
}

func isMemory(path string) bool {
	return path == MemoryPath || strings.HasPrefix(path, "file::memory:")
}

// Proxy is the single writer of a SQLite database.
//
// Every read and write is a Command placed on a FIFO queue and executed by one
// goroutine, so commands observe each other's effects in submission order
// regardless of the goroutine that submitted them.
type Proxy struct {
	logger *slog.Logger
	cfg    Config
	db     *sql.DB
	lock   *flock.Flock

	state    atomic.Int32
	executed atomic.Uint64

	// mu guards closing. Submitters hold the read lock while sending, so
	// Close can stop submissions before draining the queue.
	mu        sync.RWMutex
	closing   bool
	commands  chan *Command
	disposeCh chan struct{}
	done      chan struct{}
	closeErr  error
}

// Open connects to the database, applies pragmas and migrations, and starts
// the writer goroutine.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Proxy, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()

	p := &Proxy{
		logger:    logger.With(slog.String("component", "database")),
		cfg:       cfg,
		commands:  make(chan *Command, cfg.QueueSize),
		disposeCh: make(chan struct{}),
		done:      make(chan struct{}),
	}

	if !isMemory(cfg.Path) {
		p.lock = flock.New(cfg.Path + ".lock")
		ok, err := p.lock.TryLock()
		if err != nil {
			p.setState(StateClosed)
			return nil, fmt.Errorf("acquire database lock: %w", err)
		}
		if !ok {
			p.setState(StateClosed)
			return nil, fmt.Errorf("%s: %w", cfg.Path, domain.ErrDatabaseLocked)
		}
	}

	p.setState(StateConnecting)
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		p.releaseLock()
		p.setState(StateClosed)
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One physical connection, kept open for the proxy's lifetime
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	p.db = db

	if err := p.connect(ctx); err != nil {
		_ = db.Close()
		p.releaseLock()
		p.setState(StateClosed)
		return nil, err
	}

	p.setState(StateReady)
	go p.run()

	p.logger.Info("database ready", slog.String("path", cfg.Path))
	return p, nil
}

func (p *Proxy) connect(ctx context.Context) error {
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		fmt.Sprintf("PRAGMA busy_timeout = %d", p.cfg.BusyTimeout.Milliseconds()),
	}
	if !isMemory(p.cfg.Path) {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL")
	}
	for _, pragma := range pragmas {
		if _, err := p.db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}

	applied, err := migrate(ctx, p.db, p.cfg.Migrations)
	if err != nil {
		return err
	}
	p.logMigrations(applied)
	return nil
}

func (p *Proxy) logMigrations(applied []string) {
	for _, name := range applied {
		p.logger.Info("migration applied", slog.String("migration", name))
	}
}

func (p *Proxy) releaseLock() {
	if p.lock != nil {
		_ = p.lock.Unlock()
	}
}

func (p *Proxy) setState(s State) {
	prev := State(p.state.Swap(int32(s)))
	if prev != s {
		p.notify(prev, s)
	}
}

// transition moves from one state to another unless the state changed meanwhile.
func (p *Proxy) transition(from, to State) bool {
	if !p.state.CompareAndSwap(int32(from), int32(to)) {
		return false
	}
	p.notify(from, to)
	return true
}

func (p *Proxy) notify(from, to State) {
	if p.logger.Enabled(context.Background(), slog.LevelDebug) {
		p.logger.Debug("state change", slog.String("from", from.String()), slog.String("to", to.String()))
	}
	if p.cfg.OnStateChange != nil {
		p.cfg.OnStateChange(from, to)
	}
}

// State returns the current lifecycle state.
func (p *Proxy) State() State {
	return State(p.state.Load())
}

// Path returns the database path.
func (p *Proxy) Path() string {
	return p.cfg.Path
}

// Executed returns how many commands the writer has executed.
func (p *Proxy) Executed() uint64 {
	return p.executed.Load()
}

// run is the writer goroutine.
func (p *Proxy) run() {
	defer close(p.done)
	ctx := context.Background()

	for {
		p.transition(StateReady, StateIdle)
		p.transition(StateExecuting, StateIdle)
		select {
		case cmd := <-p.commands:
			p.transition(StateIdle, StateExecuting)
			p.execute(ctx, p.db, cmd)
		case <-p.disposeCh:
			p.closeErr = p.drain(ctx)
			return
		}
	}
}

// drain executes every command still queued inside one transaction, commits
// and closes the connection.
func (p *Proxy) drain(ctx context.Context) error {
	p.setState(StateDraining)

	var errs []error
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		errs = append(errs, fmt.Errorf("begin drain tx: %w", err))
	}

	drained := 0
	for {
		var cmd *Command
		select {
		case cmd = <-p.commands:
		default:
		}
		if cmd == nil {
			break
		}
		drained++
		if tx == nil {
			cmd.fail(domain.NewDatabaseError(cmd.Kind.String(), cmd.Text, domain.ErrProxyClosed))
			continue
		}
		p.execute(ctx, tx, cmd)
	}

	if tx != nil {
		if err := tx.Commit(); err != nil {
			errs = append(errs, fmt.Errorf("commit drain tx: %w", err))
		}
	}
	if err := p.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close sqlite db: %w", err))
	}
	p.releaseLock()
	p.setState(StateClosed)

	p.logger.Info("database closed", slog.Int("drained", drained))
	return errors.Join(errs...)
}

func (p *Proxy) execute(ctx context.Context, q queryer, cmd *Command) {
	result, err := runCommand(ctx, q, cmd)
	p.executed.Add(1)
	if err != nil {
		p.logger.Debug("command failed",
			slog.String("kind", cmd.Kind.String()),
			slog.String("query", cmd.Text),
			slog.String("error", err.Error()))
		cmd.fail(domain.NewDatabaseError(cmd.Kind.String(), cmd.Text, err))
		return
	}
	cmd.complete(result)
}

func runCommand(ctx context.Context, q queryer, cmd *Command) (any, error) {
	switch cmd.Kind {
	case KindReader:
		rows, err := q.QueryContext(ctx, cmd.Text, cmd.Args...)
		if err != nil {
			return nil, err
		}
		return materialize(rows)

	case KindScalar:
		var v any
		err := q.QueryRowContext(ctx, cmd.Text, cmd.Args...).Scan(&v)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return v, err

	case KindExecute:
		res, err := q.ExecContext(ctx, cmd.Text, cmd.Args...)
		if err != nil {
			return nil, err
		}
		affected, _ := res.RowsAffected()
		lastID, _ := res.LastInsertId()
		return ExecResult{RowsAffected: affected, LastInsertID: lastID}, nil

	case kindFunc:
		return cmd.fn(ctx, q)
	}
	return nil, fmt.Errorf("unknown command kind %d", cmd.Kind)
}

func materialize(rows *sql.Rows) (*ResultSet, error) {
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	rs := &ResultSet{Columns: cols}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		rs.Rows = append(rs.Rows, values)
	}
	return rs, rows.Err()
}

// Submit queues cmd for execution and returns immediately.
// Use cmd.Wait to block for the result.
func (p *Proxy) Submit(cmd *Command) error {
	if err := cmd.markSubmitted(); err != nil {
		return err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closing {
		err := domain.NewDatabaseError(cmd.Kind.String(), cmd.Text, domain.ErrProxyClosed)
		cmd.fail(err)
		return err
	}
	p.commands <- cmd
	return nil
}

func (p *Proxy) do(ctx context.Context, cmd *Command) error {
	if err := p.Submit(cmd); err != nil {
		return err
	}
	return cmd.Wait(ctx)
}

// Query runs a statement that returns rows.
func (p *Proxy) Query(ctx context.Context, text string, args ...any) (*ResultSet, error) {
	cmd := NewCommand(KindReader, text, args...)
	if err := p.do(ctx, cmd); err != nil {
		return nil, err
	}
	return cmd.ResultSet(), nil
}

// QueryScalar runs a statement and returns the first column of its first row.
// Returns nil without error when there are no rows.
func (p *Proxy) QueryScalar(ctx context.Context, text string, args ...any) (any, error) {
	cmd := NewCommand(KindScalar, text, args...)
	if err := p.do(ctx, cmd); err != nil {
		return nil, err
	}
	return cmd.Scalar(), nil
}

// Execute runs a statement that does not return rows.
func (p *Proxy) Execute(ctx context.Context, text string, args ...any) (ExecResult, error) {
	cmd := NewCommand(KindExecute, text, args...)
	if err := p.do(ctx, cmd); err != nil {
		return ExecResult{}, err
	}
	return cmd.ExecResult(), nil
}

// Migrate applies additive migrations on the writer goroutine.
func (p *Proxy) Migrate(ctx context.Context, migrations ...Migration) error {
	cmd := newFuncCommand("migrate", func(ctx context.Context, q queryer) (any, error) {
		applied, err := migrate(ctx, q, migrations)
		p.logMigrations(applied)
		return applied, err
	})
	return p.do(ctx, cmd)
}

// Close stops accepting commands, executes the ones still queued inside a
// single transaction, commits and closes the connection. Close blocks until
// the writer goroutine has exited and is idempotent.
func (p *Proxy) Close() error {
	p.mu.Lock()
	if p.closing {
		p.mu.Unlock()
		<-p.done
		return nil
	}
	p.closing = true
	p.setState(StateDisposeRequested)
	p.mu.Unlock()

	close(p.disposeCh)
	<-p.done
	return p.closeErr
}
