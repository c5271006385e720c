// Package domain holds the types shared by every layer: tracks, engine
// states, operation progress, events and errors.
package domain

import (
	"errors"
	"fmt"
)

// Work queues and cancelable operations.
var (
	// ErrCanceled unwinds a whole drain. It is never counted as an item failure.
	ErrCanceled        = errors.New("operation canceled")
	ErrAlreadyDraining = errors.New("queue is already draining")
)

// Engine registry.
var (
	ErrNoUsableEngines = errors.New("no usable playback engines")
	ErrEngineNotFound  = errors.New("playback engine not found")
	ErrEngineDisabled  = errors.New("playback engine disabled")
	ErrNoActiveEngine  = errors.New("no active playback engine")
)

// Database proxy.
var (
	ErrProxyClosed     = errors.New("database proxy closed")
	ErrDatabaseLocked  = errors.New("database is owned by another process")
	ErrCommandExecuted = errors.New("command already submitted")
)

// Playback and library.
var (
	ErrNoTrackLoaded     = errors.New("no track loaded")
	ErrInvalidVolume     = errors.New("invalid volume: must be between 0.0 and 1.0")
	ErrInvalidPosition   = errors.New("invalid playback position")
	ErrUnsupportedFormat = errors.New("unsupported media format")
	ErrFileNotFound      = errors.New("file not found")
	ErrInvalidFilePath   = errors.New("invalid file path")
	ErrTrackNotFound     = errors.New("track not found")
	ErrQueueEmpty        = errors.New("play queue is empty")
	ErrEndOfQueue        = errors.New("end of play queue")
	ErrStartOfQueue      = errors.New("start of play queue")
)

// EngineError is a failure reported by one playback engine.
// Op is the engine call that failed: "selftest", "open", "decode", "play" and so on.
type EngineError struct {
	Engine string
	Op     string
	Err    error
}

func NewEngineError(engine, op string, err error) *EngineError {
	return &EngineError{Engine: engine, Op: op, Err: err}
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("engine %s: %s: %v", e.Engine, e.Op, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }

// DatabaseError ties a driver error to the command that produced it.
type DatabaseError struct {
	Op    string // reader, scalar, execute, migrate
	Query string
	Err   error
}

func NewDatabaseError(op, query string, err error) *DatabaseError {
	return &DatabaseError{Op: op, Query: query, Err: err}
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("database %s %q: %v", e.Op, e.Query, e.Err)
}

func (e *DatabaseError) Unwrap() error { return e.Err }

// RepositoryError is a failed load or save in one of the sqlite repositories.
type RepositoryError struct {
	Op      string
	Type    string // tracks, preferences
	Message string
	Err     error
}

func NewRepositoryError(op, repoType, message string, err error) *RepositoryError {
	return &RepositoryError{Op: op, Type: repoType, Message: message, Err: err}
}

func (e *RepositoryError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s repository: %s: %s", e.Type, e.Op, e.Message)
	}
	return fmt.Sprintf("%s repository: %s: %s: %v", e.Type, e.Op, e.Message, e.Err)
}

func (e *RepositoryError) Unwrap() error { return e.Err }

// ValidationError rejects one configuration or input field.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func NewValidationError(field string, value any, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Message)
}

// ServiceError wraps a failure with the application service call it came from.
type ServiceError struct {
	Service string
	Op      string
	Message string
	Err     error
}

func NewServiceError(service, op, message string, err error) *ServiceError {
	return &ServiceError{Service: service, Op: op, Message: message, Err: err}
}

func (e *ServiceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s.%s: %s", e.Service, e.Op, e.Message)
	}
	return fmt.Sprintf("%s.%s: %s: %v", e.Service, e.Op, e.Message, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }
