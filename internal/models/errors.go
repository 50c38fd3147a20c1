package models

import (
	"errors"
	"fmt"
	"time"
)

// Common errors returned by models and services.
var (
	ErrStreamNotFound       = errors.New("stream not found")
	ErrWorkerNotFound       = errors.New("worker not found")
	ErrStreamBusy           = errors.New("stream is busy with a pending transition")
	ErrEmptyPlaylist        = errors.New("stream has no playable playlist items")
	ErrStreamNameRequired   = errors.New("stream name is required")
	ErrStreamKeyRequired    = errors.New("stream key is required")
	ErrRTMPURLRequired      = errors.New("rtmp url is required")
	ErrInvalidPlatform      = errors.New("invalid platform")
	ErrInvalidOrderMode     = errors.New("invalid playlist order mode")
	ErrInvalidTransition    = errors.New("invalid stream state transition")
	ErrStreamAlreadyActive  = errors.New("stream is already active")
	ErrStreamNotActive      = errors.New("stream is not active")
	ErrWorkerNotAvailable   = errors.New("no worker available with capacity")
	ErrDuplicateWorker      = errors.New("worker with this address already registered")
	ErrAssetsAlreadyDeleted = errors.New("stream assets already deleted")
)

// ValidationError indicates a model field failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

// NewValidationError creates a validation error for a field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// QuotaExceededError indicates the owner's concurrent stream quota is full.
type QuotaExceededError struct {
	OwnerID ULID
	Active  int
	Allowed int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("stream quota exceeded for owner %s: %d of %d active", e.OwnerID, e.Active, e.Allowed)
}

// NoCapacityError indicates no healthy worker has a free stream slot.
type NoCapacityError struct {
	Workers int
}

func (e *NoCapacityError) Error() string {
	if e.Workers == 0 {
		return "no healthy workers registered"
	}
	return fmt.Sprintf("all %d healthy workers are at capacity", e.Workers)
}

func (e *NoCapacityError) Unwrap() error {
	return ErrWorkerNotAvailable
}

// AckTimeoutError indicates a worker did not acknowledge a command in time.
type AckTimeoutError struct {
	WorkerID ULID
	Command  string
	Timeout  time.Duration
}

func (e *AckTimeoutError) Error() string {
	return fmt.Sprintf("worker %s did not acknowledge %s within %s", e.WorkerID, e.Command, e.Timeout)
}

// WorkerFailureError indicates a worker reported a fatal stream failure.
type WorkerFailureError struct {
	WorkerID ULID
	Reason   string
}

func (e *WorkerFailureError) Error() string {
	return fmt.Sprintf("worker %s reported failure: %s", e.WorkerID, e.Reason)
}

// WorkerUnreachableError indicates a dispatch request could not reach the worker.
type WorkerUnreachableError struct {
	WorkerID ULID
	Addr     string
	Err      error
}

func (e *WorkerUnreachableError) Error() string {
	return fmt.Sprintf("worker %s at %s unreachable: %v", e.WorkerID, e.Addr, e.Err)
}

func (e *WorkerUnreachableError) Unwrap() error {
	return e.Err
}

// TransitionError carries the rejected from/to pair for a stream.
type TransitionError struct {
	StreamID ULID
	From     StreamStatus
	To       StreamStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("stream %s: cannot transition from %s to %s", e.StreamID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}
