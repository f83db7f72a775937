package uow

import (
	"errors"
	"fmt"
	"strings"
)

// Standard sentinel errors for common operations.
var (
	// ErrSessionAborted is returned by operations on a session whose last
	// flush failed. The session must be rolled back before it is used again.
	ErrSessionAborted = errors.New("uow: session aborted by a failed flush, rollback required")

	// ErrSessionClosed is returned by operations on a closed session.
	ErrSessionClosed = errors.New("uow: session is closed")

	// ErrSessionFlushing is returned when instances are registered while the
	// session is flushing.
	ErrSessionFlushing = errors.New("uow: session is flushing")

	// ErrNotPersistent is returned when deleting an instance that has no row.
	ErrNotPersistent = errors.New("uow: instance is not persistent")

	// ErrDetached is returned when an instance owned by another session is
	// registered.
	ErrDetached = errors.New("uow: instance is attached to another session")

	// ErrNotFound is returned when a row requested by its primary key
	// does not exist.
	ErrNotFound = errors.New("uow: instance not found")

	// ErrIdentityConflict is matched by all IdentityConflictError values.
	ErrIdentityConflict = errors.New("uow: identity conflict")
)

// IdentityConflictError is returned when an identity key is registered
// for an instance while another instance already holds it.
type IdentityConflictError struct {
	Key Key
}

// Error returns the error string.
func (e *IdentityConflictError) Error() string {
	return fmt.Sprintf("uow: identity conflict: %s is already held by another instance", e.Key)
}

// Is reports whether the target error matches IdentityConflictError.
// This allows errors.Is(err, ErrIdentityConflict) to return true.
func (e *IdentityConflictError) Is(err error) bool {
	return err == ErrIdentityConflict
}

// NewIdentityConflictError returns a new IdentityConflictError for key.
func NewIdentityConflictError(key Key) *IdentityConflictError {
	return &IdentityConflictError{Key: key}
}

// IsIdentityConflict returns true if the error is an IdentityConflictError.
func IsIdentityConflict(err error) bool {
	if err == nil {
		return false
	}
	var e *IdentityConflictError
	return errors.As(err, &e)
}

// CascadeConflictError is returned when cascades assign contradictory
// operations to one instance.
type CascadeConflictError struct {
	Instance string // instance description, e.g. Node(1).
	Ops      [2]Op  // the conflicting operations.
	Via      string // relationship that produced the second operation.
}

// Error returns the error string.
func (e *CascadeConflictError) Error() string {
	msg := fmt.Sprintf("uow: cascade conflict on %s: %s and %s", e.Instance, e.Ops[0], e.Ops[1])
	if e.Via != "" {
		msg += fmt.Sprintf(" (via %q)", e.Via)
	}
	return msg
}

// IsCascadeConflict returns true if the error is a CascadeConflictError.
func IsCascadeConflict(err error) bool {
	if err == nil {
		return false
	}
	var e *CascadeConflictError
	return errors.As(err, &e)
}

// UnresolvableDependencyError is returned when pending operations depend on
// each other through foreign keys that cannot be NULL.
type UnresolvableDependencyError struct {
	Instances []string
}

// Error returns the error string.
func (e *UnresolvableDependencyError) Error() string {
	return fmt.Sprintf("uow: unresolvable dependency cycle between %s", strings.Join(e.Instances, ", "))
}

// IsUnresolvableDependency returns true if the error is an UnresolvableDependencyError.
func IsUnresolvableDependency(err error) bool {
	if err == nil {
		return false
	}
	var e *UnresolvableDependencyError
	return errors.As(err, &e)
}

// ConstraintError represents a database constraint violation error.
type ConstraintError struct {
	msg  string
	wrap error
}

// Error returns the error string.
func (e ConstraintError) Error() string {
	return fmt.Sprintf("uow: constraint failed: %s", e.msg)
}

// Unwrap returns the underlying error.
func (e ConstraintError) Unwrap() error {
	return e.wrap
}

// NewConstraintError returns a new ConstraintError with the given message.
func NewConstraintError(msg string, wrap error) error {
	return ConstraintError{msg: msg, wrap: wrap}
}

// IsConstraintError returns true if the error is a ConstraintError.
func IsConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var e ConstraintError
	return errors.As(err, &e)
}

// ConnectivityError is returned when the storage cannot be reached.
type ConnectivityError struct {
	Err error
}

// Error returns the error string.
func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("uow: connectivity: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *ConnectivityError) Unwrap() error {
	return e.Err
}

// IsConnectivityError returns true if the error is a ConnectivityError.
func IsConnectivityError(err error) bool {
	if err == nil {
		return false
	}
	var e *ConnectivityError
	return errors.As(err, &e)
}

// TimeoutError is returned when a statement did not complete in time.
type TimeoutError struct {
	Err error
}

// Error returns the error string.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("uow: timeout: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// IsTimeout returns true if the error is a TimeoutError.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	var e *TimeoutError
	return errors.As(err, &e)
}

// StaleDataError is returned when an UPDATE or DELETE matched a different
// number of rows than the flush expected.
type StaleDataError struct {
	Table    string
	Kind     StatementKind
	Expected int64
	Actual   int64
}

// Error returns the error string.
func (e *StaleDataError) Error() string {
	return fmt.Sprintf("uow: %s on table %q expected to match %d row(s); %d were matched", e.Kind, e.Table, e.Expected, e.Actual)
}

// IsStaleData returns true if the error is a StaleDataError.
func IsStaleData(err error) bool {
	if err == nil {
		return false
	}
	var e *StaleDataError
	return errors.As(err, &e)
}

// FlushError wraps an error that aborted a flush with the operation
// that was executing.
type FlushError struct {
	Op  string // e.g. "insert Node(pending#3)".
	Err error
}

// Error returns the error string.
func (e *FlushError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("uow: flush: %v", e.Err)
	}
	return fmt.Sprintf("uow: flush: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *FlushError) Unwrap() error {
	return e.Err
}

// IsFlushError returns true if the error is a FlushError.
func IsFlushError(err error) bool {
	if err == nil {
		return false
	}
	var e *FlushError
	return errors.As(err, &e)
}

// RollbackError wraps an error that occurred during a transaction rollback.
type RollbackError struct {
	Err error // Original error that triggered rollback
}

// Error returns the error string.
func (e *RollbackError) Error() string {
	return fmt.Sprintf("uow: rollback failed: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *RollbackError) Unwrap() error {
	return e.Err
}

// MappingError is returned when a registry cannot be built from the
// given schemas.
type MappingError struct {
	Entity string
	Err    error
}

// Error returns the error string.
func (e *MappingError) Error() string {
	return fmt.Sprintf("uow: mapping %s: %v", e.Entity, e.Err)
}

// Unwrap returns the underlying error.
func (e *MappingError) Unwrap() error {
	return e.Err
}
