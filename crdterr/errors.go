// Package crdterr defines the error taxonomy shared by every CRDT
// variant and by the manager. Callers distinguish failure modes with
// errors.Is against the sentinel values below.
package crdterr

import "errors"

var (
	// ErrUnknownOperation is returned when apply-op is given an
	// operation name the variant does not recognise.
	ErrUnknownOperation = errors.New("crdt: unknown operation")

	// ErrInvalidPayload is returned when an operation's data is
	// missing a required field or holds a value of the wrong shape.
	ErrInvalidPayload = errors.New("crdt: invalid operation payload")

	// ErrStateTypeMismatch is returned by merge when the incoming
	// snapshot's type or id does not match the receiver.
	ErrStateTypeMismatch = errors.New("crdt: snapshot type or id mismatch")

	// ErrInvariantViolated is returned by validate when a CRDT's
	// state no longer satisfies its defining invariants.
	ErrInvariantViolated = errors.New("crdt: invariant violated")

	// ErrFactoryMissing is returned by OR-Map add when no CRDT
	// factory has been configured to construct inner values.
	ErrFactoryMissing = errors.New("crdt: no factory configured for inner value")

	// ErrOutOfRange is returned by RGA operations given a visible
	// index outside the sequence's current bounds.
	ErrOutOfRange = errors.New("crdt: index out of range")

	// ErrDuplicateID is returned by the manager when registering a
	// CRDT under an id that already has one.
	ErrDuplicateID = errors.New("crdt: duplicate id")

	// ErrNotFound is returned by the manager when an operation
	// targets an id that is not registered.
	ErrNotFound = errors.New("crdt: not found")

	// ErrNotInitialised is returned when a manager method is called
	// before Init.
	ErrNotInitialised = errors.New("crdt: manager not initialised")

	// ErrAlreadyClosed is returned when a manager method is called
	// after Close.
	ErrAlreadyClosed = errors.New("crdt: manager already closed")
)

// StoreError wraps a failure raised by the state store layer, preserving
// the underlying cause for errors.Is/errors.As while presenting a single
// stable sentinel-comparable type to callers.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return "crdt: store error during " + e.Op + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() error { return e.Err }

// NewStoreError wraps err, naming the store operation that failed.
func NewStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

// OperationFailedError wraps a failure that occurred while the manager
// was applying an operation, preserving the original cause chain so
// callers can still errors.Is against the root taxonomy error.
type OperationFailedError struct {
	CRDTID    string
	Operation string
	Err       error
}

func (e *OperationFailedError) Error() string {
	return "crdt: operation " + e.Operation + " on " + e.CRDTID + " failed: " + e.Err.Error()
}

func (e *OperationFailedError) Unwrap() error { return e.Err }

// NewOperationFailed wraps err as an OperationFailedError.
func NewOperationFailed(crdtID, operation string, err error) error {
	if err == nil {
		return nil
	}
	return &OperationFailedError{CRDTID: crdtID, Operation: operation, Err: err}
}
