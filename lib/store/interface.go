package store

import (
	"context"
	"fmt"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// IStore is the backing store contract used by the home data layer.
// All calls are durable on return. No multi-key atomicity is provided:
// callers serialize their read-modify-write sequences themselves.
type IStore interface {
	// Get returns the values for all given keys that exist.
	// Keys without a value are missing from the returned map.
	Get(ctx context.Context, keys ...string) (values map[string][]byte, err error)
	// Set inserts or updates all key–value pairs of the mapping.
	Set(ctx context.Context, values map[string][]byte) (err error)
	// Remove deletes the given keys. Missing keys are ignored.
	Remove(ctx context.Context, keys ...string) (err error)
	// Clear deletes every key of the store.
	Clear(ctx context.Context) (err error)
	// Close releases the resources of the store.
	Close() (err error)
}

// Factory creates a store, it is used by the command line to defer the
// choice of backend until the configuration is known.
type Factory func() (IStore, error)

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
	Err  error   // The underlying error, if any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("store error (code %s): %s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("store error (code %s): %s", e.Code, e.Msg)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new store error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// WrapError creates a new store error with the given code and message wrapping err.
func WrapError(code RetCode, msg string, err error) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
		Err:  err,
	}
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by underlying database.
	RetCInvalidOperation                    // 3: Invalid operation.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCInvalidOperation:
		return "InvalidOperation"
	default:
		return "Unknown"
	}
}
