package repository

import (
	"errors"
	"fmt"
)

// Sentinel kinds for persistence errors.
var (
	ErrNotFound        = errors.New("document not found")
	ErrStorage         = errors.New("storage unavailable")
	ErrPushUnsupported = errors.New("backend does not support change notifications")
	ErrInvalidDocument = errors.New("invalid document")
	ErrWatchClosed     = errors.New("change stream closed")
	ErrInvalidPatch    = errors.New("invalid report patch")
)

// StorageError is returned when the active backend cannot complete a read
// or write. It matches ErrStorage with errors.Is and unwraps to the cause.
type StorageError struct {
	Backend string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Backend, e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is lets callers test for ErrStorage without knowing the cause.
func (e *StorageError) Is(target error) bool { return target == ErrStorage }

func storageErr(backend, op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Backend: backend, Op: op, Err: err}
}
