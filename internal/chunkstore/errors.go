package chunkstore

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound is returned when no object matches the given id or name.
	ErrNotFound = errors.New("object not found")
	// ErrNameConflict is returned when the name is already used in the bucket.
	ErrNameConflict = errors.New("object name already exists in bucket")
	// ErrIncompleteUpload is returned by Commit when the declared length is not reached.
	ErrIncompleteUpload = errors.New("incomplete upload")
	// ErrStorageUnavailable is matched by all the I/O failures of the store.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrCorruptedObject is returned when stored chunks do not match their manifest.
	ErrCorruptedObject = errors.New("corrupted object")
	// ErrClosedWriter is returned when a committed or aborted writer is used.
	ErrClosedWriter = errors.New("writer is closed")
)

// A StorageError wraps an infrastructure failure of the store or the index.
type StorageError struct {
	Op  string
	Err error
}

func storageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: "chunkstore " + op, Err: err}
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, ErrStorageUnavailable, e.Err)
}

// Unwrap returns the underlying error.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrStorageUnavailable.
func (e *StorageError) Is(target error) bool {
	return target == ErrStorageUnavailable
}
