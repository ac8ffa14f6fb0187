package media

import (
	"github.com/mdouchement/mediastore/internal/chunkstore"
	"github.com/mdouchement/mediastore/internal/index"
	"github.com/pkg/errors"
)

var (
	// ErrDuplicateCaption is returned when the caption is already indexed.
	ErrDuplicateCaption = index.ErrDuplicateCaption
	// ErrNotFound is returned when no object matches.
	ErrNotFound = chunkstore.ErrNotFound
	// ErrStorageUnavailable is matched by the infrastructure failures.
	ErrStorageUnavailable = chunkstore.ErrStorageUnavailable
	// ErrNotDisplayable is returned when the content type cannot be served inline.
	ErrNotDisplayable = errors.New("content type is not displayable inline")
	// ErrTooManyFiles is returned when more than MaxFiles are uploaded at once.
	ErrTooManyFiles = errors.New("too many files")
	// ErrUnknownBucket is returned for a bucket that is not configured.
	ErrUnknownBucket = errors.New("unknown bucket")
	// ErrMissingCaption is returned when an upload has no caption.
	ErrMissingCaption = errors.New("missing caption")
)
