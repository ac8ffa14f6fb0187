package storage

import (
	"io"
	"time"
)

type (
	// Backend is the interface that wraps the basic file operations.
	Backend interface {
		// Name returns the name of the backend implementation.
		Name() string

		// Reader returns a ReadCloser of the file.
		Reader(bucket, key string) (io.ReadCloser, error)
		// Writer returns a WriteCloser of the file.
		Writer(bucket, key string) (io.WriteCloser, error)

		// Entries lists the entries found under the given prefix: `bucket/prefix'.
		// A missing prefix is not an error.
		Entries(prefix string) ([]Entry, error)

		// Remove deletes the given file or folder.
		Remove(bucket, key string) error
		// Cleanup cleans useless artifacts in storage.
		Cleanup() error
	}

	// An Entry is a file or a folder of the backend.
	Entry struct {
		Name    string
		Dir     bool
		ModTime time.Time
	}
)
