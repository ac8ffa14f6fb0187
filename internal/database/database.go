package database

import (
	"github.com/mdouchement/mediastore/internal/model"
)

type (
	// A Client can interacts with the database.
	Client interface {
		// Save inserts or updates the entry in database with the given model.
		Save(m model.Model) error
		// Delete deletes the entry in database with the given model.
		Delete(m model.Model) error
		// Transaction runs fn inside a read-write transaction.
		// The transaction is committed when fn returns nil and rolled back otherwise.
		Transaction(fn func(tx Client) error) error
		// Close the database.
		Close() error
		// IsNotFound returns true if err is a not found error.
		IsNotFound(err error) bool
		// IsAlreadyExists returns true if err is an unique constraint violation.
		IsAlreadyExists(err error) bool

		BucketInteraction
		ManifestInteraction
		ChunkInteraction
		RecordInteraction
	}

	// A BucketInteraction defines all the methods used to interact with a bucket record.
	BucketInteraction interface {
		ListBuckets() ([]*model.Bucket, error)
		FindBucketByName(name string) (*model.Bucket, error)
	}

	// A ManifestInteraction defines all the methods used to interact with a manifest record.
	ManifestInteraction interface {
		FindManifest(id string) (*model.Manifest, error)
		FindManifestByName(bucket, name string) (*model.Manifest, error)
		FindManifestsByBucket(bucket string) ([]*model.Manifest, error)
		DeleteManifest(id string) error
	}

	// A ChunkInteraction defines all the methods used to interact with a chunk record.
	ChunkInteraction interface {
		// FindChunksByObjectID returns the chunks of the object ordered by sequence index.
		FindChunksByObjectID(id string) ([]*model.Chunk, error)
		DeleteChunksByObjectID(id string) error
	}

	// A RecordInteraction defines all the methods used to interact with an index record.
	RecordInteraction interface {
		// AllRecords returns the records in insertion order.
		AllRecords() ([]*model.Record, error)
		// LastRecord returns the most recently inserted record.
		LastRecord() (*model.Record, error)
		FindRecord(id string) (*model.Record, error)
		FindRecordByCaption(caption string) (*model.Record, error)
		DeleteRecord(id string) error
	}
)
