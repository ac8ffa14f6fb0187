// Package index maps captions to stored objects.
// A record only holds the object id, it never owns the object.
package index

import (
	"sync"

	"github.com/mdouchement/logger"
	"github.com/mdouchement/mediastore/internal/chunkstore"
	"github.com/mdouchement/mediastore/internal/database"
	"github.com/mdouchement/mediastore/internal/model"
	"github.com/pkg/errors"
)

// ErrDuplicateCaption is returned when a record already uses the caption.
var ErrDuplicateCaption = errors.New("caption already exists")

// An Index stores one record per caption.
type Index struct {
	logger logger.Logger
	db     database.Client
	mu     sync.Mutex
}

// New returns a new Index.
func New(log logger.Logger, db database.Client) *Index {
	return &Index{
		logger: log.WithPrefix("[index]"),
		db:     db,
	}
}

// InsertIfAbsent creates the record unless the caption is already indexed.
// Concurrent calls with the same caption produce exactly one record.
func (i *Index) InsertIfAbsent(caption, bucket, name, objectID string) (*model.Record, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	_, err := i.db.FindRecordByCaption(caption)
	if err == nil {
		return nil, errors.Wrap(ErrDuplicateCaption, caption)
	}
	if !i.db.IsNotFound(err) {
		return nil, storageError("insert", err)
	}

	record := &model.Record{
		Caption:  caption,
		Bucket:   bucket,
		Name:     name,
		ObjectID: objectID,
	}

	err = i.db.Save(record)
	if i.db.IsAlreadyExists(err) {
		// Unique constraint of the database, e.g. another process sharing the file.
		return nil, errors.Wrap(ErrDuplicateCaption, caption)
	}
	if err != nil {
		return nil, storageError("insert", err)
	}

	i.logger.Debugf("Indexed %q -> %s/%s", caption, bucket, name)
	return record, nil
}

// Exists returns true if a record uses the caption.
func (i *Index) Exists(caption string) (bool, error) {
	_, err := i.db.FindRecordByCaption(caption)
	if err == nil {
		return true, nil
	}
	if i.db.IsNotFound(err) {
		return false, nil
	}
	return false, storageError("exists", err)
}

// ListAll returns all the records, oldest first.
func (i *Index) ListAll() ([]*model.Record, error) {
	records, err := i.db.AllRecords()
	return records, storageError("list", err)
}

// MostRecent returns the last inserted record or nil when the index is empty.
func (i *Index) MostRecent() (*model.Record, error) {
	record, err := i.db.LastRecord()
	if i.db.IsNotFound(err) {
		return nil, nil
	}
	return record, storageError("most recent", err)
}

// DeleteByID removes the record. It returns false when the record does not exist.
func (i *Index) DeleteByID(id string) (bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	record, err := i.db.FindRecord(id)
	if i.db.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, storageError("delete", err)
	}

	if err = i.db.DeleteRecord(record.ID); err != nil {
		if i.db.IsNotFound(err) {
			return false, nil
		}
		return false, storageError("delete", err)
	}
	return true, nil
}

// storageError marks database failures as ErrStorageUnavailable.
func storageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &chunkstore.StorageError{Op: "index " + op, Err: err}
}
