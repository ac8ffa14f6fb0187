// Package chunkstore splits objects into fixed-size chunks stored on a storage backend
// and indexes them with a manifest stored in the database.
// An object is visible to readers only once its manifest is committed.
package chunkstore

import (
	"context"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/mdouchement/logger"
	"github.com/mdouchement/mediastore/internal/database"
	"github.com/mdouchement/mediastore/internal/model"
	"github.com/mdouchement/mediastore/internal/storage"
	"github.com/pkg/errors"
)

const (
	// DefaultChunkSize is the chunk size used when none is configured (255 KiB).
	DefaultChunkSize = 255 << 10
	// DefaultCacheSize is the number of manifests kept in memory.
	DefaultCacheSize = 512
)

// A Controller is an Iversion Of Control pattern used to init the store.
type Controller struct {
	Logger    logger.Logger
	Database  database.Client
	Storage   storage.Backend
	ChunkSize int
	CacheSize int
}

// A Store is a chunked object store.
type Store struct {
	logger    logger.Logger
	db        database.Client
	storage   storage.Backend
	chunkSize int
	manifests *lru.Cache[string, *model.Manifest]
	uploading sync.Map // object ids of the open writers

	cacheMu    sync.Mutex
	generation uint64 // bumped by each eviction
}

// New returns a new Store.
func New(c Controller) (*Store, error) {
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.CacheSize <= 0 {
		c.CacheSize = DefaultCacheSize
	}

	cache, err := lru.New[string, *model.Manifest](c.CacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "could not create manifest cache")
	}

	return &Store{
		logger:    c.Logger.WithPrefix("[chunkstore]"),
		db:        c.Database,
		storage:   c.Storage,
		chunkSize: c.ChunkSize,
		manifests: cache,
	}, nil
}

// Create begins a new object in bucket.
// It fails with ErrNameConflict if the name is already used in the bucket.
func (s *Store) Create(ctx context.Context, bucket, name, contentType string, options ...WriterOption) (*Writer, error) {
	if bucket == "" || name == "" {
		return nil, errors.New("chunkstore: bucket and name are required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	_, err := s.manifest(bucket, name)
	switch {
	case err == nil:
		return nil, errors.Wrap(ErrNameConflict, model.ManifestKey(bucket, name))
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}

	w := newWriter(ctx, s, bucket, name, contentType)
	for _, option := range options {
		option(w)
	}

	s.uploading.Store(w.manifest.ID, struct{}{})
	return w, nil
}

// OpenRead returns a stream of the object identified by its id or its name.
func (s *Store) OpenRead(ctx context.Context, bucket, idOrName string) (*Reader, error) {
	manifest, err := s.lookup(bucket, idOrName)
	if err != nil {
		return nil, err
	}

	chunks, err := s.db.FindChunksByObjectID(manifest.ID)
	if err != nil {
		return nil, storageError("open", err)
	}

	if len(chunks) != manifest.ChunkCount {
		// The manifest may come from the cache while the object has been deleted.
		if ok, err := s.Exists(bucket, manifest.ID); err == nil && !ok {
			s.forget(manifest.Key)
			return nil, errors.Wrap(ErrNotFound, idOrName)
		}
		return nil, errors.Wrapf(ErrCorruptedObject, "%s: %d chunks found, %d expected", manifest.ID, len(chunks), manifest.ChunkCount)
	}

	return newReader(ctx, s, manifest, chunks), nil
}

// Find returns the manifests of the bucket matching the exact name.
// All the manifests of the bucket are returned when name is empty.
func (s *Store) Find(bucket, name string) ([]*model.Manifest, error) {
	if name == "" {
		manifests, err := s.db.FindManifestsByBucket(bucket)
		return manifests, storageError("find", err)
	}

	manifest, err := s.manifest(bucket, name)
	if errors.Is(err, ErrNotFound) {
		return []*model.Manifest{}, nil
	}
	if err != nil {
		return nil, err
	}
	return []*model.Manifest{manifest}, nil
}

// Exists returns true if the object is committed in the bucket.
func (s *Store) Exists(bucket, id string) (bool, error) {
	manifest, err := s.db.FindManifest(id)
	if s.db.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, storageError("exists", err)
	}
	return manifest.Bucket == bucket, nil
}

// Delete removes the object's manifest and chunks.
// It returns false when the object does not exist.
func (s *Store) Delete(ctx context.Context, bucket, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	var manifest *model.Manifest
	err := s.db.Transaction(func(tx database.Client) (err error) {
		manifest, err = tx.FindManifest(id)
		if tx.IsNotFound(err) {
			manifest = nil
			return nil
		}
		if err != nil {
			return err
		}
		if manifest.Bucket != bucket {
			manifest = nil
			return nil
		}

		if err = tx.DeleteChunksByObjectID(id); err != nil {
			return err
		}
		if err = tx.DeleteManifest(id); err != nil {
			return err
		}
		return updateBucket(tx, bucket, -1, -manifest.Length)
	})
	if err != nil {
		return false, storageError("delete", err)
	}
	if manifest == nil {
		return false, nil
	}

	s.forget(manifest.Key)
	objects.WithLabelValues(bucket, "deleted").Inc()

	// The object is no longer reachable, leftovers are removed by the sweeper.
	if err = s.storage.Remove(bucket, id); err != nil {
		s.logger.Warnf("could not remove chunks of %s: %s", path.Join(bucket, id), err)
	}

	s.logger.Infof("Deleted %s (%s)", path.Join(bucket, manifest.Name), humanize.Bytes(uint64(manifest.Length)))
	return true, nil
}

// Sweep removes the chunks of the uploads that never got committed.
// Only folders older than olderThan and not owned by an open writer are considered.
func (s *Store) Sweep(ctx context.Context, bucket string, olderThan time.Duration) (int, error) {
	entries, err := s.storage.Entries(bucket)
	if err != nil {
		return 0, storageError("sweep", err)
	}

	var removed int
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}

		if !entry.Dir || time.Since(entry.ModTime) < olderThan {
			continue
		}
		if _, ok := s.uploading.Load(entry.Name); ok {
			continue
		}

		_, err := s.db.FindManifest(entry.Name)
		if err == nil {
			continue
		}
		if !s.db.IsNotFound(err) {
			return removed, storageError("sweep", err)
		}

		if err = s.storage.Remove(bucket, entry.Name); err != nil {
			return removed, storageError("sweep", err)
		}
		removed++
		objects.WithLabelValues(bucket, "swept").Inc()
		s.logger.Infof("Swept uncommitted object %s", path.Join(bucket, entry.Name))
	}

	return removed, nil
}

// Buckets returns the statistics of all the buckets.
func (s *Store) Buckets() ([]*model.Bucket, error) {
	buckets, err := s.db.ListBuckets()
	return buckets, storageError("buckets", err)
}

func (s *Store) lookup(bucket, idOrName string) (*model.Manifest, error) {
	manifest, err := s.db.FindManifest(idOrName)
	if err == nil && manifest.Bucket == bucket {
		return manifest, nil
	}
	if err != nil && !s.db.IsNotFound(err) {
		return nil, storageError("lookup", err)
	}

	return s.manifest(bucket, idOrName)
}

func (s *Store) manifest(bucket, name string) (*model.Manifest, error) {
	key := model.ManifestKey(bucket, name)
	if manifest, ok := s.manifests.Get(key); ok {
		return manifest, nil
	}

	generation := s.cacheGeneration()

	manifest, err := s.db.FindManifestByName(bucket, name)
	if s.db.IsNotFound(err) {
		return nil, errors.Wrap(ErrNotFound, key)
	}
	if err != nil {
		return nil, storageError("lookup", err)
	}

	s.remember(generation, manifest)
	return manifest, nil
}

func (s *Store) cacheGeneration() uint64 {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	return s.generation
}

// remember caches a manifest loaded from the database unless an eviction
// happened since generation was read, the manifest may be deleted already.
func (s *Store) remember(generation uint64, manifest *model.Manifest) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	if generation == s.generation {
		s.manifests.Add(manifest.Key, manifest)
	}
}

func (s *Store) forget(key string) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	s.generation++
	s.manifests.Remove(key)
}

func updateBucket(tx database.Client, name string, count int, bytes int64) error {
	bucket, err := tx.FindBucketByName(name)
	if tx.IsNotFound(err) {
		bucket = &model.Bucket{Name: name}
		err = nil
	}
	if err != nil {
		return err
	}

	bucket.Count += count
	bucket.Bytes += bytes
	return tx.Save(bucket)
}

func chunkKey(id string, seq int) string {
	return path.Join(id, fmt.Sprintf("%08d", seq))
}
