package chunkstore

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"hash"
	"path"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gofrs/uuid"
	"github.com/mdouchement/mediastore/internal/database"
	"github.com/mdouchement/mediastore/internal/model"
	"github.com/pkg/errors"
)

type writerState int

const (
	writerOpen writerState = iota
	writerCommitted
	writerAborted
)

// A WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithLength declares the number of bytes that will be written.
// Commit fails with ErrIncompleteUpload when another amount has been written.
func WithLength(n int64) WriterOption {
	return func(w *Writer) {
		if n >= 0 {
			w.expected = n
		}
	}
}

// WithFilename records the original filename in the manifest.
func WithFilename(filename string) WriterOption {
	return func(w *Writer) {
		w.manifest.Filename = filename
	}
}

// A Writer is the handle of an object being uploaded.
// It must be used by a single goroutine.
type Writer struct {
	ctx         context.Context
	store       *Store
	manifest    *model.Manifest
	compression Compression

	buf      []byte
	checksum hash.Hash
	chunks   []*model.Chunk
	written  int64
	expected int64

	state writerState
	err   error
}

func newWriter(ctx context.Context, s *Store, bucket, name, contentType string) *Writer {
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return &Writer{
		ctx:   ctx,
		store: s,
		manifest: &model.Manifest{
			Base:        model.Base{ID: uuid.Must(uuid.NewV4()).String()},
			Bucket:      bucket,
			Name:        name,
			Key:         model.ManifestKey(bucket, name),
			ChunkSize:   s.chunkSize,
			ContentType: contentType,
		},
		compression: CompressionFor(contentType),
		buf:         make([]byte, 0, s.chunkSize),
		checksum:    md5.New(),
		expected:    -1,
	}
}

// ID returns the identifier the object will have once committed.
func (w *Writer) ID() string {
	return w.manifest.ID
}

// Write appends p to the object. A chunk is flushed each time the chunk size is reached.
func (w *Writer) Write(p []byte) (int, error) {
	if err := w.writable(); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}

	var n int
	for len(p) > 0 {
		free := w.store.chunkSize - len(w.buf)
		if free > len(p) {
			free = len(p)
		}

		w.buf = append(w.buf, p[:free]...)
		w.checksum.Write(p[:free])
		w.written += int64(free)
		n += free
		p = p[free:]

		if len(w.buf) == w.store.chunkSize {
			if err := w.flush(); err != nil {
				w.err = err
				return n, err
			}
		}
	}

	return n, nil
}

// Commit flushes the last chunk and makes the object visible to readers.
func (w *Writer) Commit() (*model.Manifest, error) {
	if err := w.writable(); err != nil {
		return nil, err
	}
	if w.expected >= 0 && w.written != w.expected {
		return nil, errors.Wrapf(ErrIncompleteUpload, "%d of %d bytes written", w.written, w.expected)
	}

	if err := w.flush(); err != nil {
		w.err = err
		return nil, err
	}

	manifest := w.manifest
	manifest.SetCreatedAt(time.Now().UTC())
	manifest.Length = w.written
	manifest.ChunkCount = len(w.chunks)
	manifest.Checksum = hex.EncodeToString(w.checksum.Sum(nil))

	err := w.store.db.Transaction(func(tx database.Client) error {
		for _, chunk := range w.chunks {
			if err := tx.Save(chunk); err != nil {
				return err
			}
		}

		if err := tx.Save(manifest); err != nil {
			if tx.IsAlreadyExists(err) {
				return errors.Wrap(ErrNameConflict, manifest.Key)
			}
			return err
		}

		return updateBucket(tx, manifest.Bucket, 1, manifest.Length)
	})
	if err != nil {
		w.abort()
		if errors.Is(err, ErrNameConflict) {
			return nil, err
		}
		return nil, storageError("commit", err)
	}

	w.state = writerCommitted
	w.store.uploading.Delete(manifest.ID)
	w.store.manifests.Add(manifest.Key, manifest)
	objects.WithLabelValues(manifest.Bucket, "committed").Inc()

	w.store.logger.Infof("Committed %s (%s, %d chunks)",
		path.Join(manifest.Bucket, manifest.Name), humanize.Bytes(uint64(manifest.Length)), manifest.ChunkCount)
	return manifest, nil
}

// Abort drops the chunks already written. The object never becomes visible.
// Aborting a committed writer is a no-op.
func (w *Writer) Abort() error {
	if w.state != writerOpen {
		return nil
	}
	return w.abort()
}

func (w *Writer) abort() error {
	w.state = writerAborted
	defer w.store.uploading.Delete(w.manifest.ID)

	objects.WithLabelValues(w.manifest.Bucket, "aborted").Inc()
	err := w.store.storage.Remove(w.manifest.Bucket, w.manifest.ID)
	return storageError("abort", err)
}

func (w *Writer) flush() error {
	if len(w.buf) == 0 {
		return nil
	}
	if err := w.ctx.Err(); err != nil {
		return errors.Wrap(err, "chunkstore: write interrupted")
	}

	seq := len(w.chunks)
	payload, compression, err := encode(w.buf, w.compression)
	if err != nil {
		return errors.Wrapf(err, "chunkstore: encode chunk %d", seq)
	}

	wc, err := w.store.storage.Writer(w.manifest.Bucket, chunkKey(w.manifest.ID, seq))
	if err != nil {
		return storageError("write chunk", err)
	}
	if _, err = wc.Write(payload); err != nil {
		wc.Close()
		return storageError("write chunk", err)
	}
	if err = wc.Close(); err != nil {
		return storageError("write chunk", err)
	}

	w.chunks = append(w.chunks, &model.Chunk{
		ObjectID:    w.manifest.ID,
		Seq:         seq,
		Size:        len(w.buf),
		StoredSize:  len(payload),
		Compression: compression.String(),
		Hash:        HashChunk(w.buf),
	})

	chunksWritten.WithLabelValues(w.manifest.Bucket, compression.String()).Inc()
	bytesWritten.WithLabelValues(w.manifest.Bucket).Add(float64(len(w.buf)))

	w.buf = w.buf[:0]
	return nil
}

func (w *Writer) writable() error {
	switch {
	case w.state != writerOpen:
		return ErrClosedWriter
	case w.err != nil:
		return w.err
	}
	return nil
}
