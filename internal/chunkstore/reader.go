package chunkstore

import (
	"context"
	"io"

	"github.com/mdouchement/mediastore/internal/model"
	"github.com/pkg/errors"
)

// A Reader streams an object by reading its chunks in sequence order, one at a time.
type Reader struct {
	ctx      context.Context
	store    *Store
	manifest *model.Manifest
	chunks   []*model.Chunk

	next    int
	current []byte
	read    int64
	closed  bool
}

func newReader(ctx context.Context, s *Store, manifest *model.Manifest, chunks []*model.Chunk) *Reader {
	return &Reader{
		ctx:      ctx,
		store:    s,
		manifest: manifest,
		chunks:   chunks,
	}
}

// Manifest returns the manifest of the object being read.
func (r *Reader) Manifest() *model.Manifest {
	return r.manifest
}

// Read implements io.Reader.
func (r *Reader) Read(p []byte) (int, error) {
	if r.closed {
		return 0, errors.New("chunkstore: read on closed reader")
	}

	for len(r.current) == 0 {
		if r.next >= len(r.chunks) {
			if r.read != r.manifest.Length {
				return 0, errors.Wrapf(ErrCorruptedObject, "%s: read %d bytes, expected %d", r.manifest.ID, r.read, r.manifest.Length)
			}
			return 0, io.EOF
		}

		if err := r.load(); err != nil {
			return 0, err
		}
	}

	n := copy(p, r.current)
	r.current = r.current[n:]
	r.read += int64(n)
	return n, nil
}

// Close releases the reader.
func (r *Reader) Close() error {
	r.closed = true
	r.current = nil
	return nil
}

func (r *Reader) load() error {
	if err := r.ctx.Err(); err != nil {
		return err
	}

	chunk := r.chunks[r.next]
	if chunk.Seq != r.next {
		return errors.Wrapf(ErrCorruptedObject, "%s: chunk %d found at position %d", r.manifest.ID, chunk.Seq, r.next)
	}

	compression, err := ParseCompression(chunk.Compression)
	if err != nil {
		return errors.Wrapf(ErrCorruptedObject, "%s: chunk %d: %s", r.manifest.ID, chunk.Seq, err)
	}

	rc, err := r.store.storage.Reader(r.manifest.Bucket, chunkKey(r.manifest.ID, chunk.Seq))
	if err != nil {
		return storageError("read chunk", err)
	}
	defer rc.Close()

	stored, err := io.ReadAll(io.LimitReader(rc, int64(chunk.StoredSize)+1))
	if err != nil {
		return storageError("read chunk", err)
	}
	if len(stored) != chunk.StoredSize {
		return errors.Wrapf(ErrCorruptedObject, "%s: chunk %d: %d bytes stored, expected %d", r.manifest.ID, chunk.Seq, len(stored), chunk.StoredSize)
	}

	payload, err := decode(stored, compression, chunk.Size)
	if err != nil {
		return errors.Wrapf(ErrCorruptedObject, "%s: chunk %d: %s", r.manifest.ID, chunk.Seq, err)
	}
	if HashChunk(payload) != chunk.Hash {
		return errors.Wrapf(ErrCorruptedObject, "%s: chunk %d: hash mismatch", r.manifest.ID, chunk.Seq)
	}

	r.current = payload
	r.next++
	return nil
}
