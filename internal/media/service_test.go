package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/mdouchement/logger"
	"github.com/mdouchement/mediastore/internal/chunkstore"
	"github.com/mdouchement/mediastore/internal/database"
	"github.com/mdouchement/mediastore/internal/index"
	"github.com/mdouchement/mediastore/internal/storage"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var png = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte("meow"), 300)...)

type fixture struct {
	service *Service
	index   *index.Index
	db      database.Client
}

func setup(t *testing.T, compensate bool) *fixture {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	db, err := database.StormOpen(filepath.Join(t.TempDir(), "mediastore.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := chunkstore.New(chunkstore.Controller{
		Logger:    logger.WrapLogrus(log),
		Database:  db,
		Storage:   storage.NewFileSystem(t.TempDir()),
		ChunkSize: 256,
	})
	require.NoError(t, err)

	idx := index.New(logger.WrapLogrus(log), db)

	return &fixture{
		service: New(Controller{
			Logger:            logger.WrapLogrus(log),
			Store:             store,
			Index:             idx,
			CompensateOrphans: compensate,
		}),
		index: idx,
		db:    db,
	}
}

func file(caption, filename, contentType string, payload []byte) File {
	return File{
		Caption:     caption,
		Filename:    filename,
		ContentType: contentType,
		Length:      int64(len(payload)),
		Body:        bytes.NewReader(payload),
	}
}

func TestUpload(t *testing.T) {
	f := setup(t, true)
	ctx := context.Background()

	result, err := f.service.Upload(ctx, "images", file("cat1", "cat.png", "image/png", png))
	require.NoError(t, err)
	assert.Equal(t, "cat1", result.Caption)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{32}\.png$`), result.Name)
	assert.NotEmpty(t, result.ObjectID)
	assert.Equal(t, int64(len(png)), result.Length)
	assert.False(t, result.CreatedAt.IsZero())

	listings, err := f.service.List("images")
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, result.Name, listings[0].Name)
	assert.Equal(t, result.ObjectID, listings[0].ID)
	assert.True(t, listings[0].Inline)

	record, err := f.service.MostRecentRecord()
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "cat1", record.Caption)
	assert.Equal(t, result.Name, record.Name)
	assert.Equal(t, result.ObjectID, record.ObjectID)

	r, err := f.service.FetchBytes(ctx, "images", result.Name)
	require.NoError(t, err)
	defer r.Close()

	payload, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, png, payload)
}

func TestUpload_Validation(t *testing.T) {
	f := setup(t, true)
	ctx := context.Background()

	_, err := f.service.Upload(ctx, "documents", file("doc", "a.pdf", "application/pdf", []byte("pdf")))
	assert.True(t, errors.Is(err, ErrUnknownBucket))

	_, err = f.service.Upload(ctx, "images", file("", "cat.png", "image/png", png))
	assert.True(t, errors.Is(err, ErrMissingCaption))
}

func TestUpload_DuplicateCaption(t *testing.T) {
	f := setup(t, true)
	ctx := context.Background()

	_, err := f.service.Upload(ctx, "images", file("dup", "a.png", "image/png", png))
	require.NoError(t, err)

	_, err = f.service.Upload(ctx, "images", file("dup", "b.png", "image/png", png))
	assert.True(t, errors.Is(err, ErrDuplicateCaption))

	listings, err := f.service.List("images")
	require.NoError(t, err)
	assert.Len(t, listings, 1)

	records, err := f.service.Records()
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

// racer indexes the caption once the payload is consumed, like a concurrent upload would.
type racer struct {
	io.Reader
	index   *index.Index
	caption string
	done    bool
}

func (r *racer) Read(p []byte) (int, error) {
	n, err := r.Reader.Read(p)
	if err == io.EOF && !r.done {
		r.done = true
		if _, ierr := r.index.InsertIfAbsent(r.caption, "videos", "winner.mp4", "winner"); ierr != nil {
			return n, ierr
		}
	}
	return n, err
}

func TestUpload_Compensation(t *testing.T) {
	for _, compensate := range []bool{true, false} {
		t.Run(fmt.Sprint(compensate), func(t *testing.T) {
			f := setup(t, compensate)

			_, err := f.service.Upload(context.Background(), "images", File{
				Caption:     "race",
				Filename:    "cat.png",
				ContentType: "image/png",
				Length:      -1,
				Body:        &racer{Reader: bytes.NewReader(png), index: f.index, caption: "race"},
			})
			assert.True(t, errors.Is(err, ErrDuplicateCaption))

			listings, err := f.service.List("images")
			require.NoError(t, err)
			if compensate {
				assert.Empty(t, listings)
			} else {
				assert.Len(t, listings, 1)
			}
		})
	}
}

func TestUpload_Cancelled(t *testing.T) {
	f := setup(t, true)

	ctx, cancel := context.WithCancel(context.Background())
	body := io.MultiReader(bytes.NewReader(png[:300]), readerFunc(func(p []byte) (int, error) {
		cancel()
		return 0, io.EOF
	}))

	_, err := f.service.Upload(ctx, "images", File{
		Caption:     "cancelled",
		Filename:    "cat.png",
		ContentType: "image/png",
		Length:      -1,
		Body:        body,
	})
	assert.True(t, errors.Is(err, context.Canceled))

	listings, err := f.service.List("images")
	require.NoError(t, err)
	assert.Empty(t, listings)

	record, err := f.service.MostRecentRecord()
	require.NoError(t, err)
	assert.Nil(t, record)
}

type readerFunc func(p []byte) (int, error)

func (f readerFunc) Read(p []byte) (int, error) {
	return f(p)
}

func TestUpload_SniffContentType(t *testing.T) {
	f := setup(t, true)

	result, err := f.service.Upload(context.Background(), "images", file("sniffed", "cat", "", png))
	require.NoError(t, err)
	assert.Equal(t, "image/png", result.ContentType)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{32}$`), result.Name)
}

func TestUploadMany(t *testing.T) {
	f := setup(t, true)
	ctx := context.Background()

	files := []File{
		file("one", "1.png", "image/png", png),
		file("two", "2.png", "image/png", png),
		file("three", "3.png", "image/png", png),
		file("four", "4.png", "image/png", png),
	}

	_, err := f.service.UploadMany(ctx, "images", files)
	assert.True(t, errors.Is(err, ErrTooManyFiles))

	listings, err := f.service.List("images")
	require.NoError(t, err)
	assert.Empty(t, listings)

	outcomes, err := f.service.UploadMany(ctx, "images", files[:3])
	require.NoError(t, err)
	require.Len(t, outcomes, 3)
	for i, outcome := range outcomes {
		require.NoError(t, outcome.Err)
		assert.Equal(t, files[i].Caption, outcome.Result.Caption)
	}

	listings, err = f.service.List("images")
	require.NoError(t, err)
	assert.Len(t, listings, 3)
}

func TestUploadMany_PartialFailure(t *testing.T) {
	f := setup(t, true)
	ctx := context.Background()

	_, err := f.service.Upload(ctx, "images", file("taken", "0.png", "image/png", png))
	require.NoError(t, err)

	outcomes, err := f.service.UploadMany(ctx, "images", []File{
		file("fresh", "1.png", "image/png", png),
		file("taken", "2.png", "image/png", png),
	})
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.NoError(t, outcomes[0].Err)
	assert.True(t, errors.Is(outcomes[1].Err, ErrDuplicateCaption))
	assert.Nil(t, outcomes[1].Result)
}

func TestFetch(t *testing.T) {
	f := setup(t, true)
	ctx := context.Background()

	result, err := f.service.Upload(ctx, "images", file("doc", "doc.pdf", "application/pdf", []byte("%PDF-1.4")))
	require.NoError(t, err)

	listings, err := f.service.List("images")
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.False(t, listings[0].Inline)

	manifest, err := f.service.FetchManifest("images", result.Name)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", manifest.ContentType)
	assert.Equal(t, "doc.pdf", manifest.Filename)

	_, err = f.service.FetchBytes(ctx, "images", result.Name)
	assert.True(t, errors.Is(err, ErrNotDisplayable))

	_, err = f.service.FetchManifest("images", "missing.png")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = f.service.FetchBytes(ctx, "images", "missing.png")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = f.service.FetchManifest("videos", result.Name)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestDelete(t *testing.T) {
	f := setup(t, true)
	ctx := context.Background()

	result, err := f.service.Upload(ctx, "images", file("cat1", "cat.png", "image/png", png))
	require.NoError(t, err)

	deleted, err := f.service.DeleteObject(ctx, "images", result.ObjectID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = f.service.DeleteObject(ctx, "images", result.ObjectID)
	require.NoError(t, err)
	assert.False(t, deleted)

	// The index record is not cascaded.
	record, err := f.service.MostRecentRecord()
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, result.ObjectID, record.ObjectID)

	deleted, err = f.service.DeleteIndexRecord(record.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = f.service.DeleteIndexRecord(record.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	record, err = f.service.MostRecentRecord()
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestBucketDisplayable(t *testing.T) {
	bucket := DefaultBuckets()[0]

	assert.True(t, bucket.Displayable("image/png"))
	assert.True(t, bucket.Displayable("image/svg+xml; charset=utf-8"))
	assert.True(t, bucket.Displayable("IMAGE/JPEG"))
	assert.False(t, bucket.Displayable("application/pdf"))
	assert.False(t, bucket.Displayable(""))
}

func TestUpload_StorageUnavailable(t *testing.T) {
	f := setup(t, true)
	require.NoError(t, f.db.Close())

	_, err := f.service.Upload(context.Background(), "images", file("cat1", "cat.png", "image/png", png))
	assert.True(t, errors.Is(err, ErrStorageUnavailable))
	assert.False(t, errors.Is(err, ErrDuplicateCaption))

	_, err = f.service.MostRecentRecord()
	assert.True(t, errors.Is(err, ErrStorageUnavailable))
}
