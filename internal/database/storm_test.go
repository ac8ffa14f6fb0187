package database

import (
	"path/filepath"
	"testing"

	"github.com/mdouchement/mediastore/internal/model"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func open(t *testing.T) Client {
	t.Helper()

	name := filepath.Join(t.TempDir(), "mediastore.db")
	require.NoError(t, StormInit(name))

	db, err := StormOpen(name)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSave(t *testing.T) {
	db := open(t)

	manifest := &model.Manifest{Bucket: "images", Name: "a.png", Key: model.ManifestKey("images", "a.png")}
	require.NoError(t, db.Save(manifest))
	assert.NotEmpty(t, manifest.ID)
	assert.NotNil(t, manifest.CreatedAt)
	assert.NotNil(t, manifest.UpdatedAt)

	found, err := db.FindManifestByName("images", "a.png")
	require.NoError(t, err)
	assert.Equal(t, manifest.ID, found.ID)

	_, err = db.FindManifestByName("videos", "a.png")
	assert.True(t, db.IsNotFound(err))

	duplicate := &model.Manifest{Bucket: "images", Name: "a.png", Key: model.ManifestKey("images", "a.png")}
	err = db.Save(duplicate)
	assert.True(t, db.IsAlreadyExists(err))
}

func TestTransaction(t *testing.T) {
	db := open(t)

	err := db.Transaction(func(tx Client) error {
		if err := tx.Save(&model.Chunk{ObjectID: "obj", Seq: 0}); err != nil {
			return err
		}
		return errors.New("rollback")
	})
	assert.EqualError(t, err, "rollback")

	chunks, err := db.FindChunksByObjectID("obj")
	require.NoError(t, err)
	assert.Empty(t, chunks)

	err = db.Transaction(func(tx Client) error {
		for _, seq := range []int{2, 0, 1} {
			if err := tx.Save(&model.Chunk{ObjectID: "obj", Seq: seq}); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	chunks, err = db.FindChunksByObjectID("obj")
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Seq)
	}

	require.NoError(t, db.DeleteChunksByObjectID("obj"))
	require.NoError(t, db.DeleteChunksByObjectID("obj"))
	chunks, err = db.FindChunksByObjectID("obj")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestRecords(t *testing.T) {
	db := open(t)

	_, err := db.LastRecord()
	assert.True(t, db.IsNotFound(err))

	records, err := db.AllRecords()
	require.NoError(t, err)
	assert.Empty(t, records)

	for _, caption := range []string{"first", "second", "third"} {
		require.NoError(t, db.Save(&model.Record{Caption: caption}))
	}

	err = db.Save(&model.Record{Caption: "second"})
	assert.True(t, db.IsAlreadyExists(err))

	records, err = db.AllRecords()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "first", records[0].Caption)
	assert.Equal(t, "third", records[2].Caption)
	assert.True(t, records[0].Seq < records[1].Seq)

	last, err := db.LastRecord()
	require.NoError(t, err)
	assert.Equal(t, "third", last.Caption)

	found, err := db.FindRecordByCaption("second")
	require.NoError(t, err)
	require.NoError(t, db.DeleteRecord(found.ID))

	_, err = db.FindRecord(found.ID)
	assert.True(t, db.IsNotFound(err))
}

func TestReIndex(t *testing.T) {
	name := filepath.Join(t.TempDir(), "mediastore.db")

	db, err := StormOpen(name)
	require.NoError(t, err)
	require.NoError(t, db.Save(&model.Bucket{Name: "images", Count: 1, Bytes: 42}))
	require.NoError(t, db.Close())

	require.NoError(t, StormReIndex(name))

	db, err = StormOpen(name)
	require.NoError(t, err)
	defer db.Close()

	bucket, err := db.FindBucketByName("images")
	require.NoError(t, err)
	assert.Equal(t, int64(42), bucket.Bytes)
}
