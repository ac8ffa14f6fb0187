package chunkstore

import (
	"io"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/mdouchement/logger"
	"github.com/mdouchement/mediastore/internal/database"
	"github.com/mdouchement/mediastore/internal/storage"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store     *Store
	db        database.Client
	backend   storage.Backend
	workspace string
}

func setup(t *testing.T, chunkSize int) *fixture {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	db, err := database.StormOpen(filepath.Join(t.TempDir(), "mediastore.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	workspace := t.TempDir()
	backend := storage.NewFileSystem(workspace)

	store, err := New(Controller{
		Logger:    logger.WrapLogrus(log),
		Database:  db,
		Storage:   backend,
		ChunkSize: chunkSize,
	})
	require.NoError(t, err)

	return &fixture{
		store:     store,
		db:        db,
		backend:   backend,
		workspace: workspace,
	}
}

func random(seed int64, n int) []byte {
	payload := make([]byte, n)
	rand.New(rand.NewSource(seed)).Read(payload)
	return payload
}
