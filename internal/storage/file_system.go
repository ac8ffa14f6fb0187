package storage

import (
	"io"
	fspkg "io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

type fs struct {
	workspace string
}

// NewFileSystem returns a new File System backend.
func NewFileSystem(workspace string) Backend {
	return &fs{
		workspace: workspace,
	}
}

func (b *fs) Name() string {
	return "file_system"
}

func (b *fs) Reader(bucket, key string) (io.ReadCloser, error) {
	rc, err := os.Open(filepath.Join(b.workspace, bucket, key))
	if err != nil {
		return nil, errors.Wrap(err, "could not open file")
	}
	return rc, nil
}

func (b *fs) Writer(bucket, key string) (io.WriteCloser, error) {
	if err := b.mkdirAllWithFilename(bucket, key); err != nil {
		return nil, errors.Wrap(err, "could not create folder")
	}

	wc, err := os.Create(filepath.Join(b.workspace, bucket, key))
	if os.IsNotExist(err) {
		// Folder removed by a concurrent Cleanup.
		if err = b.mkdirAllWithFilename(bucket, key); err == nil {
			wc, err = os.Create(filepath.Join(b.workspace, bucket, key))
		}
	}
	if err != nil {
		return nil, errors.Wrap(err, "could not create file")
	}
	return &syncWriter{File: wc}, nil
}

func (b *fs) Entries(prefix string) ([]Entry, error) {
	dirEntries, err := os.ReadDir(filepath.Join(b.workspace, prefix))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "could not list entries")
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, entry := range dirEntries {
		info, err := entry.Info()
		if err != nil {
			if os.IsNotExist(err) {
				continue // removed in the meantime
			}
			return nil, errors.Wrap(err, "could not stat entry")
		}

		entries = append(entries, Entry{
			Name:    entry.Name(),
			Dir:     entry.IsDir(),
			ModTime: info.ModTime(),
		})
	}

	return entries, nil
}

func (b *fs) exist(bucket, key string) bool {
	_, err := os.Stat(filepath.Join(b.workspace, bucket, key))
	if err == nil {
		return true
	}
	if os.IsNotExist(err) {
		return false
	}
	return true // ignoring error
}

func (b *fs) Remove(bucket, key string) error {
	err := os.RemoveAll(filepath.Join(b.workspace, bucket, key))
	if err != nil {
		return errors.Wrap(err, "could not delete file")
	}
	return nil
}

func (b *fs) Cleanup() error {
	// Find empty directories.
	//
	stats := map[string]int{}
	err := filepath.Walk(b.workspace, func(path string, info fspkg.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}

		if info.IsDir() {
			if path == b.workspace {
				return nil
			}
			stats[path] = 0
			return nil
		}

		if strings.HasSuffix(path, ".DS_Store") {
			return nil
		}

		trimmedpath := strings.Replace(path, b.workspace, "", 1)
		base := b.workspace

		for _, segment := range strings.Split(filepath.Dir(trimmedpath), string(os.PathSeparator)) {
			base = filepath.Join(base, segment)
			if !strings.HasPrefix(base, b.workspace) {
				continue
			}
			stats[base]++
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "cleanup")
	}

	// Remove empty directories.
	//
	dirnames := make([]string, 0, len(stats))
	for dirname, count := range stats {
		if count == 0 {
			dirnames = append(dirnames, dirname)
		}
	}
	removeEmpty(dirnames)
	return nil
}

// removeEmpty removes the directories deepest first.
// A directory filled since the walk is not empty anymore and is kept.
func removeEmpty(dirnames []string) {
	sort.Slice(dirnames, func(i, j int) bool {
		return len(dirnames[i]) > len(dirnames[j])
	})

	for _, dirname := range dirnames {
		os.Remove(dirname)
	}
}

func (b *fs) mkdirAllWithFilename(bucket, key string) error {
	return b.mkdirAll(bucket, filepath.Dir(key))
}

func (b *fs) mkdirAll(bucket, key string) error {
	if b.exist(bucket, key) {
		return nil
	}
	return os.MkdirAll(filepath.Join(b.workspace, bucket, key), 0755)
}

// syncWriter flushes the file to the medium before closing it.
type syncWriter struct {
	*os.File
}

func (w *syncWriter) Close() error {
	if err := w.File.Sync(); err != nil {
		w.File.Close()
		return errors.Wrap(err, "could not sync file")
	}
	return errors.Wrap(w.File.Close(), "could not close file")
}
