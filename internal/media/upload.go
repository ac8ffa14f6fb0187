package media

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"io"
	"path"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/mdouchement/mediastore/internal/chunkstore"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// MaxFiles is the maximum number of files accepted by UploadMany.
const MaxFiles = 3

// sniffLen is the number of leading bytes used to detect a content type.
const sniffLen = 3072

type (
	// A File is an upload request.
	File struct {
		Caption     string
		Filename    string
		ContentType string
		// Length is the expected payload length, negative when unknown.
		Length int64
		Body   io.Reader
	}

	// A Result describes a successful upload.
	Result struct {
		Caption     string    `json:"caption"`
		Name        string    `json:"filename"`
		ObjectID    string    `json:"file_id"`
		Bucket      string    `json:"bucket"`
		Length      int64     `json:"length"`
		ContentType string    `json:"content_type"`
		CreatedAt   time.Time `json:"created_at"`
	}

	// An Outcome is the result of one file of UploadMany.
	Outcome struct {
		Result *Result
		Err    error
	}
)

// Upload stores the file in the bucket and indexes it by its caption.
func (s *Service) Upload(ctx context.Context, bucket string, file File) (*Result, error) {
	if _, err := s.bucket(bucket); err != nil {
		return nil, err
	}
	if file.Caption == "" {
		return nil, ErrMissingCaption
	}

	name, err := storageName(file.Filename)
	if err != nil {
		return nil, errors.Wrap(err, "storage name")
	}

	exists, err := s.index.Exists(file.Caption)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, errors.Wrap(ErrDuplicateCaption, file.Caption)
	}

	body := file.Body
	if file.ContentType == "" || file.ContentType == "application/octet-stream" {
		file.ContentType, body, err = sniff(body)
		if err != nil {
			uploads.WithLabelValues(bucket, "failed").Inc()
			return nil, errors.Wrap(err, "sniff")
		}
	}

	options := []chunkstore.WriterOption{chunkstore.WithFilename(file.Filename)}
	if file.Length >= 0 {
		options = append(options, chunkstore.WithLength(file.Length))
	}

	w, err := s.store.Create(ctx, bucket, name, file.ContentType, options...)
	if err != nil {
		uploads.WithLabelValues(bucket, "failed").Inc()
		return nil, err
	}

	if _, err = io.Copy(w, body); err != nil {
		w.Abort()
		uploads.WithLabelValues(bucket, "failed").Inc()
		return nil, errors.Wrap(err, "upload")
	}

	manifest, err := w.Commit()
	if err != nil {
		w.Abort()
		uploads.WithLabelValues(bucket, "failed").Inc()
		return nil, err
	}

	record, err := s.index.InsertIfAbsent(file.Caption, bucket, manifest.Name, manifest.ID)
	if err != nil {
		uploads.WithLabelValues(bucket, "failed").Inc()
		s.compensation(bucket, manifest.ID, err)
		return nil, err
	}

	uploads.WithLabelValues(bucket, "succeeded").Inc()
	s.logger.Infof("%s uploaded as %s/%s (%s)", file.Caption, bucket, manifest.Name, humanize.Bytes(uint64(manifest.Length)))

	return &Result{
		Caption:     record.Caption,
		Name:        manifest.Name,
		ObjectID:    manifest.ID,
		Bucket:      bucket,
		Length:      manifest.Length,
		ContentType: manifest.ContentType,
		CreatedAt:   record.Created(),
	}, nil
}

// UploadMany uploads at most MaxFiles files concurrently.
// Outcomes are returned in the files order.
func (s *Service) UploadMany(ctx context.Context, bucket string, files []File) ([]Outcome, error) {
	if len(files) > MaxFiles {
		return nil, errors.Wrapf(ErrTooManyFiles, "%d files, %d allowed", len(files), MaxFiles)
	}
	if _, err := s.bucket(bucket); err != nil {
		return nil, err
	}

	outcomes := make([]Outcome, len(files))

	// Failures are reported per file so the group never cancels its siblings.
	var g errgroup.Group
	for i := range files {
		i := i
		g.Go(func() error {
			result, err := s.Upload(ctx, bucket, files[i])
			outcomes[i] = Outcome{Result: result, Err: err}
			return nil
		})
	}
	g.Wait()

	return outcomes, nil
}

func (s *Service) compensation(bucket, id string, cause error) {
	if !s.compensate {
		s.logger.Warnf("%s/%s is not indexed: %s", bucket, id, cause)
		return
	}

	// The upload context may be gone, the committed object must not stay orphaned.
	if _, err := s.store.Delete(context.Background(), bucket, id); err != nil {
		s.logger.Errorf("could not delete orphan %s/%s: %s", bucket, id, err)
		return
	}
	s.logger.Infof("orphan %s/%s deleted: %s", bucket, id, cause)
}

func storageName(filename string) (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf) + path.Ext(filename), nil
}

func sniff(r io.Reader) (string, io.Reader, error) {
	br := bufio.NewReaderSize(r, sniffLen)
	head, err := br.Peek(sniffLen)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return "", nil, err
	}
	return mimetype.Detect(head).String(), br, nil
}
