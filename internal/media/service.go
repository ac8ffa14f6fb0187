// Package media implements the upload pipeline and the query operations
// on top of the chunked object store and the caption index.
package media

import (
	"context"
	"mime"
	"strings"

	"github.com/mdouchement/logger"
	"github.com/mdouchement/mediastore/internal/chunkstore"
	"github.com/mdouchement/mediastore/internal/index"
	"github.com/mdouchement/mediastore/internal/model"
	"github.com/pkg/errors"
)

type (
	// A Bucket is an upload destination and its inline allow-list.
	Bucket struct {
		Name   string   `mapstructure:"name"`
		Inline []string `mapstructure:"inline"`
	}

	// A Controller is an Iversion Of Control pattern used to init the service.
	Controller struct {
		Logger  logger.Logger
		Store   *chunkstore.Store
		Index   *index.Index
		Buckets []Bucket
		// CompensateOrphans deletes the committed object when its record cannot be created.
		CompensateOrphans bool
	}

	// A Service exposes the media operations.
	Service struct {
		logger     logger.Logger
		store      *chunkstore.Store
		index      *index.Index
		buckets    map[string]Bucket
		compensate bool
	}

	// A Listing is a manifest flagged with its inline displayability.
	Listing struct {
		*model.Manifest
		Inline bool `json:"is_displayable_inline"`
	}
)

// DefaultBuckets returns the image and video buckets.
func DefaultBuckets() []Bucket {
	return []Bucket{
		{Name: "images", Inline: []string{"image/jpeg", "image/png", "image/svg+xml"}},
		{Name: "videos", Inline: []string{"video/mp4", "video/webm", "video/ogg"}},
	}
}

// New returns a new Service.
func New(c Controller) *Service {
	if len(c.Buckets) == 0 {
		c.Buckets = DefaultBuckets()
	}

	buckets := make(map[string]Bucket, len(c.Buckets))
	for _, bucket := range c.Buckets {
		buckets[bucket.Name] = bucket
	}

	return &Service{
		logger:     c.Logger.WithPrefix("[media]"),
		store:      c.Store,
		index:      c.Index,
		buckets:    buckets,
		compensate: c.CompensateOrphans,
	}
}

// Stats returns the statistics of the buckets holding objects.
func (s *Service) Stats() ([]*model.Bucket, error) {
	return s.store.Buckets()
}

// List returns all the manifests of the bucket.
func (s *Service) List(bucket string) ([]Listing, error) {
	b, err := s.bucket(bucket)
	if err != nil {
		return nil, err
	}

	manifests, err := s.store.Find(bucket, "")
	if err != nil {
		return nil, err
	}

	listings := make([]Listing, 0, len(manifests))
	for _, manifest := range manifests {
		listings = append(listings, Listing{
			Manifest: manifest,
			Inline:   b.Displayable(manifest.ContentType),
		})
	}
	return listings, nil
}

// FetchManifest returns the manifest of the object named name.
func (s *Service) FetchManifest(bucket, name string) (*model.Manifest, error) {
	if _, err := s.bucket(bucket); err != nil {
		return nil, err
	}

	manifests, err := s.store.Find(bucket, name)
	if err != nil {
		return nil, err
	}
	if len(manifests) == 0 {
		return nil, errors.Wrap(ErrNotFound, name)
	}
	return manifests[0], nil
}

// FetchBytes returns a stream of the object named name.
// Only content types of the bucket's inline allow-list are served.
func (s *Service) FetchBytes(ctx context.Context, bucket, name string) (*chunkstore.Reader, error) {
	b, err := s.bucket(bucket)
	if err != nil {
		return nil, err
	}

	manifest, err := s.FetchManifest(bucket, name)
	if err != nil {
		return nil, err
	}
	if !b.Displayable(manifest.ContentType) {
		return nil, errors.Wrap(ErrNotDisplayable, manifest.ContentType)
	}

	return s.store.OpenRead(ctx, bucket, manifest.ID)
}

// DeleteObject removes the object. Its index record, if any, is kept.
func (s *Service) DeleteObject(ctx context.Context, bucket, id string) (bool, error) {
	if _, err := s.bucket(bucket); err != nil {
		return false, err
	}
	return s.store.Delete(ctx, bucket, id)
}

// DeleteIndexRecord removes the index record. The referenced object is kept.
func (s *Service) DeleteIndexRecord(id string) (bool, error) {
	return s.index.DeleteByID(id)
}

// MostRecentRecord returns the last indexed record or nil.
func (s *Service) MostRecentRecord() (*model.Record, error) {
	return s.index.MostRecent()
}

// Records returns all the index records, oldest first.
func (s *Service) Records() ([]*model.Record, error) {
	return s.index.ListAll()
}

func (s *Service) bucket(name string) (Bucket, error) {
	b, ok := s.buckets[name]
	if !ok {
		return b, errors.Wrap(ErrUnknownBucket, name)
	}
	return b, nil
}

// Displayable returns true if the content type is in the inline allow-list.
func (b Bucket) Displayable(contentType string) bool {
	mediatype, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}

	for _, allowed := range b.Inline {
		if strings.EqualFold(mediatype, allowed) {
			return true
		}
	}
	return false
}
