package serializer

import (
	"strings"

	"github.com/mdouchement/mediastore/internal/model"
)

// TextBuckets returns the text serialized form of the given models.
func TextBuckets(buckets []*model.Bucket) string {
	sl := make([]string, 0, len(buckets))

	for _, bucket := range buckets {
		sl = append(sl, bucket.Name)
	}

	return strings.Join(sl, "\n")
}

// Buckets returns the serialized form of the given models.
func Buckets(buckets []*model.Bucket) []map[string]interface{} {
	sl := make([]map[string]interface{}, 0, len(buckets))

	for _, bucket := range buckets {
		sl = append(sl, Bucket(bucket))
	}

	return sl
}

// Bucket returns the serialized form of the given model.
func Bucket(bucket *model.Bucket) map[string]interface{} {
	return map[string]interface{}{
		"name":         bucket.Name,
		"count":        bucket.Count,
		"bytes":        bucket.Bytes,
		"last_updated": bucket.UpdatedAt,
	}
}
