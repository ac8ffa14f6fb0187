package serializer

import (
	"strings"

	"github.com/mdouchement/mediastore/internal/media"
	"github.com/mdouchement/mediastore/internal/model"
)

// TextListings returns the text serialized form of the given listings.
func TextListings(listings []media.Listing) string {
	sl := make([]string, 0, len(listings))

	for _, listing := range listings {
		sl = append(sl, listing.Name)
	}

	return strings.Join(sl, "\n")
}

// Listings returns the serialized form of the given listings.
func Listings(listings []media.Listing) []map[string]interface{} {
	sl := make([]map[string]interface{}, 0, len(listings))

	for _, listing := range listings {
		m := Manifest(listing.Manifest)
		m["is_displayable_inline"] = listing.Inline
		sl = append(sl, m)
	}

	return sl
}

// Manifest returns the serialized form of the given model.
func Manifest(manifest *model.Manifest) map[string]interface{} {
	return map[string]interface{}{
		"id":                manifest.ID,
		"bucket":            manifest.Bucket,
		"filename":          manifest.Name,
		"original_filename": manifest.Filename,
		"content_type":      manifest.ContentType,
		"length":            manifest.Length,
		"chunk_size":        manifest.ChunkSize,
		"upload_date":       manifest.CreatedAt,
		"md5":               manifest.Checksum,
	}
}
