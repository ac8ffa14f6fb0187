package model

// A Manifest describes a stored object and makes it visible to readers once saved.
// Its payload is split accross several Chunks.
type Manifest struct {
	Base `json:",inline" storm:"inline"`

	Bucket string `json:"bucket" storm:"index"`
	Name   string `json:"name"   storm:"index"`
	Key    string `json:"key"    storm:"unique"` // bucket/name

	Length      int64  `json:"length"`
	ChunkSize   int    `json:"chunk_size"`
	ChunkCount  int    `json:"chunk_count"`
	ContentType string `json:"content_type"`
	Checksum    string `json:"checksum"`
	Filename    string `json:"filename"`
}

// ManifestKey returns the unique key of a name inside a bucket.
func ManifestKey(bucket, name string) string {
	return bucket + "/" + name
}
