package model

// A Bucket is a logical partition of the object store (e.g. images, videos).
type Bucket struct {
	Base `json:",inline" storm:"inline"`

	Name  string `json:"name" storm:"unique"`
	Count int    `json:"count"`
	Bytes int64  `json:"bytes"`
}
