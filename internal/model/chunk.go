package model

// A Chunk is a fixed-size slice of a stored object's payload.
type Chunk struct {
	Base `json:",inline" storm:"inline"`

	ObjectID string `json:"object_id" storm:"index"`
	Seq      int    `json:"seq"`

	Size        int    `json:"size"`
	StoredSize  int    `json:"stored_size"`
	Compression string `json:"compression"`
	Hash        string `json:"hash"`
}
