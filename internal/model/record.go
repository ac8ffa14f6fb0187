package model

// A Record indexes an upload by its caption.
// ObjectID is a weak reference: deleting the object does not remove the record.
type Record struct {
	Base `json:",inline" storm:"inline"`

	Seq      uint64 `json:"seq"       storm:"index,increment"`
	Caption  string `json:"caption"   storm:"unique"`
	Name     string `json:"filename"`
	ObjectID string `json:"file_id"   storm:"index"`
	Bucket   string `json:"bucket"    storm:"index"`
}
