package database

import (
	"sort"
	"time"

	"github.com/asdine/storm/v3"
	"github.com/asdine/storm/v3/codec/json"
	"github.com/asdine/storm/v3/q"
	"github.com/gofrs/uuid"
	"github.com/mdouchement/mediastore/internal/model"
	"github.com/pkg/errors"
)

type strm struct {
	node storm.Node
	db   *storm.DB // nil inside a transaction
}

// StormCodec is the format used to store data in the database.
var StormCodec = storm.Codec(json.Codec)

var models = []interface{}{
	&model.Bucket{},
	&model.Manifest{},
	&model.Chunk{},
	&model.Record{},
}

// StormInit initializes Storm database.
func StormInit(database string) error {
	db, err := storm.Open(database, StormCodec)
	if err != nil {
		return errors.Wrap(err, "could not get database connection")
	}
	defer db.Close()

	return initialize(db)
}

// StormReIndex rebuilds all the indexes of the database.
func StormReIndex(database string) error {
	db, err := storm.Open(database, StormCodec)
	if err != nil {
		return errors.Wrap(err, "could not get database connection")
	}
	defer db.Close()

	for _, m := range models {
		if err := db.ReIndex(m); err != nil {
			return errors.Wrapf(err, "could not ReIndex %T", m)
		}
	}
	return nil
}

// StormOpen opens the database.
func StormOpen(database string) (Client, error) {
	db, err := storm.Open(database, StormCodec)
	if err != nil {
		return nil, errors.Wrap(err, "could not get database connection")
	}

	// Init is idempotent, it only creates the missing buckets and indexes.
	if err = initialize(db); err != nil {
		db.Close()
		return nil, err
	}

	return &strm{
		node: db,
		db:   db,
	}, nil
}

func initialize(db *storm.DB) error {
	for _, m := range models {
		if err := db.Init(m); err != nil {
			return errors.Wrapf(err, "could not init %T index", m)
		}
	}
	return nil
}

func (c *strm) Save(m model.Model) error {
	t := time.Now().UTC()
	m.SetUpdatedAt(t)

	if m.GetID() == "" {
		m.SetID(uuid.Must(uuid.NewV4()).String())
		m.SetCreatedAt(t)
	}

	return errors.Wrap(c.node.Save(m), "could not save the model")
}

func (c *strm) Delete(m model.Model) error {
	return errors.Wrap(c.node.DeleteStruct(m), "could not delete the model")
}

func (c *strm) Transaction(fn func(tx Client) error) error {
	tx, err := c.node.Begin(true)
	if err != nil {
		return errors.Wrap(err, "could not begin transaction")
	}
	defer tx.Rollback() // no-op once committed

	if err = fn(&strm{node: tx}); err != nil {
		return err
	}

	return errors.Wrap(tx.Commit(), "could not commit transaction")
}

func (c *strm) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

func (c *strm) IsNotFound(err error) bool {
	return errors.Cause(err) == storm.ErrNotFound
}

func (c *strm) IsAlreadyExists(err error) bool {
	return errors.Cause(err) == storm.ErrAlreadyExists
}

//
// Bucket
//

func (c *strm) ListBuckets() ([]*model.Bucket, error) {
	buckets := make([]*model.Bucket, 0)
	err := c.node.All(&buckets)
	return buckets, errors.Wrap(err, "could not get all buckets")
}

func (c *strm) FindBucketByName(name string) (*model.Bucket, error) {
	var bucket model.Bucket
	err := c.node.One("Name", name, &bucket)
	return &bucket, errors.Wrap(err, "could not find bucket")
}

//
// Manifest
//

func (c *strm) FindManifest(id string) (*model.Manifest, error) {
	var manifest model.Manifest
	err := c.node.One("ID", id, &manifest)
	return &manifest, errors.Wrap(err, "could not find manifest")
}

func (c *strm) FindManifestByName(bucket, name string) (*model.Manifest, error) {
	var manifest model.Manifest
	err := c.node.One("Key", model.ManifestKey(bucket, name), &manifest)
	return &manifest, errors.Wrap(err, "could not find manifest")
}

func (c *strm) FindManifestsByBucket(bucket string) ([]*model.Manifest, error) {
	manifests := make([]*model.Manifest, 0)
	err := c.node.Select(q.Eq("Bucket", bucket)).Find(&manifests)
	if c.IsNotFound(err) {
		return manifests, nil
	}

	sort.SliceStable(manifests, func(i, j int) bool {
		return manifests[i].Created().Before(manifests[j].Created())
	})
	return manifests, errors.Wrap(err, "could not get manifests by bucket")
}

func (c *strm) DeleteManifest(id string) error {
	err := c.node.Select(q.Eq("ID", id)).Delete(&model.Manifest{})
	return errors.Wrap(err, "could not delete manifest")
}

//
// Chunk
//

func (c *strm) FindChunksByObjectID(id string) ([]*model.Chunk, error) {
	chunks := make([]*model.Chunk, 0)
	err := c.node.Select(q.Eq("ObjectID", id)).OrderBy("Seq").Find(&chunks)
	if c.IsNotFound(err) {
		return chunks, nil
	}
	return chunks, errors.Wrap(err, "could not get chunks by object_id")
}

func (c *strm) DeleteChunksByObjectID(id string) error {
	err := c.node.Select(q.Eq("ObjectID", id)).Delete(&model.Chunk{})
	if c.IsNotFound(err) {
		return nil
	}
	return errors.Wrap(err, "could not delete chunks")
}

//
// Record
//

func (c *strm) AllRecords() ([]*model.Record, error) {
	records := make([]*model.Record, 0)
	err := c.node.AllByIndex("Seq", &records)
	if c.IsNotFound(err) {
		return records, nil
	}
	return records, errors.Wrap(err, "could not get all records")
}

func (c *strm) LastRecord() (*model.Record, error) {
	records := make([]*model.Record, 0, 1)
	err := c.node.AllByIndex("Seq", &records, storm.Limit(1), storm.Reverse())
	if err != nil && !c.IsNotFound(err) {
		return nil, errors.Wrap(err, "could not get last record")
	}
	if len(records) == 0 {
		return nil, errors.Wrap(storm.ErrNotFound, "could not get last record")
	}
	return records[0], nil
}

func (c *strm) FindRecord(id string) (*model.Record, error) {
	var record model.Record
	err := c.node.One("ID", id, &record)
	return &record, errors.Wrap(err, "could not find record")
}

func (c *strm) FindRecordByCaption(caption string) (*model.Record, error) {
	var record model.Record
	err := c.node.One("Caption", caption, &record)
	return &record, errors.Wrap(err, "could not find record")
}

func (c *strm) DeleteRecord(id string) error {
	err := c.node.Select(q.Eq("ID", id)).Delete(&model.Record{})
	return errors.Wrap(err, "could not delete record")
}
