package scheduler

import (
	"context"
	"path"
	"time"

	"github.com/mdouchement/logger"
	"github.com/mdouchement/mediastore/internal/chunkstore"
	"github.com/mdouchement/mediastore/internal/index"
	"github.com/mdouchement/mediastore/internal/storage"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
)

// A Controller is an Iversion Of Control pattern used to init the scheduler package.
type Controller struct {
	Logger        logger.Logger
	Store         *chunkstore.Store
	Index         *index.Index
	Storage       storage.Backend
	Buckets       []string
	Specification string
	// Grace is the minimum age of an uncommitted upload before it is swept.
	Grace time.Duration
}

// A Report summarizes a reconciliation run.
type Report struct {
	Swept    int
	Dangling int
}

// Start lauches the scheduler asynchronously.
// The returned cron must be stopped on shutdown.
func Start(c Controller) (*cron.Cron, error) {
	cron := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DiscardLogger),
	))

	log := c.Logger.WithPrefix("[scheduler]")

	_, err := cron.AddFunc(c.Specification, func() {
		if _, err := Reconcile(context.Background(), c); err != nil {
			log.Error(err)
		}
	})
	if err != nil {
		return nil, errors.Wrapf(err, "invalid specification %q", c.Specification)
	}
	log.Info("Reconciliation task registred")

	cron.Start()
	log.Info("Scheduler is running")
	return cron, nil
}

// Reconcile sweeps the uncommitted uploads and reports the index records
// whose object is gone. Records are never deleted.
func Reconcile(ctx context.Context, c Controller) (Report, error) {
	log := c.Logger.WithPrefix("[reconcile]")

	var report Report
	for _, bucket := range c.Buckets {
		n, err := c.Store.Sweep(ctx, bucket, c.Grace)
		report.Swept += n
		if err != nil {
			return report, errors.Wrapf(err, "sweep %s", bucket)
		}
	}

	records, err := c.Index.ListAll()
	if err != nil {
		return report, err
	}

	for _, record := range records {
		exists, err := c.Store.Exists(record.Bucket, record.ObjectID)
		if err != nil {
			return report, err
		}
		if !exists {
			report.Dangling++
			log.Warnf("Record %s (%s) points to missing object %s", record.ID, record.Caption, path.Join(record.Bucket, record.ObjectID))
		}
	}

	log.Debug("Storage cleanup")
	if err = c.Storage.Cleanup(); err != nil {
		return report, errors.Wrap(err, "storage cleanup")
	}

	if report.Swept > 0 || report.Dangling > 0 {
		log.Infof("%d uncommitted uploads swept, %d dangling records", report.Swept, report.Dangling)
	}
	return report, nil
}
