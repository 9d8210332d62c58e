package services

import (
	"context"
	"log/slog"
	"time"

	"doc-analysis-platform/internal/queue"
	"doc-analysis-platform/internal/storage"

	"github.com/go-co-op/gocron"
)

const orphanSweepTag = "orphan-sweep"

// OrphanSweeper periodically removes blobs under the upload prefix that no
// File row references. Only blobs older than the grace period are touched
// so an upload still in flight is never swept.
type OrphanSweeper struct {
	scheduler *gocron.Scheduler
	store     storage.ObjectStore
	refs      queue.RefCounter
	interval  time.Duration
	grace     time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

func NewOrphanSweeper(store storage.ObjectStore, refs queue.RefCounter, interval, grace time.Duration, logger *slog.Logger) *OrphanSweeper {
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()

	return &OrphanSweeper{
		scheduler: s,
		store:     store,
		refs:      refs,
		interval:  interval,
		grace:     grace,
		now:       time.Now,
		logger:    logger,
	}
}

func (o *OrphanSweeper) Start() error {
	_, err := o.scheduler.Every(o.interval).Tag(orphanSweepTag).SingletonMode().Do(o.run)
	if err != nil {
		return err
	}
	o.scheduler.StartAsync()
	o.logger.Info("orphan sweep scheduled", "interval", o.interval, "grace", o.grace)
	return nil
}

func (o *OrphanSweeper) Stop() {
	o.scheduler.Stop()
}

func (o *OrphanSweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), o.interval)
	defer cancel()

	removed, err := o.Sweep(ctx)
	if err != nil {
		o.logger.Error("orphan sweep failed", "error", err, "removed", removed)
		return
	}
	o.logger.Info("orphan sweep finished", "removed", removed)
}

// Sweep runs one pass and returns how many blobs it removed. A failure on
// one blob is logged and the pass continues.
func (o *OrphanSweeper) Sweep(ctx context.Context) (int, error) {
	objects, err := o.store.List(ctx, storage.UploadPrefix)
	if err != nil {
		return 0, err
	}

	cutoff := o.now().Add(-o.grace)
	removed := 0
	for _, obj := range objects {
		if obj.LastModified.After(cutoff) {
			continue
		}
		deleted, err := queue.DeleteUnreferenced(ctx, o.store, o.refs, obj.Key, queue.SourceOrphanSweep)
		if err != nil {
			if ctx.Err() != nil {
				return removed, ctx.Err()
			}
			o.logger.Warn("orphan blob not removed", "key", obj.Key, "error", err)
			continue
		}
		if deleted {
			removed++
		}
	}
	return removed, nil
}
