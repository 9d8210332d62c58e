package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"doc-analysis-platform/internal/storage"
	"doc-analysis-platform/internal/telemetry"

	"github.com/hibiken/asynq"
)

const TaskBlobCleanup = "blob:cleanup"

// Cleanup sources, also used as the metric label.
const (
	SourceCompensation = "compensation"
	SourceDeleteRetry  = "delete_retry"
	SourceOrphanSweep  = "orphan_sweep"
	SourceImmediate    = "immediate"
)

type BlobCleanupPayload struct {
	Key    string `json:"key"`
	Source string `json:"source"`
}

func NewBlobCleanupTask(key, source string) (*asynq.Task, error) {
	payload, err := json.Marshal(BlobCleanupPayload{Key: key, Source: source})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskBlobCleanup,
		payload,
		asynq.MaxRetry(5),
		asynq.Timeout(time.Minute),
		asynq.Queue("low"),
	), nil
}

// Enqueuer is the part of *asynq.Client the API process uses.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// ScheduleBlobCleanup enqueues a cleanup of key to run after delay.
func ScheduleBlobCleanup(ctx context.Context, q Enqueuer, key, source string, delay time.Duration) error {
	task, err := NewBlobCleanupTask(key, source)
	if err != nil {
		return err
	}
	var opts []asynq.Option
	if delay > 0 {
		opts = append(opts, asynq.ProcessIn(delay))
	}
	if _, err := q.EnqueueContext(ctx, task, opts...); err != nil {
		return fmt.Errorf("enqueue %s: %w", TaskBlobCleanup, err)
	}
	return nil
}

// RefCounter reports how many File rows still point at a storage key.
type RefCounter interface {
	CountByStorageKey(ctx context.Context, key string) (int, error)
}

// DeleteUnreferenced removes key unless a File row still references it.
// Re-uploads of the same filename share a key, so a row created after a
// cleanup was scheduled keeps the blob alive. A missing blob counts as
// deleted.
func DeleteUnreferenced(ctx context.Context, store storage.ObjectStore, refs RefCounter, key, source string) (bool, error) {
	n, err := refs.CountByStorageKey(ctx, key)
	if err != nil {
		return false, fmt.Errorf("count references for %s: %w", key, err)
	}
	if n > 0 {
		telemetry.BlobCleanups.WithLabelValues(source, "skipped").Inc()
		return false, nil
	}

	if err := store.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
		telemetry.BlobCleanups.WithLabelValues(source, "error").Inc()
		return false, err
	}
	telemetry.BlobCleanups.WithLabelValues(source, "deleted").Inc()
	return true, nil
}

// Task handlers
type TaskProcessor struct {
	store  storage.ObjectStore
	refs   RefCounter
	logger *slog.Logger
}

func NewTaskProcessor(store storage.ObjectStore, refs RefCounter, logger *slog.Logger) *TaskProcessor {
	return &TaskProcessor{store: store, refs: refs, logger: logger}
}

func (p *TaskProcessor) CleanupBlob(ctx context.Context, t *asynq.Task) error {
	var payload BlobCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}
	if payload.Key == "" {
		return fmt.Errorf("empty key: %w", asynq.SkipRetry)
	}

	deleted, err := DeleteUnreferenced(ctx, p.store, p.refs, payload.Key, payload.Source)
	if err != nil {
		p.logger.Warn("blob cleanup failed, will retry", "key", payload.Key, "source", payload.Source, "error", err)
		return err
	}
	if !deleted {
		p.logger.Info("blob still referenced, cleanup skipped", "key", payload.Key, "source", payload.Source)
		return nil
	}

	p.logger.Info("blob removed", "key", payload.Key, "source", payload.Source)
	return nil
}
