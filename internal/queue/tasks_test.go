package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"doc-analysis-platform/internal/logger"
	"doc-analysis-platform/internal/storage"

	"github.com/hibiken/asynq"
)

type fakeRefs struct {
	counts map[string]int
	err    error
}

func (f *fakeRefs) CountByStorageKey(_ context.Context, key string) (int, error) {
	return f.counts[key], f.err
}

type recordingEnqueuer struct {
	tasks []*asynq.Task
	opts  [][]asynq.Option
	err   error
}

func (r *recordingEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.tasks = append(r.tasks, task)
	r.opts = append(r.opts, opts)
	return &asynq.TaskInfo{Type: task.Type()}, nil
}

type failingDelete struct {
	storage.ObjectStore
}

func (failingDelete) Delete(context.Context, string) error { return errors.New("access denied") }

func newStore(t *testing.T) storage.ObjectStore {
	t.Helper()
	store, err := storage.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return store
}

func TestNewBlobCleanupTask(t *testing.T) {
	task, err := NewBlobCleanupTask("uploads/1/a.pdf", SourceCompensation)
	if err != nil {
		t.Fatal(err)
	}
	if task.Type() != TaskBlobCleanup {
		t.Errorf("Type() = %q", task.Type())
	}
	var p BlobCleanupPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		t.Fatal(err)
	}
	if p.Key != "uploads/1/a.pdf" || p.Source != SourceCompensation {
		t.Errorf("payload = %+v", p)
	}
}

func TestScheduleBlobCleanup(t *testing.T) {
	q := &recordingEnqueuer{}
	if err := ScheduleBlobCleanup(context.Background(), q, "uploads/1/a.pdf", SourceCompensation, time.Minute); err != nil {
		t.Fatal(err)
	}
	if len(q.tasks) != 1 || len(q.opts[0]) != 1 {
		t.Fatalf("enqueued %d tasks with opts %v", len(q.tasks), q.opts)
	}
	if q.opts[0][0].Type() != asynq.ProcessInOpt {
		t.Errorf("option type = %v, want ProcessIn", q.opts[0][0].Type())
	}

	if err := ScheduleBlobCleanup(context.Background(), &recordingEnqueuer{err: errors.New("redis down")}, "k", SourceCompensation, 0); err == nil {
		t.Error("expected enqueue error")
	}
}

func TestCleanupBlob(t *testing.T) {
	ctx := context.Background()
	const key = "uploads/1/report.pdf"

	tests := []struct {
		name        string
		refs        *fakeRefs
		failDelete  bool
		wantErr     bool
		wantPresent bool
	}{
		{"unreferenced is deleted", &fakeRefs{}, false, false, false},
		{"referenced is kept", &fakeRefs{counts: map[string]int{key: 1}}, false, false, true},
		{"count error retries", &fakeRefs{err: errors.New("db down")}, false, true, true},
		{"delete error retries", &fakeRefs{}, true, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStore(t)
			if _, err := store.Put(ctx, key, []byte("%PDF"), "application/pdf"); err != nil {
				t.Fatal(err)
			}
			var target storage.ObjectStore = store
			if tt.failDelete {
				target = failingDelete{store}
			}

			task, _ := NewBlobCleanupTask(key, SourceCompensation)
			err := NewTaskProcessor(target, tt.refs, logger.Discard()).CleanupBlob(ctx, task)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CleanupBlob() error = %v, wantErr %v", err, tt.wantErr)
			}

			_, getErr := store.Get(ctx, key)
			if present := getErr == nil; present != tt.wantPresent {
				t.Errorf("blob present = %v, want %v", present, tt.wantPresent)
			}
		})
	}
}

func TestCleanupBlobMissingIsSuccess(t *testing.T) {
	task, _ := NewBlobCleanupTask("uploads/1/gone.txt", SourceDeleteRetry)
	if err := NewTaskProcessor(newStore(t), &fakeRefs{}, logger.Discard()).CleanupBlob(context.Background(), task); err != nil {
		t.Errorf("CleanupBlob() error = %v", err)
	}
}

func TestCleanupBlobBadPayload(t *testing.T) {
	p := NewTaskProcessor(newStore(t), &fakeRefs{}, logger.Discard())
	for _, payload := range []string{"{", `{"key":""}`} {
		err := p.CleanupBlob(context.Background(), asynq.NewTask(TaskBlobCleanup, []byte(payload)))
		if !errors.Is(err, asynq.SkipRetry) {
			t.Errorf("payload %q: error = %v, want SkipRetry", payload, err)
		}
	}
}
