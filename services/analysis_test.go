package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"doc-analysis-platform/internal/apperrors"
	"doc-analysis-platform/internal/config"
	"doc-analysis-platform/internal/logger"
	"doc-analysis-platform/internal/queue"
	"doc-analysis-platform/internal/storage"

	"github.com/hibiken/asynq"
)

type analysisFixture struct {
	svc      *AnalysisService
	repo     *memRepo
	store    *faultyStore
	ext      *fakeExtractor
	analyzer *fakeAnalyzer
	queue    *recordingQueue
}

func newAnalysisFixture(t *testing.T, policy string, withQueue bool) *analysisFixture {
	t.Helper()
	f := &analysisFixture{
		repo:     newMemRepo(),
		store:    &faultyStore{ObjectStore: newLocalStore(t)},
		ext:      &fakeExtractor{text: "quarterly revenue grew"},
		analyzer: &fakeAnalyzer{reply: "# Summary\nRevenue grew."},
		queue:    &recordingQueue{},
	}
	cfg := &config.Config{
		BlobCleanupPolicy: policy,
		BlobCleanupDelay:  10 * time.Minute,
		AITimeout:         time.Second,
	}
	var q queue.Enqueuer
	if withQueue {
		q = f.queue
	}
	f.svc = NewAnalysisService(cfg, f.ext, f.store, f.repo, f.analyzer, q, logger.Discard())
	return f
}

func upload(name string) Upload {
	return Upload{OwnerID: 7, Filename: name, Data: []byte("file body"), Prompt: "Summarize"}
}

func TestAnalyzeCommitted(t *testing.T) {
	f := newAnalysisFixture(t, "deferred", true)

	got, err := f.svc.Analyze(context.Background(), upload("Report.PDF"))
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if got.AIResponse == nil || got.AIResponse.ResponseText != "# Summary\nRevenue grew." {
		t.Errorf("AIResponse = %+v", got.AIResponse)
	}
	if got.Filename != "Report.PDF" || got.StorageKey != "uploads/7/report.pdf" {
		t.Errorf("file = %+v", got.File)
	}
	if got.StorageURL == "" {
		t.Error("StorageURL is empty")
	}
	if f.analyzer.prompts[0] != "Summarize\n\nquarterly revenue grew" {
		t.Errorf("prompt = %q", f.analyzer.prompts[0])
	}
	if f.repo.fileCount() != 1 {
		t.Errorf("file rows = %d, want 1", f.repo.fileCount())
	}
	if !blobExists(t, f.store, "uploads/7/report.pdf") {
		t.Error("blob missing after commit")
	}
	if len(f.queue.tasks) != 0 {
		t.Errorf("enqueued %d tasks on success", len(f.queue.tasks))
	}
}

func TestAnalyzeRolledBack(t *testing.T) {
	const key = "uploads/7/notes.txt"

	tests := []struct {
		name       string
		policy     string
		withQueue  bool
		wantBlob   bool
		wantTasks  int
		wantPolicy BlobPolicy
	}{
		{"keep", "keep", true, true, 0, BlobKeep},
		{"deferred schedules cleanup", "deferred", true, true, 1, BlobDeferred},
		{"deferred without queue keeps", "deferred", false, true, 0, BlobKeep},
		{"immediate", "immediate", true, false, 0, BlobImmediate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAnalysisFixture(t, tt.policy, tt.withQueue)
			f.analyzer.err = errors.New("model overloaded")

			if f.svc.Policy() != tt.wantPolicy {
				t.Errorf("Policy() = %q, want %q", f.svc.Policy(), tt.wantPolicy)
			}

			_, err := f.svc.Analyze(context.Background(), upload("notes.txt"))
			if !apperrors.Is(err, apperrors.KindAIAnalysisFailed) {
				t.Fatalf("Analyze() error = %v, want ai_analysis_failed", err)
			}
			if f.repo.fileCount() != 0 {
				t.Errorf("file rows = %d, want 0", f.repo.fileCount())
			}
			if got := blobExists(t, f.store, key); got != tt.wantBlob {
				t.Errorf("blob exists = %v, want %v", got, tt.wantBlob)
			}
			if len(f.queue.tasks) != tt.wantTasks {
				t.Fatalf("enqueued %d tasks, want %d", len(f.queue.tasks), tt.wantTasks)
			}
			if tt.wantTasks > 0 {
				task := f.queue.tasks[0]
				var p queue.BlobCleanupPayload
				if err := json.Unmarshal(task.Payload(), &p); err != nil {
					t.Fatal(err)
				}
				if task.Type() != queue.TaskBlobCleanup || p.Key != key || p.Source != queue.SourceCompensation {
					t.Errorf("task = %s %+v", task.Type(), p)
				}
				if len(f.queue.opts[0]) != 1 || f.queue.opts[0][0].Type() != asynq.ProcessInOpt {
					t.Errorf("opts = %v, want a ProcessIn delay", f.queue.opts[0])
				}
			}
		})
	}
}

func TestAnalyzeImmediateKeepsSharedBlob(t *testing.T) {
	f := newAnalysisFixture(t, "immediate", false)

	if _, err := f.svc.Analyze(context.Background(), upload("notes.txt")); err != nil {
		t.Fatal(err)
	}

	f.analyzer.err = errors.New("model overloaded")
	if _, err := f.svc.Analyze(context.Background(), upload("notes.txt")); err == nil {
		t.Fatal("expected failure")
	}

	if !blobExists(t, f.store, "uploads/7/notes.txt") {
		t.Error("blob of the committed upload was removed")
	}
	if f.repo.fileCount() != 1 {
		t.Errorf("file rows = %d, want 1", f.repo.fileCount())
	}
}

func TestAnalyzeTimeout(t *testing.T) {
	f := newAnalysisFixture(t, "keep", false)
	f.svc.aiTimeout = 20 * time.Millisecond
	f.analyzer.block = true

	_, err := f.svc.Analyze(context.Background(), upload("a.csv"))
	if !apperrors.Is(err, apperrors.KindAIAnalysisFailed) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Analyze() error = %v", err)
	}
	if f.repo.fileCount() != 0 {
		t.Error("file row survived a timed out analysis")
	}
}

func TestAnalyzeRejectedWithoutSideEffects(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		setup    func(f *analysisFixture)
		wantKind apperrors.Kind
	}{
		{"unsupported format", "malware.exe", nil, apperrors.KindUnsupportedFormat},
		{"no extension", "README", nil, apperrors.KindUnsupportedFormat},
		{"extraction failure", "broken.docx", func(f *analysisFixture) {
			f.ext.err = apperrors.ExtractionFailed("docx", errors.New("zip: not a valid zip file"))
		}, apperrors.KindExtractionFailed},
		{"storage write failure", "ok.txt", func(f *analysisFixture) {
			f.store.failPut = true
		}, apperrors.KindStorageWriteFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAnalysisFixture(t, "immediate", true)
			if tt.setup != nil {
				tt.setup(f)
			}

			_, err := f.svc.Analyze(context.Background(), upload(tt.filename))
			if !apperrors.Is(err, tt.wantKind) {
				t.Fatalf("Analyze() error = %v, want %s", err, tt.wantKind)
			}
			if f.repo.fileCount() != 0 {
				t.Error("a file row was created")
			}
			if len(f.analyzer.prompts) != 0 {
				t.Error("the model was called")
			}
			objs, err := f.store.List(context.Background(), storage.UploadPrefix)
			if err != nil {
				t.Fatal(err)
			}
			if len(objs) != 0 {
				t.Errorf("stored objects = %v", objs)
			}
		})
	}
}

func TestSagaRollbackOrder(t *testing.T) {
	var order []string
	s := newSaga(logger.Discard())
	s.push("first", func(context.Context) error { order = append(order, "first"); return nil })
	s.push("second", func(context.Context) error { order = append(order, "second"); return errors.New("boom") })
	s.push("third", func(context.Context) error { order = append(order, "third"); return nil })

	err := s.rollback(context.Background())
	if err == nil {
		t.Error("expected joined error")
	}
	want := []string{"third", "second", "first"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}
