package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"doc-analysis-platform/internal/extract"
	"doc-analysis-platform/internal/repository"
	"doc-analysis-platform/internal/storage"
	"doc-analysis-platform/models"

	"github.com/hibiken/asynq"
)

// memRepo is an in-memory stand-in for the files and ai_responses tables.
type memRepo struct {
	mu        sync.Mutex
	nextID    int64
	files     map[int64]*models.File
	responses map[int64]*models.AIResponse
	clock     time.Time
	deleteErr error
}

func newMemRepo() *memRepo {
	return &memRepo{
		files:     map[int64]*models.File{},
		responses: map[int64]*models.AIResponse{},
		clock:     time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
}

func (m *memRepo) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *memRepo) CreateFile(_ context.Context, f *models.File) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	f.ID = m.nextID
	f.UploadTimestamp = m.tick()
	cp := *f
	m.files[f.ID] = &cp
	return nil
}

func (m *memRepo) GetFile(_ context.Context, id int64) (*models.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (m *memRepo) DeleteFile(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.files, id)
	for rid, r := range m.responses {
		if r.FileID == id {
			delete(m.responses, rid)
		}
	}
	return nil
}

func (m *memRepo) DeleteFileAndResponse(ctx context.Context, id int64) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	return m.DeleteFile(ctx, id)
}

func (m *memRepo) CreateResponse(_ context.Context, resp *models.AIResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.responses {
		if r.FileID == resp.FileID {
			return repository.ErrConflict
		}
	}
	m.nextID++
	resp.ID = m.nextID
	resp.AnalysisTimestamp = m.tick()
	cp := *resp
	m.responses[resp.ID] = &cp
	return nil
}

func (m *memRepo) GetResponse(_ context.Context, id int64) (*models.AIResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.responses[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memRepo) ListByOwner(_ context.Context, ownerID int64) ([]models.FileWithResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.FileWithResponse{}
	for _, f := range m.files {
		if f.OwnerID != ownerID {
			continue
		}
		item := models.FileWithResponse{File: *f}
		for _, r := range m.responses {
			if r.FileID == f.ID {
				cp := *r
				item.AIResponse = &cp
			}
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadTimestamp.After(out[j].UploadTimestamp) })
	return out, nil
}

func (m *memRepo) CountByStorageKey(_ context.Context, key string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, f := range m.files {
		if f.StorageKey == key {
			n++
		}
	}
	return n, nil
}

func (m *memRepo) fileCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.files)
}

type fakeExtractor struct {
	text  string
	err   error
	calls int
}

func (f *fakeExtractor) ExtractFormat(_ context.Context, _ []byte, _ extract.Format) (string, error) {
	f.calls++
	return f.text, f.err
}

type fakeAnalyzer struct {
	reply   string
	err     error
	block   bool
	prompts []string
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.reply, f.err
}

type recordingQueue struct {
	mu    sync.Mutex
	tasks []*asynq.Task
	opts  [][]asynq.Option
}

func (q *recordingQueue) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, task)
	q.opts = append(q.opts, opts)
	return &asynq.TaskInfo{Type: task.Type()}, nil
}

// faultyStore wraps a store and fails selected operations.
type faultyStore struct {
	storage.ObjectStore
	failPut    bool
	failGet    bool
	failDelete bool
}

var errInjected = errors.New("injected storage failure")

func (s *faultyStore) Put(ctx context.Context, key string, data []byte, ct string) (string, error) {
	if s.failPut {
		return "", errInjected
	}
	return s.ObjectStore.Put(ctx, key, data, ct)
}

func (s *faultyStore) Get(ctx context.Context, key string) ([]byte, error) {
	if s.failGet {
		return nil, errInjected
	}
	return s.ObjectStore.Get(ctx, key)
}

func (s *faultyStore) Delete(ctx context.Context, key string) error {
	if s.failDelete {
		return errInjected
	}
	return s.ObjectStore.Delete(ctx, key)
}

func newLocalStore(t *testing.T) *storage.LocalStore {
	t.Helper()
	store, err := storage.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return store
}

func blobExists(t *testing.T, store storage.ObjectStore, key string) bool {
	t.Helper()
	_, err := store.Get(context.Background(), key)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Get(%q) error = %v", key, err)
	}
	return err == nil
}
