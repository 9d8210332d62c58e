package routes

import (
	"context"
	"sort"
	"sync"
	"time"

	"doc-analysis-platform/internal/extract"
	"doc-analysis-platform/internal/repository"
	"doc-analysis-platform/models"
)

// memStore keeps users, files and analyses in memory.
type memStore struct {
	mu        sync.Mutex
	nextID    int64
	users     map[int64]*models.User
	files     map[int64]*models.File
	responses map[int64]*models.AIResponse
	clock     time.Time
}

func newMemStore() *memStore {
	return &memStore{
		users:     map[int64]*models.User{},
		files:     map[int64]*models.File{},
		responses: map[int64]*models.AIResponse{},
		clock:     time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *memStore) Create(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Username == u.Username {
			return repository.ErrConflict
		}
	}
	u.ID = m.id()
	u.CreatedAt = m.tick()
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memStore) GetByUsername(_ context.Context, username string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memStore) GetByID(_ context.Context, id int64) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) CreateFile(_ context.Context, f *models.File) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f.ID = m.id()
	f.UploadTimestamp = m.tick()
	cp := *f
	m.files[f.ID] = &cp
	return nil
}

func (m *memStore) GetFile(_ context.Context, id int64) (*models.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (m *memStore) DeleteFile(_ context.Context, id int64) error {
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

func (m *memStore) DeleteFileAndResponse(ctx context.Context, id int64) error {
	return m.DeleteFile(ctx, id)
}

func (m *memStore) CreateResponse(_ context.Context, resp *models.AIResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	resp.ID = m.id()
	resp.AnalysisTimestamp = m.tick()
	cp := *resp
	m.responses[resp.ID] = &cp
	return nil
}

func (m *memStore) GetResponse(_ context.Context, id int64) (*models.AIResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.responses[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) ListByOwner(_ context.Context, ownerID int64) ([]models.FileWithResponse, error) {
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

func (m *memStore) CountByStorageKey(_ context.Context, key string) (int, error) {
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

type stubExtractor struct{ text string }

func (s stubExtractor) ExtractFormat(context.Context, []byte, extract.Format) (string, error) {
	return s.text, nil
}

type stubAnalyzer struct{ reply string }

func (s stubAnalyzer) Analyze(context.Context, string) (string, error) {
	return s.reply, nil
}

type stubVerifier struct {
	valid bool
	count int
	err   error
	asked int64
}

func (s *stubVerifier) VerifyChain(_ context.Context, userID int64) (bool, int, error) {
	s.asked = userID
	return s.valid, s.count, s.err
}
