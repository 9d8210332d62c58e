package services

import (
	"bytes"
	"context"
	"errors"
	"log/slog"

	"doc-analysis-platform/internal/apperrors"
	"doc-analysis-platform/internal/queue"
	"doc-analysis-platform/internal/render"
	"doc-analysis-platform/internal/repository"
	"doc-analysis-platform/internal/storage"
	"doc-analysis-platform/models"
)

// FileStore is the slice of the file repository used after upload.
type FileStore interface {
	OwnershipStore
	ListByOwner(ctx context.Context, ownerID int64) ([]models.FileWithResponse, error)
	DeleteFileAndResponse(ctx context.Context, fileID int64) error
	CountByStorageKey(ctx context.Context, key string) (int, error)
}

// Export is a rendered download.
type Export struct {
	Filename    string
	ContentType string
	Data        []byte
}

type FileService struct {
	files    FileStore
	auth     *Authorizer
	store    storage.ObjectStore
	renderer *render.Renderer
	cache    *RenderCache
	queue    queue.Enqueuer
	logger   *slog.Logger
}

// NewFileService builds the history, download and deletion service. cache
// and q may be nil.
func NewFileService(files FileStore, store storage.ObjectStore, renderer *render.Renderer, cache *RenderCache, q queue.Enqueuer, logger *slog.Logger) *FileService {
	return &FileService{
		files:    files,
		auth:     NewAuthorizer(files),
		store:    store,
		renderer: renderer,
		cache:    cache,
		queue:    q,
		logger:   logger,
	}
}

func (s *FileService) Authorizer() *Authorizer { return s.auth }

// History lists the user's uploads, newest first.
func (s *FileService) History(ctx context.Context, userID int64) ([]models.FileWithResponse, error) {
	items, err := s.files.ListByOwner(ctx, userID)
	if err != nil {
		return nil, apperrors.New(apperrors.KindInternal, "failed to load history", err)
	}
	return items, nil
}

// Delete removes a file and its analysis, then, unless another upload
// shares the key, its blob. Rows go first so a failure can only leave an
// unreferenced blob behind. Blob removal is best effort: a failure is
// logged and retried in the background.
func (s *FileService) Delete(ctx context.Context, userID, fileID int64) error {
	file, err := s.auth.AuthorizeFile(ctx, userID, fileID)
	if err != nil {
		return err
	}

	if err := s.files.DeleteFileAndResponse(ctx, file.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFound("file")
		}
		return apperrors.New(apperrors.KindInternal, "failed to delete file", err)
	}
	s.cache.Invalidate(file.ID)
	s.deleteBlob(ctx, file)

	s.logger.Info("file deleted", "file_id", file.ID, "owner_id", userID)
	return nil
}

func (s *FileService) deleteBlob(ctx context.Context, file *models.File) {
	n, err := s.files.CountByStorageKey(ctx, file.StorageKey)
	if err != nil {
		s.logger.Warn("could not count blob references, leaving blob", "key", file.StorageKey, "error", err)
		return
	}
	if n > 0 {
		s.logger.Info("blob shared with another upload, leaving it", "key", file.StorageKey, "references", n)
		return
	}

	err = s.store.Delete(ctx, file.StorageKey)
	if err == nil {
		return
	}

	s.logger.Error("blob delete failed", "key", file.StorageKey, "error", apperrors.StorageDeleteFailed(err))
	if s.queue == nil {
		return
	}
	if err := queue.ScheduleBlobCleanup(ctx, s.queue, file.StorageKey, queue.SourceDeleteRetry, 0); err != nil {
		s.logger.Warn("could not schedule blob delete retry", "key", file.StorageKey, "error", err)
	}
}

// DownloadOriginal returns the stored bytes of an owned file.
func (s *FileService) DownloadOriginal(ctx context.Context, userID, fileID int64) (*models.File, []byte, error) {
	file, err := s.auth.AuthorizeFile(ctx, userID, fileID)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.store.Get(ctx, file.StorageKey)
	if err != nil {
		return nil, nil, apperrors.StorageReadFailed(err)
	}
	return file, data, nil
}

func (s *FileService) ExportPDF(ctx context.Context, userID, responseID int64) (*Export, error) {
	return s.export(ctx, userID, responseID, ExportPDF)
}

func (s *FileService) ExportText(ctx context.Context, userID, responseID int64) (*Export, error) {
	return s.export(ctx, userID, responseID, ExportText)
}

func (s *FileService) export(ctx context.Context, userID, responseID int64, format ExportFormat) (*Export, error) {
	resp, file, err := s.auth.AuthorizeResponse(ctx, userID, responseID)
	if err != nil {
		return nil, err
	}

	out := &Export{Filename: "ai_analysis_" + file.Filename + "." + string(format)}
	switch format {
	case ExportPDF:
		out.ContentType = "application/pdf"
	default:
		out.ContentType = "text/plain; charset=utf-8"
	}

	if data, ok := s.cache.Get(file.ID, format); ok {
		out.Data = data
		return out, nil
	}

	data, err := s.render(resp, file, format)
	if err != nil {
		return nil, apperrors.New(apperrors.KindInternal, "failed to render analysis", err)
	}
	s.cache.Add(file.ID, format, data)
	out.Data = data
	return out, nil
}

func (s *FileService) render(resp *models.AIResponse, file *models.File, format ExportFormat) ([]byte, error) {
	nodes, err := s.renderer.Markdown(resp.ResponseText)
	if err != nil {
		return nil, err
	}

	if format == ExportText {
		return []byte(render.PlainText(nodes)), nil
	}

	var buf bytes.Buffer
	if err := render.WritePDF(&buf, nodes, "AI analysis of "+file.Filename); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
