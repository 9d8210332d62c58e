package services

import (
	"context"
	"log/slog"
	"mime"
	"path"
	"time"

	"doc-analysis-platform/internal/ai"
	"doc-analysis-platform/internal/apperrors"
	"doc-analysis-platform/internal/config"
	"doc-analysis-platform/internal/extract"
	"doc-analysis-platform/internal/queue"
	"doc-analysis-platform/internal/storage"
	"doc-analysis-platform/internal/telemetry"
	"doc-analysis-platform/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// BlobPolicy decides what happens to an uploaded blob when its analysis
// fails.
type BlobPolicy string

const (
	BlobDeferred  BlobPolicy = "deferred"
	BlobKeep      BlobPolicy = "keep"
	BlobImmediate BlobPolicy = "immediate"
)

// Analysis outcomes, used as the metric label.
const (
	OutcomeCommitted  = "committed"
	OutcomeRolledBack = "rolled_back"
	OutcomeRejected   = "rejected"
)

// compensationTimeout bounds rollback work, which runs detached from the
// request context.
const compensationTimeout = 30 * time.Second

type TextExtractor interface {
	ExtractFormat(ctx context.Context, data []byte, format extract.Format) (string, error)
}

// AnalysisStore is the slice of the file repository the upload flow needs.
type AnalysisStore interface {
	CreateFile(ctx context.Context, f *models.File) error
	DeleteFile(ctx context.Context, id int64) error
	CreateResponse(ctx context.Context, resp *models.AIResponse) error
	CountByStorageKey(ctx context.Context, key string) (int, error)
}

// Upload is one analysis request from an authenticated user.
type Upload struct {
	OwnerID  int64
	Filename string
	Data     []byte
	Prompt   string
}

type AnalysisService struct {
	extractor    TextExtractor
	store        storage.ObjectStore
	files        AnalysisStore
	analyzer     ai.Analyzer
	queue        queue.Enqueuer
	policy       BlobPolicy
	cleanupDelay time.Duration
	aiTimeout    time.Duration
	logger       *slog.Logger
}

// NewAnalysisService wires the upload flow. q may be nil, in which case the
// deferred blob policy keeps failed uploads in place.
func NewAnalysisService(cfg *config.Config, extractor TextExtractor, store storage.ObjectStore, files AnalysisStore, analyzer ai.Analyzer, q queue.Enqueuer, logger *slog.Logger) *AnalysisService {
	policy := BlobPolicy(cfg.BlobCleanupPolicy)
	if policy == BlobDeferred && q == nil {
		logger.Warn("no task queue configured, failed uploads will be kept", "policy", policy)
		policy = BlobKeep
	}
	return &AnalysisService{
		extractor:    extractor,
		store:        store,
		files:        files,
		analyzer:     analyzer,
		queue:        q,
		policy:       policy,
		cleanupDelay: cfg.BlobCleanupDelay,
		aiTimeout:    cfg.AITimeout,
		logger:       logger,
	}
}

func (s *AnalysisService) Policy() BlobPolicy { return s.policy }

// Analyze runs one upload to a terminal state. On success the stored file
// and its response are returned. A failure after the blob is written rolls
// back every committed step before the error is returned.
func (s *AnalysisService) Analyze(ctx context.Context, up Upload) (*models.FileWithResponse, error) {
	ctx, span := otel.Tracer("analysis").Start(ctx, "analysis.analyze")
	defer span.End()
	span.SetAttributes(attribute.Int64("analysis.owner_id", up.OwnerID), attribute.Int("analysis.bytes", len(up.Data)))

	format, err := extract.ParseFormat(up.Filename)
	if err != nil {
		telemetry.AnalysesTotal.WithLabelValues("unknown", OutcomeRejected).Inc()
		return nil, err
	}
	span.SetAttributes(attribute.String("analysis.format", string(format)))

	text, err := s.extractor.ExtractFormat(ctx, up.Data, format)
	if err != nil {
		telemetry.AnalysesTotal.WithLabelValues(string(format), OutcomeRejected).Inc()
		return nil, err
	}

	key := storage.ObjectKey(up.OwnerID, up.Filename)
	url, err := s.store.Put(ctx, key, up.Data, contentType(up.Filename))
	if err != nil {
		telemetry.AnalysesTotal.WithLabelValues(string(format), OutcomeRejected).Inc()
		return nil, apperrors.StorageWriteFailed(err)
	}

	tx := newSaga(s.logger)
	tx.push("blob", s.blobCompensation(key))

	file := &models.File{
		OwnerID:    up.OwnerID,
		Filename:   up.Filename,
		StorageKey: key,
		StorageURL: url,
	}
	if err := s.files.CreateFile(ctx, file); err != nil {
		s.rollback(ctx, tx, format)
		return nil, apperrors.New(apperrors.KindInternal, "failed to record the uploaded file", err)
	}
	tx.push("file row", func(ctx context.Context) error { return s.files.DeleteFile(ctx, file.ID) })

	analysis, err := s.callModel(ctx, ai.ComposePrompt(up.Prompt, text))
	if err != nil {
		s.logger.Error("AI analysis failed", "file_id", file.ID, "owner_id", up.OwnerID, "error", err)
		s.rollback(ctx, tx, format)
		return nil, apperrors.AIAnalysisFailed(err)
	}

	resp := &models.AIResponse{FileID: file.ID, ResponseText: analysis}
	if err := s.files.CreateResponse(ctx, resp); err != nil {
		s.rollback(ctx, tx, format)
		return nil, apperrors.New(apperrors.KindInternal, "failed to save the analysis", err)
	}

	telemetry.AnalysesTotal.WithLabelValues(string(format), OutcomeCommitted).Inc()
	s.logger.Info("analysis committed", "file_id", file.ID, "owner_id", up.OwnerID, "format", format)
	return &models.FileWithResponse{File: *file, AIResponse: resp}, nil
}

func (s *AnalysisService) callModel(ctx context.Context, prompt string) (string, error) {
	if s.aiTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.aiTimeout)
		defer cancel()
	}
	return s.analyzer.Analyze(ctx, prompt)
}

func (s *AnalysisService) rollback(ctx context.Context, tx *saga, format extract.Format) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	if err := tx.rollback(ctx); err != nil {
		s.logger.Error("rollback incomplete", "error", err)
	}
	telemetry.AnalysesTotal.WithLabelValues(string(format), OutcomeRolledBack).Inc()
}

func (s *AnalysisService) blobCompensation(key string) func(ctx context.Context) error {
	switch s.policy {
	case BlobImmediate:
		return func(ctx context.Context) error {
			_, err := queue.DeleteUnreferenced(ctx, s.store, s.files, key, queue.SourceImmediate)
			return err
		}
	case BlobDeferred:
		return func(ctx context.Context) error {
			if err := queue.ScheduleBlobCleanup(ctx, s.queue, key, queue.SourceCompensation, s.cleanupDelay); err != nil {
				// the orphan sweep picks the blob up later
				s.logger.Warn("could not schedule blob cleanup", "key", key, "error", err)
			}
			return nil
		}
	default:
		return func(context.Context) error {
			s.logger.Info("keeping blob of failed analysis", "key", key)
			return nil
		}
	}
}

func contentType(filename string) string {
	if ct := mime.TypeByExtension(path.Ext(filename)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
