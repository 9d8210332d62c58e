package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"doc-analysis-platform/models"

	"github.com/jackc/pgx/v5"
)

// FileRepository covers the files and ai_responses tables.
type FileRepository struct {
	db DBTX
	tx *TxRunner
}

// NewFileRepository needs a pool (or anything that is both a DBTX and a
// Beginner) because deletion runs in its own transaction.
func NewFileRepository(db interface {
	DBTX
	Beginner
}) *FileRepository {
	return &FileRepository{db: db, tx: NewTxRunner(db)}
}

func (r *FileRepository) CreateFile(ctx context.Context, f *models.File) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO files (owner_id, filename, storage_key, storage_url)
		VALUES ($1, $2, $3, $4)
		RETURNING id, upload_timestamp`,
		f.OwnerID, f.Filename, f.StorageKey, f.StorageURL,
	).Scan(&f.ID, &f.UploadTimestamp)
	if err != nil {
		return fmt.Errorf("insert file: %w", err)
	}
	return nil
}

func (r *FileRepository) GetFile(ctx context.Context, id int64) (*models.File, error) {
	f := &models.File{}
	err := r.db.QueryRow(ctx, `
		SELECT id, owner_id, filename, storage_key, storage_url, upload_timestamp
		FROM files WHERE id = $1`, id,
	).Scan(&f.ID, &f.OwnerID, &f.Filename, &f.StorageKey, &f.StorageURL, &f.UploadTimestamp)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get file: %w", err)
	}
	return f, nil
}

// DeleteFile removes a single file row; its response goes with it through
// the cascade. Used to compensate a failed analysis.
func (r *FileRepository) DeleteFile(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM files WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteFileAndResponse removes the response and then the file in one
// transaction.
func (r *FileRepository) DeleteFileAndResponse(ctx context.Context, fileID int64) error {
	return r.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM ai_responses WHERE file_id = $1`, fileID); err != nil {
			return fmt.Errorf("delete response: %w", err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM files WHERE id = $1`, fileID)
		if err != nil {
			return fmt.Errorf("delete file: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (r *FileRepository) CreateResponse(ctx context.Context, resp *models.AIResponse) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO ai_responses (file_id, response_text)
		VALUES ($1, $2)
		RETURNING id, analysis_timestamp`,
		resp.FileID, resp.ResponseText,
	).Scan(&resp.ID, &resp.AnalysisTimestamp)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: response for file %d", ErrConflict, resp.FileID)
		}
		return fmt.Errorf("insert response: %w", err)
	}
	return nil
}

func (r *FileRepository) GetResponse(ctx context.Context, id int64) (*models.AIResponse, error) {
	resp := &models.AIResponse{}
	err := r.db.QueryRow(ctx, `
		SELECT id, file_id, response_text, analysis_timestamp
		FROM ai_responses WHERE id = $1`, id,
	).Scan(&resp.ID, &resp.FileID, &resp.ResponseText, &resp.AnalysisTimestamp)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get response: %w", err)
	}
	return resp, nil
}

// ListByOwner returns the owner's files, newest upload first, each with
// its response when one exists.
func (r *FileRepository) ListByOwner(ctx context.Context, ownerID int64) ([]models.FileWithResponse, error) {
	rows, err := r.db.Query(ctx, `
		SELECT f.id, f.owner_id, f.filename, f.storage_key, f.storage_url, f.upload_timestamp,
			a.id, a.response_text, a.analysis_timestamp
		FROM files f
		LEFT JOIN ai_responses a ON a.file_id = f.id
		WHERE f.owner_id = $1
		ORDER BY f.upload_timestamp DESC, f.id DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	result := []models.FileWithResponse{}
	for rows.Next() {
		var (
			item     models.FileWithResponse
			respID   *int64
			respText *string
			respAt   *time.Time
		)
		if err := rows.Scan(
			&item.ID, &item.OwnerID, &item.Filename, &item.StorageKey, &item.StorageURL, &item.UploadTimestamp,
			&respID, &respText, &respAt,
		); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		if respID != nil {
			item.AIResponse = &models.AIResponse{
				ID:                *respID,
				FileID:            item.ID,
				ResponseText:      *respText,
				AnalysisTimestamp: *respAt,
			}
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate files: %w", err)
	}
	return result, nil
}

// CountByStorageKey reports how many file rows point at key.
func (r *FileRepository) CountByStorageKey(ctx context.Context, key string) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM files WHERE storage_key = $1`, key).Scan(&n); err != nil {
		return 0, fmt.Errorf("count files by key: %w", err)
	}
	return n, nil
}
