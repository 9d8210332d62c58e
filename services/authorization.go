package services

import (
	"context"
	"errors"

	"doc-analysis-platform/internal/apperrors"
	"doc-analysis-platform/internal/repository"
	"doc-analysis-platform/models"
)

type OwnershipStore interface {
	GetFile(ctx context.Context, id int64) (*models.File, error)
	GetResponse(ctx context.Context, id int64) (*models.AIResponse, error)
}

// Authorizer answers ownership questions for file and analysis routes.
type Authorizer struct {
	files OwnershipStore
}

func NewAuthorizer(files OwnershipStore) *Authorizer {
	return &Authorizer{files: files}
}

// AuthorizeFile returns the file when userID owns it. A file owned by
// someone else is reported as not found.
func (a *Authorizer) AuthorizeFile(ctx context.Context, userID, fileID int64) (*models.File, error) {
	file, err := a.files.GetFile(ctx, fileID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("file")
		}
		return nil, apperrors.New(apperrors.KindInternal, "failed to load file", err)
	}
	if file.OwnerID != userID {
		return nil, apperrors.NotFound("file")
	}
	return file, nil
}

// AuthorizeResponse resolves an analysis and its parent file. Ownership is
// checked through the file: a missing analysis is not found, an analysis
// of someone else's file is forbidden.
func (a *Authorizer) AuthorizeResponse(ctx context.Context, userID, responseID int64) (*models.AIResponse, *models.File, error) {
	resp, err := a.files.GetResponse(ctx, responseID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, apperrors.NotFound("analysis")
		}
		return nil, nil, apperrors.New(apperrors.KindInternal, "failed to load analysis", err)
	}

	file, err := a.files.GetFile(ctx, resp.FileID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, apperrors.NotFound("analysis")
		}
		return nil, nil, apperrors.New(apperrors.KindInternal, "failed to load file", err)
	}
	if file.OwnerID != userID {
		return nil, nil, apperrors.Forbidden("not authorized to access this analysis")
	}
	return resp, file, nil
}
