package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"doc-analysis-platform/internal/apperrors"
	"doc-analysis-platform/internal/repository"
	"doc-analysis-platform/models"
	"doc-analysis-platform/utils"
)

type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

type TokenIssuer interface {
	IssueAccessToken(ctx context.Context, userID int64, username string) (string, time.Time, error)
	RevokeToken(ctx context.Context, jti string) error
}

type UserService struct {
	users      UserStore
	tokens     TokenIssuer
	bcryptCost int
	logger     *slog.Logger
}

func NewUserService(users UserStore, tokens TokenIssuer, bcryptCost int, logger *slog.Logger) *UserService {
	return &UserService{users: users, tokens: tokens, bcryptCost: bcryptCost, logger: logger}
}

func (s *UserService) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	hash, err := utils.HashPassword(req.Password, s.bcryptCost)
	if errors.Is(err, utils.ErrPasswordTooLong) {
		return nil, apperrors.New(apperrors.KindInvalidInput, "Password must be at most 72 bytes", nil)
	}
	if err != nil {
		return nil, apperrors.New(apperrors.KindInternal, "failed to register user", err)
	}

	user := &models.User{Username: req.Username, PasswordHash: hash}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperrors.New(apperrors.KindConflict, "Username already registered", nil)
		}
		return nil, apperrors.New(apperrors.KindInternal, "failed to register user", err)
	}

	s.logger.Info("user registered", "user_id", user.ID)
	return user, nil
}

// Login checks the credentials and issues an access token. Unknown users
// and wrong passwords produce the same error.
func (s *UserService) Login(ctx context.Context, username, password string) (*models.TokenResponse, error) {
	failed := apperrors.New(apperrors.KindAuthFailed, "Incorrect username or password", nil)

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, failed
		}
		return nil, apperrors.New(apperrors.KindInternal, "failed to log in", err)
	}
	if !utils.CheckPassword(password, user.PasswordHash) {
		return nil, failed
	}

	token, _, err := s.tokens.IssueAccessToken(ctx, user.ID, user.Username)
	if err != nil {
		return nil, apperrors.New(apperrors.KindInternal, "failed to issue token", err)
	}
	return &models.TokenResponse{AccessToken: token, TokenType: "bearer"}, nil
}

func (s *UserService) Logout(ctx context.Context, jti string) error {
	if err := s.tokens.RevokeToken(ctx, jti); err != nil {
		return apperrors.New(apperrors.KindInternal, "failed to log out", err)
	}
	return nil
}

func (s *UserService) Get(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.New(apperrors.KindAuthFailed, "Could not validate credentials", nil)
		}
		return nil, apperrors.New(apperrors.KindInternal, "failed to load user", err)
	}
	return user, nil
}
