package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	issuer          = "doc-analysis-platform"
	accessKeyPrefix = "access:"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenRevoked = errors.New("token revoked or expired")
)

type Claims struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// TokenManager issues HS256 access tokens and tracks each token's jti in
// Redis so a token can be revoked before it expires.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	rdb    *redis.Client
	now    func() time.Time
}

func NewTokenManager(secret string, ttl time.Duration, rdb *redis.Client) (*TokenManager, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("ACCESS_SECRET must be configured and at least 32 characters")
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl, rdb: rdb, now: time.Now}, nil
}

// IssueAccessToken signs a token for the user and records its jti.
func (m *TokenManager) IssueAccessToken(ctx context.Context, userID int64, username string) (string, time.Time, error) {
	now := m.now()
	jti := uuid.NewString()
	exp := now.Add(m.ttl)

	claims := Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   strconv.FormatInt(userID, 10),
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}

	if err := m.rdb.Set(ctx, accessKeyPrefix+jti, userID, m.ttl).Err(); err != nil {
		return "", time.Time{}, fmt.Errorf("store token id: %w", err)
	}
	return signed, exp, nil
}

// ValidateAccessToken checks signature, expiry and that the jti has not
// been revoked.
func (m *TokenManager) ValidateAccessToken(ctx context.Context, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Prevent algorithm confusion attacks
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	}, jwt.WithIssuer(issuer))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	exists, err := m.rdb.Exists(ctx, accessKeyPrefix+claims.ID).Result()
	if err != nil {
		return nil, fmt.Errorf("check token id: %w", err)
	}
	if exists != 1 {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

func (m *TokenManager) RevokeToken(ctx context.Context, jti string) error {
	return m.rdb.Del(ctx, accessKeyPrefix+jti).Err()
}
