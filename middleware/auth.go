package middleware

import (
	"context"
	"errors"
	"strings"

	"doc-analysis-platform/internal/auth"
	"doc-analysis-platform/utils"

	"github.com/gin-gonic/gin"
)

const (
	ctxUserID = "user_id"
	ctxClaims = "claims"
)

type TokenValidator interface {
	ValidateAccessToken(ctx context.Context, token string) (*auth.Claims, error)
}

type AuthMiddleware struct {
	tokens TokenValidator
}

func NewAuthMiddleware(tokens TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// RequireAuth rejects requests without a valid, unrevoked bearer token.
func (a *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ExtractTokenFromHeader(c.GetHeader("Authorization"))
		if tokenString == "" {
			utils.RespondWithUnauthorized(c, "Not authenticated")
			c.Abort()
			return
		}

		ctx, cancel := utils.WithRedisTimeout(c.Request.Context())
		claims, err := a.tokens.ValidateAccessToken(ctx, tokenString)
		cancel()
		if err != nil {
			if !errors.Is(err, auth.ErrInvalidToken) && !errors.Is(err, auth.ErrTokenRevoked) {
				c.Error(err)
			}
			utils.RespondWithUnauthorized(c, "Could not validate credentials")
			c.Abort()
			return
		}

		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxClaims, claims)
		c.Next()
	}
}

// ExtractTokenFromHeader returns the token of a "Bearer <token>" header.
func ExtractTokenFromHeader(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// GetUserID returns the authenticated user, or 0 outside RequireAuth.
func GetUserID(c *gin.Context) int64 {
	return c.GetInt64(ctxUserID)
}

func GetClaims(c *gin.Context) *auth.Claims {
	if v, exists := c.Get(ctxClaims); exists {
		if claims, ok := v.(*auth.Claims); ok {
			return claims
		}
	}
	return nil
}
