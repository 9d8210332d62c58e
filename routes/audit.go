package routes

import (
	"context"
	"net/http"

	"doc-analysis-platform/middleware"
	"doc-analysis-platform/utils"

	"github.com/gin-gonic/gin"
)

// ChainVerifier checks a user's audit hash chain.
type ChainVerifier interface {
	VerifyChain(ctx context.Context, userID int64) (bool, int, error)
}

// SetupAuditRoutes exposes chain verification for the caller's own events.
func SetupAuditRoutes(router *gin.Engine, auditor ChainVerifier, authMiddleware *middleware.AuthMiddleware) {
	router.GET("/audit/verify", authMiddleware.RequireAuth(), func(c *gin.Context) {
		ctx, cancel := utils.WithQueryTimeout(c.Request.Context())
		defer cancel()

		valid, count, err := auditor.VerifyChain(ctx, middleware.GetUserID(c))
		if err != nil {
			c.Error(err)
			utils.RespondWithInternalError(c, "Failed to verify audit trail", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"valid": valid, "events": count})
	})
}
