package routes

import (
	"net/http"
	"time"

	"doc-analysis-platform/internal/apperrors"
	"doc-analysis-platform/internal/config"
	"doc-analysis-platform/middleware"
	"doc-analysis-platform/models"
	"doc-analysis-platform/services"
	"doc-analysis-platform/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func SetupAuthRoutes(router *gin.Engine, cfg *config.Config, users *services.UserService, authMiddleware *middleware.AuthMiddleware, rdb *redis.Client) {
	window := time.Duration(cfg.RateLimitWindow) * time.Second

	// Register endpoint
	router.POST("/register", func(c *gin.Context) {
		var req models.RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		user, err := users.Register(c.Request.Context(), req)
		if err != nil {
			utils.RespondWithAppError(c, err)
			return
		}
		c.JSON(http.StatusOK, user.Info())
	})

	// Login endpoint, form encoded like an OAuth2 password grant
	router.POST("/token", middleware.RateLimit(rdb, "token", cfg.LoginRateLimitReqs, window), func(c *gin.Context) {
		var req models.LoginRequest
		if err := c.ShouldBind(&req); err != nil {
			utils.RespondWithBadRequest(c, "username and password are required", gin.H{"error": err.Error()})
			return
		}

		token, err := users.Login(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			if apperrors.Is(err, apperrors.KindAuthFailed) {
				c.Header("WWW-Authenticate", "Bearer")
			}
			utils.RespondWithAppError(c, err)
			return
		}
		c.JSON(http.StatusOK, token)
	})

	authed := router.Group("/")
	authed.Use(authMiddleware.RequireAuth())

	authed.POST("/logout", func(c *gin.Context) {
		claims := middleware.GetClaims(c)
		if err := users.Logout(c.Request.Context(), claims.ID); err != nil {
			utils.RespondWithAppError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	authed.GET("/users/me", func(c *gin.Context) {
		user, err := users.Get(c.Request.Context(), middleware.GetUserID(c))
		if err != nil {
			utils.RespondWithAppError(c, err)
			return
		}
		c.JSON(http.StatusOK, user.Info())
	})
}
