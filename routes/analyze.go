package routes

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"doc-analysis-platform/internal/config"
	"doc-analysis-platform/middleware"
	"doc-analysis-platform/services"
	"doc-analysis-platform/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func SetupAnalyzeRoutes(router *gin.Engine, cfg *config.Config, analysis *services.AnalysisService, authMiddleware *middleware.AuthMiddleware, rdb *redis.Client) {
	window := time.Duration(cfg.RateLimitWindow) * time.Second

	router.POST("/analyze",
		authMiddleware.RequireAuth(),
		middleware.RateLimit(rdb, "analyze", cfg.RateLimitReqs, window),
		middleware.RequestSizeLimit(cfg.MaxFileSize),
		func(c *gin.Context) {
			header, err := c.FormFile("file")
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					middleware.RespondTooLarge(c, cfg.MaxFileSize)
					return
				}
				utils.RespondWithBadRequest(c, "A file is required", gin.H{"field": "file"})
				return
			}
			prompt, ok := c.GetPostForm("prompt")
			if !ok {
				utils.RespondWithBadRequest(c, "A prompt is required", gin.H{"field": "prompt"})
				return
			}

			f, err := header.Open()
			if err != nil {
				utils.RespondWithBadRequest(c, "Could not read the uploaded file", nil)
				return
			}
			defer f.Close()

			data, err := io.ReadAll(f)
			if err != nil {
				utils.RespondWithBadRequest(c, "Could not read the uploaded file", nil)
				return
			}

			result, err := analysis.Analyze(c.Request.Context(), services.Upload{
				OwnerID:  middleware.GetUserID(c),
				Filename: filepath.Base(header.Filename),
				Data:     data,
				Prompt:   prompt,
			})
			if err != nil {
				utils.RespondWithAppError(c, err)
				return
			}
			c.JSON(http.StatusOK, result)
		})
}
