package routes

import (
	"mime"
	"net/http"
	"strconv"

	"doc-analysis-platform/internal/apperrors"
	"doc-analysis-platform/middleware"
	"doc-analysis-platform/services"
	"doc-analysis-platform/utils"

	"github.com/gin-gonic/gin"
)

const brotliQuality = 5

func SetupFileRoutes(router *gin.Engine, files *services.FileService, authMiddleware *middleware.AuthMiddleware) {
	authed := router.Group("/")
	authed.Use(authMiddleware.RequireAuth())

	authed.GET("/history", middleware.Brotli(brotliQuality), func(c *gin.Context) {
		items, err := files.History(c.Request.Context(), middleware.GetUserID(c))
		if err != nil {
			utils.RespondWithAppError(c, err)
			return
		}
		c.JSON(http.StatusOK, items)
	})

	authed.GET("/history/export", func(c *gin.Context) {
		ctx, cancel := utils.WithExportTimeout(c.Request.Context())
		defer cancel()

		export, err := files.ExportHistoryXLSX(ctx, middleware.GetUserID(c))
		if err != nil {
			utils.RespondWithAppError(c, err)
			return
		}
		sendAttachment(c, export.Filename, export.ContentType, export.Data)
	})

	authed.DELETE("/files/:id", func(c *gin.Context) {
		fileID, ok := pathID(c)
		if !ok {
			return
		}
		if err := files.Delete(c.Request.Context(), middleware.GetUserID(c), fileID); err != nil {
			utils.RespondWithAppError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	download := authed.Group("/download/:id")

	download.GET("/original", func(c *gin.Context) {
		fileID, ok := pathID(c)
		if !ok {
			return
		}
		file, data, err := files.DownloadOriginal(c.Request.Context(), middleware.GetUserID(c), fileID)
		if err != nil {
			utils.RespondWithAppError(c, err)
			return
		}
		sendAttachment(c, file.Filename, "application/octet-stream", data)
	})

	// :id is the analysis id for rendered exports
	download.GET("/pdf", func(c *gin.Context) {
		responseID, ok := pathID(c)
		if !ok {
			return
		}
		export, err := files.ExportPDF(c.Request.Context(), middleware.GetUserID(c), responseID)
		if err != nil {
			utils.RespondWithAppError(c, err)
			return
		}
		sendAttachment(c, export.Filename, export.ContentType, export.Data)
	})

	download.GET("/txt", middleware.Brotli(brotliQuality), func(c *gin.Context) {
		responseID, ok := pathID(c)
		if !ok {
			return
		}
		export, err := files.ExportText(c.Request.Context(), middleware.GetUserID(c), responseID)
		if err != nil {
			utils.RespondWithAppError(c, err)
			return
		}
		sendAttachment(c, export.Filename, export.ContentType, export.Data)
	})
}

// pathID parses the :id parameter, responding 400 when it is not a
// positive integer.
func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		utils.RespondWithAppError(c, apperrors.New(apperrors.KindInvalidInput, "id must be a positive integer", nil))
		return 0, false
	}
	return id, true
}

func sendAttachment(c *gin.Context, filename, contentType string, data []byte) {
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": filename})
	if disposition == "" {
		disposition = "attachment"
	}
	c.Header("Content-Disposition", disposition)
	c.Data(http.StatusOK, contentType, data)
}
