package middleware

import (
	"net/http"

	"doc-analysis-platform/utils"

	"github.com/gin-gonic/gin"
)

// RequestSizeLimit rejects bodies larger than maxSize. Declared lengths are
// checked up front; chunked bodies are cut off by MaxBytesReader.
func RequestSizeLimit(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxSize {
			RespondTooLarge(c, maxSize)
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		}
		c.Next()
	}
}

// RespondTooLarge aborts with 413. Handlers call it when a body without a
// declared length runs into the MaxBytesReader limit.
func RespondTooLarge(c *gin.Context, maxSize int64) {
	details := gin.H{
		"max_size":    maxSize,
		"max_size_mb": maxSize / (1024 * 1024),
	}
	if c.Request.ContentLength > 0 {
		details["received"] = c.Request.ContentLength
	}
	utils.RespondWithError(c, http.StatusRequestEntityTooLarge,
		"request_too_large", "Request body exceeds maximum size", details)
	c.Abort()
}
