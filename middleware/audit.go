package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/url"
	"strings"

	"doc-analysis-platform/models"

	"github.com/gin-gonic/gin"
)

// AuditSink receives finished-request events. *models.AuditLogger is the
// production sink.
type AuditSink interface {
	LogAsync(event *models.AuditEvent)
}

var sensitiveFields = []string{"password", "token", "secret", "key"}

// AuditMiddleware records one audit event per request. Multipart bodies
// (uploads) are not captured.
func AuditMiddleware(sink AuditSink) gin.HandlerFunc {
	return func(c *gin.Context) {
		var bodyBytes []byte
		if c.Request.Body != nil && !strings.HasPrefix(c.ContentType(), "multipart/") {
			bodyBytes, _ = io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
			c.Request.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		}

		c.Next()

		sink.LogAsync(createAuditEvent(c, bodyBytes))
	}
}

func createAuditEvent(c *gin.Context, bodyBytes []byte) *models.AuditEvent {
	status := c.Writer.Status()
	event := &models.AuditEvent{
		UserID:    GetUserID(c),
		Action:    mapHTTPMethodToAction(c.Request.Method),
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		RequestID: GetRequestID(c),
		Status:    status,
		Success:   status < 400,
	}
	event.Resource, event.ResourceID = resourceFromRoute(c)

	if !event.Success {
		if last := c.Errors.Last(); last != nil {
			event.ErrorMessage = last.Error()
		}
	}
	if event.Action == "CREATE" {
		event.Changes = extractChangesFromBody(bodyBytes, c.ContentType())
	}
	return event
}

func mapHTTPMethodToAction(method string) string {
	switch method {
	case "GET":
		return "READ"
	case "POST":
		return "CREATE"
	case "PUT", "PATCH":
		return "UPDATE"
	case "DELETE":
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// resourceFromRoute maps the matched route template to a resource type.
func resourceFromRoute(c *gin.Context) (string, string) {
	route := c.FullPath()
	switch {
	case route == "/register" || route == "/token" || route == "/logout" || route == "/users/me":
		return "auth", ""
	case route == "/analyze":
		return "file", ""
	case strings.HasPrefix(route, "/history"):
		return "history", ""
	case route == "/files/:id" || route == "/download/:id/original":
		return "file", c.Param("id")
	case strings.HasPrefix(route, "/download/:id/"):
		return "analysis", c.Param("id")
	case route == "":
		return "unknown", ""
	default:
		return strings.Trim(route, "/"), ""
	}
}

// extractChangesFromBody decodes JSON or form bodies with sensitive
// fields redacted.
func extractChangesFromBody(bodyBytes []byte, contentType string) map[string]interface{} {
	if len(bodyBytes) == 0 {
		return nil
	}

	body := map[string]interface{}{}
	switch contentType {
	case "application/x-www-form-urlencoded":
		values, err := url.ParseQuery(string(bodyBytes))
		if err != nil {
			return nil
		}
		for k := range values {
			body[k] = values.Get(k)
		}
	default:
		if err := json.Unmarshal(bodyBytes, &body); err != nil {
			return nil
		}
	}

	for k := range body {
		if isSensitiveField(k) {
			body[k] = "[REDACTED]"
		}
	}
	return body
}

func isSensitiveField(field string) bool {
	field = strings.ToLower(field)
	for _, s := range sensitiveFields {
		if strings.Contains(field, s) {
			return true
		}
	}
	return false
}
