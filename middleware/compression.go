package middleware

import (
	"doc-analysis-platform/utils"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
)

type brotliWriter struct {
	gin.ResponseWriter
	w *brotli.Writer
}

func (b *brotliWriter) WriteHeader(code int) {
	b.Header().Del("Content-Length")
	b.ResponseWriter.WriteHeader(code)
}

func (b *brotliWriter) Write(data []byte) (int, error) {
	b.Header().Del("Content-Length")
	return b.w.Write(data)
}

func (b *brotliWriter) WriteString(s string) (int, error) {
	return b.Write([]byte(s))
}

// Brotli compresses responses for clients that accept br.
func Brotli(quality int) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Vary", "Accept-Encoding")
		if !utils.AcceptsBrotli(c.GetHeader("Accept-Encoding")) {
			c.Next()
			return
		}

		c.Header("Content-Encoding", "br")
		bw := &brotliWriter{ResponseWriter: c.Writer, w: brotli.NewWriterLevel(c.Writer, quality)}
		c.Writer = bw
		defer func() {
			bw.w.Close()
		}()

		c.Next()
	}
}
