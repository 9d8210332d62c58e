package services

import (
	"strconv"
	"time"

	"doc-analysis-platform/internal/telemetry"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type ExportFormat string

const (
	ExportPDF  ExportFormat = "pdf"
	ExportText ExportFormat = "txt"
)

var exportFormats = []ExportFormat{ExportPDF, ExportText}

// RenderCache keeps rendered exports keyed by file and format. A response
// belongs to exactly one file, so deleting the file invalidates both
// formats. A nil *RenderCache is a valid, always-missing cache.
type RenderCache struct {
	lru *expirable.LRU[string, []byte]
}

// NewRenderCache returns nil when size is not positive.
func NewRenderCache(size int, ttl time.Duration) *RenderCache {
	if size <= 0 {
		return nil
	}
	return &RenderCache{lru: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

func cacheKey(fileID int64, format ExportFormat) string {
	return strconv.FormatInt(fileID, 10) + ":" + string(format)
}

func (c *RenderCache) Get(fileID int64, format ExportFormat) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	data, ok := c.lru.Get(cacheKey(fileID, format))
	if ok {
		telemetry.RenderCacheLookups.WithLabelValues("hit").Inc()
	} else {
		telemetry.RenderCacheLookups.WithLabelValues("miss").Inc()
	}
	return data, ok
}

func (c *RenderCache) Add(fileID int64, format ExportFormat, data []byte) {
	if c == nil {
		return
	}
	c.lru.Add(cacheKey(fileID, format), data)
}

func (c *RenderCache) Invalidate(fileID int64) {
	if c == nil {
		return
	}
	for _, f := range exportFormats {
		c.lru.Remove(cacheKey(fileID, f))
	}
}

func (c *RenderCache) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}
