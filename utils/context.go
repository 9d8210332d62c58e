package utils

import (
	"context"
	"time"
)

const (
	RedisTimeout  = 2 * time.Second
	QueryTimeout  = 10 * time.Second
	ExportTimeout = 30 * time.Second
)

// WithRedisTimeout bounds token and rate-limit lookups.
func WithRedisTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, RedisTimeout)
}

// WithQueryTimeout bounds a single database or audit-store query.
func WithQueryTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, QueryTimeout)
}

// WithExportTimeout bounds building a whole-history export.
func WithExportTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, ExportTimeout)
}
