// Package repository persists workspace logs beyond the bounded in-memory view.
package repository

import (
	"context"
	"errors"

	"github.com/telhawk-systems/flowhook/internal/models"
)

// ErrNotConfigured is returned by callers when no durable store was set up.
var ErrNotConfigured = errors.New("durable log history is not configured")

// DefaultHistoryLimit and MaxHistoryLimit bound ListRecent.
const (
	DefaultHistoryLimit = 100
	MaxHistoryLimit     = 1000
)

// Repository stores log records durably.
type Repository interface {
	SaveLog(ctx context.Context, rec models.LogRecord) error
	ListRecent(ctx context.Context, workspaceID string, logType models.LogType, limit int) ([]models.LogRecord, error)
	Ping(ctx context.Context) error
	Close()
}

// ClampLimit maps a requested page size into [1, MaxHistoryLimit].
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		return MaxHistoryLimit
	default:
		return limit
	}
}
