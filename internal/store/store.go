// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/truthguard/internal/domain"
)

const (
	// DefaultListLimit is used when a history listing asks for no limit.
	DefaultListLimit = 50
	// MaxListLimit caps a single history listing.
	MaxListLimit = 500
)

// Repository defines the interface for persisting verification history.
type Repository interface {
	// RecordVerification appends one verification outcome.
	RecordVerification(ctx context.Context, rec *domain.VerificationRecord) error

	// ListHistory returns records newest first, optionally scoped to one identity.
	ListHistory(ctx context.Context, filter domain.HistoryFilter) ([]*domain.VerificationRecord, error)

	// Summary aggregates every stored record.
	Summary(ctx context.Context) (*domain.VerificationSummary, error)

	// PruneBefore deletes records created before cutoff and returns how many were removed.
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}

// clampLimit applies the listing defaults.
func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	default:
		return limit
	}
}
