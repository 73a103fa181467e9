// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/cfpd-planning/intake-assistant/internal/domain"
)

// Repository defines the interface for persisting conversation sessions.
type Repository interface {
	// GetSession retrieves a session by user and session ID.
	// Returns (nil, nil) when no session exists.
	GetSession(ctx context.Context, userID, sessionID string) (*domain.Session, error)

	// SaveSession creates or updates a session record.
	SaveSession(ctx context.Context, session *domain.Session) error

	// DeleteSession removes a session record.
	DeleteSession(ctx context.Context, userID, sessionID string) error

	// CleanupExpiredSessions removes sessions idle longer than TTL.
	CleanupExpiredSessions(ctx context.Context, ttl time.Duration) (int64, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
