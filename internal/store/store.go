// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/scamshield-labs/scamshield/internal/domain"
)

// Repository persists sessions and their conversations so a reconnecting
// client resumes the same round instead of starting a duplicate.
type Repository interface {
	// GetSession retrieves a session by id. Returns (nil, nil) when absent.
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)

	// GetCurrentSession retrieves the newest non-terminal session for an
	// owner. Returns (nil, nil) when absent.
	GetCurrentSession(ctx context.Context, userID, tabID string) (*domain.Session, error)

	// UpsertSession creates or updates a session record, aggregates included.
	UpsertSession(ctx context.Context, sess *domain.Session) error

	// InsertTurn appends a committed turn to a session's conversation.
	InsertTurn(ctx context.Context, sessionID string, turn *domain.Turn) error

	// UpdateTurnFlag records a flag outcome on an existing turn.
	UpdateTurnFlag(ctx context.Context, sessionID string, seq int, outcome domain.FlagOutcome, feedback string) error

	// ListTurns returns a session's turns ordered by sequence number.
	ListTurns(ctx context.Context, sessionID string) ([]*domain.Turn, error)

	// CleanupExpiredSessions removes sessions (and their turns) idle longer
	// than ttl. Returns the number of sessions removed.
	CleanupExpiredSessions(ctx context.Context, ttl time.Duration) (int64, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
