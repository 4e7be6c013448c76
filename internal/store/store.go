// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"

	"github.com/ashureev/jenna/internal/domain"
)

// Repository persists chat transcripts.
type Repository interface {
	// AppendMessage stores a message at the end of its session's transcript
	// and returns the assigned sequence number.
	AppendMessage(ctx context.Context, sessionID string, msg domain.ChatMessage) (int64, error)

	// ListMessages returns a session's transcript in log order. A positive
	// limit keeps only the most recent entries.
	ListMessages(ctx context.Context, sessionID string, limit int) ([]domain.TranscriptEntry, error)

	// ClearMessages removes a session's transcript.
	ClearMessages(ctx context.Context, sessionID string) (int64, error)

	// ListSessions summarises stored transcripts, most recent first.
	ListSessions(ctx context.Context, limit int) ([]domain.TranscriptSummary, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
