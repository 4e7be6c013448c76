package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ashureev/jenna/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db      *sql.DB
	writeMu sync.Mutex // serialises writers so seq assignment never races
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS chat_messages (
		session_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		message_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		is_error INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (session_id, seq)
	);
	CREATE INDEX IF NOT EXISTS idx_chat_messages_created ON chat_messages(created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// AppendMessage stores msg after the session's last entry.
func (s *SQLiteStore) AppendMessage(ctx context.Context, sessionID string, msg domain.ChatMessage) (int64, error) {
	if sessionID == "" {
		return 0, fmt.Errorf("append message: session id is required")
	}
	if !msg.Role.Valid() {
		return 0, fmt.Errorf("append message: invalid role %q", msg.Role)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	query := `
	INSERT INTO chat_messages (session_id, seq, message_id, role, content, timestamp, is_error, created_at)
	SELECT ?, COALESCE(MAX(seq), 0) + 1, ?, ?, ?, ?, ?, ?
	FROM chat_messages WHERE session_id = ?
	RETURNING seq`

	var seq int64
	err := withBusyRetry(ctx, "append message", func() error {
		return s.db.QueryRowContext(ctx, query,
			sessionID, msg.ID, string(msg.Role), msg.Content,
			msg.Timestamp.UnixNano(), msg.IsError, time.Now().UnixNano(),
			sessionID,
		).Scan(&seq)
	})
	if err != nil {
		return 0, err
	}
	return seq, nil
}

// ListMessages returns a session's transcript in log order.
func (s *SQLiteStore) ListMessages(ctx context.Context, sessionID string, limit int) ([]domain.TranscriptEntry, error) {
	query := `
		SELECT session_id, seq, message_id, role, content, timestamp, is_error, created_at
		FROM (
			SELECT * FROM chat_messages WHERE session_id = ?
			ORDER BY seq DESC LIMIT ?
		) ORDER BY seq ASC`

	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	rows, err := s.db.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close message rows", "error", closeErr)
		}
	}()

	var entries []domain.TranscriptEntry
	for rows.Next() {
		var e domain.TranscriptEntry
		var role string
		var ts, createdAt int64

		if err := rows.Scan(
			&e.SessionID, &e.Seq, &e.Message.ID, &role, &e.Message.Content,
			&ts, &e.Message.IsError, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}

		e.Message.Role = domain.Role(role)
		e.Message.Timestamp = time.Unix(0, ts)
		e.CreatedAt = time.Unix(0, createdAt)
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return entries, nil
}

// ClearMessages removes a session's transcript.
func (s *SQLiteStore) ClearMessages(ctx context.Context, sessionID string) (int64, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var deleted int64
	err := withBusyRetry(ctx, "clear messages", func() error {
		result, err := s.db.ExecContext(ctx, `DELETE FROM chat_messages WHERE session_id = ?`, sessionID)
		if err != nil {
			return err
		}
		deleted, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// ListSessions summarises stored transcripts, most recently active first.
func (s *SQLiteStore) ListSessions(ctx context.Context, limit int) ([]domain.TranscriptSummary, error) {
	query := `
		SELECT session_id, COUNT(*), MIN(created_at), MAX(created_at)
		FROM chat_messages
		GROUP BY session_id
		ORDER BY MAX(created_at) DESC
		LIMIT ?`

	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close session rows", "error", closeErr)
		}
	}()

	var summaries []domain.TranscriptSummary
	for rows.Next() {
		var sum domain.TranscriptSummary
		var first, last int64
		if err := rows.Scan(&sum.SessionID, &sum.MessageCount, &first, &last); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		sum.FirstAt = time.Unix(0, first)
		sum.LastAt = time.Unix(0, last)
		summaries = append(summaries, sum)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return summaries, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

var _ Repository = (*SQLiteStore)(nil)
