// Package domain contains core domain types for the Jenna chat client.
package domain

import (
	"time"
)

// Role identifies who authored a chat message.
type Role string

const (
	// RoleUser marks a message typed by the local user.
	RoleUser Role = "user"
	// RoleAssistant marks a message produced by the remote chatbot.
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// ChatMessage is a single entry in a session's message log.
// IDs are assigned locally; the server never supplies one.
type ChatMessage struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	IsError   bool      `json:"isError,omitempty"`
}

// TranscriptEntry is a persisted chat message tagged with its session and
// its position in that session's log.
type TranscriptEntry struct {
	SessionID string
	Seq       int64
	Message   ChatMessage
	CreatedAt time.Time
}

// TranscriptSummary describes one stored session transcript.
type TranscriptSummary struct {
	SessionID    string
	MessageCount int
	FirstAt      time.Time
	LastAt       time.Time
}
