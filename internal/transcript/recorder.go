// Package transcript persists chat session logs without blocking the session.
package transcript

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ashureev/jenna/internal/chat"
	"github.com/ashureev/jenna/internal/domain"
	"github.com/ashureev/jenna/internal/store"
)

const writeTimeout = 5 * time.Second

type event struct {
	sessionID string
	msg       domain.ChatMessage
	clear     bool
}

// Recorder queues transcript events and writes them to a repository from a
// single worker, so per-session order is preserved.
type Recorder struct {
	repo   store.Repository
	logger *slog.Logger
	queue  chan event
	done   chan struct{}

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

// NewRecorder starts a recorder with the given queue capacity.
func NewRecorder(repo store.Repository, queueSize int, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	r := &Recorder{
		repo:   repo,
		logger: logger,
		queue:  make(chan event, queueSize),
		done:   make(chan struct{}),
	}
	go r.run()
	return r
}

// RecordMessage queues msg for persistence. Drops it if the queue is full.
func (r *Recorder) RecordMessage(sessionID string, msg domain.ChatMessage) {
	r.enqueue(event{sessionID: sessionID, msg: msg})
}

// RecordClear queues removal of the session's stored transcript.
func (r *Recorder) RecordClear(sessionID string) {
	r.enqueue(event{sessionID: sessionID, clear: true})
}

// Dropped returns how many events were discarded because the queue was full.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Close stops accepting events and waits for queued ones to be written.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()
	<-r.done
	return nil
}

func (r *Recorder) enqueue(ev event) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- ev:
	default:
		r.dropped.Add(1)
		r.logger.Warn("Transcript queue full, dropping event", "session_id", ev.sessionID, "clear", ev.clear)
	}
}

func (r *Recorder) run() {
	defer close(r.done)
	for ev := range r.queue {
		r.write(ev)
	}
}

func (r *Recorder) write(ev event) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if ev.clear {
		if _, err := r.repo.ClearMessages(ctx, ev.sessionID); err != nil {
			r.logger.Warn("Failed to clear transcript", "session_id", ev.sessionID, "error", err)
		}
		return
	}
	if _, err := r.repo.AppendMessage(ctx, ev.sessionID, ev.msg); err != nil {
		r.logger.Warn("Failed to record message", "session_id", ev.sessionID, "message_id", ev.msg.ID, "error", err)
	}
}

var _ chat.Recorder = (*Recorder)(nil)
