package transcript

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/jenna/internal/domain"
	"github.com/ashureev/jenna/internal/store"
)

func TestRecorderPersistsInOrder(t *testing.T) {
	t.Parallel()

	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "jenna.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	defer func() { _ = repo.Close() }()

	rec := NewRecorder(repo, 16, nil)
	now := time.Now()
	rec.RecordMessage("sess", domain.ChatMessage{ID: "1", Role: domain.RoleAssistant, Content: "welcome", Timestamp: now})
	rec.RecordMessage("sess", domain.ChatMessage{ID: "2", Role: domain.RoleUser, Content: "hello", Timestamp: now})
	rec.RecordClear("sess")
	rec.RecordMessage("sess", domain.ChatMessage{ID: "3", Role: domain.RoleUser, Content: "after clear", Timestamp: now})
	if err := rec.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	entries, err := repo.ListMessages(context.Background(), "sess", 0)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Message.ID != "3" || entries[0].Seq != 1 {
		t.Fatalf("expected only the post-clear message, got %+v", entries)
	}
}

// blockingRepo stalls appends until released.
type blockingRepo struct {
	store.Repository
	release chan struct{}
	mu      sync.Mutex
	appends int
}

func (b *blockingRepo) AppendMessage(ctx context.Context, _ string, _ domain.ChatMessage) (int64, error) {
	<-b.release
	b.mu.Lock()
	defer b.mu.Unlock()
	b.appends++
	return int64(b.appends), nil
}

func TestRecorderDropsWhenFull(t *testing.T) {
	t.Parallel()

	repo := &blockingRepo{release: make(chan struct{})}
	rec := NewRecorder(repo, 2, nil)

	// One event is taken by the worker, two fill the queue, the rest drop.
	for i := 0; i < 10; i++ {
		rec.RecordMessage("sess", domain.ChatMessage{ID: fmt.Sprint(i), Role: domain.RoleUser})
		time.Sleep(time.Millisecond)
	}
	if rec.Dropped() == 0 {
		t.Fatal("expected events to be dropped")
	}

	close(repo.release)
	if err := rec.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if got := int64(repo.appends) + rec.Dropped(); got != 10 {
		t.Fatalf("expected written + dropped = 10, got %d", got)
	}

	// Events after Close are ignored.
	rec.RecordMessage("sess", domain.ChatMessage{ID: "late", Role: domain.RoleUser})
}
