package devserver

import (
	"strconv"
	"sync"
	"testing"

	"github.com/coder/websocket"
)

func TestHub_RegisterUnregister(t *testing.T) {
	hub := NewHub()
	conn := &websocket.Conn{}

	hub.Register("conn-1", conn)
	if got := hub.Count(); got != 1 {
		t.Fatalf("Count() = %d, want 1", got)
	}

	hub.Unregister("conn-1", conn)
	if got := hub.Count(); got != 0 {
		t.Errorf("Count() = %d, want 0", got)
	}
}

func TestHub_UnregisterStale(t *testing.T) {
	hub := NewHub()
	oldConn := &websocket.Conn{}
	newConn := &websocket.Conn{}

	hub.Register("conn-1", oldConn)
	hub.Register("conn-1", newConn)

	// A late unregister from the replaced connection must not evict the new one.
	hub.Unregister("conn-1", oldConn)
	if got := hub.Count(); got != 1 {
		t.Errorf("Count() = %d, want 1", got)
	}
}

func TestHub_ConcurrentAccess(t *testing.T) {
	hub := NewHub()
	var wg sync.WaitGroup

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < 250; j++ {
				id := strconv.Itoa(worker) + "-" + strconv.Itoa(j)
				conn := &websocket.Conn{}
				hub.Register(id, conn)
				hub.Count()
				hub.Unregister(id, conn)
			}
		}(i)
	}
	wg.Wait()

	if got := hub.Count(); got != 0 {
		t.Errorf("Count() = %d, want 0", got)
	}
}
