package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/jenna/internal/domain"
	"github.com/ashureev/jenna/internal/transport"
)

var errDialRefused = errors.New("connection refused")

// fakeConn is an in-memory transport. Frames pushed with deliver are
// returned by Read; frames written by the session land in written.
type fakeConn struct {
	inbound chan []byte
	written chan []byte
	closed  chan struct{}
	once    sync.Once
	onClose func()
}

func newFakeConn(onClose func()) *fakeConn {
	return &fakeConn{
		inbound: make(chan []byte, 16),
		written: make(chan []byte, 16),
		closed:  make(chan struct{}),
		onClose: onClose,
	}
}

func (c *fakeConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case data := <-c.inbound:
		return data, nil
	case <-c.closed:
		return nil, transport.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *fakeConn) Write(ctx context.Context, data []byte) error {
	select {
	case <-c.closed:
		return transport.ErrClosed
	default:
	}
	select {
	case c.written <- append([]byte(nil), data...):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() {
		close(c.closed)
		if c.onClose != nil {
			c.onClose()
		}
	})
	return nil
}

func (c *fakeConn) deliver(frame string) {
	c.inbound <- []byte(frame)
}

// fakeDialer hands out fakeConns and tracks how many are open at once.
type fakeDialer struct {
	mu      sync.Mutex
	fail    bool
	dials   int
	open    int
	maxOpen int
	conns   []*fakeConn
}

func (d *fakeDialer) Dial(ctx context.Context, _ string) (transport.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.fail {
		return nil, errDialRefused
	}
	d.open++
	if d.open > d.maxOpen {
		d.maxOpen = d.open
	}
	conn := newFakeConn(func() {
		d.mu.Lock()
		d.open--
		d.mu.Unlock()
	})
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *fakeDialer) setFail(fail bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fail = fail
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) openCount() (open, maxOpen int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open, d.maxOpen
}

func (d *fakeDialer) last() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

// manualScheduler records timers and fires them only on request.
type manualScheduler struct {
	mu     sync.Mutex
	timers []*manualTimer
}

type manualTimer struct {
	sched   *manualScheduler
	delay   time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{sched: s, delay: d, f: f}
	s.timers = append(s.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.sched.mu.Lock()
	defer t.sched.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

func (s *manualScheduler) delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Duration, 0, len(s.timers))
	for _, t := range s.timers {
		out = append(out, t.delay)
	}
	return out
}

func (s *manualScheduler) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func (s *manualScheduler) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// fireNext runs the oldest pending timer.
func (s *manualScheduler) fireNext(t *testing.T) {
	t.Helper()
	s.mu.Lock()
	var next *manualTimer
	for _, timer := range s.timers {
		if !timer.stopped && !timer.fired {
			next = timer
			break
		}
	}
	if next == nil {
		s.mu.Unlock()
		t.Fatal("no pending timer to fire")
		return
	}
	next.fired = true
	s.mu.Unlock()
	next.f()
}

type testEnv struct {
	session *Session
	dialer  *fakeDialer
	sched   *manualScheduler
	now     time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dialer := &fakeDialer{}
	cfg := DefaultConfig()
	cfg.URL = "ws://chatbot.test/ws/chatbot"

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := NewSession(cfg, dialer, logger)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}

	env := &testEnv{
		session: s,
		dialer:  dialer,
		sched:   &manualScheduler{},
		now:     time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC),
	}
	var seq int
	var seqMu sync.Mutex
	s.sched = env.sched
	s.now = func() time.Time { return env.now }
	s.newID = func() string {
		seqMu.Lock()
		defer seqMu.Unlock()
		seq++
		return fmt.Sprintf("msg-%d", seq)
	}
	t.Cleanup(s.Close)
	return env
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func (e *testEnv) connect(t *testing.T) *fakeConn {
	t.Helper()
	e.session.Connect()
	waitFor(t, "connected", func() bool { return e.session.Status() == domain.StatusConnected })
	return e.dialer.last()
}
