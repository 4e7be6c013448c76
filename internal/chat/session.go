// Package chat implements a single logical conversation with the remote
// chatbot over a reconnecting transport.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/jenna/internal/domain"
	"github.com/ashureev/jenna/internal/transport"
	"github.com/google/uuid"
)

// DefaultWelcomeMessage is appended by the assistant after every successful connect.
const DefaultWelcomeMessage = "Hi! I'm Jenna, your AI assistant for RentAssured. I can help you with platform features, tenant vetting, document requirements, and property management questions. How can I assist you today?"

var (
	errMissingURL    = errors.New("chatbot URL is required")
	errMissingDialer = errors.New("dialer is required")
)

// Config holds session configuration.
type Config struct {
	URL            string
	MaxRetries     int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	WelcomeMessage string
	SendQueueSize  int
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     5,
		BaseDelay:      time.Second,
		MaxDelay:       30 * time.Second,
		WelcomeMessage: DefaultWelcomeMessage,
		SendQueueSize:  64,
	}
}

// Recorder receives every message appended to the log and every clear.
// Implementations must not block.
type Recorder interface {
	RecordMessage(sessionID string, msg domain.ChatMessage)
	RecordClear(sessionID string)
}

// Snapshot is a point-in-time copy of the session's observable state.
type Snapshot struct {
	Status     domain.Status
	Sending    bool
	RetryCount int
	Messages   []domain.ChatMessage
}

// link is one transport instance and the goroutines serving it.
type link struct {
	conn   transport.Conn
	out    chan []byte
	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
	done      chan struct{} // closed once conn is closed
}

// Session owns at most one transport and one reconnect timer. State is
// guarded by mu, which is never held across network I/O.
type Session struct {
	id       string
	cfg      Config
	dialer   transport.Dialer
	logger   *slog.Logger
	sched    Scheduler
	now      func() time.Time
	newID    func() string
	recorder Recorder

	mu         sync.Mutex
	status     domain.Status
	sending    bool
	retryCount int
	messages   []domain.ChatMessage
	gen        uint64 // bumped whenever the current attempt is superseded
	link       *link
	dialCancel context.CancelFunc
	lastDone   chan struct{} // closed when the latest attempt's transport is released
	timer      Timer
	closed     bool

	updates chan struct{}
}

// NewSession creates a disconnected session. Call Connect to start it.
func NewSession(cfg Config, dialer transport.Dialer, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.URL == "" {
		return nil, errMissingURL
	}
	if dialer == nil {
		return nil, errMissingDialer
	}

	def := DefaultConfig()
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("max retries must be >= 0, got %d", cfg.MaxRetries)
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		return nil, fmt.Errorf("max delay %s is below base delay %s", cfg.MaxDelay, cfg.BaseDelay)
	}
	if cfg.WelcomeMessage == "" {
		cfg.WelcomeMessage = def.WelcomeMessage
	}
	if cfg.SendQueueSize <= 0 {
		cfg.SendQueueSize = def.SendQueueSize
	}

	id := uuid.NewString()
	return &Session{
		id:      id,
		cfg:     cfg,
		dialer:  dialer,
		logger:  logger.With("chat_session", id),
		sched:   realScheduler{},
		now:     time.Now,
		newID:   uuid.NewString,
		updates: make(chan struct{}, 1),
	}, nil
}

// SetRecorder attaches a transcript recorder. Call before Connect.
func (s *Session) SetRecorder(r Recorder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recorder = r
}

// ID returns the session's locally generated identifier.
func (s *Session) ID() string {
	return s.id
}

// URL returns the endpoint the session dials.
func (s *Session) URL() string {
	return s.cfg.URL
}

// Updates delivers a signal after any observable state change. Signals are
// coalesced; read a Snapshot after each one.
func (s *Session) Updates() <-chan struct{} {
	return s.updates
}

// Status returns the connection status.
func (s *Session) Status() domain.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Sending reports whether a sent message is still waiting for its reply.
func (s *Session) Sending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sending
}

// RetryCount returns the number of reconnects scheduled since the last
// successful connection.
func (s *Session) RetryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retryCount
}

// Messages returns a copy of the message log.
func (s *Session) Messages() []domain.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.messages)
}

// Snapshot returns a consistent copy of all observable state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Status:     s.status,
		Sending:    s.sending,
		RetryCount: s.retryCount,
		Messages:   slices.Clone(s.messages),
	}
}

// Connect starts a connection attempt unless one is open or opening.
// A pending reconnect timer is superseded. If automatic retries were
// exhausted, the retry budget starts over.
func (s *Session) Connect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if s.status != domain.StatusDisconnected {
		s.logger.Debug("Connect ignored", "status", s.status)
		return
	}
	s.stopTimerLocked()
	if s.retryCount >= s.cfg.MaxRetries {
		s.retryCount = 0
	}
	s.startLocked()
}

// Disconnect cancels any pending reconnect, aborts an in-flight dial and
// closes the open transport. Idempotent.
func (s *Session) Disconnect() {
	s.mu.Lock()
	s.stopTimerLocked()
	s.gen++
	if s.dialCancel != nil {
		s.dialCancel()
		s.dialCancel = nil
	}
	l := s.link
	s.link = nil
	changed := s.setStatusLocked(domain.StatusDisconnected)
	s.mu.Unlock()

	if l != nil {
		s.closeLink(l)
	}
	if changed {
		s.notify()
	}
}

// Close disconnects and permanently stops the session.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.Disconnect()
}

// SendMessage echoes content into the log and queues it for transmission.
// Empty input and sends while not connected are ignored.
func (s *Session) SendMessage(content string) {
	text := strings.TrimSpace(content)
	if text == "" {
		return
	}

	s.mu.Lock()
	if s.status != domain.StatusConnected || s.link == nil {
		status := s.status
		s.mu.Unlock()
		s.logger.Warn("Send ignored, chatbot is not connected", "status", status)
		return
	}

	frame, err := encodeRequest(text)
	if err != nil {
		s.mu.Unlock()
		s.logger.Error("Failed to encode chat request", "error", err)
		return
	}

	s.appendLocked(s.newMessage(domain.RoleUser, text, s.now(), false))
	s.sending = true

	select {
	case s.link.out <- frame:
	default:
		s.logger.Warn("Send queue full, dropping frame", "queue_size", cap(s.link.out))
	}
	s.mu.Unlock()
	s.notify()
}

// ClearMessages empties the message log. Connection state is untouched.
func (s *Session) ClearMessages() {
	s.mu.Lock()
	s.messages = nil
	if s.recorder != nil {
		s.recorder.RecordClear(s.id)
	}
	s.mu.Unlock()
	s.notify()
}

func (s *Session) startLocked() {
	s.gen++
	gen := s.gen
	ctx, cancel := context.WithCancel(context.Background())
	s.dialCancel = cancel
	prev := s.lastDone
	done := make(chan struct{})
	s.lastDone = done
	s.setStatusLocked(domain.StatusConnecting)
	s.notify()

	s.logger.Info("Connecting to chatbot", "url", s.cfg.URL, "retry_count", s.retryCount)
	go func() {
		// Never dial while the previous transport is still open.
		if prev != nil {
			<-prev
		}
		s.dial(ctx, cancel, gen, done)
	}()
}

func (s *Session) dial(ctx context.Context, cancel context.CancelFunc, gen uint64, done chan struct{}) {
	conn, err := s.dialer.Dial(ctx, s.cfg.URL)

	s.mu.Lock()
	if gen != s.gen || s.closed {
		s.mu.Unlock()
		cancel()
		if conn != nil {
			if closeErr := conn.Close(); closeErr != nil {
				s.logger.Debug("Failed to close superseded connection", "error", closeErr)
			}
		}
		close(done)
		return
	}
	s.dialCancel = nil

	if err != nil {
		s.logger.Warn("Chatbot connection failed", "url", s.cfg.URL, "error", err)
		s.dropLocked()
		s.mu.Unlock()
		cancel()
		close(done)
		s.notify()
		return
	}

	l := &link{
		conn:   conn,
		out:    make(chan []byte, s.cfg.SendQueueSize),
		ctx:    ctx,
		cancel: cancel,
		done:   done,
	}
	s.link = l
	s.retryCount = 0
	s.setStatusLocked(domain.StatusConnected)
	s.appendLocked(s.newMessage(domain.RoleAssistant, s.cfg.WelcomeMessage, s.now(), false))
	s.mu.Unlock()

	s.logger.Info("Chatbot connected", "url", s.cfg.URL)
	s.notify()

	go s.readLoop(l)
	go s.writeLoop(l)
}

func (s *Session) readLoop(l *link) {
	for {
		data, err := l.conn.Read(l.ctx)
		if err != nil {
			s.handleClose(l, err)
			return
		}
		s.handleFrame(l, data)
	}
}

func (s *Session) writeLoop(l *link) {
	for {
		select {
		case <-l.ctx.Done():
			return
		case frame := <-l.out:
			if err := l.conn.Write(l.ctx, frame); err != nil {
				if l.ctx.Err() == nil {
					s.logger.Warn("Chatbot write failed", "error", err)
				}
				// Closing forces the reader to observe the failure.
				if closeErr := l.conn.Close(); closeErr != nil {
					s.logger.Debug("Failed to close connection after write error", "error", closeErr)
				}
				return
			}
		}
	}
}

func (s *Session) handleFrame(l *link, data []byte) {
	s.logger.Debug("Chatbot frame received", "raw", string(data))

	s.mu.Lock()
	if s.link != l {
		s.mu.Unlock()
		return
	}

	r, err := decodeReply(data)
	s.sending = false
	if err != nil {
		s.mu.Unlock()
		s.logger.Warn("Failed to parse chatbot response", "error", err, "raw", string(data))
		s.notify()
		return
	}

	now := s.now()
	ts, ok := parseTimestamp(r.Timestamp, now)
	if !ok && r.Timestamp != "" {
		s.logger.Warn("Invalid timestamp received", "timestamp", r.Timestamp)
	}
	s.appendLocked(s.newMessage(domain.RoleAssistant, r.Message, ts, r.IsError))
	s.mu.Unlock()
	s.notify()
}

func (s *Session) handleClose(l *link, err error) {
	// The transport is dead either way; release it before any reconnect.
	s.closeLink(l)

	s.mu.Lock()
	if s.link != l {
		s.mu.Unlock()
		return
	}
	s.link = nil
	s.logger.Info("Chatbot disconnected", "error", err)
	s.dropLocked()
	s.mu.Unlock()
	s.notify()
}

// dropLocked moves to disconnected and schedules the next reconnect while
// the retry budget lasts.
func (s *Session) dropLocked() {
	s.setStatusLocked(domain.StatusDisconnected)

	if s.retryCount >= s.cfg.MaxRetries {
		s.logger.Warn("Reconnect attempts exhausted", "max_retries", s.cfg.MaxRetries)
		return
	}

	delay := Backoff(s.retryCount, s.cfg.BaseDelay, s.cfg.MaxDelay)
	s.retryCount++
	gen := s.gen
	s.stopTimerLocked()
	s.timer = s.sched.AfterFunc(delay, func() { s.reconnect(gen) })
	s.logger.Info("Scheduling reconnect", "delay", delay, "attempt", s.retryCount)
}

func (s *Session) reconnect(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.gen || s.status != domain.StatusDisconnected {
		return
	}
	s.timer = nil
	s.startLocked()
}

func (s *Session) closeLink(l *link) {
	l.closeOnce.Do(func() {
		if err := l.conn.Close(); err != nil && !errors.Is(err, transport.ErrClosed) {
			s.logger.Debug("Failed to close chatbot connection", "error", err)
		}
		l.cancel()
		close(l.done)
	})
}

func (s *Session) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// setStatusLocked reports whether the status changed.
func (s *Session) setStatusLocked(status domain.Status) bool {
	if s.status == status {
		return false
	}
	s.logger.Debug("Chat status changed", "from", s.status, "to", status)
	s.status = status
	return true
}

func (s *Session) appendLocked(msg domain.ChatMessage) {
	s.messages = append(s.messages, msg)
	if s.recorder != nil {
		s.recorder.RecordMessage(s.id, msg)
	}
}

func (s *Session) newMessage(role domain.Role, content string, ts time.Time, isError bool) domain.ChatMessage {
	return domain.ChatMessage{
		ID:        s.newID(),
		Role:      role,
		Content:   content,
		Timestamp: ts,
		IsError:   isError,
	}
}

func (s *Session) notify() {
	select {
	case s.updates <- struct{}{}:
	default:
	}
}
