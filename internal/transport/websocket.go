package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// WebSocketConfig holds configuration for the WebSocket dialer.
type WebSocketConfig struct {
	DialTimeout  time.Duration
	WriteTimeout time.Duration
	ReadLimit    int64
	Header       http.Header
}

// DefaultWebSocketConfig returns default configuration.
func DefaultWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		DialTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		ReadLimit:    1 << 20, // 1MB
	}
}

// WebSocketDialer dials chatbot endpoints over WebSocket.
type WebSocketDialer struct {
	cfg    WebSocketConfig
	logger *slog.Logger
}

// NewWebSocketDialer creates a dialer. A nil logger uses slog.Default().
func NewWebSocketDialer(cfg WebSocketConfig, logger *slog.Logger) *WebSocketDialer {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultWebSocketConfig()
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = def.DialTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = def.ReadLimit
	}
	return &WebSocketDialer{cfg: cfg, logger: logger}
}

// Dial opens a WebSocket connection to url.
func (d *WebSocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, d.cfg.DialTimeout)
	defer cancel()

	ws, _, err := websocket.Dial(dialCtx, url, &websocket.DialOptions{
		HTTPHeader: d.cfg.Header,
	})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	ws.SetReadLimit(d.cfg.ReadLimit)

	d.logger.Debug("WebSocket dialed", "url", url)
	return &wsConn{ws: ws, writeTimeout: d.cfg.WriteTimeout, logger: d.logger}, nil
}

// wsConn adapts websocket.Conn to Conn.
type wsConn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration
	logger       *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

func (c *wsConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := c.ws.Read(ctx)
	if err != nil {
		if status := websocket.CloseStatus(err); status != -1 {
			c.logger.Debug("WebSocket closed by peer", "status", status)
			return nil, fmt.Errorf("%w: %s", ErrClosed, status)
		}
		return nil, err
	}
	return data, nil
}

func (c *wsConn) Write(ctx context.Context, data []byte) error {
	writeCtx, cancel := context.WithTimeout(ctx, c.writeTimeout)
	defer cancel()
	if err := c.ws.Write(writeCtx, websocket.MessageText, data); err != nil {
		if websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
			return fmt.Errorf("%w: %v", ErrClosed, err)
		}
		return err
	}
	return nil
}

func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.ws.Close(websocket.StatusNormalClosure, "session ended")
	})
	return c.closeErr
}
