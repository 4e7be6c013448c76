// Package devserver is a local stand-in for the hosted chatbot backend. It
// speaks the same JSON-over-WebSocket contract so the client can be developed
// and tested without the production service.
package devserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	readLimit    = 64 << 10 // 64KB
	writeTimeout = 5 * time.Second
	replyTimeout = 30 * time.Second
)

// Config controls the dev backend.
type Config struct {
	AllowedOrigin string
	IsDev         bool
	PascalCase    bool // emit Message/Timestamp/IsError like a .NET backend
	RateLimit     rate.Limit
	RateBurst     int
}

// Handler serves the chatbot WebSocket endpoint.
type Handler struct {
	cfg       Config
	hub       *Hub
	responder Responder
	logger    *slog.Logger
	now       func() time.Time
}

// NewHandler creates a handler. A nil responder uses CannedResponder.
func NewHandler(cfg Config, hub *Hub, responder Responder, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if responder == nil {
		responder = CannedResponder{}
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 2
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 5
	}
	return &Handler{
		cfg:       cfg,
		hub:       hub,
		responder: responder,
		logger:    logger,
		now:       time.Now,
	}
}

// inbound is the client's request frame.
type inbound struct {
	Message string `json:"message"`
}

type replyCamel struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	IsError   bool   `json:"isError"`
}

type replyPascal struct {
	Message   string `json:"Message"`
	Timestamp string `json:"Timestamp"`
	IsError   bool   `json:"IsError"`
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("Failed to accept WebSocket", "error", err)
		return
	}
	ws.SetReadLimit(readLimit)

	connID := uuid.NewString()
	h.hub.Register(connID, ws)
	defer h.hub.Unregister(connID, ws)
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			h.logger.Debug("Failed to close websocket", "error", closeErr, "conn_id", connID)
		}
	}()

	h.logger.Info("Chatbot session started", "conn_id", connID, "ip", r.RemoteAddr)
	h.serve(r.Context(), ws, connID)
	h.logger.Info("Chatbot session ended", "conn_id", connID)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.cfg.IsDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.cfg.AllowedOrigin == "*" {
		return true
	}
	if origin == h.cfg.AllowedOrigin {
		return true
	}
	h.logger.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.cfg.AllowedOrigin)
	return false
}

func (h *Handler) serve(ctx context.Context, ws *websocket.Conn, connID string) {
	limiter := rate.NewLimiter(h.cfg.RateLimit, h.cfg.RateBurst)

	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				h.logger.Debug("WebSocket closed by client", "conn_id", connID)
			} else {
				h.logger.Debug("WebSocket read error", "error", err, "conn_id", connID)
			}
			return
		}

		var req inbound
		if err := json.Unmarshal(data, &req); err != nil {
			h.logger.Warn("Invalid chatbot request", "error", err, "conn_id", connID)
			_ = h.reply(ctx, ws, "Sorry, I couldn't read that message.", true)
			continue
		}
		text := strings.TrimSpace(req.Message)
		if text == "" {
			_ = h.reply(ctx, ws, "Please type a question.", true)
			continue
		}
		if !limiter.Allow() {
			h.logger.Warn("Chatbot request throttled", "conn_id", connID)
			_ = h.reply(ctx, ws, "You're sending messages too quickly. Please wait a moment.", true)
			continue
		}

		replyCtx, cancel := context.WithTimeout(ctx, replyTimeout)
		answer, err := h.responder.Reply(replyCtx, text)
		cancel()
		if err != nil {
			h.logger.Error("Responder failed", "error", err, "conn_id", connID)
			_ = h.reply(ctx, ws, "I'm having trouble answering right now. Please try again.", true)
			continue
		}
		if err := h.reply(ctx, ws, answer, false); err != nil {
			return
		}
	}
}

func (h *Handler) reply(ctx context.Context, ws *websocket.Conn, message string, isError bool) error {
	ts := h.now().UTC().Format(time.RFC3339Nano)

	var v any = replyCamel{Message: message, Timestamp: ts, IsError: isError}
	if h.cfg.PascalCase {
		v = replyPascal{Message: message, Timestamp: ts, IsError: isError}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := ws.Write(writeCtx, websocket.MessageText, data); err != nil {
		h.logger.Debug("Failed to write reply", "error", err)
		return err
	}
	return nil
}
