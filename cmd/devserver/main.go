// Jenna dev chatbot - local stand-in for the hosted chatbot backend.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/jenna/internal/config"
	"github.com/ashureev/jenna/internal/devserver"
	"github.com/coder/websocket"
	"github.com/joho/godotenv"
	"golang.org/x/time/rate"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting dev chatbot", "port", cfg.DevServer.Port, "dev", cfg.IsDevelopment(), "pascal_case", cfg.DevServer.PascalCase)

	hub := devserver.NewHub()
	wsHandler := devserver.NewHandler(devserver.Config{
		AllowedOrigin: cfg.DevServer.AllowedOrigin,
		IsDev:         cfg.IsDevelopment(),
		PascalCase:    cfg.DevServer.PascalCase,
		RateLimit:     rate.Limit(cfg.DevServer.RateLimit),
		RateBurst:     cfg.DevServer.RateBurst,
	}, hub, devserver.CannedResponder{}, logger)

	origins := []string{"*"}
	if !cfg.IsDevelopment() {
		origins = []string{cfg.DevServer.AllowedOrigin}
	}

	srv := &http.Server{
		Addr:         ":" + cfg.DevServer.Port,
		Handler:      devserver.NewRouter(wsHandler, hub, origins),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // hijacked WebSocket connections outlive any write deadline
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	// Shutdown does not wait for hijacked connections, so close them explicitly
	// and let clients start their reconnect backoff.
	hub.CloseAll(websocket.StatusGoingAway, "server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
