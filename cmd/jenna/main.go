// Jenna - terminal client for the RentAssured chatbot.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ashureev/jenna/internal/chat"
	"github.com/ashureev/jenna/internal/config"
	"github.com/ashureev/jenna/internal/store"
	"github.com/ashureev/jenna/internal/transcript"
	"github.com/ashureev/jenna/internal/transport"
	"github.com/joho/godotenv"
	"github.com/peterh/liner"
)

func main() {
	// Logs go to stderr at warn level so they do not interleave with the chat.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	slog.SetDefault(logger)

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		slog.Error("Chat client failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dialer := transport.NewWebSocketDialer(transport.WebSocketConfig{
		DialTimeout: cfg.Chatbot.DialTimeout,
	}, logger)

	chatCfg := chat.DefaultConfig()
	chatCfg.URL = cfg.ChatbotURL()
	chatCfg.MaxRetries = cfg.Chatbot.MaxRetries
	chatCfg.BaseDelay = cfg.Chatbot.RetryBaseDelay
	chatCfg.MaxDelay = cfg.Chatbot.RetryMaxDelay
	chatCfg.SendQueueSize = cfg.Chatbot.SendQueueSize

	session, err := chat.NewSession(chatCfg, dialer, logger)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	defer session.Close()

	var repo store.Repository
	if cfg.Transcript.Enabled {
		sqlite, err := store.NewSQLite(cfg.Transcript.DBPath)
		if err != nil {
			return fmt.Errorf("open transcript store: %w", err)
		}
		defer func() {
			if closeErr := sqlite.Close(); closeErr != nil {
				slog.Error("Failed to close repository", "error", closeErr)
			}
		}()
		repo = sqlite

		recorder := transcript.NewRecorder(sqlite, cfg.Transcript.QueueSize, logger)
		// Registered after the store's defer so it drains before the store closes.
		defer func() { _ = recorder.Close() }()
		session.SetRecorder(recorder)
	}

	out := os.Stdout
	fmt.Fprintf(out, "Connecting to %s (type /help for commands)\n", session.URL())

	p := newPrinter(out)
	go watch(ctx, session, p)

	session.Connect()

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	histPath := historyFile()
	if f, err := os.Open(histPath); err == nil {
		_, _ = line.ReadHistory(f)
		_ = f.Close()
	}
	defer saveHistory(line, histPath)

	cmds := &commandHandler{session: session, repo: repo, out: out}
	for {
		input, err := line.Prompt("you> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(out)
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		if cmds.handle(ctx, input) {
			return nil
		}
	}
}

func watch(ctx context.Context, session *chat.Session, p *printer) {
	p.render(session.Snapshot())
	for {
		select {
		case <-ctx.Done():
			return
		case <-session.Updates():
			p.render(session.Snapshot())
		}
	}
}

func historyFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "jenna", "history")
}

func saveHistory(line *liner.State, path string) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = line.WriteHistory(f)
}
