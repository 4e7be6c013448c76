package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ashureev/jenna/internal/chat"
	"github.com/ashureev/jenna/internal/domain"
	"github.com/ashureev/jenna/internal/store"
)

const historyLimit = 20

const helpText = `Commands:
  /clear       clear the conversation
  /reconnect   connect again (restarts the retry budget)
  /disconnect  close the connection
  /status      show connection state
  /history     show the stored transcript
  /quit        exit`

// printer turns successive snapshots into terminal output. Only what changed
// since the previous snapshot is printed.
type printer struct {
	out     io.Writer
	printed int
	status  domain.Status
	sending bool
}

func newPrinter(out io.Writer) *printer {
	return &printer{out: out, status: domain.StatusDisconnected}
}

func (p *printer) render(snap chat.Snapshot) {
	if snap.Status != p.status {
		line := "[" + snap.Status.String() + "]"
		if snap.Status == domain.StatusDisconnected && snap.RetryCount > 0 {
			line += fmt.Sprintf(" retry %d scheduled", snap.RetryCount)
		}
		fmt.Fprintln(p.out, line)
		p.status = snap.Status
	}

	if len(snap.Messages) < p.printed {
		fmt.Fprintln(p.out, "[conversation cleared]")
		p.printed = 0
	}
	for _, msg := range snap.Messages[p.printed:] {
		// The user's own input is already on screen.
		if msg.Role == domain.RoleUser {
			continue
		}
		fmt.Fprintln(p.out, formatMessage(msg))
	}
	p.printed = len(snap.Messages)

	if snap.Sending && !p.sending {
		fmt.Fprintln(p.out, "Jenna is typing...")
	}
	p.sending = snap.Sending
}

func formatMessage(msg domain.ChatMessage) string {
	who := "You"
	if msg.Role == domain.RoleAssistant {
		who = "Jenna"
	}
	if msg.IsError {
		who += " (error)"
	}
	return fmt.Sprintf("%s %s: %s", msg.Timestamp.Local().Format(time.Kitchen), who, msg.Content)
}

// commandHandler executes slash commands against a session.
type commandHandler struct {
	session *chat.Session
	repo    store.Repository // nil when transcripts are disabled
	out     io.Writer
}

// handle runs input and reports whether the REPL should exit.
func (c *commandHandler) handle(ctx context.Context, input string) (quit bool) {
	if !strings.HasPrefix(input, "/") {
		if c.session.Status() != domain.StatusConnected {
			fmt.Fprintln(c.out, "Not connected. Use /reconnect to try again.")
			return false
		}
		c.session.SendMessage(input)
		return false
	}

	fields := strings.Fields(input)
	switch strings.ToLower(fields[0]) {
	case "/quit", "/exit":
		return true
	case "/help":
		fmt.Fprintln(c.out, helpText)
	case "/clear":
		c.session.ClearMessages()
	case "/reconnect":
		c.session.Connect()
	case "/disconnect":
		c.session.Disconnect()
	case "/status":
		snap := c.session.Snapshot()
		fmt.Fprintf(c.out, "status=%s sending=%t retries=%d messages=%d url=%s\n",
			snap.Status, snap.Sending, snap.RetryCount, len(snap.Messages), c.session.URL())
	case "/history":
		c.printHistory(ctx)
	default:
		fmt.Fprintf(c.out, "Unknown command %s. Type /help for commands.\n", fields[0])
	}
	return false
}

func (c *commandHandler) printHistory(ctx context.Context) {
	if c.repo == nil {
		msgs := c.session.Messages()
		if len(msgs) > historyLimit {
			msgs = msgs[len(msgs)-historyLimit:]
		}
		for _, msg := range msgs {
			fmt.Fprintln(c.out, formatMessage(msg))
		}
		return
	}

	entries, err := c.repo.ListMessages(ctx, c.session.ID(), historyLimit)
	if err != nil {
		fmt.Fprintf(c.out, "Failed to load history: %v\n", err)
		return
	}
	if len(entries) == 0 {
		fmt.Fprintln(c.out, "No stored messages for this session.")
		return
	}
	for _, e := range entries {
		fmt.Fprintf(c.out, "#%d %s\n", e.Seq, formatMessage(e.Message))
	}
}
