package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	// Unparseable values fall back to defaults, so blanking is enough to
	// isolate the test from the surrounding environment.
	for _, key := range []string{
		"CHATBOT_URL", "PUBLIC_HOST", "RAILWAY_PUBLIC_DOMAIN",
		"CHAT_MAX_RETRIES", "CHAT_RETRY_BASE_DELAY", "CHAT_RETRY_MAX_DELAY",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Chatbot.MaxRetries != 5 {
		t.Errorf("expected 5 retries, got %d", cfg.Chatbot.MaxRetries)
	}
	if cfg.Chatbot.RetryBaseDelay != time.Second || cfg.Chatbot.RetryMaxDelay != 30*time.Second {
		t.Errorf("unexpected backoff bounds: %s / %s", cfg.Chatbot.RetryBaseDelay, cfg.Chatbot.RetryMaxDelay)
	}
	if got := cfg.ChatbotURL(); got != DefaultDevelopmentURL {
		t.Errorf("expected development URL, got %s", got)
	}
}

func TestChatbotURLSelection(t *testing.T) {
	t.Parallel()

	base := Config{Chatbot: ChatbotConfig{
		ProductionURL:  DefaultProductionURL,
		DevelopmentURL: DefaultDevelopmentURL,
	}}

	tests := []struct {
		name     string
		override string
		host     string
		want     string
	}{
		{"local", "", "localhost", DefaultDevelopmentURL},
		{"empty host", "", "", DefaultDevelopmentURL},
		{"railway", "", "rentassured-web-production.up.railway.app", DefaultProductionURL},
		{"railway mixed case", "", "App.Up.Railway.App", DefaultProductionURL},
		{"override wins", "ws://10.0.0.5:9000/ws/chatbot", "rentassured.up.railway.app", "ws://10.0.0.5:9000/ws/chatbot"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			cfg.Chatbot.URL = tt.override
			cfg.Chatbot.PublicHost = tt.host
			if got := cfg.ChatbotURL(); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("RAILWAY_PUBLIC_DOMAIN", "dashboard.up.railway.app")
	t.Setenv("PUBLIC_HOST", "")
	t.Setenv("CHAT_MAX_RETRIES", "3")
	t.Setenv("CHAT_RETRY_BASE_DELAY", "500")
	t.Setenv("CHAT_RETRY_MAX_DELAY", "10s")
	t.Setenv("TRANSCRIPT_ENABLED", "off")
	t.Setenv("DEV_PASCAL_CASE", "yes")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Chatbot.MaxRetries != 3 {
		t.Errorf("expected 3 retries, got %d", cfg.Chatbot.MaxRetries)
	}
	if cfg.Chatbot.RetryBaseDelay != 500*time.Millisecond {
		t.Errorf("expected 500ms base delay, got %s", cfg.Chatbot.RetryBaseDelay)
	}
	if cfg.Chatbot.RetryMaxDelay != 10*time.Second {
		t.Errorf("expected 10s max delay, got %s", cfg.Chatbot.RetryMaxDelay)
	}
	if cfg.Transcript.Enabled {
		t.Error("expected transcripts to be disabled")
	}
	if !cfg.DevServer.PascalCase {
		t.Error("expected PascalCase dev replies")
	}
}

func TestValidateRejectsBadBackoff(t *testing.T) {
	t.Setenv("CHAT_RETRY_BASE_DELAY", "5s")
	t.Setenv("CHAT_RETRY_MAX_DELAY", "1s")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when max delay is below base delay")
	}
}
