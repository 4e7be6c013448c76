// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultProductionURL is the hosted chatbot endpoint.
	DefaultProductionURL = "wss://rentassured-api-production.up.railway.app/ws/chatbot"
	// DefaultDevelopmentURL is the chatbot endpoint of a local backend.
	DefaultDevelopmentURL = "ws://localhost:5087/ws/chatbot"

	productionHostMarker = "railway.app"
)

// Config holds all application configuration.
type Config struct {
	Chatbot    ChatbotConfig
	Transcript TranscriptConfig
	DevServer  DevServerConfig
}

// ChatbotConfig controls how the client reaches the chatbot.
type ChatbotConfig struct {
	URL            string // explicit override; empty means select by PublicHost
	PublicHost     string
	ProductionURL  string
	DevelopmentURL string
	MaxRetries     int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	DialTimeout    time.Duration
	SendQueueSize  int
}

// TranscriptConfig controls SQLite transcript persistence.
type TranscriptConfig struct {
	Enabled   bool
	DBPath    string
	QueueSize int
}

// DevServerConfig configures the local stand-in chatbot backend.
type DevServerConfig struct {
	Port          string
	AllowedOrigin string
	PascalCase    bool
	RateLimit     float64 // replies per second per connection
	RateBurst     int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Chatbot: ChatbotConfig{
			URL:            getEnv("CHATBOT_URL", ""),
			PublicHost:     getEnv("PUBLIC_HOST", getEnv("RAILWAY_PUBLIC_DOMAIN", "")),
			ProductionURL:  getEnv("CHATBOT_PROD_URL", DefaultProductionURL),
			DevelopmentURL: getEnv("CHATBOT_DEV_URL", DefaultDevelopmentURL),
			MaxRetries:     getEnvInt("CHAT_MAX_RETRIES", 5),
			RetryBaseDelay: getEnvDuration("CHAT_RETRY_BASE_DELAY", time.Second),
			RetryMaxDelay:  getEnvDuration("CHAT_RETRY_MAX_DELAY", 30*time.Second),
			DialTimeout:    getEnvDuration("CHAT_DIAL_TIMEOUT", 10*time.Second),
			SendQueueSize:  getEnvInt("CHAT_SEND_QUEUE_SIZE", 64),
		},
		Transcript: TranscriptConfig{
			Enabled:   getEnvBool("TRANSCRIPT_ENABLED", true),
			DBPath:    getEnv("DB_PATH", "./data/jenna.db"),
			QueueSize: getEnvInt("TRANSCRIPT_QUEUE_SIZE", 256),
		},
		DevServer: DevServerConfig{
			Port:          getEnv("PORT", "5087"),
			AllowedOrigin: getEnv("FRONTEND_URL", ""),
			PascalCase:    getEnvBool("DEV_PASCAL_CASE", false),
			RateLimit:     getEnvFloat("DEV_RATE_LIMIT", 2),
			RateBurst:     getEnvInt("DEV_RATE_BURST", 5),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Chatbot.ProductionURL == "" || c.Chatbot.DevelopmentURL == "" {
		return fmt.Errorf("CHATBOT_PROD_URL and CHATBOT_DEV_URL cannot be empty")
	}
	if c.Chatbot.MaxRetries < 0 {
		return fmt.Errorf("CHAT_MAX_RETRIES must be >= 0")
	}
	if c.Chatbot.RetryBaseDelay <= 0 {
		return fmt.Errorf("CHAT_RETRY_BASE_DELAY must be > 0")
	}
	if c.Chatbot.RetryMaxDelay < c.Chatbot.RetryBaseDelay {
		return fmt.Errorf("CHAT_RETRY_MAX_DELAY must be >= CHAT_RETRY_BASE_DELAY")
	}
	if c.Chatbot.DialTimeout <= 0 {
		return fmt.Errorf("CHAT_DIAL_TIMEOUT must be > 0")
	}
	if c.Chatbot.SendQueueSize <= 0 {
		return fmt.Errorf("CHAT_SEND_QUEUE_SIZE must be > 0")
	}
	if c.Transcript.Enabled && c.Transcript.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.Transcript.QueueSize <= 0 {
		return fmt.Errorf("TRANSCRIPT_QUEUE_SIZE must be > 0")
	}
	if c.DevServer.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DevServer.RateLimit <= 0 || c.DevServer.RateBurst <= 0 {
		return fmt.Errorf("DEV_RATE_LIMIT and DEV_RATE_BURST must be > 0")
	}
	return nil
}

// ChatbotURL resolves the endpoint for this deployment: the explicit
// override, else the production endpoint on a production host, else the
// local development endpoint.
func (c *Config) ChatbotURL() string {
	if c.Chatbot.URL != "" {
		return c.Chatbot.URL
	}
	if c.IsProduction() {
		return c.Chatbot.ProductionURL
	}
	return c.Chatbot.DevelopmentURL
}

// IsProduction returns true if the public host is the hosted deployment.
func (c *Config) IsProduction() bool {
	return strings.Contains(strings.ToLower(c.Chatbot.PublicHost), productionHostMarker)
}

// IsDevelopment returns true if the dev server should accept any origin.
func (c *Config) IsDevelopment() bool {
	return c.DevServer.AllowedOrigin == "" ||
		strings.Contains(c.DevServer.AllowedOrigin, "localhost") ||
		strings.Contains(c.DevServer.AllowedOrigin, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

// getEnvDuration accepts Go duration strings ("1500ms") or bare milliseconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}
