package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("APP_ENV", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %q", cfg.Port)
	}
	if cfg.OpenAI.DefaultModel != "gpt-4o" {
		t.Errorf("expected default model gpt-4o, got %q", cfg.OpenAI.DefaultModel)
	}
	if cfg.Chat.Provider != "openai" {
		t.Errorf("expected openai provider, got %q", cfg.Chat.Provider)
	}
	if cfg.SessionTTL != time.Hour {
		t.Errorf("expected 1h session TTL, got %v", cfg.SessionTTL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("SESSION_TTL", "15m")
	t.Setenv("OPENAI_REQUEST_TIMEOUT", "5s")
	t.Setenv("COMPLETION_PROVIDER", "Scripted")
	t.Setenv("PRIMING_MODE", "legacy")
	t.Setenv("RATE_LIMIT_REQUESTS", "3")
	t.Setenv("CONVERSATION_LOG_ENABLED", "off")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "9999" {
		t.Errorf("expected port 9999, got %q", cfg.Port)
	}
	if cfg.SessionTTL != 15*time.Minute {
		t.Errorf("expected 15m, got %v", cfg.SessionTTL)
	}
	if cfg.OpenAI.RequestTimeout != 5*time.Second {
		t.Errorf("expected 5s, got %v", cfg.OpenAI.RequestTimeout)
	}
	if cfg.Chat.Provider != "scripted" {
		t.Errorf("expected scripted provider, got %q", cfg.Chat.Provider)
	}
	if cfg.RateLimit.RequestsPerWindow != 3 {
		t.Errorf("expected 3 requests per window, got %d", cfg.RateLimit.RequestsPerWindow)
	}
	if cfg.ConversationLog.Enabled {
		t.Error("expected conversation log to be disabled")
	}
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	t.Setenv("COMPLETION_PROVIDER", "anthropic")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "COMPLETION_PROVIDER") {
		t.Fatalf("expected COMPLETION_PROVIDER error, got %v", err)
	}
}

func TestLoadFallsBackOnMalformedValues(t *testing.T) {
	t.Setenv("SESSION_TTL", "soon")
	t.Setenv("RATE_LIMIT_REQUESTS", "many")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.SessionTTL != time.Hour {
		t.Errorf("expected fallback TTL, got %v", cfg.SessionTTL)
	}
	if cfg.RateLimit.RequestsPerWindow != 20 {
		t.Errorf("expected fallback rate limit, got %d", cfg.RateLimit.RequestsPerWindow)
	}
}

func TestIsDevelopmentAndOrigins(t *testing.T) {
	t.Setenv("APP_ENV", "")

	dev := &Config{FrontendURL: "http://localhost:5173"}
	if !dev.IsDevelopment() {
		t.Error("expected localhost to be development")
	}
	if got := dev.AllowedOrigins(); len(got) != 1 || got[0] != "*" {
		t.Errorf("expected wildcard origins in development, got %v", got)
	}

	prod := &Config{FrontendURL: "https://chat.example.com/"}
	if prod.IsDevelopment() {
		t.Error("expected production URL not to be development")
	}
	if got := prod.AllowedOrigins(); len(got) != 1 || got[0] != "https://chat.example.com" {
		t.Errorf("unexpected origins %v", got)
	}
}
