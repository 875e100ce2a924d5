package config

import (
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{Token: "123:abc"},
		Channel:  ChannelConfig{ID: -1001234},
	}
}

func TestNormalizeDefaults(t *testing.T) {
	cfg := validConfig()
	if err := Normalize(cfg); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if cfg.Telegram.RunMode != RunModeLongpoll {
		t.Errorf("run mode = %q, want longpoll", cfg.Telegram.RunMode)
	}
	if cfg.Session.Backend != SessionBackendMemory {
		t.Errorf("session backend = %q, want memory", cfg.Session.Backend)
	}
	if cfg.Session.TTL != 30*time.Minute {
		t.Errorf("session ttl = %v, want 30m", cfg.Session.TTL)
	}
	if cfg.Session.SweepInterval != time.Minute {
		t.Errorf("sweep interval = %v, want 1m", cfg.Session.SweepInterval)
	}
}

func TestNormalizeRequiresTokenAndChannel(t *testing.T) {
	cfg := validConfig()
	cfg.Telegram.Token = ""
	if err := Normalize(cfg); err == nil {
		t.Error("expected error for missing token")
	}

	cfg = validConfig()
	cfg.Channel.ID = 0
	if err := Normalize(cfg); err == nil {
		t.Error("expected error for missing channel id")
	}
}

func TestNormalizeShortenerModes(t *testing.T) {
	cfg := validConfig()
	cfg.Shortener = ShortenerConfig{BaseURL: "https://s.ly/api"}
	if err := Normalize(cfg); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if cfg.Shortener.Mode != ShortenerModeQuery {
		t.Errorf("mode = %q, want query default", cfg.Shortener.Mode)
	}
	if cfg.Shortener.TimeoutSeconds != 10 {
		t.Errorf("timeout = %d, want 10", cfg.Shortener.TimeoutSeconds)
	}

	cfg.Shortener.Mode = "soap"
	if err := Normalize(cfg); err == nil {
		t.Error("expected error for unknown shortener mode")
	}
}

func TestNormalizeRedisBackendNeedsAddr(t *testing.T) {
	cfg := validConfig()
	cfg.Session.Backend = "redis"
	if err := Normalize(cfg); err == nil {
		t.Error("expected error for redis backend without addr")
	}

	cfg.Redis.Addr = "localhost:6379"
	if err := Normalize(cfg); err != nil {
		t.Errorf("Normalize: %v", err)
	}
}

func TestNormalizeStripsOpenerBotAt(t *testing.T) {
	cfg := validConfig()
	cfg.Channel.FileOpenerBot = "@openerbot"
	if err := Normalize(cfg); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if cfg.Channel.FileOpenerBot != "openerbot" {
		t.Errorf("opener bot = %q, want openerbot", cfg.Channel.FileOpenerBot)
	}
}

func TestNormalizeWebhookValidation(t *testing.T) {
	cfg := validConfig()
	cfg.Telegram.RunMode = "webhook"
	if err := Normalize(cfg); err == nil {
		t.Error("expected error for webhook mode without url")
	}

	cfg.Webhook = WebhookConfig{URL: "https://bot.example.com", Listen: "0.0.0.0", Port: 8443}
	if err := Normalize(cfg); err != nil {
		t.Errorf("Normalize: %v", err)
	}
}

func TestNormalizeDatabaseDefaults(t *testing.T) {
	cfg := validConfig()
	if err := Normalize(cfg); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if cfg.Database.Enabled() {
		t.Error("database should be disabled without a host")
	}
	if cfg.Database.Port != "" || cfg.Database.SSLMode != "" {
		t.Errorf("disabled database must not gain defaults: %+v", cfg.Database)
	}

	cfg = validConfig()
	cfg.Database = DatabaseConfig{Host: "db.internal", User: "bot", Name: "filegate"}
	if err := Normalize(cfg); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if !cfg.Database.Enabled() {
		t.Error("database with a host should be enabled")
	}
	if cfg.Database.Port != "5432" {
		t.Errorf("port = %q, want 5432 default", cfg.Database.Port)
	}
	if cfg.Database.SSLMode != "disable" {
		t.Errorf("sslmode = %q, want disable default", cfg.Database.SSLMode)
	}
}

func TestNormalizeRateLimitExclusions(t *testing.T) {
	cfg := validConfig()
	cfg.RateLimit.ExcludeUpdates = []string{"Callback", " document "}
	if err := Normalize(cfg); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if cfg.RateLimit.ExcludeUpdates[0] != "callback" || cfg.RateLimit.ExcludeUpdates[1] != "document" {
		t.Errorf("exclusions not normalized: %v", cfg.RateLimit.ExcludeUpdates)
	}

	cfg.RateLimit.ExcludeUpdates = []string{"sticker"}
	if err := Normalize(cfg); err == nil {
		t.Error("expected error for unknown exclusion")
	}
}
