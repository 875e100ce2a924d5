package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds Telegram bot related settings.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	AdminID int64  `yaml:"admin_id" envconfig:"TELEGRAM_ADMIN_ID"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir"`
	BotFile     string `yaml:"bot_file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

const (
	// UpdateCallback identifies callback updates for rate limit exclusions.
	UpdateCallback = "callback"
	// UpdateMessage identifies text message updates for rate limit exclusions.
	UpdateMessage = "message"
	// UpdateDocument identifies file-bearing updates for rate limit exclusions.
	UpdateDocument = "document"
)

// RateLimitConfig holds settings for rate limiting.
// ExcludeUpdates accepts update types to bypass limiting:
// - "callback": Telegram callback button presses
// - "message": standard text messages
// - "document": file-bearing messages
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

const (
	// ShortenerModeQuery sends GET <base>?api=<key>&url=<encoded>.
	ShortenerModeQuery = "query"
	// ShortenerModeBearer sends POST <base> with a JSON body and bearer auth.
	ShortenerModeBearer = "bearer"
)

// ShortenerConfig describes the external URL shortening endpoint.
type ShortenerConfig struct {
	BaseURL        string `yaml:"base_url" envconfig:"SHORTENER_BASE_URL"`
	APIKey         string `yaml:"api_key" envconfig:"SHORTENER_API_KEY"`
	Mode           string `yaml:"mode" envconfig:"SHORTENER_MODE"`
	TimeoutSeconds int    `yaml:"timeout_seconds" envconfig:"SHORTENER_TIMEOUT_SECONDS"`
}

// Enabled reports whether shortening is configured at all.
func (s ShortenerConfig) Enabled() bool {
	return strings.TrimSpace(s.BaseURL) != ""
}

// DriveConfig describes the optional secondary storage upload endpoint.
type DriveConfig struct {
	UploadURL      string `yaml:"upload_url" envconfig:"DRIVE_UPLOAD_URL"`
	APIKey         string `yaml:"api_key" envconfig:"DRIVE_API_KEY"`
	FolderID       string `yaml:"folder_id" envconfig:"DRIVE_FOLDER_ID"`
	TimeoutSeconds int    `yaml:"timeout_seconds" envconfig:"DRIVE_TIMEOUT_SECONDS"`
}

// Enabled reports whether a secondary store is configured.
func (d DriveConfig) Enabled() bool {
	return strings.TrimSpace(d.UploadURL) != ""
}

// ChannelConfig describes the broadcast destination for posted files.
type ChannelConfig struct {
	ID int64 `yaml:"id" envconfig:"CHANNEL_ID"`
	// FileOpenerBot, when set, wraps posted links into a
	// t.me/<bot>?start=<base64(link)> deep link.
	FileOpenerBot string `yaml:"file_opener_bot" envconfig:"FILE_OPENER_BOT_USERNAME"`
}

const (
	// SessionBackendMemory keeps sessions in process memory.
	SessionBackendMemory = "memory"
	// SessionBackendRedis keeps sessions in redis with native TTLs.
	SessionBackendRedis = "redis"
)

// SessionConfig controls the conversation session store.
type SessionConfig struct {
	Backend string        `yaml:"backend" envconfig:"SESSION_BACKEND"`
	TTL     time.Duration `yaml:"ttl" envconfig:"SESSION_TTL"`
	// SweepInterval controls how often the memory store evicts expired
	// sessions; ignored by the redis backend.
	SweepInterval time.Duration `yaml:"sweep_interval" envconfig:"SESSION_SWEEP_INTERVAL"`
}

// DatabaseConfig holds the history database settings. It deliberately
// mirrors core/database.Config instead of embedding it; this package stays
// import-free so every core package can depend on it.
type DatabaseConfig struct {
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
}

// Enabled reports whether a history database is configured at all.
func (d DatabaseConfig) Enabled() bool {
	return strings.TrimSpace(d.Host) != ""
}

// RedisConfig holds redis connection settings for the session store.
type RedisConfig struct {
	Addr     string `yaml:"addr" envconfig:"REDIS_ADDR"`
	Password string `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" envconfig:"REDIS_DB"`
}

// Config aggregates the full bot configuration.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Shortener ShortenerConfig `yaml:"shortener"`
	Drive     DriveConfig     `yaml:"drive"`
	Channel   ChannelConfig   `yaml:"channel"`
	Session   SessionConfig   `yaml:"session"`
}

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize performs basic validation of required configuration fields and adjusts defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required")
	}
	if cfg.Channel.ID == 0 {
		return fmt.Errorf("channel.id is required")
	}
	cfg.Channel.FileOpenerBot = strings.TrimPrefix(strings.TrimSpace(cfg.Channel.FileOpenerBot), "@")

	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if rm == "" {
		rm = RunModeLongpoll
	}
	if rm == "polling" { // accept alias
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if strings.TrimSpace(cfg.Webhook.URL) == "" {
			return fmt.Errorf("webhook.url is required when telegram.run_mode is 'webhook'")
		}
		if strings.TrimSpace(cfg.Webhook.Listen) == "" {
			return fmt.Errorf("webhook.listen is required when telegram.run_mode is 'webhook'")
		}
		if cfg.Webhook.Port <= 0 {
			return fmt.Errorf("webhook.port must be > 0 when telegram.run_mode is 'webhook'")
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = rm

	if cfg.Shortener.Enabled() {
		if _, err := url.ParseRequestURI(cfg.Shortener.BaseURL); err != nil {
			return fmt.Errorf("invalid shortener.base_url: %w", err)
		}
		mode := strings.ToLower(strings.TrimSpace(cfg.Shortener.Mode))
		if mode == "" {
			mode = ShortenerModeQuery
		}
		switch mode {
		case ShortenerModeQuery, ShortenerModeBearer:
		default:
			return fmt.Errorf("invalid shortener.mode %q; allowed: query, bearer", cfg.Shortener.Mode)
		}
		cfg.Shortener.Mode = mode
		if cfg.Shortener.TimeoutSeconds <= 0 {
			cfg.Shortener.TimeoutSeconds = 10
		}
	}

	if cfg.Drive.Enabled() {
		if _, err := url.ParseRequestURI(cfg.Drive.UploadURL); err != nil {
			return fmt.Errorf("invalid drive.upload_url: %w", err)
		}
		if cfg.Drive.TimeoutSeconds <= 0 {
			cfg.Drive.TimeoutSeconds = 60
		}
	}

	if cfg.Database.Enabled() {
		if strings.TrimSpace(cfg.Database.Port) == "" {
			cfg.Database.Port = "5432"
		}
		if strings.TrimSpace(cfg.Database.SSLMode) == "" {
			cfg.Database.SSLMode = "disable"
		}
	}

	backend := strings.ToLower(strings.TrimSpace(cfg.Session.Backend))
	if backend == "" {
		backend = SessionBackendMemory
	}
	switch backend {
	case SessionBackendMemory:
	case SessionBackendRedis:
		if strings.TrimSpace(cfg.Redis.Addr) == "" {
			return fmt.Errorf("redis.addr is required when session.backend is 'redis'")
		}
	default:
		return fmt.Errorf("invalid session.backend %q; allowed: memory, redis", cfg.Session.Backend)
	}
	cfg.Session.Backend = backend
	if cfg.Session.TTL <= 0 {
		cfg.Session.TTL = 30 * time.Minute
	}
	if cfg.Session.SweepInterval <= 0 {
		cfg.Session.SweepInterval = time.Minute
	}

	allowed := map[string]struct{}{
		UpdateCallback: {},
		UpdateMessage:  {},
		UpdateDocument: {},
	}
	for i, v := range cfg.RateLimit.ExcludeUpdates {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if _, ok := allowed[key]; !ok {
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: callback, message, document", v)
		}
		cfg.RateLimit.ExcludeUpdates[i] = key
	}
	return nil
}
