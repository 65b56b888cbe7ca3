// Package config builds the immutable run configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Inputs and outputs
	FeedsPath      string
	LabelRulesPath string // optional YAML rules replacing the built-in source labels
	ArchivePath    string

	// Filtering
	LookbackWindow    time.Duration
	MaxEntriesPerFeed int
	ActiveHoursStart  int // inclusive, shifted local hour
	ActiveHoursEnd    int // exclusive
	UTCOffsetHours    int

	// Archive
	MaxArchiveItems int

	// Translation
	TranslateTarget   string
	GeminiAPIKey      string
	GeminiModel       string
	MaxGeminiRequests int // per run, 0 = unlimited

	// Notification channels; an empty credential disables the channel
	FeishuWebhook  string
	FeishuKeyword  string
	TelegramToken  string
	TelegramChatID string
	NotifyPacing   time.Duration

	// Transport bounds
	FetchTimeout       time.Duration
	TranslateTimeout   time.Duration
	NotifyTimeout      time.Duration
	FetchRetryAttempts int
	FetchConcurrency   int
	UserAgent          string

	// Opt-in cross-run dedup
	SentLedgerPath     string
	SentLedgerTTLHours int

	Debug bool
}

func Load() (Config, error) {
	cfg := Config{
		FeedsPath:          getEnvOrDefault("FEEDS_PATH", "configs/feeds.txt"),
		LabelRulesPath:     os.Getenv("LABEL_RULES_PATH"),
		ArchivePath:        getEnvOrDefault("ARCHIVE_PATH", "index.html"),
		LookbackWindow:     time.Duration(getEnvIntOrDefault("LOOKBACK_WINDOW_MINUTES", 16)) * time.Minute,
		MaxEntriesPerFeed:  getEnvIntOrDefault("MAX_ENTRIES_PER_FEED", 5),
		ActiveHoursStart:   getEnvIntOrDefault("ACTIVE_HOURS_START", 8),
		ActiveHoursEnd:     getEnvIntOrDefault("ACTIVE_HOURS_END", 22),
		UTCOffsetHours:     getEnvIntOrDefault("UTC_OFFSET_HOURS", 8),
		MaxArchiveItems:    getEnvIntOrDefault("MAX_ARCHIVE_ITEMS", 800),
		TranslateTarget:    getEnvOrDefault("TRANSLATE_TARGET", "zh-CN"),
		GeminiAPIKey:       os.Getenv("GEMINI_API_KEY"),
		GeminiModel:        getEnvOrDefault("GEMINI_MODEL", "gemini-1.5-flash"),
		MaxGeminiRequests:  getEnvIntOrDefault("MAX_GEMINI_REQUESTS", 20),
		FeishuWebhook:      os.Getenv("FEISHU_WEBHOOK"),
		FeishuKeyword:      getEnvOrDefault("FEISHU_KEYWORD", "监控"),
		TelegramToken:      os.Getenv("TELEGRAM_TOKEN"),
		TelegramChatID:     os.Getenv("TELEGRAM_CHAT_ID"),
		NotifyPacing:       time.Duration(getEnvIntOrDefault("NOTIFY_PACING_MS", 1000)) * time.Millisecond,
		FetchTimeout:       time.Duration(getEnvIntOrDefault("FETCH_TIMEOUT_SECONDS", 20)) * time.Second,
		TranslateTimeout:   time.Duration(getEnvIntOrDefault("TRANSLATE_TIMEOUT_SECONDS", 15)) * time.Second,
		NotifyTimeout:      time.Duration(getEnvIntOrDefault("NOTIFY_TIMEOUT_SECONDS", 15)) * time.Second,
		FetchRetryAttempts: getEnvIntOrDefault("FETCH_RETRY_ATTEMPTS", 2),
		FetchConcurrency:   getEnvIntOrDefault("FETCH_CONCURRENCY", 1),
		UserAgent:          getEnvOrDefault("USER_AGENT", "Mozilla/5.0"),
		SentLedgerPath:     os.Getenv("SENT_LEDGER_PATH"),
		SentLedgerTTLHours: getEnvIntOrDefault("SENT_LEDGER_TTL_HOURS", 48),
		Debug:              os.Getenv("DEBUG") == "true",
	}

	return cfg, cfg.Validate()
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// Validate rejects values no component can run with. Missing credentials are
// not errors: they switch the dependent stage off.
func (c Config) Validate() error {
	if c.LookbackWindow <= 0 {
		return fmt.Errorf("LOOKBACK_WINDOW_MINUTES must be positive")
	}
	if c.MaxArchiveItems <= 0 {
		return fmt.Errorf("MAX_ARCHIVE_ITEMS must be positive")
	}
	if c.MaxEntriesPerFeed <= 0 {
		return fmt.Errorf("MAX_ENTRIES_PER_FEED must be positive")
	}
	if c.ActiveHoursStart < 0 || c.ActiveHoursEnd > 24 || c.ActiveHoursStart >= c.ActiveHoursEnd {
		return fmt.Errorf("active hours must satisfy 0 <= ACTIVE_HOURS_START < ACTIVE_HOURS_END <= 24, got %d-%d",
			c.ActiveHoursStart, c.ActiveHoursEnd)
	}
	if c.UTCOffsetHours < -12 || c.UTCOffsetHours > 14 {
		return fmt.Errorf("UTC_OFFSET_HOURS out of range: %d", c.UTCOffsetHours)
	}
	if c.ArchivePath == "" {
		return fmt.Errorf("ARCHIVE_PATH is required")
	}
	if c.FetchRetryAttempts < 1 {
		return fmt.Errorf("FETCH_RETRY_ATTEMPTS must be at least 1")
	}
	if c.FetchConcurrency < 1 {
		return fmt.Errorf("FETCH_CONCURRENCY must be at least 1")
	}
	if c.NotifyPacing < 0 {
		return fmt.Errorf("NOTIFY_PACING_MS must not be negative")
	}
	if (c.TelegramToken == "") != (c.TelegramChatID == "") {
		return fmt.Errorf("TELEGRAM_TOKEN and TELEGRAM_CHAT_ID must be set together")
	}
	return nil
}

// Location is the fixed zone used by the active-hours gate and display times.
func (c Config) Location() *time.Location {
	return time.FixedZone(fmt.Sprintf("UTC%+d", c.UTCOffsetHours), c.UTCOffsetHours*3600)
}

// NotifyEnabled reports whether at least one chat channel has credentials.
func (c Config) NotifyEnabled() bool {
	return c.FeishuWebhook != "" || c.TelegramToken != ""
}
