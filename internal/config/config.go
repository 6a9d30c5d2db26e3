// Package config loads and validates process configuration from the
// environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config is the immutable application configuration snapshot. StockList is
// the one field that may be hot-reloaded while the process is running.
type Config struct {
	// Server
	Port int
	Host string

	// Storage
	DatabasePath string

	// Reports
	ReportsDir string

	// Logging
	LogLevel string
	DevMode  bool

	// Providers
	TushareToken             string
	TushareRateLimitPerMin   int
	TushareFetcherPriority   int
	BaostockFetcherPriority  int
	TencentFetcherPriority   int
	SinaFetcherPriority      int
	YfinanceFetcherPriority  int
	EastmoneyFetcherPriority int

	// Source tuning
	RealtimeSourcePriority []string // quote failover order by source key
	CircuitBreakerCooldown time.Duration
	RealtimeCacheTTL       time.Duration
	EnableRealtimeQuote    bool
	EnableChipDistribution bool
	FetchSleepMin          time.Duration
	FetchSleepMax          time.Duration

	// Network
	HTTPProxy  string
	HTTPSProxy string

	// Pipeline
	MaxWorkers      int
	FetchTimeout    time.Duration
	PipelineTimeout time.Duration

	// Scheduling
	ScheduleEnabled     bool
	ScheduleTime        string // "HH:MM" local time
	RunOnStartup        bool
	MarketReviewEnabled bool
	AnalysisDelay       time.Duration
	SingleStockNotify   bool
	SaveContextSnapshot bool

	// Notification channels
	FeishuWebhook    string
	FeishuMaxBytes   int
	WecomWebhook     string
	WecomMaxBytes    int
	WecomMsgType     string
	TelegramBotToken string
	TelegramChatID   string
	DiscordWebhook   string
	WebhookURL       string
	PushoverToken    string
	PushoverUser     string
	SMTPHost         string
	SMTPPort         int
	SMTPUser         string
	SMTPPassword     string
	EmailTo          string

	// Backup
	BackupBucket         string
	BackupEndpoint       string
	BackupAccessKey      string
	BackupSecretKey      string
	BackupRetentionDays  int

	// stock_list mutable state
	mu        sync.RWMutex
	stockList []string
}

// Load reads configuration from a .env file (if present) followed by the
// process environment, which always wins.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:         getEnvAsInt("PORT", 8080),
		Host:         getEnv("HOST", "0.0.0.0"),
		DatabasePath: getEnv("DATABASE_PATH", "./data/analysis.db"),
		ReportsDir:   getEnv("REPORTS_DIR", "./reports"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		DevMode:      getEnvAsBool("DEV_MODE", false),

		TushareToken:             getEnv("TUSHARE_TOKEN", ""),
		TushareRateLimitPerMin:   getEnvAsInt("TUSHARE_RATE_LIMIT_PER_MINUTE", 200),
		TushareFetcherPriority:   getEnvAsInt("TUSHARE_PRIORITY", 20),
		BaostockFetcherPriority:  getEnvAsInt("BAOSTOCK_PRIORITY", 40),
		TencentFetcherPriority:   getEnvAsInt("TENCENT_PRIORITY", 80),
		SinaFetcherPriority:      getEnvAsInt("SINA_PRIORITY", 60),
		YfinanceFetcherPriority:  getEnvAsInt("YFINANCE_PRIORITY", 30),
		EastmoneyFetcherPriority: getEnvAsInt("EASTMONEY_PRIORITY", 70),

		RealtimeSourcePriority: splitList(getEnv("REALTIME_SOURCE_PRIORITY", "")),
		CircuitBreakerCooldown: time.Duration(getEnvAsInt("CIRCUIT_BREAKER_COOLDOWN", 60)) * time.Second,
		RealtimeCacheTTL:       time.Duration(getEnvAsInt("REALTIME_CACHE_TTL", 600)) * time.Second,
		EnableRealtimeQuote:    getEnvAsBool("ENABLE_REALTIME_QUOTE", true),
		EnableChipDistribution: getEnvAsBool("ENABLE_CHIP_DISTRIBUTION", true),
		FetchSleepMin:          time.Duration(getEnvAsInt("FETCH_SLEEP_MIN_MS", 300)) * time.Millisecond,
		FetchSleepMax:          time.Duration(getEnvAsInt("FETCH_SLEEP_MAX_MS", 1200)) * time.Millisecond,

		HTTPProxy:  getEnv("HTTP_PROXY", ""),
		HTTPSProxy: getEnv("HTTPS_PROXY", ""),

		MaxWorkers:      getEnvAsInt("MAX_WORKERS", 3),
		FetchTimeout:    time.Duration(getEnvAsInt("FETCH_TIMEOUT_SECONDS", 15)) * time.Second,
		PipelineTimeout: time.Duration(getEnvAsInt("PIPELINE_TIMEOUT_SECONDS", 60)) * time.Second,

		ScheduleEnabled:     getEnvAsBool("SCHEDULE_ENABLED", false),
		ScheduleTime:        getEnv("SCHEDULE_TIME", "17:30"),
		RunOnStartup:        getEnvAsBool("SCHEDULE_RUN_ON_STARTUP", false),
		MarketReviewEnabled: getEnvAsBool("MARKET_REVIEW_ENABLED", true),
		AnalysisDelay:       time.Duration(getEnvAsInt("ANALYSIS_DELAY", 5)) * time.Second,
		SingleStockNotify:   getEnvAsBool("SINGLE_STOCK_NOTIFY", false),
		SaveContextSnapshot: getEnvAsBool("SAVE_CONTEXT_SNAPSHOT", false),

		FeishuWebhook:    getEnv("FEISHU_WEBHOOK_URL", ""),
		FeishuMaxBytes:   getEnvAsInt("FEISHU_MAX_BYTES", 20480),
		WecomWebhook:     getEnv("WECHAT_WEBHOOK_URL", ""),
		WecomMaxBytes:    getEnvAsInt("WECHAT_MAX_BYTES", 4096),
		WecomMsgType:     getEnv("WECHAT_MSG_TYPE", "markdown"),
		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		DiscordWebhook:   getEnv("DISCORD_WEBHOOK_URL", ""),
		WebhookURL:       getEnv("NOTIFY_WEBHOOK_URL", ""),
		PushoverToken:    getEnv("PUSHOVER_TOKEN", ""),
		PushoverUser:     getEnv("PUSHOVER_USER", ""),
		SMTPHost:         getEnv("SMTP_HOST", ""),
		SMTPPort:         getEnvAsInt("SMTP_PORT", 587),
		SMTPUser:         getEnv("SMTP_USER", ""),
		SMTPPassword:     getEnv("SMTP_PASSWORD", ""),
		EmailTo:          getEnv("EMAIL_TO", ""),

		BackupBucket:        getEnv("BACKUP_S3_BUCKET", ""),
		BackupEndpoint:      getEnv("BACKUP_S3_ENDPOINT", ""),
		BackupAccessKey:     getEnv("BACKUP_S3_ACCESS_KEY", ""),
		BackupSecretKey:     getEnv("BACKUP_S3_SECRET_KEY", ""),
		BackupRetentionDays: getEnvAsInt("BACKUP_RETENTION_DAYS", 14),

		stockList: splitList(getEnv("STOCK_LIST", "")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks required fields and internal consistency.
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if c.MaxWorkers <= 0 {
		return fmt.Errorf("MAX_WORKERS must be positive")
	}
	if c.TushareRateLimitPerMin <= 0 {
		return fmt.Errorf("TUSHARE_RATE_LIMIT_PER_MINUTE must be positive")
	}
	if c.FetchSleepMax < c.FetchSleepMin {
		return fmt.Errorf("FETCH_SLEEP_MAX_MS must be >= FETCH_SLEEP_MIN_MS")
	}
	if c.ScheduleEnabled {
		if _, err := time.Parse("15:04", strings.TrimSpace(c.ScheduleTime)); err != nil {
			return fmt.Errorf("SCHEDULE_TIME must be HH:MM: %w", err)
		}
	}
	return nil
}

// StockList returns a snapshot of the configured watchlist.
func (c *Config) StockList() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]string, len(c.stockList))
	copy(out, c.stockList)
	return out
}

// ReloadStockList re-reads STOCK_LIST and swaps it in atomically. This
// is the only field allowed to change after Load returns; every other
// field is fixed for the process lifetime. The .env file is re-parsed on
// every call and wins over the (startup-frozen) process environment, so
// an operator can edit the watchlist between scheduled runs without a
// restart.
func (c *Config) ReloadStockList() []string {
	raw := os.Getenv("STOCK_LIST")
	if fileVars, err := godotenv.Read(); err == nil {
		if v, ok := fileVars["STOCK_LIST"]; ok && v != "" {
			raw = v
		}
	}
	fresh := splitList(raw)

	c.mu.Lock()
	c.stockList = fresh
	c.mu.Unlock()

	return fresh
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
