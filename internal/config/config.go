package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone  = "UTC"
	configPathEnv    = "NEWSCOLLECTOR_CONFIG"
	databaseDriver   = "DATABASE_DRIVER"
	databaseDSNEnv   = "DATABASE_DSN"
	logLevelEnv      = "LOG_LEVEL"
	logFormatEnv     = "LOG_FORMAT"
	schedulerCronEnv = "SCHEDULER_CRON"
	telegramTokenEnv = "TELEGRAM_BOT_TOKEN"
	telegramChatEnv  = "TELEGRAM_CHAT_ID"
)

// Source kinds understood by the scanner registry.
const (
	KindRSS   = "rss"
	KindCrawl = "crawl"
	KindAPI   = "api"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config holds high-level settings required across the application.
type Config struct {
	DataDir       string             `yaml:"dataDir"`
	Database      DatabaseConfig     `yaml:"database"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Collector     CollectorConfig    `yaml:"collector"`
	Dedup         DedupConfig        `yaml:"dedup"`
	Relevance     RelevanceConfig    `yaml:"relevance"`
	Logging       LoggingConfig      `yaml:"logging"`
	Notifications NotificationConfig `yaml:"notifications"`
	Sources       []SourceConfig     `yaml:"sources"`
}

// DatabaseConfig selects the storage backend: memory, sqlite or postgres.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// SchedulerConfig defines when the collection task should run.
type SchedulerConfig struct {
	CronExpression string         `yaml:"cronExpression"`
	Timezone       string         `yaml:"timezone"`
	RunOnStart     bool           `yaml:"runOnStart"`
	location       *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// CollectorConfig tunes fetching.
type CollectorConfig struct {
	TaskName          string        `yaml:"taskName"`
	UserAgent         string        `yaml:"userAgent"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requestsPerSecond"`
	MaxConcurrency    int           `yaml:"maxConcurrency"`
}

// DedupConfig holds the title similarity threshold used at ingestion.
type DedupConfig struct {
	Threshold float64 `yaml:"threshold"`
}

// RelevanceConfig lists keywords for relevance scoring.
type RelevanceConfig struct {
	MustInclude      []string `yaml:"mustInclude"`
	AdditionalWeight []string `yaml:"additionalWeight"`
	Exclude          []string `yaml:"exclude"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// Enabled reports whether both credentials are present.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// SourceConfig describes one feed or crawl target.
// Enabled is a pointer so an omitted key in YAML means enabled.
type SourceConfig struct {
	Name     string            `yaml:"name"`
	URL      string            `yaml:"url"`
	Kind     string            `yaml:"kind"`
	Category string            `yaml:"category"`
	Enabled  *bool             `yaml:"enabled"`
	Options  map[string]string `yaml:"options"`
}

// IsEnabled treats a missing flag as enabled.
func (s SourceConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// EnabledSources filters out disabled sources.
func (c Config) EnabledSources() []SourceConfig {
	out := make([]SourceConfig, 0, len(c.Sources))
	for _, s := range c.Sources {
		if s.IsEnabled() {
			out = append(out, s)
		}
	}
	return out
}

// LockPath is the daemon lock file inside the data directory.
func (c Config) LockPath() string {
	return filepath.Join(c.DataDir, "newscollector.lock")
}

// Load reads .env, YAML configuration (if present) and applies environment overrides.
func Load() Config {
	return LoadFile(os.Getenv(configPathEnv))
}

// LoadFile is Load with an explicit config path; an empty path uses defaults.
func LoadFile(path string) Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("config: cannot read .env: %v", err)
	}

	cfg := defaultConfig()

	if path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	if cfg.Database.Driver == "sqlite" && cfg.Database.DSN == "" {
		cfg.Database.DSN = filepath.Join(cfg.DataDir, "newscollector.db")
	}

	return cfg
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case "memory", "sqlite":
	case "postgres":
		if c.Database.DSN == "" {
			errs = append(errs, fmt.Errorf("%w: database.dsn is required for postgres", ErrInvalid))
		}
	default:
		errs = append(errs, fmt.Errorf("%w: unsupported database.driver %q", ErrInvalid, c.Database.Driver))
	}

	if c.Dedup.Threshold < 0 || c.Dedup.Threshold > 1 {
		errs = append(errs, fmt.Errorf("%w: dedup.threshold %.2f outside [0,1]", ErrInvalid, c.Dedup.Threshold))
	}
	if c.Collector.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("%w: collector.timeout must be positive", ErrInvalid))
	}

	seen := map[string]struct{}{}
	for i, s := range c.Sources {
		label := s.Name
		if label == "" {
			label = "#" + strconv.Itoa(i)
		}
		if strings.TrimSpace(s.URL) == "" {
			errs = append(errs, fmt.Errorf("%w: source %s has no url", ErrInvalid, label))
		}
		switch s.Kind {
		case KindRSS, KindCrawl, KindAPI:
		default:
			errs = append(errs, fmt.Errorf("%w: source %s has unknown kind %q", ErrInvalid, label, s.Kind))
		}
		if _, dup := seen[s.URL]; dup && s.URL != "" {
			errs = append(errs, fmt.Errorf("%w: source url %s listed twice", ErrInvalid, s.URL))
		}
		seen[s.URL] = struct{}{}
	}

	return errors.Join(errs...)
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDriver); v != "" {
		c.Database.Driver = v
	}

	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(logFormatEnv); v != "" {
		c.Logging.Format = v
	}

	if v := os.Getenv(schedulerCronEnv); v != "" {
		c.Scheduler.CronExpression = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.DataDir != "" {
		base.DataDir = override.DataDir
	}

	if override.Database.Driver != "" {
		base.Database.Driver = override.Database.Driver
		base.Database.DSN = override.Database.DSN
	} else if override.Database.DSN != "" {
		base.Database.DSN = override.Database.DSN
	}

	if override.Scheduler.CronExpression != "" {
		base.Scheduler.CronExpression = override.Scheduler.CronExpression
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}
	if override.Scheduler.RunOnStart {
		base.Scheduler.RunOnStart = true
	}

	if override.Collector.TaskName != "" {
		base.Collector.TaskName = override.Collector.TaskName
	}
	if override.Collector.UserAgent != "" {
		base.Collector.UserAgent = override.Collector.UserAgent
	}
	if override.Collector.Timeout > 0 {
		base.Collector.Timeout = override.Collector.Timeout
	}
	if override.Collector.RequestsPerSecond > 0 {
		base.Collector.RequestsPerSecond = override.Collector.RequestsPerSecond
	}
	if override.Collector.MaxConcurrency > 0 {
		base.Collector.MaxConcurrency = override.Collector.MaxConcurrency
	}

	if override.Dedup.Threshold > 0 {
		base.Dedup.Threshold = override.Dedup.Threshold
	}

	if len(override.Relevance.MustInclude) > 0 {
		base.Relevance.MustInclude = override.Relevance.MustInclude
	}
	if len(override.Relevance.AdditionalWeight) > 0 {
		base.Relevance.AdditionalWeight = override.Relevance.AdditionalWeight
	}
	if len(override.Relevance.Exclude) > 0 {
		base.Relevance.Exclude = override.Relevance.Exclude
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}

	if len(override.Sources) > 0 {
		base.Sources = override.Sources
	}

	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		DataDir:   "data",
		Database:  DatabaseConfig{Driver: "sqlite"},
		Scheduler: SchedulerConfig{CronExpression: "0 * * * *", Timezone: defaultTimezone, location: tz},
		Collector: CollectorConfig{
			TaskName:          "rss_collection",
			UserAgent:         "NewsCollector/1.0 (+https://github.com/newscollector)",
			Timeout:           30 * time.Second,
			RequestsPerSecond: 2,
			MaxConcurrency:    4,
		},
		Dedup: DedupConfig{Threshold: 0.8},
		Relevance: RelevanceConfig{
			MustInclude: []string{
				"AI", "artificial intelligence", "machine learning", "LLM", "GPT",
				"large language model", "deep learning", "인공지능", "머신러닝", "딥러닝",
			},
			AdditionalWeight: []string{
				"OpenAI", "Anthropic", "Claude", "Gemini", "Gemma", "Mistral", "Llama",
				"multimodal", "reinforcement learning", "diffusion", "transformer", "fine-tuning",
			},
			Exclude: []string{"sponsored", "advertisement", "광고"},
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Sources: []SourceConfig{
			{Name: "OpenAI Blog", URL: "https://openai.com/blog/rss.xml", Kind: KindRSS, Category: "research"},
			{Name: "Google AI Blog", URL: "http://googleaiblog.blogspot.com/atom.xml", Kind: KindRSS, Category: "research"},
			{Name: "Microsoft Research", URL: "https://www.microsoft.com/en-us/research/feed/", Kind: KindRSS, Category: "research"},
			{Name: "MIT Technology Review AI", URL: "https://www.technologyreview.com/topic/artificial-intelligence/feed", Kind: KindRSS, Category: "media"},
			{Name: "TechCrunch AI", URL: "https://techcrunch.com/category/artificial-intelligence/feed/", Kind: KindRSS, Category: "tech"},
			{Name: "The Verge AI", URL: "https://www.theverge.com/ai-artificial-intelligence/rss/index.xml", Kind: KindRSS, Category: "tech"},
			{Name: "arXiv CS.AI", URL: "http://export.arxiv.org/rss/cs.AI", Kind: KindRSS, Category: "academic"},
			{Name: "AI Times", URL: "https://www.aitimes.com/rss/allArticle.xml", Kind: KindRSS, Category: "korea"},
			{
				Name:     "Anthropic Research",
				URL:      "https://www.anthropic.com/research",
				Kind:     KindCrawl,
				Category: "research",
				Enabled:  boolPtr(false),
				Options: map[string]string{
					"item_selector":  "article",
					"title_selector": "h3",
					"link_selector":  "a",
				},
			},
		},
	}
}

func boolPtr(v bool) *bool {
	return &v
}
