// Package config loads and validates pipeline configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	Matching MatchingConfig `mapstructure:"matching"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Delivery DeliveryConfig `mapstructure:"delivery"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Server   ServerConfig   `mapstructure:"server"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Sources  []SourceConfig `mapstructure:"sources"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// CrawlerConfig governs the fetch pipeline and run lifecycle.
type CrawlerConfig struct {
	Concurrency         int    `mapstructure:"concurrency"`
	UserAgent           string `mapstructure:"user_agent"`
	PerHostDelayMs      int    `mapstructure:"per_host_delay_ms"`
	TimeoutSeconds      int    `mapstructure:"timeout_seconds"`
	MaxRetries          int    `mapstructure:"max_retries"`
	BackoffInitialMs    int    `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs        int    `mapstructure:"backoff_max_ms"`
	MissStreakThreshold int    `mapstructure:"miss_streak_threshold"`
	SoftDeadlineMinutes int    `mapstructure:"soft_deadline_minutes"`
	CheckpointEvery     int    `mapstructure:"checkpoint_every"`
}

// MatchingConfig holds scoring weights and ranking limits.
type MatchingConfig struct {
	SkillWeight    float64 `mapstructure:"skill_weight"`
	LocationWeight float64 `mapstructure:"location_weight"`
	SalaryWeight   float64 `mapstructure:"salary_weight"`
	RecencyWeight  float64 `mapstructure:"recency_weight"`
	MinScore       float64 `mapstructure:"min_score"`
	TopK           int     `mapstructure:"top_k"`
	HalfLifeDays   float64 `mapstructure:"half_life_days"`
}

// StorageConfig selects and configures the vacancy/run store provider.
type StorageConfig struct {
	Provider string         `mapstructure:"provider"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// PostgresConfig controls the pgx connection pool.
type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// DeliveryConfig selects the delivered-state store provider.
type DeliveryConfig struct {
	DeliveredProvider string      `mapstructure:"delivered_provider"`
	Redis             RedisConfig `mapstructure:"redis"`
}

// RedisConfig controls the redis client for delivered-identity sets.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ArchiveConfig selects raw payload archiving.
type ArchiveConfig struct {
	Provider string `mapstructure:"provider"`
	BaseDir  string `mapstructure:"base_dir"`
}

// ServerConfig controls the operational HTTP endpoint.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// ScheduleConfig holds the cron expression for scheduled pipeline cycles.
type ScheduleConfig struct {
	Cron string `mapstructure:"cron"`
}

// SourceConfig describes one external listing source.
type SourceConfig struct {
	Name          string         `mapstructure:"name"`
	Kind          string         `mapstructure:"kind"`
	ListingURLs   []string       `mapstructure:"listing_urls"`
	TitleKeywords []string       `mapstructure:"title_keywords"`
	Selectors     SelectorConfig `mapstructure:"selectors"`
}

// SelectorConfig holds goquery selectors for an HTML source layout.
type SelectorConfig struct {
	Item         string `mapstructure:"item"`
	Link         string `mapstructure:"link"`
	Title        string `mapstructure:"title"`
	Company      string `mapstructure:"company"`
	Location     string `mapstructure:"location"`
	Salary       string `mapstructure:"salary"`
	Skills       string `mapstructure:"skills"`
	Posted       string `mapstructure:"posted"`
	PostedLayout string `mapstructure:"posted_layout"`
	Description  string `mapstructure:"description"`
	ExternalID   string `mapstructure:"external_id"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("JOBSIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", true)
	v.SetDefault("crawler.concurrency", 4)
	v.SetDefault("crawler.user_agent", "jobsight-bot/0.1")
	v.SetDefault("crawler.per_host_delay_ms", 1000)
	v.SetDefault("crawler.timeout_seconds", 15)
	v.SetDefault("crawler.max_retries", 3)
	v.SetDefault("crawler.backoff_initial_ms", 250)
	v.SetDefault("crawler.backoff_max_ms", 5000)
	v.SetDefault("crawler.miss_streak_threshold", 3)
	v.SetDefault("crawler.soft_deadline_minutes", 30)
	v.SetDefault("crawler.checkpoint_every", 10)
	v.SetDefault("matching.skill_weight", 0.5)
	v.SetDefault("matching.location_weight", 0.2)
	v.SetDefault("matching.salary_weight", 0.1)
	v.SetDefault("matching.recency_weight", 0.2)
	v.SetDefault("matching.min_score", 0.15)
	v.SetDefault("matching.top_k", 20)
	v.SetDefault("matching.half_life_days", 14)
	v.SetDefault("storage.provider", "memory")
	v.SetDefault("delivery.delivered_provider", "memory")
	v.SetDefault("archive.provider", "noop")
	v.SetDefault("server.port", 8080)
	v.SetDefault("schedule.cron", "0 0 * * 1")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Crawler.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0")
	}
	if c.Crawler.TimeoutSeconds <= 0 {
		return fmt.Errorf("crawler.timeout_seconds must be > 0")
	}
	if c.Crawler.MissStreakThreshold <= 0 {
		return fmt.Errorf("crawler.miss_streak_threshold must be > 0")
	}
	if c.Matching.TopK <= 0 {
		return fmt.Errorf("matching.top_k must be > 0")
	}
	if c.Matching.MinScore < 0 {
		return fmt.Errorf("matching.min_score must be >= 0")
	}
	switch c.Storage.Provider {
	case "memory":
	case "postgres":
		if c.Storage.Postgres.DSN == "" {
			return fmt.Errorf("storage.postgres.dsn is required when storage.provider is postgres")
		}
	default:
		return fmt.Errorf("unknown storage provider: %s", c.Storage.Provider)
	}
	switch c.Delivery.DeliveredProvider {
	case "memory":
	case "redis":
		if c.Delivery.Redis.Addr == "" {
			return fmt.Errorf("delivery.redis.addr is required when delivered_provider is redis")
		}
	default:
		return fmt.Errorf("unknown delivered-state provider: %s", c.Delivery.DeliveredProvider)
	}
	switch c.Archive.Provider {
	case "noop":
	case "fs":
		if c.Archive.BaseDir == "" {
			return fmt.Errorf("archive.base_dir is required when archive.provider is fs")
		}
	default:
		return fmt.Errorf("unknown archive provider: %s", c.Archive.Provider)
	}
	for i, src := range c.Sources {
		if src.Name == "" {
			return fmt.Errorf("sources[%d].name is required", i)
		}
		if src.Kind != "html" && src.Kind != "json" {
			return fmt.Errorf("sources[%d].kind must be html or json", i)
		}
		if len(src.ListingURLs) == 0 {
			return fmt.Errorf("sources[%d].listing_urls is required", i)
		}
	}
	return nil
}

// Timeout returns the per-request fetch timeout as a duration.
func (c CrawlerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// PerHostDelay returns the minimum inter-request delay per host.
func (c CrawlerConfig) PerHostDelay() time.Duration {
	return time.Duration(c.PerHostDelayMs) * time.Millisecond
}

// SoftDeadline returns the run-level soft deadline.
func (c CrawlerConfig) SoftDeadline() time.Duration {
	return time.Duration(c.SoftDeadlineMinutes) * time.Minute
}
