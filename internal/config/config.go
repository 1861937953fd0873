// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Extractor    ServiceConfig      `mapstructure:"extractor"`
	Verifier     ServiceConfig      `mapstructure:"verifier"`
	LLM          LLMConfig          `mapstructure:"llm"`
	Search       SearchConfig       `mapstructure:"search"`
	Fetcher      FetcherConfig      `mapstructure:"fetcher"`
	Headless     HeadlessConfig     `mapstructure:"headless"`
	DB           DBConfig           `mapstructure:"db"`
	Archive      ArchiveConfig      `mapstructure:"archive"`
	PubSub       PubSubConfig       `mapstructure:"pubsub"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// OrchestratorConfig governs the cycle state machine.
type OrchestratorConfig struct {
	BaseURL             string  `mapstructure:"base_url"`
	ContinuationSecret  string  `mapstructure:"continuation_secret"`
	MaxCycles           int     `mapstructure:"max_cycles"`
	RetryDelaySeconds   int     `mapstructure:"retry_delay_seconds"`
	CooldownHours       int     `mapstructure:"cooldown_hours"`
	ChunkMaxChars       int     `mapstructure:"chunk_max_chars"`
	ExtractBatchSize    int     `mapstructure:"extract_batch_size"`
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
	Topic               string  `mapstructure:"topic"`
}

// ServiceConfig locates a downstream collaborator service.
type ServiceConfig struct {
	URL            string `mapstructure:"url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// Timeout converts the configured per-call budget into a duration.
func (c ServiceConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// LLMConfig holds generation credentials. APIKeys is comma-separated in the
// environment; each key is tried with the primary model, then the secondary.
type LLMConfig struct {
	APIKeys        string `mapstructure:"api_keys"`
	PrimaryModel   string `mapstructure:"primary_model"`
	SecondaryModel string `mapstructure:"secondary_model"`
}

// Keys returns the parsed credential list.
func (c LLMConfig) Keys() []string {
	return splitList(c.APIKeys)
}

// SearchConfig holds web-search credentials and locale.
type SearchConfig struct {
	Endpoint       string `mapstructure:"endpoint"`
	APIKeys        string `mapstructure:"api_keys"`
	Locale         string `mapstructure:"locale"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// Keys returns the parsed credential list.
func (c SearchConfig) Keys() []string {
	return splitList(c.APIKeys)
}

// FetcherConfig controls the source-content fetcher.
type FetcherConfig struct {
	UserAgent      string `mapstructure:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	CacheSize      int    `mapstructure:"cache_size"`
}

// HeadlessConfig controls browser escalation in the verifier.
type HeadlessConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	MaxParallel       int  `mapstructure:"max_parallel"`
	NavTimeoutSeconds int  `mapstructure:"nav_timeout_seconds"`
}

// NavTimeout converts the configured navigation budget into a duration.
func (c HeadlessConfig) NavTimeout() time.Duration {
	return time.Duration(c.NavTimeoutSeconds) * time.Second
}

// DBConfig controls the Postgres state store. An empty DSN selects the
// in-memory store.
type DBConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

// ArchiveConfig sets where raw source snapshots are written.
type ArchiveConfig struct {
	Provider  string `mapstructure:"provider"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	LocalDir  string `mapstructure:"local_dir"`
	Prefix    string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DISCOVERY")
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
	v.SetDefault("server.port", 8080)
	v.SetDefault("orchestrator.max_cycles", 100)
	v.SetDefault("orchestrator.retry_delay_seconds", 30)
	v.SetDefault("orchestrator.cooldown_hours", 23)
	v.SetDefault("orchestrator.chunk_max_chars", 28000)
	v.SetDefault("orchestrator.extract_batch_size", 5)
	v.SetDefault("orchestrator.confidence_threshold", 0.8)
	v.SetDefault("extractor.timeout_seconds", 30)
	v.SetDefault("verifier.timeout_seconds", 45)
	v.SetDefault("llm.primary_model", "gemini-2.5-flash")
	v.SetDefault("llm.secondary_model", "gemini-2.5-flash-lite")
	v.SetDefault("search.endpoint", "https://www.googleapis.com/customsearch/v1")
	v.SetDefault("search.locale", "en")
	v.SetDefault("search.timeout_seconds", 15)
	v.SetDefault("fetcher.user_agent", "autonomous-discovery-bot/0.1")
	v.SetDefault("fetcher.timeout_seconds", 15)
	v.SetDefault("fetcher.cache_size", 64)
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 2)
	v.SetDefault("headless.nav_timeout_seconds", 45)
	v.SetDefault("db.table", "discovery_state")
	v.SetDefault("archive.provider", "memory")
	v.SetDefault("archive.prefix", "sources")
	v.SetDefault("logging.development", true)
}

// Validate enforces values every daemon needs.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Orchestrator.CooldownHours <= 0 {
		return fmt.Errorf("orchestrator.cooldown_hours must be > 0")
	}
	if c.Orchestrator.ChunkMaxChars <= 0 {
		return fmt.Errorf("orchestrator.chunk_max_chars must be > 0")
	}
	if c.Orchestrator.ExtractBatchSize <= 0 {
		return fmt.Errorf("orchestrator.extract_batch_size must be > 0")
	}
	return nil
}

// ValidateOrchestrator enforces the values the cycle orchestrator cannot run
// without. Missing credentials are a fatal startup condition.
func (c Config) ValidateOrchestrator() error {
	if c.Extractor.URL == "" {
		return fmt.Errorf("extractor.url is required")
	}
	if c.Verifier.URL == "" {
		return fmt.Errorf("verifier.url is required")
	}
	if c.Orchestrator.BaseURL == "" {
		return fmt.Errorf("orchestrator.base_url is required")
	}
	if c.Orchestrator.ContinuationSecret == "" {
		return fmt.Errorf("orchestrator.continuation_secret is required")
	}
	if len(c.LLM.Keys()) == 0 {
		return fmt.Errorf("llm.api_keys is required")
	}
	if len(c.Search.Keys()) == 0 {
		return fmt.Errorf("search.api_keys is required")
	}
	return nil
}

// ValidateExtractor enforces what the extractor service needs.
func (c Config) ValidateExtractor() error {
	if len(c.LLM.Keys()) == 0 {
		return fmt.Errorf("llm.api_keys is required")
	}
	return nil
}

// Cooldown converts the configured revisit window into a duration.
func (c Config) Cooldown() time.Duration {
	return time.Duration(c.Orchestrator.CooldownHours) * time.Hour
}

// RetryDelay is the pause before a failed cycle's continuation.
func (c Config) RetryDelay() time.Duration {
	return time.Duration(c.Orchestrator.RetryDelaySeconds) * time.Second
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
