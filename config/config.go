package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the triage engine
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Source    SourceConfig    `mapstructure:"source"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Tickets   TicketsConfig   `mapstructure:"tickets"`
	Reports   ReportsConfig   `mapstructure:"reports"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Feedback  FeedbackConfig  `mapstructure:"feedback"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug          bool          `mapstructure:"debug"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
}

// LLMConfig contains judgment-oracle provider configurations
type LLMConfig struct {
	Providers map[string]LLMProvider `mapstructure:"providers"`
	Routing   LLMRoutingConfig       `mapstructure:"routing"`
}

// Primary returns the provider the oracle client should talk to. Providers
// are considered in name order so the pick is stable across runs; only
// openai-compatible entries (type "openai" or unset) qualify.
func (l LLMConfig) Primary() (LLMProvider, bool) {
	names := make([]string, 0, len(l.Providers))
	for name := range l.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		p := l.Providers[name]
		if p.Type == "openai" || p.Type == "" {
			return p, true
		}
	}
	return LLMProvider{}, false
}

// LLMProvider represents a single oracle provider configuration
type LLMProvider struct {
	Type       string              `mapstructure:"type"` // openai or any compatible endpoint
	APIKey     string              `mapstructure:"api_key"`
	BaseURL    string              `mapstructure:"base_url"`
	Models     map[string]LLMModel `mapstructure:"models"`
	MaxRetries int                 `mapstructure:"max_retries"`
	Backoff    time.Duration       `mapstructure:"backoff"`
	Timeout    time.Duration       `mapstructure:"timeout"`
}

// LLMModel represents a specific model configuration
type LLMModel struct {
	Name            string  `mapstructure:"name"`
	APIName         string  `mapstructure:"api_name"`
	MaxTokens       int     `mapstructure:"max_tokens"`
	Temperature     float64 `mapstructure:"temperature"`
	CostPer1K       float64 `mapstructure:"cost_per_1k_input"`
	CostPer1KOutput float64 `mapstructure:"cost_per_1k_output"`
}

// LLMRoutingConfig defines which model to use for each pipeline stage
type LLMRoutingConfig struct {
	Refine   string `mapstructure:"refine"`   // cluster refinement grouping
	Triage   string `mapstructure:"triage"`   // per-cluster classification
	Planning string `mapstructure:"planning"` // action planning
	Drafting string `mapstructure:"drafting"` // ticket/filter/report drafting
	Fallback string `mapstructure:"fallback"`
}

// TelemetryConfig contains usage tracking and metrics settings
type TelemetryConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	MetricsPort  int  `mapstructure:"metrics_port"`
	CostTracking bool `mapstructure:"cost_tracking"`
}

func (t TelemetryConfig) Validate() error {
	if t.Enabled && t.MetricsPort <= 0 {
		return fmt.Errorf("telemetry.metrics_port must be > 0 when telemetry is enabled")
	}
	return nil
}

// SourceConfig selects where raw log records come from
type SourceConfig struct {
	Kind  string            `mapstructure:"kind"` // file or index
	File  FileSourceConfig  `mapstructure:"file"`
	Index IndexSourceConfig `mapstructure:"index"`
}

// FileSourceConfig reads a search-export JSON document from disk
type FileSourceConfig struct {
	Path string `mapstructure:"path"`
}

// IndexSourceConfig queries a local bleve index of log records
type IndexSourceConfig struct {
	Path       string `mapstructure:"path"`
	Query      string `mapstructure:"query"`
	MaxResults int    `mapstructure:"max_results"`
}

func (s SourceConfig) Validate() error {
	switch s.Kind {
	case "file":
		if strings.TrimSpace(s.File.Path) == "" {
			return fmt.Errorf("source.file.path required when source.kind is file")
		}
	case "index":
		if strings.TrimSpace(s.Index.Path) == "" {
			return fmt.Errorf("source.index.path required when source.kind is index")
		}
	default:
		return fmt.Errorf("source.kind must be file or index, got %q", s.Kind)
	}
	return nil
}

// PipelineConfig contains stage tunables
type PipelineConfig struct {
	RefineBatchSize   int `mapstructure:"refine_batch_size"` // 0 = single batch
	TriageBatchSize   int `mapstructure:"triage_batch_size"`
	DraftBatchSize    int `mapstructure:"draft_batch_size"`
	FilterBatchSize   int `mapstructure:"filter_batch_size"`
	StackExcerptLines int `mapstructure:"stack_excerpt_lines"`
	TopN              int `mapstructure:"top_n"` // 0 = triage all clusters
}

// TicketsConfig configures the ticket sink
type TicketsConfig struct {
	Mode    string `mapstructure:"mode"` // mock or real
	BaseURL string `mapstructure:"base_url"`
	Project string `mapstructure:"project"`
	User    string `mapstructure:"user"`
	Token   string `mapstructure:"token"`
}

// ReportsConfig configures the report sink
type ReportsConfig struct {
	Mode     string `mapstructure:"mode"` // mock or real
	BaseURL  string `mapstructure:"base_url"`
	SpaceKey string `mapstructure:"space_key"`
	PageID   string `mapstructure:"page_id"`
	User     string `mapstructure:"user"`
	Token    string `mapstructure:"token"`
}

// StorageConfig contains artifact and run-history persistence settings
type StorageConfig struct {
	File     FileStorageConfig `mapstructure:"file"`
	Redis    RedisConfig       `mapstructure:"redis"`
	Postgres PostgresConfig    `mapstructure:"postgres"`
}

// FileStorageConfig keeps stage artifacts as JSON documents under a data dir
type FileStorageConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

// RedisConfig contains Redis connection settings for the artifact store
type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (r RedisConfig) Validate() error {
	if !r.Enabled {
		return nil
	}
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("storage.redis.host required when redis is enabled")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required when redis is enabled")
	}
	return nil
}

// PostgresConfig contains run-history store connection settings
type PostgresConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// Configured reports whether a run-history store should be opened at all.
func (p PostgresConfig) Configured() bool {
	return strings.TrimSpace(p.URL) != "" || strings.TrimSpace(p.Host) != "" || strings.TrimSpace(p.DBName) != ""
}

// DSN builds a connection string from the individual fields when URL is unset.
func (p PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	host := p.Host
	if host == "" {
		host = "localhost"
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, host, port, p.DBName, ssl)
}

// FeedbackConfig locates the append-only feedback ledger
type FeedbackConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LoadConfig loads config from file, env and defaults
func LoadConfig(path string) *Config {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("json")

	viper.SetDefault("general.default_timeout", "60s")
	viper.SetDefault("source.kind", "file")
	viper.SetDefault("source.file.path", "resources/test_logs.json")
	viper.SetDefault("source.index.query", "*")
	viper.SetDefault("source.index.max_results", 1000)
	viper.SetDefault("pipeline.refine_batch_size", 0)
	viper.SetDefault("pipeline.triage_batch_size", 10)
	viper.SetDefault("pipeline.draft_batch_size", 10)
	viper.SetDefault("pipeline.filter_batch_size", 12)
	viper.SetDefault("pipeline.stack_excerpt_lines", 15)
	viper.SetDefault("pipeline.top_n", 0)
	viper.SetDefault("tickets.mode", "mock")
	viper.SetDefault("reports.mode", "mock")
	viper.SetDefault("storage.file.data_dir", "output")
	viper.SetDefault("feedback.enabled", true)
	viper.SetDefault("feedback.path", "output/feedback.json")
	viper.SetDefault("telemetry.cost_tracking", true)

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("LOGSIFT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	if err := config.Telemetry.Validate(); err != nil {
		panic(err)
	}
	if err := config.Source.Validate(); err != nil {
		panic(err)
	}
	if err := config.Storage.Redis.Validate(); err != nil {
		panic(err)
	}
	return &config
}
