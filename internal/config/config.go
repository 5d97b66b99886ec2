package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/prospector-cli/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Extractor  ExtractorConfig  `yaml:"extractor" mapstructure:"extractor"`
	Compliance ComplianceConfig `yaml:"compliance" mapstructure:"compliance"`
	Approval   ApprovalConfig   `yaml:"approval" mapstructure:"approval"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Export     ExportConfig     `yaml:"export" mapstructure:"export"`
	Webhook    WebhookConfig    `yaml:"webhook" mapstructure:"webhook"`
	Notion     NotionConfig     `yaml:"notion" mapstructure:"notion"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the run persistence backend.
type StoreConfig struct {
	Driver      string           `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string           `yaml:"database_url" mapstructure:"database_url"`
	Pool        store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// ExtractorConfig holds extraction engine API settings. The retry and
// circuit values tune transport-level resilience for engine calls; zero
// values fall back to the package defaults.
type ExtractorConfig struct {
	APIKey           string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL          string `yaml:"base_url" mapstructure:"base_url"`
	MaxRetries       int    `yaml:"max_retries" mapstructure:"max_retries"`
	RetryBackoffMS   int    `yaml:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`
	CircuitThreshold int    `yaml:"circuit_threshold" mapstructure:"circuit_threshold"`
	CircuitResetSecs int    `yaml:"circuit_reset_secs" mapstructure:"circuit_reset_secs"`
}

// ComplianceConfig configures per-domain scraping policy.
type ComplianceConfig struct {
	RespectRobotsTxt bool   `yaml:"respect_robots_txt" mapstructure:"respect_robots_txt"`
	UserAgent        string `yaml:"user_agent" mapstructure:"user_agent"`
	RateLimitDelayMS int    `yaml:"rate_limit_delay_ms" mapstructure:"rate_limit_delay_ms"`
	RulesFile        string `yaml:"rules_file" mapstructure:"rules_file"`
}

// ApprovalConfig configures the high-priority task approval gate.
type ApprovalConfig struct {
	RequireHumanApproval bool   `yaml:"require_human_approval" mapstructure:"require_human_approval"`
	AutoApprovePreviews  bool   `yaml:"auto_approve_previews" mapstructure:"auto_approve_previews"`
	WebhookURL           string `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// CacheConfig configures the shared TTL cache.
type CacheConfig struct {
	TTLSecs             int `yaml:"ttl_secs" mapstructure:"ttl_secs"`
	JanitorIntervalSecs int `yaml:"janitor_interval_secs" mapstructure:"janitor_interval_secs"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrentRuns int `yaml:"max_concurrent_runs" mapstructure:"max_concurrent_runs"`
}

// ServerConfig configures the webhook server.
type ServerConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// ExportConfig configures file exports of run reports.
type ExportConfig struct {
	Dir     string `yaml:"dir" mapstructure:"dir"`
	Formats string `yaml:"formats" mapstructure:"formats"`
}

// WebhookConfig configures the outbound report webhook.
type WebhookConfig struct {
	ReportURL string `yaml:"report_url" mapstructure:"report_url"`
}

// NotionConfig holds Notion API credentials and the contacts database ID.
type NotionConfig struct {
	Token      string `yaml:"token" mapstructure:"token"`
	ContactsDB string `yaml:"contacts_db" mapstructure:"contacts_db"`
}

// MonitoringConfig configures the metrics collector and alert checker.
type MonitoringConfig struct {
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	MinAvgConfidence     float64 `yaml:"min_avg_confidence" mapstructure:"min_avg_confidence"`
	MinCacheHitRate      float64 `yaml:"min_cache_hit_rate" mapstructure:"min_cache_hit_rate"`
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PROSPECTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "prospector.db")
	v.SetDefault("store.pool.max_conns", 10)
	v.SetDefault("store.pool.min_conns", 2)
	v.SetDefault("extractor.base_url", "https://extract.sells.group/v1")
	v.SetDefault("extractor.max_retries", 3)
	v.SetDefault("extractor.retry_backoff_ms", 500)
	v.SetDefault("extractor.circuit_threshold", 5)
	v.SetDefault("extractor.circuit_reset_secs", 30)
	v.SetDefault("compliance.respect_robots_txt", true)
	v.SetDefault("compliance.user_agent", "ProspectorBot/1.0 (+https://sells.group/bot)")
	v.SetDefault("compliance.rate_limit_delay_ms", 2000)
	v.SetDefault("approval.require_human_approval", false)
	v.SetDefault("approval.auto_approve_previews", true)
	v.SetDefault("cache.ttl_secs", 3600)
	v.SetDefault("cache.janitor_interval_secs", 300)
	v.SetDefault("batch.max_concurrent_runs", 4)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("export.dir", "exports")
	v.SetDefault("export.formats", "json")
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.failure_rate_threshold", 0.5)
	v.SetDefault("monitoring.min_avg_confidence", 0.3)
	v.SetDefault("monitoring.min_cache_hit_rate", 0.1)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the fields required by the given command mode. Shared
// bounds are checked in every mode.
func (c *Config) Validate(mode string) error {
	var problems []string

	if c.Batch.MaxConcurrentRuns < 1 || c.Batch.MaxConcurrentRuns > 50 {
		problems = append(problems, "batch.max_concurrent_runs must be between 1 and 50")
	}
	if c.Compliance.RateLimitDelayMS < 0 {
		problems = append(problems, "compliance.rate_limit_delay_ms must be >= 0")
	}
	if c.Cache.TTLSecs <= 0 {
		problems = append(problems, "cache.ttl_secs must be > 0")
	}
	if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
		problems = append(problems, "store.driver must be sqlite or postgres")
	}
	if c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required")
	}
	if c.Notion.Token != "" && c.Notion.ContactsDB == "" {
		problems = append(problems, "notion.contacts_db is required when notion.token is set")
	}
	for _, th := range []struct {
		name  string
		value float64
	}{
		{"monitoring.failure_rate_threshold", c.Monitoring.FailureRateThreshold},
		{"monitoring.min_avg_confidence", c.Monitoring.MinAvgConfidence},
		{"monitoring.min_cache_hit_rate", c.Monitoring.MinCacheHitRate},
	} {
		if th.value < 0 || th.value > 1 {
			problems = append(problems, th.name+" must be between 0 and 1")
		}
	}

	switch mode {
	case "run", "batch":
		if c.Extractor.APIKey == "" {
			problems = append(problems, "extractor.api_key is required")
		}
	case "serve":
		if c.Extractor.APIKey == "" {
			problems = append(problems, "extractor.api_key is required")
		}
		if c.Server.Addr == "" {
			problems = append(problems, "server.addr is required")
		}
	case "runs", "export", "status":
		// Store-only modes; shared checks suffice.
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
