// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. QUOTES_CRAWLER_MAX_PAGES.
const EnvPrefix = "QUOTES"

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Throttle ThrottleConfig `mapstructure:"throttle"`
	Export   ExportConfig   `mapstructure:"export"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// CrawlerConfig governs traversal and the detail worker pool.
type CrawlerConfig struct {
	StartURL    string `mapstructure:"start_url"`
	UserAgent   string `mapstructure:"user_agent"`
	Concurrency int    `mapstructure:"concurrency"`
	QueueDepth  int    `mapstructure:"queue_depth"`
	MaxPages    int    `mapstructure:"max_pages"`
}

// HTTPConfig configures request timeouts and retry behavior.
type HTTPConfig struct {
	TimeoutSeconds   int    `mapstructure:"timeout_seconds"`
	MaxRetries       int    `mapstructure:"max_retries"`
	BackoffInitialMs int    `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int    `mapstructure:"backoff_max_ms"`
	Accept           string `mapstructure:"accept"`
	AcceptLanguage   string `mapstructure:"accept_language"`
}

// ThrottleConfig configures the adaptive per-domain delay.
type ThrottleConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	StartDelayMs      int     `mapstructure:"start_delay_ms"`
	MinDelayMs        int     `mapstructure:"min_delay_ms"`
	MaxDelayMs        int     `mapstructure:"max_delay_ms"`
	TargetConcurrency float64 `mapstructure:"target_concurrency"`
}

// ExportConfig controls output file names and the sheet build.
type ExportConfig struct {
	OutputDir   string `mapstructure:"output_dir"`
	CSVName     string `mapstructure:"csv_name"`
	XLSXName    string `mapstructure:"xlsx_name"`
	SourceLabel string `mapstructure:"source_label"`
	ApplyDedup  bool   `mapstructure:"apply_dedup"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// MetricsConfig enables the Prometheus endpoint when ListenAddr is set.
type MetricsConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// Load builds a Config from defaults, an optional file and the environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
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
	v.SetDefault("crawler.start_url", "http://quotes.toscrape.com/")
	v.SetDefault("crawler.user_agent", "quotescrape/0.1")
	v.SetDefault("crawler.concurrency", 8)
	v.SetDefault("crawler.queue_depth", 64)
	v.SetDefault("crawler.max_pages", 0)
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.max_retries", 2)
	v.SetDefault("http.backoff_initial_ms", 250)
	v.SetDefault("http.backoff_max_ms", 2000)
	v.SetDefault("http.accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	v.SetDefault("http.accept_language", "en")
	v.SetDefault("throttle.enabled", true)
	v.SetDefault("throttle.start_delay_ms", 1000)
	v.SetDefault("throttle.min_delay_ms", 0)
	v.SetDefault("throttle.max_delay_ms", 60000)
	v.SetDefault("throttle.target_concurrency", 1.0)
	v.SetDefault("export.output_dir", ".")
	v.SetDefault("export.csv_name", "quotestoscrape.csv")
	v.SetDefault("export.xlsx_name", "quotestoscrape.xlsx")
	v.SetDefault("export.source_label", "http://quotes.toscrape.com/")
	v.SetDefault("export.apply_dedup", false)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("metrics.listen_addr", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	u, err := url.Parse(c.Crawler.StartURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("crawler.start_url must be an absolute http(s) URL")
	}
	if c.Crawler.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0")
	}
	if c.Crawler.QueueDepth < 0 {
		return fmt.Errorf("crawler.queue_depth must be >= 0")
	}
	if c.Crawler.MaxPages < 0 {
		return fmt.Errorf("crawler.max_pages must be >= 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0")
	}
	if c.HTTP.BackoffInitialMs < 0 || c.HTTP.BackoffMaxMs < c.HTTP.BackoffInitialMs {
		return fmt.Errorf("http.backoff_max_ms must be >= http.backoff_initial_ms >= 0")
	}
	if c.Throttle.Enabled {
		if c.Throttle.TargetConcurrency <= 0 {
			return fmt.Errorf("throttle.target_concurrency must be > 0")
		}
		if c.Throttle.MinDelayMs < 0 || c.Throttle.MaxDelayMs < c.Throttle.MinDelayMs {
			return fmt.Errorf("throttle.max_delay_ms must be >= throttle.min_delay_ms >= 0")
		}
	}
	if strings.TrimSpace(c.Export.OutputDir) == "" {
		return fmt.Errorf("export.output_dir is required")
	}
	if strings.TrimSpace(c.Export.CSVName) == "" || strings.TrimSpace(c.Export.XLSXName) == "" {
		return fmt.Errorf("export.csv_name and export.xlsx_name are required")
	}
	if c.Export.CSVName == c.Export.XLSXName {
		return fmt.Errorf("export.csv_name and export.xlsx_name must differ")
	}
	return nil
}

// RequestTimeout converts http.timeout_seconds into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// RequestHeaders returns the headers sent with every request. Empty values
// are left out so the HTTP client defaults apply.
func (c Config) RequestHeaders() http.Header {
	h := http.Header{}
	if c.HTTP.Accept != "" {
		h.Set("Accept", c.HTTP.Accept)
	}
	if c.HTTP.AcceptLanguage != "" {
		h.Set("Accept-Language", c.HTTP.AcceptLanguage)
	}
	return h
}

// Backoff returns the initial and maximum retry backoff.
func (c Config) Backoff() (initial, maxDelay time.Duration) {
	return time.Duration(c.HTTP.BackoffInitialMs) * time.Millisecond,
		time.Duration(c.HTTP.BackoffMaxMs) * time.Millisecond
}

// ThrottleDelays returns the start, minimum and maximum throttle delays.
func (c Config) ThrottleDelays() (start, minDelay, maxDelay time.Duration) {
	return time.Duration(c.Throttle.StartDelayMs) * time.Millisecond,
		time.Duration(c.Throttle.MinDelayMs) * time.Millisecond,
		time.Duration(c.Throttle.MaxDelayMs) * time.Millisecond
}
