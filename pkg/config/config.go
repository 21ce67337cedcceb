package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// SiteConfig holds everything about the scraped site itself.
type SiteConfig struct {
	BaseURL     string `yaml:"base_url"`
	ListingPath string `yaml:"listing_path"` // paginated index, page appended as "page/N/"
	FeedPath    string `yaml:"feed_path"`    // supplemental RSS feed
	UserAgent   string `yaml:"user_agent,omitempty"`
	// RespectRobots is tri-state: nil defaults to true.
	RespectRobots *bool `yaml:"respect_robots,omitempty"`
}

// ScanConfig is the user-tunable crawl surface. It is also the object
// persisted to the local store so the UI layer can save its settings.
type ScanConfig struct {
	MaxGames                   int           `yaml:"max_games" json:"max_games"` // 0 = unlimited
	PagesPerBatch              int           `yaml:"pages_per_batch" json:"pages_per_batch"`
	PageFetchTimeout           time.Duration `yaml:"page_fetch_timeout" json:"page_fetch_timeout"`
	BatchDelay                 time.Duration `yaml:"batch_delay" json:"batch_delay"`
	MaxConsecutiveEmptyBatches int           `yaml:"max_consecutive_empty_batches" json:"max_consecutive_empty_batches"`
	HostOrder                  []string      `yaml:"host_order,omitempty" json:"host_order,omitempty"` // preferred display ordering
}

// HTTPClientConfig holds settings for the shared HTTP client.
type HTTPClientConfig struct {
	Timeout               time.Duration `yaml:"timeout,omitempty"`
	MaxIdleConns          int           `yaml:"max_idle_conns,omitempty"`
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host,omitempty"`
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout,omitempty"`
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout,omitempty"`
	ExpectContinueTimeout time.Duration `yaml:"expect_continue_timeout,omitempty"`
	DialerTimeout         time.Duration `yaml:"dialer_timeout,omitempty"`
	DialerKeepAlive       time.Duration `yaml:"dialer_keep_alive,omitempty"`
	ForceAttemptHTTP2     *bool         `yaml:"force_attempt_http2,omitempty"` // nil=default, true=force, false=disable
}

// AppConfig is the root application configuration.
type AppConfig struct {
	Site               SiteConfig       `yaml:"site"`
	Scan               ScanConfig       `yaml:"scan"`
	StateDir           string           `yaml:"state_dir"`
	HTTPClientSettings HTTPClientConfig `yaml:"http_client_settings,omitempty"`
}

// Load reads and parses a YAML config file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// Default returns the built-in configuration used when no config file is
// supplied.
func Default() *AppConfig {
	cfg := &AppConfig{}
	cfg.Validate() // applies all defaults
	return cfg
}

// EffectiveRespectRobots resolves the tri-state flag (nil defaults to true).
func (s *SiteConfig) EffectiveRespectRobots() bool {
	if s.RespectRobots == nil {
		return true
	}
	return *s.RespectRobots
}
