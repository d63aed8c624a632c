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
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Store     StoreConfig     `mapstructure:"store"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Harvest   HarvestConfig   `mapstructure:"harvest"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// LoggingConfig toggles zap development features and the log file store.
type LoggingConfig struct {
	Development    bool   `mapstructure:"development"`
	File           string `mapstructure:"file"`
	RotateSchedule string `mapstructure:"rotate_schedule"`
}

// FetchConfig governs the URL fetcher and its cache.
type FetchConfig struct {
	UserAgent         string   `mapstructure:"user_agent"`
	TimeoutSeconds    int      `mapstructure:"timeout_seconds"`
	CacheResetMinutes int      `mapstructure:"cache_reset_minutes"`
	EdgeServers       []string `mapstructure:"edge_servers"`
}

// StoreConfig sets the artifact work root and session lifetime.
type StoreConfig struct {
	WorkRoot             string `mapstructure:"work_root"`
	SessionTTLMinutes    int    `mapstructure:"session_ttl_minutes"`
	SweepIntervalSeconds int    `mapstructure:"sweep_interval_seconds"`
	MaxFilesPerJob       int    `mapstructure:"max_files_per_job"`
}

// DiscoveryConfig governs topic search behavior and candidate filtering.
type DiscoveryConfig struct {
	SearchBaseURL   string   `mapstructure:"search_base_url"`
	PageCap         int      `mapstructure:"page_cap"`
	ResultsPerPage  int      `mapstructure:"results_per_page"`
	FilterPolicy    string   `mapstructure:"filter_policy"`
	ExcludedDomains []string `mapstructure:"excluded_domains"`
	MaxResults      int      `mapstructure:"max_results"`
}

// HarvestConfig bounds job sizes and the list-mode worker pool.
type HarvestConfig struct {
	MaxListURLs int `mapstructure:"max_list_urls"`
	Workers     int `mapstructure:"workers"`
	QueueDepth  int `mapstructure:"queue_depth"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HARVESTD")
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
	v.SetDefault("server.timeout_seconds", 120)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.file", "harvestd.log")
	v.SetDefault("logging.rotate_schedule", "0 0 * * *")
	v.SetDefault("fetch.user_agent", "harvestd/1.0")
	v.SetDefault("fetch.timeout_seconds", 15)
	v.SetDefault("fetch.cache_reset_minutes", 30)
	v.SetDefault("fetch.edge_servers", []string{"cloudflare", "ddos-guard", "imperva", "akamaighost"})
	v.SetDefault("store.work_root", "data")
	v.SetDefault("store.session_ttl_minutes", 10)
	v.SetDefault("store.sweep_interval_seconds", 30)
	v.SetDefault("store.max_files_per_job", 50)
	v.SetDefault("discovery.search_base_url", "https://www.google.com/search")
	v.SetDefault("discovery.page_cap", 20)
	v.SetDefault("discovery.results_per_page", 10)
	v.SetDefault("discovery.filter_policy", "doctype")
	v.SetDefault("discovery.excluded_domains", []string{
		"google.com", "bing.com", "duckduckgo.com", "yahoo.com",
		"youtube.com", "facebook.com", "twitter.com", "x.com",
		"instagram.com", "linkedin.com", "pinterest.com", "reddit.com",
		"tiktok.com",
	})
	v.SetDefault("discovery.max_results", 50)
	v.SetDefault("harvest.max_list_urls", 50)
	v.SetDefault("harvest.workers", 4)
	v.SetDefault("harvest.queue_depth", 64)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Store.SessionTTLMinutes <= 0 {
		return fmt.Errorf("store.session_ttl_minutes must be > 0")
	}
	if c.Store.WorkRoot == "" {
		return fmt.Errorf("store.work_root must be set")
	}
	if c.Discovery.PageCap <= 0 {
		return fmt.Errorf("discovery.page_cap must be > 0")
	}
	switch c.Discovery.FilterPolicy {
	case "doctype", "keyword":
	default:
		return fmt.Errorf("discovery.filter_policy must be doctype or keyword, got %q", c.Discovery.FilterPolicy)
	}
	if c.Harvest.MaxListURLs <= 0 {
		return fmt.Errorf("harvest.max_list_urls must be > 0")
	}
	if c.Harvest.Workers <= 0 {
		return fmt.Errorf("harvest.workers must be > 0")
	}
	return nil
}

// FetchTimeout converts the configured fetch timeout into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// SessionTTL converts the configured session lifetime into a duration.
func (c Config) SessionTTL() time.Duration {
	return time.Duration(c.Store.SessionTTLMinutes) * time.Minute
}

// SweepInterval converts the janitor sweep cadence into a duration.
func (c Config) SweepInterval() time.Duration {
	return time.Duration(c.Store.SweepIntervalSeconds) * time.Second
}
