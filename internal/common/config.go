package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for the ticker engine
type Config struct {
	Environment string          `toml:"environment"`
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Clients     ClientsConfig   `toml:"clients"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	Catalog     CatalogConfig   `toml:"catalog"`
	Logging     LoggingConfig   `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig holds storage paths. Catalog files live under Path/catalog,
// the tracked-ticker KV store under Path/badger.
type StorageConfig struct {
	Path string `toml:"path"`
}

// CatalogDir returns the directory holding per-market catalog JSON files.
func (c *StorageConfig) CatalogDir() string {
	return filepath.Join(c.Path, "catalog")
}

// BadgerDir returns the BadgerHold directory.
func (c *StorageConfig) BadgerDir() string {
	return filepath.Join(c.Path, "badger")
}

// ClientsConfig holds upstream client configurations
type ClientsConfig struct {
	Naver NaverConfig `toml:"naver"`
	Yahoo YahooConfig `toml:"yahoo"`
}

// NaverConfig holds domestic exchange upstream configuration
type NaverConfig struct {
	QuoteBaseURL    string `toml:"quote_base_url"`
	ListingBaseURL  string `toml:"listing_base_url"`
	MinInterval     string `toml:"min_interval"`
	ListingInterval string `toml:"listing_interval"`
	Timeout         string `toml:"timeout"`
}

// GetMinInterval parses the minimum spacing between quote requests
func (c *NaverConfig) GetMinInterval() time.Duration {
	return parseDuration(c.MinInterval, 200*time.Millisecond)
}

// GetListingInterval parses the minimum spacing between listing page requests
func (c *NaverConfig) GetListingInterval() time.Duration {
	return parseDuration(c.ListingInterval, 500*time.Millisecond)
}

// GetTimeout parses and returns the timeout duration
func (c *NaverConfig) GetTimeout() time.Duration {
	return parseDuration(c.Timeout, 10*time.Second)
}

// YahooConfig holds US upstream configuration
type YahooConfig struct {
	BaseURL     string `toml:"base_url"`
	MinInterval string `toml:"min_interval"`
	Timeout     string `toml:"timeout"`
}

// GetMinInterval parses the minimum spacing between quote requests
func (c *YahooConfig) GetMinInterval() time.Duration {
	return parseDuration(c.MinInterval, 200*time.Millisecond)
}

// GetTimeout parses and returns the timeout duration
func (c *YahooConfig) GetTimeout() time.Duration {
	return parseDuration(c.Timeout, 10*time.Second)
}

// SchedulerConfig holds refresh scheduling policy
type SchedulerConfig struct {
	RefreshInterval string `toml:"refresh_interval"`
	ManualDebounce  string `toml:"manual_debounce"`
	CatalogMaxAge   string `toml:"catalog_max_age"`
	CatalogDelay    string `toml:"catalog_delay"`
	Timezone        string `toml:"timezone"`
	MarketOpen      string `toml:"market_open"`
	MarketClose     string `toml:"market_close"`
}

// GetRefreshInterval parses the periodic refresh interval
func (c *SchedulerConfig) GetRefreshInterval() time.Duration {
	return parseDuration(c.RefreshInterval, 5*time.Second)
}

// GetManualDebounce parses the trailing-edge debounce window for manual refresh
func (c *SchedulerConfig) GetManualDebounce() time.Duration {
	return parseDuration(c.ManualDebounce, 500*time.Millisecond)
}

// GetCatalogMaxAge parses the age after which the catalog is rebuilt
func (c *SchedulerConfig) GetCatalogMaxAge() time.Duration {
	return parseDuration(c.CatalogMaxAge, FreshnessCatalog)
}

// GetCatalogDelay parses the delay before a background catalog rebuild
func (c *SchedulerConfig) GetCatalogDelay() time.Duration {
	return parseDuration(c.CatalogDelay, 3*time.Second)
}

// TradingWindow builds the market-hours gate, falling back to the KRX session.
func (c *SchedulerConfig) TradingWindow() TradingWindow {
	if c.Timezone == "" {
		return KRXTradingWindow()
	}
	loc := MustLoadLocation(c.Timezone, 9*time.Hour)
	w, err := NewTradingWindow(loc, c.MarketOpen, c.MarketClose)
	if err != nil {
		return KRXTradingWindow()
	}
	return w
}

// CatalogConfig holds crawl parameters for the domestic catalog
type CatalogConfig struct {
	Segments   []SegmentConfig `toml:"segments"`
	MaxPages   int             `toml:"max_pages"`
	MinEntries int             `toml:"min_entries"`
}

// SegmentConfig identifies one listing segment (sosok id and display name)
type SegmentConfig struct {
	ID   string `toml:"id"`
	Name string `toml:"name"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8787,
		},
		Storage: StorageConfig{
			Path: "data",
		},
		Clients: ClientsConfig{
			Naver: NaverConfig{
				QuoteBaseURL:    "https://polling.finance.naver.com",
				ListingBaseURL:  "https://finance.naver.com",
				MinInterval:     "200ms",
				ListingInterval: "500ms",
				Timeout:         "10s",
			},
			Yahoo: YahooConfig{
				BaseURL:     "https://query1.finance.yahoo.com",
				MinInterval: "200ms",
				Timeout:     "10s",
			},
		},
		Scheduler: SchedulerConfig{
			RefreshInterval: "5s",
			ManualDebounce:  "500ms",
			CatalogMaxAge:   "24h",
			CatalogDelay:    "3s",
			Timezone:        "Asia/Seoul",
			MarketOpen:      "09:00",
			MarketClose:     "15:30",
		},
		Catalog: CatalogConfig{
			Segments: []SegmentConfig{
				{ID: "0", Name: "KOSPI"},
				{ID: "1", Name: "KOSDAQ"},
			},
			MaxPages:   50,
			MinEntries: 100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Later files override earlier ones
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)
	applyCatalogDefaults(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("TICKER_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("TICKER_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("TICKER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("TICKER_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if path := os.Getenv("TICKER_DATA_PATH"); path != "" {
		config.Storage.Path = path
	}
}

// applyCatalogDefaults restores crawl bounds a config file zeroed out.
func applyCatalogDefaults(config *Config) {
	if config.Catalog.MaxPages <= 0 {
		config.Catalog.MaxPages = 50
	}
	if config.Catalog.MinEntries <= 0 {
		config.Catalog.MinEntries = 100
	}
	if len(config.Catalog.Segments) == 0 {
		config.Catalog.Segments = NewDefaultConfig().Catalog.Segments
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
