// Package config defines the docscraper configuration, its defaults and validation.
package config

import (
	"time"

	"github.com/jonesrussell/docscraper/internal/logger"
	"github.com/jonesrussell/docscraper/internal/sources"
)

// Config is the complete application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logger   logger.Config  `mapstructure:"logger"`
	Scraper  ScraperConfig  `mapstructure:"scraper"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Filter   FilterConfig   `mapstructure:"filter"`
	Download DownloadConfig `mapstructure:"download"`
	Report   ReportConfig   `mapstructure:"report"`
	History  HistoryConfig  `mapstructure:"history"`
	Tables   TablesConfig   `mapstructure:"tables"`
	Server   ServerConfig   `mapstructure:"server"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Sources  sources.File   `mapstructure:"sources"`
}

// AppConfig holds application identity settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// ScraperConfig controls a scrape run.
type ScraperConfig struct {
	OutputDir        string   `mapstructure:"output_dir"`
	MaxDownloads     int      `mapstructure:"max_downloads"`
	Concurrency      int      `mapstructure:"concurrency"`
	RequiredKeywords []string `mapstructure:"required_keywords"`
	SearchKeywords   []string `mapstructure:"search_keywords"`
}

// FetchConfig controls page fetching.
type FetchConfig struct {
	UserAgent        string        `mapstructure:"user_agent"`
	Timeout          time.Duration `mapstructure:"timeout"`
	MaxAttempts      int           `mapstructure:"max_attempts"`
	RetryDelay       time.Duration `mapstructure:"retry_delay"`
	RateLimit        float64       `mapstructure:"rate_limit"`
	RateBurst        int           `mapstructure:"rate_burst"`
	RespectRobotsTxt bool          `mapstructure:"respect_robots_txt"`
	MaxRedirects     int           `mapstructure:"max_redirects"`
	MaxBodyBytes     int64         `mapstructure:"max_body_bytes"`
}

// FilterConfig controls candidate acceptance.
type FilterConfig struct {
	Extensions     []string `mapstructure:"extensions"`
	MinTitleLength int      `mapstructure:"min_title_length"`
	RelaxedDirect  bool     `mapstructure:"relaxed_direct"`
	HintWords      []string `mapstructure:"hint_words"`
	TopicTerms     []string `mapstructure:"topic_terms"`
}

// DownloadConfig controls document downloads.
type DownloadConfig struct {
	Extension string        `mapstructure:"extension"`
	Timeout   time.Duration `mapstructure:"timeout"`
	MaxBytes  int64         `mapstructure:"max_bytes"`
	ChunkSize int           `mapstructure:"chunk_size"`
}

// ReportConfig names the run artifacts written to the output directory.
type ReportConfig struct {
	ManifestFile string `mapstructure:"manifest_file"`
	ConfigFile   string `mapstructure:"config_file"`
	Title        string `mapstructure:"title"`
}

// HistoryConfig controls the SQLite run history.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// TablesConfig controls the HTML table scraper.
type TablesConfig struct {
	OutputDir string `mapstructure:"output_dir"`
	Format    string `mapstructure:"format"`
	Workbook  string `mapstructure:"workbook"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// ScheduleConfig controls scheduled runs. An empty Cron disables scheduling.
type ScheduleConfig struct {
	Cron string `mapstructure:"cron"`
}

// Table output formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
	FormatBoth = "both"
)
