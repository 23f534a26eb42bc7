package config

import (
	"github.com/spf13/viper"

	"github.com/jonesrussell/docscraper/internal/sources"
)

const (
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	DefaultMaxDownloads   = 20
	DefaultMinTitleLength = 4
	DefaultChunkSize      = 8192
	DefaultMaxBodyBytes   = 10 * 1024 * 1024
	DefaultMaxFileBytes   = 200 * 1024 * 1024
	DefaultMaxRedirects   = 5
	DefaultServerPort     = 8090
)

// Default keyword lists.
var (
	DefaultRequiredKeywords = []string{"sql", "python", "postgres", "postgresql"}
	DefaultSearchKeywords   = []string{
		"SQL", "Python", "PostgreSQL",
		"SQL Tutorial", "Python Tutorial", "PostgreSQL Tutorial",
		"SQL Beginner", "Python Beginner", "PostgreSQL Beginner",
		"SQL Database", "Python Programming", "PostgreSQL Database",
	}
)

// SetDefaults registers default values on v. Values from the config file,
// environment and flags take precedence.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("app", map[string]any{
		"name":        "docscraper",
		"environment": "production",
		"debug":       false,
	})

	v.SetDefault("logger", map[string]any{
		"level":        "info",
		"development":  false,
		"output_paths": []string{"stdout"},
	})

	v.SetDefault("scraper", map[string]any{
		"output_dir":        "./documents",
		"max_downloads":     DefaultMaxDownloads,
		"concurrency":       1,
		"required_keywords": DefaultRequiredKeywords,
		"search_keywords":   DefaultSearchKeywords,
	})

	v.SetDefault("fetch", map[string]any{
		"user_agent":         DefaultUserAgent,
		"timeout":            "15s",
		"max_attempts":       1,
		"retry_delay":        "1s",
		"rate_limit":         0,
		"rate_burst":         1,
		"respect_robots_txt": false,
		"max_redirects":      DefaultMaxRedirects,
		"max_body_bytes":     DefaultMaxBodyBytes,
	})

	v.SetDefault("filter", map[string]any{
		"extensions":       []string{".pdf"},
		"min_title_length": DefaultMinTitleLength,
		"relaxed_direct":   false,
		"hint_words":       []string{"download", "book", "guide"},
		"topic_terms":      []string{"data", "database", "programming", "tutorial"},
	})

	v.SetDefault("download", map[string]any{
		"extension":  ".pdf",
		"timeout":    "10m",
		"max_bytes":  DefaultMaxFileBytes,
		"chunk_size": DefaultChunkSize,
	})

	v.SetDefault("report", map[string]any{
		"manifest_file": "downloaded_documents_list.txt",
		"config_file":   "scraper_config.json",
		"title":         "SQL, Python, and PostgreSQL Documents - Downloaded",
	})

	v.SetDefault("history", map[string]any{
		"enabled": false,
		"path":    "docscraper.db",
	})

	v.SetDefault("tables", map[string]any{
		"output_dir": "./tables",
		"format":     FormatCSV,
		"workbook":   "tables.xlsx",
	})

	v.SetDefault("server", map[string]any{
		"port":             DefaultServerPort,
		"read_timeout":     "15s",
		"write_timeout":    "30s",
		"idle_timeout":     "60s",
		"shutdown_timeout": "30s",
	})

	v.SetDefault("schedule", map[string]any{
		"cron": "",
	})
}

// DefaultSources returns the source list used when none is configured.
func DefaultSources() sources.File {
	on := true
	return sources.File{
		Search: []sources.SearchSpec{
			{
				Name:      "PDFDrive (webs.nf)",
				BaseURL:   "https://pdfdrive.webs.nf/",
				Templates: []string{"?s={keyword}", "/search?q={keyword}"},
				Enabled:   &on,
			},
			{
				Name:      "PDFDrive (com.co)",
				BaseURL:   "https://pdfdrive.com.co/",
				Templates: []string{"?s={keyword}", "/search?q={keyword}"},
				Enabled:   &on,
			},
			{
				Name:      "Open Textbook Library",
				BaseURL:   "https://open.umn.edu/opentextbooks/",
				Templates: []string{"?search={keyword}"},
				Enabled:   &on,
			},
		},
		Direct: []sources.DirectSpec{
			{
				Name:    "Open Textbook Library - Databases",
				URL:     "https://open.umn.edu/opentextbooks/subjects/databases",
				Enabled: &on,
			},
		},
	}
}
