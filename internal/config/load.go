package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// ErrConfigInvalid wraps every validation failure.
var ErrConfigInvalid = errors.New("invalid configuration")

// ValidationError describes a single invalid field.
type ValidationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config: field %q with value %v: %s", e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrConfigInvalid
}

// FromViper decodes and validates the settings held by v. When no sources are
// configured the defaults from DefaultSources are used.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("create decoder: %w", err)
	}
	if decodeErr := decoder.Decode(v.AllSettings()); decodeErr != nil {
		return nil, fmt.Errorf("decode config: %w", decodeErr)
	}

	if cfg.Sources.Len() == 0 {
		cfg.Sources = DefaultSources()
	}

	cfg.normalize()

	if validateErr := cfg.Validate(); validateErr != nil {
		return nil, validateErr
	}
	return &cfg, nil
}

// normalize lowercases keyword lists and extensions, which are matched case-insensitively.
func (c *Config) normalize() {
	c.Scraper.RequiredKeywords = lowerAll(c.Scraper.RequiredKeywords)
	c.Filter.Extensions = lowerAll(c.Filter.Extensions)
	c.Filter.HintWords = lowerAll(c.Filter.HintWords)
	c.Filter.TopicTerms = lowerAll(c.Filter.TopicTerms)
	c.Download.Extension = strings.ToLower(c.Download.Extension)
	c.Tables.Format = strings.ToLower(c.Tables.Format)
}

// Validate checks every field and returns all problems joined.
func (c *Config) Validate() error {
	var errs []error
	add := func(field string, value any, reason string) {
		errs = append(errs, &ValidationError{Field: field, Value: value, Reason: reason})
	}

	if strings.TrimSpace(c.Scraper.OutputDir) == "" {
		add("scraper.output_dir", c.Scraper.OutputDir, "must not be empty")
	}
	if c.Scraper.MaxDownloads < 1 {
		add("scraper.max_downloads", c.Scraper.MaxDownloads, "must be at least 1")
	}
	if c.Scraper.Concurrency < 1 {
		add("scraper.concurrency", c.Scraper.Concurrency, "must be at least 1")
	}
	if len(c.Scraper.RequiredKeywords) == 0 {
		add("scraper.required_keywords", c.Scraper.RequiredKeywords, "must not be empty")
	}
	if c.Fetch.Timeout <= 0 {
		add("fetch.timeout", c.Fetch.Timeout, "must be positive")
	}
	if c.Fetch.MaxAttempts < 1 {
		add("fetch.max_attempts", c.Fetch.MaxAttempts, "must be at least 1")
	}
	if c.Fetch.RateLimit < 0 {
		add("fetch.rate_limit", c.Fetch.RateLimit, "must not be negative")
	}
	if c.Fetch.MaxBodyBytes <= 0 {
		add("fetch.max_body_bytes", c.Fetch.MaxBodyBytes, "must be positive")
	}
	if len(c.Filter.Extensions) == 0 {
		add("filter.extensions", c.Filter.Extensions, "must not be empty")
	}
	if c.Filter.MinTitleLength < 1 {
		add("filter.min_title_length", c.Filter.MinTitleLength, "must be at least 1")
	}
	if !strings.HasPrefix(c.Download.Extension, ".") {
		add("download.extension", c.Download.Extension, "must start with a dot")
	}
	if c.Download.ChunkSize < 1 {
		add("download.chunk_size", c.Download.ChunkSize, "must be at least 1")
	}
	if c.Report.ManifestFile == "" || c.Report.ConfigFile == "" {
		add("report", c.Report, "manifest_file and config_file are required")
	}
	if c.History.Enabled && c.History.Path == "" {
		add("history.path", c.History.Path, "required when history is enabled")
	}
	switch c.Tables.Format {
	case FormatCSV, FormatXLSX, FormatBoth:
	default:
		add("tables.format", c.Tables.Format, "must be csv, xlsx or both")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		add("server.port", c.Server.Port, "must be a valid TCP port")
	}
	if c.Schedule.Cron != "" {
		if _, err := cron.ParseStandard(c.Schedule.Cron); err != nil {
			add("schedule.cron", c.Schedule.Cron, err.Error())
		}
	}
	if _, err := c.Sources.Registry(); err != nil {
		add("sources", c.Sources.Len(), err.Error())
	}

	return errors.Join(errs...)
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
