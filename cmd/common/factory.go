package common

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/jonesrussell/docscraper/internal/download"
	"github.com/jonesrussell/docscraper/internal/fetcher"
	"github.com/jonesrussell/docscraper/internal/filter"
	"github.com/jonesrussell/docscraper/internal/history"
	"github.com/jonesrussell/docscraper/internal/job"
	"github.com/jonesrussell/docscraper/internal/logger"
	"github.com/jonesrussell/docscraper/internal/metrics"
	"github.com/jonesrussell/docscraper/internal/report"
	"github.com/jonesrussell/docscraper/internal/scraper"
	"github.com/jonesrussell/docscraper/internal/sources"
)

// robotsCacheTTL is how long a host's robots.txt is reused within a process.
const robotsCacheTTL = time.Hour

// Pipeline holds the wired components shared by the scrape and serve commands.
type Pipeline struct {
	Registry    *sources.Registry
	Coordinator *scraper.Coordinator
	Service     *job.Service
	Reports     *report.Writer
	Metrics     *metrics.Metrics
	Gatherer    *prometheus.Registry
	// History is nil when run history is disabled.
	History *history.Store
}

// NewPipeline builds every component of a run from deps.
func NewPipeline(ctx context.Context, deps CommandDeps) (*Pipeline, error) {
	cfg := deps.Config
	log := deps.Logger

	registry, err := cfg.Sources.Registry()
	if err != nil {
		return nil, fmt.Errorf("build source registry: %w", err)
	}

	client := fetcher.NewHTTPClient(cfg.Fetch.MaxRedirects)

	var opts []fetcher.Option
	if cfg.Fetch.RespectRobotsTxt {
		opts = append(opts, fetcher.WithRobots(
			fetcher.NewRobotsChecker(client, cfg.Fetch.UserAgent, cfg.Fetch.Timeout, robotsCacheTTL),
		))
	}
	if limiter := fetcher.NewHostLimiter(cfg.Fetch.RateLimit, cfg.Fetch.RateBurst); limiter != nil {
		opts = append(opts, fetcher.WithLimiter(limiter))
	}
	pages := fetcher.New(client, fetcher.Config{
		UserAgent:    cfg.Fetch.UserAgent,
		Timeout:      cfg.Fetch.Timeout,
		MaxBodyBytes: cfg.Fetch.MaxBodyBytes,
		MaxAttempts:  cfg.Fetch.MaxAttempts,
		RetryDelay:   cfg.Fetch.RetryDelay,
	}, log, opts...)

	docFilter, err := filter.New(filter.Config{
		Keywords:       cfg.Scraper.RequiredKeywords,
		Extensions:     cfg.Filter.Extensions,
		MinTitleLength: cfg.Filter.MinTitleLength,
		RelaxedDirect:  cfg.Filter.RelaxedDirect,
		HintWords:      cfg.Filter.HintWords,
		TopicTerms:     cfg.Filter.TopicTerms,
	})
	if err != nil {
		return nil, fmt.Errorf("build filter: %w", err)
	}
	if cfg.Filter.RelaxedDirect {
		log.Warn("Relaxed direct-source matching is enabled; unrelated pages may be downloaded")
	}

	downloader := download.New(client, download.Config{
		Dir:       cfg.Scraper.OutputDir,
		Extension: cfg.Download.Extension,
		UserAgent: cfg.Fetch.UserAgent,
		Timeout:   cfg.Download.Timeout,
		MaxBytes:  cfg.Download.MaxBytes,
		ChunkSize: cfg.Download.ChunkSize,
	}, log)

	gatherer := prometheus.NewRegistry()
	gatherer.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(gatherer)

	coordinator := scraper.New(scraper.Deps{
		Sources:    registry,
		Fetcher:    pages,
		Filter:     docFilter,
		Downloader: downloader,
		Metrics:    m,
		Logger:     log,
	}, scraper.Settings{
		MaxDownloads:   cfg.Scraper.MaxDownloads,
		Concurrency:    cfg.Scraper.Concurrency,
		SearchKeywords: cfg.Scraper.SearchKeywords,
	})

	reports := &report.Writer{
		Dir:          cfg.Scraper.OutputDir,
		ManifestFile: cfg.Report.ManifestFile,
		ConfigFile:   cfg.Report.ConfigFile,
		Title:        cfg.Report.Title,
	}

	p := &Pipeline{
		Registry:    registry,
		Coordinator: coordinator,
		Reports:     reports,
		Metrics:     m,
		Gatherer:    gatherer,
	}

	params := job.ServiceParams{
		Runner:  coordinator,
		Writer:  reports,
		Metrics: m,
		Logger:  log,
		Snapshot: report.NewSnapshot(
			cfg.Scraper.RequiredKeywords, cfg.Scraper.SearchKeywords, cfg.Sources, cfg.Scraper.MaxDownloads,
		),
	}
	if cfg.History.Enabled {
		store, openErr := OpenHistory(ctx, cfg.History.Path)
		if openErr != nil {
			return nil, openErr
		}
		p.History = store
		params.History = store
	}
	p.Service = job.NewService(params)

	log.Debug("Pipeline ready",
		logger.Int("search_sources", len(registry.Search())),
		logger.Int("direct_sources", len(registry.Direct())),
		logger.Bool("history", cfg.History.Enabled),
	)
	return p, nil
}

// OpenHistory opens and migrates the history database.
func OpenHistory(ctx context.Context, path string) (*history.Store, error) {
	store, err := history.Open(path)
	if err != nil {
		return nil, err
	}
	if migrateErr := store.Migrate(ctx); migrateErr != nil {
		return nil, errors.Join(migrateErr, store.Close())
	}
	return store, nil
}

// Close stops background runs and releases the history database.
func (p *Pipeline) Close() error {
	p.Service.Stop()
	if p.History != nil {
		return p.History.Close()
	}
	return nil
}
