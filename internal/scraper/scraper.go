// Package scraper coordinates a run: it walks the configured sources, fetches
// pages, filters and de-duplicates links, and downloads accepted documents
// until the sources are exhausted or the download cap is reached.
package scraper

import (
	"context"
	"errors"
	"iter"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jonesrussell/docscraper/internal/domain"
	"github.com/jonesrussell/docscraper/internal/download"
	"github.com/jonesrussell/docscraper/internal/extract"
	"github.com/jonesrussell/docscraper/internal/fetcher"
	"github.com/jonesrussell/docscraper/internal/filter"
	"github.com/jonesrussell/docscraper/internal/logger"
	"github.com/jonesrussell/docscraper/internal/metrics"
	"github.com/jonesrussell/docscraper/internal/sources"
)

// PageFetcher fetches one page.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetcher.Page, error)
}

// Evaluator decides whether a candidate is a document of interest.
type Evaluator interface {
	Evaluate(c domain.Candidate, mode filter.Mode) filter.Decision
}

// Downloader writes one document to disk.
type Downloader interface {
	Download(ctx context.Context, rawURL, title string) (download.Result, error)
}

// Deps are the collaborators of a Coordinator.
type Deps struct {
	Sources    *sources.Registry
	Fetcher    PageFetcher
	Filter     Evaluator
	Downloader Downloader
	Metrics    *metrics.Metrics
	Logger     logger.Logger
}

// Settings control a run.
type Settings struct {
	MaxDownloads   int
	Concurrency    int
	SearchKeywords []string
}

// Coordinator runs scrapes. A Coordinator may be reused for several runs but
// each Run call owns its own state.
type Coordinator struct {
	deps     Deps
	settings Settings
	log      logger.Logger
}

// New creates a Coordinator.
func New(deps Deps, settings Settings) *Coordinator {
	if settings.Concurrency < 1 {
		settings.Concurrency = 1
	}
	log := deps.Logger
	if log == nil {
		log = logger.NewNop()
	}
	return &Coordinator{deps: deps, settings: settings, log: log}
}

// pageTask is one page to fetch: a search URL for (source, template, keyword),
// or a direct source URL.
type pageTask struct {
	source  string
	kind    sources.Kind
	url     string
	keyword string
}

func (t pageTask) mode() filter.Mode {
	if t.kind == sources.KindDirect {
		return filter.ModeDirect
	}
	return filter.ModeSearch
}

// Run executes one scrape under a fresh run id.
func (c *Coordinator) Run(ctx context.Context) *domain.Report {
	return c.RunWithID(ctx, uuid.NewString())
}

// RunWithID executes one scrape. It never fails: page and download errors are
// recorded in the report. Cancelling ctx stops the run early.
func (c *Coordinator) RunWithID(ctx context.Context, runID string) *domain.Report {
	report := &domain.Report{
		RunID:        runID,
		StartedAt:    time.Now().UTC(),
		MaxDownloads: c.settings.MaxDownloads,
	}
	log := c.log.With(logger.String("run_id", report.RunID))
	state := NewRunState(c.settings.MaxDownloads)

	log.Info("Scrape run started",
		logger.Int("max_downloads", c.settings.MaxDownloads),
		logger.Int("concurrency", c.settings.Concurrency),
		logger.Int("search_sources", len(c.deps.Sources.Search())),
		logger.Int("direct_sources", len(c.deps.Sources.Direct())),
	)

	if c.settings.Concurrency == 1 {
		for task := range c.tasks() {
			if c.shouldStop(ctx, state) {
				break
			}
			c.processPage(ctx, log, state, task)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(c.settings.Concurrency)
		for task := range c.tasks() {
			if c.shouldStop(ctx, state) {
				break
			}
			g.Go(func() error {
				c.processPage(ctx, log, state, task)
				return nil
			})
		}
		_ = g.Wait()
	}

	report.Documents, report.Failures, report.Stats = state.Snapshot()
	report.FinishedAt = time.Now().UTC()
	report.CapReached = state.CapReached()
	report.Cancelled = ctx.Err() != nil

	log.Info("Scrape run finished",
		logger.Int("downloaded", report.Stats.Downloaded),
		logger.Int("accepted", report.Stats.Accepted),
		logger.Int("pages_fetched", report.Stats.PagesFetched),
		logger.Int("pages_failed", report.Stats.PagesFailed),
		logger.Int("failures", len(report.Failures)),
		logger.Bool("cap_reached", report.CapReached),
		logger.Bool("cancelled", report.Cancelled),
		logger.Duration("duration", report.Duration()),
	)
	return report
}

// tasks yields every enabled search source x keyword x template, then every
// enabled direct source.
func (c *Coordinator) tasks() iter.Seq[pageTask] {
	return func(yield func(pageTask) bool) {
		for _, src := range c.deps.Sources.Search() {
			for _, keyword := range c.settings.SearchKeywords {
				for _, tpl := range src.Templates {
					task := pageTask{
						source:  src.Name,
						kind:    sources.KindSearch,
						url:     src.SearchURL(tpl, keyword),
						keyword: keyword,
					}
					if !yield(task) {
						return
					}
				}
			}
		}
		for _, src := range c.deps.Sources.Direct() {
			if !yield(pageTask{source: src.Name, kind: sources.KindDirect, url: src.URL}) {
				return
			}
		}
	}
}

func (c *Coordinator) shouldStop(ctx context.Context, state *RunState) bool {
	return ctx.Err() != nil || state.CapReached()
}

func (c *Coordinator) processPage(ctx context.Context, log logger.Logger, state *RunState, task pageTask) {
	if c.shouldStop(ctx, state) {
		return
	}

	page, err := c.deps.Fetcher.Fetch(ctx, task.url)
	if err != nil {
		state.pageFetched(false)
		kind := string(fetcher.KindConnection)
		var fe *fetcher.FetchError
		if errors.As(err, &fe) {
			kind = string(fe.Kind)
		}
		c.recordFailure(state, domain.Failure{
			Stage: domain.StageFetch, Kind: kind, SourceName: task.source, URL: task.url, Message: err.Error(),
		})
		c.deps.Metrics.PageFetched(string(task.kind), false)
		log.Warn("Page fetch failed, skipping",
			logger.String("source", task.source),
			logger.String("url", task.url),
			logger.String("kind", kind),
			logger.Error(err),
		)
		return
	}
	state.pageFetched(true)
	c.deps.Metrics.PageFetched(string(task.kind), true)

	links, err := extract.Links(page.Body)
	if err != nil {
		c.recordFailure(state, domain.Failure{
			Stage: domain.StageParse, Kind: "html", SourceName: task.source, URL: task.url, Message: err.Error(),
		})
		log.Warn("Page parse failed, skipping", logger.String("url", task.url), logger.Error(err))
		return
	}

	base := page.FinalURL
	if base == "" {
		base = task.url
	}

	for link := range links {
		if c.shouldStop(ctx, state) {
			return
		}

		cand := domain.Candidate{Title: link.Text, Href: link.Href, SourceName: task.source}
		if abs, ok := extract.Resolve(base, link.Href); ok {
			cand.URL = abs
		}

		decision := c.deps.Filter.Evaluate(cand, task.mode())
		c.deps.Metrics.LinkEvaluated(string(decision.Reason))
		state.linkSeen(decision.Accept)
		if !decision.Accept {
			continue
		}

		if !c.handleCandidate(ctx, log, state, cand) {
			return
		}
	}

	log.Debug("Page processed",
		logger.String("source", task.source),
		logger.String("url", task.url),
		logger.String("keyword", task.keyword),
	)
}

// handleCandidate reserves a download slot, records the candidate as a document
// and downloads it. It returns false when the cap has been reached.
func (c *Coordinator) handleCandidate(ctx context.Context, log logger.Logger, state *RunState, cand domain.Candidate) bool {
	if !state.Reserve() {
		return false
	}

	idx, added := state.Accept(cand)
	if !added {
		state.Release()
		return true
	}

	log.Info("Found document",
		logger.String("title", cand.Title),
		logger.String("url", cand.URL),
		logger.String("source", cand.SourceName),
	)

	res, err := c.deps.Downloader.Download(ctx, cand.URL, cand.Title)
	state.Complete(idx, res, err)

	switch {
	case err != nil:
		kind := "download"
		var de *download.DownloadError
		if errors.As(err, &de) {
			kind = string(de.Kind)
		}
		c.recordFailure(state, domain.Failure{
			Stage: domain.StageDownload, Kind: kind, SourceName: cand.SourceName, URL: cand.URL, Message: err.Error(),
		})
		c.deps.Metrics.Document(string(domain.StatusFailed), 0)
		log.Warn("Download failed", logger.String("url", cand.URL), logger.Error(err))
	case res.Status == domain.StatusSkipped:
		c.deps.Metrics.Document(string(domain.StatusSkipped), 0)
		log.Info("Document already exists, skipped", logger.String("path", res.Path))
	default:
		c.deps.Metrics.Document(string(domain.StatusDownloaded), res.Size)
	}
	return true
}

func (c *Coordinator) recordFailure(state *RunState, f domain.Failure) {
	state.RecordFailure(f)
	c.deps.Metrics.Failure(string(f.Stage), f.Kind)
}
