// Package fetcher performs single-page HTTP GETs for the scraper, with a fixed
// User-Agent, a per-request timeout, robots.txt compliance and per-host pacing.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/jonesrussell/docscraper/internal/logger"
	"github.com/jonesrussell/docscraper/internal/retry"
)

const (
	defaultTimeout      = 15 * time.Second
	defaultMaxBodyBytes = 10 * 1024 * 1024
)

// Page is a successfully fetched HTML page.
type Page struct {
	URL         string
	FinalURL    string
	StatusCode  int
	ContentType string
	Body        []byte
}

// RobotsAllower checks robots.txt compliance.
type RobotsAllower interface {
	IsAllowed(ctx context.Context, rawURL string) (bool, error)
}

// Config configures a Fetcher.
type Config struct {
	UserAgent    string
	Timeout      time.Duration
	MaxBodyBytes int64
	MaxAttempts  int
	RetryDelay   time.Duration
}

// Fetcher fetches pages. It is safe for concurrent use.
type Fetcher struct {
	client    *http.Client
	robots    RobotsAllower
	limiter   *HostLimiter
	log       logger.Logger
	userAgent string
	timeout   time.Duration
	maxBody   int64
	retry     retry.Config
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithRobots enables robots.txt checks before each fetch.
func WithRobots(r RobotsAllower) Option {
	return func(f *Fetcher) { f.robots = r }
}

// WithLimiter paces requests per host.
func WithLimiter(l *HostLimiter) Option {
	return func(f *Fetcher) { f.limiter = l }
}

// New creates a Fetcher using client for transport.
func New(client *http.Client, cfg Config, log logger.Logger, opts ...Option) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if log == nil {
		log = logger.NewNop()
	}

	f := &Fetcher{
		client:    client,
		log:       log,
		userAgent: cfg.UserAgent,
		timeout:   cfg.Timeout,
		maxBody:   cfg.MaxBodyBytes,
		retry: retry.Config{
			MaxAttempts:  cfg.MaxAttempts,
			InitialDelay: cfg.RetryDelay,
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch GETs rawURL. Any failure, including a non-2xx status, is returned as
// a *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, &FetchError{Kind: KindInvalidURL, URL: rawURL, Err: err}
	}

	if f.robots != nil {
		allowed, robotsErr := f.robots.IsAllowed(ctx, rawURL)
		if robotsErr != nil {
			return nil, &FetchError{Kind: KindInvalidURL, URL: rawURL, Err: robotsErr}
		}
		if !allowed {
			return nil, &FetchError{Kind: KindRobotsBlocked, URL: rawURL}
		}
	}

	var page *Page
	err = retry.Do(ctx, f.retry, func() error {
		p, fetchErr := f.fetchOnce(ctx, rawURL)
		if fetchErr != nil {
			return fetchErr
		}
		page = p
		return nil
	})
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			return nil, fe
		}
		return nil, classify(rawURL, err)
	}
	return page, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, rawURL string) (*Page, error) {
	if err := f.limiter.Wait(ctx, rawURL); err != nil {
		return nil, classify(rawURL, err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, &FetchError{Kind: KindInvalidURL, URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	start := time.Now()
	resp, err := f.client.Do(req) //nolint:gosec // URL comes from a configured source
	if err != nil {
		return nil, classify(rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, f.maxBody))
		return nil, &FetchError{Kind: KindStatus, URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody))
	if err != nil {
		fe := classify(rawURL, err)
		if fe.Kind == KindConnection {
			fe.Kind = KindBody
		}
		return nil, fe
	}

	f.log.Debug("Fetched page",
		logger.String("url", rawURL),
		logger.Int("status", resp.StatusCode),
		logger.Int("bytes", len(body)),
		logger.Duration("duration", time.Since(start)),
	)

	return &Page{
		URL:         rawURL,
		FinalURL:    resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// String implements fmt.Stringer for log output.
func (p *Page) String() string {
	return fmt.Sprintf("%s (%d, %d bytes)", p.URL, p.StatusCode, len(p.Body))
}
