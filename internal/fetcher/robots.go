package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

const (
	defaultRobotsCacheTTL = 24 * time.Hour
	robotsTxtPath         = "/robots.txt"
	maxRobotsBodyBytes    = 512 * 1024
)

// RobotsChecker checks and caches robots.txt rules per host.
type RobotsChecker struct {
	httpClient *http.Client
	userAgent  string
	timeout    time.Duration
	cacheTTL   time.Duration

	mu    sync.RWMutex
	cache map[string]*robotsEntry
}

type robotsEntry struct {
	data      *robotstxt.RobotsData
	fetchedAt time.Time
	allowAll  bool
}

// NewRobotsChecker creates a RobotsChecker. A zero cacheTTL means 24h.
func NewRobotsChecker(httpClient *http.Client, userAgent string, timeout, cacheTTL time.Duration) *RobotsChecker {
	if cacheTTL <= 0 {
		cacheTTL = defaultRobotsCacheTTL
	}
	return &RobotsChecker{
		httpClient: httpClient,
		userAgent:  userAgent,
		timeout:    timeout,
		cacheTTL:   cacheTTL,
		cache:      make(map[string]*robotsEntry),
	}
}

// IsAllowed reports whether rawURL may be fetched. A missing, unreadable or
// unparsable robots.txt allows everything.
func (r *RobotsChecker) IsAllowed(ctx context.Context, rawURL string) (bool, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false, fmt.Errorf("robots: parse url: %w", err)
	}

	host := strings.ToLower(parsed.Host)
	if host == "" {
		return false, fmt.Errorf("robots: empty host in url %q", rawURL)
	}

	entry := r.entry(ctx, host, parsed.Scheme)
	if entry.allowAll {
		return true, nil
	}

	path := parsed.EscapedPath()
	if parsed.RawQuery != "" {
		path += "?" + parsed.RawQuery
	}
	return entry.data.TestAgent(path, r.userAgent), nil
}

func (r *RobotsChecker) entry(ctx context.Context, host, scheme string) *robotsEntry {
	r.mu.RLock()
	cached, ok := r.cache[host]
	r.mu.RUnlock()
	if ok && time.Since(cached.fetchedAt) <= r.cacheTTL {
		return cached
	}

	if scheme == "" {
		scheme = "https"
	}
	entry := r.fetch(ctx, scheme+"://"+host+robotsTxtPath)

	r.mu.Lock()
	r.cache[host] = entry
	r.mu.Unlock()

	return entry
}

func (r *RobotsChecker) fetch(ctx context.Context, robotsURL string) *robotsEntry {
	allowAll := &robotsEntry{fetchedAt: time.Now(), allowAll: true}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, http.NoBody)
	if err != nil {
		return allowAll
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.httpClient.Do(req) //nolint:gosec // URL built from a configured source host
	if err != nil {
		return allowAll
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return allowAll
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBodyBytes))
	if err != nil {
		return allowAll
	}

	data, err := robotstxt.FromBytes(body)
	if err != nil {
		return allowAll
	}
	return &robotsEntry{data: data, fetchedAt: time.Now()}
}
