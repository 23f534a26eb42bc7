package scraper_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/docscraper/internal/domain"
	"github.com/jonesrussell/docscraper/internal/download"
	"github.com/jonesrussell/docscraper/internal/fetcher"
	"github.com/jonesrussell/docscraper/internal/filter"
	"github.com/jonesrussell/docscraper/internal/logger"
	"github.com/jonesrussell/docscraper/internal/scraper"
	"github.com/jonesrussell/docscraper/internal/sources"
)

// fakeFetcher serves canned HTML per URL and records every request.
type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	errs  map[string]error
	calls []string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{pages: map[string]string{}, errs: map[string]error{}}
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL string) (*fetcher.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, rawURL)
	if err, ok := f.errs[rawURL]; ok {
		return nil, err
	}
	body, ok := f.pages[rawURL]
	if !ok {
		return nil, &fetcher.FetchError{Kind: fetcher.KindStatus, URL: rawURL, StatusCode: 404}
	}
	return &fetcher.Page{URL: rawURL, FinalURL: rawURL, StatusCode: 200, Body: []byte(body)}, nil
}

func (f *fakeFetcher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// fakeDownloader succeeds unless the URL is listed in fail or skip.
type fakeDownloader struct {
	mu      sync.Mutex
	fail    map[string]bool
	skip    map[string]bool
	delay   time.Duration
	urls    []string
	active  atomic.Int32
	maxSeen atomic.Int32
}

func (d *fakeDownloader) Download(_ context.Context, rawURL, title string) (download.Result, error) {
	n := d.active.Add(1)
	defer d.active.Add(-1)
	for {
		seen := d.maxSeen.Load()
		if n <= seen || d.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	if d.delay > 0 {
		time.Sleep(d.delay)
	}

	d.mu.Lock()
	d.urls = append(d.urls, rawURL)
	d.mu.Unlock()

	if d.fail[rawURL] {
		return download.Result{}, &download.DownloadError{Kind: download.KindStream, URL: rawURL, Err: fmt.Errorf("connection reset")}
	}
	path := "/out/" + download.FileName(title, rawURL, ".pdf")
	if d.skip[rawURL] {
		return download.Result{Status: domain.StatusSkipped, Path: path}, nil
	}
	return download.Result{Status: domain.StatusDownloaded, Path: path, Size: 100, SHA256: "abc"}, nil
}

func (d *fakeDownloader) URLs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.urls...)
}

func page(links ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i+1 < len(links); i += 2 {
		fmt.Fprintf(&b, `<a href="%s">%s</a>`, links[i], links[i+1])
	}
	b.WriteString("</body></html>")
	return b.String()
}

func newFilter(t *testing.T) *filter.Filter {
	t.Helper()
	f, err := filter.New(filter.Config{Keywords: []string{"sql"}, Extensions: []string{".pdf"}, MinTitleLength: 4})
	require.NoError(t, err)
	return f
}

func newRegistry(t *testing.T, search []sources.SearchSource, direct []sources.DirectSource) *sources.Registry {
	t.Helper()
	reg, err := sources.NewRegistry(search, direct)
	require.NoError(t, err)
	return reg
}

func searchSource(name string) sources.SearchSource {
	return sources.SearchSource{
		Name: name, BaseURL: "https://" + name + ".test/", Templates: []string{"?q={keyword}"}, Enabled: true,
	}
}

func run(t *testing.T, reg *sources.Registry, f *fakeFetcher, d *fakeDownloader, s scraper.Settings) *domain.Report {
	t.Helper()
	c := scraper.New(scraper.Deps{
		Sources:    reg,
		Fetcher:    f,
		Filter:     newFilter(t),
		Downloader: d,
		Logger:     logger.NewNop(),
	}, s)
	return c.Run(context.Background())
}

func TestRun_CapStopsAfterFirstDownload(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher()
	f.pages["https://one.test/?q=sql"] = page("/a.pdf", "Intro to SQL")
	f.pages["https://two.test/?q=sql"] = page("/b.pdf", "Advanced SQL")
	d := &fakeDownloader{}

	reg := newRegistry(t, []sources.SearchSource{searchSource("one"), searchSource("two")}, nil)
	report := run(t, reg, f, d, scraper.Settings{MaxDownloads: 1, SearchKeywords: []string{"sql"}})

	assert.Equal(t, []string{"https://one.test/a.pdf"}, d.URLs())
	assert.Equal(t, 1, report.Stats.Downloaded)
	assert.True(t, report.CapReached)
	require.Len(t, report.Documents, 1)
	assert.Equal(t, domain.StatusDownloaded, report.Documents[0].Status)
}

func TestRun_FetchFailureIsIsolated(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher()
	f.errs["https://one.test/?q=sql"] = &fetcher.FetchError{Kind: fetcher.KindTimeout, URL: "https://one.test/?q=sql"}
	f.pages["https://two.test/?q=sql"] = page("/b.pdf", "Advanced SQL")
	d := &fakeDownloader{}

	reg := newRegistry(t, []sources.SearchSource{searchSource("one"), searchSource("two")}, nil)
	report := run(t, reg, f, d, scraper.Settings{MaxDownloads: 5, SearchKeywords: []string{"sql"}})

	assert.Equal(t, 1, report.Stats.PagesFailed)
	assert.Equal(t, 1, report.Stats.Downloaded)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, domain.StageFetch, report.Failures[0].Stage)
	assert.Equal(t, string(fetcher.KindTimeout), report.Failures[0].Kind)
	assert.Equal(t, "one", report.Failures[0].SourceName)
	for _, doc := range report.Documents {
		assert.NotEqual(t, "one", doc.SourceName)
	}
}

func TestRun_TaskOrder(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher()
	src := searchSource("one")
	src.Templates = []string{"?q={keyword}", "search/{keyword}"}
	off := searchSource("off")
	off.Enabled = false

	reg := newRegistry(t,
		[]sources.SearchSource{src, off},
		[]sources.DirectSource{{Name: "page", URL: "https://page.test/docs", Enabled: true}},
	)
	run(t, reg, f, &fakeDownloader{}, scraper.Settings{MaxDownloads: 5, SearchKeywords: []string{"sql", "python"}})

	assert.Equal(t, []string{
		"https://one.test/?q=sql",
		"https://one.test/search/sql",
		"https://one.test/?q=python",
		"https://one.test/search/python",
		"https://page.test/docs",
	}, f.Calls())
}

func TestRun_DeduplicatesAcrossPages(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher()
	f.pages["https://one.test/?q=sql"] = page("https://cdn.test/a.pdf", "Intro to SQL", "https://cdn.test/a.pdf#p2", "Intro to SQL again")
	f.pages["https://page.test/docs"] = page("https://CDN.test/a.pdf", "SQL handbook", "/c.pdf", "SQL cheat sheet")
	d := &fakeDownloader{}

	reg := newRegistry(t,
		[]sources.SearchSource{searchSource("one")},
		[]sources.DirectSource{{Name: "page", URL: "https://page.test/docs", Enabled: true}},
	)
	report := run(t, reg, f, d, scraper.Settings{MaxDownloads: 10, SearchKeywords: []string{"sql"}})

	assert.Equal(t, 2, report.Stats.Duplicates)
	require.Len(t, report.Documents, 2)
	assert.Equal(t, "https://cdn.test/a.pdf", report.Documents[0].URL)
	assert.Equal(t, "https://page.test/c.pdf", report.Documents[1].URL)
	assert.Equal(t, 1, report.Documents[0].Index)
	assert.Equal(t, 2, report.Documents[1].Index)
}

func TestRun_FailedAndSkippedDownloadsDoNotCount(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher()
	f.pages["https://one.test/?q=sql"] = page(
		"/bad.pdf", "Broken SQL",
		"/old.pdf", "Existing SQL",
		"/good.pdf", "Good SQL",
		"/more.pdf", "More SQL",
	)
	d := &fakeDownloader{
		fail: map[string]bool{"https://one.test/bad.pdf": true},
		skip: map[string]bool{"https://one.test/old.pdf": true},
	}

	reg := newRegistry(t, []sources.SearchSource{searchSource("one")}, nil)
	report := run(t, reg, f, d, scraper.Settings{MaxDownloads: 1, SearchKeywords: []string{"sql"}})

	assert.Equal(t, []string{"https://one.test/bad.pdf", "https://one.test/old.pdf", "https://one.test/good.pdf"}, d.URLs())
	assert.Equal(t, 1, report.Stats.Downloaded)
	assert.Equal(t, 1, report.Stats.DownloadFailed)
	assert.Equal(t, 1, report.Stats.Skipped)

	require.Len(t, report.Documents, 3)
	assert.Equal(t, domain.StatusFailed, report.Documents[0].Status)
	assert.NotEmpty(t, report.Documents[0].Error)
	assert.Equal(t, domain.StatusSkipped, report.Documents[1].Status)
	assert.Equal(t, domain.StatusDownloaded, report.Documents[2].Status)

	require.Len(t, report.Failures, 1)
	assert.Equal(t, domain.StageDownload, report.Failures[0].Stage)
	assert.Equal(t, string(download.KindStream), report.Failures[0].Kind)
}

func TestRun_ConcurrentRespectsCapAndDedup(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher()
	keywords := make([]string, 0, 12)
	for i := range 12 {
		kw := fmt.Sprintf("sql%d", i)
		keywords = append(keywords, kw)
		f.pages["https://one.test/?q="+kw] = page(
			fmt.Sprintf("/doc-%d.pdf", i), fmt.Sprintf("SQL volume %d", i),
			"/shared.pdf", "Shared SQL notes",
		)
	}
	d := &fakeDownloader{delay: 5 * time.Millisecond}

	reg := newRegistry(t, []sources.SearchSource{searchSource("one")}, nil)
	report := run(t, reg, f, d, scraper.Settings{MaxDownloads: 5, Concurrency: 4, SearchKeywords: keywords})

	assert.Equal(t, 5, report.Stats.Downloaded)
	assert.Len(t, d.URLs(), 5, "no download may start once the cap is fully reserved")
	assert.LessOrEqual(t, d.maxSeen.Load(), int32(5))

	seen := map[string]bool{}
	for _, doc := range report.Documents {
		assert.False(t, seen[doc.URL], "duplicate document %s", doc.URL)
		seen[doc.URL] = true
	}
}

func TestRun_CancelledContext(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher()
	reg := newRegistry(t, []sources.SearchSource{searchSource("one")}, nil)
	c := scraper.New(scraper.Deps{
		Sources: reg, Fetcher: f, Filter: newFilter(t), Downloader: &fakeDownloader{},
	}, scraper.Settings{MaxDownloads: 3, SearchKeywords: []string{"sql"}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := c.Run(ctx)
	assert.True(t, report.Cancelled)
	assert.Empty(t, f.Calls())
	assert.NotEmpty(t, report.RunID)
}
