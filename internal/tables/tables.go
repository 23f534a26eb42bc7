// Package tables extracts HTML tables from a page and writes them as CSV files
// or as sheets of one XLSX workbook.
package tables

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/jonesrussell/docscraper/internal/logger"
)

// ErrNoTables is returned by writers given an empty table list.
var ErrNoTables = errors.New("no tables to write")

// Table is one extracted HTML table.
type Table struct {
	Name    string
	Headers []string
	Rows    [][]string
}

// Width is the number of columns: the header count, or the widest row.
func (t Table) Width() int {
	w := len(t.Headers)
	for _, row := range t.Rows {
		w = max(w, len(row))
	}
	return w
}

// Config configures a Scraper.
type Config struct {
	UserAgent        string
	Timeout          time.Duration
	RespectRobotsTxt bool
	MaxBodyBytes     int
}

// Scraper fetches a page and extracts every table on it.
type Scraper struct {
	cfg Config
	log logger.Logger
}

// New creates a Scraper.
func New(cfg Config, log logger.Logger) *Scraper {
	if log == nil {
		log = logger.NewNop()
	}
	return &Scraper{cfg: cfg, log: log}
}

// Scrape fetches pageURL and returns its tables in document order.
func (s *Scraper) Scrape(ctx context.Context, pageURL string) ([]Table, error) {
	opts := []colly.CollectorOption{
		colly.StdlibContext(ctx),
		colly.AllowURLRevisit(),
	}
	if s.cfg.UserAgent != "" {
		opts = append(opts, colly.UserAgent(s.cfg.UserAgent))
	}
	if s.cfg.MaxBodyBytes > 0 {
		opts = append(opts, colly.MaxBodySize(s.cfg.MaxBodyBytes))
	}
	c := colly.NewCollector(opts...)
	c.IgnoreRobotsTxt = !s.cfg.RespectRobotsTxt
	if s.cfg.Timeout > 0 {
		c.SetRequestTimeout(s.cfg.Timeout)
	}

	var tables []Table
	var scrapeErr error
	names := newNamer()

	c.OnHTML("table", func(e *colly.HTMLElement) {
		t := parseTable(e.DOM, len(tables))
		t.Name = names.unique(t.Name)
		tables = append(tables, t)
	})
	c.OnError(func(r *colly.Response, err error) {
		scrapeErr = fmt.Errorf("fetch %s: status %d: %w", r.Request.URL, r.StatusCode, err)
	})

	if err := c.Visit(pageURL); err != nil {
		return nil, fmt.Errorf("visit %s: %w", pageURL, err)
	}
	c.Wait()
	if scrapeErr != nil {
		return nil, scrapeErr
	}

	s.log.Info("Tables extracted", logger.String("url", pageURL), logger.Int("tables", len(tables)))
	return tables, nil
}

// parseTable reads one table. The first row supplies headers from its th
// cells and is never treated as data; empty rows are dropped.
func parseTable(sel *goquery.Selection, index int) Table {
	t := Table{Name: fmt.Sprintf("table_%d", index)}
	if caption := sel.Find("caption").First(); caption.Length() > 0 {
		if name := SanitizeName(caption.Text()); name != "" {
			t.Name = name
		}
	}

	rows := sel.Find("tr")
	var headers []string
	rows.First().Find("th").Each(func(_ int, th *goquery.Selection) {
		headers = append(headers, strings.TrimSpace(th.Text()))
	})

	rows.Slice(1, goquery.ToEnd).Each(func(_ int, tr *goquery.Selection) {
		var cells []string
		nonEmpty := false
		tr.Find("td, th").Each(func(_ int, cell *goquery.Selection) {
			text := strings.TrimSpace(cell.Text())
			nonEmpty = nonEmpty || text != ""
			cells = append(cells, text)
		})
		if nonEmpty {
			t.Rows = append(t.Rows, cells)
		}
	})

	if len(t.Rows) == 0 {
		return t
	}
	t.Headers = fitHeaders(headers, t.Rows)
	return t
}

// fitHeaders pads headers with Column_<i> up to the widest row, or trims them.
func fitHeaders(headers []string, rows [][]string) []string {
	if len(headers) == 0 {
		return nil
	}
	width := 0
	for _, row := range rows {
		width = max(width, len(row))
	}
	if len(headers) >= width {
		return headers[:width]
	}
	out := append([]string(nil), headers...)
	for i := len(headers); i < width; i++ {
		out = append(out, fmt.Sprintf("Column_%d", i))
	}
	return out
}

// SanitizeName keeps letters, digits, space, '_' and '-', trims, and turns
// spaces into underscores.
func SanitizeName(raw string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '_' || r == '-' {
			b.WriteRune(r)
		}
	}
	return strings.ReplaceAll(strings.TrimSpace(b.String()), " ", "_")
}

// namer hands out unique names by suffixing repeats with _2, _3 and so on.
type namer map[string]int

func newNamer() namer { return namer{} }

func (n namer) unique(name string) string {
	n[name]++
	if n[name] == 1 {
		return name
	}
	for {
		candidate := fmt.Sprintf("%s_%d", name, n[name])
		if _, taken := n[candidate]; !taken {
			n[candidate] = 1
			return candidate
		}
		n[name]++
	}
}
