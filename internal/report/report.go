// Package report writes the artifacts that describe a finished run: the
// human-readable manifest and a JSON snapshot of the configuration used.
package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/jonesrussell/docscraper/internal/domain"
	"github.com/jonesrussell/docscraper/internal/sources"
)

const (
	DefaultManifestFile = "downloaded_documents_list.txt"
	DefaultConfigFile   = "scraper_config.json"
	DefaultTitle        = "Downloaded Documents"

	snapshotDescription = "Keyword-filtered document scraper configuration"
	ruleWidth           = 80
)

// Snapshot is the configuration recorded next to the downloaded documents.
type Snapshot struct {
	Description      string               `json:"description"`
	RequiredKeywords []string             `json:"required_keywords"`
	SearchKeywords   []string             `json:"search_keywords"`
	SearchSources    []sources.SearchSpec `json:"search_sources"`
	DirectSources    []sources.DirectSpec `json:"direct_sources"`
	MaxDownloads     int                  `json:"max_downloads"`
}

// NewSnapshot builds a Snapshot with the default description.
func NewSnapshot(required, search []string, src sources.File, maxDownloads int) Snapshot {
	return Snapshot{
		Description:      snapshotDescription,
		RequiredKeywords: required,
		SearchKeywords:   search,
		SearchSources:    src.Search,
		DirectSources:    src.Direct,
		MaxDownloads:     maxDownloads,
	}
}

// Writer writes run artifacts into one directory.
type Writer struct {
	Dir          string
	ManifestFile string
	ConfigFile   string
	Title        string
}

// NewWriter returns a Writer for dir with default file names.
func NewWriter(dir string) *Writer {
	return &Writer{
		Dir:          dir,
		ManifestFile: DefaultManifestFile,
		ConfigFile:   DefaultConfigFile,
		Title:        DefaultTitle,
	}
}

// ManifestPath returns the manifest location.
func (w *Writer) ManifestPath() string {
	return filepath.Join(w.Dir, orDefault(w.ManifestFile, DefaultManifestFile))
}

// ConfigPath returns the configuration snapshot location.
func (w *Writer) ConfigPath() string {
	return filepath.Join(w.Dir, orDefault(w.ConfigFile, DefaultConfigFile))
}

// Write writes the manifest and the snapshot. Each write is attempted even if
// the other fails; the returned error joins every failure.
func (w *Writer) Write(r *domain.Report, snap Snapshot) error {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}

	var errs []error

	var manifest bytes.Buffer
	w.renderManifest(&manifest, r)
	if err := os.WriteFile(w.ManifestPath(), manifest.Bytes(), 0o644); err != nil {
		errs = append(errs, fmt.Errorf("write manifest: %w", err))
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		errs = append(errs, fmt.Errorf("encode config snapshot: %w", err))
	} else if writeErr := os.WriteFile(w.ConfigPath(), append(data, '\n'), 0o644); writeErr != nil {
		errs = append(errs, fmt.Errorf("write config snapshot: %w", writeErr))
	}

	return errors.Join(errs...)
}

func (w *Writer) renderManifest(buf *bytes.Buffer, r *domain.Report) {
	rule := strings.Repeat("=", ruleWidth)

	fmt.Fprintln(buf, orDefault(w.Title, DefaultTitle))
	fmt.Fprintln(buf, rule)
	fmt.Fprintf(buf, "Run ID: %s\n", r.RunID)
	fmt.Fprintf(buf, "Started: %s\n", r.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(buf, "Finished: %s\n", r.FinishedAt.Format(time.RFC3339))
	fmt.Fprintf(buf, "Total Downloaded: %d/%d\n", r.Stats.Downloaded, r.MaxDownloads)
	if r.Cancelled {
		fmt.Fprintln(buf, "Run was cancelled before completion.")
	}
	fmt.Fprintln(buf)

	for _, doc := range r.Documents {
		fmt.Fprintf(buf, "%d. %s\n", doc.Index, doc.Title)
		fmt.Fprintf(buf, "   URL: %s\n", doc.URL)
		fmt.Fprintf(buf, "   Source: %s\n", doc.SourceName)
		fmt.Fprintf(buf, "   Type: %s\n", doc.Kind)
		fmt.Fprintf(buf, "   Status: %s\n", doc.Status)
		if doc.Path != "" {
			fmt.Fprintf(buf, "   File: %s\n", doc.Path)
		}
		if doc.Error != "" {
			fmt.Fprintf(buf, "   Error: %s\n", doc.Error)
		}
		fmt.Fprintln(buf)
	}

	if len(r.Failures) == 0 {
		return
	}
	fmt.Fprintf(buf, "Failures (%d)\n", len(r.Failures))
	fmt.Fprintln(buf, strings.Repeat("-", ruleWidth))
	for _, f := range r.Failures {
		fmt.Fprintf(buf, "[%s/%s] %s %s: %s\n", f.Stage, f.Kind, f.SourceName, f.URL, f.Message)
	}
}

// RenderSummary prints run statistics and the downloaded documents as tables.
func RenderSummary(out io.Writer, r *domain.Report) {
	stats := table.NewWriter()
	stats.SetOutputMirror(out)
	stats.SetStyle(table.StyleLight)
	stats.SetTitle("Run " + r.RunID)
	stats.AppendHeader(table.Row{"Metric", "Value"})
	stats.AppendRows([]table.Row{
		{"Pages fetched", r.Stats.PagesFetched},
		{"Pages failed", r.Stats.PagesFailed},
		{"Links seen", r.Stats.LinksSeen},
		{"Rejected", r.Stats.Rejected},
		{"Duplicates", r.Stats.Duplicates},
		{"Accepted", r.Stats.Accepted},
		{"Downloaded", fmt.Sprintf("%d/%d", r.Stats.Downloaded, r.MaxDownloads)},
		{"Skipped", r.Stats.Skipped},
		{"Download failures", r.Stats.DownloadFailed},
		{"Bytes", r.Stats.BytesDownloaded},
		{"Duration", r.Duration().Round(time.Millisecond)},
	})
	stats.Render()

	docs := r.Downloaded()
	if len(docs) == 0 {
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Title", "Source", "Size", "File"})
	for _, doc := range docs {
		t.AppendRow(table.Row{doc.Index, doc.Title, doc.SourceName, doc.Size, filepath.Base(doc.Path)})
	}
	t.Render()
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
