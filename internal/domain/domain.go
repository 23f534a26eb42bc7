// Package domain holds the value types shared by the scraping pipeline:
// candidates, accepted documents, failures and the per-run report.
package domain

import "time"

// DocumentKind is the manifest type label for accepted documents.
const DocumentKind = "PDF"

// Candidate is an anchor found on a fetched page, before filtering.
type Candidate struct {
	Title      string
	Href       string
	URL        string // resolved absolute URL, empty when Href cannot be resolved
	SourceName string
}

// DocumentStatus tracks what happened to an accepted document.
type DocumentStatus string

const (
	StatusPending    DocumentStatus = "pending"
	StatusDownloaded DocumentStatus = "downloaded"
	StatusSkipped    DocumentStatus = "skipped"
	StatusFailed     DocumentStatus = "failed"
)

// Document is a candidate that passed the filter and deduplication.
type Document struct {
	Index      int            `json:"index"`
	Title      string         `json:"title"`
	URL        string         `json:"url"`
	SourceName string         `json:"source"`
	Kind       string         `json:"type"`
	Status     DocumentStatus `json:"status"`
	Path       string         `json:"path,omitempty"`
	Size       int64          `json:"size,omitempty"`
	SHA256     string         `json:"sha256,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// Stage names the pipeline step where a failure occurred.
type Stage string

const (
	StageFetch    Stage = "fetch"
	StageParse    Stage = "parse"
	StageDownload Stage = "download"
	StageReport   Stage = "report"
)

// Failure is a non-fatal error recorded during a run.
type Failure struct {
	Stage      Stage  `json:"stage"`
	Kind       string `json:"kind"`
	SourceName string `json:"source"`
	URL        string `json:"url"`
	Message    string `json:"message"`
}

// Stats are the per-run counters.
type Stats struct {
	PagesFetched    int   `json:"pages_fetched"`
	PagesFailed     int   `json:"pages_failed"`
	LinksSeen       int   `json:"links_seen"`
	Rejected        int   `json:"rejected"`
	Duplicates      int   `json:"duplicates"`
	Accepted        int   `json:"accepted"`
	Downloaded      int   `json:"downloaded"`
	Skipped         int   `json:"skipped"`
	DownloadFailed  int   `json:"download_failed"`
	BytesDownloaded int64 `json:"bytes_downloaded"`
}

// Report is the outcome of a single run.
type Report struct {
	RunID        string     `json:"run_id"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   time.Time  `json:"finished_at"`
	MaxDownloads int        `json:"max_downloads"`
	Cancelled    bool       `json:"cancelled"`
	CapReached   bool       `json:"cap_reached"`
	Documents    []Document `json:"documents"`
	Failures     []Failure  `json:"failures"`
	Stats        Stats      `json:"stats"`
}

// Duration is the wall time of the run.
func (r *Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Downloaded returns the documents that were written during this run.
func (r *Report) Downloaded() []Document {
	out := make([]Document, 0, r.Stats.Downloaded)
	for _, d := range r.Documents {
		if d.Status == StatusDownloaded {
			out = append(out, d)
		}
	}
	return out
}
