package scraper

import (
	"sync"

	"github.com/jonesrussell/docscraper/internal/dedup"
	"github.com/jonesrussell/docscraper/internal/domain"
	"github.com/jonesrussell/docscraper/internal/download"
)

// RunState is the mutable state of one run. All methods are safe for concurrent use.
//
// The download cap is enforced with reservations: a slot is reserved before a
// download starts and either committed (successful download) or released. The
// number of committed downloads therefore never exceeds the cap, even with
// downloads in flight.
type RunState struct {
	mu   sync.Mutex
	cond *sync.Cond

	maxDownloads int
	downloaded   int
	inFlight     int

	seen     *dedup.Set
	docs     []domain.Document
	failures []domain.Failure
	stats    domain.Stats
}

// NewRunState creates the state for a run capped at maxDownloads.
func NewRunState(maxDownloads int) *RunState {
	s := &RunState{
		maxDownloads: maxDownloads,
		seen:         dedup.NewSet(),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// CapReached reports whether the download cap has been met.
func (s *RunState) CapReached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.downloaded >= s.maxDownloads
}

// Downloaded returns the number of confirmed downloads.
func (s *RunState) Downloaded() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.downloaded
}

// Reserve claims a download slot. While every remaining slot is held by an
// in-flight download it waits for one to finish. It returns false once the
// cap has been reached.
func (s *RunState) Reserve() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for s.downloaded < s.maxDownloads && s.downloaded+s.inFlight >= s.maxDownloads {
		s.cond.Wait()
	}
	if s.downloaded >= s.maxDownloads {
		return false
	}
	s.inFlight++
	return true
}

// Accept records c as a document if its URL has not been seen in this run.
// It returns the document's position and whether it was added.
func (s *RunState) Accept(c domain.Candidate) (int, bool) {
	if !s.seen.Add(c.URL) {
		s.mu.Lock()
		s.stats.Duplicates++
		s.mu.Unlock()
		return -1, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := len(s.docs)
	s.docs = append(s.docs, domain.Document{
		Index:      idx + 1,
		Title:      c.Title,
		URL:        c.URL,
		SourceName: c.SourceName,
		Kind:       domain.DocumentKind,
		Status:     domain.StatusPending,
	})
	s.stats.Accepted++
	return idx, true
}

// Complete settles the reservation for docs[idx] with a download outcome.
// Only StatusDownloaded counts toward the cap.
func (s *RunState) Complete(idx int, res download.Result, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.cond.Broadcast()

	s.inFlight--
	doc := &s.docs[idx]
	doc.Path = res.Path

	switch {
	case err != nil:
		doc.Status = domain.StatusFailed
		doc.Error = err.Error()
		s.stats.DownloadFailed++
	case res.Status == domain.StatusDownloaded:
		doc.Status = domain.StatusDownloaded
		doc.Size = res.Size
		doc.SHA256 = res.SHA256
		s.downloaded++
		s.stats.Downloaded++
		s.stats.BytesDownloaded += res.Size
	default:
		doc.Status = domain.StatusSkipped
		s.stats.Skipped++
	}
}

// Release returns a reserved slot that was not used for a download.
func (s *RunState) Release() {
	s.mu.Lock()
	s.inFlight--
	s.mu.Unlock()
	s.cond.Broadcast()
}

// RecordFailure appends a non-fatal failure.
func (s *RunState) RecordFailure(f domain.Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, f)
}

func (s *RunState) pageFetched(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ok {
		s.stats.PagesFetched++
	} else {
		s.stats.PagesFailed++
	}
}

func (s *RunState) linkSeen(accepted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.LinksSeen++
	if !accepted {
		s.stats.Rejected++
	}
}

// Snapshot returns copies of the documents, failures and stats.
func (s *RunState) Snapshot() ([]domain.Document, []domain.Failure, domain.Stats) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := append([]domain.Document(nil), s.docs...)
	failures := append([]domain.Failure(nil), s.failures...)
	return docs, failures, s.stats
}
