// Package job runs scrapes one at a time and keeps the latest report.
package job

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/jonesrussell/docscraper/internal/domain"
	"github.com/jonesrussell/docscraper/internal/logger"
	"github.com/jonesrussell/docscraper/internal/metrics"
	"github.com/jonesrussell/docscraper/internal/report"
)

// ErrRunInProgress is returned when a run is requested while another is active.
var ErrRunInProgress = errors.New("a run is already in progress")

// Run outcomes recorded in metrics.
const (
	OutcomeCompleted  = "completed"
	OutcomeCapReached = "cap_reached"
	OutcomeCancelled  = "cancelled"
)

// Runner executes one scrape.
type Runner interface {
	RunWithID(ctx context.Context, runID string) *domain.Report
}

// ReportWriter persists run artifacts.
type ReportWriter interface {
	Write(r *domain.Report, snap report.Snapshot) error
}

// HistoryStore records finished runs.
type HistoryStore interface {
	SaveRun(ctx context.Context, r *domain.Report) error
}

// ServiceParams holds parameters for creating a Service.
type ServiceParams struct {
	Runner   Runner
	Writer   ReportWriter
	History  HistoryStore // optional
	Snapshot report.Snapshot
	Metrics  *metrics.Metrics
	Logger   logger.Logger
}

// Service serializes runs.
type Service struct {
	runner   Runner
	writer   ReportWriter
	history  HistoryStore
	snapshot report.Snapshot
	metrics  *metrics.Metrics
	logger   logger.Logger

	mu      sync.Mutex
	current string
	cancel  context.CancelFunc
	latest  *domain.Report
	wg      sync.WaitGroup
}

// NewService creates a Service.
func NewService(p ServiceParams) *Service {
	log := p.Logger
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{
		runner:   p.Runner,
		writer:   p.Writer,
		history:  p.History,
		snapshot: p.Snapshot,
		metrics:  p.Metrics,
		logger:   log,
	}
}

// Run executes a scrape and blocks until it finishes.
func (s *Service) Run(ctx context.Context) (*domain.Report, error) {
	runID, runCtx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	return s.execute(runCtx, runID), nil
}

// Start launches a scrape in the background and returns its run id. The run
// is detached from ctx's cancellation; use Stop to cancel it.
func (s *Service) Start(ctx context.Context) (string, error) {
	runID, runCtx, err := s.begin(context.WithoutCancel(ctx))
	if err != nil {
		return "", err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.execute(runCtx, runID)
	}()
	return runID, nil
}

// Stop cancels the active run, if any, and waits for background runs to finish.
func (s *Service) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// Current returns the id of the active run.
func (s *Service) Current() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.current != ""
}

// Latest returns the most recently finished report.
func (s *Service) Latest() (*domain.Report, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest, s.latest != nil
}

func (s *Service) begin(ctx context.Context) (string, context.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != "" {
		return "", nil, ErrRunInProgress
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.current = uuid.NewString()
	s.cancel = cancel
	return s.current, runCtx, nil
}

func (s *Service) execute(ctx context.Context, runID string) *domain.Report {
	log := s.logger.With(logger.String("run_id", runID))
	s.metrics.RunStarted()

	r := s.runner.RunWithID(ctx, runID)

	if s.writer != nil {
		if err := s.writer.Write(r, s.snapshot); err != nil {
			r.Failures = append(r.Failures, domain.Failure{
				Stage: domain.StageReport, Kind: "filesystem", Message: err.Error(),
			})
			s.metrics.Failure(string(domain.StageReport), "filesystem")
			log.Error("Failed to write run report", logger.Error(err))
		}
	}

	if s.history != nil {
		// The run context may be cancelled; the summary is still worth keeping.
		if err := s.history.SaveRun(context.WithoutCancel(ctx), r); err != nil {
			log.Error("Failed to save run history", logger.Error(err))
		}
	}

	s.metrics.RunFinished(outcome(r), r.Duration(), r.FinishedAt)

	s.mu.Lock()
	s.latest = r
	s.current = ""
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()

	log.Info("Run complete",
		logger.String("outcome", outcome(r)),
		logger.Int("downloaded", r.Stats.Downloaded),
		logger.Int("failures", len(r.Failures)),
	)
	return r
}

func outcome(r *domain.Report) string {
	switch {
	case r.Cancelled:
		return OutcomeCancelled
	case r.CapReached:
		return OutcomeCapReached
	default:
		return OutcomeCompleted
	}
}
