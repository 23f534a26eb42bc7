package job_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/docscraper/internal/domain"
	"github.com/jonesrussell/docscraper/internal/job"
	"github.com/jonesrussell/docscraper/internal/metrics"
	"github.com/jonesrussell/docscraper/internal/report"
)

// blockingRunner runs until release is closed or the context is cancelled.
type blockingRunner struct {
	started chan string
	release chan struct{}
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{started: make(chan string, 1), release: make(chan struct{})}
}

func (r *blockingRunner) RunWithID(ctx context.Context, runID string) *domain.Report {
	r.started <- runID
	rep := &domain.Report{RunID: runID, StartedAt: time.Now(), MaxDownloads: 2}
	select {
	case <-r.release:
		rep.Stats.Downloaded = 2
		rep.CapReached = true
	case <-ctx.Done():
		rep.Cancelled = true
	}
	rep.FinishedAt = time.Now()
	return rep
}

type instantRunner struct{}

func (instantRunner) RunWithID(_ context.Context, runID string) *domain.Report {
	now := time.Now()
	return &domain.Report{RunID: runID, StartedAt: now, FinishedAt: now}
}

type fakeWriter struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (w *fakeWriter) Write(*domain.Report, report.Snapshot) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	return w.err
}

type fakeHistory struct {
	mu   sync.Mutex
	runs []string
}

func (h *fakeHistory) SaveRun(_ context.Context, r *domain.Report) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.runs = append(h.runs, r.RunID)
	return nil
}

func TestService_Run(t *testing.T) {
	t.Parallel()

	writer := &fakeWriter{}
	hist := &fakeHistory{}
	m := metrics.New(prometheus.NewRegistry())
	svc := job.NewService(job.ServiceParams{Runner: instantRunner{}, Writer: writer, History: hist, Metrics: m})

	r, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, r.RunID)
	assert.Equal(t, 1, writer.calls)
	assert.Equal(t, []string{r.RunID}, hist.runs)

	latest, ok := svc.Latest()
	require.True(t, ok)
	assert.Same(t, r, latest)

	_, running := svc.Current()
	assert.False(t, running)
	assert.InDelta(t, 1, testutil.ToFloat64(m.RunsTotal.WithLabelValues(job.OutcomeCompleted)), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(m.RunInProgress), 0)
}

func TestService_ReportWriteFailureIsRecorded(t *testing.T) {
	t.Parallel()

	svc := job.NewService(job.ServiceParams{Runner: instantRunner{}, Writer: &fakeWriter{err: errors.New("disk full")}})

	r, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, r.Failures, 1)
	assert.Equal(t, domain.StageReport, r.Failures[0].Stage)
	assert.Contains(t, r.Failures[0].Message, "disk full")
}

func TestService_OneRunAtATime(t *testing.T) {
	t.Parallel()

	runner := newBlockingRunner()
	svc := job.NewService(job.ServiceParams{Runner: runner})

	id, err := svc.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, id, <-runner.started)

	current, running := svc.Current()
	assert.True(t, running)
	assert.Equal(t, id, current)

	_, err = svc.Start(context.Background())
	require.ErrorIs(t, err, job.ErrRunInProgress)
	_, err = svc.Run(context.Background())
	require.ErrorIs(t, err, job.ErrRunInProgress)

	close(runner.release)
	svc.Stop()

	latest, ok := svc.Latest()
	require.True(t, ok)
	assert.Equal(t, id, latest.RunID)
	assert.True(t, latest.CapReached)

	_, running = svc.Current()
	assert.False(t, running)
}

func TestService_StartIsDetachedFromCallerContext(t *testing.T) {
	t.Parallel()

	runner := newBlockingRunner()
	svc := job.NewService(job.ServiceParams{Runner: runner})

	ctx, cancel := context.WithCancel(context.Background())
	_, err := svc.Start(ctx)
	require.NoError(t, err)
	<-runner.started
	cancel()

	_, running := svc.Current()
	assert.True(t, running, "cancelling the request context must not stop the run")

	svc.Stop()
	latest, ok := svc.Latest()
	require.True(t, ok)
	assert.True(t, latest.Cancelled, "Stop cancels the active run")
}
