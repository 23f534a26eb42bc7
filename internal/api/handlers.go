package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonesrussell/docscraper/internal/domain"
	"github.com/jonesrussell/docscraper/internal/history"
	"github.com/jonesrussell/docscraper/internal/job"
	"github.com/jonesrussell/docscraper/internal/sources"
)

const defaultRunsLimit = 20

// RunService starts runs and reports on them.
type RunService interface {
	Start(ctx context.Context) (string, error)
	Current() (string, bool)
	Latest() (*domain.Report, bool)
}

// HistoryReader reads stored runs.
type HistoryReader interface {
	ListRuns(ctx context.Context, limit int) ([]history.Run, error)
	Documents(ctx context.Context, runID string) ([]domain.Document, error)
}

// Handler serves the API routes.
type Handler struct {
	runs     RunService
	history  HistoryReader
	sources  *sources.Registry
	gatherer prometheus.Gatherer
	version  string
}

// HandlerParams holds parameters for creating a Handler. History is optional.
type HandlerParams struct {
	Runs     RunService
	History  HistoryReader
	Sources  *sources.Registry
	Gatherer prometheus.Gatherer
	Version  string
}

// NewHandler creates a Handler.
func NewHandler(p HandlerParams) *Handler {
	return &Handler{
		runs:     p.Runs,
		history:  p.History,
		sources:  p.Sources,
		gatherer: p.Gatherer,
		version:  p.Version,
	}
}

// Register adds the routes to r.
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/health", h.health)
	if h.gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))
	}

	v1 := r.Group("/api/v1")
	v1.GET("/sources", h.listSources)
	v1.POST("/runs", h.startRun)
	v1.GET("/runs", h.listRuns)
	v1.GET("/runs/latest", h.latestRun)
	v1.GET("/runs/:id/documents", h.runDocuments)
}

func (h *Handler) health(c *gin.Context) {
	current, running := h.runs.Current()
	body := gin.H{"status": "healthy", "version": h.version, "running": running}
	if running {
		body["run_id"] = current
	}
	c.JSON(http.StatusOK, body)
}

func (h *Handler) listSources(c *gin.Context) {
	c.JSON(http.StatusOK, h.sources.Spec())
}

func (h *Handler) startRun(c *gin.Context) {
	id, err := h.runs.Start(c.Request.Context())
	if errors.Is(err, job.ErrRunInProgress) {
		current, _ := h.runs.Current()
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "run_id": current})
		return
	}
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start run"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"run_id": id, "status": "started"})
}

func (h *Handler) latestRun(c *gin.Context) {
	r, ok := h.runs.Latest()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no run has finished yet"})
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *Handler) listRuns(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run history is disabled"})
		return
	}

	limit := defaultRunsLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	runs, err := h.history.ListRuns(c.Request.Context(), limit)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list runs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs)})
}

func (h *Handler) runDocuments(c *gin.Context) {
	id := c.Param("id")

	if latest, ok := h.runs.Latest(); ok && latest.RunID == id {
		c.JSON(http.StatusOK, gin.H{"run_id": id, "documents": latest.Documents})
		return
	}
	if h.history == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}

	docs, err := h.history.Documents(c.Request.Context(), id)
	if errors.Is(err, history.ErrRunNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load documents"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"run_id": id, "documents": docs})
}
