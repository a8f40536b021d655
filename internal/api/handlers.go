package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/maltedev/catalog-scraper/internal/jobs"
)

type Handlers struct {
	jobs   *jobs.Manager
	logger *slog.Logger
}

func NewHandlers(jobs *jobs.Manager, logger *slog.Logger) *Handlers {
	return &Handlers{
		jobs:   jobs,
		logger: logger.With("component", "api"),
	}
}

// CreateRunRequest represents a new scrape run request. Omitted fields keep
// the server configuration.
type CreateRunRequest struct {
	MaxCategories int   `json:"max_categories"`
	MaxPages      int   `json:"max_pages"`
	Detailed      *bool `json:"detailed"`
	Priority      int   `json:"priority"`
}

// CreateRunResponse represents the run creation response
type CreateRunResponse struct {
	RunID   string `json:"run_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// CreateRun queues a new scrape run
func (h *Handlers) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.MaxCategories < 0 || req.MaxPages < 0 {
		h.respondError(w, http.StatusBadRequest, "max_categories and max_pages cannot be negative")
		return
	}

	job, err := h.jobs.CreateJob(jobs.RunParams{
		MaxCategories: req.MaxCategories,
		MaxPages:      req.MaxPages,
		Detailed:      req.Detailed,
		Priority:      req.Priority,
	})
	if err != nil {
		h.logger.Error("failed to create run", "error", err)
		h.respondError(w, http.StatusServiceUnavailable, "failed to create run")
		return
	}

	h.respondJSON(w, http.StatusAccepted, CreateRunResponse{
		RunID:   job.ID,
		Status:  job.Status,
		Message: "Run queued",
	})
}

// GetRun handles run status retrieval
func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.GetJob(chi.URLParam(r, "runID"))
	if err != nil {
		h.respondError(w, http.StatusNotFound, "run not found")
		return
	}

	h.respondJSON(w, http.StatusOK, job)
}

// ListRuns handles listing all runs
func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.jobs.ListJobs())
}

// GetRunProducts returns the products collected by a run
func (h *Handlers) GetRunProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.jobs.GetJobProducts(chi.URLParam(r, "runID"))
	if errors.Is(err, jobs.ErrJobNotFound) {
		h.respondError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to get run products", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to get products")
		return
	}

	h.respondJSON(w, http.StatusOK, products)
}

// GetStats handles statistics retrieval
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.jobs.GetStats())
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	stats := h.jobs.GetStats()
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"jobs": map[string]int{
			"pending": stats.PendingJobs,
			"running": stats.RunningJobs,
		},
	})
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
