package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/catalog-scraper/internal/models"
	"github.com/maltedev/catalog-scraper/internal/queue"
	"github.com/maltedev/catalog-scraper/internal/scraper"
	"github.com/maltedev/catalog-scraper/internal/storage"
)

var ErrJobNotFound = errors.New("job not found")

const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// RunParams override the configured limits for a single run. Zero values
// keep the configuration.
type RunParams struct {
	MaxCategories int   `json:"max_categories,omitempty"`
	MaxPages      int   `json:"max_pages,omitempty"`
	Detailed      *bool `json:"detailed,omitempty"`
	Priority      int   `json:"priority,omitempty"`
}

// Runner executes one scrape with the given overrides.
type Runner func(ctx context.Context, params RunParams) (*scraper.Result, error)

// Job represents a queued or finished scrape run
type Job struct {
	ID           string           `json:"id"`
	Status       string           `json:"status"`
	Params       RunParams        `json:"params"`
	ProductCount int              `json:"product_count"`
	Stats        *models.RunStats `json:"stats,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	StartedAt    *time.Time       `json:"started_at,omitempty"`
	CompletedAt  *time.Time       `json:"completed_at,omitempty"`
	Error        string           `json:"error,omitempty"`
}

// Stats represents job statistics
type Stats struct {
	TotalJobs     int     `json:"total_jobs"`
	PendingJobs   int     `json:"pending_jobs"`
	RunningJobs   int     `json:"running_jobs"`
	CompletedJobs int     `json:"completed_jobs"`
	FailedJobs    int     `json:"failed_jobs"`
	TotalProducts int     `json:"total_products"`
	SuccessRate   float64 `json:"success_rate"`
}

// Manager keeps jobs and their products in memory and feeds them to a worker
// through a priority queue.
type Manager struct {
	mu       sync.RWMutex
	jobs     map[string]*Job
	products map[string][]*models.ProductRecord

	queue  queue.Queue
	runner Runner
	sink   storage.Sink
	logger *slog.Logger
}

func NewManager(runner Runner, sink storage.Sink, q queue.Queue, logger *slog.Logger) *Manager {
	if q == nil {
		q = queue.NewInMemoryQueue()
	}
	return &Manager{
		jobs:     make(map[string]*Job),
		products: make(map[string][]*models.ProductRecord),
		queue:    q,
		runner:   runner,
		sink:     sink,
		logger:   logger.With("component", "job_manager"),
	}
}

// CreateJob queues a new run.
func (m *Manager) CreateJob(params RunParams) (*Job, error) {
	job := &Job{
		ID:        uuid.New().String(),
		Status:    StatusPending,
		Params:    params,
		CreatedAt: time.Now().UTC(),
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()

	if err := m.queue.Push(&queue.Task{ID: job.ID, Priority: params.Priority, CreatedAt: job.CreatedAt}); err != nil {
		m.mu.Lock()
		delete(m.jobs, job.ID)
		m.mu.Unlock()
		return nil, fmt.Errorf("failed to queue job: %w", err)
	}

	m.logger.Info("job created", "id", job.ID, "priority", params.Priority)
	return m.snapshot(job), nil
}

// GetJob retrieves a job by ID
func (m *Manager) GetJob(jobID string) (*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	return m.snapshot(job), nil
}

// ListJobs returns all jobs, newest first.
func (m *Manager) ListJobs() []*Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]*Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, m.snapshot(job))
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs
}

// GetJobProducts returns the products collected by a job.
func (m *Manager) GetJobProducts(jobID string) ([]*models.ProductRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.jobs[jobID]; !ok {
		return nil, ErrJobNotFound
	}
	products := m.products[jobID]
	if products == nil {
		return []*models.ProductRecord{}, nil
	}
	return products, nil
}

func (m *Manager) GetStats() *Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &Stats{TotalJobs: len(m.jobs)}
	for id, job := range m.jobs {
		switch job.Status {
		case StatusPending:
			stats.PendingJobs++
		case StatusRunning:
			stats.RunningJobs++
		case StatusCompleted:
			stats.CompletedJobs++
		case StatusFailed:
			stats.FailedJobs++
		}
		stats.TotalProducts += len(m.products[id])
	}

	if finished := stats.CompletedJobs + stats.FailedJobs; finished > 0 {
		stats.SuccessRate = float64(stats.CompletedJobs) / float64(finished) * 100
	}
	return stats
}

func (m *Manager) Close() error {
	return m.queue.Close()
}

// snapshot copies a job so callers never observe later updates. Callers hold
// m.mu.
func (m *Manager) snapshot(job *Job) *Job {
	c := *job
	return &c
}

func (m *Manager) update(jobID string, fn func(job *Job)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if job, ok := m.jobs[jobID]; ok {
		fn(job)
	}
}
