package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/maltedev/catalog-scraper/internal/queue"
)

// StartWorker processes queued jobs one at a time until ctx is done or the
// queue is closed.
func (m *Manager) StartWorker(ctx context.Context) {
	m.logger.Info("job worker started")

	for {
		task, err := m.queue.Pop(ctx)
		if err != nil {
			if !errors.Is(err, queue.ErrQueueClosed) && ctx.Err() == nil {
				m.logger.Error("failed to take next job", "error", err)
			}
			m.logger.Info("job worker stopping")
			return
		}

		m.processJob(ctx, task.ID)
	}
}

func (m *Manager) processJob(ctx context.Context, jobID string) {
	job, err := m.GetJob(jobID)
	if err != nil {
		m.logger.Warn("queued job disappeared", "id", jobID)
		return
	}

	m.logger.Info("processing job", "id", jobID)
	m.update(jobID, func(j *Job) {
		now := time.Now().UTC()
		j.Status = StatusRunning
		j.StartedAt = &now
	})

	result, runErr := m.runner(ctx, job.Params)

	count := 0
	if result != nil {
		count = len(result.Products)

		m.mu.Lock()
		m.products[jobID] = result.Products
		m.mu.Unlock()

		if m.sink != nil {
			if err := m.sink.Store(context.WithoutCancel(ctx), result.Products, result.Stats); err != nil {
				m.logger.Error("failed to store job results", "id", jobID, "error", err)
			}
		}
	}

	m.update(jobID, func(j *Job) {
		now := time.Now().UTC()
		j.CompletedAt = &now
		if result != nil {
			j.Stats = result.Stats
			j.ProductCount = count
		}
		if runErr != nil {
			j.Status = StatusFailed
			j.Error = runErr.Error()
			return
		}
		j.Status = StatusCompleted
	})

	if runErr != nil {
		m.logger.Error("job failed", "id", jobID, "error", runErr)
		return
	}
	m.logger.Info("job completed", "id", jobID, "products", count)
}
