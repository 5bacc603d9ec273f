package jobs

import (
	"MediaVault/config"
	"MediaVault/internal/repo"
	"MediaVault/model"
	"context"
	"log"
	"sync"

	"golang.org/x/time/rate"
)

// Hard system caps bounding resource usage regardless of configuration.
const (
	maxQueueLimit  = 50
	maxConcurrency = 8
)

func queueLimit() int {
	limit := config.AppConfig.JobQueueLimit
	if limit <= 0 {
		limit = 1
	}
	if limit > maxQueueLimit {
		limit = maxQueueLimit
	}
	return limit
}

func workerConcurrency() int {
	n := config.AppConfig.JobConcurrency
	if n <= 0 {
		n = 1
	}
	if n > maxConcurrency {
		n = maxConcurrency
	}
	return n
}

func newJobLimiter() *rate.Limiter {
	burst := config.AppConfig.JobBurst
	if burst <= 0 {
		burst = 1
	}
	if config.AppConfig.JobRate <= 0 {
		return rate.NewLimiter(rate.Inf, burst)
	}
	return rate.NewLimiter(rate.Limit(config.AppConfig.JobRate), burst)
}

// RunBatch drains up to queueLimit of the oldest queued jobs with a small
// fixed-size worker pool. Each worker pulls the next job from the shared
// queue until it is empty; no two workers touch the same job.
func RunBatch(ctx context.Context) int {
	var queued []model.Job
	if err := repo.Db.
		Where("status = ?", model.JobQueued).
		Order("created_at asc").
		Limit(queueLimit()).
		Find(&queued).Error; err != nil {
		log.Printf("job batch select failed: %v", err)
		return 0
	}
	if len(queued) == 0 {
		return 0
	}

	jobCh := make(chan uint64, len(queued))
	for _, job := range queued {
		jobCh <- job.ID
	}
	close(jobCh)

	limiter := newJobLimiter()
	var wg sync.WaitGroup
	var mu sync.Mutex
	processed := 0
	for i := 0; i < workerConcurrency(); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for jobID := range jobCh {
				if err := limiter.Wait(ctx); err != nil {
					return
				}
				ProcessJob(ctx, jobID)
				mu.Lock()
				processed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return processed
}
