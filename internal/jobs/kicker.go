package jobs

import (
	"context"
	"log"
	"sync"
)

// Kicker coalesces "new work arrived" signals into at most one active drain
// loop per process. It is constructed once at startup and injected where
// needed; callers fire and never wait.
type Kicker struct {
	mu      sync.Mutex
	pending map[uint64]struct{}
	batch   bool
	active  bool

	runOne   func(ctx context.Context, jobID uint64)
	runBatch func(ctx context.Context) int

	// closed each time a drain loop exits; tests use it to wait.
	idle chan struct{}
}

// NewKicker builds a kicker over the given job executors.
func NewKicker(runOne func(ctx context.Context, jobID uint64), runBatch func(ctx context.Context) int) *Kicker {
	return &Kicker{
		pending:  make(map[uint64]struct{}),
		runOne:   runOne,
		runBatch: runBatch,
		idle:     make(chan struct{}),
	}
}

// Kick schedules one specific job. If no drain loop is active, this call
// starts one; otherwise the running loop picks the id up before exiting.
func (k *Kicker) Kick(ctx context.Context, jobID uint64) {
	k.mu.Lock()
	k.pending[jobID] = struct{}{}
	k.startLocked(ctx)
	k.mu.Unlock()
}

// KickBatch schedules one batch pass over the queued jobs.
func (k *Kicker) KickBatch(ctx context.Context) {
	k.mu.Lock()
	k.batch = true
	k.startLocked(ctx)
	k.mu.Unlock()
}

func (k *Kicker) startLocked(ctx context.Context) {
	if k.active {
		return
	}
	k.active = true
	go k.drain(ctx)
}

// drain processes pending ids first, then one batch if requested. Work that
// arrived while draining reschedules the loop instead of being missed.
func (k *Kicker) drain(ctx context.Context) {
	processed := 0
	for {
		k.mu.Lock()
		ids := make([]uint64, 0, len(k.pending))
		for id := range k.pending {
			ids = append(ids, id)
		}
		k.pending = make(map[uint64]struct{})
		batch := k.batch
		k.batch = false
		if len(ids) == 0 && !batch {
			k.active = false
			idle := k.idle
			k.idle = make(chan struct{})
			k.mu.Unlock()
			if processed > 0 {
				log.Printf("job runner drained %d jobs", processed)
			}
			close(idle)
			return
		}
		k.mu.Unlock()

		for _, id := range ids {
			if ctx.Err() != nil {
				break
			}
			k.runOne(ctx, id)
			processed++
		}
		if batch && ctx.Err() == nil {
			processed += k.runBatch(ctx)
		}
	}
}

// Wait blocks until the current drain loop (if any) finishes. Pending kicks
// issued before Wait is called are always observed.
func (k *Kicker) Wait() {
	k.mu.Lock()
	if !k.active {
		k.mu.Unlock()
		return
	}
	idle := k.idle
	k.mu.Unlock()
	<-idle
}
