package jobs

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"
)

type kickRecorder struct {
	mu      sync.Mutex
	ids     []uint64
	batches int
}

func (r *kickRecorder) runOne(ctx context.Context, jobID uint64) {
	r.mu.Lock()
	r.ids = append(r.ids, jobID)
	r.mu.Unlock()
}

func (r *kickRecorder) runBatch(ctx context.Context) int {
	r.mu.Lock()
	r.batches++
	r.mu.Unlock()
	return 0
}

func (r *kickRecorder) snapshot() ([]uint64, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]uint64, len(r.ids))
	copy(ids, r.ids)
	return ids, r.batches
}

func TestKickRunsJob(t *testing.T) {
	rec := &kickRecorder{}
	kicker := NewKicker(rec.runOne, rec.runBatch)

	kicker.Kick(context.Background(), 42)
	kicker.Wait()

	ids, batches := rec.snapshot()
	if len(ids) != 1 || ids[0] != 42 {
		t.Fatalf("expected job 42 to run once, got %v", ids)
	}
	if batches != 0 {
		t.Fatalf("no batch requested, got %d", batches)
	}
}

func TestKickCoalescesDuplicates(t *testing.T) {
	rec := &kickRecorder{}
	started := make(chan struct{})
	release := make(chan struct{})
	first := true
	kicker := NewKicker(func(ctx context.Context, jobID uint64) {
		if first {
			first = false
			close(started)
			<-release
		}
		rec.runOne(ctx, jobID)
	}, rec.runBatch)

	kicker.Kick(context.Background(), 1)
	<-started

	// While job 1 is running, the same id arriving twice collapses to one
	// pending entry.
	kicker.Kick(context.Background(), 2)
	kicker.Kick(context.Background(), 2)
	close(release)
	kicker.Wait()

	ids, _ := rec.snapshot()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	want := []uint64{1, 2}
	if len(ids) != len(want) {
		t.Fatalf("expected %v, got %v", want, ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, ids)
		}
	}
}

func TestSingleDrainLoop(t *testing.T) {
	var mu sync.Mutex
	running := 0
	peak := 0

	kicker := NewKicker(func(ctx context.Context, jobID uint64) {
		mu.Lock()
		running++
		if running > peak {
			peak = running
		}
		mu.Unlock()
		time.Sleep(time.Millisecond)
		mu.Lock()
		running--
		mu.Unlock()
	}, func(ctx context.Context) int { return 0 })

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(id uint64) {
			defer wg.Done()
			kicker.Kick(context.Background(), id)
		}(uint64(i))
	}
	wg.Wait()
	kicker.Wait()

	mu.Lock()
	defer mu.Unlock()
	if peak != 1 {
		t.Fatalf("expected exactly one drain loop, saw %d concurrent runs", peak)
	}
}

func TestKickBatch(t *testing.T) {
	rec := &kickRecorder{}
	kicker := NewKicker(rec.runOne, rec.runBatch)

	kicker.KickBatch(context.Background())
	kicker.Wait()

	if _, batches := rec.snapshot(); batches != 1 {
		t.Fatalf("expected one batch pass, got %d", batches)
	}
}

func TestWorkDuringDrainReschedules(t *testing.T) {
	rec := &kickRecorder{}
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	kicker := NewKicker(func(ctx context.Context, jobID uint64) {
		once.Do(func() {
			close(started)
			<-release
		})
		rec.runOne(ctx, jobID)
	}, rec.runBatch)

	kicker.Kick(context.Background(), 1)
	<-started

	// Arrives while the loop is busy with job 1; must not be lost.
	kicker.KickBatch(context.Background())
	close(release)
	kicker.Wait()

	ids, batches := rec.snapshot()
	if len(ids) != 1 || batches != 1 {
		t.Fatalf("expected 1 job and 1 batch, got %v jobs %d batches", ids, batches)
	}
}

func TestCancelledContextStopsDrain(t *testing.T) {
	rec := &kickRecorder{}
	kicker := NewKicker(rec.runOne, rec.runBatch)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	kicker.Kick(ctx, 9)
	kicker.Wait()

	if ids, _ := rec.snapshot(); len(ids) != 0 {
		t.Fatalf("cancelled kick should not run jobs, got %v", ids)
	}
}
