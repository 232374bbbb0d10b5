package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"liscraper/pkg/account"
	"liscraper/pkg/auth"
	"liscraper/pkg/config"
	"liscraper/pkg/models"
	"liscraper/pkg/scraper"
)

type nopUsageStore struct{}

func (nopUsageStore) GetUsage(ctx context.Context, email string, day time.Time) (*models.UsageRecord, error) {
	return nil, nil
}

func (nopUsageStore) UpsertUsage(ctx context.Context, email string, day time.Time, incrementBy int, flagged *bool) error {
	return nil
}

type fakeRunner struct {
	mu    sync.Mutex
	runs  int
	opts  []scraper.RunOptions
	block chan struct{}
	stats *scraper.Stats
}

func (r *fakeRunner) RunQueueBased(ctx context.Context, opts scraper.RunOptions) (*scraper.Stats, error) {
	r.mu.Lock()
	r.runs++
	r.opts = append(r.opts, opts)
	r.mu.Unlock()
	if r.block != nil {
		<-r.block
	}
	if r.stats != nil {
		return r.stats, nil
	}
	return &scraper.Stats{}, nil
}

func newTestPool(t *testing.T, limit int) *account.Manager {
	t.Helper()
	pool, err := account.NewManager([]auth.Credential{
		{Email: "a1@example.com", Password: "pw"},
		{Email: "a2@example.com", Password: "pw"},
	}, limit, nopUsageStore{})
	if err != nil {
		t.Fatal(err)
	}
	return pool
}

func TestStartRejectsBadCronSpec(t *testing.T) {
	cfg := config.SchedulerConfig{DailyResetSpec: "not a spec"}
	s := New(cfg, newTestPool(t, 5), nil, nil)
	if err := s.Start(context.Background()); err == nil {
		t.Fatal("expected error for malformed cron spec")
	}
}

func TestStartAndStop(t *testing.T) {
	cfg := config.SchedulerConfig{DailyResetSpec: "0 0 * * *"}
	s := New(cfg, newTestPool(t, 5), nil, nil)
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	s.Stop()
}

func TestResetDailyRestoresCapacity(t *testing.T) {
	pool := newTestPool(t, 2)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		acc, err := pool.GetNextAccount()
		if err != nil {
			t.Fatal(err)
		}
		if err := pool.IncrementUsage(ctx, acc.Email); err != nil {
			t.Fatal(err)
		}
	}
	if got := pool.TotalAvailableCapacity(); got != 1 {
		t.Fatalf("capacity before reset = %d, want 1", got)
	}

	s := New(config.SchedulerConfig{DailyResetSpec: "0 0 * * *"}, pool, nil, nil)
	s.resetDaily(ctx)

	if got := pool.TotalAvailableCapacity(); got != 4 {
		t.Errorf("capacity after reset = %d, want 4", got)
	}
}

func TestDrainQueuePassesBatchLimit(t *testing.T) {
	runner := &fakeRunner{}
	cfg := config.SchedulerConfig{
		DailyResetSpec:  "0 0 * * *",
		QueueDrainSpec:  "*/30 * * * *",
		QueueDrainBatch: 25,
	}
	s := New(cfg, newTestPool(t, 5), runner, nil)

	s.drainQueue(context.Background())

	if runner.runs != 1 {
		t.Fatalf("runs = %d, want 1", runner.runs)
	}
	if runner.opts[0].MaxProfiles != 25 {
		t.Errorf("MaxProfiles = %d, want 25", runner.opts[0].MaxProfiles)
	}
}

func TestDrainQueueDropsOverlappingTicks(t *testing.T) {
	runner := &fakeRunner{block: make(chan struct{})}
	s := New(config.SchedulerConfig{DailyResetSpec: "0 0 * * *"}, newTestPool(t, 5), runner, nil)

	done := make(chan struct{})
	go func() {
		s.drainQueue(context.Background())
		close(done)
	}()

	// Wait for the first drain to be mid-run, then fire a second tick.
	for {
		runner.mu.Lock()
		started := runner.runs == 1
		runner.mu.Unlock()
		if started {
			break
		}
		time.Sleep(time.Millisecond)
	}

	s.drainQueue(context.Background())
	runner.mu.Lock()
	if runner.runs != 1 {
		t.Errorf("overlapping tick started a second run: runs = %d", runner.runs)
	}
	runner.mu.Unlock()

	close(runner.block)
	<-done
}
