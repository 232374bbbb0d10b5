// Package scheduler runs the background cron jobs: the daily usage-counter
// reset and the optional periodic queue drain.
package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"liscraper/internal/telemetry"
	"liscraper/pkg/account"
	"liscraper/pkg/config"
	"liscraper/pkg/logger"
	"liscraper/pkg/models"
	"liscraper/pkg/scraper"
)

// QueueRunner drains the scraping queue. Implemented by scraper.Orchestrator.
type QueueRunner interface {
	RunQueueBased(ctx context.Context, opts scraper.RunOptions) (*scraper.Stats, error)
}

// QueueInspector reports queue depth for the gauge. Implemented by
// internal/store.
type QueueInspector interface {
	Statistics(ctx context.Context) (*models.QueueStatistics, error)
}

// Scheduler wraps robfig/cron. All specs are evaluated in UTC so the daily
// reset lines up with the UTC day the usage counters are keyed by.
type Scheduler struct {
	cron    *cron.Cron
	cfg     config.SchedulerConfig
	pool    *account.Manager
	runner  QueueRunner
	queue   QueueInspector
	log     logger.Logger
	running atomic.Bool
}

// New builds a scheduler. runner and queue may be nil to disable the drain
// job and the depth gauge respectively.
func New(cfg config.SchedulerConfig, pool *account.Manager, runner QueueRunner, queue QueueInspector) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(time.UTC)),
		cfg:    cfg,
		pool:   pool,
		runner: runner,
		queue:  queue,
		log:    logger.GetLogger(),
	}
}

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.cfg.DailyResetSpec, func() {
		s.resetDaily(ctx)
	}); err != nil {
		return fmt.Errorf("register daily reset %q: %w", s.cfg.DailyResetSpec, err)
	}

	if s.cfg.QueueDrainSpec != "" && s.runner != nil {
		if _, err := s.cron.AddFunc(s.cfg.QueueDrainSpec, func() {
			s.drainQueue(ctx)
		}); err != nil {
			return fmt.Errorf("register queue drain %q: %w", s.cfg.QueueDrainSpec, err)
		}
	}

	s.cron.Start()
	s.log.WithFields(map[string]interface{}{
		"daily_reset": s.cfg.DailyResetSpec,
		"queue_drain": s.cfg.QueueDrainSpec,
	}).Info("Scheduler started")
	return nil
}

// Stop halts the cron loop and waits for any running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("Scheduler stopped")
}

// resetDaily clears the in-memory usage counters at UTC midnight. The
// durable usage rows are left alone: they are the audit trail, and the next
// day gets fresh rows anyway.
func (s *Scheduler) resetDaily(ctx context.Context) {
	s.pool.ResetDailyCounters()
	telemetry.PoolCapacityGauge.Set(float64(s.pool.TotalAvailableCapacity()))
	s.refreshQueueDepth(ctx)
	s.log.WithField("capacity", s.pool.TotalAvailableCapacity()).
		Info("Daily usage counters reset")
}

// drainQueue runs one bounded queue pass. Overlapping ticks are dropped
// rather than queued: a second concurrent run would double the account
// pressure the pacing layer exists to avoid.
func (s *Scheduler) drainQueue(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Warn("Queue drain tick skipped, previous run still active")
		return
	}
	defer s.running.Store(false)

	stats, err := s.runner.RunQueueBased(ctx, scraper.RunOptions{
		MaxProfiles: s.cfg.QueueDrainBatch,
	})
	if err != nil {
		s.log.WithError(err).Error("Queue drain failed")
		return
	}
	s.refreshQueueDepth(ctx)
	s.log.WithFields(map[string]interface{}{
		"processed":  stats.Processed,
		"successful": stats.Successful,
		"failed":     stats.Failed,
	}).Info("Queue drain finished")
}

func (s *Scheduler) refreshQueueDepth(ctx context.Context) {
	if s.queue == nil {
		return
	}
	qs, err := s.queue.Statistics(ctx)
	if err != nil {
		s.log.WithError(err).Warn("Could not read queue statistics")
		return
	}
	telemetry.QueueDepthGauge.Set(float64(qs.Pending))
}
