// Package scheduler refreshes the listing snapshot on a fixed interval so
// change notifications fire without inbound traffic.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"rental-scraper/models"
	"rental-scraper/utils"
)

// Refreshable is the part of the result cache the scheduler drives.
type Refreshable interface {
	Get(ctx context.Context, force bool) (*models.Snapshot, error)
}

// Refresher forces a cache refresh every interval. A tick that fires while
// the previous refresh is still running is skipped.
type Refresher struct {
	cron     *cron.Cron
	cache    Refreshable
	logger   *utils.Logger
	interval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

// NewRefresher creates a Refresher. interval must be at least one second.
func NewRefresher(cache Refreshable, interval time.Duration, logger *utils.Logger) (*Refresher, error) {
	if interval < time.Second {
		return nil, fmt.Errorf("scheduler: refresh interval %v below one second", interval)
	}

	cl := cronLogger{logger: logger}
	c := cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)), cron.WithLogger(cl))

	r := &Refresher{cron: c, cache: cache, logger: logger, interval: interval}
	if _, err := c.AddFunc("@every "+interval.String(), func() { r.run(true) }); err != nil {
		return nil, fmt.Errorf("scheduler: add refresh job: %w", err)
	}
	return r, nil
}

// Start warms the cache in the background and starts the schedule.
func (r *Refresher) Start(ctx context.Context) {
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.logger.Info("[scheduler] Refreshing every %v", r.interval)
	go r.run(false)
	r.cron.Start()
}

// Stop halts the schedule and waits for a running refresh to finish or ctx
// to end.
func (r *Refresher) Stop(ctx context.Context) {
	done := r.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		r.logger.Warn("[scheduler] Stop timed out waiting for a running refresh")
	}
	if r.cancel != nil {
		r.cancel()
	}
}

func (r *Refresher) run(force bool) {
	ctx := r.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	snap, err := r.cache.Get(ctx, force)
	if err != nil {
		r.logger.Warn("[scheduler] Refresh interrupted: %v", err)
		return
	}
	r.logger.Info("[scheduler] Snapshot %s ready: %d listings, %d failed sources (%v)",
		snap.RunID, len(snap.Listings), len(snap.FailedSources()), time.Since(start).Round(time.Millisecond))
}

// cronLogger adapts utils.Logger to cron.Logger.
type cronLogger struct {
	logger *utils.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("[cron] %s %v", msg, keysAndValues)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("[cron] %s: %v %v", msg, err, keysAndValues)
}
