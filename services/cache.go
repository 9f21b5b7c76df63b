package services

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"rental-scraper/config"
	"rental-scraper/metrics"
	"rental-scraper/models"
	"rental-scraper/utils"
)

const refreshKey = "refresh"

// Runner produces a fresh snapshot. *Aggregator is the production Runner.
type Runner interface {
	Run(ctx context.Context) *models.Snapshot
}

// Sink receives every snapshot after a refresh, for export or archiving.
type Sink interface {
	Write(ctx context.Context, snap *models.Snapshot) error
}

// ResultCache serves the last aggregated snapshot for CacheTTL and refreshes
// it on demand. At most one refresh runs at a time; concurrent callers share
// its result.
type ResultCache struct {
	runner   Runner
	detector *ChangeDetector
	sinks    []Sink
	logger   *utils.Logger
	metrics  *metrics.Metrics
	ttl      time.Duration
	now      func() time.Time

	group singleflight.Group

	mu       sync.RWMutex
	current  *models.Snapshot
	previous *models.Snapshot
}

// NewResultCache creates an empty cache. detector may be nil to disable
// change notifications.
func NewResultCache(runner Runner, detector *ChangeDetector, logger *utils.Logger, m *metrics.Metrics, sinks ...Sink) *ResultCache {
	return &ResultCache{
		runner:   runner,
		detector: detector,
		sinks:    sinks,
		logger:   logger,
		metrics:  m,
		ttl:      config.CacheTTL,
		now:      time.Now,
	}
}

// WithClock replaces the clock used for TTL checks. Intended for tests.
func (c *ResultCache) WithClock(now func() time.Time) *ResultCache {
	c.now = now
	return c
}

// Get returns the current snapshot while it is younger than the TTL, and
// otherwise refreshes it. force skips the TTL check. The refresh is not tied
// to ctx; when ctx ends first, Get returns the stale snapshot (possibly nil)
// together with ctx.Err().
func (c *ResultCache) Get(ctx context.Context, force bool) (*models.Snapshot, error) {
	if !force {
		if snap := c.fresh(); snap != nil {
			c.metrics.RecordCacheRequest(metrics.CacheHit)
			return snap, nil
		}
	}

	ch := c.group.DoChan(refreshKey, func() (interface{}, error) {
		if !force {
			// A refresh may have completed between the check above and
			// joining the flight.
			if snap := c.fresh(); snap != nil {
				return snap, nil
			}
		}
		return c.refresh(context.WithoutCancel(ctx)), nil
	})

	select {
	case res := <-ch:
		if res.Shared {
			c.metrics.RecordCacheRequest(metrics.CacheShared)
		} else {
			c.metrics.RecordCacheRequest(metrics.CacheRefresh)
		}
		return res.Val.(*models.Snapshot), nil
	case <-ctx.Done():
		return c.Current(), ctx.Err()
	}
}

// Current returns the last snapshot without refreshing. It is nil before
// the first refresh.
func (c *ResultCache) Current() *models.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Sources returns the per-source outcomes of the current snapshot.
func (c *ResultCache) Sources() []models.SourceOutcome {
	snap := c.Current()
	if snap == nil {
		return nil
	}
	out := make([]models.SourceOutcome, len(snap.Sources))
	copy(out, snap.Sources)
	return out
}

func (c *ResultCache) fresh() *models.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current != nil && c.now().Sub(c.current.CapturedAt) < c.ttl {
		return c.current
	}
	return nil
}

// refresh runs the aggregation, publishes the result, then runs change
// detection and the sinks. The previous snapshot is dropped afterwards.
func (c *ResultCache) refresh(ctx context.Context) *models.Snapshot {
	start := time.Now()
	snap := c.runner.Run(ctx)

	c.mu.Lock()
	c.previous = c.current
	c.current = snap
	prev := c.previous
	c.mu.Unlock()

	c.metrics.RecordRefresh(len(snap.Listings), time.Since(start), snap.CapturedAt)

	if c.detector != nil {
		c.detector.Dispatch(ctx, c.detector.NewListings(prev, snap))
	}
	for _, s := range c.sinks {
		if err := s.Write(ctx, snap); err != nil {
			c.logger.Warn("[cache] Snapshot sink failed: %v", err)
		}
	}

	c.mu.Lock()
	c.previous = nil
	c.mu.Unlock()

	c.logger.Info("[cache] Refreshed snapshot %s: %d listings", snap.RunID, len(snap.Listings))
	return snap
}
