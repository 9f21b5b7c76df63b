package services

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"time"

	"rental-scraper/metrics"
	"rental-scraper/models"
	"rental-scraper/utils"
)

// Source is one agency adapter as seen by the aggregator.
type Source interface {
	Name() string
	Scrape(ctx context.Context) models.AdapterResult
}

// Aggregator runs every source concurrently and merges their listings into a
// single deduplicated, freshness-ordered snapshot.
type Aggregator struct {
	sources []Source
	logger  *utils.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewAggregator creates an Aggregator over sources. Source order decides
// which listing wins when two sources publish the same property.
func NewAggregator(sources []Source, logger *utils.Logger, m *metrics.Metrics) *Aggregator {
	return &Aggregator{sources: sources, logger: logger, metrics: m, now: time.Now}
}

// Run scrapes all sources and waits for every one of them to settle. It
// always returns a snapshot; failed sources only show up in its outcomes.
func (a *Aggregator) Run(ctx context.Context) *models.Snapshot {
	start := time.Now()
	a.logger.Info("[aggregator] Starting run over %d sources", len(a.sources))

	results := make([]models.AdapterResult, len(a.sources))
	pool := utils.NewWorkerPool(len(a.sources))
	for i, src := range a.sources {
		i, src := i, src
		pool.Submit(func() {
			results[i] = a.runSource(ctx, src)
		})
	}
	pool.Wait()

	var merged []*models.Listing
	outcomes := make([]models.SourceOutcome, 0, len(results))
	for _, r := range results {
		o := models.SourceOutcome{
			AgencyName: r.Agency,
			Succeeded:  r.Err == nil,
			Count:      len(r.Listings),
			Skipped:    r.Skipped,
			Duration:   r.Duration,
		}
		if r.Err != nil {
			o.Error = r.Err.Error()
		} else {
			merged = append(merged, r.Listings...)
		}
		outcomes = append(outcomes, o)
		a.metrics.RecordAdapter(o.AgencyName, o.Succeeded, o.Count, o.Skipped, o.Duration)
	}

	listings := SortByFreshness(Dedupe(merged))
	snap := models.NewSnapshot(a.now(), listings, outcomes)

	a.logger.Info("[aggregator] Run %s done in %v: %d listings (%d before dedupe), %d/%d sources ok",
		snap.RunID, time.Since(start).Round(time.Millisecond), len(listings), len(merged),
		len(snap.SucceededSources()), len(outcomes))
	return snap
}

// runSource shields the run from a panicking adapter.
func (a *Aggregator) runSource(ctx context.Context, src Source) (result models.AdapterResult) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			a.logger.Error("[aggregator] Source %s panicked: %v\n%s", src.Name(), rec, debug.Stack())
			result = models.AdapterResult{
				Agency:   src.Name(),
				Err:      fmt.Errorf("adapter panic: %v", rec),
				Duration: time.Since(start),
			}
		}
	}()

	result = src.Scrape(ctx)
	if result.Agency == "" {
		result.Agency = src.Name()
	}
	if result.Duration == 0 {
		result.Duration = time.Since(start)
	}
	return result
}

// Dedupe drops listings whose exact title and location were already seen,
// keeping the first occurrence. Dedupe(Dedupe(x)) equals Dedupe(x).
func Dedupe(listings []*models.Listing) []*models.Listing {
	seen := make(map[models.DedupeKey]struct{}, len(listings))
	out := make([]*models.Listing, 0, len(listings))
	for _, l := range listings {
		k := l.Key()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, l)
	}
	return out
}

// SortByFreshness returns a copy of listings ordered by DaysSinceListed
// ascending. Ties keep their input order.
func SortByFreshness(listings []*models.Listing) []*models.Listing {
	out := make([]*models.Listing, len(listings))
	copy(out, listings)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DaysSinceListed < out[j].DaysSinceListed
	})
	return out
}
