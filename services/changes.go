package services

import (
	"context"
	"sync"

	"rental-scraper/metrics"
	"rental-scraper/models"
	"rental-scraper/notify"
	"rental-scraper/utils"
)

// ChangeDetector finds listings that appeared since the previous snapshot
// and hands them to a notifier.
type ChangeDetector struct {
	notifier notify.Notifier
	logger   *utils.Logger
	metrics  *metrics.Metrics

	mu sync.Mutex
	// held keeps, per agency, the listing IDs last seen before that agency
	// started failing. They count as known until the agency succeeds again.
	held map[string]map[string]struct{}
}

func NewChangeDetector(n notify.Notifier, logger *utils.Logger, m *metrics.Metrics) *ChangeDetector {
	return &ChangeDetector{notifier: n, logger: logger, metrics: m, held: make(map[string]map[string]struct{})}
}

// NewListings returns the listings of curr whose ID is not in prev, in curr
// order. Without a previous snapshot nothing is new. Listings of an agency
// that failed in between stay known, so a recovering agency does not
// report its whole inventory again.
func (d *ChangeDetector) NewListings(prev, curr *models.Snapshot) []*models.Listing {
	out := []*models.Listing{}
	if prev == nil || curr == nil {
		return out
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	known := prev.IDs()
	for _, ids := range d.held {
		for id := range ids {
			known[id] = struct{}{}
		}
	}
	for _, l := range curr.Listings {
		if _, ok := known[l.ID]; !ok {
			out = append(out, l)
		}
	}

	d.updateHeld(prev, curr)
	return out
}

func (d *ChangeDetector) updateHeld(prev, curr *models.Snapshot) {
	for _, o := range curr.Sources {
		if o.Succeeded {
			delete(d.held, o.AgencyName)
			continue
		}
		if _, ok := d.held[o.AgencyName]; ok {
			continue
		}
		ids := make(map[string]struct{})
		for _, l := range prev.Listings {
			if l.AgencyName == o.AgencyName {
				ids[l.ID] = struct{}{}
			}
		}
		if len(ids) > 0 {
			d.held[o.AgencyName] = ids
			d.logger.Debug("[changes] Holding %d known listings of failed agency %s", len(ids), o.AgencyName)
		}
	}
}

// Dispatch delivers listings once. Failures are logged and reported, never
// retried or returned.
func (d *ChangeDetector) Dispatch(ctx context.Context, listings []*models.Listing) (report notify.Report) {
	if len(listings) == 0 || d.notifier == nil {
		return report
	}

	defer func() {
		if rec := recover(); rec != nil {
			d.logger.Error("[changes] Notifier panicked: %v", rec)
			report = notify.Report{Delivered: report.Delivered, Failed: len(listings) - report.Delivered}
		}
		d.metrics.RecordDispatch(len(listings), report.Delivered, report.Failed)
	}()

	d.logger.Info("[changes] %d new listings, notifying", len(listings))
	report, err := d.notifier.Notify(ctx, listings)
	if err != nil {
		d.logger.Warn("[changes] Notification delivery failed (%d delivered, %d failed): %v",
			report.Delivered, report.Failed, err)
	}
	return report
}
