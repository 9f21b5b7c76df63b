// Package notify delivers batches of newly detected listings to external
// channels. Delivery is best effort: failures are reported, never retried.
package notify

import (
	"context"
	"errors"
	"fmt"

	"rental-scraper/models"
	"rental-scraper/utils"
)

// Report summarises one delivered batch.
type Report struct {
	Delivered int
	Failed    int
}

// Add merges r2 into r.
func (r Report) Add(r2 Report) Report {
	return Report{Delivered: r.Delivered + r2.Delivered, Failed: r.Failed + r2.Failed}
}

// Notifier receives the listings that are new since the previous snapshot.
type Notifier interface {
	Notify(ctx context.Context, listings []*models.Listing) (Report, error)
}

// LogNotifier writes one log line per new listing. It never fails.
type LogNotifier struct {
	logger *utils.Logger
}

func NewLogNotifier(logger *utils.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, listings []*models.Listing) (Report, error) {
	for _, l := range listings {
		n.logger.Info("[notify] New listing: %s", Summary(l))
	}
	return Report{Delivered: len(listings)}, nil
}

// Multi fans a batch out to several notifiers. Every notifier is called even
// when an earlier one fails; errors are joined.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, listings []*models.Listing) (Report, error) {
	var (
		total Report
		errs  []error
	)
	for _, n := range m {
		r, err := n.Notify(ctx, listings)
		total = total.Add(r)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return total, errors.Join(errs...)
}

// Summary renders a listing as a single line.
func Summary(l *models.Listing) string {
	price := "price on request"
	if l.PriceKnown() {
		price = fmt.Sprintf("€%d p/m", l.PriceAmount)
	}
	return fmt.Sprintf("%s, %s (%s, %s) %s", l.Title, l.Location, price, l.AgencyName, l.SourceURL)
}
