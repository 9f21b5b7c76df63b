package services

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"rental-scraper/models"
	"rental-scraper/utils"
)

const freshestCount = 5

type InsightService struct {
	logger *utils.Logger
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

// Generate computes statistics over listings. Listings are expected in
// snapshot order (freshest first). Unknown prices are excluded from the
// price statistics.
func (s *InsightService) Generate(listings []*models.Listing) *models.InsightReport {
	report := &models.InsightReport{
		Freshest:           []*models.Listing{},
		ListingsByAgency:   make(map[string]int),
		ListingsByLocation: make(map[string]int),
	}

	if len(listings) == 0 {
		return report
	}

	report.TotalListings = len(listings)

	var total int
	for _, l := range listings {
		report.ListingsByAgency[l.AgencyName]++
		if l.Location != "" {
			report.ListingsByLocation[l.Location]++
		}
		if !l.PriceKnown() {
			continue
		}

		if report.PricedListings == 0 || l.PriceAmount < report.MinPrice {
			report.MinPrice = l.PriceAmount
		}
		if l.PriceAmount > report.MaxPrice {
			report.MaxPrice = l.PriceAmount
			report.MostExpensive = l
		}
		total += l.PriceAmount
		report.PricedListings++
	}

	if report.PricedListings > 0 {
		report.AveragePrice = round2(float64(total) / float64(report.PricedListings))
	}

	n := freshestCount
	if len(listings) < n {
		n = len(listings)
	}
	report.Freshest = listings[:n]

	return report
}

// Print writes a human-readable report with the per-source outcomes.
func (s *InsightService) Print(w io.Writer, r *models.InsightReport, snap *models.Snapshot) {
	sep := strings.Repeat("═", 60)
	thin := strings.Repeat("─", 60)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  RENTAL LISTINGS, captured %s\033[0m\n", snap.CapturedAt.Format(time.RFC1123))
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	fmt.Fprintf(w, "\033[1;33m  Sources\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	for _, o := range snap.Sources {
		status := "\033[1;32mok\033[0m  "
		if !o.Succeeded {
			status = "\033[1;31mfail\033[0m"
		}
		line := fmt.Sprintf("  %s %-28s %3d listings", status, truncate(o.AgencyName, 28), o.Count)
		if o.Skipped > 0 {
			line += fmt.Sprintf(", %d skipped", o.Skipped)
		}
		if o.Error != "" {
			line += "  " + truncate(o.Error, 60)
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Total listings : \033[1m%d\033[0m\n", r.TotalListings)
	fmt.Fprintf(w, "  With price     : \033[1m%d\033[0m\n", r.PricedListings)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Rent (per month)\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if r.PricedListings > 0 {
		fmt.Fprintf(w, "  Average : \033[1;32m€%.2f\033[0m\n", r.AveragePrice)
		fmt.Fprintf(w, "  Minimum : \033[1;32m€%d\033[0m\n", r.MinPrice)
		fmt.Fprintf(w, "  Maximum : \033[1;32m€%d\033[0m\n", r.MaxPrice)
	} else {
		fmt.Fprintf(w, "  No price data available\n")
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Freshest Listings\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.Freshest) == 0 {
		fmt.Fprintf(w, "  No listings found\n")
	}
	for i, l := range r.Freshest {
		price := "op aanvraag"
		if l.PriceKnown() {
			price = fmt.Sprintf("€%d", l.PriceAmount)
		}
		fmt.Fprintf(w, "  \033[1m%d.\033[0m %-34s %-12s %2dd  %s\n",
			i+1, truncate(l.Title, 34), price, l.DaysSinceListed, l.AgencyName)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Listings by Agency\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	for _, kc := range sortedCounts(r.ListingsByAgency) {
		bar := strings.Repeat("█", kc.count)
		fmt.Fprintf(w, "  %-30s %s (%d)\n", truncate(kc.key, 28), bar, kc.count)
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

type keyCount struct {
	key   string
	count int
}

func sortedCounts(m map[string]int) []keyCount {
	out := make([]keyCount, 0, len(m))
	for k, c := range m {
		if k != "" {
			out = append(out, keyCount{k, c})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].key < out[j].key
	})
	return out
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
