package scraper

import (
	"fmt"
	"time"

	"rental-scraper/config"
	"rental-scraper/dates"
	"rental-scraper/extract"
	"rental-scraper/services"
	"rental-scraper/utils"
)

// Registry builds one adapter per enabled agency in the agency table.
type Registry struct {
	adapters []Adapter
	browser  *BrowserFetcher
}

// NewRegistry wires fetchers, extractors and cleaners for every enabled
// agency. Agencies with render mode "browser" share one headless browser,
// started on first use.
func NewRegistry(cfg *config.Config, table *config.AgencyTable, logger *utils.Logger) (*Registry, error) {
	normalizer := dates.NewNormalizer(cfg.Location(), cfg.FallbackAge, logger)
	httpFetcher := NewHTTPFetcher(cfg.UserAgent, retryConfig(cfg, logger))
	return newRegistry(cfg, table, normalizer, httpFetcher, logger)
}

// retryConfig allows MaxRetries retries on top of the first attempt.
func retryConfig(cfg *config.Config, logger *utils.Logger) *utils.RetryConfig {
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return &utils.RetryConfig{
		MaxAttempts: retries + 1,
		BaseDelay:   time.Second,
		Logger:      logger,
	}
}

func newRegistry(cfg *config.Config, table *config.AgencyTable, normalizer *dates.Normalizer, httpFetcher Fetcher, logger *utils.Logger) (*Registry, error) {
	r := &Registry{}
	opts := Options{
		IndexTimeout:    cfg.IndexTimeout,
		DetailTimeout:   cfg.DetailTimeout,
		PolitenessDelay: cfg.PolitenessDelay,
		MaxListings:     cfg.MaxListings,
	}
	band := extract.Band{Min: cfg.PriceMin, Max: cfg.PriceMax}

	for _, a := range table.EnabledAgencies() {
		rules, err := extract.CompileRules(table.PatternsFor(a))
		if err != nil {
			return nil, fmt.Errorf("agency %q: %w", a.Name, err)
		}
		cleaner := services.NewCleaner(logger, extract.New(rules, band), normalizer, services.CleanerOptions{
			EstimatedRooms:  table.Defaults.Estimates.Rooms,
			DefaultLocation: table.LocationFor(a),
		})

		var fetcher Fetcher
		switch a.RenderMode() {
		case config.RenderHTTP:
			fetcher = httpFetcher
		case config.RenderBrowser:
			if r.browser == nil {
				r.browser = NewBrowserFetcher(cfg.ChromeBin, cfg.UserAgent, logger)
			}
			fetcher = r.browser
		default:
			return nil, fmt.Errorf("agency %q: unknown render mode %q", a.Name, a.Render)
		}

		adapter, err := NewAgency(a, fetcher, cleaner, opts, logger)
		if err != nil {
			return nil, err
		}
		r.adapters = append(r.adapters, adapter)
	}

	logger.Info("[registry] %d agencies enabled", len(r.adapters))
	return r, nil
}

// Adapters returns the adapters in agency table order.
func (r *Registry) Adapters() []Adapter {
	return r.adapters
}

// Close releases the shared browser, if one was created.
func (r *Registry) Close() error {
	if r.browser != nil {
		return r.browser.Close()
	}
	return nil
}
