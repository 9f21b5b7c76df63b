package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"rental-scraper/config"
	"rental-scraper/models"
	"rental-scraper/services"
	"rental-scraper/utils"
)

const maxImages = 10

// Adapter is one source of listings for the aggregator.
type Adapter = services.Source

// Options bound the work one agency adapter does per cycle.
type Options struct {
	IndexTimeout    time.Duration
	DetailTimeout   time.Duration
	PolitenessDelay time.Duration
	MaxListings     int
}

// Agency scrapes one agency website as described by its AgencyConfig.
type Agency struct {
	cfg         config.AgencyConfig
	base        *url.URL
	linkPattern *regexp.Regexp
	fetcher     Fetcher
	cleaner     *services.Cleaner
	limiter     *rate.Limiter
	opts        Options
	logger      *utils.Logger
}

// candidate is a listing link found on an index page together with the
// context of the card it appeared in.
type candidate struct {
	path     string
	url      string
	title    string
	location string
	cardText string
	images   []string
}

// NewAgency creates an adapter for one agency.
func NewAgency(cfg config.AgencyConfig, fetcher Fetcher, cleaner *services.Cleaner, opts Options, logger *utils.Logger) (*Agency, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("agency %q: parse base url: %w", cfg.Name, err)
	}
	var linkPattern *regexp.Regexp
	if cfg.LinkPattern != "" {
		linkPattern, err = regexp.Compile(cfg.LinkPattern)
		if err != nil {
			return nil, fmt.Errorf("agency %q: compile link pattern: %w", cfg.Name, err)
		}
	}
	if cfg.MaxListings > 0 && (opts.MaxListings <= 0 || cfg.MaxListings < opts.MaxListings) {
		opts.MaxListings = cfg.MaxListings
	}
	if opts.MaxListings <= 0 {
		opts.MaxListings = 15
	}
	if opts.PolitenessDelay < config.MinPolitenessDelay {
		opts.PolitenessDelay = config.MinPolitenessDelay
	}

	return &Agency{
		cfg:         cfg,
		base:        base,
		linkPattern: linkPattern,
		fetcher:     fetcher,
		cleaner:     cleaner,
		limiter:     rate.NewLimiter(rate.Every(opts.PolitenessDelay), 1),
		opts:        opts,
		logger:      logger,
	}, nil
}

// Name returns the agency name.
func (a *Agency) Name() string {
	return a.cfg.Name
}

// Scrape runs one full cycle for the agency. It never returns a raw error:
// an unreachable source yields an empty result with Err set, failed
// listings are counted in Skipped.
func (a *Agency) Scrape(ctx context.Context) models.AdapterResult {
	start := time.Now()
	result := models.AdapterResult{Agency: a.cfg.Name}

	candidates, indexErr := a.collectCandidates(ctx)
	if len(candidates) == 0 {
		if indexErr != nil {
			a.logger.Error("[%s] No listings: %v", a.cfg.Name, indexErr)
			result.Err = indexErr
		} else {
			a.logger.Warn("[%s] Index pages contained no listing links", a.cfg.Name)
		}
		result.Listings = []*models.Listing{}
		result.Duration = time.Since(start)
		return result
	}
	if indexErr != nil {
		a.logger.Warn("[%s] Partial index: %v", a.cfg.Name, indexErr)
	}

	a.logger.Info("[%s] Found %d candidate listings", a.cfg.Name, len(candidates))

	raws := make([]*models.RawListing, 0, len(candidates))
	for i, c := range candidates {
		if ctx.Err() != nil {
			result.Skipped += len(candidates) - i
			a.logger.Warn("[%s] Cancelled, skipping %d remaining listings", a.cfg.Name, len(candidates)-i)
			break
		}
		raw, ok := a.scrapeListing(ctx, c)
		if !ok {
			result.Skipped++
			continue
		}
		raws = append(raws, raw)
	}

	result.Listings = a.cleaner.Clean(raws)
	result.Skipped += len(raws) - len(result.Listings)
	result.Duration = time.Since(start)

	a.logger.Info("[%s] Done: %d listings, %d skipped in %v",
		a.cfg.Name, len(result.Listings), result.Skipped, result.Duration.Round(time.Millisecond))
	return result
}

// collectCandidates fetches every index page and returns the unique listing
// links, capped at MaxListings. The error is non-nil when at least one index
// page failed.
func (a *Agency) collectCandidates(ctx context.Context) ([]candidate, error) {
	seen := utils.NewKeySet()
	var (
		out  []candidate
		errs []error
	)

	for _, p := range a.cfg.ListingPaths {
		if len(out) >= a.opts.MaxListings {
			break
		}
		indexURL, err := a.base.Parse(p)
		if err != nil {
			errs = append(errs, fmt.Errorf("listing path %q: %w", p, err))
			continue
		}

		doc, err := a.fetchDocument(ctx, indexURL.String(), a.opts.IndexTimeout)
		if err != nil {
			errs = append(errs, fmt.Errorf("index %s: %w", indexURL, err))
			continue
		}

		doc.Find(a.cfg.LinkSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			c, ok := a.candidateFrom(indexURL, s)
			if !ok {
				return true
			}
			if !seen.Add(c.path) {
				a.logger.Debug("[%s] Duplicate listing path skipped: %s", a.cfg.Name, c.path)
				return true
			}
			out = append(out, c)
			return len(out) < a.opts.MaxListings
		})
	}

	return out, errors.Join(errs...)
}

func (a *Agency) candidateFrom(indexURL *url.URL, link *goquery.Selection) (candidate, bool) {
	href, ok := link.Attr("href")
	href = strings.TrimSpace(href)
	if !ok || href == "" || strings.HasPrefix(href, "#") {
		return candidate{}, false
	}
	u, err := indexURL.Parse(href)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return candidate{}, false
	}
	u.Fragment = ""
	if a.linkPattern != nil && !a.linkPattern.MatchString(u.Path) {
		return candidate{}, false
	}
	if u.Path == indexURL.Path && u.RawQuery == indexURL.RawQuery {
		return candidate{}, false
	}

	card := link
	if a.cfg.CardSelector != "" {
		if c := link.Closest(a.cfg.CardSelector); c.Length() > 0 {
			card = c
		}
	}

	return candidate{
		path:     u.RequestURI(),
		url:      u.String(),
		title:    a.cardTitle(card, link),
		location: a.locationIn(card),
		cardText: textOf(card),
		images:   imagesOf(card, a.imageSelector(), u),
	}, true
}

func (a *Agency) cardTitle(card, link *goquery.Selection) string {
	for _, sel := range []string{a.cfg.TitleSelector, "h2, h3, h4, .title"} {
		if sel == "" {
			continue
		}
		if t := textOf(card.Find(sel).First()); t != "" {
			return t
		}
	}
	if t, ok := link.Attr("title"); ok && strings.TrimSpace(t) != "" {
		return strings.TrimSpace(t)
	}
	return textOf(link)
}

// locationIn returns the text under the agency's location selector, if any.
func (a *Agency) locationIn(sel *goquery.Selection) string {
	if a.cfg.LocationSelector == "" {
		return ""
	}
	return textOf(sel.Find(a.cfg.LocationSelector).First())
}

func (a *Agency) imageSelector() string {
	if a.cfg.ImageSelector != "" {
		return a.cfg.ImageSelector
	}
	return "img"
}

// scrapeListing fetches the detail page of c. When the detail page cannot be
// fetched the index card context is used; without it the listing is skipped.
func (a *Agency) scrapeListing(ctx context.Context, c candidate) (*models.RawListing, bool) {
	raw := &models.RawListing{
		Agency:    a.cfg.Name,
		Path:      c.path,
		URL:       c.url,
		Title:     c.title,
		Location:  c.location,
		CardText:  c.cardText,
		ImageURLs: c.images,
		ScrapedAt: time.Now(),
	}

	doc, err := a.fetchDocument(ctx, c.url, a.opts.DetailTimeout)
	if err != nil {
		if c.cardText == "" {
			a.logger.Warn("[%s] Skipping %s: detail failed and no index context: %v", a.cfg.Name, c.url, err)
			return nil, false
		}
		a.logger.Warn("[%s] Detail failed for %s, using index card: %v", a.cfg.Name, c.url, err)
		return raw, true
	}

	root := doc.Selection.Find("body")
	if a.cfg.DetailSelector != "" {
		if s := doc.Find(a.cfg.DetailSelector); s.Length() > 0 {
			root = s
		}
	}
	root.Find("script, style, noscript, nav, footer").Remove()

	raw.DetailFound = true
	raw.DetailText = textOf(root)
	if loc := a.locationIn(root); loc != "" {
		raw.Location = loc
	}
	if raw.Title == "" {
		sel := a.cfg.TitleSelector
		if sel == "" {
			sel = "h1"
		}
		raw.Title = textOf(doc.Find(sel).First())
	}
	detailURL, _ := url.Parse(c.url)
	if imgs := imagesOf(root, a.imageSelector(), detailURL); len(imgs) > 0 {
		raw.ImageURLs = imgs
	}
	return raw, true
}

// fetchDocument waits for the politeness limiter, then fetches and parses
// one page within timeout.
func (a *Agency) fetchDocument(ctx context.Context, pageURL string, timeout time.Duration) (*goquery.Document, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("politeness wait: %w", err)
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	a.logger.Debug("[%s] GET %s", a.cfg.Name, pageURL)
	body, err := a.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// imagesOf returns up to maxImages unique absolute image URLs within sel.
func imagesOf(sel *goquery.Selection, selector string, base *url.URL) []string {
	seen := make(map[string]struct{})
	out := []string{}
	sel.Find(selector).EachWithBreak(func(_ int, img *goquery.Selection) bool {
		src := img.AttrOr("data-src", "")
		if src == "" {
			src = img.AttrOr("src", "")
		}
		src = strings.TrimSpace(src)
		if src == "" || strings.HasPrefix(src, "data:") {
			return true
		}
		abs := src
		if base != nil {
			u, err := base.Parse(src)
			if err != nil {
				return true
			}
			abs = u.String()
		}
		if _, dup := seen[abs]; dup {
			return true
		}
		seen[abs] = struct{}{}
		out = append(out, abs)
		return len(out) < maxImages
	})
	return out
}
