package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rental-scraper/config"
	"rental-scraper/dates"
	"rental-scraper/extract"
	"rental-scraper/models"
	"rental-scraper/services"
	"rental-scraper/utils"
)

var testToday = time.Date(2025, time.June, 10, 12, 0, 0, 0, time.UTC)

const indexHTML = `<html><body>
<nav><a href="/huuraanbod">Aanbod</a></nav>
<div class="card">
  <a class="listing-link" href="/huuraanbod/oosterstraat-5"><h3>Oosterstraat 5</h3></a>
  <span class="price">€ 600 p/m</span><span>2 kamers</span>
  <img src="/img/o5-thumb.jpg">
</div>
<div class="card">
  <a class="listing-link" href="/huuraanbod/oosterstraat-5#fotos">Bekijk foto's</a>
</div>
<div class="card">
  <a class="listing-link" href="/huuraanbod/herestraat-10"><h3>Herestraat 10</h3></a>
  <span class="price">€ 1.200,- p/m</span><span>4 kamers</span><span>9752 AB Haren</span>
</div>
<div class="card"><a class="listing-link" href="/huuraanbod/vismarkt-2"></a></div>
<a class="listing-link" href="mailto:info@example.com">Mail ons</a>
</body></html>`

const detailHTML = `<html><body>
<nav>Menu € 99 p/m</nav>
<div class="object-detail">
  <h1>Oosterstraat 5</h1>
  <table>
    <tr><td>Huurprijs</td><td>€ 675,- per maand</td></tr>
    <tr><td>Aantal kamers</td><td>3</td></tr>
    <tr><td>Woonoppervlakte</td><td>70 m²</td></tr>
    <tr><td>Aangeboden sinds</td><td>05-06-2025</td></tr>
  </table>
  <p>9711 NN Groningen</p>
  <img src="/img/o5-1.jpg"><img src="/img/o5-2.jpg"><img src="/img/o5-1.jpg">
</div>
<script>var teaser = "€ 3000 per maand";</script>
</body></html>`

// agencySite serves an index page and detail pages and counts requests per
// path.
type agencySite struct {
	mu    sync.Mutex
	hits  map[string]int
	index string
}

func (s *agencySite) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.hits[r.URL.Path]++
	s.mu.Unlock()

	switch r.URL.Path {
	case "/huuraanbod":
		fmt.Fprint(w, s.index)
	case "/huuraanbod/oosterstraat-5":
		fmt.Fprint(w, detailHTML)
	case "/huuraanbod/herestraat-10":
		http.Error(w, "boom", http.StatusInternalServerError)
	default:
		if strings.HasPrefix(r.URL.Path, "/huuraanbod/woning-") {
			fmt.Fprintf(w, "<html><body><h1>%s</h1><p>Huurprijs: € 900 per maand</p></body></html>", r.URL.Path)
			return
		}
		http.NotFound(w, r)
	}
}

func (s *agencySite) hitCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

func newSite(t *testing.T, index string) (*agencySite, *httptest.Server) {
	t.Helper()
	site := &agencySite{hits: make(map[string]int), index: index}
	srv := httptest.NewServer(site)
	t.Cleanup(srv.Close)
	return site, srv
}

func newTestCleaner(t *testing.T) *services.Cleaner {
	t.Helper()
	table, err := config.LoadAgencies("")
	require.NoError(t, err)
	rules, err := extract.CompileRules(table.Defaults.Patterns)
	require.NoError(t, err)
	dn := dates.NewNormalizer(time.UTC, 7*24*time.Hour, utils.NewNopLogger()).
		WithClock(func() time.Time { return testToday })
	return services.NewCleaner(utils.NewNopLogger(), extract.New(rules, extract.Band{Min: 400, Max: 3500}), dn,
		services.CleanerOptions{EstimatedRooms: 1, DefaultLocation: "Groningen"})
}

func newTestAgency(t *testing.T, baseURL string, mutate func(*config.AgencyConfig)) *Agency {
	t.Helper()
	cfg := config.AgencyConfig{
		Name:           "Test Makelaar",
		BaseURL:        baseURL,
		ListingPaths:   []string{"/huuraanbod"},
		LinkSelector:   "a.listing-link",
		LinkPattern:    `^/huuraanbod/[a-z0-9-]+$`,
		CardSelector:   ".card",
		DetailSelector: ".object-detail",
	}
	if mutate != nil {
		mutate(&cfg)
	}
	fetcher := NewHTTPFetcher("rental-scraper-test", &utils.RetryConfig{MaxAttempts: 1})
	a, err := NewAgency(cfg, fetcher, newTestCleaner(t), Options{
		IndexTimeout:    2 * time.Second,
		DetailTimeout:   time.Second,
		PolitenessDelay: config.MinPolitenessDelay,
		MaxListings:     15,
	}, utils.NewNopLogger())
	require.NoError(t, err)
	return a
}

func byTitle(listings []*models.Listing) map[string]*models.Listing {
	out := make(map[string]*models.Listing, len(listings))
	for _, l := range listings {
		out[l.Title] = l
	}
	return out
}

func TestAgencyScrapePartialResult(t *testing.T) {
	site, srv := newSite(t, indexHTML)
	a := newTestAgency(t, srv.URL, nil)

	res := a.Scrape(context.Background())

	require.NoError(t, res.Err)
	assert.Equal(t, "Test Makelaar", res.Agency)
	require.Len(t, res.Listings, 2)
	assert.Equal(t, 1, res.Skipped, "vismarkt-2 has neither detail page nor card context")
	assert.Equal(t, 1, site.hitCount("/huuraanbod/oosterstraat-5"), "duplicate path fetched once")

	got := byTitle(res.Listings)

	o5 := got["Oosterstraat 5"]
	require.NotNil(t, o5)
	assert.Equal(t, 675, o5.PriceAmount, "detail page wins over card")
	assert.Equal(t, 3, o5.RoomCount)
	assert.Equal(t, models.FieldFound, o5.RoomsState)
	assert.Equal(t, "70 m²", o5.SizeText)
	assert.Equal(t, 5, o5.DaysSinceListed)
	assert.Equal(t, models.FieldFound, o5.DateState)
	assert.Equal(t, "Groningen", o5.Location)
	assert.Equal(t, srv.URL+"/huuraanbod/oosterstraat-5", o5.SourceURL)
	assert.Equal(t, []string{srv.URL + "/img/o5-1.jpg", srv.URL + "/img/o5-2.jpg"}, o5.ImageURLs)
	assert.Equal(t, services.ListingID("Test Makelaar", "/huuraanbod/oosterstraat-5"), o5.ID)

	h10 := got["Herestraat 10"]
	require.NotNil(t, h10)
	assert.Equal(t, 1200, h10.PriceAmount, "card fallback after detail failure")
	assert.Equal(t, 4, h10.RoomCount, "inline card cells must not run together")
	assert.Equal(t, models.FieldFound, h10.RoomsState)
	assert.Equal(t, "Haren", h10.Location)
	assert.Equal(t, 7, h10.DaysSinceListed)
	assert.Equal(t, models.FieldEstimated, h10.DateState)
}

func TestAgencyPricesStayInBand(t *testing.T) {
	_, srv := newSite(t, indexHTML)
	res := newTestAgency(t, srv.URL, nil).Scrape(context.Background())

	for _, l := range res.Listings {
		if l.PriceAmount != 0 {
			assert.GreaterOrEqual(t, l.PriceAmount, 400)
			assert.LessOrEqual(t, l.PriceAmount, 3500)
		}
	}
}

func TestAgencyCapsListings(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < 6; i++ {
		fmt.Fprintf(&b, `<div class="card"><a class="listing-link" href="/huuraanbod/woning-%d"><h3>Woning %d</h3></a></div>`, i, i)
	}
	b.WriteString("</body></html>")

	site, srv := newSite(t, b.String())
	a := newTestAgency(t, srv.URL, func(c *config.AgencyConfig) {
		c.MaxListings = 2
		c.DetailSelector = ""
	})

	res := a.Scrape(context.Background())

	require.NoError(t, res.Err)
	assert.Len(t, res.Listings, 2)
	assert.Equal(t, 1, site.hitCount("/huuraanbod/woning-0"))
	assert.Equal(t, 1, site.hitCount("/huuraanbod/woning-1"))
	assert.Equal(t, 0, site.hitCount("/huuraanbod/woning-2"))
}

func TestAgencyUnreachableSource(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	res := newTestAgency(t, url, nil).Scrape(context.Background())

	assert.Error(t, res.Err)
	assert.NotNil(t, res.Listings)
	assert.Empty(t, res.Listings)
}

func TestAgencyIndexNotFound(t *testing.T) {
	_, srv := newSite(t, indexHTML)
	a := newTestAgency(t, srv.URL, func(c *config.AgencyConfig) {
		c.ListingPaths = []string{"/bestaat-niet"}
	})

	res := a.Scrape(context.Background())

	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "404")
}

func TestAgencyPartialIndexStillSucceeds(t *testing.T) {
	_, srv := newSite(t, indexHTML)
	a := newTestAgency(t, srv.URL, func(c *config.AgencyConfig) {
		c.ListingPaths = []string{"/bestaat-niet", "/huuraanbod"}
	})

	res := a.Scrape(context.Background())

	assert.NoError(t, res.Err)
	assert.Len(t, res.Listings, 2)
}

func TestAgencyPolitenessDelay(t *testing.T) {
	_, srv := newSite(t, indexHTML)
	a := newTestAgency(t, srv.URL, nil)

	start := time.Now()
	a.Scrape(context.Background())

	// One index page and three detail pages, spaced by the minimum delay.
	assert.GreaterOrEqual(t, time.Since(start), 3*config.MinPolitenessDelay)
}

func TestAgencyCancelledContext(t *testing.T) {
	_, srv := newSite(t, indexHTML)
	a := newTestAgency(t, srv.URL, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := a.Scrape(ctx)

	assert.Error(t, res.Err)
	assert.Empty(t, res.Listings)
}

func TestNewAgencyRejectsBadLinkPattern(t *testing.T) {
	_, err := NewAgency(config.AgencyConfig{Name: "X", BaseURL: "https://x.example", LinkPattern: "("},
		nil, nil, Options{}, utils.NewNopLogger())
	assert.Error(t, err)
}

func TestAgencyLocationSelector(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/huuraanbod", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
<div class="card"><a class="listing-link" href="/huuraanbod/eelderweg-1"><h3>Eelderweg 1</h3></a><span class="city">Haren</span></div>
<div class="card"><a class="listing-link" href="/huuraanbod/rijksstraatweg-2"><h3>Rijksstraatweg 2</h3></a><span>€ 800 p/m</span><span class="city">Haren</span></div>
</body></html>`)
	})
	mux.HandleFunc("/huuraanbod/eelderweg-1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><div class="object-detail"><h1>Eelderweg 1</h1>
<p>Huurprijs € 900 per maand</p><span class="city">Paterswolde</span><p>9711 NN Groningen</p></div></body></html>`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	a := newTestAgency(t, srv.URL, func(c *config.AgencyConfig) { c.LocationSelector = ".city" })
	res := a.Scrape(context.Background())

	require.NoError(t, res.Err)
	got := byTitle(res.Listings)
	require.Len(t, got, 2)
	assert.Equal(t, "Paterswolde", got["Eelderweg 1"].Location, "detail selector beats address text")
	assert.Equal(t, "Haren", got["Rijksstraatweg 2"].Location, "card selector used when detail fails")
}
