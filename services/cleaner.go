package services

import (
	"crypto/sha256"
	"fmt"
	"net/url"
	"path"
	"strings"
	"unicode"

	"rental-scraper/dates"
	"rental-scraper/extract"
	"rental-scraper/models"
	"rental-scraper/utils"
)

// Cleaner transforms RawListings of one agency into normalized Listings.
type Cleaner struct {
	logger    *utils.Logger
	extractor *extract.Extractor
	dates     *dates.Normalizer

	estimatedRooms  int
	defaultLocation string
}

// CleanerOptions are the agency-specific fallbacks used by a Cleaner.
type CleanerOptions struct {
	// EstimatedRooms is applied, flagged as estimated, when no room count is
	// published. Zero leaves the count unknown.
	EstimatedRooms  int
	DefaultLocation string
}

// NewCleaner creates a Cleaner with the given logger, extractor and date
// normalizer.
func NewCleaner(logger *utils.Logger, ex *extract.Extractor, dn *dates.Normalizer, opts CleanerOptions) *Cleaner {
	return &Cleaner{
		logger:          logger,
		extractor:       ex,
		dates:           dn,
		estimatedRooms:  opts.EstimatedRooms,
		defaultLocation: opts.DefaultLocation,
	}
}

// Clean processes raw listings and returns cleaned records, dropping those
// without a URL or title and duplicate URLs.
func (c *Cleaner) Clean(raw []*models.RawListing) []*models.Listing {
	seen := make(map[string]struct{})
	result := make([]*models.Listing, 0, len(raw))

	for _, r := range raw {
		u := strings.TrimSpace(r.URL)
		if _, dup := seen[u]; dup && u != "" {
			c.logger.Debug("[cleaner] Duplicate URL skipped: %s", u)
			continue
		}

		listing, ok := c.Normalise(r)
		if !ok {
			continue
		}
		seen[u] = struct{}{}
		result = append(result, listing)
	}

	if dropped := len(raw) - len(result); dropped > 0 {
		c.logger.Info("[cleaner] Cleaned %d → %d listings (dropped %d)", len(raw), len(result), dropped)
	}
	return result
}

// Normalise turns one raw listing into a Listing. Detail page data is
// preferred over index card data field by field. It returns false when the
// listing cannot be identified.
func (c *Cleaner) Normalise(r *models.RawListing) (*models.Listing, bool) {
	u := strings.TrimSpace(r.URL)
	if u == "" {
		c.logger.Warn("[cleaner] Dropping listing with empty URL: %s", r.Title)
		return nil, false
	}

	title := normaliseText(r.Title)
	if title == "" {
		title = titleFromPath(r.Path)
	}
	if title == "" {
		c.logger.Warn("[cleaner] Dropping listing without title: %s", u)
		return nil, false
	}

	detail, card := r.DetailText, r.CardText

	price := c.extractor.Price(detail).OrField(c.extractor.Price(card))
	rooms := c.extractor.Rooms(detail).OrField(c.extractor.Rooms(card))
	if c.estimatedRooms > 0 {
		rooms = rooms.Or(c.estimatedRooms)
	}
	size := c.extractor.Size(detail).OrField(c.extractor.Size(card))
	dateText := c.extractor.DateText(detail).OrField(c.extractor.DateText(card))

	location := normaliseText(r.Location)
	if location == "" {
		addr := c.extractor.Address(detail).OrField(c.extractor.Address(card))
		location = addr.Value
	}
	if location == "" {
		location = c.defaultLocation
	}

	listed := c.dates.Normalize(dateText.Value)
	dateState := models.FieldFound
	if listed.Estimated {
		dateState = models.FieldEstimated
	}

	images := make([]string, 0, len(r.ImageURLs))
	images = append(images, r.ImageURLs...)

	return &models.Listing{
		ID:              ListingID(r.Agency, r.Path),
		Title:           title,
		Location:        location,
		SizeText:        size.Value,
		RoomCount:       rooms.Value,
		PriceAmount:     price.Value,
		ImageURLs:       images,
		SourceURL:       u,
		AgencyName:      r.Agency,
		ListedDate:      listed.Date,
		DaysSinceListed: listed.DaysSince,
		RoomsState:      rooms.State,
		SizeState:       size.State,
		DateState:       dateState,
	}, true
}

// ListingID derives the stable identifier of a listing from its agency and
// listing path.
func ListingID(agency, listingPath string) string {
	h := sha256.Sum256([]byte(agency + "|" + listingPath))
	return fmt.Sprintf("%x", h[:16])
}

// titleFromPath turns a slug such as "/huurwoningen/oosterstraat-5/" into
// "Oosterstraat 5".
func titleFromPath(p string) string {
	if u, err := url.Parse(p); err == nil {
		p = u.Path
	}
	slug := path.Base(strings.TrimRight(p, "/"))
	if slug == "." || slug == "/" || slug == "" {
		return ""
	}
	words := strings.FieldsFunc(slug, func(r rune) bool { return r == '-' || r == '_' })
	if len(words) == 0 {
		return ""
	}
	first := []rune(words[0])
	first[0] = unicode.ToUpper(first[0])
	words[0] = string(first)
	return strings.Join(words, " ")
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	s = strings.TrimSpace(s)
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r)
	})
	return strings.Join(fields, " ")
}
