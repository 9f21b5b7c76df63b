package models

import "time"

// FieldState records where a listing attribute came from.
type FieldState int

const (
	// FieldUnknown means nothing was extracted and no estimate was applied.
	FieldUnknown FieldState = iota
	// FieldFound means the value was extracted from the agency's markup.
	FieldFound
	// FieldEstimated means the value is a documented default, not source data.
	FieldEstimated
)

func (s FieldState) String() string {
	switch s {
	case FieldFound:
		return "found"
	case FieldEstimated:
		return "estimated"
	default:
		return "unknown"
	}
}

// MarshalText renders the state as its name in JSON and CSV output.
func (s FieldState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name. Unrecognised names decode as unknown.
func (s *FieldState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "found":
		*s = FieldFound
	case "estimated":
		*s = FieldEstimated
	default:
		*s = FieldUnknown
	}
	return nil
}

// RawListing holds the unprocessed strings an adapter collected for one listing.
// It is turned into a Listing by the cleaner before leaving the adapter.
type RawListing struct {
	Agency      string
	Path        string
	URL         string
	Title       string
	CardText    string
	DetailText  string
	ImageURLs   []string
	Location    string
	DetailFound bool
	ScrapedAt   time.Time
}

// Listing is one normalized rental listing. It is never mutated after creation.
type Listing struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Location        string     `json:"location"`
	SizeText        string     `json:"size_text"`
	RoomCount       int        `json:"room_count"`
	PriceAmount     int        `json:"price_amount"`
	ImageURLs       []string   `json:"image_urls"`
	SourceURL       string     `json:"source_url"`
	AgencyName      string     `json:"agency_name"`
	ListedDate      time.Time  `json:"listed_date"`
	DaysSinceListed int        `json:"days_since_listed"`
	RoomsState      FieldState `json:"rooms_state"`
	SizeState       FieldState `json:"size_state"`
	DateState       FieldState `json:"date_state"`
}

// DedupeKey identifies listings that are the same property across agencies.
type DedupeKey struct {
	Title    string
	Location string
}

// Key returns the deduplication key: exact, case-sensitive title and location.
func (l *Listing) Key() DedupeKey {
	return DedupeKey{Title: l.Title, Location: l.Location}
}

// PriceKnown reports whether the agency published a price.
func (l *Listing) PriceKnown() bool {
	return l.PriceAmount > 0
}

// AdapterResult is what one adapter run produced. Err is set when the source
// could not be scraped at all; Listings may still be partial when Skipped > 0.
type AdapterResult struct {
	Agency   string
	Listings []*Listing
	Skipped  int
	Err      error
	Duration time.Duration
}

// InsightReport holds the computed analytics over a snapshot.
type InsightReport struct {
	TotalListings      int            `json:"total_listings"`
	PricedListings     int            `json:"priced_listings"`
	AveragePrice       float64        `json:"average_price"`
	MinPrice           int            `json:"min_price"`
	MaxPrice           int            `json:"max_price"`
	MostExpensive      *Listing       `json:"most_expensive,omitempty"`
	Freshest           []*Listing     `json:"freshest"`
	ListingsByAgency   map[string]int `json:"listings_by_agency"`
	ListingsByLocation map[string]int `json:"listings_by_location"`
}
