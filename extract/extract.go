package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"rental-scraper/config"
)

// Kind names a listing attribute.
type Kind string

const (
	KindPrice   Kind = "price"
	KindRooms   Kind = "rooms"
	KindSize    Kind = "size"
	KindDate    Kind = "date"
	KindAddress Kind = "address"
)

// maxRooms rejects numbers that are clearly not a room count (house numbers,
// years) matched by loose patterns.
const maxRooms = 20

var (
	trailingDecimals = regexp.MustCompile(`[.,]\d{1,2}$`)
	digitsOnly       = regexp.MustCompile(`^\d+$`)
	sizeNumber       = regexp.MustCompile(`\d+`)
	whitespace       = regexp.MustCompile(`\s+`)
)

// Rules are the compiled, ordered patterns per field kind.
type Rules map[Kind][]*regexp.Regexp

// CompileRules compiles patterns in order. Every expression must have at
// least one capture group.
func CompileRules(p config.Patterns) (Rules, error) {
	rules := Rules{}
	sets := []struct {
		kind Kind
		list []string
	}{
		{KindPrice, p.Price},
		{KindRooms, p.Rooms},
		{KindSize, p.Size},
		{KindDate, p.Date},
		{KindAddress, p.Address},
	}
	for _, s := range sets {
		for _, expr := range s.list {
			re, err := regexp.Compile(expr)
			if err != nil {
				return nil, fmt.Errorf("extract: compile %s pattern %q: %w", s.kind, expr, err)
			}
			if re.NumSubexp() < 1 {
				return nil, fmt.Errorf("extract: %s pattern %q has no capture group", s.kind, expr)
			}
			rules[s.kind] = append(rules[s.kind], re)
		}
	}
	return rules, nil
}

// Band is the accepted monthly rent range. Prices outside it are treated as
// non-matches.
type Band struct {
	Min int
	Max int
}

// Contains reports whether v lies within the band, inclusive.
func (b Band) Contains(v int) bool {
	return v >= b.Min && v <= b.Max
}

// Extractor applies one agency's rules. It never panics and never returns
// an error: a miss is an Unknown field.
type Extractor struct {
	rules Rules
	band  Band
}

// New creates an Extractor for the given rules and price band.
func New(rules Rules, band Band) *Extractor {
	return &Extractor{rules: rules, band: band}
}

// Match returns the first capture of the first pattern of kind that matches
// text, trimmed.
func (e *Extractor) Match(kind Kind, text string) (string, bool) {
	for _, re := range e.rules[kind] {
		if m := re.FindStringSubmatch(text); m != nil {
			if v := strings.TrimSpace(m[1]); v != "" {
				return v, true
			}
		}
	}
	return "", false
}

// Price extracts the monthly rent. Every occurrence of every pattern is tried
// in order; out-of-band values are skipped.
func (e *Extractor) Price(text string) Field[int] {
	for _, re := range e.rules[KindPrice] {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			v, ok := ParsePrice(m[1])
			if ok && e.band.Contains(v) {
				return Found(v)
			}
		}
	}
	return Unknown[int]()
}

// Rooms extracts the number of rooms.
func (e *Extractor) Rooms(text string) Field[int] {
	for _, re := range e.rules[KindRooms] {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			n, err := strconv.Atoi(strings.TrimSpace(m[1]))
			if err == nil && n > 0 && n <= maxRooms {
				return Found(n)
			}
		}
	}
	return Unknown[int]()
}

// Size extracts the living area as display text, e.g. "85 m²".
func (e *Extractor) Size(text string) Field[string] {
	v, ok := e.Match(KindSize, text)
	if !ok {
		return Unknown[string]()
	}
	n := sizeNumber.FindString(v)
	if n == "" || n == "0" {
		return Unknown[string]()
	}
	return Found(n + " m²")
}

// DateText extracts the raw listing date string for the date normalizer.
func (e *Extractor) DateText(text string) Field[string] {
	v, ok := e.Match(KindDate, text)
	if !ok {
		return Unknown[string]()
	}
	return Found(v)
}

// Address extracts the listing's locality.
func (e *Extractor) Address(text string) Field[string] {
	v, ok := e.Match(KindAddress, text)
	if !ok {
		return Unknown[string]()
	}
	return Found(whitespace.ReplaceAllString(v, " "))
}

// ParsePrice turns a captured amount such as "1.250,-", "1.250,--",
// "1,250.00" or "850" into whole currency units. Thousands separators are
// stripped and trailing cents dropped.
func ParsePrice(raw string) (int, bool) {
	s := strings.TrimSpace(raw)
	s = strings.TrimRight(s, "-")
	s = strings.TrimRight(s, ".,")
	s = trailingDecimals.ReplaceAllString(s, "")
	s = strings.NewReplacer(".", "", ",", "", " ", "", "\u00a0", "").Replace(s)
	if !digitsOnly.MatchString(s) {
		return 0, false
	}
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}
