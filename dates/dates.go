// Package dates converts agency listing dates into calendar dates and an age
// in days.
package dates

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"rental-scraper/utils"
)

var (
	// strictNumeric takes priority over every other form.
	strictNumeric  = regexp.MustCompile(`^\s*(\d{2})-(\d{2})-(\d{4})`)
	looseNumeric   = regexp.MustCompile(`^\s*(\d{1,2})[-/.](\d{1,2})[-/.](\d{4})`)
	// weekdayNumeric covers "Donderdag 05-06-2025".
	weekdayNumeric = regexp.MustCompile(`(?i)^\s*([a-z]+)\.?,?\s+(\d{1,2})[-/.](\d{1,2})[-/.](\d{4})`)
	longForm       = regexp.MustCompile(`(?i)^\s*(?:([a-z]+)\.?,?\s+)?(\d{1,2})\s+([a-z]+)\.?,?\s+(\d{4})`)
)

var months = map[string]time.Month{
	"januari": time.January, "jan": time.January, "january": time.January,
	"februari": time.February, "feb": time.February, "february": time.February,
	"maart": time.March, "mrt": time.March, "mar": time.March, "march": time.March,
	"april": time.April, "apr": time.April,
	"mei": time.May, "may": time.May,
	"juni": time.June, "jun": time.June, "june": time.June,
	"juli": time.July, "jul": time.July, "july": time.July,
	"augustus": time.August, "aug": time.August, "august": time.August,
	"september": time.September, "sep": time.September, "sept": time.September,
	"oktober": time.October, "okt": time.October, "oct": time.October, "october": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

var weekdays = map[string]struct{}{
	"maandag": {}, "dinsdag": {}, "woensdag": {}, "donderdag": {}, "vrijdag": {}, "zaterdag": {}, "zondag": {},
	"ma": {}, "di": {}, "wo": {}, "do": {}, "vr": {}, "za": {}, "zo": {},
	"monday": {}, "tuesday": {}, "wednesday": {}, "thursday": {}, "friday": {}, "saturday": {}, "sunday": {},
}

// Result is a normalized listing date.
type Result struct {
	Date      time.Time
	DaysSince int
	// Estimated is set when the input could not be parsed and the fallback
	// date was used.
	Estimated bool
}

// Normalizer parses listing dates relative to "today" in a fixed location.
type Normalizer struct {
	loc         *time.Location
	fallbackAge int
	now         func() time.Time
	logger      *utils.Logger
}

// NewNormalizer creates a Normalizer. fallbackAge is how old an unparseable
// listing is assumed to be, rounded down to whole days.
func NewNormalizer(loc *time.Location, fallbackAge time.Duration, logger *utils.Logger) *Normalizer {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	days := int(fallbackAge / (24 * time.Hour))
	if days < 0 {
		days = 0
	}
	return &Normalizer{loc: loc, fallbackAge: days, now: time.Now, logger: logger}
}

// WithClock replaces the clock used to determine today. Intended for tests.
func (n *Normalizer) WithClock(now func() time.Time) *Normalizer {
	n.now = now
	return n
}

// Today returns the current calendar date in the normalizer's location.
func (n *Normalizer) Today() time.Time {
	y, m, d := n.now().In(n.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, n.loc)
}

// Normalize parses raw and computes its age. Unparseable input never fails:
// it yields the fallback date flagged as Estimated.
func (n *Normalizer) Normalize(raw string) Result {
	today := n.Today()

	if date, ok := n.Parse(raw); ok {
		return Result{Date: date, DaysSince: DaysBetween(date, today)}
	}

	if strings.TrimSpace(raw) == "" {
		n.logger.Debug("[dates] no listing date found, assuming %d days old", n.fallbackAge)
	} else {
		n.logger.Warn("[dates] unparseable listing date %q, assuming %d days old", raw, n.fallbackAge)
	}

	fallback := today.AddDate(0, 0, -n.fallbackAge)
	return Result{Date: fallback, DaysSince: n.fallbackAge, Estimated: true}
}

// Parse recognises DD-MM-YYYY and "<weekday> <day> <month> <year>" forms.
// A weekday may also precede the numeric form.
func (n *Normalizer) Parse(raw string) (time.Time, bool) {
	if m := strictNumeric.FindStringSubmatch(raw); m != nil {
		return n.build(m[3], m[2], m[1])
	}
	if m := looseNumeric.FindStringSubmatch(raw); m != nil {
		return n.build(m[3], m[2], m[1])
	}
	if m := weekdayNumeric.FindStringSubmatch(raw); m != nil {
		if !isWeekday(m[1]) {
			return time.Time{}, false
		}
		return n.build(m[4], m[3], m[2])
	}
	if m := longForm.FindStringSubmatch(raw); m != nil {
		if m[1] != "" && !isWeekday(m[1]) {
			return time.Time{}, false
		}
		month, ok := months[strings.ToLower(m[3])]
		if !ok {
			return time.Time{}, false
		}
		return n.build(m[4], strconv.Itoa(int(month)), m[2])
	}
	return time.Time{}, false
}

func isWeekday(s string) bool {
	_, ok := weekdays[strings.ToLower(s)]
	return ok
}

func (n *Normalizer) build(year, month, day string) (time.Time, bool) {
	y, err1 := strconv.Atoi(year)
	m, err2 := strconv.Atoi(month)
	d, err3 := strconv.Atoi(day)
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, false
	}
	if m < 1 || m > 12 || d < 1 || d > 31 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, n.loc)
	// reject overflow such as 31-02
	if t.Day() != d || int(t.Month()) != m {
		return time.Time{}, false
	}
	return t, true
}

// DaysBetween returns the whole calendar days from date to today, never
// negative.
func DaysBetween(date, today time.Time) int {
	from := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	to := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	days := int(to.Sub(from).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}
