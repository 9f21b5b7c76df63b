package dates

import (
	"testing"
	"time"

	"rental-scraper/utils"
)

func fixedNormalizer(t *testing.T) *Normalizer {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Amsterdam")
	if err != nil {
		loc = time.UTC
	}
	today := time.Date(2025, time.June, 10, 14, 30, 0, 0, loc)
	return NewNormalizer(loc, 7*24*time.Hour, utils.NewNopLogger()).
		WithClock(func() time.Time { return today })
}

func TestNormalizeNumeric(t *testing.T) {
	n := fixedNormalizer(t)

	got := n.Normalize("05-06-2025")
	if got.Date.Format("2006-01-02") != "2025-06-05" {
		t.Errorf("date: got %s, want 2025-06-05", got.Date.Format("2006-01-02"))
	}
	if got.DaysSince != 5 {
		t.Errorf("days since: got %d, want 5", got.DaysSince)
	}
	if got.Estimated {
		t.Error("numeric date should not be estimated")
	}
}

func TestNormalizeLongFormMatchesNumeric(t *testing.T) {
	n := fixedNormalizer(t)

	numeric := n.Normalize("05-06-2025")
	long := n.Normalize("Donderdag 5 juni 2025")

	if !long.Date.Equal(numeric.Date) || long.DaysSince != numeric.DaysSince || long.Estimated {
		t.Errorf("long form %+v differs from numeric %+v", long, numeric)
	}
}

func TestNormalizeForms(t *testing.T) {
	n := fixedNormalizer(t)

	tests := []struct {
		raw  string
		want string
		days int
	}{
		{"10-06-2025", "2025-06-10", 0},
		{"1-6-2025", "2025-06-01", 9},
		{"01/05/2025", "2025-05-01", 40},
		{"5 juni 2025", "2025-06-05", 5},
		{"zondag 1 juni 2025", "2025-06-01", 9},
		{"ma. 2 jun. 2025", "2025-06-02", 8},
		{"MAANDAG 31 MAART 2025", "2025-03-31", 71},
		{"3 June 2025", "2025-06-03", 7},
		{"05-06-2025 donderdag 1 mei 2025", "2025-06-05", 5},
		{"Donderdag 05-06-2025", "2025-06-05", 5},
		{"vr. 6/6/2025", "2025-06-06", 4},
	}

	for _, tt := range tests {
		got := n.Normalize(tt.raw)
		if got.Estimated {
			t.Errorf("Normalize(%q) fell back", tt.raw)
			continue
		}
		if got.Date.Format("2006-01-02") != tt.want || got.DaysSince != tt.days {
			t.Errorf("Normalize(%q) = %s/%d; want %s/%d",
				tt.raw, got.Date.Format("2006-01-02"), got.DaysSince, tt.want, tt.days)
		}
	}
}

func TestNormalizeFutureDateClampsToZero(t *testing.T) {
	n := fixedNormalizer(t)

	got := n.Normalize("01-07-2025")
	if got.DaysSince != 0 {
		t.Errorf("future date days since: got %d, want 0", got.DaysSince)
	}
}

func TestNormalizeFallback(t *testing.T) {
	n := fixedNormalizer(t)

	for _, raw := range []string{"", "binnenkort", "31-02-2025", "vrijdag 5 smarch 2025", "blauw 5 juni 2025", "blauw 05-06-2025"} {
		got := n.Normalize(raw)
		if !got.Estimated {
			t.Errorf("Normalize(%q) should be estimated", raw)
		}
		if got.DaysSince != 7 {
			t.Errorf("Normalize(%q) days since: got %d, want 7", raw, got.DaysSince)
		}
		if got.Date.Format("2006-01-02") != "2025-06-03" {
			t.Errorf("Normalize(%q) fallback date: got %s", raw, got.Date.Format("2006-01-02"))
		}
	}
}

func TestDaysBetweenNeverNegative(t *testing.T) {
	today := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	for offset := -30; offset <= 30; offset++ {
		d := today.AddDate(0, 0, offset)
		if got := DaysBetween(d, today); got < 0 {
			t.Errorf("DaysBetween offset %d = %d", offset, got)
		}
	}
}
