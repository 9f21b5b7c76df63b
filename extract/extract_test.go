package extract

import (
	"testing"

	"rental-scraper/config"
	"rental-scraper/models"
)

var testBand = Band{Min: 400, Max: 3500}

func defaultExtractor(t *testing.T) *Extractor {
	t.Helper()
	table, err := config.LoadAgencies("")
	if err != nil {
		t.Fatalf("load agencies: %v", err)
	}
	rules, err := CompileRules(table.Defaults.Patterns)
	if err != nil {
		t.Fatalf("compile rules: %v", err)
	}
	return New(rules, testBand)
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		raw  string
		want int
		ok   bool
	}{
		{"850", 850, true},
		{"1.250", 1250, true},
		{"1.250,-", 1250, true},
		{"1.250,--", 1250, true},
		{"950,-", 950, true},
		{"1.250,00", 1250, true},
		{"1,250.50", 1250, true},
		{"2 100", 2100, true},
		{"", 0, false},
		{"op aanvraag", 0, false},
		{"0", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParsePrice(tt.raw)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParsePrice(%q) = %d, %v; want %d, %v", tt.raw, got, ok, tt.want, tt.ok)
		}
	}
}

func TestExtractorPrice(t *testing.T) {
	e := defaultExtractor(t)

	tests := []struct {
		text  string
		want  int
		state models.FieldState
	}{
		{"Huurprijs: € 1.150,- per maand", 1150, models.FieldFound},
		{"€ 725 p/m excl. servicekosten", 725, models.FieldFound},
		{"Borg € 95 | Huur € 650", 650, models.FieldFound},
		{"Prijs op aanvraag", 0, models.FieldUnknown},
		{"€ 250.000 k.k.", 0, models.FieldUnknown},
		{"", 0, models.FieldUnknown},
	}

	for _, tt := range tests {
		got := e.Price(tt.text)
		if got.Value != tt.want || got.State != tt.state {
			t.Errorf("Price(%q) = %d (%v); want %d (%v)", tt.text, got.Value, got.State, tt.want, tt.state)
		}
	}
}

func TestExtractorPriceNeverOutOfBand(t *testing.T) {
	e := defaultExtractor(t)
	inputs := []string{
		"€ 12", "€ 399", "€ 400", "€ 3.500", "€ 3.501", "€ 99.999",
		"Huurprijs: € 10.000 Borg € 800", "€ 1.000.000", "€ 0,-",
	}

	for _, in := range inputs {
		got := e.Price(in)
		if got.Value != 0 && !testBand.Contains(got.Value) {
			t.Errorf("Price(%q) = %d outside band %v", in, got.Value, testBand)
		}
		if got.Value == 0 && got.Ok() {
			t.Errorf("Price(%q) returned found zero", in)
		}
	}
}

func TestExtractorPatternOrder(t *testing.T) {
	rules, err := CompileRules(config.Patterns{
		Price: []string{`huur €\s*([\d.]+)`, `€\s*([\d.]+)`},
	})
	if err != nil {
		t.Fatal(err)
	}
	e := New(rules, testBand)

	got := e.Price("servicekosten € 500, huur € 900")
	if got.Value != 900 {
		t.Errorf("first pattern should win: got %d, want 900", got.Value)
	}
}

func TestExtractorRooms(t *testing.T) {
	e := defaultExtractor(t)

	tests := []struct {
		text string
		want int
		ok   bool
	}{
		{"Aantal kamers: 3", 3, true},
		{"2 slaapkamers, 1 badkamer", 2, true},
		{"Studio met 1 kamer", 1, true},
		{"3 bedrooms", 3, true},
		{"Mooi appartement", 0, false},
	}

	for _, tt := range tests {
		got := e.Rooms(tt.text)
		if got.Value != tt.want || got.Ok() != tt.ok {
			t.Errorf("Rooms(%q) = %d (%v); want %d", tt.text, got.Value, got.State, tt.want)
		}
	}
}

func TestExtractorSize(t *testing.T) {
	e := defaultExtractor(t)

	tests := []struct {
		text string
		want string
	}{
		{"Woonoppervlakte: 85 m2", "85 m²"},
		{"ca. 42m² woonruimte", "42 m²"},
		{"60 vierkante meter", "60 m²"},
		{"geen oppervlakte", ""},
	}

	for _, tt := range tests {
		got := e.Size(tt.text)
		if got.Value != tt.want {
			t.Errorf("Size(%q) = %q; want %q", tt.text, got.Value, tt.want)
		}
	}
}

func TestExtractorDateAndAddress(t *testing.T) {
	e := defaultExtractor(t)

	if got := e.DateText("Aangeboden sinds: 05-06-2025"); got.Value != "05-06-2025" {
		t.Errorf("numeric date: got %q", got.Value)
	}
	if got := e.DateText("Geplaatst op donderdag 5 juni 2025"); got.Value != "donderdag 5 juni 2025" {
		t.Errorf("long date: got %q", got.Value)
	}
	if got := e.Address("Oosterstraat 5, 9711 NN Groningen"); got.Value != "Groningen" {
		t.Errorf("address: got %q", got.Value)
	}
	if got := e.Address("nergens"); got.Ok() {
		t.Errorf("address should be unknown, got %q", got.Value)
	}
}

func TestCompileRulesRequiresCaptureGroup(t *testing.T) {
	_, err := CompileRules(config.Patterns{Rooms: []string{`\d+ kamers`}})
	if err == nil {
		t.Error("expected error for pattern without capture group")
	}
}

func TestFieldOrNeverOverwritesFound(t *testing.T) {
	found := Found(3).Or(1)
	if found.Value != 3 || found.State != models.FieldFound {
		t.Errorf("Found(3).Or(1) = %+v", found)
	}

	est := Unknown[int]().Or(1)
	if est.Value != 1 || est.State != models.FieldEstimated {
		t.Errorf("Unknown().Or(1) = %+v", est)
	}

	pref := Unknown[int]().OrField(Found(2))
	if pref.Value != 2 || !pref.Ok() {
		t.Errorf("Unknown().OrField(Found(2)) = %+v", pref)
	}
}
