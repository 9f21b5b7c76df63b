package config

import (
	"embed"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed agencies.yaml
var defaultAgenciesFS embed.FS

// Render modes for fetching an agency's pages.
const (
	RenderHTTP    = "http"
	RenderBrowser = "browser"
)

// Patterns are ordered regular expressions per field kind. The first capture
// group of the first matching expression is the extracted value.
type Patterns struct {
	Price   []string `yaml:"price"`
	Rooms   []string `yaml:"rooms"`
	Size    []string `yaml:"size"`
	Date    []string `yaml:"date"`
	Address []string `yaml:"address"`
}

func (p Patterns) all() []string {
	var out []string
	out = append(out, p.Price...)
	out = append(out, p.Rooms...)
	out = append(out, p.Size...)
	out = append(out, p.Date...)
	out = append(out, p.Address...)
	return out
}

// Estimates are the clearly-flagged defaults applied when an agency publishes
// nothing for a descriptive field. Zero disables the estimate.
type Estimates struct {
	Rooms int `yaml:"rooms"`
}

// Defaults apply to every agency that does not override them.
type Defaults struct {
	Location  string    `yaml:"location"`
	Estimates Estimates `yaml:"estimates"`
	Patterns  Patterns  `yaml:"patterns"`
}

// AgencyConfig describes how to scrape one agency website.
type AgencyConfig struct {
	Name             string   `yaml:"name"`
	BaseURL          string   `yaml:"base_url"`
	ListingPaths     []string `yaml:"listing_paths"`
	Render           string   `yaml:"render"`
	Enabled          *bool    `yaml:"enabled"`
	LinkSelector     string   `yaml:"link_selector"`
	LinkPattern      string   `yaml:"link_pattern"`
	CardSelector     string   `yaml:"card_selector"`
	TitleSelector    string   `yaml:"title_selector"`
	DetailSelector   string   `yaml:"detail_selector"`
	ImageSelector    string   `yaml:"image_selector"`
	LocationSelector string   `yaml:"location_selector"`
	Location         string   `yaml:"location"`
	MaxListings      int      `yaml:"max_listings"`
	Patterns         Patterns `yaml:"patterns"`
}

// IsEnabled reports whether the agency takes part in aggregation.
// Agencies are enabled unless explicitly switched off.
func (a AgencyConfig) IsEnabled() bool {
	return a.Enabled == nil || *a.Enabled
}

// RenderMode returns the normalized render mode, defaulting to plain HTTP.
func (a AgencyConfig) RenderMode() string {
	if a.Render == "" {
		return RenderHTTP
	}
	return strings.ToLower(a.Render)
}

// AgencyTable is the static registry of agencies to aggregate.
type AgencyTable struct {
	Defaults Defaults       `yaml:"defaults"`
	Agencies []AgencyConfig `yaml:"agencies"`
}

// EnabledAgencies returns the enabled agencies in table order.
func (t *AgencyTable) EnabledAgencies() []AgencyConfig {
	var out []AgencyConfig
	for _, a := range t.Agencies {
		if a.IsEnabled() {
			out = append(out, a)
		}
	}
	return out
}

// PatternsFor returns the agency's own patterns followed by the shared
// defaults, per field kind.
func (t *AgencyTable) PatternsFor(a AgencyConfig) Patterns {
	d := t.Defaults.Patterns
	return Patterns{
		Price:   concat(a.Patterns.Price, d.Price),
		Rooms:   concat(a.Patterns.Rooms, d.Rooms),
		Size:    concat(a.Patterns.Size, d.Size),
		Date:    concat(a.Patterns.Date, d.Date),
		Address: concat(a.Patterns.Address, d.Address),
	}
}

// LocationFor returns the fallback location for listings of an agency.
func (t *AgencyTable) LocationFor(a AgencyConfig) string {
	if a.Location != "" {
		return a.Location
	}
	return t.Defaults.Location
}

func concat(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

// LoadAgencies reads the agency table from path, or the embedded default
// table when path is empty.
func LoadAgencies(path string) (*AgencyTable, error) {
	var (
		data []byte
		err  error
	)
	if path == "" {
		data, err = defaultAgenciesFS.ReadFile("agencies.yaml")
		if err != nil {
			return nil, fmt.Errorf("reading embedded agencies: %w", err)
		}
	} else {
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading agencies %s: %w", path, err)
		}
	}
	return ParseAgencies(data)
}

// ParseAgencies decodes and validates an agency table.
func ParseAgencies(data []byte) (*AgencyTable, error) {
	var table AgencyTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parsing agencies: %w", err)
	}
	if err := validate(&table); err != nil {
		return nil, err
	}
	return &table, nil
}

func validate(t *AgencyTable) error {
	if len(t.Agencies) == 0 {
		return fmt.Errorf("agencies: table is empty")
	}
	for _, p := range t.Defaults.Patterns.all() {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("defaults: invalid pattern %q: %w", p, err)
		}
	}

	seen := make(map[string]struct{}, len(t.Agencies))
	for i, a := range t.Agencies {
		if a.Name == "" {
			return fmt.Errorf("agency %d: name is required", i)
		}
		if _, dup := seen[a.Name]; dup {
			return fmt.Errorf("agency %q: duplicate name", a.Name)
		}
		seen[a.Name] = struct{}{}

		u, err := url.Parse(a.BaseURL)
		if err != nil || a.BaseURL == "" {
			return fmt.Errorf("agency %q: invalid base_url %q", a.Name, a.BaseURL)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("agency %q: base_url scheme must be http or https, got %q", a.Name, u.Scheme)
		}
		if len(a.ListingPaths) == 0 {
			return fmt.Errorf("agency %q: at least one listing path is required", a.Name)
		}
		if a.LinkSelector == "" {
			return fmt.Errorf("agency %q: link_selector is required", a.Name)
		}
		switch a.RenderMode() {
		case RenderHTTP, RenderBrowser:
		default:
			return fmt.Errorf("agency %q: unknown render mode %q (valid: http, browser)", a.Name, a.Render)
		}
		if a.LinkPattern != "" {
			if _, err := regexp.Compile(a.LinkPattern); err != nil {
				return fmt.Errorf("agency %q: invalid link_pattern: %w", a.Name, err)
			}
		}
		for _, p := range a.Patterns.all() {
			if _, err := regexp.Compile(p); err != nil {
				return fmt.Errorf("agency %q: invalid pattern %q: %w", a.Name, p, err)
			}
		}
	}
	return nil
}
