package models

import (
	"time"

	"github.com/google/uuid"
)

// SourceOutcome summarises one adapter's part in an aggregation run.
type SourceOutcome struct {
	AgencyName string        `json:"agency_name"`
	Succeeded  bool          `json:"succeeded"`
	Count      int           `json:"count"`
	Skipped    int           `json:"skipped"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// Snapshot is one complete aggregation result. Listings are ordered freshest
// first. A Snapshot is shared read-only once published by the cache.
type Snapshot struct {
	RunID      string          `json:"run_id"`
	CapturedAt time.Time       `json:"captured_at"`
	Listings   []*Listing      `json:"listings"`
	Sources    []SourceOutcome `json:"sources"`
}

// NewSnapshot stamps a new snapshot with a run id and capture time.
func NewSnapshot(capturedAt time.Time, listings []*Listing, sources []SourceOutcome) *Snapshot {
	if listings == nil {
		listings = []*Listing{}
	}
	return &Snapshot{
		RunID:      uuid.NewString(),
		CapturedAt: capturedAt,
		Listings:   listings,
		Sources:    sources,
	}
}

// FailedSources returns the outcomes of adapters that did not succeed.
func (s *Snapshot) FailedSources() []SourceOutcome {
	var out []SourceOutcome
	for _, o := range s.Sources {
		if !o.Succeeded {
			out = append(out, o)
		}
	}
	return out
}

// SucceededSources returns the outcomes of adapters that produced a result.
func (s *Snapshot) SucceededSources() []SourceOutcome {
	var out []SourceOutcome
	for _, o := range s.Sources {
		if o.Succeeded {
			out = append(out, o)
		}
	}
	return out
}

// IDs returns the set of listing ids in the snapshot.
func (s *Snapshot) IDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(s.Listings))
	for _, l := range s.Listings {
		ids[l.ID] = struct{}{}
	}
	return ids
}
