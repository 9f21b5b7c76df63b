package storage

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"rental-scraper/models"
)

var csvHeader = []string{
	"id", "agency", "title", "location", "price", "rooms", "rooms_state", "size",
	"size_state", "listed_date", "date_state", "days_since_listed", "url", "images", "captured_at",
}

// CSVWriter exports the listings of each snapshot to a CSV file, replacing
// the previous export. It is safe for concurrent use.
type CSVWriter struct {
	mu   sync.Mutex
	path string
}

// NewCSVWriter prepares an export at the given path. Intermediate
// directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}
	return &CSVWriter{path: path}, nil
}

// Write replaces the export with the listings of snap. The file is written
// to a temporary name first so readers never see a partial export.
func (c *CSVWriter) Write(_ context.Context, snap *models.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(c.path), ".listings-*.csv")
	if err != nil {
		return fmt.Errorf("csv: create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(csvHeader); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("csv: write header: %w", err)
	}

	captured := snap.CapturedAt.Format(time.RFC3339)
	for _, l := range snap.Listings {
		row := []string{
			l.ID,
			l.AgencyName,
			l.Title,
			l.Location,
			strconv.Itoa(l.PriceAmount),
			strconv.Itoa(l.RoomCount),
			l.RoomsState.String(),
			l.SizeText,
			l.SizeState.String(),
			l.ListedDate.Format(time.DateOnly),
			l.DateState.String(),
			strconv.Itoa(l.DaysSinceListed),
			l.SourceURL,
			strings.Join(l.ImageURLs, " "),
			captured,
		}
		if err := w.Write(row); err != nil {
			_ = tmp.Close()
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("csv: flush: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("csv: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		return fmt.Errorf("csv: replace %q: %w", c.path, err)
	}
	return nil
}

// Close is a no-op; every Write closes its own file.
func (c *CSVWriter) Close() error {
	return nil
}
