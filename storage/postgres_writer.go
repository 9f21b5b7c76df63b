package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"rental-scraper/models"
)

const listingColumns = 12

// PostgresWriter archives snapshots to PostgreSQL: every listing is upserted
// by id and every run is recorded with its per-source outcomes.
type PostgresWriter struct {
	db *sql.DB
}

// NewPostgresWriter opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresWriter.
func NewPostgresWriter(ctx context.Context, dsn string) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		select {
		case <-ctx.Done():
			_ = db.Close()
			return nil, fmt.Errorf("postgres: ping: %w", ctx.Err())
		case <-time.After(2 * time.Second):
		}
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	pw := &PostgresWriter{db: db}
	if err := pw.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return pw, nil
}

func (pw *PostgresWriter) migrate(ctx context.Context) error {
	_, err := pw.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS listings (
			id                TEXT         PRIMARY KEY,
			agency            TEXT         NOT NULL,
			title             TEXT         NOT NULL,
			location          TEXT         NOT NULL DEFAULT '',
			price             INTEGER      NOT NULL DEFAULT 0,
			rooms             INTEGER      NOT NULL DEFAULT 0,
			size_text         TEXT         NOT NULL DEFAULT '',
			listed_date       DATE         NOT NULL,
			date_estimated    BOOLEAN      NOT NULL DEFAULT FALSE,
			url               TEXT         NOT NULL,
			image_urls        TEXT[]       NOT NULL DEFAULT '{}',
			first_seen_run    UUID         NOT NULL,
			first_seen_at     TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			last_seen_at      TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_listings_price    ON listings(price);
		CREATE INDEX IF NOT EXISTS idx_listings_location ON listings(location);
		CREATE INDEX IF NOT EXISTS idx_listings_agency   ON listings(agency);

		CREATE TABLE IF NOT EXISTS scrape_runs (
			run_id         UUID         PRIMARY KEY,
			captured_at    TIMESTAMPTZ  NOT NULL,
			listing_count  INTEGER      NOT NULL,
			failed_sources INTEGER      NOT NULL,
			sources        JSONB        NOT NULL
		);
	`)
	return err
}

// Write records the run and upserts its listings in one transaction.
func (pw *PostgresWriter) Write(ctx context.Context, snap *models.Snapshot) error {
	tx, err := pw.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	sources, err := json.Marshal(snap.Sources)
	if err != nil {
		return fmt.Errorf("postgres: encode sources: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO scrape_runs (run_id, captured_at, listing_count, failed_sources, sources)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (run_id) DO NOTHING
	`, snap.RunID, snap.CapturedAt, len(snap.Listings), len(snap.FailedSources()), sources); err != nil {
		return fmt.Errorf("postgres: insert run: %w", err)
	}

	const batchSize = 50
	for i := 0; i < len(snap.Listings); i += batchSize {
		end := i + batchSize
		if end > len(snap.Listings) {
			end = len(snap.Listings)
		}
		query, args := upsertListings(snap.RunID, snap.Listings[i:end])
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("postgres: upsert listings: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

// upsertListings builds one multi-row upsert. A listing keeps the run that
// first saw it; every other column follows the latest snapshot.
func upsertListings(runID string, batch []*models.Listing) (string, []interface{}) {
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*listingColumns)

	for idx, l := range batch {
		base := idx * listingColumns
		placeholders := make([]string, listingColumns)
		for c := range placeholders {
			placeholders[c] = fmt.Sprintf("$%d", base+c+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(placeholders, ",")+")")
		valueArgs = append(valueArgs,
			l.ID, l.AgencyName, l.Title, l.Location, l.PriceAmount, l.RoomCount, l.SizeText,
			l.ListedDate, l.DateState == models.FieldEstimated, l.SourceURL,
			pq.Array(l.ImageURLs), runID)
	}

	query := fmt.Sprintf(`
		INSERT INTO listings (id, agency, title, location, price, rooms, size_text,
			listed_date, date_estimated, url, image_urls, first_seen_run)
		VALUES %s
		ON CONFLICT (id) DO UPDATE SET
			title          = EXCLUDED.title,
			location       = EXCLUDED.location,
			price          = EXCLUDED.price,
			rooms          = EXCLUDED.rooms,
			size_text      = EXCLUDED.size_text,
			listed_date    = EXCLUDED.listed_date,
			date_estimated = EXCLUDED.date_estimated,
			url            = EXCLUDED.url,
			image_urls     = EXCLUDED.image_urls,
			last_seen_at   = NOW()
	`, strings.Join(valueStrings, ","))

	return query, valueArgs
}

func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}
