package storage

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rental-scraper/models"
)

func testSnapshot() *models.Snapshot {
	listed := time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC)
	return models.NewSnapshot(time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC), []*models.Listing{
		{
			ID: "a1", AgencyName: "Pandomo", Title: "Oosterstraat 5", Location: "Groningen",
			PriceAmount: 650, RoomCount: 3, RoomsState: models.FieldFound, SizeText: "70 m²",
			SizeState: models.FieldFound, ListedDate: listed, DateState: models.FieldFound,
			DaysSinceListed: 5, SourceURL: "https://www.pandomo.nl/huuraanbod/oosterstraat-5",
			ImageURLs: []string{"https://www.pandomo.nl/1.jpg", "https://www.pandomo.nl/2.jpg"},
		},
		{
			ID: "b2", AgencyName: "Nul50", Title: "Herestraat, 10", Location: "Groningen",
			RoomCount: 1, RoomsState: models.FieldEstimated, ListedDate: listed,
			DateState: models.FieldEstimated, DaysSinceListed: 7, SourceURL: "https://nul50.nl/herestraat-10",
		},
	}, []models.SourceOutcome{{AgencyName: "Pandomo", Succeeded: true, Count: 1}})
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVWriterExportsSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "listings.csv")
	w, err := NewCSVWriter(path)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Write(context.Background(), testSnapshot()))

	rows := readCSV(t, path)
	require.Len(t, rows, 3)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, "Oosterstraat 5", rows[1][2])
	assert.Equal(t, "650", rows[1][4])
	assert.Equal(t, "found", rows[1][6])
	assert.Equal(t, "2025-06-05", rows[1][9])
	assert.Equal(t, "https://www.pandomo.nl/1.jpg https://www.pandomo.nl/2.jpg", rows[1][13])
	assert.Equal(t, "Herestraat, 10", rows[2][2])
	assert.Equal(t, "estimated", rows[2][6])
	assert.Equal(t, "estimated", rows[2][10])
}

func TestCSVWriterReplacesPreviousExport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "listings.csv")
	w, err := NewCSVWriter(path)
	require.NoError(t, err)

	require.NoError(t, w.Write(context.Background(), testSnapshot()))
	require.NoError(t, w.Write(context.Background(), models.NewSnapshot(time.Now(), nil, nil)))

	rows := readCSV(t, path)
	assert.Len(t, rows, 1, "only the header remains")

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")
}

func TestUpsertListingsPlaceholders(t *testing.T) {
	snap := testSnapshot()

	query, args := upsertListings(snap.RunID, snap.Listings)

	assert.Len(t, args, 2*listingColumns)
	assert.Contains(t, query, "($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)")
	assert.Contains(t, query, "($13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24)")
	assert.True(t, strings.Contains(query, "ON CONFLICT (id) DO UPDATE"))
	assert.Equal(t, "a1", args[0])
	assert.Equal(t, false, args[8])
	assert.Equal(t, true, args[listingColumns+8], "estimated date is flagged")
	assert.Equal(t, pq.Array(snap.Listings[0].ImageURLs), args[10])
	assert.Equal(t, snap.RunID, args[11])
}
