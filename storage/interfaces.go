package storage

import (
	"context"

	"rental-scraper/models"
)

// SnapshotWriter is the interface any snapshot sink must satisfy.
type SnapshotWriter interface {
	Write(ctx context.Context, snap *models.Snapshot) error
	Close() error
}
