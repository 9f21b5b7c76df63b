package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rental-scraper/models"
	"rental-scraper/utils"
)

type recordingCache struct {
	mu    sync.Mutex
	calls []bool
}

func (c *recordingCache) Get(_ context.Context, force bool) (*models.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, force)
	return models.NewSnapshot(time.Now(), nil, nil), nil
}

func (c *recordingCache) snapshot() []bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]bool(nil), c.calls...)
}

func TestNewRefresherRejectsSubSecondInterval(t *testing.T) {
	_, err := NewRefresher(&recordingCache{}, 500*time.Millisecond, utils.NewNopLogger())
	assert.Error(t, err)
}

func TestRefresherWarmsThenForcesOnSchedule(t *testing.T) {
	cache := &recordingCache{}
	r, err := NewRefresher(cache, time.Second, utils.NewNopLogger())
	require.NoError(t, err)

	r.Start(context.Background())
	defer r.Stop(context.Background())

	require.Eventually(t, func() bool { return len(cache.snapshot()) >= 2 }, 3*time.Second, 20*time.Millisecond)

	calls := cache.snapshot()
	assert.False(t, calls[0], "warm-up uses the cache")
	assert.True(t, calls[1], "scheduled ticks force a refresh")
}

func TestRefresherStopWithoutStart(t *testing.T) {
	r, err := NewRefresher(&recordingCache{}, time.Minute, utils.NewNopLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	r.Stop(ctx)
}
