package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianmed/marketing-compliance-backend/internal/infrastructure/cache"
)

func newTestClient(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestRecordAction_CountsWithinWindow(t *testing.T) {
	tracker := cache.NewActivityTracker(newTestClient(t))
	ctx := context.Background()
	now := time.Now()

	for i := 1; i <= 5; i++ {
		count, err := tracker.RecordAction(ctx, "user-1", now.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
		assert.Equal(t, i, count)
	}
}

func TestRecordAction_OldEntriesTrimmed(t *testing.T) {
	tracker := cache.NewActivityTracker(newTestClient(t))
	ctx := context.Background()
	now := time.Now()

	_, err := tracker.RecordAction(ctx, "user-1", now.Add(-10*time.Minute))
	require.NoError(t, err)

	// The stale entry falls outside the window of the second write.
	count, err := tracker.RecordAction(ctx, "user-1", now)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRecordAction_ActorsIsolated(t *testing.T) {
	tracker := cache.NewActivityTracker(newTestClient(t))
	ctx := context.Background()
	now := time.Now()

	_, err := tracker.RecordAction(ctx, "user-1", now)
	require.NoError(t, err)

	count, err := tracker.RecordAction(ctx, "user-2", now.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestKnownAddrs(t *testing.T) {
	tracker := cache.NewActivityTracker(newTestClient(t))
	ctx := context.Background()

	known, err := tracker.IsKnownAddr(ctx, "user-1", "203.0.113.9")
	require.NoError(t, err)
	assert.False(t, known)

	require.NoError(t, tracker.RememberAddr(ctx, "user-1", "203.0.113.9"))

	known, err = tracker.IsKnownAddr(ctx, "user-1", "203.0.113.9")
	require.NoError(t, err)
	assert.True(t, known)

	// Address sets are per actor.
	known, err = tracker.IsKnownAddr(ctx, "user-2", "203.0.113.9")
	require.NoError(t, err)
	assert.False(t, known)
}
