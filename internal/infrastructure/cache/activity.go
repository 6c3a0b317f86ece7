package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	activityKeyPrefix = "audit:activity:"
	addrKeyPrefix     = "audit:addrs:"

	defaultWindow = 5 * time.Minute

	// Known-address sets refresh on every sighting; an address unseen for
	// this long counts as new again.
	addrTTL = 90 * 24 * time.Hour
)

// ActivityTracker keeps per-actor hot state in redis: a sliding action
// counter over the rapid-action window, and the set of seen source
// addresses. Errors surface to the caller, which falls back to the event
// store.
type ActivityTracker struct {
	client *redis.Client
	window time.Duration
}

func NewActivityTracker(client *redis.Client) *ActivityTracker {
	return &ActivityTracker{client: client, window: defaultWindow}
}

// RecordAction registers one action at `at` and returns the count within
// the trailing window. Implemented as a sorted set of timestamps trimmed
// on every write.
func (t *ActivityTracker) RecordAction(ctx context.Context, actorID string, at time.Time) (int, error) {
	key := activityKeyPrefix + actorID
	nano := at.UnixNano()
	windowStart := at.Add(-t.window).UnixNano()

	pipe := t.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(nano),
		Member: strconv.FormatInt(nano, 10),
	})
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart, 10))
	card := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, t.window)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return int(card.Val()), nil
}

func (t *ActivityTracker) IsKnownAddr(ctx context.Context, actorID, addr string) (bool, error) {
	return t.client.SIsMember(ctx, addrKeyPrefix+actorID, addr).Result()
}

func (t *ActivityTracker) RememberAddr(ctx context.Context, actorID, addr string) error {
	key := addrKeyPrefix + actorID
	pipe := t.client.TxPipeline()
	pipe.SAdd(ctx, key, addr)
	pipe.Expire(ctx, key, addrTTL)
	_, err := pipe.Exec(ctx)
	return err
}
