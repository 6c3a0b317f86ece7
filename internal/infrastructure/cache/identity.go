package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	auditsvc "github.com/meridianmed/marketing-compliance-backend/internal/service/audit"
)

const (
	identityKeyPrefix = "audit:identity:"
	identityTTL       = 10 * time.Minute
)

// CachedDirectory fronts an identity directory with a redis cache. Cache
// failures degrade to the underlying directory; they never fail a lookup.
type CachedDirectory struct {
	client   *redis.Client
	fallback auditsvc.Directory
	logger   *zap.Logger
}

func NewCachedDirectory(client *redis.Client, fallback auditsvc.Directory, logger *zap.Logger) *CachedDirectory {
	return &CachedDirectory{client: client, fallback: fallback, logger: logger}
}

func (d *CachedDirectory) Lookup(ctx context.Context, actorID string) (auditsvc.Identity, error) {
	key := identityKeyPrefix + actorID

	cached, err := d.client.Get(ctx, key).Bytes()
	if err == nil {
		var identity auditsvc.Identity
		if err := json.Unmarshal(cached, &identity); err == nil {
			return identity, nil
		}
	} else if err != redis.Nil {
		d.logger.Debug("identity cache read failed", zap.Error(err))
	}

	identity, err := d.fallback.Lookup(ctx, actorID)
	if err != nil {
		return auditsvc.Identity{}, err
	}

	if payload, err := json.Marshal(identity); err == nil {
		if err := d.client.Set(ctx, key, payload, identityTTL).Err(); err != nil {
			d.logger.Debug("identity cache write failed", zap.Error(err))
		}
	}
	return identity, nil
}
