package members

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// lookupTimeout bounds a shared backend lookup, which outlives the
// cancellation of whichever caller started it.
const lookupTimeout = 5 * time.Second

// Finder loads a membership by user and tenant.
type Finder interface {
	FindByUserAndTenant(ctx context.Context, userID, tenantID uuid.UUID) (Membership, error)
}

// Cache fronts a Finder with short-lived Redis entries. Concurrent misses for
// the same pair share one backend lookup. Entries may trail a role change by
// up to the TTL unless the writer calls Invalidate.
type Cache struct {
	next   Finder
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group
}

// NewCache wraps next. A nil client or non-positive ttl disables caching.
func NewCache(next Finder, client *redis.Client, ttl time.Duration, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{next: next, client: client, ttl: ttl, logger: logger}
}

// FindByUserAndTenant serves from Redis when possible. Redis failures fall
// back to the backend. Not-found results are never cached.
func (c *Cache) FindByUserAndTenant(ctx context.Context, userID, tenantID uuid.UUID) (Membership, error) {
	if !c.enabled() {
		return c.next.FindByUserAndTenant(ctx, userID, tenantID)
	}
	key := cacheKey(userID, tenantID)
	if payload, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var m Membership
		if err := json.Unmarshal(payload, &m); err == nil {
			return m, nil
		}
		c.logger.Warn("membership cache decode", slog.String("key", key))
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("membership cache get", slog.Any("error", err))
	}

	ch := c.group.DoChan(key, func() (any, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lookupTimeout)
		defer cancel()
		m, err := c.next.FindByUserAndTenant(lookupCtx, userID, tenantID)
		if err != nil {
			return Membership{}, err
		}
		if data, err := json.Marshal(m); err == nil {
			if err := c.client.Set(lookupCtx, key, data, c.ttl).Err(); err != nil {
				c.logger.Warn("membership cache set", slog.Any("error", err))
			}
		}
		return m, nil
	})
	select {
	case <-ctx.Done():
		return Membership{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Membership{}, res.Err
		}
		return res.Val.(Membership), nil
	}
}

// Invalidate drops the cached entry for the pair.
func (c *Cache) Invalidate(ctx context.Context, userID, tenantID uuid.UUID) {
	if !c.enabled() {
		return
	}
	if err := c.client.Del(ctx, cacheKey(userID, tenantID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		c.logger.Warn("membership cache invalidate", slog.Any("error", err))
	}
}

func (c *Cache) enabled() bool {
	return c != nil && c.client != nil && c.ttl > 0
}

func cacheKey(userID, tenantID uuid.UUID) string {
	return "membership:" + tenantID.String() + ":" + userID.String()
}
