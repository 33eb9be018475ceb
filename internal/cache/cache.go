// Package cache keeps short-lived copies of per-user authorization state so the
// auth middleware does not hit MongoDB on every request. Two backends exist:
// Redis for multi-instance deployments and an in-process expirable LRU.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/OsGift/safawinet-api/internal/metrics"
	"github.com/OsGift/safawinet-api/internal/models"
)

// ErrCacheMiss is returned by Store.Get when the key is absent or expired
var ErrCacheMiss = errors.New("cache miss")

// Store is a byte-oriented key/value store with expiry
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Name() string
	Close() error
}

const authKeyPrefix = "auth:user:"

// AuthCache stores AuthContext values keyed by user ID
type AuthCache struct {
	store   Store
	ttl     time.Duration
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewAuthCache wraps store. A zero ttl disables caching.
func NewAuthCache(store Store, ttl time.Duration, m *metrics.Metrics, logger *zap.Logger) *AuthCache {
	return &AuthCache{store: store, ttl: ttl, metrics: m, logger: logger}
}

// Get returns the cached context for userID, if any. Backend errors count as misses.
func (c *AuthCache) Get(ctx context.Context, userID string) (*models.AuthContext, bool) {
	if c == nil || c.store == nil || c.ttl <= 0 {
		return nil, false
	}
	data, err := c.store.Get(ctx, authKeyPrefix+userID)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			c.logger.Warn("auth cache read failed", zap.String("backend", c.store.Name()), zap.Error(err))
		}
		c.metrics.ObserveCache(c.store.Name(), false)
		return nil, false
	}

	var ac models.AuthContext
	if err := json.Unmarshal(data, &ac); err != nil {
		_ = c.store.Delete(ctx, authKeyPrefix+userID)
		c.metrics.ObserveCache(c.store.Name(), false)
		return nil, false
	}
	c.metrics.ObserveCache(c.store.Name(), true)
	return &ac, true
}

// Set stores ac under its user ID
func (c *AuthCache) Set(ctx context.Context, ac *models.AuthContext) {
	if c == nil || c.store == nil || c.ttl <= 0 || ac == nil {
		return
	}
	data, err := json.Marshal(ac)
	if err != nil {
		return
	}
	if err := c.store.Set(ctx, authKeyPrefix+ac.UserID.Hex(), data, c.ttl); err != nil {
		c.logger.Warn("auth cache write failed", zap.String("backend", c.store.Name()), zap.Error(err))
	}
}

// Invalidate drops the cached contexts of the given users
func (c *AuthCache) Invalidate(ctx context.Context, userIDs ...string) {
	if c == nil || c.store == nil || len(userIDs) == 0 {
		return
	}
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = authKeyPrefix + id
	}
	if err := c.store.Delete(ctx, keys...); err != nil {
		c.logger.Warn("auth cache invalidation failed", zap.Strings("user_ids", userIDs), zap.Error(err))
	}
}
