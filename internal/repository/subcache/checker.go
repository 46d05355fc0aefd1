// Package subcache caches positive subscription verifications.
package subcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/tenderfilter/internal/db"
	"github.com/kailas-cloud/tenderfilter/internal/domain"
	"github.com/kailas-cloud/tenderfilter/internal/domain/subscription"
	logpkg "github.com/kailas-cloud/tenderfilter/internal/logger"
)

var cacheKeyPrefix = domain.KeyPrefix + "sub_cache:"

// Checker is the wrapped subscription lookup.
type Checker interface {
	Verify(ctx context.Context, customerID string) (subscription.Verification, error)
}

// store is the consumer interface for the verification cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// CachedChecker remembers active verifications for a TTL.
// Inactive results and errors always reach the inner checker, so access is
// never granted from a stale negative or a failed lookup.
type CachedChecker struct {
	inner      Checker
	store      store
	ttl        time.Duration
	scope      string
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator. scope separates cache entries per plan.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(
	inner Checker,
	s store,
	ttl time.Duration,
	scope string,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedChecker {
	return &CachedChecker{
		inner:      inner,
		store:      s,
		ttl:        ttl,
		scope:      scope,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

type cachedSubscription struct {
	ID     string `json:"id"`
	PlanID string `json:"plan_id"`
	Status string `json:"status"`
}

// Verify returns a cached active verification or calls the inner checker.
func (c *CachedChecker) Verify(ctx context.Context, customerID string) (subscription.Verification, error) {
	key := c.cacheKey(customerID)

	if v, ok := c.getFromCache(ctx, key, customerID); ok {
		c.incCache("hit")
		return v, nil
	}

	c.incCache("miss")

	v, err := c.inner.Verify(ctx, customerID)
	if err != nil {
		return subscription.Verification{}, fmt.Errorf("verify subscription: %w", err)
	}

	if v.Active() {
		c.putToCache(ctx, key, v)
	}
	return v, nil
}

func (c *CachedChecker) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func (c *CachedChecker) cacheKey(customerID string) string {
	h := sha256.Sum256([]byte(c.scope + "\x00" + customerID))
	return cacheKeyPrefix + hex.EncodeToString(h[:])
}

func (c *CachedChecker) getFromCache(
	ctx context.Context, key, customerID string,
) (subscription.Verification, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			logpkg.FromContextOr(ctx, c.logger).Warn("Failed to get cached subscription",
				zap.String("key", key), zap.Error(err))
		}
		return subscription.Verification{}, false
	}

	var cached []cachedSubscription
	if err := json.Unmarshal(data, &cached); err != nil {
		logpkg.FromContextOr(ctx, c.logger).Warn("Failed to parse cached subscription",
			zap.String("key", key), zap.Error(err))
		c.evict(ctx, key)
		return subscription.Verification{}, false
	}

	subs := make([]subscription.Subscription, 0, len(cached))
	for _, s := range cached {
		subs = append(subs, subscription.Subscription{
			ID:     s.ID,
			PlanID: s.PlanID,
			Status: subscription.Status(s.Status),
		})
	}
	v := subscription.Verification{CustomerID: customerID, Entitled: subscription.Entitled(subs)}
	if !v.Active() {
		c.evict(ctx, key)
		return subscription.Verification{}, false
	}
	return v, true
}

// evict drops an entry that can no longer grant access.
func (c *CachedChecker) evict(ctx context.Context, key string) {
	if err := c.store.Del(ctx, key); err != nil {
		logpkg.FromContextOr(ctx, c.logger).Warn("Failed to evict cached subscription",
			zap.String("key", key), zap.Error(err))
	}
}

func (c *CachedChecker) putToCache(ctx context.Context, key string, v subscription.Verification) {
	cached := make([]cachedSubscription, 0, len(v.Entitled))
	for _, s := range v.Entitled {
		cached = append(cached, cachedSubscription{ID: s.ID, PlanID: s.PlanID, Status: string(s.Status)})
	}
	data, err := json.Marshal(cached)
	if err != nil {
		logpkg.FromContextOr(ctx, c.logger).Warn("Failed to encode subscription for cache", zap.Error(err))
		return
	}
	if err := c.store.SetWithTTL(ctx, key, data, c.ttl); err != nil {
		logpkg.FromContextOr(ctx, c.logger).Warn("Failed to cache subscription",
			zap.String("key", key), zap.Error(err))
	}
}
