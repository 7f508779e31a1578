package notify

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"trip-monitor/internal/domain"
)

// SubscriptionSource is the slice of the schedule store the cache reloads
// from.
type SubscriptionSource interface {
	EventSubscriptions(ctx context.Context) ([]domain.Subscription, error)
}

// SubscriptionCache keeps operator subscriptions in memory, grouped by
// transport company, and reloads them from the schedule store on an interval.
// A failed reload keeps serving the previous snapshot.
type SubscriptionCache struct {
	source   SubscriptionSource
	cache    *gocache.Cache
	interval time.Duration
}

func NewSubscriptionCache(source SubscriptionSource, interval time.Duration) *SubscriptionCache {
	return &SubscriptionCache{
		source: source,
		// Entries never expire on their own; Reload replaces them wholesale.
		cache:    gocache.New(gocache.NoExpiration, 0),
		interval: interval,
	}
}

func companyKey(companyID int64) string {
	return fmt.Sprintf("company:%d", companyID)
}

// Reload replaces the cached subscriptions with a fresh read from the source.
func (c *SubscriptionCache) Reload(ctx context.Context) error {
	subs, err := c.source.EventSubscriptions(ctx)
	if err != nil {
		return fmt.Errorf("subscription reload failed: %w", err)
	}

	grouped := make(map[int64][]domain.Subscription)
	for _, sub := range subs {
		grouped[sub.TransportCompanyID] = append(grouped[sub.TransportCompanyID], sub)
	}

	c.cache.Flush()
	for companyID, group := range grouped {
		c.cache.Set(companyKey(companyID), group, gocache.NoExpiration)
	}
	logrus.WithField("subscriptions", len(subs)).Debug("subscription cache reloaded")
	return nil
}

// ForCompany returns the cached subscriptions for one transport company.
func (c *SubscriptionCache) ForCompany(companyID int64) []domain.Subscription {
	v, ok := c.cache.Get(companyKey(companyID))
	if !ok {
		return nil
	}
	return v.([]domain.Subscription)
}

// Start loads the cache once, then refreshes it on the configured interval
// until the context is cancelled. The initial load must succeed.
func (c *SubscriptionCache) Start(ctx context.Context) error {
	if err := c.Reload(ctx); err != nil {
		return err
	}
	go func() {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := c.Reload(ctx); err != nil {
					logrus.WithError(err).Warn("subscription refresh failed, keeping stale cache")
				}
			}
		}
	}()
	return nil
}
