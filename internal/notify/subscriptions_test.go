package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trip-monitor/internal/domain"
)

type fakeSource struct {
	subs []domain.Subscription
	err  error
}

func (f *fakeSource) EventSubscriptions(_ context.Context) ([]domain.Subscription, error) {
	return f.subs, f.err
}

func telegramSub(companyID, chatID int64, minSeverity domain.Severity) domain.Subscription {
	return domain.Subscription{
		Handler:            "telegram",
		Params:             domain.SubscriptionParams{ChatID: chatID, MinSeverity: minSeverity},
		TransportCompanyID: companyID,
	}
}

func TestSubscriptionCacheReload(t *testing.T) {
	source := &fakeSource{subs: []domain.Subscription{
		telegramSub(11, 100, domain.SeverityWarning),
		telegramSub(11, 200, domain.SeverityUrgent),
		telegramSub(22, 300, domain.SeverityOK),
	}}
	cache := NewSubscriptionCache(source, time.Minute)

	require.NoError(t, cache.Reload(context.Background()))

	assert.Len(t, cache.ForCompany(11), 2)
	assert.Len(t, cache.ForCompany(22), 1)
	assert.Nil(t, cache.ForCompany(33))
}

func TestSubscriptionCacheReloadReplacesPrevious(t *testing.T) {
	source := &fakeSource{subs: []domain.Subscription{telegramSub(11, 100, 0)}}
	cache := NewSubscriptionCache(source, time.Minute)
	require.NoError(t, cache.Reload(context.Background()))

	source.subs = []domain.Subscription{telegramSub(22, 200, 0)}
	require.NoError(t, cache.Reload(context.Background()))

	assert.Nil(t, cache.ForCompany(11))
	assert.Len(t, cache.ForCompany(22), 1)
}

func TestSubscriptionCacheReloadError(t *testing.T) {
	source := &fakeSource{err: errors.New("db down")}
	cache := NewSubscriptionCache(source, time.Minute)

	assert.Error(t, cache.Reload(context.Background()))
}
