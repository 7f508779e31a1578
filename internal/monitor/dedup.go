package monitor

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"trip-monitor/internal/domain"
)

// NoPingsCooldown is how long a persisted noPings alert suppresses repeats
// with the same identity. A fresh alert is allowed again after an hour of
// continued silence.
const NoPingsCooldown = 60 * time.Minute

// PriorAlertLookup resolves the most recently persisted event sharing a
// dateRoute+alertId identity. The second return is false when none exists.
type PriorAlertLookup interface {
	LastAlert(ctx context.Context, dateRoute, alertID string) (time.Time, bool, error)
}

// FilterRecentNoPings suppresses noPings events whose identity was already
// persisted less than NoPingsCooldown before the candidate. All other event
// types pass through unfiltered. Lookup failures keep the candidate: dropping
// an alert is worse than repeating one.
func FilterRecentNoPings(ctx context.Context, events []domain.NotificationEvent, lookup PriorAlertLookup) []domain.NotificationEvent {
	kept := make([]domain.NotificationEvent, 0, len(events))
	for _, e := range events {
		if e.Type != domain.EventNoPings {
			kept = append(kept, e)
			continue
		}
		prev, ok, err := lookup.LastAlert(ctx, e.DateRoute, e.AlertID)
		if err != nil {
			logrus.WithError(err).WithField("alertId", e.AlertID).
				Warn("prior alert lookup failed, keeping event")
			kept = append(kept, e)
			continue
		}
		if ok && e.Time.Sub(prev) < NoPingsCooldown {
			continue
		}
		kept = append(kept, e)
	}
	return kept
}
