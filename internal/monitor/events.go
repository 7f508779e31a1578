package monitor

import (
	"math"
	"time"

	"trip-monitor/internal/domain"
)

const (
	recentPingWindow = 5 * time.Minute

	// Thresholds for the ping-health channel, measured from now to the
	// next relevant stop's scheduled time.
	noPingsUrgentWindow  = 5 * time.Minute
	noPingsWarningWindow = 25 * time.Minute

	// Thresholds for the distance/ETA-health channel.
	lateETAThreshold         = 10 * time.Minute
	lateArrivalWarning       = 15 * time.Minute
	lateArrivalMinor         = 5 * time.Minute
	lateETAReportedDelayMins = 10
)

// Synthesize maps a trip's classification into the three independent event
// channels: ping health, distance/ETA health, and emergency. Exactly one
// event per channel per cycle.
func Synthesize(trip *domain.Trip, now time.Time, lastPing *domain.Ping, cls Classification) domain.EventSet {
	return domain.EventSet{
		Ping:      pingEvent(trip, now, lastPing, cls),
		Distance:  distanceEvent(trip, now, cls),
		Emergency: emergencyEvent(trip, now),
	}
}

// pingEvent grades recency of contact from the driver app.
func pingEvent(trip *domain.Trip, now time.Time, lastPing *domain.Ping, cls Classification) domain.NotificationEvent {
	recentlyPinged := lastPing != nil && now.Sub(lastPing.Time) <= recentPingWindow

	switch {
	case cls.NextStopRelevant:
		until := cls.NextStop.Time.Sub(now)
		switch {
		case recentlyPinged:
			return domain.OKEvent(now, trip)
		case until <= noPingsUrgentWindow:
			return domain.NewNoPingsEvent(now, trip, domain.SeverityUrgent, 5)
		case until <= noPingsWarningWindow:
			return domain.NewNoPingsEvent(now, trip, domain.SeverityWarning, bucketFiveMins(until))
		default:
			return domain.DontCareEvent(now, trip)
		}

	case cls.PrevStopRelevant:
		switch {
		case cls.ArrivedAtPrevStop:
			return domain.NewEvent(now, trip, domain.SeverityOK, "Bus has arrived", domain.EventGeneral)
		case recentlyPinged:
			return domain.NewEvent(now, trip, domain.SeverityOK, "App is switched on", domain.EventGeneral)
		default:
			return domain.NewNoPingsEvent(now, trip, domain.SeverityUrgent, 5)
		}

	default:
		return domain.DontCareEvent(now, trip)
	}
}

// distanceEvent grades ETA health against the schedule. When no ETA can be
// computed the channel says "don't care": the absence of pings already
// triggers the ping channel.
func distanceEvent(trip *domain.Trip, now time.Time, cls Classification) domain.NotificationEvent {
	switch {
	case cls.NextStopRelevant:
		return etaEvent(trip, now, cls.NextStopETA, cls.NextStop.Time)

	case cls.PrevStopRelevant:
		if !cls.ArrivedAtPrevStop {
			return etaEvent(trip, now, cls.PrevStopETA, cls.PrevStop.Time)
		}
		deviation := cls.PrevStop.BestPing.Time.Sub(cls.PrevStop.Time)
		switch {
		case deviation > lateArrivalWarning:
			return domain.NewLateArrivalEvent(now, trip, domain.SeverityWarning, wholeMinutes(deviation))
		case deviation > lateArrivalMinor:
			return domain.NewLateArrivalEvent(now, trip, domain.SeverityMinor, wholeMinutes(deviation))
		default:
			return domain.NewEvent(now, trip, domain.SeverityOK, "Service arrived on time", domain.EventGeneral)
		}

	default:
		return domain.DontCareEvent(now, trip)
	}
}

func etaEvent(trip *domain.Trip, now time.Time, eta *time.Time, scheduled time.Time) domain.NotificationEvent {
	if eta == nil {
		return domain.DontCareEvent(now, trip)
	}
	if eta.Sub(scheduled) >= lateETAThreshold {
		return domain.NewLateETAEvent(now, trip, domain.SeverityWarning, lateETAReportedDelayMins)
	}
	return domain.NewEvent(now, trip, domain.SeverityOK,
		"Service is on track to arrive punctually", domain.EventGeneral)
}

// emergencyEvent fires on cancelled trips regardless of ping or distance
// state.
func emergencyEvent(trip *domain.Trip, now time.Time) domain.NotificationEvent {
	if trip.Cancelled {
		return domain.NewCancellationEvent(now, trip, domain.SeverityCritical)
	}
	return domain.DontCareEvent(now, trip)
}

// bucketFiveMins rounds a duration up to the next 5-minute multiple,
// expressed in minutes.
func bucketFiveMins(d time.Duration) int {
	return int(math.Ceil(d.Minutes()/5)) * 5
}

// wholeMinutes truncates a duration to whole minutes.
func wholeMinutes(d time.Duration) int {
	return int(d / time.Minute)
}
