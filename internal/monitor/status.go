package monitor

import (
	"time"

	"github.com/twpayne/go-geom"

	"trip-monitor/internal/domain"
	"trip-monitor/internal/geo"
)

const (
	// The very first pickup gets a longer lead window since the vehicle
	// may not yet be en route; subsequent stops use a tighter window.
	firstStopLeadWindow = 30 * time.Minute
	stopLeadWindow      = 15 * time.Minute

	// With a single pickup stop the bus may leave up to 5 minutes early
	// since nobody is left behind; otherwise 2 minutes is the maximum so
	// buses don't have to linger at stops.
	multiStopArrivalWindow  = -2 * time.Minute
	singleStopArrivalWindow = -5 * time.Minute

	// assumedSpeedKMH is the average speed used for straight-line ETA
	// extrapolation.
	assumedSpeedKMH = 35.0
)

// Classification is the per-trip outcome of the status classifier.
type Classification struct {
	NextStop         *domain.TripStop
	NextStopRelevant bool
	NextStopETA      *time.Time

	PrevStop         *domain.TripStop
	PrevStopRelevant bool
	PrevStopETA      *time.Time

	ArrivedAtPrevStop bool
}

// ClassifyTrip determines which stop is operationally next and previous,
// whether the vehicle has arrived, and the extrapolated ETAs. Pure function
// of the route info and now.
func ClassifyTrip(info *domain.RouteInfo, now time.Time) Classification {
	var cls Classification

	// A stop is relevant if it allows boarding and either the route wants
	// notifications even when empty, or somebody is expected to board.
	relevant := make([]*domain.TripStop, 0, len(info.Trip.Stops))
	for _, s := range info.Trip.Stops {
		if s.CanBoard && (info.NotifyWhenEmpty || s.Pax > 0) {
			relevant = append(relevant, s)
		}
	}

	for _, s := range relevant {
		if s.Time.After(now) {
			cls.NextStop = s
			break
		}
	}
	if cls.NextStop != nil {
		window := stopLeadWindow
		if cls.NextStop == relevant[0] {
			window = firstStopLeadWindow
		}
		cls.NextStopRelevant = cls.NextStop.Time.Sub(now) <= window
	}

	for i := len(relevant) - 1; i >= 0; i-- {
		if !relevant[i].Time.After(now) {
			cls.PrevStop = relevant[i]
			break
		}
	}
	cls.PrevStopRelevant = cls.PrevStop != nil

	arrivalWindow := singleStopArrivalWindow
	if len(relevant) > 1 {
		arrivalWindow = multiStopArrivalWindow
	}
	if cls.PrevStop != nil && cls.PrevStop.BestPing != nil {
		cls.ArrivedAtPrevStop = cls.PrevStop.BestPing.Time.Sub(cls.PrevStop.Time) >= arrivalWindow
	}

	if info.LastPing != nil {
		if cls.PrevStop != nil {
			cls.PrevStopETA = computeETA(now, info.LastPing.XY, cls.PrevStop.XY)
		}
		if cls.NextStop != nil {
			cls.NextStopETA = computeETA(now, info.LastPing.XY, cls.NextStop.XY)
		}
	}

	return cls
}

// computeETA extrapolates an arrival time from the straight-line distance
// between two projected points at the assumed average speed. Returns nil when
// either coordinate is missing.
func computeETA(now time.Time, from, to geom.Coord) *time.Time {
	if from == nil || to == nil {
		return nil
	}
	hours := geo.PlanarDistance(from, to) / 1000 / assumedSpeedKMH
	eta := now.Add(time.Duration(hours * float64(time.Hour)))
	return &eta
}

// InjectArrivalStatus classifies every route's trip, synthesizes its event
// set, and records the derived status. Must run after BuildArrivalHistory.
func InjectArrivalStatus(infoByRoute map[int64]*domain.RouteInfo, now time.Time) {
	for _, info := range infoByRoute {
		if info == nil || info.Trip == nil {
			continue
		}
		cls := ClassifyTrip(info, now)
		events := Synthesize(info.Trip, now, info.LastPing, cls)

		status := &domain.Status{
			Emergency: info.Trip.Cancelled,
			Ping:      events.Ping.Severity,
			Distance:  events.Distance.Severity,
		}
		if cls.ArrivedAtPrevStop {
			t := cls.PrevStop.BestPing.Time
			status.ArrivalTime = &t
		}
		switch {
		case cls.NextStopRelevant:
			status.ETA = cls.NextStopETA
			status.BestPing = cls.NextStop.BestPing
		case cls.PrevStopRelevant:
			status.ETA = cls.PrevStopETA
			status.BestPing = cls.PrevStop.BestPing
		}

		info.Status = status
		info.Events = &events
		info.NobodyAboard = nobodyAboard(info.Trip)
	}
}

// nobodyAboard reports whether no stop on the trip expects any passengers.
func nobodyAboard(trip *domain.Trip) bool {
	for _, s := range trip.Stops {
		if s.Pax > 0 {
			return false
		}
	}
	return true
}
