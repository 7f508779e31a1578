// Package monitor implements the status-inference core: given scheduled
// stops and a stream of geolocated pings, it decides which stops are
// operationally relevant, whether the vehicle has arrived, extrapolates
// ETAs, and grades the trip's health into notification events.
package monitor

import (
	"time"

	"trip-monitor/internal/domain"
	"trip-monitor/internal/geo"
)

// GeofenceRadius is the maximum planar distance, in meters, between a ping
// and a stop for the ping to count as evidence of arrival at that stop.
const GeofenceRadius = 120.0

// BuildArrivalHistory annotates every stop with the ping that best evidences
// the vehicle's arrival there, and every route with the vehicle's last known
// ping. Stops with no ping inside the geofence keep a nil BestPing; absence
// of pings is not an error.
func BuildArrivalHistory(infoByRoute map[int64]*domain.RouteInfo, pingsByRoute map[int64][]*domain.Ping) {
	for routeID, info := range infoByRoute {
		if info == nil || info.Trip == nil {
			continue
		}
		pings := pingsByRoute[routeID]
		for _, stop := range info.Trip.Stops {
			assignBestPing(stop, pings)
		}
		info.LastPing = latestPing(pings)
	}
}

// assignBestPing picks the ping closest in time to the stop's scheduled time
// among pings within the geofence.
func assignBestPing(stop *domain.TripStop, pings []*domain.Ping) {
	var best *domain.Ping
	var bestDelta time.Duration
	for _, p := range pings {
		if geo.PlanarDistance(p.XY, stop.XY) > GeofenceRadius {
			continue
		}
		delta := absDuration(p.Time.Sub(stop.Time))
		if best == nil || delta < bestDelta {
			best, bestDelta = p, delta
		}
	}
	stop.BestPing = best
	if best != nil {
		stop.BestPingDistance = geo.PlanarDistance(best.XY, stop.XY)
	} else {
		stop.BestPingDistance = 0
	}
}

// latestPing returns the ping with the maximum timestamp, regardless of
// geofence.
func latestPing(pings []*domain.Ping) *domain.Ping {
	var last *domain.Ping
	for _, p := range pings {
		if last == nil || p.Time.After(last.Time) {
			last = p
		}
	}
	return last
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
