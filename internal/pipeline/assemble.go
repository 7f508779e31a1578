// Package pipeline runs the periodic monitoring cycle: extract schedules and
// pings, run the status-inference core, load the export payloads and publish
// alerts.
package pipeline

import (
	"trip-monitor/internal/domain"
	"trip-monitor/internal/geo"
	"trip-monitor/internal/store"
)

// BuildRouteInfo joins the day's trips with their stops into the per-route
// working set the monitoring core operates on. Stop and route rows arrive
// separately from the schedule store; stops keep their query order (by trip,
// then scheduled time). Coordinates are projected onto the planar grid here,
// once, so the core only ever works with planar distances.
func BuildRouteInfo(routes []store.RouteRow, stops []store.StopRow) map[int64]*domain.RouteInfo {
	stopsByTrip := make(map[int64][]*domain.TripStop)
	for _, row := range stops {
		stop := &domain.TripStop{
			StopID:      row.StopID,
			TripID:      row.TripID,
			Time:        row.Time,
			CanBoard:    row.CanBoard,
			CanAlight:   row.CanAlight,
			Pax:         row.Pax,
			Description: row.Description,
			Road:        row.Road,
			Lat:         row.Lat,
			Lng:         row.Lng,
			XY:          geo.Project(row.Lat, row.Lng),
		}
		stopsByTrip[row.TripID] = append(stopsByTrip[row.TripID], stop)
	}

	infoByRoute := make(map[int64]*domain.RouteInfo, len(routes))
	for _, row := range routes {
		trip := &domain.Trip{
			ID:        row.TripID,
			RouteID:   row.RouteID,
			Date:      row.Date,
			Cancelled: row.Cancelled,
			Route: domain.RouteMeta{
				TransportCompanyID: row.TransportCompanyID,
				Label:              row.Label,
				From:               row.From,
				To:                 row.To,
			},
			Stops: stopsByTrip[row.TripID],
		}
		infoByRoute[row.RouteID] = &domain.RouteInfo{
			Trip:            trip,
			NotifyWhenEmpty: row.NotifyWhenEmpty,
		}
	}
	return infoByRoute
}
