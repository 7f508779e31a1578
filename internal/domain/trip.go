package domain

import (
	"encoding/json"
	"time"

	"github.com/twpayne/go-geom"
)

// RouteMeta is the route-level metadata carried alongside every trip.
type RouteMeta struct {
	TransportCompanyID int64  `json:"transportCompanyId"`
	Label              string `json:"label,omitempty"`
	From               string `json:"from,omitempty"`
	To                 string `json:"to,omitempty"`
}

// Trip is a scheduled service instance. It is owned by the schedule store and
// read-only within the monitoring core, except for the per-cycle ping
// annotations on its stops.
type Trip struct {
	ID        int64       `json:"tripId"`
	RouteID   int64       `json:"routeId"`
	Date      string      `json:"date"` // ISO date, e.g. 2025-09-01
	Cancelled bool        `json:"cancelled"`
	Route     RouteMeta   `json:"route"`
	Stops     []*TripStop `json:"tripStops,omitempty"`
}

// TripSummary is a trip without its stop list, for embedding in events and
// monitoring snapshots.
type TripSummary struct {
	ID        int64     `json:"tripId"`
	RouteID   int64     `json:"routeId"`
	Date      string    `json:"date"`
	Cancelled bool      `json:"cancelled"`
	Route     RouteMeta `json:"route"`
}

// Summary strips the stop list off a trip.
func (t *Trip) Summary() TripSummary {
	return TripSummary{
		ID:        t.ID,
		RouteID:   t.RouteID,
		Date:      t.Date,
		Cancelled: t.Cancelled,
		Route:     t.Route,
	}
}

// TripStop is a scheduled stop within a trip. BestPing and BestPingDistance
// are assigned once per classification cycle by the arrival history builder;
// both are unset when no ping falls inside the stop's geofence.
type TripStop struct {
	StopID      int64     `json:"stopId"`
	TripID      int64     `json:"tripId"`
	Time        time.Time `json:"time"`
	CanBoard    bool      `json:"canBoard"`
	CanAlight   bool      `json:"canAlight"`
	Pax         int       `json:"pax"`
	Description string    `json:"description,omitempty"`
	Road        string    `json:"road,omitempty"`
	Lat         float64   `json:"lat"`
	Lng         float64   `json:"lng"`

	// XY is the stop position on the projected plane.
	XY geom.Coord `json:"xy,omitempty"`

	BestPing         *Ping   `json:"bestPing,omitempty"`
	BestPingDistance float64 `json:"bestPingDistance,omitempty"`
}

// Ping is a timestamped vehicle location report. Immutable once recorded.
type Ping struct {
	TripID    int64     `json:"tripId"`
	DriverID  int64     `json:"driverId"`
	VehicleID int64     `json:"vehicleId"`
	Time      time.Time `json:"time"`
	Location  string    `json:"location"` // geohash
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`

	XY geom.Coord `json:"xy,omitempty"`
}

// Status is the derived per-trip state, recomputed every classification cycle
// and overwritten each run.
type Status struct {
	ArrivalTime *time.Time `json:"arrivalTime,omitempty"`
	Emergency   bool       `json:"emergency"`
	ETA         *time.Time `json:"eta,omitempty"`
	BestPing    *Ping      `json:"bestPing,omitempty"`
	Ping        Severity   `json:"ping"`
	Distance    Severity   `json:"distance"`
}

// RouteInfo bundles everything the monitoring cycle knows about one route's
// active trip. Trip may be nil when the schedule store returned stops for a
// route without matching trip metadata.
type RouteInfo struct {
	Trip            *Trip
	NotifyWhenEmpty bool
	LastPing        *Ping
	Status          *Status
	Events          *EventSet
	NobodyAboard    bool
}

// SubscriptionParams configures how a subscription handler delivers events.
type SubscriptionParams struct {
	ChatID      int64    `json:"chatId,omitempty"`
	MinSeverity Severity `json:"minSeverity,omitempty"`
}

// Subscription is an operator's registration for alert delivery, owned by the
// schedule store and reloaded into a cache on an interval.
type Subscription struct {
	Event              string             `json:"event"`
	Handler            string             `json:"handler"`
	Params             SubscriptionParams `json:"params"`
	Agent              json.RawMessage    `json:"agent,omitempty"`
	TransportCompanyID int64              `json:"transportCompanyId"`
}
