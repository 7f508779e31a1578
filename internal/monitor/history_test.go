package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"trip-monitor/internal/domain"
)

var base = time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)

func testTrip(stops ...*domain.TripStop) *domain.Trip {
	return &domain.Trip{
		ID:      7,
		RouteID: 3,
		Date:    "2025-09-01",
		Route: domain.RouteMeta{
			TransportCompanyID: 11,
			Label:              "B99",
			From:               "Bedok",
			To:                 "Changi",
		},
		Stops: stops,
	}
}

func boardingStop(at time.Time, pax int, xy geom.Coord) *domain.TripStop {
	return &domain.TripStop{
		StopID:   100,
		TripID:   7,
		Time:     at,
		CanBoard: true,
		Pax:      pax,
		XY:       xy,
	}
}

func ping(at time.Time, xy geom.Coord) *domain.Ping {
	return &domain.Ping{TripID: 7, Time: at, XY: xy}
}

func TestBuildArrivalHistoryPicksClosestInTime(t *testing.T) {
	stop := boardingStop(base, 2, geom.Coord{1000, 1000})
	trip := testTrip(stop)
	info := map[int64]*domain.RouteInfo{3: {Trip: trip}}

	early := ping(base.Add(-10*time.Minute), geom.Coord{1010, 1000})
	near := ping(base.Add(1*time.Minute), geom.Coord{1050, 1000})
	pings := map[int64][]*domain.Ping{3: {early, near}}

	BuildArrivalHistory(info, pings)

	require.NotNil(t, stop.BestPing)
	assert.Equal(t, near, stop.BestPing)
	assert.InDelta(t, 50.0, stop.BestPingDistance, 1e-9)
	assert.Equal(t, near, info[3].LastPing)
}

func TestBuildArrivalHistoryIgnoresPingsOutsideGeofence(t *testing.T) {
	stop := boardingStop(base, 2, geom.Coord{0, 0})
	trip := testTrip(stop)
	info := map[int64]*domain.RouteInfo{3: {Trip: trip}}

	// 121m away: just outside the geofence, even though it is the only ping.
	far := ping(base, geom.Coord{121, 0})
	BuildArrivalHistory(info, map[int64][]*domain.Ping{3: {far}})

	assert.Nil(t, stop.BestPing)
	assert.Zero(t, stop.BestPingDistance)
	// The last ping is tracked regardless of geofence.
	assert.Equal(t, far, info[3].LastPing)
}

func TestBuildArrivalHistoryBoundaryIsInclusive(t *testing.T) {
	stop := boardingStop(base, 2, geom.Coord{0, 0})
	trip := testTrip(stop)
	info := map[int64]*domain.RouteInfo{3: {Trip: trip}}

	onEdge := ping(base, geom.Coord{120, 0})
	BuildArrivalHistory(info, map[int64][]*domain.Ping{3: {onEdge}})

	assert.Equal(t, onEdge, stop.BestPing)
}

func TestBuildArrivalHistoryNoPings(t *testing.T) {
	stop := boardingStop(base, 2, geom.Coord{0, 0})
	trip := testTrip(stop)
	info := map[int64]*domain.RouteInfo{3: {Trip: trip}}

	BuildArrivalHistory(info, map[int64][]*domain.Ping{})

	assert.Nil(t, stop.BestPing)
	assert.Nil(t, info[3].LastPing)
}

func TestBuildArrivalHistoryPingWithoutCoordinates(t *testing.T) {
	stop := boardingStop(base, 2, geom.Coord{0, 0})
	trip := testTrip(stop)
	info := map[int64]*domain.RouteInfo{3: {Trip: trip}}

	// A ping with no projected position can never satisfy the geofence.
	blank := &domain.Ping{TripID: 7, Time: base}
	BuildArrivalHistory(info, map[int64][]*domain.Ping{3: {blank}})

	assert.Nil(t, stop.BestPing)
	assert.Equal(t, blank, info[3].LastPing)
}
