package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trip-monitor/internal/store"
)

func TestBuildRouteInfo(t *testing.T) {
	at := time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)
	routes := []store.RouteRow{
		{
			TripID:             1001,
			RouteID:            3,
			Date:               "2025-09-01",
			TransportCompanyID: 11,
			Label:              "B99",
			From:               "Bedok",
			To:                 "Changi",
			NotifyWhenEmpty:    true,
		},
		{TripID: 1002, RouteID: 4, Date: "2025-09-01", Cancelled: true, TransportCompanyID: 11},
	}
	stops := []store.StopRow{
		{RouteID: 3, TripID: 1001, StopID: 51, Lat: 1.29, Lng: 103.85, CanBoard: true, Time: at, Pax: 2},
		{RouteID: 3, TripID: 1001, StopID: 52, Lat: 1.30, Lng: 103.86, CanAlight: true, Time: at.Add(20 * time.Minute)},
	}

	infoByRoute := BuildRouteInfo(routes, stops)
	require.Len(t, infoByRoute, 2)

	info := infoByRoute[3]
	require.NotNil(t, info)
	assert.True(t, info.NotifyWhenEmpty)
	require.NotNil(t, info.Trip)
	assert.Equal(t, int64(1001), info.Trip.ID)
	assert.Equal(t, "B99", info.Trip.Route.Label)
	require.Len(t, info.Trip.Stops, 2)

	first := info.Trip.Stops[0]
	assert.Equal(t, int64(51), first.StopID)
	assert.Equal(t, 2, first.Pax)
	require.NotNil(t, first.XY)
	assert.InDelta(t, 29000, first.XY[0], 2000) // projected onto the local grid

	cancelled := infoByRoute[4]
	assert.True(t, cancelled.Trip.Cancelled)
	assert.Empty(t, cancelled.Trip.Stops)
}
