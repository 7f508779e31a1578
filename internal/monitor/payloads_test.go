package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"trip-monitor/internal/domain"
)

func classifiedInfo(t *testing.T, routeID, companyID int64) *domain.RouteInfo {
	t.Helper()
	stop := boardingStop(base.Add(-10*time.Minute), 2, geom.Coord{0, 0})
	stop.BestPing = ping(stop.Time.Add(time.Minute), geom.Coord{10, 0})
	trip := testTrip(stop)
	trip.RouteID = routeID
	trip.Route.TransportCompanyID = companyID
	info := &domain.RouteInfo{Trip: trip, LastPing: stop.BestPing}
	return info
}

func TestBuildExportPayloads(t *testing.T) {
	byRoute := map[int64]*domain.RouteInfo{
		3: classifiedInfo(t, 3, 11),
		4: classifiedInfo(t, 4, 11),
		5: classifiedInfo(t, 5, 22),
	}
	InjectArrivalStatus(byRoute, base)

	payloads := BuildExportPayloads(byRoute, base)

	require.Len(t, payloads.Performance, 3)
	require.Len(t, payloads.Monitoring, 2)

	// Snapshots are grouped per company, keyed by route id.
	first := payloads.Monitoring[0]
	assert.Equal(t, int64(11), first.TransportCompanyID)
	assert.Equal(t, base, first.Time)
	assert.Equal(t, base.Unix(), first.TTL)
	assert.Len(t, first.Monitoring, 2)
	assert.Contains(t, first.Monitoring, "3")
	assert.Contains(t, first.Monitoring, "4")

	second := payloads.Monitoring[1]
	assert.Equal(t, int64(22), second.TransportCompanyID)
	assert.Contains(t, second.Monitoring, "5")
}

func TestBuildExportPayloadsDropsPlaceholderEvents(t *testing.T) {
	// A trip far in the future: every channel is a message-less placeholder.
	stop := boardingStop(base.Add(3*time.Hour), 2, nil)
	info := &domain.RouteInfo{Trip: testTrip(stop)}
	byRoute := map[int64]*domain.RouteInfo{3: info}
	InjectArrivalStatus(byRoute, base)

	payloads := BuildExportPayloads(byRoute, base)
	assert.Empty(t, payloads.Events)
	assert.Len(t, payloads.Monitoring, 1)
}

func TestBuildExportPayloadsKeepsAlertEvents(t *testing.T) {
	// Silent trip five minutes before departure: urgent noPings alert.
	stop := boardingStop(base.Add(4*time.Minute), 2, nil)
	info := &domain.RouteInfo{Trip: testTrip(stop)}
	byRoute := map[int64]*domain.RouteInfo{3: info}
	InjectArrivalStatus(byRoute, base)

	payloads := BuildExportPayloads(byRoute, base)
	require.Len(t, payloads.Events, 1)
	assert.Equal(t, domain.EventNoPings, payloads.Events[0].Type)
	assert.Equal(t, domain.SeverityUrgent, payloads.Events[0].Severity)
}

func TestPerformanceRecordCarriesBestPing(t *testing.T) {
	info := classifiedInfo(t, 3, 11)
	rec := performanceRecord(info.Trip)

	assert.Equal(t, int64(3), rec.RouteID)
	assert.Equal(t, "2025-09-01", rec.Date)
	require.Len(t, rec.Stops, 1)
	sp := rec.Stops[0]
	assert.Equal(t, info.Trip.Stops[0].Time.Format(time.RFC3339), sp.ExpectedTime)
	assert.Equal(t, info.Trip.Stops[0].BestPing.Time.Format(time.RFC3339), sp.ActualTime)
}

func TestRouteMonitoringStartTime(t *testing.T) {
	early := boardingStop(base.Add(-10*time.Minute), 2, nil)
	late := boardingStop(base.Add(10*time.Minute), 2, nil)
	info := &domain.RouteInfo{Trip: testTrip(late, early)}

	rm := routeMonitoring(info)
	assert.Equal(t, early.Time.Format(time.RFC3339), rm.StartTime)
	assert.Equal(t, info.Trip.Summary(), rm.Trip)
}
