package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trip-monitor/internal/domain"
	"trip-monitor/internal/monitor"
	"trip-monitor/internal/store"
)

type fakeSchedule struct {
	routes []store.RouteRow
	stops  []store.StopRow
}

func (f *fakeSchedule) RoutesForDate(_ context.Context, _ string) ([]store.RouteRow, error) {
	return f.routes, nil
}

func (f *fakeSchedule) StopsForDate(_ context.Context, _ string) ([]store.StopRow, error) {
	return f.stops, nil
}

type fakeTracking struct {
	pings       map[int64][]*domain.Ping
	prior       map[string]time.Time
	performance []monitor.PerformanceRecord
	monitoring  []monitor.MonitoringSnapshot
	events      []domain.NotificationEvent
}

func (f *fakeTracking) PingsForTrip(_ context.Context, tripID int64) ([]*domain.Ping, error) {
	return f.pings[tripID], nil
}

func (f *fakeTracking) LastAlert(_ context.Context, dateRoute, alertID string) (time.Time, bool, error) {
	at, ok := f.prior[dateRoute+"/"+alertID]
	return at, ok, nil
}

func (f *fakeTracking) SavePerformance(_ context.Context, records []monitor.PerformanceRecord) error {
	f.performance = records
	return nil
}

func (f *fakeTracking) SaveMonitoring(_ context.Context, snapshots []monitor.MonitoringSnapshot) error {
	f.monitoring = snapshots
	return nil
}

func (f *fakeTracking) SaveEvents(_ context.Context, events []domain.NotificationEvent) error {
	f.events = events
	return nil
}

type fakePublisher struct {
	published []domain.NotificationEvent
}

func (f *fakePublisher) PublishEvent(e domain.NotificationEvent) error {
	f.published = append(f.published, e)
	return nil
}

func silentTripSchedule() *fakeSchedule {
	// One trip whose only pickup is four minutes out and has never pinged:
	// the cycle must raise an urgent noPings alert.
	date := time.Now().Format("2006-01-02")
	return &fakeSchedule{
		routes: []store.RouteRow{{
			TripID:             1001,
			RouteID:            3,
			Date:               date,
			TransportCompanyID: 11,
			Label:              "B99",
		}},
		stops: []store.StopRow{{
			RouteID:  3,
			TripID:   1001,
			StopID:   51,
			Lat:      1.29,
			Lng:      103.85,
			CanBoard: true,
			Time:     time.Now().Add(4 * time.Minute),
			Pax:      2,
		}},
	}
}

func TestCycleEmitsAlertForSilentTrip(t *testing.T) {
	tracking := &fakeTracking{pings: map[int64][]*domain.Ping{}}
	pub := &fakePublisher{}
	runner := NewRunner(silentTripSchedule(), tracking, pub, nil, time.Minute, 2, time.UTC)

	require.NoError(t, runner.Cycle(context.Background()))

	require.Len(t, tracking.events, 1)
	e := tracking.events[0]
	assert.Equal(t, domain.EventNoPings, e.Type)
	assert.Equal(t, domain.SeverityUrgent, e.Severity)
	assert.Equal(t, "Driver app not switched on 5 mins before", e.Message)

	assert.Equal(t, tracking.events, pub.published)

	require.Len(t, tracking.monitoring, 1)
	snap := tracking.monitoring[0]
	assert.Equal(t, int64(11), snap.TransportCompanyID)
	assert.Contains(t, snap.Monitoring, "3")

	require.Len(t, tracking.performance, 1)
	assert.Equal(t, int64(3), tracking.performance[0].RouteID)
}

func TestCycleSuppressesRepeatedAlert(t *testing.T) {
	tracking := &fakeTracking{pings: map[int64][]*domain.Ping{}}
	runner := NewRunner(silentTripSchedule(), tracking, nil, nil, time.Minute, 2, time.UTC)

	require.NoError(t, runner.Cycle(context.Background()))
	require.Len(t, tracking.events, 1)

	// Record the alert as just persisted; the next cycle must stay quiet.
	first := tracking.events[0]
	tracking.prior = map[string]time.Time{
		first.DateRoute + "/" + first.AlertID: first.Time,
	}
	require.NoError(t, runner.Cycle(context.Background()))
	assert.Empty(t, tracking.events)
}
