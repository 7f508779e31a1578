package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/twpayne/go-geom"

	"trip-monitor/internal/domain"
)

func classify(info *domain.RouteInfo, now time.Time) domain.EventSet {
	return Synthesize(info.Trip, now, info.LastPing, ClassifyTrip(info, now))
}

func TestPingEventNoRelevantStops(t *testing.T) {
	// No boardable stop with passengers: every channel says don't care.
	stop := &domain.TripStop{Time: base.Add(10 * time.Minute), CanAlight: true, Pax: 4}
	info := &domain.RouteInfo{Trip: testTrip(stop)}

	events := classify(info, base)
	assert.Equal(t, domain.SeverityDontCare, events.Ping.Severity)
	assert.Equal(t, domain.SeverityDontCare, events.Distance.Severity)
	assert.Equal(t, domain.SeverityDontCare, events.Emergency.Severity)
	assert.Empty(t, events.Ping.Message)
}

func TestPingEventSilentNearDeparture(t *testing.T) {
	stop := boardingStop(base.Add(4*time.Minute), 2, nil)
	info := &domain.RouteInfo{Trip: testTrip(stop)}

	events := classify(info, base)
	assert.Equal(t, domain.SeverityUrgent, events.Ping.Severity)
	assert.Equal(t, domain.EventNoPings, events.Ping.Type)
	assert.Equal(t, "Driver app not switched on 5 mins before", events.Ping.Message)
}

func TestPingEventSilentWarningBuckets(t *testing.T) {
	// 22 minutes out rounds up to the 25 minute bucket.
	stop := boardingStop(base.Add(22*time.Minute), 2, nil)
	info := &domain.RouteInfo{Trip: testTrip(stop)}

	events := classify(info, base)
	assert.Equal(t, domain.SeverityWarning, events.Ping.Severity)
	assert.Equal(t, "Driver app not switched on 25 mins before", events.Ping.Message)
	assert.Equal(t, 25, events.Ping.DelayMins)

	// An exact multiple stays on its own bucket.
	stop.Time = base.Add(20 * time.Minute)
	events = classify(info, base)
	assert.Equal(t, "Driver app not switched on 20 mins before", events.Ping.Message)
}

func TestPingEventRecentPingIsOK(t *testing.T) {
	stop := boardingStop(base.Add(10*time.Minute), 2, nil)
	info := &domain.RouteInfo{
		Trip:     testTrip(stop),
		LastPing: ping(base.Add(-5*time.Minute), nil),
	}

	events := classify(info, base)
	assert.Equal(t, domain.SeverityOK, events.Ping.Severity)
	assert.Empty(t, events.Ping.Message)

	// One tick past the recency window the ping no longer counts.
	info.LastPing = ping(base.Add(-5*time.Minute-time.Second), nil)
	events = classify(info, base)
	assert.Equal(t, domain.SeverityWarning, events.Ping.Severity)
}

func TestPingEventAfterLastStop(t *testing.T) {
	stop := boardingStop(base.Add(-10*time.Minute), 2, geom.Coord{0, 0})
	info := &domain.RouteInfo{Trip: testTrip(stop)}

	t.Run("arrived", func(t *testing.T) {
		stop.BestPing = ping(stop.Time.Add(time.Minute), geom.Coord{10, 0})
		events := classify(info, base)
		assert.Equal(t, "Bus has arrived", events.Ping.Message)
		assert.Equal(t, domain.SeverityOK, events.Ping.Severity)
	})

	t.Run("pinging but not arrived", func(t *testing.T) {
		stop.BestPing = nil
		info.LastPing = ping(base.Add(-time.Minute), geom.Coord{90000, 0})
		events := classify(info, base)
		assert.Equal(t, "App is switched on", events.Ping.Message)
		assert.Equal(t, domain.SeverityOK, events.Ping.Severity)
	})

	t.Run("silent and not arrived", func(t *testing.T) {
		info.LastPing = nil
		events := classify(info, base)
		assert.Equal(t, domain.SeverityUrgent, events.Ping.Severity)
		assert.Equal(t, domain.EventNoPings, events.Ping.Type)
	})
}

func TestDistanceEventLateETA(t *testing.T) {
	stop := boardingStop(base.Add(10*time.Minute), 2, geom.Coord{0, 0})
	info := &domain.RouteInfo{Trip: testTrip(stop)}

	// 11.7km at 35km/h is about 20 minutes: 10 minutes past schedule.
	info.LastPing = ping(base.Add(-time.Minute), geom.Coord{11700, 0})
	events := classify(info, base)
	assert.Equal(t, domain.SeverityWarning, events.Distance.Severity)
	assert.Equal(t, domain.EventLateETA, events.Distance.Type)
	assert.Equal(t, "Service might be more than 10 mins late", events.Distance.Message)

	// Just under the threshold: on track.
	info.LastPing = ping(base.Add(-time.Minute), geom.Coord{11600, 0})
	events = classify(info, base)
	assert.Equal(t, domain.SeverityOK, events.Distance.Severity)
	assert.Equal(t, "Service is on track to arrive punctually", events.Distance.Message)
}

func TestDistanceEventNoETA(t *testing.T) {
	stop := boardingStop(base.Add(10*time.Minute), 2, geom.Coord{0, 0})
	info := &domain.RouteInfo{Trip: testTrip(stop)}

	// Without a last ping no ETA exists; the ping channel already covers
	// the silence.
	events := classify(info, base)
	assert.Equal(t, domain.SeverityDontCare, events.Distance.Severity)
}

func TestDistanceEventLateArrival(t *testing.T) {
	stop := boardingStop(base.Add(-30*time.Minute), 2, geom.Coord{0, 0})
	info := &domain.RouteInfo{Trip: testTrip(stop)}

	cases := []struct {
		name     string
		late     time.Duration
		severity domain.Severity
		message  string
	}{
		{"on time", 4 * time.Minute, domain.SeverityOK, "Service arrived on time"},
		{"boundary five minutes", 5 * time.Minute, domain.SeverityOK, "Service arrived on time"},
		{"minor", 7*time.Minute + 30*time.Second, domain.SeverityMinor, "Service arrived 7 mins late"},
		{"boundary fifteen minutes", 15 * time.Minute, domain.SeverityMinor, "Service arrived 15 mins late"},
		{"warning", 20 * time.Minute, domain.SeverityWarning, "Service arrived 20 mins late"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stop.BestPing = ping(stop.Time.Add(tc.late), geom.Coord{10, 0})
			events := classify(info, base)
			assert.Equal(t, tc.severity, events.Distance.Severity)
			assert.Equal(t, tc.message, events.Distance.Message)
		})
	}
}

func TestEmergencyEvent(t *testing.T) {
	stop := boardingStop(base.Add(5*time.Minute), 2, nil)
	trip := testTrip(stop)
	trip.Cancelled = true
	info := &domain.RouteInfo{Trip: trip}

	events := classify(info, base)
	assert.Equal(t, domain.SeverityCritical, events.Emergency.Severity)
	assert.Equal(t, domain.EventCancellation, events.Emergency.Type)
	assert.Equal(t, "Emergency switched on", events.Emergency.Message)
}

func TestBucketFiveMins(t *testing.T) {
	assert.Equal(t, 25, bucketFiveMins(22*time.Minute))
	assert.Equal(t, 20, bucketFiveMins(20*time.Minute))
	assert.Equal(t, 5, bucketFiveMins(time.Second))
}

func TestWholeMinutes(t *testing.T) {
	assert.Equal(t, 7, wholeMinutes(7*time.Minute+59*time.Second))
	assert.Equal(t, 8, wholeMinutes(8*time.Minute))
}
