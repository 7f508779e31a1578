package monitor

import (
	"sort"
	"strconv"
	"time"

	"trip-monitor/internal/domain"
)

// StopPerformance is one stop's expected vs actual record. Fields that were
// not observed are dropped on serialization rather than nulled.
type StopPerformance struct {
	StopID         int64  `json:"stopId"`
	CanBoard       bool   `json:"canBoard,omitempty"`
	CanAlight      bool   `json:"canAlight,omitempty"`
	Pax            int    `json:"pax,omitempty"`
	Description    string `json:"description,omitempty"`
	Road           string `json:"road,omitempty"`
	ExpectedTime   string `json:"expectedTime,omitempty"`
	ActualTime     string `json:"actualTime,omitempty"`
	ActualLocation string `json:"actualLocation,omitempty"`
}

// PerformanceRecord is the per-trip on-time performance history entry.
type PerformanceRecord struct {
	RouteID            int64             `json:"routeId"`
	Date               string            `json:"date"`
	Label              string            `json:"label,omitempty"`
	TransportCompanyID int64             `json:"transportCompanyId"`
	Stops              []StopPerformance `json:"stops"`
}

// RouteMonitoring is the live view of one route within a company snapshot.
type RouteMonitoring struct {
	Trip            domain.TripSummary `json:"trip"`
	StartTime       string             `json:"startTime,omitempty"`
	NotifyWhenEmpty bool               `json:"notifyWhenEmpty"`
	LastPing        *domain.Ping       `json:"lastPing,omitempty"`
	Status          *domain.Status     `json:"status,omitempty"`
	NobodyAboard    bool               `json:"nobody"`
}

// MonitoringSnapshot aggregates all of one transport company's routes for a
// single cycle. TTL is epoch seconds, used by the store for expiry.
type MonitoringSnapshot struct {
	TransportCompanyID int64                      `json:"transportCompanyId"`
	Time               time.Time                  `json:"time"`
	TTL                int64                      `json:"ttl"`
	Monitoring         map[string]RouteMonitoring `json:"monitoring"`
}

// ExportPayloads is the classified output of a cycle, shaped for persistence
// and fan-out.
type ExportPayloads struct {
	Performance []PerformanceRecord
	Monitoring  []MonitoringSnapshot
	Events      []domain.NotificationEvent
}

// BuildExportPayloads shapes the classified trip set into the three export
// record sets. Events with empty messages (ok/dontCare placeholders) are
// dropped. Must run after InjectArrivalStatus.
func BuildExportPayloads(infoByRoute map[int64]*domain.RouteInfo, now time.Time) ExportPayloads {
	routeIDs := make([]int64, 0, len(infoByRoute))
	for id, info := range infoByRoute {
		if info == nil || info.Trip == nil {
			continue
		}
		routeIDs = append(routeIDs, id)
	}
	sort.Slice(routeIDs, func(i, j int) bool { return routeIDs[i] < routeIDs[j] })

	var payloads ExportPayloads
	snapshots := make(map[int64]*MonitoringSnapshot)

	for _, routeID := range routeIDs {
		info := infoByRoute[routeID]

		payloads.Performance = append(payloads.Performance, performanceRecord(info.Trip))

		companyID := info.Trip.Route.TransportCompanyID
		snap, ok := snapshots[companyID]
		if !ok {
			snap = &MonitoringSnapshot{
				TransportCompanyID: companyID,
				Time:               now,
				TTL:                now.Unix(),
				Monitoring:         make(map[string]RouteMonitoring),
			}
			snapshots[companyID] = snap
		}
		snap.Monitoring[strconv.FormatInt(routeID, 10)] = routeMonitoring(info)

		if info.Events != nil {
			for _, e := range []domain.NotificationEvent{info.Events.Ping, info.Events.Distance, info.Events.Emergency} {
				if e.Message != "" {
					payloads.Events = append(payloads.Events, e)
				}
			}
		}
	}

	// Materialize snapshots in company order.
	companyIDs := make([]int64, 0, len(snapshots))
	for id := range snapshots {
		companyIDs = append(companyIDs, id)
	}
	sort.Slice(companyIDs, func(i, j int) bool { return companyIDs[i] < companyIDs[j] })
	for _, id := range companyIDs {
		payloads.Monitoring = append(payloads.Monitoring, *snapshots[id])
	}

	return payloads
}

func performanceRecord(trip *domain.Trip) PerformanceRecord {
	rec := PerformanceRecord{
		RouteID:            trip.RouteID,
		Date:               trip.Date,
		Label:              trip.Route.Label,
		TransportCompanyID: trip.Route.TransportCompanyID,
		Stops:              make([]StopPerformance, 0, len(trip.Stops)),
	}
	for _, s := range trip.Stops {
		sp := StopPerformance{
			StopID:       s.StopID,
			CanBoard:     s.CanBoard,
			CanAlight:    s.CanAlight,
			Pax:          s.Pax,
			Description:  s.Description,
			Road:         s.Road,
			ExpectedTime: s.Time.Format(time.RFC3339),
		}
		if s.BestPing != nil {
			sp.ActualTime = s.BestPing.Time.Format(time.RFC3339)
			sp.ActualLocation = s.BestPing.Location
		}
		rec.Stops = append(rec.Stops, sp)
	}
	return rec
}

func routeMonitoring(info *domain.RouteInfo) RouteMonitoring {
	rm := RouteMonitoring{
		Trip:            info.Trip.Summary(),
		NotifyWhenEmpty: info.NotifyWhenEmpty,
		LastPing:        info.LastPing,
		Status:          info.Status,
		NobodyAboard:    info.NobodyAboard,
	}
	if start := earliestStopTime(info.Trip); !start.IsZero() {
		rm.StartTime = start.Format(time.RFC3339)
	}
	return rm
}

func earliestStopTime(trip *domain.Trip) time.Time {
	var earliest time.Time
	for _, s := range trip.Stops {
		if earliest.IsZero() || s.Time.Before(earliest) {
			earliest = s.Time
		}
	}
	return earliest
}
