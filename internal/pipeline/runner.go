package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"trip-monitor/internal/domain"
	"trip-monitor/internal/metrics"
	"trip-monitor/internal/monitor"
	"trip-monitor/internal/store"
)

// ScheduleSource is the slice of the schedule store the cycle extracts from.
type ScheduleSource interface {
	RoutesForDate(ctx context.Context, date string) ([]store.RouteRow, error)
	StopsForDate(ctx context.Context, date string) ([]store.StopRow, error)
}

// TrackingSource is the slice of the tracking store the cycle reads pings
// from and loads export payloads into.
type TrackingSource interface {
	monitor.PriorAlertLookup
	PingsForTrip(ctx context.Context, tripID int64) ([]*domain.Ping, error)
	SavePerformance(ctx context.Context, records []monitor.PerformanceRecord) error
	SaveMonitoring(ctx context.Context, snapshots []monitor.MonitoringSnapshot) error
	SaveEvents(ctx context.Context, events []domain.NotificationEvent) error
}

// EventPublisher fans surviving alert events out to delivery workers.
type EventPublisher interface {
	PublishEvent(e domain.NotificationEvent) error
}

type Runner struct {
	schedule ScheduleSource
	tracking TrackingSource
	pub      EventPublisher // nil disables fan-out
	metrics  *metrics.Collector
	interval time.Duration
	workers  int
	loc      *time.Location
}

func NewRunner(
	schedule ScheduleSource,
	tracking TrackingSource,
	pub EventPublisher,
	m *metrics.Collector,
	interval time.Duration,
	workers int,
	loc *time.Location,
) *Runner {
	if workers < 1 {
		workers = 1
	}
	if loc == nil {
		loc = time.Local
	}
	return &Runner{
		schedule: schedule,
		tracking: tracking,
		pub:      pub,
		metrics:  m,
		interval: interval,
		workers:  workers,
		loc:      loc,
	}
}

// Run executes one cycle immediately, then on every tick until the context is
// cancelled. A failed cycle is logged and counted; the next tick retries.
func (r *Runner) Run(ctx context.Context) {
	r.runOnce(ctx)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.runOnce(ctx)
		}
	}
}

func (r *Runner) runOnce(ctx context.Context) {
	start := time.Now()
	if err := r.Cycle(ctx); err != nil {
		if r.metrics != nil {
			r.metrics.CycleFailures.Inc()
		}
		logrus.WithError(err).Error("monitoring cycle failed")
	}
	if r.metrics != nil {
		r.metrics.ObserveCycle(time.Since(start))
	}
}

// Cycle runs one full extract, classify, load pass for today's service date.
func (r *Runner) Cycle(ctx context.Context) error {
	now := time.Now().In(r.loc)
	date := now.Format("2006-01-02")

	routes, err := r.schedule.RoutesForDate(ctx, date)
	if err != nil {
		return fmt.Errorf("extract routes: %w", err)
	}
	stops, err := r.schedule.StopsForDate(ctx, date)
	if err != nil {
		return fmt.Errorf("extract stops: %w", err)
	}

	infoByRoute := BuildRouteInfo(routes, stops)
	pingsByRoute, err := r.fetchPings(ctx, infoByRoute)
	if err != nil {
		return fmt.Errorf("extract pings: %w", err)
	}

	monitor.BuildArrivalHistory(infoByRoute, pingsByRoute)
	monitor.InjectArrivalStatus(infoByRoute, now)
	payloads := monitor.BuildExportPayloads(infoByRoute, now)

	emitted := len(payloads.Events)
	payloads.Events = monitor.FilterRecentNoPings(ctx, payloads.Events, r.tracking)

	if r.metrics != nil {
		r.metrics.TripsMonitored.Set(float64(len(infoByRoute)))
		r.metrics.AlertsSuppressed.Add(float64(emitted - len(payloads.Events)))
		for _, e := range payloads.Events {
			r.metrics.EventsEmitted.WithLabelValues(string(e.Type)).Inc()
		}
	}

	if err := r.load(ctx, payloads); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"date":   date,
		"routes": len(infoByRoute),
		"events": len(payloads.Events),
	}).Info("monitoring cycle complete")
	return nil
}

// fetchPings reads every trip's ping timeline through a bounded worker pool.
func (r *Runner) fetchPings(ctx context.Context, infoByRoute map[int64]*domain.RouteInfo) (map[int64][]*domain.Ping, error) {
	type tripRef struct {
		routeID int64
		tripID  int64
	}
	refs := make([]tripRef, 0, len(infoByRoute))
	for routeID, info := range infoByRoute {
		if info == nil || info.Trip == nil {
			continue
		}
		refs = append(refs, tripRef{routeID: routeID, tripID: info.Trip.ID})
	}

	var (
		mu           sync.Mutex
		pingsByRoute = make(map[int64][]*domain.Ping, len(refs))
		firstErr     error
	)

	jobs := make(chan tripRef)
	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ref := range jobs {
				pings, err := r.tracking.PingsForTrip(ctx, ref.tripID)
				mu.Lock()
				if err != nil {
					if firstErr == nil {
						firstErr = err
					}
				} else {
					pingsByRoute[ref.routeID] = pings
				}
				mu.Unlock()
			}
		}()
	}
	for _, ref := range refs {
		jobs <- ref
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return pingsByRoute, nil
}

// load writes the three payload sets concurrently and publishes the surviving
// events.
func (r *Runner) load(ctx context.Context, payloads monitor.ExportPayloads) error {
	start := time.Now()

	var wg sync.WaitGroup
	errs := make(chan error, 3)

	wg.Add(3)
	go func() {
		defer wg.Done()
		if err := r.tracking.SavePerformance(ctx, payloads.Performance); err != nil {
			errs <- fmt.Errorf("load performance: %w", err)
		}
	}()
	go func() {
		defer wg.Done()
		if err := r.tracking.SaveMonitoring(ctx, payloads.Monitoring); err != nil {
			errs <- fmt.Errorf("load monitoring: %w", err)
		}
	}()
	go func() {
		defer wg.Done()
		if err := r.tracking.SaveEvents(ctx, payloads.Events); err != nil {
			errs <- fmt.Errorf("load events: %w", err)
		}
	}()
	wg.Wait()
	close(errs)

	if r.pub != nil {
		for _, e := range payloads.Events {
			if err := r.pub.PublishEvent(e); err != nil {
				logrus.WithError(err).WithField("alertId", e.AlertID).Error("alert publish failed")
			}
		}
	}

	if r.metrics != nil {
		r.metrics.LoadDuration.Observe(time.Since(start).Seconds())
	}

	for err := range errs {
		return err
	}
	return nil
}
