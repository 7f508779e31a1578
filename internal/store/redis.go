package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"trip-monitor/internal/config"
	"trip-monitor/internal/domain"
	"trip-monitor/internal/geo"
	"trip-monitor/internal/monitor"
)

// TrackingStore keeps the fast-moving state in Redis: per-trip ping streams,
// monitoring snapshots with expiry, the alert log used for deduplication, and
// the live pub/sub channels.
type TrackingStore struct {
	client      *redis.Client
	pingTTL     time.Duration
	snapshotTTL time.Duration
	eventTTL    time.Duration
}

func NewTrackingStore(ctx context.Context, cfg *config.Config) (*TrackingStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		PoolSize:     20,
		MinIdleConns: 5,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &TrackingStore{
		client:      client,
		pingTTL:     cfg.PingTTL,
		snapshotTTL: cfg.SnapshotTTL,
		eventTTL:    cfg.EventTTL,
	}, nil
}

func (s *TrackingStore) Close() error {
	return s.client.Close()
}

func (s *TrackingStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// pingRecord is the wire shape of a ping in Redis. Coordinates are carried as
// the geohash only; decode and projection happen on read.
type pingRecord struct {
	TripID    int64  `json:"tripId"`
	DriverID  int64  `json:"driverId"`
	VehicleID int64  `json:"vehicleId"`
	Time      int64  `json:"time"` // epoch milliseconds
	Location  string `json:"location"`
}

func pingsKey(tripID int64) string {
	return fmt.Sprintf("trip:%d:pings", tripID)
}

// AppendPing records a ping on the trip's timeline.
func (s *TrackingStore) AppendPing(ctx context.Context, p *domain.Ping) error {
	rec := pingRecord{
		TripID:    p.TripID,
		DriverID:  p.DriverID,
		VehicleID: p.VehicleID,
		Time:      p.Time.UnixMilli(),
		Location:  p.Location,
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal ping: %w", err)
	}

	key := pingsKey(p.TripID)
	pipe := s.client.Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(rec.Time), Member: payload})
	pipe.Expire(ctx, key, s.pingTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis ping append failed: %w", err)
	}
	return nil
}

func (s *TrackingStore) decodePing(raw string) (*domain.Ping, error) {
	var rec pingRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("failed to decode ping: %w", err)
	}
	p := &domain.Ping{
		TripID:    rec.TripID,
		DriverID:  rec.DriverID,
		VehicleID: rec.VehicleID,
		Time:      time.UnixMilli(rec.Time),
		Location:  rec.Location,
	}
	if rec.Location != "" {
		p.Lat, p.Lng = geo.DecodeLocation(rec.Location)
		p.XY = geo.Project(p.Lat, p.Lng)
	}
	return p, nil
}

// PingsForTrip returns the full ping timeline for a trip, oldest first, with
// decoded and projected coordinates.
func (s *TrackingStore) PingsForTrip(ctx context.Context, tripID int64) ([]*domain.Ping, error) {
	raws, err := s.client.ZRange(ctx, pingsKey(tripID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis pings read failed: %w", err)
	}
	pings := make([]*domain.Ping, 0, len(raws))
	for _, raw := range raws {
		p, err := s.decodePing(raw)
		if err != nil {
			return nil, err
		}
		pings = append(pings, p)
	}
	return pings, nil
}

// RecentPings returns up to limit pings, newest first.
func (s *TrackingStore) RecentPings(ctx context.Context, tripID int64, limit int64) ([]*domain.Ping, error) {
	if limit <= 0 {
		limit = -1
	}
	raws, err := s.client.ZRevRange(ctx, pingsKey(tripID), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis pings read failed: %w", err)
	}
	pings := make([]*domain.Ping, 0, len(raws))
	for _, raw := range raws {
		p, err := s.decodePing(raw)
		if err != nil {
			return nil, err
		}
		pings = append(pings, p)
	}
	return pings, nil
}

// LatestPing returns the most recent ping for a trip, or nil when the trip
// has never pinged.
func (s *TrackingStore) LatestPing(ctx context.Context, tripID int64) (*domain.Ping, error) {
	raws, err := s.client.ZRevRange(ctx, pingsKey(tripID), 0, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("redis latest ping read failed: %w", err)
	}
	if len(raws) == 0 {
		return nil, nil
	}
	return s.decodePing(raws[0])
}

// RosterEntry records which driver and vehicle were assigned to a trip.
type RosterEntry struct {
	TripID    int64     `json:"tripId"`
	DriverID  int64     `json:"driverId"`
	VehicleID int64     `json:"vehicleId,omitempty"`
	Time      time.Time `json:"time"`
}

// SaveRoster records the latest driver assignment for a trip.
func (s *TrackingStore) SaveRoster(ctx context.Context, entry RosterEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal roster: %w", err)
	}
	key := fmt.Sprintf("trip:%d:roster", entry.TripID)
	if err := s.client.Set(ctx, key, payload, s.pingTTL).Err(); err != nil {
		return fmt.Errorf("redis roster write failed: %w", err)
	}
	return nil
}

func monitoringKey(companyID int64) string {
	return fmt.Sprintf("monitoring:%d", companyID)
}

// MonitoringChannel is the pub/sub channel carrying a company's live
// snapshots.
func MonitoringChannel(companyID int64) string {
	return fmt.Sprintf("monitoring:%d:live", companyID)
}

// SaveMonitoring stores each company snapshot with expiry and publishes it on
// the company's live channel.
func (s *TrackingStore) SaveMonitoring(ctx context.Context, snapshots []monitor.MonitoringSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	pipe := s.client.Pipeline()
	for _, snap := range snapshots {
		payload, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("failed to marshal snapshot: %w", err)
		}
		pipe.Set(ctx, monitoringKey(snap.TransportCompanyID), payload, s.snapshotTTL)
		pipe.Publish(ctx, MonitoringChannel(snap.TransportCompanyID), payload)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis monitoring write failed: %w", err)
	}
	return nil
}

// Monitoring merges the latest snapshots of the given companies, keyed by
// route id. Companies with no snapshot contribute nothing.
func (s *TrackingStore) Monitoring(ctx context.Context, companyIDs []int64) (map[string]monitor.RouteMonitoring, error) {
	merged := make(map[string]monitor.RouteMonitoring)
	if len(companyIDs) == 0 {
		return merged, nil
	}
	keys := make([]string, len(companyIDs))
	for i, id := range companyIDs {
		keys[i] = monitoringKey(id)
	}
	raws, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis monitoring read failed: %w", err)
	}
	for _, raw := range raws {
		str, ok := raw.(string)
		if !ok {
			continue
		}
		var snap monitor.MonitoringSnapshot
		if err := json.Unmarshal([]byte(str), &snap); err != nil {
			return nil, fmt.Errorf("failed to decode snapshot: %w", err)
		}
		for routeID, rm := range snap.Monitoring {
			merged[routeID] = rm
		}
	}
	return merged, nil
}

// SavePerformance stores one performance record per route per service date.
func (s *TrackingStore) SavePerformance(ctx context.Context, records []monitor.PerformanceRecord) error {
	if len(records) == 0 {
		return nil
	}
	pipe := s.client.Pipeline()
	for _, rec := range records {
		payload, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal performance record: %w", err)
		}
		key := fmt.Sprintf("performance:%s:%d", rec.Date, rec.RouteID)
		pipe.Set(ctx, key, payload, s.eventTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis performance write failed: %w", err)
	}
	return nil
}

func alertKey(dateRoute, alertID string) string {
	return fmt.Sprintf("alert:%s:%s", dateRoute, alertID)
}

// SaveEvents appends events to their dateRoute log and refreshes the alert
// identity keys used for deduplication.
func (s *TrackingStore) SaveEvents(ctx context.Context, events []domain.NotificationEvent) error {
	if len(events) == 0 {
		return nil
	}
	pipe := s.client.Pipeline()
	for _, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}
		logKey := fmt.Sprintf("events:%s", e.DateRoute)
		pipe.RPush(ctx, logKey, payload)
		pipe.Expire(ctx, logKey, s.eventTTL)
		pipe.Set(ctx, alertKey(e.DateRoute, e.AlertID),
			strconv.FormatInt(e.Time.UnixMilli(), 10), s.eventTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis events write failed: %w", err)
	}
	return nil
}

// LastAlert implements monitor.PriorAlertLookup against the alert identity
// keys.
func (s *TrackingStore) LastAlert(ctx context.Context, dateRoute, alertID string) (time.Time, bool, error) {
	raw, err := s.client.Get(ctx, alertKey(dateRoute, alertID)).Result()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("redis alert lookup failed: %w", err)
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("corrupt alert timestamp %q: %w", raw, err)
	}
	return time.UnixMilli(ms), true, nil
}

// EventsForDateRoute returns the persisted alert log for one route-day.
func (s *TrackingStore) EventsForDateRoute(ctx context.Context, dateRoute string) ([]domain.NotificationEvent, error) {
	raws, err := s.client.LRange(ctx, fmt.Sprintf("events:%s", dateRoute), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis events read failed: %w", err)
	}
	events := make([]domain.NotificationEvent, 0, len(raws))
	for _, raw := range raws {
		var e domain.NotificationEvent
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("failed to decode event: %w", err)
		}
		events = append(events, e)
	}
	return events, nil
}

// SubscribeMonitoring opens a pub/sub subscription on the given companies'
// live channels. The caller owns the returned subscription.
func (s *TrackingStore) SubscribeMonitoring(ctx context.Context, companyIDs ...int64) *redis.PubSub {
	channels := make([]string, len(companyIDs))
	for i, id := range companyIDs {
		channels[i] = MonitoringChannel(id)
	}
	return s.client.Subscribe(ctx, channels...)
}

// SubscribeAllMonitoring opens a pattern subscription covering every company's
// live channel. The caller owns the returned subscription.
func (s *TrackingStore) SubscribeAllMonitoring(ctx context.Context) *redis.PubSub {
	return s.client.PSubscribe(ctx, "monitoring:*:live")
}
