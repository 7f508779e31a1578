package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"trip-monitor/internal/config"
	"trip-monitor/internal/domain"
)

// ScheduleStore reads trip rosters, stops, expected passenger counts and
// event subscriptions from Postgres. The monitoring core never writes here.
type ScheduleStore struct {
	pool *pgxpool.Pool
}

func NewScheduleStore(ctx context.Context, cfg *config.Config) (*ScheduleStore, error) {
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create db pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	return &ScheduleStore{pool: pool}, nil
}

func (s *ScheduleStore) Close() {
	s.pool.Close()
}

func (s *ScheduleStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// StopRow is one scheduled stop with its expected passenger count, as read
// from the schedule tables.
type StopRow struct {
	RouteID     int64
	TripID      int64
	StopID      int64
	Lat         float64
	Lng         float64
	Description string
	Road        string
	CanBoard    bool
	CanAlight   bool
	Time        time.Time
	Pax         int
}

// Expected passengers per stop come from valid tickets boarding or alighting
// there.
const stopsQuery = `
SELECT
	t."routeId",
	ts."tripId",
	ts."stopId",
	s.lat,
	s.lng,
	coalesce(s.description, ''),
	coalesce(s.road, ''),
	ts."canBoard",
	ts."canAlight",
	ts.time,
	count(tk.*) AS pax
FROM "tripStops" ts
INNER JOIN stops s ON s.id = ts."stopId"
INNER JOIN trips t ON t.id = ts."tripId"
LEFT OUTER JOIN tickets tk
	ON tk.status = 'valid'
	AND (tk."boardStopId" = ts.id OR tk."alightStopId" = ts.id)
WHERE t.date = $1
GROUP BY t.id, s.id, ts.id
ORDER BY ts."tripId", ts.time
`

func (s *ScheduleStore) StopsForDate(ctx context.Context, date string) ([]StopRow, error) {
	rows, err := s.pool.Query(ctx, stopsQuery, date)
	if err != nil {
		return nil, fmt.Errorf("stops query failed: %w", err)
	}
	defer rows.Close()

	var stops []StopRow
	for rows.Next() {
		var r StopRow
		var pax int64
		if err := rows.Scan(
			&r.RouteID, &r.TripID, &r.StopID, &r.Lat, &r.Lng,
			&r.Description, &r.Road, &r.CanBoard, &r.CanAlight, &r.Time, &pax,
		); err != nil {
			return nil, fmt.Errorf("stops scan failed: %w", err)
		}
		r.Pax = int(pax)
		stops = append(stops, r)
	}
	return stops, rows.Err()
}

// RouteRow is one active trip with its route metadata.
type RouteRow struct {
	TripID             int64
	RouteID            int64
	Date               string
	Cancelled          bool
	TransportCompanyID int64
	Label              string
	From               string
	To                 string
	NotifyWhenEmpty    bool
}

const routesQuery = `
SELECT DISTINCT
	t.id AS "tripId",
	t."routeId",
	t.date::text,
	coalesce(t.status, '') = 'cancelled' AS cancelled,
	r."transportCompanyId",
	r.label,
	r."from",
	r."to",
	coalesce('notify-when-empty' = ANY(r.tags), false) AS "notifyWhenEmpty"
FROM trips t
INNER JOIN routes r ON r.id = t."routeId"
WHERE t.date = $1
`

func (s *ScheduleStore) RoutesForDate(ctx context.Context, date string) ([]RouteRow, error) {
	rows, err := s.pool.Query(ctx, routesQuery, date)
	if err != nil {
		return nil, fmt.Errorf("routes query failed: %w", err)
	}
	defer rows.Close()

	var routes []RouteRow
	for rows.Next() {
		var r RouteRow
		if err := rows.Scan(
			&r.TripID, &r.RouteID, &r.Date, &r.Cancelled,
			&r.TransportCompanyID, &r.Label, &r.From, &r.To, &r.NotifyWhenEmpty,
		); err != nil {
			return nil, fmt.Errorf("routes scan failed: %w", err)
		}
		routes = append(routes, r)
	}
	return routes, rows.Err()
}

const subscriptionsQuery = `
SELECT event, handler, params, coalesce(agent, '{}'), "transportCompanyId"
FROM "eventSubscriptions"
`

// EventSubscriptions returns every operator alert subscription.
func (s *ScheduleStore) EventSubscriptions(ctx context.Context) ([]domain.Subscription, error) {
	rows, err := s.pool.Query(ctx, subscriptionsQuery)
	if err != nil {
		return nil, fmt.Errorf("subscriptions query failed: %w", err)
	}
	defer rows.Close()

	var subs []domain.Subscription
	for rows.Next() {
		var sub domain.Subscription
		var params, agent []byte
		if err := rows.Scan(&sub.Event, &sub.Handler, &params, &agent, &sub.TransportCompanyID); err != nil {
			return nil, fmt.Errorf("subscriptions scan failed: %w", err)
		}
		if len(params) > 0 {
			if err := json.Unmarshal(params, &sub.Params); err != nil {
				return nil, fmt.Errorf("subscription params decode failed: %w", err)
			}
		}
		sub.Agent = json.RawMessage(agent)
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}
