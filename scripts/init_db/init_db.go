package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found — using system environment variables")
	}

	connStr := dbGetEnv("DATABASE_URL", fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		dbGetEnv("DB_USER", "trip_user"),
		dbGetEnv("DB_PASSWORD", "trip_password"),
		dbGetEnv("DB_HOST", "localhost"),
		dbGetEnv("DB_PORT", "5432"),
		dbGetEnv("DB_NAME", "trip_monitor"),
	))

	ctx := context.Background()

	fmt.Println("Connecting to Postgres...")
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		log.Fatalf("Connection failed: %v\n\nMake sure Postgres is running:\n  docker-compose up -d postgres", err)
	}
	defer conn.Close(ctx)
	fmt.Println("✓ Connected")

	// Run all steps in order
	step1_schedule_tables(ctx, conn)
	step2_ticket_table(ctx, conn)
	step3_subscription_table(ctx, conn)
	step4_indexes(ctx, conn)
	step5_verify(ctx, conn)

	fmt.Println("\n✅ Database initialised successfully")
	fmt.Println("   Run next: go run ./scripts/seed_redis")
}

// ─────────────────────────────────────────────────────────────
// Step 1 — Schedule tables: routes, trips, stops, tripStops
// ─────────────────────────────────────────────────────────────
func step1_schedule_tables(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 1: Schedule tables ─────────────────────")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS routes (
			id                    BIGSERIAL PRIMARY KEY,
			"transportCompanyId"  BIGINT    NOT NULL,
			label                 TEXT      NOT NULL DEFAULT '',
			"from"                TEXT      NOT NULL DEFAULT '',
			"to"                  TEXT      NOT NULL DEFAULT '',

			-- Route flags. 'notify-when-empty' makes the monitor treat
			-- zero-pax boarding stops as relevant.
			tags                  TEXT[]    NOT NULL DEFAULT '{}'
		);
	`, "routes table created")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS trips (
			id         BIGSERIAL PRIMARY KEY,
			"routeId"  BIGINT    NOT NULL REFERENCES routes(id),

			-- Service date, one trip per route per day
			date       DATE      NOT NULL,

			-- NULL or '' means running; 'cancelled' fires the emergency
			-- channel
			status     TEXT
		);
	`, "trips table created")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS stops (
			id          BIGSERIAL        PRIMARY KEY,
			lat         DOUBLE PRECISION NOT NULL,
			lng         DOUBLE PRECISION NOT NULL,
			description TEXT,
			road        TEXT
		);
	`, "stops table created")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS "tripStops" (
			id          BIGSERIAL   PRIMARY KEY,
			"tripId"    BIGINT      NOT NULL REFERENCES trips(id),
			"stopId"    BIGINT      NOT NULL REFERENCES stops(id),

			-- Scheduled arrival, TIMESTAMPTZ always stores in UTC
			time        TIMESTAMPTZ NOT NULL,

			"canBoard"  BOOLEAN     NOT NULL DEFAULT true,
			"canAlight" BOOLEAN     NOT NULL DEFAULT false
		);
	`, "tripStops table created")
}

// ─────────────────────────────────────────────────────────────
// Step 2 — tickets table
// ─────────────────────────────────────────────────────────────
func step2_ticket_table(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 2: tickets table ───────────────────────")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS tickets (
			id              BIGSERIAL PRIMARY KEY,
			"boardStopId"   BIGINT    REFERENCES "tripStops"(id),
			"alightStopId"  BIGINT    REFERENCES "tripStops"(id),

			-- Only 'valid' tickets count towards expected passengers
			status          TEXT      NOT NULL DEFAULT 'valid',

			CONSTRAINT chk_ticket_status CHECK (
				status IN ('valid', 'refunded', 'void', 'failed')
			)
		);
	`, "tickets table created")
}

// ─────────────────────────────────────────────────────────────
// Step 3 — eventSubscriptions table
// ─────────────────────────────────────────────────────────────
func step3_subscription_table(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 3: eventSubscriptions table ────────────")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS "eventSubscriptions" (
			id                    BIGSERIAL PRIMARY KEY,

			-- Event type filter, '' subscribes to everything
			event                 TEXT      NOT NULL DEFAULT '',

			-- Delivery handler, currently only 'telegram'
			handler               TEXT      NOT NULL,

			-- Handler parameters: {"chatId": ..., "minSeverity": ...}
			params                JSONB     NOT NULL DEFAULT '{}',

			agent                 JSONB,
			"transportCompanyId"  BIGINT    NOT NULL
		);
	`, "eventSubscriptions table created")
}

// ─────────────────────────────────────────────────────────────
// Step 4 — Indexes
// ─────────────────────────────────────────────────────────────
func step4_indexes(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 4: Indexes ─────────────────────────────")

	indexes := []struct {
		name string
		sql  string
		why  string
	}{
		{
			name: "idx_trips_date",
			sql: `CREATE INDEX IF NOT EXISTS idx_trips_date
				  ON trips (date);`,
			why: "query: all trips on a service date",
		},
		{
			name: "idx_tripstops_trip_time",
			sql: `CREATE INDEX IF NOT EXISTS idx_tripstops_trip_time
				  ON "tripStops" ("tripId", time);`,
			why: "query: a trip's stops in schedule order",
		},
		{
			name: "idx_tickets_board",
			sql: `CREATE INDEX IF NOT EXISTS idx_tickets_board
				  ON tickets ("boardStopId") WHERE status = 'valid';`,
			why: "query: expected passengers per stop (partial index)",
		},
		{
			name: "idx_tickets_alight",
			sql: `CREATE INDEX IF NOT EXISTS idx_tickets_alight
				  ON tickets ("alightStopId") WHERE status = 'valid';`,
			why: "query: expected passengers per stop (partial index)",
		},
		{
			name: "idx_subscriptions_company",
			sql: `CREATE INDEX IF NOT EXISTS idx_subscriptions_company
				  ON "eventSubscriptions" ("transportCompanyId");`,
			why: "query: subscriptions for one company",
		},
	}

	for _, idx := range indexes {
		execOrFatal(ctx, conn, idx.sql,
			fmt.Sprintf("%-40s ← %s", idx.name, idx.why),
		)
	}
}

// ─────────────────────────────────────────────────────────────
// Step 5 — Verify everything was created
// ─────────────────────────────────────────────────────────────
func step5_verify(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 5: Verification ────────────────────────")

	tables := []string{"routes", "trips", "stops", "tripStops", "tickets", "eventSubscriptions"}
	for _, table := range tables {
		var exists bool
		err := conn.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM information_schema.tables
				WHERE table_name = $1
			)
		`, table).Scan(&exists)
		if err != nil || !exists {
			log.Fatalf("Table %s was not created: %v", table, err)
		}
		fmt.Printf("  ✓ table: %s\n", table)
	}

	var indexCount int
	err := conn.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM pg_indexes
		WHERE indexname LIKE 'idx_%'
	`).Scan(&indexCount)
	if err != nil {
		log.Fatalf("Index check failed: %v", err)
	}
	fmt.Printf("  ✓ indexes created: %d\n", indexCount)
}

// ─────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────

// execOrFatal runs a SQL statement and prints result or exits on error
func execOrFatal(ctx context.Context, conn *pgx.Conn, sql, label string) {
	_, err := conn.Exec(ctx, sql)
	if err != nil {
		log.Fatalf("FAILED — %s\nError: %v\nSQL: %s", label, err, sql)
	}
	fmt.Printf("  ✓ %s\n", label)
}

func dbGetEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
