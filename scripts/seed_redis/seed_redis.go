package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/mmcloughlin/geohash"
	"github.com/redis/go-redis/v9"
)

// Demo trip: a vehicle moving north along Bras Basah Road towards a stop.
const demoTripID = 1001

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file — using system environment variables")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     redisGetEnv("REDIS_ADDR", "localhost:6379"),
		Password: redisGetEnv("REDIS_PASSWORD", ""),
		DB:       0,
	})
	defer client.Close()

	ctx := context.Background()

	fmt.Println("Connecting to Redis...")
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatalf("Connection failed: %v\n\nMake sure Redis is running:\n  docker-compose up -d redis", err)
	}
	fmt.Println("✓ Connected")

	step1_pings(ctx, client)
	step2_roster(ctx, client)
	step3_verify(ctx, client)

	fmt.Println("\n✅ Redis seeded successfully")
	fmt.Println("   Run next: go run ./cmd/monitord")
}

// pingRecord mirrors the wire shape the tracking store reads.
type pingRecord struct {
	TripID    int64  `json:"tripId"`
	DriverID  int64  `json:"driverId"`
	VehicleID int64  `json:"vehicleId"`
	Time      int64  `json:"time"` // epoch milliseconds
	Location  string `json:"location"`
}

func step1_pings(ctx context.Context, client *redis.Client) {
	fmt.Println("\n── Step 1: Seeding demo ping timeline ──────────")

	// One ping a minute over the last ten minutes, moving towards a stop.
	positions := []struct {
		lat, lng float64
	}{
		{1.2931, 103.8520},
		{1.2938, 103.8522},
		{1.2945, 103.8524},
		{1.2952, 103.8526},
		{1.2959, 103.8528},
		{1.2966, 103.8530},
		{1.2973, 103.8532},
		{1.2980, 103.8534},
		{1.2987, 103.8536},
		{1.2994, 103.8538},
	}

	key := fmt.Sprintf("trip:%d:pings", demoTripID)
	now := time.Now()
	for i, pos := range positions {
		at := now.Add(-time.Duration(len(positions)-1-i) * time.Minute)
		rec := pingRecord{
			TripID:    demoTripID,
			DriverID:  42,
			VehicleID: 7,
			Time:      at.UnixMilli(),
			Location:  geohash.EncodeWithPrecision(pos.lat, pos.lng, 12),
		}
		payload, err := json.Marshal(rec)
		if err != nil {
			log.Fatalf("Failed to marshal ping: %v", err)
		}
		if err := client.ZAdd(ctx, key, redis.Z{
			Score:  float64(rec.Time),
			Member: payload,
		}).Err(); err != nil {
			log.Fatalf("Failed to add ping: %v", err)
		}
		fmt.Printf("  ✓ ping %2d  (%.4f, %.4f)  %s\n", i+1, pos.lat, pos.lng, at.Format("15:04:05"))
	}

	if err := client.Expire(ctx, key, 48*time.Hour).Err(); err != nil {
		log.Fatalf("Failed to set TTL: %v", err)
	}
}

func step2_roster(ctx context.Context, client *redis.Client) {
	fmt.Println("\n── Step 2: Seeding roster entry ────────────────")

	entry := map[string]interface{}{
		"tripId":    demoTripID,
		"driverId":  42,
		"vehicleId": 7,
		"time":      time.Now().Format(time.RFC3339),
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		log.Fatalf("Failed to marshal roster: %v", err)
	}
	key := fmt.Sprintf("trip:%d:roster", demoTripID)
	if err := client.Set(ctx, key, payload, 48*time.Hour).Err(); err != nil {
		log.Fatalf("Failed to set roster: %v", err)
	}
	fmt.Printf("  ✓ %s → driver 42, vehicle 7\n", key)
}

func step3_verify(ctx context.Context, client *redis.Client) {
	fmt.Println("\n── Step 3: Verification ────────────────────────")

	count, err := client.ZCard(ctx, fmt.Sprintf("trip:%d:pings", demoTripID)).Result()
	if err != nil {
		log.Fatalf("Verification failed: %v", err)
	}
	fmt.Printf("  ✓ %d pings on trip %d\n", count, demoTripID)

	val, err := client.Get(ctx, fmt.Sprintf("trip:%d:roster", demoTripID)).Result()
	if err != nil {
		log.Fatalf("Spot check failed: %v", err)
	}
	fmt.Printf("  ✓ spot check: roster → %s\n", val)
}

func redisGetEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
