package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"math"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	telemetry "ztbus-analyser/internal/telemetry/domain"
	telemetrypostgres "ztbus-analyser/internal/telemetry/infrastructure/postgres"
)

const batchSize = 600

type config struct {
	dsn      string
	trips    int
	firstID  int64
	busID    int64
	routeID  int64
	start    string
	duration time.Duration
	seed     int64
}

func main() {
	cfg := parseConfig()
	if cfg.dsn == "" {
		log.Fatal("PG_DSN or DATABASE_URL is required")
	}
	if cfg.trips <= 0 {
		log.Fatal("trips must be > 0")
	}
	if cfg.duration < time.Minute {
		log.Fatal("duration must be at least 1m")
	}
	start, err := time.Parse(time.RFC3339, cfg.start)
	if err != nil {
		log.Fatalf("invalid start: %v", err)
	}

	db, err := sql.Open("pgx", cfg.dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	repo := telemetrypostgres.NewTelemetryRepository(db)
	rng := rand.New(rand.NewSource(cfg.seed))

	for i := 0; i < cfg.trips; i++ {
		tripID := cfg.firstID + int64(i)
		trip := telemetry.Trip{
			ID:        tripID,
			Name:      "B183_seed_" + strconv.FormatInt(tripID, 10),
			BusID:     cfg.busID + int64(i%2),
			RouteID:   cfg.routeID,
			StartTime: start.UTC(),
			EndTime:   start.UTC().Add(cfg.duration),
		}
		samples := generateTrace(rng, trip)
		if err := insertTrip(ctx, db, trip, samples); err != nil {
			log.Fatalf("insert trip %d: %v", tripID, err)
		}
		for from := 0; from < len(samples); from += batchSize {
			to := from + batchSize
			if to > len(samples) {
				to = len(samples)
			}
			if err := repo.InsertSamples(ctx, samples[from:to]); err != nil {
				log.Fatalf("insert samples trip=%d: %v", tripID, err)
			}
		}
		log.Printf("seeded trip=%d samples=%d halt_runs=%d park_runs=%d",
			tripID, len(samples), countRuns(samples, telemetry.ColumnHaltBrakeIsActive), countRuns(samples, telemetry.ColumnParkBrakeIsActive))
	}
	log.Printf("seed completed")
}

func parseConfig() config {
	cfg := config{}
	flag.StringVar(&cfg.dsn, "pg-dsn", envOrDefault("PG_DSN", envOrDefault("DATABASE_URL", "")), "Postgres DSN")
	flag.IntVar(&cfg.trips, "trips", envOrInt("SEED_TRIPS", 2), "number of concurrent trips")
	flag.Int64Var(&cfg.firstID, "first-trip-id", int64(envOrInt("SEED_FIRST_TRIP_ID", 1)), "id of the first seeded trip")
	flag.Int64Var(&cfg.busID, "bus-id", int64(envOrInt("SEED_BUS_ID", 183)), "bus id of the first trip")
	flag.Int64Var(&cfg.routeID, "route-id", int64(envOrInt("SEED_ROUTE_ID", 83)), "route id")
	flag.StringVar(&cfg.start, "start", envOrDefault("SEED_START", "2021-03-09T14:15:00Z"), "trace start (RFC3339)")
	flag.DurationVar(&cfg.duration, "duration", time.Hour, "trace length per trip")
	flag.Int64Var(&cfg.seed, "seed", 1, "random seed")
	flag.Parse()
	return cfg
}

// generateTrace alternates driving and stop phases. The halt brake is
// applied at every stop and the park brake at the terminus phases at
// both ends of the trip.
func generateTrace(rng *rand.Rand, trip telemetry.Trip) []telemetry.Sample {
	total := int(trip.EndTime.Sub(trip.StartTime) / time.Second)
	samples := make([]telemetry.Sample, 0, total)
	parkHead := 30 + rng.Intn(90)
	parkTail := 30 + rng.Intn(90)

	speed := 0.0
	phaseLeft := 0
	stopped := true
	for sec := 0; sec < total; sec++ {
		parked := sec < parkHead || sec >= total-parkTail
		if !parked {
			if phaseLeft == 0 {
				stopped = !stopped
				if stopped {
					phaseLeft = 10 + rng.Intn(30)
				} else {
					phaseLeft = 40 + rng.Intn(60)
				}
			}
			phaseLeft--
		}

		target := 0.0
		if !parked && !stopped {
			target = 8 + 4*math.Sin(float64(sec)/30)
		}
		speed += math.Max(-1.5, math.Min(1.2, target-speed))
		if speed < 0.05 {
			speed = 0
		}

		standing := speed == 0
		latitude := 47.37 + float64(sec)*1e-6
		longitude := 8.54 + float64(sec)*1e-6
		altitude := 410 + 5*math.Sin(float64(sec)/300)
		samples = append(samples, telemetry.Sample{
			TripID:                    trip.ID,
			Time:                      trip.StartTime.Add(time.Duration(sec) * time.Second),
			ElectricPowerDemand:       15 + speed*12 + rng.Float64()*5,
			TemperatureAmbient:        8 + float64(sec)/3600,
			TractionBrakePressure:     brakePressure(standing, rng),
			TractionTractionForce:     speed * 800,
			GNSSAltitude:              &altitude,
			GNSSLatitude:              &latitude,
			GNSSLongitude:             &longitude,
			ITCSBusRouteID:            trip.RouteID,
			ITCSNumberOfPassengers:    int64(10 + rng.Intn(40)),
			ITCSStopName:              stopName(standing, sec),
			OdometryArticulationAngle: rng.NormFloat64() * 0.05,
			OdometrySteeringAngle:     rng.NormFloat64() * 0.2,
			OdometryVehicleSpeed:      speed,
			OdometryWheelSpeedFL:      speed,
			OdometryWheelSpeedFR:      speed,
			OdometryWheelSpeedML:      speed,
			OdometryWheelSpeedMR:      speed,
			OdometryWheelSpeedRL:      speed,
			OdometryWheelSpeedRR:      speed,
			DoorIsOpen:                standing && !parked && rng.Intn(3) > 0,
			GridIsAvailable:           true,
			HaltBrakeIsActive:         standing && !parked,
			ParkBrakeIsActive:         parked,
		})
	}
	return samples
}

func brakePressure(standing bool, rng *rand.Rand) float64 {
	if standing {
		return 4 + rng.Float64()
	}
	return rng.Float64() * 0.5
}

func stopName(standing bool, sec int) string {
	if !standing {
		return ""
	}
	return "Stop " + strconv.Itoa(sec/600+1)
}

func countRuns(samples []telemetry.Sample, column string) int {
	runs := 0
	prev := false
	for _, s := range samples {
		active, _ := s.Flag(column)
		if active && !prev {
			runs++
		}
		prev = active
	}
	return runs
}

func insertTrip(ctx context.Context, db *sql.DB, trip telemetry.Trip, samples []telemetry.Sample) error {
	const insertSQL = `
INSERT INTO trips (
	id, name, bus_id, route_id, start_time, end_time,
	driven_distance_km, energy_consumption_kwh,
	itcs_passengers_mean, itcs_passengers_min, itcs_passengers_max,
	grid_available_mean, amb_temperature_mean, amb_temperature_min, amb_temperature_max
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15
)
ON CONFLICT (id) DO NOTHING`

	meters, kwh, passengers, temp := 0.0, 0.0, 0.0, 0.0
	minPassengers, maxPassengers := math.MaxInt, 0
	minTemp, maxTemp := math.Inf(1), math.Inf(-1)
	for _, s := range samples {
		meters += s.OdometryVehicleSpeed
		kwh += s.ElectricPowerDemand / 3600
		passengers += float64(s.ITCSNumberOfPassengers)
		temp += s.TemperatureAmbient
		minPassengers = min(minPassengers, int(s.ITCSNumberOfPassengers))
		maxPassengers = max(maxPassengers, int(s.ITCSNumberOfPassengers))
		minTemp = math.Min(minTemp, s.TemperatureAmbient)
		maxTemp = math.Max(maxTemp, s.TemperatureAmbient)
	}
	n := float64(len(samples))
	_, err := db.ExecContext(ctx, insertSQL,
		trip.ID, trip.Name, trip.BusID, trip.RouteID, trip.StartTime, trip.EndTime,
		meters/1000, kwh,
		passengers/n, minPassengers, maxPassengers,
		1.0, temp/n, minTemp, maxTemp,
	)
	return err
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
