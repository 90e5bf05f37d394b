package metrics

import (
	"database/sql"
	"log"

	"github.com/prometheus/client_golang/prometheus"
)

func registerDBMetrics(db *sql.DB, logger *log.Logger) {
	gauges := []struct {
		name  string
		help  string
		query string
	}{
		{
			name:  "event_outbox_pending",
			help:  "Pending outbox records",
			query: "SELECT COUNT(*) FROM event_outbox WHERE status = 'pending'",
		},
		{
			name:  "event_dlq_count",
			help:  "Dead letter queue records",
			query: "SELECT COUNT(*) FROM dead_letter_events",
		},
		{
			name:  "simulator_clock_seconds",
			help:  "End of the latest simulated window as unix seconds",
			query: "SELECT COALESCE(EXTRACT(EPOCH FROM MAX(end_time)), 0) FROM sim_logs",
		},
	}
	for _, gauge := range gauges {
		query := gauge.query
		prometheus.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: metricPrefix + gauge.name,
				Help: gauge.help,
			},
			func() float64 {
				return queryFloat(db, logger, query)
			},
		))
	}
}

func queryFloat(db *sql.DB, logger *log.Logger, query string) float64 {
	if db == nil {
		return 0
	}
	var value float64
	if err := db.QueryRow(query).Scan(&value); err != nil {
		if logger != nil {
			logger.Printf("metrics query failed: %v", err)
		}
		return 0
	}
	if value < 0 {
		return 0
	}
	return value
}
