package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "ztbus_"

	ResultSuccess = "success"
	ResultError   = "error"
)

var lookbackBuckets = []float64{0, 1, 2, 3, 5, 10, 15, 20}

var (
	registerOnce sync.Once

	detectorInvocations *prometheus.CounterVec
	detectorLatency     *prometheus.HistogramVec
	lookbackQueries     *prometheus.HistogramVec

	runsEmitted *prometheus.CounterVec
	emitErrors  *prometheus.CounterVec

	algorithmTotal   *prometheus.CounterVec
	algorithmLatency *prometheus.HistogramVec
	algorithmSkipped *prometheus.CounterVec

	simulatorTicks *prometheus.CounterVec
	windowTriggers *prometheus.CounterVec
	reportExports  *prometheus.CounterVec

	consumerLag *prometheus.GaugeVec

	outboxPublishTotal    *prometheus.CounterVec
	outboxPublishLatency  *prometheus.HistogramVec
	outboxDispatchTotal   *prometheus.CounterVec
	outboxDispatchEvents  *prometheus.CounterVec
	outboxDispatchLatency *prometheus.HistogramVec
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		detectorInvocations = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "run_detector_invocations_total",
				Help: "Total run detector invocations by status column and result",
			},
			[]string{"column", "result"},
		)
		detectorLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "run_detector_latency_seconds",
				Help:    "Run detector latency in seconds, lookback included",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"column"},
		)
		lookbackQueries = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "run_detector_lookback_queries",
				Help:    "Lookback queries issued per run detector invocation",
				Buckets: lookbackBuckets,
			},
			[]string{"column"},
		)

		runsEmitted = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "runs_emitted_total",
				Help: "Total run windows emitted by window type",
			},
			[]string{"window_type"},
		)
		emitErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "emit_errors_total",
				Help: "Total failed window emissions by window type",
			},
			[]string{"window_type"},
		)

		algorithmTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "algorithm_runs_total",
				Help: "Total algorithm executions by algorithm and result",
			},
			[]string{"algorithm", "result"},
		)
		algorithmLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "algorithm_latency_seconds",
				Help:    "Algorithm execution latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"algorithm"},
		)
		algorithmSkipped = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "algorithm_skipped_total",
				Help: "Algorithm executions skipped because the window was already processed",
			},
			[]string{"algorithm"},
		)

		simulatorTicks = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "simulator_ticks_total",
				Help: "Total simulated clock advances by result",
			},
			[]string{"result"},
		)
		windowTriggers = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "window_triggers_total",
				Help: "Total windows submitted over HTTP by result",
			},
			[]string{"result"},
		)
		reportExports = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "report_exports_total",
				Help: "Total run report exports by format and result",
			},
			[]string{"format", "result"},
		)

		consumerLag = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "event_consumer_lag_seconds",
				Help: "Consumer processing lag in seconds",
			},
			[]string{"consumer"},
		)

		outboxPublishTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "outbox_publish_total",
				Help: "Total outbox publish operations by result",
			},
			[]string{"result"},
		)
		outboxPublishLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "outbox_publish_latency_seconds",
				Help:    "Outbox publish latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		outboxDispatchTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "outbox_dispatch_total",
				Help: "Total outbox dispatch runs by result",
			},
			[]string{"result"},
		)
		outboxDispatchEvents = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "outbox_dispatch_events_total",
				Help: "Total dispatched outbox events by outcome",
			},
			[]string{"outcome"},
		)
		outboxDispatchLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "outbox_dispatch_latency_seconds",
				Help:    "Outbox dispatch run latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		prometheus.MustRegister(
			detectorInvocations,
			detectorLatency,
			lookbackQueries,
			runsEmitted,
			emitErrors,
			algorithmTotal,
			algorithmLatency,
			algorithmSkipped,
			simulatorTicks,
			windowTriggers,
			reportExports,
			consumerLag,
			outboxPublishTotal,
			outboxPublishLatency,
			outboxDispatchTotal,
			outboxDispatchEvents,
			outboxDispatchLatency,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

func resultLabel(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultSuccess
}

// ObserveDetection records one run detector invocation.
func ObserveDetection(column string, queries int, duration time.Duration, err error) {
	if column == "" {
		column = "unknown"
	}
	if detectorInvocations != nil {
		detectorInvocations.WithLabelValues(column, resultLabel(err)).Inc()
	}
	if detectorLatency != nil {
		detectorLatency.WithLabelValues(column).Observe(duration.Seconds())
	}
	if lookbackQueries != nil {
		lookbackQueries.WithLabelValues(column).Observe(float64(queries))
	}
}

// IncRunEmitted counts an emitted run window.
func IncRunEmitted(windowType string) {
	if runsEmitted != nil {
		runsEmitted.WithLabelValues(windowType).Inc()
	}
}

// IncEmitError counts a failed emission.
func IncEmitError(windowType string) {
	if emitErrors != nil {
		emitErrors.WithLabelValues(windowType).Inc()
	}
}

// ObserveAlgorithm records an algorithm execution.
func ObserveAlgorithm(algorithm string, duration time.Duration, err error) {
	if algorithmTotal != nil {
		algorithmTotal.WithLabelValues(algorithm, resultLabel(err)).Inc()
	}
	if algorithmLatency != nil {
		algorithmLatency.WithLabelValues(algorithm).Observe(duration.Seconds())
	}
}

// IncAlgorithmSkipped counts an execution skipped for an already processed window.
func IncAlgorithmSkipped(algorithm string) {
	if algorithmSkipped != nil {
		algorithmSkipped.WithLabelValues(algorithm).Inc()
	}
}

// IncSimulatorTick counts a simulated clock advance.
func IncSimulatorTick(err error) {
	if simulatorTicks != nil {
		simulatorTicks.WithLabelValues(resultLabel(err)).Inc()
	}
}

// IncWindowTrigger counts a window submitted over HTTP.
func IncWindowTrigger(result string) {
	if result == "" {
		result = ResultSuccess
	}
	if windowTriggers != nil {
		windowTriggers.WithLabelValues(result).Inc()
	}
}

// IncReportExport counts a report export.
func IncReportExport(format string, err error) {
	if reportExports != nil {
		reportExports.WithLabelValues(format, resultLabel(err)).Inc()
	}
}

// ObserveConsumerLag sets consumer lag in seconds.
func ObserveConsumerLag(consumer string, lag time.Duration) {
	if consumer == "" {
		consumer = "unknown"
	}
	if lag < 0 {
		lag = 0
	}
	if consumerLag != nil {
		consumerLag.WithLabelValues(consumer).Set(lag.Seconds())
	}
}

// ObserveOutboxPublish records an outbox insert.
func ObserveOutboxPublish(result string, duration time.Duration) {
	if outboxPublishTotal != nil {
		outboxPublishTotal.WithLabelValues(result).Inc()
	}
	if outboxPublishLatency != nil {
		outboxPublishLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// ObserveOutboxDispatch records a dispatch run and its per-event outcomes.
func ObserveOutboxDispatch(result string, duration time.Duration, sent, failed, dlq int) {
	if outboxDispatchTotal != nil {
		outboxDispatchTotal.WithLabelValues(result).Inc()
	}
	if outboxDispatchLatency != nil {
		outboxDispatchLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
	if outboxDispatchEvents != nil {
		outboxDispatchEvents.WithLabelValues("sent").Add(float64(sent))
		outboxDispatchEvents.WithLabelValues("failed").Add(float64(failed))
		outboxDispatchEvents.WithLabelValues("dlq").Add(float64(dlq))
	}
}
