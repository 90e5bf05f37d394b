package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	amqp "github.com/rabbitmq/amqp091-go"

	"ztbus-analyser/internal/auth"
	"ztbus-analyser/internal/config"
	"ztbus-analyser/internal/eventing"
	"ztbus-analyser/internal/eventing/eventbus"
	eventingrepo "ztbus-analyser/internal/eventing/infrastructure/postgres"
	eventingredis "ztbus-analyser/internal/eventing/infrastructure/redis"
	"ztbus-analyser/internal/observability/metrics"
	"ztbus-analyser/internal/processor"
	"ztbus-analyser/internal/processor/events"
	processorinterfaces "ztbus-analyser/internal/processor/interfaces"
	"ztbus-analyser/internal/reports"
	runapp "ztbus-analyser/internal/runs/application"
	runs "ztbus-analyser/internal/runs/domain"
	simapp "ztbus-analyser/internal/simulator/application"
	simrepo "ztbus-analyser/internal/simulator/infrastructure/postgres"
	simhttp "ztbus-analyser/internal/simulator/interfaces/http"
	statsapp "ztbus-analyser/internal/statistics/application"
	telemetrypostgres "ztbus-analyser/internal/telemetry/infrastructure/postgres"
	windows "ztbus-analyser/internal/windows/domain"
)

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)

	if err := db.PingContext(ctx); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init(db, logger)

	telemetryQuery := telemetrypostgres.NewTelemetryQuery(db)
	tripRepo := telemetrypostgres.NewTripRepository(db)

	baseBus := eventbus.NewInMemoryBus()
	registry := eventing.NewRegistry()
	registry.Register(events.WindowEmitted{})
	registry.Register(events.AlgorithmCompleted{})

	outboxStore := eventingrepo.NewOutboxStore(db)
	dlqStore := eventingrepo.NewDLQStore(db)
	processedStore, err := buildProcessedStore(ctx, cfg, db)
	if err != nil {
		logger.Fatalf("processed store error: %v", err)
	}
	dispatcher := eventing.NewDispatcher(baseBus, outboxStore, registry, dlqStore, eventing.WithDispatcherLogger(logger))
	publisher := eventing.NewPublisher(outboxStore, dispatcher, cfg.ProcessorName, baseBus)

	emitter, closeEmitter, err := buildEmitter(cfg, publisher, logger)
	if err != nil {
		logger.Fatalf("emitter error: %v", err)
	}
	defer closeEmitter()

	detector, err := runs.NewDetector(telemetryQuery,
		runs.WithLookbackStep(cfg.Detector.LookbackStep),
		runs.WithMaxLookbackIterations(cfg.Detector.MaxLookbackIterations),
	)
	if err != nil {
		logger.Fatalf("run detector error: %v", err)
	}
	finder, err := runapp.NewRunFinder(telemetryQuery, detector, emitter,
		runapp.WithTripReader(tripRepo),
		runapp.WithLogger(logger),
	)
	if err != nil {
		logger.Fatalf("run finder error: %v", err)
	}
	statsService, err := statsapp.NewStatisticsService(telemetryQuery)
	if err != nil {
		logger.Fatalf("statistics service error: %v", err)
	}

	proc, err := processor.New(cfg.ProcessorName,
		processor.WithProcessedStore(processedStore),
		processor.WithResultPublisher(baseBus),
		processor.WithLogger(logger),
	)
	if err != nil {
		logger.Fatalf("processor error: %v", err)
	}
	if err := processor.RegisterCatalog(proc, finder, statsService); err != nil {
		logger.Fatalf("algorithm catalog error: %v", err)
	}
	eventing.Subscribe(baseBus, eventbus.EventTypeOf[events.WindowEmitted](), cfg.ProcessorName, proc.HandleEvent, nil)
	resultLogger := processorinterfaces.NewResultLogger(logger)
	eventing.Subscribe(baseBus, eventbus.EventTypeOf[events.AlgorithmCompleted](), "results.log", resultLogger.Handle, nil)
	logger.Printf("processor %s registered %d algorithms", proc.Name(), len(proc.Algorithms()))

	go dispatcher.Run(ctx, cfg.Dispatch.Interval, cfg.Dispatch.Batch)

	clock, err := simapp.NewClock(simrepo.NewSimLogRepository(db), emitter,
		simapp.WithStart(cfg.Simulator.Start),
		simapp.WithStep(cfg.Simulator.Step),
		simapp.WithLogger(logger),
	)
	if err != nil {
		logger.Fatalf("simulator clock error: %v", err)
	}
	if cfg.Simulator.Enabled {
		go simapp.NewScheduler(clock, cfg.Simulator.Tick, logger).Start(ctx)
	}
	tickHandler, err := simhttp.NewTickHandler(clock, logger)
	if err != nil {
		logger.Fatalf("tick handler error: %v", err)
	}
	windowHandler, err := processorinterfaces.NewWindowHandler(emitter,
		processorinterfaces.WithRateLimit(cfg.WindowRateLimit, cfg.WindowRateBurst),
		processorinterfaces.WithHandlerLogger(logger),
	)
	if err != nil {
		logger.Fatalf("window handler error: %v", err)
	}
	reportHandler, err := reports.NewHandler(outboxStore, logger)
	if err != nil {
		logger.Fatalf("report handler error: %v", err)
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy, logger)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "db unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/windows", windowHandler)
	mux.Handle("/simulator/tick", tickHandler)
	mux.Handle("/reports/", reportHandler)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           loggingMiddleware(authMiddleware.Wrap(mux), logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Printf("http shutdown error: %v", err)
		}
	}()

	logger.Printf("http listening on %s", cfg.HTTPAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal(err)
	}
}

func buildProcessedStore(ctx context.Context, cfg config.Config, db *sql.DB) (eventing.ProcessedStore, error) {
	if cfg.Processed.Store != config.ProcessedStoreRedis {
		return eventingrepo.NewExecutionStore(db), nil
	}
	client, err := eventingredis.NewClient(ctx, cfg.Processed.RedisAddr, cfg.Processed.RedisDB)
	if err != nil {
		return nil, err
	}
	return eventingredis.NewProcessedStore(client, eventingredis.WithTTL(cfg.Processed.TTL))
}

// buildEmitter publishes windows to the outbox and, when RabbitMQ is
// configured, fans them out to the exchange as well.
func buildEmitter(cfg config.Config, publisher processor.EventPublisher, logger *log.Logger) (windows.Emitter, func(), error) {
	outboxEmitter, err := processor.NewPublisherEmitter(publisher)
	if err != nil {
		return nil, nil, err
	}
	if cfg.RabbitMQ.URL == "" {
		return outboxEmitter, func() {}, nil
	}
	conn, err := amqp.Dial(cfg.RabbitMQ.URL)
	if err != nil {
		return nil, nil, err
	}
	amqpEmitter, err := processorinterfaces.NewAMQPEmitter(conn, cfg.RabbitMQ.Exchange, cfg.RabbitMQ.RoutingKey)
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	logger.Printf("amqp fan-out enabled exchange=%s", cfg.RabbitMQ.Exchange)
	return processor.MultiEmitter{outboxEmitter, amqpEmitter}, func() { _ = conn.Close() }, nil
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
