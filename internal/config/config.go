package config

import (
	"errors"
	"fmt"
	"log"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ProcessedStorePostgres = "postgres"
	ProcessedStoreRedis    = "redis"
)

// Config is the analyser runtime configuration.
type Config struct {
	DatabaseURL     string  `yaml:"database_url"`
	DBMaxOpenConns  int     `yaml:"db_max_open_conns"`
	DBMaxIdleConns  int     `yaml:"db_max_idle_conns"`
	HTTPAddr        string  `yaml:"http_addr"`
	ProcessorName   string  `yaml:"processor_name"`
	JWTSecret       string  `yaml:"jwt_secret"`
	WindowRateLimit float64 `yaml:"window_rate_limit"`
	WindowRateBurst int     `yaml:"window_rate_burst"`

	Detector  DetectorConfig  `yaml:"detector"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	Simulator SimulatorConfig `yaml:"simulator"`
	Processed ProcessedConfig `yaml:"processed"`
	RabbitMQ  RabbitMQConfig  `yaml:"rabbitmq"`
}

// DetectorConfig bounds backward lookback.
type DetectorConfig struct {
	LookbackStep          time.Duration `yaml:"lookback_step"`
	MaxLookbackIterations int           `yaml:"max_lookback_iterations"`
}

// DispatchConfig drives the outbox dispatch loop.
type DispatchConfig struct {
	Interval time.Duration `yaml:"interval"`
	Batch    int           `yaml:"batch"`
}

// SimulatorConfig drives the simulated clock.
type SimulatorConfig struct {
	Enabled bool          `yaml:"enabled"`
	Start   time.Time     `yaml:"start"`
	Step    time.Duration `yaml:"step"`
	Tick    time.Duration `yaml:"tick"`
}

// ProcessedConfig selects the idempotency store of consumers.
type ProcessedConfig struct {
	Store     string        `yaml:"store"`
	RedisAddr string        `yaml:"redis_addr"`
	RedisDB   int           `yaml:"redis_db"`
	TTL       time.Duration `yaml:"ttl"`
}

// RabbitMQConfig enables fan-out of emitted windows when URL is set.
type RabbitMQConfig struct {
	URL        string `yaml:"url"`
	Exchange   string `yaml:"exchange"`
	RoutingKey string `yaml:"routing_key"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DBMaxOpenConns:  10,
		DBMaxIdleConns:  1,
		HTTPAddr:        ":8080",
		ProcessorName:   "analyser",
		WindowRateLimit: 5,
		WindowRateBurst: 10,
		Detector: DetectorConfig{
			LookbackStep:          20 * time.Second,
			MaxLookbackIterations: 20,
		},
		Dispatch: DispatchConfig{
			Interval: time.Second,
			Batch:    50,
		},
		Simulator: SimulatorConfig{
			Start: time.Date(2021, time.March, 9, 14, 15, 0, 0, time.UTC),
			Step:  time.Minute,
			Tick:  time.Minute,
		},
		Processed: ProcessedConfig{
			Store: ProcessedStorePostgres,
			TTL:   7 * 24 * time.Hour,
		},
		RabbitMQ: RabbitMQConfig{
			Exchange:   "ztbus.windows",
			RoutingKey: "windows",
		},
	}
}

// Load reads .env, the optional YAML file named by ZTBUS_CONFIG and
// environment overrides, in that order of increasing precedence.
func Load() (Config, error) {
	envFile := getenvDefault("ZTBUS_ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("config: env file %s not loaded: %v", envFile, err)
	}

	cfg := Default()
	if path := os.Getenv("ZTBUS_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.DatabaseURL = getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", cfg.DatabaseURL))
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = dsnFromParts()
	}
	cfg.DBMaxOpenConns = getenvIntDefault("DB_MAX_OPEN_CONNS", cfg.DBMaxOpenConns)
	cfg.DBMaxIdleConns = getenvIntDefault("DB_MAX_IDLE_CONNS", cfg.DBMaxIdleConns)
	cfg.HTTPAddr = getenvDefault("HTTP_ADDR", cfg.HTTPAddr)
	cfg.ProcessorName = getenvDefault("PROCESSOR_NAME", cfg.ProcessorName)
	cfg.JWTSecret = getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", cfg.JWTSecret))
	cfg.WindowRateLimit = getenvFloatDefault("WINDOW_RATE_LIMIT", cfg.WindowRateLimit)
	cfg.WindowRateBurst = getenvIntDefault("WINDOW_RATE_BURST", cfg.WindowRateBurst)

	cfg.Detector.LookbackStep = getenvDuration("LOOKBACK_STEP", cfg.Detector.LookbackStep)
	cfg.Detector.MaxLookbackIterations = getenvIntDefault("MAX_LOOKBACK_ITERATIONS", cfg.Detector.MaxLookbackIterations)

	cfg.Dispatch.Interval = getenvDuration("DISPATCH_INTERVAL", cfg.Dispatch.Interval)
	cfg.Dispatch.Batch = getenvIntDefault("DISPATCH_BATCH", cfg.Dispatch.Batch)

	cfg.Simulator.Enabled = getenvBool("SIMULATOR_ENABLED", cfg.Simulator.Enabled)
	cfg.Simulator.Start = getenvTime("SIMULATOR_START", cfg.Simulator.Start)
	cfg.Simulator.Step = getenvDuration("SIMULATOR_STEP", cfg.Simulator.Step)
	cfg.Simulator.Tick = getenvDuration("SIMULATOR_TICK", cfg.Simulator.Tick)

	cfg.Processed.Store = strings.ToLower(getenvDefault("PROCESSED_STORE", cfg.Processed.Store))
	cfg.Processed.RedisAddr = getenvDefault("REDIS_ADDR", cfg.Processed.RedisAddr)
	cfg.Processed.RedisDB = getenvIntDefault("REDIS_DB", cfg.Processed.RedisDB)
	cfg.Processed.TTL = getenvDuration("PROCESSED_TTL", cfg.Processed.TTL)

	cfg.RabbitMQ.URL = getenvDefault("RABBITMQ_URL", cfg.RabbitMQ.URL)
	cfg.RabbitMQ.Exchange = getenvDefault("RABBITMQ_EXCHANGE", cfg.RabbitMQ.Exchange)
	cfg.RabbitMQ.RoutingKey = getenvDefault("RABBITMQ_ROUTING_KEY", cfg.RabbitMQ.RoutingKey)
}

// dsnFromParts builds a DSN from the ZTBUS_* connection variables.
func dsnFromParts() string {
	host := os.Getenv("ZTBUS_ADDR")
	if host == "" {
		return ""
	}
	dsn := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(host, getenvDefault("ZTBUS_PORT", "5432")),
		Path:   "/" + getenvDefault("ZTBUS_DB", "ztbus"),
	}
	if user := os.Getenv("ZTBUS_USER"); user != "" {
		dsn.User = url.UserPassword(user, os.Getenv("ZTBUS_PASS"))
	}
	return dsn.String()
}

// Validate checks required settings.
func (c Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("config: DATABASE_URL or ZTBUS_ADDR required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("config: AUTH_JWT_SECRET required"))
	}
	if c.DBMaxOpenConns <= 0 || c.DBMaxIdleConns < 0 || c.DBMaxIdleConns > c.DBMaxOpenConns {
		errs = append(errs, fmt.Errorf("config: invalid pool size open=%d idle=%d", c.DBMaxOpenConns, c.DBMaxIdleConns))
	}
	if c.Detector.LookbackStep <= 0 {
		errs = append(errs, errors.New("config: LOOKBACK_STEP must be positive"))
	}
	if c.Detector.MaxLookbackIterations < 0 {
		errs = append(errs, errors.New("config: MAX_LOOKBACK_ITERATIONS must not be negative"))
	}
	if c.Dispatch.Interval <= 0 || c.Dispatch.Batch <= 0 {
		errs = append(errs, errors.New("config: dispatch interval and batch must be positive"))
	}
	if c.Simulator.Enabled && (c.Simulator.Step <= 0 || c.Simulator.Tick <= 0) {
		errs = append(errs, errors.New("config: simulator step and tick must be positive"))
	}
	switch c.Processed.Store {
	case ProcessedStorePostgres:
	case ProcessedStoreRedis:
		if c.Processed.RedisAddr == "" {
			errs = append(errs, errors.New("config: REDIS_ADDR required for redis processed store"))
		}
	default:
		errs = append(errs, fmt.Errorf("config: unknown processed store %q", c.Processed.Store))
	}
	return errors.Join(errs...)
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvTime(key string, fallback time.Time) time.Time {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return fallback
	}
	return parsed.UTC()
}
