package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	eventingrepo "ztbus-analyser/internal/eventing/infrastructure/postgres"
	"ztbus-analyser/internal/reports"
)

type config struct {
	dsn    string
	from   string
	to     string
	format string
	out    string
}

func main() {
	cfg := parseConfig()
	if cfg.dsn == "" {
		log.Fatal("PG_DSN or DATABASE_URL is required")
	}
	from, err := time.Parse(time.RFC3339, cfg.from)
	if err != nil {
		log.Fatalf("invalid from: %v", err)
	}
	to := time.Now().UTC()
	if cfg.to != "" {
		to, err = time.Parse(time.RFC3339, cfg.to)
		if err != nil {
			log.Fatalf("invalid to: %v", err)
		}
	}
	format := strings.ToLower(cfg.format)
	if format != reports.FormatXLSX && format != reports.FormatPDF {
		log.Fatalf("format must be %s or %s", reports.FormatXLSX, reports.FormatPDF)
	}
	out := cfg.out
	if out == "" {
		out = "runs." + format
	}

	db, err := sql.Open("pgx", cfg.dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	report, err := reports.LoadRunReport(ctx, eventingrepo.NewOutboxStore(db), from, to)
	if err != nil {
		log.Fatalf("load report: %v", err)
	}
	for _, summary := range report.Summaries() {
		log.Printf("%s runs=%d mean=%s max=%s", summary.Type, summary.Count, summary.Mean(), summary.Max)
	}

	data, err := reports.Build(report, format)
	if err != nil {
		log.Fatalf("build report: %v", err)
	}
	if dir := filepath.Dir(out); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("create dir: %v", err)
		}
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		log.Fatalf("write report: %v", err)
	}
	log.Printf("report written to %s runs=%d", out, len(report.Runs))
}

func parseConfig() config {
	cfg := config{}
	flag.StringVar(&cfg.dsn, "pg-dsn", envOrDefault("PG_DSN", envOrDefault("DATABASE_URL", "")), "Postgres DSN")
	flag.StringVar(&cfg.from, "from", envOrDefault("REPORT_FROM", "2021-03-09T00:00:00Z"), "range start (RFC3339)")
	flag.StringVar(&cfg.to, "to", envOrDefault("REPORT_TO", ""), "range end (RFC3339), default now")
	flag.StringVar(&cfg.format, "format", envOrDefault("REPORT_FORMAT", reports.FormatXLSX), "xlsx or pdf")
	flag.StringVar(&cfg.out, "out", envOrDefault("REPORT_OUT", ""), "output file")
	flag.Parse()
	return cfg
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
