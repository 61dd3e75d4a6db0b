package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"settlement-engine/internal/config"
	"settlement-engine/internal/eventing"
	eventingrepo "settlement-engine/internal/eventing/infrastructure/postgres"
	"settlement-engine/internal/observability/metrics"
	"settlement-engine/internal/settlement/adapters/usagedata"
	"settlement-engine/internal/settlement/application"
	settlement "settlement-engine/internal/settlement/domain"
	"settlement-engine/internal/settlement/infrastructure/memory"
	settlementrepo "settlement-engine/internal/settlement/infrastructure/postgres"
	settlementinterfaces "settlement-engine/internal/settlement/interfaces"
	settlementhttp "settlement-engine/internal/settlement/interfaces/http"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := log.New(os.Stdout, "", log.LstdFlags)

	var (
		db        *sql.DB
		records   settlement.RecordRepository
		configs   settlement.ConfigRepository
		usage     settlement.UsageSource
		publisher application.StatusPublisher
	)
	if cfg.DatabaseURL != "" {
		db, err = sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("db open error: %v", err)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			logger.Fatalf("db ping error: %v", err)
		}
		records = settlementrepo.NewRecordRepository(db)
		configs = settlementrepo.NewConfigRepository(db)
		usage = usagedata.NewReader(db)
		publisher = settlementinterfaces.NewOutboxPublisher(
			eventing.NewPublisher(eventingrepo.NewOutboxStore(db)),
		)
	} else {
		logger.Println("no database configured, using in-memory repositories")
		records = memory.NewRecordRepository()
		configs = memory.NewConfigRepository()
		usage = memory.NewUsageStore()
		publisher = settlementinterfaces.NewLoggingPublisher(logger)
	}

	metrics.Init(db, logger)

	resolver, err := application.NewPricingResolver(configs)
	if err != nil {
		logger.Fatalf("pricing resolver error: %v", err)
	}
	validator, err := application.NewValidationEngine(records, application.SystemClock{}, application.Tolerances{
		UnitPriceRatio: decimal.NewFromFloat(cfg.Tolerances.UnitPriceRatio),
		AmountAbsolute: decimal.NewFromFloat(cfg.Tolerances.AmountAbsolute),
		ChangePercent:  decimal.NewFromFloat(cfg.Tolerances.ChangePercent),
	})
	if err != nil {
		logger.Fatalf("validation engine error: %v", err)
	}
	lifecycle, err := application.NewLifecycle(records, publisher, application.SystemClock{})
	if err != nil {
		logger.Fatalf("lifecycle error: %v", err)
	}
	generator, err := application.NewBatchGenerator(
		resolver,
		usage,
		records,
		memory.CustomerList(cfg.Customers),
		publisher,
		application.SystemClock{},
		cfg.Workers,
		cfg.Unit,
	)
	if err != nil {
		logger.Fatalf("batch generator error: %v", err)
	}
	handler, err := settlementhttp.NewHandler(records, resolver, validator, lifecycle, generator)
	if err != nil {
		logger.Fatalf("settlement handler error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Schedule.DayOfMonth > 0 {
		go runMonthlySchedule(ctx, logger, generator, cfg.Schedule)
	}

	mux := http.NewServeMux()
	mux.Handle("/api/v1/settlements", handler)
	mux.Handle("/api/v1/settlements/", handler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if db != nil {
			if err := db.Ping(); err != nil {
				http.Error(w, "db unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Printf("http shutdown error: %v", err)
		}
	}()

	logger.Printf("settlement engine listening on %s", cfg.HTTPAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("http server error: %v", err)
	}
}

// runMonthlySchedule generates the previous month's settlements once per
// month at the configured day and time. A run that misses its slot, for
// example because the process was down, happens at the next slot; there
// is no catch-up.
func runMonthlySchedule(ctx context.Context, logger *log.Logger, generator *application.BatchGenerator, schedule config.Schedule) {
	hour, minute := parseClock(schedule.At)
	for {
		next := nextRun(time.Now(), schedule.DayOfMonth, hour, minute)
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		periodStart, periodEnd := previousMonth(next)
		result, err := generator.Generate(ctx, nil, periodStart, periodEnd, "scheduler")
		if err != nil {
			logger.Printf("scheduled generation %s error: %v", result.GenerationID, err)
		}
		logger.Printf("scheduled generation %s: %d/%d customers settled, %d failed",
			result.GenerationID, result.Generated, result.TotalCustomers, result.Failed)
	}
}

// parseClock parses an "HH:MM" wall-clock string, defaulting to 02:00.
func parseClock(at string) (hour, minute int) {
	hour = 2
	parts := strings.SplitN(at, ":", 2)
	if len(parts) == 2 {
		if h, err := strconv.Atoi(parts[0]); err == nil && h >= 0 && h < 24 {
			hour = h
		}
		if m, err := strconv.Atoi(parts[1]); err == nil && m >= 0 && m < 60 {
			minute = m
		}
	}
	return hour, minute
}

// nextRun returns the next occurrence of the given day-of-month and
// wall-clock time strictly after now.
func nextRun(now time.Time, day, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), day, hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = time.Date(now.Year(), now.Month()+1, day, hour, minute, 0, 0, now.Location())
	}
	return next
}

// previousMonth returns the previous calendar month as a half-open
// [start, end) interval in the reference time's location.
func previousMonth(ref time.Time) (start, end time.Time) {
	end = time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, ref.Location())
	start = end.AddDate(0, -1, 0)
	return start, end
}
