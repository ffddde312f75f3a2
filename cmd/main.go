// jobmate-workforce-service
//
// Application → assignment → attendance workflow for the job marketplace.
// Exposes a REST API and a gRPC API used by the Gateway to implement:
//   - submit / decide / withdraw applications
//   - the assignment registry (created on approval, revocable)
//   - daily check-in / check-out attendance
//   - the job lifecycle, with a periodic sweep closing expired jobs
//
// Runs on PostgreSQL + Redis when configured, otherwise entirely in memory.
// Publishes EVENT_APPLICATION_DECIDED / EVENT_APPLICATION_SUBMITTED to Redis.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/redis/go-redis/v9"

	"jobmate/workforce-service/internal/applications"
	"jobmate/workforce-service/internal/assignments"
	"jobmate/workforce-service/internal/attendance"
	"jobmate/workforce-service/internal/clock"
	"jobmate/workforce-service/internal/config"
	"jobmate/workforce-service/internal/db"
	"jobmate/workforce-service/internal/grpcserver"
	"jobmate/workforce-service/internal/httpapi"
	"jobmate/workforce-service/internal/jobs"
	"jobmate/workforce-service/internal/metrics"
	"jobmate/workforce-service/internal/notify"
	"jobmate/workforce-service/internal/ratelimit"
	"jobmate/workforce-service/internal/scheduler"
	"jobmate/workforce-service/internal/stats"
	"jobmate/workforce-service/internal/store"
	"jobmate/workforce-service/internal/store/postgres"
)

const version = "1.0.0"

func main() {
	// ── Config ──────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[workforce-service] Config error: %v", err)
	}
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clk := clock.NewSystem(cfg.Location)
	m := metrics.New()

	// ── PostgreSQL ───────────────────────────────────────────────────────────
	var (
		st    store.Store
		ready func(context.Context) error
	)
	if cfg.DatabaseURL == "" {
		log.Println("[workforce-service] DATABASE_URL not set, using the in-memory store")
		st = store.NewMemory()
	} else {
		log.Println("[workforce-service] Connecting to PostgreSQL…")
		pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
		if err != nil {
			log.Fatalf("[workforce-service] PostgreSQL: %v", err)
		}
		defer pool.Close()
		if err := db.Migrate(ctx, pool); err != nil {
			log.Fatalf("[workforce-service] Migration: %v", err)
		}
		st = postgres.New(pool)
		ready = pool.Ping
		log.Println("[workforce-service] PostgreSQL connected ✓")
	}

	// ── Notification sinks ───────────────────────────────────────────────────
	sinks := notify.Multi{notify.LogSink{Log: logger.With("component", "notify")}}
	if cfg.TelegramToken != "" {
		tg, err := notify.NewTelegramSink(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			log.Fatalf("[workforce-service] Telegram: %v", err)
		}
		sinks = append(sinks, tg)
		log.Println("[workforce-service] Telegram notifications enabled ✓")
	}

	// ── Redis ────────────────────────────────────────────────────────────────
	var (
		limiter  ratelimit.Limiter = ratelimit.NewMemoryLimiter(clk)
		gate     ratelimit.Gate    = ratelimit.NewMemoryGate(clk)
		notifier notify.Notifier   = sinks
	)
	if cfg.RedisURL != "" {
		log.Println("[workforce-service] Connecting to Redis…")
		rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("[workforce-service] Redis: %v", err)
		}
		defer rdb.Close()
		log.Println("[workforce-service] Redis connected ✓")

		limiter = ratelimit.NewRedisLimiter(rdb, "workforce:rl")
		gate = ratelimit.NewRedisGate(rdb, "workforce:gate")
		notifier = notify.NewRedisPublisher(rdb)
		go runRelay(ctx, rdb, sinks, logger)
	}
	dispatcher := notify.NewDispatcher(notifier, cfg.NotifyTimeout, logger, m)

	// ── Services ─────────────────────────────────────────────────────────────
	jobSvc := jobs.NewService(st, clk, logger, m).WithSweepGate(gate, cfg.SweepThrottle)
	registry := assignments.NewRegistry(st, clk, dispatcher, logger, m)
	appSvc := applications.NewService(st, clk, registry, dispatcher, logger, m)
	ledger := attendance.NewLedger(st, clk, registry, logger, m)

	// ── Scheduler ────────────────────────────────────────────────────────────
	sched := scheduler.New(jobSvc, cfg.SweepSchedule, cfg.Location, gate, logger)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("[workforce-service] Scheduler: %v", err)
	}

	// ── HTTP server ──────────────────────────────────────────────────────────
	h := httpapi.NewHandler(httpapi.Deps{
		Jobs:         jobSvc,
		Applications: appSvc,
		Assignments:  registry,
		Attendance:   ledger,
		Stats:        stats.NewService(st),
		Metrics:      m,
		Log:          logger,
		Limiter:      limiter,
		RateLimit:    cfg.RateLimit,
		RateWindow:   cfg.RateWindow,
		Timeout:      cfg.RequestTimeout,
		Ready:        ready,
	})
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      h.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}
	go func() {
		log.Printf("[workforce-service] v%s HTTP listening on :%s", version, cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[workforce-service] HTTP server error: %v", err)
		}
	}()

	// ── gRPC server ──────────────────────────────────────────────────────────
	lis, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.GRPCPort))
	if err != nil {
		log.Fatalf("[workforce-service] gRPC listen: %v", err)
	}
	gs := grpcserver.New(grpcserver.NewServer(appSvc, registry, ledger, jobSvc, cfg.Location), logger)
	go func() {
		log.Printf("[workforce-service] gRPC listening on :%s", cfg.GRPCPort)
		if err := gs.Serve(lis); err != nil {
			log.Printf("[workforce-service] gRPC server error: %v", err)
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	<-ctx.Done()

	log.Println("[workforce-service] Shutting down…")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sched.Stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[workforce-service] Shutdown error: %v", err)
	}
	gs.GracefulStop()
	dispatcher.Wait()
	log.Println("[workforce-service] Stopped.")
}

// newLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, opts)
	if strings.EqualFold(cfg.LogFormat, "text") {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler).With("service", "workforce-service", "version", version)
}

// runRelay forwards published notices to the local sinks until ctx ends.
func runRelay(ctx context.Context, rdb *redis.Client, sink notify.Notifier, logger *slog.Logger) {
	relay := notify.NewRelay(rdb, sink, logger.With("component", "relay"))
	if err := relay.Run(ctx); err != nil {
		logger.Error("notification relay stopped", "err", err)
	}
}
