// Command oracle is the process supervisor and CLI entrypoint: explicit
// construction of every concrete dependency, no DI container. Subcommand
// dispatch is a plain os.Args[1]/flag.NewFlagSet switch.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fortuna-labs/oracle/internal/config"
	"github.com/fortuna-labs/oracle/internal/logging"
	"github.com/fortuna-labs/oracle/internal/matcher"
	"github.com/fortuna-labs/oracle/internal/notifier"
	"github.com/fortuna-labs/oracle/internal/oddscache"
	"github.com/fortuna-labs/oracle/internal/ratelimit"
	"github.com/fortuna-labs/oracle/internal/scheduler"
	"github.com/fortuna-labs/oracle/internal/sports"
	"github.com/fortuna-labs/oracle/internal/storage"
	"github.com/fortuna-labs/oracle/internal/upstream"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Exit codes: 0 success, 1 config error, 2 upstream error, 3 database
// error, 4 cancelled.
const (
	exitOK        = 0
	exitConfig    = 1
	exitUpstream  = 2
	exitDatabase  = 3
	exitCancelled = 4
)

func main() {
	os.Exit(run())
}

func run() int {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage())
		return exitConfig
	}
	subcommand := os.Args[1]

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return exitConfig
	}
	log := logging.New(cfg.LogLevel)

	deps, err := wire(cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize dependencies")
		return exitDatabase
	}
	defer deps.db.Close()
	defer deps.redis.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch subcommand {
	case "start":
		return runStart(ctx, deps, log)
	case "discovery":
		return runOnce(ctx, deps.sched.RunDiscovery, log)
	case "pre-start":
		return runOnce(ctx, deps.sched.RunPreStartSweep, log)
	case "midnight":
		return runOnce(ctx, func(ctx context.Context) error { return deps.sched.RunMidnightSweep(ctx, 24*time.Hour) }, log)
	case "results":
		return runOnce(ctx, func(ctx context.Context) error { return deps.sched.RunMidnightSweep(ctx, 24*time.Hour) }, log)
	case "results-all":
		return runOnce(ctx, deps.sched.RunBulkBackfill, log)
	case "final-odds-all":
		return runOnce(ctx, deps.sched.RunFinalOddsAll, log)
	case "alerts":
		return runOnce(ctx, deps.sched.RunAlertsDryRun, log)
	case "refresh-alerts":
		return runRefreshAlerts(ctx, deps, log)
	case "status":
		return runStatus(deps)
	case "events":
		return runEvents(ctx, deps, os.Args[2:])
	default:
		fmt.Fprintln(os.Stderr, usage())
		return exitConfig
	}
}

func usage() string {
	return "usage: oracle <start|discovery|pre-start|midnight|results|results-all|final-odds-all|alerts|refresh-alerts|status|events --limit N>"
}

// dependencies holds every concrete component wired at boot, in a flat
// construction sequence (db, redis, adapter, registry, scheduler).
type dependencies struct {
	db    *sql.DB
	redis *redis.Client
	repo  *storage.Repository
	cache *oddscache.Cache
	sched *scheduler.Scheduler
	loc   *time.Location
}

func wire(cfg *config.Config, log zerolog.Logger) (*dependencies, error) {
	if err := storage.RunMigrations(cfg.DatabaseURL, log); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	redisClient := redis.NewClient(opts)
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	repo := storage.New(db)
	cache := oddscache.New(redisClient, time.Duration(cfg.PollIntervalMinutes)*time.Minute*4)

	if records, err := repo.AllOddsRecords(context.Background()); err != nil {
		log.Warn().Err(err).Msg("failed to warm odds cache at boot")
	} else if err := cache.RebuildCache(context.Background(), records); err != nil {
		log.Warn().Err(err).Msg("failed to rebuild odds cache at boot")
	}

	limiter := ratelimit.New(time.Duration(cfg.RequestDelaySeconds) * time.Second)

	proxy := upstream.ProxyConfig{
		Enabled:  cfg.ProxyEnabled,
		Endpoint: cfg.ProxyEndpoint,
		Username: cfg.ProxyUsername,
		Password: cfg.ProxyPassword,
	}
	adapter, err := upstream.New(proxy, cfg.MaxRetries, limiter, log)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create upstream client: %w", err)
	}

	registry := sports.NewRegistry()
	m := matcher.New(repo, cache, registry)

	n, err := notifier.New(cfg.TelegramBotToken, cfg.TelegramChatID, cfg.NotificationsEnabled, log)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create notifier: %w", err)
	}

	sched, err := scheduler.New(
		repo, cache, adapter, registry, m, n, limiter,
		cfg.DiscoveryIntervalHours, cfg.PollIntervalMinutes, cfg.PreStartWindowMinutes, cfg.WorkerPoolSize,
		cfg.EnableTimestampCorrection, log,
	)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	return &dependencies{db: db, redis: redisClient, repo: repo, cache: cache, sched: sched, loc: cfg.Location()}, nil
}

func runStart(ctx context.Context, deps *dependencies, log zerolog.Logger) int {
	if err := deps.sched.Start(ctx); err != nil {
		log.Error().Err(err).Msg("failed to start scheduler")
		return exitUpstream
	}

	<-ctx.Done()
	log.Info().Msg("shutdown signal received, draining in-flight work")
	deps.sched.Stop()
	return exitCancelled
}

func runOnce(ctx context.Context, fn func(context.Context) error, log zerolog.Logger) int {
	if err := fn(ctx); err != nil {
		log.Error().Err(err).Msg("job failed")
		return exitUpstream
	}
	return exitOK
}

func runRefreshAlerts(ctx context.Context, deps *dependencies, log zerolog.Logger) int {
	if err := deps.repo.RefreshAlertEligibleView(ctx); err != nil {
		log.Error().Err(err).Msg("refresh-alerts failed")
		return exitDatabase
	}
	records, err := deps.repo.AllOddsRecords(ctx)
	if err != nil {
		log.Error().Err(err).Msg("refresh-alerts: failed to reload odds records")
		return exitDatabase
	}
	if err := deps.cache.RebuildCache(ctx, records); err != nil {
		log.Error().Err(err).Msg("refresh-alerts: failed to rebuild odds cache")
		return exitDatabase
	}
	return exitOK
}

func runStatus(deps *dependencies) int {
	jobs, breakerState := deps.sched.Status()
	for _, j := range jobs {
		fmt.Printf("%-12s next: %s\n", j.Name, j.Next.In(deps.loc).Format(time.RFC3339))
	}
	if breakerState != "" {
		fmt.Printf("upstream circuit breaker: %s\n", breakerState)
	}
	return exitOK
}

func runEvents(ctx context.Context, deps *dependencies, args []string) int {
	fs := flag.NewFlagSet("events", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "number of recent events to print")
	if err := fs.Parse(args); err != nil {
		return exitConfig
	}

	events, err := deps.repo.RecentEvents(ctx, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "events query failed: %v\n", err)
		return exitDatabase
	}
	for _, e := range events {
		fmt.Printf("%d  %-10s %-20s %s vs %s  %s  %s\n",
			e.EventID, e.Sport, e.Competition, e.Home, e.Away, e.Status, e.StartTime.In(deps.loc).Format(time.RFC3339))
	}
	return exitOK
}
