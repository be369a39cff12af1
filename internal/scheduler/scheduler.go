// Package scheduler is the clock-driven orchestrator: discovery, the
// pre-start checkpoint sweep, the midnight result sweep, and on-demand
// bulk backfill. Cron entries drive the jobs that land on exact wall-
// clock boundaries; the pre-start sweep runs on its own aligned ticker.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fortuna-labs/oracle/internal/matcher"
	"github.com/fortuna-labs/oracle/internal/notifier"
	"github.com/fortuna-labs/oracle/internal/oddscache"
	"github.com/fortuna-labs/oracle/internal/ratelimit"
	"github.com/fortuna-labs/oracle/internal/sports"
	"github.com/fortuna-labs/oracle/internal/storage"
	"github.com/fortuna-labs/oracle/pkg/contracts"
	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

const (
	httpTimeout  = 20 * time.Second
	drainTimeout = 30 * time.Second
)

// Upstream terminal status codes.
var terminalStatusCodes = map[int]bool{100: true, 110: true, 92: true, 120: true, 130: true, 140: true}
var cancellationStatusCodes = map[int]bool{70: true, 80: true, 90: true}

// Scheduler owns the cron entries, the pre-start ticker, the bounded
// worker pool, and the correction cache.
type Scheduler struct {
	repo     *storage.Repository
	cache    *oddscache.Cache
	adapter  contracts.VendorAdapter
	registry *sports.Registry
	matcher  *matcher.Matcher
	notify   *notifier.Notifier
	limiter  *ratelimit.Limiter
	log      zerolog.Logger

	discoveryIntervalHours int
	pollIntervalMinutes    int
	preStartWindowMinutes  int
	correctionEnabled      bool

	cronSched *cron.Cron
	jobNames  map[cron.EntryID]string
	pool      *ants.Pool

	correction *correctionCache

	preStartBusy int32 // atomic flag: concurrent ticks of the same job forbidden
	stopCh       chan struct{}
	wg           sync.WaitGroup
}

// New wires a Scheduler from its dependencies.
func New(
	repo *storage.Repository,
	cache *oddscache.Cache,
	adapter contracts.VendorAdapter,
	registry *sports.Registry,
	m *matcher.Matcher,
	n *notifier.Notifier,
	limiter *ratelimit.Limiter,
	discoveryIntervalHours, pollIntervalMinutes, preStartWindowMinutes, workerPoolSize int,
	correctionEnabled bool,
	log zerolog.Logger,
) (*Scheduler, error) {
	pool, err := ants.NewPool(workerPoolSize)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}

	s := &Scheduler{
		repo:                   repo,
		cache:                  cache,
		adapter:                adapter,
		registry:               registry,
		matcher:                m,
		notify:                 n,
		limiter:                limiter,
		log:                    log,
		discoveryIntervalHours: discoveryIntervalHours,
		pollIntervalMinutes:    pollIntervalMinutes,
		preStartWindowMinutes:  preStartWindowMinutes,
		correctionEnabled:      correctionEnabled,
		pool:                   pool,
		correction:             newCorrectionCache(30 * time.Minute),
		stopCh:                 make(chan struct{}),
	}
	return s, nil
}

// prepareCron builds the cron schedule and registers the discovery and
// midnight jobs without starting the run loop, so Status can report
// accurate next-fire times even when the scheduler isn't running.
func (s *Scheduler) prepareCron(ctx context.Context) error {
	s.cronSched = cron.New()
	s.jobNames = make(map[cron.EntryID]string)

	discoverySpec := fmt.Sprintf("0 */%d * * *", s.discoveryIntervalHours)
	discoveryID, err := s.cronSched.AddJob(discoverySpec, cron.NewChain(cron.SkipIfStillRunning(cronLogger{s.log})).Then(jobFunc(func() {
		s.runJob(ctx, "discovery", s.RunDiscovery)
	})))
	if err != nil {
		return fmt.Errorf("schedule discovery: %w", err)
	}
	s.jobNames[discoveryID] = "discovery"

	midnightID, err := s.cronSched.AddJob("0 4 * * *", cron.NewChain(cron.SkipIfStillRunning(cronLogger{s.log})).Then(jobFunc(func() {
		s.runJob(ctx, "midnight", func(ctx context.Context) error { return s.RunMidnightSweep(ctx, 24*time.Hour) })
	})))
	if err != nil {
		return fmt.Errorf("schedule midnight sweep: %w", err)
	}
	s.jobNames[midnightID] = "midnight"
	return nil
}

// Start wires the three recurring jobs (discovery, midnight sweep,
// pre-start sweep) and begins ticking until Stop is
// called or ctx is cancelled. Concurrent ticks of the same job are
// forbidden (cron.SkipIfStillRunning / an atomic busy flag for the manual
// ticker); ticks for different jobs may overlap.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.prepareCron(ctx); err != nil {
		return err
	}
	s.cronSched.Start()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		// Align the first sweep to the next wall-clock interval boundary
		// so checkpoints land on predictable minutes.
		interval := s.pollInterval()
		timer := time.NewTimer(time.Until(time.Now().Truncate(interval).Add(interval)))
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		s.tickPreStart(ctx)
		for {
			select {
			case <-ticker.C:
				s.tickPreStart(ctx)
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	s.log.Info().Msg("scheduler started")
	return nil
}

func (s *Scheduler) pollInterval() time.Duration {
	return time.Duration(s.pollIntervalMinutes) * time.Minute
}

// tickPreStart enforces the "no concurrent ticks of the same job" rule for
// the manually-driven pre-start sweep via an atomic flag, mirroring what
// cron.SkipIfStillRunning gives the cron-driven jobs for free.
func (s *Scheduler) tickPreStart(ctx context.Context) {
	if !atomic.CompareAndSwapInt32(&s.preStartBusy, 0, 1) {
		s.log.Warn().Msg("pre-start sweep tick skipped: previous tick still running")
		return
	}
	defer atomic.StoreInt32(&s.preStartBusy, 0)
	s.runJob(ctx, "pre-start", func(ctx context.Context) error { return s.RunPreStartSweep(ctx) })
}

func (s *Scheduler) runJob(ctx context.Context, name string, fn func(context.Context) error) {
	runID := uuid.New().String()
	log := s.log.With().Str("run_id", runID).Str("job", name).Logger()
	log.Info().Msg("job started")

	start := time.Now()
	if err := fn(ctx); err != nil {
		log.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("job failed")
		return
	}
	log.Info().Dur("elapsed", time.Since(start)).Msg("job complete")
}

// Stop signals cancellation, stops scheduling new ticks, and waits up to
// drainTimeout for in-flight workers to finish.
func (s *Scheduler) Stop() {
	deadline := time.Now().Add(drainTimeout)
	if s.cronSched != nil {
		cronCtx := s.cronSched.Stop()
		<-cronCtx.Done()
	}
	close(s.stopCh)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Until(deadline)):
		s.log.Warn().Msg("shutdown drain timed out")
	}

	if err := s.pool.ReleaseTimeout(time.Until(deadline)); err != nil {
		s.log.Warn().Err(err).Msg("worker pool drain timed out")
	}
}

// circuitStater is implemented by *upstream.Client; narrowed here so the
// scheduler can report breaker state without importing the concrete type.
type circuitStater interface {
	State() gobreaker.State
}

// JobStatus is one entry of the status CLI command's report.
type JobStatus struct {
	Name string
	Next time.Time
}

// Status reports every cron entry's next fire time and, when the adapter
// exposes one, the upstream circuit breaker's state. It
// can be called without Start having run: the cron schedule is prepared
// on demand so next-fire times are always accurate.
func (s *Scheduler) Status() (jobs []JobStatus, breakerState string) {
	if s.cronSched == nil {
		if err := s.prepareCron(context.Background()); err != nil {
			s.log.Error().Err(err).Msg("failed to prepare cron schedule for status")
		}
	}
	if s.cronSched != nil {
		for _, e := range s.cronSched.Entries() {
			next := e.Next
			if next.IsZero() {
				// Entries only carry a fire time once the cron loop runs;
				// compute it from the schedule for one-shot status calls.
				next = e.Schedule.Next(time.Now())
			}
			jobs = append(jobs, JobStatus{Name: s.jobNames[e.ID], Next: next})
		}
	}
	interval := s.pollInterval()
	jobs = append(jobs, JobStatus{Name: "pre-start", Next: time.Now().Truncate(interval).Add(interval)})
	if cs, ok := s.adapter.(circuitStater); ok {
		breakerState = cs.State().String()
	}
	return jobs, breakerState
}

// jobFunc adapts a plain func() to cron.Job.
type jobFunc func()

func (f jobFunc) Run() { f() }

// cronLogger adapts zerolog.Logger to cron.Logger.
type cronLogger struct{ log zerolog.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
