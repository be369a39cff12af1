package scheduler

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/fortuna-labs/oracle/internal/normalizer"
	"github.com/fortuna-labs/oracle/pkg/models"
)

// RunDiscovery fetches the upstream "dropping odds" catalog for every
// registered sport, upserts events, and captures opening odds for new
// events.
func (s *Scheduler) RunDiscovery(ctx context.Context) error {
	for _, profile := range s.registry.All() {
		if err := s.discoverSport(ctx, profile.Key()); err != nil {
			s.log.Error().Err(err).Str("sport", string(profile.Key())).Msg("discovery failed for sport")
		}
	}
	return nil
}

func (s *Scheduler) discoverSport(ctx context.Context, sport models.Sport) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, httpTimeout)
	defer cancel()
	catalog, err := s.adapter.FetchDiscoveryCatalog(reqCtx, sport)
	if err != nil {
		return fmt.Errorf("fetch discovery catalog: %w", err)
	}

	profile, ok := s.registry.Get(sport)
	if !ok {
		return fmt.Errorf("unrecognized sport %q", sport)
	}

	events := make([]models.Event, 0, len(catalog))
	now := time.Now().UTC()
	for _, d := range catalog {
		events = append(events, models.Event{
			EventID:       d.EventID,
			Sport:         d.Sport,
			Competition:   d.Competition,
			Home:          d.Home,
			Away:          d.Away,
			StartTime:     d.StartTime,
			Status:        models.EventStatusScheduled,
			LastCheckedAt: now,
		})
	}
	if len(events) > 0 {
		if err := s.repo.UpsertEvents(ctx, events); err != nil {
			return fmt.Errorf("upsert events: %w", err)
		}
	}

	for _, d := range catalog {
		triple, err := normalizer.Normalize(d.Markets, profile)
		if err != nil {
			// Normalization error: skip this event's odds, last_checked_at
			// was already updated by the upsert above.
			s.log.Warn().Err(err).Int64("event_id", d.EventID).Msg("no opening odds for event")
			continue
		}
		if err := s.repo.UpsertOpeningOdds(ctx, d.EventID, triple, now); err != nil {
			s.log.Error().Err(err).Int64("event_id", d.EventID).Msg("failed to write opening odds")
			continue
		}
	}

	if len(catalog) > 0 {
		if err := s.cache.MarkStale(ctx); err != nil {
			s.log.Warn().Err(err).Msg("failed to mark alert view stale")
		}
	}
	return nil
}

// RunPreStartSweep processes every event within the pre-start window,
// taking a checkpoint only at minutes_to_start in {5, 30}.
// Per-event work fans out into the bounded worker pool.
func (s *Scheduler) RunPreStartSweep(ctx context.Context) error {
	events, err := s.repo.EventsInPreStartWindow(ctx, s.preStartWindowMinutes)
	if err != nil {
		return fmt.Errorf("load pre-start window: %w", err)
	}

	now := time.Now().UTC()

	for _, event := range events {
		event := event
		if !IsCheckpoint(event.MinutesToStart(now)) {
			continue
		}
		if err := s.pool.Submit(func() {
			if err := s.processCheckpoint(ctx, event); err != nil {
				s.log.Error().Err(err).Int64("event_id", event.EventID).Msg("checkpoint processing failed")
			}
		}); err != nil {
			s.log.Error().Err(err).Int64("event_id", event.EventID).Msg("failed to submit checkpoint work")
		}
	}
	return nil
}

// IsCheckpoint reports whether minutesToStart rounds (never truncates)
// to 5 or 30. Exported so the boundary behavior is directly testable.
func IsCheckpoint(minutesToStart float64) bool {
	rounded := int(math.Round(minutesToStart))
	return rounded == 5 || rounded == 30
}

// processCheckpoint runs the strictly sequential per-event pipeline:
// upstream fetch -> normalize -> repository write -> matcher evaluate ->
// notifier send.
func (s *Scheduler) processCheckpoint(ctx context.Context, event models.Event) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	if s.correctionEnabled {
		corrected, err := s.applyTimestampCorrection(ctx, event)
		if err != nil {
			return fmt.Errorf("timestamp correction: %w", err)
		}
		if corrected {
			// Skip this tick for this event to prevent a feedback loop;
			// it will be re-evaluated on a later tick.
			return nil
		}
	}

	reqCtx, cancel := context.WithTimeout(ctx, httpTimeout)
	defer cancel()
	doc, err := s.adapter.FetchEventOdds(reqCtx, event.EventID)
	if err != nil {
		return fmt.Errorf("fetch event odds: %w", err)
	}

	profile, ok := s.registry.Get(event.Sport)
	if !ok {
		return fmt.Errorf("unrecognized sport %q", event.Sport)
	}

	if err := s.repo.TouchLastChecked(ctx, event.EventID); err != nil {
		s.log.Warn().Err(err).Int64("event_id", event.EventID).Msg("failed to touch last_checked_at")
	}

	triple, err := normalizer.Normalize(doc, profile)
	if err != nil {
		s.log.Warn().Err(err).Int64("event_id", event.EventID).Msg("no final odds for event")
		return nil
	}

	now := time.Now().UTC()
	if err := s.repo.UpdateFinalOdds(ctx, event.EventID, triple, now); err != nil {
		return fmt.Errorf("update final odds: %w", err)
	}
	if err := s.cache.MarkStale(ctx); err != nil {
		s.log.Warn().Err(err).Msg("failed to mark alert view stale")
	}
	if rec, err := s.repo.GetOddsRecord(ctx, event.EventID); err != nil {
		s.log.Warn().Err(err).Int64("event_id", event.EventID).Msg("failed to reload odds record for cache write-through")
	} else if rec != nil {
		if err := s.cache.Put(ctx, *rec); err != nil {
			s.log.Warn().Err(err).Int64("event_id", event.EventID).Msg("failed to write through odds cache")
		}
	}

	verdict, err := s.matcher.EvaluateEvent(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("evaluate matcher: %w", err)
	}
	if verdict.Status == models.VerdictNoCandidates {
		s.log.Info().Int64("event_id", event.EventID).Msg("matcher: no candidates")
		return nil
	}

	if err := s.notify.Send(verdict); err != nil {
		// Notifier errors never block the scheduler or roll back writes
		// already committed.
		s.log.Error().Err(err).Int64("event_id", event.EventID).Msg("notifier delivery failed")
	}
	return nil
}

// applyTimestampCorrection cross-checks start_time against the upstream
// and, on divergence, updates it and reports that this tick should be
// skipped for the event.
func (s *Scheduler) applyTimestampCorrection(ctx context.Context, event models.Event) (skip bool, err error) {
	now := time.Now().UTC()
	if s.correction.recentlyCorrected(event.EventID, now) {
		return false, nil
	}

	reqCtx, cancel := context.WithTimeout(ctx, httpTimeout)
	defer cancel()
	detail, err := s.adapter.FetchEventDetail(reqCtx, event.EventID)
	if err != nil {
		return false, fmt.Errorf("fetch event detail: %w", err)
	}

	if detail.StartTime.IsZero() {
		return false, nil
	}
	if diff := detail.StartTime.Sub(event.StartTime); diff > time.Minute || diff < -time.Minute {
		if err := s.repo.UpdateStartTime(ctx, event.EventID, detail.StartTime); err != nil {
			return false, fmt.Errorf("update start_time: %w", err)
		}
		s.correction.markCorrected(event.EventID, now)
		return true, nil
	}
	return false, nil
}

// RunMidnightSweep scans events started within lookback whose Result is
// missing and fetches/persists results subject to sport cutoffs.
// lookback <= 0 means "all history" (bulk backfill).
func (s *Scheduler) RunMidnightSweep(ctx context.Context, lookback time.Duration) error {
	events, err := s.repo.EventsAwaitingResult(ctx, lookback)
	if err != nil {
		return fmt.Errorf("load events awaiting result: %w", err)
	}

	now := time.Now().UTC()
	for _, event := range events {
		event := event
		cutoff := sportCutoffOrDefault(s, event.Sport)
		if now.Before(event.StartTime.Add(cutoff)) {
			continue
		}
		if err := s.pool.Submit(func() {
			if err := s.processResult(ctx, event); err != nil {
				s.log.Error().Err(err).Int64("event_id", event.EventID).Msg("result processing failed")
			}
		}); err != nil {
			s.log.Error().Err(err).Int64("event_id", event.EventID).Msg("failed to submit result work")
		}
	}
	return nil
}

// RunBulkBackfill is the on-demand variant of the midnight sweep over the
// entire event history — the `results-all` CLI command.
func (s *Scheduler) RunBulkBackfill(ctx context.Context) error {
	return s.RunMidnightSweep(ctx, 0)
}

// RunFinalOddsAll forces a final-odds capture for every event currently in
// the pre-start window, bypassing the {5,30}-minute checkpoint gate — the
// `final-odds-all` CLI command, for manual catch-up after downtime.
func (s *Scheduler) RunFinalOddsAll(ctx context.Context) error {
	events, err := s.repo.EventsInPreStartWindow(ctx, s.preStartWindowMinutes)
	if err != nil {
		return fmt.Errorf("load pre-start window: %w", err)
	}
	for _, event := range events {
		event := event
		if err := s.pool.Submit(func() {
			if err := s.processCheckpoint(ctx, event); err != nil {
				s.log.Error().Err(err).Int64("event_id", event.EventID).Msg("final-odds-all processing failed")
			}
		}); err != nil {
			s.log.Error().Err(err).Int64("event_id", event.EventID).Msg("failed to submit final-odds work")
		}
	}
	return nil
}

// RunAlertsDryRun evaluates the matcher for every event currently in the
// pre-start window without publishing to the notifier — the `alerts` CLI
// command.
func (s *Scheduler) RunAlertsDryRun(ctx context.Context) error {
	events, err := s.repo.EventsInPreStartWindow(ctx, s.preStartWindowMinutes)
	if err != nil {
		return fmt.Errorf("load pre-start window: %w", err)
	}
	for _, event := range events {
		verdict, err := s.matcher.EvaluateEvent(ctx, event.EventID)
		if err != nil {
			s.log.Error().Err(err).Int64("event_id", event.EventID).Msg("dry-run evaluation failed")
			continue
		}
		s.log.Info().
			Int64("event_id", event.EventID).
			Str("status", string(verdict.Status)).
			Str("winner", string(verdict.PredictedWinner)).
			Int("confidence", verdict.Confidence).
			Msg("dry-run verdict")
	}
	return nil
}

func sportCutoffOrDefault(s *Scheduler, sport models.Sport) time.Duration {
	if p, ok := s.registry.Get(sport); ok {
		return p.ResultCutoff()
	}
	return 3 * time.Hour
}

func (s *Scheduler) processResult(ctx context.Context, event models.Event) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, httpTimeout)
	defer cancel()
	detail, err := s.adapter.FetchEventDetail(reqCtx, event.EventID)
	if err != nil {
		return fmt.Errorf("fetch event detail: %w", err)
	}

	switch {
	case cancellationStatusCodes[detail.StatusCode]:
		return s.repo.SetEventStatus(ctx, event.EventID, models.EventStatusCancelled)
	case terminalStatusCodes[detail.StatusCode]:
		if detail.HomeScore == nil || detail.AwayScore == nil {
			return fmt.Errorf("terminal status %d without scoreline", detail.StatusCode)
		}
		profile, ok := s.registry.Get(event.Sport)
		if !ok {
			return fmt.Errorf("unrecognized sport %q", event.Sport)
		}
		result, err := models.NewResult(event.EventID, *detail.HomeScore, *detail.AwayScore, detail.StatusCode, profile.HasDraw(), time.Now().UTC())
		if err != nil {
			// A level scoreline on a no-draw sport can't be resolved to a
			// valid winner_side; skip this event rather than persist an
			// invalid Result that would then be immutable. Retried on a
			// later sweep once the upstream's scoreline resolves.
			s.log.Warn().Err(err).Int64("event_id", event.EventID).Msg("result skipped: unresolved level score")
			return nil
		}
		if err := s.repo.InsertResult(ctx, result); err != nil {
			return fmt.Errorf("insert result: %w", err)
		}
		if err := s.repo.SetEventStatus(ctx, event.EventID, models.EventStatusFinished); err != nil {
			return fmt.Errorf("set event finished: %w", err)
		}
		return s.cache.MarkStale(ctx)
	default:
		// Not yet terminal: leave the event as-is, retried on a later sweep.
		return nil
	}
}
