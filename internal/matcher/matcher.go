package matcher

import (
	"context"
	"fmt"

	"github.com/fortuna-labs/oracle/internal/oddscache"
	"github.com/fortuna-labs/oracle/internal/sports"
	"github.com/fortuna-labs/oracle/internal/storage"
	"github.com/fortuna-labs/oracle/pkg/models"
)

// Matcher wires the pure tier/symmetry/unanimity rules in rules.go to the
// repository and odds cache, refreshing the alert-eligible materialized
// view lazily when stale.
type Matcher struct {
	repo     *storage.Repository
	cache    *oddscache.Cache
	registry *sports.Registry
}

// New builds a Matcher over the given repository, odds cache and sport
// capability table.
func New(repo *storage.Repository, cache *oddscache.Cache, registry *sports.Registry) *Matcher {
	return &Matcher{repo: repo, cache: cache, registry: registry}
}

// EvaluateEvent loads the current event's odds record, resolves its
// variation vector, and runs the matcher pipeline against the
// alert-eligible history.
func (m *Matcher) EvaluateEvent(ctx context.Context, eventID int64) (models.Verdict, error) {
	event, err := m.repo.GetEvent(ctx, eventID)
	if err != nil {
		return models.Verdict{}, fmt.Errorf("load event: %w", err)
	}
	if event == nil {
		return models.Verdict{}, fmt.Errorf("event %d not found", eventID)
	}

	profile, ok := m.registry.Get(event.Sport)
	if !ok {
		return models.Verdict{}, fmt.Errorf("unrecognized sport %q", event.Sport)
	}

	rec, err := m.loadOddsRecord(ctx, eventID)
	if err != nil {
		return models.Verdict{}, fmt.Errorf("load odds record: %w", err)
	}
	if rec == nil {
		return models.Verdict{Status: models.VerdictNoCandidates}, nil
	}

	current := models.VariationVector{}
	varOne := rec.VarOne()
	varTwo := rec.VarTwo()
	if varOne == nil || varTwo == nil {
		return models.Verdict{Status: models.VerdictNoCandidates}, nil
	}
	current.One = *varOne
	current.Two = *varTwo
	if profile.HasDraw() {
		current.X = rec.VarX()
	}

	if err := m.ensureFresh(ctx); err != nil {
		return models.Verdict{}, fmt.Errorf("refresh alert view: %w", err)
	}

	var groundFilter *string
	if profile.UsesGroundType() {
		groundFilter = event.GroundType
	}
	rows, err := m.repo.CandidatesForSport(ctx, event.Sport, groundFilter, eventID)
	if err != nil {
		return models.Verdict{}, fmt.Errorf("load candidates: %w", err)
	}

	pool := make([]models.Candidate, 0, len(rows))
	for _, r := range rows {
		pool = append(pool, models.Candidate{
			EventID:     r.EventID,
			Home:        r.Home,
			Away:        r.Away,
			Competition: r.Competition,
			Variation:   models.VariationVector{One: r.VarOne, X: r.VarX, Two: r.VarTwo},
			WinnerSide:  r.WinnerSide,
			PointDiff:   r.PointDiff,
			HomeScore:   r.HomeScore,
			AwayScore:   r.AwayScore,
		})
	}

	return Evaluate(eventID, event.Sport, event.Competition, event.Home, event.Away, current, pool), nil
}

// loadOddsRecord serves the current event's odds record from the
// write-through cache when present, falling back to Postgres on a miss and
// backfilling the cache so the next evaluation for this event is a Redis
// round trip instead of a query.
func (m *Matcher) loadOddsRecord(ctx context.Context, eventID int64) (*models.OddsRecord, error) {
	if cached, ok, err := m.cache.Get(ctx, eventID); err == nil && ok {
		return cached, nil
	}

	rec, err := m.repo.GetOddsRecord(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	if err := m.cache.Put(ctx, *rec); err != nil {
		return rec, nil
	}
	return rec, nil
}

// ensureFresh refreshes the alert-eligible view when the odds cache's
// staleness marker is set, then clears it.
func (m *Matcher) ensureFresh(ctx context.Context) error {
	stale, err := m.cache.IsStale(ctx)
	if err != nil {
		return err
	}
	if !stale {
		return nil
	}
	if err := m.repo.RefreshAlertEligibleView(ctx); err != nil {
		return err
	}
	return m.cache.ClearStale(ctx)
}
