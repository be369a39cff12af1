// Package storage is the durable store of events, odds records and
// results, built on database/sql + github.com/lib/pq: batched
// UNNEST-based upserts, pq.Array parameter binding, per-statement
// timeouts.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fortuna-labs/oracle/pkg/models"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const defaultStatementTimeout = 10 * time.Second

// Repository wraps a *sql.DB with Oracle's query primitives, shared by the
// scheduler, matcher and CLI.
type Repository struct {
	db *sql.DB
}

// New wraps an already-opened database handle.
func New(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, defaultStatementTimeout)
}

// UpsertEvents inserts new events or updates the mutable fields of
// existing ones (competition, home, away, ground_type, status,
// last_checked_at), batched with UNNEST.
// start_time is intentionally excluded from the UPDATE SET list; it is
// mutated only through UpdateStartTime, by the timestamp-correction
// subsystem.
func (r *Repository) UpsertEvents(ctx context.Context, events []models.Event) error {
	if len(events) == 0 {
		return nil
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	ids := make([]int64, len(events))
	sportsCol := make([]string, len(events))
	competitions := make([]string, len(events))
	homes := make([]string, len(events))
	aways := make([]string, len(events))
	starts := make([]time.Time, len(events))
	grounds := make([]sql.NullString, len(events))
	statuses := make([]string, len(events))
	lastChecked := make([]time.Time, len(events))

	for i, e := range events {
		ids[i] = e.EventID
		sportsCol[i] = string(e.Sport)
		competitions[i] = e.Competition
		homes[i] = e.Home
		aways[i] = e.Away
		starts[i] = e.StartTime
		if e.GroundType != nil {
			grounds[i] = sql.NullString{String: *e.GroundType, Valid: true}
		}
		statuses[i] = string(e.Status)
		lastChecked[i] = e.LastCheckedAt
	}

	query := `
		INSERT INTO events (event_id, sport, competition, home, away, start_time, ground_type, status, last_checked_at)
		SELECT * FROM UNNEST(
			$1::bigint[], $2::text[], $3::text[], $4::text[], $5::text[],
			$6::timestamptz[], $7::text[], $8::text[], $9::timestamptz[]
		)
		ON CONFLICT (event_id) DO UPDATE SET
			competition     = EXCLUDED.competition,
			home            = EXCLUDED.home,
			away            = EXCLUDED.away,
			ground_type     = EXCLUDED.ground_type,
			status          = EXCLUDED.status,
			last_checked_at = EXCLUDED.last_checked_at
	`
	_, err := r.db.ExecContext(ctx, query,
		pq.Array(ids), pq.Array(sportsCol), pq.Array(competitions), pq.Array(homes), pq.Array(aways),
		pq.Array(starts), pq.Array(grounds), pq.Array(statuses), pq.Array(lastChecked),
	)
	if err != nil {
		return fmt.Errorf("upsert events: %w", err)
	}
	return nil
}

// UpdateStartTime applies a timestamp correction.
func (r *Repository) UpdateStartTime(ctx context.Context, eventID int64, startTime time.Time) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := r.db.ExecContext(ctx,
		`UPDATE events SET start_time = $1 WHERE event_id = $2`, startTime, eventID)
	if err != nil {
		return fmt.Errorf("update start_time: %w", err)
	}
	return nil
}

// TouchLastChecked bumps last_checked_at after an upstream refresh that
// wrote no odds: a normalization error skips the event but still records
// the check.
func (r *Repository) TouchLastChecked(ctx context.Context, eventID int64) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := r.db.ExecContext(ctx,
		`UPDATE events SET last_checked_at = now() WHERE event_id = $1`, eventID)
	if err != nil {
		return fmt.Errorf("touch last_checked_at: %w", err)
	}
	return nil
}

// SetEventStatus transitions an event's lifecycle state.
func (r *Repository) SetEventStatus(ctx context.Context, eventID int64, status models.EventStatus) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := r.db.ExecContext(ctx,
		`UPDATE events SET status = $1, last_checked_at = now() WHERE event_id = $2`, status, eventID)
	if err != nil {
		return fmt.Errorf("set event status: %w", err)
	}
	return nil
}

// GetEvent fetches a single event by id.
func (r *Repository) GetEvent(ctx context.Context, eventID int64) (*models.Event, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var e models.Event
	var ground sql.NullString
	row := r.db.QueryRowContext(ctx, `
		SELECT event_id, sport, competition, home, away, start_time, ground_type, status, last_checked_at
		FROM events WHERE event_id = $1`, eventID)
	if err := row.Scan(&e.EventID, &e.Sport, &e.Competition, &e.Home, &e.Away, &e.StartTime, &ground, &e.Status, &e.LastCheckedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	if ground.Valid {
		e.GroundType = &ground.String
	}
	return &e, nil
}

// EventsInPreStartWindow returns scheduled events whose start_time is
// between now and now+windowMinutes.
func (r *Repository) EventsInPreStartWindow(ctx context.Context, windowMinutes int) ([]models.Event, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT event_id, sport, competition, home, away, start_time, ground_type, status, last_checked_at
		FROM events
		WHERE status = 'scheduled'
		  AND start_time > now()
		  AND start_time <= now() + make_interval(mins => $1)
		ORDER BY start_time ASC`, windowMinutes)
	if err != nil {
		return nil, fmt.Errorf("query pre-start window: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// EventsAwaitingResult returns events started within the lookback window
// that have no Result row yet.
func (r *Repository) EventsAwaitingResult(ctx context.Context, lookback time.Duration) ([]models.Event, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var rows *sql.Rows
	var err error
	if lookback <= 0 {
		rows, err = r.db.QueryContext(ctx, `
			SELECT e.event_id, e.sport, e.competition, e.home, e.away, e.start_time, e.ground_type, e.status, e.last_checked_at
			FROM events e
			LEFT JOIN results r ON r.event_id = e.event_id
			WHERE r.event_id IS NULL AND e.status <> 'cancelled'
			ORDER BY e.start_time ASC`)
	} else {
		rows, err = r.db.QueryContext(ctx, `
			SELECT e.event_id, e.sport, e.competition, e.home, e.away, e.start_time, e.ground_type, e.status, e.last_checked_at
			FROM events e
			LEFT JOIN results r ON r.event_id = e.event_id
			WHERE r.event_id IS NULL
			  AND e.status <> 'cancelled'
			  AND e.start_time >= now() - $1::interval
			ORDER BY e.start_time ASC`, lookback.String())
	}
	if err != nil {
		return nil, fmt.Errorf("query events awaiting result: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// RecentEvents returns the N most recently checked events (events --limit).
func (r *Repository) RecentEvents(ctx context.Context, limit int) ([]models.Event, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT event_id, sport, competition, home, away, start_time, ground_type, status, last_checked_at
		FROM events
		ORDER BY last_checked_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]models.Event, error) {
	var out []models.Event
	for rows.Next() {
		var e models.Event
		var ground sql.NullString
		if err := rows.Scan(&e.EventID, &e.Sport, &e.Competition, &e.Home, &e.Away, &e.StartTime, &ground, &e.Status, &e.LastCheckedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if ground.Valid {
			e.GroundType = &ground.String
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpsertOpeningOdds captures the opening triple at discovery.
func (r *Repository) UpsertOpeningOdds(ctx context.Context, eventID int64, triple models.OddsTriple, capturedAt time.Time) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO odds_records (event_id, one_open, x_open, two_open, open_captured_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (event_id) DO UPDATE SET
			one_open        = COALESCE(odds_records.one_open, EXCLUDED.one_open),
			x_open          = COALESCE(odds_records.x_open, EXCLUDED.x_open),
			two_open        = COALESCE(odds_records.two_open, EXCLUDED.two_open),
			open_captured_at = COALESCE(odds_records.open_captured_at, EXCLUDED.open_captured_at)
	`, eventID, nullableDecimal(triple.One), nullableDecimal(triple.X), nullableDecimal(triple.Two), capturedAt)
	if err != nil {
		return fmt.Errorf("upsert opening odds: %w", err)
	}
	return nil
}

// UpdateFinalOdds captures the final triple at a T-30/T-5 checkpoint.
func (r *Repository) UpdateFinalOdds(ctx context.Context, eventID int64, triple models.OddsTriple, capturedAt time.Time) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO odds_records (event_id, one_final, x_final, two_final, final_captured_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (event_id) DO UPDATE SET
			one_final         = EXCLUDED.one_final,
			x_final           = EXCLUDED.x_final,
			two_final         = EXCLUDED.two_final,
			final_captured_at = EXCLUDED.final_captured_at
	`, eventID, nullableDecimal(triple.One), nullableDecimal(triple.X), nullableDecimal(triple.Two), capturedAt)
	if err != nil {
		return fmt.Errorf("update final odds: %w", err)
	}
	return nil
}

// GetOddsRecord fetches the odds record for one event.
func (r *Repository) GetOddsRecord(ctx context.Context, eventID int64) (*models.OddsRecord, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var rec models.OddsRecord
	rec.EventID = eventID
	var one, x, two, oneF, xF, twoF sql.NullString
	var openAt, finalAt sql.NullTime

	row := r.db.QueryRowContext(ctx, `
		SELECT one_open, x_open, two_open, one_final, x_final, two_final, open_captured_at, final_captured_at
		FROM odds_records WHERE event_id = $1`, eventID)
	if err := row.Scan(&one, &x, &two, &oneF, &xF, &twoF, &openAt, &finalAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get odds record: %w", err)
	}

	rec.OneOpen = decimalFromNullString(one)
	rec.XOpen = decimalFromNullString(x)
	rec.TwoOpen = decimalFromNullString(two)
	rec.OneFinal = decimalFromNullString(oneF)
	rec.XFinal = decimalFromNullString(xF)
	rec.TwoFinal = decimalFromNullString(twoF)
	if openAt.Valid {
		rec.OpenCapturedAt = &openAt.Time
	}
	if finalAt.Valid {
		rec.FinalCapturedAt = &finalAt.Time
	}
	return &rec, nil
}

// InsertResult writes a Result row exactly once. A uniqueness violation
// on (event_id) is swallowed: first write wins.
func (r *Repository) InsertResult(ctx context.Context, res models.Result) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO results (event_id, home_score, away_score, winner_side, point_diff, result_status_code, collected_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (event_id) DO NOTHING
	`, res.EventID, res.HomeScore, res.AwayScore, res.WinnerSide, res.PointDiff, res.ResultStatusCode, res.CollectedAt)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

// RefreshAlertEligibleView refreshes the materialized view backing the
// history matcher, invoked lazily when the staleness marker is set or
// explicitly via refresh-alerts.
func (r *Repository) RefreshAlertEligibleView(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `REFRESH MATERIALIZED VIEW CONCURRENTLY alert_eligible`); err != nil {
		return fmt.Errorf("refresh alert_eligible: %w", err)
	}
	return nil
}

// AllOddsRecords returns every odds record, used to rebuild the odds cache
// after a cold start or explicit refresh-alerts.
func (r *Repository) AllOddsRecords(ctx context.Context) ([]models.OddsRecord, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT event_id, one_open, x_open, two_open, one_final, x_final, two_final, open_captured_at, final_captured_at
		FROM odds_records`)
	if err != nil {
		return nil, fmt.Errorf("query all odds records: %w", err)
	}
	defer rows.Close()

	var out []models.OddsRecord
	for rows.Next() {
		var rec models.OddsRecord
		var one, x, two, oneF, xF, twoF sql.NullString
		var openAt, finalAt sql.NullTime
		if err := rows.Scan(&rec.EventID, &one, &x, &two, &oneF, &xF, &twoF, &openAt, &finalAt); err != nil {
			return nil, fmt.Errorf("scan odds record: %w", err)
		}
		rec.OneOpen = decimalFromNullString(one)
		rec.XOpen = decimalFromNullString(x)
		rec.TwoOpen = decimalFromNullString(two)
		rec.OneFinal = decimalFromNullString(oneF)
		rec.XFinal = decimalFromNullString(xF)
		rec.TwoFinal = decimalFromNullString(twoF)
		if openAt.Valid {
			rec.OpenCapturedAt = &openAt.Time
		}
		if finalAt.Valid {
			rec.FinalCapturedAt = &finalAt.Time
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// AlertCandidate is one row of the alert_eligible materialized view.
type AlertCandidate struct {
	EventID     int64
	Home        string
	Away        string
	Competition string
	VarOne      decimal.Decimal
	VarX        *decimal.Decimal
	VarTwo      decimal.Decimal
	WinnerSide  models.WinnerSide
	PointDiff   int
	HomeScore   int
	AwayScore   int
}

// CandidatesForSport returns every alert-eligible row for a sport (and,
// when groundType is non-nil, restricted to that ground-type class), for
// the history matcher to filter by tier.
func (r *Repository) CandidatesForSport(ctx context.Context, sport models.Sport, groundType *string, excludeEventID int64) ([]AlertCandidate, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var rows *sql.Rows
	var err error
	if groundType != nil {
		rows, err = r.db.QueryContext(ctx, `
			SELECT event_id, home, away, competition, var_one, var_x, var_two, winner_side, point_diff, home_score, away_score
			FROM alert_eligible
			WHERE sport = $1 AND ground_type = $2 AND event_id <> $3`, sport, *groundType, excludeEventID)
	} else {
		rows, err = r.db.QueryContext(ctx, `
			SELECT event_id, home, away, competition, var_one, var_x, var_two, winner_side, point_diff, home_score, away_score
			FROM alert_eligible
			WHERE sport = $1 AND event_id <> $2`, sport, excludeEventID)
	}
	if err != nil {
		return nil, fmt.Errorf("query alert_eligible candidates: %w", err)
	}
	defer rows.Close()

	var out []AlertCandidate
	for rows.Next() {
		var c AlertCandidate
		var varOne, varTwo string
		var varX sql.NullString
		if err := rows.Scan(&c.EventID, &c.Home, &c.Away, &c.Competition, &varOne, &varX, &varTwo, &c.WinnerSide, &c.PointDiff, &c.HomeScore, &c.AwayScore); err != nil {
			return nil, fmt.Errorf("scan alert_eligible candidate: %w", err)
		}
		d, err := decimal.NewFromString(varOne)
		if err != nil {
			return nil, fmt.Errorf("parse var_one: %w", err)
		}
		c.VarOne = d
		d2, err := decimal.NewFromString(varTwo)
		if err != nil {
			return nil, fmt.Errorf("parse var_two: %w", err)
		}
		c.VarTwo = d2
		if varX.Valid {
			dx, err := decimal.NewFromString(varX.String)
			if err != nil {
				return nil, fmt.Errorf("parse var_x: %w", err)
			}
			c.VarX = &dx
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func nullableDecimal(d *decimal.Decimal) interface{} {
	if d == nil {
		return nil
	}
	return d.StringFixed(3)
}

func decimalFromNullString(s sql.NullString) *decimal.Decimal {
	if !s.Valid {
		return nil
	}
	d, err := decimal.NewFromString(s.String)
	if err != nil {
		return nil
	}
	return &d
}
