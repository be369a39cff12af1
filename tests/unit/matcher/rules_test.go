package matcher_test

import (
	"testing"

	"github.com/fortuna-labs/oracle/internal/matcher"
	"github.com/fortuna-labs/oracle/pkg/models"
	"github.com/shopspring/decimal"
)

func vec(one, two string, x *string) models.VariationVector {
	var xd *decimal.Decimal
	if x != nil {
		d := decimal.RequireFromString(*x)
		xd = &d
	}
	return models.VariationVector{
		One: decimal.RequireFromString(one),
		Two: decimal.RequireFromString(two),
		X:   xd,
	}
}

func candidate(id int64, one, two string, winner models.WinnerSide, pointDiff, homeScore, awayScore int) models.Candidate {
	return models.Candidate{
		EventID:    id,
		Home:       "Home",
		Away:       "Away",
		Variation:  vec(one, two, nil),
		WinnerSide: winner,
		PointDiff:  pointDiff,
		HomeScore:  homeScore,
		AwayScore:  awayScore,
	}
}

func TestEvaluate_NoCandidates(t *testing.T) {
	v := matcher.Evaluate(1, models.SportBasketball, "NBA", "A", "B", vec("-0.10", "0.20", nil), nil)
	if v.Status != models.VerdictNoCandidates {
		t.Fatalf("expected NO_CANDIDATES, got %s", v.Status)
	}
}

func TestEvaluate_Tier1ExactUnanimousA(t *testing.T) {
	current := vec("-0.10", "0.20", nil)
	pool := []models.Candidate{
		candidate(2, "-0.10", "0.20", models.WinnerAway, 5, 80, 85),
		candidate(3, "-0.10", "0.20", models.WinnerAway, 5, 80, 85),
	}
	v := matcher.Evaluate(1, models.SportBasketball, "NBA", "A", "B", current, pool)
	if v.Status != models.VerdictSuccess {
		t.Fatalf("expected SUCCESS, got %s", v.Status)
	}
	if v.VariationTier != models.VariationTierExact {
		t.Fatalf("expected tier1_exact, got %s", v.VariationTier)
	}
	if v.ResultTier != models.ResultTierIdentical || v.Confidence != models.ConfidenceA {
		t.Fatalf("expected tier A / confidence %d, got %s / %d", models.ConfidenceA, v.ResultTier, v.Confidence)
	}
	if v.PredictedWinner != models.WinnerAway || v.PredictedPointDiff != 5 {
		t.Fatalf("unexpected prediction: winner=%s diff=%d", v.PredictedWinner, v.PredictedPointDiff)
	}
}

func TestEvaluate_Tier2WithinTolerance(t *testing.T) {
	current := vec("-0.10", "0.20", nil)
	pool := []models.Candidate{
		// within tau = 0.0401 of current on both legs
		candidate(2, "-0.14", "0.24", models.WinnerAway, 3, 70, 73),
		candidate(3, "-0.07", "0.17", models.WinnerAway, 7, 60, 67),
	}
	v := matcher.Evaluate(1, models.SportBasketball, "NBA", "A", "B", current, pool)
	if v.Status != models.VerdictSuccess {
		t.Fatalf("expected SUCCESS, got %s", v.Status)
	}
	if v.VariationTier != models.VariationTierSimilar {
		t.Fatalf("expected tier2_similar, got %s", v.VariationTier)
	}
	// same winner, different point_diff -> tier C, mean rounded
	if v.ResultTier != models.ResultTierWinner || v.Confidence != models.ConfidenceC {
		t.Fatalf("expected tier C / confidence %d, got %s / %d", models.ConfidenceC, v.ResultTier, v.Confidence)
	}
	if v.PredictedPointDiff != 5 {
		t.Fatalf("expected mean point_diff 5, got %d", v.PredictedPointDiff)
	}
}

func TestEvaluate_OutsideTolerance_NoCandidates(t *testing.T) {
	current := vec("-0.10", "0.20", nil)
	pool := []models.Candidate{
		candidate(2, "-5.00", "5.00", models.WinnerAway, 3, 70, 73),
	}
	v := matcher.Evaluate(1, models.SportBasketball, "NBA", "A", "B", current, pool)
	if v.Status != models.VerdictNoCandidates {
		t.Fatalf("expected NO_CANDIDATES, got %s", v.Status)
	}
}

func TestEvaluate_SignMismatch_NoMatch(t *testing.T) {
	current := vec("-0.02", "0.20", nil)
	// within tau on both legs in magnitude, but opposite sign on the home leg
	pool := []models.Candidate{
		candidate(2, "0.02", "0.22", models.WinnerAway, 3, 70, 73),
	}
	v := matcher.Evaluate(1, models.SportBasketball, "NBA", "A", "B", current, pool)
	if v.Status != models.VerdictNoMatch {
		t.Fatalf("expected NO_MATCH, got %s", v.Status)
	}
}

func TestEvaluate_DisagreeingWinners_NoMatch(t *testing.T) {
	current := vec("-0.10", "0.20", nil)
	pool := []models.Candidate{
		candidate(2, "-0.10", "0.20", models.WinnerAway, 5, 80, 85),
		candidate(3, "-0.10", "0.20", models.WinnerHome, 2, 90, 88),
	}
	v := matcher.Evaluate(1, models.SportBasketball, "NBA", "A", "B", current, pool)
	if v.Status != models.VerdictNoMatch {
		t.Fatalf("expected NO_MATCH, got %s", v.Status)
	}
}

func candidate3(id int64, one, x, two string, winner models.WinnerSide, pointDiff, homeScore, awayScore int) models.Candidate {
	return models.Candidate{
		EventID:    id,
		Home:       "Home",
		Away:       "Away",
		Variation:  vec(one, two, &x),
		WinnerSide: winner,
		PointDiff:  pointDiff,
		HomeScore:  homeScore,
		AwayScore:  awayScore,
	}
}

// Two past tennis matches with the exact same (Δ1, Δ2) as the current
// event, both ending winner=1 with the same scoreline: tier 1 / result
// tier A, confidence 100, both candidates listed.
func TestEvaluate_TennisTwoWayTier1A(t *testing.T) {
	current := vec("0.15", "-0.12", nil)
	pool := []models.Candidate{
		candidate(10, "0.15", "-0.12", models.WinnerHome, 1, 2, 1),
		candidate(11, "0.15", "-0.12", models.WinnerHome, 1, 2, 1),
	}
	v := matcher.Evaluate(1, models.SportTennis, "ATP", "A", "B", current, pool)
	if v.Status != models.VerdictSuccess {
		t.Fatalf("expected SUCCESS, got %s", v.Status)
	}
	if v.VariationTier != models.VariationTierExact || v.ResultTier != models.ResultTierIdentical {
		t.Fatalf("expected tier1/A, got %s/%s", v.VariationTier, v.ResultTier)
	}
	if v.Confidence != models.ConfidenceA {
		t.Fatalf("expected confidence %d, got %d", models.ConfidenceA, v.Confidence)
	}
	if v.PredictedWinner != models.WinnerHome || v.PredictedPointDiff != 1 {
		t.Fatalf("unexpected prediction: winner=%s diff=%d", v.PredictedWinner, v.PredictedPointDiff)
	}
	if len(v.Candidates) != 2 {
		t.Fatalf("expected both candidates listed, got %d", len(v.Candidates))
	}
}

// Three symmetric football candidates within tau, same winner but three
// distinct point_diffs: tier 2 / result tier C, prediction is the mean
// point_diff rounded to nearest.
func TestEvaluate_FootballThreeWayTier2C(t *testing.T) {
	x := "-0.05"
	current := vec("0.13", "-0.08", &x)
	pool := []models.Candidate{
		candidate3(20, "0.12", "-0.05", "-0.07", models.WinnerHome, 2, 2, 0),
		candidate3(21, "0.13", "-0.06", "-0.08", models.WinnerHome, 1, 1, 0),
		candidate3(22, "0.14", "-0.04", "-0.09", models.WinnerHome, 3, 3, 0),
	}
	v := matcher.Evaluate(1, models.SportFootball, "Serie A", "A", "B", current, pool)
	if v.Status != models.VerdictSuccess {
		t.Fatalf("expected SUCCESS, got %s", v.Status)
	}
	if v.VariationTier != models.VariationTierSimilar || v.ResultTier != models.ResultTierWinner {
		t.Fatalf("expected tier2/C, got %s/%s", v.VariationTier, v.ResultTier)
	}
	if v.Confidence != models.ConfidenceC {
		t.Fatalf("expected confidence %d, got %d", models.ConfidenceC, v.Confidence)
	}
	if v.PredictedWinner != models.WinnerHome || v.PredictedPointDiff != 2 {
		t.Fatalf("expected winner=1 diff=2 (mean of 2,1,3), got winner=%s diff=%d", v.PredictedWinner, v.PredictedPointDiff)
	}
}

// Same winner and point_diff across candidates but different scorelines:
// tier B, not A.
func TestEvaluate_TierBSameWinnerAndDiff(t *testing.T) {
	current := vec("-0.10", "0.20", nil)
	pool := []models.Candidate{
		candidate(30, "-0.10", "0.20", models.WinnerAway, 5, 80, 85),
		candidate(31, "-0.10", "0.20", models.WinnerAway, 5, 95, 100),
	}
	v := matcher.Evaluate(1, models.SportBasketball, "NBA", "A", "B", current, pool)
	if v.Status != models.VerdictSuccess {
		t.Fatalf("expected SUCCESS, got %s", v.Status)
	}
	if v.ResultTier != models.ResultTierSimilar || v.Confidence != models.ConfidenceB {
		t.Fatalf("expected tier B / confidence %d, got %s / %d", models.ConfidenceB, v.ResultTier, v.Confidence)
	}
	if v.PredictedPointDiff != 5 {
		t.Fatalf("expected point_diff 5, got %d", v.PredictedPointDiff)
	}
}

// A non-symmetric candidate stays in the report flagged symmetric=false
// but doesn't influence tier selection: the tier is evaluated over the
// two symmetric candidates only.
func TestEvaluate_SymmetryFilterExcludesButReports(t *testing.T) {
	current := vec("-0.02", "0.20", nil)
	pool := []models.Candidate{
		candidate(40, "-0.03", "0.22", models.WinnerAway, 4, 70, 74),
		candidate(41, "-0.01", "0.18", models.WinnerAway, 4, 66, 70),
		candidate(42, "0.02", "0.21", models.WinnerHome, 9, 80, 71), // sign mismatch on home leg
	}
	v := matcher.Evaluate(1, models.SportBasketball, "NBA", "A", "B", current, pool)
	if v.Status != models.VerdictSuccess {
		t.Fatalf("expected SUCCESS over the symmetric pair, got %s", v.Status)
	}
	if len(v.Candidates) != 3 {
		t.Fatalf("expected all 3 candidates reported, got %d", len(v.Candidates))
	}
	var asymmetric *models.Candidate
	for i := range v.Candidates {
		if v.Candidates[i].EventID == 42 {
			asymmetric = &v.Candidates[i]
		}
	}
	if asymmetric == nil || asymmetric.Symmetric {
		t.Fatal("expected candidate 42 reported with symmetric=false")
	}
	if v.ResultTier != models.ResultTierSimilar || v.PredictedWinner != models.WinnerAway {
		t.Fatalf("expected tier over the symmetric pair (B, winner=2), got %s winner=%s", v.ResultTier, v.PredictedWinner)
	}
}

// A zero component matches either sign (the symmetry predicate treats 0 as
// wildcard).
func TestEvaluate_ZeroComponentMatchesEitherSign(t *testing.T) {
	current := vec("0.00", "0.20", nil)
	pool := []models.Candidate{
		candidate(50, "-0.03", "0.19", models.WinnerAway, 2, 60, 62),
	}
	v := matcher.Evaluate(1, models.SportBasketball, "NBA", "A", "B", current, pool)
	if v.Status != models.VerdictSuccess {
		t.Fatalf("expected SUCCESS, got %s", v.Status)
	}
	if !v.Candidates[0].Symmetric {
		t.Fatal("expected candidate symmetric when current component is zero")
	}
}

func TestEvaluate_KeepsSameIDCandidate_ExclusionIsUpstream(t *testing.T) {
	// The matcher package itself doesn't know about exclusion (that's
	// CandidatesForSport's job); this just documents the pool contract:
	// a candidate sharing the current event's id is indistinguishable to
	// Evaluate from any other candidate, so exclusion must happen upstream.
	current := vec("-0.10", "0.20", nil)
	pool := []models.Candidate{candidate(1, "-0.10", "0.20", models.WinnerAway, 5, 80, 85)}
	v := matcher.Evaluate(1, models.SportBasketball, "NBA", "A", "B", current, pool)
	if len(v.Candidates) != 1 {
		t.Fatalf("expected Evaluate to trust its input pool as-is, got %d candidates", len(v.Candidates))
	}
}
