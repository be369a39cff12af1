// Package matcher implements the history matcher / prediction engine:
// variation-tier candidate discovery, the symmetry filter, and the
// three-tier unanimity rule. This file holds the pure decision logic over
// shopspring/decimal vectors, free of any database or cache dependency.
package matcher

import (
	"github.com/fortuna-labs/oracle/pkg/models"
	"github.com/shopspring/decimal"
)

// tolerance is the tier-2 similarity radius, inclusive of 0.04.
var tolerance = decimal.RequireFromString("0.0401")

// Evaluate runs the full tier/symmetry/unanimity pipeline over a current
// event's variation vector and its raw candidate pool, returning a
// complete Verdict. It never mutates its inputs and performs no I/O.
func Evaluate(eventID int64, sport models.Sport, competition, home, away string, current models.VariationVector, pool []models.Candidate) models.Verdict {
	v := models.Verdict{
		EventID:     eventID,
		Sport:       sport,
		Competition: competition,
		Home:        home,
		Away:        away,
		Variation:   current,
	}

	if len(pool) == 0 {
		v.Status = models.VerdictNoCandidates
		return v
	}

	tier1 := filterTier(pool, current, isExactMatch)
	var tier models.VariationTier
	var candidates []models.Candidate

	if len(tier1) > 0 {
		tier = models.VariationTierExact
		candidates = tier1
		markAllSymmetric(candidates)
	} else {
		tier2 := filterTier(pool, current, isWithinTolerance)
		tier = models.VariationTierSimilar
		candidates = tier2
		markSymmetry(candidates, current)
	}

	v.VariationTier = tier
	v.Candidates = candidates

	if len(candidates) == 0 {
		v.Status = models.VerdictNoCandidates
		return v
	}

	symmetric := v.SymmetricCandidates()
	if len(symmetric) == 0 {
		v.Status = models.VerdictNoMatch
		return v
	}

	resultTier, confidence, winner, pointDiff, ok := evaluateUnanimity(symmetric)
	if !ok {
		v.Status = models.VerdictNoMatch
		return v
	}

	v.Status = models.VerdictSuccess
	v.ResultTier = resultTier
	v.Confidence = confidence
	v.PredictedWinner = winner
	v.PredictedPointDiff = pointDiff
	return v
}

// filterTier retains candidates whose variation vector satisfies pred
// against current, and populates each candidate's componentwise diffs.
// A candidate whose vector shape doesn't fit current (e.g. no ΔX when
// current has one) is rejected by pred.
func filterTier(pool []models.Candidate, current models.VariationVector, pred func(past, cur models.VariationVector) bool) []models.Candidate {
	out := make([]models.Candidate, 0, len(pool))
	for _, c := range pool {
		past := c.Variation
		if !pred(past, current) {
			continue
		}
		c.DiffOne = past.One.Sub(current.One)
		c.DiffTwo = past.Two.Sub(current.Two)
		if current.HasDraw() && past.HasDraw() {
			d := past.X.Sub(*current.X)
			c.DiffX = &d
		}
		out = append(out, c)
	}
	return out
}

// isExactMatch implements variation tier 1: componentwise equality at
// 2-decimal precision.
func isExactMatch(past, cur models.VariationVector) bool {
	if !past.One.Truncate(2).Equal(cur.One.Truncate(2)) {
		return false
	}
	if !past.Two.Truncate(2).Equal(cur.Two.Truncate(2)) {
		return false
	}
	if cur.HasDraw() {
		if !past.HasDraw() {
			return false
		}
		if !past.X.Truncate(2).Equal(cur.X.Truncate(2)) {
			return false
		}
	}
	return true
}

// isWithinTolerance implements variation tier 2: |Δpast - Δcur| <= τ on
// every present component.
func isWithinTolerance(past, cur models.VariationVector) bool {
	if past.One.Sub(cur.One).Abs().GreaterThan(tolerance) {
		return false
	}
	if past.Two.Sub(cur.Two).Abs().GreaterThan(tolerance) {
		return false
	}
	if cur.HasDraw() {
		if !past.HasDraw() {
			return false
		}
		if past.X.Sub(*cur.X).Abs().GreaterThan(tolerance) {
			return false
		}
	}
	return true
}

// markAllSymmetric flags every candidate symmetric — tier-1 exact matches
// share the current vector's signs by construction.
func markAllSymmetric(candidates []models.Candidate) {
	for i := range candidates {
		candidates[i].Symmetric = true
	}
}

// markSymmetry flags a candidate symmetric iff the sign pattern of its
// past variation vector matches the current one componentwise, treating
// zero as matching either sign.
func markSymmetry(candidates []models.Candidate, current models.VariationVector) {
	for i := range candidates {
		past := candidates[i].Variation
		sym := signMatch(past.One, current.One) && signMatch(past.Two, current.Two)
		if sym && current.HasDraw() && past.HasDraw() {
			sym = signMatch(*past.X, *current.X)
		}
		candidates[i].Symmetric = sym
	}
}

func signMatch(a, b decimal.Decimal) bool {
	sa, sb := a.Sign(), b.Sign()
	return sa == 0 || sb == 0 || sa == sb
}

// evaluateUnanimity picks the strongest of A/B/C that holds for every
// candidate in the symmetric set.
func evaluateUnanimity(candidates []models.Candidate) (tier models.ResultTier, confidence int, winner models.WinnerSide, pointDiff int, ok bool) {
	first := candidates[0]

	allIdentical := true
	allSameDiff := true
	allSameWinner := true
	sumDiff := 0

	for _, c := range candidates {
		if c.WinnerSide != first.WinnerSide {
			allSameWinner = false
		}
		if c.WinnerSide != first.WinnerSide || c.PointDiff != first.PointDiff {
			allSameDiff = false
		}
		if c.HomeScore != first.HomeScore || c.AwayScore != first.AwayScore {
			allIdentical = false
		}
		sumDiff += c.PointDiff
	}

	switch {
	case allIdentical:
		return models.ResultTierIdentical, models.ConfidenceA, first.WinnerSide, first.PointDiff, true
	case allSameDiff:
		return models.ResultTierSimilar, models.ConfidenceB, first.WinnerSide, first.PointDiff, true
	case allSameWinner:
		mean := roundToNearest(float64(sumDiff) / float64(len(candidates)))
		return models.ResultTierWinner, models.ConfidenceC, first.WinnerSide, mean, true
	default:
		return "", 0, "", 0, false
	}
}

func roundToNearest(f float64) int {
	if f >= 0 {
		return int(f + 0.5)
	}
	return -int(-f + 0.5)
}
