package models

import "github.com/shopspring/decimal"

// VariationTier classifies how closely a historical candidate's variation
// vector matches the current event's.
type VariationTier string

const (
	VariationTierExact   VariationTier = "tier1_exact"
	VariationTierSimilar VariationTier = "tier2_similar"
)

// ResultTier classifies the unanimity level among candidate outcomes.
type ResultTier string

const (
	ResultTierIdentical ResultTier = "A_identical"
	ResultTierSimilar   ResultTier = "B_similar"
	ResultTierWinner    ResultTier = "C_winner_only"
)

// confidence and weight per result tier.
const (
	ConfidenceA = 100
	ConfidenceB = 75
	ConfidenceC = 50

	WeightA = 4
	WeightB = 3
	WeightC = 2
)

// VerdictStatus is the matcher's top-level disposition for an event.
type VerdictStatus string

const (
	VerdictSuccess      VerdictStatus = "SUCCESS"
	VerdictNoMatch      VerdictStatus = "NO_MATCH"
	VerdictNoCandidates VerdictStatus = "NO_CANDIDATES"
)

// Candidate is one historical event considered by the matcher, carrying its
// own variation vector, the componentwise signed difference versus the
// current event, its settled outcome, and whether it passed the symmetry
// filter.
type Candidate struct {
	EventID     int64
	Home        string
	Away        string
	Competition string

	Variation VariationVector

	DiffOne decimal.Decimal
	DiffX   *decimal.Decimal
	DiffTwo decimal.Decimal

	WinnerSide WinnerSide
	PointDiff  int
	HomeScore  int
	AwayScore  int

	Symmetric bool
}

// Verdict is the matcher's structured output for one event evaluation.
type Verdict struct {
	EventID     int64
	Sport       Sport
	Competition string
	Home        string
	Away        string
	Variation   VariationVector

	Status VerdictStatus

	VariationTier VariationTier
	ResultTier    ResultTier

	Candidates []Candidate

	Confidence         int // 0 when not SUCCESS
	PredictedWinner    WinnerSide
	PredictedPointDiff int
}

// IsSuccess reports whether this verdict carries a prediction.
func (v Verdict) IsSuccess() bool {
	return v.Status == VerdictSuccess
}

// SymmetricCandidates returns only the candidates that passed the symmetry
// filter — the set the tier-unanimity rule is actually evaluated over.
func (v Verdict) SymmetricCandidates() []Candidate {
	out := make([]Candidate, 0, len(v.Candidates))
	for _, c := range v.Candidates {
		if c.Symmetric {
			out = append(out, c)
		}
	}
	return out
}
