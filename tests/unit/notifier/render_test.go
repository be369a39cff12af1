package notifier_test

import (
	"strings"
	"testing"

	"github.com/fortuna-labs/oracle/internal/notifier"
	"github.com/fortuna-labs/oracle/pkg/models"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func TestRender_SuccessVerdict(t *testing.T) {
	v := models.Verdict{
		EventID:     1,
		Sport:       models.SportFootball,
		Competition: "Serie A",
		Home:        "Milan",
		Away:        "Inter",
		Variation:   models.VariationVector{One: dec("0.13"), X: decPtr("-0.05"), Two: dec("-0.08")},
		Status:      models.VerdictSuccess,

		VariationTier:      models.VariationTierSimilar,
		ResultTier:         models.ResultTierWinner,
		Confidence:         models.ConfidenceC,
		PredictedWinner:    models.WinnerHome,
		PredictedPointDiff: 2,

		Candidates: []models.Candidate{
			{
				EventID: 2, Home: "Roma", Away: "Lazio", Competition: "Serie A",
				Variation:  models.VariationVector{One: dec("0.12"), X: decPtr("-0.05"), Two: dec("-0.07")},
				DiffOne:    dec("-0.01"),
				DiffTwo:    dec("0.01"),
				WinnerSide: models.WinnerHome, PointDiff: 2, HomeScore: 2, AwayScore: 0,
				Symmetric: true,
			},
		},
	}

	report := notifier.Render(v)

	for _, want := range []string{
		"Milan vs Inter (Serie A)",
		"status: SUCCESS",
		"ΔX=-0.05",
		"winner=1 point_diff=2",
		"confidence 50%",
		"Roma vs Lazio",
		"symmetric=true",
	} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q:\n%s", want, report)
		}
	}
}

func TestRender_TwoWayOmitsDrawLeg(t *testing.T) {
	v := models.Verdict{
		Home: "A", Away: "B", Competition: "ATP",
		Variation: models.VariationVector{One: dec("0.15"), Two: dec("-0.12")},
		Status:    models.VerdictNoMatch,
	}

	report := notifier.Render(v)
	if strings.Contains(report, "ΔX=") {
		t.Errorf("two-way report should not carry a draw leg:\n%s", report)
	}
	if !strings.Contains(report, "status: NO_MATCH") {
		t.Errorf("expected NO_MATCH status line:\n%s", report)
	}
}

func TestRender_NoMatchStillListsCandidates(t *testing.T) {
	v := models.Verdict{
		Home: "A", Away: "B", Competition: "NBA",
		Variation:     models.VariationVector{One: dec("-0.10"), Two: dec("0.20")},
		Status:        models.VerdictNoMatch,
		VariationTier: models.VariationTierExact,
		Candidates: []models.Candidate{
			{EventID: 2, Home: "C", Away: "D", WinnerSide: models.WinnerHome, PointDiff: 1, Symmetric: true},
			{EventID: 3, Home: "E", Away: "F", WinnerSide: models.WinnerAway, PointDiff: 1, Symmetric: true},
		},
	}

	report := notifier.Render(v)
	if !strings.Contains(report, "C vs D") || !strings.Contains(report, "E vs F") {
		t.Errorf("NO_MATCH report must list every candidate with its outcome:\n%s", report)
	}
	if strings.Contains(report, "prediction:") {
		t.Errorf("NO_MATCH report must not carry a prediction line:\n%s", report)
	}
}
