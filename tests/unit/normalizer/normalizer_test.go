package normalizer_test

import (
	"testing"

	"github.com/fortuna-labs/oracle/internal/normalizer"
	"github.com/fortuna-labs/oracle/internal/sports"
	"github.com/fortuna-labs/oracle/pkg/contracts"
	"github.com/fortuna-labs/oracle/pkg/models"
)

func footballProfile(t *testing.T) contracts.SportProfile {
	t.Helper()
	p, ok := sports.NewRegistry().Get(models.SportFootball)
	if !ok {
		t.Fatal("football profile not registered")
	}
	return p
}

func basketballProfile(t *testing.T) contracts.SportProfile {
	t.Helper()
	p, ok := sports.NewRegistry().Get(models.SportBasketball)
	if !ok {
		t.Fatal("basketball profile not registered")
	}
	return p
}

func TestNormalize_ThreeWayMarket(t *testing.T) {
	doc := contracts.RawMarketDocument{
		Markets: []contracts.RawMarket{
			{Key: "1X2", Outcomes: []contracts.RawOutcome{
				{Name: "1", Price: "1.85"},
				{Name: "X", Price: "3.40"},
				{Name: "2", Price: "4.20"},
			}},
		},
	}

	triple, err := normalizer.Normalize(doc, footballProfile(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if triple.One == nil || !triple.One.Equal(triple.One.Truncate(3)) || triple.One.String() != "1.85" {
		t.Fatalf("unexpected one leg: %v", triple.One)
	}
	if triple.X == nil || triple.X.String() != "3.4" {
		t.Fatalf("unexpected draw leg: %v", triple.X)
	}
	if triple.Two == nil || triple.Two.String() != "4.2" {
		t.Fatalf("unexpected two leg: %v", triple.Two)
	}
}

func TestNormalize_TwoWayMarket(t *testing.T) {
	doc := contracts.RawMarketDocument{
		Markets: []contracts.RawMarket{
			{Key: "moneyline", Outcomes: []contracts.RawOutcome{
				{Name: "Home", Price: "1.50"},
				{Name: "Away", Price: "2.60"},
			}},
		},
	}

	triple, err := normalizer.Normalize(doc, basketballProfile(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if triple.X != nil {
		t.Fatalf("expected no draw leg for a two-way sport, got %v", triple.X)
	}
	if triple.One == nil || triple.Two == nil {
		t.Fatalf("expected both legs populated")
	}
}

func TestNormalize_FractionalOdds(t *testing.T) {
	doc := contracts.RawMarketDocument{
		Markets: []contracts.RawMarket{
			{Key: "moneyline", Outcomes: []contracts.RawOutcome{
				{Name: "Home", Price: "1/2"},
				{Name: "Away", Price: "17/20"},
			}},
		},
	}

	triple, err := normalizer.Normalize(doc, basketballProfile(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if triple.One.String() != "1.5" {
		t.Fatalf("expected 1/2 -> 1.5, got %s", triple.One)
	}
	if triple.Two.String() != "1.85" {
		t.Fatalf("expected 17/20 -> 1.85, got %s", triple.Two)
	}
}

func TestNormalize_NoMatchingMarket(t *testing.T) {
	doc := contracts.RawMarketDocument{
		Markets: []contracts.RawMarket{
			{Key: "total_points", Outcomes: []contracts.RawOutcome{
				{Name: "Over", Price: "1.90"},
				{Name: "Under", Price: "1.90"},
			}},
		},
	}

	// Football wants a 3-way market; this document only has 2-way outcomes
	// with names that don't map to home/draw/away keys.
	_, err := normalizer.Normalize(doc, footballProfile(t))
	if err != normalizer.ErrNoOdds {
		t.Fatalf("expected ErrNoOdds, got %v", err)
	}
}

func TestNormalize_BelowMinimumQuoteDiscarded(t *testing.T) {
	doc := contracts.RawMarketDocument{
		Markets: []contracts.RawMarket{
			{Key: "moneyline", Outcomes: []contracts.RawOutcome{
				{Name: "Home", Price: "0.50"}, // below 1.001, discarded
				{Name: "Away", Price: "2.10"},
			}},
		},
	}

	_, err := normalizer.Normalize(doc, basketballProfile(t))
	if err != normalizer.ErrNoOdds {
		t.Fatalf("expected ErrNoOdds when the market's arity drops below the sport's, got %v", err)
	}
}
