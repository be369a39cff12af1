package sports_test

import (
	"testing"
	"time"

	"github.com/fortuna-labs/oracle/internal/sports"
	"github.com/fortuna-labs/oracle/pkg/models"
)

func TestRegistry_Get(t *testing.T) {
	tests := []struct {
		sport          models.Sport
		hasDraw        bool
		usesGroundType bool
		cutoff         time.Duration
	}{
		{models.SportFootball, true, false, 150 * time.Minute},
		{models.SportFutsal, true, false, 150 * time.Minute},
		{models.SportTennis, false, true, 4 * time.Hour},
		{models.SportBasketball, false, false, 3 * time.Hour},
		{models.SportBaseball, false, false, 4 * time.Hour},
	}

	reg := sports.NewRegistry()
	for _, tt := range tests {
		t.Run(string(tt.sport), func(t *testing.T) {
			p, ok := reg.Get(tt.sport)
			if !ok {
				t.Fatalf("sport %s not registered", tt.sport)
			}
			if p.HasDraw() != tt.hasDraw {
				t.Errorf("HasDraw() = %v, want %v", p.HasDraw(), tt.hasDraw)
			}
			if p.UsesGroundType() != tt.usesGroundType {
				t.Errorf("UsesGroundType() = %v, want %v", p.UsesGroundType(), tt.usesGroundType)
			}
			if p.ResultCutoff() != tt.cutoff {
				t.Errorf("ResultCutoff() = %v, want %v", p.ResultCutoff(), tt.cutoff)
			}
		})
	}
}

func TestRegistry_Get_Unrecognized(t *testing.T) {
	reg := sports.NewRegistry()
	if _, ok := reg.Get(models.Sport("cricket")); ok {
		t.Fatal("expected cricket to be unrecognized")
	}
}

func TestRegistry_All(t *testing.T) {
	reg := sports.NewRegistry()
	all := reg.All()
	if len(all) != 5 {
		t.Fatalf("expected 5 registered sports, got %d", len(all))
	}
}

func TestCutoffFor_UnrecognizedFallsBackToDefault(t *testing.T) {
	if got := sports.CutoffFor(models.Sport("cricket")); got != 3*time.Hour {
		t.Errorf("expected default cutoff 3h for unrecognized sport, got %v", got)
	}
}

func TestValidateQuote_ArityMismatch(t *testing.T) {
	reg := sports.NewRegistry()
	football, _ := reg.Get(models.SportFootball)
	if err := football.ValidateQuote(3); err != nil {
		t.Errorf("expected 3-way market to validate for football, got %v", err)
	}
	if err := football.ValidateQuote(2); err == nil {
		t.Error("expected 2-way market to be rejected for football (has draw)")
	}

	tennis, _ := reg.Get(models.SportTennis)
	if err := tennis.ValidateQuote(2); err != nil {
		t.Errorf("expected 2-way market to validate for tennis, got %v", err)
	}
	if err := tennis.ValidateQuote(3); err == nil {
		t.Error("expected 3-way market to be rejected for tennis (no draw)")
	}
}
