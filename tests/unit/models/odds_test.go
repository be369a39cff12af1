package models_test

import (
	"testing"

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

// For every event with both opening and final odds present, var_one,
// var_x (when applicable) and var_two equal the respective differences to
// two decimal places; if any opening component is null the corresponding
// variation is null.
func TestOddsRecord_VariationColumns(t *testing.T) {
	rec := models.OddsRecord{
		OneOpen: decPtr("1.800"), OneFinal: decPtr("1.950"),
		XOpen: decPtr("3.400"), XFinal: decPtr("3.350"),
		TwoOpen: decPtr("4.200"), TwoFinal: decPtr("3.900"),
	}

	one := rec.VarOne()
	if one == nil || !one.Equal(dec("0.15")) {
		t.Errorf("expected var_one 0.15, got %v", one)
	}
	x := rec.VarX()
	if x == nil || !x.Equal(dec("-0.05")) {
		t.Errorf("expected var_x -0.05, got %v", x)
	}
	two := rec.VarTwo()
	if two == nil || !two.Equal(dec("-0.30")) {
		t.Errorf("expected var_two -0.30, got %v", two)
	}
}

func TestOddsRecord_VariationNullWhenOpeningMissing(t *testing.T) {
	rec := models.OddsRecord{
		OneFinal: decPtr("1.950"),
		TwoOpen:  decPtr("4.200"), TwoFinal: decPtr("3.900"),
	}

	if rec.VarOne() != nil {
		t.Errorf("expected var_one nil when one_open is missing, got %v", rec.VarOne())
	}
	if rec.VarX() != nil {
		t.Errorf("expected var_x nil for a 2-way record, got %v", rec.VarX())
	}
	if rec.VarTwo() == nil {
		t.Error("expected var_two to be computed when both legs present")
	}
}

func TestOddsRecord_VariationTruncatedToTwoDecimals(t *testing.T) {
	rec := models.OddsRecord{
		OneOpen: decPtr("1.851"), OneFinal: decPtr("1.999"),
	}
	one := rec.VarOne()
	if one == nil || one.String() != "0.14" {
		t.Errorf("expected var_one truncated to 0.14, got %v", one)
	}
}

func TestVariationVector_HasDraw(t *testing.T) {
	withDraw := models.VariationVector{One: dec("0.1"), X: decPtr("0.0"), Two: dec("-0.1")}
	if !withDraw.HasDraw() {
		t.Error("expected HasDraw true when X is set")
	}

	noDraw := models.VariationVector{One: dec("0.1"), Two: dec("-0.1")}
	if noDraw.HasDraw() {
		t.Error("expected HasDraw false when X is nil")
	}
}
