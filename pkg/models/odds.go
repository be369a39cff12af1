package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OddsTriple is a decimal quote set for outcomes 1 (home), X (draw, only for
// sports that support it) and 2 (away). A nil component means "not quoted".
type OddsTriple struct {
	One *decimal.Decimal
	X   *decimal.Decimal
	Two *decimal.Decimal
}

// OddsRecord is the exactly-one-per-event odds row: opening
// triple captured at discovery, final triple captured at the last
// successful pre-start checkpoint, and the derived variation columns.
type OddsRecord struct {
	EventID int64

	OneOpen *decimal.Decimal
	XOpen   *decimal.Decimal
	TwoOpen *decimal.Decimal

	OneFinal *decimal.Decimal
	XFinal   *decimal.Decimal
	TwoFinal *decimal.Decimal

	OpenCapturedAt  *time.Time
	FinalCapturedAt *time.Time
}

// roundVar truncates a variation delta to 2 decimal places.
func roundVar(d decimal.Decimal) decimal.Decimal {
	return d.Truncate(2)
}

// VarOne is the derived final-minus-open variation for the home quote, nil
// when either source column is null. Variation columns are always derived,
// never stored directly.
func (o OddsRecord) VarOne() *decimal.Decimal {
	return diffPtr(o.OneOpen, o.OneFinal)
}

// VarX is the derived draw variation, nil for 2-way sports or missing data.
func (o OddsRecord) VarX() *decimal.Decimal {
	return diffPtr(o.XOpen, o.XFinal)
}

// VarTwo is the derived away variation.
func (o OddsRecord) VarTwo() *decimal.Decimal {
	return diffPtr(o.TwoOpen, o.TwoFinal)
}

func diffPtr(open, final *decimal.Decimal) *decimal.Decimal {
	if open == nil || final == nil {
		return nil
	}
	v := roundVar(final.Sub(*open))
	return &v
}

// VariationVector is the tuple (Δ1, ΔX?, Δ2) used by the history
// matcher. ΔX is nil when the sport has no draw, or when the current
// event's X delta is null (treated as 2-way for matching purposes).
type VariationVector struct {
	One decimal.Decimal
	X   *decimal.Decimal
	Two decimal.Decimal
}

// HasDraw reports whether this vector carries a draw component.
func (v VariationVector) HasDraw() bool {
	return v.X != nil
}
