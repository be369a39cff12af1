// Package normalizer converts a raw vendor market document into the
// canonical home/draw/away decimal triple. Every value is a
// shopspring/decimal.Decimal so the 2/3-decimal truncation and
// equality-at-2-decimal-places rules are exact, not float-epsilon-fuzzy.
package normalizer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fortuna-labs/oracle/pkg/contracts"
	"github.com/fortuna-labs/oracle/pkg/models"
	"github.com/shopspring/decimal"
)

// ErrNoOdds is returned when no market in the document matches the sport's
// arity.
var ErrNoOdds = errors.New("normalizer: no matching market for sport arity")

var oneKeys = map[string]bool{"1": true, "home": true}
var drawKeys = map[string]bool{"x": true, "draw": true}
var twoKeys = map[string]bool{"2": true, "away": true}

const minQuote = "1.001"

// Normalize picks the market whose outcome set matches the sport's arity
// (draw column present iff the sport supports draws) and returns the
// canonical decimal triple. Invalid quotes (< 1.001, unparseable, or
// fractional "n/d" malformed) are discarded individually rather than
// failing the whole market.
func Normalize(doc contracts.RawMarketDocument, profile contracts.SportProfile) (models.OddsTriple, error) {
	for _, market := range doc.Markets {
		triple, arity := extractTriple(market)
		if arity == 0 {
			continue
		}
		if err := profile.ValidateQuote(arity); err != nil {
			continue
		}
		if (triple.X != nil) != profile.HasDraw() {
			continue
		}
		return triple, nil
	}

	return models.OddsTriple{}, ErrNoOdds
}

// extractTriple pulls the 1/X/2 outcomes out of one market block and
// reports how many non-nil legs it found (the market's observed arity).
func extractTriple(market contracts.RawMarket) (models.OddsTriple, int) {
	var triple models.OddsTriple
	arity := 0

	for _, outcome := range market.Outcomes {
		d, err := parseQuote(outcome.Price)
		if err != nil {
			continue
		}

		key := normalizeOutcomeName(outcome.Name)
		switch {
		case oneKeys[key] && triple.One == nil:
			triple.One = &d
			arity++
		case drawKeys[key] && triple.X == nil:
			triple.X = &d
			arity++
		case twoKeys[key] && triple.Two == nil:
			triple.Two = &d
			arity++
		}
	}

	return triple, arity
}

// normalizeOutcomeName lowercases and trims an outcome label so "Home",
// "HOME", and "home" all resolve to the same key.
func normalizeOutcomeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// parseQuote converts a raw price string — either a decimal ("1.85") or a
// fractional ("17/20") quote — to a validated decimal.Decimal, truncated to
// 3 fractional digits.
func parseQuote(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Decimal{}, fmt.Errorf("empty quote")
	}

	var value decimal.Decimal
	if strings.Contains(raw, "/") {
		parts := strings.SplitN(raw, "/", 2)
		if len(parts) != 2 {
			return decimal.Decimal{}, fmt.Errorf("malformed fractional quote %q", raw)
		}
		num, err := decimal.NewFromString(strings.TrimSpace(parts[0]))
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("parse fractional numerator: %w", err)
		}
		den, err := decimal.NewFromString(strings.TrimSpace(parts[1]))
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("parse fractional denominator: %w", err)
		}
		if den.IsZero() {
			return decimal.Decimal{}, fmt.Errorf("zero denominator in %q", raw)
		}
		one := decimal.NewFromInt(1)
		value = num.Div(den).Add(one)
	} else {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("parse decimal quote: %w", err)
		}
		value = d
	}

	min, _ := decimal.NewFromString(minQuote)
	if value.LessThan(min) {
		return decimal.Decimal{}, fmt.Errorf("quote %s below minimum %s", value, minQuote)
	}

	return value.Truncate(3), nil
}
