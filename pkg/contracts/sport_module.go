package contracts

import (
	"time"

	"github.com/fortuna-labs/oracle/pkg/models"
)

// SportProfile is the capability-table contract for a sport: whether it has
// a draw outcome, its result cutoff, and its ground-type semantics —
// dispatch polymorphism across sports is a capability table keyed by
// sport, not subtype inheritance. Concrete profiles live in
// internal/sports.
type SportProfile interface {
	// Key returns the sport's canonical identifier.
	Key() models.Sport

	// HasDraw reports whether this sport's markets include a draw outcome.
	HasDraw() bool

	// ResultCutoff is the grace period after StartTime before a result is
	// requested.
	ResultCutoff() time.Duration

	// UsesGroundType reports whether candidate matching for this sport is
	// additionally restricted to the same ground-type class (racket
	// sports).
	UsesGroundType() bool

	// ValidateQuote rejects a decoded market whose arity (number of
	// quoted legs) doesn't match this sport's draw capability.
	ValidateQuote(marketArity int) error
}
