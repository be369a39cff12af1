// Package sports implements the per-sport capability table: dispatch
// across sports is a lookup keyed by models.Sport, not subtype
// inheritance.
package sports

import (
	"fmt"
	"time"

	"github.com/fortuna-labs/oracle/pkg/contracts"
	"github.com/fortuna-labs/oracle/pkg/models"
)

// profile is the concrete, immutable capability row for one sport.
type profile struct {
	key            models.Sport
	hasDraw        bool
	resultCutoff   time.Duration
	usesGroundType bool
}

func (p profile) Key() models.Sport          { return p.key }
func (p profile) HasDraw() bool               { return p.hasDraw }
func (p profile) ResultCutoff() time.Duration { return p.resultCutoff }
func (p profile) UsesGroundType() bool        { return p.usesGroundType }

// ValidateQuote rejects a decoded market whose arity doesn't match this
// sport's draw capability.
func (p profile) ValidateQuote(marketArity int) error {
	wantArity := 2
	if p.hasDraw {
		wantArity = 3
	}
	if marketArity != wantArity {
		return fmt.Errorf("sport %s expects %d-way market, got %d-way", p.key, wantArity, marketArity)
	}
	return nil
}

var _ contracts.SportProfile = profile{}

const (
	footballCutoff   = 150 * time.Minute // 2.5h
	futsalCutoff     = 150 * time.Minute
	tennisCutoff     = 4 * time.Hour
	baseballCutoff   = 4 * time.Hour
	basketballCutoff = 3 * time.Hour
	defaultCutoff    = 3 * time.Hour
)

var profiles = map[models.Sport]profile{
	models.SportFootball: {
		key: models.SportFootball, hasDraw: true, resultCutoff: footballCutoff, usesGroundType: false,
	},
	models.SportFutsal: {
		key: models.SportFutsal, hasDraw: true, resultCutoff: futsalCutoff, usesGroundType: false,
	},
	models.SportTennis: {
		key: models.SportTennis, hasDraw: false, resultCutoff: tennisCutoff, usesGroundType: true,
	},
	models.SportBasketball: {
		key: models.SportBasketball, hasDraw: false, resultCutoff: basketballCutoff, usesGroundType: false,
	},
	models.SportBaseball: {
		key: models.SportBaseball, hasDraw: false, resultCutoff: baseballCutoff, usesGroundType: false,
	},
}

// Registry looks up a SportProfile by key. The sport set is fixed at
// compile time, so the lookup is a plain read-only table.
type Registry struct{}

// NewRegistry returns the fixed sport capability table.
func NewRegistry() *Registry {
	return &Registry{}
}

// Get returns the profile for sport, or false if the sport is unrecognized.
func (r *Registry) Get(sport models.Sport) (contracts.SportProfile, bool) {
	p, ok := profiles[sport]
	if !ok {
		return nil, false
	}
	return p, true
}

// All returns every registered sport profile.
func (r *Registry) All() []contracts.SportProfile {
	out := make([]contracts.SportProfile, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, p)
	}
	return out
}

// CutoffFor returns the sport's default result cutoff, falling back to
// defaultCutoff for an unrecognized sport.
func CutoffFor(sport models.Sport) time.Duration {
	if p, ok := profiles[sport]; ok {
		return p.resultCutoff
	}
	return defaultCutoff
}
