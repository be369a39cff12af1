package contracts

import (
	"context"
	"time"

	"github.com/fortuna-labs/oracle/pkg/models"
)

// VendorAdapter is the stable boundary between the scheduler and the
// upstream sports-data HTTP API. A future in-house aggregator can
// implement this same contract without touching the scheduler.
type VendorAdapter interface {
	// FetchDiscoveryCatalog returns the "dropping odds" catalog: events with
	// an initial market block.
	FetchDiscoveryCatalog(ctx context.Context, sport models.Sport) ([]DiscoveredEvent, error)

	// FetchEventOdds returns all markets for a given event, used at
	// T-30/T-5 checkpoints.
	FetchEventOdds(ctx context.Context, eventID int64) (RawMarketDocument, error)

	// FetchEventDetail returns the current status code and, when terminal,
	// the final scoreline.
	FetchEventDetail(ctx context.Context, eventID int64) (EventDetail, error)
}

// DiscoveredEvent is one catalog entry from the discovery endpoint.
type DiscoveredEvent struct {
	EventID     int64
	Sport       models.Sport
	Competition string
	Home        string
	Away        string
	StartTime   time.Time
	Markets     RawMarketDocument
}

// RawMarketDocument is an unparsed vendor market payload, handed to
// internal/normalizer for arity selection and decimal conversion.
type RawMarketDocument struct {
	Markets []RawMarket
}

// RawMarket is one market block (e.g. "1X2" or "to-win") inside a document.
type RawMarket struct {
	Key      string
	Outcomes []RawOutcome
}

// RawOutcome is a single priced outcome inside a market, in whatever format
// the vendor returned it (fractional "n/d" or decimal string).
type RawOutcome struct {
	Name  string // "1", "X", "2", or a participant name
	Price string
}

// EventDetail is the upstream's current lifecycle view of an event.
type EventDetail struct {
	StatusCode int
	HomeScore  *int
	AwayScore  *int
	StartTime  time.Time
}
