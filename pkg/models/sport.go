package models

import "time"

// Sport is the enumerated identifier for a supported sport. It determines
// draw support, cutoff times, and ground-type semantics (internal/sports).
type Sport string

const (
	SportFootball   Sport = "football"
	SportFutsal     Sport = "futsal"
	SportTennis     Sport = "tennis"
	SportBasketball Sport = "basketball"
	SportBaseball   Sport = "baseball"
)

// EventStatus is the lifecycle state of an Event.
type EventStatus string

const (
	EventStatusScheduled EventStatus = "scheduled"
	EventStatusLive      EventStatus = "live"
	EventStatusFinished  EventStatus = "finished"
	EventStatusCancelled EventStatus = "cancelled"
)

// WinnerSide is the settled outcome of a match.
type WinnerSide string

const (
	WinnerHome WinnerSide = "1"
	WinnerDraw WinnerSide = "X"
	WinnerAway WinnerSide = "2"
)

// Event is a scheduled sporting contest, uniquely identified by the
// upstream's opaque integer id.
type Event struct {
	EventID       int64
	Sport         Sport
	Competition   string
	Home          string
	Away          string
	StartTime     time.Time
	GroundType    *string
	Status        EventStatus
	LastCheckedAt time.Time
}

// MinutesToStart returns how many minutes remain until StartTime. The
// checkpoint policy rounds this value, never truncates it.
func (e Event) MinutesToStart(now time.Time) float64 {
	return e.StartTime.Sub(now).Minutes()
}
