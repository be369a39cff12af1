package models

import (
	"fmt"
	"time"
)

// Result is the settled outcome for an event. Written once by the
// result gate; never overwritten.
type Result struct {
	EventID          int64
	HomeScore        int
	AwayScore        int
	WinnerSide       WinnerSide
	PointDiff        int
	ResultStatusCode int // raw upstream terminal status code that produced this row
	CollectedAt      time.Time
}

// ErrLevelScoreNoDraw is returned by DeriveWinnerSide/NewResult when the
// scoreline is tied for a sport that doesn't support a draw outcome. The
// caller must resolve the tie (e.g. by fetching overtime/penalty scoring
// the upstream hasn't applied yet) before a Result can be built; it must
// never be persisted as-is, since a Result is never overwritten once
// written.
var ErrLevelScoreNoDraw = fmt.Errorf("models: level scoreline for a sport without draw support")

// DeriveWinnerSide computes the winner side from scores: 1 iff home >
// away, 2 iff away > home, X iff equal and
// the sport supports draws. A level score for a sport that doesn't support
// draws is an error, not a silently-assigned WinnerDraw.
func DeriveWinnerSide(homeScore, awayScore int, supportsDraw bool) (WinnerSide, error) {
	switch {
	case homeScore > awayScore:
		return WinnerHome, nil
	case awayScore > homeScore:
		return WinnerAway, nil
	case supportsDraw:
		return WinnerDraw, nil
	default:
		return "", ErrLevelScoreNoDraw
	}
}

// NewResult builds a Result from scores, deriving winner side and point
// diff. It returns an error wrapping ErrLevelScoreNoDraw (match it with
// errors.Is) when the
// scoreline can't be resolved to a valid winner_side; callers must not
// insert the zero Result in that case.
func NewResult(eventID int64, homeScore, awayScore, statusCode int, supportsDraw bool, collectedAt time.Time) (Result, error) {
	winner, err := DeriveWinnerSide(homeScore, awayScore, supportsDraw)
	if err != nil {
		return Result{}, fmt.Errorf("derive winner side for event %d: %w", eventID, err)
	}

	diff := homeScore - awayScore
	if diff < 0 {
		diff = -diff
	}
	return Result{
		EventID:          eventID,
		HomeScore:        homeScore,
		AwayScore:        awayScore,
		WinnerSide:       winner,
		PointDiff:        diff,
		ResultStatusCode: statusCode,
		CollectedAt:      collectedAt,
	}, nil
}
