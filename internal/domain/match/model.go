package match

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type distinguishes singles from doubles fixtures.
type Type string

const (
	TypeSingle Type = "single"
	TypeDouble Type = "double"
)

// Outcome is the scored result from the home team's perspective.
type Outcome string

const (
	OutcomeHome Outcome = "home"
	OutcomeAway Outcome = "away"
	OutcomeDraw Outcome = "draw"
)

// ParseType converts raw table markup classification into a Type, failing on
// anything outside the closed vocabulary.
func ParseType(raw string) (Type, error) {
	switch Type(raw) {
	case TypeSingle:
		return TypeSingle, nil
	case TypeDouble:
		return TypeDouble, nil
	}
	return "", fmt.Errorf("unknown match type %q", raw)
}

// Match is one scored fixture between two teams. GlobalNr is assigned by the
// store at insert time and increases monotonically across all ingested
// matches, in document-arrival order.
type Match struct {
	ID              uuid.UUID
	GlobalNr        int64
	Nr              int
	Date            time.Time
	MatchDayNr      int
	Type            Type
	WhoWon          Outcome
	SetsHome        int
	SetsAway        int
	DrawProbability float64
	WinProbability  float64
	HomeTeamID      uuid.UUID
	AwayTeamID      uuid.UUID
	SeasonID        uuid.UUID
	SourcePageID    int
}

func (m Match) Validate() error {
	if m.Type != TypeSingle && m.Type != TypeDouble {
		return fmt.Errorf("invalid match type: %s", m.Type)
	}
	switch m.WhoWon {
	case OutcomeHome, OutcomeAway, OutcomeDraw:
	default:
		return fmt.Errorf("invalid match outcome: %s", m.WhoWon)
	}
	if m.SetsHome < 0 || m.SetsHome > 2 || m.SetsAway < 0 || m.SetsAway > 2 {
		return fmt.Errorf("sets out of range: %d:%d", m.SetsHome, m.SetsAway)
	}
	if m.HomeTeamID == uuid.Nil || m.AwayTeamID == uuid.Nil {
		return fmt.Errorf("match team ids are required")
	}
	return nil
}

// Side marks which bench a participant sat on.
type Side string

const (
	SideHome Side = "home"
	SideAway Side = "away"
)

// TrackSnapshot is a before/after pair for one rating track.
type TrackSnapshot struct {
	MuBefore    float64
	SigmaBefore float64
	MuAfter     float64
	SigmaAfter  float64
}

// Participant records one player's rating movement in one match. Combined is
// always populated. Singles is nil for doubles participants and vice versa,
// except the after-values of the unexercised track, which mirror the player's
// current distribution so every participant row carries a full picture.
type Participant struct {
	ID       uuid.UUID
	MatchID  uuid.UUID
	PlayerID uuid.UUID
	Side     Side
	Combined TrackSnapshot

	MuBeforeSingles    *float64
	SigmaBeforeSingles *float64
	MuAfterSingles     float64
	SigmaAfterSingles  float64

	MuBeforeDoubles    *float64
	SigmaBeforeDoubles *float64
	MuAfterDoubles     float64
	SigmaAfterDoubles  float64
}
