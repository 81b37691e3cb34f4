package membership

import (
	"fmt"

	"github.com/google/uuid"
)

// Membership registers a player with a team for one season. A player has at
// most one primary (non-borrowed) membership per season; every later distinct
// team in the same season is recorded as borrowed.
type Membership struct {
	ID       uuid.UUID
	PlayerID uuid.UUID
	TeamID   uuid.UUID
	SeasonID uuid.UUID
	Borrowed bool
}

func (m Membership) Validate() error {
	if m.PlayerID == uuid.Nil || m.TeamID == uuid.Nil || m.SeasonID == uuid.Nil {
		return fmt.Errorf("membership player, team and season ids are required")
	}
	return nil
}
