package season

import (
	"fmt"

	"github.com/google/uuid"
)

// Season is one league year. Immutable once created.
type Season struct {
	ID   uuid.UUID
	Year int
}

func (s Season) Validate() error {
	if s.Year < 2012 {
		return fmt.Errorf("season year %d predates the league records", s.Year)
	}
	return nil
}
