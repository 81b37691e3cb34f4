package team

import (
	"fmt"

	"github.com/google/uuid"
)

// Team plays in exactly one division. The name alone is not globally unique;
// the natural key is (name, division).
type Team struct {
	ID            uuid.UUID
	Name          string
	DivisionID    uuid.UUID
	AssociationID uuid.UUID
}

func (t Team) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("team name is required")
	}
	if t.DivisionID == uuid.Nil {
		return fmt.Errorf("team division id is required")
	}
	if t.AssociationID == uuid.Nil {
		return fmt.Errorf("team association id is required")
	}
	return nil
}
