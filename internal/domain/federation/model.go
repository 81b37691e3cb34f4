package federation

import (
	"fmt"

	"github.com/google/uuid"
)

// Default organisation. The crawl only covers this federation today.
const (
	OrganisationName    = "Bayerischer Tischfußballverband e.V."
	OrganisationAcronym = "BTFV"
)

// Organisation is the top level of the federation hierarchy.
type Organisation struct {
	ID      uuid.UUID
	Name    string
	Acronym string
}

// Association is a club registered under one Organisation. Uniquely named.
type Association struct {
	ID             uuid.UUID
	Name           string
	OrganisationID uuid.UUID
	LogoFileName   string
}

func (a Association) Validate() error {
	if a.Name == "" {
		return fmt.Errorf("association name is required")
	}
	if a.OrganisationID == uuid.Nil {
		return fmt.Errorf("association organisation id is required")
	}
	return nil
}
