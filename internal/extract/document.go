package extract

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/riskibarqy/foosball-ledger/internal/domain/match"
)

// Metadata holds everything a report page says about the match day
// itself, as opposed to the individual fixtures on it.
type Metadata struct {
	DivisionName      string    `validate:"required,oneof=Landesliga Verbandsliga Bezirksliga Kreisliga"`
	DivisionRegion    string    `validate:"omitempty"`
	DivisionHierarchy int       `validate:"required,min=1,max=4"`
	MatchDayNr        int       `validate:"required,min=1"`
	MatchDate         time.Time `validate:"required"`
	HomeTeam          string    `validate:"required"`
	AwayTeam          string    `validate:"required"`
	HomeAssociation   string    `validate:"required"`
	AwayAssociation   string    `validate:"required"`
}

// MatchRecord is one fixture row extracted from a singles or doubles
// table. Singles rows leave HomePlayer2 and AwayPlayer2 empty.
type MatchRecord struct {
	Nr          int           `validate:"required,min=1"`
	Type        match.Type    `validate:"required,oneof=single double"`
	WhoWon      match.Outcome `validate:"required,oneof=home away draw"`
	HomePlayer1 string        `validate:"required"`
	HomePlayer2 string        `validate:"required_if=Type double"`
	AwayPlayer1 string        `validate:"required"`
	AwayPlayer2 string        `validate:"required_if=Type double"`
	Result      string        `validate:"required"`
	SetsHome    int           `validate:"min=0,max=2"`
	SetsAway    int           `validate:"min=0,max=2"`
}

// Document is the parsed form of one leaf report page.
type Document struct {
	PageID  int      `validate:"required,min=1"`
	Season  int      `validate:"required,min=2012"`
	Meta    Metadata `validate:"required"`
	Matches []MatchRecord
}

// DrawsPossible reports whether any fixture on this match day ended in
// a two-set draw. Divisions that allow draws in doubles produce "1:1"
// results, and the rating draw probability for the whole document hangs
// on that observation.
func (d *Document) DrawsPossible() bool {
	for _, m := range d.Matches {
		if m.SetsHome == 1 && m.SetsAway == 1 {
			return true
		}
	}
	return false
}

var documentValidator = validator.New()

// Validate checks the structural integrity of the parsed document and
// every match record on it.
func (d *Document) Validate(ctx context.Context) error {
	if err := documentValidator.StructCtx(ctx, d); err != nil {
		return fmt.Errorf("document page %d: %w", d.PageID, err)
	}
	for _, m := range d.Matches {
		if err := documentValidator.StructCtx(ctx, m); err != nil {
			return fmt.Errorf("document page %d match %d: %w", d.PageID, m.Nr, err)
		}
	}
	return nil
}
