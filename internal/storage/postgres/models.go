package postgres

import (
	"database/sql"

	"github.com/google/uuid"

	"github.com/riskibarqy/foosball-ledger/internal/domain/division"
	"github.com/riskibarqy/foosball-ledger/internal/domain/federation"
	"github.com/riskibarqy/foosball-ledger/internal/domain/membership"
	"github.com/riskibarqy/foosball-ledger/internal/domain/player"
	"github.com/riskibarqy/foosball-ledger/internal/domain/season"
	"github.com/riskibarqy/foosball-ledger/internal/domain/team"
)

type seasonRow struct {
	ID   uuid.UUID `db:"id"`
	Year int       `db:"year"`
}

func (r seasonRow) toDomain() season.Season {
	return season.Season{ID: r.ID, Year: r.Year}
}

type divisionRow struct {
	ID        uuid.UUID `db:"id"`
	Name      string    `db:"name"`
	Hierarchy int       `db:"hierarchy"`
	Region    string    `db:"region"`
	SeasonID  uuid.UUID `db:"season_id"`
}

func (r divisionRow) toDomain() division.Division {
	return division.Division{
		ID:        r.ID,
		Name:      division.Name(r.Name),
		Hierarchy: r.Hierarchy,
		Region:    r.Region,
		SeasonID:  r.SeasonID,
	}
}

type organisationRow struct {
	ID      uuid.UUID `db:"id"`
	Name    string    `db:"name"`
	Acronym string    `db:"acronym"`
}

func (r organisationRow) toDomain() federation.Organisation {
	return federation.Organisation{ID: r.ID, Name: r.Name, Acronym: r.Acronym}
}

type associationRow struct {
	ID             uuid.UUID `db:"id"`
	Name           string    `db:"name"`
	OrganisationID uuid.UUID `db:"organisation_id"`
	LogoFileName   string    `db:"logo_file_name"`
}

func (r associationRow) toDomain() federation.Association {
	return federation.Association{
		ID:             r.ID,
		Name:           r.Name,
		OrganisationID: r.OrganisationID,
		LogoFileName:   r.LogoFileName,
	}
}

type teamRow struct {
	ID            uuid.UUID `db:"id"`
	Name          string    `db:"name"`
	DivisionID    uuid.UUID `db:"division_id"`
	AssociationID uuid.UUID `db:"association_id"`
}

func (r teamRow) toDomain() team.Team {
	return team.Team{
		ID:            r.ID,
		Name:          r.Name,
		DivisionID:    r.DivisionID,
		AssociationID: r.AssociationID,
	}
}

type playerRow struct {
	ID              uuid.UUID      `db:"id"`
	Name            string         `db:"name"`
	Category        string         `db:"category"`
	MuCombined      float64        `db:"mu_combined"`
	SigmaCombined   float64        `db:"sigma_combined"`
	MuSingles       float64        `db:"mu_singles"`
	SigmaSingles    float64        `db:"sigma_singles"`
	MuDoubles       float64        `db:"mu_doubles"`
	SigmaDoubles    float64        `db:"sigma_doubles"`
	NationalID      sql.NullString `db:"national_id"`
	InternationalID sql.NullString `db:"international_id"`
	RegistryID      sql.NullInt64  `db:"registry_id"`
	AvatarFileName  string         `db:"avatar_file_name"`
}

func (r playerRow) toDomain() player.Player {
	return player.Player{
		ID:              r.ID,
		Name:            r.Name,
		Category:        player.ParseCategory(r.Category),
		Combined:        player.Track{Mu: r.MuCombined, Sigma: r.SigmaCombined},
		Singles:         player.Track{Mu: r.MuSingles, Sigma: r.SigmaSingles},
		Doubles:         player.Track{Mu: r.MuDoubles, Sigma: r.SigmaDoubles},
		NationalID:      r.NationalID.String,
		InternationalID: r.InternationalID.String,
		RegistryID:      r.RegistryID.Int64,
		AvatarFileName:  r.AvatarFileName,
	}
}

func playerRowFromDomain(p player.Player) playerRow {
	return playerRow{
		ID:              p.ID,
		Name:            p.Name,
		Category:        string(p.Category),
		MuCombined:      p.Combined.Mu,
		SigmaCombined:   p.Combined.Sigma,
		MuSingles:       p.Singles.Mu,
		SigmaSingles:    p.Singles.Sigma,
		MuDoubles:       p.Doubles.Mu,
		SigmaDoubles:    p.Doubles.Sigma,
		NationalID:      nullString(p.NationalID),
		InternationalID: nullString(p.InternationalID),
		RegistryID:      nullInt64(p.RegistryID),
		AvatarFileName:  p.AvatarFileName,
	}
}

type membershipRow struct {
	ID       uuid.UUID `db:"id"`
	PlayerID uuid.UUID `db:"player_id"`
	TeamID   uuid.UUID `db:"team_id"`
	SeasonID uuid.UUID `db:"season_id"`
	Borrowed bool      `db:"borrowed"`
}

func (r membershipRow) toDomain() membership.Membership {
	return membership.Membership{
		ID:       r.ID,
		PlayerID: r.PlayerID,
		TeamID:   r.TeamID,
		SeasonID: r.SeasonID,
		Borrowed: r.Borrowed,
	}
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func nullInt64(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}
