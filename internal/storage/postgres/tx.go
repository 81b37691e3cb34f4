package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/riskibarqy/foosball-ledger/internal/domain/division"
	"github.com/riskibarqy/foosball-ledger/internal/domain/federation"
	"github.com/riskibarqy/foosball-ledger/internal/domain/match"
	"github.com/riskibarqy/foosball-ledger/internal/domain/membership"
	"github.com/riskibarqy/foosball-ledger/internal/domain/player"
	"github.com/riskibarqy/foosball-ledger/internal/domain/season"
	"github.com/riskibarqy/foosball-ledger/internal/domain/team"
	"github.com/riskibarqy/foosball-ledger/internal/platform/logging"
	qb "github.com/riskibarqy/foosball-ledger/internal/platform/querybuilder"
)

// Tx wraps one database transaction. Entity lookups hit the natural
// keys; inserts generate ids client side, except the global match
// number which the matches identity column assigns.
type Tx struct {
	tx     *sqlx.Tx
	logger *logging.Logger
}

func (t *Tx) Commit() error {
	return t.tx.Commit()
}

func (t *Tx) Rollback() error {
	return t.tx.Rollback()
}

func (t *Tx) GetOrCreateSeason(ctx context.Context, year int) (season.Season, error) {
	query, args, err := qb.Select("id", "year").From("seasons").
		Where(qb.Eq("year", year)).
		ToSQL()
	if err != nil {
		return season.Season{}, fmt.Errorf("build select season query: %w", err)
	}

	var row seasonRow
	err = t.tx.GetContext(ctx, &row, query, args...)
	if err == nil {
		return row.toDomain(), nil
	}
	if !isNotFound(err) {
		return season.Season{}, fmt.Errorf("select season %d: %w", year, err)
	}

	row = seasonRow{ID: uuid.New(), Year: year}
	query, args, err = qb.InsertInto("seasons").
		Columns("id", "year").
		Values(row.ID, row.Year).
		ToSQL()
	if err != nil {
		return season.Season{}, fmt.Errorf("build insert season query: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return season.Season{}, fmt.Errorf("insert season %d: %w", year, err)
	}
	return row.toDomain(), nil
}

func (t *Tx) GetOrCreateDivision(ctx context.Context, d division.Division) (division.Division, error) {
	query, args, err := qb.Select("id", "name", "hierarchy", "region", "season_id").From("divisions").
		Where(
			qb.Eq("name", string(d.Name)),
			qb.Eq("hierarchy", d.Hierarchy),
			qb.Eq("region", d.Region),
			qb.Eq("season_id", d.SeasonID),
		).
		ToSQL()
	if err != nil {
		return division.Division{}, fmt.Errorf("build select division query: %w", err)
	}

	var row divisionRow
	err = t.tx.GetContext(ctx, &row, query, args...)
	if err == nil {
		return row.toDomain(), nil
	}
	if !isNotFound(err) {
		return division.Division{}, fmt.Errorf("select division %s %s: %w", d.Name, d.Region, err)
	}

	d.ID = uuid.New()
	query, args, err = qb.InsertInto("divisions").
		Columns("id", "name", "hierarchy", "region", "season_id").
		Values(d.ID, string(d.Name), d.Hierarchy, d.Region, d.SeasonID).
		ToSQL()
	if err != nil {
		return division.Division{}, fmt.Errorf("build insert division query: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return division.Division{}, fmt.Errorf("insert division %s %s: %w", d.Name, d.Region, err)
	}
	return d, nil
}

func (t *Tx) GetOrCreateOrganisation(ctx context.Context, name, acronym string) (federation.Organisation, error) {
	query, args, err := qb.Select("id", "name", "acronym").From("organisations").
		Where(qb.Eq("name", name)).
		ToSQL()
	if err != nil {
		return federation.Organisation{}, fmt.Errorf("build select organisation query: %w", err)
	}

	var row organisationRow
	err = t.tx.GetContext(ctx, &row, query, args...)
	if err == nil {
		return row.toDomain(), nil
	}
	if !isNotFound(err) {
		return federation.Organisation{}, fmt.Errorf("select organisation %s: %w", name, err)
	}

	row = organisationRow{ID: uuid.New(), Name: name, Acronym: acronym}
	query, args, err = qb.InsertInto("organisations").
		Columns("id", "name", "acronym").
		Values(row.ID, row.Name, row.Acronym).
		ToSQL()
	if err != nil {
		return federation.Organisation{}, fmt.Errorf("build insert organisation query: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return federation.Organisation{}, fmt.Errorf("insert organisation %s: %w", name, err)
	}
	return row.toDomain(), nil
}

func (t *Tx) GetOrCreateAssociation(ctx context.Context, name string, organisationID uuid.UUID, logoFileName string) (federation.Association, error) {
	query, args, err := qb.Select("id", "name", "organisation_id", "logo_file_name").From("associations").
		Where(qb.Eq("name", name)).
		ToSQL()
	if err != nil {
		return federation.Association{}, fmt.Errorf("build select association query: %w", err)
	}

	var row associationRow
	err = t.tx.GetContext(ctx, &row, query, args...)
	if err == nil {
		return row.toDomain(), nil
	}
	if !isNotFound(err) {
		return federation.Association{}, fmt.Errorf("select association %s: %w", name, err)
	}

	row = associationRow{ID: uuid.New(), Name: name, OrganisationID: organisationID, LogoFileName: logoFileName}
	query, args, err = qb.InsertInto("associations").
		Columns("id", "name", "organisation_id", "logo_file_name").
		Values(row.ID, row.Name, row.OrganisationID, row.LogoFileName).
		ToSQL()
	if err != nil {
		return federation.Association{}, fmt.Errorf("build insert association query: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return federation.Association{}, fmt.Errorf("insert association %s: %w", name, err)
	}
	return row.toDomain(), nil
}

func (t *Tx) GetOrCreateTeam(ctx context.Context, tm team.Team) (team.Team, error) {
	query, args, err := qb.Select("id", "name", "division_id", "association_id").From("teams").
		Where(
			qb.Eq("name", tm.Name),
			qb.Eq("division_id", tm.DivisionID),
		).
		ToSQL()
	if err != nil {
		return team.Team{}, fmt.Errorf("build select team query: %w", err)
	}

	var row teamRow
	err = t.tx.GetContext(ctx, &row, query, args...)
	if err == nil {
		return row.toDomain(), nil
	}
	if !isNotFound(err) {
		return team.Team{}, fmt.Errorf("select team %s: %w", tm.Name, err)
	}

	tm.ID = uuid.New()
	query, args, err = qb.InsertInto("teams").
		Columns("id", "name", "division_id", "association_id").
		Values(tm.ID, tm.Name, tm.DivisionID, tm.AssociationID).
		ToSQL()
	if err != nil {
		return team.Team{}, fmt.Errorf("build insert team query: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return team.Team{}, fmt.Errorf("insert team %s: %w", tm.Name, err)
	}
	return tm, nil
}

var playerColumns = []string{
	"id",
	"name",
	"category",
	"mu_combined",
	"sigma_combined",
	"mu_singles",
	"sigma_singles",
	"mu_doubles",
	"sigma_doubles",
	"national_id",
	"international_id",
	"registry_id",
	"avatar_file_name",
}

func (t *Tx) FindPlayerByName(ctx context.Context, name string) (player.Player, bool, error) {
	query, args, err := qb.Select(playerColumns...).From("players").
		Where(qb.Eq("name", name)).
		ToSQL()
	if err != nil {
		return player.Player{}, false, fmt.Errorf("build select player query: %w", err)
	}

	var row playerRow
	err = t.tx.GetContext(ctx, &row, query, args...)
	if isNotFound(err) {
		return player.Player{}, false, nil
	}
	if err != nil {
		return player.Player{}, false, fmt.Errorf("select player %s: %w", name, err)
	}
	return row.toDomain(), true, nil
}

func (t *Tx) CreatePlayer(ctx context.Context, p player.Player) (player.Player, error) {
	p.ID = uuid.New()
	row := playerRowFromDomain(p)
	query, args, err := qb.InsertInto("players").
		Columns(playerColumns...).
		Values(row.ID, row.Name, row.Category,
			row.MuCombined, row.SigmaCombined,
			row.MuSingles, row.SigmaSingles,
			row.MuDoubles, row.SigmaDoubles,
			row.NationalID, row.InternationalID, row.RegistryID,
			row.AvatarFileName).
		ToSQL()
	if err != nil {
		return player.Player{}, fmt.Errorf("build insert player query: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return player.Player{}, fmt.Errorf("insert player %s: %w", p.Name, err)
	}
	return p, nil
}

func (t *Tx) UpdatePlayerRatings(ctx context.Context, p player.Player) error {
	query, args, err := qb.Update("players").
		Set("mu_combined", p.Combined.Mu).
		Set("sigma_combined", p.Combined.Sigma).
		Set("mu_singles", p.Singles.Mu).
		Set("sigma_singles", p.Singles.Sigma).
		Set("mu_doubles", p.Doubles.Mu).
		Set("sigma_doubles", p.Doubles.Sigma).
		Where(qb.Eq("id", p.ID)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build update player ratings query: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update ratings of %s: %w", p.Name, err)
	}
	return nil
}

func (t *Tx) FindMembership(ctx context.Context, playerID, teamID, seasonID uuid.UUID) (membership.Membership, bool, error) {
	query, args, err := qb.Select("id", "player_id", "team_id", "season_id", "borrowed").From("memberships").
		Where(
			qb.Eq("player_id", playerID),
			qb.Eq("team_id", teamID),
			qb.Eq("season_id", seasonID),
		).
		ToSQL()
	if err != nil {
		return membership.Membership{}, false, fmt.Errorf("build select membership query: %w", err)
	}

	var row membershipRow
	err = t.tx.GetContext(ctx, &row, query, args...)
	if isNotFound(err) {
		return membership.Membership{}, false, nil
	}
	if err != nil {
		return membership.Membership{}, false, fmt.Errorf("select membership: %w", err)
	}
	return row.toDomain(), true, nil
}

func (t *Tx) FindAnyMembership(ctx context.Context, playerID, seasonID uuid.UUID) (membership.Membership, bool, error) {
	query, args, err := qb.Select("id", "player_id", "team_id", "season_id", "borrowed").From("memberships").
		Where(
			qb.Eq("player_id", playerID),
			qb.Eq("season_id", seasonID),
		).
		OrderBy("created_at").
		Limit(1).
		ToSQL()
	if err != nil {
		return membership.Membership{}, false, fmt.Errorf("build select season membership query: %w", err)
	}

	var row membershipRow
	err = t.tx.GetContext(ctx, &row, query, args...)
	if isNotFound(err) {
		return membership.Membership{}, false, nil
	}
	if err != nil {
		return membership.Membership{}, false, fmt.Errorf("select season membership: %w", err)
	}
	return row.toDomain(), true, nil
}

func (t *Tx) CreateMembership(ctx context.Context, m membership.Membership) (membership.Membership, error) {
	m.ID = uuid.New()
	query, args, err := qb.InsertInto("memberships").
		Columns("id", "player_id", "team_id", "season_id", "borrowed").
		Values(m.ID, m.PlayerID, m.TeamID, m.SeasonID, m.Borrowed).
		ToSQL()
	if err != nil {
		return membership.Membership{}, fmt.Errorf("build insert membership query: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return membership.Membership{}, fmt.Errorf("insert membership: %w", err)
	}
	return m, nil
}

func (t *Tx) InsertMatch(ctx context.Context, m match.Match) (match.Match, error) {
	m.ID = uuid.New()
	query, args, err := qb.InsertInto("matches").
		Columns("id", "nr", "played_on", "match_day_nr", "match_type", "who_won",
			"sets_home", "sets_away", "draw_probability", "win_probability",
			"home_team_id", "away_team_id", "season_id", "source_page_id").
		Values(m.ID, m.Nr, m.Date, m.MatchDayNr, string(m.Type), string(m.WhoWon),
			m.SetsHome, m.SetsAway, m.DrawProbability, m.WinProbability,
			m.HomeTeamID, m.AwayTeamID, m.SeasonID, m.SourcePageID).
		Suffix("RETURNING global_nr").
		ToSQL()
	if err != nil {
		return match.Match{}, fmt.Errorf("build insert match query: %w", err)
	}
	if err := t.tx.GetContext(ctx, &m.GlobalNr, query, args...); err != nil {
		return match.Match{}, fmt.Errorf("insert match %d of page %d: %w", m.Nr, m.SourcePageID, err)
	}
	return m, nil
}

func (t *Tx) InsertParticipant(ctx context.Context, p match.Participant) error {
	query, args, err := qb.InsertInto("match_participants").
		Columns("id", "match_id", "player_id", "side",
			"mu_before_combined", "sigma_before_combined", "mu_after_combined", "sigma_after_combined",
			"mu_before_singles", "sigma_before_singles", "mu_after_singles", "sigma_after_singles",
			"mu_before_doubles", "sigma_before_doubles", "mu_after_doubles", "sigma_after_doubles").
		Values(uuid.New(), p.MatchID, p.PlayerID, string(p.Side),
			p.Combined.MuBefore, p.Combined.SigmaBefore, p.Combined.MuAfter, p.Combined.SigmaAfter,
			p.MuBeforeSingles, p.SigmaBeforeSingles, p.MuAfterSingles, p.SigmaAfterSingles,
			p.MuBeforeDoubles, p.SigmaBeforeDoubles, p.MuAfterDoubles, p.SigmaAfterDoubles).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build insert participant query: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert participant: %w", err)
	}
	return nil
}
