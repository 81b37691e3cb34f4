package reconcile

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/riskibarqy/foosball-ledger/internal/domain/division"
	"github.com/riskibarqy/foosball-ledger/internal/domain/federation"
	"github.com/riskibarqy/foosball-ledger/internal/domain/match"
	"github.com/riskibarqy/foosball-ledger/internal/domain/membership"
	"github.com/riskibarqy/foosball-ledger/internal/domain/player"
	"github.com/riskibarqy/foosball-ledger/internal/domain/season"
	"github.com/riskibarqy/foosball-ledger/internal/domain/team"
	"github.com/riskibarqy/foosball-ledger/internal/extract"
	"github.com/riskibarqy/foosball-ledger/internal/platform/logging"
	"github.com/riskibarqy/foosball-ledger/internal/rating"
	"github.com/riskibarqy/foosball-ledger/internal/registry"
)

// draws only happen in doubles, and only in divisions whose match days
// show a 1:1 result
const doublesDrawProbability = 0.2

// Directory supplies registry profile data for newly created players.
type Directory interface {
	Info(playerName string) (registry.PlayerInfo, error)
}

// IDLedger resolves a player name to its national registry id.
type IDLedger interface {
	LookupID(playerName string) (int, bool)
}

// Service turns one parsed document into durable state: entity upserts,
// rating updates and match/participant rows, all inside a single
// transaction per document.
type Service struct {
	store     Store
	directory Directory
	ledger    IDLedger
	logos     map[string]string
	logger    *logging.Logger
}

func NewService(store Store, directory Directory, ledger IDLedger, logos map[string]string, logger *logging.Logger) *Service {
	return &Service{
		store:     store,
		directory: directory,
		ledger:    ledger,
		logos:     logos,
		logger:    logger,
	}
}

// Reconcile ingests one document. Any failure rolls the whole document
// back; previously committed documents are never touched.
func (s *Service) Reconcile(ctx context.Context, doc *extract.Document) (err error) {
	ctx, span := startSpan(ctx, "reconcile.Service.Reconcile")
	defer span.End()

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin document transaction: %w", err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.ErrorContext(ctx, "rollback failed", "page_id", doc.PageID, "error", rbErr)
		}
	}()

	seasonRec, err := tx.GetOrCreateSeason(ctx, doc.Season)
	if err != nil {
		return fmt.Errorf("resolve season %d: %w", doc.Season, err)
	}

	divisionName, err := division.ParseName(doc.Meta.DivisionName)
	if err != nil {
		return err
	}
	divisionRec, err := tx.GetOrCreateDivision(ctx, division.Division{
		Name:      divisionName,
		Hierarchy: doc.Meta.DivisionHierarchy,
		Region:    doc.Meta.DivisionRegion,
		SeasonID:  seasonRec.ID,
	})
	if err != nil {
		return fmt.Errorf("resolve division %s %s: %w", doc.Meta.DivisionName, doc.Meta.DivisionRegion, err)
	}

	organisation, err := tx.GetOrCreateOrganisation(ctx, federation.OrganisationName, federation.OrganisationAcronym)
	if err != nil {
		return fmt.Errorf("resolve organisation: %w", err)
	}

	homeTeam, err := s.resolveTeam(ctx, tx, doc.Meta.HomeTeam, doc.Meta.HomeAssociation, divisionRec, organisation)
	if err != nil {
		return err
	}
	awayTeam, err := s.resolveTeam(ctx, tx, doc.Meta.AwayTeam, doc.Meta.AwayAssociation, divisionRec, organisation)
	if err != nil {
		return err
	}

	// the 1:1 scan covers this document only; the next document decides
	// for itself again
	drawProbability := 0.0
	if doc.DrawsPossible() {
		drawProbability = doublesDrawProbability
	}
	singleEnv := rating.NewEnv(0)
	doubleEnv := rating.NewEnv(drawProbability)

	for i := range doc.Matches {
		if err := s.processMatch(ctx, tx, doc, &doc.Matches[i], seasonRec, homeTeam, awayTeam, singleEnv, doubleEnv); err != nil {
			return fmt.Errorf("match %d of page %d: %w", doc.Matches[i].Nr, doc.PageID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit document %d: %w", doc.PageID, err)
	}
	committed = true
	s.logger.InfoContext(ctx, "document reconciled", "page_id", doc.PageID, "matches", len(doc.Matches))
	return nil
}

func (s *Service) resolveTeam(ctx context.Context, tx Tx, teamName, associationName string, divisionRec division.Division, organisation federation.Organisation) (team.Team, error) {
	association, err := tx.GetOrCreateAssociation(ctx, associationName, organisation.ID, s.logoFor(associationName))
	if err != nil {
		return team.Team{}, fmt.Errorf("resolve association %s: %w", associationName, err)
	}
	teamRec, err := tx.GetOrCreateTeam(ctx, team.Team{
		Name:          teamName,
		DivisionID:    divisionRec.ID,
		AssociationID: association.ID,
	})
	if err != nil {
		return team.Team{}, fmt.Errorf("resolve team %s: %w", teamName, err)
	}
	return teamRec, nil
}

func (s *Service) logoFor(associationName string) string {
	if logo, ok := s.logos[associationName]; ok {
		return logo
	}
	return "dummy_logo.png"
}

func (s *Service) processMatch(ctx context.Context, tx Tx, doc *extract.Document, rec *extract.MatchRecord, seasonRec season.Season, homeTeam, awayTeam team.Team, singleEnv, doubleEnv rating.Env) error {
	switch rec.Type {
	case match.TypeSingle:
		return s.processSingle(ctx, tx, doc, rec, seasonRec, homeTeam, awayTeam, singleEnv)
	case match.TypeDouble:
		return s.processDouble(ctx, tx, doc, rec, seasonRec, homeTeam, awayTeam, doubleEnv)
	}
	return fmt.Errorf("unknown match type %q", rec.Type)
}

func outcomeForHome(whoWon match.Outcome) rating.Outcome {
	switch whoWon {
	case match.OutcomeHome:
		return rating.Win
	case match.OutcomeAway:
		return rating.Loss
	default:
		return rating.Draw
	}
}

func toRating(t player.Track) rating.Rating {
	return rating.Rating{Mu: t.Mu, Sigma: t.Sigma}
}

func snapshot(before, after rating.Rating) match.TrackSnapshot {
	return match.TrackSnapshot{
		MuBefore:    before.Mu,
		SigmaBefore: before.Sigma,
		MuAfter:     after.Mu,
		SigmaAfter:  after.Sigma,
	}
}

func (s *Service) processSingle(ctx context.Context, tx Tx, doc *extract.Document, rec *extract.MatchRecord, seasonRec season.Season, homeTeam, awayTeam team.Team, env rating.Env) error {
	home, err := s.getOrCreatePlayer(ctx, tx, rec.HomePlayer1)
	if err != nil {
		return err
	}
	away, err := s.getOrCreatePlayer(ctx, tx, rec.AwayPlayer1)
	if err != nil {
		return err
	}

	outcome := outcomeForHome(rec.WhoWon)

	homeCombinedBefore, awayCombinedBefore := toRating(home.Combined), toRating(away.Combined)
	homeCombinedAfter, awayCombinedAfter, err := env.Rate1v1(homeCombinedBefore, awayCombinedBefore, outcome)
	if err != nil {
		return fmt.Errorf("rate combined track: %w", err)
	}

	homeSinglesBefore, awaySinglesBefore := toRating(home.Singles), toRating(away.Singles)
	homeSinglesAfter, awaySinglesAfter, err := env.Rate1v1(homeSinglesBefore, awaySinglesBefore, outcome)
	if err != nil {
		return fmt.Errorf("rate singles track: %w", err)
	}

	home.Combined = player.Track{Mu: homeCombinedAfter.Mu, Sigma: homeCombinedAfter.Sigma}
	home.Singles = player.Track{Mu: homeSinglesAfter.Mu, Sigma: homeSinglesAfter.Sigma}
	away.Combined = player.Track{Mu: awayCombinedAfter.Mu, Sigma: awayCombinedAfter.Sigma}
	away.Singles = player.Track{Mu: awaySinglesAfter.Mu, Sigma: awaySinglesAfter.Sigma}
	if err := tx.UpdatePlayerRatings(ctx, *home); err != nil {
		return err
	}
	if err := tx.UpdatePlayerRatings(ctx, *away); err != nil {
		return err
	}

	if err := s.ensureMembership(ctx, tx, home.ID, homeTeam.ID, seasonRec.ID, home.Name, homeTeam.Name); err != nil {
		return err
	}
	if err := s.ensureMembership(ctx, tx, away.ID, awayTeam.ID, seasonRec.ID, away.Name, awayTeam.Name); err != nil {
		return err
	}

	homeSide := []rating.Rating{homeSinglesBefore}
	awaySide := []rating.Rating{awaySinglesBefore}
	matchRec, err := tx.InsertMatch(ctx, match.Match{
		Nr:              rec.Nr,
		Date:            doc.Meta.MatchDate,
		MatchDayNr:      doc.Meta.MatchDayNr,
		Type:            rec.Type,
		WhoWon:          rec.WhoWon,
		SetsHome:        rec.SetsHome,
		SetsAway:        rec.SetsAway,
		DrawProbability: env.Quality(homeSide, awaySide),
		WinProbability:  env.WinProbability(homeSide, awaySide),
		HomeTeamID:      homeTeam.ID,
		AwayTeamID:      awayTeam.ID,
		SeasonID:        seasonRec.ID,
		SourcePageID:    doc.PageID,
	})
	if err != nil {
		return fmt.Errorf("insert match: %w", err)
	}

	homeSingles := snapshot(homeSinglesBefore, homeSinglesAfter)
	awaySingles := snapshot(awaySinglesBefore, awaySinglesAfter)
	participants := []match.Participant{
		buildParticipant(matchRec.ID, home.ID, match.SideHome,
			snapshot(homeCombinedBefore, homeCombinedAfter), &homeSingles, nil, *home),
		buildParticipant(matchRec.ID, away.ID, match.SideAway,
			snapshot(awayCombinedBefore, awayCombinedAfter), &awaySingles, nil, *away),
	}
	for _, participant := range participants {
		if err := tx.InsertParticipant(ctx, participant); err != nil {
			return fmt.Errorf("insert participant: %w", err)
		}
	}
	return nil
}

func (s *Service) processDouble(ctx context.Context, tx Tx, doc *extract.Document, rec *extract.MatchRecord, seasonRec season.Season, homeTeam, awayTeam team.Team, env rating.Env) error {
	home1, err := s.getOrCreatePlayer(ctx, tx, rec.HomePlayer1)
	if err != nil {
		return err
	}
	home2, err := s.getOrCreatePlayer(ctx, tx, rec.HomePlayer2)
	if err != nil {
		return err
	}
	away1, err := s.getOrCreatePlayer(ctx, tx, rec.AwayPlayer1)
	if err != nil {
		return err
	}
	away2, err := s.getOrCreatePlayer(ctx, tx, rec.AwayPlayer2)
	if err != nil {
		return err
	}

	outcome := outcomeForHome(rec.WhoWon)

	combinedHomeBefore := [2]rating.Rating{toRating(home1.Combined), toRating(home2.Combined)}
	combinedAwayBefore := [2]rating.Rating{toRating(away1.Combined), toRating(away2.Combined)}
	combinedHomeAfter, combinedAwayAfter, err := env.Rate2v2(combinedHomeBefore, combinedAwayBefore, outcome)
	if err != nil {
		return fmt.Errorf("rate combined track: %w", err)
	}

	doublesHomeBefore := [2]rating.Rating{toRating(home1.Doubles), toRating(home2.Doubles)}
	doublesAwayBefore := [2]rating.Rating{toRating(away1.Doubles), toRating(away2.Doubles)}
	doublesHomeAfter, doublesAwayAfter, err := env.Rate2v2(doublesHomeBefore, doublesAwayBefore, outcome)
	if err != nil {
		return fmt.Errorf("rate doubles track: %w", err)
	}

	players := []*player.Player{home1, home2, away1, away2}
	combinedAfter := []rating.Rating{combinedHomeAfter[0], combinedHomeAfter[1], combinedAwayAfter[0], combinedAwayAfter[1]}
	doublesAfter := []rating.Rating{doublesHomeAfter[0], doublesHomeAfter[1], doublesAwayAfter[0], doublesAwayAfter[1]}
	for i, p := range players {
		p.Combined = player.Track{Mu: combinedAfter[i].Mu, Sigma: combinedAfter[i].Sigma}
		p.Doubles = player.Track{Mu: doublesAfter[i].Mu, Sigma: doublesAfter[i].Sigma}
		if err := tx.UpdatePlayerRatings(ctx, *p); err != nil {
			return err
		}
	}

	for _, pair := range []struct {
		p *player.Player
		t team.Team
	}{
		{home1, homeTeam}, {home2, homeTeam}, {away1, awayTeam}, {away2, awayTeam},
	} {
		if err := s.ensureMembership(ctx, tx, pair.p.ID, pair.t.ID, seasonRec.ID, pair.p.Name, pair.t.Name); err != nil {
			return err
		}
	}

	homeSide := doublesHomeBefore[:]
	awaySide := doublesAwayBefore[:]
	matchRec, err := tx.InsertMatch(ctx, match.Match{
		Nr:              rec.Nr,
		Date:            doc.Meta.MatchDate,
		MatchDayNr:      doc.Meta.MatchDayNr,
		Type:            rec.Type,
		WhoWon:          rec.WhoWon,
		SetsHome:        rec.SetsHome,
		SetsAway:        rec.SetsAway,
		DrawProbability: env.Quality(homeSide, awaySide),
		WinProbability:  env.WinProbability(homeSide, awaySide),
		HomeTeamID:      homeTeam.ID,
		AwayTeamID:      awayTeam.ID,
		SeasonID:        seasonRec.ID,
		SourcePageID:    doc.PageID,
	})
	if err != nil {
		return fmt.Errorf("insert match: %w", err)
	}

	combinedBefore := []rating.Rating{combinedHomeBefore[0], combinedHomeBefore[1], combinedAwayBefore[0], combinedAwayBefore[1]}
	doublesBefore := []rating.Rating{doublesHomeBefore[0], doublesHomeBefore[1], doublesAwayBefore[0], doublesAwayBefore[1]}
	sides := []match.Side{match.SideHome, match.SideHome, match.SideAway, match.SideAway}
	for i, p := range players {
		doubles := snapshot(doublesBefore[i], doublesAfter[i])
		participant := buildParticipant(matchRec.ID, p.ID, sides[i],
			snapshot(combinedBefore[i], combinedAfter[i]), nil, &doubles, *p)
		if err := tx.InsertParticipant(ctx, participant); err != nil {
			return fmt.Errorf("insert participant: %w", err)
		}
	}
	return nil
}

// buildParticipant fills the rating columns for one player in one
// match. The unexercised track has no before-values; its after-values
// mirror the player's current distribution so every row carries the
// full picture.
func buildParticipant(matchID, playerID uuid.UUID, side match.Side, combined match.TrackSnapshot, singles, doubles *match.TrackSnapshot, current player.Player) match.Participant {
	participant := match.Participant{
		MatchID:  matchID,
		PlayerID: playerID,
		Side:     side,
		Combined: combined,
	}
	if singles != nil {
		participant.MuBeforeSingles = &singles.MuBefore
		participant.SigmaBeforeSingles = &singles.SigmaBefore
		participant.MuAfterSingles = singles.MuAfter
		participant.SigmaAfterSingles = singles.SigmaAfter
	} else {
		participant.MuAfterSingles = current.Singles.Mu
		participant.SigmaAfterSingles = current.Singles.Sigma
	}
	if doubles != nil {
		participant.MuBeforeDoubles = &doubles.MuBefore
		participant.SigmaBeforeDoubles = &doubles.SigmaBefore
		participant.MuAfterDoubles = doubles.MuAfter
		participant.SigmaAfterDoubles = doubles.SigmaAfter
	} else {
		participant.MuAfterDoubles = current.Doubles.Mu
		participant.SigmaAfterDoubles = current.Doubles.Sigma
	}
	return participant
}

// getOrCreatePlayer resolves a player by sanitized name, enriching new
// players from the national registry when a cached profile exists.
func (s *Service) getOrCreatePlayer(ctx context.Context, tx Tx, name string) (*player.Player, error) {
	existing, found, err := tx.FindPlayerByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("find player %s: %w", name, err)
	}
	if found {
		return &existing, nil
	}

	info := registry.PlayerInfo{Name: name, Category: player.CategoryUnbekannt}
	if s.directory != nil {
		info, err = s.directory.Info(name)
		if err != nil {
			return nil, fmt.Errorf("registry info for %s: %w", name, err)
		}
	}

	fresh := player.New(name, info.Category)
	fresh.NationalID = info.NationalID
	fresh.InternationalID = info.InternationalID
	if s.ledger != nil {
		if id, ok := s.ledger.LookupID(name); ok {
			fresh.RegistryID = int64(id)
		}
	}

	created, err := tx.CreatePlayer(ctx, fresh)
	if err != nil {
		return nil, fmt.Errorf("create player %s: %w", name, err)
	}
	s.logger.InfoContext(ctx, "player created", "player", name, "category", string(created.Category))
	return &created, nil
}

// ensureMembership applies the borrowing rule: the first team a player
// turns up for in a season is the primary registration, every later
// distinct team in the same season is a borrowed appearance.
func (s *Service) ensureMembership(ctx context.Context, tx Tx, playerID, teamID, seasonID uuid.UUID, playerName, teamName string) error {
	_, found, err := tx.FindMembership(ctx, playerID, teamID, seasonID)
	if err != nil {
		return fmt.Errorf("find membership of %s in %s: %w", playerName, teamName, err)
	}
	if found {
		return nil
	}
	_, borrowed, err := tx.FindAnyMembership(ctx, playerID, seasonID)
	if err != nil {
		return fmt.Errorf("find season memberships of %s: %w", playerName, err)
	}
	if _, err := tx.CreateMembership(ctx, membership.Membership{
		PlayerID: playerID,
		TeamID:   teamID,
		SeasonID: seasonID,
		Borrowed: borrowed,
	}); err != nil {
		return fmt.Errorf("create membership of %s in %s: %w", playerName, teamName, err)
	}
	s.logger.InfoContext(ctx, "membership created",
		"player", playerName, "team", teamName, "borrowed", borrowed)
	return nil
}
