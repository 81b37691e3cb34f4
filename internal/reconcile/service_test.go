package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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
)

var errInsertMatchFailed = errors.New("insert match failed")

// fakeStore keeps committed state in memory; fakeTx stages everything
// and applies it only on Commit, like the real transaction does.
type fakeStore struct {
	seasons       []season.Season
	divisions     []division.Division
	organisations []federation.Organisation
	associations  []federation.Association
	teams         []team.Team
	players       []player.Player
	memberships   []membership.Membership
	matches       []match.Match
	participants  []match.Participant

	nextGlobalNr    int64
	failInsertMatch bool
}

func (s *fakeStore) Begin(context.Context) (Tx, error) {
	return &fakeTx{store: s, playerUpdates: map[uuid.UUID]player.Player{}}, nil
}

type fakeTx struct {
	store *fakeStore

	seasons       []season.Season
	divisions     []division.Division
	organisations []federation.Organisation
	associations  []federation.Association
	teams         []team.Team
	players       []player.Player
	memberships   []membership.Membership
	matches       []match.Match
	participants  []match.Participant
	playerUpdates map[uuid.UUID]player.Player

	committed  bool
	rolledBack bool
}

func (tx *fakeTx) GetOrCreateSeason(_ context.Context, year int) (season.Season, error) {
	for _, s := range append(append([]season.Season{}, tx.store.seasons...), tx.seasons...) {
		if s.Year == year {
			return s, nil
		}
	}
	s := season.Season{ID: uuid.New(), Year: year}
	tx.seasons = append(tx.seasons, s)
	return s, nil
}

func (tx *fakeTx) GetOrCreateDivision(_ context.Context, d division.Division) (division.Division, error) {
	for _, existing := range append(append([]division.Division{}, tx.store.divisions...), tx.divisions...) {
		if existing.Name == d.Name && existing.Hierarchy == d.Hierarchy &&
			existing.Region == d.Region && existing.SeasonID == d.SeasonID {
			return existing, nil
		}
	}
	d.ID = uuid.New()
	tx.divisions = append(tx.divisions, d)
	return d, nil
}

func (tx *fakeTx) GetOrCreateOrganisation(_ context.Context, name, acronym string) (federation.Organisation, error) {
	for _, o := range append(append([]federation.Organisation{}, tx.store.organisations...), tx.organisations...) {
		if o.Name == name {
			return o, nil
		}
	}
	o := federation.Organisation{ID: uuid.New(), Name: name, Acronym: acronym}
	tx.organisations = append(tx.organisations, o)
	return o, nil
}

func (tx *fakeTx) GetOrCreateAssociation(_ context.Context, name string, organisationID uuid.UUID, logoFileName string) (federation.Association, error) {
	for _, a := range append(append([]federation.Association{}, tx.store.associations...), tx.associations...) {
		if a.Name == name {
			return a, nil
		}
	}
	a := federation.Association{ID: uuid.New(), Name: name, OrganisationID: organisationID, LogoFileName: logoFileName}
	tx.associations = append(tx.associations, a)
	return a, nil
}

func (tx *fakeTx) GetOrCreateTeam(_ context.Context, t team.Team) (team.Team, error) {
	for _, existing := range append(append([]team.Team{}, tx.store.teams...), tx.teams...) {
		if existing.Name == t.Name && existing.DivisionID == t.DivisionID {
			return existing, nil
		}
	}
	t.ID = uuid.New()
	tx.teams = append(tx.teams, t)
	return t, nil
}

func (tx *fakeTx) FindPlayerByName(_ context.Context, name string) (player.Player, bool, error) {
	for _, p := range append(append([]player.Player{}, tx.store.players...), tx.players...) {
		if p.Name == name {
			if updated, ok := tx.playerUpdates[p.ID]; ok {
				return updated, true, nil
			}
			return p, true, nil
		}
	}
	return player.Player{}, false, nil
}

func (tx *fakeTx) CreatePlayer(_ context.Context, p player.Player) (player.Player, error) {
	p.ID = uuid.New()
	tx.players = append(tx.players, p)
	return p, nil
}

func (tx *fakeTx) UpdatePlayerRatings(_ context.Context, p player.Player) error {
	tx.playerUpdates[p.ID] = p
	return nil
}

func (tx *fakeTx) FindMembership(_ context.Context, playerID, teamID, seasonID uuid.UUID) (membership.Membership, bool, error) {
	for _, m := range append(append([]membership.Membership{}, tx.store.memberships...), tx.memberships...) {
		if m.PlayerID == playerID && m.TeamID == teamID && m.SeasonID == seasonID {
			return m, true, nil
		}
	}
	return membership.Membership{}, false, nil
}

func (tx *fakeTx) FindAnyMembership(_ context.Context, playerID, seasonID uuid.UUID) (membership.Membership, bool, error) {
	for _, m := range append(append([]membership.Membership{}, tx.store.memberships...), tx.memberships...) {
		if m.PlayerID == playerID && m.SeasonID == seasonID {
			return m, true, nil
		}
	}
	return membership.Membership{}, false, nil
}

func (tx *fakeTx) CreateMembership(_ context.Context, m membership.Membership) (membership.Membership, error) {
	m.ID = uuid.New()
	tx.memberships = append(tx.memberships, m)
	return m, nil
}

func (tx *fakeTx) InsertMatch(_ context.Context, m match.Match) (match.Match, error) {
	if tx.store.failInsertMatch {
		return match.Match{}, errInsertMatchFailed
	}
	m.ID = uuid.New()
	// identity columns burn numbers even when the transaction rolls back
	tx.store.nextGlobalNr++
	m.GlobalNr = tx.store.nextGlobalNr
	tx.matches = append(tx.matches, m)
	return m, nil
}

func (tx *fakeTx) InsertParticipant(_ context.Context, p match.Participant) error {
	p.ID = uuid.New()
	tx.participants = append(tx.participants, p)
	return nil
}

func (tx *fakeTx) Commit() error {
	tx.store.seasons = append(tx.store.seasons, tx.seasons...)
	tx.store.divisions = append(tx.store.divisions, tx.divisions...)
	tx.store.organisations = append(tx.store.organisations, tx.organisations...)
	tx.store.associations = append(tx.store.associations, tx.associations...)
	tx.store.teams = append(tx.store.teams, tx.teams...)
	tx.store.players = append(tx.store.players, tx.players...)
	for i, p := range tx.store.players {
		if updated, ok := tx.playerUpdates[p.ID]; ok {
			tx.store.players[i] = updated
		}
	}
	tx.store.memberships = append(tx.store.memberships, tx.memberships...)
	tx.store.matches = append(tx.store.matches, tx.matches...)
	tx.store.participants = append(tx.store.participants, tx.participants...)
	tx.committed = true
	return nil
}

func (tx *fakeTx) Rollback() error {
	tx.rolledBack = true
	return nil
}

func testDocument() *extract.Document {
	return &extract.Document{
		PageID: 1499,
		Season: 2016,
		Meta: extract.Metadata{
			DivisionName:      "Landesliga",
			DivisionRegion:    "Südost",
			DivisionHierarchy: 1,
			MatchDayNr:        3,
			MatchDate:         time.Date(2016, 3, 12, 0, 0, 0, 0, time.UTC),
			HomeTeam:          "TFC Nürnberg 1",
			AwayTeam:          "TFC Bamberg",
			HomeAssociation:   "TFC Nürnberg",
			AwayAssociation:   "TFC Bamberg",
		},
		Matches: []extract.MatchRecord{
			{
				Nr: 1, Type: match.TypeSingle, WhoWon: match.OutcomeHome,
				HomePlayer1: "Muster, Max", AwayPlayer1: "Probe, Paula",
				Result: "2:1", SetsHome: 2, SetsAway: 1,
			},
			{
				Nr: 2, Type: match.TypeDouble, WhoWon: match.OutcomeDraw,
				HomePlayer1: "Eins, Emil", HomePlayer2: "Zwei, Zora",
				AwayPlayer1: "Drei, Dora", AwayPlayer2: "Vier, Vera",
				Result: "1:1", SetsHome: 1, SetsAway: 1,
			},
		},
	}
}

func newTestService(store *fakeStore) *Service {
	return NewService(store, nil, nil, nil, logging.NewNop())
}

func TestService_Reconcile_EndToEnd(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	svc := newTestService(store)

	require.NoError(t, svc.Reconcile(context.Background(), testDocument()))

	assert.Len(t, store.seasons, 1)
	assert.Len(t, store.divisions, 1)
	assert.Len(t, store.organisations, 1)
	assert.Len(t, store.associations, 2)
	assert.Len(t, store.teams, 2)
	assert.Len(t, store.players, 6)
	assert.Len(t, store.matches, 2)
	assert.Len(t, store.participants, 6)
	assert.Len(t, store.memberships, 6)

	assert.Equal(t, federation.OrganisationName, store.organisations[0].Name)
	assert.Equal(t, 2016, store.seasons[0].Year)

	// global sequence numbers are monotonic across the document
	assert.Equal(t, int64(1), store.matches[0].GlobalNr)
	assert.Equal(t, int64(2), store.matches[1].GlobalNr)

	start := rating.Rating{Mu: player.DefaultMu, Sigma: player.DefaultSigma}

	// singles match: outcome and probabilities match the pure rating math
	single := store.matches[0]
	assert.Equal(t, match.TypeSingle, single.Type)
	singleEnv := rating.NewEnv(0)
	assert.InDelta(t,
		singleEnv.WinProbability([]rating.Rating{start}, []rating.Rating{start}),
		single.WinProbability, 1e-12)
	assert.InDelta(t, 0.5, single.WinProbability, 1e-12)
	assert.InDelta(t,
		singleEnv.Quality([]rating.Rating{start}, []rating.Rating{start}),
		single.DrawProbability, 1e-12)

	wantHome, wantAway, err := singleEnv.Rate1v1(start, start, rating.Win)
	require.NoError(t, err)

	homePart := store.participants[0]
	assert.Equal(t, match.SideHome, homePart.Side)
	assert.InDelta(t, player.DefaultMu, homePart.Combined.MuBefore, 1e-12)
	assert.InDelta(t, wantHome.Mu, homePart.Combined.MuAfter, 1e-12)
	assert.InDelta(t, wantHome.Sigma, homePart.Combined.SigmaAfter, 1e-12)
	require.NotNil(t, homePart.MuBeforeSingles)
	assert.InDelta(t, wantHome.Mu, homePart.MuAfterSingles, 1e-12)
	// doubles track untouched by a singles match
	assert.Nil(t, homePart.MuBeforeDoubles)
	assert.InDelta(t, player.DefaultMu, homePart.MuAfterDoubles, 1e-12)
	assert.InDelta(t, player.DefaultSigma, homePart.SigmaAfterDoubles, 1e-12)

	awayPart := store.participants[1]
	assert.Equal(t, match.SideAway, awayPart.Side)
	assert.InDelta(t, wantAway.Mu, awayPart.Combined.MuAfter, 1e-12)
	assert.True(t, awayPart.Combined.MuAfter < awayPart.Combined.MuBefore)

	// doubles match: the 1:1 on this match day makes doubles draws possible
	double := store.matches[1]
	assert.Equal(t, match.TypeDouble, double.Type)
	doubleEnv := rating.NewEnv(0.2)
	both := [2]rating.Rating{start, start}
	assert.InDelta(t,
		doubleEnv.Quality(both[:], both[:]),
		double.DrawProbability, 1e-12)

	wantTeam1, _, err := doubleEnv.Rate2v2(both, both, rating.Draw)
	require.NoError(t, err)
	doublePart := store.participants[2]
	require.NotNil(t, doublePart.MuBeforeDoubles)
	assert.Nil(t, doublePart.MuBeforeSingles)
	assert.InDelta(t, wantTeam1[0].Mu, doublePart.MuAfterDoubles, 1e-12)
	assert.InDelta(t, wantTeam1[0].Mu, doublePart.Combined.MuAfter, 1e-12)
	// a drawn match between equal ratings moves no means
	assert.InDelta(t, player.DefaultMu, doublePart.MuAfterDoubles, 1e-12)

	for _, m := range store.memberships {
		assert.False(t, m.Borrowed)
	}
}

func TestService_Reconcile_SecondRunResolvesExistingEntities(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	svc := newTestService(store)

	require.NoError(t, svc.Reconcile(context.Background(), testDocument()))
	require.NoError(t, svc.Reconcile(context.Background(), testDocument()))

	// no duplicate entities on replay
	assert.Len(t, store.seasons, 1)
	assert.Len(t, store.divisions, 1)
	assert.Len(t, store.organisations, 1)
	assert.Len(t, store.associations, 2)
	assert.Len(t, store.teams, 2)
	assert.Len(t, store.players, 6)
	assert.Len(t, store.memberships, 6)

	// ratings carry forward: the replayed singles match starts from the
	// first run's after-values, never from a reset distribution
	firstRun := store.participants[0]
	secondRun := store.participants[6]
	assert.InDelta(t, firstRun.Combined.MuAfter, secondRun.Combined.MuBefore, 1e-12)
	assert.InDelta(t, firstRun.Combined.SigmaAfter, secondRun.Combined.SigmaBefore, 1e-12)
}

func TestService_Reconcile_BorrowedMembership(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	svc := newTestService(store)

	first := testDocument()
	require.NoError(t, svc.Reconcile(context.Background(), first))

	// the same player turns up for another team in the same season
	second := testDocument()
	second.PageID = 1500
	second.Meta.HomeTeam = "TFC Bamberg"
	second.Meta.AwayTeam = "TFC Nürnberg 1"
	second.Meta.HomeAssociation = "TFC Bamberg"
	second.Meta.AwayAssociation = "TFC Nürnberg"
	second.Matches = second.Matches[:1] // just the singles fixture

	require.NoError(t, svc.Reconcile(context.Background(), second))

	var byPlayer []membership.Membership
	var musterID uuid.UUID
	for _, p := range store.players {
		if p.Name == "Muster, Max" {
			musterID = p.ID
		}
	}
	for _, m := range store.memberships {
		if m.PlayerID == musterID {
			byPlayer = append(byPlayer, m)
		}
	}
	require.Len(t, byPlayer, 2)
	assert.False(t, byPlayer[0].Borrowed)
	assert.True(t, byPlayer[1].Borrowed)
}

func TestService_Reconcile_RollsBackWholeDocumentOnFailure(t *testing.T) {
	t.Parallel()

	store := &fakeStore{failInsertMatch: true}
	svc := newTestService(store)

	err := svc.Reconcile(context.Background(), testDocument())
	require.ErrorIs(t, err, errInsertMatchFailed)

	// nothing from the failed document is visible
	assert.Empty(t, store.seasons)
	assert.Empty(t, store.players)
	assert.Empty(t, store.matches)
	assert.Empty(t, store.memberships)
}

func TestService_Reconcile_DrawProbabilityScopedToDocument(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	svc := newTestService(store)

	// a document whose doubles match did not end 1:1: draws impossible
	doc := testDocument()
	doc.Matches[1].WhoWon = match.OutcomeHome
	doc.Matches[1].Result = "2:0"
	doc.Matches[1].SetsHome = 2
	doc.Matches[1].SetsAway = 0

	require.NoError(t, svc.Reconcile(context.Background(), doc))

	start := rating.Rating{Mu: player.DefaultMu, Sigma: player.DefaultSigma}
	noDrawEnv := rating.NewEnv(0)
	both := [2]rating.Rating{start, start}
	assert.InDelta(t,
		noDrawEnv.Quality(both[:], both[:]),
		store.matches[1].DrawProbability, 1e-12)

	wantTeam1, _, err := noDrawEnv.Rate2v2(both, both, rating.Win)
	require.NoError(t, err)
	assert.InDelta(t, wantTeam1[0].Mu, store.participants[2].MuAfterDoubles, 1e-12)
}
