package reconcile

import (
	"context"

	"github.com/google/uuid"

	"github.com/riskibarqy/foosball-ledger/internal/domain/division"
	"github.com/riskibarqy/foosball-ledger/internal/domain/federation"
	"github.com/riskibarqy/foosball-ledger/internal/domain/match"
	"github.com/riskibarqy/foosball-ledger/internal/domain/membership"
	"github.com/riskibarqy/foosball-ledger/internal/domain/player"
	"github.com/riskibarqy/foosball-ledger/internal/domain/season"
	"github.com/riskibarqy/foosball-ledger/internal/domain/team"
)

// Store opens one transaction per document. All entity resolution and
// persistence for a document happens inside that single transaction, so
// a failure anywhere leaves no partial match day behind.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
}

// Tx is the document-scoped unit of work. Every get-or-create resolves
// by natural key first; creation only happens when the lookup comes up
// empty.
type Tx interface {
	GetOrCreateSeason(ctx context.Context, year int) (season.Season, error)
	GetOrCreateDivision(ctx context.Context, d division.Division) (division.Division, error)
	GetOrCreateOrganisation(ctx context.Context, name, acronym string) (federation.Organisation, error)
	GetOrCreateAssociation(ctx context.Context, name string, organisationID uuid.UUID, logoFileName string) (federation.Association, error)
	GetOrCreateTeam(ctx context.Context, t team.Team) (team.Team, error)

	FindPlayerByName(ctx context.Context, name string) (player.Player, bool, error)
	CreatePlayer(ctx context.Context, p player.Player) (player.Player, error)
	UpdatePlayerRatings(ctx context.Context, p player.Player) error

	FindMembership(ctx context.Context, playerID, teamID, seasonID uuid.UUID) (membership.Membership, bool, error)
	FindAnyMembership(ctx context.Context, playerID, seasonID uuid.UUID) (membership.Membership, bool, error)
	CreateMembership(ctx context.Context, m membership.Membership) (membership.Membership, error)

	// InsertMatch persists the match and returns it with its store-assigned
	// id and global sequence number.
	InsertMatch(ctx context.Context, m match.Match) (match.Match, error)
	InsertParticipant(ctx context.Context, p match.Participant) error

	Commit() error
	Rollback() error
}
