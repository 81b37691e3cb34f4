package postgres

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/riskibarqy/foosball-ledger/internal/domain/player"
)

func TestPlayerRow_RoundTrip(t *testing.T) {
	t.Parallel()

	p := player.New("Muster, Max", player.CategoryHerren)
	p.ID = uuid.New()
	p.Singles = player.Track{Mu: 27.3, Sigma: 6.4}
	p.NationalID = "D12345"
	p.RegistryID = 4711

	row := playerRowFromDomain(p)
	assert.True(t, row.NationalID.Valid)
	assert.False(t, row.InternationalID.Valid, "empty ids map to NULL")
	assert.True(t, row.RegistryID.Valid)

	back := row.toDomain()
	assert.Equal(t, p, back)
}

func TestPlayerRow_UnknownCategoryNormalised(t *testing.T) {
	t.Parallel()

	row := playerRow{Category: "Mixed"}
	assert.Equal(t, player.CategoryUnbekannt, row.toDomain().Category)
}

func TestNullHelpers(t *testing.T) {
	t.Parallel()

	assert.False(t, nullString("").Valid)
	assert.True(t, nullString("x").Valid)
	assert.False(t, nullInt64(0).Valid)
	assert.True(t, nullInt64(9).Valid)
}
