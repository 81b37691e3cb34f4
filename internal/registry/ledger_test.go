package registry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskibarqy/foosball-ledger/internal/platform/logging"
)

func TestOpenLedger_CreatesFileWithHeader(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "players.csv")
	_, err := OpenLedger(path, logging.NewNop())
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "player_hash,registry_id,player_name", strings.TrimSpace(string(raw)))
}

func TestLedger_RecordAndLookup(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "players.csv")
	ledger, err := OpenLedger(path, logging.NewNop())
	require.NoError(t, err)

	require.NoError(t, ledger.Record("Muster, Max", 4711))
	require.NoError(t, ledger.Record("Probe, Paula", 0)) // searched, not registered

	id, ok := ledger.LookupID("Muster, Max")
	assert.True(t, ok)
	assert.Equal(t, 4711, id)

	_, ok = ledger.LookupID("Probe, Paula")
	assert.False(t, ok)
	assert.True(t, ledger.Known("Probe, Paula"))
	assert.False(t, ledger.Known("Niemand, Nora"))

	// reload from disk and check persistence
	reloaded, err := OpenLedger(path, logging.NewNop())
	require.NoError(t, err)
	id, ok = reloaded.LookupID("Muster, Max")
	assert.True(t, ok)
	assert.Equal(t, 4711, id)
	assert.True(t, reloaded.Known("Probe, Paula"))
	_, ok = reloaded.LookupID("Probe, Paula")
	assert.False(t, ok)
}

func TestPlayerHash_Stable(t *testing.T) {
	t.Parallel()

	a := PlayerHash("Muster, Max")
	b := PlayerHash("Muster, Max")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, PlayerHash("Muster, Moritz"))
}
