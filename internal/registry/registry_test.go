package registry

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskibarqy/foosball-ledger/internal/domain/player"
	"github.com/riskibarqy/foosball-ledger/internal/platform/logging"
)

const profilePage = `<html><body>
<table></table><table></table><table></table><table></table>
<table>
<tr><td>Kategorie:</td><td>Herren</td></tr>
<tr><td>Nationale Spielernr.:</td><td>12345</td></tr>
<tr><td>Internationale Spielernr.:</td><td>DE-67890</td></tr>
<tr><td>Lizenz:</td><td>aktiv</td></tr>
<tr><td>irrelevant</td></tr>
</table>
</body></html>`

func TestRegistry_Info_FromCachedPage(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	reg, err := New("http://unused", dir, nil, logging.NewNop())
	require.NoError(t, err)

	name := "Muster, Max"
	path := filepath.Join(dir, fmt.Sprintf("player_%s.html", PlayerHash(name)))
	require.NoError(t, os.WriteFile(path, []byte(profilePage), 0o644))

	info, err := reg.Info(name)
	require.NoError(t, err)
	assert.Equal(t, name, info.Name)
	assert.Equal(t, player.CategoryHerren, info.Category)
	assert.Equal(t, "12345", info.NationalID)
	assert.Equal(t, "DE-67890", info.InternationalID)
	assert.Equal(t, "aktiv", info.License)
}

func TestRegistry_Info_NoCachedPage(t *testing.T) {
	t.Parallel()

	reg, err := New("http://unused", t.TempDir(), nil, logging.NewNop())
	require.NoError(t, err)

	info, err := reg.Info("Unbekannt, Udo")
	require.NoError(t, err)
	assert.Equal(t, player.CategoryUnbekannt, info.Category)
	assert.Empty(t, info.NationalID)
}

func TestRegistry_WarmUp_FetchesOnlyUncachedPlayers(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		require.NoError(t, r.ParseForm())
		assert.NotEmpty(t, r.Form.Get("name"))
		fmt.Fprint(w, profilePage)
	}))
	defer server.Close()

	dir := t.TempDir()
	reg, err := New(server.URL, dir, server.Client(), logging.NewNop())
	require.NoError(t, err)

	names := []string{"Muster, Max", "Probe, Paula", "Muster, Max"}
	require.NoError(t, reg.WarmUp(context.Background(), names, 4))

	// duplicates collapsed, both players now cached
	assert.Equal(t, int32(2), requests.Load())
	assert.True(t, reg.Cached("Muster, Max"))
	assert.True(t, reg.Cached("Probe, Paula"))

	// a second warmup finds everything cached and stays offline
	require.NoError(t, reg.WarmUp(context.Background(), names, 4))
	assert.Equal(t, int32(2), requests.Load())

	info, err := reg.Info("Probe, Paula")
	require.NoError(t, err)
	assert.Equal(t, player.CategoryHerren, info.Category)
}

func TestRegistry_WarmUp_FailuresDoNotAbortBatch(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer server.Close()

	reg, err := New(server.URL, t.TempDir(), server.Client(), logging.NewNop())
	require.NoError(t, err)

	require.NoError(t, reg.WarmUp(context.Background(), []string{"Muster, Max"}, 2))
	assert.False(t, reg.Cached("Muster, Max"))
}
