package reconcile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadLogos(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logos.csv")
	content := "association_name,logo_file_name\n" +
		"TFC Bamberg,tfc_bamberg.png\n" +
		"short row\n" +
		"TFC Nürnberg,tfc_nuernberg.png\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	logos, err := LoadLogos(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"TFC Bamberg":  "tfc_bamberg.png",
		"TFC Nürnberg": "tfc_nuernberg.png",
	}, logos)
}

func TestLoadLogos_MissingFileIsEmpty(t *testing.T) {
	t.Parallel()

	logos, err := LoadLogos(filepath.Join(t.TempDir(), "absent.csv"))
	require.NoError(t, err)
	assert.Empty(t, logos)
}
