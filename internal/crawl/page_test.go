package crawl

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageIDForSeason(t *testing.T) {
	t.Parallel()

	const currentYear = 2026

	cases := []struct {
		season  int
		want    int
		wantErr bool
	}{
		{2012, 12, false},
		{2016, 16, false},
		{2020, 20, false},
		{2021, 0, true}, // the edition that was never played
		{2022, 21, false},
		{2026, 25, false},
		{2011, 0, true},
		{2027, 0, true},
	}
	for _, tc := range cases {
		got, err := PageIDForSeason(tc.season, currentYear)
		if tc.wantErr {
			require.Error(t, err, "season %d", tc.season)
			assert.True(t, errors.Is(err, ErrInvalidSeason), "season %d", tc.season)
			continue
		}
		require.NoError(t, err, "season %d", tc.season)
		assert.Equal(t, tc.want, got, "season %d", tc.season)
	}
}

func TestSeasonForPageID_RoundTrips(t *testing.T) {
	t.Parallel()

	for _, season := range []int{2012, 2015, 2020, 2022, 2026} {
		pageID, err := PageIDForSeason(season, 2026)
		require.NoError(t, err)
		assert.Equal(t, season, SeasonForPageID(pageID))
	}
}

func TestParsePageURL(t *testing.T) {
	t.Parallel()

	category, pageID, err := ParsePageURL("https://btfv.de/sportdirector/spielbericht/anzeigen/1499/no_frame")
	require.NoError(t, err)
	assert.Equal(t, CategoryReport, category)
	assert.Equal(t, 1499, pageID)

	category, pageID, err = ParsePageURL("https://btfv.de/sportdirector/saison/anzeigen/12/no_frame")
	require.NoError(t, err)
	assert.Equal(t, CategorySeason, category)
	assert.Equal(t, 12, pageID)

	for _, raw := range []string{
		"https://btfv.de/sportdirector/unbekannt/anzeigen/5/no_frame",
		"https://btfv.de/sportdirector/liga/anzeigen/abc/no_frame",
		"https://btfv.de/sportdirector/liga/anzeigen/0/no_frame",
		"not-a-url",
	} {
		_, _, err := ParsePageURL(raw)
		require.Error(t, err, raw)
		assert.True(t, errors.Is(err, ErrValidation), raw)
	}
}

func TestPageURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t,
		"https://btfv.de/sportdirector/liga/anzeigen/30/no_frame",
		PageURL("https://btfv.de/sportdirector", CategoryDivision, 30))
}
