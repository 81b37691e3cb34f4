package crawl

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskibarqy/foosball-ledger/internal/extract"
	"github.com/riskibarqy/foosball-ledger/internal/platform/logging"
)

// fakeSite serves a season page linking one division linking two match
// reports, and counts requests per path.
type fakeSite struct {
	mu     sync.Mutex
	pages  map[string]string
	hits   map[string]int
	server *httptest.Server
}

func newFakeSite(t *testing.T) *fakeSite {
	t.Helper()
	site := &fakeSite{
		pages: map[string]string{},
		hits:  map[string]int{},
	}
	site.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		site.mu.Lock()
		body, ok := site.pages[r.URL.Path]
		site.hits[r.URL.Path]++
		site.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, body)
	}))
	t.Cleanup(site.server.Close)

	base := site.base()
	site.pages["/sportdirector/saison/anzeigen/16/no_frame"] = fmt.Sprintf(
		`<html><body><small>01.09.2016</small>
<a href="%s/liga/anzeigen/40/no_frame">Landesliga</a></body></html>`, base)
	site.pages["/sportdirector/liga/anzeigen/40/no_frame"] = fmt.Sprintf(
		`<html><body><small>01.09.2016</small>
<a href="%s/spielbericht/anzeigen/200/no_frame">report</a>
<a href="%s/spielbericht/anzeigen/100/no_frame">report</a>
<a href="%s/spielbericht/anzeigen/200/no_frame">dup</a></body></html>`, base, base, base)
	site.pages["/sportdirector/spielbericht/anzeigen/100/no_frame"] =
		`<html><body><small>12.11.2016</small></body></html>`
	site.pages["/sportdirector/spielbericht/anzeigen/200/no_frame"] =
		`<html><body><small>08.10.2016</small></body></html>`
	return site
}

func (s *fakeSite) base() string {
	return s.server.URL + "/sportdirector"
}

func (s *fakeSite) hitCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

func newTestCrawler(t *testing.T, site *fakeSite, cacheDir string, currentYear int) *Crawler {
	t.Helper()
	logger := logging.NewNop()
	cache, err := NewCache(cacheDir, logger)
	require.NoError(t, err)
	sanitizer, err := extract.NewSanitizer("")
	require.NoError(t, err)
	crawler := NewCrawler(
		NewFetcher(5*time.Second, logger),
		cache,
		extract.NewExtractor(logger, sanitizer),
		logger,
		site.base(),
		2,
	)
	crawler.now = func() time.Time {
		return time.Date(currentYear, 6, 1, 0, 0, 0, 0, time.UTC)
	}
	return crawler
}

func TestCrawler_Season_DiscoversAndSortsReports(t *testing.T) {
	t.Parallel()

	site := newFakeSite(t)
	crawler := newTestCrawler(t, site, t.TempDir(), 2026)

	reports, err := crawler.Season(context.Background(), 2016)
	require.NoError(t, err)

	// sorted by publication date, not by page id or link order
	require.Len(t, reports, 2)
	assert.Equal(t, 200, reports[0].PageID)
	assert.Equal(t, 100, reports[1].PageID)
	assert.True(t, reports[0].Date.Before(reports[1].Date))
	require.NotNil(t, reports[0].Doc)
}

func TestCrawler_Season_SecondRunServesFromCache(t *testing.T) {
	t.Parallel()

	site := newFakeSite(t)
	crawler := newTestCrawler(t, site, t.TempDir(), 2026)

	first, err := crawler.Season(context.Background(), 2016)
	require.NoError(t, err)
	require.Len(t, first, 2)

	second, err := crawler.Season(context.Background(), 2016)
	require.NoError(t, err)
	// cached leaf reports are never handed out twice
	assert.Empty(t, second)

	// closed-season index pages and leaf reports were fetched exactly once
	assert.Equal(t, 1, site.hitCount("/sportdirector/saison/anzeigen/16/no_frame"))
	assert.Equal(t, 1, site.hitCount("/sportdirector/liga/anzeigen/40/no_frame"))
	assert.Equal(t, 1, site.hitCount("/sportdirector/spielbericht/anzeigen/100/no_frame"))
	assert.Equal(t, 1, site.hitCount("/sportdirector/spielbericht/anzeigen/200/no_frame"))
}

func TestCrawler_Season_RefetchesIndexPagesOfRunningSeason(t *testing.T) {
	t.Parallel()

	site := newFakeSite(t)
	// pretend 2016 is the season currently being played
	crawler := newTestCrawler(t, site, t.TempDir(), 2016)

	_, err := crawler.Season(context.Background(), 2016)
	require.NoError(t, err)
	_, err = crawler.Season(context.Background(), 2016)
	require.NoError(t, err)

	// index pages are refetched every run while the season is open
	assert.Equal(t, 2, site.hitCount("/sportdirector/saison/anzeigen/16/no_frame"))
	assert.Equal(t, 2, site.hitCount("/sportdirector/liga/anzeigen/40/no_frame"))
	// leaf reports stay write-once regardless
	assert.Equal(t, 1, site.hitCount("/sportdirector/spielbericht/anzeigen/100/no_frame"))
}

func TestCrawler_Season_InvalidYear(t *testing.T) {
	t.Parallel()

	site := newFakeSite(t)
	crawler := newTestCrawler(t, site, t.TempDir(), 2026)

	_, err := crawler.Season(context.Background(), 2021)
	require.ErrorIs(t, err, ErrInvalidSeason)
}

func TestCrawler_FromCache_ReplaysInDateOrder(t *testing.T) {
	t.Parallel()

	site := newFakeSite(t)
	cacheDir := t.TempDir()
	crawler := newTestCrawler(t, site, cacheDir, 2026)

	_, err := crawler.Season(context.Background(), 2016)
	require.NoError(t, err)

	site.server.Close() // replay must not touch the network

	reports, err := crawler.FromCache(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, 200, reports[0].PageID)
	assert.Equal(t, 100, reports[1].PageID)
}
