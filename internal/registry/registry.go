package registry

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	ants "github.com/panjf2000/ants/v2"

	"github.com/riskibarqy/foosball-ledger/internal/domain/player"
	"github.com/riskibarqy/foosball-ledger/internal/platform/logging"
)

// PlayerInfo is what the national registry publishes about one player.
// All fields except the name may be empty when the registry holds no
// record.
type PlayerInfo struct {
	Name            string
	Category        player.Category
	NationalID      string
	InternationalID string
	License         string
}

// infoLabels maps the registry page's row labels onto PlayerInfo
// fields.
var infoLabels = map[string]func(*PlayerInfo, string){
	"Kategorie:":                 func(p *PlayerInfo, v string) { p.Category = player.ParseCategory(v) },
	"Nationale Spielernr.:":      func(p *PlayerInfo, v string) { p.NationalID = v },
	"Internationale Spielernr.:": func(p *PlayerInfo, v string) { p.InternationalID = v },
	"Lizenz:":                    func(p *PlayerInfo, v string) { p.License = v },
}

// Registry looks up player profiles on the national federation site and
// keeps the fetched pages in its own on-disk cache, keyed by the hash
// of the player name.
type Registry struct {
	searchURL string
	dir       string
	client    *http.Client
	logger    *logging.Logger
}

func New(searchURL, cacheDir string, client *http.Client, logger *logging.Logger) (*Registry, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("create player cache dir %s: %w", cacheDir, err)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Registry{
		searchURL: searchURL,
		dir:       cacheDir,
		client:    client,
		logger:    logger,
	}, nil
}

func (r *Registry) pagePath(playerName string) string {
	return filepath.Join(r.dir, fmt.Sprintf("player_%s.html", PlayerHash(playerName)))
}

// Info parses the cached registry page for a player. Players without a
// cached page get a bare record with unknown category, matching how a
// missing registry entry is treated.
func (r *Registry) Info(playerName string) (PlayerInfo, error) {
	info := PlayerInfo{Name: playerName, Category: player.CategoryUnbekannt}

	raw, err := os.ReadFile(r.pagePath(playerName))
	if os.IsNotExist(err) {
		return info, nil
	}
	if err != nil {
		return info, fmt.Errorf("read player page for %s: %w", playerName, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(raw)))
	if err != nil {
		return info, fmt.Errorf("parse player page for %s: %w", playerName, err)
	}

	// the fifth table on the profile page holds the player details
	tables := doc.Find("table")
	if tables.Length() < 5 {
		return info, nil
	}
	tables.Eq(4).Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() != 2 {
			return
		}
		label := strings.TrimSpace(cells.Eq(0).Text())
		if assign, ok := infoLabels[label]; ok {
			assign(&info, strings.TrimSpace(cells.Eq(1).Text()))
		}
	})
	return info, nil
}

// Cached reports whether a registry page for the player is already on
// disk.
func (r *Registry) Cached(playerName string) bool {
	_, err := os.Stat(r.pagePath(playerName))
	return err == nil
}

// fetch searches the registry for one player and caches the result
// page whatever it contains, so absent players are not searched again.
func (r *Registry) fetch(ctx context.Context, playerName string) error {
	form := url.Values{"name": {playerName}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.searchURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build registry search for %s: %w", playerName, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("registry search for %s: %w", playerName, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("registry search for %s: unexpected status %d", playerName, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return fmt.Errorf("parse registry result for %s: %w", playerName, err)
	}
	html, err := doc.Html()
	if err != nil {
		return fmt.Errorf("render registry result for %s: %w", playerName, err)
	}

	path := r.pagePath(playerName)
	tmp, err := os.CreateTemp(r.dir, ".player-*")
	if err != nil {
		return fmt.Errorf("cache player page for %s: %w", playerName, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(html); err != nil {
		tmp.Close()
		return fmt.Errorf("cache player page for %s: %w", playerName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("cache player page for %s: %w", playerName, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("cache player page for %s: %w", playerName, err)
	}
	return nil
}

// WarmUp fetches registry pages for every player name not yet cached,
// using a bounded worker pool. Individual failures are logged and do
// not stop the rest of the batch; a player whose page could not be
// fetched simply stays uncached for the next run.
func (r *Registry) WarmUp(ctx context.Context, playerNames []string, workerCount int) error {
	if workerCount < 1 {
		workerCount = 1
	}

	seen := map[string]struct{}{}
	var missing []string
	for _, name := range playerNames {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		if !r.Cached(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	r.logger.InfoContext(ctx, "warming player registry cache", "players", len(missing))

	pool, err := ants.NewPool(workerCount)
	if err != nil {
		return fmt.Errorf("create registry worker pool: %w", err)
	}
	defer pool.Release()

	var workers sync.WaitGroup
	for _, name := range missing {
		workers.Add(1)
		if err := pool.Submit(func() {
			defer workers.Done()
			if err := r.fetch(ctx, name); err != nil {
				r.logger.WarnContext(ctx, "registry fetch failed", "player", name, "error", err)
			}
		}); err != nil {
			workers.Done()
			return fmt.Errorf("submit registry fetch: %w", err)
		}
	}
	workers.Wait()
	return nil
}
