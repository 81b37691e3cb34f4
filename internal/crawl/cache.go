package crawl

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/riskibarqy/foosball-ledger/internal/platform/logging"
)

// Cache is the write-once on-disk page store. Leaf report pages are
// immutable once published, so a cached copy is never refetched; index
// pages for the running season are overwritten on every crawl.
type Cache struct {
	dir    string
	logger *logging.Logger
}

func NewCache(dir string, logger *logging.Logger) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir %s: %w", dir, err)
	}
	return &Cache{dir: dir, logger: logger}, nil
}

func (c *Cache) path(category Category, pageID int) string {
	return filepath.Join(c.dir, fmt.Sprintf("%s_%d.html", category, pageID))
}

func (c *Cache) Exists(category Category, pageID int) bool {
	_, err := os.Stat(c.path(category, pageID))
	return err == nil
}

func (c *Cache) Read(category Category, pageID int) ([]byte, error) {
	path := c.path(category, pageID)
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cached page %s: %w", path, err)
	}
	return body, nil
}

// Write stores a fetched page. The write goes through a temp file and
// a rename so a crash mid-write never leaves a truncated page that a
// later run would mistake for a cached copy.
func (c *Cache) Write(category Category, pageID int, body []byte) error {
	path := c.path(category, pageID)
	tmp, err := os.CreateTemp(c.dir, fmt.Sprintf(".%s_%d-*", category, pageID))
	if err != nil {
		return fmt.Errorf("cache temp file for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return fmt.Errorf("write cached page %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close cached page %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("publish cached page %s: %w", path, err)
	}
	c.logger.Debug("page cached", "path", path)
	return nil
}

// ReportPageIDs lists every cached match-report page, sorted by page
// id. Used by the cache-only replay mode.
func (c *Cache) ReportPageIDs() ([]int, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, fmt.Errorf("list cache dir %s: %w", c.dir, err)
	}
	prefix := string(CategoryReport) + "_"
	var ids []int
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".html") {
			continue
		}
		raw := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".html")
		id, err := strconv.Atoi(raw)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, nil
}
