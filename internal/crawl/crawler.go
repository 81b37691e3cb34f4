package crawl

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sourcegraph/conc/pool"

	"github.com/riskibarqy/foosball-ledger/internal/platform/logging"
)

// pageReader is the slice of the extraction layer the crawler needs:
// link discovery and the publication date used for chronological
// ordering.
type pageReader interface {
	Date(doc *goquery.Document) (time.Time, error)
	Links(baseURL, category string, doc *goquery.Document) []string
}

// Report is one newly available match-report page, parsed and stamped
// with its publication date.
type Report struct {
	PageID int
	Date   time.Time
	Doc    *goquery.Document
}

// Crawler walks one season page down to its match reports. Index pages
// (season, division) for the running season are always refetched so
// newly published reports appear; leaf report pages are served from
// cache forever once stored.
type Crawler struct {
	fetcher  *Fetcher
	cache    *Cache
	pages    pageReader
	logger   *logging.Logger
	baseURL  string
	prefetch int
	now      func() time.Time
}

func NewCrawler(fetcher *Fetcher, cache *Cache, pages pageReader, logger *logging.Logger, baseURL string, prefetch int) *Crawler {
	if prefetch < 1 {
		prefetch = 1
	}
	return &Crawler{
		fetcher:  fetcher,
		cache:    cache,
		pages:    pages,
		logger:   logger,
		baseURL:  baseURL,
		prefetch: prefetch,
		now:      time.Now,
	}
}

// Season returns the season's new match reports sorted by publication
// date ascending, so downstream rating updates follow true chronology.
// Reports already in the cache from a previous run are not returned
// again.
func (c *Crawler) Season(ctx context.Context, year int) ([]Report, error) {
	pageID, err := PageIDForSeason(year, c.now().Year())
	if err != nil {
		return nil, err
	}
	c.logger.InfoContext(ctx, "crawling season", "season", year, "page_id", pageID)

	seasonDoc, err := c.indexPage(ctx, year, PageURL(c.baseURL, CategorySeason, pageID))
	if err != nil {
		return nil, err
	}

	var (
		reportURLs []string
		seen       = map[string]struct{}{}
	)
	for _, divisionURL := range c.pages.Links(c.baseURL, string(CategoryDivision), seasonDoc) {
		divisionDoc, err := c.indexPage(ctx, year, divisionURL)
		if err != nil {
			return nil, err
		}
		for _, reportURL := range c.pages.Links(c.baseURL, string(CategoryReport), divisionDoc) {
			if _, ok := seen[reportURL]; ok {
				continue
			}
			seen[reportURL] = struct{}{}
			reportURLs = append(reportURLs, reportURL)
		}
	}

	reports, err := c.fetchReports(ctx, reportURLs)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].Date.Before(reports[j].Date)
	})
	c.logger.InfoContext(ctx, "season crawled", "season", year, "new_reports", len(reports))
	return reports, nil
}

// indexPage loads a season or division page. Cached copies are reused
// for closed seasons and refetched for the running one, where new match
// reports may still appear.
func (c *Crawler) indexPage(ctx context.Context, season int, url string) (*goquery.Document, error) {
	category, pageID, err := ParsePageURL(url)
	if err != nil {
		return nil, err
	}
	if c.cache.Exists(category, pageID) && season != c.now().Year() {
		body, err := c.cache.Read(category, pageID)
		if err != nil {
			return nil, err
		}
		return parsePage(url, body)
	}
	body, err := c.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Write(category, pageID, body); err != nil {
		return nil, err
	}
	return parsePage(url, body)
}

// fetchReports downloads the not-yet-cached report pages. Fetches run
// concurrently but every page is written to the cache before it is
// parsed, so an interrupted run never refetches a page it already paid
// for. Already-cached reports are skipped entirely.
func (c *Crawler) fetchReports(ctx context.Context, urls []string) ([]Report, error) {
	type target struct {
		url    string
		pageID int
	}
	var targets []target
	for _, url := range urls {
		category, pageID, err := ParsePageURL(url)
		if err != nil {
			return nil, err
		}
		if category != CategoryReport {
			return nil, fmt.Errorf("%w: expected report url, got %q", ErrValidation, url)
		}
		if c.cache.Exists(category, pageID) {
			continue
		}
		targets = append(targets, target{url: url, pageID: pageID})
	}

	bodies := make([][]byte, len(targets))
	p := pool.New().WithErrors().WithContext(ctx).WithMaxGoroutines(c.prefetch)
	for i, tgt := range targets {
		p.Go(func(ctx context.Context) error {
			body, err := c.fetcher.Fetch(ctx, tgt.url)
			if err != nil {
				return err
			}
			if err := c.cache.Write(CategoryReport, tgt.pageID, body); err != nil {
				return err
			}
			bodies[i] = body
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}

	reports := make([]Report, 0, len(targets))
	for i, tgt := range targets {
		doc, err := parsePage(tgt.url, bodies[i])
		if err != nil {
			return nil, err
		}
		date, err := c.pages.Date(doc)
		if err != nil {
			return nil, err
		}
		c.logger.InfoContext(ctx, "new match report", "page_id", tgt.pageID, "date", date.Format("2006-01-02"))
		reports = append(reports, Report{PageID: tgt.pageID, Date: date, Doc: doc})
	}
	return reports, nil
}

// FromCache replays every cached match report in publication-date
// order, for rebuilding the ledger without touching the network.
func (c *Crawler) FromCache(ctx context.Context) ([]Report, error) {
	ids, err := c.cache.ReportPageIDs()
	if err != nil {
		return nil, err
	}
	reports := make([]Report, 0, len(ids))
	for _, pageID := range ids {
		body, err := c.cache.Read(CategoryReport, pageID)
		if err != nil {
			return nil, err
		}
		doc, err := parsePage(fmt.Sprintf("cached report %d", pageID), body)
		if err != nil {
			return nil, err
		}
		date, err := c.pages.Date(doc)
		if err != nil {
			c.logger.WarnContext(ctx, "cached report has no date, skipping", "page_id", pageID, "error", err)
			continue
		}
		reports = append(reports, Report{PageID: pageID, Date: date, Doc: doc})
	}
	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].Date.Before(reports[j].Date)
	})
	return reports, nil
}

func parsePage(source string, body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse page %s: %w", source, err)
	}
	return doc, nil
}
