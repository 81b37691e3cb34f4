// Package app wires the crawl, extraction, registry and reconciliation
// layers into one scraper run.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/riskibarqy/foosball-ledger/internal/config"
	"github.com/riskibarqy/foosball-ledger/internal/crawl"
	"github.com/riskibarqy/foosball-ledger/internal/extract"
	"github.com/riskibarqy/foosball-ledger/internal/platform/logging"
	"github.com/riskibarqy/foosball-ledger/internal/reconcile"
	"github.com/riskibarqy/foosball-ledger/internal/registry"
	"github.com/riskibarqy/foosball-ledger/internal/storage/postgres"
)

type App struct {
	cfg       config.Config
	logger    *logging.Logger
	store     *postgres.Store
	crawler   *crawl.Crawler
	extractor *extract.Extractor
	registry  *registry.Registry
	service   *reconcile.Service
}

func New(ctx context.Context, cfg config.Config, logger *logging.Logger) (*App, error) {
	sanitizer, err := extract.NewSanitizer(cfg.SanitizerOverrideDir)
	if err != nil {
		return nil, fmt.Errorf("build sanitizer: %w", err)
	}
	extractor := extract.NewExtractor(logger, sanitizer)

	cache, err := crawl.NewCache(cfg.CacheDir, logger)
	if err != nil {
		return nil, fmt.Errorf("open page cache: %w", err)
	}
	fetcher := crawl.NewFetcher(cfg.HTTPTimeout, logger)
	crawler := crawl.NewCrawler(fetcher, cache, extractor, logger, cfg.LeagueBaseURL, cfg.PrefetchWorkers)

	reg, err := registry.New(cfg.RegistrySearchURL, cfg.RegistryDir,
		&http.Client{Timeout: cfg.HTTPTimeout}, logger)
	if err != nil {
		return nil, fmt.Errorf("open player registry: %w", err)
	}
	ledger, err := registry.OpenLedger(cfg.LedgerPath, logger)
	if err != nil {
		return nil, fmt.Errorf("open player ledger: %w", err)
	}
	logos, err := reconcile.LoadLogos(cfg.LogoTablePath)
	if err != nil {
		return nil, fmt.Errorf("load logo table: %w", err)
	}

	store, err := postgres.Open(ctx, cfg.DBURL, logger)
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		crawler:   crawler,
		extractor: extractor,
		registry:  reg,
		service:   reconcile.NewService(store, reg, ledger, logos, logger),
	}, nil
}

func (a *App) Close() error {
	return a.store.Close()
}

// Run crawls every season from the configured first year up to the
// current one and reconciles the new match reports. A failing season is
// logged and skipped; later seasons still run.
func (a *App) Run(ctx context.Context) error {
	currentYear := time.Now().Year()
	var processed, failed int
	for year := a.cfg.FirstSeason; year <= currentYear; year++ {
		reports, err := a.crawler.Season(ctx, year)
		if errors.Is(err, crawl.ErrInvalidSeason) {
			a.logger.InfoContext(ctx, "season has no published records", "season", year)
			continue
		}
		if err != nil {
			a.logger.ErrorContext(ctx, "season crawl failed", "season", year, "error", err)
			failed++
			continue
		}
		done, err := a.processReports(ctx, reports)
		processed += done
		if err != nil {
			return err
		}
	}
	a.logger.InfoContext(ctx, "run finished", "documents", processed, "failed_seasons", failed)
	if failed > 0 {
		return fmt.Errorf("%d season(s) failed to crawl", failed)
	}
	return nil
}

// Replay rebuilds the ledger from the page cache alone, in publication
// date order, without any network traffic.
func (a *App) Replay(ctx context.Context) error {
	reports, err := a.crawler.FromCache(ctx)
	if err != nil {
		return err
	}
	processed, err := a.processReports(ctx, reports)
	if err != nil {
		return err
	}
	a.logger.InfoContext(ctx, "replay finished", "documents", processed)
	return nil
}

func (a *App) processReports(ctx context.Context, reports []crawl.Report) (int, error) {
	var processed int
	for _, report := range reports {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		doc, err := a.extractor.Parse(ctx, report.PageID, report.Doc)
		if err != nil {
			a.logger.ErrorContext(ctx, "report extraction failed, skipping",
				"page_id", report.PageID, "error", err)
			continue
		}

		if err := a.registry.WarmUp(ctx, playerNames(doc), a.cfg.RegistryWorkers); err != nil {
			a.logger.WarnContext(ctx, "registry warmup incomplete", "page_id", doc.PageID, "error", err)
		}

		if err := a.service.Reconcile(ctx, doc); err != nil {
			a.logger.ErrorContext(ctx, "document reconciliation failed, skipping",
				"page_id", doc.PageID, "error", err)
			continue
		}
		processed++
	}
	return processed, nil
}

func playerNames(doc *extract.Document) []string {
	var names []string
	for _, m := range doc.Matches {
		for _, name := range []string{m.HomePlayer1, m.HomePlayer2, m.AwayPlayer1, m.AwayPlayer2} {
			if name != "" {
				names = append(names, name)
			}
		}
	}
	return names
}
