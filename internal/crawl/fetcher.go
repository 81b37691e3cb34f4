package crawl

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/valyala/bytebufferpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/riskibarqy/foosball-ledger/internal/platform/logging"
)

// Fetcher retrieves raw pages from the federation site. Any non-2xx
// response is fatal for that fetch; there are no retries, a rerun picks
// up from the cache instead.
type Fetcher struct {
	client *http.Client
	logger *logging.Logger
}

func NewFetcher(timeout time.Duration, logger *logging.Logger) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}
}

func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.logger.InfoContext(ctx, "fetching page", "url", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", url, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	if _, err := io.Copy(buf, resp.Body); err != nil {
		return nil, fmt.Errorf("read body of %s: %w", url, err)
	}
	body := make([]byte, len(buf.B))
	copy(body, buf.B)
	return body, nil
}
