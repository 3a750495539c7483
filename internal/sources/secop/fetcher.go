package secop

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

const (
	// DefaultPageSize is the number of rows requested per page.
	DefaultPageSize = 1000
	// DefaultWorkers bounds concurrent page requests.
	DefaultWorkers = 5
)

// FetcherConfig holds fetcher dependencies.
type FetcherConfig struct {
	Client   *Client
	Endpoint Endpoint
	Workers  int
	Logger   *slog.Logger
}

// Fetcher pages through one SECOP dataset.
type Fetcher struct {
	client   *Client
	endpoint Endpoint
	workers  int
	logger   *slog.Logger
}

// NewFetcher creates a new dataset fetcher.
func NewFetcher(cfg FetcherConfig) *Fetcher {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Fetcher{
		client:   cfg.Client,
		endpoint: cfg.Endpoint,
		workers:  cfg.Workers,
		logger:   cfg.Logger.With("dataset", string(cfg.Endpoint.Dataset)),
	}
}

// Endpoint returns the dataset this fetcher reads.
func (f *Fetcher) Endpoint() Endpoint {
	return f.endpoint
}

// Count returns the number of rows matching categoryCode, or 0 when the
// query fails.
func (f *Fetcher) Count(ctx context.Context, categoryCode string) int {
	n, err := f.count(ctx, categoryCode)
	if err != nil {
		f.logger.Error("count query failed", "error", err)
		return 0
	}
	return n
}

func (f *Fetcher) count(ctx context.Context, categoryCode string) (int, error) {
	n, err := f.client.Count(ctx, f.endpoint.URL, CountQuery(f.endpoint, categoryCode))
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", f.endpoint.Dataset, err)
	}
	return n, nil
}

// FetchPage retrieves one window of rows. On failure it returns an empty
// slice along with the error.
func (f *Fetcher) FetchPage(ctx context.Context, categoryCode string, offset, size int) ([]Record, error) {
	rows, err := f.client.Query(ctx, f.endpoint.URL, PageQuery(f.endpoint, categoryCode, offset, size))
	if err != nil {
		return []Record{}, fmt.Errorf("page at offset %d: %w", offset, err)
	}
	return rows, nil
}

// FetchAll counts the matching rows and retrieves every page with a bounded
// pool of workers. Failed pages are logged and skipped; the result reports
// whether the dataset was fetched completely.
func (f *Fetcher) FetchAll(ctx context.Context, categoryCode string, pageSize int) *FetchResult {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	res := &FetchResult{Dataset: f.endpoint.Dataset, Records: []Record{}}
	f.client.ResetLimiter()

	total, err := f.count(ctx, categoryCode)
	if err != nil {
		f.logger.Error("count query failed", "error", err)
		res.Outcome = OutcomeFailed
		res.Err = err
		return res
	}
	res.Expected = total
	f.logger.Info("starting fetch", "expected", total, "page_size", pageSize)
	if total == 0 {
		res.Outcome = OutcomeComplete
		return res
	}

	windows := pageWindows(total, pageSize)
	res.Pages = len(windows)

	var (
		mu   sync.Mutex
		done int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.workers)

	for _, w := range windows {
		if gctx.Err() != nil {
			break
		}
		w := w
		g.Go(func() error {
			rows, err := f.FetchPage(gctx, categoryCode, w.Offset, w.Limit)

			mu.Lock()
			defer mu.Unlock()
			done++
			if err != nil {
				res.PagesFailed++
				f.logger.Warn("page fetch failed", "offset", w.Offset, "error", err)
				return nil
			}
			res.Records = append(res.Records, rows...)
			f.logger.Debug("fetch progress",
				"pages_done", done,
				"pages_total", len(windows),
				"records", len(res.Records),
				"expected", total,
			)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		res.Outcome = OutcomeFailed
		res.Err = fmt.Errorf("fetch %s: %w", f.endpoint.Dataset, err)
		return res
	}

	switch {
	case res.PagesFailed == res.Pages:
		res.Outcome = OutcomeFailed
		res.Err = fmt.Errorf("fetch %s: all %d pages failed", f.endpoint.Dataset, res.PagesFailed)
	case res.PagesFailed > 0 || len(res.Records) != total:
		res.Outcome = OutcomePartial
		f.logger.Warn("fetched row count differs from expected",
			"expected", total,
			"fetched", len(res.Records),
			"pages_failed", res.PagesFailed,
		)
	default:
		res.Outcome = OutcomeComplete
	}

	f.logger.Info("fetch finished", "fetched", len(res.Records), "expected", total, "outcome", res.Outcome.String())
	return res
}
