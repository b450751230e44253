package pagination

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/Sternrassler/scoreboard-cache/pkg/cache"
)

// Config holds batch fetcher configuration
type Config struct {
	// MaxConcurrency is the maximum number of parallel requests.
	// Keep it well below the per-minute quota of the API plan.
	MaxConcurrency int

	// Timeout per page fetch
	Timeout time.Duration

	// MaxPages caps how many pages are fetched for one request
	MaxPages int
}

// DefaultConfig returns a configuration that fits the free API plan.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 4,
		Timeout:        15 * time.Second,
		MaxPages:       100,
	}
}

// PageFetcher fetches a single page and reports the total page count.
// *client.Client implements it.
type PageFetcher interface {
	FetchPage(ctx context.Context, t cache.CacheType, p cache.Params, page int) (data []byte, totalPages int, err error)
}

// BatchFetcher handles parallel fetching of multiple pages
type BatchFetcher struct {
	fetcher PageFetcher
	config  Config
}

// NewBatchFetcher creates a new batch fetcher
func NewBatchFetcher(fetcher PageFetcher, config Config) *BatchFetcher {
	defaults := DefaultConfig()
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = defaults.MaxConcurrency
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.MaxPages <= 0 {
		config.MaxPages = defaults.MaxPages
	}

	return &BatchFetcher{
		fetcher: fetcher,
		config:  config,
	}
}

// FetchAllPages fetches every page of (t, p) with a bounded worker pool.
// It returns page number -> body. When a page fails, the pages fetched so
// far are returned together with the error.
func (bf *BatchFetcher) FetchAllPages(ctx context.Context, t cache.CacheType, p cache.Params) (map[int][]byte, error) {
	start := time.Now()

	// Fetch first page to get total page count
	firstPage, totalPages, err := bf.fetcher.FetchPage(ctx, t, p, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch first page: %w", err)
	}
	if totalPages > bf.config.MaxPages {
		log.Warn().
			Str("cache_type", string(t)).
			Int("total_pages", totalPages).
			Int("max_pages", bf.config.MaxPages).
			Msg("Page count capped")
		totalPages = bf.config.MaxPages
	}

	results := map[int][]byte{1: firstPage}
	if totalPages <= 1 {
		log.Debug().
			Str("cache_type", string(t)).
			Dur("duration", time.Since(start)).
			Msg("Fetch complete (single page)")
		return results, nil
	}

	log.Info().
		Str("cache_type", string(t)).
		Int("total_pages", totalPages).
		Msg("Starting parallel page fetch")

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bf.config.MaxConcurrency)

	for page := 2; page <= totalPages; page++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			pageCtx, cancel := context.WithTimeout(gctx, bf.config.Timeout)
			defer cancel()

			data, _, err := bf.fetcher.FetchPage(pageCtx, t, p, page)
			if err != nil {
				log.Warn().
					Err(err).
					Str("cache_type", string(t)).
					Int("page", page).
					Msg("Page fetch failed")
				return fmt.Errorf("page %d: %w", page, err)
			}

			mu.Lock()
			results[page] = data
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Warn().
			Err(err).
			Int("fetched_pages", len(results)).
			Int("total_pages", totalPages).
			Msg("Worker error - returning partial results")
		return results, fmt.Errorf("worker error (partial data: %d/%d pages): %w", len(results), totalPages, err)
	}

	log.Info().
		Str("cache_type", string(t)).
		Int("pages", len(results)).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return results, nil
}
