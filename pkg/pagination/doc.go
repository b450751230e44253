// Package pagination fetches every page of a paginated cache type in parallel.
//
// Paginated endpoints (players) report paging.total in the response body and
// take a page parameter. Each page is fetched through the cache, so it is
// stored as its own entry keyed by the request parameters plus page.
//
// Example usage:
//
//	fetcher := pagination.NewBatchFetcher(apiClient, pagination.DefaultConfig())
//	pages, err := fetcher.FetchAllPages(ctx, cache.TypePlayers, cache.Params{"team": 33, "season": 2024})
//
// The batch fetcher:
//   - fetches page 1 to learn the page count
//   - fetches the remaining pages with at most MaxConcurrency in flight
//   - returns the pages fetched so far together with the first error
package pagination
