package server

import (
	"io"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/hlog"

	"github.com/Sternrassler/scoreboard-cache/pkg/cache"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func requestKey(r *http.Request) (cache.CacheType, cache.Params) {
	return cache.CacheType(chi.URLParam(r, "cacheType")), cache.ParamsFromQuery(r.URL.Query())
}

// handleGet serves the cached body, fetching it upstream on a miss.
func (s *server) handleGet(w http.ResponseWriter, r *http.Request) {
	t, p := requestKey(r)

	entry, hit, err := s.deps.Fetcher.Get(r.Context(), t, p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := "MISS"
	if hit {
		status = "HIT"
	}
	writeEntry(w, entry, status)
}

// handleRefresh forces an upstream fetch and replaces the cached entry.
func (s *server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	t, p := requestKey(r)

	entry, err := s.deps.Fetcher.Refresh(r.Context(), t, p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	hlog.FromRequest(r).Info().
		Str("cache_type", string(t)).
		Str("entry_id", entry.ID.String()).
		Msg("Entry refreshed")
	writeEntry(w, entry, "REFRESH")
}

// handleDelete drops the cached entry. Deleting a missing entry succeeds.
func (s *server) handleDelete(w http.ResponseWriter, r *http.Request) {
	t, p := requestKey(r)

	if err := s.deps.Store.Delete(r.Context(), t, p); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type pagesResponse struct {
	CacheType string                `json:"cache_type"`
	Pages     int                   `json:"pages"`
	Responses []jsoniter.RawMessage `json:"responses"`
}

// handlePages collects every page of a paginated cache type into one body.
func (s *server) handlePages(w http.ResponseWriter, r *http.Request) {
	t, p := requestKey(r)
	delete(p, "page")

	pages, err := s.deps.Pages.FetchAllPages(r.Context(), t, p)
	if err != nil {
		writeError(w, r, err)
		return
	}

	numbers := make([]int, 0, len(pages))
	for n := range pages {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	resp := pagesResponse{CacheType: string(t), Pages: len(numbers)}
	for _, n := range numbers {
		resp.Responses = append(resp.Responses, jsoniter.RawMessage(pages[n]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeEntry(w http.ResponseWriter, entry *cache.CacheEntry, status string) {
	resp := cache.EntryToResponse(entry)
	defer resp.Body.Close()

	h := w.Header()
	for k, v := range resp.Header {
		h[k] = v
	}
	h.Set(cache.HeaderCacheStatus, status)
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}

type entrySummary struct {
	ID       string            `json:"id"`
	Params   map[string]string `json:"params"`
	Bytes    int               `json:"bytes"`
	StoredAt time.Time         `json:"stored_at"`
}

// handleList shows the most recently stored entries of one cache type.
func (s *server) handleList(w http.ResponseWriter, r *http.Request) {
	t := cache.CacheType(chi.URLParam(r, "cacheType"))

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}

	entries, err := s.deps.Lister.ListByType(r.Context(), t, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]entrySummary, 0, len(entries))
	for _, e := range entries {
		out = append(out, entrySummary{
			ID:       e.ID.String(),
			Params:   e.Params,
			Bytes:    len(e.Body),
			StoredAt: e.StoredAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
