package client

import (
	"fmt"
	"net/url"

	"github.com/Sternrassler/scoreboard-cache/pkg/cache"
)

// Endpoint describes the upstream call behind a cache type.
type Endpoint struct {
	// Path relative to the API base URL
	Path string

	// Required parameters; a request missing any of them is rejected
	Required []string

	// Fixed parameters always sent upstream, not part of the cache key
	Fixed map[string]string

	// Paginated endpoints report paging.total and accept a page parameter
	Paginated bool
}

// Endpoints maps every known cache type to its upstream call.
var Endpoints = map[cache.CacheType]Endpoint{
	cache.TypeLeagues:        {Path: "/leagues"},
	cache.TypeTeams:          {Path: "/teams", Required: []string{"league", "season"}},
	cache.TypePlayers:        {Path: "/players", Required: []string{"team", "season"}, Paginated: true},
	cache.TypeStandings:      {Path: "/standings", Required: []string{"league", "season"}},
	cache.TypeFixturesByDate: {Path: "/fixtures", Required: []string{"date"}},
	cache.TypeFixturesLive:   {Path: "/fixtures", Fixed: map[string]string{"live": "all"}},
	cache.TypeFixtureEvents:  {Path: "/fixtures/events", Required: []string{"fixture"}},
}

// EndpointFor returns the endpoint of t.
func EndpointFor(t cache.CacheType) (Endpoint, error) {
	ep, ok := Endpoints[t]
	if !ok {
		return Endpoint{}, fmt.Errorf("%w: %q", ErrUnknownCacheType, t)
	}
	return ep, nil
}

// Query builds the upstream query string from normalized parameters.
// All caller parameters are forwarded; fixed parameters win on conflict.
func (e Endpoint) Query(p cache.NormalizedParams) (url.Values, error) {
	m := p.Map()
	for _, name := range e.Required {
		if m[name] == "" {
			return nil, fmt.Errorf("%w: %q", ErrMissingParam, name)
		}
	}

	q := make(url.Values, len(m)+len(e.Fixed))
	for k, v := range m {
		q.Set(k, v)
	}
	for k, v := range e.Fixed {
		q.Set(k, v)
	}
	return q, nil
}
