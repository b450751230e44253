package cache

import (
	"fmt"
	"net/url"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CacheType identifies which upstream endpoint/query class an entry represents.
type CacheType string

// Known cache types. Each one maps to an upstream endpoint in pkg/client.
const (
	TypeLeagues        CacheType = "leagues"
	TypeTeams          CacheType = "teams"
	TypePlayers        CacheType = "players"
	TypeStandings      CacheType = "standings"
	TypeFixturesByDate CacheType = "fixtures-by-date"
	TypeFixturesLive   CacheType = "fixtures-live"
	TypeFixtureEvents  CacheType = "fixture-events"
)

// KeyPrefix prefixes every rendered cache key.
const KeyPrefix = "scoreboard:cache"

// keyNamespace seeds the name-based UUIDs derived from cache keys.
var keyNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/Sternrassler/scoreboard-cache"))

var cacheTypePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// Validate reports whether the cache type can be used in a key.
func (t CacheType) Validate() error {
	if !cacheTypePattern.MatchString(string(t)) {
		return fmt.Errorf("%w: cache type %q", ErrInvalidKey, string(t))
	}
	return nil
}

// Params are the request parameters a caller supplies for one upstream query.
// Values may be strings, numbers, booleans, times, slices or fmt.Stringers.
type Params map[string]any

// Param is a single normalized key/value pair.
type Param struct {
	Key   string
	Value string
}

// NormalizedParams is the canonical, key-sorted form of Params.
type NormalizedParams []Param

// Canonical renders the parameters as a query string with sorted keys.
//
// Example:
//
//	league=39&season=2024
func (n NormalizedParams) Canonical() string {
	var b strings.Builder
	for i, p := range n {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.Value))
	}
	return b.String()
}

// Map returns the parameters as a plain map.
func (n NormalizedParams) Map() map[string]string {
	m := make(map[string]string, len(n))
	for _, p := range n {
		m[p.Key] = p.Value
	}
	return m
}

// Normalize canonicalizes params: keys are sorted lexicographically, values
// are coerced to a canonical textual form and nil values are dropped.
// Two mappings holding the same pairs always normalize to equal results.
func Normalize(p Params) NormalizedParams {
	out := make(NormalizedParams, 0, len(p))
	for key, value := range p {
		if isNil(value) {
			continue
		}
		out = append(out, Param{Key: key, Value: canonicalValue(value)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// isNil reports whether v is nil or a typed nil pointer, map, slice, func
// or channel.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// ParamsFromMap converts already-textual parameters (e.g. a query string).
func ParamsFromMap(m map[string]string) Params {
	p := make(Params, len(m))
	for k, v := range m {
		p[k] = v
	}
	return p
}

// ParamsFromQuery converts url.Values, keeping the first value of each key.
func ParamsFromQuery(q url.Values) Params {
	p := make(Params, len(q))
	for k := range q {
		p[k] = q.Get(k)
	}
	return p
}

// canonicalValue coerces a parameter value to its canonical text.
func canonicalValue(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.FormatInt(int64(val), 10)
	case int8:
		return strconv.FormatInt(int64(val), 10)
	case int16:
		return strconv.FormatInt(int64(val), 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint:
		return strconv.FormatUint(uint64(val), 10)
	case uint8:
		return strconv.FormatUint(uint64(val), 10)
	case uint16:
		return strconv.FormatUint(uint64(val), 10)
	case uint32:
		return strconv.FormatUint(uint64(val), 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case time.Time:
		return canonicalTime(val)
	case *time.Time:
		return canonicalTime(*val)
	case []string:
		parts := make([]string, len(val))
		for i, s := range val {
			parts[i] = canonicalValue(s)
		}
		return strings.Join(parts, "-")
	case []int:
		parts := make([]string, len(val))
		for i, n := range val {
			parts[i] = strconv.Itoa(n)
		}
		return strings.Join(parts, "-")
	case []int64:
		parts := make([]string, len(val))
		for i, n := range val {
			parts[i] = strconv.FormatInt(n, 10)
		}
		return strings.Join(parts, "-")
	case []any:
		parts := make([]string, 0, len(val))
		for _, e := range val {
			if isNil(e) {
				continue
			}
			parts = append(parts, canonicalValue(e))
		}
		return strings.Join(parts, "-")
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}

// canonicalTime renders midnight-UTC values as plain dates (the upstream's
// date parameter format) and everything else as RFC 3339 in UTC.
func canonicalTime(t time.Time) string {
	t = t.UTC()
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format(time.DateOnly)
	}
	return t.Format(time.RFC3339Nano)
}

// CacheKey uniquely identifies one cached upstream response.
type CacheKey struct {
	Type   CacheType
	Params NormalizedParams
}

// NewKey validates the cache type and normalizes the parameters.
func NewKey(t CacheType, p Params) (CacheKey, error) {
	if err := t.Validate(); err != nil {
		return CacheKey{}, err
	}
	return CacheKey{Type: t, Params: Normalize(p)}, nil
}

// String generates a deterministic cache key string.
// Format: scoreboard:cache:type:canonical-params
//
// Example:
//
//	scoreboard:cache:standings:league=39&season=2024
func (k CacheKey) String() string {
	return KeyPrefix + ":" + string(k.Type) + ":" + k.Params.Canonical()
}

// ID returns the stable identifier of the key. It is derived from String,
// so every backend assigns the same ID to the same key.
func (k CacheKey) ID() uuid.UUID {
	return uuid.NewSHA1(keyNamespace, []byte(k.String()))
}
