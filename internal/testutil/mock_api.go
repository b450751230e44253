// Package testutil provides testing utilities for the scoreboard cache.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// Rate limit headers sent by the football-data API.
const (
	HeaderMinuteRemaining = "X-RateLimit-Remaining"
	HeaderDailyRemaining  = "X-RateLimit-Requests-Remaining"
)

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockAPI is a configurable mock football-data API server for testing.
type MockAPI struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc

	// Tracking
	requestCount int
	pathCounts   map[string]int
	lastHeader   http.Header
	lastQuery    url.Values
}

// NewMockAPI creates a new mock API server.
func NewMockAPI() *MockAPI {
	mock := &MockAPI{
		handlers:   make(map[string]http.HandlerFunc),
		pathCounts: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requestCount++
		mock.pathCounts[r.URL.Path]++
		mock.lastHeader = r.Header.Clone()
		mock.lastQuery = r.URL.Query()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}
		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.pathCounts = make(map[string]int)
	m.lastHeader = nil
	m.lastQuery = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockAPI) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockAPI) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, resp.handler())
}

// SetSequence answers successive requests to path with resps in order and
// repeats the last one once the sequence is used up.
func (m *MockAPI) SetSequence(path string, resps ...MockResponse) {
	var mu sync.Mutex
	next := 0
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		resp := resps[min(next, len(resps)-1)]
		next++
		mu.Unlock()
		resp.handler()(w, r)
	})
}

// RequestCount returns the number of requests made to the server.
func (m *MockAPI) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// PathCount returns the number of requests made to path.
func (m *MockAPI) PathCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pathCounts[path]
}

// LastHeader returns the headers of the most recent request.
func (m *MockAPI) LastHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastHeader
}

// LastQuery returns the query of the most recent request.
func (m *MockAPI) LastQuery() url.Values {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastQuery
}

func (r MockResponse) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if r.Delay > 0 {
			time.Sleep(r.Delay)
		}
		for key, value := range r.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(r.StatusCode)
		if r.Body != "" {
			w.Write([]byte(r.Body))
		}
	}
}

// defaultHandler answers with an empty API envelope.
func (m *MockAPI) defaultHandler(w http.ResponseWriter, r *http.Request) {
	setHealthyHeaders(w.Header())
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(Envelope(r.URL.Path, "[]", 1, 1)))
}

func setHealthyHeaders(h http.Header) {
	h.Set(HeaderMinuteRemaining, "29")
	h.Set(HeaderDailyRemaining, "7400")
	h.Set("Content-Type", "application/json")
}

// Envelope renders an API response envelope around a response array.
func Envelope(get, response string, page, total int) string {
	return fmt.Sprintf(`{"get":%q,"parameters":{},"errors":[],"results":1,"paging":{"current":%d,"total":%d},"response":%s}`,
		get, page, total, response)
}

// NewHealthyResponse creates a standard 200 OK response with quota headers.
func NewHealthyResponse(body string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers: map[string]string{
			HeaderMinuteRemaining: "29",
			HeaderDailyRemaining:  "7400",
			"Content-Type":        "application/json",
		},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"message":"Too many requests"}`,
		Headers: map[string]string{
			HeaderMinuteRemaining: "0",
			HeaderDailyRemaining:  "7000",
			"Content-Type":        "application/json",
		},
	}
}

// NewQuotaErrorResponse creates the 200 response the API sends when the
// per-minute quota is exceeded.
func NewQuotaErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"get":"","errors":{"rateLimit":"Too many requests. Your rate limit is 30 requests per minute."},"results":0,"response":[]}`,
		Headers: map[string]string{
			HeaderMinuteRemaining: "0",
			"Content-Type":        "application/json",
		},
	}
}

// NewAPIErrorResponse creates a 200 response with a non-empty errors member.
func NewAPIErrorResponse(field, message string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       fmt.Sprintf(`{"get":"","errors":{%q:%q},"results":0,"response":[]}`, field, message),
		Headers: map[string]string{
			HeaderMinuteRemaining: "29",
			"Content-Type":        "application/json",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"message":"Internal server error"}`,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
	}
}

// NewPagedHandler serves total pages, echoing the requested page number.
func NewPagedHandler(get string, total int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := strconv.Atoi(r.URL.Query().Get("page"))
		if err != nil || page < 1 {
			page = 1
		}
		setHealthyHeaders(w.Header())
		if page > total {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(Envelope(get, "[]", page, total)))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(Envelope(get, fmt.Sprintf(`[{"page":%d}]`, page), page, total)))
	}
}
