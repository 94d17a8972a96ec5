// Package testutil provides a mock listings API for tests.
package testutil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"

	"github.com/Sternrassler/listings-client/pkg/pagination"
	"github.com/Sternrassler/listings-client/pkg/source/httpapi"
	"github.com/Sternrassler/listings-client/pkg/source/memory"
)

// MockResponse is a canned response served instead of the store's answer.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockAPI serves the listings REST API from an in-memory store.
type MockAPI struct {
	Store *memory.Store

	server *httptest.Server
	mu     sync.Mutex
	queued []MockResponse

	remaining int
	reset     int

	requestCount  int
	lastUserAgent string
	lastQuery     string
}

// NewMockAPI starts a mock API backed by store. A nil store starts empty.
func NewMockAPI(store *memory.Store) *MockAPI {
	if store == nil {
		store = memory.New()
	}
	m := &MockAPI{
		Store:     store,
		remaining: 100,
		reset:     60,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+httpapi.ListingsPath, m.handleList)
	mux.HandleFunc("DELETE "+httpapi.ListingsPath+"/{id}", m.handleDelete)

	m.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		m.requestCount++
		m.lastUserAgent = r.UserAgent()
		m.lastQuery = r.URL.RawQuery
		var canned *MockResponse
		if len(m.queued) > 0 {
			canned = &m.queued[0]
			m.queued = m.queued[1:]
		}
		m.mu.Unlock()

		if canned != nil {
			writeCanned(w, *canned)
			return
		}
		m.writeQuota(w)
		mux.ServeHTTP(w, r)
	}))

	return m
}

// URL returns the mock server URL.
func (m *MockAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// Enqueue makes the next requests receive the given responses, in order.
func (m *MockAPI) Enqueue(resps ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queued = append(m.queued, resps...)
}

// SetQuota sets the quota headers attached to store-backed responses.
func (m *MockAPI) SetQuota(remaining, resetSeconds int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remaining = remaining
	m.reset = resetSeconds
}

// RequestCount returns the number of requests received.
func (m *MockAPI) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requestCount
}

// LastUserAgent returns the User-Agent of the latest request.
func (m *MockAPI) LastUserAgent() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastUserAgent
}

// LastQuery returns the raw query string of the latest request.
func (m *MockAPI) LastQuery() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastQuery
}

func (m *MockAPI) writeQuota(w http.ResponseWriter) {
	m.mu.Lock()
	remaining, reset := m.remaining, m.reset
	m.mu.Unlock()
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.Itoa(reset))
}

func (m *MockAPI) handleList(w http.ResponseWriter, r *http.Request) {
	q, err := httpapi.DecodeQuery(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	page, err := m.Store.FetchPage(r.Context(), q)
	switch {
	case errors.Is(err, pagination.ErrCursorMismatch),
		errors.Is(err, pagination.ErrInvalidCursor),
		errors.Is(err, pagination.ErrUnsupportedSort):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(httpapi.ListResponse{
		Items:      page.Items,
		NextCursor: string(page.Next),
	})
}

func (m *MockAPI) handleDelete(w http.ResponseWriter, r *http.Request) {
	err := m.Store.Delete(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, memory.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeCanned(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "internal server error"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response that also
// reports a critical quota.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error": "rate limit exceeded"}`,
		Headers: map[string]string{
			"X-RateLimit-Remaining": "0",
			"X-RateLimit-Reset":     "30",
			"Content-Type":          "application/json; charset=utf-8",
		},
	}
}
