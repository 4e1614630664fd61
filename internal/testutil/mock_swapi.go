// Package testutil provides testing utilities for the ingestion pipeline.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockSWAPI is a configurable mock of a SWAPI-style REST source. The
// collection lives at /api/people/, entities at /api/people/{index}/.
type MockSWAPI struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	requestCount int
	paths        []string
	inFlight     int
	maxInFlight  int
}

// CollectionPath is the path of the mocked collection.
const CollectionPath = "/api/people/"

// NewMockSWAPI creates a new mock server.
func NewMockSWAPI() *MockSWAPI {
	mock := &MockSWAPI{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requestCount++
		mock.paths = append(mock.paths, r.URL.Path)
		mock.inFlight++
		if mock.inFlight > mock.maxInFlight {
			mock.maxInFlight = mock.inFlight
		}
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		defer func() {
			mock.mu.Lock()
			mock.inFlight--
			mock.mu.Unlock()
		}()

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server root URL.
func (m *MockSWAPI) URL() string {
	return m.server.URL
}

// BaseURL returns the collection URL.
func (m *MockSWAPI) BaseURL() string {
	return m.server.URL + CollectionPath
}

// Ref returns an absolute URL on the mock server for path.
func (m *MockSWAPI) Ref(path string) string {
	return m.server.URL + path
}

// Close shuts down the mock server.
func (m *MockSWAPI) Close() {
	m.server.Close()
}

// SetHandler sets a custom handler for a specific path.
func (m *MockSWAPI) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockSWAPI) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", "application/json")
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetCount configures the collection endpoint to report count entities.
func (m *MockSWAPI) SetCount(count int) {
	m.SetResponse(CollectionPath, NewJSONResponse(map[string]any{
		"count":    count,
		"next":     nil,
		"previous": nil,
		"results":  []any{},
	}))
}

// SetEntity configures the payload served for the entity at index.
func (m *MockSWAPI) SetEntity(index int, payload map[string]any) {
	m.SetResponse(EntityPath(index), NewJSONResponse(payload))
}

// SetAbsent configures the entity at index to answer 404 {"detail": "Not found"}.
func (m *MockSWAPI) SetAbsent(index int) {
	m.SetResponse(EntityPath(index), NewNotFoundResponse())
}

// SetReference configures a nested resource at path answering with field=label.
func (m *MockSWAPI) SetReference(path, field, label string, delay time.Duration) {
	resp := NewJSONResponse(map[string]any{field: label})
	resp.Delay = delay
	m.SetResponse(path, resp)
}

// EntityPath returns the path of the entity at index.
func EntityPath(index int) string {
	return fmt.Sprintf("%s%d/", CollectionPath, index)
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockSWAPI) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// CountPath returns how many requests hit path.
func (m *MockSWAPI) CountPath(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, p := range m.paths {
		if p == path {
			n++
		}
	}
	return n
}

// MaxInFlight returns the highest number of concurrently served requests.
func (m *MockSWAPI) MaxInFlight() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.maxInFlight
}

// defaultHandler answers 404 like SWAPI does for unknown resources.
func (m *MockSWAPI) defaultHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte(`{"detail": "Not found"}`))
}

// NewJSONResponse creates a 200 OK response with payload encoded as JSON.
func NewJSONResponse(payload any) MockResponse {
	data, err := json.Marshal(payload)
	if err != nil {
		panic(fmt.Sprintf("marshal mock payload: %v", err))
	}
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       string(data),
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewNotFoundResponse creates SWAPI's 404 absence response.
func NewNotFoundResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusNotFound,
		Body:       `{"detail": "Not found"}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response with Retry-After.
func NewRateLimitResponse(retryAfter string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"detail": "Request was throttled."}`,
		Headers: map[string]string{
			"Content-Type": "application/json",
			"Retry-After":  retryAfter,
		},
	}
}

// Person returns a SWAPI-shaped person payload with the given references.
func Person(name, homeworld string, films []string) map[string]any {
	filmList := make([]any, len(films))
	for i, f := range films {
		filmList[i] = f
	}
	return map[string]any{
		"name":       name,
		"height":     "172",
		"mass":       "77",
		"hair_color": "blond",
		"skin_color": "fair",
		"eye_color":  "blue",
		"birth_year": "19BBY",
		"gender":     "male",
		"homeworld":  homeworld,
		"films":      filmList,
		"species":    []any{},
		"vehicles":   []any{},
		"starships":  []any{},
		"created":    "2014-12-09T13:50:51.644000Z",
		"edited":     "2014-12-20T21:17:56.891000Z",
		"url":        "https://swapi.dev/api/people/1/",
	}
}
