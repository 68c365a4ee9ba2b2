// Package testutil provides an httptest based fake of the Personalia API.
package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// MockResponse is one canned reply.
type MockResponse struct {
	StatusCode int
	Body       any
	Headers    map[string]string
}

// MockServer is a test HTTP server for mocking API responses.
type MockServer struct {
	*httptest.Server
	mu       sync.Mutex
	handlers map[string]map[string]http.HandlerFunc
	requests []RecordedRequest
}

// RecordedRequest is a request the server received.
type RecordedRequest struct {
	Method  string
	Path    string
	RawPath string
	Query   string
	Headers http.Header
	Body    []byte
}

// NewMockServer starts a mock server that is closed on test cleanup.
func NewMockServer(t *testing.T) *MockServer {
	t.Helper()

	ms := &MockServer{
		handlers: make(map[string]map[string]http.HandlerFunc),
	}

	ms.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body.Close()

		ms.mu.Lock()
		ms.requests = append(ms.requests, RecordedRequest{
			Method:  r.Method,
			Path:    r.URL.Path,
			RawPath: r.URL.EscapedPath(),
			Query:   r.URL.RawQuery,
			Headers: r.Header.Clone(),
			Body:    body,
		})
		handler := ms.handlers[r.URL.Path][r.Method]
		ms.mu.Unlock()

		if handler == nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		r.Body = io.NopCloser(strings.NewReader(string(body)))
		handler(w, r)
	}))

	t.Cleanup(ms.Close)

	return ms
}

// Handle registers a handler for a method and path.
func (ms *MockServer) Handle(method, path string, handler http.HandlerFunc) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.handlers[path] == nil {
		ms.handlers[path] = make(map[string]http.HandlerFunc)
	}
	ms.handlers[path][method] = handler
}

// HandleJSON registers a handler that returns a JSON response.
func (ms *MockServer) HandleJSON(method, path string, statusCode int, response any) {
	ms.HandleSequence(method, path, MockResponse{StatusCode: statusCode, Body: response})
}

// HandleError registers a handler that returns a Personalia error document.
// errorID is sent as a JSON number when it parses as one.
func (ms *MockServer) HandleError(method, path string, statusCode int, errorID, reason string) {
	doc := map[string]any{"Reason": reason}
	if errorID != "" {
		doc["ErrorId"] = json.RawMessage(quoteUnlessNumber(errorID))
	}
	ms.HandleJSON(method, path, statusCode, doc)
}

// HandleSequence replies with responses in order and repeats the last one
// once the list is used up.
func (ms *MockServer) HandleSequence(method, path string, responses ...MockResponse) {
	var mu sync.Mutex
	next := 0
	ms.Handle(method, path, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		resp := responses[next]
		if next < len(responses)-1 {
			next++
		}
		mu.Unlock()
		writeResponse(w, resp)
	})
}

func writeResponse(w http.ResponseWriter, resp MockResponse) {
	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	switch body := resp.Body.(type) {
	case nil:
		w.WriteHeader(status)
	case string:
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", "text/plain")
		}
		w.WriteHeader(status)
		io.WriteString(w, body)
	default:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	}
}

func quoteUnlessNumber(s string) string {
	var n json.Number
	if json.Unmarshal([]byte(s), &n) == nil {
		return s
	}
	b, _ := json.Marshal(s)
	return string(b)
}

// Requests returns all recorded requests.
func (ms *MockServer) Requests() []RecordedRequest {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return append([]RecordedRequest{}, ms.requests...)
}

// RequestCount returns how many requests hit path.
func (ms *MockServer) RequestCount(path string) int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	n := 0
	for _, r := range ms.requests {
		if r.Path == path {
			n++
		}
	}
	return n
}

// LastRequest returns the last recorded request.
func (ms *MockServer) LastRequest() *RecordedRequest {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if len(ms.requests) == 0 {
		return nil
	}
	r := ms.requests[len(ms.requests)-1]
	return &r
}

// AssertRequestCount asserts that a specific number of requests were made.
func (ms *MockServer) AssertRequestCount(t *testing.T, expected int) {
	t.Helper()
	ms.mu.Lock()
	actual := len(ms.requests)
	ms.mu.Unlock()

	if actual != expected {
		t.Errorf("request count = %d, want %d", actual, expected)
	}
}

// AssertLastRequest asserts the method and path of the last request.
func (ms *MockServer) AssertLastRequest(t *testing.T, method, path string) {
	t.Helper()
	req := ms.LastRequest()
	if req == nil {
		t.Error("no requests recorded")
		return
	}
	if req.Method != method || req.Path != path {
		t.Errorf("last request = %s %s, want %s %s", req.Method, req.Path, method, path)
	}
}

// AssertLastRequestHeader asserts a header of the last request.
func (ms *MockServer) AssertLastRequestHeader(t *testing.T, key, expected string) {
	t.Helper()
	req := ms.LastRequest()
	if req == nil {
		t.Error("no requests recorded")
		return
	}
	if actual := req.Headers.Get(key); actual != expected {
		t.Errorf("header %s = %q, want %q", key, actual, expected)
	}
}

// ParseLastRequestBody decodes the body of the last request as JSON.
func (ms *MockServer) ParseLastRequestBody(t *testing.T, v any) {
	t.Helper()
	req := ms.LastRequest()
	if req == nil {
		t.Error("no requests recorded")
		return
	}
	if err := json.Unmarshal(req.Body, v); err != nil {
		t.Errorf("failed to parse request body: %v", err)
	}
}
