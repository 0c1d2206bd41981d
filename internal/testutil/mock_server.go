// Package testutil provides fakes shared by the moderation tests: an
// httptest-backed mock of the remote services with call counting, and canned
// payloads for each remote API.
package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockServer is a mock HTTP server standing in for the external policy
// service, the native moderation API and the translation service.
type MockServer struct {
	server    *httptest.Server
	responses map[string][]MockResponse
	requests  map[string][]RecordedRequest
	total     int
	mu        sync.Mutex
}

// MockResponse defines a mock response configuration.
type MockResponse struct {
	StatusCode int
	Body       any
	Delay      time.Duration
	Headers    map[string]string
}

// RecordedRequest is a request captured by the mock server.
type RecordedRequest struct {
	Header http.Header
	Body   []byte
}

// Decode unmarshals the captured body into v.
func (r RecordedRequest) Decode(v any) error {
	return json.Unmarshal(r.Body, v)
}

// NewMockServer creates and starts a mock server.
func NewMockServer() *MockServer {
	ms := &MockServer{
		responses: make(map[string][]MockResponse),
		requests:  make(map[string][]RecordedRequest),
	}
	ms.server = httptest.NewServer(http.HandlerFunc(ms.handler))
	return ms
}

// URL returns the mock server's base URL.
func (ms *MockServer) URL() string {
	return ms.server.URL
}

// Client returns an http.Client wired to the mock server.
func (ms *MockServer) Client() *http.Client {
	return ms.server.Client()
}

// Close closes the mock server.
func (ms *MockServer) Close() {
	ms.server.CloseClientConnections()
	ms.server.Close()
}

// SetResponse sets the response served for every request to path.
func (ms *MockServer) SetResponse(path string, response MockResponse) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.responses[path] = []MockResponse{response}
}

// SetSequence serves responses in order; the last one repeats.
func (ms *MockServer) SetSequence(path string, responses ...MockResponse) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.responses[path] = append([]MockResponse(nil), responses...)
}

// GetRequestCount returns the number of requests received on all paths.
func (ms *MockServer) GetRequestCount() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.total
}

// RequestCount returns the number of requests received on path.
func (ms *MockServer) RequestCount(path string) int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return len(ms.requests[path])
}

// Requests returns the requests captured on path.
func (ms *MockServer) Requests(path string) []RecordedRequest {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return append([]RecordedRequest(nil), ms.requests[path]...)
}

// ResetRequestCount clears captured requests.
func (ms *MockServer) ResetRequestCount() {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.total = 0
	ms.requests = make(map[string][]RecordedRequest)
}

func (ms *MockServer) handler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	ms.mu.Lock()
	ms.total++
	path := r.URL.Path
	ms.requests[path] = append(ms.requests[path], RecordedRequest{Header: r.Header.Clone(), Body: body})
	queue, ok := ms.responses[path]
	var response MockResponse
	if ok && len(queue) > 0 {
		response = queue[0]
		if len(queue) > 1 {
			ms.responses[path] = queue[1:]
		}
	}
	ms.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}

	if response.Delay > 0 {
		// Return early when the client gives up so tests do not wait out
		// the full delay on Close.
		select {
		case <-time.After(response.Delay):
		case <-r.Context().Done():
			return
		}
	}

	for key, value := range response.Headers {
		w.Header().Set(key, value)
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}

	status := response.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)

	if response.Body != nil {
		switch v := response.Body.(type) {
		case string:
			_, _ = w.Write([]byte(v))
		case []byte:
			_, _ = w.Write(v)
		default:
			_ = json.NewEncoder(w).Encode(response.Body)
		}
	}
}

// MockExternalResponse builds a policy service response in the score format.
func MockExternalResponse(scores map[string]float64, flagged ...string) map[string]any {
	if flagged == nil {
		flagged = []string{}
	}
	return map[string]any{
		"scores":  scores,
		"flagged": flagged,
	}
}

// MockLegacyExternalResponse builds a policy service response on the 0-4
// severity scale.
func MockLegacyExternalResponse(severity int, categories map[string]int) map[string]any {
	return map[string]any{
		"severity":   severity,
		"categories": categories,
		"details":    map[string]any{},
	}
}

// MockModerationResponse builds a native moderation API response.
func MockModerationResponse(flags map[string]bool, scores map[string]float64) map[string]any {
	flagged := false
	for _, f := range flags {
		flagged = flagged || f
	}
	return map[string]any{
		"id":    "modr-123",
		"model": "omni-moderation-latest",
		"results": []map[string]any{
			{
				"flagged":         flagged,
				"categories":      flags,
				"category_scores": scores,
			},
		},
	}
}

// MockTranslateResponse builds a translation service response.
func MockTranslateResponse(text string) map[string]any {
	return map[string]any{"translatedText": text}
}
