package testing

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// SetJSONHeaders sets the JSON content type
func SetJSONHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
}

type MockServerOption func(*mockServerConfig)

type mockServerConfig struct {
	validateAuth bool
	authHeader   string
	authValue    string
}

// WithAuthValidation fails the test when the header does not match
func WithAuthValidation(header, value string) MockServerOption {
	return func(cfg *mockServerConfig) {
		cfg.validateAuth = true
		cfg.authHeader = header
		cfg.authValue = value
	}
}

// NewMockServer starts an httptest server that is closed with the test
func NewMockServer(t *testing.T, handler http.Handler, opts ...MockServerOption) *httptest.Server {
	t.Helper()
	cfg := &mockServerConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	wrappedHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cfg.validateAuth {
			if r.Header.Get(cfg.authHeader) != cfg.authValue {
				t.Errorf("Expected %s header '%s', got '%s'", cfg.authHeader, cfg.authValue, r.Header.Get(cfg.authHeader))
			}
		}
		handler.ServeHTTP(w, r)
	})

	server := httptest.NewServer(wrappedHandler)
	t.Cleanup(server.Close)
	return server
}

// JSONHandler always answers 200 with body
func JSONHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		SetJSONHeaders(w)
		_, _ = w.Write([]byte(body))
	}
}

// StatusHandler always answers with the given status and body
func StatusHandler(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

// UnauthorizedHandler answers 401
func UnauthorizedHandler(errorBody string) http.HandlerFunc {
	return StatusHandler(http.StatusUnauthorized, errorBody)
}

// RateLimitHandler answers 429
func RateLimitHandler(errorBody string) http.HandlerFunc {
	return StatusHandler(http.StatusTooManyRequests, errorBody)
}

// InternalErrorHandler answers 500
func InternalErrorHandler(errorBody string) http.HandlerFunc {
	return StatusHandler(http.StatusInternalServerError, errorBody)
}

// RetryHandler fails the first failUntil requests, then delegates to the
// success handler. Safe for concurrent use.
type RetryHandler struct {
	mu             sync.Mutex
	callCount      int
	failUntil      int
	failStatusCode int
	failBody       string
	successHandler http.HandlerFunc
}

// NewRetryHandler creates a RetryHandler
func NewRetryHandler(failUntil, failStatusCode int, failBody string, successHandler http.HandlerFunc) *RetryHandler {
	return &RetryHandler{
		failUntil:      failUntil,
		failStatusCode: failStatusCode,
		failBody:       failBody,
		successHandler: successHandler,
	}
}

func (h *RetryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	h.callCount++
	fail := h.callCount <= h.failUntil
	h.mu.Unlock()

	if fail {
		w.WriteHeader(h.failStatusCode)
		_, _ = w.Write([]byte(h.failBody))
		return
	}
	h.successHandler(w, r)
}

// CallCount returns the number of requests served
func (h *RetryHandler) CallCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.callCount
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
