package resilience

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	apperrors "github.com/nomadai/concierge/internal/errors"
	testHelpers "github.com/nomadai/concierge/internal/testing"
)

func noSleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

func TestRetryClient_RetriesServerErrors(t *testing.T) {
	handler := testHelpers.NewRetryHandler(2, http.StatusServiceUnavailable, "busy", testHelpers.JSONHandler(`{"ok":true}`))
	server := testHelpers.NewMockServer(t, handler)

	var bodies []string
	client := NewRetryClient(testPolicy(3), WithSleeper(noSleep))
	resp, err := client.Do(context.Background(), func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, server.URL, nil)
		bodies = append(bodies, "built")
		return req, err
	})

	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if string(resp.Body) != `{"ok":true}` {
		t.Errorf("body = %s", resp.Body)
	}
	if handler.CallCount() != 3 || len(bodies) != 3 {
		t.Errorf("calls = %d, builds = %d, want 3", handler.CallCount(), len(bodies))
	}
}

func TestRetryClient_ClientErrorNotRetried(t *testing.T) {
	handler := testHelpers.NewRetryHandler(10, http.StatusUnauthorized, `{"error":"bad key"}`, testHelpers.JSONHandler(`{}`))
	server := testHelpers.NewMockServer(t, handler)

	client := NewRetryClient(testPolicy(3), WithSleeper(noSleep))
	_, err := client.PostJSON(context.Background(), server.URL, []byte(`{}`), nil)

	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("err = %v, want 401 StatusError", err)
	}
	if handler.CallCount() != 1 {
		t.Errorf("calls = %d, want 1", handler.CallCount())
	}
}

func TestRetryClient_Exhausted(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", testHelpers.InternalErrorHandler("down")},
		{"upstream rate limit", testHelpers.RateLimitHandler(`{"error":"slow down"}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := testHelpers.NewMockServer(t, tt.handler)

			client := NewRetryClient(testPolicy(2), WithSleeper(noSleep))
			_, err := client.PostJSON(context.Background(), server.URL, []byte(`{}`), nil)

			if apperrors.KindOf(err) != apperrors.KindDependencyUnavailable {
				t.Errorf("kind = %q, want dependency_unavailable", apperrors.KindOf(err))
			}
		})
	}
}

func TestRetryClient_PostJSONHeadersAndBody(t *testing.T) {
	server := testHelpers.NewMockServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content type = %q", r.Header.Get("Content-Type"))
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"q":1}` {
			t.Errorf("body = %s", body)
		}
		w.WriteHeader(http.StatusOK)
	}), testHelpers.WithAuthValidation("Authorization", "Bearer k"))

	client := NewRetryClient(testPolicy(1))
	resp, err := client.PostJSON(context.Background(), server.URL, []byte(`{"q":1}`), map[string]string{"Authorization": "Bearer k"})
	if err != nil {
		t.Fatalf("PostJSON() error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}
