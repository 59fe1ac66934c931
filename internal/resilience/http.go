package resilience

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// maxErrorBody bounds how much of a failed response is kept in StatusError.
const maxErrorBody = 512

// maxResponseBody bounds a successful response; audio payloads fit comfortably.
const maxResponseBody = 32 << 20

// Response is a fully buffered HTTP response. The body is read inside the
// attempt so the per-attempt timeout covers the whole exchange.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// RequestFunc builds a fresh request for each attempt, because a request
// body can only be read once.
type RequestFunc func(ctx context.Context) (*http.Request, error)

// NewTransport returns a transport with explicit dial and TLS timeouts.
func NewTransport() *http.Transport {
	return &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		ForceAttemptHTTP2:     true,
	}
}

// RetryClient wraps http.Client with the retry envelope
type RetryClient struct {
	client  *http.Client
	retrier *Retrier
}

// NewRetryClient creates a new retry client. The http.Client carries no
// timeout of its own; the policy's per-attempt timeout governs.
func NewRetryClient(policy Policy, opts ...Option) *RetryClient {
	return &RetryClient{
		client:  &http.Client{Transport: NewTransport()},
		retrier: NewRetrier(policy, opts...),
	}
}

// Policy returns the client's retry budget.
func (rc *RetryClient) Policy() Policy {
	return rc.retrier.Policy()
}

// Do executes the request built by newReq with retry logic. Non-2xx
// responses become *StatusError; 4xx other than 408/429 are terminal.
func (rc *RetryClient) Do(ctx context.Context, newReq RequestFunc) (*Response, error) {
	return Call(ctx, rc.retrier, func(ctx context.Context) (*Response, error) {
		req, err := newReq(ctx)
		if err != nil {
			return nil, Permanent(fmt.Errorf("failed to build request: %w", err))
		}

		resp, err := rc.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			return nil, &StatusError{
				StatusCode: resp.StatusCode,
				Body:       string(bytes.TrimSpace(body)),
			}
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}

		return &Response{
			StatusCode: resp.StatusCode,
			Header:     resp.Header,
			Body:       body,
		}, nil
	})
}

// PostJSON is a convenience wrapper that sends body as application/json.
func (rc *RetryClient) PostJSON(ctx context.Context, url string, body []byte, headers map[string]string) (*Response, error) {
	return rc.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		return req, nil
	})
}

// GetJSON sends a GET that accepts application/json.
func (rc *RetryClient) GetJSON(ctx context.Context, url string, headers map[string]string) (*Response, error) {
	return rc.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		return req, nil
	})
}
