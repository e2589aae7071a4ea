package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultTimeout     = 5 * time.Second
	defaultMaxRetries  = 1
	defaultRateLimit   = 5
	defaultBurst       = 10
	defaultBaseBackoff = 500 * time.Millisecond
)

// retryableError marks transient failures worth one more attempt.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func isRetryableError(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

// httpResolver talks to the external text-understanding service.
type httpResolver struct {
	url        string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
}

// NewHTTPResolver creates the service client. The URL is the full
// endpoint to POST extraction requests to.
func NewHTTPResolver(cfg ServiceConfig) (Resolver, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("service URL required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = defaultMaxRetries
	}
	rateLimit := cfg.RateLimit
	if rateLimit <= 0 {
		rateLimit = defaultRateLimit
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = defaultBurst
	}

	return &httpResolver{
		url: cfg.URL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter:    rate.NewLimiter(rate.Limit(rateLimit), burst),
		maxRetries: maxRetries,
	}, nil
}

// Resolve posts the request, retrying once on transient failures with
// backoff. Requests are stateless so a retry repeats no side effects.
func (r *httpResolver) Resolve(ctx context.Context, req ResolveRequest) (*ResolveReply, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := defaultBaseBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		reply, err := r.doRequest(ctx, req)
		if err == nil {
			return reply, nil
		}

		lastErr = err
		if !isRetryableError(err) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (r *httpResolver) doRequest(ctx context.Context, req ResolveRequest) (*ResolveReply, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", r.url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return nil, &retryableError{err: fmt.Errorf("service request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &retryableError{err: fmt.Errorf("rate limited (429)")}
	}
	if resp.StatusCode >= 500 {
		return nil, &retryableError{err: fmt.Errorf("server error (%d): %s", resp.StatusCode, string(body))}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("service error (%d): %s", resp.StatusCode, string(body))
	}

	var reply ResolveReply
	if err := json.Unmarshal(body, &reply); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &reply, nil
}

var _ Resolver = (*httpResolver)(nil)
