package infra

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// HTTPStatusError is returned for a non-2xx response.
type HTTPStatusError struct {
	StatusCode int
	URL        string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("GET %s: %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Retryable reports whether the status is worth another attempt.
func (e *HTTPStatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// HTTPConfig configures outbound requests.
type HTTPConfig struct {
	Timeout    time.Duration
	Retries    uint64
	RetryDelay time.Duration
	UserAgent  string
	// RequestsPerSecond caps attempts across all callers of the client.
	// Zero means unlimited.
	RequestsPerSecond float64
}

// DefaultHTTPConfig returns the stock settings: a 20s timeout and three
// retries two seconds apart.
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		Timeout:    20 * time.Second,
		Retries:    3,
		RetryDelay: 2 * time.Second,
		UserAgent:  "dcfvalue/1.0",
	}
}

// Client performs GET requests with a constant-delay retry budget.
type Client struct {
	http    *http.Client
	cfg     HTTPConfig
	limiter *RateLimiter
	log     zerolog.Logger
}

// NewClient creates a client from cfg.
func NewClient(cfg HTTPConfig, log zerolog.Logger) *Client {
	c := &Client{
		http: &http.Client{Timeout: cfg.Timeout},
		cfg:  cfg,
		log:  log.With().Str("component", "http").Logger(),
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = NewRateLimiter(cfg.RequestsPerSecond, 1)
	}
	return c
}

// DoGet issues a GET and returns the body of the first 2xx response with
// its status code. Transport errors, 429 and 5xx are retried; other 4xx
// responses fail at once. The caller closes the body.
func (c *Client) DoGet(ctx context.Context, url string, headers map[string]string) (io.ReadCloser, int, error) {
	var (
		body   io.ReadCloser
		status int
	)
	op := func() error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build request: %w", err))
		}
		if c.cfg.UserAgent != "" {
			req.Header.Set("User-Agent", c.cfg.UserAgent)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		status = resp.StatusCode
		if status < 200 || status > 299 {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			statusErr := &HTTPStatusError{StatusCode: status, URL: url}
			if !statusErr.Retryable() {
				return backoff.Permanent(statusErr)
			}
			return statusErr
		}
		body = resp.Body
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.cfg.RetryDelay), c.cfg.Retries),
		ctx,
	)
	notify := func(err error, wait time.Duration) {
		c.log.Debug().Err(err).Str("url", url).Dur("wait", wait).Msg("request failed, retrying")
	}
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return nil, status, err
	}
	return body, status, nil
}

var (
	defaultMu     sync.RWMutex
	defaultClient = NewClient(DefaultHTTPConfig(), zerolog.Nop())
)

// SetDefaultClient replaces the client used by the package-level DoGet.
func SetDefaultClient(c *Client) {
	defaultMu.Lock()
	defaultClient = c
	defaultMu.Unlock()
}

// DefaultClient returns the client used by the package-level DoGet.
func DefaultClient() *Client {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultClient
}

// DoGet issues a GET through the default client.
func DoGet(ctx context.Context, url string, headers map[string]string) (io.ReadCloser, int, error) {
	return DefaultClient().DoGet(ctx, url, headers)
}

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool {
	var se *HTTPStatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}
