package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"
)

// Retry tuning constants for the hand-rolled backoff below.
const (
	maxRetries      = 5
	baseBackoff     = 1 * time.Second
	maxBackoff      = 60 * time.Second
	backoffFactor   = 2.0
	jitterFraction  = 0.25
	defaultUA       = "drive-mirror/1.0"
)

// Client is a thin, retrying HTTP wrapper over the provider's REST surface.
// It never returns raw *http.Response to callers of the higher-level
// operations in delta.go/identity.go/subscriptions.go — those translate
// every outcome into the taxonomy defined in errors.go.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     oauth2.TokenSource
	logger     *slog.Logger
	userAgent  string

	// sleep is injectable so retry tests run instantly.
	sleep func(d time.Duration)
}

// NewClient builds a Client. tokens supplies the bearer credential for
// every request; this service never refreshes it itself, so tokens is
// typically oauth2.StaticTokenSource wrapping the configured BEARER
// value.
func NewClient(baseURL string, httpClient *http.Client, tokens oauth2.TokenSource, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		tokens:     tokens,
		logger:     logger,
		userAgent:  defaultUA,
		sleep:      time.Sleep,
	}
}

// Do performs an HTTP request with retry/backoff, returning the response
// body bytes on success. On failure the error is an HTTP *Error (which
// unwraps to its taxonomy sentinel) or a network failure wrapping
// ErrTransient, possibly wrapped again once retries are exhausted.
func (c *Client) Do(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	var bodyBytes []byte

	if body != nil {
		b, err := io.ReadAll(body)
		if err != nil {
			return nil, fmt.Errorf("provider: reading request body: %w", err)
		}

		bodyBytes = b
	}

	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			wait := c.retryWait(lastErr, attempt)
			c.logger.Debug("retrying provider request",
				slog.String("method", method), slog.String("path", path),
				slog.Int("attempt", attempt), slog.Duration("wait", wait))

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}

			c.sleep(wait)
		}

		respBody, err := c.doOnce(ctx, method, path, bodyBytes)
		if err == nil {
			return respBody, nil
		}

		lastErr = err

		if !c.retryable(err) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("provider: exhausted %d retries: %w", maxRetries, lastErr)
}

func (c *Client) doOnce(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	tok, err := c.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("provider: acquiring token: %w", err)
	}

	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("provider: building request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	req.Header.Set("User-Agent", c.userAgent)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("provider: reading response body: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return respBody, nil
	}

	perr := newError(resp.StatusCode, string(respBody))
	perr.retryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))

	return nil, perr
}

func (c *Client) retryable(err error) bool {
	var perr *Error
	if !errors.As(err, &perr) {
		// Network-level failure, wrapped with ErrTransient above.
		return true
	}

	switch perr.Category {
	case ErrTransient, ErrRateLimited:
		return true
	default:
		return false
	}
}

// retryWait computes the next backoff duration, honoring a provider-supplied
// Retry-After hint when present (rate limiting), else exponential backoff
// with jitter.
func (c *Client) retryWait(lastErr error, attempt int) time.Duration {
	var perr *Error
	if errors.As(lastErr, &perr) && perr.retryAfter > 0 {
		return perr.retryAfter
	}

	return calcBackoff(attempt)
}

// calcBackoff returns an exponentially increasing, jittered backoff.
func calcBackoff(attempt int) time.Duration {
	backoff := float64(baseBackoff) * math.Pow(backoffFactor, float64(attempt-1))
	if backoff > float64(maxBackoff) {
		backoff = float64(maxBackoff)
	}

	jitter := backoff * jitterFraction * (rand.Float64()*2 - 1)

	return time.Duration(backoff + jitter)
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}

	if secs, err := strconv.Atoi(header); err == nil {
		return time.Duration(secs) * time.Second
	}

	if when, err := http.ParseTime(header); err == nil {
		return time.Until(when)
	}

	return 0
}
