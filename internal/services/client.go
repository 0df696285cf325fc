package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ErrRequestFailed marks a remote call whose retry budget is exhausted or that
// hit a non-retryable client error. Callers branch with errors.Is.
var ErrRequestFailed = errors.New("request failed")

const (
	defaultMaxAttempts = 8

	// Backoff schedule: 1.5s, 3s, 6s, 12s, ... plus up to 1.5s jitter, capped.
	baseRetryDelay = 1500 * time.Millisecond
	maxRetryDelay  = 60 * time.Second
	maxRetryJitter = 1500 * time.Millisecond
)

// Request is a replayable HTTP request — the body is held as bytes so every
// retry attempt rebuilds a fresh reader.
type Request struct {
	Method string
	URL    string
	Body   []byte
	Header http.Header
}

// Response is the fully-read result of a successful request.
type Response struct {
	StatusCode int
	Body       []byte
	Header     http.Header
}

// Client wraps a single HTTP request with a backoff-and-retry policy that
// honors rate-limit signals. 429, 5xx, and transient transport errors are
// retried; any other 4xx is surfaced immediately.
type Client struct {
	http        *http.Client
	maxAttempts int
	sleep       func(ctx context.Context, d time.Duration) error
}

func NewClient(timeout time.Duration, maxAttempts int) *Client {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &Client{
		http:        &http.Client{Timeout: timeout},
		maxAttempts: maxAttempts,
		sleep:       sleepCtx,
	}
}

// Do executes the request in hard-failure mode: the caller gets either a 2xx
// response or an error wrapping ErrRequestFailed.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	return c.do(ctx, req)
}

// TryDo executes the request in soft-failure mode: exhaustion and fatal errors
// are logged and collapse to a nil response so the caller can fall back.
func (c *Client) TryDo(ctx context.Context, req Request) *Response {
	resp, err := c.do(ctx, req)
	if err != nil {
		log.Printf("[Retry] %s %s gave up: %v", req.Method, req.URL, err)
		return nil
	}
	return resp
}

func (c *Client) do(ctx context.Context, req Request) (*Response, error) {
	var lastErr error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		resp, err := c.attempt(ctx, req)
		out := classify(resp, err)

		switch out.decision {
		case decideSuccess:
			if attempt > 1 {
				log.Printf("[Retry] %s %s succeeded on attempt %d", req.Method, req.URL, attempt)
			}
			return resp, nil

		case decideFatal:
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
			}
			return nil, fmt.Errorf("%w: status %d: %s", ErrRequestFailed, resp.StatusCode, truncate(string(resp.Body), 200))

		case decideRetryAfter, decideRetryBackoff:
			delay := out.wait
			if out.decision == decideRetryBackoff {
				delay = backoffDelay(attempt, randomJitter())
			}

			if err != nil {
				lastErr = err
				log.Printf("[Retry] attempt %d/%d failed (%v), sleeping %v", attempt, c.maxAttempts, err, delay)
			} else {
				lastErr = fmt.Errorf("status %d", resp.StatusCode)
				log.Printf("[Retry] attempt %d/%d got HTTP %d, sleeping %v", attempt, c.maxAttempts, resp.StatusCode, delay)
			}

			if attempt == c.maxAttempts {
				break // budget spent, skip the final sleep
			}
			if err := c.sleep(ctx, delay); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
			}
		}
	}

	return nil, fmt.Errorf("%w after %d attempts: %v", ErrRequestFailed, c.maxAttempts, lastErr)
}

// attempt performs one HTTP round trip and fully reads the body.
func (c *Client) attempt(ctx context.Context, req Request) (*Response, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, err
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Body:       data,
		Header:     httpResp.Header,
	}, nil
}

// ---------------------------------------------------------------------------
// Retry decisions — computed once per response, consumed by the retry loop
// ---------------------------------------------------------------------------

type decision int

const (
	decideSuccess decision = iota
	decideRetryAfter
	decideRetryBackoff
	decideFatal
)

type outcome struct {
	decision decision
	wait     time.Duration // only set for decideRetryAfter
}

// classify maps one attempt's result to a retry decision. An explicit
// Retry-After wait takes precedence over the computed backoff.
func classify(resp *Response, err error) outcome {
	if err != nil {
		if isRetryableError(err) {
			return outcome{decision: decideRetryBackoff}
		}
		return outcome{decision: decideFatal}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return outcome{decision: decideSuccess}

	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		if wait, ok := parseRetryAfter(resp.Header.Get("Retry-After")); ok {
			return outcome{decision: decideRetryAfter, wait: wait}
		}
		return outcome{decision: decideRetryBackoff}

	default:
		// Remaining 4xx (and anything else odd) — retrying won't help.
		return outcome{decision: decideFatal}
	}
}

// parseRetryAfter reads a Retry-After value given either in seconds or as
// an HTTP date.
func parseRetryAfter(h string) (time.Duration, bool) {
	h = strings.TrimSpace(h)
	if h == "" {
		return 0, false
	}
	if secs, err := strconv.ParseFloat(h, 64); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs * float64(time.Second)), true
	}
	if at, err := http.ParseTime(h); err == nil {
		wait := time.Until(at)
		if wait < 0 {
			wait = 0
		}
		return wait, true
	}
	return 0, false
}

// backoffDelay computes min(cap, base * 2^(attempt-1) + jitter).
// Attempt numbering starts at 1.
func backoffDelay(attempt int, jitter time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(baseRetryDelay)*math.Pow(2, float64(attempt-1)) + float64(jitter)
	if d > float64(maxRetryDelay) {
		d = float64(maxRetryDelay)
	}
	return time.Duration(d)
}

func randomJitter() time.Duration {
	return time.Duration(rand.Int63n(int64(maxRetryJitter)))
}

// sleepCtx blocks for d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// isRetryableError checks if a network-level error is worth retrying.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "EOF") ||
		strings.Contains(errStr, "broken pipe")
}

// truncate limits a string to maxLen characters for log output.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
