package httpx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"time"

	"github.com/relaymesh/geminigate/internal/log"
)

// RetryPolicy configures the exponential-backoff-with-jitter retry the
// adapter applies around the upstream call (spec §4.7).
type RetryPolicy struct {
	MaxAttempts   int           `conf:"max_attempts" yaml:"max_attempts" json:"max_attempts"`
	BaseDelay     time.Duration `conf:"base_delay" yaml:"base_delay" json:"base_delay"`
	MaxDelay      time.Duration `conf:"max_delay" yaml:"max_delay" json:"max_delay"`
	AttemptDeadline time.Duration `conf:"attempt_deadline" yaml:"attempt_deadline" json:"attempt_deadline"`
}

// DefaultRetryPolicy matches spec §4.7: up to 3 attempts, 30s per-attempt deadline.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		BaseDelay:       250 * time.Millisecond,
		MaxDelay:        4 * time.Second,
		AttemptDeadline: 30 * time.Second,
	}
}

var retryableStatus = map[int]bool{
	408: true, 429: true, 500: true, 502: true, 503: true, 504: true,
	520: true, 521: true, 522: true, 523: true, 524: true,
}

// Client executes Requests with the retry policy above. It deliberately has
// no notion of dialects or Gemini — it is the single seam every outbound
// call in the gateway passes through, so redaction and retry logic live in
// exactly one place.
type Client struct {
	http   *http.Client
	policy RetryPolicy
}

func NewClient(policy RetryPolicy) *Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &Client{
		http:   &http.Client{Transport: transport},
		policy: policy,
	}
}

// Do issues a unary or streaming call, retrying per RetryPolicy.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	maxAttempts := max(c.policy.MaxAttempts, 1)

	var lastErr error

	for attempt := range maxAttempts {
		if attempt > 0 {
			delay := backoffDelay(c.policy, attempt)
			log.Debug(ctx, "retrying upstream call", log.Int("attempt", attempt), log.Any("delay", delay))

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		resp, err := c.doOnce(ctx, req)
		if err == nil {
			return resp, nil
		}

		lastErr = err

		if !isRetryable(err) {
			return nil, err
		}

		log.Warn(ctx, "upstream call failed, will retry", log.Cause(err), log.Int("attempt", attempt))
	}

	return nil, lastErr
}

func (c *Client) doOnce(ctx context.Context, req *Request) (*Response, error) {
	attemptCtx := ctx

	var cancel context.CancelFunc
	if c.policy.AttemptDeadline > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, c.policy.AttemptDeadline)
	}

	rawReq, err := http.NewRequestWithContext(attemptCtx, req.Method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		cancelIfSet(cancel)
		return nil, fmt.Errorf("build http request: %w", err)
	}

	rawReq.Header = req.Headers.Clone()

	rawResp, err := c.http.Do(rawReq)
	if err != nil {
		cancelIfSet(cancel)
		return nil, &transientErr{err: err}
	}

	if rawResp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(rawResp.Body, 1<<20))
		_ = rawResp.Body.Close()
		cancelIfSet(cancel)

		return nil, &Error{
			Method:     req.Method,
			URL:        req.URL,
			StatusCode: rawResp.StatusCode,
			Status:     rawResp.Status,
			Body:       body,
		}
	}

	resp := &Response{
		StatusCode: rawResp.StatusCode,
		Headers:    rawResp.Header,
	}

	if isEventStream(rawResp.Header.Get("Content-Type")) {
		// Streaming reads have no aggregate deadline (spec: "Streaming reads
		// do not have an aggregate deadline"), and the body outlives this
		// call, so the attempt-deadline cancellation is tied to Close
		// instead of firing here.
		resp.Stream = wrapStreamBody(rawResp.Body, cancel)
	} else {
		body, err := io.ReadAll(rawResp.Body)
		_ = rawResp.Body.Close()
		cancelIfSet(cancel)

		if err != nil {
			return nil, fmt.Errorf("read response body: %w", err)
		}

		resp.Body = body
	}

	return resp, nil
}

func cancelIfSet(cancel context.CancelFunc) {
	if cancel != nil {
		cancel()
	}
}

// cancelOnCloseBody defers the attempt-deadline context's cancellation
// until the streaming body is closed, instead of when doOnce returns.
type cancelOnCloseBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnCloseBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()

	return err
}

func wrapStreamBody(body io.ReadCloser, cancel context.CancelFunc) io.ReadCloser {
	if cancel == nil {
		return body
	}

	return &cancelOnCloseBody{ReadCloser: body, cancel: cancel}
}

func isEventStream(contentType string) bool {
	return len(contentType) >= 17 && contentType[:17] == "text/event-stream"
}

// transientErr wraps network-level failures (DNS, connection reset, etc.)
// so isRetryable can distinguish them from a well-formed 4xx/5xx.
type transientErr struct{ err error }

func (e *transientErr) Error() string { return e.err.Error() }
func (e *transientErr) Unwrap() error { return e.err }

func isRetryable(err error) bool {
	var httpErr *Error
	if errors.As(err, &httpErr) {
		return retryableStatus[httpErr.StatusCode]
	}

	var transient *transientErr
	if errors.As(err, &transient) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

func backoffDelay(policy RetryPolicy, attempt int) time.Duration {
	base := policy.BaseDelay
	if base <= 0 {
		base = 250 * time.Millisecond
	}

	delay := base * time.Duration(1<<uint(attempt-1))
	if policy.MaxDelay > 0 && delay > policy.MaxDelay {
		delay = policy.MaxDelay
	}

	jitter := time.Duration(rand.Int64N(int64(delay) / 2 + 1))

	return delay/2 + jitter
}
