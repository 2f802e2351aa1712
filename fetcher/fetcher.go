// Package fetcher issues rate-limited HTTP GET requests with bounded retries.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"imovelscan/config"
)

// RetryPolicy is an injectable bounded-retry strategy. Sleep may be replaced
// in tests to avoid real delays.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
	BackoffMax time.Duration
	Sleep      func(time.Duration)
}

// PolicyFromConfig derives the retry policy from crawler configuration.
func PolicyFromConfig(cfg *config.Config) RetryPolicy {
	return RetryPolicy{
		MaxRetries: cfg.MaxRetries,
		Backoff:    cfg.RetryBackoff,
		BackoffMax: cfg.RetryBackoffMax,
	}
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	base := p.Backoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	delay := base * time.Duration(1<<(attempt-1))
	if p.BackoffMax > 0 && delay > p.BackoffMax {
		delay = p.BackoffMax
	}
	return delay
}

func (p RetryPolicy) sleep(d time.Duration) {
	if p.Sleep != nil {
		p.Sleep(d)
		return
	}
	time.Sleep(d)
}

// Recorder receives fetch-level measurements. All methods must be safe on a
// nil receiver implementation.
type Recorder interface {
	ObserveRequest(d time.Duration)
	AddRetry()
	IncError(label string)
}

// Client fetches pages sequentially with a minimum inter-request delay.
// Retry state is per call, so concurrent callers do not race; the shared
// delay gate lives in the collector's limit rule.
type Client struct {
	collector *colly.Collector
	policy    RetryPolicy
	recorder  Recorder
}

// New builds a client configured from cfg.
func New(cfg *config.Config, recorder Recorder) (*Client, error) {
	collector := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = !cfg.RespectRobotsTxt
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       cfg.Delay,
		RandomDelay: cfg.RandomDelay,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	return &Client{
		collector: collector,
		policy:    PolicyFromConfig(cfg),
		recorder:  recorder,
	}, nil
}

// WithTransport swaps the HTTP transport. Tests use this to inject httpmock.
func (c *Client) WithTransport(rt http.RoundTripper) {
	c.collector.WithTransport(rt)
}

// SetPolicy replaces the retry policy.
func (c *Client) SetPolicy(p RetryPolicy) {
	c.policy = p
}

// Fetch retrieves a URL and returns the raw HTML body. Transient failures
// (timeouts, connection resets, 5xx, 429) are retried with exponential
// backoff; the final failure is returned as a *FetchError.
func (c *Client) Fetch(ctx context.Context, url string) (string, error) {
	var (
		lastErr    error
		lastStatus int
	)

	for attempt := 0; attempt <= c.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			if c.recorder != nil {
				c.recorder.AddRetry()
			}
			c.policy.sleep(c.policy.delay(attempt))
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}

		body, status, err := c.do(url)
		if err == nil {
			return body, nil
		}

		lastErr = err
		lastStatus = status
		if c.recorder != nil {
			c.recorder.IncError(classify(err, status))
		}
		if !transient(err, status) {
			break
		}
	}

	return "", &FetchError{URL: url, StatusCode: lastStatus, Err: lastErr}
}

func (c *Client) do(url string) (body string, status int, err error) {
	start := time.Now()
	defer func() {
		if c.recorder != nil {
			c.recorder.ObserveRequest(time.Since(start))
		}
	}()

	// Clones share the rate-limited backend but carry fresh callbacks, so
	// per-request capture does not leak between calls.
	col := c.collector.Clone()
	col.OnResponse(func(r *colly.Response) {
		body = string(r.Body)
		status = r.StatusCode
	})
	col.OnError(func(r *colly.Response, cbErr error) {
		if r != nil {
			status = r.StatusCode
		}
		err = cbErr
	})

	if visitErr := col.Visit(url); visitErr != nil && err == nil {
		err = visitErr
	}
	col.Wait()

	if err != nil {
		return "", status, err
	}
	return body, status, nil
}

// transient reports whether the failure is worth another attempt. 4xx
// responses are final, except 429 which signals backoff.
func transient(err error, status int) bool {
	if status == http.StatusTooManyRequests {
		return true
	}
	if status >= 500 {
		return true
	}
	if status >= 400 {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	// Remaining status-less failures (DNS, reset before headers) are treated
	// as connection-level and retried.
	return status == 0
}

func classify(err error, status int) string {
	switch {
	case status == http.StatusTooManyRequests:
		return "rate_limited"
	case status == http.StatusForbidden:
		return "forbidden"
	case status == http.StatusNotFound:
		return "not_found"
	case status >= 500:
		return "server_error"
	case status >= 400:
		return "client_error"
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return "connection"
	}
	return "other"
}
