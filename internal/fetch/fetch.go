// Package fetch is the shared outbound HTTP client: every non-streaming
// call the bot makes (event images, kline data) goes through it so retry
// tuning lives in one place.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/pepitohq/pepitobot/internal/config"
)

type Client struct {
	http          *http.Client
	maxRetries    int
	initialDelay  time.Duration
	retryStatuses map[int]bool
}

func NewClient(cfg config.RetryConfig, timeout time.Duration) *Client {
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	statuses := make(map[int]bool, len(cfg.RetryStatuses))
	for _, s := range cfg.RetryStatuses {
		statuses[s] = true
	}
	return &Client{
		http:          &http.Client{Timeout: timeout, Transport: tr},
		maxRetries:    cfg.MaxRetries,
		initialDelay:  time.Duration(cfg.BackoffFactor * float64(time.Second)),
		retryStatuses: statuses,
	}
}

// Get fetches the URL body, retrying transport errors and the configured
// retryable status codes with exponential backoff. Other non-2xx responses
// fail immediately.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	operation := func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("build request: %w", err))
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", url, err)
		}
		defer resp.Body.Close()

		if c.retryStatuses[resp.StatusCode] {
			return nil, fmt.Errorf("fetch %s: retryable status %d", url, resp.StatusCode)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, backoff.Permanent(fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode))
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read %s body: %w", url, err)
		}
		return body, nil
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = c.initialDelay

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(expo),
		backoff.WithMaxTries(uint(c.maxRetries)),
	)
}
