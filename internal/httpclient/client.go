package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Client is an HTTP client that applies a fixed header set to every request,
// so callers configure identity headers once instead of per call.
type Client struct {
	inner   *http.Client
	headers map[string]string
}

func New(timeout time.Duration, headers map[string]string) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		inner:   &http.Client{Timeout: timeout},
		headers: headers,
	}
}

// Get issues a GET for url with the client's headers applied. The caller
// owns the response body.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	return c.inner.Do(req)
}
