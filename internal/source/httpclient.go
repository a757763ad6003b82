package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// apiError is a non-2xx HTTP response from a log endpoint.
type apiError struct {
	status     int
	body       string // first 512 bytes
	retryAfter string // Retry-After header on 429s
}

func (e *apiError) Error() string {
	return fmt.Sprintf("http %d: %s", e.status, e.body)
}

// httpClient fetches JSON with bearer auth and bounded retries: 429s honor
// Retry-After, 5xx responses back off exponentially. Other statuses fail
// immediately.
type httpClient struct {
	base  string
	token string
	hc    *http.Client
}

const httpMaxRetries = 3

// retryBase scales the backoff schedule (1s, 2s, 4s); tests shrink it.
var retryBase = time.Second

func newHTTPClient(base, token string, timeout time.Duration) *httpClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &httpClient{
		base:  base,
		token: token,
		hc:    &http.Client{Timeout: timeout},
	}
}

func (c *httpClient) getJSON(ctx context.Context, path string, query url.Values, dest any) error {
	fullURL := c.base + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	var lastErr *apiError
	for attempt := 0; attempt <= httpMaxRetries; attempt++ {
		if attempt > 0 {
			t := time.NewTimer(backoffDelay(attempt, lastErr))
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return err
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.hc.Do(req)
		if err != nil {
			return err
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return err
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return json.Unmarshal(body, dest)
		}

		if len(body) > 512 {
			body = body[:512]
		}
		apiErr := &apiError{status: resp.StatusCode, body: string(body)}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			apiErr.retryAfter = resp.Header.Get("Retry-After")
			lastErr = apiErr
		case resp.StatusCode >= 500:
			lastErr = apiErr
		default:
			return apiErr
		}
	}
	return lastErr
}

func backoffDelay(attempt int, lastErr *apiError) time.Duration {
	if lastErr != nil && lastErr.status == http.StatusTooManyRequests && lastErr.retryAfter != "" {
		if secs, err := strconv.Atoi(lastErr.retryAfter); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return retryBase << (attempt - 1)
}
