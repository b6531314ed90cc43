package resilience

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxErrorBody bounds how much of an error response is kept in the
// error message.
const maxErrorBody = 256

// HTTPStatusError is a synthetic error carrying a non-2xx status and a
// truncated response body. 429/502/503 route through the retry path;
// other statuses surface immediately.
type HTTPStatusError struct {
	Status int
	Body   string
}

func (e *HTTPStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http status %d", e.Status)
	}
	return fmt.Sprintf("http status %d: %s", e.Status, e.Body)
}

// FetchOptions configures FetchWithRetry.
type FetchOptions struct {
	Retry RetryOptions

	// Timeout is the hard per-attempt deadline.
	Timeout time.Duration // default: 30s
}

// FetchWithRetry issues an HTTP request with a hard per-attempt timeout
// and retries transport failures and 5xx/429 responses. It returns the
// response body on success.
func FetchWithRetry(ctx context.Context, client *http.Client, method, url string, body []byte, header http.Header, opts FetchOptions) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return WithRetry(ctx, func(ctx context.Context) ([]byte, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(attemptCtx, method, url, reader)
		if err != nil {
			return nil, fmt.Errorf("resilience: build request: %w", err)
		}
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}

		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("resilience: fetch failed: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
		if err != nil {
			return nil, fmt.Errorf("resilience: read body: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			truncated := string(respBody)
			if len(truncated) > maxErrorBody {
				truncated = truncated[:maxErrorBody]
			}
			return nil, &HTTPStatusError{Status: resp.StatusCode, Body: truncated}
		}
		return respBody, nil
	}, opts.Retry)
}
