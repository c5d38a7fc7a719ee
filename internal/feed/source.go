package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

var fetchClient = &http.Client{
	Timeout: 10 * time.Second,
}

// Open returns a reader over the feed source: either a local file path or
// an http(s) URL to pull the export from.
func Open(ctx context.Context, src string) (io.ReadCloser, error) {
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		return fetch(ctx, src)
	}

	f, err := os.Open(src)
	if err != nil {
		return nil, fmt.Errorf("error opening feed file: %w", err)
	}

	return f, nil
}

// Ubiflow endpoints flake, so the fetch retries on a fibonacci backoff
// before giving up on the batch.
func fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	var body io.ReadCloser
	err := retry.Do(ctx, retry.WithMaxRetries(3, retry.NewFibonacci(time.Second)), func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}

		resp, err := fetchClient.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return retry.RetryableError(fmt.Errorf("unexpected status code: %d", resp.StatusCode))
		}

		body = resp.Body
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error fetching feed: %w", err)
	}

	return body, nil
}
