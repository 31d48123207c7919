package dataset

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const maxDatasetBytes = 16 << 20

// Fetch downloads and parses the dataset at url. The request is bounded by timeout.
func Fetch(ctx context.Context, client *http.Client, url string, timeout time.Duration) (ParseResult, error) {
	if url == "" {
		return ParseResult{}, fmt.Errorf("dataset url is empty")
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	resp, err := httpRequest(ctx, client, url)
	if err != nil {
		return ParseResult{}, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return ParseResult{}, fmt.Errorf("unexpected dataset status: %s", resp.Status)
	}
	result, err := Parse(io.LimitReader(resp.Body, maxDatasetBytes))
	if err != nil {
		return ParseResult{}, fmt.Errorf("failed to parse dataset: %w", err)
	}
	return result, nil
}

func httpRequest(ctx context.Context, client *http.Client, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}
