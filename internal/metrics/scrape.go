package metrics

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

var scrapeClient = &http.Client{Timeout: 10 * time.Second}

// Scrape fetches and parses a node's metrics endpoint.
func Scrape(ctx context.Context, uri string) ([]Sample, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, err
	}

	resp, err := scrapeClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to scrape %s: %w", uri, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("metrics endpoint %s returned %d", uri, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read metrics body: %w", err)
	}
	return Parse(string(body))
}
