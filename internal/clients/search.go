// Package clients holds the HTTP clients for the two external collaborators:
// the medicine search service and the delivery pricing service.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/daribar/best-options-service/internal/selection"
)

// SearchItem is one requested SKU line in a search request.
type SearchItem struct {
	Sku          string `json:"sku"`
	CountDesired int    `json:"count_desired"`
}

// searchResponse mirrors the search service's response envelope.
type searchResponse struct {
	Result []selection.Pharmacy `json:"result"`
}

// SearchClient queries the medicine search service for per-pharmacy stock and
// pricing. A search failure is fatal to the whole resolve request: without it
// there are no candidates to rank.
type SearchClient struct {
	baseURL string
	http    *http.Client
	logger  zerolog.Logger
}

// NewSearchClient creates a search client for the given base URL.
func NewSearchClient(baseURL string, timeout time.Duration) *SearchClient {
	return &SearchClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  log.With().Str("component", "search_client").Logger(),
	}
}

// Search returns every pharmacy carrying the requested SKUs in the given
// city. The city identifier goes into the query string, the SKU lines into
// the JSON body, per the collaborator's contract.
func (c *SearchClient) Search(ctx context.Context, encodedCity string, items []SearchItem) ([]selection.Pharmacy, error) {
	body, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("failed to encode search request: %w", err)
	}

	reqURL := fmt.Sprintf("%s?city=%s", c.baseURL, url.QueryEscape(encodedCity))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("search service returned status %d", resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	c.logger.Debug().
		Str("city", encodedCity).
		Int("items", len(items)).
		Int("pharmacies", len(parsed.Result)).
		Dur("latency", time.Since(start)).
		Msg("Search completed")

	return parsed.Result, nil
}
