package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/daribar/best-options-service/internal/selection"
)

// QuoteItem is one purchasable SKU line in a delivery quote request.
type QuoteItem struct {
	Sku      string `json:"sku"`
	Quantity int    `json:"quantity"`
}

// QuoteRequest is the pricing service's request contract: the purchasable
// items, the delivery destination and the source pharmacy code.
type QuoteRequest struct {
	Items      []QuoteItem        `json:"items"`
	Dst        selection.GeoPoint `json:"dst"`
	SourceCode string             `json:"source_code"`
}

// quoteResponse mirrors the pricing service's response envelope. Any Status
// other than "success" means the quote is unusable.
type quoteResponse struct {
	Status string `json:"status"`
	Result struct {
		Delivery []selection.DeliveryQuote `json:"delivery"`
	} `json:"result"`
}

// PricingClientConfig holds the pricing client settings.
type PricingClientConfig struct {
	BaseURL string
	Timeout time.Duration
	// Outbound request rate toward the collaborator. Zero disables limiting.
	RequestsPerSecond float64
	Burst             int
}

// PricingClient requests delivery quotes from the pricing service. Failures
// are per-pharmacy and recoverable: the caller skips the pharmacy and keeps
// the batch going. Outbound calls are rate limited to stay polite toward the
// collaborator under concurrent fan-out.
type PricingClient struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewPricingClient creates a pricing client.
func NewPricingClient(cfg PricingClientConfig) *PricingClient {
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return &PricingClient{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: limiter,
		logger:  log.With().Str("component", "pricing_client").Logger(),
	}
}

// Quote returns the delivery methods the pricing service offers for one
// pharmacy, or an error if the quote is unusable for any reason (transport
// failure, non-2xx, non-success status, malformed body).
func (c *PricingClient) Quote(ctx context.Context, req QuoteRequest) ([]selection.DeliveryQuote, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode quote request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build quote request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("quote request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("pricing service returned status %d", resp.StatusCode)
	}

	var parsed quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode quote response: %w", err)
	}
	if parsed.Status != "success" {
		return nil, fmt.Errorf("pricing service returned status %q", parsed.Status)
	}

	c.logger.Debug().
		Str("source", req.SourceCode).
		Int("methods", len(parsed.Result.Delivery)).
		Msg("Quote completed")

	return parsed.Result.Delivery, nil
}
