package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daribar/best-options-service/internal/selection"
)

func newTestPricingClient(baseURL string) *PricingClient {
	return NewPricingClient(PricingClientConfig{
		BaseURL: baseURL,
		Timeout: 5 * time.Second,
	})
}

// TestQuoteSuccess verifies the request shape and response decoding against
// the pricing contract.
func TestQuoteSuccess(t *testing.T) {
	var got QuoteRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "success", "result": {"delivery": [
			{"price": 500, "eta": 30},
			{"price": 200, "eta": 90}
		]}}`))
	}))
	defer server.Close()

	client := newTestPricingClient(server.URL)
	quotes, err := client.Quote(context.Background(), QuoteRequest{
		Items:      []QuoteItem{{Sku: "sku-1", Quantity: 2}},
		Dst:        selection.GeoPoint{Lat: 43.24, Lng: 76.95},
		SourceCode: "ph-a",
	})

	require.NoError(t, err)
	assert.Equal(t, "ph-a", got.SourceCode)
	assert.Equal(t, 43.24, got.Dst.Lat)
	require.Len(t, got.Items, 1)

	require.Len(t, quotes, 2)
	assert.Equal(t, selection.DeliveryQuote{Price: 500, EtaMinutes: 30}, quotes[0])
	assert.Equal(t, selection.DeliveryQuote{Price: 200, EtaMinutes: 90}, quotes[1])
}

// TestQuoteNonSuccessStatus verifies that a 200 with a non-success envelope
// status is still an unusable quote.
func TestQuoteNonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "error", "result": {"delivery": []}}`))
	}))
	defer server.Close()

	client := newTestPricingClient(server.URL)
	_, err := client.Quote(context.Background(), QuoteRequest{SourceCode: "ph-a"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "error")
}

// TestQuoteNon2xx verifies that a non-2xx response is an error.
func TestQuoteNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestPricingClient(server.URL)
	_, err := client.Quote(context.Background(), QuoteRequest{SourceCode: "ph-a"})
	assert.Error(t, err)
}

// TestQuoteMalformedBody verifies an undecodable body is an error.
func TestQuoteMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := newTestPricingClient(server.URL)
	_, err := client.Quote(context.Background(), QuoteRequest{SourceCode: "ph-a"})
	assert.Error(t, err)
}

// TestQuoteRateLimiterHonorsCancellation verifies the limiter gives up when
// the context is cancelled instead of blocking the fan-out.
func TestQuoteRateLimiterHonorsCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "success", "result": {"delivery": []}}`))
	}))
	defer server.Close()

	client := NewPricingClient(PricingClientConfig{
		BaseURL:           server.URL,
		Timeout:           5 * time.Second,
		RequestsPerSecond: 0.001, // effectively never refills
		Burst:             1,
	})

	// First call consumes the single burst token.
	_, err := client.Quote(context.Background(), QuoteRequest{SourceCode: "ph-a"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = client.Quote(ctx, QuoteRequest{SourceCode: "ph-b"})
	assert.Error(t, err)
}
