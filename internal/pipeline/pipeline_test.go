package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daribar/best-options-service/internal/clients"
	"github.com/daribar/best-options-service/internal/quotes"
	"github.com/daribar/best-options-service/internal/selection"
	"github.com/daribar/best-options-service/internal/storage"
)

// pipelineNow is the fixed evaluation instant for pipeline tests.
var pipelineNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

// mockSearchSource is a mock implementation of SearchSource for testing.
type mockSearchSource struct {
	pharmacies []selection.Pharmacy
	err        error

	gotCity  string
	gotItems []clients.SearchItem
}

func (m *mockSearchSource) Search(ctx context.Context, encodedCity string, items []clients.SearchItem) ([]selection.Pharmacy, error) {
	m.gotCity = encodedCity
	m.gotItems = items
	if m.err != nil {
		return nil, m.err
	}
	return m.pharmacies, nil
}

// mockPricingSource is a mock implementation of quotes.PricingSource.
type mockPricingSource struct {
	quotes   map[string][]selection.DeliveryQuote
	failures map[string]error
}

func newMockPricingSource() *mockPricingSource {
	return &mockPricingSource{
		quotes:   make(map[string][]selection.DeliveryQuote),
		failures: make(map[string]error),
	}
}

func (m *mockPricingSource) Quote(ctx context.Context, req clients.QuoteRequest) ([]selection.DeliveryQuote, error) {
	if err, ok := m.failures[req.SourceCode]; ok {
		return nil, err
	}
	return m.quotes[req.SourceCode], nil
}

func openPharmacy(code string, total int64, lat, lon float64) selection.Pharmacy {
	return selection.Pharmacy{
		Source: selection.PharmacySource{
			Code:     code,
			Lat:      lat,
			Lon:      lon,
			ClosesAt: pipelineNow.Add(6 * time.Hour).Format("2006-01-02T15:04:05Z"),
		},
		TotalSum: total,
		Products: []selection.ProductOffer{
			{Sku: "sku-1", Quantity: 10, QuantityDesired: 2},
		},
	}
}

func newTestPipeline(t *testing.T, search SearchSource, pricing quotes.PricingSource, snapshots *SnapshotWriter) *Pipeline {
	t.Helper()
	policy := selection.Defaults()
	classifier, err := selection.NewClassifier(policy)
	require.NoError(t, err)

	resolver := selection.NewResolver(classifier, policy)
	collector := quotes.NewCollector(pricing, quotes.Defaults())

	pipeline := New(search, collector, resolver, policy, snapshots)
	return pipeline.WithClock(func() time.Time { return pipelineNow })
}

func validRequest() Request {
	return Request{
		City: "QWxtYXR5",
		Skus: []selection.SkuRequest{{Sku: "sku-1", CountDesired: 2}},
		Address: selection.GeoPoint{
			Lat: 43.24,
			Lng: 76.95,
		},
	}
}

// TestPipelineResolveHappyPath verifies the full flow end to end with open
// pharmacies and successful quotes.
func TestPipelineResolveHappyPath(t *testing.T) {
	search := &mockSearchSource{pharmacies: []selection.Pharmacy{
		openPharmacy("ph-cheap", 2000, 43.30, 77.10),
		openPharmacy("ph-near", 3000, 43.24, 76.96),
		openPharmacy("ph-mid", 2500, 43.26, 76.99),
	}}

	pricing := newMockPricingSource()
	pricing.quotes["ph-cheap"] = []selection.DeliveryQuote{{Price: 500, EtaMinutes: 60}}
	pricing.quotes["ph-near"] = []selection.DeliveryQuote{{Price: 300, EtaMinutes: 20}}
	pricing.quotes["ph-mid"] = []selection.DeliveryQuote{{Price: 400, EtaMinutes: 40}}

	p := newTestPipeline(t, search, pricing, nil)
	result, err := p.Resolve(context.Background(), validRequest())

	require.NoError(t, err)
	require.NotNil(t, result.Cheapest)
	assert.Equal(t, "ph-cheap", result.Cheapest.Pharmacy.Source.Code)
	assert.Equal(t, int64(2500), result.Cheapest.TotalPrice)
	require.NotNil(t, result.Fastest)
	assert.Equal(t, "ph-near", result.Fastest.Pharmacy.Source.Code)

	assert.Equal(t, "QWxtYXR5", search.gotCity)
	require.Len(t, search.gotItems, 1)
	assert.Equal(t, clients.SearchItem{Sku: "sku-1", CountDesired: 2}, search.gotItems[0])
}

// TestPipelineValidation verifies requests are rejected before any
// collaborator call.
func TestPipelineValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Request)
		field  string
	}{
		{"empty city", func(r *Request) { r.City = "" }, "city"},
		{"no skus", func(r *Request) { r.Skus = nil }, "skus"},
		{"empty sku id", func(r *Request) { r.Skus[0].Sku = "" }, "skus"},
		{"zero count", func(r *Request) { r.Skus[0].CountDesired = 0 }, "skus"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			search := &mockSearchSource{}
			p := newTestPipeline(t, search, newMockPricingSource(), nil)

			req := validRequest()
			tt.mutate(&req)

			_, err := p.Resolve(context.Background(), req)

			var validationErr selection.ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tt.field, validationErr.Field)
			assert.Empty(t, search.gotCity, "search must not be called")
		})
	}
}

// TestPipelineSearchFailure verifies a search failure is fatal and wrapped in
// the typed sentinel.
func TestPipelineSearchFailure(t *testing.T) {
	search := &mockSearchSource{err: errors.New("connection refused")}
	p := newTestPipeline(t, search, newMockPricingSource(), nil)

	_, err := p.Resolve(context.Background(), validRequest())
	assert.ErrorIs(t, err, ErrSearchUnavailable)
}

// TestPipelineNoFulfillablePharmacy verifies the distinguishable outcome when
// no pharmacy covers the basket.
func TestPipelineNoFulfillablePharmacy(t *testing.T) {
	short := openPharmacy("ph-short", 2000, 43.24, 76.95)
	short.Products = []selection.ProductOffer{
		{Sku: "sku-1", Quantity: 1, QuantityDesired: 2},
	}

	search := &mockSearchSource{pharmacies: []selection.Pharmacy{short}}
	p := newTestPipeline(t, search, newMockPricingSource(), nil)

	_, err := p.Resolve(context.Background(), validRequest())
	assert.ErrorIs(t, err, selection.ErrNoFulfillablePharmacy)
}

// TestPipelineNoViableOpenOption verifies the distinguishable outcome when
// every quoted pharmacy is closed.
func TestPipelineNoViableOpenOption(t *testing.T) {
	closed := openPharmacy("ph-closed", 2000, 43.24, 76.95)
	closed.Source.ClosesAt = pipelineNow.Add(-time.Hour).Format("2006-01-02T15:04:05Z")

	search := &mockSearchSource{pharmacies: []selection.Pharmacy{closed}}
	pricing := newMockPricingSource()
	pricing.quotes["ph-closed"] = []selection.DeliveryQuote{{Price: 500, EtaMinutes: 30}}

	p := newTestPipeline(t, search, pricing, nil)

	_, err := p.Resolve(context.Background(), validRequest())
	assert.ErrorIs(t, err, selection.ErrNoViableOpenOption)
}

// TestPipelinePricingFailureSkipsPharmacy verifies a failed quote drops only
// that pharmacy.
func TestPipelinePricingFailureSkipsPharmacy(t *testing.T) {
	search := &mockSearchSource{pharmacies: []selection.Pharmacy{
		openPharmacy("ph-a", 2000, 43.24, 76.95),
		openPharmacy("ph-b", 3000, 43.25, 76.96),
	}}

	pricing := newMockPricingSource()
	pricing.failures["ph-a"] = errors.New("pricing unavailable")
	pricing.quotes["ph-b"] = []selection.DeliveryQuote{{Price: 300, EtaMinutes: 20}}

	p := newTestPipeline(t, search, pricing, nil)
	result, err := p.Resolve(context.Background(), validRequest())

	require.NoError(t, err)
	assert.Equal(t, "ph-b", result.Cheapest.Pharmacy.Source.Code)
}

// TestPipelineAllQuotesFail verifies that losing every quote resolves to the
// no-viable-open-option outcome rather than a panic or empty result.
func TestPipelineAllQuotesFail(t *testing.T) {
	search := &mockSearchSource{pharmacies: []selection.Pharmacy{
		openPharmacy("ph-a", 2000, 43.24, 76.95),
	}}

	pricing := newMockPricingSource()
	pricing.failures["ph-a"] = errors.New("pricing unavailable")

	p := newTestPipeline(t, search, pricing, nil)

	_, err := p.Resolve(context.Background(), validRequest())
	assert.ErrorIs(t, err, selection.ErrNoViableOpenOption)
}

// TestPipelineWritesSnapshots verifies stage snapshots land in the configured
// backend under the request's key prefix.
func TestPipelineWritesSnapshots(t *testing.T) {
	backend, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	search := &mockSearchSource{pharmacies: []selection.Pharmacy{
		openPharmacy("ph-a", 2000, 43.24, 76.95),
	}}
	pricing := newMockPricingSource()
	pricing.quotes["ph-a"] = []selection.DeliveryQuote{{Price: 500, EtaMinutes: 30}}

	p := newTestPipeline(t, search, pricing, NewSnapshotWriter(backend))

	_, err = p.Resolve(context.Background(), validRequest())
	require.NoError(t, err)

	keys, err := backend.List(context.Background(), "snapshots/")
	require.NoError(t, err)
	require.Len(t, keys, 6)

	stages := make(map[string]bool)
	for _, key := range keys {
		for _, stage := range []string{"search", "filtered", "cheapest", "closest", "options", "result"} {
			if strings.HasSuffix(key, "/"+stage+".json") {
				stages[stage] = true
			}
		}
	}
	assert.Len(t, stages, 6)
}

// TestPipelineNilSnapshotsSafe verifies the pipeline runs with persistence
// disabled.
func TestPipelineNilSnapshotsSafe(t *testing.T) {
	search := &mockSearchSource{pharmacies: []selection.Pharmacy{
		openPharmacy("ph-a", 2000, 43.24, 76.95),
	}}
	pricing := newMockPricingSource()
	pricing.quotes["ph-a"] = []selection.DeliveryQuote{{Price: 500, EtaMinutes: 30}}

	p := newTestPipeline(t, search, pricing, nil)

	result, err := p.Resolve(context.Background(), validRequest())
	require.NoError(t, err)
	assert.NotNil(t, result.Cheapest)
}
