// Package pipeline orchestrates one resolve request end to end: search the
// city for the basket, filter to fully-stocked pharmacies, rank the cheapest
// and closest shortlists, collect delivery quotes, and resolve the best
// options.
package pipeline

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/daribar/best-options-service/internal/clients"
	"github.com/daribar/best-options-service/internal/quotes"
	"github.com/daribar/best-options-service/internal/selection"
)

// ErrSearchUnavailable wraps a search collaborator failure. It is fatal to
// the request: without search results there are no candidates to rank.
var ErrSearchUnavailable = errors.New("search service unavailable")

// SearchSource is the search collaborator as the pipeline sees it.
// Implemented by clients.SearchClient; tests substitute their own.
type SearchSource interface {
	Search(ctx context.Context, encodedCity string, items []clients.SearchItem) ([]selection.Pharmacy, error)
}

// Request is one resolve request after transport decoding.
type Request struct {
	City    string
	Skus    []selection.SkuRequest
	Address selection.GeoPoint
}

// Validate rejects a request before any collaborator call.
func (r Request) Validate() error {
	if r.City == "" {
		return selection.ValidationError{Field: "city", Reason: "cannot be empty"}
	}
	if len(r.Skus) == 0 {
		return selection.ValidationError{Field: "skus", Reason: "must have at least one item"}
	}
	for i, sku := range r.Skus {
		if sku.Sku == "" {
			return selection.ValidationError{Field: "skus", Reason: fmt.Sprintf("item at index %d has empty sku", i)}
		}
		if sku.CountDesired <= 0 {
			return selection.ValidationError{Field: "skus", Reason: fmt.Sprintf("item at index %d has invalid count_desired", i)}
		}
	}
	return nil
}

// Pipeline wires the pipeline stages together.
type Pipeline struct {
	search    SearchSource
	collector *quotes.Collector
	resolver  *selection.Resolver
	policy    *selection.Config
	snapshots *SnapshotWriter
	metrics   *selection.MetricsRecorder
	tracer    trace.Tracer
	logger    zerolog.Logger

	// now is the clock source, injectable for tests. The evaluation instant
	// is captured once per resolution and reused for every classification.
	now func() time.Time
}

// New creates a pipeline. snapshots may be nil to disable stage persistence.
func New(search SearchSource, collector *quotes.Collector, resolver *selection.Resolver, policy *selection.Config, snapshots *SnapshotWriter) *Pipeline {
	return &Pipeline{
		search:    search,
		collector: collector,
		resolver:  resolver,
		policy:    policy,
		snapshots: snapshots,
		metrics:   selection.NewMetricsRecorder(),
		tracer:    otel.Tracer("best-options-pipeline"),
		logger:    log.With().Str("component", "pipeline").Logger(),
		now:       time.Now,
	}
}

// WithClock overrides the pipeline clock. Intended for tests.
func (p *Pipeline) WithClock(now func() time.Time) *Pipeline {
	p.now = now
	return p
}

// Resolve runs the full decision pipeline for one request.
//
// Outcomes surface as typed errors: a ValidationError before any collaborator
// call, ErrSearchUnavailable when search fails, ErrNoFulfillablePharmacy when
// no pharmacy covers the basket, ErrNoViableOpenOption when every quoted
// candidate is closed.
func (p *Pipeline) Resolve(ctx context.Context, req Request) (*selection.BestOptionResult, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.resolve",
		trace.WithAttributes(
			attribute.String("city", req.City),
			attribute.Int("basket_items", len(req.Skus)),
		))
	defer span.End()

	if err := req.Validate(); err != nil {
		p.metrics.RecordOutcome("validation_error")
		return nil, err
	}
	p.metrics.RecordBasketSize(len(req.Skus))

	requestID := newRequestID()
	logger := p.logger.With().Str("request_id", requestID).Str("city", req.City).Logger()

	searchItems := make([]clients.SearchItem, len(req.Skus))
	for i, sku := range req.Skus {
		searchItems[i] = clients.SearchItem{Sku: sku.Sku, CountDesired: sku.CountDesired}
	}

	pharmacies, err := p.search.Search(ctx, req.City, searchItems)
	if err != nil {
		p.metrics.RecordOutcome("search_failed")
		return nil, fmt.Errorf("%w: %w", ErrSearchUnavailable, err)
	}
	logger.Info().Int("pharmacies", len(pharmacies)).Msg("Search completed")
	p.snapshots.Save(ctx, requestID, "search", pharmacies)

	filtered := selection.FilterInStock(pharmacies)
	p.snapshots.Save(ctx, requestID, "filtered", filtered)
	if len(filtered) == 0 {
		logger.Info().Msg("No pharmacy can fulfill the basket")
		p.metrics.RecordOutcome("no_fulfillable_pharmacy")
		return nil, selection.ErrNoFulfillablePharmacy
	}

	cheapest := selection.TopCheapest(filtered, p.policy.TopCheapest)
	closest := selection.TopClosest(filtered, req.Address, p.policy.TopClosest)
	p.snapshots.Save(ctx, requestID, "cheapest", cheapest)
	p.snapshots.Save(ctx, requestID, "closest", closest)

	// Closest shortlist leads the merged order; resolver tie-breaks depend
	// on discovery order staying put from here on.
	shortlist := selection.MergeShortlists(closest, cheapest)
	p.metrics.RecordShortlistSize(len(shortlist))
	logger.Info().
		Int("filtered", len(filtered)).
		Int("shortlist", len(shortlist)).
		Msg("Shortlists ranked")

	options := p.collector.Collect(ctx, shortlist, req.Address)
	p.snapshots.Save(ctx, requestID, "options", options)

	result, err := p.resolver.Resolve(options, p.now())
	if err != nil {
		if errors.Is(err, selection.ErrNoViableOpenOption) {
			logger.Info().Int("options", len(options)).Msg("No viable open option")
			p.metrics.RecordOutcome("no_viable_open_option")
		}
		return nil, err
	}
	p.snapshots.Save(ctx, requestID, "result", result)
	p.metrics.RecordOutcome("ok")

	span.SetAttributes(attribute.Int("candidate_options", len(options)))
	logger.Info().Int("options", len(options)).Msg("Resolved best options")

	return result, nil
}

// newRequestID returns a short random identifier for snapshot correlation.
func newRequestID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("t%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}
