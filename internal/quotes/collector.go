// Package quotes collects delivery quotes for shortlisted pharmacies and
// expands them into priced candidate options.
package quotes

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/daribar/best-options-service/internal/clients"
	"github.com/daribar/best-options-service/internal/selection"
)

// PricingSource is the pricing collaborator as the collector sees it.
// Implemented by clients.PricingClient; tests substitute their own.
type PricingSource interface {
	Quote(ctx context.Context, req clients.QuoteRequest) ([]selection.DeliveryQuote, error)
}

// Config holds the collector settings.
type Config struct {
	// Timeout bounds each outbound quote request.
	Timeout time.Duration `mapstructure:"timeout"`
	// Concurrency bounds the quote fan-out.
	Concurrency int `mapstructure:"concurrency"`
}

// Defaults returns the default collector settings.
func Defaults() Config {
	return Config{
		Timeout:     10 * time.Second,
		Concurrency: 4,
	}
}

// Collector fans out one quote request per shortlisted pharmacy. Requests are
// independent: a failed or timed-out quote only drops that pharmacy, never
// the batch. Results are merged after every request finishes, preserving
// shortlist discovery order, because the resolver's tie-breaks and
// alternative policy depend on the full candidate set in order.
type Collector struct {
	pricing PricingSource
	timeout time.Duration
	sem     *semaphore.Weighted
	metrics *selection.MetricsRecorder
	logger  zerolog.Logger
}

// NewCollector creates a collector over the given pricing source.
func NewCollector(pricing PricingSource, cfg Config) *Collector {
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Collector{
		pricing: pricing,
		timeout: cfg.Timeout,
		sem:     semaphore.NewWeighted(int64(concurrency)),
		metrics: selection.NewMetricsRecorder(),
		logger:  log.With().Str("component", "quote_collector").Logger(),
	}
}

// Collect requests delivery quotes for every pharmacy in the shortlist and
// expands each returned delivery method into a candidate option carrying
// total_price = basket total + delivery price. Pharmacies without a code or
// without a single purchasable line are skipped up front; pharmacies whose
// quote fails are skipped with a recorded failure. One attempt per pharmacy
// per invocation; retries are not the collector's concern.
func (c *Collector) Collect(ctx context.Context, shortlist []selection.Pharmacy, destination selection.GeoPoint) []selection.CandidateOption {
	// Per-slot buckets keep the merged output in shortlist order regardless
	// of which request finishes first.
	buckets := make([][]selection.CandidateOption, len(shortlist))

	var wg sync.WaitGroup
	for i, pharmacy := range shortlist {
		if pharmacy.Source.Code == "" {
			c.logger.Warn().Str("pharmacy", pharmacy.Source.Name).
				Msg("Skipping pharmacy without code")
			continue
		}

		items := purchasableItems(pharmacy)
		if len(items) == 0 {
			c.logger.Warn().Str("pharmacy", pharmacy.Source.Code).
				Msg("Skipping pharmacy with no purchasable items")
			continue
		}

		if err := c.sem.Acquire(ctx, 1); err != nil {
			c.logger.Warn().Err(err).Msg("Quote fan-out cancelled")
			break
		}

		wg.Add(1)
		go func(slot int, pharmacy selection.Pharmacy, items []clients.QuoteItem) {
			defer c.sem.Release(1)
			defer wg.Done()

			quoteCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()

			deliveries, err := c.pricing.Quote(quoteCtx, clients.QuoteRequest{
				Items:      items,
				Dst:        destination,
				SourceCode: pharmacy.Source.Code,
			})
			if err != nil {
				c.metrics.RecordQuoteFailure("pricing_error")
				c.logger.Warn().Err(err).Str("pharmacy", pharmacy.Source.Code).
					Msg("Skipping pharmacy after failed quote")
				return
			}

			options := make([]selection.CandidateOption, 0, len(deliveries))
			for _, delivery := range deliveries {
				options = append(options, selection.CandidateOption{
					Pharmacy:   pharmacy,
					Delivery:   delivery,
					TotalPrice: pharmacy.TotalSum + delivery.Price,
				})
			}
			buckets[slot] = options
		}(i, pharmacy, items)
	}
	wg.Wait()

	var collected []selection.CandidateOption
	for _, bucket := range buckets {
		collected = append(collected, bucket...)
	}

	c.logger.Info().
		Int("pharmacies", len(shortlist)).
		Int("options", len(collected)).
		Msg("Quote collection completed")

	return collected
}

// purchasableItems builds the quote request lines from the offers that fully
// satisfy their own requested quantity.
func purchasableItems(pharmacy selection.Pharmacy) []clients.QuoteItem {
	items := make([]clients.QuoteItem, 0, len(pharmacy.Products))
	for _, offer := range pharmacy.Products {
		if offer.QuantityDesired > 0 && offer.Quantity >= offer.QuantityDesired {
			items = append(items, clients.QuoteItem{
				Sku:      offer.Sku,
				Quantity: offer.QuantityDesired,
			})
		}
	}
	return items
}
