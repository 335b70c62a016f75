package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/daribar/best-options-service/internal/clients"
	"github.com/daribar/best-options-service/internal/pipeline"
	"github.com/daribar/best-options-service/internal/quotes"
	"github.com/daribar/best-options-service/internal/selection"
	"github.com/daribar/best-options-service/internal/storage"
)

var (
	resolveCity      string
	resolveSkus      []string
	resolveLat       float64
	resolveLng       float64
	resolveSnapshots bool
	resolveTimeout   time.Duration
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve the best purchase-and-delivery options for a basket",
	Long: `Runs the full decision pipeline once: searches pharmacies in the city,
filters to those that can fully satisfy the basket, ranks the cheapest and
closest shortlists, collects delivery quotes, and prints the resolved best
options as JSON.

SKU lines are given as --sku "<sku-id>:<count>", repeatable.`,
	RunE: runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)

	resolveCmd.Flags().StringVar(&resolveCity, "city", "", "encoded city identifier (required)")
	resolveCmd.Flags().StringArrayVar(&resolveSkus, "sku", nil, "SKU line as <sku-id>:<count>, repeatable (required)")
	resolveCmd.Flags().Float64Var(&resolveLat, "lat", 0, "delivery destination latitude (required)")
	resolveCmd.Flags().Float64Var(&resolveLng, "lng", 0, "delivery destination longitude (required)")
	resolveCmd.Flags().BoolVar(&resolveSnapshots, "snapshots", false, "persist stage snapshots to the configured storage path")
	resolveCmd.Flags().DurationVar(&resolveTimeout, "timeout", 60*time.Second, "overall resolution timeout")

	resolveCmd.MarkFlagRequired("city")
	resolveCmd.MarkFlagRequired("sku")
	resolveCmd.MarkFlagRequired("lat")
	resolveCmd.MarkFlagRequired("lng")
}

func runResolve(cmd *cobra.Command, args []string) error {
	skus, err := parseSkuFlags(resolveSkus)
	if err != nil {
		return err
	}

	searchClient := clients.NewSearchClient(cfg.Clients.SearchURL, cfg.Clients.SearchTimeout)
	pricingClient := clients.NewPricingClient(clients.PricingClientConfig{
		BaseURL:           cfg.Clients.PriceURL,
		Timeout:           cfg.Clients.PriceTimeout,
		RequestsPerSecond: cfg.Clients.PricingRPS,
		Burst:             cfg.Clients.PricingBurst,
	})

	classifier, err := selection.NewClassifier(&cfg.Selection)
	if err != nil {
		return fmt.Errorf("failed to build classifier: %w", err)
	}
	resolver := selection.NewResolver(classifier, &cfg.Selection)
	collector := quotes.NewCollector(pricingClient, cfg.Quotes)

	var snapshots *pipeline.SnapshotWriter
	if resolveSnapshots || cfg.Storage.SnapshotsEnabled {
		backend, err := storage.NewLocalStorage(cfg.Storage.BasePath)
		if err != nil {
			return fmt.Errorf("failed to init snapshot storage: %w", err)
		}
		snapshots = pipeline.NewSnapshotWriter(backend)
		logger.Info().Str("base_path", cfg.Storage.BasePath).Msg("Stage snapshots enabled")
	}

	resolvePipeline := pipeline.New(searchClient, collector, resolver, &cfg.Selection, snapshots)

	ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	defer cancel()

	result, err := resolvePipeline.Resolve(ctx, pipeline.Request{
		City:    resolveCity,
		Skus:    skus,
		Address: selection.GeoPoint{Lat: resolveLat, Lng: resolveLng},
	})
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// parseSkuFlags parses repeatable "<sku-id>:<count>" flags into basket lines.
func parseSkuFlags(flags []string) ([]selection.SkuRequest, error) {
	skus := make([]selection.SkuRequest, 0, len(flags))
	for _, flag := range flags {
		idx := strings.LastIndex(flag, ":")
		if idx <= 0 || idx == len(flag)-1 {
			return nil, fmt.Errorf("invalid --sku %q: expected <sku-id>:<count>", flag)
		}
		count, err := strconv.Atoi(flag[idx+1:])
		if err != nil || count <= 0 {
			return nil, fmt.Errorf("invalid --sku %q: count must be a positive integer", flag)
		}
		skus = append(skus, selection.SkuRequest{Sku: flag[:idx], CountDesired: count})
	}
	return skus, nil
}
