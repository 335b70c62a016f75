package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/daribar/best-options-service/internal/pipeline"
	"github.com/daribar/best-options-service/internal/selection"
)

// BestOptionsResolver runs the resolve pipeline. Implemented by
// pipeline.Pipeline; tests substitute their own.
type BestOptionsResolver interface {
	Resolve(ctx context.Context, req pipeline.Request) (*selection.BestOptionResult, error)
}

// SkuItem is one requested SKU line in the public request.
type SkuItem struct {
	Sku          string `json:"sku"`
	CountDesired int    `json:"count_desired"`
}

// Address is the delivery destination in the public request. Coordinates are
// pointers so that missing and zero values are distinguishable.
type Address struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

// BestOptionsRequest is the public request body.
type BestOptionsRequest struct {
	City    string    `json:"city"`
	Skus    []SkuItem `json:"skus"`
	Address *Address  `json:"address"`
}

// Global resolver instance (initialized by the application)
var bestOptionsResolver BestOptionsResolver

// Init wires the resolver used by the handlers.
// This should be called during application startup.
func Init(resolver BestOptionsResolver) {
	bestOptionsResolver = resolver
}

// BestOptions handles the resolve-best-options operation.
// POST /best-options
func BestOptions(c *gin.Context) {
	var req BestOptionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{"field": "body", "reason": err.Error()},
		})
		return
	}

	if err := validateRequest(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{"field": err.Field, "reason": err.Reason},
		})
		return
	}

	if bestOptionsResolver == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": gin.H{"code": "not_ready"}})
		return
	}

	skus := make([]selection.SkuRequest, len(req.Skus))
	for i, item := range req.Skus {
		skus[i] = selection.SkuRequest{Sku: item.Sku, CountDesired: item.CountDesired}
	}

	result, err := bestOptionsResolver.Resolve(c.Request.Context(), pipeline.Request{
		City: req.City,
		Skus: skus,
		Address: selection.GeoPoint{
			Lat: *req.Address.Lat,
			Lng: *req.Address.Lng,
		},
	})

	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "ok", "result": result})

	case errors.Is(err, selection.ErrNoViableOpenOption):
		// Quoting succeeded but every candidate is closed; distinguishable
		// from both "nothing in stock" and plain failure.
		c.JSON(http.StatusOK, gin.H{"status": "no_viable_open_option", "result": nil})

	case errors.Is(err, selection.ErrNoFulfillablePharmacy):
		c.JSON(http.StatusNotFound, gin.H{
			"error": gin.H{"code": "no_fulfillable_pharmacy", "message": err.Error()},
		})

	case errors.Is(err, pipeline.ErrSearchUnavailable):
		c.JSON(http.StatusBadGateway, gin.H{
			"error": gin.H{"code": "search_unavailable", "message": err.Error()},
		})

	default:
		var validation selection.ValidationError
		if errors.As(err, &validation) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": gin.H{"field": validation.Field, "reason": validation.Reason},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"code": "internal", "message": err.Error()},
		})
	}
}

// validateRequest checks the transport-level required fields before the
// request reaches the pipeline.
func validateRequest(req BestOptionsRequest) *selection.ValidationError {
	if req.City == "" {
		return &selection.ValidationError{Field: "city", Reason: "is required"}
	}
	if len(req.Skus) == 0 {
		return &selection.ValidationError{Field: "skus", Reason: "must have at least one item"}
	}
	if req.Address == nil {
		return &selection.ValidationError{Field: "address", Reason: "is required"}
	}
	if req.Address.Lat == nil {
		return &selection.ValidationError{Field: "address.lat", Reason: "is required"}
	}
	if req.Address.Lng == nil {
		return &selection.ValidationError{Field: "address.lng", Reason: "is required"}
	}
	return nil
}
