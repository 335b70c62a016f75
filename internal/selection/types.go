package selection

import "time"

// SkuRequest is a single requested basket line.
type SkuRequest struct {
	Sku          string `json:"sku"`
	CountDesired int    `json:"count_desired"`
}

// ProductOffer is a per-pharmacy stock snapshot for one SKU, as reported
// by the search service. Quantity is what the pharmacy has on shelf,
// QuantityDesired is carried over from the original request.
type ProductOffer struct {
	Sku             string `json:"sku"`
	Name            string `json:"name,omitempty"`
	BasePrice       int64  `json:"base_price,omitempty"`
	Quantity        int    `json:"quantity"`
	QuantityDesired int    `json:"quantity_desired"`
}

// Satisfied reports whether the offer fully covers its own requested quantity.
// Lines with no requested quantity are trivially satisfied.
func (o ProductOffer) Satisfied() bool {
	if o.QuantityDesired <= 0 {
		return true
	}
	return o.Quantity >= o.QuantityDesired
}

// PharmacySource is the pharmacy identity and store-hours metadata block of a
// search result. Code is the only required field; a pharmacy without a code
// cannot be quoted and is excluded wherever it appears.
type PharmacySource struct {
	Code         string  `json:"code"`
	Name         string  `json:"name,omitempty"`
	City         string  `json:"city,omitempty"`
	Address      string  `json:"address,omitempty"`
	Lat          float64 `json:"lat"`
	Lon          float64 `json:"lon"`
	OpeningHours string  `json:"opening_hours,omitempty"`
	// ClosesAt is an absolute UTC instant in "2006-01-02T15:04:05Z" wire
	// format. Empty for pharmacies the upstream reports no closing time for.
	ClosesAt string `json:"closes_at,omitempty"`
	OpensAt  string `json:"opens_at,omitempty"`
}

// Pharmacy is one search result: a store, its per-SKU offers and the basket
// total at that store. TotalSum is in minor currency units.
type Pharmacy struct {
	Source   PharmacySource `json:"source"`
	Products []ProductOffer `json:"products"`
	TotalSum int64          `json:"total_sum"`
}

// FullyStocked reports whether every requested line is fully available.
func (p Pharmacy) FullyStocked() bool {
	for _, offer := range p.Products {
		if !offer.Satisfied() {
			return false
		}
	}
	return true
}

// GeoPoint is a delivery destination. Field names match the wire format of
// both the inbound API and the pricing service ("lat"/"lng").
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// DeliveryQuote is one delivery method offered by the pricing service for a
// pharmacy. Price is in minor currency units, EtaMinutes is the promised
// delivery time in minutes.
type DeliveryQuote struct {
	Price      int64 `json:"price"`
	EtaMinutes int64 `json:"eta"`
}

// Eta returns the quote's delivery time as a duration.
func (q DeliveryQuote) Eta() time.Duration {
	return time.Duration(q.EtaMinutes) * time.Minute
}

// CandidateOption pairs a pharmacy with one of its delivery quotes.
// TotalPrice is always Pharmacy.TotalSum + Delivery.Price, exactly.
// Candidate options are ephemeral: built by the quote collector, consumed by
// the resolver, never persisted.
type CandidateOption struct {
	Pharmacy   Pharmacy      `json:"pharmacy"`
	TotalPrice int64         `json:"total_price"`
	Delivery   DeliveryQuote `json:"delivery_option"`
}

// BestOptionResult is the final decision: the cheapest and fastest picks among
// open pharmacies, each with an optional policy-driven alternative. Field
// names follow the public response contract.
type BestOptionResult struct {
	Cheapest            *CandidateOption `json:"cheapest_delivery_option"`
	CheapestAlternative *CandidateOption `json:"alternative_cheapest_option"`
	Fastest             *CandidateOption `json:"fastest_delivery_option"`
	FastestAlternative  *CandidateOption `json:"alternative_fastest_option"`
}
