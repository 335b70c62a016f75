package selection

import (
	"math"
	"sort"
)

// PlanarDistance is the flat-earth approximation used for city-scale ranking:
// plain Euclidean distance over raw lat/lon degrees. It is not geodesically
// correct and its unit is degrees, which is fine for ordering pharmacies
// within one city. Swapping in a geodesic implementation only requires
// replacing this function.
func PlanarDistance(lat1, lon1, lat2, lon2 float64) float64 {
	return math.Sqrt((lat2-lat1)*(lat2-lat1) + (lon2-lon1)*(lon2-lon1))
}

// TopCheapest returns up to n pharmacies ordered ascending by basket total.
// The sort is stable: equal totals keep their input order, so later
// first-seen tie-breaks in the resolver stay deterministic.
func TopCheapest(pharmacies []Pharmacy, n int) []Pharmacy {
	ranked := make([]Pharmacy, len(pharmacies))
	copy(ranked, pharmacies)

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].TotalSum < ranked[j].TotalSum
	})

	return truncate(ranked, n)
}

// TopClosest returns up to n pharmacies ordered ascending by planar distance
// from the delivery destination. Stable, like TopCheapest.
func TopClosest(pharmacies []Pharmacy, destination GeoPoint, n int) []Pharmacy {
	ranked := make([]Pharmacy, len(pharmacies))
	copy(ranked, pharmacies)

	distance := func(p Pharmacy) float64 {
		return PlanarDistance(destination.Lat, destination.Lng, p.Source.Lat, p.Source.Lon)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return distance(ranked[i]) < distance(ranked[j])
	})

	return truncate(ranked, n)
}

// MergeShortlists concatenates the two shortlists, dropping pharmacies
// without a code and deduplicating by code with first appearance winning.
// Order is preserved so discovery order carries through to quoting.
func MergeShortlists(lists ...[]Pharmacy) []Pharmacy {
	seen := make(map[string]bool)
	var merged []Pharmacy
	for _, list := range lists {
		for _, pharmacy := range list {
			code := pharmacy.Source.Code
			if code == "" || seen[code] {
				continue
			}
			seen[code] = true
			merged = append(merged, pharmacy)
		}
	}
	return merged
}

func truncate(pharmacies []Pharmacy, n int) []Pharmacy {
	if n < 0 {
		n = 0
	}
	if len(pharmacies) > n {
		return pharmacies[:n]
	}
	return pharmacies
}
