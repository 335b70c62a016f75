package selection

// FilterInStock keeps only pharmacies that can fully satisfy every requested
// line: every offer with a positive desired quantity must have at least that
// much on shelf. An empty input yields an empty output, not an error.
func FilterInStock(pharmacies []Pharmacy) []Pharmacy {
	filtered := make([]Pharmacy, 0, len(pharmacies))
	for _, pharmacy := range pharmacies {
		if pharmacy.FullyStocked() {
			filtered = append(filtered, pharmacy)
		}
	}
	return filtered
}
