package selection

import "errors"

// Distinguishable pipeline outcomes. These are not failures of the service
// itself and must never be folded into a generic error.
var (
	// ErrNoFulfillablePharmacy means no pharmacy can fully satisfy the basket.
	ErrNoFulfillablePharmacy = errors.New("no pharmacy can fulfill the requested basket")

	// ErrNoViableOpenOption means every quoted candidate is closed.
	ErrNoViableOpenOption = errors.New("no viable open delivery option")
)

// ValidationError is returned when a resolve request is rejected before any
// collaborator call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Reason
}
