package selection

import (
	"fmt"
	"time"
)

// AvailabilityState is the store-hours state of a pharmacy at an evaluation
// instant. It is derived, never stored.
type AvailabilityState int

const (
	StateOpen AvailabilityState = iota
	StateClosingSoon
	StateClosed
)

// String returns the string representation of the availability state.
func (s AvailabilityState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosingSoon:
		return "closing_soon"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// closesAtLayout is the wire format of the search service's closes_at field.
const closesAtLayout = "2006-01-02T15:04:05Z"

// Classifier derives a pharmacy's availability state from its hours metadata
// and an injected evaluation instant. It never reads the system clock, so
// classifications are deterministic and reproducible in tests.
type Classifier struct {
	location   *time.Location
	window     time.Duration
	alwaysOpen string
}

// NewClassifier creates a classifier for the configured operating region.
func NewClassifier(cfg *Config) (*Classifier, error) {
	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %s: %w", cfg.Timezone, err)
	}
	return &Classifier{
		location:   location,
		window:     cfg.ClosingSoonWindow,
		alwaysOpen: cfg.AlwaysOpenSentinel,
	}, nil
}

// Classify returns the availability state of a pharmacy at now.
//
// The always-open sentinel wins over any closes_at value. A missing or
// unparsable closes_at means the upstream reported no closing time, which is
// treated as open. Otherwise: now at or past closing is closed, within the
// closing-soon window (inclusive) is closing soon, anything else is open.
func (c *Classifier) Classify(closesAt, openingHours string, now time.Time) AvailabilityState {
	if openingHours == c.alwaysOpen {
		return StateOpen
	}
	if closesAt == "" {
		return StateOpen
	}

	closes, err := time.Parse(closesAtLayout, closesAt)
	if err != nil {
		return StateOpen
	}

	localCloses := closes.In(c.location)
	localNow := now.In(c.location)

	if !localNow.Before(localCloses) {
		return StateClosed
	}
	if localCloses.Sub(localNow) <= c.window {
		return StateClosingSoon
	}
	return StateOpen
}

// ClassifyPharmacy is a convenience wrapper over Classify for a search result.
func (c *Classifier) ClassifyPharmacy(p Pharmacy, now time.Time) AvailabilityState {
	return c.Classify(p.Source.ClosesAt, p.Source.OpeningHours, now)
}
