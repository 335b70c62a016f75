package selection

import "time"

// Config holds the selection policy settings. The shortlist sizes, the
// closing-soon window and the closed-override ratio are product policy;
// defaults must not change without product confirmation.
type Config struct {
	// Shortlist sizes for candidate ranking
	TopCheapest int `mapstructure:"top_cheapest"`
	TopClosest  int `mapstructure:"top_closest"`

	// ClosingSoonWindow is how long before closing a pharmacy counts as
	// closing soon. The boundary is inclusive.
	ClosingSoonWindow time.Duration `mapstructure:"closing_soon_window"`

	// ClosedOverrideRatio is the price/ETA fraction a closed pharmacy must
	// beat (inclusive) to be surfaced alongside the best open one.
	ClosedOverrideRatio float64 `mapstructure:"closed_override_ratio"`

	// Timezone is the deployment's operating region, used to interpret
	// closing times against the evaluation instant.
	Timezone string `mapstructure:"timezone"`

	// AlwaysOpenSentinel is the opening_hours literal the search service
	// emits for round-the-clock pharmacies.
	AlwaysOpenSentinel string `mapstructure:"always_open_sentinel"`
}

// Defaults returns the default selection policy.
func Defaults() *Config {
	return &Config{
		TopCheapest:         3,
		TopClosest:          2,
		ClosingSoonWindow:   1 * time.Hour,
		ClosedOverrideRatio: 0.7,
		Timezone:            "Asia/Almaty",
		AlwaysOpenSentinel:  "Круглосуточно",
	}
}

// Validate validates the selection policy and returns an error if invalid.
func (c *Config) Validate() error {
	if c.TopCheapest < 1 {
		return ErrInvalidConfig{Field: "top_cheapest", Reason: "must be at least 1"}
	}
	if c.TopClosest < 1 {
		return ErrInvalidConfig{Field: "top_closest", Reason: "must be at least 1"}
	}
	if c.ClosingSoonWindow <= 0 {
		return ErrInvalidConfig{Field: "closing_soon_window", Reason: "must be positive"}
	}
	if c.ClosedOverrideRatio <= 0 || c.ClosedOverrideRatio >= 1 {
		return ErrInvalidConfig{Field: "closed_override_ratio", Reason: "must be between 0 and 1"}
	}
	if c.Timezone == "" {
		return ErrInvalidConfig{Field: "timezone", Reason: "cannot be empty"}
	}
	if c.AlwaysOpenSentinel == "" {
		return ErrInvalidConfig{Field: "always_open_sentinel", Reason: "cannot be empty"}
	}
	return nil
}

// ErrInvalidConfig is returned when the selection policy is invalid.
type ErrInvalidConfig struct {
	Field  string
	Reason string
}

func (e ErrInvalidConfig) Error() string {
	return e.Field + ": " + e.Reason
}
