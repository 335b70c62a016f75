package selection

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClassifier(t *testing.T) *Classifier {
	t.Helper()
	classifier, err := NewClassifier(Defaults())
	require.NoError(t, err)
	return classifier
}

// TestClassifyAlwaysOpenSentinel verifies that the round-the-clock sentinel
// wins over any closes_at value, including one already in the past.
func TestClassifyAlwaysOpenSentinel(t *testing.T) {
	classifier := newTestClassifier(t)
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	state := classifier.Classify("2024-03-15T10:00:00Z", "Круглосуточно", now)
	assert.Equal(t, StateOpen, state)
}

// TestClassifyMissingClosesAt verifies that a pharmacy without a reported
// closing time is treated as open.
func TestClassifyMissingClosesAt(t *testing.T) {
	classifier := newTestClassifier(t)
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, StateOpen, classifier.Classify("", "", now))
}

// TestClassifyUnparsableClosesAt verifies that a malformed closes_at does not
// fail the classification and falls back to open.
func TestClassifyUnparsableClosesAt(t *testing.T) {
	classifier := newTestClassifier(t)
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, StateOpen, classifier.Classify("not-a-timestamp", "", now))
}

// TestClassifyBoundaries verifies the state transitions around the closing
// instant and the closing-soon window. The window boundary is inclusive and
// the closing instant itself counts as closed.
func TestClassifyBoundaries(t *testing.T) {
	classifier := newTestClassifier(t)
	closesAt := "2024-03-15T18:00:00Z"
	closes := time.Date(2024, 3, 15, 18, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		now      time.Time
		expected AvailabilityState
	}{
		{"well before closing", closes.Add(-5 * time.Hour), StateOpen},
		{"one second outside the window", closes.Add(-time.Hour - time.Second), StateOpen},
		{"exactly one hour before closing", closes.Add(-time.Hour), StateClosingSoon},
		{"one minute before closing", closes.Add(-time.Minute), StateClosingSoon},
		{"exactly at closing", closes, StateClosed},
		{"after closing", closes.Add(time.Minute), StateClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := classifier.Classify(closesAt, "", tt.now)
			assert.Equal(t, tt.expected, state)
		})
	}
}

// TestClassifyNowInOtherZone verifies that the evaluation instant is compared
// as an instant, regardless of the zone it is expressed in.
func TestClassifyNowInOtherZone(t *testing.T) {
	classifier := newTestClassifier(t)
	closesAt := "2024-03-15T18:00:00Z"

	almaty, err := time.LoadLocation("Asia/Almaty")
	require.NoError(t, err)

	// 23:30 in Almaty (UTC+5) is 18:30 UTC, past closing.
	now := time.Date(2024, 3, 15, 23, 30, 0, 0, almaty)
	assert.Equal(t, StateClosed, classifier.Classify(closesAt, "", now))

	// 22:30 in Almaty is 17:30 UTC, inside the closing-soon window.
	now = time.Date(2024, 3, 15, 22, 30, 0, 0, almaty)
	assert.Equal(t, StateClosingSoon, classifier.Classify(closesAt, "", now))
}

// TestClassifyPharmacy verifies the wrapper reads hours metadata off the
// search result.
func TestClassifyPharmacy(t *testing.T) {
	classifier := newTestClassifier(t)
	now := time.Date(2024, 3, 15, 17, 30, 0, 0, time.UTC)

	pharmacy := Pharmacy{Source: PharmacySource{
		Code:     "ph-1",
		ClosesAt: "2024-03-15T18:00:00Z",
	}}
	assert.Equal(t, StateClosingSoon, classifier.ClassifyPharmacy(pharmacy, now))
}

// TestNewClassifierInvalidTimezone verifies that an unknown timezone is
// rejected at construction time.
func TestNewClassifierInvalidTimezone(t *testing.T) {
	cfg := Defaults()
	cfg.Timezone = "Mars/Olympus"

	_, err := NewClassifier(cfg)
	assert.Error(t, err)
}

// TestAvailabilityStateString verifies the log representation of states.
func TestAvailabilityStateString(t *testing.T) {
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "closing_soon", StateClosingSoon.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "unknown", AvailabilityState(99).String())
}
