package selection

import (
	"math"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Resolver implements the best-option decision over collected candidate
// options. It is a single-pass, side-effect-free computation: the only
// external input besides the candidates is the injected evaluation instant,
// captured once and reused for every classification so that all state
// comparisons within one resolution are internally consistent.
type Resolver struct {
	classifier *Classifier
	config     *Config
	metrics    *MetricsRecorder
	logger     zerolog.Logger
}

// NewResolver creates a resolver with the given classifier and policy.
func NewResolver(classifier *Classifier, config *Config) *Resolver {
	return &Resolver{
		classifier: classifier,
		config:     config,
		metrics:    NewMetricsRecorder(),
		logger:     log.With().Str("component", "resolver").Logger(),
	}
}

type classifiedOption struct {
	option CandidateOption
	state  AvailabilityState
}

// Resolve picks the cheapest and fastest candidates among open pharmacies,
// with policy-driven alternatives per axis:
//
//   - if the leading pick closes soon, the best strictly-open candidate is
//     offered as an alternative;
//   - a closed pharmacy that undercuts the leading pick by the override ratio
//     is surfaced instead, as worth a special order despite being closed.
//
// When every candidate's pharmacy is closed, Resolve returns
// ErrNoViableOpenOption rather than an empty result.
func (r *Resolver) Resolve(options []CandidateOption, now time.Time) (*BestOptionResult, error) {
	start := time.Now()
	defer func() {
		r.metrics.RecordResolveDuration(time.Since(start))
	}()
	r.metrics.RecordCandidateCount(len(options))

	candidates := make([]classifiedOption, 0, len(options))
	for _, option := range options {
		if option.Pharmacy.Source.Code == "" {
			// Should have been dropped at quoting already.
			r.logger.Warn().Str("pharmacy", option.Pharmacy.Source.Name).
				Msg("Dropping candidate without pharmacy code")
			continue
		}
		state := r.classifier.ClassifyPharmacy(option.Pharmacy, now)
		r.logger.Debug().
			Str("pharmacy", option.Pharmacy.Source.Code).
			Str("state", state.String()).
			Int64("total_price", option.TotalPrice).
			Int64("eta_minutes", option.Delivery.EtaMinutes).
			Msg("Classified candidate")
		candidates = append(candidates, classifiedOption{option: option, state: state})
	}

	byPrice := func(o CandidateOption) int64 { return o.TotalPrice }
	byEta := func(o CandidateOption) int64 { return o.Delivery.EtaMinutes }

	cheapest, cheapestAlt := r.resolveAxis(candidates, byPrice, "price")
	fastest, fastestAlt := r.resolveAxis(candidates, byEta, "eta")

	if cheapest == nil && fastest == nil {
		return nil, ErrNoViableOpenOption
	}

	return &BestOptionResult{
		Cheapest:            cheapest,
		CheapestAlternative: cheapestAlt,
		Fastest:             fastest,
		FastestAlternative:  fastestAlt,
	}, nil
}

// resolveAxis resolves one comparison axis (total price or ETA).
func (r *Resolver) resolveAxis(candidates []classifiedOption, key func(CandidateOption) int64, axis string) (best, alternative *CandidateOption) {
	// Leading pick: minimum among non-closed candidates, first seen wins ties.
	bestState := StateOpen
	for i := range candidates {
		c := &candidates[i]
		if c.state == StateClosed {
			continue
		}
		if best == nil || key(c.option) < key(*best) {
			best = &c.option
			bestState = c.state
			r.logger.Debug().
				Str("axis", axis).
				Str("pharmacy", c.option.Pharmacy.Source.Code).
				Int64("value", key(c.option)).
				Msg("New leading candidate")
		}
	}
	if best == nil {
		return nil, nil
	}

	// The leader is time-boxed: offer the best strictly-open candidate as a
	// fallback. An open leader needs no alternative.
	if bestState == StateClosingSoon {
		for i := range candidates {
			c := &candidates[i]
			if c.state != StateOpen {
				continue
			}
			if alternative == nil || key(c.option) < key(*alternative) {
				alternative = &c.option
			}
		}
		if alternative != nil {
			r.metrics.RecordAlternative(axis)
			r.logger.Debug().
				Str("axis", axis).
				Str("pharmacy", alternative.Pharmacy.Source.Code).
				Msg("Leader closes soon, found open alternative")
		}
	}

	// Closed override: a closed pharmacy beating the leader by the override
	// ratio is worth highlighting despite being closed. Only the best such
	// candidate is kept, and it takes precedence over the open alternative.
	var override *CandidateOption
	for i := range candidates {
		c := &candidates[i]
		if c.state != StateClosed {
			continue
		}
		if !withinOverride(key(c.option), key(*best), r.config.ClosedOverrideRatio) {
			continue
		}
		if override == nil || key(c.option) < key(*override) {
			override = &c.option
		}
	}
	if override != nil {
		alternative = override
		r.metrics.RecordOverride(axis)
		r.logger.Debug().
			Str("axis", axis).
			Str("pharmacy", override.Pharmacy.Source.Code).
			Int64("value", key(*override)).
			Msg("Closed pharmacy qualifies as override")
	}

	return best, alternative
}

// withinOverride reports whether a closed candidate's value is at or below
// ratio * the best open value. Values are integral minor units (or minutes),
// so the threshold is rounded to the nearest unit; this keeps the inclusive
// boundary exact despite ratio being a binary float.
func withinOverride(closed, open int64, ratio float64) bool {
	threshold := int64(math.Round(ratio * float64(open)))
	return closed <= threshold
}
