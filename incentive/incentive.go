// Package incentive computes the reward fraction an accepted optima earns
// from the gap between its optimizer-reported metric and the quorum's
// verified median. Every function here is pure: no state, no I/O, so the
// coordinator can call it freely while deciding an optima's outcome.
package incentive

import "math"

const (
	// MaxBonusMultiplier is the confidence-multiplier bound. Evaluate clamps
	// it to 1.0, so the reward fraction never exceeds the confidence.
	MaxBonusMultiplier = 1.2
	// HighConfidenceThreshold is the discrepancy ratio at or below which
	// Evaluate engages the (clamped) MaxBonusMultiplier.
	HighConfidenceThreshold = 0.25
)

// Improvement returns the positive change from baseline to candidate,
// respecting the domain's optimization direction. A worse-than-baseline
// candidate yields 0, never a negative number.
func Improvement(candidate, baseline float64, higherIsBetter bool) float64 {
	var delta float64
	if higherIsBetter {
		delta = candidate - baseline
	} else {
		delta = baseline - candidate
	}
	if delta < 0 {
		return 0
	}
	return delta
}

// Result is the outcome of evaluating one optima's reported metric against
// its quorum-verified median.
type Result struct {
	Accepted           bool
	EffectiveIncrement float64
	RewardFraction     float64
	Discrepancy        float64
}

// Evaluate implements reward_fraction(reported, median_verified, baseline):
// effective_increment is computed from the verified median (per the
// effective_increment Open Question resolution — see DESIGN.md), and the
// optima is rejected outright if the reported/verified discrepancy exceeds
// tolerance.
func Evaluate(reported, medianVerified, baseline, tolerance float64, higherIsBetter bool) Result {
	effectiveIncrement := Improvement(medianVerified, baseline, higherIsBetter)

	var discrepancy float64
	if tolerance > 0 {
		discrepancy = math.Abs(reported-medianVerified) / tolerance
	} else {
		discrepancy = math.Abs(reported - medianVerified)
	}

	if discrepancy > 1 {
		return Result{Accepted: false, EffectiveIncrement: effectiveIncrement, Discrepancy: discrepancy}
	}

	confidence := 1 - discrepancy
	// f = min(max_bonus_multiplier, 1.0) * confidence, multiplier only
	// engaged within HighConfidenceThreshold. Since max_bonus_multiplier
	// (1.2) is always clamped down to 1.0 here, both branches reduce to
	// min(1.0, 1.0); this is the spec's literal formula, kept verbatim
	// rather than "simplified" away in case the multiplier bound changes.
	multiplier := 1.0
	if discrepancy <= HighConfidenceThreshold {
		multiplier = math.Min(MaxBonusMultiplier, 1.0)
	}
	fraction := multiplier * confidence
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}

	return Result{
		Accepted:           true,
		EffectiveIncrement: effectiveIncrement,
		RewardFraction:     fraction,
		Discrepancy:        discrepancy,
	}
}
