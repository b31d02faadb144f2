package incentive

import "testing"

func TestImprovementRespectsDirection(t *testing.T) {
	if got := Improvement(0.75, 0.5, true); got != 0.25 {
		t.Errorf("higher-is-better improvement: got %v want 0.25", got)
	}
	if got := Improvement(0.7, 0.8, true); got != 0 {
		t.Errorf("a worse higher-is-better candidate must floor at 0: got %v", got)
	}
	if got := Improvement(0.25, 0.5, false); got != 0.25 {
		t.Errorf("lower-is-better improvement: got %v want 0.25", got)
	}
	if got := Improvement(0.4, 0.3, false); got != 0 {
		t.Errorf("a worse lower-is-better candidate must floor at 0: got %v", got)
	}
}

func TestEvaluateAcceptsWithinTolerance(t *testing.T) {
	result := Evaluate(0.90, 0.91, 0.80, 0.15, true)
	if !result.Accepted {
		t.Fatal("a small reported/verified gap within tolerance should be accepted")
	}
	if result.EffectiveIncrement <= 0 {
		t.Errorf("effective_increment should be positive for an improvement, got %v", result.EffectiveIncrement)
	}
	if result.RewardFraction <= 0 || result.RewardFraction > 1 {
		t.Errorf("reward_fraction should be in (0,1], got %v", result.RewardFraction)
	}
}

func TestEvaluateRejectsBeyondTolerance(t *testing.T) {
	result := Evaluate(0.50, 0.91, 0.80, 0.15, true)
	if result.Accepted {
		t.Fatal("a reported value far from the verified median should be rejected")
	}
	if result.RewardFraction != 0 {
		t.Errorf("a rejected optima should carry no reward_fraction, got %v", result.RewardFraction)
	}
}

func TestEvaluateHighConfidenceBonus(t *testing.T) {
	exact := Evaluate(0.91, 0.91, 0.80, 0.15, true)
	borderline := Evaluate(0.89, 0.91, 0.80, 0.15, true)
	if exact.RewardFraction < borderline.RewardFraction {
		t.Errorf("a perfectly matching report should score at least as well as a borderline one: exact=%v borderline=%v", exact.RewardFraction, borderline.RewardFraction)
	}
}

func TestEvaluateZeroToleranceFallsBackToAbsoluteDiscrepancy(t *testing.T) {
	result := Evaluate(0.5, 0.5, 0.4, 0, true)
	if !result.Accepted {
		t.Error("an exact match with zero tolerance configured should still accept (discrepancy 0)")
	}
}
