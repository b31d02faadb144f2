package poo

import "testing"

func TestBlockRewardHalving(t *testing.T) {
	if got := BlockReward(0); got != GenesisReward {
		t.Errorf("genesis reward: got %d want %d", got, GenesisReward)
	}
	if got := BlockReward(HalvingInterval); got != GenesisReward/2 {
		t.Errorf("first halving: got %d want %d", got, GenesisReward/2)
	}
	if got := BlockReward(HalvingInterval * 2); got != GenesisReward/4 {
		t.Errorf("second halving: got %d want %d", got, GenesisReward/4)
	}
}

func TestBlockRewardFloorsAtZero(t *testing.T) {
	if got := BlockReward(HalvingInterval * 100); got != 0 {
		t.Errorf("far future reward should floor at 0, got %d", got)
	}
}

func TestDistributeRespectsMaxSupply(t *testing.T) {
	shares := Distribute(50, MaxSupply-10, nil, nil, "generator")
	var total uint64
	for _, v := range shares.Optimizers {
		total += v
	}
	for _, v := range shares.Evaluators {
		total += v
	}
	total += shares.Generator
	if total != 10 {
		t.Errorf("distribution must be capped to the remaining supply: got %d want 10", total)
	}
}

func TestDistributeSplitsBetweenPoolsWithoutParticipants(t *testing.T) {
	shares := Distribute(100, 0, nil, nil, "generator")
	if shares.Generator != 100 {
		t.Errorf("with no optimizers or evaluators, the whole reward should fall to the generator: got %d", shares.Generator)
	}
}

func TestDistributeProportionalToEffectiveIncrement(t *testing.T) {
	optimizers := []OptimizerWeight{
		{PeerID: "opt-a", EffectiveIncrement: 3.0, RewardFraction: 1.0},
		{PeerID: "opt-b", EffectiveIncrement: 1.0, RewardFraction: 1.0},
	}
	shares := Distribute(1000, 0, optimizers, nil, "generator")
	if shares.Optimizers["opt-a"] <= shares.Optimizers["opt-b"] {
		t.Errorf("the larger contributor should earn a larger share: a=%d b=%d", shares.Optimizers["opt-a"], shares.Optimizers["opt-b"])
	}
}

func TestDistributeEvaluatorsUniform(t *testing.T) {
	shares := Distribute(1000, 0, nil, []string{"e1", "e2", "e3", "e4"}, "generator")
	first := shares.Evaluators["e1"]
	for _, ev := range []string{"e2", "e3", "e4"} {
		if shares.Evaluators[ev] != first {
			t.Errorf("evaluator shares should be uniform: e1=%d %s=%d", first, ev, shares.Evaluators[ev])
		}
	}
}

func TestDistributeConservesTotalReward(t *testing.T) {
	optimizers := []OptimizerWeight{
		{PeerID: "opt-a", EffectiveIncrement: 3.0, RewardFraction: 0.9},
		{PeerID: "opt-b", EffectiveIncrement: 1.0, RewardFraction: 0.5},
	}
	evaluators := []string{"e1", "e2", "e3"}
	shares := Distribute(777, 0, optimizers, evaluators, "generator")

	var total uint64
	for _, v := range shares.Optimizers {
		total += v
	}
	for _, v := range shares.Evaluators {
		total += v
	}
	total += shares.Generator
	if total != 777 {
		t.Errorf("shares must sum to exactly the reward (no lost units to truncation): got %d want 777", total)
	}
}
