package poo

const (
	// GenesisReward is the block reward in DOIN at the genesis epoch.
	GenesisReward uint64 = 50
	// HalvingInterval is how many blocks pass between reward halvings.
	HalvingInterval int64 = 210_000
	// MaxSupply caps total minted DOIN.
	MaxSupply uint64 = 21_000_000

	// OptimizerShare, EvaluatorShare, and GeneratorShare are the per-block
	// split of the block reward.
	OptimizerShare = 0.65
	EvaluatorShare = 0.30
	GeneratorShare = 0.05
)

// BlockReward returns the block reward for the block at the given index,
// halved every HalvingInterval blocks, floored at zero once halving would
// reduce it below one unit.
func BlockReward(index int64) uint64 {
	halvings := index / HalvingInterval
	reward := GenesisReward
	for i := int64(0); i < halvings && reward > 0; i++ {
		reward /= 2
	}
	return reward
}

// Shares is the reward split for one block: reward proportional to
// effective_increment*reward_fraction for optimizers, uniform over the
// evaluator quorum of accepted optimae, and a fixed cut for the block
// generator.
type Shares struct {
	Optimizers map[string]uint64
	Evaluators map[string]uint64
	Generator  uint64
}

// OptimizerWeight is one optimizer's contribution to the optimizer reward
// pool for a block.
type OptimizerWeight struct {
	PeerID             string
	EffectiveIncrement float64
	RewardFraction     float64
}

// Distribute splits reward across optimizers (proportional to
// effective_increment*reward_fraction), the evaluator set (uniform), and
// the generator, respecting MaxSupply: mintedSoFar+reward must not exceed
// MaxSupply, and the actual distributed amount is capped to whatever
// remains.
func Distribute(reward uint64, mintedSoFar uint64, optimizers []OptimizerWeight, evaluators []string, generatorID string) Shares {
	remaining := MaxSupply - mintedSoFar
	if reward > remaining {
		reward = remaining
	}
	shares := Shares{Optimizers: make(map[string]uint64), Evaluators: make(map[string]uint64)}
	if reward == 0 {
		return shares
	}

	optimizerPool := uint64(float64(reward) * OptimizerShare)
	evaluatorPool := uint64(float64(reward) * EvaluatorShare)
	generatorPool := reward - optimizerPool - evaluatorPool

	var totalWeight float64
	for _, o := range optimizers {
		totalWeight += o.EffectiveIncrement * o.RewardFraction
	}
	if totalWeight > 0 {
		var distributed uint64
		for _, o := range optimizers {
			w := o.EffectiveIncrement * o.RewardFraction / totalWeight
			amount := uint64(float64(optimizerPool) * w)
			shares.Optimizers[o.PeerID] += amount
			distributed += amount
		}
		// any remainder from integer truncation goes to the generator,
		// keeping the sum of all shares exactly equal to reward.
		generatorPool += optimizerPool - distributed
	} else {
		generatorPool += optimizerPool
	}

	if len(evaluators) > 0 {
		per := evaluatorPool / uint64(len(evaluators))
		var distributed uint64
		for _, ev := range evaluators {
			shares.Evaluators[ev] += per
			distributed += per
		}
		generatorPool += evaluatorPool - distributed
	} else {
		generatorPool += evaluatorPool
	}

	shares.Generator = generatorPool
	_ = generatorID
	return shares
}
