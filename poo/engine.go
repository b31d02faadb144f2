package poo

import (
	"fmt"
	"log"

	"github.com/harveybc/doin-core/core"
	"github.com/harveybc/doin-core/crypto"
	"github.com/harveybc/doin-core/events"
)

// Engine owns the threshold, the per-domain accumulator, and block
// assembly/commit. Grounded on consensus.PoA's ProduceBlock/ValidateBlock
// shape; the proposer-selection half of PoA has no DOIN analogue, since
// any node whose local accumulator crosses the threshold may generate the
// next block — there is no round-robin schedule to consult.
type Engine struct {
	bc        *core.Blockchain
	state     core.State
	pending   *core.PendingPool
	emitter   *events.Emitter
	threshold *Threshold
	acc       *Accumulator
	privKey   crypto.PrivateKey
	pubKey    crypto.PublicKey
	maxTxs    int

	mintedSoFar       uint64
	pendingOptimizers []OptimizerWeight
	pendingEvaluators map[string]struct{}
}

// New creates an Engine for the local generator identity. mintedSoFar seeds
// the running minted-supply counter (loaded from chain state on startup by
// the node package); it is zero for a fresh chain.
func New(bc *core.Blockchain, state core.State, pending *core.PendingPool, emitter *events.Emitter, threshold *Threshold, privKey crypto.PrivateKey, maxTxs int, mintedSoFar uint64) *Engine {
	if maxTxs <= 0 {
		maxTxs = 500
	}
	return &Engine{
		bc:                bc,
		state:             state,
		pending:           pending,
		emitter:           emitter,
		threshold:         threshold,
		acc:               NewAccumulator(),
		privKey:           privKey,
		pubKey:            privKey.Public(),
		maxTxs:            maxTxs,
		mintedSoFar:       mintedSoFar,
		pendingEvaluators: make(map[string]struct{}),
	}
}

// ThresholdValue returns the current dynamic emission threshold T, for
// status reporting.
func (e *Engine) ThresholdValue() float64 {
	return e.threshold.T
}

// RecordAccepted feeds an accepted optima's effective increment into the
// running accumulator, called by the coordinator immediately after a
// decision.
func (e *Engine) RecordAccepted(domainID string, weight, effectiveIncrement float64) {
	e.acc.Add(domainID, weight, effectiveIncrement)
}

// RecordReward registers an accepted optima's contribution to the next
// block's coin distribution: the optimizer's weighted share of the
// optimizer pool, and the set of evaluators who participated in its
// quorum (added to the uniform evaluator pool). Called by the coordinator
// alongside RecordAccepted, once per accepted optima.
func (e *Engine) RecordReward(optimizerID string, effectiveIncrement, rewardFraction float64, evaluators []string) {
	e.pendingOptimizers = append(e.pendingOptimizers, OptimizerWeight{
		PeerID:             optimizerID,
		EffectiveIncrement: effectiveIncrement,
		RewardFraction:     rewardFraction,
	})
	for _, ev := range evaluators {
		e.pendingEvaluators[ev] = struct{}{}
	}
}

// MintedSoFar returns the running total of minted DOIN, for the node to
// checkpoint into persisted state.
func (e *Engine) MintedSoFar() uint64 {
	return e.mintedSoFar
}

// CanGenerateBlock reports whether the accumulated weighted increment has
// crossed the current threshold.
func (e *Engine) CanGenerateBlock() bool {
	return CanGenerateBlock(e.acc, e.threshold)
}

// GenerateBlock atomically snapshots pending transactions into a block,
// computes the Merkle root and block hash, signs it, advances the chain,
// clears the accumulator, and runs the threshold correction loops.
// timestamp must be >= the tip's timestamp and within the caller's clock
// skew bound; the caller (node.Service) owns wall-clock policy.
func (e *Engine) GenerateBlock(timestamp int64, actualBlockTimeSeconds float64) (*core.Block, error) {
	txs := e.pending.Drain(e.maxTxs)

	tip := e.bc.Tip()
	var prevHash string
	var nextIndex int64
	if tip == nil {
		prevHash = ""
		nextIndex = 0
	} else {
		prevHash = tip.BlockHash
		nextIndex = tip.Header.Index + 1
		if timestamp < tip.Header.Timestamp {
			timestamp = tip.Header.Timestamp
		}
	}

	if reward := BlockReward(nextIndex); reward > 0 && (len(e.pendingOptimizers) > 0 || len(e.pendingEvaluators) > 0) {
		evaluators := make([]string, 0, len(e.pendingEvaluators))
		for ev := range e.pendingEvaluators {
			evaluators = append(evaluators, ev)
		}
		shares := Distribute(reward, e.mintedSoFar, e.pendingOptimizers, evaluators, e.pubKey.Hex())
		combined := make(map[string]uint64, len(shares.Optimizers)+len(shares.Evaluators)+1)
		for id, amt := range shares.Optimizers {
			combined[id] += amt
		}
		for id, amt := range shares.Evaluators {
			combined[id] += amt
		}
		if shares.Generator > 0 {
			combined[e.pubKey.Hex()] += shares.Generator
		}
		var minted uint64
		for _, amt := range combined {
			minted += amt
		}
		if minted > 0 {
			if tx, err := core.NewTransaction(core.TxCoinDistribution, core.CoinDistributionPayload{Shares: combined}); err == nil {
				txs = append(txs, tx)
				e.mintedSoFar += minted
			}
		}
	}
	e.pendingOptimizers = nil
	e.pendingEvaluators = make(map[string]struct{})

	thresholdUsed := e.threshold.T
	block := core.NewBlock(nextIndex, prevHash, timestamp, thresholdUsed, e.pubKey.Hex(), txs)

	// Build the Merkle root and sign before AddBlock; the state write buffer
	// is committed only after AddBlock succeeds, so a failed AddBlock leaves
	// the state unpersisted.
	block.Header.MerkleRoot = core.ComputeMerkleRoot(txs)
	block.Sign(e.privKey)

	if err := e.bc.AddBlock(block); err != nil {
		return nil, fmt.Errorf("add block: %w", err)
	}
	if err := e.state.Commit(); err != nil {
		log.Fatalf("[poo] FATAL: block %d stored but state commit failed: %v", block.Header.Index, err)
	}

	e.acc.Reset()
	e.threshold.OnBlock(actualBlockTimeSeconds)

	if e.emitter != nil {
		e.emitter.Emit(events.Event{
			Type:          events.EventBlockCommit,
			CorrelationID: block.BlockHash,
			BlockHeight:   block.Header.Index,
			Data:          map[string]any{"hash": block.BlockHash, "txs": len(block.Transactions), "threshold_used": thresholdUsed},
		})
	}

	return block, nil
}

// ValidateBlockSelf checks the invariants a candidate block must satisfy on
// its own, independent of which chain (if any) it extends: a valid
// generator signature, Merkle-root/hash integrity, and a timestamp not too
// far in the future. Used directly by the sync layer to tell a genuinely
// malformed block (a real protocol violation) apart from one that is merely
// structurally sound but landed on a competing branch.
func ValidateBlockSelf(candidate *core.Block, maxClockDriftSeconds int64, nowUnixNano int64) error {
	generatorPub, err := crypto.PubKeyFromHex(candidate.Header.GeneratorID)
	if err != nil {
		return fmt.Errorf("invalid generator_id: %w", err)
	}
	if err := candidate.Verify(generatorPub); err != nil {
		return fmt.Errorf("block signature invalid: %w", err)
	}
	if err := candidate.VerifyIntegrity(); err != nil {
		return err
	}
	maxDriftNanos := maxClockDriftSeconds * 1_000_000_000
	if candidate.Header.Timestamp > nowUnixNano+maxDriftNanos {
		return fmt.Errorf("block timestamp too far in future: %d (now %d)", candidate.Header.Timestamp, nowUnixNano)
	}
	return nil
}

// ValidateBlock checks a received candidate block's structural and
// cryptographic invariants independent of local accumulator state: index
// contiguity, previous_hash chaining, merkle_root recomputation, monotone
// timestamp, and generator signature. Fork choice and finality (package
// forkchoice) decide whether to adopt it.
func ValidateBlock(tip *core.Block, candidate *core.Block, maxClockDriftSeconds int64, nowUnixNano int64) error {
	if err := ValidateBlockSelf(candidate, maxClockDriftSeconds, nowUnixNano); err != nil {
		return err
	}

	if tip == nil {
		if candidate.Header.Index != 0 {
			return fmt.Errorf("first block must have index 0, got %d", candidate.Header.Index)
		}
	} else {
		if candidate.Header.Index != tip.Header.Index+1 {
			return fmt.Errorf("index mismatch: got %d want %d", candidate.Header.Index, tip.Header.Index+1)
		}
		if candidate.Header.PreviousHash != tip.BlockHash {
			return fmt.Errorf("previous_hash mismatch: got %s want %s", candidate.Header.PreviousHash, tip.BlockHash)
		}
		if candidate.Header.Timestamp < tip.Header.Timestamp {
			return fmt.Errorf("timestamp %d precedes previous block %d", candidate.Header.Timestamp, tip.Header.Timestamp)
		}
	}
	return nil
}
