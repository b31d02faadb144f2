// Package quorum selects the deterministic set of evaluators that must vote
// on a given optima. Every node recomputes the same quorum independently
// from public chain state, so selection needs no coordination message of
// its own — grounded on the same "opaque typed ID, seed-keyed committee
// sampling" contract the wire protocols in the broader example pack use for
// validator-set sampling.
package quorum

import (
	"encoding/binary"
	"math"
	"sort"

	"github.com/harveybc/doin-core/crypto"
	"github.com/harveybc/doin-core/seedpolicy"
)

const (
	// DefaultMinEvaluators is K_min.
	DefaultMinEvaluators = 3
	// DefaultMaxEvaluators is K_max.
	DefaultMaxEvaluators = 10
	// DefaultQuorumFraction is the share of K that must vote for a decision
	// to be reached rather than rejected as insufficient-quorum.
	DefaultQuorumFraction = 0.67
	// DefaultTolerance bounds the reported/verified discrepancy ratio.
	DefaultTolerance = 0.15
)

// Seed returns seed = H(chain_tip_hash ∥ optima_id), the value the quorum
// shuffle is keyed by.
func Seed(chainTipHash, optimaID string) []byte {
	data := crypto.NewEncoder().String(chainTipHash).String(optimaID).Finish()
	return crypto.HashBytes(data)
}

// Size returns K = clamp(ceil(sqrt(|eligible|)), kMin, kMax).
func Size(eligibleCount, kMin, kMax int) int {
	if kMin <= 0 {
		kMin = DefaultMinEvaluators
	}
	if kMax <= 0 {
		kMax = DefaultMaxEvaluators
	}
	k := int(math.Ceil(math.Sqrt(float64(eligibleCount))))
	if k < kMin {
		k = kMin
	}
	if k > kMax {
		k = kMax
	}
	if k > eligibleCount {
		k = eligibleCount
	}
	return k
}

// Select implements select_quorum(optima_id, chain_tip_hash, eligible_set,
// K): tie-break the eligible set into lexicographic order, deterministically
// Fisher-Yates shuffle it with an HKDF keystream keyed by seed, and take the
// first K. optimizerID is excluded from the eligible set before sizing or
// shuffling.
func Select(optimaID, chainTipHash string, eligible []string, optimizerID string, kMin, kMax int) ([]string, error) {
	filtered := make([]string, 0, len(eligible))
	for _, id := range eligible {
		if id != optimizerID {
			filtered = append(filtered, id)
		}
	}
	sort.Strings(filtered)

	k := Size(len(filtered), kMin, kMax)
	if k == 0 {
		return nil, nil
	}

	seed := Seed(chainTipHash, optimaID)
	shuffled, err := fisherYates(filtered, seed)
	if err != nil {
		return nil, err
	}
	return shuffled[:k], nil
}

// fisherYates deterministically shuffles items using an HKDF keystream
// derived from seed as the source of swap indices, so every node replaying
// the same seed over the same sorted input produces the identical order.
func fisherYates(items []string, seed []byte) ([]string, error) {
	out := make([]string, len(items))
	copy(out, items)
	if len(out) < 2 {
		return out, nil
	}

	// 4 bytes of keystream per swap decision is ample for any realistic
	// quorum-eligible-set size and keeps the derivation a single Expand call.
	stream, err := seedpolicy.Expand(seed, "quorum-shuffle", len(out)*4)
	if err != nil {
		return nil, err
	}

	for i := len(out) - 1; i > 0; i-- {
		r := binary.BigEndian.Uint32(stream[i*4 : i*4+4])
		j := int(r % uint32(i+1))
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// RequiredVotes returns ceil(K * quorumFraction), the minimum number of
// received votes needed before a decision can be reached.
func RequiredVotes(k int, quorumFraction float64) int {
	if quorumFraction <= 0 {
		quorumFraction = DefaultQuorumFraction
	}
	return int(math.Ceil(float64(k) * quorumFraction))
}
