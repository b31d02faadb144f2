// Package seedpolicy derives the deterministic seeds that defend the
// optimization process against grinding (an optimizer retrying commits
// until it gets a favorable seed) and against evaluators overfitting to a
// synthetic-data seed they could predict in advance.
package seedpolicy

import (
	"crypto/sha256"
	"io"

	"github.com/harveybc/doin-core/crypto"
	"golang.org/x/crypto/hkdf"
)

// OptimizationSeed returns seed_opt = H(commit_hash ∥ domain_id), the
// anti-grinding seed an optimizer's local optimization run must use.
func OptimizationSeed(commitHash, domainID string) []byte {
	data := crypto.NewEncoder().String(commitHash).String(domainID).Finish()
	return crypto.HashBytes(data)
}

// SyntheticDataSeed returns seed_syn(evaluator_id) = H(commit_hash ∥
// domain_id ∥ evaluator_id ∥ chain_tip_hash_at_selection), the per-evaluator
// anti-overfit seed for synthetic validation data.
func SyntheticDataSeed(commitHash, domainID, evaluatorID, chainTipHashAtSelection string) []byte {
	data := crypto.NewEncoder().
		String(commitHash).
		String(domainID).
		String(evaluatorID).
		String(chainTipHashAtSelection).
		Finish()
	return crypto.HashBytes(data)
}

// Expand derives n bytes of deterministic keystream from seed using
// HKDF-SHA256 (an auditable XOF: any node can recompute and check
// submitted artifacts against it). info scopes the expansion to its
// purpose (e.g. "quorum-shuffle", "optimization-init") so the same seed
// never produces colliding keystreams for two different uses.
func Expand(seed []byte, info string, n int) ([]byte, error) {
	reader := hkdf.New(sha256.New, seed, nil, []byte(info))
	out := make([]byte, n)
	if _, err := io.ReadFull(reader, out); err != nil {
		return nil, err
	}
	return out, nil
}
