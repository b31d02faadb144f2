package core

import (
	"errors"
	"fmt"

	"github.com/harveybc/doin-core/crypto"
)

// Vote is a single evaluator's measurement of an optima, cast during the
// quorum voting window. Invariant: at most one Vote per (OptimaID,
// EvaluatorID) is accepted by the coordinator.
type Vote struct {
	OptimaID       string  `json:"optima_id"`
	EvaluatorID    string  `json:"evaluator_id"`
	MeasuredMetric float64 `json:"measured_metric"`
	Signature      string  `json:"signature"`
}

// signingBody returns the canonical bytes the signature covers — every
// field except the signature itself, the same pattern the teacher uses
// for transaction signing.
func (v *Vote) signingBody() []byte {
	return crypto.NewEncoder().
		String(v.OptimaID).
		String(v.EvaluatorID).
		Float64(v.MeasuredMetric).
		Finish()
}

// Sign signs the vote with the evaluator's private key.
func (v *Vote) Sign(priv crypto.PrivateKey) {
	v.Signature = crypto.Sign(priv, v.signingBody())
}

// Verify checks the vote's signature against the evaluator's public key.
func (v *Vote) Verify(pub crypto.PublicKey) error {
	if v.EvaluatorID == "" {
		return errors.New("vote missing evaluator_id")
	}
	declared, err := crypto.PubKeyFromHex(v.EvaluatorID)
	if err != nil {
		return fmt.Errorf("invalid evaluator_id (must be ed25519 pubkey hex): %w", err)
	}
	if declared.Hex() != pub.Hex() {
		return errors.New("vote evaluator_id does not match supplied public key")
	}
	return crypto.Verify(pub, v.signingBody(), v.Signature)
}
