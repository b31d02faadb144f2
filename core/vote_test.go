package core

import (
	"testing"

	"github.com/harveybc/doin-core/crypto"
)

func TestVoteSignVerifyRoundtrip(t *testing.T) {
	priv, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	v := Vote{OptimaID: "optima-1", EvaluatorID: pub.Hex(), MeasuredMetric: 0.9}
	v.Sign(priv)

	if err := v.Verify(pub); err != nil {
		t.Errorf("Verify should accept a validly signed vote: %v", err)
	}
}

func TestVoteVerifyRejectsTamperedMetric(t *testing.T) {
	priv, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	v := Vote{OptimaID: "optima-1", EvaluatorID: pub.Hex(), MeasuredMetric: 0.9}
	v.Sign(priv)
	v.MeasuredMetric = 0.1

	if err := v.Verify(pub); err == nil {
		t.Error("Verify should reject a vote whose measured_metric was altered after signing")
	}
}

func TestVoteVerifyRejectsMismatchedEvaluatorID(t *testing.T) {
	priv, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	_, otherPub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	v := Vote{OptimaID: "optima-1", EvaluatorID: otherPub.Hex(), MeasuredMetric: 0.9}
	v.Sign(priv)

	if err := v.Verify(pub); err == nil {
		t.Error("Verify should reject when evaluator_id does not match the supplied public key")
	}
}

func TestVoteVerifyRejectsMissingEvaluatorID(t *testing.T) {
	_, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	v := Vote{OptimaID: "optima-1", MeasuredMetric: 0.9}
	if err := v.Verify(pub); err == nil {
		t.Error("Verify should reject a vote with no evaluator_id")
	}
}
