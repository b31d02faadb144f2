package core

import (
	"encoding/json"
	"fmt"

	"github.com/harveybc/doin-core/crypto"
)

// TxType identifies which of the five tagged transaction variants a block
// transaction carries.
type TxType string

const (
	TxAcceptedOptima   TxType = "ACCEPTED_OPTIMA"
	TxRejectedOptima   TxType = "REJECTED_OPTIMA"
	TxCompletedTask    TxType = "COMPLETED_TASK"
	TxReputationUpdate TxType = "REPUTATION_UPDATE"
	TxCoinDistribution TxType = "COIN_DISTRIBUTION"
)

// Transaction is one entry in a block's transaction list. Unlike the
// teacher's user-signed Transaction, these are chain-internal bookkeeping
// records assembled by the proof-of-optimization engine from already
// quorum-verified events; the block as a whole carries the generator's
// signature, so individual transactions are not separately signed.
type Transaction struct {
	Type    TxType          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Canonical returns the length-prefixed encoding of the transaction used as
// a Merkle leaf. Payload is included as an opaque length-prefixed blob;
// because Payload is produced by json.Marshal on a fixed Go struct with a
// stable field order, it canonicalizes deterministically across nodes.
func (tx *Transaction) Canonical() []byte {
	return crypto.NewEncoder().
		String(string(tx.Type)).
		Bytes(tx.Payload).
		Finish()
}

// NewTransaction marshals payload and wraps it as a Transaction of the
// given type.
func NewTransaction(typ TxType, payload any) (*Transaction, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", typ, err)
	}
	return &Transaction{Type: typ, Payload: raw}, nil
}

// Decode unmarshals the transaction's payload into out, which should be a
// pointer to the payload struct matching tx.Type.
func (tx *Transaction) Decode(out any) error {
	return json.Unmarshal(tx.Payload, out)
}

// ---- Payload types, one per spec.md §3 transaction variant ----

// AcceptedOptimaPayload records an optima that passed quorum verification.
// DomainWeight is carried on the transaction itself (rather than looked up
// from a possibly-reconfigured domain registry) so that fork choice's
// heaviest-chain weight can be recomputed purely from chain data.
type AcceptedOptimaPayload struct {
	Optima             Optima         `json:"optima"`
	DomainWeight       float64        `json:"domain_weight"`
	EffectiveIncrement float64        `json:"effective_increment"`
	RewardFraction     float64        `json:"reward_fraction"`
	ExperimentMeta     map[string]any `json:"experiment_meta,omitempty"`
}

// RejectedOptimaPayload records an optima the coordinator rejected, and why.
type RejectedOptimaPayload struct {
	OptimaID string `json:"optima_id"`
	Reason   string `json:"reason"`
}

// CompletedTaskPayload records a task-queue completion.
type CompletedTaskPayload struct {
	TaskID     string `json:"task_id"`
	ResultHash string `json:"result_hash"`
}

// ReputationUpdatePayload records a single peer's reputation delta.
type ReputationUpdatePayload struct {
	PeerID string  `json:"peer_id"`
	Delta  float64 `json:"delta"`
}

// CoinDistributionPayload records a block's minted-coin distribution.
type CoinDistributionPayload struct {
	Shares map[string]uint64 `json:"shares"` // peer_id -> amount
}
