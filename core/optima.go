package core

import "github.com/harveybc/doin-core/crypto"

// OptimaState is a lifecycle stage in the commit-reveal-quorum state
// machine. Terminal states (ACCEPTED, REJECTED, EXPIRED) are immutable and
// recorded in exactly one block.
type OptimaState string

const (
	OptimaCommitted OptimaState = "COMMITTED"
	OptimaRevealed  OptimaState = "REVEALED"
	OptimaVoting    OptimaState = "VOTING"
	OptimaAccepted  OptimaState = "ACCEPTED"
	OptimaRejected  OptimaState = "REJECTED"
	OptimaExpired   OptimaState = "EXPIRED"
)

// Optima is a single unit of submitted optimization work.
type Optima struct {
	ID             string      `json:"optima_id"`
	DomainID       string      `json:"domain_id"`
	OptimizerID    string      `json:"optimizer_id"`
	CommitHash     string      `json:"commit_hash"`
	ReportedMetric float64     `json:"reported_metric"`
	Timestamp      int64       `json:"timestamp"` // commit timestamp; the priority timestamp for disputes
	Parameters     []byte      `json:"parameters,omitempty"`
	Nonce          []byte      `json:"nonce,omitempty"`
	State          OptimaState `json:"state"`
	CommitHeight   int64       `json:"commit_height"` // chain height at commit time, for the commit-reveal window
}

// Canonical encodes the fields of any Merkle leaf built from an Optima: ID,
// domain, optimizer, commit hash, reported metric, timestamp, and — once
// present — the revealed parameters and nonce. The commit hash itself is
// computed over CommitPreimage, not over these bytes. Field order is fixed
// so two nodes always agree on the bytes.
func (o *Optima) Canonical() []byte {
	return crypto.NewEncoder().
		String(o.ID).
		String(o.DomainID).
		String(o.OptimizerID).
		String(o.CommitHash).
		Float64(o.ReportedMetric).
		Int64(o.Timestamp).
		Bytes(o.Parameters).
		Bytes(o.Nonce).
		Finish()
}

// CommitPreimage returns canonical(parameters) ∥ nonce, the exact byte
// string whose hash must equal CommitHash for a reveal to be accepted.
func CommitPreimage(parameters, nonce []byte) []byte {
	return crypto.NewEncoder().Bytes(parameters).Bytes(nonce).Finish()
}

// VerifyCommitHash reports whether parameters/nonce hash to commitHash.
func VerifyCommitHash(commitHash string, parameters, nonce []byte) bool {
	return crypto.Hash(CommitPreimage(parameters, nonce)) == commitHash
}
