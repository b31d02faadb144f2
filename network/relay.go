package network

import "github.com/harveybc/doin-core/core"

// The payload types below are the JSON bodies carried by the flood
// messages network.Node floods and dedups, but does not otherwise
// interpret: OPTIMAE_COMMIT, OPTIMAE_REVEAL, VOTE, TASK_CREATED,
// TASK_CLAIMED, TASK_COMPLETED, and PEER_DISCOVERY all decode into one of
// these and are handed to whatever business-logic owner (package node)
// registers a handler via Node.Handle — network itself stays a pure
// transport layer, the same separation the teacher keeps between
// network/peer.go's framing and core's transaction semantics.

// OptimaeCommitPayload is the OPTIMAE_COMMIT message body.
type OptimaeCommitPayload struct {
	OptimaID       string  `json:"optima_id"`
	DomainID       string  `json:"domain_id"`
	OptimizerID    string  `json:"optimizer_id"`
	CommitHash     string  `json:"commit_hash"`
	ReportedMetric float64 `json:"reported_metric"`
	Timestamp      int64   `json:"timestamp"`
}

// OptimaeRevealPayload is the OPTIMAE_REVEAL message body.
type OptimaeRevealPayload struct {
	OptimaID   string `json:"optima_id"`
	Parameters []byte `json:"parameters"`
	Nonce      []byte `json:"nonce"`
}

// VotePayload is the VOTE message body.
type VotePayload struct {
	Vote core.Vote `json:"vote"`
}

// TaskCreatedPayload is the TASK_CREATED message body.
type TaskCreatedPayload struct {
	TaskID     string `json:"task_id"`
	Priority   int    `json:"priority"`
	PayloadRef string `json:"payload_ref"`
}

// TaskClaimedPayload is the TASK_CLAIMED message body.
type TaskClaimedPayload struct {
	TaskID    string `json:"task_id"`
	Claimant  string `json:"claimant"`
	Timestamp int64  `json:"timestamp"`
}

// TaskCompletedPayload is the TASK_COMPLETED message body.
type TaskCompletedPayload struct {
	TaskID     string `json:"task_id"`
	ResultHash string `json:"result_hash"`
}

// PeerDiscoveryPayload is the PEER_DISCOVERY message body: the
// originating peer's advertised listen address.
type PeerDiscoveryPayload struct {
	ListenAddr string `json:"listen_addr"`
}
