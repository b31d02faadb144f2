// Package forkchoice implements the heaviest-chain rule, depth-k finality,
// and external anchor tamper-evidence for doin-core. Grounded on
// core/blockchain.go's hash-indexed tip tracking, generalized from
// single-chain linear append into a weight comparison over competing tips
// so a heavier side chain can be adopted above the finalized height.
package forkchoice

import (
	"strconv"
	"sync"

	"github.com/harveybc/doin-core/core"
)

// Mode is the node's current fork-choice health.
type Mode string

const (
	ModeNormal  Mode = "NORMAL"
	ModeSyncing Mode = "SYNCING"
	ModeSuspect Mode = "SUSPECT"
)

// BlockWeight returns a block's contribution to its chain's score: the sum
// over its ACCEPTED_OPTIMA transactions of weight_d * effective_increment_d.
func BlockWeight(block *core.Block) float64 {
	var total float64
	for _, tx := range block.Transactions {
		if tx.Type != core.TxAcceptedOptima {
			continue
		}
		var payload core.AcceptedOptimaPayload
		if err := tx.Decode(&payload); err != nil {
			continue
		}
		total += payload.DomainWeight * payload.EffectiveIncrement
	}
	return total
}

// Chain is the manager's view of one candidate chain's accumulated weight
// and tip, used only for the comparison in Heavier — it does not own
// storage.
type Chain struct {
	TipHash string
	Weight  float64
}

// Heavier reports whether candidate out-scores current, applying the
// lower-block-hash tiebreak on equal weight.
func Heavier(current, candidate Chain) bool {
	if candidate.Weight != current.Weight {
		return candidate.Weight > current.Weight
	}
	return candidate.TipHash < current.TipHash
}

// AnchorPublisher is the abstract sink external anchors are sent to: an
// independently-secured ledger, treated as a pluggable (height, hash,
// timestamp) contract.
type AnchorPublisher interface {
	PublishAnchor(height int64, blockHash string, timestamp int64) error
}

// Manager tracks the local chain's accumulated weight, drives finality
// advancement, and watches for anchor divergence. Grounded on
// core/blockchain.go's mutex-guarded tip/index fields, generalized to also
// hold the running weight total and the SUSPECT latch.
type Manager struct {
	mu                sync.RWMutex
	bc                *core.Blockchain
	confirmationDepth int64
	anchorInterval    int64
	publisher         AnchorPublisher
	weight            float64
	mode              Mode
	suspectReason     string
}

// New returns a Manager for bc with the given confirmation depth (finality
// window) and external-anchor publication interval (0 disables publishing).
func New(bc *core.Blockchain, confirmationDepth, anchorInterval int64, publisher AnchorPublisher) *Manager {
	if confirmationDepth <= 0 {
		confirmationDepth = 6
	}
	return &Manager{
		bc:                bc,
		confirmationDepth: confirmationDepth,
		anchorInterval:    anchorInterval,
		publisher:         publisher,
		mode:              ModeNormal,
	}
}

// Mode returns the manager's current health state.
func (m *Manager) Mode() Mode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mode
}

// SuspectReason returns the diagnostic recorded when the manager entered
// SUSPECT mode, or "" if not suspect.
func (m *Manager) SuspectReason() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.suspectReason
}

// SetSyncing marks the manager as catching up with peers; cleared by the
// next successful OnBlockCommitted call.
func (m *Manager) SetSyncing(syncing bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mode == ModeSuspect {
		return
	}
	if syncing {
		m.mode = ModeSyncing
	} else {
		m.mode = ModeNormal
	}
}

// OnBlockCommitted updates the running weight total, advances finality, and
// publishes an external anchor if this block lands on the configured
// interval. Called by the node's main loop immediately after
// core.Blockchain.AddBlock succeeds, whether the block was locally
// generated or adopted from a peer.
func (m *Manager) OnBlockCommitted(block *core.Block) error {
	m.mu.Lock()
	if m.mode != ModeSuspect {
		m.weight += BlockWeight(block)
		if m.mode == ModeSyncing {
			m.mode = ModeNormal
		}
	}
	interval := m.anchorInterval
	publisher := m.publisher
	m.mu.Unlock()

	m.bc.AdvanceFinality(m.confirmationDepth)

	if interval > 0 && publisher != nil && block.Header.Index%interval == 0 {
		if err := publisher.PublishAnchor(block.Header.Index, block.BlockHash, block.Header.Timestamp); err != nil {
			return err
		}
	}
	return nil
}

// AdvanceFinality re-runs the depth-k finality check against the local
// chain's current height, the confirmation-depth rule this Manager was
// constructed with. Called after a reorg replays a heavier branch, since
// the new tip's height may itself cross the finality window.
func (m *Manager) AdvanceFinality() {
	m.bc.AdvanceFinality(m.confirmationDepth)
}

// ResetWeight recomputes the running weight total from scratch, used after
// a reorg adopts a different branch whose accumulated weight cannot simply
// be added to the old total.
func (m *Manager) ResetWeight(w float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.weight = w
}

// Weight returns the local chain's accumulated weight score.
func (m *Manager) Weight() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.weight
}

// ShouldAdopt compares a candidate tip's weight against the local chain and
// applies the finality guard: a candidate cannot be adopted if doing so
// would replace any block at or below the finalized height.
func (m *Manager) ShouldAdopt(candidateTipHash string, candidateWeight float64, candidateForksBelow int64) bool {
	if m.bc.FinalizedHeight() >= 0 && candidateForksBelow <= m.bc.FinalizedHeight() {
		return false
	}
	var tipHash string
	if tip := m.bc.Tip(); tip != nil {
		tipHash = tip.BlockHash
	}
	current := Chain{TipHash: tipHash, Weight: m.Weight()}
	return Heavier(current, Chain{TipHash: candidateTipHash, Weight: candidateWeight})
}

// ReceiveAnchor checks an externally observed (height, hash) anchor against
// local history. A conflicting anchor at or below the local tip's height
// latches the manager into SUSPECT mode, per spec's tamper-evidence policy:
// no further progress is accepted until an operator clears it.
func (m *Manager) ReceiveAnchor(height int64, blockHash string) error {
	local, err := m.bc.GetBlockByHeight(height)
	if err != nil {
		// We have not seen that height locally yet; nothing to compare.
		return nil
	}
	if local.BlockHash == blockHash {
		return nil
	}
	m.mu.Lock()
	m.mode = ModeSuspect
	m.suspectReason = "external anchor at height " + strconv.FormatInt(height, 10) + " reports a hash that diverges from local history"
	m.mu.Unlock()
	return nil
}

// ClearSuspect is the operator-intervention hook: it drops the SUSPECT
// latch and resumes normal operation. Callers are responsible for having
// actually resolved the divergence (resync from a trusted peer, manual
// chain surgery) before calling this.
func (m *Manager) ClearSuspect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mode = ModeNormal
	m.suspectReason = ""
}
