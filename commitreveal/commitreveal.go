// Package commitreveal implements the two-phase optimae submission scheme:
// an optimizer commits a hash binding its future parameters, then reveals
// the parameters and nonce once ready. Grounded on the teacher's
// core/mempool.go (thread-safe, bounded, keyed pending store) for
// concurrency shape and on vm/executor.go's snapshot/rollback idiom for
// how a rejected reveal leaves no partial state behind.
package commitreveal

import (
	"sync"

	"github.com/harveybc/doin-core/core"
)

// Outcome is the result of a commit or reveal attempt.
type Outcome string

const (
	Accepted     Outcome = "Accepted"
	Duplicate    Outcome = "Duplicate"
	BadSignature Outcome = "BadSignature"
	RateLimited  Outcome = "RateLimited"
	NoCommit     Outcome = "NoCommit"
	HashMismatch Outcome = "HashMismatch"
	LateReveal   Outcome = "LateReveal"
)

// Manager tracks in-flight optimae across the commit-reveal window. It owns
// no chain state directly; core.Optima records it creates are handed to the
// coordinator, which is responsible for persisting terminal-state
// transitions into core.State.
type Manager struct {
	mu                  sync.Mutex
	optimae             map[string]*core.Optima // optima_id -> optima
	commitWindowBlocks  int64
	rateLimiter         map[string]int64 // optimizer_id -> last commit height
	minBlocksBetweenTxs int64
}

// NewManager returns a Manager whose reveals expire commitWindowBlocks
// after their commit block, and whose per-optimizer commits must be spaced
// at least minBlocksBetweenTxs apart.
func NewManager(commitWindowBlocks, minBlocksBetweenTxs int64) *Manager {
	return &Manager{
		optimae:             make(map[string]*core.Optima),
		commitWindowBlocks:  commitWindowBlocks,
		rateLimiter:         make(map[string]int64),
		minBlocksBetweenTxs: minBlocksBetweenTxs,
	}
}

// Commit registers a new optima commitment. currentHeight is the chain
// height at the time of the commit, recorded as CommitHeight for the
// reveal-window deadline.
func (m *Manager) Commit(optimaID, domainID, optimizerID, commitHash string, reportedMetric float64, timestamp, currentHeight int64) Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.optimae[optimaID]; exists {
		return Duplicate
	}
	if last, ok := m.rateLimiter[optimizerID]; ok && currentHeight-last < m.minBlocksBetweenTxs {
		return RateLimited
	}

	m.optimae[optimaID] = &core.Optima{
		ID:             optimaID,
		DomainID:       domainID,
		OptimizerID:    optimizerID,
		CommitHash:     commitHash,
		ReportedMetric: reportedMetric,
		Timestamp:      timestamp,
		State:          core.OptimaCommitted,
		CommitHeight:   currentHeight,
	}
	m.rateLimiter[optimizerID] = currentHeight
	return Accepted
}

// Reveal validates and applies a reveal against its prior commit. The
// returned Outcome also describes the REJECTED reason to record when it is
// HashMismatch: the commit's pair is marked REJECTED in place, matching (b)
// "the reveal's hash must equal the committed hash, else REJECTED with
// reason hash_mismatch".
func (m *Manager) Reveal(optimaID string, parameters, nonce []byte, currentHeight int64) (Outcome, *core.Optima) {
	m.mu.Lock()
	defer m.mu.Unlock()

	optima, exists := m.optimae[optimaID]
	if !exists {
		return NoCommit, nil
	}
	if optima.State != core.OptimaCommitted {
		return NoCommit, nil
	}
	if currentHeight-optima.CommitHeight > m.commitWindowBlocks {
		optima.State = core.OptimaExpired
		return LateReveal, optima
	}
	if !core.VerifyCommitHash(optima.CommitHash, parameters, nonce) {
		optima.State = core.OptimaRejected
		return HashMismatch, optima
	}

	optima.Parameters = parameters
	optima.Nonce = nonce
	optima.State = core.OptimaRevealed
	return Accepted, optima
}

// Get returns the tracked optima, if any.
func (m *Manager) Get(optimaID string) (*core.Optima, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.optimae[optimaID]
	return o, ok
}

// SetState transitions a tracked optima to a new (terminal or
// intermediate) state, called by the coordinator as voting concludes.
func (m *Manager) SetState(optimaID string, state core.OptimaState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.optimae[optimaID]; ok {
		o.State = state
	}
}

// ExpirePastWindow marks every COMMITTED optima whose reveal window has
// elapsed as EXPIRED as of currentHeight, called once per block by the
// coordinator.
func (m *Manager) ExpirePastWindow(currentHeight int64) []*core.Optima {
	m.mu.Lock()
	defer m.mu.Unlock()
	var expired []*core.Optima
	for _, o := range m.optimae {
		if o.State == core.OptimaCommitted && currentHeight-o.CommitHeight > m.commitWindowBlocks {
			o.State = core.OptimaExpired
			expired = append(expired, o)
		}
	}
	return expired
}

// Evict removes a terminal-state optima from the in-flight tracking map
// once it has been recorded in a block, keeping memory bounded.
func (m *Manager) Evict(optimaID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.optimae, optimaID)
}
