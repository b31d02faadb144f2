// Package coordinator drives the optimae lifecycle state machine:
// commit -> reveal -> quorum selection -> voting -> decision. It ties
// together commitreveal, quorum, incentive, reputation, taskqueue, and the
// poo engine, and is the only thing that writes ACCEPTED_OPTIMA,
// REJECTED_OPTIMA, and REPUTATION_UPDATE transactions into the pending
// pool. Grounded on vm/executor.go's snapshot-driven apply step and
// consensus/poa.go's engine-owns-everything orchestration shape, since
// both are superseded by this single state machine rather than kept
// separately (see DESIGN.md's vm package deletion entry).
package coordinator

import (
	"fmt"
	"sync"
	"time"

	"github.com/harveybc/doin-core/commitreveal"
	"github.com/harveybc/doin-core/core"
	"github.com/harveybc/doin-core/domain"
	"github.com/harveybc/doin-core/events"
	"github.com/harveybc/doin-core/incentive"
	"github.com/harveybc/doin-core/poo"
	"github.com/harveybc/doin-core/quorum"
	"github.com/harveybc/doin-core/reputation"
	"github.com/harveybc/doin-core/taskqueue"
)

// InsufficientQuorum is returned by SubmitReveal when the eligible
// evaluator set is empty after excluding the optimizer, which can only
// happen in a degenerate single-peer network; the optima is rejected with
// the same reason string the post-voting insufficient-quorum path uses.
const InsufficientQuorum commitreveal.Outcome = "InsufficientQuorum"

// Config bundles the quorum/voting parameters a Coordinator needs, mirroring
// spec.md's configuration surface for the commit-reveal and voting windows.
type Config struct {
	QuorumMinEvaluators int
	QuorumMaxEvaluators int
	QuorumFraction      float64
	Tolerance           float64
	VotingTimeoutBlocks int64
}

// votingSession tracks one REVEALED-or-later optima awaiting a decision.
type votingSession struct {
	optima         *core.Optima
	quorum         []string
	quorumSet      map[string]bool
	requiredVotes  int
	votes          map[string]core.Vote
	deadlineHeight int64
}

// Coordinator is the single-writer lifecycle owner for all in-flight
// optimae. It is not safe for concurrent use from more than the node's
// main loop, matching the teacher's single-writer chain-store discipline.
type Coordinator struct {
	mu sync.Mutex

	cfg Config

	cr         *commitreveal.Manager
	domains    *domain.Registry
	reputation *reputation.Tracker
	tasks      *taskqueue.Queue
	pending    *core.PendingPool
	pooEngine  *poo.Engine
	emitter    *events.Emitter

	runningBest map[string]float64 // domain_id -> best verified metric seen
	sessions    map[string]*votingSession
}

// New returns a Coordinator wiring together the subsystems listed above.
func New(cfg Config, cr *commitreveal.Manager, domains *domain.Registry, rep *reputation.Tracker, tasks *taskqueue.Queue, pending *core.PendingPool, pooEngine *poo.Engine, emitter *events.Emitter) *Coordinator {
	if cfg.QuorumMinEvaluators <= 0 {
		cfg.QuorumMinEvaluators = quorum.DefaultMinEvaluators
	}
	if cfg.QuorumMaxEvaluators <= 0 {
		cfg.QuorumMaxEvaluators = quorum.DefaultMaxEvaluators
	}
	if cfg.QuorumFraction <= 0 {
		cfg.QuorumFraction = quorum.DefaultQuorumFraction
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = quorum.DefaultTolerance
	}
	return &Coordinator{
		cfg:         cfg,
		cr:          cr,
		domains:     domains,
		reputation:  rep,
		tasks:       tasks,
		pending:     pending,
		pooEngine:   pooEngine,
		emitter:     emitter,
		runningBest: make(map[string]float64),
		sessions:    make(map[string]*votingSession),
	}
}

func (c *Coordinator) emit(typ events.EventType, correlationID string, data map[string]any) {
	if c.emitter == nil {
		return
	}
	c.emitter.Emit(events.Event{Type: typ, CorrelationID: correlationID, Data: data})
}

// SubmitCommit registers a new optima commitment.
func (c *Coordinator) SubmitCommit(optimaID, domainID, optimizerID, commitHash string, reportedMetric float64, timestamp, currentHeight int64) commitreveal.Outcome {
	outcome := c.cr.Commit(optimaID, domainID, optimizerID, commitHash, reportedMetric, timestamp, currentHeight)
	if outcome == commitreveal.Accepted {
		c.emit(events.EventOptimaCommitted, optimaID, map[string]any{"domain_id": domainID, "optimizer_id": optimizerID})
	}
	return outcome
}

// DomainOf returns the domain_id recorded for optimaID's commitment, for
// callers that need to resolve the evaluator-eligible set before calling
// SubmitReveal.
func (c *Coordinator) DomainOf(optimaID string) (string, bool) {
	optima, ok := c.cr.Get(optimaID)
	if !ok {
		return "", false
	}
	return optima.DomainID, true
}

// SubmitReveal validates a reveal against its commitment. On success it
// selects the evaluator quorum deterministically from chainTipHash and
// eligible, creates one priority-0 verification task per selected
// evaluator, and opens the voting session. On HashMismatch/LateReveal it
// immediately emits a REJECTED_OPTIMA transaction.
func (c *Coordinator) SubmitReveal(optimaID string, parameters, nonce []byte, currentHeight int64, chainTipHash string, eligible []string) (commitreveal.Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	outcome, optima := c.cr.Reveal(optimaID, parameters, nonce, currentHeight)
	switch outcome {
	case commitreveal.NoCommit:
		return outcome, nil
	case commitreveal.HashMismatch:
		c.rejectLocked(optima, "hash_mismatch")
		return outcome, nil
	case commitreveal.LateReveal:
		c.rejectLocked(optima, "late_reveal")
		return outcome, nil
	}

	selected, err := quorum.Select(optimaID, chainTipHash, eligible, optima.OptimizerID, c.cfg.QuorumMinEvaluators, c.cfg.QuorumMaxEvaluators)
	if err != nil {
		return outcome, fmt.Errorf("select quorum: %w", err)
	}
	if len(selected) == 0 {
		c.rejectLocked(optima, "insufficient_quorum")
		return InsufficientQuorum, nil
	}

	quorumSet := make(map[string]bool, len(selected))
	for i, ev := range selected {
		quorumSet[ev] = true
		c.tasks.Create(fmt.Sprintf("verify:%s:%d", optimaID, i), 0, optimaID, currentHeight)
	}

	c.cr.SetState(optimaID, core.OptimaVoting)
	c.sessions[optimaID] = &votingSession{
		optima:         optima,
		quorum:         selected,
		quorumSet:      quorumSet,
		requiredVotes:  quorum.RequiredVotes(len(selected), c.cfg.QuorumFraction),
		votes:          make(map[string]core.Vote),
		deadlineHeight: currentHeight + c.cfg.VotingTimeoutBlocks,
	}
	c.emit(events.EventOptimaRevealed, optimaID, map[string]any{"quorum_size": len(selected)})
	return commitreveal.Accepted, nil
}

// SubmitVote records one evaluator's vote against an open voting session.
// If every selected evaluator has now voted, the optima is decided
// immediately rather than waiting for the next Tick.
func (c *Coordinator) SubmitVote(vote core.Vote, now time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess, ok := c.sessions[vote.OptimaID]
	if !ok {
		return fmt.Errorf("no open voting session for optima %s", vote.OptimaID)
	}
	if !sess.quorumSet[vote.EvaluatorID] {
		return fmt.Errorf("evaluator %s is not in the selected quorum for %s", vote.EvaluatorID, vote.OptimaID)
	}
	if _, already := sess.votes[vote.EvaluatorID]; already {
		return fmt.Errorf("evaluator %s already voted on %s", vote.EvaluatorID, vote.OptimaID)
	}
	sess.votes[vote.EvaluatorID] = vote
	c.emit(events.EventVoteCast, vote.OptimaID, map[string]any{"evaluator_id": vote.EvaluatorID})

	if len(sess.votes) == len(sess.quorum) {
		c.decideLocked(vote.OptimaID, now)
	}
	return nil
}

// Tick is called once per block (or main-loop iteration) to expire
// past-window commitments, close out voting sessions whose timeout has
// elapsed, and reopen abandoned task claims.
func (c *Coordinator) Tick(currentHeight int64, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, optima := range c.cr.ExpirePastWindow(currentHeight) {
		c.rejectLocked(optima, "reveal_window_expired")
	}

	for optimaID, sess := range c.sessions {
		if currentHeight >= sess.deadlineHeight {
			c.decideLocked(optimaID, now)
		}
	}

	c.tasks.ReopenAbandoned(currentHeight)
}

// rejectLocked emits a REJECTED_OPTIMA transaction and evicts the optima
// from in-flight tracking. Caller must hold c.mu.
func (c *Coordinator) rejectLocked(optima *core.Optima, reason string) {
	if optima == nil {
		return
	}
	tx, err := core.NewTransaction(core.TxRejectedOptima, core.RejectedOptimaPayload{OptimaID: optima.ID, Reason: reason})
	if err == nil {
		c.pending.Add(tx)
	}
	c.emit(events.EventOptimaRejected, optima.ID, map[string]any{
		"reason":       reason,
		"optimizer_id": optima.OptimizerID,
		"domain_id":    optima.DomainID,
	})
	c.cr.Evict(optima.ID)
	delete(c.sessions, optima.ID)
}

// decideLocked computes median_verified over the votes received so far,
// applies the incentive model and reputation adjustments, and emits the
// resulting ACCEPTED_OPTIMA/REJECTED_OPTIMA plus paired REPUTATION_UPDATE
// transactions. Caller must hold c.mu.
func (c *Coordinator) decideLocked(optimaID string, now time.Time) {
	sess, ok := c.sessions[optimaID]
	if !ok {
		return
	}
	delete(c.sessions, optimaID)
	optima := sess.optima

	if len(sess.votes) < sess.requiredVotes {
		for _, evaluatorID := range sess.quorum {
			if _, voted := sess.votes[evaluatorID]; !voted {
				_ = c.reputation.Penalize(evaluatorID, reputation.NoShowPenalty, now)
				c.recordReputationDelta(evaluatorID, -reputation.NoShowPenalty)
			}
		}
		c.rejectLocked(optima, "insufficient_quorum")
		return
	}

	dom, err := c.domains.Get(optima.DomainID)
	if err != nil {
		c.rejectLocked(optima, "unknown_domain")
		return
	}

	measurements := make([]float64, 0, len(sess.votes))
	for _, v := range sess.votes {
		measurements = append(measurements, v.MeasuredMetric)
	}
	medianVerified := median(measurements)
	baseline, hasBaseline := c.runningBest[optima.DomainID]
	if !hasBaseline {
		// No prior accepted optima for this domain: there is nothing to
		// compare against yet. Seed a genesis baseline one tolerance unit
		// on the unfavorable side of the verified median, in the domain's
		// optimization direction, so the first accepted optima for a
		// domain still contributes a positive effective_increment instead
		// of comparing a result against itself.
		if dom.HigherIsBetter {
			baseline = medianVerified - c.cfg.Tolerance
		} else {
			baseline = medianVerified + c.cfg.Tolerance
		}
	}

	result := incentive.Evaluate(optima.ReportedMetric, medianVerified, baseline, c.cfg.Tolerance, dom.HigherIsBetter)

	for evaluatorID, vote := range sess.votes {
		discrepancy := absDiff(vote.MeasuredMetric, medianVerified)
		ratio := discrepancy
		if c.cfg.Tolerance > 0 {
			ratio = discrepancy / c.cfg.Tolerance
		}
		if ratio > 1 {
			_ = c.reputation.Penalize(evaluatorID, reputation.DivergencePenalty, now)
			c.recordReputationDelta(evaluatorID, -reputation.DivergencePenalty)
		} else {
			delta := reputation.BaseReward + clamp01(1-ratio)*reputation.MaxConfidenceBonus
			_ = c.reputation.Reward(evaluatorID, 1-ratio, now)
			c.recordReputationDelta(evaluatorID, delta)
		}
	}

	for _, evaluatorID := range sess.quorum {
		if _, voted := sess.votes[evaluatorID]; !voted {
			_ = c.reputation.Penalize(evaluatorID, reputation.NoShowPenalty, now)
			c.recordReputationDelta(evaluatorID, -reputation.NoShowPenalty)
		}
	}

	c.cr.Evict(optimaID)

	if !result.Accepted {
		c.rejectLocked(optima, "discrepancy_exceeds_tolerance")
		return
	}

	c.cr.SetState(optimaID, core.OptimaAccepted)

	if dom.HigherIsBetter && medianVerified > baseline || !dom.HigherIsBetter && medianVerified < baseline {
		c.runningBest[optima.DomainID] = medianVerified
	} else if !hasBaseline {
		c.runningBest[optima.DomainID] = medianVerified
	}

	_ = c.reputation.Reward(optima.OptimizerID, result.RewardFraction, now)
	c.recordReputationDelta(optima.OptimizerID, reputation.BaseReward+clamp01(result.RewardFraction)*reputation.MaxConfidenceBonus)

	tx, err := core.NewTransaction(core.TxAcceptedOptima, core.AcceptedOptimaPayload{
		Optima:             *optima,
		DomainWeight:       dom.Weight,
		EffectiveIncrement: result.EffectiveIncrement,
		RewardFraction:     result.RewardFraction,
	})
	if err == nil {
		c.pending.Add(tx)
	}
	c.emit(events.EventOptimaAccepted, optimaID, map[string]any{
		"optimizer_id":        optima.OptimizerID,
		"domain_id":           optima.DomainID,
		"effective_increment": result.EffectiveIncrement,
	})

	c.pooEngine.RecordAccepted(optima.DomainID, dom.Weight, result.EffectiveIncrement)
	c.pooEngine.RecordReward(optima.OptimizerID, result.EffectiveIncrement, result.RewardFraction, sess.quorum)
}

func median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	for i := 1; i < n; i++ {
		for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	mid := n / 2
	if n%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

func absDiff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}

// recordReputationDelta appends a REPUTATION_UPDATE transaction alongside
// the in-memory Tracker adjustment already applied by the caller, so the
// delta is visible on-chain even though reputation itself is not part of
// state_root. Caller must hold c.mu.
func (c *Coordinator) recordReputationDelta(peerID string, delta float64) {
	tx, err := core.NewTransaction(core.TxReputationUpdate, core.ReputationUpdatePayload{PeerID: peerID, Delta: delta})
	if err == nil {
		c.pending.Add(tx)
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

