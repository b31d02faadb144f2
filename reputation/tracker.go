// Package reputation tracks each peer's decaying trust score. Scores decay
// continuously by exponential moving average and are only ever nudged by
// explicit reward/penalty events; nothing transfers reputation between
// peers.
package reputation

import (
	"math"
	"sync"
	"time"

	"github.com/harveybc/doin-core/core"
)

const (
	// BaseReward is the score added for a vote aligned with the accepted
	// quorum outcome, before the confidence bonus.
	BaseReward = 0.3
	// MaxConfidenceBonus caps the extra reward for high-confidence votes.
	MaxConfidenceBonus = 0.1
	// DivergencePenalty is applied to an evaluator whose vote diverged from
	// the accepted outcome.
	DivergencePenalty = 3.0
	// NoShowPenalty is applied to a selected evaluator who never voted.
	NoShowPenalty = 0.5
	// MinForConsensus is the score floor required to remain eligible for
	// quorum selection.
	MinForConsensus = 2.0

	defaultHalfLife = 7 * 24 * time.Hour
)

// Tracker is the in-memory reputation store backing a core.State
// implementation's GetReputation/SetReputation. It is not itself
// thread-safe beyond what a single-writer main loop needs; callers outside
// the main loop (e.g. an RPC status handler) should go through the
// mutex-guarded Score method.
type Tracker struct {
	mu       sync.RWMutex
	state    core.State
	halfLife time.Duration
}

// New returns a Tracker reading and writing through state, decaying scores
// with halfLife (spec default: 7 days / 604800s). A zero halfLife uses the
// default.
func New(state core.State, halfLife time.Duration) *Tracker {
	if halfLife <= 0 {
		halfLife = defaultHalfLife
	}
	return &Tracker{state: state, halfLife: halfLife}
}

// Score returns peerID's current score after applying EMA decay since its
// last update, without persisting the decayed value.
func (t *Tracker) Score(peerID string, now time.Time) (float64, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, err := t.state.GetReputation(peerID)
	if err != nil {
		return 0, err
	}
	if rec == nil {
		return 0, nil
	}
	return t.decay(rec, now), nil
}

func (t *Tracker) decay(rec *core.ReputationRecord, now time.Time) float64 {
	if rec.Score <= 0 {
		return 0
	}
	elapsed := now.UnixNano() - rec.LastUpdate
	if elapsed <= 0 {
		return rec.Score
	}
	exponent := float64(elapsed) / float64(t.halfLife.Nanoseconds())
	return rec.Score * math.Pow(0.5, exponent)
}

// Reward applies the EMA decay, then adds BaseReward plus a confidence
// bonus (confidence in [0,1], scaled by MaxConfidenceBonus) for a vote
// aligned with the accepted quorum outcome.
func (t *Tracker) Reward(peerID string, confidence float64, now time.Time) error {
	return t.adjust(peerID, now, func(decayed float64) float64 {
		bonus := clamp01(confidence) * MaxConfidenceBonus
		return decayed + BaseReward + bonus
	})
}

// Penalize applies the EMA decay, then subtracts delta (DivergencePenalty
// or NoShowPenalty), floored at zero — reputation never goes negative.
func (t *Tracker) Penalize(peerID string, delta float64, now time.Time) error {
	return t.adjust(peerID, now, func(decayed float64) float64 {
		next := decayed - delta
		if next < 0 {
			next = 0
		}
		return next
	})
}

func (t *Tracker) adjust(peerID string, now time.Time, fn func(decayed float64) float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, err := t.state.GetReputation(peerID)
	if err != nil {
		return err
	}
	if rec == nil {
		rec = &core.ReputationRecord{PeerID: peerID}
	}
	decayed := t.decay(rec, now)
	rec.Score = fn(decayed)
	rec.LastUpdate = now.UnixNano()
	return t.state.SetReputation(rec)
}

// EligibleForConsensus reports whether peerID's current score meets
// MinForConsensus.
func (t *Tracker) EligibleForConsensus(peerID string, now time.Time) (bool, error) {
	score, err := t.Score(peerID, now)
	if err != nil {
		return false, err
	}
	return score >= MinForConsensus, nil
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
