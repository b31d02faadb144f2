// Package doinerr models the six error kinds from the node's error
// handling policy: Protocol, Consistency, Economic, Liveness, External, and
// Fatal. Every package that needs to tell the main loop how to react to a
// failure (drop silently, reject a block, flag a peer, halt) wraps its
// errors with doinerr.New so the node package can switch on Kind in one
// place instead of re-deriving policy from error strings.
package doinerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error by the response policy it demands.
type Kind string

const (
	// Protocol errors are malformed messages, bad signatures, or exhausted
	// TTLs. Local and silent to the sender: drop, optionally count.
	Protocol Kind = "protocol"
	// Consistency errors are hash/merkle mismatches, non-monotone index, or
	// a reorg attempt below finality. Cause block rejection and flag the
	// source peer.
	Consistency Kind = "consistency"
	// Economic errors are insufficient reputation, rate limiting, or a
	// bounds violation.
	Economic Kind = "economic"
	// Liveness errors are timeouts or insufficient quorum. They progress
	// the state machine (timeout -> reject) rather than halting it.
	Liveness Kind = "liveness"
	// External errors are anchor divergence or peer misbehavior observed
	// from outside the node's own chain. Triggers SUSPECT mode.
	External Kind = "external"
	// Fatal errors are chain file corruption. They halt the node with a
	// non-zero exit code.
	Fatal Kind = "fatal"
)

// Error pairs a Kind with the wrapped cause.
type Error struct {
	Kind Kind
	Op   string // component/operation that raised it, e.g. "commitreveal.Reveal"
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with a Kind and the operation name that produced it.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf is New with a formatted message instead of a wrapped error.
func Newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the Kind of err if it (or something it wraps) is a
// *doinerr.Error, and ok=false otherwise.
func KindOf(err error) (Kind, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return "", false
}
