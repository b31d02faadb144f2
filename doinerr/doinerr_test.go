package doinerr

import (
	"errors"
	"testing"
)

func TestErrorMessageIncludesKindOpAndCause(t *testing.T) {
	cause := errors.New("bad signature")
	err := New(Protocol, "network.Envelope.Verify", cause)
	want := "protocol: network.Envelope.Verify: bad signature"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestUnwrapReturnsCause(t *testing.T) {
	cause := errors.New("insufficient reputation")
	err := New(Economic, "quorum.Select", cause)
	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
}

func TestNewfFormatsMessage(t *testing.T) {
	err := Newf(Liveness, "coordinator.Tick", "voting session %s timed out", "optima-1")
	if err.Err.Error() != "voting session optima-1 timed out" {
		t.Errorf("unexpected formatted message: %q", err.Err.Error())
	}
}

func TestKindOfFindsWrappedKind(t *testing.T) {
	inner := New(Consistency, "core.Blockchain.AddBlock", errors.New("previous_hash mismatch"))
	wrapped := errors.Join(errors.New("context"), inner)

	kind, ok := KindOf(wrapped)
	if !ok || kind != Consistency {
		t.Errorf("KindOf: got %q ok=%v, want Consistency", kind, ok)
	}
}

func TestKindOfReturnsFalseForPlainError(t *testing.T) {
	if _, ok := KindOf(errors.New("plain")); ok {
		t.Error("a plain error should not resolve to a Kind")
	}
}
