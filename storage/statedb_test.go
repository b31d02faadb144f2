package storage_test

import (
	"testing"

	"github.com/harveybc/doin-core/core"
	"github.com/harveybc/doin-core/internal/testutil"
)

func TestGetAccountReturnsZeroValueWhenUnset(t *testing.T) {
	s := testutil.NewStateDB()
	acc, err := s.GetAccount("ghost")
	if err != nil {
		t.Fatalf("an unset account should not error: %v", err)
	}
	if acc.Address != "ghost" || acc.Balance != 0 {
		t.Errorf("expected a zero-value account, got %+v", acc)
	}
}

func TestSetGetAccountRoundtrip(t *testing.T) {
	s := testutil.NewStateDB()
	if err := s.SetAccount(&core.Account{Address: "peer-1", Balance: 500}); err != nil {
		t.Fatal(err)
	}
	acc, err := s.GetAccount("peer-1")
	if err != nil || acc.Balance != 500 {
		t.Errorf("expected balance 500, got %+v err=%v", acc, err)
	}
}

func TestGetReputationReturnsZeroValueWhenUnset(t *testing.T) {
	s := testutil.NewStateDB()
	rep, err := s.GetReputation("ghost")
	if err != nil {
		t.Fatalf("an unset reputation record should not error: %v", err)
	}
	if rep.Score != 0 {
		t.Errorf("expected zero-value score, got %+v", rep)
	}
}

func TestSnapshotRevertUndoesPendingWrites(t *testing.T) {
	s := testutil.NewStateDB()
	s.SetAccount(&core.Account{Address: "peer-1", Balance: 100})
	snap, err := s.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	s.SetAccount(&core.Account{Address: "peer-1", Balance: 999})

	if err := s.RevertToSnapshot(snap); err != nil {
		t.Fatalf("RevertToSnapshot: %v", err)
	}
	acc, _ := s.GetAccount("peer-1")
	if acc.Balance != 100 {
		t.Errorf("revert should restore the pre-snapshot balance: got %d want 100", acc.Balance)
	}
}

func TestCommitPersistsAndClearsWriteBuffer(t *testing.T) {
	s := testutil.NewStateDB()
	s.SetAccount(&core.Account{Address: "peer-1", Balance: 42})
	rootBefore := s.ComputeRoot()
	if err := s.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	acc, err := s.GetAccount("peer-1")
	if err != nil || acc.Balance != 42 {
		t.Errorf("account should survive Commit: %+v err=%v", acc, err)
	}
	if s.ComputeRoot() != rootBefore {
		t.Error("ComputeRoot should be stable across a Commit with no new writes")
	}
}

func TestComputeRootIsDeterministicAndOrderIndependent(t *testing.T) {
	a := testutil.NewStateDB()
	a.SetAccount(&core.Account{Address: "peer-1", Balance: 1})
	a.SetAccount(&core.Account{Address: "peer-2", Balance: 2})

	b := testutil.NewStateDB()
	b.SetAccount(&core.Account{Address: "peer-2", Balance: 2})
	b.SetAccount(&core.Account{Address: "peer-1", Balance: 1})

	if a.ComputeRoot() != b.ComputeRoot() {
		t.Error("ComputeRoot should not depend on the order writes were applied in")
	}
}

func TestComputeRootChangesWithState(t *testing.T) {
	s := testutil.NewStateDB()
	empty := s.ComputeRoot()
	s.SetAccount(&core.Account{Address: "peer-1", Balance: 1})
	if s.ComputeRoot() == empty {
		t.Error("ComputeRoot should change once state is written")
	}
}
