package forkchoice

import (
	"testing"

	"github.com/harveybc/doin-core/core"
	"github.com/harveybc/doin-core/crypto"
	"github.com/harveybc/doin-core/internal/testutil"
)

func acceptedOptimaBlock(t *testing.T, index int64, previousHash string, weight, increment float64, priv crypto.PrivateKey) *core.Block {
	t.Helper()
	tx, err := core.NewTransaction(core.TxAcceptedOptima, core.AcceptedOptimaPayload{
		DomainWeight:       weight,
		EffectiveIncrement: increment,
	})
	if err != nil {
		t.Fatal(err)
	}
	block := core.NewBlock(index, previousHash, int64(index)*1000, 1.0, priv.Public().Hex(), []*core.Transaction{tx})
	block.Sign(priv)
	return block
}

func TestBlockWeightSumsAcceptedOptimaContributions(t *testing.T) {
	priv, _, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	block := acceptedOptimaBlock(t, 0, "0000", 2.0, 3.0, priv)
	if got := BlockWeight(block); got != 6.0 {
		t.Errorf("BlockWeight: got %v want 6.0", got)
	}
}

func TestHeavierPrefersGreaterWeight(t *testing.T) {
	current := Chain{TipHash: "aaaa", Weight: 1.0}
	candidate := Chain{TipHash: "bbbb", Weight: 2.0}
	if !Heavier(current, candidate) {
		t.Error("a strictly heavier candidate should be preferred")
	}
	if Heavier(candidate, current) {
		t.Error("a strictly lighter candidate should not be preferred")
	}
}

func TestHeavierTieBreaksOnLowerHash(t *testing.T) {
	current := Chain{TipHash: "ffff", Weight: 1.0}
	candidate := Chain{TipHash: "0000", Weight: 1.0}
	if !Heavier(current, candidate) {
		t.Error("on equal weight, the lower block hash should win")
	}
}

func newTestManager(t *testing.T) (*Manager, *core.Blockchain) {
	t.Helper()
	store := testutil.NewMemBlockStore()
	bc := core.NewBlockchain(store)
	if err := bc.Init(); err != nil {
		t.Fatal(err)
	}
	return New(bc, 2, 0, nil), bc
}

func TestOnBlockCommittedAccumulatesWeightAndAdvancesFinality(t *testing.T) {
	m, bc := newTestManager(t)
	priv, _, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}

	var prevHash string
	for i := int64(0); i < 4; i++ {
		block := acceptedOptimaBlock(t, i, prevHash, 1.0, 1.0, priv)
		if err := bc.AddBlock(block); err != nil {
			t.Fatalf("AddBlock(%d): %v", i, err)
		}
		if err := m.OnBlockCommitted(block); err != nil {
			t.Fatalf("OnBlockCommitted(%d): %v", i, err)
		}
		prevHash = block.BlockHash
	}

	if m.Weight() != 4.0 {
		t.Errorf("accumulated weight: got %v want 4.0", m.Weight())
	}
	// confirmation depth 2 over 4 blocks (indices 0..3) finalizes through index 1.
	if bc.FinalizedHeight() != 1 {
		t.Errorf("finalized height: got %d want 1", bc.FinalizedHeight())
	}
}

func TestSetSyncingClearsOnNextCommit(t *testing.T) {
	m, bc := newTestManager(t)
	m.SetSyncing(true)
	if m.Mode() != ModeSyncing {
		t.Fatalf("expected SYNCING, got %v", m.Mode())
	}
	priv, _, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	block := acceptedOptimaBlock(t, 0, "0000", 1.0, 1.0, priv)
	if err := bc.AddBlock(block); err != nil {
		t.Fatal(err)
	}
	if err := m.OnBlockCommitted(block); err != nil {
		t.Fatal(err)
	}
	if m.Mode() != ModeNormal {
		t.Errorf("mode should clear to NORMAL after a commit, got %v", m.Mode())
	}
}

func TestShouldAdoptRejectsForksBelowFinalizedHeight(t *testing.T) {
	m, bc := newTestManager(t)
	priv, _, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	var prevHash string
	for i := int64(0); i < 3; i++ {
		block := acceptedOptimaBlock(t, i, prevHash, 1.0, 1.0, priv)
		if err := bc.AddBlock(block); err != nil {
			t.Fatal(err)
		}
		if err := m.OnBlockCommitted(block); err != nil {
			t.Fatal(err)
		}
		prevHash = block.BlockHash
	}
	// confirmation depth 2 over 3 blocks (indices 0..2) finalizes index 0.
	if bc.FinalizedHeight() != 0 {
		t.Fatalf("finalized height: got %d want 0", bc.FinalizedHeight())
	}
	if m.ShouldAdopt("candidate", 1000.0, 0) {
		t.Error("a candidate forking at or below the finalized height must not be adopted regardless of weight")
	}
}

func TestReceiveAnchorLatchesSuspectOnDivergence(t *testing.T) {
	m, bc := newTestManager(t)
	priv, _, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	block := acceptedOptimaBlock(t, 0, "0000", 1.0, 1.0, priv)
	if err := bc.AddBlock(block); err != nil {
		t.Fatal(err)
	}

	if err := m.ReceiveAnchor(0, "not-the-real-hash"); err != nil {
		t.Fatal(err)
	}
	if m.Mode() != ModeSuspect {
		t.Errorf("a divergent anchor should latch SUSPECT, got %v", m.Mode())
	}
	if m.SuspectReason() == "" {
		t.Error("SUSPECT mode should record a reason")
	}

	m.ClearSuspect()
	if m.Mode() != ModeNormal {
		t.Error("ClearSuspect should return the manager to NORMAL")
	}
}

func TestResetWeightOverridesAccumulatedTotal(t *testing.T) {
	m, bc := newTestManager(t)
	priv, _, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	block := acceptedOptimaBlock(t, 0, "0000", 1.0, 1.0, priv)
	if err := bc.AddBlock(block); err != nil {
		t.Fatal(err)
	}
	if err := m.OnBlockCommitted(block); err != nil {
		t.Fatal(err)
	}
	if m.Weight() != 1.0 {
		t.Fatalf("weight before reset: got %v want 1.0", m.Weight())
	}
	m.ResetWeight(42.0)
	if m.Weight() != 42.0 {
		t.Errorf("ResetWeight should override the accumulated total: got %v want 42.0", m.Weight())
	}
}

func TestManagerAdvanceFinalityMatchesBlockchainDirectly(t *testing.T) {
	m, bc := newTestManager(t)
	priv, _, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	var prevHash string
	for i := int64(0); i < 5; i++ {
		block := acceptedOptimaBlock(t, i, prevHash, 1.0, 1.0, priv)
		if err := bc.AddBlock(block); err != nil {
			t.Fatal(err)
		}
		prevHash = block.BlockHash
	}
	m.AdvanceFinality()
	// confirmation depth 2 (newTestManager) over 5 blocks (indices 0..4) finalizes through index 2.
	if bc.FinalizedHeight() != 2 {
		t.Errorf("AdvanceFinality: finalized height got %d want 2", bc.FinalizedHeight())
	}
}

func TestReceiveAnchorIgnoresUnknownHeight(t *testing.T) {
	m, _ := newTestManager(t)
	if err := m.ReceiveAnchor(99, "whatever"); err != nil {
		t.Fatalf("an anchor for a height we have not reached should be a no-op, got error: %v", err)
	}
	if m.Mode() != ModeNormal {
		t.Error("an unknown-height anchor should not affect mode")
	}
}
