package config

import (
	"testing"

	"github.com/harveybc/doin-core/crypto"
	"github.com/harveybc/doin-core/internal/testutil"
)

func TestCreateGenesisBlockAppliesAllocAndReputation(t *testing.T) {
	priv, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	state := testutil.NewStateDB()
	cfg := validConfig()
	cfg.Genesis.Alloc = map[string]uint64{"deadbeef": 1000}
	cfg.Genesis.Reputation = map[string]float64{"deadbeef": 5.0}

	block, err := CreateGenesisBlock(cfg, state, priv)
	if err != nil {
		t.Fatalf("CreateGenesisBlock: %v", err)
	}
	if block.Header.Index != 0 || block.Header.PreviousHash != GenesisPreviousHash {
		t.Errorf("unexpected genesis header: %+v", block.Header)
	}
	if err := block.Verify(pub); err != nil {
		t.Errorf("genesis block should verify against the generator's key: %v", err)
	}

	account, err := state.GetAccount("deadbeef")
	if err != nil || account.Balance != 1000 {
		t.Errorf("alloc should have been committed to state: account=%+v err=%v", account, err)
	}
	rep, err := state.GetReputation("deadbeef")
	if err != nil || rep.Score != 5.0 {
		t.Errorf("reputation should have been committed to state: rep=%+v err=%v", rep, err)
	}
}

func TestIsGenesisHash(t *testing.T) {
	if !IsGenesisHash(GenesisPreviousHash) {
		t.Error("the canonical genesis hash should report true")
	}
	if IsGenesisHash("deadbeef") {
		t.Error("a non-zero hash should report false")
	}
}
