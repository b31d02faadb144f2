package storage

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/harveybc/doin-core/core"
	"github.com/harveybc/doin-core/crypto"
)

func openTestLevelDB(t *testing.T) *LevelDB {
	t.Helper()
	db, err := NewLevelDB(filepath.Join(t.TempDir(), "leveldb"))
	if err != nil {
		t.Fatalf("NewLevelDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestLevelDBSetGetRoundtrip(t *testing.T) {
	db := openTestLevelDB(t)
	if err := db.Set([]byte("key"), []byte("value")); err != nil {
		t.Fatal(err)
	}
	got, err := db.Get([]byte("key"))
	if err != nil || string(got) != "value" {
		t.Errorf("Get: got %q err=%v", got, err)
	}
}

func TestLevelDBGetMissingReturnsErrNotFound(t *testing.T) {
	db := openTestLevelDB(t)
	if _, err := db.Get([]byte("missing")); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected core.ErrNotFound, got %v", err)
	}
}

func TestLevelDBDeleteRemovesKey(t *testing.T) {
	db := openTestLevelDB(t)
	db.Set([]byte("key"), []byte("value"))
	if err := db.Delete([]byte("key")); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Get([]byte("key")); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected core.ErrNotFound after delete, got %v", err)
	}
}

func TestLevelDBIteratorRespectsPrefix(t *testing.T) {
	db := openTestLevelDB(t)
	db.Set([]byte("acct:a"), []byte("1"))
	db.Set([]byte("acct:b"), []byte("2"))
	db.Set([]byte("rep:a"), []byte("3"))

	it := db.NewIterator([]byte("acct:"))
	defer it.Release()
	var count int
	for it.Next() {
		count++
	}
	if count != 2 {
		t.Errorf("expected 2 keys under acct: prefix, got %d", count)
	}
}

func newTestBlock(index int64, previousHash string, priv crypto.PrivateKey) *core.Block {
	b := core.NewBlock(index, previousHash, int64(index+1)*1000, 1.0, priv.Public().Hex(), nil)
	b.Sign(priv)
	return b
}

func TestLevelBlockStoreCommitBlockAtomicity(t *testing.T) {
	db := openTestLevelDB(t)
	store := NewLevelBlockStore(db)
	priv, _, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	block := newTestBlock(0, "0000", priv)

	if err := store.CommitBlock(block); err != nil {
		t.Fatalf("CommitBlock: %v", err)
	}

	got, err := store.GetBlock(block.BlockHash)
	if err != nil || got.BlockHash != block.BlockHash {
		t.Errorf("GetBlock: got %+v err=%v", got, err)
	}
	byHeight, err := store.GetBlockByHeight(0)
	if err != nil || byHeight.BlockHash != block.BlockHash {
		t.Errorf("GetBlockByHeight: got %+v err=%v", byHeight, err)
	}
	tip, err := store.GetTip()
	if err != nil || tip != block.BlockHash {
		t.Errorf("GetTip: got %q err=%v", tip, err)
	}
}

func TestLevelBlockStoreGetTipEmptyChain(t *testing.T) {
	db := openTestLevelDB(t)
	store := NewLevelBlockStore(db)
	tip, err := store.GetTip()
	if err != nil || tip != "" {
		t.Errorf("a fresh store should report an empty tip, got %q err=%v", tip, err)
	}
}
