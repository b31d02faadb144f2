package core

import (
	"errors"
	"fmt"

	"github.com/harveybc/doin-core/crypto"
)

// BlockHeader contains the block metadata. Only Index, PreviousHash,
// MerkleRoot and Timestamp enter the block hash (see ComputeHash), and the
// signature covers that hash; ThresholdUsed and GeneratorID are not covered.
type BlockHeader struct {
	Index         int64   `json:"index"`
	PreviousHash  string  `json:"previous_hash"`
	Timestamp     int64   `json:"timestamp"`
	MerkleRoot    string  `json:"merkle_root"`
	ThresholdUsed float64 `json:"threshold_used"`
	GeneratorID   string  `json:"generator_id"` // generator's pubkey hex
}

// Block is a collection of transactions with a signed header.
type Block struct {
	Header       BlockHeader    `json:"header"`
	Transactions []*Transaction `json:"transactions"`
	BlockHash    string         `json:"block_hash"`
	Signature    string         `json:"signature"`
}

// ComputeHash implements block_hash = H(index ∥ previous_hash ∥ merkle_root
// ∥ timestamp).
func (b *Block) ComputeHash() string {
	data := crypto.NewEncoder().
		Int64(b.Header.Index).
		String(b.Header.PreviousHash).
		String(b.Header.MerkleRoot).
		Int64(b.Header.Timestamp).
		Finish()
	return crypto.Hash(data)
}

// Sign sets BlockHash and signs the block with the generator's private key.
func (b *Block) Sign(priv crypto.PrivateKey) {
	b.BlockHash = b.ComputeHash()
	b.Signature = crypto.Sign(priv, []byte(b.BlockHash))
}

// Verify checks that b.BlockHash matches the recomputed header hash and
// that the generator's signature over it is valid.
func (b *Block) Verify(pub crypto.PublicKey) error {
	if computed := b.ComputeHash(); b.BlockHash != computed {
		return fmt.Errorf("block hash mismatch: stored %s computed %s", b.BlockHash, computed)
	}
	return crypto.Verify(pub, []byte(b.BlockHash), b.Signature)
}

// VerifyIntegrity checks structural integrity independent of the generator
// signature: hash consistency and merkle_root correctness.
func (b *Block) VerifyIntegrity() error {
	if computed := b.ComputeHash(); b.BlockHash != computed {
		return fmt.Errorf("block hash mismatch: stored %s computed %s", b.BlockHash, computed)
	}
	if root := ComputeMerkleRoot(b.Transactions); b.Header.MerkleRoot != root {
		return errors.New("merkle_root mismatch")
	}
	return nil
}

// ComputeMerkleRoot builds the merkle root over the canonical encoding of
// each transaction, per the canonical-encoding discipline: merkle_root =
// merkle_root(canonical(transactions)).
func ComputeMerkleRoot(txs []*Transaction) string {
	leaves := make([][]byte, len(txs))
	for i, tx := range txs {
		leaves[i] = tx.Canonical()
	}
	return crypto.MerkleRoot(leaves)
}

// NewBlock creates an unsigned block. index must equal previous.index + 1,
// and timestamp must be >= the previous block's timestamp; the caller (the
// poo engine) is responsible for enforcing both per §3's block invariants.
func NewBlock(index int64, previousHash string, timestamp int64, thresholdUsed float64, generatorID string, txs []*Transaction) *Block {
	return &Block{
		Header: BlockHeader{
			Index:         index,
			PreviousHash:  previousHash,
			Timestamp:     timestamp,
			MerkleRoot:    ComputeMerkleRoot(txs),
			ThresholdUsed: thresholdUsed,
			GeneratorID:   generatorID,
		},
		Transactions: txs,
	}
}
