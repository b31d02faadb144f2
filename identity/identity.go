// Package identity manages a peer's ed25519 key pair: the hex-encoded
// public key that identifies it as generator, optimizer, or evaluator
// throughout the rest of the system. Grounded on the teacher's
// wallet/wallet.go, with the PoA-chain transaction-building helpers
// (NewTx/Transfer) dropped — DOIN's on-chain transactions are all
// synthesized server-side by the coordinator and poo engine, never signed
// and submitted by a peer directly.
package identity

import (
	"github.com/harveybc/doin-core/core"
	"github.com/harveybc/doin-core/crypto"
)

// Identity holds a peer's key pair.
type Identity struct {
	priv crypto.PrivateKey
	pub  crypto.PublicKey
}

// New wraps an existing private key as an Identity.
func New(priv crypto.PrivateKey) *Identity {
	return &Identity{priv: priv, pub: priv.Public()}
}

// Generate creates an Identity with a freshly generated key pair.
func Generate() (*Identity, error) {
	priv, _, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	return New(priv), nil
}

// PrivKey returns the raw private key (handle with care).
func (id *Identity) PrivKey() crypto.PrivateKey {
	return id.priv
}

// PubKey returns the hex-encoded ed25519 public key, used as this peer's
// id wherever the system refers to a generator_id, optimizer_id, or
// evaluator_id.
func (id *Identity) PubKey() string {
	return id.pub.Hex()
}

// Address returns the short human-readable address (first 20 bytes of
// SHA-256(pubkey)).
func (id *Identity) Address() string {
	return id.pub.Address()
}

// ComputeCommitHash computes the commit_hash an optimizer publishes at
// commit time: H(canonical(parameters, nonce)). Exposed here as the
// counterpart to core.VerifyCommitHash, for reference client code built
// against this module.
func ComputeCommitHash(parameters, nonce []byte) string {
	return crypto.Hash(core.CommitPreimage(parameters, nonce))
}
