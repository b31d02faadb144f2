package config

import (
	"strings"
	"time"

	"github.com/harveybc/doin-core/core"
	"github.com/harveybc/doin-core/crypto"
)

// GenesisPreviousHash is the canonical all-zeros previous hash for block 0.
const GenesisPreviousHash = "0000000000000000000000000000000000000000000000000000000000000000"

// CreateGenesisBlock builds and signs block #0 from the config's Alloc and
// Reputation maps, committing the initial account/reputation state before
// computing the block. The chain id is carried as the sole transaction-free
// block's generator_id cannot hold it, so it is recorded only in config and
// verified out of band by operators joining the network.
func CreateGenesisBlock(cfg *Config, state core.State, generatorPriv crypto.PrivateKey) (*core.Block, error) {
	generatorPub := generatorPriv.Public()

	for pubkeyHex, balance := range cfg.Genesis.Alloc {
		if err := state.SetAccount(&core.Account{Address: pubkeyHex, Balance: balance}); err != nil {
			return nil, err
		}
	}
	for pubkeyHex, score := range cfg.Genesis.Reputation {
		if err := state.SetReputation(&core.ReputationRecord{PeerID: pubkeyHex, Score: score, LastUpdate: 0}); err != nil {
			return nil, err
		}
	}
	if err := state.Commit(); err != nil {
		return nil, err
	}

	block := core.NewBlock(0, GenesisPreviousHash, time.Unix(0, 0).UnixNano(), cfg.InitialThreshold, generatorPub.Hex(), nil)
	block.Sign(generatorPriv)
	return block, nil
}

// IsGenesisHash reports whether h is the canonical genesis previous-hash.
func IsGenesisHash(h string) bool {
	return len(h) == len(GenesisPreviousHash) && strings.Count(h, "0") == len(h)
}
