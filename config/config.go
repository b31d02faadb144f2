package config

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/harveybc/doin-core/bounds"
	"github.com/harveybc/doin-core/poo"
	"github.com/harveybc/doin-core/quorum"
	"github.com/harveybc/doin-core/reputation"
)

// TLSConfig holds paths to the PEM files needed for mTLS.
// When nil or all paths empty, the node falls back to plain TCP.
type TLSConfig struct {
	CACert   string `json:"ca_cert"`   // CA certificate PEM path
	NodeCert string `json:"node_cert"` // node certificate PEM path
	NodeKey  string `json:"node_key"`  // node private key PEM path
}

// SeedPeer identifies a remote node to connect to on startup.
type SeedPeer struct {
	ID   string `json:"id"`   // remote node ID
	Addr string `json:"addr"` // host:port
}

// GenesisConfig describes the chain's initial state: the genesis alloc of
// DOIN balances and the seed reputation every founding peer starts with.
type GenesisConfig struct {
	ChainID    string             `json:"chain_id"`
	Alloc      map[string]uint64  `json:"alloc"`       // pubkey hex -> initial balance
	Reputation map[string]float64 `json:"reputation"`  // pubkey hex -> initial score; peers not listed start with no record (score 0)
}

// DomainConfig registers one optimization domain the node will accept
// optimae submissions for.
type DomainConfig struct {
	ID                string  `json:"id"`
	Weight            float64 `json:"weight"`
	HigherIsBetter    bool    `json:"higher_is_better"`
	PerformanceMetric string  `json:"performance_metric"`
	MaxParamBytes     int     `json:"max_param_bytes"`
	MaxTrainingSeconds float64 `json:"max_training_seconds"`
	MaxMemoryMB       int     `json:"max_memory_mb"`
	MinDimensions     int     `json:"min_dimensions"`
	MaxDimensions     int     `json:"max_dimensions"`
}

// Config holds all node configuration: the ambient node/network/genesis
// surface the teacher's Config already carried, plus every consensus
// parameter named by spec.md §6's Configuration surface.
type Config struct {
	NodeID  string `json:"node_id"`
	DataDir string `json:"data_dir"`
	RPCPort int    `json:"rpc_port"`
	P2PPort int    `json:"p2p_port"`

	MaxBlockTxs int `json:"max_block_txs"` // max transactions per block; 0 -> 500

	Genesis   GenesisConfig `json:"genesis"`
	SeedPeers []SeedPeer    `json:"seed_peers,omitempty"`
	TLS       *TLSConfig    `json:"tls,omitempty"`           // nil -> plain TCP
	RPCAuthToken string     `json:"rpc_auth_token,omitempty"` // empty -> no auth

	Domains     []DomainConfig      `json:"domains"`
	EvaluatorOf map[string][]string `json:"evaluator_of"` // domain id -> peer pubkey hexes registered as evaluators

	// Consensus parameters, spec.md §6.
	TargetBlockTimeSeconds     float64 `json:"target_block_time_seconds"`
	InitialThreshold           float64 `json:"initial_threshold"`
	ConfirmationDepth          int64   `json:"confirmation_depth"`
	QuorumMinEvaluators        int     `json:"quorum_min_evaluators"`
	QuorumMaxEvaluators        int     `json:"quorum_max_evaluators"`
	QuorumFraction             float64 `json:"quorum_fraction"`
	QuorumTolerance            float64 `json:"quorum_tolerance"`
	CommitRevealWindowBlocks   int64   `json:"commit_reveal_window_blocks"`
	VotingTimeoutBlocks        int64   `json:"voting_timeout_blocks"`
	MaxParamBytes              int     `json:"max_param_bytes"`
	MaxTrainingSeconds          float64 `json:"max_training_seconds"`
	MaxMemoryMB                 int     `json:"max_memory_mb"`
	ReputationHalfLifeSeconds    int64   `json:"reputation_half_life_seconds"`
	MinReputationForConsensus    float64 `json:"min_reputation_for_consensus"`
	ExternalAnchorIntervalBlocks int64   `json:"external_anchor_interval_blocks"`
	ExternalAnchorLedgerPath     string  `json:"external_anchor_ledger_path,omitempty"` // empty -> anchor publishing disabled
	MaxClockDriftSeconds         int64   `json:"max_clock_drift_seconds"`
}

// DefaultConfig returns a single-node development configuration with every
// consensus parameter set to its spec.md §6 default.
func DefaultConfig() *Config {
	return &Config{
		NodeID:      "node0",
		DataDir:     "./data",
		RPCPort:     8545,
		P2PPort:     30303,
		MaxBlockTxs: 500,
		Genesis: GenesisConfig{
			ChainID:    "doin-dev",
			Alloc:      map[string]uint64{},
			Reputation: map[string]float64{},
		},
		EvaluatorOf: map[string][]string{},

		TargetBlockTimeSeconds:       600,
		InitialThreshold:             1.0,
		ConfirmationDepth:            6,
		QuorumMinEvaluators:          quorum.DefaultMinEvaluators,
		QuorumMaxEvaluators:          quorum.DefaultMaxEvaluators,
		QuorumFraction:               quorum.DefaultQuorumFraction,
		QuorumTolerance:              quorum.DefaultTolerance,
		CommitRevealWindowBlocks:     8,
		VotingTimeoutBlocks:          4,
		MaxParamBytes:                64 * 1024 * 1024,
		MaxTrainingSeconds:           3600,
		MaxMemoryMB:                  8192,
		ReputationHalfLifeSeconds:    7 * 24 * 3600,
		MinReputationForConsensus:    reputation.MinForConsensus,
		ExternalAnchorIntervalBlocks: 100,
		MaxClockDriftSeconds:         15,
	}
}

// Load reads a JSON config file from path, layering it over DefaultConfig,
// and validates required fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// Validate checks that all required fields are present and well-formed.
func (c *Config) Validate() error {
	if c.NodeID == "" {
		return fmt.Errorf("node_id must not be empty")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if c.Genesis.ChainID == "" {
		return fmt.Errorf("genesis.chain_id must not be empty")
	}
	if c.RPCPort <= 0 || c.RPCPort > 65535 {
		return fmt.Errorf("rpc_port must be 1-65535, got %d", c.RPCPort)
	}
	if c.P2PPort <= 0 || c.P2PPort > 65535 {
		return fmt.Errorf("p2p_port must be 1-65535, got %d", c.P2PPort)
	}
	if c.RPCPort == c.P2PPort {
		return fmt.Errorf("rpc_port and p2p_port must not be the same (%d)", c.RPCPort)
	}
	if len(c.Domains) == 0 {
		return fmt.Errorf("domains list must not be empty")
	}
	seen := make(map[string]bool, len(c.Domains))
	for i, d := range c.Domains {
		if d.ID == "" {
			return fmt.Errorf("domains[%d]: id must not be empty", i)
		}
		if seen[d.ID] {
			return fmt.Errorf("domains[%d]: duplicate domain id %q", i, d.ID)
		}
		seen[d.ID] = true
	}
	for domainID := range c.EvaluatorOf {
		if !seen[domainID] {
			return fmt.Errorf("evaluator_of: unknown domain id %q", domainID)
		}
	}
	for pubkeyHex := range c.Genesis.Alloc {
		if _, err := hex.DecodeString(pubkeyHex); err != nil {
			return fmt.Errorf("genesis.alloc: invalid pubkey hex %q: %w", pubkeyHex, err)
		}
	}
	if c.ConfirmationDepth <= 0 {
		return fmt.Errorf("confirmation_depth must be positive, got %d", c.ConfirmationDepth)
	}
	if c.QuorumMinEvaluators <= 0 || c.QuorumMaxEvaluators < c.QuorumMinEvaluators {
		return fmt.Errorf("quorum_min_evaluators/quorum_max_evaluators must satisfy 0 < min <= max")
	}
	if c.QuorumFraction <= 0 || c.QuorumFraction > 1 {
		return fmt.Errorf("quorum_fraction must be in (0, 1], got %v", c.QuorumFraction)
	}
	if c.TLS != nil {
		t := c.TLS
		allSet := t.CACert != "" && t.NodeCert != "" && t.NodeKey != ""
		allEmpty := t.CACert == "" && t.NodeCert == "" && t.NodeKey == ""
		if !allSet && !allEmpty {
			return fmt.Errorf("tls: all three paths (ca_cert, node_cert, node_key) must be set or all empty")
		}
	}
	return nil
}

// Save writes the config to path as formatted JSON.
func Save(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// ThresholdBounds returns the poo.Threshold construction args this config
// implies: (initial, targetBlockTime, tMin, tMax), tMin/tMax left at the
// package defaults since spec.md §6 does not expose them as tunables.
func (c *Config) ThresholdBounds() (initial, targetBlockTime, tMin, tMax float64) {
	return c.InitialThreshold, c.TargetBlockTimeSeconds, poo.DefaultThresholdMin, poo.DefaultThresholdMax
}

// DomainLimits returns the bounds.Limits for domainID, falling back to the
// node-wide MaxParamBytes/MaxTrainingSeconds/MaxMemoryMB for any field the
// domain leaves at zero. Returns the node-wide defaults if domainID is
// unknown (domain existence is checked earlier, at commit time).
func (c *Config) DomainLimits(domainID string) bounds.Limits {
	for _, d := range c.Domains {
		if d.ID != domainID {
			continue
		}
		l := bounds.Limits{
			MaxParamBytes:      d.MaxParamBytes,
			MaxTrainingSeconds: d.MaxTrainingSeconds,
			MaxMemoryMB:        d.MaxMemoryMB,
			MinDimensions:      d.MinDimensions,
			MaxDimensions:      d.MaxDimensions,
		}
		if l.MaxParamBytes == 0 {
			l.MaxParamBytes = c.MaxParamBytes
		}
		if l.MaxTrainingSeconds == 0 {
			l.MaxTrainingSeconds = c.MaxTrainingSeconds
		}
		if l.MaxMemoryMB == 0 {
			l.MaxMemoryMB = c.MaxMemoryMB
		}
		return l
	}
	return bounds.Limits{MaxParamBytes: c.MaxParamBytes, MaxTrainingSeconds: c.MaxTrainingSeconds, MaxMemoryMB: c.MaxMemoryMB}
}
