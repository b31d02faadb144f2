// Package node wires every subsystem into one running DOIN peer: storage,
// chain, domains, the optimae lifecycle coordinator, the PoO block engine,
// fork choice, P2P, and the RPC control surface. Grounded on
// cmd/node/main.go's construction order end to end, and on
// consensus/poa.go's Run(interval, done) ticker loop, now owned by this
// package's Service.Run instead of a thin main function.
package node

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/harveybc/doin-core/anchor"
	"github.com/harveybc/doin-core/commitreveal"
	"github.com/harveybc/doin-core/config"
	"github.com/harveybc/doin-core/coordinator"
	"github.com/harveybc/doin-core/core"
	"github.com/harveybc/doin-core/crypto"
	"github.com/harveybc/doin-core/domain"
	"github.com/harveybc/doin-core/events"
	"github.com/harveybc/doin-core/forkchoice"
	"github.com/harveybc/doin-core/identity"
	"github.com/harveybc/doin-core/indexer"
	"github.com/harveybc/doin-core/network"
	"github.com/harveybc/doin-core/plugin"
	"github.com/harveybc/doin-core/poo"
	"github.com/harveybc/doin-core/reputation"
	"github.com/harveybc/doin-core/rpc"
	"github.com/harveybc/doin-core/storage"
	"github.com/harveybc/doin-core/taskqueue"
)

// tickInterval is how often the main loop checks block-generation
// readiness, expires voting sessions, and reopens abandoned task claims,
// mirroring the teacher's 2-second consensus poll in cmd/node/main.go.
const tickInterval = 2 * time.Second

// minBlocksBetweenCommits rate-limits one optimizer's consecutive commits.
// spec.md §6 does not expose this as a tunable, so it is fixed here
// alongside the commit-reveal manager that owns it.
const minBlocksBetweenCommits = 1

// Service owns every subsystem for the life of one running node.
type Service struct {
	cfg *config.Config
	id  *identity.Identity

	db    *storage.LevelDB
	state core.State
	bc    *core.Blockchain

	emitter *events.Emitter
	idx     *indexer.Indexer

	domains    *domain.Registry
	reputation *reputation.Tracker
	cr         *commitreveal.Manager
	tasks      *taskqueue.Queue
	pending    *core.PendingPool
	threshold  *poo.Threshold
	engine     *poo.Engine
	coord      *coordinator.Coordinator
	fc         *forkchoice.Manager

	netNode *network.Node
	syncer  *network.Syncer

	rpcServer *rpc.Server

	anchorLedger *anchor.Ledger
	anchorCursor int
}

// New builds every subsystem but starts nothing: no listener is opened, no
// db write happens beyond genesis (only on a fresh chain). Call Run to
// start serving.
func New(cfg *config.Config, id *identity.Identity) (*Service, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("mkdir data dir: %w", err)
	}
	db, err := storage.NewLevelDB(cfg.DataDir + "/chain")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	state := storage.NewStateDB(db)
	blockStore := storage.NewLevelBlockStore(db)

	bc := core.NewBlockchain(blockStore)
	if err := bc.Init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("blockchain init: %w", err)
	}

	if bc.Tip() == nil {
		genesisBlock, err := config.CreateGenesisBlock(cfg, state, id.PrivKey())
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("genesis: %w", err)
		}
		if err := bc.AddBlock(genesisBlock); err != nil {
			db.Close()
			return nil, fmt.Errorf("add genesis: %w", err)
		}
		log.Printf("[node] genesis block committed: %s", genesisBlock.BlockHash)
	}

	emitter := events.NewEmitter()
	idx := indexer.New(db, emitter)

	domains := domain.NewRegistry()
	for _, dc := range cfg.Domains {
		domains.Register(domain.Domain{
			ID:                dc.ID,
			Weight:            dc.Weight,
			HigherIsBetter:    dc.HigherIsBetter,
			PerformanceMetric: dc.PerformanceMetric,
			Handle:            plugin.NewReferenceHandle(),
		})
	}

	repTracker := reputation.New(state, time.Duration(cfg.ReputationHalfLifeSeconds)*time.Second)
	cr := commitreveal.NewManager(cfg.CommitRevealWindowBlocks, minBlocksBetweenCommits)
	tasks := taskqueue.NewQueue(cfg.VotingTimeoutBlocks, emitter)
	pending := core.NewPendingPool()

	initial, targetBlockTime, tMin, tMax := cfg.ThresholdBounds()
	threshold := poo.NewThreshold(initial, targetBlockTime, tMin, tMax)
	engine := poo.New(bc, state, pending, emitter, threshold, id.PrivKey(), cfg.MaxBlockTxs, 0)

	coordCfg := coordinator.Config{
		QuorumMinEvaluators: cfg.QuorumMinEvaluators,
		QuorumMaxEvaluators: cfg.QuorumMaxEvaluators,
		QuorumFraction:      cfg.QuorumFraction,
		Tolerance:           cfg.QuorumTolerance,
		VotingTimeoutBlocks: cfg.VotingTimeoutBlocks,
	}
	coord := coordinator.New(coordCfg, cr, domains, repTracker, tasks, pending, engine, emitter)

	var anchorLedger *anchor.Ledger
	var publisher forkchoice.AnchorPublisher
	if cfg.ExternalAnchorLedgerPath != "" {
		anchorLedger, err = anchor.Open(cfg.ExternalAnchorLedgerPath)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("open anchor ledger: %w", err)
		}
		publisher = anchorLedger
	}
	fc := forkchoice.New(bc, cfg.ConfirmationDepth, cfg.ExternalAnchorIntervalBlocks, publisher)

	tlsCfg, err := config.LoadTLSConfig(cfg.TLS)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("tls: %w", err)
	}
	p2pAddr := fmt.Sprintf(":%d", cfg.P2PPort)
	netNode := network.NewNode(cfg.NodeID, p2pAddr, id.PrivKey(), tlsCfg)
	syncer := network.NewSyncer(netNode, bc, fc, cfg.MaxClockDriftSeconds)

	svc := &Service{
		cfg:          cfg,
		id:           id,
		db:           db,
		state:        state,
		bc:           bc,
		emitter:      emitter,
		idx:          idx,
		domains:      domains,
		reputation:   repTracker,
		cr:           cr,
		tasks:        tasks,
		pending:      pending,
		threshold:    threshold,
		engine:       engine,
		coord:        coord,
		fc:           fc,
		netNode:      netNode,
		syncer:       syncer,
		anchorLedger: anchorLedger,
	}
	svc.registerHandlers()

	rpcHandler := rpc.NewHandler(cfg.NodeID, bc, fc, engine, tasks, netNode, cfg.Genesis.ChainID)
	rpcAddr := fmt.Sprintf(":%d", cfg.RPCPort)
	svc.rpcServer = rpc.NewServer(rpcAddr, rpcHandler, cfg.RPCAuthToken)

	return svc, nil
}

// registerHandlers wires the business-logic handlers for the flood
// messages network.Node carries but does not itself interpret:
// OPTIMAE_COMMIT, OPTIMAE_REVEAL, VOTE, TASK_CREATED, TASK_CLAIMED,
// TASK_COMPLETED. The block-sync handlers (CHAIN_STATUS, BLOCK_REQUEST,
// BLOCK_RESPONSE, BLOCK_ANNOUNCEMENT) are already registered by
// network.NewSyncer.
func (s *Service) registerHandlers() {
	s.netNode.Handle(network.MsgOptimaeCommit, s.handleOptimaeCommit)
	s.netNode.Handle(network.MsgOptimaeReveal, s.handleOptimaeReveal)
	s.netNode.Handle(network.MsgVote, s.handleVote)
	s.netNode.Handle(network.MsgTaskCreated, s.handleTaskCreated)
	s.netNode.Handle(network.MsgTaskClaimed, s.handleTaskClaimed)
	s.netNode.Handle(network.MsgTaskCompleted, s.handleTaskCompleted)
}

func (s *Service) handleOptimaeCommit(peer *network.Peer, env network.Envelope) error {
	var p network.OptimaeCommitPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return nil
	}
	s.coord.SubmitCommit(p.OptimaID, p.DomainID, p.OptimizerID, p.CommitHash, p.ReportedMetric, p.Timestamp, s.bc.Height())
	return nil
}

func (s *Service) handleOptimaeReveal(peer *network.Peer, env network.Envelope) error {
	var p network.OptimaeRevealPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return nil
	}
	domainID, ok := s.coord.DomainOf(p.OptimaID)
	if !ok {
		return nil
	}
	tip := s.bc.Tip()
	tipHash := ""
	if tip != nil {
		tipHash = tip.BlockHash
	}
	eligible := s.cfg.EvaluatorOf[domainID]
	_, err := s.coord.SubmitReveal(p.OptimaID, p.Parameters, p.Nonce, s.bc.Height(), tipHash, eligible)
	return err
}

func (s *Service) handleVote(peer *network.Peer, env network.Envelope) error {
	var p network.VotePayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return nil
	}
	evaluatorPub, err := crypto.PubKeyFromHex(p.Vote.EvaluatorID)
	if err != nil {
		return fmt.Errorf("vote evaluator_id: %w", err)
	}
	if err := p.Vote.Verify(evaluatorPub); err != nil {
		return fmt.Errorf("vote signature: %w", err)
	}
	return s.coord.SubmitVote(p.Vote, time.Now())
}

func (s *Service) handleTaskCreated(peer *network.Peer, env network.Envelope) error {
	var p network.TaskCreatedPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return nil
	}
	s.tasks.Create(p.TaskID, p.Priority, p.PayloadRef, s.bc.Height())
	return nil
}

func (s *Service) handleTaskClaimed(peer *network.Peer, env network.Envelope) error {
	var p network.TaskClaimedPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return nil
	}
	s.tasks.Claim(p.TaskID, p.Claimant, s.bc.Height(), p.Timestamp)
	return nil
}

func (s *Service) handleTaskCompleted(peer *network.Peer, env network.Envelope) error {
	var p network.TaskCompletedPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return nil
	}
	s.tasks.Complete(p.TaskID)
	return nil
}

// Run starts the P2P listener and RPC server, dials configured seed peers,
// and blocks running the main consensus loop until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if err := s.netNode.Start(); err != nil {
		return fmt.Errorf("p2p start: %w", err)
	}
	defer s.netNode.Stop()
	log.Printf("[node] p2p listening on :%d", s.cfg.P2PPort)

	for _, sp := range s.cfg.SeedPeers {
		if err := s.netNode.AddPeer(sp.ID, sp.Addr); err != nil {
			log.Printf("[node] seed peer %s (%s): %v", sp.ID, sp.Addr, err)
			continue
		}
		if peer := s.netNode.Peer(sp.ID); peer != nil {
			s.fc.SetSyncing(true)
			if err := s.syncer.SendStatus(peer); err != nil {
				log.Printf("[node] sync handshake with %s: %v", sp.ID, err)
			}
		}
		log.Printf("[node] connected to seed peer %s (%s)", sp.ID, sp.Addr)
	}

	if err := s.rpcServer.Start(); err != nil {
		return fmt.Errorf("rpc start: %w", err)
	}
	defer s.rpcServer.Stop()
	log.Printf("[node] rpc listening on :%d", s.cfg.RPCPort)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	lastBlockTime := time.Now()
	for {
		select {
		case <-ctx.Done():
			log.Println("[node] shutting down")
			return nil
		case now := <-ticker.C:
			s.tick(now, &lastBlockTime)
		}
	}
}

// tick runs one iteration of the main loop: expire stale commit-reveal
// windows and voting sessions, reopen abandoned task claims, poll for new
// external anchors, and generate a block if the accumulated weighted
// increment has crossed threshold. Block generation is refused while the
// fork-choice manager is SUSPECT: an operator must call ClearSuspect (via
// the RPC control surface) before the node resumes producing or adopting
// blocks, per spec.md §4.9/§8's "refuse further progress until operator
// intervention."
func (s *Service) tick(now time.Time, lastBlockTime *time.Time) {
	s.coord.Tick(s.bc.Height(), now)
	s.checkAnchors()

	if s.fc.Mode() == forkchoice.ModeSuspect {
		return
	}

	if !s.engine.CanGenerateBlock() {
		return
	}

	actualBlockTime := now.Sub(*lastBlockTime).Seconds()
	block, err := s.engine.GenerateBlock(now.UnixNano(), actualBlockTime)
	if err != nil {
		log.Printf("[node] generate block: %v", err)
		return
	}
	*lastBlockTime = now

	if err := s.fc.OnBlockCommitted(block); err != nil {
		log.Printf("[node] fork choice on commit: %v", err)
	}
	s.syncer.AnnounceBlock(block)
	log.Printf("[node] block %d committed: %s (%d txs)", block.Header.Index, block.BlockHash, len(block.Transactions))
}

// checkAnchors polls the external anchor ledger (if configured) for entries
// published since the last tick and feeds each into the fork-choice
// manager, which latches SUSPECT if any of them diverges from local
// history. A no-op when ExternalAnchorLedgerPath is unset.
func (s *Service) checkAnchors() {
	if s.anchorLedger == nil {
		return
	}
	entries, cursor, err := s.anchorLedger.ReadNew(s.anchorCursor)
	if err != nil {
		log.Printf("[node] read anchor ledger: %v", err)
		return
	}
	s.anchorCursor = cursor
	for _, e := range entries {
		if err := s.fc.ReceiveAnchor(e.Height, e.BlockHash); err != nil {
			log.Printf("[node] receive anchor height %d: %v", e.Height, err)
		}
	}
}

// Close releases the underlying storage handle. Call after Run returns.
func (s *Service) Close() error {
	if s.anchorLedger != nil {
		if err := s.anchorLedger.Close(); err != nil {
			log.Printf("[node] close anchor ledger: %v", err)
		}
	}
	return s.db.Close()
}
