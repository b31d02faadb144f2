package network

import (
	"crypto/tls"
	"encoding/json"
	"log"
	"net"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/harveybc/doin-core/crypto"
)

// MessageHandler is called for each received, deduplicated, signature-valid
// envelope. Returning an error marks the sending peer untrusted-offending
// (see Node.flagMisbehavior); handlers should return an error only for
// Consistency-class violations (spec.md §7), not routine drops.
type MessageHandler func(peer *Peer, env Envelope) error

// DefaultMaxPeers is the default limit on simultaneous peer connections.
const DefaultMaxPeers = 50

// dedupCacheSize and dedupTTL implement spec.md §4.11's bounded LRU
// message-id dedup cache.
const (
	dedupCacheSize = 16_384
	dedupTTL       = 10 * time.Minute
)

// Node listens for incoming peers, manages outgoing connections, and floods
// typed envelopes with TTL-bounded, dedup-gated forwarding.
type Node struct {
	nodeID     string
	listenAddr string
	privKey    crypto.PrivateKey
	pubKey     crypto.PublicKey
	tlsConfig  *tls.Config // nil → plain TCP
	maxPeers   int

	mu        sync.RWMutex
	peers     map[string]*Peer
	untrusted map[string]bool
	handlers  map[MsgType]MessageHandler
	seen      *lru.LRU[string, struct{}]

	listener net.Listener
	stopCh   chan struct{}
}

// NewNode creates a Node that will listen on listenAddr, signing originated
// envelopes with privKey.
func NewNode(nodeID, listenAddr string, privKey crypto.PrivateKey, tlsCfg *tls.Config) *Node {
	return &Node{
		nodeID:     nodeID,
		listenAddr: listenAddr,
		privKey:    privKey,
		pubKey:     privKey.Public(),
		tlsConfig:  tlsCfg,
		maxPeers:   DefaultMaxPeers,
		peers:      make(map[string]*Peer),
		untrusted:  make(map[string]bool),
		handlers:   make(map[MsgType]MessageHandler),
		seen:       lru.NewLRU[string, struct{}](dedupCacheSize, nil, dedupTTL),
		stopCh:     make(chan struct{}),
	}
}

// Handle registers a handler for msg type.
func (n *Node) Handle(typ MsgType, h MessageHandler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers[typ] = h
}

// Start begins accepting connections.
func (n *Node) Start() error {
	var ln net.Listener
	var err error
	if n.tlsConfig != nil {
		ln, err = tls.Listen("tcp", n.listenAddr, n.tlsConfig)
	} else {
		ln, err = net.Listen("tcp", n.listenAddr)
	}
	if err != nil {
		return err
	}
	n.listener = ln
	go n.acceptLoop()
	return nil
}

// Stop shuts down the node.
func (n *Node) Stop() {
	close(n.stopCh)
	if n.listener != nil {
		n.listener.Close()
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, p := range n.peers {
		p.Close()
	}
}

// AddPeer dials addr and registers the peer.
func (n *Node) AddPeer(id, addr string) error {
	peer, err := Connect(id, addr, n.tlsConfig)
	if err != nil {
		return err
	}
	n.mu.Lock()
	n.peers[id] = peer
	n.mu.Unlock()
	go n.readLoop(peer)
	if data, err := json.Marshal(PeerDiscoveryPayload{ListenAddr: n.listenAddr}); err == nil {
		n.Flood(MsgPeerDiscovery, data)
	}
	return nil
}

// Peer returns the connected peer with the given id, or nil if not found.
func (n *Node) Peer(id string) *Peer {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.peers[id]
}

// PeerIDs returns the ids of all currently connected peers.
func (n *Node) PeerIDs() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	ids := make([]string, 0, len(n.peers))
	for id := range n.peers {
		ids = append(ids, id)
	}
	return ids
}

// IsUntrusted reports whether peerID has been flagged for serving an
// invalid block or other Consistency-class violation.
func (n *Node) IsUntrusted(peerID string) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.untrusted[peerID]
}

func (n *Node) flagMisbehavior(peerID string) {
	n.mu.Lock()
	n.untrusted[peerID] = true
	n.mu.Unlock()
	log.Printf("[network] peer %s flagged untrusted", peerID)
}

// Flood signs and originates a new envelope of the given type, forwarding
// it to every connected peer.
func (n *Node) Flood(typ MsgType, payload []byte) {
	env := NewEnvelope(typ, n.pubKey, payload)
	env.Sign(n.privKey)
	n.markSeen(env.MessageID.String())
	n.broadcast(env)
}

// SendTo signs and sends a new envelope directly to one peer (used for the
// unicast legs of the block-sync handshake: BLOCK_REQUEST, CHAIN_STATUS,
// BLOCK_RESPONSE).
func (n *Node) SendTo(peer *Peer, typ MsgType, payload []byte) error {
	env := NewEnvelope(typ, n.pubKey, payload)
	env.Sign(n.privKey)
	n.markSeen(env.MessageID.String())
	return peer.Send(env)
}

func (n *Node) broadcast(env Envelope) {
	n.mu.RLock()
	peers := make([]*Peer, 0, len(n.peers))
	for _, p := range n.peers {
		peers = append(peers, p)
	}
	n.mu.RUnlock()
	for _, p := range peers {
		if err := p.Send(env); err != nil {
			log.Printf("[network] broadcast to %s: %v", p.ID, err)
		}
	}
}

func (n *Node) markSeen(id string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.seen.Get(id); ok {
		return false
	}
	n.seen.Add(id, struct{}{})
	return true
}

func (n *Node) acceptLoop() {
	for {
		conn, err := n.listener.Accept()
		if err != nil {
			select {
			case <-n.stopCh:
				return
			default:
				log.Printf("[network] accept error: %v", err)
				time.Sleep(100 * time.Millisecond)
				continue
			}
		}
		n.mu.RLock()
		peerCount := len(n.peers)
		n.mu.RUnlock()
		if peerCount >= n.maxPeers {
			log.Printf("[network] max peers (%d) reached, rejecting %s", n.maxPeers, conn.RemoteAddr())
			conn.Close()
			continue
		}
		peer := NewPeer(conn.RemoteAddr().String(), conn.RemoteAddr().String(), conn)
		n.mu.Lock()
		n.peers[peer.ID] = peer
		n.mu.Unlock()
		go n.readLoop(peer)
	}
}

// readLoop implements the flood algorithm: drop already-seen message ids,
// verify signature and TTL on unknown ones, deliver locally via the
// registered handler, then forward to every other peer with ttl-1 if
// ttl > 0.
func (n *Node) readLoop(peer *Peer) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[network] readLoop panic from %s: %v", peer.ID, r)
		}
		peer.Close()
		n.mu.Lock()
		delete(n.peers, peer.ID)
		n.mu.Unlock()
	}()
	for {
		env, err := peer.Receive()
		if err != nil {
			return
		}

		if !n.markSeen(env.MessageID.String()) {
			continue // already seen; drop per spec.md §4.11
		}
		if err := env.Verify(); err != nil {
			log.Printf("[network] %s from %s: bad signature: %v", env.Type, peer.ID, err)
			continue
		}

		n.mu.RLock()
		h, ok := n.handlers[env.Type]
		n.mu.RUnlock()
		if ok {
			if err := h(peer, env); err != nil {
				n.flagMisbehavior(peer.ID)
				continue
			}
		}

		if env.TTL > 0 {
			n.forwardExcept(env.Decremented(), peer.ID)
		}
	}
}

func (n *Node) forwardExcept(env Envelope, senderID string) {
	n.mu.RLock()
	peers := make([]*Peer, 0, len(n.peers))
	for id, p := range n.peers {
		if id != senderID {
			peers = append(peers, p)
		}
	}
	n.mu.RUnlock()
	for _, p := range peers {
		if err := p.Send(env); err != nil {
			log.Printf("[network] forward to %s: %v", p.ID, err)
		}
	}
}
