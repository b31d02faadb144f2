package core

import (
	"errors"
	"sync"
)

const maxPendingTxs = 10_000

// PendingPool is the single-writer staging buffer the coordinator appends
// bookkeeping transactions to as optimae are accepted, tasks complete, and
// reputation changes; the next block assembly drains it. Unlike the
// teacher's signed-transaction mempool, nothing here is attacker-supplied —
// every entry is produced by the coordinator after quorum has already
// verified the underlying event — so there is no signature or age check,
// only a size bound to protect memory if block production stalls.
type PendingPool struct {
	mu  sync.RWMutex
	txs []*Transaction
}

// NewPendingPool creates an empty pool.
func NewPendingPool() *PendingPool {
	return &PendingPool{}
}

// Add appends a transaction, returning an error if the pool is full.
func (p *PendingPool) Add(tx *Transaction) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.txs) >= maxPendingTxs {
		return errors.New("pending pool full")
	}
	p.txs = append(p.txs, tx)
	return nil
}

// Drain returns up to n pending transactions in insertion order and removes
// them from the pool, called by the engine right before assembling a block.
func (p *PendingPool) Drain(n int) []*Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n <= 0 || n > len(p.txs) {
		n = len(p.txs)
	}
	result := p.txs[:n]
	p.txs = p.txs[n:]
	return result
}

// Size returns the current number of pending transactions.
func (p *PendingPool) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.txs)
}
