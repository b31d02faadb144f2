// Package indexer maintains secondary indexes over chain/task events so an
// RPC surface can answer "which optimae did this peer submit" or "which
// tasks did this peer claim" without scanning the whole chain.
package indexer

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/harveybc/doin-core/core"
	"github.com/harveybc/doin-core/events"
	"github.com/harveybc/doin-core/storage"
)

const (
	prefixOptimizerOptimae = "idx:optimizer:optima:"
	prefixDomainOptimae    = "idx:domain:optima:"
	prefixClaimantTasks    = "idx:claimant:task:"
)

// Indexer subscribes to chain/task events and updates secondary lookup
// tables. Grounded on the teacher's indexer.go end to end; only the
// subscribed event set and index keys change.
type Indexer struct {
	db      storage.DB
	emitter *events.Emitter
}

// New creates an Indexer backed by db and subscribes to relevant events.
func New(db storage.DB, emitter *events.Emitter) *Indexer {
	idx := &Indexer{db: db, emitter: emitter}
	emitter.Subscribe(events.EventOptimaAccepted, idx.onOptimaDecided)
	emitter.Subscribe(events.EventOptimaRejected, idx.onOptimaDecided)
	emitter.Subscribe(events.EventTaskClaimed, idx.onTaskClaimed)
	return idx
}

// GetOptimaeByOptimizer returns all optima IDs submitted by optimizerID.
func (idx *Indexer) GetOptimaeByOptimizer(optimizerID string) ([]string, error) {
	return idx.getList(prefixOptimizerOptimae + optimizerID)
}

// GetOptimaeByDomain returns all optima IDs decided for domainID.
func (idx *Indexer) GetOptimaeByDomain(domainID string) ([]string, error) {
	return idx.getList(prefixDomainOptimae + domainID)
}

// GetTasksByClaimant returns all task IDs claimed by peerID.
func (idx *Indexer) GetTasksByClaimant(peerID string) ([]string, error) {
	return idx.getList(prefixClaimantTasks + peerID)
}

// ---- event handlers ----

func (idx *Indexer) onOptimaDecided(ev events.Event) {
	optimizerID, _ := ev.Data["optimizer_id"].(string)
	domainID, _ := ev.Data["domain_id"].(string)
	optimaID := ev.CorrelationID
	if optimaID == "" {
		return
	}
	if optimizerID != "" {
		if err := idx.addToList(prefixOptimizerOptimae+optimizerID, optimaID); err != nil {
			log.Printf("[indexer] optimizer index write failed (optimizer=%s optima=%s): %v", optimizerID, optimaID, err)
		}
	}
	if domainID != "" {
		if err := idx.addToList(prefixDomainOptimae+domainID, optimaID); err != nil {
			log.Printf("[indexer] domain index write failed (domain=%s optima=%s): %v", domainID, optimaID, err)
		}
	}
}

func (idx *Indexer) onTaskClaimed(ev events.Event) {
	claimant, _ := ev.Data["claimant"].(string)
	taskID := ev.CorrelationID
	if claimant == "" || taskID == "" {
		return
	}
	if err := idx.addToList(prefixClaimantTasks+claimant, taskID); err != nil {
		log.Printf("[indexer] claimant index write failed (claimant=%s task=%s): %v", claimant, taskID, err)
	}
}

// ---- list helpers ----

func (idx *Indexer) getList(key string) ([]string, error) {
	data, err := idx.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, nil // empty list
		}
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("indexer unmarshal: %w", err)
	}
	return ids, nil
}

func (idx *Indexer) addToList(key, value string) error {
	ids, err := idx.getList(key)
	if err != nil {
		return fmt.Errorf("read list: %w", err)
	}
	for _, id := range ids {
		if id == value {
			return nil // already present
		}
	}
	ids = append(ids, value)
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return idx.db.Set([]byte(key), data)
}
