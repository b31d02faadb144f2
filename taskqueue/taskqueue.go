// Package taskqueue implements the replicated, pull-based work queue
// evaluators poll for plugin-executable jobs. Tasks are flooded the same
// way blocks are announced (package network); this package only owns the
// local authoritative view each node converges on, grounded on the
// teacher's indexer package (subscribe to events, maintain a queryable
// local view) applied to task state instead of asset ownership.
package taskqueue

import (
	"sort"
	"sync"
	"time"

	"github.com/harveybc/doin-core/events"
)

// State is a Task's lifecycle stage.
type State string

const (
	Pending   State = "PENDING"
	Claimed   State = "CLAIMED"
	Completed State = "COMPLETED"
	Failed    State = "FAILED"
)

// Task is one unit of replicated, pull-based work.
type Task struct {
	ID         string `json:"task_id"`
	Priority   int    `json:"priority"` // 0 = verification (highest)
	PayloadRef string `json:"payload_ref"`
	State      State  `json:"state"`
	Claimant   string `json:"claimant,omitempty"`

	// createdAtHeight, claimedAtHeight and claimTimestamp back the
	// earliest-claim-wins and claim_timeout rules; not part of the wire
	// payload, only local bookkeeping.
	createdAtHeight int64
	claimedAtHeight int64
	claimTimestamp  int64
}

// Queue is the local authoritative view of the replicated task set.
type Queue struct {
	mu           sync.RWMutex
	tasks        map[string]*Task
	claimTimeout int64 // blocks a claim may stay uncompleted before reopening
	emitter      *events.Emitter
}

// NewQueue returns an empty Queue. If emitter is non-nil, state
// transitions are emitted for other subsystems (e.g. an RPC status
// surface) to observe.
func NewQueue(claimTimeout int64, emitter *events.Emitter) *Queue {
	return &Queue{
		tasks:        make(map[string]*Task),
		claimTimeout: claimTimeout,
		emitter:      emitter,
	}
}

// Create adds a new PENDING task, typically in response to a locally
// received or self-originated TASK_CREATED message.
func (q *Queue) Create(id string, priority int, payloadRef string, currentHeight int64) *Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	t := &Task{ID: id, Priority: priority, PayloadRef: payloadRef, State: Pending, createdAtHeight: currentHeight}
	q.tasks[id] = t
	q.emit(events.EventTaskCreated, id)
	return t
}

// Claim attempts to claim taskID for claimant. A claim is authoritative
// only if it is the earliest seen (by block order, then timestamp, then
// peer_id tie-break); callers that observe a later-but-conflicting claim
// message should resolve the conflict with Reconcile, not call Claim twice
// for the same task.
func (q *Queue) Claim(taskID, claimant string, currentHeight, timestamp int64) (*Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.tasks[taskID]
	if !ok || t.State != Pending {
		return nil, false
	}
	t.State = Claimed
	t.Claimant = claimant
	t.claimedAtHeight = currentHeight
	t.claimTimestamp = timestamp
	q.emit(events.EventTaskClaimed, taskID)
	return t, true
}

// Reconcile resolves two competing claims for the same task by the
// earliest-claim-wins rule: lower block height wins, ties broken by lower
// timestamp, ties broken by lexicographically lower peer_id.
func Reconcile(a, b Task) Task {
	if a.claimedAtHeight != b.claimedAtHeight {
		if a.claimedAtHeight < b.claimedAtHeight {
			return a
		}
		return b
	}
	if a.claimTimestamp != b.claimTimestamp {
		if a.claimTimestamp < b.claimTimestamp {
			return a
		}
		return b
	}
	if a.Claimant <= b.Claimant {
		return a
	}
	return b
}

// Complete marks a claimed task COMPLETED.
func (q *Queue) Complete(taskID string) (*Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.tasks[taskID]
	if !ok || t.State != Claimed {
		return nil, false
	}
	t.State = Completed
	q.emit(events.EventTaskCompleted, taskID)
	return t, true
}

// ReopenAbandoned reopens every CLAIMED task whose claim is older than
// claim_timeout blocks, called on every coordinator Tick.
func (q *Queue) ReopenAbandoned(currentHeight int64) []*Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	var reopened []*Task
	for _, t := range q.tasks {
		if t.State == Claimed && currentHeight-t.claimedAtHeight > q.claimTimeout {
			t.State = Pending
			t.Claimant = ""
			reopened = append(reopened, t)
		}
	}
	return reopened
}

// Pending returns every pending task ordered by priority (ascending, 0
// first), then ID, for deterministic polling order across nodes.
func (q *Queue) Pending() []*Task {
	q.mu.RLock()
	defer q.mu.RUnlock()
	var out []*Task
	for _, t := range q.tasks {
		if t.State == Pending {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Get returns a task by ID.
func (q *Queue) Get(id string) (*Task, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	t, ok := q.tasks[id]
	return t, ok
}

func (q *Queue) emit(typ events.EventType, taskID string) {
	if q.emitter == nil {
		return
	}
	q.emitter.Emit(events.Event{Type: typ, CorrelationID: taskID, BlockHeight: 0})
}

// Now returns the current wall-clock time in unix nanoseconds.
func Now() int64 { return time.Now().UnixNano() }
