package taskqueue

import "testing"

func TestCreateAddsPendingTask(t *testing.T) {
	q := NewQueue(10, nil)
	task := q.Create("task-1", 0, "ref://a", 5)
	if task.State != Pending {
		t.Errorf("a newly created task should be PENDING, got %v", task.State)
	}
	got, ok := q.Get("task-1")
	if !ok || got.State != Pending {
		t.Fatalf("created task should be retrievable: ok=%v got=%+v", ok, got)
	}
}

func TestClaimTransitionsPendingToClaimed(t *testing.T) {
	q := NewQueue(10, nil)
	q.Create("task-1", 0, "ref://a", 5)
	task, ok := q.Claim("task-1", "peer-1", 6, 1000)
	if !ok || task.State != Claimed || task.Claimant != "peer-1" {
		t.Fatalf("claim should succeed and record the claimant: ok=%v task=%+v", ok, task)
	}
}

func TestClaimRejectsAlreadyClaimedTask(t *testing.T) {
	q := NewQueue(10, nil)
	q.Create("task-1", 0, "ref://a", 5)
	q.Claim("task-1", "peer-1", 6, 1000)
	if _, ok := q.Claim("task-1", "peer-2", 7, 2000); ok {
		t.Error("a second claim on an already-claimed task should fail")
	}
}

func TestCompleteRequiresClaimedState(t *testing.T) {
	q := NewQueue(10, nil)
	q.Create("task-1", 0, "ref://a", 5)
	if _, ok := q.Complete("task-1"); ok {
		t.Error("completing a PENDING (never claimed) task should fail")
	}
	q.Claim("task-1", "peer-1", 6, 1000)
	task, ok := q.Complete("task-1")
	if !ok || task.State != Completed {
		t.Fatalf("completing a claimed task should succeed: ok=%v task=%+v", ok, task)
	}
}

func TestReopenAbandonedReturnsClaimedTaskToPending(t *testing.T) {
	q := NewQueue(5, nil)
	q.Create("task-1", 0, "ref://a", 0)
	q.Claim("task-1", "peer-1", 1, 1000)

	reopened := q.ReopenAbandoned(10)
	if len(reopened) != 1 || reopened[0].ID != "task-1" {
		t.Fatalf("a claim older than claim_timeout should reopen, got %+v", reopened)
	}
	task, _ := q.Get("task-1")
	if task.State != Pending || task.Claimant != "" {
		t.Errorf("reopened task should be PENDING with no claimant: %+v", task)
	}
}

func TestReopenAbandonedLeavesFreshClaimsAlone(t *testing.T) {
	q := NewQueue(100, nil)
	q.Create("task-1", 0, "ref://a", 0)
	q.Claim("task-1", "peer-1", 1, 1000)

	if reopened := q.ReopenAbandoned(5); len(reopened) != 0 {
		t.Errorf("a claim still within the timeout window should not reopen, got %+v", reopened)
	}
}

func TestPendingOrdersByPriorityThenID(t *testing.T) {
	q := NewQueue(10, nil)
	q.Create("task-b", 1, "ref://b", 0)
	q.Create("task-a", 0, "ref://a", 0)
	q.Create("task-c", 0, "ref://c", 0)

	pending := q.Pending()
	if len(pending) != 3 {
		t.Fatalf("expected 3 pending tasks, got %d", len(pending))
	}
	if pending[0].ID != "task-a" || pending[1].ID != "task-c" || pending[2].ID != "task-b" {
		ids := []string{pending[0].ID, pending[1].ID, pending[2].ID}
		t.Errorf("expected priority-then-id order [task-a task-c task-b], got %v", ids)
	}
}

func TestReconcileEarliestHeightWins(t *testing.T) {
	a := Task{Claimant: "peer-1", claimedAtHeight: 5, claimTimestamp: 100}
	b := Task{Claimant: "peer-2", claimedAtHeight: 3, claimTimestamp: 200}
	winner := Reconcile(a, b)
	if winner.Claimant != "peer-2" {
		t.Errorf("the lower-height claim should win, got %v", winner.Claimant)
	}
}

func TestReconcileTieBreaksOnTimestampThenPeerID(t *testing.T) {
	a := Task{Claimant: "peer-b", claimedAtHeight: 5, claimTimestamp: 100}
	b := Task{Claimant: "peer-a", claimedAtHeight: 5, claimTimestamp: 100}
	winner := Reconcile(a, b)
	if winner.Claimant != "peer-a" {
		t.Errorf("a height/timestamp tie should break on the lexicographically lower peer_id, got %v", winner.Claimant)
	}
	earlier := Task{Claimant: "peer-z", claimedAtHeight: 5, claimTimestamp: 50}
	if w := Reconcile(a, earlier); w.Claimant != "peer-z" {
		t.Errorf("a height tie should break on the lower timestamp before peer_id, got %v", w.Claimant)
	}
}
