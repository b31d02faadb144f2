package events

import "testing"

func TestEmitDeliversToSubscriber(t *testing.T) {
	e := NewEmitter()
	var got Event
	e.Subscribe(EventOptimaAccepted, func(ev Event) { got = ev })

	e.Emit(Event{Type: EventOptimaAccepted, CorrelationID: "optima-1"})

	if got.CorrelationID != "optima-1" {
		t.Errorf("expected subscriber to receive the event, got %+v", got)
	}
}

func TestEmitOnlyNotifiesMatchingType(t *testing.T) {
	e := NewEmitter()
	var calls int
	e.Subscribe(EventOptimaAccepted, func(Event) { calls++ })

	e.Emit(Event{Type: EventOptimaRejected})

	if calls != 0 {
		t.Errorf("a subscriber for EventOptimaAccepted should not fire on EventOptimaRejected, got %d calls", calls)
	}
}

func TestEmitNotifiesAllSubscribersForType(t *testing.T) {
	e := NewEmitter()
	var a, b bool
	e.Subscribe(EventBlockCommit, func(Event) { a = true })
	e.Subscribe(EventBlockCommit, func(Event) { b = true })

	e.Emit(Event{Type: EventBlockCommit})

	if !a || !b {
		t.Errorf("both subscribers should fire, got a=%v b=%v", a, b)
	}
}

func TestEmitRecoversFromPanickingHandler(t *testing.T) {
	e := NewEmitter()
	var calledAfter bool
	e.Subscribe(EventTaskCreated, func(Event) { panic("boom") })
	e.Subscribe(EventTaskCreated, func(Event) { calledAfter = true })

	e.Emit(Event{Type: EventTaskCreated})

	if !calledAfter {
		t.Error("a panicking handler should not prevent later subscribers from running")
	}
}

func TestEmitWithNoSubscribersIsANoOp(t *testing.T) {
	e := NewEmitter()
	e.Emit(Event{Type: EventModeChanged})
}
