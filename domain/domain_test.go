package domain

import "testing"

func TestRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register(Domain{ID: "domain-a", Weight: 1.5, HigherIsBetter: true, PerformanceMetric: "accuracy"})

	got, err := r.Get("domain-a")
	if err != nil {
		t.Fatalf("registered domain should be retrievable: %v", err)
	}
	if got.Weight != 1.5 || !got.HigherIsBetter {
		t.Errorf("unexpected domain contents: %+v", got)
	}
}

func TestGetUnknownDomainErrors(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Get("ghost"); err == nil {
		t.Error("looking up an unregistered domain should error")
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	r := NewRegistry()
	r.Register(Domain{ID: "domain-a"})

	defer func() {
		if recover() == nil {
			t.Error("registering the same domain ID twice should panic")
		}
	}()
	r.Register(Domain{ID: "domain-a"})
}

func TestAllReturnsEveryRegisteredDomain(t *testing.T) {
	r := NewRegistry()
	r.Register(Domain{ID: "domain-a"})
	r.Register(Domain{ID: "domain-b"})

	all := r.All()
	if len(all) != 2 {
		t.Fatalf("expected 2 domains, got %d", len(all))
	}
}
