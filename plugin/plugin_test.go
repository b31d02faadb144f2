package plugin

import (
	"context"
	"testing"
)

func TestRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	h := NewReferenceHandle()
	r.Register("domain-a", h)

	got, err := r.Get("domain-a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Optimize == nil || got.Evaluate == nil {
		t.Error("the registered handle should be returned intact")
	}
}

func TestGetUnknownDomainErrors(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Get("ghost"); err == nil {
		t.Error("Get should error for an unregistered domain")
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	r := NewRegistry()
	r.Register("domain-a", NewReferenceHandle())

	defer func() {
		if recover() == nil {
			t.Error("registering the same domain twice should panic")
		}
	}()
	r.Register("domain-a", NewReferenceHandle())
}

func TestReferenceHandleOptimizeIsDeterministicForSameSeed(t *testing.T) {
	h := NewReferenceHandle()
	req := OptimizeRequest{DomainID: "domain-a", Seed: []byte("seed-1")}

	a, err := h.Optimize(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	b, err := h.Optimize(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if a.ReportedMetric != b.ReportedMetric {
		t.Error("Optimize should report the same metric for the same seed")
	}
}

func TestReferenceHandleOptimizeRespectsCancellation(t *testing.T) {
	h := NewReferenceHandle()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := h.Optimize(ctx, OptimizeRequest{Seed: []byte("s")}); err == nil {
		t.Error("Optimize should return an error once its context is cancelled")
	}
}

func TestReferenceHandleEvaluateVariesWithSyntheticSeed(t *testing.T) {
	h := NewReferenceHandle()
	a, err := h.Evaluate(context.Background(), EvaluateRequest{SyntheticSeed: []byte("seed-a")})
	if err != nil {
		t.Fatal(err)
	}
	b, err := h.Evaluate(context.Background(), EvaluateRequest{SyntheticSeed: []byte("seed-b")})
	if err != nil {
		t.Fatal(err)
	}
	if a.MeasuredMetric == b.MeasuredMetric {
		t.Error("Evaluate should vary its measurement with the synthetic seed")
	}
}

func TestReferenceHandleGenerateSyntheticIncludesDomainAndSeed(t *testing.T) {
	h := NewReferenceHandle()
	out, err := h.GenerateSynthetic(context.Background(), "domain-a", []byte("seed"))
	if err != nil {
		t.Fatal(err)
	}
	if len(out) == 0 {
		t.Error("GenerateSynthetic should return non-empty synthetic data")
	}
	if string(out) != "domain-aseed" {
		t.Errorf("GenerateSynthetic should be the domain ID followed by the seed: got %q", out)
	}
}
