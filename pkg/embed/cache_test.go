package embed

import (
	"context"
	"errors"
	"testing"
)

type countingProvider struct {
	calls int
	vec   []float32
	err   error
}

func (p *countingProvider) Embed(context.Context, string) ([]float32, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return p.vec, nil
}

func (p *countingProvider) Dimension() int { return len(p.vec) }

func TestCachedHitsAvoidInnerCalls(t *testing.T) {
	inner := &countingProvider{vec: []float32{1, 2, 3}}
	cached, err := NewCached(inner, 8)
	if err != nil {
		t.Fatalf("NewCached: %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		vec, err := cached.Embed(ctx, "same text")
		if err != nil {
			t.Fatalf("Embed %d: %v", i, err)
		}
		if len(vec) != 3 {
			t.Fatalf("vec len = %d", len(vec))
		}
	}
	if inner.calls != 1 {
		t.Fatalf("inner called %d times, want 1", inner.calls)
	}
	if cached.Len() != 1 {
		t.Fatalf("cache len = %d, want 1", cached.Len())
	}

	if _, err := cached.Embed(ctx, "different text"); err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if inner.calls != 2 {
		t.Fatalf("inner called %d times, want 2", inner.calls)
	}
}

func TestCachedDoesNotCacheFailures(t *testing.T) {
	inner := &countingProvider{err: errors.New("down")}
	cached, _ := NewCached(inner, 8)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := cached.Embed(ctx, "text"); err == nil {
			t.Fatal("expected error")
		}
	}
	if inner.calls != 3 {
		t.Fatalf("failures were cached: %d calls, want 3", inner.calls)
	}
	if cached.Len() != 0 {
		t.Fatalf("cache len = %d, want 0", cached.Len())
	}
}

func TestCachedEviction(t *testing.T) {
	inner := &countingProvider{vec: []float32{1}}
	cached, _ := NewCached(inner, 2)

	ctx := context.Background()
	for _, text := range []string{"a", "b", "c"} {
		if _, err := cached.Embed(ctx, text); err != nil {
			t.Fatalf("Embed %s: %v", text, err)
		}
	}
	if cached.Len() != 2 {
		t.Fatalf("cache len = %d, want 2", cached.Len())
	}

	// "a" was evicted, so it costs another inner call.
	if _, err := cached.Embed(ctx, "a"); err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if inner.calls != 4 {
		t.Fatalf("inner calls = %d, want 4", inner.calls)
	}
}

func TestCachedDimensionDelegates(t *testing.T) {
	inner := &countingProvider{vec: []float32{1, 2, 3, 4}}
	cached, _ := NewCached(inner, 2)
	if cached.Dimension() != 4 {
		t.Fatalf("Dimension = %d, want 4", cached.Dimension())
	}
}
