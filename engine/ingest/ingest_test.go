package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/newdataengg/dev-career-compass/engine/domain"
	"github.com/newdataengg/dev-career-compass/engine/graph"
	"github.com/newdataengg/dev-career-compass/engine/semantic"
)

type fakeEmbedder struct {
	vec   []float32
	err   error
	texts []string
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.texts = append(f.texts, text)
	return f.vec, f.err
}

func (f *fakeEmbedder) Dimension() int { return len(f.vec) }

func newTestDeps(t *testing.T) (Deps, *semantic.MemoryIndex, *graph.MemoryStore, *fakeEmbedder) {
	t.Helper()
	index := semantic.NewMemoryIndex()
	if err := EnsureCollections(context.Background(), index, 2); err != nil {
		t.Fatalf("EnsureCollections: %v", err)
	}
	gs := graph.NewMemoryStore()
	embedder := &fakeEmbedder{vec: []float32{1, 0}}
	return Deps{Embedder: embedder, Index: index, Graph: gs}, index, gs, embedder
}

func TestPipelineStoresVectorAndGraph(t *testing.T) {
	ctx := context.Background()
	deps, index, gs, embedder := newTestDeps(t)
	pipeline := NewPipeline(deps)

	rec := EntityRecord{
		Kind:        domain.KindSkill,
		ID:          "skill:go",
		Name:        "Go",
		Description: "a systems language",
		Attributes:  map[string]string{"category": "language"},
	}
	result := pipeline(ctx, rec)
	id, err := result.Unwrap()
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	if id != "skill:go" {
		t.Fatalf("id = %q, want skill:go", id)
	}

	node, ok, _ := gs.GetNode(ctx, "skill:go")
	if !ok {
		t.Fatal("graph node missing")
	}
	if node.Kind != domain.KindSkill || node.Attributes["name"] != "Go" {
		t.Fatalf("node = %+v", node)
	}

	hits, err := index.Search(ctx, domain.CollectionSkills, []float32{1, 0}, 1, nil)
	if err != nil || len(hits) != 1 {
		t.Fatalf("search: hits=%v err=%v", hits, err)
	}
	if hits[0].Payload["node_id"] != "skill:go" {
		t.Fatalf("payload node_id = %v", hits[0].Payload["node_id"])
	}
	if hits[0].Payload["attr_category"] != "language" {
		t.Fatalf("payload attrs = %v", hits[0].Payload)
	}

	if len(embedder.texts) != 1 || !strings.Contains(embedder.texts[0], "a systems language") {
		t.Fatalf("embedded text = %v", embedder.texts)
	}
}

func TestPipelineJobIsVectorOnly(t *testing.T) {
	ctx := context.Background()
	deps, index, gs, _ := newTestDeps(t)
	pipeline := NewPipeline(deps)

	rec := EntityRecord{Kind: KindJob, ID: "job:1", Name: "Backend Engineer"}
	if _, err := pipeline(ctx, rec).Unwrap(); err != nil {
		t.Fatalf("pipeline: %v", err)
	}

	if _, ok, _ := gs.GetNode(ctx, "job:1"); ok {
		t.Fatal("job should not create a graph node")
	}
	n, err := index.Count(ctx, domain.CollectionJobs)
	if err != nil || n != 1 {
		t.Fatalf("jobs collection count = %d err=%v, want 1", n, err)
	}
}

func TestPipelineReingestIsIdempotent(t *testing.T) {
	ctx := context.Background()
	deps, index, _, _ := newTestDeps(t)
	pipeline := NewPipeline(deps)

	rec := EntityRecord{Kind: domain.KindSkill, ID: "skill:go", Name: "Go"}
	for i := 0; i < 2; i++ {
		if _, err := pipeline(ctx, rec).Unwrap(); err != nil {
			t.Fatalf("ingest %d: %v", i, err)
		}
	}

	n, _ := index.Count(ctx, domain.CollectionSkills)
	if n != 1 {
		t.Fatalf("count = %d after re-ingest, want 1 (deterministic point id)", n)
	}
}

func TestPipelineEdgesAndDanglingTargets(t *testing.T) {
	ctx := context.Background()
	deps, _, gs, _ := newTestDeps(t)
	pipeline := NewPipeline(deps)

	if _, err := pipeline(ctx, EntityRecord{Kind: domain.KindSkill, ID: "skill:go", Name: "Go"}).Unwrap(); err != nil {
		t.Fatalf("seed skill: %v", err)
	}

	dev := EntityRecord{
		Kind: domain.KindDeveloper,
		ID:   "dev:ada",
		Name: "Ada",
		Relations: []RelationRef{
			{TargetID: "skill:go", Relation: domain.RelationHasSkill, Weight: 0.9},
			{TargetID: "skill:zig", Relation: domain.RelationHasSkill, Weight: 0.5}, // not ingested
		},
	}
	if _, err := pipeline(ctx, dev).Unwrap(); err != nil {
		t.Fatalf("dangling edge should not fail the record: %v", err)
	}

	stats, _ := gs.Stats(ctx)
	if stats.Edges != 1 {
		t.Fatalf("edges = %d, want 1 (dangling skipped)", stats.Edges)
	}

	reached, err := gs.Neighbors(ctx, []string{"dev:ada"}, 1, nil)
	if err != nil {
		t.Fatalf("Neighbors: %v", err)
	}
	if len(reached) != 2 {
		t.Fatalf("reached = %+v, want dev and go", reached)
	}
}

func TestValidateStage(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		rec  EntityRecord
		want error
	}{
		{"empty id", EntityRecord{Kind: domain.KindSkill, Name: "x"}, domain.ErrDanglingReference},
		{"bad kind", EntityRecord{Kind: "spaceship", ID: "x", Name: "x"}, domain.ErrInvalidNodeKind},
		{"self relation", EntityRecord{Kind: domain.KindSkill, ID: "a", Name: "a",
			Relations: []RelationRef{{TargetID: "a", Relation: "r", Weight: 0.5}}}, domain.ErrSelfLoop},
		{"bad weight", EntityRecord{Kind: domain.KindSkill, ID: "a", Name: "a",
			Relations: []RelationRef{{TargetID: "b", Relation: "r", Weight: 2}}}, domain.ErrInvalidWeight},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(ctx, tt.rec).Unwrap()
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := Validate(ctx, EntityRecord{Kind: domain.KindSkill, ID: "a"}).Unwrap(); err == nil {
		t.Fatal("nameless record accepted")
	}
	if _, err := Validate(ctx, EntityRecord{Kind: KindJob, ID: "job:1", Name: "x"}).Unwrap(); err != nil {
		t.Fatalf("job kind rejected: %v", err)
	}
}

func TestPipelineEmbedFailure(t *testing.T) {
	deps, _, _, embedder := newTestDeps(t)
	embedder.err = errors.New("model offline")
	pipeline := NewPipeline(deps)

	_, err := pipeline(context.Background(), EntityRecord{Kind: domain.KindSkill, ID: "a", Name: "A"}).Unwrap()
	if err == nil || !strings.Contains(err.Error(), "model offline") {
		t.Fatalf("got %v, want embed failure", err)
	}
}

func TestEmbedTextStableAttributeOrder(t *testing.T) {
	rec := EntityRecord{
		Kind: domain.KindSkill, ID: "a", Name: "Go",
		Attributes: map[string]string{"zeta": "1", "alpha": "2", "mid": "3"},
	}
	first := embedText(rec)
	for i := 0; i < 10; i++ {
		if embedText(rec) != first {
			t.Fatal("embed text varies across calls for the same record")
		}
	}
	if !strings.Contains(first, "alpha: 2, mid: 3, zeta: 1") {
		t.Fatalf("attributes not sorted: %q", first)
	}
}

func TestCollectionFor(t *testing.T) {
	tests := []struct {
		kind domain.NodeKind
		want domain.Collection
	}{
		{domain.KindDeveloper, domain.CollectionDevelopers},
		{domain.KindSkill, domain.CollectionSkills},
		{domain.KindRepository, domain.CollectionRepositories},
		{domain.KindCareerPath, domain.CollectionCareerPaths},
		{KindJob, domain.CollectionJobs},
	}
	for _, tt := range tests {
		got, err := collectionFor(tt.kind)
		if err != nil || got != tt.want {
			t.Errorf("collectionFor(%s) = %s, %v; want %s", tt.kind, got, err, tt.want)
		}
	}
	if _, err := collectionFor("spaceship"); !errors.Is(err, domain.ErrInvalidNodeKind) {
		t.Fatalf("got %v, want ErrInvalidNodeKind", err)
	}
}
