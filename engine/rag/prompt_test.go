package rag

import (
	"fmt"
	"strings"
	"testing"

	"github.com/newdataengg/dev-career-compass/engine/domain"
	"github.com/newdataengg/dev-career-compass/engine/fusion"
)

func TestHeuristicTokens(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"ab", 1},
		{"abcd", 1},
		{"abcdefgh", 2},
	}
	for _, tt := range tests {
		if got := HeuristicTokens(tt.text); got != tt.want {
			t.Errorf("HeuristicTokens(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestAssemblePromptOrdersByScoreAcrossSources(t *testing.T) {
	bundle := &fusion.ContextBundle{
		VectorHits: []fusion.VectorHit{
			{ID: "go", Score: 0.9, Collection: domain.CollectionSkills, Payload: map[string]any{"name": "Go"}},
			{ID: "rust", Score: 0.3, Collection: domain.CollectionSkills, Payload: map[string]any{"name": "Rust"}},
		},
		GraphHits: []fusion.GraphHit{
			{ID: "skill:k8s", Score: 0.5, Relevance: 1.0, Hops: 1},
		},
	}

	prompt := AssemblePrompt(StyleChat, "q", bundle, 1000, nil)

	goIdx := strings.Index(prompt, "Go [skills]")
	k8sIdx := strings.Index(prompt, "related: skill:k8s")
	rustIdx := strings.Index(prompt, "Rust [skills]")
	if goIdx == -1 || k8sIdx == -1 || rustIdx == -1 {
		t.Fatalf("missing entries in prompt:\n%s", prompt)
	}
	if !(goIdx < k8sIdx && k8sIdx < rustIdx) {
		t.Fatalf("entries out of score order (go=%d k8s=%d rust=%d):\n%s", goIdx, k8sIdx, rustIdx, prompt)
	}
}

func TestAssemblePromptBudgetDropsLowestScored(t *testing.T) {
	// Ten entries of equal token cost with descending scores; a budget for
	// six must keep exactly the six best.
	var hits []fusion.VectorHit
	for i := 0; i < 10; i++ {
		hits = append(hits, fusion.VectorHit{
			ID:         fmt.Sprintf("s%d", i),
			Score:      float32(10-i) / 10,
			Collection: domain.CollectionSkills,
			Payload:    map[string]any{"name": fmt.Sprintf("entry-%d", i)},
		})
	}
	bundle := &fusion.ContextBundle{VectorHits: hits}

	perEntry := HeuristicTokens(renderVectorHit(hits[0]))
	prompt := AssemblePrompt(StyleChat, "q", bundle, perEntry*6, nil)

	for i := 0; i < 6; i++ {
		if !strings.Contains(prompt, fmt.Sprintf("entry-%d", i)) {
			t.Fatalf("entry-%d missing from prompt:\n%s", i, prompt)
		}
	}
	for i := 6; i < 10; i++ {
		if strings.Contains(prompt, fmt.Sprintf("entry-%d", i)) {
			t.Fatalf("entry-%d should have been dropped:\n%s", i, prompt)
		}
	}
}

func TestAssemblePromptNeverTruncatesEntries(t *testing.T) {
	long := strings.Repeat("x", 400)
	bundle := &fusion.ContextBundle{
		VectorHits: []fusion.VectorHit{
			{ID: "big", Score: 0.9, Collection: domain.CollectionSkills, Payload: map[string]any{"description": long}},
			{ID: "small", Score: 0.5, Collection: domain.CollectionSkills, Payload: map[string]any{"name": "tiny"}},
		},
	}

	// Budget too small for the big entry: it is skipped whole, and since
	// entries below the first miss are dropped too, nothing is included.
	prompt := AssemblePrompt(StyleChat, "q", bundle, 10, nil)
	if strings.Contains(prompt, "xxxx") {
		t.Fatalf("oversized entry partially included:\n%s", prompt)
	}
	if strings.Contains(prompt, "tiny") {
		t.Fatalf("entry below the cutoff included:\n%s", prompt)
	}
	if !strings.Contains(prompt, "No relevant context was found") {
		t.Fatalf("empty context marker missing:\n%s", prompt)
	}
}

func TestAssemblePromptStyles(t *testing.T) {
	tests := []struct {
		style PromptStyle
		want  string
	}{
		{StyleChat, "helpful assistant"},
		{StyleSkillAnalyzer, "skill analyst"},
		{StyleCareerAdvisor, "career advisor"},
		{PromptStyle("unknown"), "helpful assistant"},
	}
	for _, tt := range tests {
		prompt := AssemblePrompt(tt.style, "q", &fusion.ContextBundle{}, 100, nil)
		if !strings.Contains(prompt, tt.want) {
			t.Errorf("style %q: prompt missing %q", tt.style, tt.want)
		}
	}
}

func TestAssemblePromptNilBundle(t *testing.T) {
	prompt := AssemblePrompt(StyleChat, "where do I start?", nil, 100, nil)
	if !strings.Contains(prompt, "No relevant context was found") {
		t.Fatalf("nil bundle prompt:\n%s", prompt)
	}
	if !strings.Contains(prompt, "Question: where do I start?") {
		t.Fatalf("question missing:\n%s", prompt)
	}
}

func TestRenderVectorHit(t *testing.T) {
	tests := []struct {
		name string
		hit  fusion.VectorHit
		want string
	}{
		{
			"name and description",
			fusion.VectorHit{ID: "go", Collection: domain.CollectionSkills,
				Payload: map[string]any{"name": "Go", "description": "a language"}},
			"Go [skills]: a language",
		},
		{
			"name only",
			fusion.VectorHit{ID: "go", Collection: domain.CollectionSkills,
				Payload: map[string]any{"name": "Go"}},
			"Go [skills]",
		},
		{
			"no payload",
			fusion.VectorHit{ID: "abc", Collection: domain.CollectionJobs},
			"abc [jobs]",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := renderVectorHit(tt.hit); got != tt.want {
				t.Fatalf("renderVectorHit = %q, want %q", got, tt.want)
			}
		})
	}
}
