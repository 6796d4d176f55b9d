package rag

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/newdataengg/dev-career-compass/engine/fusion"
)

// PromptStyle selects the persona and framing of the assembled prompt.
type PromptStyle string

const (
	// StyleChat is the general conversational assistant.
	StyleChat PromptStyle = "chat"
	// StyleSkillAnalyzer frames the answer around skill gaps and strengths.
	StyleSkillAnalyzer PromptStyle = "skill_analyzer"
	// StyleCareerAdvisor frames the answer as career-path guidance.
	StyleCareerAdvisor PromptStyle = "career_advisor"
)

var styleHeaders = map[PromptStyle]string{
	StyleChat: "You are a helpful assistant for software developers. " +
		"Answer the question using the context below when it is relevant.",
	StyleSkillAnalyzer: "You are a skill analyst for software developers. " +
		"Use the context below to identify the skills involved, how they relate, " +
		"and which gaps matter most for the question.",
	StyleCareerAdvisor: "You are a career advisor for software developers. " +
		"Use the context below to give concrete, stepwise guidance on roles, " +
		"skills to build, and realistic next moves.",
}

// TokenCounter reports the token cost of a piece of text.
type TokenCounter func(text string) int

// HeuristicTokens approximates token counts at four characters per token.
// It is the default so that nothing downloads encoder data at runtime.
func HeuristicTokens(text string) int {
	n := len(text) / 4
	if n == 0 && text != "" {
		n = 1
	}
	return n
}

// NewTiktokenCounter returns an exact counter backed by the cl100k_base
// encoding. The first call fetches encoder data, so construct it once at
// startup, not per request.
func NewTiktokenCounter() (TokenCounter, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("rag: load encoding: %w", err)
	}
	return func(text string) int {
		return len(enc.Encode(text, nil, nil))
	}, nil
}

// contextEntry is one candidate line for the prompt, ranked by its raw
// retrieval score regardless of source.
type contextEntry struct {
	text  string
	score float64
}

// AssemblePrompt renders the final prompt for the query. Context entries
// are added whole in descending score order until the token budget is
// exhausted; an entry that does not fit is skipped along with everything
// below it. With no usable context the prompt states that plainly instead
// of carrying an empty section.
func AssemblePrompt(style PromptStyle, query string, bundle *fusion.ContextBundle, budget int, count TokenCounter) string {
	header, ok := styleHeaders[style]
	if !ok {
		header = styleHeaders[StyleChat]
	}
	if count == nil {
		count = HeuristicTokens
	}

	entries := collectEntries(bundle)
	remaining := budget
	var included []contextEntry
	for _, e := range entries {
		cost := count(e.text)
		if cost > remaining {
			break
		}
		included = append(included, e)
		remaining -= cost
	}

	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n\n")
	if len(included) > 0 {
		b.WriteString("Context:\n")
		for _, e := range included {
			b.WriteString("- ")
			b.WriteString(e.text)
			b.WriteString("\n")
		}
	} else {
		b.WriteString("No relevant context was found; answer from general knowledge ")
		b.WriteString("and say so.\n")
	}

	b.WriteString("\nQuestion: ")
	b.WriteString(query)
	b.WriteString("\nAnswer:")
	return b.String()
}

func collectEntries(bundle *fusion.ContextBundle) []contextEntry {
	if bundle == nil {
		return nil
	}
	entries := make([]contextEntry, 0, len(bundle.VectorHits)+len(bundle.GraphHits))
	for _, h := range bundle.VectorHits {
		entries = append(entries, contextEntry{
			text:  renderVectorHit(h),
			score: float64(h.Score),
		})
	}
	for _, h := range bundle.GraphHits {
		entries = append(entries, contextEntry{
			text:  fmt.Sprintf("related: %s (%d hops away, relevance %.2f)", h.ID, h.Hops, h.Relevance),
			score: h.Score,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].score > entries[j].score
	})
	return entries
}

func renderVectorHit(h fusion.VectorHit) string {
	name, _ := h.Payload["name"].(string)
	desc, _ := h.Payload["description"].(string)
	switch {
	case name != "" && desc != "":
		return fmt.Sprintf("%s [%s]: %s", name, h.Collection, desc)
	case name != "":
		return fmt.Sprintf("%s [%s]", name, h.Collection)
	case desc != "":
		return fmt.Sprintf("%s [%s]: %s", h.ID, h.Collection, desc)
	default:
		return fmt.Sprintf("%s [%s]", h.ID, h.Collection)
	}
}
