package domain

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Injection patterns — SQL/Cypher fragments that should never appear in a
// user query.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(DROP|DELETE|INSERT|UPDATE|ALTER|EXEC|UNION)\b.*\b(TABLE|FROM|INTO|SELECT|SET)\b`),
	regexp.MustCompile(`(?i)(--|;)\s*(DROP|DELETE|SELECT|MATCH)`),
	regexp.MustCompile(`(?i)\$\{.*\}`), // template injection
}

const maxQueryRunes = 4096

// ValidateQueryText validates a raw user query before any retrieval work.
// An empty (or whitespace-only) query is rejected with ErrInvalidQuery.
func ValidateQueryText(text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return NewValidationError("query", text, ErrInvalidQuery)
	}
	if utf8.RuneCountInString(trimmed) > maxQueryRunes {
		return NewValidationError("query", trimmed[:32]+"...", ErrQueryTooLong)
	}
	for _, pat := range injectionPatterns {
		if pat.MatchString(trimmed) {
			return NewValidationError("query", trimmed, ErrQueryInjection)
		}
	}
	return nil
}

// ValidateNodeID checks a graph node id.
func ValidateNodeID(id string) error {
	if strings.TrimSpace(id) == "" {
		return NewValidationError("id", id, ErrDanglingReference)
	}
	return nil
}

// ValidateNodeKind checks that the kind is one of the recognised values.
func ValidateNodeKind(kind NodeKind) error {
	if !ValidNodeKinds[kind] {
		return NewValidationError("kind", string(kind), ErrInvalidNodeKind)
	}
	return nil
}

// ValidateEdge checks endpoint ids, the no-self-loop rule, and the
// weight range [0,1]. Referential integrity is the store's concern.
func ValidateEdge(source, target string, weight float64) error {
	if strings.TrimSpace(source) == "" {
		return NewValidationError("source", source, ErrDanglingReference)
	}
	if strings.TrimSpace(target) == "" {
		return NewValidationError("target", target, ErrDanglingReference)
	}
	if source == target {
		return NewValidationError("target", target, ErrSelfLoop)
	}
	if weight < 0 || weight > 1 {
		return NewValidationError("weight", "", ErrInvalidWeight)
	}
	return nil
}
