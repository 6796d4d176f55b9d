package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateQueryText(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  error
	}{
		{"valid", "how do I become a backend engineer?", nil},
		{"empty", "", ErrInvalidQuery},
		{"whitespace only", "   \t\n", ErrInvalidQuery},
		{"too long", strings.Repeat("a", 5000), ErrQueryTooLong},
		{"sql injection", "skills; DROP TABLE users", ErrQueryInjection},
		{"cypher injection", "python -- MATCH (n) DETACH DELETE n", ErrQueryInjection},
		{"template injection", "tell me about ${secret}", ErrQueryInjection},
		{"benign keyword", "how do I update my resume for a data role", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateQueryText(tt.query)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("ValidateQueryText(%q) = %v, want nil", tt.query, err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("ValidateQueryText(%q) = %v, want %v", tt.query, err, tt.want)
			}
		})
	}
}

func TestValidateQueryTextMaxLengthBoundary(t *testing.T) {
	exactly := strings.Repeat("q", maxQueryRunes)
	if err := ValidateQueryText(exactly); err != nil {
		t.Fatalf("query at limit rejected: %v", err)
	}
	if err := ValidateQueryText(exactly + "q"); !errors.Is(err, ErrQueryTooLong) {
		t.Fatalf("query over limit: got %v, want ErrQueryTooLong", err)
	}
}

func TestValidateEdge(t *testing.T) {
	tests := []struct {
		name           string
		source, target string
		weight         float64
		want           error
	}{
		{"valid", "a", "b", 0.5, nil},
		{"weight zero", "a", "b", 0, nil},
		{"weight one", "a", "b", 1, nil},
		{"empty source", "", "b", 0.5, ErrDanglingReference},
		{"empty target", "a", "", 0.5, ErrDanglingReference},
		{"self loop", "a", "a", 0.5, ErrSelfLoop},
		{"negative weight", "a", "b", -0.1, ErrInvalidWeight},
		{"weight above one", "a", "b", 1.1, ErrInvalidWeight},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEdge(tt.source, tt.target, tt.weight)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("got %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestValidateNodeKind(t *testing.T) {
	for kind := range ValidNodeKinds {
		if err := ValidateNodeKind(kind); err != nil {
			t.Errorf("ValidateNodeKind(%q) = %v, want nil", kind, err)
		}
	}
	if err := ValidateNodeKind("spaceship"); !errors.Is(err, ErrInvalidNodeKind) {
		t.Fatalf("got %v, want ErrInvalidNodeKind", err)
	}
}

func TestValidationErrorUnwrap(t *testing.T) {
	err := NewValidationError("query", "", ErrInvalidQuery)
	if !errors.Is(err, ErrInvalidQuery) {
		t.Fatal("ValidationError should unwrap to its sentinel")
	}
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatal("errors.As should find *ValidationError")
	}
	if ve.Field != "query" {
		t.Fatalf("field = %q, want query", ve.Field)
	}
}

func TestWireName(t *testing.T) {
	if got := CollectionSkills.WireName(); got != "devcareer_skills" {
		t.Fatalf("WireName = %q, want devcareer_skills", got)
	}
}
