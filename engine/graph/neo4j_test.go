package graph

import (
	"testing"

	"github.com/newdataengg/dev-career-compass/engine/domain"
)

func TestSanitizeRelType(t *testing.T) {
	tests := []struct {
		input, want string
	}{
		{"has_skill", "HAS_SKILL"},
		{"uses_skill", "USES_SKILL"},
		{"co_occurs_with", "CO_OCCURS_WITH"},
		{"leads_to", "LEADS_TO"},
		{"", "RELATED_TO"},
		{"drop;match", "DROPMATCH"},
		{"ALREADY_UPPER", "ALREADY_UPPER"},
		{"weird-rel.2", "WEIRDREL2"},
	}
	for _, tt := range tests {
		if got := sanitizeRelType(tt.input); got != tt.want {
			t.Errorf("sanitizeRelType(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestNodeFromProps(t *testing.T) {
	props := map[string]any{
		"id":            "skill:go",
		"kind":          "skill",
		"attr_name":     "Go",
		"attr_category": "language",
		"unrelated":     int64(7),
	}
	n := nodeFromProps(props)
	if n.ID != "skill:go" {
		t.Fatalf("id = %q", n.ID)
	}
	if n.Kind != domain.KindSkill {
		t.Fatalf("kind = %q", n.Kind)
	}
	if n.Attributes["name"] != "Go" || n.Attributes["category"] != "language" {
		t.Fatalf("attributes = %v", n.Attributes)
	}
	if _, ok := n.Attributes["unrelated"]; ok {
		t.Fatal("non-attr property leaked into attributes")
	}
}

func TestAttrPropsRoundTrip(t *testing.T) {
	attrs := map[string]string{"name": "Go", "category": "language"}
	props := attrProps(attrs)
	if props["attr_name"] != "Go" || props["attr_category"] != "language" {
		t.Fatalf("props = %v", props)
	}

	props["id"] = "x"
	props["kind"] = "skill"
	back := nodeFromProps(props)
	if len(back.Attributes) != 2 {
		t.Fatalf("round trip attributes = %v", back.Attributes)
	}
}

func TestValueCoercions(t *testing.T) {
	if asString(nil) != "" || asString(int64(3)) != "" || asString("x") != "x" {
		t.Fatal("asString coercion wrong")
	}
	if asInt64(nil) != 0 || asInt64(int64(5)) != 5 {
		t.Fatal("asInt64 coercion wrong")
	}
	if asFloat64(int64(2)) != 2.0 || asFloat64(2.5) != 2.5 || asFloat64("x") != 0 {
		t.Fatal("asFloat64 coercion wrong")
	}
}
