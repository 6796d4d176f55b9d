package ingest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/newdataengg/dev-career-compass/engine/domain"
	"github.com/newdataengg/dev-career-compass/engine/graph"
)

var kindCollections = map[domain.NodeKind]domain.Collection{
	domain.KindDeveloper:  domain.CollectionDevelopers,
	domain.KindSkill:      domain.CollectionSkills,
	domain.KindRepository: domain.CollectionRepositories,
	domain.KindCareerPath: domain.CollectionCareerPaths,
	KindJob:               domain.CollectionJobs,
}

// collectionFor maps an entity kind to its vector collection.
func collectionFor(kind domain.NodeKind) (domain.Collection, error) {
	c, ok := kindCollections[kind]
	if !ok {
		return "", fmt.Errorf("ingest: %w: %q", domain.ErrInvalidNodeKind, kind)
	}
	return c, nil
}

// embedText composes the text to embed for a record: the name, the
// description, and the attributes in a stable order so re-ingesting an
// unchanged record re-embeds identical text.
func embedText(rec EntityRecord) string {
	var b strings.Builder
	b.WriteString(rec.Name)
	if rec.Description != "" {
		b.WriteString(". ")
		b.WriteString(rec.Description)
	}
	if len(rec.Attributes) > 0 {
		keys := make([]string, 0, len(rec.Attributes))
		for k := range rec.Attributes {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(k)
			b.WriteString(": ")
			b.WriteString(rec.Attributes[k])
		}
		b.WriteString(")")
	}
	return b.String()
}

// graphNode builds the graph node for a record, or nil for vector-only
// kinds. The name rides along as an attribute so traversal results can be
// rendered without a second lookup.
func graphNode(rec EntityRecord) *graph.Node {
	if rec.Kind == KindJob {
		return nil
	}
	attrs := make(map[string]string, len(rec.Attributes)+1)
	for k, v := range rec.Attributes {
		attrs[k] = v
	}
	attrs["name"] = rec.Name
	return &graph.Node{ID: rec.ID, Kind: rec.Kind, Attributes: attrs}
}

// graphEdges builds the outgoing edges declared by a record.
func graphEdges(rec EntityRecord) []graph.Edge {
	if len(rec.Relations) == 0 {
		return nil
	}
	edges := make([]graph.Edge, 0, len(rec.Relations))
	for _, r := range rec.Relations {
		edges = append(edges, graph.Edge{
			Source:   rec.ID,
			Target:   r.TargetID,
			Relation: r.Relation,
			Weight:   r.Weight,
		})
	}
	return edges
}

// vectorPayload builds the search payload stored beside the vector. The
// node_id key links search hits back to graph nodes for traversal seeding.
func vectorPayload(rec EntityRecord) map[string]any {
	payload := map[string]any{
		"node_id": rec.ID,
		"name":    rec.Name,
		"kind":    string(rec.Kind),
	}
	if rec.Description != "" {
		payload["description"] = rec.Description
	}
	for k, v := range rec.Attributes {
		payload["attr_"+k] = v
	}
	return payload
}
