package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/newdataengg/dev-career-compass/engine/domain"
)

// entityLabel is the single Neo4j label used for all graph nodes; the kind
// lives in a property so traversals stay label-agnostic.
const entityLabel = "Entity"

// Neo4jStore implements Store on a Neo4j cluster. Mutations run inside
// managed write transactions, which gives the atomicity the contract asks
// for.
type Neo4jStore struct {
	driver neo4j.DriverWithContext
}

// NewNeo4jStore wraps a Neo4j driver.
func NewNeo4jStore(driver neo4j.DriverWithContext) *Neo4jStore {
	return &Neo4jStore{driver: driver}
}

// AddNode inserts a node, failing on duplicate ids.
func (s *Neo4jStore) AddNode(ctx context.Context, n Node) error {
	if err := domain.ValidateNodeID(n.ID); err != nil {
		return fmt.Errorf("graph: add node: %w", err)
	}
	if err := domain.ValidateNodeKind(n.Kind); err != nil {
		return fmt.Errorf("graph: add node %q: %w", n.ID, err)
	}
	sess := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	_, err := sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		check, err := tx.Run(ctx,
			`MATCH (n:Entity {id: $id}) RETURN n.id LIMIT 1`,
			map[string]any{"id": n.ID})
		if err != nil {
			return nil, err
		}
		if check.Next(ctx) {
			return nil, fmt.Errorf("graph: %w: %q", domain.ErrDuplicateNode, n.ID)
		}
		_, err = tx.Run(ctx,
			`CREATE (n:Entity {id: $id, kind: $kind}) SET n += $attrs`,
			map[string]any{"id": n.ID, "kind": string(n.Kind), "attrs": attrProps(n.Attributes)})
		return nil, err
	})
	return err
}

// AddEdge inserts a directed weighted edge between existing nodes.
func (s *Neo4jStore) AddEdge(ctx context.Context, e Edge) error {
	if err := domain.ValidateEdge(e.Source, e.Target, e.Weight); err != nil {
		return fmt.Errorf("graph: add edge: %w", err)
	}
	sess := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	cypher := fmt.Sprintf(
		`MATCH (a:Entity {id: $source}), (b:Entity {id: $target})
		 MERGE (a)-[r:%s]->(b)
		 SET r.weight = $weight
		 RETURN a.id`,
		sanitizeRelType(e.Relation),
	)
	_, err := sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, map[string]any{
			"source": e.Source,
			"target": e.Target,
			"weight": e.Weight,
		})
		if err != nil {
			return nil, err
		}
		if !result.Next(ctx) {
			return nil, fmt.Errorf("graph: %w: %q -> %q", domain.ErrDanglingReference, e.Source, e.Target)
		}
		return nil, nil
	})
	return err
}

// Neighbors answers the bounded traversal with the same semantics as the
// in-memory store: shortest hop distance first, best weight product among
// equal-length paths.
func (s *Neo4jStore) Neighbors(ctx context.Context, seedIDs []string, maxHops int, relations []string) ([]Reached, error) {
	if maxHops < 0 {
		maxHops = 0
	}
	sess := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	relFilter := ""
	params := map[string]any{"seeds": seedIDs}
	if len(relations) > 0 {
		relFilter = "AND ALL(r IN relationships(p) WHERE type(r) IN $rels)"
		rels := make([]string, len(relations))
		for i, r := range relations {
			rels[i] = sanitizeRelType(r)
		}
		params["rels"] = rels
	}

	cypher := fmt.Sprintf(
		`MATCH p = (s:Entity)-[*0..%d]->(n:Entity)
		 WHERE s.id IN $seeds %s
		 WITH n, length(p) AS hops,
		      reduce(w = 1.0, r IN relationships(p) | w * r.weight) AS rel
		 ORDER BY hops ASC, rel DESC
		 WITH n, collect({hops: hops, rel: rel})[0] AS best
		 RETURN n.id AS id, best.hops AS hops, best.rel AS rel
		 ORDER BY best.rel DESC, best.hops ASC, n.id ASC`,
		maxHops, relFilter,
	)
	result, err := sess.Run(ctx, cypher, params)
	if err != nil {
		return nil, fmt.Errorf("graph: neighbors: %w", err)
	}

	var out []Reached
	for result.Next(ctx) {
		rec := result.Record()
		id, _ := rec.Get("id")
		hops, _ := rec.Get("hops")
		rel, _ := rec.Get("rel")
		out = append(out, Reached{
			ID:        asString(id),
			Hops:      int(asInt64(hops)),
			Relevance: asFloat64(rel),
		})
	}
	return out, result.Err()
}

// RemoveNode deletes the node and all incident edges.
func (s *Neo4jStore) RemoveNode(ctx context.Context, id string) error {
	sess := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	_, err := sess.Run(ctx,
		`MATCH (n:Entity {id: $id}) DETACH DELETE n`,
		map[string]any{"id": id})
	return err
}

// GetNode returns a node by id.
func (s *Neo4jStore) GetNode(ctx context.Context, id string) (Node, bool, error) {
	sess := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	result, err := sess.Run(ctx,
		`MATCH (n:Entity {id: $id}) RETURN n`,
		map[string]any{"id": id})
	if err != nil {
		return Node{}, false, err
	}
	if !result.Next(ctx) {
		return Node{}, false, result.Err()
	}
	node, _, err := neo4j.GetRecordValue[dbtype.Node](result.Record(), "n")
	if err != nil {
		return Node{}, false, err
	}
	return nodeFromProps(node.Props), true, nil
}

// Stats returns node and edge counts.
func (s *Neo4jStore) Stats(ctx context.Context) (Stats, error) {
	sess := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	result, err := sess.Run(ctx,
		`MATCH (n:Entity)
		 OPTIONAL MATCH (:Entity)-[r]->(:Entity)
		 RETURN count(DISTINCT n) AS nodes, count(DISTINCT r) AS edges`, nil)
	if err != nil {
		return Stats{}, err
	}
	if !result.Next(ctx) {
		return Stats{}, result.Err()
	}
	rec := result.Record()
	nodes, _ := rec.Get("nodes")
	edges, _ := rec.Get("edges")
	return Stats{Nodes: int(asInt64(nodes)), Edges: int(asInt64(edges))}, nil
}

func nodeFromProps(props map[string]any) Node {
	n := Node{
		ID:         asString(props["id"]),
		Kind:       domain.NodeKind(asString(props["kind"])),
		Attributes: make(map[string]string),
	}
	for k, v := range props {
		if len(k) > 5 && k[:5] == "attr_" {
			if s, ok := v.(string); ok {
				n.Attributes[k[5:]] = s
			}
		}
	}
	return n
}

func attrProps(attrs map[string]string) map[string]any {
	m := make(map[string]any, len(attrs))
	for k, v := range attrs {
		m["attr_"+k] = v
	}
	return m
}

// sanitizeRelType keeps relation labels valid as Cypher identifiers.
func sanitizeRelType(t string) string {
	safe := make([]byte, 0, len(t))
	for i := range t {
		c := t[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			safe = append(safe, c)
		}
	}
	if len(safe) == 0 {
		return "RELATED_TO"
	}
	for i := range safe {
		if safe[i] >= 'a' && safe[i] <= 'z' {
			safe[i] -= 32
		}
	}
	return string(safe)
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func asInt64(v any) int64 {
	if n, ok := v.(int64); ok {
		return n
	}
	return 0
}

func asFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	default:
		return 0
	}
}
