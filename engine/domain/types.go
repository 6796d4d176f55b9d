// Package domain defines core types, collection and node-kind enums, and
// validation for the Compass retrieval engine. It acts as the validation gate
// at pipeline entry points.
package domain

// Collection names an independently-configured partition of the vector index.
type Collection string

const (
	CollectionSkills       Collection = "skills"
	CollectionDevelopers   Collection = "developers"
	CollectionRepositories Collection = "repositories"
	CollectionJobs         Collection = "jobs"
	CollectionCareerPaths  Collection = "career_paths"
)

// ValidCollections is the set of recognised vector collections.
var ValidCollections = map[Collection]bool{
	CollectionSkills: true, CollectionDevelopers: true,
	CollectionRepositories: true, CollectionJobs: true,
	CollectionCareerPaths: true,
}

// AllCollections lists every collection in a stable order.
var AllCollections = []Collection{
	CollectionSkills, CollectionDevelopers, CollectionRepositories,
	CollectionJobs, CollectionCareerPaths,
}

// CollectionPrefix is prepended to collection names on the wire so several
// deployments can share one Qdrant cluster.
const CollectionPrefix = "devcareer_"

// WireName returns the on-the-wire collection name.
func (c Collection) WireName() string { return CollectionPrefix + string(c) }

// NodeKind classifies knowledge-graph nodes. A node's kind is immutable
// after creation.
type NodeKind string

const (
	KindDeveloper  NodeKind = "developer"
	KindSkill      NodeKind = "skill"
	KindRepository NodeKind = "repository"
	KindCareerPath NodeKind = "career_path"
)

// ValidNodeKinds is the set of recognised node kinds.
var ValidNodeKinds = map[NodeKind]bool{
	KindDeveloper: true, KindSkill: true,
	KindRepository: true, KindCareerPath: true,
}

// Relation labels used by the ingestion pipeline. The graph store accepts
// arbitrary labels; these are the ones the collector produces.
const (
	RelationHasSkill     = "has_skill"
	RelationUsesSkill    = "uses_skill"
	RelationContributes  = "contributes_to"
	RelationRequires     = "requires"
	RelationLeadsTo      = "leads_to"
	RelationCoOccursWith = "co_occurs_with"
)
