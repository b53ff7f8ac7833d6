package common

// EntityType is the closed set of node types the extraction prompt allows.
type EntityType string

const (
	EntityPaper      EntityType = "Paper"
	EntityReference  EntityType = "Reference"
	EntitySection    EntityType = "Section"
	EntityArgument   EntityType = "Argument"
	EntityClaim      EntityType = "Claim"
	EntityEvidence   EntityType = "Evidence"
	EntityConcept    EntityType = "Concept"
	EntityBackground EntityType = "Background"
	EntityAuthor     EntityType = "Author"
)

// EntityTypes lists every allowed EntityType in prompt order.
var EntityTypes = []EntityType{
	EntityPaper,
	EntityReference,
	EntitySection,
	EntityArgument,
	EntityClaim,
	EntityEvidence,
	EntityConcept,
	EntityBackground,
	EntityAuthor,
}

// RelationLabel is the closed set of lowercase snake_case edge labels.
type RelationLabel string

const (
	RelationHas         RelationLabel = "has"
	RelationCites       RelationLabel = "cites"
	RelationWrote       RelationLabel = "wrote"
	RelationMentions    RelationLabel = "mentions"
	RelationContains    RelationLabel = "contains"
	RelationSupportedBy RelationLabel = "supported_by"
	RelationRelatedTo   RelationLabel = "related_to"
)

// RelationLabels lists every allowed RelationLabel.
var RelationLabels = []RelationLabel{
	RelationHas,
	RelationCites,
	RelationWrote,
	RelationMentions,
	RelationContains,
	RelationSupportedBy,
	RelationRelatedTo,
}

// IsEntityType reports whether s names an allowed entity type.
func IsEntityType(s string) bool {
	for _, t := range EntityTypes {
		if string(t) == s {
			return true
		}
	}
	return false
}

// IsRelationLabel reports whether s names an allowed relation label.
func IsRelationLabel(s string) bool {
	for _, l := range RelationLabels {
		if string(l) == s {
			return true
		}
	}
	return false
}

// Property keys written onto entities and relations during extraction.
const (
	PropEntityDescription   = "entity_description"
	PropRelationDescription = "relation_description"
	PropDocumentID          = "document_id"
	PropChunkID             = "chunk_id"
)

// Entity is a node in the knowledge graph. Name is the node identity and
// is compared exactly, without case folding or trimming.
type Entity struct {
	Name        string            `json:"name"`
	Type        string            `json:"type"`
	Description string            `json:"description"`
	Properties  map[string]string `json:"properties,omitempty"`
}

// Relation is a directed, labeled edge between two entities referenced by name.
type Relation struct {
	Source      string            `json:"source"`
	Target      string            `json:"target"`
	Label       string            `json:"label"`
	Description string            `json:"description"`
	Properties  map[string]string `json:"properties,omitempty"`
}

// EdgeDescription returns the description stored in the relation properties,
// falling back to the Description field.
func (r Relation) EdgeDescription() string {
	if d, ok := r.Properties[PropRelationDescription]; ok {
		return d
	}
	return r.Description
}

// Triplet is a single (source, relation, target) fact as returned by the
// graph store.
type Triplet struct {
	Source   Entity   `json:"source"`
	Relation Relation `json:"relation"`
	Target   Entity   `json:"target"`
}

// Chunk is a bounded span of document text and the unit of independent
// extraction work. Entities and Relations are filled by the extractor.
type Chunk struct {
	ID         string            `json:"id"`
	DocumentID string            `json:"document_id"`
	Index      int               `json:"index"`
	Start      int               `json:"start"`
	End        int               `json:"end"`
	Text       string            `json:"text"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Entities   []Entity          `json:"entities,omitempty"`
	Relations  []Relation        `json:"relations,omitempty"`
}

// RetrievedNode is a single similarity search hit. Text holds one relation
// per line in the form "source -> label -> target".
type RetrievedNode struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// CopyProperties returns a shallow copy of m that is safe to modify.
func CopyProperties(m map[string]string) map[string]string {
	out := make(map[string]string, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}
