package graph

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/scilab-ai/scilab/backend/pkg/ai"
	"github.com/scilab-ai/scilab/backend/pkg/common"
)

// ExtractedEntity is a single entity as written by the model.
type ExtractedEntity struct {
	EntityName        string `json:"entity_name" jsonschema_description:"Name of the entity"`
	EntityType        string `json:"entity_type" jsonschema_description:"One of the allowed entity types"`
	EntityDescription string `json:"entity_description" jsonschema_description:"Description of the entity as provided by the source"`
}

// ExtractedRelation is a single relationship as written by the model.
type ExtractedRelation struct {
	SourceEntity            string `json:"source_entity" jsonschema_description:"Name of the source entity"`
	TargetEntity            string `json:"target_entity" jsonschema_description:"Name of the target entity"`
	Relation                string `json:"relation" jsonschema_description:"One of the allowed lowercase snake_case relation labels"`
	RelationshipDescription string `json:"relationship_description" jsonschema_description:"Why the source and target are related"`
}

type extractResponse struct {
	Entities      []ExtractedEntity   `json:"entities"`
	Relationships []ExtractedRelation `json:"relationships"`
}

// ParseTriplets decodes raw model output into entities and relationships.
//
// Markdown fences are removed and the first balanced {...} region is decoded
// as strict JSON. Anything that does not decode yields two empty slices;
// ParseTriplets never fails.
func ParseTriplets(raw string) ([]ExtractedEntity, []ExtractedRelation) {
	region, ok := firstJSONObject(ai.StripCodeFences(raw))
	if !ok {
		return nil, nil
	}

	var resp extractResponse
	if err := json.Unmarshal([]byte(region), &resp); err != nil {
		return nil, nil
	}
	return resp.Entities, resp.Relationships
}

// firstJSONObject returns the first balanced {...} region of s. Braces inside
// JSON strings are ignored. If no region closes, everything from the first
// '{' to the last '}' is returned.
func firstJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}

	end := strings.LastIndexByte(s, '}')
	if end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// SchemaError lists the records rejected by ValidateTriplets.
type SchemaError struct {
	Problems []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("extraction violates graph schema: %s", strings.Join(e.Problems, "; "))
}

// ValidateTriplets keeps only entities and relations that fit the closed
// schema: known entity types, known relation labels and non-empty names.
// Relations pointing at a rejected entity are dropped too. The returned
// error is a *SchemaError describing what was removed, or nil.
func ValidateTriplets(
	entities []ExtractedEntity,
	relations []ExtractedRelation,
) ([]ExtractedEntity, []ExtractedRelation, error) {
	var problems []string
	rejected := make(map[string]struct{})

	validEntities := make([]ExtractedEntity, 0, len(entities))
	for _, e := range entities {
		switch {
		case e.EntityName == "":
			problems = append(problems, "entity without name")
		case !common.IsEntityType(e.EntityType):
			problems = append(problems, fmt.Sprintf("entity %q has unknown type %q", e.EntityName, e.EntityType))
			rejected[e.EntityName] = struct{}{}
		default:
			validEntities = append(validEntities, e)
		}
	}

	validRelations := make([]ExtractedRelation, 0, len(relations))
	for _, r := range relations {
		_, srcRejected := rejected[r.SourceEntity]
		_, tgtRejected := rejected[r.TargetEntity]
		switch {
		case r.SourceEntity == "" || r.TargetEntity == "":
			problems = append(problems, fmt.Sprintf("relation %q misses an endpoint", r.Relation))
		case !common.IsRelationLabel(r.Relation):
			problems = append(problems, fmt.Sprintf("relation %s -> %s has unknown label %q", r.SourceEntity, r.TargetEntity, r.Relation))
		case srcRejected || tgtRejected:
			problems = append(problems, fmt.Sprintf("relation %s -> %s references a rejected entity", r.SourceEntity, r.TargetEntity))
		default:
			validRelations = append(validRelations, r)
		}
	}

	if len(problems) > 0 {
		return validEntities, validRelations, &SchemaError{Problems: problems}
	}
	return validEntities, validRelations, nil
}
