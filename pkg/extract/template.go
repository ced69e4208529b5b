package extract

import (
	"fmt"
	"strings"

	"github.com/papergraph/papergraph/pkg/ai"
)

// CatchAllEntityType receives entity candidates whose type falls outside
// the template's vocabulary.
const CatchAllEntityType = "concept"

// CatchAllRelationshipType receives relationship candidates whose type
// falls outside the template's vocabulary.
const CatchAllRelationshipType = "RELATED_TO"

// Template bundles everything the extractor needs for one kind of
// document: the prompt, the entity/relationship vocabularies, and the
// confidence threshold separating accepted candidates from the
// low-confidence side list.
type Template struct {
	Key                 string
	PromptTemplate      string
	EntityTypes         []string
	RelationshipTypes   []string
	ConfidenceThreshold float64
	Temperature         float64
}

// SystemPrompt renders the template's prompt with its vocabularies.
func (t Template) SystemPrompt() string {
	return fmt.Sprintf(
		t.PromptTemplate,
		strings.Join(t.EntityTypes, ", "),
		strings.Join(t.RelationshipTypes, ", "),
		strings.Join(t.EntityTypes, ", "),
		strings.Join(t.RelationshipTypes, ", "),
	)
}

// HasEntityType reports whether typ is in the template's entity
// vocabulary, case-insensitively.
func (t Template) HasEntityType(typ string) bool {
	for _, v := range t.EntityTypes {
		if strings.EqualFold(v, typ) {
			return true
		}
	}
	return false
}

// HasRelationshipType reports whether typ is in the template's
// relationship vocabulary, case-insensitively.
func (t Template) HasRelationshipType(typ string) bool {
	for _, v := range t.RelationshipTypes {
		if strings.EqualFold(v, typ) {
			return true
		}
	}
	return false
}

// DefaultTemplateKey selects the scientific-paper template.
const DefaultTemplateKey = "paper"

var templates = map[string]Template{
	DefaultTemplateKey: {
		Key:            DefaultTemplateKey,
		PromptTemplate: ai.ExtractPromptPaper,
		EntityTypes: []string{
			"person", "organization", "concept", "technology",
			"publication", "method", "dataset", "location",
		},
		RelationshipTypes: []string{
			"AUTHORED", "WORKS_AT", "USES", "CITES",
			"RELATED_TO", "DEVELOPED", "EVALUATES", "PART_OF",
		},
		ConfidenceThreshold: 0.35,
		Temperature:         0.1,
	},
}

// LookupTemplate returns the template registered under key.
func LookupTemplate(key string) (Template, error) {
	tpl, ok := templates[key]
	if !ok {
		return Template{}, fmt.Errorf("unknown extraction template: %s", key)
	}
	return tpl, nil
}

// RegisterTemplate adds or replaces a template. Intended for callers with
// domain vocabularies beyond the built-in paper template.
func RegisterTemplate(tpl Template) {
	templates[tpl.Key] = tpl
}
