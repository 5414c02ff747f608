package req

import (
	"testing"

	"github.com/c360studio/semstreams/vocabulary"
)

func TestPredicatesRegistered(t *testing.T) {
	predicates := []string{
		RequirementID,
		RequirementLabel,
		RequirementTitle,
		RequirementDisplayName,
		RequirementText,
		RequirementDocument,
		RequirementAnchor,
		DocumentTitle,
		DocumentSource,
		DocumentReferences,
	}

	for _, pred := range predicates {
		t.Run(pred, func(t *testing.T) {
			meta := vocabulary.GetPredicateMetadata(pred)
			if meta == nil || meta.Description == "" {
				t.Errorf("predicate %s not registered or missing description", pred)
			}
			if PredicateIRI(pred) == Namespace+pred {
				t.Errorf("predicate %s has no standard IRI", pred)
			}
		})
	}
}

func TestPredicateIRI(t *testing.T) {
	tests := []struct {
		pred string
		want string
	}{
		{RequirementTitle, vocabulary.DcTitle},
		{RequirementDocument, "http://purl.org/dc/terms/isPartOf"},
		{RequirementAnchor, Namespace + "anchor"},
		{AttributePredicate("priority"), Namespace + "req.attribute.priority"},
		{RelationPredicate("children"), Namespace + "req.relation.children"},
	}
	for _, tt := range tests {
		t.Run(tt.pred, func(t *testing.T) {
			if got := PredicateIRI(tt.pred); got != tt.want {
				t.Errorf("PredicateIRI(%q) = %q, want %q", tt.pred, got, tt.want)
			}
		})
	}
}

func TestEntityIRI(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{RequirementEntityID("REQ-001"), EntityNamespace + "requirement/REQ-001"},
		{RequirementEntityID("R 1"), EntityNamespace + "requirement/R%201"},
		{DocumentEntityID("specs/api"), EntityNamespace + "document/specs/api"},
		{"https://example.com/x", "https://example.com/x"},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			if got := EntityIRI(tt.id); got != tt.want {
				t.Errorf("EntityIRI(%q) = %q, want %q", tt.id, got, tt.want)
			}
		})
	}

	if !IsEntityID(RequirementEntityID("X")) || IsEntityID("plain") {
		t.Error("IsEntityID misclassified")
	}
}
