package req

import "github.com/c360studio/semstreams/vocabulary"

// Requirement predicates.
const (
	// RequirementID is the requirement identity.
	RequirementID = "req.requirement.id"

	// RequirementLabel is the optional alternative target name.
	RequirementLabel = "req.requirement.label"

	// RequirementTitle is the requirement title line.
	RequirementTitle = "req.requirement.title"

	// RequirementDisplayName is the name rendered for links.
	RequirementDisplayName = "req.requirement.display_name"

	// RequirementText is the body, comments included, as plain text.
	RequirementText = "req.requirement.text"

	// RequirementDocument links a requirement to the document defining it.
	// Domain: requirement entity, Range: document entity
	RequirementDocument = "req.requirement.document"

	// RequirementAnchor is the fragment the requirement renders under.
	RequirementAnchor = "req.requirement.anchor"
)

// Document predicates.
const (
	// DocumentTitle is the first heading of the document.
	DocumentTitle = "req.document.title"

	// DocumentSource is the source file path.
	DocumentSource = "req.document.source"

	// DocumentReferences links a document to each requirement it mentions.
	// Domain: document entity, Range: requirement entity
	DocumentReferences = "req.document.references"
)

const (
	attributePrefix = "req.attribute."
	relationPrefix  = "req.relation."
)

// AttributePredicate returns the predicate of a configured attribute.
// Literal attributes export under the ontology namespace.
func AttributePredicate(name string) string {
	return attributePrefix + name
}

// RelationPredicate returns the predicate linking a requirement to the
// requirements it names through a reference-typed attribute or that name it
// through a reverse relation.
func RelationPredicate(name string) string {
	return relationPrefix + name
}

// standardIRIs maps predicates to the standard ontology term they export as.
var standardIRIs = map[string]string{
	RequirementID:          vocabulary.DcIdentifier,
	RequirementLabel:       vocabulary.SkosAltLabel,
	RequirementTitle:       vocabulary.DcTitle,
	RequirementDisplayName: vocabulary.SkosPrefLabel,
	RequirementText:        DcDescription,
	RequirementDocument:    DcIsPartOf,
	RequirementAnchor:      Namespace + "anchor",
	DocumentTitle:          vocabulary.DcTitle,
	DocumentSource:         vocabulary.DcSource,
	DocumentReferences:     DcReferences,
}

// PredicateIRI returns the IRI a predicate exports as. Predicates without a
// standard term export under the ontology namespace.
func PredicateIRI(pred string) string {
	if iri, ok := standardIRIs[pred]; ok {
		return iri
	}
	return Namespace + pred
}

func init() {
	vocabulary.Register(RequirementID,
		vocabulary.WithDescription("Requirement identity"),
		vocabulary.WithDataType("string"),
		vocabulary.WithIRI(standardIRIs[RequirementID]))

	vocabulary.Register(RequirementLabel,
		vocabulary.WithDescription("Alternative name a reference may target"),
		vocabulary.WithDataType("string"),
		vocabulary.WithIRI(standardIRIs[RequirementLabel]))

	vocabulary.Register(RequirementTitle,
		vocabulary.WithDescription("Requirement title"),
		vocabulary.WithDataType("string"),
		vocabulary.WithIRI(standardIRIs[RequirementTitle]))

	vocabulary.Register(RequirementDisplayName,
		vocabulary.WithDescription("Name rendered for links to the requirement"),
		vocabulary.WithDataType("string"),
		vocabulary.WithIRI(standardIRIs[RequirementDisplayName]))

	vocabulary.Register(RequirementText,
		vocabulary.WithDescription("Requirement body as plain text"),
		vocabulary.WithDataType("string"),
		vocabulary.WithIRI(standardIRIs[RequirementText]))

	vocabulary.Register(RequirementDocument,
		vocabulary.WithDescription("Document defining the requirement"),
		vocabulary.WithDataType("entity_id"),
		vocabulary.WithIRI(standardIRIs[RequirementDocument]))

	vocabulary.Register(RequirementAnchor,
		vocabulary.WithDescription("Fragment identifier of the rendered requirement"),
		vocabulary.WithDataType("string"),
		vocabulary.WithIRI(standardIRIs[RequirementAnchor]))

	vocabulary.Register(DocumentTitle,
		vocabulary.WithDescription("Document title"),
		vocabulary.WithDataType("string"),
		vocabulary.WithIRI(standardIRIs[DocumentTitle]))

	vocabulary.Register(DocumentSource,
		vocabulary.WithDescription("Source file of the document"),
		vocabulary.WithDataType("string"),
		vocabulary.WithIRI(standardIRIs[DocumentSource]))

	vocabulary.Register(DocumentReferences,
		vocabulary.WithDescription("Requirement mentioned by the document"),
		vocabulary.WithDataType("entity_id"),
		vocabulary.WithIRI(standardIRIs[DocumentReferences]))
}
