package req

import (
	"net/url"
	"strings"
)

// Namespace is the base IRI prefix for semreq ontology terms.
const Namespace = "https://semreq.dev/ontology/"

// EntityNamespace is the base IRI for requirement and document instances.
const EntityNamespace = "https://semreq.dev/entity/"

// Standard ontology IRIs with no semstreams constant.
const (
	// DcDescription is the Dublin Core description property.
	DcDescription = "http://purl.org/dc/terms/description"

	// DcIsPartOf is the Dublin Core isPartOf property.
	DcIsPartOf = "http://purl.org/dc/terms/isPartOf"

	// DcReferences is the Dublin Core references property.
	DcReferences = "http://purl.org/dc/terms/references"
)

// Class IRIs.
const (
	// ClassRequirement is a traceable requirement.
	// Extends: cco:DirectiveInformationContentEntity, prov:Entity
	ClassRequirement = Namespace + "Requirement"

	// ClassDocument is a source document defining or mentioning requirements.
	// Extends: cco:InformationContentEntity, prov:Entity
	ClassDocument = Namespace + "Document"
)

// Entity id prefixes. Entity ids are dotted: semreq.requirement.<id>.
const (
	requirementPrefix = "semreq.requirement."
	documentPrefix    = "semreq.document."
)

// RequirementEntityID returns the entity id of a requirement identity.
func RequirementEntityID(id string) string {
	return requirementPrefix + url.PathEscape(id)
}

// DocumentEntityID returns the entity id of a document.
func DocumentEntityID(doc string) string {
	return documentPrefix + url.PathEscape(doc)
}

// IsEntityID reports whether s is a requirement or document entity id.
func IsEntityID(s string) bool {
	return strings.HasPrefix(s, requirementPrefix) || strings.HasPrefix(s, documentPrefix)
}

// EntityIRI converts an entity id to its IRI. Other strings are returned
// unchanged.
//
//	semreq.requirement.REQ-001 -> https://semreq.dev/entity/requirement/REQ-001
//	semreq.document.specs%2Fapi -> https://semreq.dev/entity/document/specs/api
func EntityIRI(entityID string) string {
	switch {
	case strings.HasPrefix(entityID, requirementPrefix):
		return EntityNamespace + "requirement/" + strings.TrimPrefix(entityID, requirementPrefix)
	case strings.HasPrefix(entityID, documentPrefix):
		doc, err := url.PathUnescape(strings.TrimPrefix(entityID, documentPrefix))
		if err != nil {
			doc = strings.TrimPrefix(entityID, documentPrefix)
		}
		parts := strings.Split(doc, "/")
		for i, p := range parts {
			parts[i] = url.PathEscape(p)
		}
		return EntityNamespace + "document/" + strings.Join(parts, "/")
	}
	return entityID
}
