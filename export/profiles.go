package export

import (
	"github.com/c360studio/semstreams/message"

	"github.com/c360studio/semreq/vocabulary/req"
)

// TypePredicate is the graph predicate carrying type assertions.
const TypePredicate = "rdf.syntax.type"

// Profile determines which ontology type assertions are included in the export.
type Profile string

const (
	// ProfileMinimal includes the semreq and PROV-O types only.
	ProfileMinimal Profile = "minimal"

	// ProfileBFO includes BFO type assertions plus minimal profile.
	ProfileBFO Profile = "bfo"

	// ProfileCCO includes CCO type assertions plus BFO profile.
	ProfileCCO Profile = "cco"
)

// ProfileConfig contains configuration for an export profile.
type ProfileConfig struct {
	Name        Profile
	Description string

	IncludeBFO  bool
	IncludeCCO  bool
	IncludePROV bool
}

// Profiles contains the configuration for all available export profiles.
var Profiles = map[Profile]ProfileConfig{
	ProfileMinimal: {
		Name:        ProfileMinimal,
		Description: "semreq classes with PROV-O entity types",
		IncludePROV: true,
	},
	ProfileBFO: {
		Name:        ProfileBFO,
		Description: "BFO type assertions plus minimal profile",
		IncludeBFO:  true,
		IncludePROV: true,
	},
	ProfileCCO: {
		Name:        ProfileCCO,
		Description: "Full CCO/BFO/PROV-O alignment",
		IncludeBFO:  true,
		IncludeCCO:  true,
		IncludePROV: true,
	},
}

// GetProfileConfig returns the configuration for a profile. Unknown
// profiles fall back to minimal.
func GetProfileConfig(profile Profile) ProfileConfig {
	if config, ok := Profiles[profile]; ok {
		return config
	}
	return Profiles[ProfileMinimal]
}

// TypeAsserter generates type assertions for entities based on profile.
type TypeAsserter struct {
	profile ProfileConfig
}

// NewTypeAsserter creates a new type asserter for the given profile.
func NewTypeAsserter(profile Profile) *TypeAsserter {
	return &TypeAsserter{profile: GetProfileConfig(profile)}
}

// GetTypeIRIs returns all type IRIs for an entity type based on the profile.
func (t *TypeAsserter) GetTypeIRIs(entityType req.EntityType) []string {
	types := make([]string, 0, 4)
	if class, ok := req.ClassMap[entityType]; ok {
		types = append(types, class)
	}
	if t.profile.IncludePROV {
		if class, ok := req.PROVClassMap[entityType]; ok {
			types = append(types, class)
		}
	}
	if t.profile.IncludeBFO {
		if class, ok := req.BFOClassMap[entityType]; ok {
			types = append(types, class)
		}
	}
	if t.profile.IncludeCCO {
		if class, ok := req.CCOClassMap[entityType]; ok {
			types = append(types, class)
		}
	}
	return types
}

// TypeTriples returns the type assertions of an entity as graph triples.
func TypeTriples(entityID string, entityType req.EntityType, profile Profile) []message.Triple {
	typeIRIs := NewTypeAsserter(profile).GetTypeIRIs(entityType)
	triples := make([]message.Triple, 0, len(typeIRIs))
	for _, typeIRI := range typeIRIs {
		triples = append(triples, message.Triple{
			Subject:    entityID,
			Predicate:  TypePredicate,
			Object:     typeIRI,
			Source:     "semreq.rdf-export",
			Confidence: 1.0,
		})
	}
	return triples
}

