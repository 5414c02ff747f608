package req

import (
	"github.com/c360studio/semstreams/vocabulary"
	"github.com/c360studio/semstreams/vocabulary/bfo"
	"github.com/c360studio/semstreams/vocabulary/cco"
)

// EntityType is the kind of an exported entity.
type EntityType string

// Entity types.
const (
	EntityTypeRequirement EntityType = "requirement"
	EntityTypeDocument    EntityType = "document"
)

// ClassMap maps entity types to semreq classes.
var ClassMap = map[EntityType]string{
	EntityTypeRequirement: ClassRequirement,
	EntityTypeDocument:    ClassDocument,
}

// PROVClassMap maps entity types to PROV-O classes.
var PROVClassMap = map[EntityType]string{
	EntityTypeRequirement: vocabulary.ProvEntity,
	EntityTypeDocument:    vocabulary.ProvEntity,
}

// BFOClassMap maps entity types to BFO classes.
var BFOClassMap = map[EntityType]string{
	EntityTypeRequirement: bfo.GenericallyDependentContinuant,
	EntityTypeDocument:    bfo.GenericallyDependentContinuant,
}

// CCOClassMap maps entity types to CCO classes.
var CCOClassMap = map[EntityType]string{
	EntityTypeRequirement: cco.DirectiveInformationContentEntity,
	EntityTypeDocument:    cco.InformationContentEntity,
}
