package export_test

import (
	"testing"

	"github.com/c360studio/semstreams/vocabulary"
	"github.com/c360studio/semstreams/vocabulary/bfo"
	"github.com/c360studio/semstreams/vocabulary/cco"

	"github.com/c360studio/semreq/export"
	"github.com/c360studio/semreq/vocabulary/req"
)

func TestGetProfileConfig(t *testing.T) {
	tests := []struct {
		profile  export.Profile
		wantBFO  bool
		wantCCO  bool
		wantPROV bool
	}{
		{export.ProfileMinimal, false, false, true},
		{export.ProfileBFO, true, false, true},
		{export.ProfileCCO, true, true, true},
	}

	for _, tc := range tests {
		t.Run(string(tc.profile), func(t *testing.T) {
			config := export.GetProfileConfig(tc.profile)
			if config.IncludeBFO != tc.wantBFO {
				t.Errorf("IncludeBFO = %v, want %v", config.IncludeBFO, tc.wantBFO)
			}
			if config.IncludeCCO != tc.wantCCO {
				t.Errorf("IncludeCCO = %v, want %v", config.IncludeCCO, tc.wantCCO)
			}
			if config.IncludePROV != tc.wantPROV {
				t.Errorf("IncludePROV = %v, want %v", config.IncludePROV, tc.wantPROV)
			}
		})
	}
}

func TestGetProfileConfigUnknown(t *testing.T) {
	config := export.GetProfileConfig("unknown")
	if config.Name != export.ProfileMinimal {
		t.Errorf("Unknown profile should default to minimal, got %s", config.Name)
	}
}

func TestTypeAsserter(t *testing.T) {
	tests := []struct {
		profile    export.Profile
		entityType req.EntityType
		want       []string
	}{
		{export.ProfileMinimal, req.EntityTypeRequirement, []string{req.ClassRequirement, vocabulary.ProvEntity}},
		{export.ProfileBFO, req.EntityTypeDocument, []string{req.ClassDocument, vocabulary.ProvEntity, bfo.GenericallyDependentContinuant}},
		{export.ProfileCCO, req.EntityTypeRequirement, []string{
			req.ClassRequirement, vocabulary.ProvEntity,
			bfo.GenericallyDependentContinuant, cco.DirectiveInformationContentEntity,
		}},
		{export.ProfileCCO, "unknown", []string{}},
	}
	for _, tc := range tests {
		t.Run(string(tc.profile)+"/"+string(tc.entityType), func(t *testing.T) {
			got := export.NewTypeAsserter(tc.profile).GetTypeIRIs(tc.entityType)
			if len(got) != len(tc.want) {
				t.Fatalf("GetTypeIRIs = %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("type[%d] = %s, want %s", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestTypeTriples(t *testing.T) {
	id := req.RequirementEntityID("REQ-001")
	triples := export.TypeTriples(id, req.EntityTypeRequirement, export.ProfileBFO)
	want := []string{req.ClassRequirement, vocabulary.ProvEntity, bfo.GenericallyDependentContinuant}
	if len(triples) != len(want) {
		t.Fatalf("TypeTriples = %v, want %d triples", triples, len(want))
	}
	for i, tr := range triples {
		if tr.Subject != id || tr.Predicate != export.TypePredicate {
			t.Errorf("triple[%d] = %s %s, want %s %s", i, tr.Subject, tr.Predicate, id, export.TypePredicate)
		}
		if tr.Object != want[i] {
			t.Errorf("triple[%d] object = %v, want %s", i, tr.Object, want[i])
		}
	}
}
