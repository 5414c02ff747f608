package requirement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSettings_Valid(t *testing.T) {
	s := DefaultSettings()
	require.NoError(t, s.Validate())

	def, ok := s.attribute("parent")
	require.True(t, ok)
	assert.Equal(t, AttributeReference, def.Type)

	rel, ok := s.relation("children")
	require.True(t, ok)
	assert.Equal(t, "parent", rel.Attribute)
}

func TestSettings_ValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
		want   string
	}{
		{"missing pattern", func(s *Settings) { s.Pattern = Pattern{} }, "pattern is required"},
		{"bad scope", func(s *Settings) { s.Scope = "tree" }, "unknown identifier scope"},
		{"empty display", func(s *Settings) { s.Display = " " }, "display template is empty"},
		{"reserved attribute", func(s *Settings) {
			s.Attributes = append(s.Attributes, AttributeDef{Name: "id", Type: AttributeText})
		}, "reserved"},
		{"duplicate attribute", func(s *Settings) {
			s.Attributes = append(s.Attributes, AttributeDef{Name: "owner", Type: AttributeText})
		}, "declared twice"},
		{"bad attribute name", func(s *Settings) {
			s.Attributes = append(s.Attributes, AttributeDef{Name: "has space", Type: AttributeText})
		}, "invalid name"},
		{"unknown type", func(s *Settings) {
			s.Attributes = append(s.Attributes, AttributeDef{Name: "risk", Type: "number"})
		}, "unknown type"},
		{"bad validation tag", func(s *Settings) {
			s.Attributes = append(s.Attributes, AttributeDef{Name: "risk", Type: AttributeText, Validate: "nosuchrule"})
		}, "invalid validation tag"},
		{"relation on text attribute", func(s *Settings) {
			s.Relations = append(s.Relations, Relation{Name: "owned", Attribute: "owner"})
		}, "is not a reference"},
		{"relation on unknown attribute", func(s *Settings) {
			s.Relations = append(s.Relations, Relation{Name: "refines", Attribute: "derives"})
		}, "unknown attribute"},
		{"relation clashes with attribute", func(s *Settings) {
			s.Relations = append(s.Relations, Relation{Name: "priority", Attribute: "parent"})
		}, "clashes"},
		{"inconsistent listing", func(s *Settings) {
			s.Listing.Widths = []int{10, 10}
		}, "inconsistent number of listing columns"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.mutate(&s)
			err := s.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSettings_ValidTag(t *testing.T) {
	s := DefaultSettings()
	s.Attributes = append(s.Attributes, AttributeDef{Name: "risk", Type: AttributeText, Validate: "oneof=low medium high"})
	assert.NoError(t, s.Validate())
}

func TestRenderDisplay(t *testing.T) {
	r := &Record{ID: "REQ-1", Title: "Login", Attributes: map[string]string{"priority": "high"}}
	assert.Equal(t, "REQ-1", renderDisplay("{id}", r))
	assert.Equal(t, "REQ-1 Login (high)", renderDisplay("{id} {title} ({priority})", r))
	assert.Equal(t, "REQ-1", renderDisplay("{id} {owner}", r))
}
