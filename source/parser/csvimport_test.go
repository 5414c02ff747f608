package parser

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semreq/markup"
)

func TestExpandImports(t *testing.T) {
	fsys := fstest.MapFS{
		"specs/reqs.csv": {Data: []byte("id;priority;text;comment\n" +
			"IMP-1;high;\"First line\n\nsecond paragraph\";checked\n" +
			";low;Refers to :req:`IMP-1`;\n")},
	}

	unit, err := NewRSTParser().Parse("specs/import.rst", []byte(
		"Intro.\n\n.. req::\n   :csv-file: reqs.csv\n   :label: dropped\n   :owner: team-a\n\nOutro.\n"))
	require.NoError(t, err)
	require.Len(t, unit.Nodes, 3)

	deps, err := ExpandImports(unit, fsys)
	require.NoError(t, err)
	assert.Equal(t, []string{"specs/reqs.csv"}, deps)
	require.Len(t, unit.Nodes, 4)

	first := unit.Nodes[1].Directive
	assert.Equal(t, map[string]string{"id": "IMP-1", "priority": "high", "owner": "team-a"}, first.Options)
	require.Len(t, first.Content, 3)
	assert.Equal(t, "First line", first.Content[0].PlainText())
	assert.Equal(t, markup.BlockParagraph, first.Content[1].Kind)
	assert.Equal(t, markup.BlockComment, first.Content[2].Kind)
	assert.Equal(t, "checked", first.Content[2].PlainText())

	second := unit.Nodes[2].Directive
	assert.Equal(t, "", second.Options["id"])
	require.Len(t, second.Content, 1)
	assert.Equal(t, markup.Ref("IMP-1", ""), second.Content[0].Inlines[1])

	assert.Equal(t, markup.KindParagraph, unit.Nodes[3].Kind)
}

func TestExpandImports_Errors(t *testing.T) {
	fsys := fstest.MapFS{
		"notext.csv": {Data: []byte("id;priority\nA;high\n")},
		"empty.csv":  {Data: []byte("")},
	}

	tests := []struct {
		name    string
		file    string
		wantErr error
	}{
		{"missing text column", "/notext.csv", ErrMissingTextColumn},
		{"empty file", "empty.csv", ErrMissingTextColumn},
		{"missing file", "nope.csv", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unit := &markup.Unit{
				Source: "index.md",
				Nodes: []markup.Node{{
					Kind: markup.KindRequirement,
					Line: 4,
					Directive: &markup.Directive{
						Name:    markup.DirectiveRequirement,
						Options: map[string]string{"csv-file": tt.file},
					},
				}},
			}
			_, err := ExpandImports(unit, fsys)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "line 4")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.Empty(t, unit.Nodes)
		})
	}
}
