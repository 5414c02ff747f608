package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semreq/markup"
)

func TestMarkdownParser_Parse_NoFrontmatter(t *testing.T) {
	p := NewMarkdownParser()

	content := `# Hello World

This is a test document
with two lines.

## Section 1

Some content here.
`

	unit, err := p.Parse("docs/test.md", []byte(content))
	require.NoError(t, err)

	assert.Equal(t, "docs/test", unit.Document)
	assert.Equal(t, "docs/test.md", unit.Source)
	assert.Equal(t, "Hello World", unit.Title)
	require.Len(t, unit.Nodes, 4)

	assert.Equal(t, markup.KindHeading, unit.Nodes[0].Kind)
	assert.Equal(t, 1, unit.Nodes[0].Level)
	assert.Equal(t, "This is a test document with two lines.", markup.Flatten(unit.Nodes[1].Inlines))
	assert.Equal(t, 3, unit.Nodes[1].Line)
	assert.Equal(t, 2, unit.Nodes[2].Level)
	assert.Equal(t, "Section 1", unit.Nodes[2].Text)
	assert.Equal(t, 8, unit.Nodes[3].Line)
}

func TestMarkdownParser_Parse_WithFrontmatter(t *testing.T) {
	p := NewMarkdownParser()

	content := `---
title: Interfaces
req-declare:
  prefix: IF
  docid: 7
---
See {req}` + "`IF-007-001`" + ` and {req}` + "`the parent <ROOT>`" + `.
`

	unit, err := p.Parse("interfaces.md", []byte(content))
	require.NoError(t, err)

	assert.Equal(t, "Interfaces", unit.Title)
	require.Len(t, unit.Nodes, 2)

	decl := unit.Nodes[0]
	assert.Equal(t, markup.KindDeclare, decl.Kind)
	assert.Equal(t, map[string]string{"prefix": "IF", "docid": "7"}, decl.Directive.Options)

	para := unit.Nodes[1]
	assert.Equal(t, 7, para.Line)
	require.Len(t, para.Inlines, 5)
	assert.Equal(t, markup.Ref("IF-007-001", ""), para.Inlines[1])
	assert.Equal(t, markup.Ref("ROOT", "the parent"), para.Inlines[3])
}

func TestMarkdownParser_Parse_InvalidFrontmatter(t *testing.T) {
	p := NewMarkdownParser()

	content := `---
title: [unclosed
---
# Body
`

	_, err := p.Parse("bad.md", []byte(content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.md")
}

func TestMarkdownParser_Parse_UnclosedFrontmatter(t *testing.T) {
	p := NewMarkdownParser()

	unit, err := p.Parse("open.md", []byte("---\ntext\n"))
	require.NoError(t, err)
	require.Len(t, unit.Nodes, 1)
	assert.Equal(t, "--- text", markup.Flatten(unit.Nodes[0].Inlines))
}

func TestMarkdownParser_Directives(t *testing.T) {
	p := NewMarkdownParser()

	content := "# Spec\n" +
		"\n" +
		"```{req} REQ-1\n" +
		":priority: high\n" +
		":parent: ROOT\n" +
		"\n" +
		"The system shall log {req}`REQ-2`.\n" +
		"\n" +
		"|\n" +
		"\n" +
		"Reviewed.\n" +
		"```\n" +
		"\n" +
		":::{req}\n" +
		"---\n" +
		"id: REQ-2\n" +
		"owner: [alice, bob]\n" +
		"---\n" +
		"Logging is structured.\n" +
		":::\n" +
		"\n" +
		"```{req-list}\n" +
		":filter: priority == \"high\"\n" +
		"```\n" +
		"\n" +
		"```go\n" +
		"fmt.Println(\"{req}`NOPE`\")\n" +
		"```\n"

	unit, err := p.Parse("design.md", []byte(content))
	require.NoError(t, err)
	require.Len(t, unit.Nodes, 5)

	req := unit.Nodes[1]
	assert.Equal(t, markup.KindRequirement, req.Kind)
	assert.Equal(t, 3, req.Line)
	assert.Equal(t, "REQ-1", req.Directive.Argument)
	assert.Equal(t, map[string]string{"priority": "high", "parent": "ROOT"}, req.Directive.Options)
	require.Len(t, req.Directive.Content, 2)
	assert.Equal(t, markup.BlockParagraph, req.Directive.Content[0].Kind)
	assert.Equal(t, markup.Ref("REQ-2", ""), req.Directive.Content[0].Inlines[1])
	assert.Equal(t, markup.BlockComment, req.Directive.Content[1].Kind)

	colon := unit.Nodes[2]
	assert.Equal(t, markup.KindRequirement, colon.Kind)
	assert.Equal(t, map[string]string{"id": "REQ-2", "owner": "alice, bob"}, colon.Directive.Options)
	assert.Equal(t, "Logging is structured.", colon.Directive.Content[0].PlainText())

	list := unit.Nodes[3]
	assert.Equal(t, markup.KindListing, list.Kind)
	filter, _ := list.Directive.Option("filter")
	assert.Equal(t, `priority == "high"`, filter)

	code := unit.Nodes[4]
	assert.Equal(t, markup.KindLiteral, code.Kind)
	assert.Equal(t, "fmt.Println(\"{req}`NOPE`\")", code.Text)
}

func TestMarkdownParser_UnterminatedOptionBlock(t *testing.T) {
	p := NewMarkdownParser()

	_, err := p.Parse("x.md", []byte("```{req}\n---\nid: A\n```\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")
}

func TestMarkdownParser_CanParse(t *testing.T) {
	p := NewMarkdownParser()

	assert.True(t, p.CanParse("text/markdown"))
	assert.True(t, p.CanParse("text/x-markdown"))
	assert.True(t, p.CanParse("text/plain"))
	assert.False(t, p.CanParse("text/x-rst"))
	assert.Equal(t, "text/markdown", p.MimeType())
}
