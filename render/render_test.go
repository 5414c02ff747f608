package render

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semreq/markup"
	"github.com/c360studio/semreq/requirement"
)

func sampleDocument() *requirement.ResolvedDocument {
	rec := &requirement.Record{
		ID:       "REQ-001",
		Title:    "Login",
		Document: "specs/index",
		Anchor:   "req-REQ-001",
		Body: []markup.Block{
			{Kind: markup.BlockParagraph, Inlines: []markup.Inline{markup.Text("Users log in with 50% less effort.")}},
			{Kind: markup.BlockComment, Inlines: []markup.Inline{markup.Text("Agreed with security.")}},
		},
		Attributes: map[string]string{"priority": "high", "parent": "REQ-000"},
	}
	parent := requirement.Link{From: "specs/index", Document: "specs/api", Anchor: "req-REQ-000", Text: "REQ-000", Target: "REQ-000", Resolved: true}
	backlink := requirement.Link{From: "specs/index", Document: "specs/index", Anchor: "ref-00001", Text: requirement.BacklinkGlyph, Target: "REQ-001", Resolved: true}
	cross := requirement.Link{From: "specs/index", Document: "specs/api", Anchor: "req-REQ-000", Text: "REQ-000", Target: "REQ-000", Resolved: true}

	return &requirement.ResolvedDocument{
		Document: "specs/index",
		Title:    "Index",
		Nodes: []requirement.ResolvedNode{
			{Kind: markup.KindHeading, Level: 1, Text: "Index"},
			{Kind: markup.KindParagraph, Inlines: []requirement.ResolvedInline{
				{Text: "See "},
				{Text: "REQ-000", Anchor: "ref-00001", Link: &cross},
				{Text: " and "},
				{Text: "MISSING", Anchor: "ref-00002"},
				{Text: "."},
			}},
			{Kind: markup.KindLiteral, Text: "a < b"},
			{Kind: markup.KindRequirement, Requirement: &requirement.ResolvedRequirement{
				Record: rec,
				Widths: []int{10, 20, 20, 20, 20},
				Attributes: []requirement.ResolvedAttribute{
					{Name: "priority", Value: "high"},
					{Name: "parent", Value: "REQ-000", Links: []requirement.Link{parent}},
				},
				Relations: []requirement.ResolvedRelation{{Name: "children", Links: []requirement.Link{cross}}},
				Backlinks: []requirement.Link{backlink},
			}},
			{Kind: markup.KindListing, Listing: &requirement.Table{
				Document: "specs/index",
				Anchor:   "list-001",
				Caption:  "All requirements",
				Headers:  []string{"ID", "Priority"},
				Widths:   []int{15, 10},
				Rows: []requirement.Row{{ID: "REQ-001", Cells: []requirement.Cell{
					{Field: "id", Kind: requirement.CellLinks, Links: []requirement.Link{{From: "specs/index", Document: "specs/index", Anchor: "req-REQ-001", Text: "REQ-001", Resolved: true}}},
					{Field: "priority", Kind: requirement.CellText, Text: "high"},
				}}},
			}},
			{Kind: markup.KindListing, Listing: &requirement.Table{
				Document: "specs/index",
				Anchor:   "list-002",
				Err:      errors.New("bad filter"),
			}},
		},
	}
}

func render(t *testing.T, r Renderer) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, sampleDocument()))
	return buf.String()
}

func TestHTMLRenderer(t *testing.T) {
	out := render(t, NewHTMLRenderer())

	assert.True(t, strings.HasPrefix(out, "<!DOCTYPE html>"))
	assert.Contains(t, out, "<title>Index</title>")
	assert.Contains(t, out, "<h1>Index</h1>")
	assert.Contains(t, out, `<span id="ref-00001"><a class="reference" href="api.html#req-REQ-000">REQ-000</a></span>`)
	assert.Contains(t, out, `<span id="ref-00002">MISSING</span>`)
	assert.Contains(t, out, "<pre><code>a &lt; b</code></pre>")
	assert.Contains(t, out, `<table class="requirement" id="req-REQ-001">`)
	assert.Contains(t, out, `class="requirement-id" rowspan="4">REQ-001</td>`)
	assert.Contains(t, out, `<p class="requirement-comment">Agreed with security.</p>`)
	assert.Contains(t, out, `<a class="reference" href="#ref-00001">❐</a>`)
	assert.Contains(t, out, "Priority: high")
	assert.Contains(t, out, "Children: ")
	assert.Contains(t, out, `<table class="requirement-list" id="list-001">`)
	assert.Contains(t, out, "<caption>All requirements</caption>")
	assert.Contains(t, out, "<th>Priority</th>")
	assert.Contains(t, out, `<div class="requirement-error" id="list-002"><p>Invalid requirement listing: bad filter</p></div>`)
}

func TestHTMLRenderer_CustomStylesheet(t *testing.T) {
	out := render(t, &HTMLRenderer{})
	assert.NotContains(t, out, "<style>")
}

func TestMarkdownRenderer(t *testing.T) {
	out := render(t, NewMarkdownRenderer())

	assert.Contains(t, out, "# Index")
	assert.Contains(t, out, "[REQ-000](api.md#req-REQ-000)")
	assert.Contains(t, out, "MISSING")
	assert.Regexp(t, `\|\s*ID\s*\|\s*Priority\s*\|`, out)
	assert.Contains(t, out, "[REQ-001](#req-REQ-001)")
	assert.Contains(t, out, "Invalid requirement listing: bad filter")
	assert.NotContains(t, out, "\n\n\n\n")
}

func TestLaTeXRenderer(t *testing.T) {
	out := render(t, NewLaTeXRenderer())

	assert.True(t, strings.HasPrefix(out, `\documentclass{article}`))
	assert.True(t, strings.HasSuffix(out, "\\end{document}\n"))
	assert.Contains(t, out, `\section{Index}`)
	assert.Contains(t, out, `\hypertarget{specs/index:ref-00001}{}\hyperlink{specs/api:req-REQ-000}{REQ-000}`)
	assert.Contains(t, out, `\hypertarget{specs/index:ref-00002}{}MISSING`)
	assert.Contains(t, out, `\hypertarget{specs/index:req-REQ-001}{}`)
	assert.Contains(t, out, `\textbf{REQ-001} & Login\par `)
	assert.Contains(t, out, `50\% less effort`)
	assert.Contains(t, out, `\begin{itshape}Agreed with security.\par \end{itshape}`)
	assert.Contains(t, out, `(\hyperlink{specs/index:ref-00001}{$\square$})`)
	assert.Contains(t, out, `Priority: high & Parent: \hyperlink{specs/api:req-REQ-000}{REQ-000}`)
	assert.Contains(t, out, `\begin{longtable}`)
	assert.Contains(t, out, `\caption{All requirements}`)
	assert.Contains(t, out, `\textbf{ID} & \textbf{Priority}`)
	assert.Contains(t, out, `\textbf{Invalid requirement listing: bad filter}`)
	assert.Contains(t, out, "\\begin{verbatim}\na < b\n\\end{verbatim}")
}

func TestLaTeXRenderer_Fragment(t *testing.T) {
	out := render(t, &LaTeXRenderer{})
	assert.NotContains(t, out, `\documentclass`)
	assert.True(t, strings.HasPrefix(out, `\section{Index}`))
}

func TestEscapeLaTeX(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"a_b", `a\_b`},
		{"50% & $5", `50\% \& \$5`},
		{`C:\path`, `C:\textbackslash{}path`},
		{"{x}", `\{x\}`},
		{"~^#", `\textasciitilde{}\textasciicircum{}\#`},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, escapeLaTeX(tt.in))
		})
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	assert.Equal(t, []string{"html", "latex", "markdown"}, reg.Formats())

	r, err := reg.Get("HTML")
	require.NoError(t, err)
	assert.Equal(t, ".html", r.Extension())

	r, err = reg.Get("latex")
	require.NoError(t, err)
	assert.Equal(t, ".tex", r.Extension())

	_, err = reg.Get("pdf")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestRenderWithEnvironment(t *testing.T) {
	env, err := requirement.New(requirement.DefaultSettings(), nil)
	require.NoError(t, err)

	u := &markup.Unit{Document: "index", Title: "Index", Nodes: []markup.Node{
		{Kind: markup.KindRequirement, Line: 1, Directive: &markup.Directive{
			Name:    markup.DirectiveRequirement,
			Options: map[string]string{"id": "REQ-1", "priority": "high"},
			Content: []markup.Block{{Kind: markup.BlockParagraph, Inlines: []markup.Inline{markup.Text("Body")}}},
			Line:    1,
		}},
		{Kind: markup.KindParagraph, Line: 5, Inlines: []markup.Inline{markup.Ref("REQ-1", "")}},
	}}
	_, err = env.Extract(requirement.DocumentInfo{ID: "index", Ordinal: 1}, u)
	require.NoError(t, err)
	_, err = env.Finalize(t.Context())
	require.NoError(t, err)

	doc, err := env.ResolveAll("index")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, NewHTMLRenderer().Render(&buf, doc))
	assert.Contains(t, buf.String(), `href="#req-REQ-1"`)
	assert.Contains(t, buf.String(), "Priority: high")
}
