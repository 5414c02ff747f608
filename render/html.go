package render

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/c360studio/semreq/markup"
	"github.com/c360studio/semreq/requirement"
)

// Stylesheet is embedded in every HTML page.
const Stylesheet = `
.requirement-comment, .requirement-comment * { font-style: italic; line-height: 100%; }
table.requirement { width: 100%; border: 0; border-bottom: 1px solid #e0e0e0; }
table.requirement td { border: 0; text-align: justify; vertical-align: top; }
table.requirement td.requirement-id { font-weight: bold; }
table.requirement-list { width: 100%; border-collapse: collapse; }
table.requirement-list th, table.requirement-list td { border: 1px solid #e0e0e0; vertical-align: top; }
.requirement-error { color: #a00; }
`

// HTMLRenderer renders standalone HTML pages.
type HTMLRenderer struct {
	// Stylesheet replaces the default stylesheet when set.
	Stylesheet string
}

// NewHTMLRenderer creates an HTML renderer with the default stylesheet.
func NewHTMLRenderer() *HTMLRenderer {
	return &HTMLRenderer{Stylesheet: Stylesheet}
}

// Format returns "html".
func (r *HTMLRenderer) Format() string { return "html" }

// Extension returns ".html".
func (r *HTMLRenderer) Extension() string { return ".html" }

// Render writes doc as an HTML page.
func (r *HTMLRenderer) Render(w io.Writer, doc *requirement.ResolvedDocument) error {
	title := doc.Title
	if title == "" {
		title = doc.Document
	}

	head := element(atom.Head)
	head.AppendChild(element(atom.Meta, "charset", "utf-8"))
	head.AppendChild(withText(element(atom.Title), title))
	if r.Stylesheet != "" {
		head.AppendChild(withText(element(atom.Style), r.Stylesheet))
	}
	body := element(atom.Body)
	body.AppendChild(htmlArticle(doc, r.Extension()))

	root := element(atom.Html)
	root.AppendChild(head)
	root.AppendChild(body)

	page := &html.Node{Type: html.DocumentNode}
	page.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})
	page.AppendChild(root)
	if err := html.Render(w, page); err != nil {
		return fmt.Errorf("render %s: %w", doc.Document, err)
	}
	return nil
}

var headings = [...]atom.Atom{atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6}

// htmlArticle builds the document body. Links point at files with the
// given extension.
func htmlArticle(doc *requirement.ResolvedDocument, ext string) *html.Node {
	article := element(atom.Article, "id", doc.Document)
	for _, n := range doc.Nodes {
		switch n.Kind {
		case markup.KindHeading:
			level := min(max(n.Level, 1), len(headings))
			article.AppendChild(withText(element(headings[level-1]), n.Text))
		case markup.KindParagraph:
			p := element(atom.P)
			appendInlines(p, n.Inlines, ext)
			article.AppendChild(p)
		case markup.KindLiteral:
			pre := element(atom.Pre)
			pre.AppendChild(withText(element(atom.Code), n.Text))
			article.AppendChild(pre)
		case markup.KindRequirement:
			if n.Requirement != nil {
				article.AppendChild(requirementTable(n.Requirement, ext))
			}
		case markup.KindListing:
			if n.Listing != nil {
				article.AppendChild(listingTable(n.Listing, ext))
			}
		}
	}
	return article
}

func appendInlines(parent *html.Node, inlines []requirement.ResolvedInline, ext string) {
	for _, in := range inlines {
		var n *html.Node
		if in.Link != nil {
			n = linkNode(*in.Link, ext)
		} else {
			n = textNode(in.Text)
		}
		if in.Anchor != "" {
			span := element(atom.Span, "id", in.Anchor)
			span.AppendChild(n)
			n = span
		}
		parent.AppendChild(n)
	}
}

func linkNode(l requirement.Link, ext string) *html.Node {
	uri := l.RelativeURI(ext)
	if uri == "" {
		return textNode(l.Text)
	}
	a := element(atom.A, "class", "reference", "href", uri)
	a.AppendChild(textNode(l.Text))
	return a
}

func appendLinks(parent *html.Node, links []requirement.Link, ext string) {
	for i, l := range links {
		if i > 0 {
			parent.AppendChild(textNode(", "))
		}
		parent.AppendChild(linkNode(l, ext))
	}
}

func appendBlocks(parent *html.Node, blocks []markup.Block) *html.Node {
	var last *html.Node
	for _, b := range blocks {
		p := element(atom.P)
		if b.Kind == markup.BlockComment {
			p.Attr = append(p.Attr, html.Attribute{Key: "class", Val: "requirement-comment"})
		}
		p.AppendChild(textNode(b.PlainText()))
		parent.AppendChild(p)
		last = p
	}
	return last
}

func colgroup(widths []int) *html.Node {
	cg := element(atom.Colgroup)
	total := 0
	for _, w := range widths {
		total += w
	}
	for _, w := range widths {
		pct := 0
		if total > 0 {
			pct = w * 100 / total
		}
		cg.AppendChild(element(atom.Col, "style", "width: "+strconv.Itoa(pct)+"%"))
	}
	return cg
}

// requirementTable lays a requirement out as a table: the identity spans
// every row on the left, followed by the title, the body with backlinks, the
// attributes in rows of len(widths)-1 cells, and the reverse relations.
func requirementTable(rr *requirement.ResolvedRequirement, ext string) *html.Node {
	rec := rr.Record
	idWidth, rest := splitColumns(rr.Widths)
	span := len(rest)
	colspan := strconv.Itoa(span)

	var rows []*html.Node
	if rec.Title != "" {
		td := withText(element(atom.Td, "colspan", colspan), rec.Title)
		rows = append(rows, row(td))
	}

	body := element(atom.Td, "colspan", colspan)
	last := appendBlocks(body, rec.Body)
	if len(rr.Backlinks) > 0 {
		if last == nil || hasClass(last, "requirement-comment") {
			last = element(atom.P)
			body.AppendChild(last)
		}
		last.AppendChild(textNode(" ("))
		appendLinks(last, rr.Backlinks, ext)
		last.AppendChild(textNode(")"))
	}
	rows = append(rows, row(body))

	for i := 0; i < len(rr.Attributes); i += span {
		tr := element(atom.Tr)
		for j := i; j < i+span; j++ {
			td := element(atom.Td)
			if j < len(rr.Attributes) {
				a := rr.Attributes[j]
				if a.Links != nil {
					td.AppendChild(textNode(label(a.Name) + ": "))
					appendLinks(td, a.Links, ext)
				} else {
					td.AppendChild(textNode(attributeText(a)))
				}
			}
			tr.AppendChild(td)
		}
		rows = append(rows, tr)
	}

	for _, rel := range rr.Relations {
		td := element(atom.Td, "colspan", colspan)
		td.AppendChild(textNode(label(rel.Name) + ": "))
		appendLinks(td, rel.Links, ext)
		rows = append(rows, row(td))
	}

	id := withText(element(atom.Td, "class", "requirement-id", "rowspan", strconv.Itoa(len(rows))), rec.Name())
	rows[0].InsertBefore(id, rows[0].FirstChild)

	table := element(atom.Table, "class", "requirement", "id", rec.Anchor)
	table.AppendChild(colgroup(append([]int{idWidth}, rest...)))
	tbody := element(atom.Tbody)
	for _, tr := range rows {
		tbody.AppendChild(tr)
	}
	table.AppendChild(tbody)
	return table
}

func listingTable(t *requirement.Table, ext string) *html.Node {
	if t.Err != nil {
		div := element(atom.Div, "class", "requirement-error", "id", t.Anchor)
		div.AppendChild(withText(element(atom.P), errorNotice(t.Err)))
		return div
	}

	table := element(atom.Table, "class", "requirement-list", "id", t.Anchor)
	if t.Caption != "" {
		table.AppendChild(withText(element(atom.Caption), t.Caption))
	}
	table.AppendChild(colgroup(t.Widths))

	head := element(atom.Tr)
	for _, h := range t.Headers {
		head.AppendChild(withText(element(atom.Th), h))
	}
	thead := element(atom.Thead)
	thead.AppendChild(head)
	table.AppendChild(thead)

	tbody := element(atom.Tbody)
	for _, r := range t.Rows {
		tr := element(atom.Tr)
		for _, c := range r.Cells {
			td := element(atom.Td)
			switch c.Kind {
			case requirement.CellLinks:
				appendLinks(td, c.Links, ext)
			case requirement.CellBlocks:
				appendBlocks(td, c.Blocks)
			default:
				td.AppendChild(textNode(c.Text))
			}
			tr.AppendChild(td)
		}
		tbody.AppendChild(tr)
	}
	table.AppendChild(tbody)
	return table
}

func row(cells ...*html.Node) *html.Node {
	tr := element(atom.Tr)
	for _, c := range cells {
		tr.AppendChild(c)
	}
	return tr
}

// element creates an element node. attrs are key, value pairs.
func element(a atom.Atom, attrs ...string) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
	for i := 0; i+1 < len(attrs); i += 2 {
		n.Attr = append(n.Attr, html.Attribute{Key: attrs[i], Val: attrs[i+1]})
	}
	return n
}

func textNode(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

func withText(n *html.Node, s string) *html.Node {
	n.AppendChild(textNode(s))
	return n
}

func hasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key == "class" && strings.Contains(" "+a.Val+" ", " "+class+" ") {
			return true
		}
	}
	return false
}
