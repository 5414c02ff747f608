package render

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/c360studio/semreq/markup"
	"github.com/c360studio/semreq/requirement"
)

// LaTeXRenderer renders LaTeX. Anchors become hyperref targets named
// "document:anchor".
type LaTeXRenderer struct {
	// Standalone wraps the output in a compilable document.
	Standalone bool
}

// NewLaTeXRenderer creates a LaTeX renderer producing standalone documents.
func NewLaTeXRenderer() *LaTeXRenderer {
	return &LaTeXRenderer{Standalone: true}
}

// Format returns "latex".
func (r *LaTeXRenderer) Format() string { return "latex" }

// Extension returns ".tex".
func (r *LaTeXRenderer) Extension() string { return ".tex" }

var latexSections = [...]string{`\section`, `\subsection`, `\subsubsection`, `\paragraph`, `\subparagraph`}

// Render writes doc as LaTeX.
func (r *LaTeXRenderer) Render(w io.Writer, doc *requirement.ResolvedDocument) error {
	bw := bufio.NewWriter(w)
	lw := &latexWriter{w: bw, doc: doc.Document}

	if r.Standalone {
		lw.printf("\\documentclass{article}\n")
		lw.printf("\\usepackage[utf8]{inputenc}\n\\usepackage{tabulary}\n\\usepackage{longtable}\n\\usepackage{hyperref}\n")
		if doc.Title != "" {
			lw.printf("\\title{%s}\n", escapeLaTeX(doc.Title))
		}
		lw.printf("\\begin{document}\n\n")
	}

	for _, n := range doc.Nodes {
		switch n.Kind {
		case markup.KindHeading:
			level := min(max(n.Level, 1), len(latexSections))
			lw.printf("%s{%s}\n\n", latexSections[level-1], escapeLaTeX(n.Text))
		case markup.KindParagraph:
			lw.inlines(n.Inlines)
			lw.printf("\n\n")
		case markup.KindLiteral:
			lw.printf("\\begin{verbatim}\n%s\n\\end{verbatim}\n\n", n.Text)
		case markup.KindRequirement:
			if n.Requirement != nil {
				lw.requirement(n.Requirement)
			}
		case markup.KindListing:
			if n.Listing != nil {
				lw.listing(n.Listing)
			}
		}
	}

	if r.Standalone {
		lw.printf("\\end{document}\n")
	}
	if lw.err != nil {
		return fmt.Errorf("render %s: %w", doc.Document, lw.err)
	}
	return bw.Flush()
}

type latexWriter struct {
	w   *bufio.Writer
	doc string
	err error
}

func (lw *latexWriter) printf(format string, args ...any) {
	if lw.err != nil {
		return
	}
	_, lw.err = fmt.Fprintf(lw.w, format, args...)
}

func (lw *latexWriter) target(anchor string) {
	lw.printf("\\hypertarget{%s:%s}{}", lw.doc, anchor)
}

func (lw *latexWriter) link(l requirement.Link) {
	if !l.Resolved {
		lw.printf("%s", escapeLaTeX(l.Text))
		return
	}
	lw.printf("\\hyperlink{%s:%s}{%s}", l.Document, l.Anchor, escapeLaTeX(l.Text))
}

func (lw *latexWriter) links(links []requirement.Link) {
	for i, l := range links {
		if i > 0 {
			lw.printf(", ")
		}
		lw.link(l)
	}
}

func (lw *latexWriter) inlines(inlines []requirement.ResolvedInline) {
	for _, in := range inlines {
		if in.Anchor != "" {
			lw.target(in.Anchor)
		}
		if in.Link != nil {
			lw.link(*in.Link)
			continue
		}
		lw.printf("%s", escapeLaTeX(in.Text))
	}
}

// requirement writes a two-column tabulary: the identity on the left, the
// title, body and an attribute sub-table on the right.
func (lw *latexWriter) requirement(rr *requirement.ResolvedRequirement) {
	rec := rr.Record
	idWidth, rest := splitColumns(rr.Widths)
	total := idWidth
	for _, w := range rest {
		total += w
	}
	p0 := float64(idWidth) / float64(total)
	p1 := 1.0 - p0 - 0.05

	lw.target(rec.Anchor)
	lw.printf("\n\\begin{tabulary}{\\linewidth}{p{%.3f\\linewidth}p{%.3f\\linewidth}}\n", p0, p1)
	lw.printf("\\textbf{%s} & ", escapeLaTeX(rec.Name()))
	if rec.Title != "" {
		lw.printf("%s\\par ", escapeLaTeX(rec.Title))
	}

	comment := false
	for _, b := range rec.Body {
		if b.Kind == markup.BlockComment && !comment {
			lw.printf("\\par\\begin{itshape}")
			comment = true
		}
		lw.printf("%s\\par ", escapeLaTeX(b.PlainText()))
	}
	if comment {
		lw.printf("\\end{itshape}")
	}
	if len(rr.Backlinks) > 0 {
		lw.printf("(")
		lw.links(rr.Backlinks)
		lw.printf(")")
	}
	for _, rel := range rr.Relations {
		lw.printf("\\par %s: ", escapeLaTeX(label(rel.Name)))
		lw.links(rel.Links)
	}
	lw.printf(" \\\\\n")

	if len(rr.Attributes) > 0 {
		lw.printf("& \\begin{small}\n\\begin{tabular*}{1.0\\linewidth}{")
		for _, w := range rest {
			lw.printf("p{%.3f\\linewidth}", float64(w)/float64(total))
		}
		lw.printf("}\n\\hline\n")
		span := len(rest)
		for i := 0; i < len(rr.Attributes); i += span {
			for j := i; j < i+span; j++ {
				if j > i {
					lw.printf(" & ")
				}
				if j >= len(rr.Attributes) {
					continue
				}
				a := rr.Attributes[j]
				if a.Links != nil {
					lw.printf("%s: ", escapeLaTeX(label(a.Name)))
					lw.links(a.Links)
				} else {
					lw.printf("%s", escapeLaTeX(attributeText(a)))
				}
			}
			lw.printf(" \\\\ \\hline\n")
		}
		lw.printf("\\end{tabular*}\n\\end{small} \\\\\n")
	}
	lw.printf("\\end{tabulary}\n\n")
}

func (lw *latexWriter) listing(t *requirement.Table) {
	lw.target(t.Anchor)
	lw.printf("\n")
	if t.Err != nil {
		lw.printf("\\textbf{%s}\n\n", escapeLaTeX(errorNotice(t.Err)))
		return
	}

	total := 0
	for _, w := range t.Widths {
		total += w
	}
	lw.printf("\\begin{longtable}{|")
	for _, w := range t.Widths {
		frac := 0.0
		if total > 0 {
			frac = 0.9 * float64(w) / float64(total)
		}
		lw.printf("p{%.3f\\linewidth}|", frac)
	}
	lw.printf("}\n")
	if t.Caption != "" {
		lw.printf("\\caption{%s}\\\\\n", escapeLaTeX(t.Caption))
	}
	lw.printf("\\hline\n")
	for i, h := range t.Headers {
		if i > 0 {
			lw.printf(" & ")
		}
		lw.printf("\\textbf{%s}", escapeLaTeX(h))
	}
	lw.printf(" \\\\ \\hline\n\\endhead\n")

	for _, r := range t.Rows {
		for i, c := range r.Cells {
			if i > 0 {
				lw.printf(" & ")
			}
			switch c.Kind {
			case requirement.CellLinks:
				lw.links(c.Links)
			case requirement.CellBlocks:
				for k, b := range c.Blocks {
					if k > 0 {
						lw.printf("\\par ")
					}
					lw.printf("%s", escapeLaTeX(b.PlainText()))
				}
			default:
				lw.printf("%s", escapeLaTeX(c.Text))
			}
		}
		lw.printf(" \\\\ \\hline\n")
	}
	lw.printf("\\end{longtable}\n\n")
}

var latexEscaper = strings.NewReplacer(
	`\`, `\textbackslash{}`,
	`&`, `\&`,
	`%`, `\%`,
	`$`, `\$`,
	`#`, `\#`,
	`_`, `\_`,
	`{`, `\{`,
	`}`, `\}`,
	`~`, `\textasciitilde{}`,
	`^`, `\textasciicircum{}`,
	"❐", `$\square$`,
)

func escapeLaTeX(s string) string {
	return latexEscaper.Replace(s)
}
