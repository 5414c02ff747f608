// Package markup defines the parsed document tree that parsers produce and
// requirement extraction consumes.
//
// A Unit is flat: a document is an ordered list of nodes, each
// tagged with a Kind. Directive nodes (requirements, listings, declarations)
// carry their raw options and content; everything else is passed through to
// the renderers untouched.
package markup

import "strings"

// Kind discriminates node variants.
type Kind string

// Node kinds.
const (
	KindHeading     Kind = "heading"
	KindParagraph   Kind = "paragraph"
	KindLiteral     Kind = "literal"
	KindRequirement Kind = "requirement"
	KindListing     Kind = "listing"
	KindDeclare     Kind = "declare"
)

// Directive names as they appear in source markup.
const (
	DirectiveRequirement = "req"
	DirectiveListing     = "req-list"
	DirectiveDeclare     = "req-declare"
	RoleReference        = "req"
)

// DirectiveKind maps a directive name to its node kind.
// The second result is false for directives this module does not handle.
func DirectiveKind(name string) (Kind, bool) {
	switch name {
	case DirectiveRequirement:
		return KindRequirement, true
	case DirectiveListing:
		return KindListing, true
	case DirectiveDeclare:
		return KindDeclare, true
	default:
		return "", false
	}
}

// Unit is one parsed input document.
type Unit struct {
	// Document is the document identity (slash-separated path without extension).
	Document string `json:"document"`

	// Source is the file the unit was parsed from.
	Source string `json:"source,omitempty"`

	// Title is the first heading of the document, if any.
	Title string `json:"title,omitempty"`

	// Nodes are the document nodes in source order.
	Nodes []Node `json:"nodes"`
}

// Node is a single block-level element of a document.
type Node struct {
	Kind Kind `json:"kind"`

	// Line is the 1-based source line the node starts on.
	Line int `json:"line"`

	// Level is the heading depth (1 = top level). Headings only.
	Level int `json:"level,omitempty"`

	// Text holds heading titles and literal block content.
	Text string `json:"text,omitempty"`

	// Inlines holds paragraph content.
	Inlines []Inline `json:"inlines,omitempty"`

	// Directive is set for requirement, listing and declare nodes.
	Directive *Directive `json:"directive,omitempty"`
}

// Directive is the raw form of a directive block.
type Directive struct {
	Name string `json:"name"`

	// Argument is the text following "::" including continuation lines.
	Argument string `json:"argument,omitempty"`

	// Options are the ":key: value" field lines.
	Options map[string]string `json:"options,omitempty"`

	// Content is the directive body split into blocks.
	Content []Block `json:"content,omitempty"`

	Line int `json:"line"`
}

// Option returns a trimmed option value.
func (d *Directive) Option(name string) (string, bool) {
	if d == nil || d.Options == nil {
		return "", false
	}
	v, ok := d.Options[name]
	return strings.TrimSpace(v), ok
}

// Clone returns a deep copy of the directive.
func (d *Directive) Clone() *Directive {
	if d == nil {
		return nil
	}
	out := &Directive{
		Name:     d.Name,
		Argument: d.Argument,
		Line:     d.Line,
		Options:  make(map[string]string, len(d.Options)),
		Content:  make([]Block, len(d.Content)),
	}
	for k, v := range d.Options {
		out.Options[k] = v
	}
	for i, b := range d.Content {
		out.Content[i] = b.Clone()
	}
	return out
}

// BlockKind discriminates directive body blocks.
type BlockKind string

// Block kinds. Comment blocks follow a "|" separator line in a requirement body.
const (
	BlockParagraph BlockKind = "paragraph"
	BlockComment   BlockKind = "comment"
)

// Block is one paragraph of directive content.
type Block struct {
	Kind    BlockKind `json:"kind"`
	Inlines []Inline  `json:"inlines"`
}

// Clone returns a deep copy of the block.
func (b Block) Clone() Block {
	return Block{Kind: b.Kind, Inlines: append([]Inline(nil), b.Inlines...)}
}

// PlainText returns the block text with references collapsed to their targets.
func (b Block) PlainText() string {
	return Flatten(b.Inlines)
}

// InlineKind discriminates inline spans.
type InlineKind string

// Inline kinds.
const (
	InlineText      InlineKind = "text"
	InlineReference InlineKind = "ref"
)

// Inline is a text span or a requirement reference role.
type Inline struct {
	Kind InlineKind `json:"kind"`

	// Text is the literal text, or the explicit link text of a reference.
	Text string `json:"text,omitempty"`

	// Target is the referenced requirement identity or label.
	Target string `json:"target,omitempty"`
}

// Text builds a text inline.
func Text(s string) Inline {
	return Inline{Kind: InlineText, Text: s}
}

// Ref builds a reference inline.
func Ref(target, text string) Inline {
	return Inline{Kind: InlineReference, Target: target, Text: text}
}

// Flatten renders inlines as plain text. References render as their
// target identity.
func Flatten(inlines []Inline) string {
	var sb strings.Builder
	for _, in := range inlines {
		if in.Kind == InlineReference {
			sb.WriteString(in.Target)
			continue
		}
		sb.WriteString(in.Text)
	}
	return sb.String()
}
