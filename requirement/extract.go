package requirement

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/c360studio/semreq/filter"
	"github.com/c360studio/semreq/markup"
)

// DocumentInfo identifies a document handed to Extract.
type DocumentInfo struct {
	// ID is the document identity, a slash path without extension.
	ID string
	// Ordinal is the 1-based position of the document in the build. It is
	// the default {docid} of allocated identities.
	Ordinal int
	// Path is the source file, for diagnostics.
	Path string
}

// Extraction is what one document contributed to the environment.
type Extraction struct {
	Document   string
	Records    []*Record
	References []*Reference
	Listings   []*ListingQuery
}

// docNode is a markup node paired with what extraction made of it.
type docNode struct {
	node    markup.Node
	record  *Record
	widths  []int
	listing *ListingQuery
	refs    []*Reference
}

type docState struct {
	info       DocumentInfo
	title      string
	nodes      []docNode
	extraction *Extraction
}

var (
	listingOptions = map[string]bool{
		"caption": true, "filter": true, "pattern": true, "sort": true,
		"fields": true, "headers": true, "widths": true,
	}
	declareOptions = map[string]bool{
		"prefix": true, "format": true, "docid": true, "widths": true,
	}
	requirementOptions = map[string]bool{
		"id": true, "label": true, "prefix": true,
	}

	// builtinFields are resolved by Record.Value ahead of attributes.
	builtinFields = map[string]bool{
		"id": true, "label": true, "title": true, "doc": true, "text": true,
	}
)

// extractor walks one document. Declarations change its state from their
// position to the end of the document.
type extractor struct {
	env  *Environment
	info DocumentInfo

	prefix  string
	pattern Pattern
	docid   string
	widths  []int

	allocated map[string]bool
	listings  int
	refs      int

	out   *Extraction
	nodes []docNode
	errs  []error
}

func newExtractor(env *Environment, info DocumentInfo) *extractor {
	docid := ""
	if info.Ordinal > 0 {
		docid = fmt.Sprintf("%03d", info.Ordinal)
	}
	return &extractor{
		env:       env,
		info:      info,
		prefix:    env.settings.Prefix,
		pattern:   env.settings.Pattern,
		docid:     docid,
		widths:    env.settings.RequirementWidths,
		allocated: make(map[string]bool),
		out:       &Extraction{Document: info.ID},
	}
}

func (x *extractor) run(unit *markup.Unit) error {
	for _, n := range unit.Nodes {
		switch n.Kind {
		case markup.KindRequirement:
			rec, err := x.requirement(n)
			if err != nil {
				x.fail(n, err)
				continue
			}
			x.out.Records = append(x.out.Records, rec)
			x.nodes = append(x.nodes, docNode{node: n, record: rec, widths: x.widths})
		case markup.KindListing:
			q := x.listing(n)
			x.out.Listings = append(x.out.Listings, q)
			x.nodes = append(x.nodes, docNode{node: n, listing: q})
		case markup.KindDeclare:
			if err := x.declare(n.Directive); err != nil {
				x.fail(n, err)
			}
		case markup.KindParagraph:
			x.nodes = append(x.nodes, docNode{node: n, refs: x.references(n)})
		default:
			x.nodes = append(x.nodes, docNode{node: n})
		}
	}
	return errors.Join(x.errs...)
}

func (x *extractor) fail(n markup.Node, err error) {
	x.errs = append(x.errs, docError(x.info.ID, n.Line, err))
}

func (x *extractor) references(n markup.Node) []*Reference {
	var refs []*Reference
	for _, in := range n.Inlines {
		if in.Kind != markup.InlineReference {
			continue
		}
		x.refs++
		ref := &Reference{
			Source: Location{Document: x.info.ID, Line: n.Line, Index: x.refs},
			Target: strings.TrimSpace(in.Target),
			Text:   in.Text,
		}
		refs = append(refs, ref)
		x.out.References = append(x.out.References, ref)
	}
	return refs
}

func (x *extractor) requirement(n markup.Node) (*Record, error) {
	d := n.Directive
	if d == nil {
		return nil, errors.New("requirement node without directive")
	}
	if _, ok := d.Options["csv-file"]; ok {
		return nil, ErrUnexpandedImport
	}
	if err := x.checkOptions(d, func(name string) bool {
		if requirementOptions[name] {
			return true
		}
		_, ok := x.env.settings.attribute(name)
		return ok
	}); err != nil {
		return nil, err
	}

	id, _ := d.Option("id")
	label, _ := d.Option("label")
	var title string
	if arg := strings.TrimSpace(d.Argument); arg != "" {
		if id != "" {
			title = arg
		} else {
			first, rest, _ := strings.Cut(arg, "\n")
			id = strings.TrimSpace(first)
			title = rest
		}
	}

	rec := &Record{
		ID:         id,
		LocalID:    id,
		Label:      label,
		Title:      strings.Join(strings.Fields(title), " "),
		Document:   x.info.ID,
		Line:       n.Line,
		Attributes: make(map[string]string),
		Body:       bodyBlocks(d.Content),
	}
	if rec.ID == "" {
		prefix := x.prefix
		if p, ok := d.Option("prefix"); ok && p != "" {
			prefix = p
		}
		rec.ID, rec.LocalID = x.allocate(prefix)
	}
	rec.Anchor = anchorFor(rec.ID)

	for _, def := range x.env.settings.Attributes {
		v, ok := d.Option(def.Name)
		if !ok || v == "" {
			continue
		}
		if def.Validate != "" {
			if err := x.env.validate.Var(v, def.Validate); err != nil {
				return nil, fmt.Errorf("%w: %s=%q does not satisfy %q", ErrInvalidAttribute, def.Name, v, def.Validate)
			}
		}
		rec.Attributes[def.Name] = v
	}
	return rec, nil
}

// allocate returns the next free identity for prefix and its local id.
func (x *extractor) allocate(prefix string) (string, string) {
	key := x.env.settings.Scope.key(x.info.ID, prefix)
	vars := map[string]string{"prefix": prefix, "docid": x.docid, "doc": x.info.ID}
	for {
		n := x.env.alloc.Allocate(key)
		id := x.pattern.Format(n, vars)
		if x.env.registry.Taken(id) || x.allocated[id] {
			continue
		}
		x.allocated[id] = true
		return id, fmt.Sprintf("%03d", n)
	}
}

// bodyBlocks copies directive content. References in a requirement body
// render as the plain target and are not recorded as occurrences.
func bodyBlocks(content []markup.Block) []markup.Block {
	out := make([]markup.Block, 0, len(content))
	for _, b := range content {
		blk := markup.Block{Kind: b.Kind, Inlines: make([]markup.Inline, 0, len(b.Inlines))}
		for _, in := range b.Inlines {
			if in.Kind == markup.InlineReference {
				in = markup.Text(in.Target)
			}
			blk.Inlines = append(blk.Inlines, in)
		}
		out = append(out, blk)
	}
	return out
}

func (x *extractor) listing(n markup.Node) *ListingQuery {
	x.listings++
	q := &ListingQuery{
		Document: x.info.ID,
		Line:     n.Line,
		Anchor:   fmt.Sprintf("list-%03d", x.listings),
	}
	if n.Directive == nil {
		q.Err = errors.New("listing node without directive")
		return q
	}
	q.Err = x.configureListing(q, n.Directive)
	return q
}

func (x *extractor) configureListing(q *ListingQuery, d *markup.Directive) error {
	if err := x.checkOptions(d, func(name string) bool { return listingOptions[name] }); err != nil {
		return err
	}
	q.Caption, _ = d.Option("caption")

	if v, ok := d.Option("filter"); ok {
		expr, err := filter.Compile(v)
		if err != nil {
			return err
		}
		q.Filter, q.expr = v, expr
		for _, name := range expr.Names() {
			if _, ok := x.env.settings.attribute(name); !ok && !builtinFields[name] {
				x.env.logger.Warn("Listing filter names an unknown attribute",
					"document", x.info.ID, "line", q.Line, "attribute", name)
			}
		}
	}
	if v, ok := d.Option("pattern"); ok && v != "" {
		re, err := regexp.Compile(v)
		if err != nil {
			return fmt.Errorf("invalid listing pattern %q: %w", v, err)
		}
		q.Pattern, q.pattern = v, re
	}
	if v, ok := d.Option("sort"); ok {
		q.Sort = filter.ParseSortKeys(v)
	}

	defaults := x.env.settings.Listing
	fieldsOpt, hasFields := d.Option("fields")
	headersOpt, hasHeaders := d.Option("headers")
	widthsOpt, hasWidths := d.Option("widths")

	q.Fields = defaults.Fields
	if hasFields {
		q.Fields = splitValues(fieldsOpt)
		if len(q.Fields) == 0 {
			return errors.New("listing fields option is empty")
		}
	}

	switch {
	case hasHeaders:
		q.Headers = splitValues(headersOpt)
	case hasFields:
		q.Headers = make([]string, len(q.Fields))
		for i, f := range q.Fields {
			q.Headers[i] = headerFor(f)
		}
	default:
		q.Headers = defaults.Headers
	}

	switch {
	case hasWidths:
		widths, err := parseWidths(widthsOpt)
		if err != nil {
			return err
		}
		q.Widths = widths
	case len(defaults.Widths) == len(q.Fields):
		q.Widths = defaults.Widths
	default:
		q.Widths = equalWidths(len(q.Fields))
	}

	if len(q.Fields) != len(q.Headers) || len(q.Fields) != len(q.Widths) {
		return &InconsistentListingColumnsError{Fields: len(q.Fields), Headers: len(q.Headers), Widths: len(q.Widths)}
	}
	return nil
}

func (x *extractor) declare(d *markup.Directive) error {
	if d == nil {
		return errors.New("declare node without directive")
	}
	if err := x.checkOptions(d, func(name string) bool { return declareOptions[name] }); err != nil {
		return err
	}
	if v, ok := d.Option("prefix"); ok && v != "" {
		x.prefix = v
	}
	if v, ok := d.Option("format"); ok && v != "" {
		p, err := ParsePattern(v)
		if err != nil {
			return err
		}
		x.pattern = p
	}
	if v, ok := d.Option("docid"); ok {
		x.docid = v
	}
	if v, ok := d.Option("widths"); ok {
		widths, err := parseWidths(v)
		if err != nil {
			return err
		}
		// two widths give the label column and the split of the rest
		if len(widths) == 2 {
			q := widths[1] / 4
			widths = []int{widths[0], q, q, q, q}
		}
		x.widths = widths
	}
	return nil
}

func (x *extractor) checkOptions(d *markup.Directive, allowed func(string) bool) error {
	names := make([]string, 0, len(d.Options))
	for name := range d.Options {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !allowed(name) {
			return fmt.Errorf("%w %q for %s", ErrUnknownOption, name, d.Name)
		}
	}
	return nil
}

var widthSplit = regexp.MustCompile(`[,\s]+`)

func parseWidths(s string) ([]int, error) {
	var widths []int
	for _, part := range widthSplit.Split(strings.TrimSpace(s), -1) {
		if part == "" {
			continue
		}
		w, err := strconv.Atoi(part)
		if err != nil || w <= 0 {
			return nil, fmt.Errorf("invalid width %q: must be a positive integer", part)
		}
		widths = append(widths, w)
	}
	if len(widths) == 0 {
		return nil, errors.New("widths option is empty")
	}
	return widths, nil
}

func equalWidths(n int) []int {
	w := 100 / n
	if w < 1 {
		w = 1
	}
	out := make([]int, n)
	for i := range out {
		out[i] = w
	}
	return out
}

func headerFor(field string) string {
	if field == "id" {
		return "ID"
	}
	words := strings.FieldsFunc(field, func(r rune) bool { return r == '-' || r == '_' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
