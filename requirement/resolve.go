package requirement

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/c360studio/semreq/markup"
)

// Report summarizes a Finalize run.
type Report struct {
	Documents    int `json:"documents"`
	Requirements int `json:"requirements"`
	References   int `json:"references"`
	Listings     int `json:"listings"`

	// Unresolved lists the occurrences whose target is not registered.
	// They render as plain text.
	Unresolved []Reference `json:"unresolved,omitempty"`

	// ListingErrors holds the per-query definition errors.
	ListingErrors []error `json:"-"`
}

// OK reports whether the build resolved without diagnostics.
func (r *Report) OK() bool {
	return len(r.Unresolved) == 0 && len(r.ListingErrors) == 0
}

// resolution is the frozen result of Finalize. Its records are clones of
// the registry records carrying display names; registry records are never
// written after insertion, so callers may read them without the lock.
type resolution struct {
	records   []*Record
	frozen    map[*Record]*Record
	byDisplay map[string]*Record

	// relations maps relation name to target identity to the records
	// referencing it, in registry order.
	relations map[string]map[string][]*Record
	backlinks map[string][]*Reference
	targets   map[*Reference]*Record
	tables    map[*ListingQuery]*Table
	report    *Report
}

// Finalize runs the global resolution pass. It must run after every
// document of the build was extracted and again after any later Extract or
// Purge.
func (e *Environment) Finalize(ctx context.Context) (*Report, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	registered := e.registry.All()
	res := &resolution{
		records:   make([]*Record, len(registered)),
		frozen:    make(map[*Record]*Record, len(registered)),
		byDisplay: make(map[string]*Record),
		relations: make(map[string]map[string][]*Record, len(e.settings.Relations)),
		backlinks: make(map[string][]*Reference),
		targets:   make(map[*Reference]*Record),
		tables:    make(map[*ListingQuery]*Table),
	}
	for i, r := range registered {
		c := r.Clone()
		c.DisplayName = renderDisplay(e.settings.Display, r)
		res.records[i] = c
		res.frozen[r] = c
		if _, ok := res.byDisplay[c.DisplayName]; !ok {
			res.byDisplay[c.DisplayName] = c
		}
	}
	records := res.records

	for _, rel := range e.settings.Relations {
		res.relations[rel.Name] = e.reverse(res, rel.Attribute)
	}
	for _, r := range records {
		if refs := e.tracker.FindTargeting(r); len(refs) > 0 {
			res.backlinks[r.ID] = refs
		}
	}

	report := &Report{
		Documents:    len(e.docs),
		Requirements: len(records),
		References:   e.tracker.Len(),
	}
	for _, ref := range e.tracker.All() {
		if rec, ok := e.lookup(res, ref.Target); ok {
			res.targets[ref] = rec
			continue
		}
		report.Unresolved = append(report.Unresolved, *ref)
		e.logger.Warn("Unresolved requirement reference", "target", ref.Target, "location", ref.Source.String())
	}

	var queries []*ListingQuery
	for _, doc := range e.orderedDocs() {
		queries = append(queries, doc.extraction.Listings...)
	}
	report.Listings = len(queries)

	tables := make([]*Table, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			tables[i] = e.materialize(res, q, records)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("finalize: %w", err)
	}
	for i, q := range queries {
		res.tables[q] = tables[i]
		if q.Err != nil {
			report.ListingErrors = append(report.ListingErrors, docError(q.Document, q.Line, q.Err))
		}
	}

	res.report = report
	e.final = res
	e.logger.Info("Resolved requirements",
		"documents", report.Documents,
		"requirements", report.Requirements,
		"references", report.References,
		"unresolved", len(report.Unresolved),
		"listings", report.Listings)
	return report, nil
}

// lookup resolves target against a resolution: identity and label through
// the registry, then display name.
func (e *Environment) lookup(res *resolution, target string) (*Record, bool) {
	if rec, ok := e.registry.LookupTarget(target); ok {
		return res.frozen[rec], true
	}
	rec, ok := res.byDisplay[target]
	return rec, ok
}

// reverse indexes records by the targets of their attr values. Self
// references are skipped.
func (e *Environment) reverse(res *resolution, attr string) map[string][]*Record {
	idx := make(map[string][]*Record)
	for _, rec := range res.records {
		seen := make(map[string]bool)
		for _, v := range rec.Values(attr) {
			target, ok := e.lookup(res, v)
			if !ok || target == rec || seen[target.ID] {
				continue
			}
			seen[target.ID] = true
			idx[target.ID] = append(idx[target.ID], rec)
		}
	}
	return idx
}

func (e *Environment) orderedDocs() []*docState {
	docs := make([]*docState, 0, len(e.docs))
	for _, d := range e.docs {
		docs = append(docs, d)
	}
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].info.Ordinal != docs[j].info.Ordinal {
			return docs[i].info.Ordinal < docs[j].info.Ordinal
		}
		return docs[i].info.ID < docs[j].info.ID
	})
	return docs
}

// CellKind discriminates listing cells.
type CellKind string

// Cell kinds.
const (
	CellText   CellKind = "text"
	CellLinks  CellKind = "links"
	CellBlocks CellKind = "blocks"
)

// Table is a materialized listing query.
type Table struct {
	Document string   `json:"document"`
	Anchor   string   `json:"anchor"`
	Caption  string   `json:"caption,omitempty"`
	Headers  []string `json:"headers"`
	Widths   []int    `json:"widths"`
	Rows     []Row    `json:"rows"`

	// Err is set when the query failed; Rows is then empty.
	Err error `json:"-"`
}

// Row is one requirement of a listing.
type Row struct {
	Record *Record `json:"-"`
	ID     string  `json:"id"`
	Cells  []Cell  `json:"cells"`
}

// Cell is one field of a row.
type Cell struct {
	Field  string         `json:"field"`
	Kind   CellKind       `json:"kind"`
	Text   string         `json:"text,omitempty"`
	Links  []Link         `json:"links,omitempty"`
	Blocks []markup.Block `json:"blocks,omitempty"`
}

func (e *Environment) materialize(res *resolution, q *ListingQuery, records []*Record) *Table {
	t := &Table{
		Document: q.Document,
		Anchor:   q.Anchor,
		Caption:  q.Caption,
		Headers:  q.Headers,
		Widths:   q.Widths,
		Err:      q.Err,
	}
	if q.Err != nil {
		return t
	}
	for _, rec := range q.Select(records) {
		row := Row{Record: rec, ID: rec.ID, Cells: make([]Cell, len(q.Fields))}
		for i, f := range q.Fields {
			row.Cells[i] = e.cell(res, q.Document, rec, f)
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func (e *Environment) cell(res *resolution, from string, rec *Record, field string) Cell {
	c := Cell{Field: field, Kind: CellText}
	switch field {
	case "id":
		c.Kind, c.Links = CellLinks, []Link{recordLink(from, rec)}
		return c
	case "title":
		c.Text = rec.Title
		return c
	case "text":
		c.Kind, c.Blocks = CellBlocks, rec.Body
		return c
	case "references":
		c.Kind, c.Links = CellLinks, backlinks(from, res.backlinks[rec.ID])
		return c
	}
	if _, ok := e.settings.relation(field); ok {
		c.Kind, c.Links = CellLinks, recordLinks(from, res.relations[field][rec.ID])
		return c
	}
	if def, ok := e.settings.attribute(field); ok && def.Type == AttributeReference {
		c.Kind, c.Links = CellLinks, e.targetLinks(res, from, rec.Values(field))
		return c
	}
	c.Text, _ = rec.Value(field)
	return c
}

func recordLink(from string, rec *Record) Link {
	return Link{
		From:     from,
		Document: rec.Document,
		Anchor:   rec.Anchor,
		Text:     rec.Name(),
		Target:   rec.ID,
		Resolved: true,
	}
}

func recordLinks(from string, recs []*Record) []Link {
	links := make([]Link, 0, len(recs))
	for _, r := range recs {
		links = append(links, recordLink(from, r))
	}
	return links
}

func backlinks(from string, refs []*Reference) []Link {
	links := make([]Link, 0, len(refs))
	for _, ref := range refs {
		links = append(links, Link{
			From:     from,
			Document: ref.Source.Document,
			Anchor:   ref.Anchor,
			Text:     BacklinkGlyph,
			Target:   ref.Target,
			Resolved: true,
		})
	}
	return links
}

// targetLinks resolves raw targets. Unknown targets degrade to text links.
func (e *Environment) targetLinks(res *resolution, from string, targets []string) []Link {
	links := make([]Link, 0, len(targets))
	for _, t := range targets {
		if rec, ok := e.lookup(res, t); ok {
			links = append(links, recordLink(from, rec))
			continue
		}
		links = append(links, Link{From: from, Text: t, Target: t})
	}
	return links
}

// ResolvedDocument is a document ready for rendering.
type ResolvedDocument struct {
	Document string         `json:"document"`
	Source   string         `json:"source,omitempty"`
	Title    string         `json:"title,omitempty"`
	Nodes    []ResolvedNode `json:"nodes"`
}

// ResolvedNode is a document node with its links attached. Declarations
// do not appear.
type ResolvedNode struct {
	Kind        markup.Kind          `json:"kind"`
	Line        int                  `json:"line"`
	Level       int                  `json:"level,omitempty"`
	Text        string               `json:"text,omitempty"`
	Inlines     []ResolvedInline     `json:"inlines,omitempty"`
	Requirement *ResolvedRequirement `json:"requirement,omitempty"`
	Listing     *Table               `json:"listing,omitempty"`
}

// ResolvedInline is a text span, or a reference occurrence with its link.
type ResolvedInline struct {
	Text string `json:"text"`
	// Anchor is set on reference occurrences.
	Anchor string `json:"anchor,omitempty"`
	Link   *Link  `json:"link,omitempty"`
}

// ResolvedRequirement is a requirement ready for rendering.
type ResolvedRequirement struct {
	Record     *Record             `json:"record"`
	Widths     []int               `json:"widths"`
	Attributes []ResolvedAttribute `json:"attributes,omitempty"`
	Relations  []ResolvedRelation  `json:"relations,omitempty"`
	Backlinks  []Link              `json:"backlinks,omitempty"`
}

// ResolvedAttribute is a set attribute. Links is set for reference types.
type ResolvedAttribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Links []Link `json:"links,omitempty"`
}

// ResolvedRelation lists the requirements related through a reverse relation.
type ResolvedRelation struct {
	Name  string `json:"name"`
	Links []Link `json:"links"`
}

// ResolveAll returns the resolved nodes of doc. Links are relative to doc.
func (e *Environment) ResolveAll(doc string) (*ResolvedDocument, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.final == nil {
		return nil, ErrNotFinalized
	}
	state, ok := e.docs[doc]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDocument, doc)
	}

	out := &ResolvedDocument{
		Document: doc,
		Source:   state.info.Path,
		Title:    state.title,
		Nodes:    make([]ResolvedNode, 0, len(state.nodes)),
	}
	for _, dn := range state.nodes {
		n := ResolvedNode{Kind: dn.node.Kind, Line: dn.node.Line, Level: dn.node.Level, Text: dn.node.Text}
		switch {
		case dn.record != nil:
			n.Requirement = e.resolveRequirement(e.final.frozen[dn.record], dn.widths)
		case dn.listing != nil:
			n.Listing = e.final.tables[dn.listing]
		case dn.node.Kind == markup.KindParagraph:
			n.Inlines = e.resolveInlines(doc, dn.node.Inlines, dn.refs)
		}
		out.Nodes = append(out.Nodes, n)
	}
	return out, nil
}

func (e *Environment) resolveInlines(doc string, inlines []markup.Inline, refs []*Reference) []ResolvedInline {
	out := make([]ResolvedInline, 0, len(inlines))
	next := 0
	for _, in := range inlines {
		if in.Kind != markup.InlineReference {
			out = append(out, ResolvedInline{Text: in.Text})
			continue
		}
		ref := refs[next]
		next++
		ri := ResolvedInline{Anchor: ref.Anchor}
		if rec, ok := e.final.targets[ref]; ok {
			link := recordLink(doc, rec)
			if ref.Text != "" {
				link.Text = ref.Text
			}
			ri.Text, ri.Link = link.Text, &link
		} else {
			ri.Text = ref.Target
		}
		out = append(out, ri)
	}
	return out
}

func (e *Environment) resolveRequirement(rec *Record, widths []int) *ResolvedRequirement {
	doc := rec.Document
	rr := &ResolvedRequirement{
		Record:    rec,
		Widths:    widths,
		Backlinks: backlinks(doc, e.final.backlinks[rec.ID]),
	}
	for _, def := range e.settings.Attributes {
		v, ok := rec.Attributes[def.Name]
		if !ok {
			continue
		}
		attr := ResolvedAttribute{Name: def.Name, Value: v}
		if def.Type == AttributeReference {
			attr.Links = e.targetLinks(e.final, doc, splitValues(v))
		}
		rr.Attributes = append(rr.Attributes, attr)
	}
	for _, rel := range e.settings.Relations {
		if related := e.final.relations[rel.Name][rec.ID]; len(related) > 0 {
			rr.Relations = append(rr.Relations, ResolvedRelation{Name: rel.Name, Links: recordLinks(doc, related)})
		}
	}
	return rr
}
