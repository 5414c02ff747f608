package export

import (
	"fmt"

	"github.com/c360studio/semstreams/message"

	"github.com/c360studio/semreq/requirement"
	"github.com/c360studio/semreq/vocabulary/req"
)

// Entities converts a finalized environment into exportable entities: one
// per document followed by one per requirement it defines, in document
// order. Only resolved links become entity links.
func Entities(env *requirement.Environment) ([]Entity, error) {
	mentions := make(map[string][]string)
	seen := make(map[string]map[string]bool)
	for _, ref := range env.References() {
		rec, ok := env.Lookup(ref.Target)
		if !ok {
			continue
		}
		doc := ref.Source.Document
		if seen[doc] == nil {
			seen[doc] = make(map[string]bool)
		}
		if !seen[doc][rec.ID] {
			seen[doc][rec.ID] = true
			mentions[doc] = append(mentions[doc], rec.ID)
		}
	}

	var out []Entity
	for _, doc := range env.Documents() {
		resolved, err := env.ResolveAll(doc)
		if err != nil {
			return nil, fmt.Errorf("export %s: %w", doc, err)
		}
		out = append(out, documentEntity(resolved, mentions[doc]))
		for _, n := range resolved.Nodes {
			if n.Requirement != nil {
				out = append(out, RequirementEntity(n.Requirement))
			}
		}
	}
	return out, nil
}

func documentEntity(doc *requirement.ResolvedDocument, mentions []string) Entity {
	id := req.DocumentEntityID(doc.Document)
	ent := Entity{ID: id, EntityType: req.EntityTypeDocument}
	add := func(pred string, obj any) {
		ent.Triples = append(ent.Triples, message.Triple{Subject: id, Predicate: pred, Object: obj})
	}
	if doc.Title != "" {
		add(req.DocumentTitle, doc.Title)
	}
	if doc.Source != "" {
		add(req.DocumentSource, doc.Source)
	}
	for _, m := range mentions {
		add(req.DocumentReferences, req.RequirementEntityID(m))
	}
	return ent
}

// RequirementEntity converts a resolved requirement. Attributes follow the
// configured attribute order.
func RequirementEntity(rr *requirement.ResolvedRequirement) Entity {
	rec := rr.Record
	id := req.RequirementEntityID(rec.ID)
	ent := Entity{ID: id, EntityType: req.EntityTypeRequirement}
	add := func(pred string, obj any) {
		ent.Triples = append(ent.Triples, message.Triple{Subject: id, Predicate: pred, Object: obj})
	}

	add(req.RequirementID, rec.ID)
	if rec.Label != "" {
		add(req.RequirementLabel, rec.Label)
	}
	if rec.Title != "" {
		add(req.RequirementTitle, rec.Title)
	}
	if name := rec.Name(); name != rec.ID {
		add(req.RequirementDisplayName, name)
	}
	if text := rec.Text(); text != "" {
		add(req.RequirementText, text)
	}
	add(req.RequirementDocument, req.DocumentEntityID(rec.Document))
	add(req.RequirementAnchor, rec.Anchor)

	for _, a := range rr.Attributes {
		if a.Links == nil {
			add(req.AttributePredicate(a.Name), a.Value)
			continue
		}
		for _, l := range a.Links {
			if l.Resolved {
				add(req.RelationPredicate(a.Name), req.RequirementEntityID(l.Target))
			} else {
				add(req.AttributePredicate(a.Name), l.Text)
			}
		}
	}
	for _, rel := range rr.Relations {
		for _, l := range rel.Links {
			add(req.RelationPredicate(rel.Name), req.RequirementEntityID(l.Target))
		}
	}
	return ent
}
