package requirement

import "fmt"

// Tracker records reference occurrences by document.
type Tracker struct {
	refs     []*Reference
	counters map[string]int
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{counters: make(map[string]int)}
}

// Record stores ref and assigns its anchor, unique within the document.
func (t *Tracker) Record(ref *Reference) string {
	doc := ref.Source.Document
	t.counters[doc]++
	ref.Anchor = fmt.Sprintf("ref-%05d", t.counters[doc])
	t.refs = append(t.refs, ref)
	return ref.Anchor
}

// Purge drops the occurrences of doc and resets its anchor counter.
func (t *Tracker) Purge(doc string) int {
	kept := t.refs[:0]
	removed := 0
	for _, ref := range t.refs {
		if ref.Source.Document == doc {
			removed++
			continue
		}
		kept = append(kept, ref)
	}
	for i := len(kept); i < len(t.refs); i++ {
		t.refs[i] = nil
	}
	t.refs = kept
	delete(t.counters, doc)
	return removed
}

// FindTargeting returns the occurrences that name rec.
func (t *Tracker) FindTargeting(rec *Record) []*Reference {
	var out []*Reference
	for _, ref := range t.refs {
		if rec.IsTarget(ref.Target) {
			out = append(out, ref)
		}
	}
	return out
}

// All returns every occurrence in record order.
func (t *Tracker) All() []*Reference {
	out := make([]*Reference, len(t.refs))
	copy(out, t.refs)
	return out
}

// Len returns the number of occurrences.
func (t *Tracker) Len() int { return len(t.refs) }
