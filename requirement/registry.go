package requirement

// Registry is the build-wide store of requirement records. Identities and
// labels share one namespace: any clash is a duplicate.
//
// A Registry is not safe for concurrent mutation; the Environment
// serializes access.
type Registry struct {
	records []*Record
	byID    map[string]*Record
	names   map[string]*Record
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:  make(map[string]*Record),
		names: make(map[string]*Record),
	}
}

// Add inserts a record.
func (r *Registry) Add(rec *Record) error {
	if err := r.check(rec, nil); err != nil {
		return err
	}
	r.insert(rec)
	return nil
}

// AddAll inserts records atomically: if any record clashes with the
// registry or with another record of the batch, nothing is inserted.
func (r *Registry) AddAll(recs []*Record) error {
	batch := make(map[string]*Record, len(recs))
	for _, rec := range recs {
		if err := r.check(rec, batch); err != nil {
			return err
		}
		batch[rec.ID] = rec
		if rec.Label != "" {
			batch[rec.Label] = rec
		}
	}
	for _, rec := range recs {
		r.insert(rec)
	}
	return nil
}

func (r *Registry) check(rec *Record, batch map[string]*Record) error {
	keys := []string{rec.ID}
	if rec.Label != "" && rec.Label != rec.ID {
		keys = append(keys, rec.Label)
	}
	for _, k := range keys {
		existing, ok := r.names[k]
		if !ok {
			existing, ok = batch[k]
		}
		if ok {
			return &DuplicateIdentityError{ID: k, Existing: existing.Document, Incoming: rec.Document}
		}
	}
	return nil
}

func (r *Registry) insert(rec *Record) {
	r.records = append(r.records, rec)
	r.byID[rec.ID] = rec
	r.names[rec.ID] = rec
	if rec.Label != "" {
		r.names[rec.Label] = rec
	}
}

// Purge removes every record owned by doc and returns how many were removed.
func (r *Registry) Purge(doc string) int {
	kept := r.records[:0]
	removed := 0
	for _, rec := range r.records {
		if rec.Document != doc {
			kept = append(kept, rec)
			continue
		}
		removed++
		delete(r.byID, rec.ID)
		delete(r.names, rec.ID)
		if rec.Label != "" {
			delete(r.names, rec.Label)
		}
	}
	for i := len(kept); i < len(r.records); i++ {
		r.records[i] = nil
	}
	r.records = kept
	return removed
}

// Lookup returns the record with identity id.
func (r *Registry) Lookup(id string) (*Record, bool) {
	rec, ok := r.byID[id]
	return rec, ok
}

// LookupTarget resolves a reference target by identity, then label.
// Display names exist only after Finalize and are resolved there.
func (r *Registry) LookupTarget(target string) (*Record, bool) {
	rec, ok := r.names[target]
	return rec, ok
}

// Taken reports whether name is used as an identity or label.
func (r *Registry) Taken(name string) bool {
	_, ok := r.names[name]
	return ok
}

// All returns the records in insertion order.
func (r *Registry) All() []*Record {
	out := make([]*Record, len(r.records))
	copy(out, r.records)
	return out
}

// Len returns the number of records.
func (r *Registry) Len() int { return len(r.records) }
