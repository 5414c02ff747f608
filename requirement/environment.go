// Package requirement implements the requirement registry and the
// cross-reference resolution engine.
//
// A build runs in two phases. In Phase 1 every document is handed to
// Extract, which registers the document's requirements, reference
// occurrences and listing queries. Once every document has been extracted,
// Finalize runs the global resolution pass, after which ResolveAll returns
// render-ready structures per document. Re-extracting a document purges
// its previous contributions first, so incremental rebuilds only touch the
// changed document.
package requirement

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/c360studio/semreq/filter"
	"github.com/c360studio/semreq/markup"
)

// Environment is the build-scoped owner of the registry, the tracker and
// the identifier allocator. It is safe for concurrent use; mutations are
// serialized.
type Environment struct {
	mu sync.RWMutex

	settings Settings
	validate *validator.Validate
	logger   *slog.Logger

	alloc    *Allocator
	registry *Registry
	tracker  *Tracker
	docs     map[string]*docState

	final *resolution
}

// New creates an environment. A nil logger uses slog.Default().
func New(settings Settings, logger *slog.Logger) (*Environment, error) {
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Environment{
		settings: settings,
		validate: validator.New(),
		logger:   logger,
		alloc:    NewAllocator(),
		registry: NewRegistry(),
		tracker:  NewTracker(),
		docs:     make(map[string]*docState),
	}, nil
}

// Settings returns the environment settings.
func (e *Environment) Settings() Settings {
	return e.settings
}

// Extract runs Phase 1 for one document. Prior contributions of the
// document are purged first. On error the document contributes nothing.
func (e *Environment) Extract(info DocumentInfo, unit *markup.Unit) (*Extraction, error) {
	if info.ID == "" {
		return nil, fmt.Errorf("extract: empty document identity")
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	e.purgeLocked(info.ID)
	e.final = nil

	x := newExtractor(e, info)
	if err := x.run(unit); err != nil {
		e.alloc.Reset(documentScopePrefix(info.ID))
		return nil, err
	}
	if err := e.registry.AddAll(x.out.Records); err != nil {
		e.alloc.Reset(documentScopePrefix(info.ID))
		line := 0
		var dup *DuplicateIdentityError
		if errors.As(err, &dup) {
			for _, r := range x.out.Records {
				if r.ID == dup.ID || r.Label == dup.ID {
					line = r.Line
					break
				}
			}
		}
		return nil, docError(info.ID, line, err)
	}
	for _, ref := range x.out.References {
		e.tracker.Record(ref)
	}

	e.docs[info.ID] = &docState{
		info:       info,
		title:      unit.Title,
		nodes:      x.nodes,
		extraction: x.out,
	}
	e.logger.Debug("Extracted document",
		"document", info.ID,
		"requirements", len(x.out.Records),
		"references", len(x.out.References),
		"listings", len(x.out.Listings))
	return x.out, nil
}

// Purge removes every contribution of doc. Purging an unknown document is
// a no-op.
func (e *Environment) Purge(doc string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.purgeLocked(doc)
}

func (e *Environment) purgeLocked(doc string) {
	records := e.registry.Purge(doc)
	refs := e.tracker.Purge(doc)
	e.alloc.Reset(documentScopePrefix(doc))
	_, known := e.docs[doc]
	delete(e.docs, doc)
	if known || records > 0 || refs > 0 {
		e.final = nil
		e.logger.Debug("Purged document", "document", doc, "requirements", records, "references", refs)
	}
}

// Documents returns the extracted document identities, sorted.
func (e *Environment) Documents() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	docs := make([]string, 0, len(e.docs))
	for d := range e.docs {
		docs = append(docs, d)
	}
	sort.Strings(docs)
	return docs
}

// Records returns every registered requirement in insertion order. After
// Finalize the records carry their display names. Returned records are
// never modified.
func (e *Environment) Records() []*Record {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.recordsLocked()
}

func (e *Environment) recordsLocked() []*Record {
	if e.final == nil {
		return e.registry.All()
	}
	out := make([]*Record, len(e.final.records))
	copy(out, e.final.records)
	return out
}

// References returns every recorded reference occurrence.
func (e *Environment) References() []*Reference {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tracker.All()
}

// Lookup resolves a target by identity, label or display name.
func (e *Environment) Lookup(target string) (*Record, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.final == nil {
		return e.registry.LookupTarget(target)
	}
	return e.lookup(e.final, target)
}

// Query filters and sorts the registered requirements.
func (e *Environment) Query(expr string, sortKeys []string) ([]*Record, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return filter.Evaluate(e.recordsLocked(), expr, sortKeys)
}

// Finalized reports whether Finalize ran since the last mutation.
func (e *Environment) Finalized() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.final != nil
}

// Report returns the report of the last Finalize, or nil.
func (e *Environment) Report() *Report {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.final == nil {
		return nil
	}
	return e.final.report
}
