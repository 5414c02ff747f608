// Package builder runs the two-phase requirement pipeline over a source
// tree: every document is parsed and extracted, the environment is
// finalized once, and each document is resolved and rendered.
package builder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/c360studio/semreq/config"
	"github.com/c360studio/semreq/export"
	"github.com/c360studio/semreq/graph"
	"github.com/c360studio/semreq/markup"
	"github.com/c360studio/semreq/metrics"
	"github.com/c360studio/semreq/render"
	"github.com/c360studio/semreq/requirement"
	"github.com/c360studio/semreq/source"
	"github.com/c360studio/semreq/source/parser"
	"github.com/c360studio/semreq/storage"
)

// UnitCache stores parsed units by document and content hash.
type UnitCache interface {
	Get(doc, hash string) (*markup.Unit, bool, error)
	Put(doc, hash string, unit *markup.Unit) error
	Delete(doc string) error
}

// RecordSyncer mirrors the registry into external storage.
type RecordSyncer interface {
	Sync(ctx context.Context, records []*requirement.Record, buildID string) (storage.SyncResult, error)
}

// Options configures a Builder. Only Config is required.
type Options struct {
	Config *config.Config

	// Root overrides Config.Source.Root.
	Root string

	// OutDir overrides Config.Output.Dir. Relative paths are resolved
	// against the source root.
	OutDir string

	// Formats overrides Config.Output.Formats. An empty non-nil slice
	// disables rendering.
	Formats []string

	Logger    *slog.Logger
	Parsers   *parser.Registry
	Renderers *render.Registry
	Cache     UnitCache
	Metrics   *metrics.Metrics
	Publisher graph.Publisher
	Store     RecordSyncer
}

// DocumentError is a Phase-1 failure confined to one document.
type DocumentError struct {
	Path string
	Err  error
}

func (e *DocumentError) Error() string {
	return e.Path + ": " + e.Err.Error()
}

func (e *DocumentError) Unwrap() error { return e.Err }

// Result summarizes one build.
type Result struct {
	BuildID  string        `json:"build_id"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`

	Documents int `json:"documents"`
	Parsed    int `json:"parsed"`
	Cached    int `json:"cached"`
	Skipped   int `json:"skipped"`
	Removed   int `json:"removed"`

	// Written lists the output files, slash-separated and relative to the
	// output directory.
	Written []string `json:"written,omitempty"`

	// Errors holds the documents that failed Phase 1. Their contributions
	// are absent from the build.
	Errors []*DocumentError `json:"-"`

	Report *requirement.Report `json:"report,omitempty"`

	Published int `json:"published,omitempty"`
}

// Err joins the document errors.
func (r *Result) Err() error {
	errs := make([]error, len(r.Errors))
	for i, e := range r.Errors {
		errs[i] = e
	}
	return errors.Join(errs...)
}

// OK reports whether every document was extracted and resolution
// produced no diagnostics.
func (r *Result) OK() bool {
	return len(r.Errors) == 0 && r.Report != nil && r.Report.OK()
}

// docEntry is the builder's view of one extracted document.
type docEntry struct {
	path string
	// hash is empty after a failed extraction.
	hash    string
	ordinal int
	deps    []string
}

// Builder owns one requirement environment and keeps it in step with the
// source tree. Build and Rebuild are serialized.
type Builder struct {
	mu sync.Mutex

	cfg       *config.Config
	tree      *source.Tree
	env       *requirement.Environment
	parsers   *parser.Registry
	renderers []render.Renderer
	outDir    string
	logger    *slog.Logger

	cache     UnitCache
	metrics   *metrics.Metrics
	publisher graph.Publisher
	store     RecordSyncer

	docs map[string]*docEntry // keyed by source path
}

// New creates a builder.
func New(opts Options) (*Builder, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, errors.New("builder: config is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	settings, err := cfg.RequirementSettings()
	if err != nil {
		return nil, err
	}
	env, err := requirement.New(settings, logger)
	if err != nil {
		return nil, err
	}

	root := opts.Root
	if root == "" {
		root = cfg.Source.Root
	}
	if root == "" {
		root = "."
	}
	tree, err := source.NewTree(root, cfg.Source.Include, cfg.Source.Exclude)
	if err != nil {
		return nil, err
	}

	outDir := opts.OutDir
	if outDir == "" {
		outDir = cfg.Output.Dir
	}
	if !filepath.IsAbs(outDir) {
		outDir = filepath.Join(tree.Root, outDir)
	}

	parsers := opts.Parsers
	if parsers == nil {
		parsers = parser.DefaultRegistry
	}
	registry := opts.Renderers
	if registry == nil {
		registry = render.NewRegistry()
	}
	formats := opts.Formats
	if formats == nil {
		formats = cfg.Output.Formats
	}
	var renderers []render.Renderer
	for _, f := range formats {
		r, err := registry.Get(f)
		if err != nil {
			return nil, err
		}
		renderers = append(renderers, r)
	}

	return &Builder{
		cfg:       cfg,
		tree:      tree,
		env:       env,
		parsers:   parsers,
		renderers: renderers,
		outDir:    outDir,
		logger:    logger,
		cache:     opts.Cache,
		metrics:   opts.Metrics,
		publisher: opts.Publisher,
		store:     opts.Store,
		docs:      make(map[string]*docEntry),
	}, nil
}

// Environment returns the environment the builder maintains.
func (b *Builder) Environment() *requirement.Environment {
	return b.env
}

// Tree returns the source tree.
func (b *Builder) Tree() *source.Tree {
	return b.tree
}

// OutDir returns the absolute output directory.
func (b *Builder) OutDir() string {
	return b.outDir
}

// Build extracts every document of the tree and resolves the build.
func (b *Builder) Build(ctx context.Context) (*Result, error) {
	return b.run(ctx, nil)
}

// Rebuild re-extracts the documents affected by the changed root-relative
// paths and resolves the build again. A path may be a document or a CSV
// file imported by documents; deleted documents are purged.
func (b *Builder) Rebuild(ctx context.Context, paths []string) (*Result, error) {
	changed := make(map[string]bool, len(paths))
	for _, p := range paths {
		changed[path.Clean(filepath.ToSlash(p))] = true
	}
	return b.run(ctx, changed)
}

// Hashes returns the content hash of every extracted document, keyed by
// source path.
func (b *Builder) Hashes() map[string]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]string, len(b.docs))
	for p, d := range b.docs {
		if d.hash != "" {
			out[p] = d.hash
		}
	}
	return out
}

// Dependencies returns every imported file, relative to the source root.
func (b *Builder) Dependencies() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, d := range b.docs {
		for _, dep := range d.deps {
			if !seen[dep] {
				seen[dep] = true
				out = append(out, dep)
			}
		}
	}
	sort.Strings(out)
	return out
}

// run performs a build. A nil changed set processes every document.
func (b *Builder) run(ctx context.Context, changed map[string]bool) (*Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	res := &Result{BuildID: uuid.NewString(), Started: time.Now()}
	err := b.runLocked(ctx, changed, res)
	res.Duration = time.Since(res.Started)

	var summary metrics.Summary
	if res.Report != nil {
		summary = metrics.Summary{
			Requirements:  res.Report.Requirements,
			References:    res.Report.References,
			Unresolved:    len(res.Report.Unresolved),
			ListingErrors: len(res.Report.ListingErrors),
		}
	}
	b.metrics.ObserveBuild(res.Duration, summary, err)

	if err != nil {
		b.logger.Error("Build failed", "build_id", res.BuildID, "error", err)
		return res, err
	}
	b.logger.Info("Build complete",
		"build_id", res.BuildID,
		"documents", res.Documents,
		"parsed", res.Parsed,
		"cached", res.Cached,
		"skipped", res.Skipped,
		"requirements", res.Report.Requirements,
		"unresolved", len(res.Report.Unresolved),
		"failed", len(res.Errors),
		"duration", res.Duration)
	return res, nil
}

func (b *Builder) runLocked(ctx context.Context, changed map[string]bool, res *Result) error {
	paths, err := b.tree.Discover()
	if err != nil {
		return fmt.Errorf("discover sources: %w", err)
	}
	res.Documents = len(paths)

	present := make(map[string]bool, len(paths))
	for _, p := range paths {
		present[p] = true
	}
	for p, d := range b.docs {
		if present[p] {
			continue
		}
		b.removeDocument(p, d)
		res.Removed++
	}

	// Phase 1
	var duplicates []error
	for i, p := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		ordinal := i + 1
		if !b.affected(p, ordinal, changed) {
			res.Skipped++
			continue
		}
		if err := b.extract(p, ordinal, res); err != nil {
			res.Errors = append(res.Errors, &DocumentError{Path: p, Err: err})
			b.metrics.IncrementDocument("failed")
			if errors.Is(err, requirement.ErrDuplicateIdentity) {
				duplicates = append(duplicates, err)
				continue
			}
			b.logger.Warn("Document skipped", "path", p, "error", err)
		}
	}
	if len(duplicates) > 0 {
		return fmt.Errorf("phase 1: %w", errors.Join(duplicates...))
	}

	// Phase 2
	report, err := b.env.Finalize(ctx)
	if err != nil {
		return err
	}
	res.Report = report
	for _, lerr := range report.ListingErrors {
		b.logger.Warn("Invalid requirement listing", "error", lerr)
	}

	if err := b.render(res); err != nil {
		return err
	}
	return b.publish(ctx, res)
}

// affected reports whether the document at p must be extracted again.
// Documents that failed last time are always retried.
func (b *Builder) affected(p string, ordinal int, changed map[string]bool) bool {
	d, ok := b.docs[p]
	if !ok || d.hash == "" || changed == nil || d.ordinal != ordinal || changed[p] {
		return true
	}
	for _, dep := range d.deps {
		if changed[dep] {
			return true
		}
	}
	return false
}

// extract parses one document, through the cache when configured, and
// hands it to the environment.
func (b *Builder) extract(p string, ordinal int, res *Result) error {
	f, err := b.tree.Read(p)
	if err != nil {
		delete(b.docs, p)
		b.env.Purge(parser.DocumentName(p))
		return fmt.Errorf("read: %w", err)
	}

	unit, cached := b.cached(f)
	if cached {
		res.Cached++
		b.metrics.IncrementDocument("cached")
	} else {
		unit, err = b.parsers.Parse(f.Path, f.Content)
		if err != nil {
			delete(b.docs, p)
			b.env.Purge(f.Document)
			return fmt.Errorf("parse: %w", err)
		}
		if b.cache != nil {
			if err := b.cache.Put(f.Document, f.Hash, unit); err != nil {
				b.logger.Warn("Cache write failed", "document", f.Document, "error", err)
			}
		}
		res.Parsed++
		b.metrics.IncrementDocument("parsed")
	}

	deps, importErr := parser.ExpandImports(unit, b.tree.FS())

	// Dependencies are tracked even on failure so that fixing the CSV file
	// triggers a rebuild.
	entry := &docEntry{path: p, hash: f.Hash, ordinal: ordinal, deps: deps}
	if importErr != nil {
		entry.hash = ""
		b.docs[p] = entry
		b.env.Purge(f.Document)
		return importErr
	}

	info := requirement.DocumentInfo{ID: f.Document, Ordinal: ordinal, Path: f.Path}
	if _, err := b.env.Extract(info, unit); err != nil {
		entry.hash = ""
		b.docs[p] = entry
		return err
	}
	b.docs[p] = entry
	b.logger.Debug("Extracted source", "path", p, "cached", cached, "imports", len(deps))
	return nil
}

func (b *Builder) cached(f *source.File) (*markup.Unit, bool) {
	if b.cache == nil {
		return nil, false
	}
	unit, ok, err := b.cache.Get(f.Document, f.Hash)
	if err != nil {
		b.logger.Warn("Cache read failed", "document", f.Document, "error", err)
		return nil, false
	}
	return unit, ok
}

func (b *Builder) removeDocument(p string, d *docEntry) {
	doc := parser.DocumentName(p)
	b.env.Purge(doc)
	delete(b.docs, p)
	if b.cache != nil {
		if err := b.cache.Delete(doc); err != nil {
			b.logger.Warn("Cache delete failed", "document", doc, "error", err)
		}
	}
	for _, r := range b.renderers {
		out := filepath.Join(b.outDir, filepath.FromSlash(doc)+r.Extension())
		if err := os.Remove(out); err != nil && !errors.Is(err, os.ErrNotExist) {
			b.logger.Warn("Failed to remove output", "path", out, "error", err)
		}
	}
	b.logger.Debug("Removed source", "path", p, "hash", d.hash)
}

// render writes every document in every configured format.
func (b *Builder) render(res *Result) error {
	if len(b.renderers) == 0 {
		return nil
	}
	for _, doc := range b.env.Documents() {
		resolved, err := b.env.ResolveAll(doc)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", doc, err)
		}
		for _, r := range b.renderers {
			rel := doc + r.Extension()
			if err := b.writeOutput(rel, r, resolved); err != nil {
				return err
			}
			res.Written = append(res.Written, rel)
		}
	}
	return nil
}

func (b *Builder) writeOutput(rel string, r render.Renderer, doc *requirement.ResolvedDocument) (err error) {
	out := filepath.Join(b.outDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create %s: %w", rel, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close %s: %w", rel, cerr)
		}
	}()
	w := bufio.NewWriter(f)
	if err := r.Render(w, doc); err != nil {
		return err
	}
	return w.Flush()
}

// publish mirrors the finalized registry into the store and the graph.
func (b *Builder) publish(ctx context.Context, res *Result) error {
	if b.store != nil {
		synced, err := b.store.Sync(ctx, b.env.Records(), res.BuildID)
		if err != nil {
			return fmt.Errorf("sync requirement store: %w", err)
		}
		b.logger.Debug("Synced requirement store", "stored", synced.Stored, "deleted", synced.Deleted)
	}
	if b.publisher == nil {
		return nil
	}
	entities, err := export.Entities(b.env)
	if err != nil {
		return fmt.Errorf("collect entities: %w", err)
	}
	n, err := graph.Publish(ctx, b.publisher, b.cfg.NATS.Subject, entities, b.logger)
	res.Published = n
	b.metrics.AddPublished(n)
	if err != nil {
		return fmt.Errorf("publish graph: %w", err)
	}
	return nil
}
