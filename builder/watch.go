package builder

import (
	"context"
	"time"
)

// BuildFunc receives the outcome of every rebuild triggered by Watch.
type BuildFunc func(res *Result, err error)

// Watch rebuilds on source changes until ctx is cancelled. Build must have
// run first so the watcher knows the current content hashes. Changes that
// arrive together are rebuilt as one batch.
func (b *Builder) Watch(ctx context.Context, debounce time.Duration, onBuild BuildFunc) error {
	w, err := NewWatcher(WatchConfig{
		Debounce: debounce,
		Accept:   b.watches,
	}, b.tree.Root, b.logger)
	if err != nil {
		return err
	}
	for p, h := range b.Hashes() {
		w.SetHash(p, h)
	}
	for _, dep := range b.Dependencies() {
		if f, err := b.tree.Read(dep); err == nil {
			w.SetHash(dep, f.Hash)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := w.Start(ctx); err != nil {
		w.Stop()
		return err
	}
	defer w.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.Events():
			if !ok {
				return ctx.Err()
			}
			paths := []string{ev.Path}
			paths = append(paths, drain(w.Events())...)
			b.logger.Info("Rebuilding", "changed", paths)
			res, err := b.Rebuild(ctx, paths)
			if onBuild != nil {
				onBuild(res, err)
			}
		}
	}
}

// watches reports whether a root-relative path is a document or an
// imported file of the build.
func (b *Builder) watches(rel string) bool {
	if b.tree.Match(rel) {
		return true
	}
	for _, dep := range b.Dependencies() {
		if dep == rel {
			return true
		}
	}
	return false
}

// drain returns the events already queued on ch without blocking.
func drain(ch <-chan WatchEvent) []string {
	var out []string
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev.Path)
		default:
			return out
		}
	}
}
