// Package render writes resolved documents in the supported output formats.
package render

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/c360studio/semreq/requirement"
)

// ErrUnknownFormat is returned for output formats without a renderer.
var ErrUnknownFormat = errors.New("unknown output format")

// Renderer writes one resolved document.
type Renderer interface {
	// Format returns the format name, e.g. "html".
	Format() string

	// Extension returns the output file extension including the dot.
	Extension() string

	// Render writes doc to w.
	Render(w io.Writer, doc *requirement.ResolvedDocument) error
}

// Registry maps output formats to renderers.
type Registry struct {
	mu        sync.RWMutex
	renderers map[string]Renderer
}

// NewRegistry creates a registry with the html, latex and markdown renderers.
func NewRegistry() *Registry {
	r := &Registry{renderers: make(map[string]Renderer)}
	r.Register(NewHTMLRenderer())
	r.Register(NewLaTeXRenderer())
	r.Register(NewMarkdownRenderer())
	return r
}

// Register adds or replaces a renderer.
func (r *Registry) Register(rd Renderer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.renderers[rd.Format()] = rd
}

// Get returns the renderer for format.
func (r *Registry) Get(format string) (Renderer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rd, ok := r.renderers[strings.ToLower(format)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
	return rd, nil
}

// Formats returns the registered format names, sorted.
func (r *Registry) Formats() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.renderers))
	for f := range r.renderers {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// label turns an attribute or relation name into a display label.
func label(name string) string {
	if name == "" {
		return ""
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

// attributeText renders an attribute cell as "Label: value".
func attributeText(a requirement.ResolvedAttribute) string {
	return label(a.Name) + ": " + a.Value
}

// errorNotice is the text shown in place of a failed listing.
func errorNotice(err error) string {
	return "Invalid requirement listing: " + err.Error()
}

// splitColumns returns the id column width and the remaining widths of a
// requirement table. Fewer than two widths fall back to an even split.
func splitColumns(widths []int) (int, []int) {
	if len(widths) < 2 {
		return 20, []int{80}
	}
	return widths[0], widths[1:]
}
