package requirement

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Pattern fields understood by ParsePattern. The counter field is "n", or
// empty as in "{:04d}".
var patternFields = map[string]bool{
	"n":      true,
	"prefix": true,
	"docid":  true,
	"doc":    true,
}

// Pattern formats allocated counters into identifiers, e.g. "REQ-{:04d}" or
// "{prefix}-{docid}-{n:03d}". Literal braces are written "{{" and "}}".
type Pattern struct {
	src   string
	parts []patternPart
}

type patternPart struct {
	literal string
	field   string // empty for literals
	width   int
	zero    bool
}

// ParsePattern parses an identifier pattern.
func ParsePattern(src string) (Pattern, error) {
	p := Pattern{src: src}
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			p.parts = append(p.parts, patternPart{literal: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case c == '{' && i+1 < len(src) && src[i+1] == '{':
			lit.WriteByte('{')
			i++
		case c == '}' && i+1 < len(src) && src[i+1] == '}':
			lit.WriteByte('}')
			i++
		case c == '{':
			end := strings.IndexByte(src[i:], '}')
			if end < 0 {
				return Pattern{}, fmt.Errorf("pattern %q: unclosed '{' at offset %d", src, i)
			}
			part, err := parsePlaceholder(src[i+1 : i+end])
			if err != nil {
				return Pattern{}, fmt.Errorf("pattern %q: %w", src, err)
			}
			flush()
			p.parts = append(p.parts, part)
			i += end
		case c == '}':
			return Pattern{}, fmt.Errorf("pattern %q: unmatched '}' at offset %d", src, i)
		default:
			lit.WriteByte(c)
		}
	}
	flush()

	if !p.hasCounter() {
		return Pattern{}, fmt.Errorf("pattern %q: missing counter placeholder ({n} or {:03d})", src)
	}
	return p, nil
}

// MustParsePattern is like ParsePattern but panics on error.
func MustParsePattern(src string) Pattern {
	p, err := ParsePattern(src)
	if err != nil {
		panic(err)
	}
	return p
}

func parsePlaceholder(body string) (patternPart, error) {
	name, verb, hasVerb := strings.Cut(body, ":")
	name = strings.TrimSpace(name)
	if name == "" {
		name = "n"
	}
	if !patternFields[name] {
		return patternPart{}, fmt.Errorf("unknown placeholder {%s}", body)
	}
	part := patternPart{field: name}
	if !hasVerb {
		return part, nil
	}
	if name != "n" {
		return patternPart{}, fmt.Errorf("formatting only allowed on the counter: {%s}", body)
	}
	if !strings.HasSuffix(verb, "d") {
		return patternPart{}, fmt.Errorf("unsupported format verb %q (want e.g. 03d)", verb)
	}
	verb = strings.TrimSuffix(verb, "d")
	if strings.HasPrefix(verb, "0") {
		part.zero = true
	}
	if verb != "" {
		w, err := strconv.Atoi(verb)
		if err != nil || w < 0 {
			return patternPart{}, fmt.Errorf("bad width in format verb %q", verb)
		}
		part.width = w
	}
	return part, nil
}

func (p Pattern) hasCounter() bool {
	for _, part := range p.parts {
		if part.field == "n" {
			return true
		}
	}
	return false
}

// IsZero reports whether p was never parsed.
func (p Pattern) IsZero() bool { return p.parts == nil }

// String returns the source text of the pattern.
func (p Pattern) String() string { return p.src }

// Format renders n and vars through the pattern. Missing vars render empty.
func (p Pattern) Format(n int, vars map[string]string) string {
	var sb strings.Builder
	for _, part := range p.parts {
		switch part.field {
		case "":
			sb.WriteString(part.literal)
		case "n":
			num := strconv.Itoa(n)
			if pad := part.width - len(num); pad > 0 {
				fill := " "
				if part.zero {
					fill = "0"
				}
				sb.WriteString(strings.Repeat(fill, pad))
			}
			sb.WriteString(num)
		default:
			sb.WriteString(vars[part.field])
		}
	}
	return sb.String()
}

// Allocator hands out monotonically increasing counters per scope.
// It is safe for concurrent use; two allocations in the same scope never
// return the same value until the scope is reset.
type Allocator struct {
	mu       sync.Mutex
	counters map[string]int
}

// NewAllocator creates an empty allocator.
func NewAllocator() *Allocator {
	return &Allocator{counters: make(map[string]int)}
}

// Allocate returns the next counter for scope, starting at 1.
func (a *Allocator) Allocate(scope string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.counters[scope]++
	return a.counters[scope]
}

// Reset drops every scope that starts with prefix.
func (a *Allocator) Reset(prefix string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for scope := range a.counters {
		if strings.HasPrefix(scope, prefix) {
			delete(a.counters, scope)
		}
	}
}

// Scope selects how allocation counters are partitioned.
type Scope string

// Allocation scopes.
const (
	// ScopeDocument keeps one counter per document and prefix. Counters are
	// reset when the document is purged, so re-extracting an unchanged
	// document reproduces the same identities.
	ScopeDocument Scope = "document"
	// ScopePrefix keeps one counter per prefix for the whole build.
	ScopePrefix Scope = "prefix"
	// ScopeGlobal keeps a single counter for the whole build.
	ScopeGlobal Scope = "global"
)

// Valid reports whether s is a known scope.
func (s Scope) Valid() bool {
	switch s {
	case ScopeDocument, ScopePrefix, ScopeGlobal:
		return true
	}
	return false
}

// key builds the allocator scope key. Document scopes are prefixed with the
// document identity so Reset(documentScopePrefix(doc)) clears them.
func (s Scope) key(doc, prefix string) string {
	switch s {
	case ScopeGlobal:
		return "global"
	case ScopePrefix:
		return "prefix\x00" + prefix
	default:
		return documentScopePrefix(doc) + prefix
	}
}

func documentScopePrefix(doc string) string {
	return "doc\x00" + doc + "\x00"
}
