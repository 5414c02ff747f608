package requirement

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/c360studio/semreq/filter"
	"github.com/c360studio/semreq/markup"
)

// BacklinkGlyph is the link text of a backlink to a reference occurrence.
const BacklinkGlyph = "❐"

// Location is a position in a source document.
type Location struct {
	Document string `json:"document"`
	Line     int    `json:"line,omitempty"`

	// Index is the position of the occurrence within its document.
	Index int `json:"index"`
}

func (l Location) String() string {
	if l.Line > 0 {
		return fmt.Sprintf("%s:%d", l.Document, l.Line)
	}
	return l.Document
}

// Record is a requirement registered by a document.
type Record struct {
	ID      string `json:"id"`
	LocalID string `json:"local_id,omitempty"`
	Label   string `json:"label,omitempty"`
	Title   string `json:"title,omitempty"`

	Body       []markup.Block    `json:"body,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`

	Document string `json:"document"`
	Anchor   string `json:"anchor"`
	Line     int    `json:"line,omitempty"`

	// DisplayName is set by Finalize from the display template.
	DisplayName string `json:"display_name,omitempty"`
}

// Value implements filter.Item. The built-in fields id, label, title, doc
// and text shadow attributes of the same name.
func (r *Record) Value(name string) (string, bool) {
	switch name {
	case "id":
		return r.ID, true
	case "label":
		return r.Label, r.Label != ""
	case "title":
		return r.Title, r.Title != ""
	case "doc":
		return r.Document, true
	case "text":
		return r.Text(), len(r.Body) > 0
	}
	v, ok := r.Attributes[name]
	return v, ok
}

// Values returns the comma-separated items of an attribute.
func (r *Record) Values(name string) []string {
	v, _ := r.Value(name)
	return splitValues(v)
}

// Name returns the display name, or the identity before Finalize.
func (r *Record) Name() string {
	if r.DisplayName != "" {
		return r.DisplayName
	}
	return r.ID
}

// Text returns the body (comments included) as plain text.
func (r *Record) Text() string {
	parts := make([]string, 0, len(r.Body))
	for _, b := range r.Body {
		parts = append(parts, b.PlainText())
	}
	return strings.Join(parts, "\n\n")
}

// IsTarget reports whether target names this record.
func (r *Record) IsTarget(target string) bool {
	return target != "" && (target == r.ID || target == r.Label || target == r.DisplayName)
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	out := *r
	out.Body = make([]markup.Block, len(r.Body))
	for i, b := range r.Body {
		out.Body[i] = b.Clone()
	}
	out.Attributes = make(map[string]string, len(r.Attributes))
	for k, v := range r.Attributes {
		out.Attributes[k] = v
	}
	return &out
}

// Reference is one occurrence of the reference role.
type Reference struct {
	Source Location `json:"source"`
	Target string   `json:"target"`

	// Text is the explicit link text, if any.
	Text string `json:"text,omitempty"`

	// Anchor makes the occurrence itself linkable. Assigned by the Tracker.
	Anchor string `json:"anchor"`
}

// ListingQuery is a deferred requirement table.
type ListingQuery struct {
	Document string `json:"document"`
	Line     int    `json:"line,omitempty"`
	Anchor   string `json:"anchor"`
	Caption  string `json:"caption,omitempty"`

	Filter  string           `json:"filter,omitempty"`
	Pattern string           `json:"pattern,omitempty"`
	Sort    []filter.SortKey `json:"sort,omitempty"`
	Fields  []string         `json:"fields"`
	Headers []string         `json:"headers"`
	Widths  []int            `json:"widths"`

	// Err is the definition-time error of the query. A failed query still
	// renders, as an error notice.
	Err error `json:"-"`

	expr    *filter.Expr
	pattern *regexp.Regexp
}

// Select evaluates the query against records.
func (q *ListingQuery) Select(records []*Record) []*Record {
	matched := make([]*Record, 0, len(records))
	for _, r := range records {
		if q.pattern != nil && !q.pattern.MatchString(r.ID) {
			continue
		}
		if q.expr.Match(r) {
			matched = append(matched, r)
		}
	}
	return filter.Sort(matched, q.Sort)
}

// Link is a navigable pointer computed during resolution.
type Link struct {
	// From is the document the link is rendered in.
	From     string `json:"from"`
	Document string `json:"document,omitempty"`
	Anchor   string `json:"anchor,omitempty"`
	Text     string `json:"text"`

	// Target is the raw target the link was resolved from.
	Target string `json:"target,omitempty"`

	// Resolved is false for dangling references, which render as Text only.
	Resolved bool `json:"resolved"`
}

// RelativeURI returns the URI of the link target relative to From. ext is
// the output file extension, e.g. ".html". Unresolved links return "".
func (l Link) RelativeURI(ext string) string {
	if !l.Resolved {
		return ""
	}
	if l.Document == l.From {
		return "#" + l.Anchor
	}
	return relativePath(path.Dir(l.From), l.Document) + ext + "#" + l.Anchor
}

// relativePath returns the slash path to target from the directory dir.
func relativePath(dir, target string) string {
	split := func(p string) []string {
		p = path.Clean(p)
		if p == "." || p == "" {
			return nil
		}
		return strings.Split(p, "/")
	}
	from, to := split(dir), split(target)
	i := 0
	for i < len(from) && i < len(to)-1 && from[i] == to[i] {
		i++
	}
	parts := make([]string, 0, len(from)-i+len(to)-i)
	for range from[i:] {
		parts = append(parts, "..")
	}
	parts = append(parts, to[i:]...)
	return strings.Join(parts, "/")
}

// anchorFor builds a record anchor from an identity. Characters outside
// [A-Za-z0-9-] are escaped so distinct identities never share an anchor.
func anchorFor(id string) string {
	var sb strings.Builder
	sb.WriteString("req-")
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-':
			sb.WriteByte(c)
		default:
			fmt.Fprintf(&sb, "_%02X", c)
		}
	}
	return sb.String()
}

func splitValues(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
