package requirement

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// AttributeType selects how an attribute value is resolved.
type AttributeType string

// Attribute types.
const (
	// AttributeText values render verbatim.
	AttributeText AttributeType = "text"
	// AttributeReference values are comma-separated requirement targets
	// rendered as links.
	AttributeReference AttributeType = "reference"
)

// AttributeDef declares a requirement attribute.
type AttributeDef struct {
	Name string
	Type AttributeType
	// Validate is an optional validator tag, e.g. "oneof=high medium low".
	Validate string
}

// Relation declares a reverse relation: Name lists the requirements whose
// Attribute references the current one.
type Relation struct {
	Name      string
	Attribute string
}

// ListingDefaults are the columns of a listing that sets none.
type ListingDefaults struct {
	Fields  []string
	Headers []string
	Widths  []int
}

// Settings is the build-scoped configuration of an Environment.
type Settings struct {
	Prefix  string
	Pattern Pattern
	Scope   Scope
	// Display renders a requirement's display name, e.g. "{id}" or
	// "{id} ({priority})". Unknown fields render empty.
	Display string

	Attributes []AttributeDef
	Relations  []Relation
	Listing    ListingDefaults

	// RequirementWidths are the column widths of a rendered requirement.
	RequirementWidths []int
}

// Default values.
const (
	DefaultPrefix  = "REQ"
	DefaultPattern = "{prefix}-{docid}-{n:03d}"
	DefaultDisplay = "{id}"
)

// reserved are directive options and built-in fields that attributes and
// relations may not shadow.
var reserved = map[string]bool{
	"id": true, "label": true, "prefix": true, "csv-file": true,
	"title": true, "doc": true, "text": true, "references": true,
}

// DefaultSettings returns the stock attribute set and listing layout.
func DefaultSettings() Settings {
	return Settings{
		Prefix:  DefaultPrefix,
		Pattern: MustParsePattern(DefaultPattern),
		Scope:   ScopeDocument,
		Display: DefaultDisplay,
		Attributes: []AttributeDef{
			{Name: "priority", Type: AttributeText},
			{Name: "allocation", Type: AttributeText},
			{Name: "owner", Type: AttributeText},
			{Name: "parent", Type: AttributeReference},
			{Name: "version", Type: AttributeText},
			{Name: "comment", Type: AttributeText},
			{Name: "type", Type: AttributeText},
			{Name: "category", Type: AttributeText},
			{Name: "batch", Type: AttributeText},
		},
		Relations: []Relation{{Name: "children", Attribute: "parent"}},
		Listing: ListingDefaults{
			Fields:  []string{"id", "priority", "allocation", "text"},
			Headers: []string{"ID", "Priority", "Allocation", "Description"},
			Widths:  []int{15, 10, 15, 85},
		},
		RequirementWidths: []int{10, 20, 20, 20, 20},
	}
}

var attrName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

// Validate checks the settings for consistency.
func (s *Settings) Validate() error {
	var errs []error
	if s.Pattern.IsZero() {
		errs = append(errs, errors.New("identifier pattern is required"))
	}
	if !s.Scope.Valid() {
		errs = append(errs, fmt.Errorf("unknown identifier scope %q", s.Scope))
	}
	if _, err := parseDisplay(s.Display); err != nil {
		errs = append(errs, err)
	}

	v := validator.New()
	seen := make(map[string]bool)
	for _, a := range s.Attributes {
		switch {
		case !attrName.MatchString(a.Name):
			errs = append(errs, fmt.Errorf("attribute %q: invalid name", a.Name))
		case reserved[a.Name]:
			errs = append(errs, fmt.Errorf("attribute %q: name is reserved", a.Name))
		case seen[a.Name]:
			errs = append(errs, fmt.Errorf("attribute %q: declared twice", a.Name))
		}
		seen[a.Name] = true
		if a.Type != AttributeText && a.Type != AttributeReference {
			errs = append(errs, fmt.Errorf("attribute %q: unknown type %q", a.Name, a.Type))
		}
		if err := checkTag(v, a.Validate); err != nil {
			errs = append(errs, fmt.Errorf("attribute %q: %w", a.Name, err))
		}
	}

	for _, r := range s.Relations {
		switch {
		case !attrName.MatchString(r.Name):
			errs = append(errs, fmt.Errorf("relation %q: invalid name", r.Name))
		case reserved[r.Name] || seen[r.Name]:
			errs = append(errs, fmt.Errorf("relation %q: name clashes with an attribute", r.Name))
		}
		seen[r.Name] = true
		if def, ok := s.attribute(r.Attribute); !ok {
			errs = append(errs, fmt.Errorf("relation %q: unknown attribute %q", r.Name, r.Attribute))
		} else if def.Type != AttributeReference {
			errs = append(errs, fmt.Errorf("relation %q: attribute %q is not a reference", r.Name, r.Attribute))
		}
	}

	l := s.Listing
	if len(l.Fields) == 0 {
		errs = append(errs, errors.New("listing defaults: no fields"))
	}
	if len(l.Fields) != len(l.Headers) || len(l.Fields) != len(l.Widths) {
		errs = append(errs, fmt.Errorf("listing defaults: %w",
			&InconsistentListingColumnsError{Fields: len(l.Fields), Headers: len(l.Headers), Widths: len(l.Widths)}))
	}
	return errors.Join(errs...)
}

// checkTag reports whether tag is a usable validator tag. The validator
// panics on malformed tags.
func checkTag(v *validator.Validate, tag string) (err error) {
	if tag == "" {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("invalid validation tag %q: %v", tag, r)
		}
	}()
	_ = v.Var("", tag)
	return nil
}

func (s *Settings) attribute(name string) (AttributeDef, bool) {
	for _, a := range s.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return AttributeDef{}, false
}

func (s *Settings) relation(name string) (Relation, bool) {
	for _, r := range s.Relations {
		if r.Name == name {
			return r, true
		}
	}
	return Relation{}, false
}

var displayField = regexp.MustCompile(`\{([^{}]*)\}`)

// parseDisplay checks a display template and returns its field names.
func parseDisplay(tpl string) ([]string, error) {
	if strings.TrimSpace(tpl) == "" {
		return nil, errors.New("display template is empty")
	}
	var names []string
	for _, m := range displayField.FindAllStringSubmatch(tpl, -1) {
		name := strings.TrimSpace(m[1])
		if name == "" {
			return nil, fmt.Errorf("display template %q: empty field", tpl)
		}
		names = append(names, name)
	}
	return names, nil
}

// renderDisplay expands a display template for r.
func renderDisplay(tpl string, r *Record) string {
	out := displayField.ReplaceAllStringFunc(tpl, func(m string) string {
		v, _ := r.Value(strings.TrimSpace(m[1 : len(m)-1]))
		return v
	})
	return strings.TrimSpace(out)
}
