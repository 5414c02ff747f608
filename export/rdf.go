// Package export serializes the requirement traceability graph as RDF with
// optional BFO/CCO/PROV-O type alignment.
package export

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/c360studio/semstreams/message"

	"github.com/c360studio/semreq/vocabulary/req"
)

const (
	rdfType      = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"
	xsdNamespace = "http://www.w3.org/2001/XMLSchema#"
)

// Entity represents an exportable entity with its type and triples.
type Entity struct {
	ID         string
	EntityType req.EntityType
	Triples    []message.Triple
}

// RDFExporter exports entities to RDF with configurable ontology profiles.
type RDFExporter struct {
	types    *TypeAsserter
	entities []Entity
	prefixes map[string]string
}

// NewRDFExporter creates a new RDF exporter with the specified profile.
func NewRDFExporter(profile Profile) *RDFExporter {
	return &RDFExporter{
		types:    NewTypeAsserter(profile),
		prefixes: defaultPrefixes(),
	}
}

func defaultPrefixes() map[string]string {
	return map[string]string{
		"rdf":    "http://www.w3.org/1999/02/22-rdf-syntax-ns#",
		"rdfs":   "http://www.w3.org/2000/01/rdf-schema#",
		"xsd":    xsdNamespace,
		"dc":     "http://purl.org/dc/terms/",
		"skos":   "http://www.w3.org/2004/02/skos/core#",
		"prov":   "http://www.w3.org/ns/prov#",
		"bfo":    "http://purl.obolibrary.org/obo/",
		"cco":    "http://www.ontologyrepository.com/CommonCoreOntologies/",
		"semreq": req.Namespace,
		"entity": req.EntityNamespace,
	}
}

// AddEntity adds an entity to be exported.
func (e *RDFExporter) AddEntity(entity Entity) {
	e.entities = append(e.entities, entity)
}

// AddEntities adds entities in order.
func (e *RDFExporter) AddEntities(entities []Entity) {
	e.entities = append(e.entities, entities...)
}

// Len returns the number of entities added.
func (e *RDFExporter) Len() int { return len(e.entities) }

// Export serializes all entities to w in the specified format.
func (e *RDFExporter) Export(w io.Writer, format Format) error {
	bw := bufio.NewWriter(w)
	var err error
	switch format {
	case FormatTurtle:
		err = e.writeTurtle(bw)
	case FormatNTriples:
		err = e.writeNTriples(bw)
	case FormatJSONLD:
		err = e.writeJSONLD(bw)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
	if err != nil {
		return fmt.Errorf("export %s: %w", format, err)
	}
	return bw.Flush()
}

// ExportString is Export into a string.
func (e *RDFExporter) ExportString(format Format) (string, error) {
	var sb strings.Builder
	if err := e.Export(&sb, format); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (e *RDFExporter) sortedPrefixes() []string {
	keys := make([]string, 0, len(e.prefixes))
	for k := range e.prefixes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (e *RDFExporter) writeTurtle(w *bufio.Writer) error {
	for _, prefix := range e.sortedPrefixes() {
		fmt.Fprintf(w, "@prefix %s: <%s> .\n", prefix, e.prefixes[prefix])
	}
	w.WriteString("\n")

	for _, entity := range e.entities {
		fmt.Fprintf(w, "<%s>\n", req.EntityIRI(entity.ID))

		types := e.types.GetTypeIRIs(entity.EntityType)
		for i, typeIRI := range types {
			fmt.Fprintf(w, "    a <%s>", typeIRI)
			w.WriteString(terminator(i < len(types)-1 || len(entity.Triples) > 0))
		}
		for i, triple := range entity.Triples {
			fmt.Fprintf(w, "    <%s> %s", req.PredicateIRI(triple.Predicate), formatObject(triple.Object))
			w.WriteString(terminator(i < len(entity.Triples)-1))
		}
		if _, err := w.WriteString("\n"); err != nil {
			return err
		}
	}
	return nil
}

func terminator(more bool) string {
	if more {
		return " ;\n"
	}
	return " .\n"
}

func (e *RDFExporter) writeNTriples(w *bufio.Writer) error {
	for _, entity := range e.entities {
		iri := req.EntityIRI(entity.ID)
		for _, typeIRI := range e.types.GetTypeIRIs(entity.EntityType) {
			fmt.Fprintf(w, "<%s> <%s> <%s> .\n", iri, rdfType, typeIRI)
		}
		for _, triple := range entity.Triples {
			if _, err := fmt.Fprintf(w, "<%s> <%s> %s .\n", iri, req.PredicateIRI(triple.Predicate), formatObjectNTriples(triple.Object)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *RDFExporter) writeJSONLD(w *bufio.Writer) error {
	doc := JSONLDDocument{
		Context: make(map[string]any, len(e.prefixes)),
		Graph:   make([]JSONLDNode, 0, len(e.entities)),
	}
	for k, v := range e.prefixes {
		doc.Context[k] = v
	}
	for _, entity := range e.entities {
		node := JSONLDNode{
			ID:         req.EntityIRI(entity.ID),
			Type:       e.types.GetTypeIRIs(entity.EntityType),
			Properties: make(map[string]any),
		}
		for _, triple := range entity.Triples {
			key := req.PredicateIRI(triple.Predicate)
			val := formatObjectJSONLD(triple.Object)
			switch prev := node.Properties[key].(type) {
			case nil:
				node.Properties[key] = val
			case []any:
				node.Properties[key] = append(prev, val)
			default:
				node.Properties[key] = []any{prev, val}
			}
		}
		doc.Graph = append(doc.Graph, node)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(doc)
}

func isIRI(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// formatObject formats an object value for Turtle output.
func formatObject(obj any) string {
	switch v := obj.(type) {
	case string:
		if isIRI(v) {
			return fmt.Sprintf("<%s>", v)
		}
		if req.IsEntityID(v) {
			return fmt.Sprintf("<%s>", req.EntityIRI(v))
		}
		if _, err := time.Parse(time.RFC3339, v); err == nil {
			return fmt.Sprintf("\"%s\"^^xsd:dateTime", v)
		}
		return fmt.Sprintf("\"%s\"", escapeString(v))
	case int, int32, int64:
		return fmt.Sprintf("\"%d\"^^xsd:integer", v)
	case float32, float64:
		return fmt.Sprintf("\"%f\"^^xsd:decimal", v)
	case bool:
		return fmt.Sprintf("\"%t\"^^xsd:boolean", v)
	default:
		return fmt.Sprintf("\"%s\"", escapeString(fmt.Sprint(v)))
	}
}

// formatObjectNTriples formats an object value for N-Triples output.
func formatObjectNTriples(obj any) string {
	switch v := obj.(type) {
	case string:
		if isIRI(v) {
			return fmt.Sprintf("<%s>", v)
		}
		if req.IsEntityID(v) {
			return fmt.Sprintf("<%s>", req.EntityIRI(v))
		}
		if _, err := time.Parse(time.RFC3339, v); err == nil {
			return fmt.Sprintf("\"%s\"^^<%sdateTime>", v, xsdNamespace)
		}
		return fmt.Sprintf("\"%s\"", escapeString(v))
	case int, int32, int64:
		return fmt.Sprintf("\"%d\"^^<%sinteger>", v, xsdNamespace)
	case float32, float64:
		return fmt.Sprintf("\"%f\"^^<%sdecimal>", v, xsdNamespace)
	case bool:
		return fmt.Sprintf("\"%t\"^^<%sboolean>", v, xsdNamespace)
	default:
		return fmt.Sprintf("\"%s\"", escapeString(fmt.Sprint(v)))
	}
}

// formatObjectJSONLD returns the JSON-LD value of an object.
func formatObjectJSONLD(obj any) any {
	switch v := obj.(type) {
	case string:
		if isIRI(v) {
			return map[string]string{"@id": v}
		}
		if req.IsEntityID(v) {
			return map[string]string{"@id": req.EntityIRI(v)}
		}
		if _, err := time.Parse(time.RFC3339, v); err == nil {
			return map[string]string{"@value": v, "@type": "xsd:dateTime"}
		}
		return v
	case int, int32, int64, float32, float64, bool:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// escapeString escapes special characters in strings for RDF serialization.
func escapeString(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "\\r")
	s = strings.ReplaceAll(s, "\t", "\\t")
	return s
}
