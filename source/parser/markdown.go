// Package parser turns source documents into markup units.
package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/c360studio/semreq/markup"
)

var (
	mdHeading = regexp.MustCompile(`^ {0,3}(#{1,6})\s+(.*?)(?:\s+#+)?\s*$`)

	// Opening fence: ``` or ~~~ (literal blocks and directives) or ::: (MyST colon fence).
	mdFence = regexp.MustCompile("^ {0,3}(`{3,}|~{3,}|:{3,})\\s*(.*)$")

	// Directive fence info string: {name} argument
	mdDirectiveInfo = regexp.MustCompile(`^\{([A-Za-z0-9_-]+)\}\s*(.*)$`)
)

// frontmatterDeclare is the frontmatter key holding req-declare options.
const frontmatterDeclare = "req-declare"

// MarkdownParser parses MyST-flavoured markdown with optional YAML frontmatter.
type MarkdownParser struct{}

// NewMarkdownParser creates a new markdown parser.
func NewMarkdownParser() *MarkdownParser {
	return &MarkdownParser{}
}

// Parse parses a markdown document into a markup unit.
func (p *MarkdownParser) Parse(filename string, content []byte) (*markup.Unit, error) {
	lines := splitLines(content)
	unit := &markup.Unit{Source: filename, Document: DocumentName(filename)}

	start, err := frontmatter(lines, unit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}

	s := &mdState{lines: lines, i: start, unit: unit}
	for s.i < len(s.lines) && s.err == nil {
		s.step()
	}
	if s.err != nil {
		return nil, fmt.Errorf("%s: %w", filename, s.err)
	}
	return unit, nil
}

// CanParse returns true if this parser can handle the given MIME type.
func (p *MarkdownParser) CanParse(mimeType string) bool {
	switch mimeType {
	case "text/markdown", "text/x-markdown", "text/plain":
		return true
	default:
		return false
	}
}

// MimeType returns the primary MIME type for this parser.
func (p *MarkdownParser) MimeType() string {
	return "text/markdown"
}

// frontmatter parses a leading YAML block delimited by "---" lines and
// returns the index of the first body line. A "req-declare" mapping becomes a
// declare node; "title" sets the unit title.
func frontmatter(lines []string, unit *markup.Unit) (int, error) {
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return 0, nil
	}
	end := -1
	for j := 1; j < len(lines); j++ {
		if strings.TrimSpace(lines[j]) == "---" {
			end = j
			break
		}
	}
	if end < 0 {
		// No closing delimiter: treat entire content as body
		return 0, nil
	}

	var fm map[string]any
	if err := yaml.Unmarshal([]byte(strings.Join(lines[1:end], "\n")), &fm); err != nil {
		return 0, fmt.Errorf("parse YAML frontmatter: %w", err)
	}
	if title, ok := fm["title"].(string); ok {
		unit.Title = title
	}
	if decl, ok := fm[frontmatterDeclare].(map[string]any); ok {
		unit.Nodes = append(unit.Nodes, markup.Node{
			Kind:      markup.KindDeclare,
			Line:      1,
			Directive: &markup.Directive{Name: markup.DirectiveDeclare, Options: optionStrings(decl), Line: 1},
		})
	}
	return end + 1, nil
}

// optionStrings flattens YAML option values. Lists join with ", ".
func optionStrings(m map[string]any) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		switch tv := v.(type) {
		case nil:
			out[k] = ""
		case []any:
			parts := make([]string, len(tv))
			for i, e := range tv {
				parts[i] = fmt.Sprint(e)
			}
			out[k] = strings.Join(parts, ", ")
		default:
			out[k] = fmt.Sprint(tv)
		}
	}
	return out
}

// mdState tracks the block scan of one document.
type mdState struct {
	lines []string
	i     int
	unit  *markup.Unit
	err   error
}

func (s *mdState) add(n markup.Node) {
	if n.Kind == markup.KindHeading && s.unit.Title == "" {
		s.unit.Title = n.Text
	}
	s.unit.Nodes = append(s.unit.Nodes, n)
}

func (s *mdState) step() {
	line := s.lines[s.i]
	switch {
	case strings.TrimSpace(line) == "":
		s.i++
	case mdFence.MatchString(line):
		s.fence()
	case mdHeading.MatchString(line):
		m := mdHeading.FindStringSubmatch(line)
		s.add(markup.Node{Kind: markup.KindHeading, Line: s.i + 1, Level: len(m[1]), Text: m[2]})
		s.i++
	default:
		s.paragraph()
	}
}

// fence consumes a fenced block up to its closing fence or the end of the
// document.
func (s *mdState) fence() {
	start := s.i
	m := mdFence.FindStringSubmatch(s.lines[start])
	marker, info := m[1], strings.TrimSpace(m[2])

	end := len(s.lines)
	for j := start + 1; j < len(s.lines); j++ {
		if closesFence(s.lines[j], marker) {
			end = j
			break
		}
	}
	body := s.lines[start+1 : end]
	s.i = end + 1

	if dm := mdDirectiveInfo.FindStringSubmatch(info); dm != nil {
		if kind, ok := markup.DirectiveKind(dm[1]); ok {
			d, err := mystDirective(dm[1], strings.TrimSpace(dm[2]), start+1, body)
			if err != nil {
				s.err = fmt.Errorf("line %d: %s: %w", start+1, dm[1], err)
				return
			}
			s.add(markup.Node{Kind: kind, Line: start + 1, Directive: d})
			return
		}
	}
	s.add(markup.Node{Kind: markup.KindLiteral, Line: start + 1, Text: strings.Join(body, "\n")})
}

func closesFence(line, marker string) bool {
	t := strings.TrimSpace(line)
	if len(t) < len(marker) || indentOf(line) > 3 {
		return false
	}
	return strings.Trim(t, marker[:1]) == ""
}

// mystDirective parses a directive body. Options are either a leading
// ":key: value" field list or a YAML block between "---" lines.
func mystDirective(name, arg string, line int, body []string) (*markup.Directive, error) {
	d := &markup.Directive{Name: name, Argument: arg, Options: make(map[string]string), Line: line}
	j := 0
	if len(body) > 0 && strings.TrimSpace(body[0]) == "---" {
		end := -1
		for k := 1; k < len(body); k++ {
			if strings.TrimSpace(body[k]) == "---" {
				end = k
				break
			}
		}
		if end < 0 {
			return nil, errors.New("unterminated option block")
		}
		var opts map[string]any
		if err := yaml.Unmarshal([]byte(strings.Join(body[1:end], "\n")), &opts); err != nil {
			return nil, err
		}
		d.Options = optionStrings(opts)
		j = end + 1
	} else {
		for ; j < len(body); j++ {
			m := rstFieldList.FindStringSubmatch(strings.TrimSpace(body[j]))
			if m == nil {
				break
			}
			d.Options[strings.TrimSpace(m[1])] = strings.TrimSpace(m[2])
		}
	}
	d.Content = contentBlocks(body[j:], MySTInlines)
	return d, nil
}

// paragraph consumes lines until a blank line, heading or fence.
func (s *mdState) paragraph() {
	start := s.i
	var lines []string
	for s.i < len(s.lines) {
		l := s.lines[s.i]
		if strings.TrimSpace(l) == "" || (s.i > start && (mdFence.MatchString(l) || mdHeading.MatchString(l))) {
			break
		}
		lines = append(lines, l)
		s.i++
	}
	s.add(markup.Node{Kind: markup.KindParagraph, Line: start + 1, Inlines: MySTInlines(joinLines(lines))})
}
