package parser

import (
	"regexp"
	"strings"

	"github.com/c360studio/semreq/markup"
)

// reStructuredText patterns
var (
	// Section underlines: ===, ---, ~~~, ^^^, etc.
	rstSectionUnderline = regexp.MustCompile(`^(={3,}|-{3,}|~{3,}|\^{3,}|\+{3,}|#{3,}|\*{3,}|_{3,})$`)

	// Code blocks: .. code-block:: lang
	rstCodeBlockDirective = regexp.MustCompile(`^(?:code|code-block|sourcecode)$`)

	// Field list: :field-name: value
	rstFieldList = regexp.MustCompile(`^:([^:]+):(.*)$`)

	// Directive: .. directive-name:: argument
	rstDirective = regexp.MustCompile(`^\.\.\s+([A-Za-z0-9_-]+)::(.*)$`)
)

// Leading field list entries that configure the document's requirement
// declarations, e.g. ":req-prefix: SYS".
const rstDeclareField = "req-"

// RSTParser parses reStructuredText documents.
type RSTParser struct{}

// NewRSTParser creates a new RST parser.
func NewRSTParser() *RSTParser {
	return &RSTParser{}
}

// Parse parses an RST document into a markup unit.
func (p *RSTParser) Parse(filename string, content []byte) (*markup.Unit, error) {
	s := newRSTState(splitLines(content))
	s.unit.Source = filename
	s.unit.Document = DocumentName(filename)

	s.fieldListDeclare()
	for s.i < len(s.lines) {
		s.step()
	}
	return s.unit, nil
}

// CanParse returns true if this parser can handle the given MIME type.
func (p *RSTParser) CanParse(mimeType string) bool {
	switch mimeType {
	case "text/x-rst", "text/rst", "text/restructuredtext":
		return true
	default:
		return false
	}
}

// MimeType returns the primary MIME type for this parser.
func (p *RSTParser) MimeType() string {
	return "text/x-rst"
}

// rstState tracks the block scan of one document.
type rstState struct {
	lines            []string
	i                int
	underlineToLevel map[byte]int
	nextLevel        int
	unit             *markup.Unit
}

func newRSTState(lines []string) *rstState {
	return &rstState{
		lines:            lines,
		underlineToLevel: make(map[byte]int),
		nextLevel:        1,
		unit:             &markup.Unit{},
	}
}

func (s *rstState) add(n markup.Node) {
	if n.Kind == markup.KindHeading && s.unit.Title == "" {
		s.unit.Title = n.Text
	}
	s.unit.Nodes = append(s.unit.Nodes, n)
}

// fieldListDeclare turns a leading field list into a declare node. Only
// "req-" prefixed fields are kept; others are document metadata.
func (s *rstState) fieldListDeclare() {
	start := s.i
	for start < len(s.lines) && strings.TrimSpace(s.lines[start]) == "" {
		start++
	}
	opts := make(map[string]string)
	j := start
	for ; j < len(s.lines); j++ {
		m := rstFieldList.FindStringSubmatch(strings.TrimSpace(s.lines[j]))
		if m == nil || indentOf(s.lines[j]) > 0 {
			break
		}
		key := strings.ToLower(strings.TrimSpace(m[1]))
		if name, ok := strings.CutPrefix(key, rstDeclareField); ok {
			opts[name] = strings.TrimSpace(m[2])
		}
	}
	if j == start {
		return
	}
	s.i = j
	if len(opts) == 0 {
		return
	}
	s.add(markup.Node{
		Kind:      markup.KindDeclare,
		Line:      start + 1,
		Directive: &markup.Directive{Name: markup.DirectiveDeclare, Options: opts, Line: start + 1},
	})
}

func (s *rstState) step() {
	line := s.lines[s.i]
	trimmed := strings.TrimSpace(line)
	switch {
	case trimmed == "":
		s.i++
	case strings.HasPrefix(trimmed, ".."):
		s.explicitMarkup()
	default:
		if s.sectionTitle() {
			return
		}
		s.paragraph()
	}
}

// blockEnd returns the end of the block of lines indented deeper than indent
// starting at from. Trailing blank lines are not part of the block.
func (s *rstState) blockEnd(from, indent int) int {
	end := from
	for j := from; j < len(s.lines); j++ {
		l := s.lines[j]
		if strings.TrimSpace(l) == "" {
			continue
		}
		if indentOf(l) <= indent {
			break
		}
		end = j + 1
	}
	return end
}

// explicitMarkup handles directives and comments.
func (s *rstState) explicitMarkup() {
	line := s.lines[s.i]
	indent := indentOf(line)
	start := s.i
	end := s.blockEnd(start+1, indent)
	s.i = end

	m := rstDirective.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		// comment
		return
	}
	name, arg := m[1], strings.TrimSpace(m[2])
	body := s.lines[start+1 : end]

	if rstCodeBlockDirective.MatchString(name) {
		s.add(markup.Node{Kind: markup.KindLiteral, Line: start + 1, Text: literalText(body)})
		return
	}
	kind, ok := markup.DirectiveKind(name)
	if !ok {
		return
	}
	s.add(markup.Node{
		Kind:      kind,
		Line:      start + 1,
		Directive: parseDirectiveBody(name, arg, start+1, body, RSTInlines),
	})
}

// sectionTitle recognizes underlined and overlined section titles.
func (s *rstState) sectionTitle() bool {
	i := s.i
	if i+1 >= len(s.lines) {
		return false
	}
	title := strings.TrimSpace(s.lines[i])
	under := strings.TrimSpace(s.lines[i+1])
	skip := 2

	if rstSectionUnderline.MatchString(title) && i+2 < len(s.lines) {
		over := title
		title = strings.TrimSpace(s.lines[i+1])
		under = strings.TrimSpace(s.lines[i+2])
		if under != over {
			return false
		}
		skip = 3
	}
	if title == "" || !rstSectionUnderline.MatchString(under) || len(under) < len(title) {
		return false
	}

	level, exists := s.underlineToLevel[under[0]]
	if !exists {
		level = s.nextLevel
		s.underlineToLevel[under[0]] = level
		if s.nextLevel < 6 {
			s.nextLevel++
		}
	}
	s.add(markup.Node{Kind: markup.KindHeading, Line: i + 1, Level: level, Text: title})
	s.i += skip
	return true
}

// paragraph consumes lines up to the next blank line. A paragraph ending
// with "::" introduces the following indented block as a literal block.
func (s *rstState) paragraph() {
	start := s.i
	indent := indentOf(s.lines[start])
	var lines []string
	for s.i < len(s.lines) && strings.TrimSpace(s.lines[s.i]) != "" {
		lines = append(lines, s.lines[s.i])
		s.i++
	}

	last := strings.TrimSpace(lines[len(lines)-1])
	literal := strings.HasSuffix(last, "::")
	if literal {
		switch {
		case last == "::":
			lines = lines[:len(lines)-1]
		case strings.HasSuffix(last, " ::"):
			lines[len(lines)-1] = strings.TrimSuffix(last, " ::")
		default:
			lines[len(lines)-1] = strings.TrimSuffix(last, ":")
		}
	}
	if text := joinLines(lines); text != "" {
		s.add(markup.Node{Kind: markup.KindParagraph, Line: start + 1, Inlines: RSTInlines(text)})
	}
	if !literal {
		return
	}

	from := s.i
	for from < len(s.lines) && strings.TrimSpace(s.lines[from]) == "" {
		from++
	}
	end := s.blockEnd(from, indent)
	if end <= from {
		return
	}
	block := s.lines[from:end]
	s.add(markup.Node{
		Kind: markup.KindLiteral,
		Line: from + 1,
		Text: strings.Join(dedent(block, minIndent(block)), "\n"),
	})
	s.i = end
}

// parseDirectiveBody splits the lines following a directive marker into
// argument continuation, options and content.
func parseDirectiveBody(name, arg string, line int, body []string, inlines InlineParser) *markup.Directive {
	d := &markup.Directive{Name: name, Argument: arg, Options: make(map[string]string), Line: line}
	lines := dedent(body, minIndent(body))

	j := 0
	var argLines []string
	if arg != "" {
		argLines = append(argLines, arg)
	}
	for ; j < len(lines); j++ {
		t := strings.TrimSpace(lines[j])
		if t == "" || rstFieldList.MatchString(t) {
			break
		}
		argLines = append(argLines, t)
	}
	d.Argument = strings.Join(argLines, "\n")

	var key string
	for ; j < len(lines); j++ {
		l := lines[j]
		t := strings.TrimSpace(l)
		if t == "" {
			break
		}
		if m := rstFieldList.FindStringSubmatch(t); m != nil && indentOf(l) == 0 {
			key = strings.TrimSpace(m[1])
			d.Options[key] = strings.TrimSpace(m[2])
			continue
		}
		if key == "" {
			break
		}
		d.Options[key] = strings.TrimSpace(d.Options[key] + " " + t)
	}

	d.Content = contentBlocks(lines[j:], inlines)
	return d
}

// literalText returns the verbatim content of a code directive, without
// its options.
func literalText(body []string) string {
	lines := dedent(body, minIndent(body))
	j := 0
	for j < len(lines) && rstFieldList.MatchString(strings.TrimSpace(lines[j])) {
		j++
	}
	for j < len(lines) && strings.TrimSpace(lines[j]) == "" {
		j++
	}
	return strings.Join(lines[j:], "\n")
}

// minIndent returns the smallest indentation of the non-blank lines.
func minIndent(lines []string) int {
	n := -1
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		if in := indentOf(l); n < 0 || in < n {
			n = in
		}
	}
	if n < 0 {
		return 0
	}
	return n
}
