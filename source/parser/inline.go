package parser

import (
	"regexp"
	"strings"

	"github.com/c360studio/semreq/markup"
)

// InlineParser splits paragraph text into text spans and reference roles.
type InlineParser func(text string) []markup.Inline

var (
	// :req:`TARGET` or :req:`text <TARGET>`
	rstRole = regexp.MustCompile(":" + regexp.QuoteMeta(markup.RoleReference) + ":`([^`]+)`")

	// {req}`TARGET` or {req}`text <TARGET>`
	mystRole = regexp.MustCompile(`\{` + regexp.QuoteMeta(markup.RoleReference) + "\\}`([^`]+)`")

	// explicit title form: "text <target>"
	roleTitle = regexp.MustCompile(`^(.*?)\s*<([^<>]+)>$`)
)

// RSTInlines parses reStructuredText role syntax.
func RSTInlines(text string) []markup.Inline {
	return parseRoles(rstRole, text)
}

// MySTInlines parses MyST role syntax.
func MySTInlines(text string) []markup.Inline {
	return parseRoles(mystRole, text)
}

func parseRoles(re *regexp.Regexp, text string) []markup.Inline {
	var out []markup.Inline
	last := 0
	for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
		if m[0] > last {
			out = append(out, markup.Text(text[last:m[0]]))
		}
		out = append(out, roleInline(text[m[2]:m[3]]))
		last = m[1]
	}
	if last < len(text) {
		out = append(out, markup.Text(text[last:]))
	}
	return out
}

func roleInline(body string) markup.Inline {
	body = strings.TrimSpace(body)
	if m := roleTitle.FindStringSubmatch(body); m != nil && strings.TrimSpace(m[1]) != "" {
		return markup.Ref(strings.TrimSpace(m[2]), strings.TrimSpace(m[1]))
	}
	return markup.Ref(body, "")
}

// joinLines collapses paragraph lines into a single line of text.
func joinLines(lines []string) string {
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		if t := strings.TrimSpace(l); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// contentBlocks splits dedented directive content into blocks. A line holding
// only "|" starts the comment section; every following block is a comment.
func contentBlocks(lines []string, inlines InlineParser) []markup.Block {
	var (
		blocks []markup.Block
		para   []string
		kind   = markup.BlockParagraph
		flush  = func() {
			if text := joinLines(para); text != "" {
				blocks = append(blocks, markup.Block{Kind: kind, Inlines: inlines(text)})
			}
			para = para[:0]
		}
	)
	for _, l := range lines {
		t := strings.TrimSpace(l)
		switch {
		case t == "|":
			flush()
			kind = markup.BlockComment
		case t == "":
			flush()
		default:
			para = append(para, l)
		}
	}
	flush()
	return blocks
}

// indentOf returns the number of leading blanks of a line.
func indentOf(line string) int {
	return len(line) - len(strings.TrimLeft(line, " \t"))
}

// dedent strips n leading blanks from every non-blank line.
func dedent(lines []string, n int) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		if indentOf(l) >= n {
			out[i] = l[n:]
		} else {
			out[i] = strings.TrimLeft(l, " \t")
		}
	}
	return out
}

// splitLines splits content into lines without line terminators.
func splitLines(content []byte) []string {
	s := strings.ReplaceAll(string(content), "\r\n", "\n")
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
