package render

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"golang.org/x/net/html"

	"github.com/c360studio/semreq/requirement"
)

var excessiveLinesRe = regexp.MustCompile(`\n{4,}`)

// MarkdownRenderer renders GitHub-flavoured markdown. Documents are built as
// HTML and converted, so tables become pipe tables.
type MarkdownRenderer struct {
	converter *md.Converter
}

// NewMarkdownRenderer creates a markdown renderer.
func NewMarkdownRenderer() *MarkdownRenderer {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())
	return &MarkdownRenderer{converter: converter}
}

// Format returns "markdown".
func (r *MarkdownRenderer) Format() string { return "markdown" }

// Extension returns ".md".
func (r *MarkdownRenderer) Extension() string { return ".md" }

// Render writes doc as markdown.
func (r *MarkdownRenderer) Render(w io.Writer, doc *requirement.ResolvedDocument) error {
	var sb strings.Builder
	if err := html.Render(&sb, htmlArticle(doc, r.Extension())); err != nil {
		return fmt.Errorf("render %s: %w", doc.Document, err)
	}

	markdown, err := r.converter.ConvertString(sb.String())
	if err != nil {
		return fmt.Errorf("convert %s: %w", doc.Document, err)
	}
	_, err = io.WriteString(w, cleanMarkdown(markdown)+"\n")
	return err
}

// cleanMarkdown cleans up converted markdown.
func cleanMarkdown(content string) string {
	// Remove excessive blank lines (more than 2)
	content = excessiveLinesRe.ReplaceAllString(content, "\n\n\n")

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
