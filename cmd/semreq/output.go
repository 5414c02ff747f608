package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/c360studio/semreq/builder"
	"github.com/c360studio/semreq/requirement"
)

var (
	colorAccent  = lipgloss.Color("#20B9B4")
	colorWarning = lipgloss.Color("#F4D03F")
	colorError   = lipgloss.Color("#E74C3C")
	colorMuted   = lipgloss.Color("#5C7A84")
)

// Styles provides pre-configured lipgloss styles
var Styles = struct {
	Header  lipgloss.Style
	Cell    lipgloss.Style
	Muted   lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Border  lipgloss.Style

	StatusOK      lipgloss.Style
	StatusWarning lipgloss.Style
	StatusError   lipgloss.Style
}{
	Header:  lipgloss.NewStyle().Bold(true).Foreground(colorAccent).Padding(0, 1),
	Cell:    lipgloss.NewStyle().Padding(0, 1),
	Muted:   lipgloss.NewStyle().Foreground(colorMuted),
	Warning: lipgloss.NewStyle().Foreground(colorWarning),
	Error:   lipgloss.NewStyle().Foreground(colorError),
	Border:  lipgloss.NewStyle().Foreground(colorMuted),

	StatusOK:      lipgloss.NewStyle().SetString("✓").Foreground(colorAccent),
	StatusWarning: lipgloss.NewStyle().SetString("⚠").Foreground(colorWarning),
	StatusError:   lipgloss.NewStyle().SetString("✗").Foreground(colorError),
}

const maxCellWidth = 48

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(Styles.Border).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return Styles.Header
			}
			return Styles.Cell
		})
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// requirementTable lists records with the given attribute columns.
func requirementTable(records []*requirement.Record, columns []string) string {
	headers := []string{"ID", "Title", "Document"}
	for _, c := range columns {
		if c == "" {
			continue
		}
		headers = append(headers, strings.ToUpper(c[:1])+c[1:])
	}
	t := newTable(headers...)
	for _, r := range records {
		title := r.Title
		if title == "" {
			title = r.Text()
		}
		row := []string{r.Name(), truncate(title, maxCellWidth), r.Document}
		for _, c := range columns {
			if c == "" {
				continue
			}
			v, _ := r.Value(c)
			row = append(row, truncate(v, maxCellWidth))
		}
		t.Row(row...)
	}
	return t.String()
}

// problem is one diagnostic reported by check.
type problem struct {
	Severity string
	Location string
	Message  string
}

func collectProblems(res *builder.Result) []problem {
	var out []problem
	for _, e := range res.Errors {
		out = append(out, problem{Severity: "error", Location: e.Path, Message: e.Err.Error()})
	}
	if res.Report == nil {
		return out
	}
	for _, ref := range res.Report.Unresolved {
		out = append(out, problem{
			Severity: "warning",
			Location: ref.Source.String(),
			Message:  "unresolved requirement reference " + ref.Target,
		})
	}
	for _, err := range res.Report.ListingErrors {
		out = append(out, problem{Severity: "error", Location: "", Message: err.Error()})
	}
	return out
}

func problemTable(problems []problem) string {
	t := newTable("", "Location", "Problem")
	t.StyleFunc(func(row, col int) lipgloss.Style {
		switch {
		case row == table.HeaderRow:
			return Styles.Header
		case col == 0 && problems[row].Severity == "error":
			return Styles.Cell.Foreground(colorError)
		case col == 0:
			return Styles.Cell.Foreground(colorWarning)
		}
		return Styles.Cell
	})
	for _, p := range problems {
		mark := Styles.StatusWarning.String()
		if p.Severity == "error" {
			mark = Styles.StatusError.String()
		}
		t.Row(mark, p.Location, p.Message)
	}
	return t.String()
}

func printBuildSummary(w io.Writer, res *builder.Result, outDir string) {
	fmt.Fprintf(w, "%s built %d documents (%d parsed, %d cached, %d unchanged): %d requirements, %d references",
		Styles.StatusOK.String(), res.Documents, res.Parsed, res.Cached, res.Skipped,
		res.Report.Requirements, res.Report.References)
	if len(res.Written) > 0 {
		fmt.Fprintf(w, ", %d files in %s", len(res.Written), filepath.Clean(outDir))
	}
	fmt.Fprintln(w)
	if n := len(res.Report.Unresolved); n > 0 {
		fmt.Fprintln(w, Styles.Warning.Render(fmt.Sprintf("%s %d unresolved references", Styles.StatusWarning.String(), n)))
	}
	printDocumentErrors(w, res)
}

func printDocumentErrors(w io.Writer, res *builder.Result) {
	if res == nil {
		return
	}
	for _, e := range res.Errors {
		fmt.Fprintln(w, Styles.Error.Render(fmt.Sprintf("%s %s", Styles.StatusError.String(), e.Error())))
	}
}
