package parser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"slices"
	"strings"

	"github.com/c360studio/semreq/markup"
)

const (
	optionCSVFile = "csv-file"
	optionLabel   = "label"

	csvTextColumn    = "text"
	csvCommentColumn = "comment"
)

// ErrMissingTextColumn is returned for CSV files whose header row lacks a
// text column.
var ErrMissingTextColumn = errors.New("missing text column in csv header row")

// ExpandImports replaces every requirement directive carrying a csv-file
// option with one requirement per CSV row. The file is read from fsys,
// relative to the directory of unit.Source, or to the root of fsys when the
// name starts with "/". It returns the imported file names.
//
// Rows are ";"-separated and the header row names the columns. The text
// column becomes the body and a non-empty comment column is appended as a
// comment section. Every other column is a directive option. The label
// option is dropped since labels must be unique.
func ExpandImports(unit *markup.Unit, fsys fs.FS) ([]string, error) {
	var (
		deps  []string
		errs  []error
		nodes = make([]markup.Node, 0, len(unit.Nodes))
	)
	inlines := inlineParserFor(unit.Source)

	for _, n := range unit.Nodes {
		name, ok := n.Directive.Option(optionCSVFile)
		if n.Kind != markup.KindRequirement || !ok {
			nodes = append(nodes, n)
			continue
		}
		file := importPath(unit.Source, name)
		deps = append(deps, file)

		rows, err := importRows(fsys, file, n, inlines)
		if err != nil {
			errs = append(errs, fmt.Errorf("line %d: csv-file %s: %w", n.Line, name, err))
			continue
		}
		nodes = append(nodes, rows...)
	}

	unit.Nodes = nodes
	return deps, errors.Join(errs...)
}

func importPath(source, name string) string {
	name = strings.TrimSpace(name)
	if strings.HasPrefix(name, "/") {
		return path.Clean(strings.TrimPrefix(name, "/"))
	}
	return path.Join(path.Dir(DocumentName(source)), name)
}

func importRows(fsys fs.FS, file string, n markup.Node, inlines InlineParser) ([]markup.Node, error) {
	f, err := fsys.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = ';'
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrMissingTextColumn
		}
		return nil, err
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	if !slices.Contains(header, csvTextColumn) {
		return nil, ErrMissingTextColumn
	}

	var nodes []markup.Node
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, importRow(n, header, row, inlines))
	}
	return nodes, nil
}

func importRow(n markup.Node, header, row []string, inlines InlineParser) markup.Node {
	d := n.Directive.Clone()
	delete(d.Options, optionCSVFile)
	delete(d.Options, optionLabel)

	var text, comment string
	for i, col := range header {
		var v string
		if i < len(row) {
			v = row[i]
		}
		switch col {
		case csvTextColumn:
			text = v
		case csvCommentColumn:
			comment = v
		default:
			d.Options[col] = v
		}
	}

	lines := splitLines([]byte(text))
	if len(lines) > 0 && strings.TrimSpace(comment) != "" {
		lines = append(lines, "", "|", "")
		lines = append(lines, splitLines([]byte(comment))...)
	}
	d.Content = contentBlocks(lines, inlines)

	n.Directive = d
	return n
}
