package requirement

import (
	"errors"
	"fmt"

	"github.com/c360studio/semreq/filter"
)

// Sentinel errors. Typed errors below match them with errors.Is.
var (
	ErrDuplicateIdentity          = errors.New("duplicate requirement identity")
	ErrInvalidFilterExpression    = filter.ErrInvalidExpression
	ErrInconsistentListingColumns = errors.New("inconsistent listing columns")
	ErrUnknownOption              = errors.New("unknown directive option")
	ErrInvalidAttribute           = errors.New("invalid attribute value")
	ErrUnexpandedImport           = errors.New("csv-file import was not expanded")
	ErrNotFinalized               = errors.New("environment not finalized")
	ErrUnknownDocument            = errors.New("unknown document")
)

// DuplicateIdentityError reports an identity (or label) declared twice.
type DuplicateIdentityError struct {
	ID       string
	Existing string // document that already owns ID
	Incoming string // document that tried to add it
}

func (e *DuplicateIdentityError) Error() string {
	if e.Existing == e.Incoming {
		return fmt.Sprintf("duplicate requirement identity %q declared twice in %s", e.ID, e.Existing)
	}
	return fmt.Sprintf("duplicate requirement identity %q: declared in %s and %s", e.ID, e.Existing, e.Incoming)
}

// Is reports whether target is ErrDuplicateIdentity.
func (e *DuplicateIdentityError) Is(target error) bool {
	return target == ErrDuplicateIdentity
}

// InconsistentListingColumnsError reports a listing whose fields, headers and
// widths have different lengths.
type InconsistentListingColumnsError struct {
	Fields  int
	Headers int
	Widths  int
}

func (e *InconsistentListingColumnsError) Error() string {
	return fmt.Sprintf("inconsistent number of listing columns: %d fields, %d headers, %d widths",
		e.Fields, e.Headers, e.Widths)
}

// Is reports whether target is ErrInconsistentListingColumns.
func (e *InconsistentListingColumnsError) Is(target error) bool {
	return target == ErrInconsistentListingColumns
}

// DocumentError attributes an extraction error to a document and source line.
type DocumentError struct {
	Document string
	Line     int
	Err      error
}

func (e *DocumentError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %v", e.Document, e.Line, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Document, e.Err)
}

func (e *DocumentError) Unwrap() error { return e.Err }

func docError(doc string, line int, err error) error {
	return &DocumentError{Document: doc, Line: line, Err: err}
}
