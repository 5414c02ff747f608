package filter

import (
	"errors"
	"fmt"
)

// ErrInvalidExpression is the sentinel matched by every InvalidExpressionError.
var ErrInvalidExpression = errors.New("invalid filter expression")

// InvalidExpressionError reports a malformed filter expression.
type InvalidExpressionError struct {
	// Expr is the offending expression text.
	Expr string
	// Pos is the byte offset of the problem within Expr.
	Pos int
	// Reason describes the problem.
	Reason string
}

func (e *InvalidExpressionError) Error() string {
	return fmt.Sprintf("invalid filter expression %q at offset %d: %s", e.Expr, e.Pos, e.Reason)
}

// Is reports whether target is ErrInvalidExpression.
func (e *InvalidExpressionError) Is(target error) bool {
	return target == ErrInvalidExpression
}

func syntaxError(src string, pos int, reason string) error {
	return &InvalidExpressionError{Expr: src, Pos: pos, Reason: reason}
}
