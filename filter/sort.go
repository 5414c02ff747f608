package filter

import (
	"regexp"
	"sort"
	"strings"
)

// DefaultSortKey orders records when no sort key is given.
const DefaultSortKey = "id"

// SortKey is one attribute of a multi-key sort.
type SortKey struct {
	Name       string
	Descending bool
}

func (k SortKey) String() string {
	if k.Descending {
		return "-" + k.Name
	}
	return k.Name
}

var sortSplit = regexp.MustCompile(`[,\s]+`)

// ParseSortKeys splits a sort option such as "parent, -priority" into keys.
// A leading '-' requests descending order, a leading '+' is accepted and ignored.
func ParseSortKeys(s string) []SortKey {
	var keys []SortKey
	for _, part := range sortSplit.Split(strings.TrimSpace(s), -1) {
		if part == "" {
			continue
		}
		key := SortKey{Name: part}
		switch part[0] {
		case '-':
			key = SortKey{Name: part[1:], Descending: true}
		case '+':
			key = SortKey{Name: part[1:]}
		}
		if key.Name != "" {
			keys = append(keys, key)
		}
	}
	return keys
}

// Sort returns a sorted copy of items. The sort is stable so ties keep their
// input order. Missing attributes compare as "", which sorts before every
// non-empty value. With no keys, items are ordered by DefaultSortKey.
func Sort[T Item](items []T, keys []SortKey) []T {
	if len(keys) == 0 {
		keys = []SortKey{{Name: DefaultSortKey}}
	}
	out := make([]T, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		for _, k := range keys {
			a, _ := out[i].Value(k.Name)
			b, _ := out[j].Value(k.Name)
			if a == b {
				continue
			}
			if k.Descending {
				return a > b
			}
			return a < b
		}
		return false
	})
	return out
}

// Apply keeps the items matching expr and sorts them by keys.
func Apply[T Item](items []T, expr *Expr, keys []SortKey) []T {
	matched := make([]T, 0, len(items))
	for _, it := range items {
		if expr.Match(it) {
			matched = append(matched, it)
		}
	}
	return Sort(matched, keys)
}

// Evaluate compiles expr and applies it with the parsed sort keys.
// A malformed expression returns an *InvalidExpressionError and no items.
func Evaluate[T Item](items []T, expr string, sortKeys []string) ([]T, error) {
	compiled, err := Compile(expr)
	if err != nil {
		return nil, err
	}
	var keys []SortKey
	for _, k := range sortKeys {
		keys = append(keys, ParseSortKeys(k)...)
	}
	return Apply(items, compiled, keys), nil
}
