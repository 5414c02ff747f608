// Package filter evaluates restricted boolean expressions over requirement
// attributes and sorts requirement collections by attribute keys.
//
// Expressions never execute code: they are parsed into a small tree of
// comparisons combined with and/or/not, with attribute names as free
// variables. An attribute the record lacks evaluates as the empty string.
//
//	priority == "high" and not (status in ["draft", "rejected"])
//	"REQ-001" in parent
//	owner =~ "^team-"
package filter

import (
	"regexp"
	"strings"
)

// Item is anything that exposes attributes by name.
type Item interface {
	// Value returns the textual attribute value. A missing attribute
	// returns ok == false and is treated as "".
	Value(name string) (value string, ok bool)
}

// Expr is a compiled filter expression. The nil *Expr matches everything.
type Expr struct {
	src  string
	root node
}

// Compile parses src. An empty or blank src yields a nil Expr.
func Compile(src string) (*Expr, error) {
	if strings.TrimSpace(src) == "" {
		return nil, nil
	}
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{src: src, toks: toks}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, p.errorf(t, "unexpected %s", describe(t))
	}
	return &Expr{src: src, root: root}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(src string) *Expr {
	e, err := Compile(src)
	if err != nil {
		panic(err)
	}
	return e
}

// String returns the source text.
func (e *Expr) String() string {
	if e == nil {
		return ""
	}
	return e.src
}

// Match reports whether item satisfies the expression.
func (e *Expr) Match(item Item) bool {
	if e == nil {
		return true
	}
	return e.root.eval(item)
}

// Names returns the attribute names the expression refers to, in order of
// first appearance.
func (e *Expr) Names() []string {
	if e == nil {
		return nil
	}
	var names []string
	seen := make(map[string]bool)
	e.root.walk(func(o operand) {
		if !o.literal && !seen[o.name] {
			seen[o.name] = true
			names = append(names, o.name)
		}
	})
	return names
}

type node interface {
	eval(Item) bool
	walk(func(operand))
}

type operand struct {
	literal bool
	value   string
	name    string
}

func (o operand) resolve(item Item) string {
	if o.literal {
		return o.value
	}
	v, _ := item.Value(o.name)
	return v
}

type orNode struct{ left, right node }

func (n orNode) eval(it Item) bool { return n.left.eval(it) || n.right.eval(it) }
func (n orNode) walk(f func(operand)) {
	n.left.walk(f)
	n.right.walk(f)
}

type andNode struct{ left, right node }

func (n andNode) eval(it Item) bool { return n.left.eval(it) && n.right.eval(it) }
func (n andNode) walk(f func(operand)) {
	n.left.walk(f)
	n.right.walk(f)
}

type notNode struct{ inner node }

func (n notNode) eval(it Item) bool { return !n.inner.eval(it) }
func (n notNode) walk(f func(operand)) { n.inner.walk(f) }

type truthNode struct{ value operand }

func (n truthNode) eval(it Item) bool { return strings.TrimSpace(n.value.resolve(it)) != "" }
func (n truthNode) walk(f func(operand)) { f(n.value) }

type compareNode struct {
	negate      bool
	left, right operand
}

func (n compareNode) eval(it Item) bool {
	return (n.left.resolve(it) == n.right.resolve(it)) != n.negate
}

func (n compareNode) walk(f func(operand)) {
	f(n.left)
	f(n.right)
}

type matchNode struct {
	negate bool
	left   operand
	re     *regexp.Regexp
}

func (n matchNode) eval(it Item) bool { return n.re.MatchString(n.left.resolve(it)) != n.negate }
func (n matchNode) walk(f func(operand)) { f(n.left) }

// inListNode tests left against a list literal.
type inListNode struct {
	negate bool
	left   operand
	items  []operand
}

func (n inListNode) eval(it Item) bool {
	v := n.left.resolve(it)
	for _, item := range n.items {
		if item.resolve(it) == v {
			return !n.negate
		}
	}
	return n.negate
}

func (n inListNode) walk(f func(operand)) {
	f(n.left)
	for _, item := range n.items {
		f(item)
	}
}

// inValueNode tests membership of left in the comma-separated value of right.
type inValueNode struct {
	negate      bool
	left, right operand
}

func (n inValueNode) eval(it Item) bool {
	v := strings.TrimSpace(n.left.resolve(it))
	for _, item := range splitList(n.right.resolve(it)) {
		if item == v {
			return !n.negate
		}
	}
	return n.negate
}

func (n inValueNode) walk(f func(operand)) {
	f(n.left)
	f(n.right)
}
