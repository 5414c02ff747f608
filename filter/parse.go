package filter

import (
	"fmt"
	"regexp"
	"strings"
)

// Grammar:
//
//	expr    := and { ("or" | "||") and }
//	and     := unary { ("and" | "&&") unary }
//	unary   := ("not" | "!") unary | "(" expr ")" | compare
//	compare := operand [ op operand ]
//	op      := "==" | "!=" | "=~" | "!~" | "in" | "not" "in"
//	operand := IDENT | STRING | NUMBER | "[" [ scalar { "," scalar } ] "]"
//
// Identifiers name record attributes. Lists may only appear on the right of
// "in". The right side of "=~" must be a string literal.

type parser struct {
	src  string
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) expect(kind tokenKind) (token, error) {
	t := p.next()
	if t.kind != kind {
		return t, p.errorf(t, "expected %s, found %s", kind, describe(t))
	}
	return t, nil
}

func (p *parser) errorf(t token, format string, args ...any) error {
	return syntaxError(p.src, t.pos, fmt.Sprintf(format, args...))
}

func describe(t token) string {
	switch t.kind {
	case tokIdent, tokNumber:
		return fmt.Sprintf("%s %q", t.kind, t.text)
	case tokString:
		return fmt.Sprintf("string %q", t.text)
	default:
		return t.kind.String()
	}
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOr {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = orNode{left, right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokAnd {
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = andNode{left, right}
	}
	return left, nil
}

func (p *parser) parseUnary() (node, error) {
	switch p.peek().kind {
	case tokNot:
		p.next()
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return notNode{inner}, nil
	case tokLParen:
		p.next()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return inner, nil
	default:
		return p.parseCompare()
	}
}

func (p *parser) parseCompare() (node, error) {
	left, err := p.parseScalar()
	if err != nil {
		return nil, err
	}

	t := p.peek()
	switch t.kind {
	case tokEq, tokNeq:
		p.next()
		right, err := p.parseScalar()
		if err != nil {
			return nil, err
		}
		return compareNode{negate: t.kind == tokNeq, left: left, right: right}, nil

	case tokMatch, tokNotMatch:
		p.next()
		lit, err := p.expect(tokString)
		if err != nil {
			return nil, err
		}
		re, err := regexp.Compile(lit.text)
		if err != nil {
			return nil, p.errorf(lit, "bad regular expression: %v", err)
		}
		return matchNode{negate: t.kind == tokNotMatch, left: left, re: re}, nil

	case tokIn:
		p.next()
		return p.parseMembership(left, false)

	case tokNot:
		// "not in" is the only infix use of "not".
		if p.toks[p.pos+1].kind != tokIn {
			return nil, p.errorf(t, "expected 'in' after 'not'")
		}
		p.next()
		p.next()
		return p.parseMembership(left, true)
	}

	return truthNode{left}, nil
}

func (p *parser) parseMembership(left operand, negate bool) (node, error) {
	if p.peek().kind == tokLBracket {
		items, err := p.parseList()
		if err != nil {
			return nil, err
		}
		return inListNode{negate: negate, left: left, items: items}, nil
	}
	right, err := p.parseScalar()
	if err != nil {
		return nil, err
	}
	return inValueNode{negate: negate, left: left, right: right}, nil
}

func (p *parser) parseList() ([]operand, error) {
	if _, err := p.expect(tokLBracket); err != nil {
		return nil, err
	}
	var items []operand
	if p.peek().kind == tokRBracket {
		p.next()
		return items, nil
	}
	for {
		item, err := p.parseScalar()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		t := p.next()
		if t.kind == tokRBracket {
			return items, nil
		}
		if t.kind != tokComma {
			return nil, p.errorf(t, "expected ',' or ']', found %s", describe(t))
		}
	}
}

func (p *parser) parseScalar() (operand, error) {
	t := p.next()
	switch t.kind {
	case tokIdent:
		return operand{name: t.text}, nil
	case tokString, tokNumber:
		return operand{literal: true, value: t.text}, nil
	case tokLBracket:
		return operand{}, p.errorf(t, "list literal only allowed after 'in'")
	default:
		return operand{}, p.errorf(t, "expected attribute name or literal, found %s", describe(t))
	}
}

// splitList splits a comma-separated attribute value into trimmed, non-empty items.
func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
