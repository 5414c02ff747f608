package filter

import "strings"

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokNumber
	tokEq
	tokNeq
	tokMatch
	tokNotMatch
	tokAnd
	tokOr
	tokNot
	tokIn
	tokLParen
	tokRParen
	tokLBracket
	tokRBracket
	tokComma
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of expression"
	case tokIdent:
		return "identifier"
	case tokString:
		return "string"
	case tokNumber:
		return "number"
	case tokEq:
		return "'=='"
	case tokNeq:
		return "'!='"
	case tokMatch:
		return "'=~'"
	case tokNotMatch:
		return "'!~'"
	case tokAnd:
		return "'and'"
	case tokOr:
		return "'or'"
	case tokNot:
		return "'not'"
	case tokIn:
		return "'in'"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	case tokLBracket:
		return "'['"
	case tokRBracket:
		return "']'"
	case tokComma:
		return "','"
	default:
		return "token"
	}
}

type token struct {
	kind tokenKind
	text string
	pos  int
}

var keywords = map[string]tokenKind{
	"and": tokAnd,
	"or":  tokOr,
	"not": tokNot,
	"in":  tokIn,
}

// lex splits src into tokens. Positions are byte offsets into src.
func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "(", i})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")", i})
			i++
		case c == '[':
			toks = append(toks, token{tokLBracket, "[", i})
			i++
		case c == ']':
			toks = append(toks, token{tokRBracket, "]", i})
			i++
		case c == ',':
			toks = append(toks, token{tokComma, ",", i})
			i++
		case c == '=':
			if strings.HasPrefix(src[i:], "==") {
				toks = append(toks, token{tokEq, "==", i})
				i += 2
			} else if strings.HasPrefix(src[i:], "=~") {
				toks = append(toks, token{tokMatch, "=~", i})
				i += 2
			} else {
				return nil, syntaxError(src, i, "unexpected '=' (use '==')")
			}
		case c == '!':
			switch {
			case strings.HasPrefix(src[i:], "!="):
				toks = append(toks, token{tokNeq, "!=", i})
				i += 2
			case strings.HasPrefix(src[i:], "!~"):
				toks = append(toks, token{tokNotMatch, "!~", i})
				i += 2
			default:
				toks = append(toks, token{tokNot, "!", i})
				i++
			}
		case c == '&':
			if !strings.HasPrefix(src[i:], "&&") {
				return nil, syntaxError(src, i, "unexpected '&' (use '&&' or 'and')")
			}
			toks = append(toks, token{tokAnd, "&&", i})
			i += 2
		case c == '|':
			if !strings.HasPrefix(src[i:], "||") {
				return nil, syntaxError(src, i, "unexpected '|' (use '||' or 'or')")
			}
			toks = append(toks, token{tokOr, "||", i})
			i += 2
		case c == '"' || c == '\'':
			s, n, err := lexString(src, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{tokString, s, i})
			i += n
		case c >= '0' && c <= '9':
			start := i
			for i < len(src) && (isDigit(src[i]) || src[i] == '.') {
				i++
			}
			toks = append(toks, token{tokNumber, src[start:i], start})
		case isIdentStart(c):
			start := i
			for i < len(src) && isIdentPart(src[i]) {
				i++
			}
			word := src[start:i]
			if kw, ok := keywords[word]; ok {
				toks = append(toks, token{kw, word, start})
			} else {
				toks = append(toks, token{tokIdent, word, start})
			}
		default:
			return nil, syntaxError(src, i, "unexpected character "+quoteRune(c))
		}
	}
	toks = append(toks, token{tokEOF, "", len(src)})
	return toks, nil
}

// lexString reads a quoted literal starting at src[start]. It returns the
// unescaped value and the number of bytes consumed.
func lexString(src string, start int) (string, int, error) {
	quote := src[start]
	var sb strings.Builder
	i := start + 1
	for i < len(src) {
		c := src[i]
		switch {
		case c == '\\' && i+1 < len(src):
			sb.WriteByte(src[i+1])
			i += 2
		case c == quote:
			return sb.String(), i - start + 1, nil
		default:
			sb.WriteByte(c)
			i++
		}
	}
	return "", 0, syntaxError(src, start, "unterminated string")
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// Attribute names may contain '-' and '.', there is no arithmetic to clash with.
func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c) || c == '-' || c == '.'
}

func quoteRune(c byte) string {
	return "'" + string(rune(c)) + "'"
}
