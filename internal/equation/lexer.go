package equation

import "fmt"

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokIdent
	tokIf
	tokElse
	tokPlus
	tokMinus
	tokStar
	tokSlash
	tokLParen
	tokRParen
	tokLess
	tokLessEq
	tokGreater
	tokGreaterEq
	tokEqual
	tokNotEqual
	tokDot
	tokComma
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func (t token) String() string {
	if t.kind == tokEOF {
		return "end of input"
	}
	return fmt.Sprintf("%q", t.text)
}

// lex splits text into tokens. Anything outside the small token set is a
// syntax error; identifiers are accepted here and checked after parsing.
func lex(text string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(text) {
		c := text[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case isDigit(c) || (c == '.' && i+1 < len(text) && isDigit(text[i+1])):
			start := i
			i = scanNumber(text, i)
			toks = append(toks, token{tokNumber, text[start:i], start})
		case isIdentStart(c):
			start := i
			for i < len(text) && isIdentPart(text[i]) {
				i++
			}
			word := text[start:i]
			kind := tokIdent
			switch word {
			case "if":
				kind = tokIf
			case "else":
				kind = tokElse
			}
			toks = append(toks, token{kind, word, start})
		default:
			kind, n := operator(text[i:])
			if n == 0 {
				return nil, &SyntaxError{Text: text, Offset: i, Message: fmt.Sprintf("unexpected character %q", c)}
			}
			toks = append(toks, token{kind, text[i : i+n], i})
			i += n
		}
	}
	toks = append(toks, token{kind: tokEOF, pos: len(text)})
	return toks, nil
}

var twoCharOps = map[string]tokenKind{
	"<=": tokLessEq,
	">=": tokGreaterEq,
	"==": tokEqual,
	"!=": tokNotEqual,
}

func operator(s string) (tokenKind, int) {
	if len(s) >= 2 {
		if k, ok := twoCharOps[s[:2]]; ok {
			return k, 2
		}
	}
	switch s[0] {
	case '+':
		return tokPlus, 1
	case '-':
		return tokMinus, 1
	case '*':
		return tokStar, 1
	case '/':
		return tokSlash, 1
	case '(':
		return tokLParen, 1
	case ')':
		return tokRParen, 1
	case '<':
		return tokLess, 1
	case '>':
		return tokGreater, 1
	case '.':
		return tokDot, 1
	case ',':
		return tokComma, 1
	}
	return tokEOF, 0
}

// scanNumber returns the end of a decimal literal starting at i:
// digits, an optional fraction and an optional exponent.
func scanNumber(s string, i int) int {
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && isDigit(s[i]) {
			i++
		}
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		if j < len(s) && isDigit(s[j]) {
			for j < len(s) && isDigit(s[j]) {
				j++
			}
			i = j
		}
	}
	return i
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }
