package equation

import (
	"fmt"
	"strconv"
)

// parser is a recursive-descent parser over the token stream.
//
//	expr       = arith [ "if" comparison "else" expr ]
//	comparison = arith cmpop arith
//	arith      = term { ("+" | "-") term }
//	term       = unary { ("*" | "/") unary }
//	unary      = ("+" | "-") unary | postfix
//	postfix    = primary { "(" [ expr { "," expr } ] ")" | "." ident }
//	primary    = number | ident | "(" expr ")"
type parser struct {
	text string
	toks []token
	i    int
}

func parse(text string) (node, error) {
	toks, err := lex(text)
	if err != nil {
		return nil, err
	}
	p := &parser{text: text, toks: toks}
	n, err := p.expr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, p.errorf(tok, "unexpected %s", tok)
	}
	return n, nil
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) next() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *parser) errorf(tok token, format string, args ...any) error {
	return &SyntaxError{Text: p.text, Offset: tok.pos, Message: fmt.Sprintf(format, args...)}
}

func (p *parser) expect(kind tokenKind, what string) error {
	if tok := p.next(); tok.kind != kind {
		return p.errorf(tok, "expected %s, found %s", what, tok)
	}
	return nil
}

func (p *parser) expr() (node, error) {
	then, err := p.arith()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokIf {
		return then, nil
	}
	p.next()

	cond, err := p.comparison()
	if err != nil {
		return nil, err
	}
	if err := p.expect(tokElse, "'else'"); err != nil {
		return nil, err
	}
	els, err := p.expr()
	if err != nil {
		return nil, err
	}
	return &ternaryNode{then: then, cond: cond, els: els}, nil
}

func (p *parser) comparison() (*compareNode, error) {
	left, err := p.arith()
	if err != nil {
		return nil, err
	}
	op := p.next()
	switch op.kind {
	case tokLess, tokLessEq, tokGreater, tokGreaterEq, tokEqual, tokNotEqual:
	default:
		return nil, p.errorf(op, "expected comparison operator, found %s", op)
	}
	right, err := p.arith()
	if err != nil {
		return nil, err
	}
	return &compareNode{op: op.kind, left: left, right: right}, nil
}

func (p *parser) arith() (node, error) {
	left, err := p.term()
	if err != nil {
		return nil, err
	}
	for k := p.peek().kind; k == tokPlus || k == tokMinus; k = p.peek().kind {
		p.next()
		right, err := p.term()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: k, left: left, right: right}
	}
	return left, nil
}

func (p *parser) term() (node, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for k := p.peek().kind; k == tokStar || k == tokSlash; k = p.peek().kind {
		p.next()
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: k, left: left, right: right}
	}
	return left, nil
}

func (p *parser) unary() (node, error) {
	switch p.peek().kind {
	case tokMinus, tokPlus:
		op := p.next()
		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &unaryNode{negate: op.kind == tokMinus, operand: operand}, nil
	}
	return p.postfix()
}

func (p *parser) postfix() (node, error) {
	n, err := p.primary()
	if err != nil {
		return nil, err
	}
	for {
		switch tok := p.peek(); tok.kind {
		case tokLParen:
			p.next()
			call := &callNode{fn: n, pos: tok.pos}
			if p.peek().kind != tokRParen {
				for {
					arg, err := p.expr()
					if err != nil {
						return nil, err
					}
					call.args = append(call.args, arg)
					if p.peek().kind != tokComma {
						break
					}
					p.next()
				}
			}
			if err := p.expect(tokRParen, "')'"); err != nil {
				return nil, err
			}
			n = call
		case tokDot:
			p.next()
			name := p.next()
			if name.kind != tokIdent {
				return nil, p.errorf(name, "expected attribute name, found %s", name)
			}
			n = &attrNode{target: n, name: name.text, pos: tok.pos}
		default:
			return n, nil
		}
	}
}

func (p *parser) primary() (node, error) {
	tok := p.next()
	switch tok.kind {
	case tokNumber:
		v, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return nil, p.errorf(tok, "invalid number %s", tok)
		}
		return &numberNode{value: v}, nil
	case tokIdent:
		return &identNode{name: tok.text, pos: tok.pos}, nil
	case tokLParen:
		n, err := p.expr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		return n, nil
	}
	return nil, p.errorf(tok, "unexpected %s", tok)
}
