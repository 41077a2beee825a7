package render

import (
	"fmt"
	"strconv"
	"strings"
)

type expr interface{}

type pathExpr struct {
	segs []string
}

type literalExpr struct {
	value interface{}
}

type notExpr struct {
	x expr
}

type binaryExpr struct {
	op   string
	l, r expr
}

type existsExpr struct {
	x expr
}

type defaultExpr struct {
	x        expr
	fallback expr
}

type builtinExpr struct {
	x    expr
	name string
	args []expr
}

type parenExpr struct {
	x expr
}

type exprError struct {
	pos int
	msg string
}

func (e *exprError) Error() string { return e.msg }

type exprTokKind int

const (
	tEOF exprTokKind = iota
	tIdent
	tString
	tNumber
	tOp
)

type exprTok struct {
	kind exprTokKind
	text string
	pos  int
}

var operators = []string{"&&", "||", "==", "!=", "??", "(", ")", ".", "!", "=", "?", ","}

func lexExpression(src string) ([]exprTok, error) {
	var toks []exprTok
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++

		case isIdentStart(c):
			start := i
			for i < len(src) && isIdentPart(src[i]) {
				i++
			}
			toks = append(toks, exprTok{kind: tIdent, text: src[start:i], pos: start})

		case c >= '0' && c <= '9':
			start := i
			for i < len(src) && src[i] >= '0' && src[i] <= '9' {
				i++
			}
			if i+1 < len(src) && src[i] == '.' && src[i+1] >= '0' && src[i+1] <= '9' {
				i++
				for i < len(src) && src[i] >= '0' && src[i] <= '9' {
					i++
				}
			}
			toks = append(toks, exprTok{kind: tNumber, text: src[start:i], pos: start})

		case c == '"' || c == '\'':
			s, n, err := unquote(src[i:])
			if err != nil {
				return nil, &exprError{pos: i, msg: err.Error()}
			}
			toks = append(toks, exprTok{kind: tString, text: s, pos: i})
			i += n

		default:
			matched := false
			for _, op := range operators {
				if strings.HasPrefix(src[i:], op) {
					toks = append(toks, exprTok{kind: tOp, text: op, pos: i})
					i += len(op)
					matched = true
					break
				}
			}
			if !matched {
				return nil, &exprError{pos: i, msg: fmt.Sprintf("unexpected character %q", c)}
			}
		}
	}
	return append(toks, exprTok{kind: tEOF, pos: len(src)}), nil
}

// unquote decodes a single or double quoted literal at the start of s and
// returns the value and the number of bytes consumed.
func unquote(s string) (string, int, error) {
	quote := s[0]
	var b strings.Builder
	for i := 1; i < len(s); i++ {
		c := s[i]
		switch {
		case c == quote:
			return b.String(), i + 1, nil
		case c == '\\' && i+1 < len(s):
			i++
			switch s[i] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			default:
				b.WriteByte(s[i])
			}
		default:
			b.WriteByte(c)
		}
	}
	return "", 0, fmt.Errorf("unterminated string literal")
}

type exprParser struct {
	toks []exprTok
	pos  int
}

func parseExpression(src string) (expr, error) {
	toks, err := lexExpression(src)
	if err != nil {
		return nil, err
	}
	p := &exprParser{toks: toks}
	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tEOF {
		return nil, p.errorf(tok, "unexpected %q", tok.text)
	}
	return e, nil
}

func (p *exprParser) peek() exprTok {
	return p.toks[p.pos]
}

func (p *exprParser) next() exprTok {
	tok := p.toks[p.pos]
	if tok.kind != tEOF {
		p.pos++
	}
	return tok
}

func (p *exprParser) isOp(text string) bool {
	tok := p.peek()
	return tok.kind == tOp && tok.text == text
}

func (p *exprParser) errorf(tok exprTok, format string, args ...interface{}) error {
	return &exprError{pos: tok.pos, msg: fmt.Sprintf(format, args...)}
}

func (p *exprParser) parseOr() (expr, error) {
	l, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.isOp("||") {
		p.next()
		r, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		l = &binaryExpr{op: "||", l: l, r: r}
	}
	return l, nil
}

func (p *exprParser) parseAnd() (expr, error) {
	l, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for p.isOp("&&") {
		p.next()
		r, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		l = &binaryExpr{op: "&&", l: l, r: r}
	}
	return l, nil
}

func (p *exprParser) parseEquality() (expr, error) {
	l, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.isOp("==") || p.isOp("=") || p.isOp("!=") {
		op := p.next().text
		if op == "=" {
			op = "=="
		}
		r, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		l = &binaryExpr{op: op, l: l, r: r}
	}
	return l, nil
}

func (p *exprParser) parseUnary() (expr, error) {
	if p.isOp("!") {
		p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &notExpr{x: x}, nil
	}
	return p.parsePostfix()
}

func (p *exprParser) startsPrimary() bool {
	tok := p.peek()
	switch tok.kind {
	case tIdent, tString, tNumber:
		return true
	case tOp:
		return tok.text == "("
	}
	return false
}

func (p *exprParser) parsePostfix() (expr, error) {
	return p.parseSuffixes(true)
}

// parseSuffixes parses a primary and the ??, ?builtin and ! suffixes after it.
// A default's fallback takes its own built-ins, so a!"x"?upper_case only
// upper-cases "x". The fallback is parsed with withDefault false, leaving a
// further ! to chain onto the enclosing default.
func (p *exprParser) parseSuffixes(withDefault bool) (expr, error) {
	x, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	for {
		switch {
		case p.isOp("??"):
			p.next()
			x = &existsExpr{x: x}

		case p.isOp("?"):
			p.next()
			name := p.next()
			if name.kind != tIdent {
				return nil, p.errorf(name, "expected built-in name after '?'")
			}
			b := &builtinExpr{x: x, name: name.text}
			if p.isOp("(") {
				p.next()
				for !p.isOp(")") {
					arg, err := p.parseOr()
					if err != nil {
						return nil, err
					}
					b.args = append(b.args, arg)
					if p.isOp(",") {
						p.next()
					} else if !p.isOp(")") {
						return nil, p.errorf(p.peek(), "expected ',' or ')' in built-in arguments")
					}
				}
				p.next()
			}
			x = b

		case withDefault && p.isOp("!"):
			p.next()
			d := &defaultExpr{x: x}
			if p.startsPrimary() {
				if d.fallback, err = p.parseSuffixes(false); err != nil {
					return nil, err
				}
			}
			x = d

		default:
			return x, nil
		}
	}
}

func (p *exprParser) parsePrimary() (expr, error) {
	tok := p.next()
	switch tok.kind {
	case tIdent:
		switch tok.text {
		case "true":
			return &literalExpr{value: true}, nil
		case "false":
			return &literalExpr{value: false}, nil
		}
		path := &pathExpr{segs: []string{tok.text}}
		for p.isOp(".") {
			p.next()
			seg := p.next()
			if seg.kind != tIdent {
				return nil, p.errorf(seg, "expected name after '.'")
			}
			path.segs = append(path.segs, seg.text)
		}
		return path, nil

	case tString:
		return &literalExpr{value: tok.text}, nil

	case tNumber:
		if strings.Contains(tok.text, ".") {
			f, err := strconv.ParseFloat(tok.text, 64)
			if err != nil {
				return nil, p.errorf(tok, "invalid number %q", tok.text)
			}
			return &literalExpr{value: f}, nil
		}
		n, err := strconv.Atoi(tok.text)
		if err != nil {
			return nil, p.errorf(tok, "invalid number %q", tok.text)
		}
		return &literalExpr{value: n}, nil

	case tOp:
		if tok.text == "(" {
			x, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			if !p.isOp(")") {
				return nil, p.errorf(p.peek(), "expected ')'")
			}
			p.next()
			return &parenExpr{x: x}, nil
		}
	case tEOF:
		return nil, p.errorf(tok, "unexpected end of expression")
	}
	return nil, p.errorf(tok, "unexpected %q", tok.text)
}
