package render

import (
	"fmt"
	"regexp"
	"strings"
)

type tokenKind int

const (
	tokText tokenKind = iota
	tokInterp
	tokOpen
	tokClose
	tokComment
)

type token struct {
	kind tokenKind
	name string
	body string
	pos  int
}

type node interface{}

type textNode struct {
	text string
}

type interpNode struct {
	expr expr
}

type ifBranch struct {
	cond expr
	body []node
}

type ifNode struct {
	branches []ifBranch
	elseBody []node
}

type listNode struct {
	seq      expr
	name     string
	body     []node
	elseBody []node
}

// SyntaxError reports a malformed template with a 1-based position.
type SyntaxError struct {
	Line   int
	Column int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at line %d, column %d: %s", e.Line, e.Column, e.Msg)
}

func syntaxErrorAt(src string, pos int, format string, args ...interface{}) error {
	if pos > len(src) {
		pos = len(src)
	}
	line := strings.Count(src[:pos], "\n") + 1
	col := pos - strings.LastIndexByte(src[:pos], '\n')
	return &SyntaxError{Line: line, Column: col, Msg: fmt.Sprintf(format, args...)}
}

func scan(src string) ([]token, error) {
	var toks []token
	i, textStart := 0, 0
	flush := func(end int) {
		if end > textStart {
			toks = append(toks, token{kind: tokText, body: src[textStart:end], pos: textStart})
		}
	}

	for i < len(src) {
		rest := src[i:]
		switch {
		case strings.HasPrefix(rest, "<#--"):
			end := strings.Index(rest[4:], "-->")
			if end < 0 {
				return nil, syntaxErrorAt(src, i, "unclosed comment")
			}
			flush(i)
			toks = append(toks, token{kind: tokComment, pos: i})
			i += 4 + end + 3
			textStart = i

		case strings.HasPrefix(rest, "${"):
			end, ok := scanUntil(src, i+2, '}')
			if !ok {
				return nil, syntaxErrorAt(src, i, "unclosed ${")
			}
			flush(i)
			toks = append(toks, token{kind: tokInterp, body: src[i+2 : end], pos: i + 2})
			i = end + 1
			textStart = i

		case strings.HasPrefix(rest, "</#"):
			end := strings.IndexByte(rest, '>')
			if end < 0 {
				return nil, syntaxErrorAt(src, i, "unclosed end tag")
			}
			flush(i)
			toks = append(toks, token{kind: tokClose, name: strings.TrimSpace(rest[3:end]), pos: i})
			i += end + 1
			textStart = i

		case strings.HasPrefix(rest, "<#") && len(rest) > 2 && isIdentStart(rest[2]):
			end, ok := scanUntil(src, i+2, '>')
			if !ok {
				return nil, syntaxErrorAt(src, i, "unclosed directive")
			}
			name, args := splitDirective(src[i+2 : end])
			flush(i)
			toks = append(toks, token{kind: tokOpen, name: name, body: args, pos: i})
			i = end + 1
			textStart = i

		default:
			i++
		}
	}
	flush(len(src))

	return stripTagLines(toks), nil
}

// scanUntil returns the index of the first delim at or after from that is
// not inside a string literal.
func scanUntil(src string, from int, delim byte) (int, bool) {
	var quote byte
	for j := from; j < len(src); j++ {
		c := src[j]
		switch {
		case quote != 0:
			if c == '\\' {
				j++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == delim:
			return j, true
		}
	}
	return 0, false
}

func splitDirective(inner string) (string, string) {
	inner = strings.TrimSpace(inner)
	inner = strings.TrimSpace(strings.TrimSuffix(inner, "/"))
	n := 0
	for n < len(inner) && isIdentPart(inner[n]) {
		n++
	}
	return inner[:n], strings.TrimSpace(inner[n:])
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func isBlank(s string) bool {
	return strings.Trim(s, " \t\r") == ""
}

// stripTagLines drops the indentation and line break around a directive or
// comment that sits alone on its line, so block tags do not leave blank
// lines in the output.
func stripTagLines(toks []token) []token {
	type trim struct{ start, end int }
	trims := make(map[int]*trim)
	span := func(k int) *trim {
		if t, ok := trims[k]; ok {
			return t
		}
		t := &trim{start: 0, end: len(toks[k].body)}
		trims[k] = t
		return t
	}

	for k, tok := range toks {
		if tok.kind == tokText || tok.kind == tokInterp {
			continue
		}

		prevCut, prevOK := -1, false
		switch {
		case k == 0:
			prevOK = true
		case toks[k-1].kind == tokText:
			body := toks[k-1].body
			if nl := strings.LastIndexByte(body, '\n'); nl >= 0 {
				prevCut, prevOK = nl+1, isBlank(body[nl+1:])
			} else if k-1 == 0 && isBlank(body) {
				prevCut, prevOK = 0, true
			}
		}
		if !prevOK {
			continue
		}

		nextCut, nextOK := -1, false
		switch {
		case k == len(toks)-1:
			nextOK = true
		case toks[k+1].kind == tokText:
			body := toks[k+1].body
			if nl := strings.IndexByte(body, '\n'); nl >= 0 {
				nextCut, nextOK = nl+1, isBlank(body[:nl])
			} else if k+1 == len(toks)-1 && isBlank(body) {
				nextCut, nextOK = len(body), true
			}
		}
		if !nextOK {
			continue
		}

		if prevCut >= 0 {
			span(k - 1).end = prevCut
		}
		if nextCut >= 0 {
			span(k + 1).start = nextCut
		}
	}

	out := toks[:0:0]
	for k, tok := range toks {
		if t, ok := trims[k]; ok {
			if t.start >= t.end {
				tok.body = ""
			} else {
				tok.body = tok.body[t.start:t.end]
			}
		}
		out = append(out, tok)
	}
	return out
}

type parser struct {
	src  string
	toks []token
	pos  int
}

func parseTemplate(src string) ([]node, error) {
	toks, err := scan(src)
	if err != nil {
		return nil, err
	}
	p := &parser{src: src, toks: toks}
	nodes, term, err := p.parseNodes()
	if err != nil {
		return nil, err
	}
	if term != nil {
		return nil, p.unexpected(term)
	}
	return nodes, nil
}

func (p *parser) unexpected(tok *token) error {
	if tok.kind == tokClose {
		return syntaxErrorAt(p.src, tok.pos, "unexpected </#%s>", tok.name)
	}
	return syntaxErrorAt(p.src, tok.pos, "unexpected <#%s>", tok.name)
}

// parseNodes reads until end of input, a closing tag, or an else/elseif,
// and returns the terminating token for the caller to check.
func (p *parser) parseNodes() ([]node, *token, error) {
	var nodes []node
	for p.pos < len(p.toks) {
		tok := p.toks[p.pos]
		p.pos++

		switch tok.kind {
		case tokText:
			if tok.body != "" {
				nodes = append(nodes, &textNode{text: tok.body})
			}
		case tokComment:
		case tokInterp:
			e, err := p.parseExpr(tok.body, tok.pos)
			if err != nil {
				return nil, nil, err
			}
			nodes = append(nodes, &interpNode{expr: e})
		case tokOpen:
			switch tok.name {
			case "if":
				n, err := p.parseIf(tok)
				if err != nil {
					return nil, nil, err
				}
				nodes = append(nodes, n)
			case "list":
				n, err := p.parseList(tok)
				if err != nil {
					return nil, nil, err
				}
				nodes = append(nodes, n)
			case "else", "elseif":
				return nodes, &tok, nil
			default:
				return nil, nil, syntaxErrorAt(p.src, tok.pos, "unsupported directive <#%s>", tok.name)
			}
		case tokClose:
			return nodes, &tok, nil
		}
	}
	return nodes, nil, nil
}

func (p *parser) parseExpr(src string, pos int) (expr, error) {
	e, err := parseExpression(src)
	if err != nil {
		if pe, ok := err.(*exprError); ok {
			return nil, syntaxErrorAt(p.src, pos+pe.pos, "%s", pe.msg)
		}
		return nil, err
	}
	return e, nil
}

func (p *parser) parseIf(open token) (node, error) {
	if open.body == "" {
		return nil, syntaxErrorAt(p.src, open.pos, "<#if> needs a condition")
	}
	cond, err := p.parseExpr(open.body, open.pos)
	if err != nil {
		return nil, err
	}

	n := &ifNode{}
	inElse := false
	for {
		body, term, err := p.parseNodes()
		if err != nil {
			return nil, err
		}
		if term == nil {
			return nil, syntaxErrorAt(p.src, open.pos, "unclosed <#if>")
		}

		if inElse {
			n.elseBody = body
		} else {
			n.branches = append(n.branches, ifBranch{cond: cond, body: body})
		}

		switch {
		case term.kind == tokClose && term.name == "if":
			if inElse && n.elseBody == nil {
				n.elseBody = []node{}
			}
			return n, nil
		case term.kind == tokOpen && term.name == "elseif" && !inElse:
			if term.body == "" {
				return nil, syntaxErrorAt(p.src, term.pos, "<#elseif> needs a condition")
			}
			if cond, err = p.parseExpr(term.body, term.pos); err != nil {
				return nil, err
			}
		case term.kind == tokOpen && term.name == "else" && !inElse:
			inElse = true
		default:
			return nil, p.unexpected(term)
		}
	}
}

var listArgs = regexp.MustCompile(`^(.+?)\s+as\s+([A-Za-z_][A-Za-z0-9_]*)$`)

func (p *parser) parseList(open token) (node, error) {
	m := listArgs.FindStringSubmatch(open.body)
	if m == nil {
		return nil, syntaxErrorAt(p.src, open.pos, "<#list> expects \"sequence as item\"")
	}
	seq, err := p.parseExpr(m[1], open.pos)
	if err != nil {
		return nil, err
	}

	n := &listNode{seq: seq, name: m[2]}
	inElse := false
	for {
		body, term, err := p.parseNodes()
		if err != nil {
			return nil, err
		}
		if term == nil {
			return nil, syntaxErrorAt(p.src, open.pos, "unclosed <#list>")
		}

		if inElse {
			n.elseBody = body
		} else {
			n.body = body
		}

		switch {
		case term.kind == tokClose && term.name == "list":
			if inElse && n.elseBody == nil {
				n.elseBody = []node{}
			}
			return n, nil
		case term.kind == tokOpen && term.name == "else" && !inElse:
			inElse = true
		default:
			return nil, p.unexpected(term)
		}
	}
}
