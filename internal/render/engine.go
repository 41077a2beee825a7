package render

import (
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"text/template"

	"notification-workers/internal/common/errors"
)

const defaultCacheSize = 256

// Engine renders FreeMarker-style bodies (${...}, <#if>, <#list>) by
// compiling them onto text/template. Compiled bodies are cached, and an
// Engine is safe for concurrent use.
//
// Numbers print in their shortest plain decimal form with no locale
// grouping, so 1234.5 renders as "1234.5" rather than "1,234.5". Senders
// wanting grouped or currency output pass the value preformatted as a string.
type Engine struct {
	cache     sync.Map
	cached    atomic.Int64
	cacheSize int64
}

func NewEngine() *Engine {
	return &Engine{cacheSize: defaultCacheSize}
}

// Template is a compiled body.
type Template struct {
	tmpl *template.Template
}

// Render compiles body (or reuses a cached compilation) and executes it
// against model. Every failure is a TEMPLATE_RENDER_FAILED error.
func (e *Engine) Render(model map[string]interface{}, body string) (string, error) {
	t, err := e.Compile(body)
	if err != nil {
		return "", err
	}
	return t.Execute(model)
}

func (e *Engine) Compile(body string) (*Template, error) {
	if t, ok := e.cache.Load(body); ok {
		return t.(*Template), nil
	}

	t, err := compile(body)
	if err != nil {
		return nil, errors.NewTemplateRenderFailedError(err)
	}

	if e.cached.Load() < e.cacheSize {
		if _, loaded := e.cache.LoadOrStore(body, t); !loaded {
			e.cached.Add(1)
		}
	}
	return t, nil
}

func (t *Template) Execute(model map[string]interface{}) (string, error) {
	if model == nil {
		model = map[string]interface{}{}
	}

	var sb strings.Builder
	if err := t.tmpl.Execute(&sb, model); err != nil {
		var ee *evalError
		if stderrors.As(err, &ee) {
			err = ee
		}
		return "", errors.NewTemplateRenderFailedError(err)
	}
	return sb.String(), nil
}

type loopScope struct {
	name string
	id   int
}

type compiler struct {
	sb     strings.Builder
	lits   []string
	scopes []loopScope
	nextID int
}

func compile(body string) (*Template, error) {
	nodes, err := parseTemplate(body)
	if err != nil {
		return nil, err
	}

	c := &compiler{}
	if err := c.emit(nodes); err != nil {
		return nil, err
	}

	lits := c.lits
	funcs := runtimeFuncs()
	funcs["lit"] = func(i int) string { return lits[i] }

	tmpl, err := template.New("body").Funcs(funcs).Parse(c.sb.String())
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}
	return &Template{tmpl: tmpl}, nil
}

func (c *compiler) emit(nodes []node) error {
	for _, n := range nodes {
		switch n := n.(type) {
		case *textNode:
			c.lits = append(c.lits, n.text)
			fmt.Fprintf(&c.sb, "{{lit %d}}", len(c.lits)-1)

		case *interpNode:
			code, err := c.expr(n.expr)
			if err != nil {
				return err
			}
			c.sb.WriteString("{{display " + code + "}}")

		case *ifNode:
			for i, br := range n.branches {
				cond, err := c.expr(br.cond)
				if err != nil {
					return err
				}
				if i == 0 {
					c.sb.WriteString("{{if truth " + cond + "}}")
				} else {
					c.sb.WriteString("{{else if truth " + cond + "}}")
				}
				if err := c.emit(br.body); err != nil {
					return err
				}
			}
			if n.elseBody != nil {
				c.sb.WriteString("{{else}}")
				if err := c.emit(n.elseBody); err != nil {
					return err
				}
			}
			c.sb.WriteString("{{end}}")

		case *listNode:
			seq, err := c.expr(n.seq)
			if err != nil {
				return err
			}
			id := c.nextID
			c.nextID++
			fmt.Fprintf(&c.sb, "{{$s%d := iterable %s}}{{range $i%d, $v%d := $s%d}}", id, seq, id, id, id)

			c.scopes = append(c.scopes, loopScope{name: n.name, id: id})
			err = c.emit(n.body)
			c.scopes = c.scopes[:len(c.scopes)-1]
			if err != nil {
				return err
			}

			if n.elseBody != nil {
				c.sb.WriteString("{{else}}")
				if err := c.emit(n.elseBody); err != nil {
					return err
				}
			}
			c.sb.WriteString("{{end}}")
		}
	}
	return nil
}

func (c *compiler) loopVar(name string) (int, bool) {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if c.scopes[i].name == name {
			return c.scopes[i].id, true
		}
	}
	return 0, false
}

// pathRef renders the lookup arguments for p: the template variable it
// starts from, that variable's name for error messages, and the remaining
// dotted keys.
func (c *compiler) pathRef(p *pathExpr) string {
	if id, ok := c.loopVar(p.segs[0]); ok {
		return fmt.Sprintf("$v%d %q %q", id, p.segs[0], strings.Join(p.segs[1:], "."))
	}
	return fmt.Sprintf("$ %q %q", "", strings.Join(p.segs, "."))
}

func unparen(e expr) expr {
	for {
		p, ok := e.(*parenExpr)
		if !ok {
			return e
		}
		e = p.x
	}
}

func (c *compiler) expr(e expr) (string, error) {
	switch e := e.(type) {
	case *pathExpr:
		return "(lookup " + c.pathRef(e) + ")", nil

	case *literalExpr:
		switch v := e.value.(type) {
		case bool:
			return strconv.FormatBool(v), nil
		case string:
			return strconv.Quote(v), nil
		case int:
			return strconv.Itoa(v), nil
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64), nil
		}
		return "", fmt.Errorf("unsupported literal %T", e.value)

	case *parenExpr:
		return c.expr(e.x)

	case *notExpr:
		x, err := c.expr(e.x)
		if err != nil {
			return "", err
		}
		return "(not (truth " + x + "))", nil

	case *binaryExpr:
		l, err := c.expr(e.l)
		if err != nil {
			return "", err
		}
		r, err := c.expr(e.r)
		if err != nil {
			return "", err
		}
		switch e.op {
		case "&&":
			return "(and (truth " + l + ") (truth " + r + "))", nil
		case "||":
			return "(or (truth " + l + ") (truth " + r + "))", nil
		case "==":
			return "(equals " + l + " " + r + ")", nil
		case "!=":
			return "(not (equals " + l + " " + r + "))", nil
		}
		return "", fmt.Errorf("unsupported operator %s", e.op)

	case *existsExpr:
		p, ok := unparen(e.x).(*pathExpr)
		if !ok {
			return "", fmt.Errorf("'??' can only follow a variable name")
		}
		return "(exists " + c.pathRef(p) + ")", nil

	case *defaultExpr:
		p, ok := unparen(e.x).(*pathExpr)
		if !ok {
			return "", fmt.Errorf("'!' default can only follow a variable name")
		}
		fallback := `""`
		if e.fallback != nil {
			var err error
			if fallback, err = c.expr(e.fallback); err != nil {
				return "", err
			}
		}
		return "(orDefault " + c.pathRef(p) + " " + fallback + ")", nil

	case *builtinExpr:
		return c.builtin(e)
	}
	return "", fmt.Errorf("unsupported expression %T", e)
}

func (c *compiler) builtin(e *builtinExpr) (string, error) {
	switch e.name {
	case "index", "counter", "has_next":
		p, ok := unparen(e.x).(*pathExpr)
		if !ok || len(p.segs) != 1 {
			return "", fmt.Errorf("?%s can only be applied to a loop variable", e.name)
		}
		id, ok := c.loopVar(p.segs[0])
		if !ok {
			return "", fmt.Errorf("?%s: %q is not a loop variable", e.name, p.segs[0])
		}
		switch e.name {
		case "index":
			return fmt.Sprintf("$i%d", id), nil
		case "counter":
			return fmt.Sprintf("(add1 $i%d)", id), nil
		default:
			return fmt.Sprintf("(lt (add1 $i%d) (len $s%d))", id, id), nil
		}

	case "has_content":
		if p, ok := unparen(e.x).(*pathExpr); ok {
			return "(hasContent " + c.pathRef(p) + ")", nil
		}
	}

	if _, ok := builtins[e.name]; !ok {
		return "", fmt.Errorf("unknown built-in ?%s", e.name)
	}

	x, err := c.expr(e.x)
	if err != nil {
		return "", err
	}
	code := fmt.Sprintf("(builtin %q %s", e.name, x)
	for _, a := range e.args {
		arg, err := c.expr(a)
		if err != nil {
			return "", err
		}
		code += " " + arg
	}
	return code + ")", nil
}
