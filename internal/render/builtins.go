package render

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"text/template"
	"unicode"
	"unicode/utf8"
)

// evalError is returned by template functions so Execute can surface the
// message without text/template's position prefix.
type evalError struct {
	msg string
}

func (e *evalError) Error() string { return e.msg }

func evalErrorf(format string, args ...interface{}) error {
	return &evalError{msg: fmt.Sprintf(format, args...)}
}

func runtimeFuncs() template.FuncMap {
	return template.FuncMap{
		"lookup":     lookup,
		"exists":     exists,
		"orDefault":  orDefault,
		"hasContent": hasContentAt,
		"truth":      truth,
		"equals":     equals,
		"display":    display,
		"iterable":   iterable,
		"builtin":    applyBuiltin,
		"add1":       func(i int) int { return i + 1 },
	}
}

func joinPath(prefix, seg string) string {
	if prefix == "" {
		return seg
	}
	return prefix + "." + seg
}

func walk(base interface{}, prefix, rest string) (interface{}, error) {
	if base == nil {
		return nil, evalErrorf("%q is null", prefix)
	}
	if rest == "" {
		return base, nil
	}

	cur, name := base, prefix
	for _, seg := range strings.Split(rest, ".") {
		next, isHash, found := child(cur, seg)
		if !isHash {
			return nil, evalErrorf("%q is not a hash, cannot read %q", name, seg)
		}
		name = joinPath(name, seg)
		if !found {
			return nil, evalErrorf("%q is missing from the model", name)
		}
		if next == nil {
			return nil, evalErrorf("%q is null", name)
		}
		cur = next
	}
	return cur, nil
}

func child(v interface{}, key string) (interface{}, bool, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		c, ok := m[key]
		return c, true, ok
	case map[string]string:
		c, ok := m[key]
		return c, true, ok
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String {
		c := rv.MapIndex(reflect.ValueOf(key).Convert(rv.Type().Key()))
		if !c.IsValid() {
			return nil, true, false
		}
		return c.Interface(), true, true
	}
	return nil, false, false
}

func lookup(base interface{}, prefix, rest string) (interface{}, error) {
	return walk(base, prefix, rest)
}

func exists(base interface{}, prefix, rest string) bool {
	_, err := walk(base, prefix, rest)
	return err == nil
}

func orDefault(base interface{}, prefix, rest string, fallback interface{}) interface{} {
	v, err := walk(base, prefix, rest)
	if err != nil {
		return fallback
	}
	return v
}

func hasContentAt(base interface{}, prefix, rest string) bool {
	v, err := walk(base, prefix, rest)
	if err != nil {
		return false
	}
	return hasContent(v)
}

func hasContent(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return x != ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() > 0
	}
	return true
}

func truth(v interface{}) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, evalErrorf("condition must be a boolean, got %s", typeName(v))
	}
	return b, nil
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func equals(a, b interface{}) (bool, error) {
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			return af == bf, nil
		}
		return false, evalErrorf("cannot compare number with %s", typeName(b))
	}

	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return av == bv, nil
		}
	case bool:
		if bv, ok := b.(bool); ok {
			return av == bv, nil
		}
	default:
		return false, evalErrorf("cannot compare %s values", typeName(a))
	}
	return false, evalErrorf("cannot compare %s with %s", typeName(a), typeName(b))
}

func formatNumber(v interface{}) (string, bool) {
	if n, ok := v.(json.Number); ok {
		return n.String(), true
	}
	f, ok := toFloat(v)
	if !ok {
		return "", false
	}
	return strconv.FormatFloat(f, 'f', -1, 64), true
}

func display(v interface{}) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case bool:
		return "", evalErrorf("a boolean cannot be printed directly, use ?c or ?string")
	case fmt.Stringer:
		return x.String(), nil
	}
	if s, ok := formatNumber(v); ok {
		return s, nil
	}
	return "", evalErrorf("cannot print a value of type %s", typeName(v))
}

func iterable(v interface{}) ([]interface{}, error) {
	switch s := v.(type) {
	case []interface{}:
		return s, nil
	case []string:
		out := make([]interface{}, len(s))
		for i, x := range s {
			out[i] = x
		}
		return out, nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		out := make([]interface{}, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out, nil
	}
	return nil, evalErrorf("cannot list a value of type %s", typeName(v))
}

func typeName(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case map[string]interface{}:
		return "hash"
	case []interface{}:
		return "sequence"
	}
	if _, ok := toFloat(v); ok {
		return "number"
	}
	return fmt.Sprintf("%T", v)
}

type builtinFunc func(v interface{}, args []interface{}) (interface{}, error)

var builtins = map[string]builtinFunc{
	"upper_case":  stringBuiltin(strings.ToUpper),
	"lower_case":  stringBuiltin(strings.ToLower),
	"trim":        stringBuiltin(strings.TrimSpace),
	"cap_first":   stringBuiltin(capFirst),
	"length":      builtinLength,
	"size":        builtinSize,
	"has_content": func(v interface{}, _ []interface{}) (interface{}, error) { return hasContent(v), nil },
	"string":      builtinString,
	"c":           builtinC,
}

func applyBuiltin(name string, v interface{}, args ...interface{}) (interface{}, error) {
	fn, ok := builtins[name]
	if !ok {
		return nil, evalErrorf("unknown built-in ?%s", name)
	}
	return fn(v, args)
}

func stringBuiltin(fn func(string) string) builtinFunc {
	return func(v interface{}, _ []interface{}) (interface{}, error) {
		s, ok := v.(string)
		if !ok {
			return nil, evalErrorf("expected a string, got %s", typeName(v))
		}
		return fn(s), nil
	}
}

func capFirst(s string) string {
	for i, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		return s[:i] + string(unicode.ToUpper(r)) + s[i+utf8.RuneLen(r):]
	}
	return s
}

func builtinLength(v interface{}, _ []interface{}) (interface{}, error) {
	s, ok := v.(string)
	if !ok {
		return nil, evalErrorf("?length expects a string, got %s", typeName(v))
	}
	return utf8.RuneCountInString(s), nil
}

func builtinSize(v interface{}, _ []interface{}) (interface{}, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len(), nil
	}
	return nil, evalErrorf("?size expects a sequence or hash, got %s", typeName(v))
}

func builtinString(v interface{}, args []interface{}) (interface{}, error) {
	if b, ok := v.(bool); ok {
		switch len(args) {
		case 0:
			return strconv.FormatBool(b), nil
		case 2:
			if b {
				return display(args[0])
			}
			return display(args[1])
		}
		return nil, evalErrorf("?string on a boolean takes zero or two arguments")
	}
	if len(args) != 0 {
		return nil, evalErrorf("?string only takes arguments on booleans")
	}
	return display(v)
}

func builtinC(v interface{}, _ []interface{}) (interface{}, error) {
	switch x := v.(type) {
	case bool:
		return strconv.FormatBool(x), nil
	case string:
		return x, nil
	}
	if s, ok := formatNumber(v); ok {
		return s, nil
	}
	return nil, evalErrorf("?c cannot format %s", typeName(v))
}
