package object

import (
	"regexp"
	"strconv"
)

const maxInspectDepth = 3

type nestedInspector interface {
	inspectAt(depth int) string
}

// inspect renders obj for display inside a container.
func inspect(obj Object, depth int) string {
	if obj == nil {
		return "undefined"
	}
	if s, ok := obj.(*String); ok {
		if depth == 0 {
			return strconv.Quote(s.value)
		}
		return quoteSingle(s.value)
	}
	if n, ok := obj.(nestedInspector); ok {
		return n.inspectAt(depth)
	}
	return obj.Inspect()
}

func quoteSingle(s string) string {
	q := strconv.Quote(s)
	body := q[1 : len(q)-1]
	out := make([]byte, 0, len(body)+2)
	out = append(out, '\'')
	for i := 0; i < len(body); i++ {
		switch {
		case body[i] == '\\' && i+1 < len(body) && body[i+1] == '"':
			out = append(out, '"')
			i++
		case body[i] == '\'':
			out = append(out, '\\', '\'')
		default:
			out = append(out, body[i])
		}
	}
	return string(append(out, '\''))
}

var identifierKey = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

func inspectKey(k string) string {
	if identifierKey.MatchString(k) {
		return k
	}
	return quoteSingle(k)
}

const maxExportDepth = 64

// export converts obj to plain Go values: nil, bool, float64, string,
// []any and map[string]any. Cycles and deep nesting are cut off with nil.
func export(obj Object, depth int) any {
	if depth > maxExportDepth {
		return nil
	}
	switch o := obj.(type) {
	case *Array:
		out := make([]any, o.Len())
		for i := range out {
			out[i] = export(o.Get(i), depth+1)
		}
		return out
	case *Dict:
		out := make(map[string]any, o.props.Len())
		if o.IsError() {
			out["name"] = exportLookup(o, "name")
			out["message"] = exportLookup(o, "message")
		}
		for _, k := range o.props.Keys() {
			v, _ := o.props.Get(k)
			out[k] = export(v, depth+1)
		}
		return out
	case *Namespace:
		out := make(map[string]any, len(o.keys))
		for _, k := range o.keys {
			if v, _, err := o.Get(k); err == nil {
				out[k] = export(v, depth+1)
			}
		}
		return out
	case nil:
		return nil
	}
	return obj.Interface()
}

func exportLookup(d *Dict, key string) any {
	if v, ok := d.Lookup(key); ok {
		return v.Interface()
	}
	return nil
}
