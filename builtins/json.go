package builtins

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/deepnoodle-ai/jsrt/errz"
	"github.com/deepnoodle-ai/jsrt/object"
)

func (b *installer) json() {
	realm := b.realm
	j := object.NewDictWithClass(realm.ObjectPrototype, "JSON")

	b.method(j, "stringify", 3, func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
		s := &stringifier{realm: realm, seen: map[object.Object]bool{}}
		switch r := arg(args, 1).(type) {
		case object.Callable:
			s.replacer = r
		case *object.Array:
			s.allow = map[string]bool{}
			for _, item := range r.Items() {
				switch item.(type) {
				case *object.String, *object.Number:
					key, err := object.ToPropertyKey(ctx, item)
					if err != nil {
						return nil, err
					}
					if !s.allow[key] {
						s.allow[key] = true
						s.allowOrder = append(s.allowOrder, key)
					}
				}
			}
		}
		switch space := arg(args, 2).(type) {
		case *object.Number:
			n := int(max(0, min(10, object.ToInteger(space.Value()))))
			s.indent = strings.Repeat(" ", n)
		case *object.String:
			s.indent = space.Slice(0, min(10, space.Len()))
		}
		holder := realm.NewObject()
		holder.Set("", arg(args, 0))
		var buf bytes.Buffer
		ok, err := s.property(ctx, &buf, holder, "", arg(args, 0), "")
		if err != nil {
			return nil, err
		}
		if !ok {
			return object.Undefined, nil
		}
		return object.NewString(buf.String()), nil
	})

	b.method(j, "parse", 2, func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
		text, err := object.ToString(ctx, arg(args, 0))
		if err != nil {
			return nil, err
		}
		value, err := parseJSON(realm, text)
		if err != nil {
			return nil, err
		}
		reviver, ok := arg(args, 1).(object.Callable)
		if !ok {
			return value, nil
		}
		holder := realm.NewObject()
		holder.Set("", value)
		return revive(ctx, reviver, holder, "")
	})

	b.realm.DefineGlobal("JSON", j)
}

type stringifier struct {
	realm      *object.Realm
	replacer   object.Callable
	allow      map[string]bool
	allowOrder []string
	indent     string
	seen       map[object.Object]bool
}

// property serializes holder[key] = value. It reports false when the value
// has no JSON representation (undefined and functions).
func (s *stringifier) property(ctx context.Context, buf *bytes.Buffer, holder object.Object, key string, value object.Object, prefix string) (bool, error) {
	if _, ok := value.(object.PropertyObject); ok {
		if toJSON, err := object.GetProperty(ctx, value, "toJSON"); err != nil {
			return false, err
		} else if fn, ok := toJSON.(object.Callable); ok {
			if value, err = fn.Call(ctx, value, object.NewString(key)); err != nil {
				return false, err
			}
		}
	}
	if s.replacer != nil {
		var err error
		if value, err = s.replacer.Call(ctx, holder, object.NewString(key), value); err != nil {
			return false, err
		}
	}
	switch v := value.(type) {
	case *object.UndefinedType:
		return false, nil
	case *object.NullType:
		buf.WriteString("null")
	case *object.Bool:
		buf.WriteString(v.Inspect())
	case *object.Number:
		if isFinite(v.Value()) {
			buf.WriteString(object.FormatNumber(v.Value()))
		} else {
			buf.WriteString("null")
		}
	case *object.String:
		quoteJSON(buf, v.Value())
	case object.Callable:
		return false, nil
	case *object.Array:
		return true, s.array(ctx, buf, v, prefix)
	case object.PropertyObject, *object.Namespace:
		return true, s.object(ctx, buf, v, prefix)
	default:
		return false, nil
	}
	return true, nil
}

func (s *stringifier) enter(obj object.Object) error {
	if s.seen[obj] {
		return errz.TypeErrorf("Converting circular structure to JSON")
	}
	s.seen[obj] = true
	return nil
}

func (s *stringifier) array(ctx context.Context, buf *bytes.Buffer, arr *object.Array, prefix string) error {
	if err := s.enter(arr); err != nil {
		return err
	}
	defer delete(s.seen, arr)
	if arr.Len() == 0 {
		buf.WriteString("[]")
		return nil
	}
	inner := prefix + s.indent
	buf.WriteByte('[')
	for i := 0; i < arr.Len(); i++ {
		if i > 0 {
			buf.WriteByte(',')
		}
		s.newline(buf, inner)
		ok, err := s.property(ctx, buf, arr, object.FormatNumber(float64(i)), arr.Get(i), inner)
		if err != nil {
			return err
		}
		if !ok {
			buf.WriteString("null")
		}
	}
	s.newline(buf, prefix)
	buf.WriteByte(']')
	return nil
}

func (s *stringifier) object(ctx context.Context, buf *bytes.Buffer, obj object.Object, prefix string) error {
	if err := s.enter(obj); err != nil {
		return err
	}
	defer delete(s.seen, obj)
	keys := s.allowOrder
	if s.allow == nil {
		keys = object.OwnKeys(obj)
	}
	inner := prefix + s.indent
	wrote := false
	buf.WriteByte('{')
	for _, key := range keys {
		if s.allow != nil && !object.HasOwnProperty(obj, key) {
			continue
		}
		value, err := object.GetProperty(ctx, obj, key)
		if err != nil {
			return err
		}
		mark := buf.Len()
		if wrote {
			buf.WriteByte(',')
		}
		s.newline(buf, inner)
		quoteJSON(buf, key)
		buf.WriteByte(':')
		if s.indent != "" {
			buf.WriteByte(' ')
		}
		ok, err := s.property(ctx, buf, obj, key, value, inner)
		if err != nil {
			return err
		}
		if !ok {
			buf.Truncate(mark)
			continue
		}
		wrote = true
	}
	if wrote {
		s.newline(buf, prefix)
	}
	buf.WriteByte('}')
	return nil
}

func (s *stringifier) newline(buf *bytes.Buffer, prefix string) {
	if s.indent == "" {
		return
	}
	buf.WriteByte('\n')
	buf.WriteString(prefix)
}

func quoteJSON(buf *bytes.Buffer, s string) {
	const hex = "0123456789abcdef"
	buf.WriteByte('"')
	for i := 0; i < len(s); {
		c := s[i]
		if c >= utf8.RuneSelf {
			r, size := utf8.DecodeRuneInString(s[i:])
			buf.WriteString(string(r))
			i += size
			continue
		}
		switch c {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if c < 0x20 {
				buf.WriteString(`\u00`)
				buf.WriteByte(hex[c>>4])
				buf.WriteByte(hex[c&0xF])
			} else {
				buf.WriteByte(c)
			}
		}
		i++
	}
	buf.WriteByte('"')
}

// parseJSON decodes text token by token so object keys keep their source
// order.
func parseJSON(realm *object.Realm, text string) (object.Object, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	value, err := decodeValue(realm, dec)
	if err != nil {
		return nil, jsonSyntaxError(err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errz.SyntaxErrorf("Unexpected non-whitespace character after JSON at position %d", dec.InputOffset())
	}
	return value, nil
}

func decodeValue(realm *object.Realm, dec *json.Decoder) (object.Object, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '[':
			var items []object.Object
			for dec.More() {
				v, err := decodeValue(realm, dec)
				if err != nil {
					return nil, err
				}
				items = append(items, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return realm.NewArray(items), nil
		case '{':
			obj := realm.NewObject()
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := kt.(string)
				if !ok {
					return nil, errors.New("expected string key")
				}
				v, err := decodeValue(realm, dec)
				if err != nil {
					return nil, err
				}
				obj.Set(key, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return obj, nil
		}
		return nil, errors.New("unexpected delimiter " + t.String())
	case string:
		return object.NewString(t), nil
	case json.Number:
		return object.NewNumber(object.StringToNumber(t.String())), nil
	case bool:
		return object.NewBool(t), nil
	case nil:
		return object.Null, nil
	}
	return nil, errors.New("unexpected token")
}

func jsonSyntaxError(err error) error {
	var syntax *json.SyntaxError
	switch {
	case errors.As(err, &syntax):
		return errz.SyntaxErrorf("%s in JSON at position %d", syntax.Error(), syntax.Offset)
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return errz.SyntaxErrorf("Unexpected end of JSON input")
	}
	return errz.SyntaxErrorf("%s in JSON", err.Error())
}

// revive applies a JSON.parse reviver bottom-up.
func revive(ctx context.Context, reviver object.Callable, holder object.PropertyObject, key string) (object.Object, error) {
	value, _ := holder.GetOwn(key)
	switch v := value.(type) {
	case *object.Array:
		for i := 0; i < v.Len(); i++ {
			revived, err := revive(ctx, reviver, v, object.FormatNumber(float64(i)))
			if err != nil {
				return nil, err
			}
			if err := v.SetIndex(i, revived); err != nil {
				return nil, err
			}
		}
	case *object.Dict:
		for _, k := range v.OwnKeys() {
			revived, err := revive(ctx, reviver, v, k)
			if err != nil {
				return nil, err
			}
			if revived == object.Undefined {
				v.DeleteOwn(k)
			} else {
				v.Set(k, revived)
			}
		}
	}
	return reviver.Call(ctx, holder, object.NewString(key), value)
}
