package builtins

import (
	"context"
	"math"
	"slices"
	"strings"
	"unicode"
	"unicode/utf16"

	"github.com/deepnoodle-ai/jsrt/errz"
	"github.com/deepnoodle-ai/jsrt/object"
)

// String methods index by UTF-16 code unit, so they work on the Units() form
// of the receiver.

func (b *installer) strings() {
	realm := b.realm
	proto := realm.StringPrototype

	convert := func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
		if len(args) == 0 {
			return object.EmptyString, nil
		}
		return toString(ctx, args[0])
	}
	ctor := b.constructor("String", 1, proto, convert, nil)

	b.method(ctor, "fromCharCode", 1, func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
		units := make([]uint16, len(args))
		for i, a := range args {
			f, err := object.ToNumber(ctx, a)
			if err != nil {
				return nil, err
			}
			units[i] = uint16(object.ToUint32(f))
		}
		return object.NewString(string(utf16.Decode(units))), nil
	})
	b.method(ctor, "fromCodePoint", 1, func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
		runes := make([]rune, len(args))
		for i, a := range args {
			f, err := object.ToNumber(ctx, a)
			if err != nil {
				return nil, err
			}
			if f < 0 || f > 0x10FFFF || f != object.ToInteger(f) {
				return nil, errz.RangeErrorf("Invalid code point %s", object.FormatNumber(f))
			}
			runes[i] = rune(f)
		}
		return object.NewString(string(runes)), nil
	})

	method := func(name string, length int, fn func(ctx context.Context, s *object.String, args []object.Object) (object.Object, error)) {
		b.method(proto, name, length, func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
			s, err := thisString(ctx, this, name)
			if err != nil {
				return nil, err
			}
			return fn(ctx, s, args)
		})
	}

	method("toString", 0, func(ctx context.Context, s *object.String, args []object.Object) (object.Object, error) {
		return s, nil
	})
	method("valueOf", 0, func(ctx context.Context, s *object.String, args []object.Object) (object.Object, error) {
		return s, nil
	})
	method("charAt", 1, func(ctx context.Context, s *object.String, args []object.Object) (object.Object, error) {
		i, err := toIntegerOrInfinity(ctx, arg(args, 0))
		if err != nil {
			return nil, err
		}
		if c, ok := s.At(int(i)); ok && i >= 0 {
			return object.NewString(c), nil
		}
		return object.EmptyString, nil
	})
	method("charCodeAt", 1, func(ctx context.Context, s *object.String, args []object.Object) (object.Object, error) {
		i, err := toIntegerOrInfinity(ctx, arg(args, 0))
		if err != nil {
			return nil, err
		}
		if i < 0 || i >= float64(s.Len()) {
			return object.NaN, nil
		}
		return object.NewNumber(float64(s.Units()[int(i)])), nil
	})
	method("codePointAt", 1, func(ctx context.Context, s *object.String, args []object.Object) (object.Object, error) {
		i, err := toIntegerOrInfinity(ctx, arg(args, 0))
		if err != nil {
			return nil, err
		}
		units := s.Units()
		if i < 0 || i >= float64(len(units)) {
			return object.Undefined, nil
		}
		n := int(i)
		if utf16.IsSurrogate(rune(units[n])) && n+1 < len(units) {
			if r := utf16.DecodeRune(rune(units[n]), rune(units[n+1])); r != unicode.ReplacementChar {
				return object.NewNumber(float64(r)), nil
			}
		}
		return object.NewNumber(float64(units[n])), nil
	})
	method("at", 1, func(ctx context.Context, s *object.String, args []object.Object) (object.Object, error) {
		i, err := toIntegerOrInfinity(ctx, arg(args, 0))
		if err != nil {
			return nil, err
		}
		if i < 0 {
			i += float64(s.Len())
		}
		if c, ok := s.At(int(i)); ok && i >= 0 {
			return object.NewString(c), nil
		}
		return object.Undefined, nil
	})
	method("indexOf", 1, func(ctx context.Context, s *object.String, args []object.Object) (object.Object, error) {
		needle, err := toString(ctx, arg(args, 0))
		if err != nil {
			return nil, err
		}
		from, err := clampIndex(ctx, arg(args, 1), s.Len(), 0)
		if err != nil {
			return nil, err
		}
		return object.NewNumber(float64(indexUnits(s.Units(), needle.Units(), from))), nil
	})
	method("lastIndexOf", 1, func(ctx context.Context, s *object.String, args []object.Object) (object.Object, error) {
		needle, err := toString(ctx, arg(args, 0))
		if err != nil {
			return nil, err
		}
		from := s.Len()
		if pos := arg(args, 1); pos != object.Undefined {
			f, err := object.ToNumber(ctx, pos)
			if err != nil {
				return nil, err
			}
			if !math.IsNaN(f) {
				from = int(max(0, min(object.ToInteger(f), float64(s.Len()))))
			}
		}
		return object.NewNumber(float64(lastIndexUnits(s.Units(), needle.Units(), from))), nil
	})
	method("includes", 1, func(ctx context.Context, s *object.String, args []object.Object) (object.Object, error) {
		needle, err := toString(ctx, arg(args, 0))
		if err != nil {
			return nil, err
		}
		from, err := clampIndex(ctx, arg(args, 1), s.Len(), 0)
		if err != nil {
			return nil, err
		}
		return object.NewBool(indexUnits(s.Units(), needle.Units(), from) >= 0), nil
	})
	method("startsWith", 1, func(ctx context.Context, s *object.String, args []object.Object) (object.Object, error) {
		needle, err := toString(ctx, arg(args, 0))
		if err != nil {
			return nil, err
		}
		from, err := clampIndex(ctx, arg(args, 1), s.Len(), 0)
		if err != nil {
			return nil, err
		}
		units, n := s.Units(), needle.Units()
		return object.NewBool(from+len(n) <= len(units) && slices.Equal(units[from:from+len(n)], n)), nil
	})
	method("endsWith", 1, func(ctx context.Context, s *object.String, args []object.Object) (object.Object, error) {
		needle, err := toString(ctx, arg(args, 0))
		if err != nil {
			return nil, err
		}
		end, err := clampIndex(ctx, arg(args, 1), s.Len(), s.Len())
		if err != nil {
			return nil, err
		}
		units, n := s.Units(), needle.Units()
		return object.NewBool(end-len(n) >= 0 && slices.Equal(units[end-len(n):end], n)), nil
	})
	method("slice", 2, func(ctx context.Context, s *object.String, args []object.Object) (object.Object, error) {
		start, end, err := sliceBounds(ctx, args, s.Len())
		if err != nil {
			return nil, err
		}
		if start >= end {
			return object.EmptyString, nil
		}
		return object.NewString(s.Slice(start, end)), nil
	})
	method("substring", 2, func(ctx context.Context, s *object.String, args []object.Object) (object.Object, error) {
		start, err := clampIndex(ctx, arg(args, 0), s.Len(), 0)
		if err != nil {
			return nil, err
		}
		end, err := clampIndex(ctx, arg(args, 1), s.Len(), s.Len())
		if err != nil {
			return nil, err
		}
		if start > end {
			start, end = end, start
		}
		return object.NewString(s.Slice(start, end)), nil
	})
	method("toUpperCase", 0, func(ctx context.Context, s *object.String, args []object.Object) (object.Object, error) {
		return object.NewString(strings.ToUpper(s.Value())), nil
	})
	method("toLowerCase", 0, func(ctx context.Context, s *object.String, args []object.Object) (object.Object, error) {
		return object.NewString(strings.ToLower(s.Value())), nil
	})
	method("trim", 0, func(ctx context.Context, s *object.String, args []object.Object) (object.Object, error) {
		return object.NewString(strings.TrimFunc(s.Value(), isSpace)), nil
	})
	method("trimStart", 0, func(ctx context.Context, s *object.String, args []object.Object) (object.Object, error) {
		return object.NewString(strings.TrimLeftFunc(s.Value(), isSpace)), nil
	})
	method("trimEnd", 0, func(ctx context.Context, s *object.String, args []object.Object) (object.Object, error) {
		return object.NewString(strings.TrimRightFunc(s.Value(), isSpace)), nil
	})
	method("padStart", 2, func(ctx context.Context, s *object.String, args []object.Object) (object.Object, error) {
		pad, err := padding(ctx, s, args)
		if err != nil {
			return nil, err
		}
		return object.NewString(pad + s.Value()), nil
	})
	method("padEnd", 2, func(ctx context.Context, s *object.String, args []object.Object) (object.Object, error) {
		pad, err := padding(ctx, s, args)
		if err != nil {
			return nil, err
		}
		return object.NewString(s.Value() + pad), nil
	})
	method("repeat", 1, func(ctx context.Context, s *object.String, args []object.Object) (object.Object, error) {
		n, err := toIntegerOrInfinity(ctx, arg(args, 0))
		if err != nil {
			return nil, err
		}
		if n < 0 || math.IsInf(n, 1) {
			return nil, errz.RangeErrorf("Invalid count value: %s", object.FormatNumber(n))
		}
		if n*float64(s.Len()) > object.MaxStringLength {
			return nil, errz.RangeErrorf("Invalid string length")
		}
		if s.Len() == 0 {
			return object.EmptyString, nil
		}
		return object.NewString(strings.Repeat(s.Value(), int(n))), nil
	})
	method("concat", 1, func(ctx context.Context, s *object.String, args []object.Object) (object.Object, error) {
		var sb strings.Builder
		sb.WriteString(s.Value())
		for _, a := range args {
			part, err := object.ToString(ctx, a)
			if err != nil {
				return nil, err
			}
			sb.WriteString(part)
		}
		return object.NewString(sb.String()), nil
	})
	method("split", 2, func(ctx context.Context, s *object.String, args []object.Object) (object.Object, error) {
		limit := -1
		if l := arg(args, 1); l != object.Undefined {
			f, err := object.ToNumber(ctx, l)
			if err != nil {
				return nil, err
			}
			limit = int(object.ToUint32(f))
		}
		if arg(args, 0) == object.Undefined {
			if limit == 0 {
				return realm.NewArray(nil), nil
			}
			return realm.NewArray([]object.Object{s}), nil
		}
		sep, err := toString(ctx, args[0])
		if err != nil {
			return nil, err
		}
		var items []object.Object
		for _, part := range splitUnits(s.Units(), sep.Units()) {
			if limit >= 0 && len(items) >= limit {
				break
			}
			items = append(items, object.NewString(string(utf16.Decode(part))))
		}
		return realm.NewArray(items), nil
	})
	replace := func(all bool) func(ctx context.Context, s *object.String, args []object.Object) (object.Object, error) {
		return func(ctx context.Context, s *object.String, args []object.Object) (object.Object, error) {
			pattern, err := toString(ctx, arg(args, 0))
			if err != nil {
				return nil, err
			}
			fn, isFn := arg(args, 1).(object.Callable)
			var template string
			if !isFn {
				if template, err = object.ToString(ctx, arg(args, 1)); err != nil {
					return nil, err
				}
			}
			units, p := s.Units(), pattern.Units()
			var out []uint16
			pos := 0
			for {
				i := indexUnits(units, p, pos)
				if i < 0 {
					break
				}
				out = append(out, units[pos:i]...)
				var replacement string
				if isFn {
					result, err := fn.Call(ctx, object.Undefined, pattern, object.NewNumber(float64(i)), s)
					if err != nil {
						return nil, err
					}
					if replacement, err = object.ToString(ctx, result); err != nil {
						return nil, err
					}
				} else {
					replacement = expandReplacement(template, s, pattern.Value(), i, i+len(p))
				}
				out = append(out, utf16.Encode([]rune(replacement))...)
				pos = i + len(p)
				if !all {
					break
				}
				if len(p) == 0 {
					if pos >= len(units) {
						break
					}
					out = append(out, units[pos])
					pos++
				}
			}
			out = append(out, units[min(pos, len(units)):]...)
			return object.NewString(string(utf16.Decode(out))), nil
		}
	}
	method("replace", 2, replace(false))
	method("replaceAll", 2, replace(true))
}

func thisString(ctx context.Context, this object.Object, method string) (*object.String, error) {
	if object.IsNullish(this) {
		return nil, errz.TypeErrorf("String.prototype.%s called on null or undefined", method)
	}
	return toString(ctx, this)
}

// clampIndex converts a position argument and clamps it into [0, length].
func clampIndex(ctx context.Context, obj object.Object, length, def int) (int, error) {
	if obj == object.Undefined {
		return def, nil
	}
	f, err := toIntegerOrInfinity(ctx, obj)
	if err != nil {
		return 0, err
	}
	return int(max(0, min(f, float64(length)))), nil
}

func indexUnits(s, sub []uint16, from int) int {
	for i := from; i+len(sub) <= len(s); i++ {
		if slices.Equal(s[i:i+len(sub)], sub) {
			return i
		}
	}
	return -1
}

func lastIndexUnits(s, sub []uint16, from int) int {
	for i := min(from, len(s)-len(sub)); i >= 0; i-- {
		if slices.Equal(s[i:i+len(sub)], sub) {
			return i
		}
	}
	return -1
}

func splitUnits(s, sep []uint16) [][]uint16 {
	if len(sep) == 0 {
		parts := make([][]uint16, len(s))
		for i := range s {
			parts[i] = s[i : i+1]
		}
		return parts
	}
	var parts [][]uint16
	start := 0
	for {
		i := indexUnits(s, sep, start)
		if i < 0 {
			break
		}
		parts = append(parts, s[start:i])
		start = i + len(sep)
	}
	return append(parts, s[start:])
}

// expandReplacement substitutes the $ patterns of a replacement string.
func expandReplacement(template string, s *object.String, matched string, start, end int) string {
	if !strings.Contains(template, "$") {
		return template
	}
	var sb strings.Builder
	for i := 0; i < len(template); i++ {
		c := template[i]
		if c != '$' || i+1 == len(template) {
			sb.WriteByte(c)
			continue
		}
		switch template[i+1] {
		case '$':
			sb.WriteByte('$')
		case '&':
			sb.WriteString(matched)
		case '`':
			sb.WriteString(s.Slice(0, start))
		case '\'':
			sb.WriteString(s.Slice(end, s.Len()))
		default:
			sb.WriteByte(c)
			continue
		}
		i++
	}
	return sb.String()
}

// padding builds the fill for padStart and padEnd.
func padding(ctx context.Context, s *object.String, args []object.Object) (string, error) {
	target, err := toIntegerOrInfinity(ctx, arg(args, 0))
	if err != nil {
		return "", err
	}
	if target > object.MaxStringLength {
		return "", errz.RangeErrorf("Invalid string length")
	}
	fill := " "
	if f := arg(args, 1); f != object.Undefined {
		if fill, err = object.ToString(ctx, f); err != nil {
			return "", err
		}
	}
	missing := int(target) - s.Len()
	if missing <= 0 || fill == "" {
		return "", nil
	}
	fillStr := object.NewString(fill)
	units := make([]uint16, 0, missing)
	for len(units) < missing {
		units = append(units, fillStr.Units()...)
	}
	return string(utf16.Decode(units[:missing])), nil
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\v', '\f', '\r', 0xA0, 0x1680, 0x2028, 0x2029, 0x202F, 0x205F, 0x3000, 0xFEFF:
		return true
	}
	return r >= 0x2000 && r <= 0x200A
}
