package object

import (
	"context"
	"math"
	"regexp"
	"strconv"
	"strings"
)

func nan() float64 { return math.NaN() }

func itoa(i int) string { return strconv.Itoa(i) }

// FormatNumber converts a number to its string form: integers without a
// fraction, decimal notation for magnitudes in [1e-7, 1e21) and exponent
// notation otherwise, always using the shortest representation that round
// trips.
func FormatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}
	abs := math.Abs(f)
	if abs >= 1e-7 && abs < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	s := strconv.FormatFloat(f, 'e', -1, 64)
	mantissa, exp, _ := strings.Cut(s, "e")
	sign := exp[0]
	exp = strings.TrimLeft(exp[1:], "0")
	return mantissa + "e" + string(sign) + exp
}

var decimalLiteral = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

// StringToNumber converts a string to a number. Surrounding whitespace is
// ignored, the empty string is 0 and anything unparseable is NaN.
func StringToNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	switch s {
	case "Infinity", "+Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	}
	if len(s) > 2 && s[0] == '0' {
		base := 0
		switch s[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			v, err := strconv.ParseUint(s[2:], base, 64)
			if err != nil || strings.Contains(s, "_") {
				return math.NaN()
			}
			return float64(v)
		}
	}
	if !decimalLiteral.MatchString(s) {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return v
		}
		return math.NaN()
	}
	return v
}

// ToBoolean implements truthiness.
func ToBoolean(obj Object) bool {
	switch obj := obj.(type) {
	case *UndefinedType, *NullType:
		return false
	case *Bool:
		return obj.value
	case *Number:
		return obj.value != 0 && !math.IsNaN(obj.value)
	case *String:
		return obj.value != ""
	}
	return true
}

// ToPrimitive converts objects to a primitive by calling their valueOf and
// toString methods. hint is "number", "string" or "default".
func ToPrimitive(ctx context.Context, obj Object, hint string) (Object, error) {
	switch obj.(type) {
	case *UndefinedType, *NullType, *Bool, *Number, *String:
		return obj, nil
	}
	methods := []string{"valueOf", "toString"}
	if hint == "string" {
		methods = []string{"toString", "valueOf"}
	}
	for _, name := range methods {
		method, err := GetProperty(ctx, obj, name)
		if err != nil {
			return nil, err
		}
		fn, ok := method.(Callable)
		if !ok {
			continue
		}
		result, err := fn.Call(ctx, obj)
		if err != nil {
			return nil, err
		}
		switch result.(type) {
		case *UndefinedType, *NullType, *Bool, *Number, *String:
			return result, nil
		}
	}
	return nil, typeErrorf("Cannot convert object to primitive value")
}

// ToNumber converts a value to a number.
func ToNumber(ctx context.Context, obj Object) (float64, error) {
	switch obj := obj.(type) {
	case *UndefinedType:
		return math.NaN(), nil
	case *NullType:
		return 0, nil
	case *Bool:
		if obj.value {
			return 1, nil
		}
		return 0, nil
	case *Number:
		return obj.value, nil
	case *String:
		return StringToNumber(obj.value), nil
	}
	prim, err := ToPrimitive(ctx, obj, "number")
	if err != nil {
		return 0, err
	}
	return ToNumber(ctx, prim)
}

// ToString converts a value to a string.
func ToString(ctx context.Context, obj Object) (string, error) {
	switch obj := obj.(type) {
	case *UndefinedType, *NullType, *Bool:
		return obj.Inspect(), nil
	case *Number:
		return FormatNumber(obj.value), nil
	case *String:
		return obj.value, nil
	}
	prim, err := ToPrimitive(ctx, obj, "string")
	if err != nil {
		return "", err
	}
	return ToString(ctx, prim)
}

// ToPropertyKey converts a value used with [] to a property name.
func ToPropertyKey(ctx context.Context, obj Object) (string, error) {
	switch obj := obj.(type) {
	case *String:
		return obj.value, nil
	case *Number:
		return FormatNumber(obj.value), nil
	}
	return ToString(ctx, obj)
}

// ToInteger truncates toward zero; NaN becomes 0.
func ToInteger(f float64) float64 {
	if math.IsNaN(f) {
		return 0
	}
	return math.Trunc(f)
}

// ToInt32 implements the wrap-around conversion used by bitwise operators.
func ToInt32(f float64) int32 {
	return int32(ToUint32(f))
}

// ToUint32 implements the wrap-around conversion used by >>>.
func ToUint32(f float64) uint32 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	f = math.Mod(math.Trunc(f), 4294967296)
	if f < 0 {
		f += 4294967296
	}
	return uint32(f)
}

// Display renders a value the way console.log prints it: strings raw,
// everything else inspected.
func Display(obj Object) string {
	if s, ok := obj.(*String); ok {
		return s.value
	}
	if obj == nil {
		return "undefined"
	}
	return obj.Inspect()
}

// TypeOf implements the typeof operator.
func TypeOf(obj Object) string {
	switch obj.(type) {
	case *UndefinedType:
		return "undefined"
	case *NullType:
		return "object"
	case *Bool:
		return "boolean"
	case *Number:
		return "number"
	case *String:
		return "string"
	case Callable:
		return "function"
	}
	return "object"
}
