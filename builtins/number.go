package builtins

import (
	"context"
	"math"
	"math/big"
	"regexp"
	"strconv"
	"strings"

	"github.com/deepnoodle-ai/jsrt/errz"
	"github.com/deepnoodle-ai/jsrt/object"
)

const maxSafeInteger = 1<<53 - 1

func (b *installer) numbers() {
	realm := b.realm
	proto := realm.NumberPrototype

	convert := func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
		if len(args) == 0 {
			return object.Zero, nil
		}
		f, err := object.ToNumber(ctx, args[0])
		if err != nil {
			return nil, err
		}
		return object.NewNumber(f), nil
	}
	ctor := b.constructor("Number", 1, proto, convert, nil)

	constants := map[string]float64{
		"MAX_SAFE_INTEGER":  maxSafeInteger,
		"MIN_SAFE_INTEGER":  -maxSafeInteger,
		"MAX_VALUE":         math.MaxFloat64,
		"MIN_VALUE":         math.SmallestNonzeroFloat64,
		"EPSILON":           math.Nextafter(1, 2) - 1,
		"POSITIVE_INFINITY": math.Inf(1),
		"NEGATIVE_INFINITY": math.Inf(-1),
		"NaN":               math.NaN(),
	}
	for name, value := range constants {
		ctor.SetHidden(name, object.NewNumber(value))
	}

	predicate := func(name string, test func(f float64) bool) {
		b.method(ctor, name, 1, func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
			n, ok := arg(args, 0).(*object.Number)
			return object.NewBool(ok && test(n.Value())), nil
		})
	}
	predicate("isFinite", isFinite)
	predicate("isNaN", math.IsNaN)
	predicate("isInteger", func(f float64) bool {
		return isFinite(f) && f == math.Trunc(f)
	})
	predicate("isSafeInteger", func(f float64) bool {
		return isFinite(f) && f == math.Trunc(f) && math.Abs(f) <= maxSafeInteger
	})
	b.parseFloat = b.method(ctor, "parseFloat", 1, parseFloatBuiltin)
	b.parseInt = b.method(ctor, "parseInt", 2, parseIntBuiltin)

	method := func(name string, length int, fn func(ctx context.Context, x float64, args []object.Object) (object.Object, error)) {
		b.method(proto, name, length, func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
			n, ok := this.(*object.Number)
			if !ok {
				return nil, errz.TypeErrorf("Number.prototype.%s requires that 'this' be a Number", name)
			}
			return fn(ctx, n.Value(), args)
		})
	}
	method("valueOf", 0, func(ctx context.Context, x float64, args []object.Object) (object.Object, error) {
		return object.NewNumber(x), nil
	})
	method("toString", 1, func(ctx context.Context, x float64, args []object.Object) (object.Object, error) {
		radix := 10
		if r := arg(args, 0); r != object.Undefined {
			f, err := toIntegerOrInfinity(ctx, r)
			if err != nil {
				return nil, err
			}
			if f < 2 || f > 36 {
				return nil, errz.RangeErrorf("toString() radix must be between 2 and 36")
			}
			radix = int(f)
		}
		return object.NewString(formatRadix(x, radix)), nil
	})
	method("toFixed", 1, func(ctx context.Context, x float64, args []object.Object) (object.Object, error) {
		digits, err := toIntegerOrInfinity(ctx, arg(args, 0))
		if err != nil {
			return nil, err
		}
		if digits < 0 || digits > 100 {
			return nil, errz.RangeErrorf("toFixed() digits argument must be between 0 and 100")
		}
		if !isFinite(x) || math.Abs(x) >= 1e21 {
			return object.NewString(object.FormatNumber(x)), nil
		}
		return object.NewString(toFixed(x, int(digits))), nil
	})
	method("toPrecision", 1, func(ctx context.Context, x float64, args []object.Object) (object.Object, error) {
		if arg(args, 0) == object.Undefined || !isFinite(x) {
			return object.NewString(object.FormatNumber(x)), nil
		}
		p, err := toIntegerOrInfinity(ctx, args[0])
		if err != nil {
			return nil, err
		}
		if p < 1 || p > 100 {
			return nil, errz.RangeErrorf("toPrecision() argument must be between 1 and 100")
		}
		return object.NewString(toPrecision(x, int(p))), nil
	})
}

func (b *installer) booleans() {
	proto := b.realm.BooleanPrototype
	convert := func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
		return object.NewBool(object.ToBoolean(arg(args, 0))), nil
	}
	b.constructor("Boolean", 1, proto, convert, nil)

	thisBool := func(this object.Object, name string) (*object.Bool, error) {
		v, ok := this.(*object.Bool)
		if !ok {
			return nil, errz.TypeErrorf("Boolean.prototype.%s requires that 'this' be a Boolean", name)
		}
		return v, nil
	}
	b.method(proto, "toString", 0, func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
		v, err := thisBool(this, "toString")
		if err != nil {
			return nil, err
		}
		return object.NewString(v.Inspect()), nil
	})
	b.method(proto, "valueOf", 0, func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
		return thisBool(this, "valueOf")
	})
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// toFixed rounds the exact binary value of x to digits decimal places,
// breaking ties away from zero.
func toFixed(x float64, digits int) string {
	sign := ""
	if x < 0 {
		sign = "-"
		x = -x
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	r := new(big.Rat).SetFloat64(x)
	r.Mul(r, new(big.Rat).SetInt(scale))
	r.Add(r, big.NewRat(1, 2))
	n := new(big.Int).Quo(r.Num(), r.Denom())
	s := n.String()
	if digits == 0 {
		return sign + s
	}
	if len(s) <= digits {
		s = strings.Repeat("0", digits-len(s)+1) + s
	}
	return sign + s[:len(s)-digits] + "." + s[len(s)-digits:]
}

func toPrecision(x float64, p int) string {
	if x == 0 {
		if p == 1 {
			return "0"
		}
		return "0." + strings.Repeat("0", p-1)
	}
	sign := ""
	if x < 0 {
		sign = "-"
		x = -x
	}
	formatted := strconv.FormatFloat(x, 'e', p-1, 64)
	mantissa, expPart, _ := strings.Cut(formatted, "e")
	e, _ := strconv.Atoi(expPart)
	digits := strings.Replace(mantissa, ".", "", 1)
	if e < -6 || e >= p {
		out := digits[:1]
		if len(digits) > 1 {
			out += "." + digits[1:]
		}
		if e >= 0 {
			return sign + out + "e+" + strconv.Itoa(e)
		}
		return sign + out + "e-" + strconv.Itoa(-e)
	}
	if e >= 0 {
		if e+1 == len(digits) {
			return sign + digits
		}
		return sign + digits[:e+1] + "." + digits[e+1:]
	}
	return sign + "0." + strings.Repeat("0", -e-1) + digits
}

// formatRadix renders x in the given base, with up to 52 fractional digits.
func formatRadix(x float64, radix int) string {
	if radix == 10 || !isFinite(x) {
		return object.FormatNumber(x)
	}
	if x == math.Trunc(x) && math.Abs(x) <= maxSafeInteger {
		return strconv.FormatInt(int64(x), radix)
	}
	sign := ""
	if x < 0 {
		sign = "-"
		x = -x
	}
	whole := math.Trunc(x)
	intPart, _ := new(big.Float).SetFloat64(whole).Int(nil)
	out := intPart.Text(radix)
	frac := x - whole
	if frac == 0 {
		return sign + out
	}
	const digitChars = "0123456789abcdefghijklmnopqrstuvwxyz"
	var sb strings.Builder
	for i := 0; i < 52 && frac > 0; i++ {
		frac *= float64(radix)
		d := int(frac)
		sb.WriteByte(digitChars[d])
		frac -= float64(d)
	}
	return sign + out + "." + strings.TrimRight(sb.String(), "0")
}

var floatPrefix = regexp.MustCompile(`^[+-]?(Infinity|(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?)`)

func parseFloatBuiltin(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
	s, err := object.ToString(ctx, arg(args, 0))
	if err != nil {
		return nil, err
	}
	s = strings.TrimLeftFunc(s, isSpace)
	m := floatPrefix.FindString(s)
	if m == "" {
		return object.NaN, nil
	}
	return object.NewNumber(object.StringToNumber(m)), nil
}

func parseIntBuiltin(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
	s, err := object.ToString(ctx, arg(args, 0))
	if err != nil {
		return nil, err
	}
	r, err := object.ToNumber(ctx, arg(args, 1))
	if err != nil {
		return nil, err
	}
	radix := int(object.ToInt32(r))
	s = strings.TrimLeftFunc(s, isSpace)
	sign := 1.0
	if s != "" && (s[0] == '+' || s[0] == '-') {
		if s[0] == '-' {
			sign = -1
		}
		s = s[1:]
	}
	stripPrefix := true
	switch {
	case radix == 0:
		radix = 10
	case radix < 2 || radix > 36:
		return object.NaN, nil
	case radix != 16:
		stripPrefix = false
	}
	if stripPrefix && len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
		radix = 16
	}
	result := 0.0
	n := 0
	for ; n < len(s); n++ {
		d := digitValue(s[n])
		if d >= radix {
			break
		}
		result = result*float64(radix) + float64(d)
	}
	if n == 0 {
		return object.NaN, nil
	}
	if radix == 10 && n > 15 {
		// Go through the decimal parser so long inputs round correctly.
		if f, err := strconv.ParseFloat(s[:n], 64); err == nil {
			result = f
		}
	}
	return object.NewNumber(sign * result), nil
}

func digitValue(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'z':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'Z':
		return int(c-'A') + 10
	}
	return 36
}
