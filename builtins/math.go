package builtins

import (
	"context"
	"math"
	"math/rand/v2"

	"github.com/deepnoodle-ai/jsrt/object"
)

func (b *installer) math() {
	m := object.NewDictWithClass(b.realm.ObjectPrototype, "Math")
	constants := map[string]float64{
		"PI":      math.Pi,
		"E":       math.E,
		"LN2":     math.Ln2,
		"LN10":    math.Ln10,
		"LOG2E":   math.Log2E,
		"LOG10E":  math.Log10E,
		"SQRT2":   math.Sqrt2,
		"SQRT1_2": math.Sqrt2 / 2,
	}
	for name, value := range constants {
		m.SetHidden(name, object.NewNumber(value))
	}

	unary := map[string]func(float64) float64{
		"abs":   math.Abs,
		"floor": math.Floor,
		"ceil":  math.Ceil,
		"trunc": math.Trunc,
		"round": round,
		"sign":  sign,
		"sqrt":  math.Sqrt,
		"cbrt":  math.Cbrt,
		"exp":   math.Exp,
		"expm1": math.Expm1,
		"log":   math.Log,
		"log2":  math.Log2,
		"log10": math.Log10,
		"log1p": math.Log1p,
		"sin":   math.Sin,
		"cos":   math.Cos,
		"tan":   math.Tan,
		"asin":  math.Asin,
		"acos":  math.Acos,
		"atan":  math.Atan,
		"sinh":  math.Sinh,
		"cosh":  math.Cosh,
		"tanh":  math.Tanh,
		"fround": func(f float64) float64 {
			return float64(float32(f))
		},
	}
	for name, fn := range unary {
		b.method(m, name, 1, func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
			f, err := object.ToNumber(ctx, arg(args, 0))
			if err != nil {
				return nil, err
			}
			return object.NewNumber(fn(f)), nil
		})
	}

	binary := map[string]func(x, y float64) float64{
		"pow":   object.Pow,
		"atan2": math.Atan2,
	}
	for name, fn := range binary {
		b.method(m, name, 2, func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
			x, err := object.ToNumber(ctx, arg(args, 0))
			if err != nil {
				return nil, err
			}
			y, err := object.ToNumber(ctx, arg(args, 1))
			if err != nil {
				return nil, err
			}
			return object.NewNumber(fn(x, y)), nil
		})
	}

	variadic := map[string]struct {
		init float64
		fold func(acc, f float64) float64
	}{
		"max":   {math.Inf(-1), jsMax},
		"min":   {math.Inf(1), jsMin},
		"hypot": {0, math.Hypot},
	}
	for name, v := range variadic {
		b.method(m, name, 2, func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
			acc := v.init
			for _, a := range args {
				f, err := object.ToNumber(ctx, a)
				if err != nil {
					return nil, err
				}
				acc = v.fold(acc, f)
			}
			return object.NewNumber(acc), nil
		})
	}

	b.method(m, "random", 0, func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
		return object.NewNumber(rand.Float64()), nil
	})
	b.realm.DefineGlobal("Math", m)
}

// round rounds half up toward positive infinity.
func round(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) || f == math.Trunc(f) {
		return f
	}
	if f < 0 && f >= -0.5 {
		return math.Copysign(0, -1)
	}
	r := math.Floor(f)
	if f-r >= 0.5 {
		r++
	}
	return r
}

func sign(f float64) float64 {
	switch {
	case f > 0:
		return 1
	case f < 0:
		return -1
	}
	return f
}

func jsMax(a, b float64) float64 {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.NaN()
	}
	return math.Max(a, b)
}

func jsMin(a, b float64) float64 {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.NaN()
	}
	return math.Min(a, b)
}
