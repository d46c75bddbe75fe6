package object

import (
	"context"
	"math"

	"github.com/deepnoodle-ai/jsrt/op"
)

// StrictEquals implements ===.
func StrictEquals(a, b Object) bool {
	switch a := a.(type) {
	case *Number:
		if b, ok := b.(*Number); ok {
			return a.value == b.value
		}
		return false
	case *String:
		if b, ok := b.(*String); ok {
			return a.value == b.value
		}
		return false
	}
	return a == b
}

// SameValueZero is strict equality except that NaN equals NaN.
func SameValueZero(a, b Object) bool {
	if an, ok := a.(*Number); ok {
		if bn, ok := b.(*Number); ok && math.IsNaN(an.value) && math.IsNaN(bn.value) {
			return true
		}
	}
	return StrictEquals(a, b)
}

func isPrimitive(obj Object) bool {
	switch obj.(type) {
	case *UndefinedType, *NullType, *Bool, *Number, *String:
		return true
	}
	return false
}

// LooseEquals implements ==.
func LooseEquals(ctx context.Context, a, b Object) (bool, error) {
	if a.Type() == b.Type() {
		return StrictEquals(a, b), nil
	}
	if IsNullish(a) || IsNullish(b) {
		return IsNullish(a) && IsNullish(b), nil
	}
	switch {
	case isNumber(a) && isString(b):
		return a.(*Number).value == StringToNumber(b.(*String).value), nil
	case isString(a) && isNumber(b):
		return StringToNumber(a.(*String).value) == b.(*Number).value, nil
	case isBool(a):
		return LooseEquals(ctx, boolToNumber(a.(*Bool)), b)
	case isBool(b):
		return LooseEquals(ctx, a, boolToNumber(b.(*Bool)))
	case !isPrimitive(a) && isPrimitive(b):
		pa, err := ToPrimitive(ctx, a, "default")
		if err != nil {
			return false, err
		}
		return LooseEquals(ctx, pa, b)
	case isPrimitive(a) && !isPrimitive(b):
		pb, err := ToPrimitive(ctx, b, "default")
		if err != nil {
			return false, err
		}
		return LooseEquals(ctx, a, pb)
	}
	// Two objects of different kinds, e.g. an array and a function.
	return a == b, nil
}

func isNumber(obj Object) bool { _, ok := obj.(*Number); return ok }
func isString(obj Object) bool { _, ok := obj.(*String); return ok }
func isBool(obj Object) bool   { _, ok := obj.(*Bool); return ok }

func boolToNumber(b *Bool) *Number {
	if b.value {
		return NewNumber(1)
	}
	return Zero
}

// Compare evaluates a comparison operator.
func Compare(ctx context.Context, opType op.CompareOpType, a, b Object) (Object, error) {
	switch opType {
	case op.StrictEqual:
		return NewBool(StrictEquals(a, b)), nil
	case op.StrictNotEqual:
		return NewBool(!StrictEquals(a, b)), nil
	case op.Equal, op.NotEqual:
		eq, err := LooseEquals(ctx, a, b)
		if err != nil {
			return nil, err
		}
		return NewBool(eq == (opType == op.Equal)), nil
	}
	pa, err := ToPrimitive(ctx, a, "number")
	if err != nil {
		return nil, err
	}
	pb, err := ToPrimitive(ctx, b, "number")
	if err != nil {
		return nil, err
	}
	if sa, ok := pa.(*String); ok {
		if sb, ok := pb.(*String); ok {
			c := compareStrings(sa, sb)
			switch opType {
			case op.LessThan:
				return NewBool(c < 0), nil
			case op.LessThanOrEqual:
				return NewBool(c <= 0), nil
			case op.GreaterThan:
				return NewBool(c > 0), nil
			case op.GreaterThanOrEqual:
				return NewBool(c >= 0), nil
			}
		}
	}
	x, err := ToNumber(ctx, pa)
	if err != nil {
		return nil, err
	}
	y, err := ToNumber(ctx, pb)
	if err != nil {
		return nil, err
	}
	switch opType {
	case op.LessThan:
		return NewBool(x < y), nil
	case op.LessThanOrEqual:
		return NewBool(x <= y), nil
	case op.GreaterThan:
		return NewBool(x > y), nil
	case op.GreaterThanOrEqual:
		return NewBool(x >= y), nil
	}
	return nil, typeErrorf("unknown comparison operator %d", opType)
}

// compareStrings orders strings by UTF-16 code units.
func compareStrings(a, b *String) int {
	if a.isASCII() && b.isASCII() {
		switch {
		case a.value < b.value:
			return -1
		case a.value > b.value:
			return 1
		}
		return 0
	}
	au, bu := a.Units(), b.Units()
	for i := 0; i < len(au) && i < len(bu); i++ {
		if au[i] != bu[i] {
			if au[i] < bu[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(au) < len(bu):
		return -1
	case len(au) > len(bu):
		return 1
	}
	return 0
}

// CompareStrings orders two strings by UTF-16 code units.
func CompareStrings(a, b *String) int {
	return compareStrings(a, b)
}

// BinaryOp evaluates an arithmetic, bitwise or string concatenation
// operator.
func BinaryOp(ctx context.Context, opType op.BinaryOpType, a, b Object) (Object, error) {
	if an, ok := a.(*Number); ok {
		if bn, ok := b.(*Number); ok {
			return numberOp(opType, an.value, bn.value)
		}
	}
	if opType == op.Add {
		pa, err := ToPrimitive(ctx, a, "default")
		if err != nil {
			return nil, err
		}
		pb, err := ToPrimitive(ctx, b, "default")
		if err != nil {
			return nil, err
		}
		if isString(pa) || isString(pb) {
			sa, err := ToString(ctx, pa)
			if err != nil {
				return nil, err
			}
			sb, err := ToString(ctx, pb)
			if err != nil {
				return nil, err
			}
			return NewString(sa + sb), nil
		}
		a, b = pa, pb
	}
	x, err := ToNumber(ctx, a)
	if err != nil {
		return nil, err
	}
	y, err := ToNumber(ctx, b)
	if err != nil {
		return nil, err
	}
	return numberOp(opType, x, y)
}

func numberOp(opType op.BinaryOpType, x, y float64) (Object, error) {
	switch opType {
	case op.Add:
		return NewNumber(x + y), nil
	case op.Subtract:
		return NewNumber(x - y), nil
	case op.Multiply:
		return NewNumber(x * y), nil
	case op.Divide:
		return NewNumber(x / y), nil
	case op.Modulo:
		return NewNumber(math.Mod(x, y)), nil
	case op.Power:
		return NewNumber(Pow(x, y)), nil
	case op.LShift:
		return NewNumber(float64(ToInt32(x) << (ToUint32(y) & 31))), nil
	case op.RShift:
		return NewNumber(float64(ToInt32(x) >> (ToUint32(y) & 31))), nil
	case op.UnsignedRShift:
		return NewNumber(float64(ToUint32(x) >> (ToUint32(y) & 31))), nil
	case op.BitwiseAnd:
		return NewNumber(float64(ToInt32(x) & ToInt32(y))), nil
	case op.BitwiseOr:
		return NewNumber(float64(ToInt32(x) | ToInt32(y))), nil
	case op.BitwiseXor:
		return NewNumber(float64(ToInt32(x) ^ ToInt32(y))), nil
	}
	return nil, typeErrorf("unknown binary operator %d", opType)
}

// Pow implements ** with the exponentiation edge cases Go's math.Pow
// resolves differently.
func Pow(x, y float64) float64 {
	if math.IsNaN(y) {
		return math.NaN()
	}
	if math.Abs(x) == 1 && math.IsInf(y, 0) {
		return math.NaN()
	}
	return math.Pow(x, y)
}
