package builtins

import (
	"context"
	"math"

	"github.com/deepnoodle-ai/jsrt/object"
)

func (b *installer) globals() {
	realm := b.realm
	realm.DefineGlobalConst("undefined", object.Undefined)
	realm.DefineGlobalConst("NaN", object.NaN)
	realm.DefineGlobalConst("Infinity", object.NewNumber(math.Inf(1)))

	numeric := func(name string, test func(float64) bool) {
		realm.DefineGlobal(name, realm.NewBuiltin(name, 1, func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
			f, err := object.ToNumber(ctx, arg(args, 0))
			if err != nil {
				return nil, err
			}
			return object.NewBool(test(f)), nil
		}))
	}
	numeric("isNaN", math.IsNaN)
	numeric("isFinite", isFinite)

	// Number.parseInt and Number.parseFloat are the same function objects.
	realm.DefineGlobal("parseInt", b.parseInt)
	realm.DefineGlobal("parseFloat", b.parseFloat)
}
