package builtins

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/deepnoodle-ai/jsrt/object"
)

func (b *installer) console(stdout, stderr io.Writer) {
	c := object.NewDictWithClass(b.realm.ObjectPrototype, "console")
	var mu sync.Mutex
	printer := func(w io.Writer) object.BuiltinFunction {
		return func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
			parts := make([]string, len(args))
			for i, a := range args {
				parts[i] = object.Display(a)
			}
			mu.Lock()
			defer mu.Unlock()
			if _, err := fmt.Fprintln(w, strings.Join(parts, " ")); err != nil {
				return nil, err
			}
			return object.Undefined, nil
		}
	}
	for _, name := range []string{"log", "info", "debug"} {
		b.method(c, name, 0, printer(stdout))
	}
	for _, name := range []string{"warn", "error"} {
		b.method(c, name, 0, printer(stderr))
	}
	b.realm.DefineGlobal("console", c)
}
