// Package jsrt embeds an engine for a subset of JavaScript.
//
// A host creates a Runtime, then one or more Contexts from it. A Context
// evaluates scripts and ES modules, compiles source to portable bytecode
// and runs that bytecode later:
//
//	rt := jsrt.NewRuntime()
//	ctx := rt.NewContext()
//	v := ctx.EvalAutoDetect(`1 + 2`, "main.js")
//	if jsrt.IsException(v) {
//		return ctx.ExceptionError()
//	}
//	fmt.Println(v.Float64())
//
// Operations that fail return the Exception() sentinel and leave the
// thrown value pending on the Context, where Exception, HasException and
// ExceptionError retrieve it. Contexts must be freed before their Runtime.
package jsrt
