package module

import (
	"context"
	stderrors "errors"

	"github.com/deepnoodle-ai/jsrt/bytecode"
	"github.com/deepnoodle-ai/jsrt/compiler"
	"github.com/deepnoodle-ai/jsrt/errors"
	"github.com/deepnoodle-ai/jsrt/errz"
	"github.com/deepnoodle-ai/jsrt/parser"
)

// Compile parses source with the module goal (or the script goal when
// module is false) and compiles it. Parse and compile failures are
// returned as SyntaxError values that wrap the original error.
func Compile(ctx context.Context, source, filename string, module bool) (*bytecode.Unit, error) {
	opts := []parser.Option{parser.WithFilename(filename)}
	if module {
		opts = append(opts, parser.WithModule())
	}
	program, err := parser.Parse(ctx, source, opts...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, errz.InternalErrorf("%s", ctxErr).WithCause(ctxErr)
		}
		return nil, SyntaxError(err)
	}
	unit, err := compiler.Compile(program, &compiler.Config{Filename: filename, Source: source})
	if err != nil {
		return nil, SyntaxError(err)
	}
	return unit, nil
}

// InvalidBytecode reports data rejected by bytecode.Unmarshal.
func InvalidBytecode(err error) *errz.StructuredError {
	return errz.SyntaxErrorf("invalid bytecode: %s", err).WithCode(errors.E4001).WithCause(err)
}

// SyntaxError converts a parse or compile error into a SyntaxError carrying
// the first error's message and location.
func SyntaxError(err error) *errz.StructuredError {
	var se *errz.StructuredError
	if stderrors.As(err, &se) {
		return se
	}
	result := &errz.StructuredError{Kind: errz.KindSyntaxError, Message: err.Error(), Cause: err}
	var parseErrs *parser.Errors
	if stderrors.As(err, &parseErrs) && parseErrs.Count() > 0 {
		first := parseErrs.Errors()[0]
		pos := first.StartPosition()
		result.Message = first.Message()
		result.Location = errz.SourceLocation{
			Filename: first.File(),
			Line:     pos.LineNumber(),
			Column:   pos.ColumnNumber(),
		}
		return result
	}
	var compileErr *errors.CompileError
	var compileErrs *errors.CompileErrors
	if stderrors.As(err, &compileErrs) && compileErrs.Count() > 0 {
		compileErr = compileErrs.Errors[0]
	} else {
		stderrors.As(err, &compileErr)
	}
	if compileErr != nil {
		result.Message = compileErr.Message
		result.Location = errz.SourceLocation{
			Filename: compileErr.Filename,
			Line:     compileErr.Line,
			Column:   compileErr.Column,
			Source:   compileErr.SourceLine,
		}
	}
	return result
}
