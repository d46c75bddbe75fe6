package errz

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	jsrterrors "github.com/deepnoodle-ai/jsrt/errors"
)

func TestKindNames(t *testing.T) {
	require.Equal(t, "TypeError", KindTypeError.String())
	require.Equal(t, "InternalError", KindInternalError.String())
	require.Equal(t, "Error", ErrorKind(99).String())
	for _, kind := range Kinds() {
		parsed, ok := ParseKind(kind.String())
		require.True(t, ok)
		require.Equal(t, kind, parsed)
	}
	_, ok := ParseKind("EvalError")
	require.False(t, ok)
}

func TestStructuredErrorMessage(t *testing.T) {
	err := TypeErrorf("%s is not a function", "x")
	require.Equal(t, "TypeError: x is not a function", err.Error())

	err.WithLocation(SourceLocation{Filename: "a.js", Line: 3, Column: 7, Source: "let y = x();"})
	require.Equal(t, "TypeError: x is not a function (a.js:3:7)", err.Error())

	// An existing location is kept.
	err.WithLocation(SourceLocation{Line: 9, Column: 9})
	require.Equal(t, 3, err.Location.Line)

	friendly := err.FriendlyErrorMessage()
	require.Contains(t, friendly, " | let y = x();")
	require.Contains(t, friendly, " |       ^")
}

func TestStructuredErrorStack(t *testing.T) {
	err := RangeErrorf("bad length")
	err.Stack = []StackFrame{
		{Function: "inner", Location: SourceLocation{Filename: "a.js", Line: 2, Column: 3}},
	}
	require.Contains(t, err.FriendlyErrorMessage(), "at inner (a.js:2:3)")

	formatted := err.ToFormatted()
	require.Equal(t, "RangeError", formatted.Kind)
	require.Len(t, formatted.Stack, 1)
}

func TestStructuredErrorUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := InternalErrorf("write failed").WithCause(cause)
	require.ErrorIs(t, err, cause)

	var structured *StructuredError
	require.True(t, errors.As(error(err), &structured))
	require.Equal(t, KindInternalError, structured.Kind)
}

func TestStructuredErrorCode(t *testing.T) {
	require.Equal(t, jsrterrors.E3001, TypeErrorf("x").ToFormatted().Code)
	err := SyntaxErrorf("invalid bytecode: truncated").WithCode(jsrterrors.E4001)
	require.Equal(t, jsrterrors.E4001, err.ToFormatted().Code)
	require.Equal(t, "SyntaxError", err.ToFormatted().Kind)
}
