// Package errz defines the error kinds raised by the runtime and the
// structured error type used to carry them between the VM, the builtins and
// the embedding API.
package errz

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/deepnoodle-ai/jsrt/errors"
)

// SourceLocation is a position in script source.
type SourceLocation = errors.SourceLocation

// StackFrame is one frame of a script call stack.
type StackFrame = errors.StackFrame

// ErrorKind represents the category of an error. Each kind corresponds to
// one of the script-visible error constructors.
type ErrorKind int

const (
	// KindError is the generic Error.
	KindError ErrorKind = iota
	// KindTypeError indicates an invalid operation on a value of the wrong type.
	KindTypeError
	// KindSyntaxError indicates source that could not be parsed or compiled.
	KindSyntaxError
	// KindReferenceError indicates an unresolvable or uninitialized binding.
	KindReferenceError
	// KindRangeError indicates a value outside its permitted range.
	KindRangeError
	// KindInternalError indicates a failure inside the runtime itself, such
	// as exceeding the call stack limit.
	KindInternalError
)

var kindNames = [...]string{
	KindError:          "Error",
	KindTypeError:      "TypeError",
	KindSyntaxError:    "SyntaxError",
	KindReferenceError: "ReferenceError",
	KindRangeError:     "RangeError",
	KindInternalError:  "InternalError",
}

// Kinds lists every error kind in declaration order.
func Kinds() []ErrorKind {
	return []ErrorKind{
		KindError,
		KindTypeError,
		KindSyntaxError,
		KindReferenceError,
		KindRangeError,
		KindInternalError,
	}
}

// String returns the constructor name for the error kind.
func (k ErrorKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "Error"
	}
	return kindNames[k]
}

// ParseKind returns the kind whose constructor name is name.
func ParseKind(name string) (ErrorKind, bool) {
	for i, n := range kindNames {
		if n == name {
			return ErrorKind(i), true
		}
	}
	return KindError, false
}

// StructuredError is a rich error type with source locations, visual snippets,
// and stack traces for actionable diagnostics.
type StructuredError struct {
	Message  string
	Kind     ErrorKind
	Location SourceLocation
	Stack    []StackFrame
	Cause    error

	// Code overrides the diagnostic code derived from Kind.
	Code errors.ErrorCode
}

// Error implements the error interface.
func (e *StructuredError) Error() string {
	if e.Location.IsZero() {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Location)
}

// Unwrap returns the underlying cause of the error.
func (e *StructuredError) Unwrap() error {
	return e.Cause
}

// FriendlyErrorMessage returns a human-friendly error message with the
// offending source line and the stack trace.
func (e *StructuredError) FriendlyErrorMessage() string {
	var msg bytes.Buffer
	msg.WriteString(e.Error())
	msg.WriteString("\n")
	if e.Location.Source != "" {
		msg.WriteString(" | ")
		msg.WriteString(e.Location.Source)
		msg.WriteString("\n")
		if e.Location.Column > 0 {
			msg.WriteString(" | ")
			msg.WriteString(strings.Repeat(" ", e.Location.Column-1))
			msg.WriteString("^\n")
		}
	}
	if len(e.Stack) > 0 {
		msg.WriteString("\n")
		msg.WriteString(errors.FormatStackTrace(e.Stack))
	}
	return msg.String()
}

// ToFormatted converts the error for display by errors.Formatter.
func (e *StructuredError) ToFormatted() *errors.FormattedError {
	fe := &errors.FormattedError{
		Code:     e.code(),
		Kind:     e.Kind.String(),
		Message:  e.Message,
		Filename: e.Location.Filename,
		Line:     e.Location.Line,
		Column:   e.Location.Column,
		Stack:    e.Stack,
	}
	if e.Location.Source != "" {
		fe.SourceLines = []errors.SourceLineEntry{
			{Number: e.Location.Line, Text: e.Location.Source, IsMain: true},
		}
	}
	return fe
}

func (e *StructuredError) code() errors.ErrorCode {
	if e.Code != "" {
		return e.Code
	}
	switch e.Kind {
	case KindTypeError:
		return errors.E3001
	case KindReferenceError:
		return errors.E3011
	case KindInternalError:
		return errors.E3006
	default:
		return errors.E3012
	}
}

// WithCode sets the diagnostic code reported by ToFormatted.
func (e *StructuredError) WithCode(code errors.ErrorCode) *StructuredError {
	e.Code = code
	return e
}

// WithCause wraps the error with a cause.
func (e *StructuredError) WithCause(cause error) *StructuredError {
	e.Cause = cause
	return e
}

// WithLocation sets the location if none has been recorded yet.
func (e *StructuredError) WithLocation(loc SourceLocation) *StructuredError {
	if e.Location.IsZero() {
		e.Location = loc
	}
	return e
}

// New creates an error of the given kind.
func New(kind ErrorKind, message string) *StructuredError {
	return &StructuredError{Kind: kind, Message: message}
}

// Newf creates an error of the given kind with a formatted message.
func Newf(kind ErrorKind, format string, args ...any) *StructuredError {
	return &StructuredError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func TypeErrorf(format string, args ...any) *StructuredError {
	return Newf(KindTypeError, format, args...)
}

func ReferenceErrorf(format string, args ...any) *StructuredError {
	return Newf(KindReferenceError, format, args...)
}

func RangeErrorf(format string, args ...any) *StructuredError {
	return Newf(KindRangeError, format, args...)
}

func SyntaxErrorf(format string, args ...any) *StructuredError {
	return Newf(KindSyntaxError, format, args...)
}

func InternalErrorf(format string, args ...any) *StructuredError {
	return Newf(KindInternalError, format, args...)
}

// FormatStack formats frames one per line, innermost first.
func FormatStack(frames []StackFrame) string {
	return errors.FormatStackTrace(frames)
}
