package parser

import (
	"fmt"

	"github.com/deepnoodle-ai/jsrt/errors"
	"github.com/deepnoodle-ai/jsrt/internal/token"
)

// ErrorOpts is a struct that holds a variety of error data.
// All fields are optional, although one of `Cause` or `Message`
// are recommended. If `Cause` is set, `Message` will be ignored.
type ErrorOpts struct {
	ErrType       string
	Code          errors.ErrorCode
	Message       string
	Cause         error
	File          string
	StartPosition token.Position
	EndPosition   token.Position
	SourceCode    string
}

// NewParserError returns a new BaseParserError populated with
// the given error data.
func NewParserError(opts ErrorOpts) *BaseParserError {
	return &BaseParserError{
		errType:       opts.ErrType,
		code:          opts.Code,
		message:       opts.Message,
		cause:         opts.Cause,
		file:          opts.File,
		startPosition: opts.StartPosition,
		endPosition:   opts.EndPosition,
		sourceCode:    opts.SourceCode,
	}
}

// ParserError is an interface that all parser errors implement.
type ParserError interface {
	Type() string
	Code() errors.ErrorCode
	Message() string
	Cause() error
	File() string
	StartPosition() token.Position
	EndPosition() token.Position
	SourceCode() string
	Error() string
	errors.FriendlyError
}

// BaseParserError is the simplest implementation of ParserError.
type BaseParserError struct {
	errType       string
	code          errors.ErrorCode
	message       string
	cause         error
	file          string
	startPosition token.Position
	endPosition   token.Position
	sourceCode    string
}

func (e *BaseParserError) Error() string {
	msg := e.message
	if e.cause != nil {
		msg = e.cause.Error()
	}
	if e.errType != "" {
		msg = fmt.Sprintf("%s: %s", e.errType, msg)
	}
	if e.file != "" || e.startPosition.IsValid() {
		msg = fmt.Sprintf("%s (%s:%d:%d)", msg, e.file,
			e.startPosition.LineNumber(), e.startPosition.ColumnNumber())
	}
	return msg
}

func (e *BaseParserError) FriendlyErrorMessage() string {
	return errors.NewFormatter(false).Format(e.ToFormatted())
}

// ToFormatted converts the parser error to a FormattedError for display.
func (e *BaseParserError) ToFormatted() *errors.FormattedError {
	start := e.startPosition
	end := e.endPosition
	endCol := 0
	if end.Line == start.Line {
		endCol = end.ColumnNumber()
	}
	return &errors.FormattedError{
		Code:      e.code,
		Kind:      e.errType,
		Message:   e.Message(),
		Filename:  e.file,
		Line:      start.LineNumber(),
		Column:    start.ColumnNumber(),
		EndColumn: endCol,
		SourceLines: []errors.SourceLineEntry{
			{Number: start.LineNumber(), Text: e.sourceCode, IsMain: true},
		},
	}
}

func (e *BaseParserError) Cause() error { return e.cause }

func (e *BaseParserError) Code() errors.ErrorCode { return e.code }

// Message returns the error message without type or location decoration.
func (e *BaseParserError) Message() string {
	if e.cause != nil {
		return e.cause.Error()
	}
	return e.message
}

func (e *BaseParserError) StartPosition() token.Position { return e.startPosition }

func (e *BaseParserError) EndPosition() token.Position { return e.endPosition }

func (e *BaseParserError) File() string { return e.file }

func (e *BaseParserError) SourceCode() string { return e.sourceCode }

func (e *BaseParserError) Unwrap() error { return e.cause }

func (e *BaseParserError) Type() string { return e.errType }

// NewSyntaxError returns a new SyntaxError populated with the given error data
func NewSyntaxError(opts ErrorOpts) *SyntaxError {
	opts.ErrType = "syntax error"
	return &SyntaxError{BaseParserError: NewParserError(opts)}
}

// SyntaxError is raised for malformed tokens reported by the lexer.
type SyntaxError struct {
	*BaseParserError
}

func tokenTypeDescription(t token.Type) string {
	switch t {
	case token.EOF:
		return "end of file"
	case token.IDENT:
		return "identifier"
	case token.STRING:
		return "string"
	case token.NUMBER:
		return "number"
	default:
		return string(t)
	}
}

func tokenDescription(t token.Token) string {
	switch t.Type {
	case token.EOF:
		return "end of file"
	case token.STRING:
		return fmt.Sprintf("string %q", t.Literal)
	default:
		if t.Literal == "" {
			return string(t.Type)
		}
		return t.Literal
	}
}

// Errors wraps multiple parser errors for multi-error reporting.
type Errors struct {
	errs []ParserError
}

// NewErrors creates an Errors from a slice of ParserError.
func NewErrors(errs []ParserError) *Errors {
	if len(errs) == 0 {
		return nil
	}
	return &Errors{errs: errs}
}

// Error implements the error interface. Returns the first error message.
func (e *Errors) Error() string {
	if len(e.errs) == 1 {
		return e.errs[0].Error()
	}
	return fmt.Sprintf("%s (and %d more errors)", e.errs[0].Error(), len(e.errs)-1)
}

// Errors returns the underlying slice of parser errors.
func (e *Errors) Errors() []ParserError {
	return e.errs
}

// Count returns the number of errors.
func (e *Errors) Count() int {
	return len(e.errs)
}

// First returns the first error.
func (e *Errors) First() ParserError {
	return e.errs[0]
}

// FriendlyErrorMessage returns a formatted message showing all errors.
func (e *Errors) FriendlyErrorMessage() string {
	formatted := make([]*errors.FormattedError, 0, len(e.errs))
	for _, err := range e.errs {
		if f, ok := err.(errors.FormattableError); ok {
			formatted = append(formatted, f.ToFormatted())
		} else {
			formatted = append(formatted, &errors.FormattedError{Message: err.Error()})
		}
	}
	return errors.NewFormatter(false).FormatMultiple(formatted)
}

// Unwrap returns the underlying errors for use with errors.Is/As.
func (e *Errors) Unwrap() []error {
	result := make([]error, len(e.errs))
	for i, err := range e.errs {
		result[i] = err
	}
	return result
}
