package errors

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// Formatter renders errors in a compiler-style layout with source context.
type Formatter struct {
	// UseColor enables ANSI color codes in output.
	UseColor bool
}

// NewFormatter creates a new error formatter.
func NewFormatter(useColor bool) *Formatter {
	return &Formatter{UseColor: useColor}
}

// Colors used for error formatting
var (
	colorError     = color.New(color.FgRed)
	colorErrorBold = color.New(color.FgHiRed, color.Bold)
	colorCode      = color.New(color.FgHiBlack)
	colorLocation  = color.New(color.FgCyan)
	colorGutter    = color.New(color.FgHiBlack)
	colorCaret     = color.New(color.FgHiRed)
	colorNote      = color.New(color.FgHiBlue)
)

// FormattedError represents an error ready for display.
type FormattedError struct {
	Code        ErrorCode
	Kind        string // "error", "syntax error", "TypeError", etc.
	Message     string
	Filename    string
	Line        int
	Column      int
	EndColumn   int
	SourceLines []SourceLineEntry
	Note        string
	Stack       []StackFrame
}

// SourceLineEntry represents a line of source code with its number.
type SourceLineEntry struct {
	Number int
	Text   string
	IsMain bool // True if this is the line with the error
}

func (f *Formatter) paint(c *color.Color, s string) string {
	if !f.UseColor {
		return s
	}
	// The formatter decides on color itself, independent of color.NoColor.
	c.EnableColor()
	return c.Sprint(s)
}

// Format formats the error as a string.
func (f *Formatter) Format(err *FormattedError) string {
	return f.FormatWithPrefix(err, "")
}

// FormatWithPrefix formats the error with an optional prefix like "1/5".
func (f *Formatter) FormatWithPrefix(err *FormattedError, prefix string) string {
	var b strings.Builder
	width := 2
	if err.Line >= 100 {
		width = len(fmt.Sprintf("%d", err.Line))
	}
	pad := strings.Repeat(" ", width)

	// Header: "error[E2001]: message"
	label := "error"
	if err.Kind != "" {
		label = err.Kind
	}
	b.WriteString(f.paint(colorErrorBold, label))
	if err.Code != "" {
		b.WriteString(f.paint(colorCode, "["+string(err.Code)+"]"))
	} else if prefix != "" {
		b.WriteString(f.paint(colorCode, "["+prefix+"]"))
	}
	b.WriteString(f.paint(colorError, ": "))
	b.WriteString(err.Message)
	b.WriteString("\n")

	// Location: "  --> file.js:10:5"
	if err.Line > 0 || err.Filename != "" {
		loc := err.Filename
		if err.Line > 0 {
			if loc != "" {
				loc += ":"
			}
			loc += fmt.Sprintf("%d:%d", err.Line, err.Column)
		}
		b.WriteString(pad)
		b.WriteString(f.paint(colorLocation, "--> "+loc))
		b.WriteString("\n")
	}

	if len(err.SourceLines) > 0 {
		b.WriteString(f.paint(colorGutter, pad+" |"))
		b.WriteString("\n")
		for _, line := range err.SourceLines {
			b.WriteString(f.paint(colorGutter, fmt.Sprintf("%*d | ", width, line.Number)))
			b.WriteString(line.Text)
			b.WriteString("\n")
			if line.IsMain && err.Column > 0 {
				n := 1
				if err.EndColumn > err.Column {
					n = err.EndColumn - err.Column
				}
				b.WriteString(f.paint(colorGutter, pad+" | "))
				b.WriteString(strings.Repeat(" ", err.Column-1))
				b.WriteString(f.paint(colorCaret, strings.Repeat("^", n)))
				b.WriteString("\n")
			}
		}
	}

	if err.Note != "" {
		b.WriteString(pad)
		b.WriteString(f.paint(colorNote, " = note: "))
		b.WriteString(err.Note)
		b.WriteString("\n")
	}

	if len(err.Stack) > 0 {
		b.WriteString(pad)
		b.WriteString(f.paint(colorNote, " = stack trace:"))
		b.WriteString("\n")
		for _, frame := range err.Stack {
			b.WriteString(pad)
			b.WriteString("     ")
			b.WriteString(frame.String())
			b.WriteString("\n")
		}
	}
	return b.String()
}

// FormatMultiple formats multiple errors with consistent styling.
func (f *Formatter) FormatMultiple(errs []*FormattedError) string {
	if len(errs) == 0 {
		return ""
	}
	if len(errs) == 1 {
		return f.Format(errs[0])
	}
	var b strings.Builder
	total := len(errs)
	for i, err := range errs {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(f.FormatWithPrefix(err, fmt.Sprintf("%d/%d", i+1, total)))
	}
	b.WriteString("\n")
	b.WriteString(f.paint(colorErrorBold, fmt.Sprintf("found %d errors", total)))
	b.WriteString("\n")
	return b.String()
}
