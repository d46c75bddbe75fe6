package main

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/hokaccha/go-prettyjson"
	"github.com/mattn/go-isatty"

	"github.com/deepnoodle-ai/jsrt"
	"github.com/deepnoodle-ai/jsrt/errors"
)

var red = color.New(color.FgRed).SprintFunc()

func colorEnabled(w io.Writer) bool {
	if color.NoColor {
		return false
	}
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

// formatValue renders a script value for the terminal. With no format,
// undefined prints nothing and other values print as JSON when they can.
func formatValue(v jsrt.Value, format string, pretty bool) (string, error) {
	switch strings.ToLower(format) {
	case "":
		if v.IsUndefined() {
			return "", nil
		}
		if v.IsFunction() {
			return v.String(), nil
		}
		output, err := formatJSON(v, pretty)
		if err != nil {
			return v.String(), nil
		}
		return string(output), nil
	case "json":
		return formatJSONString(v, pretty)
	case "text":
		return v.String(), nil
	default:
		return "", fmt.Errorf("unknown output format: %s", format)
	}
}

func formatJSONString(v jsrt.Value, pretty bool) (string, error) {
	output, err := formatJSON(v, pretty)
	if err != nil {
		return "", err
	}
	return string(output), nil
}

func formatJSON(v jsrt.Value, pretty bool) ([]byte, error) {
	if pretty {
		return prettyjson.Marshal(v.Export())
	}
	return json.MarshalIndent(v.Export(), "", "  ")
}

// formatScriptError renders an uncaught exception with its stack.
func formatScriptError(se *jsrt.ScriptError, useColor bool) string {
	fe := &errors.FormattedError{Kind: "uncaught exception", Message: se.Message}
	if se.IsError {
		fe.Kind = se.Kind.String()
	}
	out := errors.NewFormatter(useColor).Format(fe)
	lines := strings.Split(se.Stack, "\n")
	if len(lines) > 1 {
		out += strings.Join(lines[1:], "\n") + "\n"
	}
	return out
}

func (a *app) printError(err error) {
	useColor := colorEnabled(a.stderr)
	var (
		se *jsrt.ScriptError
		fe errors.FormattableError
	)
	switch {
	case stderrors.As(err, &se):
		fmt.Fprint(a.stderr, formatScriptError(se, useColor))
	case stderrors.As(err, &fe):
		fmt.Fprint(a.stderr, errors.NewFormatter(useColor).Format(fe.ToFormatted()))
	case useColor:
		fmt.Fprintln(a.stderr, red(err.Error()))
	default:
		fmt.Fprintln(a.stderr, err.Error())
	}
}
