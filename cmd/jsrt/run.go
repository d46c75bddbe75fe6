package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/deepnoodle-ai/jsrt"
)

// readSource picks the source from --code, --stdin or a file argument.
// Exactly one must be given. The returned name is used as the filename.
func (a *app) readSource(cmd *cobra.Command, args []string) (source, name string, err error) {
	code, _ := cmd.Flags().GetString("code")
	stdin, _ := cmd.Flags().GetBool("stdin")
	count := len(args)
	if cmd.Flags().Changed("code") {
		count++
	}
	if stdin {
		count++
	}
	switch {
	case count > 1:
		return "", "", errors.New("multiple input sources specified")
	case count == 0:
		return "", "", errors.New("no input provided")
	case stdin:
		data, err := io.ReadAll(a.stdin)
		if err != nil {
			return "", "", err
		}
		return string(data), "<stdin>", nil
	case len(args) > 0:
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", "", err
		}
		return string(data), args[0], nil
	}
	return code, "<code>", nil
}

func addSourceFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("code", "c", "", "source to use instead of a file")
	cmd.Flags().Bool("stdin", false, "read source from stdin")
}

func (a *app) runCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [file]",
		Short: "Evaluate a script or module and print the result",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, name, err := a.readSource(cmd, args)
			if err != nil {
				return err
			}
			s, err := a.newSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			start := time.Now()
			result := s.ctx.EvalAutoDetect(source, name)
			if jsrt.IsException(result) {
				return s.ctx.ExceptionError()
			}
			dt := time.Since(start)
			return a.printResult(cmd, result, dt)
		},
	}
	addSourceFlags(cmd)
	cmd.Flags().StringP("output", "o", "", "output format: json or text")
	cmd.Flags().Bool("timing", false, "show execution time")
	return cmd
}

func (a *app) printResult(cmd *cobra.Command, result jsrt.Value, dt time.Duration) error {
	format, _ := cmd.Flags().GetString("output")
	output, err := formatValue(result, format, colorEnabled(a.stdout))
	if err != nil {
		return err
	}
	if output != "" {
		fmt.Fprintln(a.stdout, output)
	}
	if timing, _ := cmd.Flags().GetBool("timing"); timing {
		fmt.Fprintf(a.stdout, "%v\n", dt)
	}
	return nil
}

func (a *app) detectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detect [file]",
		Short: "Report whether source is a module or a script",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, _, err := a.readSource(cmd, args)
			if err != nil {
				return err
			}
			if jsrt.DetectModule(source) {
				fmt.Fprintln(a.stdout, "module")
			} else {
				fmt.Fprintln(a.stdout, "script")
			}
			return nil
		},
	}
	addSourceFlags(cmd)
	return cmd
}
