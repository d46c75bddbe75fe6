package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/deepnoodle-ai/jsrt"
	"github.com/deepnoodle-ai/jsrt/bytecode"
	"github.com/deepnoodle-ai/jsrt/dis"
	"github.com/deepnoodle-ai/jsrt/module"
	"github.com/deepnoodle-ai/jsrt/parser"
)

// bytecodeExt is the default extension for compiled files.
const bytecodeExt = ".jsbc"

func (a *app) compileCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile [file]",
		Short: "Compile source to bytecode without running it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, name, err := a.readSource(cmd, args)
			if err != nil {
				return err
			}
			out, _ := cmd.Flags().GetString("output")
			if out == "" {
				if len(args) == 0 {
					return errors.New("--output is required when compiling --code or --stdin")
				}
				out = strings.TrimSuffix(args[0], filepath.Ext(args[0])) + bytecodeExt
			}
			s, err := a.newSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			buf, n := s.ctx.CompileToBytecode(source, name)
			if buf == nil {
				return s.ctx.ExceptionError()
			}
			defer buf.Free()
			if err := os.WriteFile(out, buf.Bytes()[:n], 0o644); err != nil {
				return err
			}
			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
				fmt.Fprintf(a.stdout, "%s: %d bytes\n", out, n)
			}
			return nil
		},
	}
	addSourceFlags(cmd)
	cmd.Flags().StringP("output", "o", "", "output file (default is the input with a "+bytecodeExt+" extension)")
	cmd.Flags().BoolP("verbose", "v", false, "report the size of the written file")
	return cmd
}

func (a *app) execCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec <file" + bytecodeExt + ">",
		Short: "Run compiled bytecode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			s, err := a.newSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			result := s.ctx.EvalBytecode(data, len(data))
			if jsrt.IsException(result) {
				return s.ctx.ExceptionError()
			}
			return a.printResult(cmd, result, 0)
		},
	}
	cmd.Flags().StringP("output", "o", "", "output format: json or text")
	return cmd
}

func (a *app) disCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dis [file]",
		Short: "Disassemble source or compiled bytecode",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, name, err := a.readSource(cmd, args)
			if err != nil {
				return err
			}
			var unit *bytecode.Unit
			if data := []byte(source); bytes.HasPrefix(data, []byte(bytecode.Magic)) {
				if unit, err = bytecode.Unmarshal(data); err != nil {
					return module.InvalidBytecode(err)
				}
			} else {
				unit, err = module.Compile(cmd.Context(), source, name, parser.DetectModule(source))
			}
			if err != nil {
				return err
			}
			return dis.PrintUnit(unit, a.stdout)
		},
	}
	addSourceFlags(cmd)
	return cmd
}
