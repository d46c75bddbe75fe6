package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// defaultConfigPath is read when --config is not given and the file exists.
const defaultConfigPath = "~/.jsrt.toml"

type app struct {
	v      *viper.Viper
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *app {
	return &app{v: viper.New(), stdin: stdin, stdout: stdout, stderr: stderr}
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "jsrt",
		Short:         "Embeddable JavaScript runtime",
		Version:       fmt.Sprintf("%s (%s, %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if a.v.GetBool("no-color") {
				color.NoColor = true
			}
		},
	}
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	flags := root.PersistentFlags()
	flags.String("config", "", "config file (default is "+defaultConfigPath+")")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.Bool("no-color", false, "disable colored output")
	flags.StringSlice("modules", nil, "directories searched for imported modules")
	flags.String("cache", "", "bytecode cache backend: none, memory, sqlite, postgres or s3")
	flags.String("cache-path", "", "sqlite bytecode cache file")
	a.v.BindPFlags(flags)
	a.v.SetEnvPrefix("jsrt")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	root.AddCommand(
		a.runCommand(),
		a.compileCommand(),
		a.execCommand(),
		a.detectCommand(),
		a.disCommand(),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	a := newApp(os.Stdin, os.Stdout, os.Stderr)
	err := a.rootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		a.printError(err)
		os.Exit(1)
	}
}
