package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/mitchellh/go-homedir"
	"github.com/rs/zerolog"

	"github.com/deepnoodle-ai/jsrt"
	"github.com/deepnoodle-ai/jsrt/config"
)

// loadConfig reads the config file, if any, and applies flags and JSRT_*
// environment variables on top of it.
func (a *app) loadConfig() (*config.Config, error) {
	path := a.v.GetString("config")
	explicit := path != ""
	if !explicit {
		path = defaultConfigPath
	}
	path, err := homedir.Expand(path)
	if err != nil {
		return nil, err
	}
	cfg := config.Default()
	if _, err := os.Stat(path); err == nil {
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	} else if explicit || !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config file: %w", err)
	}

	if level := a.v.GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}
	if dirs := a.v.GetStringSlice("modules"); len(dirs) > 0 {
		expanded := make([]string, len(dirs))
		for i, dir := range dirs {
			if expanded[i], err = homedir.Expand(dir); err != nil {
				return nil, err
			}
		}
		cfg.Modules.SearchPaths = expanded
	}
	if backend := a.v.GetString("cache"); backend != "" {
		cfg.Cache.Backend = backend
	}
	if p := a.v.GetString("cache-path"); p != "" {
		if cfg.Cache.Path, err = homedir.Expand(p); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger writes human readable logs to a terminal and JSON lines
// everywhere else.
func newLogger(cfg config.Log, w io.Writer) (zerolog.Logger, error) {
	level := zerolog.WarnLevel
	if cfg.Level != "" {
		var err error
		if level, err = zerolog.ParseLevel(cfg.Level); err != nil {
			return zerolog.Nop(), fmt.Errorf("invalid log level %q", cfg.Level)
		}
	}
	console := cfg.Format == "console"
	if cfg.Format == "" {
		if f, ok := w.(*os.File); ok {
			console = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
		}
	}
	if console {
		w = zerolog.ConsoleWriter{Out: w, NoColor: !colorEnabled(w)}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}

// session is a runtime with one context, built from the loaded
// configuration.
type session struct {
	cfg    *config.Config
	rt     *jsrt.Runtime
	ctx    *jsrt.Context
	cancel context.CancelFunc
}

func (a *app) newSession(parent context.Context) (*session, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg.Log, a.stderr)
	if err != nil {
		return nil, err
	}
	rt, err := jsrt.NewRuntimeFromConfig(parent, cfg,
		jsrt.WithLogger(logger),
		jsrt.WithStdout(a.stdout),
		jsrt.WithStderr(a.stderr))
	if err != nil {
		return nil, err
	}
	var (
		goctx  context.Context
		cancel context.CancelFunc
	)
	if cfg.Runtime.Timeout > 0 {
		goctx, cancel = context.WithTimeout(parent, cfg.Runtime.Timeout)
	} else {
		goctx, cancel = context.WithCancel(parent)
	}
	ctx := rt.NewContext()
	ctx.SetContext(goctx)
	return &session{cfg: cfg, rt: rt, ctx: ctx, cancel: cancel}, nil
}

func (s *session) close() error {
	s.cancel()
	if err := s.ctx.Free(); err != nil {
		return err
	}
	return s.rt.Free()
}
