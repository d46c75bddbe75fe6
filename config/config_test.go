package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.Equal(t, BackendNone, cfg.Cache.Backend)
	require.Equal(t, []string{"."}, cfg.Modules.SearchPaths)
	require.Equal(t, "warn", cfg.Log.Level)
	require.NoError(t, cfg.Validate())
}

func TestParse(t *testing.T) {
	cfg, err := Parse(`
[runtime]
max_frame_depth = 200
interrupt_interval = 50
timeout = "1m30s"

[modules]
search_paths = ["lib", "vendor"]

[cache]
backend = "sqlite"
path = "/tmp/jsrt.db"

[log]
level = "debug"
format = "json"
`)
	require.NoError(t, err)
	require.Equal(t, 200, cfg.Runtime.MaxFrameDepth)
	require.Equal(t, 50, cfg.Runtime.InterruptInterval)
	require.Equal(t, 90*time.Second, cfg.Runtime.Timeout)
	require.Equal(t, []string{"lib", "vendor"}, cfg.Modules.SearchPaths)
	// Unset keys keep their defaults.
	require.Equal(t, []string{".js", ".mjs"}, cfg.Modules.Extensions)
	require.Equal(t, BackendSQLite, cfg.Cache.Backend)
	require.Equal(t, "/tmp/jsrt.db", cfg.Cache.Path)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, "json", cfg.Log.Format)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{`[runtime]` + "\n" + `max_frame_depth = -1`, "max_frame_depth"},
		{`[cache]` + "\n" + `backend = "redis"`, `unknown cache backend "redis"`},
		{`[cache]` + "\n" + `backend = "sqlite"`, "cache.path is required"},
		{`[cache]` + "\n" + `backend = "postgres"`, "cache.dsn is required"},
		{`[cache]` + "\n" + `backend = "s3"`, "cache.bucket is required"},
		{`[log]` + "\n" + `format = "xml"`, `unknown log format "xml"`},
		{`[runtime]` + "\n" + `speed = 3`, "unknown configuration keys: runtime.speed"},
		{`[runtime`, "toml"},
	}
	for _, tt := range tests {
		_, err := Parse(tt.text)
		require.Error(t, err, tt.text)
		require.Contains(t, err.Error(), tt.want)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jsrt.toml")
	require.NoError(t, os.WriteFile(path, []byte("[cache]\nbackend = \"memory\"\n"), 0o644))
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, BackendMemory, cfg.Cache.Backend)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.ErrorContains(t, err, "cannot read")

	require.NoError(t, os.WriteFile(path, []byte("[cache]\nbackend = 1\n"), 0o644))
	_, err = Load(path)
	require.ErrorContains(t, err, "parse error in")
}
