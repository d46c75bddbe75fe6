// Package importer resolves module specifiers to canonical module names and
// loads module source text.
package importer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
)

// ErrNotFound is returned when no source exists for a module name.
var ErrNotFound = errors.New("module not found")

// DefaultExtensions are tried, in order, when a name has no matching file.
var DefaultExtensions = []string{".js", ".mjs"}

// Source is the loaded text of one module.
type Source struct {
	// Name is the canonical module name the source was loaded for.
	Name string
	// Filename is where the source came from, used in error messages.
	Filename string
	Code     string
}

// Importer resolves and loads modules for the module linker.
type Importer interface {
	// Resolve maps a specifier found in the module named referrer to a
	// canonical module name.
	Resolve(specifier, referrer string) (string, error)

	// Load returns the source of a module. It returns an error wrapping
	// ErrNotFound when the module does not exist.
	Load(ctx context.Context, name string) (*Source, error)
}

// ResolveSpecifier applies the default resolution rules: relative
// specifiers ("./x", "../x") are joined with the directory of the referrer,
// every other specifier is used as-is after cleaning. Names always use
// forward slashes.
func ResolveSpecifier(specifier, referrer string) (string, error) {
	if specifier == "" {
		return "", errors.New("empty module specifier")
	}
	if strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../") {
		dir := path.Dir(filepath.ToSlash(referrer))
		return path.Clean(path.Join(dir, specifier)), nil
	}
	return path.Clean(specifier), nil
}

// LocalImporter loads modules from a list of directories on disk.
type LocalImporter struct {
	dirs       []string
	extensions []string
}

// LocalImporterOptions configure a LocalImporter.
type LocalImporterOptions struct {
	// SourceDirs are searched in order. Defaults to the working directory.
	SourceDirs []string
	// Extensions are appended to names that don't match a file directly.
	// Defaults to DefaultExtensions.
	Extensions []string
}

// NewLocalImporter returns an Importer that reads modules from disk.
func NewLocalImporter(opts LocalImporterOptions) *LocalImporter {
	dirs := opts.SourceDirs
	if len(dirs) == 0 {
		dirs = []string{"."}
	}
	exts := opts.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	return &LocalImporter{dirs: dirs, extensions: exts}
}

func (i *LocalImporter) Resolve(specifier, referrer string) (string, error) {
	return ResolveSpecifier(specifier, referrer)
}

func (i *LocalImporter) Load(ctx context.Context, name string) (*Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, filename := range i.candidates(name) {
		data, err := os.ReadFile(filename)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("reading module %q: %w", name, err)
		}
		return &Source{Name: name, Filename: filename, Code: string(data)}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
}

func (i *LocalImporter) candidates(name string) []string {
	rel := filepath.FromSlash(name)
	var out []string
	for _, dir := range i.dirs {
		base := rel
		if !filepath.IsAbs(rel) {
			base = filepath.Join(dir, rel)
		}
		if ext := filepath.Ext(base); ext != "" {
			out = append(out, base)
		}
		for _, ext := range i.extensions {
			out = append(out, base+ext)
		}
	}
	return out
}

// MapImporter serves modules from memory. It is safe for concurrent use.
type MapImporter struct {
	mu      sync.RWMutex
	modules map[string]string
}

// NewMapImporter returns an Importer over the given name to source map.
func NewMapImporter(modules map[string]string) *MapImporter {
	m := &MapImporter{modules: make(map[string]string, len(modules))}
	for name, code := range modules {
		m.modules[path.Clean(name)] = code
	}
	return m
}

// Add registers or replaces a module.
func (m *MapImporter) Add(name, code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modules[path.Clean(name)] = code
}

func (m *MapImporter) Resolve(specifier, referrer string) (string, error) {
	return ResolveSpecifier(specifier, referrer)
}

func (m *MapImporter) Load(ctx context.Context, name string) (*Source, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, candidate := range []string{name, name + ".js"} {
		if code, ok := m.modules[candidate]; ok {
			return &Source{Name: name, Filename: candidate, Code: code}, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
}
