package module

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/deepnoodle-ai/jsrt/bytecode"
	"github.com/deepnoodle-ai/jsrt/errz"
	"github.com/deepnoodle-ai/jsrt/importer"
	"github.com/deepnoodle-ai/jsrt/object"
)

// Executor creates module functions and runs module bodies. It is
// implemented by *vm.VirtualMachine.
type Executor interface {
	NewFunction(fn *bytecode.Function, env *object.ModuleEnv) *object.Function
	RunModule(ctx context.Context, unit *bytecode.Unit, env *object.ModuleEnv) (object.Object, error)
}

// Registry holds the module records of one execution context, keyed by
// canonical module name.
type Registry struct {
	records  map[string]*Record
	exec     Executor
	importer importer.Importer
	logger   zerolog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithImporter sets the importer used to load modules that are requested
// but not registered.
func WithImporter(imp importer.Importer) Option {
	return func(r *Registry) {
		r.importer = imp
	}
}

// WithLogger sets the logger for module lifecycle events.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// NewRegistry returns an empty registry whose modules run on exec.
func NewRegistry(exec Executor, opts ...Option) *Registry {
	r := &Registry{
		records: map[string]*Record{},
		exec:    exec,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Add registers a compiled module unit under name, replacing any record
// with the same name. Modules already linked against the replaced record
// keep their bindings.
func (r *Registry) Add(name string, unit *bytecode.Unit) (*Record, error) {
	if unit == nil || unit.Kind() != bytecode.Module {
		return nil, fmt.Errorf("module %q: expected a module unit", name)
	}
	rec := newRecord(name, unit)
	r.records[name] = rec
	r.logger.Debug().Str("module", name).Msg("module compiled")
	return rec, nil
}

// Get returns the record registered under name.
func (r *Registry) Get(name string) (*Record, bool) {
	rec, ok := r.records[name]
	return rec, ok
}

// Names returns the registered module names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.records))
	for name := range r.records {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered modules.
func (r *Registry) Len() int {
	return len(r.records)
}

// resolution is the state of one Resolve attempt. Nothing in it is visible
// to the registry until commit.
type resolution struct {
	reg     *Registry
	ctx     context.Context
	loaded  map[string]*Record
	pending []*Record
	visited map[*Record]bool
	order   []*Record
	deps    map[*Record]map[string]*Record
	errs    *multierror.Error
}

// Resolve links root and every module it transitively depends on. Missing
// modules are loaded through the importer and compiled. All import
// bindings are validated before anything is committed; on failure the
// modules loaded during the attempt are discarded, root moves to Failed
// and the error is returned.
func (r *Registry) Resolve(ctx context.Context, root *Record) error {
	switch root.state {
	case Resolved, Executed:
		return nil
	case Failed:
		return root.err
	}
	res := &resolution{
		reg:     r,
		ctx:     ctx,
		loaded:  map[string]*Record{},
		pending: []*Record{root},
		visited: map[*Record]bool{root: true},
		deps:    map[*Record]map[string]*Record{},
	}
	res.walk()
	if res.errs.ErrorOrNil() == nil {
		res.validate()
	}
	if err := res.err(); err != nil {
		r.logger.Warn().Str("module", root.name).Err(err).Msg("module resolution failed")
		return root.fail(err)
	}
	res.commit()
	r.logger.Debug().Str("module", root.name).Int("linked", len(res.order)).Msg("module resolved")
	return nil
}

// walk discovers the unresolved part of the graph with an explicit
// worklist. Records are appended to order as they are discovered.
func (res *resolution) walk() {
	for len(res.pending) > 0 {
		rec := res.pending[0]
		res.pending = res.pending[1:]
		res.order = append(res.order, rec)
		deps := map[string]*Record{}
		res.deps[rec] = deps
		for _, spec := range rec.unit.Requests() {
			dep, err := res.request(rec, spec)
			if err != nil {
				res.errs = multierror.Append(res.errs, err)
				continue
			}
			deps[spec] = dep
			if dep.state == Compiled && !res.visited[dep] {
				res.visited[dep] = true
				res.pending = append(res.pending, dep)
			}
		}
	}
}

// request finds or loads the module that spec names from rec.
func (res *resolution) request(rec *Record, spec string) (*Record, error) {
	reg := res.reg
	name := spec
	if reg.importer != nil {
		var err error
		if name, err = reg.importer.Resolve(spec, rec.name); err != nil {
			return nil, errz.SyntaxErrorf("Cannot resolve module '%s' from '%s': %s", spec, rec.name, err)
		}
	}
	if dep, ok := res.loaded[name]; ok {
		return dep, nil
	}
	if dep, ok := reg.records[name]; ok {
		if dep.state == Failed {
			return nil, errz.SyntaxErrorf("Module '%s' failed to load: %s", name, errorMessage(dep.err))
		}
		return dep, nil
	}
	if reg.importer == nil {
		return nil, errz.ReferenceErrorf("Cannot find module '%s' imported from '%s'", spec, rec.name)
	}
	src, err := reg.importer.Load(res.ctx, name)
	if err != nil {
		if stderrors.Is(err, importer.ErrNotFound) {
			return nil, errz.ReferenceErrorf("Cannot find module '%s' imported from '%s'", spec, rec.name).WithCause(err)
		}
		return nil, errz.InternalErrorf("Loading module '%s': %s", name, err).WithCause(err)
	}
	unit, err := Compile(res.ctx, src.Code, name, true)
	if err != nil {
		return nil, err
	}
	dep := newRecord(name, unit)
	res.loaded[name] = dep
	reg.logger.Debug().Str("module", name).Str("filename", src.Filename).Msg("module loaded")
	return dep, nil
}

// depOf returns the record spec resolved to from rec, looking at the
// current attempt first and committed links second.
func (res *resolution) depOf(rec *Record, spec string) *Record {
	if deps, ok := res.deps[rec]; ok {
		return deps[spec]
	}
	return rec.deps[spec]
}

// validate checks every import binding and indirect export of the records
// being linked.
func (res *resolution) validate() {
	for _, rec := range res.order {
		for i := 0; i < rec.unit.ImportCount(); i++ {
			imp := rec.unit.ImportAt(i)
			dep := res.depOf(rec, imp.Specifier)
			for _, b := range imp.Bindings {
				if b.Imported == bytecode.NamespaceImport {
					continue
				}
				if _, err := res.resolveExport(dep, b.Imported, nil); err != nil {
					res.errs = multierror.Append(res.errs, withLocation(err, rec.name, b.Line, b.Column))
				}
			}
		}
		for i := 0; i < rec.unit.ExportCount(); i++ {
			exp := rec.unit.ExportAt(i)
			if !exp.IsIndirect() || exp.Imported == bytecode.NamespaceImport {
				continue
			}
			if _, err := res.resolveExport(res.depOf(rec, exp.Specifier), exp.Imported, nil); err != nil {
				res.errs = multierror.Append(res.errs, withLocation(err, rec.name, 0, 0))
			}
		}
	}
}

// binding is where an exported name finally lives: a local slot of a
// module, or the namespace of a module.
type binding struct {
	rec       *Record
	slot      int
	namespace bool
}

type exportKey struct {
	rec  *Record
	name string
}

// resolveExport follows indirect exports until it reaches a local binding.
func (res *resolution) resolveExport(rec *Record, name string, seen map[exportKey]bool) (binding, error) {
	key := exportKey{rec, name}
	if seen[key] {
		return binding{}, errz.SyntaxErrorf("Detected cycle while resolving name '%s' in '%s'", name, rec.name)
	}
	if seen == nil {
		seen = map[exportKey]bool{}
	}
	seen[key] = true
	exp, ok := rec.exportEntry(name)
	if !ok {
		return binding{}, errz.SyntaxErrorf("The requested module '%s' does not provide an export named '%s'", rec.name, name)
	}
	if !exp.IsIndirect() {
		return binding{rec: rec, slot: exp.Slot}, nil
	}
	dep := res.depOf(rec, exp.Specifier)
	if dep == nil {
		return binding{}, errz.ReferenceErrorf("Cannot find module '%s' imported from '%s'", exp.Specifier, rec.name)
	}
	if exp.Imported == bytecode.NamespaceImport {
		return binding{rec: dep, namespace: true}, nil
	}
	return res.resolveExport(dep, exp.Imported, seen)
}

func (res *resolution) err() error {
	if res.errs == nil || len(res.errs.Errors) == 0 {
		return nil
	}
	if len(res.errs.Errors) == 1 {
		return res.errs.Errors[0]
	}
	res.errs.ErrorFormat = formatErrors
	return res.errs
}

// commit publishes the records loaded during the attempt and links every
// record in order: environments first, then imported bindings, then
// hoisted function declarations.
func (res *resolution) commit() {
	reg := res.reg
	for name, rec := range res.loaded {
		reg.records[name] = rec
	}
	for _, rec := range res.order {
		rec.deps = res.deps[rec]
		rec.env = rec.newEnv()
	}
	for _, rec := range res.order {
		for i := 0; i < rec.unit.ImportCount(); i++ {
			imp := rec.unit.ImportAt(i)
			dep := rec.deps[imp.Specifier]
			for _, b := range imp.Bindings {
				if b.Imported == bytecode.NamespaceImport {
					rec.env.Bind(b.Slot, dep.namespaceCell())
					continue
				}
				target, _ := res.resolveExport(dep, b.Imported, nil)
				rec.env.Bind(b.Slot, target.cell())
			}
		}
	}
	for _, rec := range res.order {
		main := rec.unit.Main()
		for i := 0; i < rec.unit.HoistedCount(); i++ {
			h := rec.unit.HoistedAt(i)
			tmpl := main.ConstantAt(h.Constant).(*bytecode.Function)
			rec.env.Cell(h.Slot).Set(reg.exec.NewFunction(tmpl, rec.env))
		}
		rec.state = Resolved
	}
}

func (b binding) cell() *object.Cell {
	if b.namespace {
		return b.rec.namespaceCell()
	}
	return b.rec.env.Cell(b.slot)
}

// namespaceCell returns a cell holding the module's namespace object,
// building it on first use. The cell exists before the namespace is built
// so modules re-exporting their own namespace terminate.
func (r *Record) namespaceCell() *object.Cell {
	if r.nsCell != nil {
		return r.nsCell
	}
	r.nsCell = object.NewValueCell(object.Undefined)
	res := &resolution{}
	exports := map[string]*object.Cell{}
	for i := 0; i < r.unit.ExportCount(); i++ {
		exp := r.unit.ExportAt(i)
		target, err := res.resolveExport(r, exp.Exported, nil)
		if err != nil {
			continue
		}
		exports[exp.Exported] = target.cell()
	}
	r.namespace = object.NewNamespace(r.name, exports)
	r.nsCell.Set(r.namespace)
	return r.nsCell
}

// Evaluate runs root and its dependencies in post-order. Each module runs
// at most once; modules already running further up a cycle are skipped.
// A module whose body throws moves to Failed and keeps the error, which is
// returned again on later attempts.
func (r *Registry) Evaluate(ctx context.Context, root *Record) error {
	if root.state == Compiled {
		if err := r.Resolve(ctx, root); err != nil {
			return err
		}
	}
	type frame struct {
		rec  *Record
		deps []string
		next int
	}
	visiting := map[*Record]bool{root: true}
	stack := []*frame{{rec: root, deps: root.unit.Requests()}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if top.rec.state == Failed {
			return top.rec.err
		}
		if top.rec.state == Executed {
			stack = stack[:len(stack)-1]
			continue
		}
		if top.next < len(top.deps) {
			dep := top.rec.deps[top.deps[top.next]]
			top.next++
			if dep.state == Failed {
				return dep.err
			}
			if dep.state == Resolved && !visiting[dep] {
				visiting[dep] = true
				stack = append(stack, &frame{rec: dep, deps: dep.unit.Requests()})
			}
			continue
		}
		stack = stack[:len(stack)-1]
		if err := r.run(ctx, top.rec); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) run(ctx context.Context, rec *Record) error {
	if _, err := r.exec.RunModule(ctx, rec.unit, rec.env); err != nil {
		r.logger.Debug().Str("module", rec.name).Err(err).Msg("module evaluation failed")
		return rec.fail(err)
	}
	rec.state = Executed
	r.logger.Debug().Str("module", rec.name).Msg("module evaluated")
	return nil
}

func withLocation(err error, filename string, line, column int) error {
	var se *errz.StructuredError
	if stderrors.As(err, &se) && se.Location.IsZero() && line > 0 {
		se.WithLocation(errz.SourceLocation{Filename: filename, Line: line, Column: column})
	}
	return err
}

func errorMessage(err error) string {
	var se *errz.StructuredError
	if stderrors.As(err, &se) {
		return se.Message
	}
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

// formatErrors joins resolution errors into one line per error.
func formatErrors(errs []error) string {
	lines := make([]string, len(errs))
	for i, err := range errs {
		lines[i] = errorMessage(err)
	}
	return strings.Join(lines, "; ")
}
