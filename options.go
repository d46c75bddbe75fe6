package jsrt

import (
	"io"

	"github.com/rs/zerolog"

	"github.com/deepnoodle-ai/jsrt/builtins"
	"github.com/deepnoodle-ai/jsrt/cache"
	"github.com/deepnoodle-ai/jsrt/config"
	"github.com/deepnoodle-ai/jsrt/importer"
	"github.com/deepnoodle-ai/jsrt/vm"
)

// Option configures a Runtime.
type Option func(*options)

type options struct {
	logger       zerolog.Logger
	importer     importer.Importer
	cache        cache.Store
	ownsCache    bool
	allocator    Allocator
	vmOpts       []vm.Option
	builtinsOpts []builtins.Option
}

func collectOptions(opts ...Option) *options {
	o := &options{
		logger:    zerolog.Nop(),
		allocator: heapAllocator{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// WithLogger sets the logger used for lifecycle and module events. The
// default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithImporter supplies the Importer used to load modules that are imported
// but were never compiled in the Context. Without one, such imports fail
// with a ReferenceError.
func WithImporter(i importer.Importer) Option {
	return func(o *options) {
		o.importer = i
	}
}

// WithLocalImporter enables importing modules from the given directories.
func WithLocalImporter(dirs ...string) Option {
	return func(o *options) {
		o.importer = importer.NewLocalImporter(importer.LocalImporterOptions{SourceDirs: dirs})
	}
}

// WithModules makes the given module sources importable by name.
func WithModules(modules map[string]string) Option {
	return func(o *options) {
		o.importer = importer.NewMapImporter(modules)
	}
}

// WithCache sets the store consulted by CompileToBytecode. The caller keeps
// ownership of the store.
func WithCache(store cache.Store) Option {
	return func(o *options) {
		o.cache = store
		o.ownsCache = false
	}
}

// WithAllocator sets the allocator that backs bytecode buffers.
func WithAllocator(a Allocator) Option {
	return func(o *options) {
		o.allocator = a
	}
}

// WithMaxFrameDepth limits the depth of the script call stack.
func WithMaxFrameDepth(depth int) Option {
	return func(o *options) {
		o.vmOpts = append(o.vmOpts, vm.WithMaxFrameDepth(depth))
	}
}

// WithInterruptInterval sets how many instructions run between checks of
// the interrupt handler and Go context cancellation.
func WithInterruptInterval(n int) Option {
	return func(o *options) {
		o.vmOpts = append(o.vmOpts, vm.WithContextCheckInterval(n))
	}
}

// WithInterruptHandler installs a function polled during execution.
// Returning true aborts the running evaluation with an InternalError that
// scripts cannot catch.
func WithInterruptHandler(fn func() bool) Option {
	return func(o *options) {
		o.vmOpts = append(o.vmOpts, vm.WithInterruptHandler(fn))
	}
}

// WithObserver sets an observer for execution events in every Context.
func WithObserver(observer vm.Observer) Option {
	return func(o *options) {
		o.vmOpts = append(o.vmOpts, vm.WithObserver(observer))
	}
}

// WithStdout sets where console.log writes.
func WithStdout(w io.Writer) Option {
	return func(o *options) {
		o.builtinsOpts = append(o.builtinsOpts, builtins.WithStdout(w))
	}
}

// WithStderr sets where console.warn and console.error write.
func WithStderr(w io.Writer) Option {
	return func(o *options) {
		o.builtinsOpts = append(o.builtinsOpts, builtins.WithStderr(w))
	}
}

// WithConfig applies the runtime and module sections of cfg. A memory cache
// is created when cfg selects one; other backends need NewRuntimeFromConfig.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) {
		if cfg.Runtime.MaxFrameDepth > 0 {
			o.vmOpts = append(o.vmOpts, vm.WithMaxFrameDepth(cfg.Runtime.MaxFrameDepth))
		}
		if cfg.Runtime.InterruptInterval > 0 {
			o.vmOpts = append(o.vmOpts, vm.WithContextCheckInterval(cfg.Runtime.InterruptInterval))
		}
		if len(cfg.Modules.SearchPaths) > 0 {
			o.importer = importer.NewLocalImporter(importer.LocalImporterOptions{
				SourceDirs: cfg.Modules.SearchPaths,
				Extensions: cfg.Modules.Extensions,
			})
		}
		if cfg.Cache.Backend == config.BackendMemory && o.cache == nil {
			o.cache = cache.NewMemory()
			o.ownsCache = true
		}
	}
}

func withOwnedCache(store cache.Store) Option {
	return func(o *options) {
		o.cache = store
		o.ownsCache = true
	}
}
