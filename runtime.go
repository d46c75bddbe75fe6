package jsrt

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gofrs/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/deepnoodle-ai/jsrt/cache"
	"github.com/deepnoodle-ai/jsrt/config"
)

var (
	// ErrRuntimeFreed is returned when a Runtime is freed twice.
	ErrRuntimeFreed = errors.New("runtime already freed")

	// ErrLiveContexts is returned by Runtime.Free while Contexts created
	// from the Runtime have not been freed.
	ErrLiveContexts = errors.New("runtime has live contexts")

	// ErrLeakedBuffers reports bytecode buffers that were still allocated
	// when their Runtime was freed.
	ErrLeakedBuffers = errors.New("bytecode buffers not freed")
)

// Runtime owns the resources shared by its Contexts: the buffer allocator,
// the module importer, the bytecode cache and the logger. A Runtime runs
// at most one Context operation at a time.
type Runtime struct {
	id     uuid.UUID
	opts   *options
	logger zerolog.Logger

	mu       sync.Mutex
	contexts map[*Context]struct{}
	buffers  map[*Buffer]struct{}
	freed    bool
}

// NewRuntime creates a Runtime configured by opts.
func NewRuntime(opts ...Option) *Runtime {
	o := collectOptions(opts...)
	id := uuid.Must(uuid.NewV4())
	rt := &Runtime{
		id:       id,
		opts:     o,
		logger:   o.logger.With().Str("runtime", id.String()).Logger(),
		contexts: map[*Context]struct{}{},
		buffers:  map[*Buffer]struct{}{},
	}
	rt.logger.Debug().Msg("runtime created")
	return rt
}

// NewRuntimeFromConfig creates a Runtime from cfg, opening the configured
// bytecode cache. The Runtime closes that cache when it is freed. Options
// given here are applied after the configuration.
func NewRuntimeFromConfig(ctx context.Context, cfg *config.Config, opts ...Option) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	store, err := cache.Open(ctx, cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("opening %s cache: %w", cfg.Cache.Backend, err)
	}
	all := []Option{WithConfig(cfg)}
	if store != nil {
		all = append(all, withOwnedCache(store))
	}
	return NewRuntime(append(all, opts...)...), nil
}

// ID returns the unique identifier of the Runtime.
func (rt *Runtime) ID() string {
	return rt.id.String()
}

// LiveContexts returns the number of Contexts that have not been freed.
func (rt *Runtime) LiveContexts() int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return len(rt.contexts)
}

// NewContext creates a Context with its own globals, module registry and
// pending exception slot. It panics if the Runtime has been freed.
func (rt *Runtime) NewContext() *Context {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.freed {
		rt.logger.Error().Msg("NewContext called on a freed runtime")
		panic(ErrRuntimeFreed)
	}
	c := newContext(rt)
	rt.contexts[c] = struct{}{}
	c.logger.Debug().Msg("context created")
	return c
}

// Free releases the Runtime. It fails with ErrLiveContexts while any
// Context is still live, leaving the Runtime usable. Buffers that were
// never freed are reported with ErrLeakedBuffers, aggregated with any
// error from closing an owned cache; the Runtime is freed regardless.
func (rt *Runtime) Free() error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.freed {
		rt.logger.Error().Msg("runtime freed twice")
		return ErrRuntimeFreed
	}
	if n := len(rt.contexts); n > 0 {
		rt.logger.Error().Int("contexts", n).Msg("runtime freed with live contexts")
		return fmt.Errorf("%w: %d", ErrLiveContexts, n)
	}
	rt.freed = true
	var result *multierror.Error
	if n := len(rt.buffers); n > 0 {
		rt.logger.Warn().Int("buffers", n).Msg("runtime freed with outstanding buffers")
		result = multierror.Append(result, fmt.Errorf("%w: %d", ErrLeakedBuffers, n))
	}
	if rt.opts.cache != nil && rt.opts.ownsCache {
		if err := rt.opts.cache.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("closing cache: %w", err))
		}
	}
	rt.logger.Debug().Msg("runtime freed")
	return result.ErrorOrNil()
}
