package jsrt

import (
	"context"
	"errors"
	"fmt"

	"github.com/deepnoodle-ai/jsrt/bytecode"
	"github.com/deepnoodle-ai/jsrt/cache"
	"github.com/deepnoodle-ai/jsrt/errz"
	"github.com/deepnoodle-ai/jsrt/module"
	"github.com/deepnoodle-ai/jsrt/parser"
)

var (
	// ErrForeignBuffer is returned when a buffer is freed through a Runtime
	// that did not allocate it.
	ErrForeignBuffer = errors.New("buffer belongs to another runtime")

	// ErrBufferFreed is returned when a buffer is freed twice.
	ErrBufferFreed = errors.New("buffer already freed")
)

// Allocator provides the memory behind bytecode buffers.
type Allocator interface {
	Alloc(size int) []byte
	Free(b []byte)
}

type heapAllocator struct{}

func (heapAllocator) Alloc(size int) []byte { return make([]byte, size) }
func (heapAllocator) Free([]byte)           {}

// Buffer holds serialized bytecode. It is owned by the caller until
// released with Free.
type Buffer struct {
	rt    *Runtime
	data  []byte
	freed bool
}

// Bytes returns the buffer contents. The slice is invalid after Free.
func (b *Buffer) Bytes() []byte { return b.data }

// Len returns the number of bytes in the buffer.
func (b *Buffer) Len() int { return len(b.data) }

// Free releases the buffer through the Runtime that allocated it.
func (b *Buffer) Free() error {
	return b.rt.FreeBuffer(b)
}

// FreeBuffer releases a buffer allocated by this Runtime.
func (rt *Runtime) FreeBuffer(b *Buffer) error {
	if b == nil {
		return fmt.Errorf("nil buffer")
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if b.rt != rt {
		rt.logger.Error().Msg("buffer freed through a foreign runtime")
		return ErrForeignBuffer
	}
	if b.freed {
		rt.logger.Error().Msg("buffer freed twice")
		return ErrBufferFreed
	}
	b.freed = true
	delete(rt.buffers, b)
	rt.opts.allocator.Free(b.data)
	b.data = nil
	return nil
}

func (rt *Runtime) newBuffer(data []byte) *Buffer {
	mem := rt.opts.allocator.Alloc(len(data))
	copy(mem, data)
	b := &Buffer{rt: rt, data: mem[:len(data)]}
	rt.buffers[b] = struct{}{}
	return b
}

// CompileToBytecode compiles source without running it, detecting module
// syntax like EvalAutoDetect. Source text is stripped from the result. On
// failure it returns (nil, 0) with the exception pending.
func (c *Context) CompileToBytecode(source, filename string) (*Buffer, int) {
	defer c.enter()()
	data, err := c.compileBytecode(c.goctx, source, filename)
	if err != nil {
		c.fail(err)
		return nil, 0
	}
	b := c.rt.newBuffer(data)
	return b, b.Len()
}

func (c *Context) compileBytecode(ctx context.Context, source, filename string) ([]byte, error) {
	store := c.rt.opts.cache
	var key string
	if store != nil {
		key = cache.Key(source, filename)
		data, ok, err := store.Get(ctx, key)
		switch {
		case err != nil:
			c.logger.Warn().Err(err).Str("filename", filename).Msg("bytecode cache read failed")
		case ok:
			if _, err := bytecode.ReadHeader(data); err == nil {
				c.logger.Debug().Str("filename", filename).Msg("bytecode cache hit")
				return data, nil
			}
			c.logger.Warn().Str("filename", filename).Msg("ignoring invalid cached bytecode")
		}
	}
	unit, err := module.Compile(ctx, source, filename, parser.DetectModule(source))
	if err != nil {
		return nil, err
	}
	data, err := bytecode.Marshal(unit, bytecode.WithStripSource())
	if err != nil {
		return nil, errz.InternalErrorf("cannot serialize %s: %s", filename, err)
	}
	if store != nil {
		if err := store.Put(ctx, key, data); err != nil {
			c.logger.Warn().Err(err).Str("filename", filename).Msg("bytecode cache write failed")
		}
	}
	return data, nil
}

// EvalBytecode decodes, validates and runs bytecode produced by
// CompileToBytecode. length is the number of meaningful bytes in data.
// Nothing runs unless the whole unit is valid. Module units are registered
// under their compiled name, resolved and evaluated; scripts return their
// completion value.
func (c *Context) EvalBytecode(data []byte, length int) Value {
	defer c.enter()()
	if length < 0 || length > len(data) {
		return c.throwError(errz.KindInternalError,
			fmt.Sprintf("bytecode length %d is outside the %d byte buffer", length, len(data)))
	}
	unit, err := bytecode.Unmarshal(data[:length])
	if err != nil {
		c.logger.Warn().Err(err).Msg("bytecode rejected")
		return c.fail(module.InvalidBytecode(err))
	}
	if unit.Kind() == bytecode.Module {
		rec, err := c.modules.Add(unit.Name(), unit)
		if err != nil {
			return c.fail(err)
		}
		return c.evalModule(rec)
	}
	result, err := c.machine.RunScript(c.goctx, unit)
	if err != nil {
		return c.fail(err)
	}
	return wrap(result)
}
