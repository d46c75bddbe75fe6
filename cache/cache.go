// Package cache stores serialized bytecode keyed by the source it was
// compiled from. Stores are safe for concurrent use.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"

	"github.com/deepnoodle-ai/jsrt/bytecode"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("cache: store is closed")

// Store is a bytecode cache backend.
type Store interface {
	// Get returns the cached data for key. The boolean is false on a miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Put stores data under key, replacing any previous value.
	Put(ctx context.Context, key string, data []byte) error

	Close() error
}

// Key derives the cache key of a compilation. It covers the bytecode
// format version, so entries written by another format are never read.
func Key(source, filename string) string {
	h := sha256.New()
	var version [2]byte
	binary.LittleEndian.PutUint16(version[:], bytecode.FormatVersion)
	h.Write(version[:])
	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], uint64(len(filename)))
	h.Write(n[:])
	h.Write([]byte(filename))
	h.Write([]byte(source))
	return hex.EncodeToString(h.Sum(nil))
}
