// Package bufpool provides a tiered buffer pool for streaming image bytes.
//
// Uploads, cached pipeline outputs, and thumbnails are all copied through
// byte slices on their way between disk and the HTTP layer. Pooling those
// slices keeps a busy server from churning the garbage collector on every
// request.
//
// Three size tiers cover the usual shapes of image traffic:
//   - Small buffers (default 32KB): copy loops and thumbnail responses
//   - Medium buffers (default 256KB): typical compressed images
//   - Large buffers (default 4MB): full-resolution pipeline outputs
//
// Requests larger than the large tier are allocated directly and not
// pooled, so an occasional oversized upload never pins memory.
//
// All operations are safe for concurrent use via sync.Pool.
//
// Usage:
//
//	buf := bufpool.Get(size)
//	defer bufpool.Put(buf)
package bufpool

import (
	"sync"
)

// Default buffer size classes.
// These can be overridden when creating a custom pool with NewPool.
const (
	// DefaultSmallSize matches the io.Copy internal buffer size (32KB)
	DefaultSmallSize = 32 << 10

	// DefaultMediumSize fits most compressed uploads (256KB)
	DefaultMediumSize = 256 << 10

	// DefaultLargeSize fits full-resolution derived outputs (4MB)
	DefaultLargeSize = 4 << 20
)

// Pool manages a set of byte slice pools organized by size class.
// Get selects the smallest tier that fits the request and falls back to a
// plain allocation for oversized requests.
type Pool struct {
	small      sync.Pool
	medium     sync.Pool
	large      sync.Pool
	smallSize  int
	mediumSize int
	largeSize  int
}

// Config holds size classes for a custom buffer pool.
type Config struct {
	SmallSize  int
	MediumSize int
	LargeSize  int
}

// DefaultConfig returns the default pool configuration.
func DefaultConfig() Config {
	return Config{
		SmallSize:  DefaultSmallSize,
		MediumSize: DefaultMediumSize,
		LargeSize:  DefaultLargeSize,
	}
}

// NewPool creates a buffer pool with the given configuration.
// If config is nil, default values are used. Zero or negative size classes
// fall back to their defaults.
func NewPool(cfg *Config) *Pool {
	if cfg == nil {
		defaultCfg := DefaultConfig()
		cfg = &defaultCfg
	}

	if cfg.SmallSize <= 0 {
		cfg.SmallSize = DefaultSmallSize
	}
	if cfg.MediumSize <= 0 {
		cfg.MediumSize = DefaultMediumSize
	}
	if cfg.LargeSize <= 0 {
		cfg.LargeSize = DefaultLargeSize
	}

	p := &Pool{
		smallSize:  cfg.SmallSize,
		mediumSize: cfg.MediumSize,
		largeSize:  cfg.LargeSize,
	}

	p.small = sync.Pool{
		New: func() any {
			buf := make([]byte, p.smallSize)
			return &buf
		},
	}
	p.medium = sync.Pool{
		New: func() any {
			buf := make([]byte, p.mediumSize)
			return &buf
		},
	}
	p.large = sync.Pool{
		New: func() any {
			buf := make([]byte, p.largeSize)
			return &buf
		},
	}

	return p
}

// Get returns a byte slice of at least the requested size. The slice
// capacity may exceed size to align with pool size classes.
//
// The caller must call Put when finished with the buffer, or it will not
// be reused. Sizes above the large tier are allocated directly and never
// pooled.
func (p *Pool) Get(size int) []byte {
	var bufPtr *[]byte

	switch {
	case size <= p.smallSize:
		bufPtr = p.small.Get().(*[]byte)
	case size <= p.mediumSize:
		bufPtr = p.medium.Get().(*[]byte)
	case size <= p.largeSize:
		bufPtr = p.large.Get().(*[]byte)
	default:
		return make([]byte, size)
	}

	buf := *bufPtr
	return buf[:size]
}

// Put returns a buffer to the pool for reuse. The buffer must have been
// obtained from Get and must not be used after Put.
//
// Buffers whose capacity does not match a size class (oversized direct
// allocations) are left for the garbage collector.
func (p *Pool) Put(buf []byte) {
	if buf == nil {
		return
	}

	switch cap(buf) {
	case p.smallSize:
		fullBuf := buf[:cap(buf)]
		p.small.Put(&fullBuf)
	case p.mediumSize:
		fullBuf := buf[:cap(buf)]
		p.medium.Put(&fullBuf)
	case p.largeSize:
		fullBuf := buf[:cap(buf)]
		p.large.Put(&fullBuf)
	}
}

// globalPool is the package-level buffer pool with default configuration.
var globalPool = NewPool(nil)

// Get returns a byte slice of at least the requested size from the global
// pool. Pair with Put, usually via defer.
func Get(size int) []byte {
	return globalPool.Get(size)
}

// Put returns a buffer to the global pool.
func Put(buf []byte) {
	globalPool.Put(buf)
}
