// Package orphctx carries the configuration and shared caches that the
// original tool kept as package-level globals (verbosity, the one-slot
// store cache, the trash directory name) as an explicit value threaded
// through every operation instead.
package orphctx

import "sync"

// Verbosity controls how much the view layer prints.
type Verbosity int

const (
	Quiet Verbosity = iota
	Normal
	Verbose
)

// Config holds the user-facing knobs every verb reads. It is built once
// from CLI flags in cmd/orphdat and never mutated afterward.
type Config struct {
	Verbosity    Verbosity
	DryRun       bool
	OrphdatName  string // default ".orphdat"
	TrashName    string // default ".orphtrash"
	Workers      int    // hashing worker pool size, 0 = runtime.NumCPU()
	ExifToolPath string // default "exiftool"
}

// DefaultConfig returns the configuration used when no flags override it.
func DefaultConfig() Config {
	return Config{
		Verbosity:    Normal,
		OrphdatName:  ".orphdat",
		TrashName:    ".orphtrash",
		Workers:      0,
		ExifToolPath: "exiftool",
	}
}

// Context is passed by pointer to every internal package entry point. It
// bundles the run configuration with the mutable state that the original
// tool stashed in package-level variables: the store package's one-slot
// cache.
type Context struct {
	Config Config

	mu        sync.Mutex
	cacheDir  string
	cacheData any // internal/store.storeCache payload, opaque here
}

// New builds a Context from a Config.
func New(cfg Config) *Context {
	return &Context{Config: cfg}
}

// SwapCache atomically replaces the single-slot cache entry and returns
// the previous (dir, data) pair: opening any other store invalidates
// the cached one.
func (c *Context) SwapCache(dir string, data any) (string, any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prevDir, prevData := c.cacheDir, c.cacheData
	c.cacheDir, c.cacheData = dir, data
	return prevDir, prevData
}

// Cache returns the currently cached (dir, data) pair, if any.
func (c *Context) Cache() (string, any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cacheDir, c.cacheData
}
