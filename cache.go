package ncompose

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"sync/atomic"
)

var (
	bindingCounter int64
	rootCounter    int64
)

func nextBindingID() int { return int(atomic.AddInt64(&bindingCounter, 1)) }

func nextRootID() int { return int(atomic.AddInt64(&rootCounter, 1)) }

// SetupCache remembers the setups extracted from source text so that text
// presented again unchanged is not processed again.  Each key is
// processed at most once even when several passes ask concurrently.
type SetupCache struct {
	lock    sync.Mutex
	entries map[string]*cacheEntry
	hits    int64
	misses  int64
}

type cacheEntry struct {
	once        sync.Once
	setups      []*Setup
	diagnostics []Diagnostic
	err         error
}

func NewSetupCache() *SetupCache {
	return &SetupCache{entries: make(map[string]*cacheEntry)}
}

// Checksum is the cache key for source text.
func Checksum(text []byte) string {
	sum := sha256.Sum256(text)
	return hex.EncodeToString(sum[:])
}

// Load returns the cached result for text, calling build the first time.
// Diagnostics reported by build are remembered and replayed to r on every
// call so that a cached pass reports what an uncached one would.
func (c *SetupCache) Load(text []byte, r Reporter, build func(Reporter) ([]*Setup, error)) ([]*Setup, bool, error) {
	key := Checksum(text)
	c.lock.Lock()
	e, ok := c.entries[key]
	if !ok {
		e = &cacheEntry{}
		c.entries[key] = e
	}
	c.lock.Unlock()

	ran := false
	e.once.Do(func() {
		ran = true
		var collected Diagnostics
		e.setups, e.err = build(&collected)
		e.diagnostics = collected.All()
	})
	if ran {
		atomic.AddInt64(&c.misses, 1)
	} else {
		atomic.AddInt64(&c.hits, 1)
	}
	if r != nil {
		for _, d := range e.diagnostics {
			report(r, d)
		}
	}
	return e.setups, !ran, e.err
}

// Forget drops the entry for text.
func (c *SetupCache) Forget(text []byte) {
	c.lock.Lock()
	defer c.lock.Unlock()
	delete(c.entries, Checksum(text))
}

func (c *SetupCache) Stats() (hits, misses int64) {
	return atomic.LoadInt64(&c.hits), atomic.LoadInt64(&c.misses)
}
