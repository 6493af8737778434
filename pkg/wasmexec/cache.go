package wasmexec

import (
	"sync"
)

// cacheKey pairs a binary's path with its content hash.
// compilationCache does not use it: its entries are keyed by path
// alone, and a changed hash is handled by evicting that path.
type cacheKey struct {
	path string
	hash string
}

type cacheEntry struct {
	hash   string
	binary []byte
}

// compilationCache memoizes a binary's bytes and content hash against
// its path so repeated submissions against the same file skip the
// disk read and re-hash. Compilation proper (wazero.CompileModule)
// happens per execution against a runtime configured with that
// execution's own memory ceiling (see sandbox.go) — the ceiling
// varies per Context, so the compiled module itself cannot be shared
// across executions with different limits, but the decoded bytes can.
// Entries are evicted on catalog `removed` and `modified` events for
// the corresponding path.
type compilationCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry // keyed by path
}

func newCompilationCache() *compilationCache {
	return &compilationCache{entries: make(map[string]cacheEntry)}
}

// load returns the memoized (hash, binary) for path, reading and
// hashing it only on a miss. A same-path overwrite is picked up solely
// through the catalog's `modified` event calling evictPath, not by
// re-hashing on every load.
func (c *compilationCache) load(path string) (string, []byte, error) {
	c.mu.Lock()
	entry, ok := c.entries[path]
	c.mu.Unlock()
	if ok {
		return entry.hash, entry.binary, nil
	}

	binary, hash, err := loadBinary(path)
	if err != nil {
		return "", nil, err
	}

	c.mu.Lock()
	c.entries[path] = cacheEntry{hash: hash, binary: binary}
	c.mu.Unlock()

	return hash, binary, nil
}

// evictPath drops the memoized entry for path, per catalog `removed`
// events invalidating it.
func (c *compilationCache) evictPath(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, path)
}
