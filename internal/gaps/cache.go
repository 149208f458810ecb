package gaps

import (
	"io/fs"
	"sync"

	"github.com/mcp-tool-shop/code-covered/internal/syntax"
)

// IndexCache reuses structural indexes across runs keyed by path and
// file signature. Invalidation is explicit: a signature mismatch
// discards the cached index and the file is reparsed. Safe for
// concurrent use.
type IndexCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	sig   fileSignature
	index *syntax.Index
}

// fileSignature identifies a file's content cheaply. Modification
// time plus size misses same-second same-size rewrites, which is an
// accepted trade against hashing every source file.
type fileSignature struct {
	modTime int64
	size    int64
}

func signatureOf(info fs.FileInfo) fileSignature {
	return fileSignature{modTime: info.ModTime().UnixNano(), size: info.Size()}
}

// NewIndexCache returns an empty cache.
func NewIndexCache() *IndexCache {
	return &IndexCache{entries: make(map[string]cacheEntry)}
}

func (c *IndexCache) get(path string, info fs.FileInfo) (*syntax.Index, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[path]
	if !ok || entry.sig != signatureOf(info) {
		return nil, false
	}
	return entry.index, true
}

func (c *IndexCache) put(path string, info fs.FileInfo, ix *syntax.Index) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[path] = cacheEntry{sig: signatureOf(info), index: ix}
}

// Len reports the number of cached indexes.
func (c *IndexCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
