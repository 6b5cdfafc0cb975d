package shamap

import lru "github.com/hashicorp/golang-lru/v2"

// blobCacheEntry pairs a digest with the blob it was computed from, so
// a cache hit can be invalidated the instant a node's content changes
// (which never happens post-finalization, but guards against reuse
// across two different nodes that briefly shared a NodeID during a
// resync).
type blobCacheEntry struct {
	digest Digest
	blob   []byte
}

// blobCache memoizes serialize() results for nodes that GetNodeFat
// visits repeatedly — the same popular subtree gets requested by many
// lagging peers during a busy sync window, and serialization work
// (slot concatenation) is pure allocation that's wasteful to repeat.
type blobCache struct {
	cache *lru.Cache[NodeID, blobCacheEntry]
}

// newBlobCache builds a blob cache holding up to size entries. size <= 0
// disables caching (get/put become no-ops).
func newBlobCache(size int) *blobCache {
	if size <= 0 {
		return &blobCache{}
	}
	c, err := lru.New[NodeID, blobCacheEntry](size)
	if err != nil {
		return &blobCache{}
	}
	return &blobCache{cache: c}
}

func (c *blobCache) get(id NodeID, digest Digest) ([]byte, bool) {
	if c == nil || c.cache == nil {
		return nil, false
	}
	entry, ok := c.cache.Get(id)
	if !ok || entry.digest != digest {
		return nil, false
	}
	return entry.blob, true
}

func (c *blobCache) put(id NodeID, digest Digest, blob []byte) {
	if c == nil || c.cache == nil {
		return
	}
	c.cache.Add(id, blobCacheEntry{digest: digest, blob: blob})
}
