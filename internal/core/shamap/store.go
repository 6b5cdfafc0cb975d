// Package shamap implements a radix-16 Merkle trie: a content-addressed
// key/value map whose root digest authenticates every entry, together
// with the request/response protocol that lets a destination replicate
// a source's map over an unreliable transport.
package shamap

import "sync"

// SHAMap owns a partial or complete trie: the root, an index of every
// known node by NodeID, and the sequence/mode flags that govern
// mutation and sync. A single mutex guards the whole structure; every
// exported method takes it for its entire duration and releases it on
// every exit path, including failure. Internal helpers with an
// "Locked" suffix assume the caller already holds the lock, which is
// how one public operation calls another without deadlocking on a
// plain (non-reentrant) sync.Mutex.
type SHAMap struct {
	mu sync.Mutex

	root      *InnerNode
	innerByID map[NodeID]*InnerNode
	leafByID  map[NodeID]*LeafNode

	seq uint32

	// dirtyInner and dirtyLeaf expose newly materialized nodes to a
	// pluggable persistence layer. The core never reads them back; it
	// adds to them, and drops a leaf's entry when splitLeafLocked moves
	// that leaf deeper.
	dirtyInner map[NodeID]*InnerNode
	dirtyLeaf  map[NodeID]*LeafNode

	// rootInstalled distinguishes a map whose root is a genuine (possibly
	// empty) node from a destination that has called NewForSync and is
	// waiting for AddRootNode. An empty inner node still hashes to a
	// real, non-zero digest, so this can't be inferred from the root's
	// hash alone.
	rootInstalled bool

	syncing   bool
	immutable bool

	// blobs memoizes the serialized form of nodes GetNodeFat has already
	// encoded, since a busy source re-encodes the same popular subtree
	// for every lagging peer that requests it.
	blobs *blobCache
}

// defaultBlobCacheSize bounds the memoized-blob cache; a source serving
// many concurrent destinations rarely has more hot nodes than this at
// once, and a miss just costs a re-serialize, never a correctness
// problem.
const defaultBlobCacheSize = 4096

// New creates an empty, mutable SHAMap with an empty root.
func New() *SHAMap {
	return NewWithCacheSize(defaultBlobCacheSize)
}

// NewWithCacheSize creates an empty, mutable SHAMap whose fat-node blob
// cache holds at most cacheSize entries. A size <= 0 disables the cache.
func NewWithCacheSize(cacheSize int) *SHAMap {
	sm := newBare(cacheSize)
	sm.root = NewInnerNode(RootID)
	sm.innerByID[RootID] = sm.root
	sm.rootInstalled = true
	return sm
}

// NewForSync creates a destination-side SHAMap holding nothing at all,
// not even an empty root: the caller must feed it a root blob via
// AddRootNode before GetMissingNodes or GetNodeFat will report anything
// useful. The map starts in sync mode.
func NewForSync(cacheSize int) *SHAMap {
	sm := newBare(cacheSize)
	sm.root = NewInnerNode(RootID)
	sm.syncing = true
	return sm
}

func newBare(cacheSize int) *SHAMap {
	return &SHAMap{
		innerByID:  make(map[NodeID]*InnerNode),
		leafByID:   make(map[NodeID]*LeafNode),
		dirtyInner: make(map[NodeID]*InnerNode),
		dirtyLeaf:  make(map[NodeID]*LeafNode),
		blobs:      newBlobCache(cacheSize),
	}
}

// HasRoot reports whether a real root (installed via AddRootNode, or via
// New's implicit empty one) is present.
func (sm *SHAMap) HasRoot() bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.rootInstalled
}

// RootHash returns the digest of the current root.
func (sm *SHAMap) RootHash() Digest {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.root.Hash()
}

// SetSyncing puts the map into sync mode, tolerating an empty root
// digest and missing children until ClearSyncing is called.
func (sm *SHAMap) SetSyncing() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.syncing = true
}

// ClearSyncing takes the map out of sync mode.
func (sm *SHAMap) ClearSyncing() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.syncing = false
}

// IsSyncing reports whether the map is currently in sync mode.
func (sm *SHAMap) IsSyncing() bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.syncing
}

// DirtyInnerNodes returns, and clears, the set of inner nodes
// materialized since the last call. Intended for a persistence layer
// to drain periodically; the core itself never consults it again.
func (sm *SHAMap) DirtyInnerNodes() map[NodeID]*InnerNode {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	out := sm.dirtyInner
	sm.dirtyInner = make(map[NodeID]*InnerNode)
	return out
}

// DirtyLeafNodes returns, and clears, the set of leaf nodes materialized
// since the last call.
func (sm *SHAMap) DirtyLeafNodes() map[NodeID]*LeafNode {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	out := sm.dirtyLeaf
	sm.dirtyLeaf = make(map[NodeID]*LeafNode)
	return out
}

// DrainDirtyBlobs drains both dirty sets at once and returns each node's
// wire blob keyed by its own digest, the shape a persistence sink wants:
// content-addressed storage never needs the NodeID, only the digest and
// the bytes that hash to it.
func (sm *SHAMap) DrainDirtyBlobs() map[[32]byte][]byte {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	out := make(map[[32]byte][]byte, len(sm.dirtyInner)+len(sm.dirtyLeaf))
	for _, n := range sm.dirtyInner {
		out[[32]byte(n.Hash())] = n.serialize()
	}
	for _, n := range sm.dirtyLeaf {
		out[[32]byte(n.Hash())] = n.serialize()
	}
	sm.dirtyInner = make(map[NodeID]*InnerNode)
	sm.dirtyLeaf = make(map[NodeID]*LeafNode)
	return out
}

func (sm *SHAMap) markInnerDirtyLocked(n *InnerNode) {
	sm.innerByID[n.id] = n
	sm.dirtyInner[n.id] = n
}

func (sm *SHAMap) markLeafDirtyLocked(n *LeafNode) {
	sm.leafByID[n.id] = n
	sm.dirtyLeaf[n.id] = n
}
