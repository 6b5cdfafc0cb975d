// Package nodesink implements the pluggable persistence layer a
// long-lived source or destination hangs off a shamap.SHAMap: it drains
// the map's dirty-node sets and writes them to a key/value backend keyed
// by digest, and serves them back on demand for a cold-started map that
// wants to rehydrate a subtree it once already synced.
package nodesink

import "errors"

// ErrNotFound is returned by Get when no blob is stored under a digest.
var ErrNotFound = errors.New("nodesink: node not found")

// Sink is the storage contract every backend implements. Blobs are
// opaque: the wire tag byte already inside them is what distinguishes a
// leaf from an inner node, so the sink never needs to know which it's
// holding.
type Sink interface {
	Put(digest [32]byte, blob []byte) error
	Get(digest [32]byte) ([]byte, error)
	Has(digest [32]byte) (bool, error)
	Delete(digest [32]byte) error
	Close() error
}

// BatchSink is implemented by backends that can group writes into one
// atomic commit. Drainers use it when available, committing each chunk
// of up to DrainConfig.MaxBatch blobs atomically; a flush larger than
// that spans several commits.
type BatchSink interface {
	Sink
	NewBatch() Batch
}

// Batch accumulates puts for a single atomic commit.
type Batch interface {
	Put(digest [32]byte, blob []byte)
	Commit() error
}
