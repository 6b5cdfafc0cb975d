package shamap

import "errors"

// Error kinds returned by the core operation surface. Callers should
// use errors.Is to classify a failure; the core never retries on its
// own behalf.
var (
	// ErrDuplicate is returned by AddItem when the key is already present.
	ErrDuplicate = errors.New("shamap: key already present")

	// ErrImmutable is returned by mutation calls after SetImmutable.
	ErrImmutable = errors.New("shamap: map is immutable")

	// ErrBadFormat means a blob could not be parsed at all.
	ErrBadFormat = errors.New("shamap: malformed node blob")

	// ErrCorrupt means a blob parsed but its digest did not match what
	// the parent (or caller) expected, or a leaf's key does not lie under
	// the NodeID it was delivered for.
	ErrCorrupt = errors.New("shamap: node fails authentication")

	// ErrUnhookable means the node's would-be parent is not resident,
	// or has no matching child slot for it.
	ErrUnhookable = errors.New("shamap: node has no place to attach")

	// ErrMissing is a source-side lookup miss.
	ErrMissing = errors.New("shamap: node not found")
)
