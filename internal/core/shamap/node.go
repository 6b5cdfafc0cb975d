package shamap

// Node is the tagged-union of the two node kinds the trie ever stores.
// Inner and leaf nodes are distinct concrete types, not a class
// hierarchy; callers type-switch on the concrete type when they need to
// tell them apart, the same way the store's by-ID lookup does.
type Node interface {
	IsLeaf() bool
	Hash() Digest
}

const branchFactor = 16

// InnerNode owns 16 child slots addressed by nibble. It never holds
// pointers to its children directly: a slot only remembers the child's
// digest, and the actual child (if resident) lives in the store's
// by-ID index. This keeps the trie a DAG with no back-pointers to walk
// when a subtree is dropped.
//
// A slot's occupant may be a leaf or a further inner node, and two
// slots of the same InnerNode are not required to agree: path
// compression means a branch holding exactly one item terminates in a
// leaf right there, while a sibling branch holding several items that
// still share a prefix continues one level deeper as another inner
// node. Nothing in the wire format carries this distinction ahead of
// time, so callers resolve a resident child's class by checking which
// by-ID index holds it, never by asking the parent.
type InnerNode struct {
	id       NodeID
	slots    [branchFactor]Digest
	occupied uint16 // bit i set iff slots[i] is non-zero
	hash     Digest

	// fullBelow memoizes that every descendant reachable through this
	// node is resident in the store. Once true it is never reset within
	// a sync epoch; getMissingNodes both reads and sets it.
	fullBelow bool

	seq uint32
}

// NewInnerNode creates an empty inner node at id.
func NewInnerNode(id NodeID) *InnerNode {
	n := &InnerNode{id: id}
	n.recomputeHash()
	return n
}

func (n *InnerNode) IsLeaf() bool  { return false }
func (n *InnerNode) Hash() Digest { return n.hash }
func (n *InnerNode) ID() NodeID   { return n.id }

// IsEmptyBranch reports whether slot i currently holds no child.
func (n *InnerNode) IsEmptyBranch(i int) bool {
	return n.occupied&(1<<uint(i)) == 0
}

// ChildDigest returns the digest advertised for slot i, or the zero
// digest if the slot is empty.
func (n *InnerNode) ChildDigest(i int) Digest {
	return n.slots[i]
}

// FullBelow reports the memoized full-below flag.
func (n *InnerNode) FullBelow() bool {
	return n.fullBelow
}

func (n *InnerNode) setFullBelow() {
	n.fullBelow = true
}

// setChildDigest sets or clears slot i and recomputes this node's own
// digest. Used by the mutation path (source side) and by node
// construction while parsing a wire blob.
func (n *InnerNode) setChildDigest(i int, d Digest) {
	n.slots[i] = d
	if d.IsZero() {
		n.occupied &^= 1 << uint(i)
	} else {
		n.occupied |= 1 << uint(i)
	}
	n.recomputeHash()
}

func (n *InnerNode) recomputeHash() {
	n.hash = hashBlob(serializeInner(n.slots))
}

func (n *InnerNode) serialize() []byte {
	return serializeInner(n.slots)
}

// parseInnerNode builds an InnerNode from a wire blob without knowing
// which of its children (if any) are resident locally; that's the
// store's job once the node is spliced in.
func parseInnerNode(id NodeID, blob []byte, seq uint32) (*InnerNode, error) {
	slots, err := parseInner(blob)
	if err != nil {
		return nil, err
	}
	n := &InnerNode{id: id, slots: slots, seq: seq}
	for i, s := range slots {
		if !s.IsZero() {
			n.occupied |= 1 << uint(i)
		}
	}
	n.recomputeHash()
	return n, nil
}

// LeafNode is a terminal node holding exactly one Item.
type LeafNode struct {
	id   NodeID
	item Item
	hash Digest
	seq  uint32
}

// NewLeafNode builds a leaf for item at id, wherever the mutation path
// or a sync splice decided it belongs. Path compression means that
// depth is not a pure function of item's key: it's the depth at which
// item's key first stopped colliding with whatever else shared its
// prefix, which can be anywhere from 1 to MaxDepth.
func NewLeafNode(id NodeID, item Item, seq uint32) *LeafNode {
	n := &LeafNode{id: id, item: item, seq: seq}
	n.hash = hashBlob(serializeLeaf(item))
	return n
}

func (n *LeafNode) IsLeaf() bool  { return true }
func (n *LeafNode) Hash() Digest { return n.hash }
func (n *LeafNode) ID() NodeID   { return n.id }
func (n *LeafNode) Item() Item   { return n.item }

func (n *LeafNode) serialize() []byte {
	return serializeLeaf(n.item)
}

// parseLeafNode builds a LeafNode from a wire blob, at the id the
// caller is installing it under. Unlike an inner node's id, a leaf's id
// cannot be recovered from the blob alone: the blob carries the item's
// full key, not the (possibly much shallower) depth path compression
// placed the leaf at.
func parseLeafNode(id NodeID, blob []byte, seq uint32) (*LeafNode, error) {
	item, err := parseLeaf(blob)
	if err != nil {
		return nil, err
	}
	n := &LeafNode{id: id, item: item, seq: seq}
	n.hash = hashBlob(blob)
	return n, nil
}
